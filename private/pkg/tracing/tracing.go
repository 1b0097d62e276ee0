// Copyright 2020-2024 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing wraps OpenTelemetry spans.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NopTracer is a no-op tracer.
var NopTracer Tracer = NewTracer(noop.NewTracerProvider().Tracer(""))

// Tracer wraps an otel trace.Tracer.
type Tracer interface {
	// Start creates a span named spanName.
	//
	// If WithErr is given, the status of the span is set from the error
	// when the span ends.
	Start(ctx context.Context, spanName string, options ...StartOption) (context.Context, trace.Span)
}

// NewTracer returns a new Tracer.
func NewTracer(otelTracer trace.Tracer) Tracer {
	return newTracer(otelTracer)
}

// StartOption is an option for Start.
type StartOption func(*startOptions)

// WithErr records the error pointed to by errAddr when the span ends.
//
// Pass the address of a named return value.
func WithErr(errAddr *error) StartOption {
	return func(startOptions *startOptions) {
		startOptions.errAddr = errAddr
	}
}

// WithAttributes adds attributes to the span.
func WithAttributes(attributes ...attribute.KeyValue) StartOption {
	return func(startOptions *startOptions) {
		startOptions.attributes = append(startOptions.attributes, attributes...)
	}
}

type tracer struct {
	otelTracer trace.Tracer
}

func newTracer(otelTracer trace.Tracer) *tracer {
	return &tracer{
		otelTracer: otelTracer,
	}
}

func (t *tracer) Start(ctx context.Context, spanName string, options ...StartOption) (context.Context, trace.Span) {
	startOptions := &startOptions{}
	for _, option := range options {
		option(startOptions)
	}
	var spanStartOptions []trace.SpanStartOption
	if len(startOptions.attributes) > 0 {
		spanStartOptions = append(
			spanStartOptions,
			trace.WithAttributes(startOptions.attributes...),
		)
	}
	ctx, span := t.otelTracer.Start(ctx, spanName, spanStartOptions...)
	return ctx, newWrappedSpan(span, startOptions.errAddr)
}

type wrappedSpan struct {
	trace.Span
	errAddr *error
}

func newWrappedSpan(span trace.Span, errAddr *error) *wrappedSpan {
	return &wrappedSpan{
		Span:    span,
		errAddr: errAddr,
	}
}

func (s *wrappedSpan) End(options ...trace.SpanEndOption) {
	if s.errAddr != nil {
		if retErr := *s.errAddr; retErr != nil {
			s.Span.RecordError(retErr)
			s.Span.SetStatus(codes.Error, retErr.Error())
		} else {
			s.Span.SetStatus(codes.Ok, "")
		}
	}
	s.Span.End(options...)
}

type startOptions struct {
	errAddr    *error
	attributes []attribute.KeyValue
}
