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

package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNopTracer(t *testing.T) {
	t.Parallel()
	run := func(ctx context.Context, fail bool) (retErr error) {
		ctx, span := NopTracer.Start(
			ctx,
			"expand",
			WithErr(&retErr),
			WithAttributes(attribute.String("expression", "foo1..3")),
		)
		defer span.End()
		assert.False(t, trace.SpanFromContext(ctx).IsRecording())
		if fail {
			return errors.New("parse error")
		}
		return nil
	}
	assert.NoError(t, run(context.Background(), false))
	assert.Error(t, run(context.Background(), true))
}

func TestTracerRecordsErrors(t *testing.T) {
	t.Parallel()
	recorder := tracetest.NewSpanRecorder()
	tracer := NewTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test"))
	run := func(fail bool) (retErr error) {
		_, span := tracer.Start(
			context.Background(),
			"expand",
			WithErr(&retErr),
			WithAttributes(attribute.String("expression", "foo1..3")),
		)
		defer span.End()
		if fail {
			return errors.New("parse error")
		}
		return nil
	}
	require.NoError(t, run(false))
	require.Error(t, run(true))
	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "expand", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, []attribute.KeyValue{attribute.String("expression", "foo1..3")}, spans[0].Attributes())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "parse error", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}
