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

package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type requestIDContextKey struct{}

type httpRequestLog struct {
	requestMethod string
	requestURL    string
	status        int
	responseSize  int
	userAgent     string
	remoteIP      string
	latency       time.Duration
	protocol      string
}

func (h *httpRequestLog) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("requestMethod", h.requestMethod)
	enc.AddString("requestUrl", h.requestURL)
	enc.AddInt("status", h.status)
	enc.AddString("responseSize", strconv.Itoa(h.responseSize))
	enc.AddString("userAgent", h.userAgent)
	enc.AddString("remoteIP", h.remoteIP)
	enc.AddDuration("latency", h.latency)
	enc.AddString("protocol", h.protocol)
	return nil
}

// newRequestIDMiddleware keeps an incoming X-Request-Id or generates a v4 UUID.
func newRequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			requestID := request.Header.Get(RequestIDHeader)
			if requestID == "" {
				id, err := uuid.NewV4()
				if err == nil {
					requestID = id.String()
				}
			}
			writer.Header().Set(RequestIDHeader, requestID)
			ctx := context.WithValue(request.Context(), requestIDContextKey{}, requestID)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

func newZapMiddleware(logger *zap.Logger, silentEndpoints map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			logEntry := newLogEntry(logger, request)
			wrapResponseWriter := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)
			if _, ok := silentEndpoints[request.URL.Path]; !ok {
				defer logRequest(logEntry, wrapResponseWriter, time.Now())
			}
			next.ServeHTTP(wrapResponseWriter, middleware.WithLogEntry(request, logEntry))
		})
	}
}

func logRequest(
	logEntry middleware.LogEntry,
	wrapResponseWriter middleware.WrapResponseWriter,
	start time.Time,
) {
	logEntry.Write(
		wrapResponseWriter.Status(),
		wrapResponseWriter.BytesWritten(),
		nil,
		time.Since(start),
		nil,
	)
}

type logEntry struct {
	logger  *zap.Logger
	request *http.Request
}

func newLogEntry(logger *zap.Logger, request *http.Request) *logEntry {
	return &logEntry{
		logger:  logger,
		request: request,
	}
}

func (l *logEntry) Write(status int, size int, _ http.Header, duration time.Duration, _ interface{}) {
	l.logger.Info(
		"request",
		zap.String("request_id", RequestID(l.request.Context())),
		zap.String("path", l.request.RequestURI),
		zap.Object(
			"httpRequest",
			&httpRequestLog{
				requestMethod: l.request.Method,
				requestURL:    l.request.Host + l.request.URL.String(),
				status:        status,
				responseSize:  size,
				userAgent:     l.request.UserAgent(),
				remoteIP:      l.request.RemoteAddr,
				latency:       duration,
				protocol:      l.request.Proto,
			},
		),
	)
}

func (l *logEntry) Panic(value interface{}, stack []byte) {
	l.logger.Error(
		"request_panic",
		zap.String("request_id", RequestID(l.request.Context())),
		zap.String("method", l.request.Method),
		zap.String("path", l.request.RequestURI),
		zap.Any("value", value),
		zap.String("stack", string(stack)),
	)
}
