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

// Package rangehttp serves range expressions over HTTP.
//
// The protocol is the one of mod_range:
//
//	GET  /range/list?<expression>     names, one per line
//	POST /range/list                  the body is the expression
//	GET  /range/expand?<expression>   the compressed expression
//
// The expression is URL-unescaped. Warnings are returned in the
// RangeException header with status 200.
package rangehttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/ytoolshed/crange/private/pkg/transport/http/httpserver"
	"github.com/ytoolshed/crange/private/rangepkg/rangeengine"
	"go.uber.org/zap"
)

const (
	// PathList returns the names of an expression.
	PathList = "/range/list"
	// PathExpand returns the compressed form of an expression.
	PathExpand = "/range/expand"
	// PathVersion returns the engine version.
	PathVersion = "/range/version"

	// ExceptionHeader carries the warnings of an expansion.
	ExceptionHeader = "RangeException"
	// MaxExceptionLength is the maximum length of the ExceptionHeader value.
	MaxExceptionLength = 2047
	// MaxBodySize is the maximum size of a POST body.
	MaxBodySize = 5 << 20
)

// Handler serves the range endpoints.
type Handler struct {
	logger      *zap.Logger
	engine      rangeengine.Engine
	logRequests bool
	corsOrigins []string
}

// HandlerOption is an option for a new Handler.
type HandlerOption func(*Handler)

// HandlerWithLogRequests logs every expression and its duration at info level.
func HandlerWithLogRequests(logRequests bool) HandlerOption {
	return func(handler *Handler) {
		handler.logRequests = logRequests
	}
}

// HandlerWithCORSOrigins allows cross-origin requests from the origins.
//
// "*" allows all origins.
func HandlerWithCORSOrigins(origins ...string) HandlerOption {
	return func(handler *Handler) {
		handler.corsOrigins = append(handler.corsOrigins, origins...)
	}
}

// NewHandler returns a new Handler.
func NewHandler(logger *zap.Logger, engine rangeengine.Engine, options ...HandlerOption) *Handler {
	handler := &Handler{
		logger: logger.Named("rangehttp"),
		engine: engine,
	}
	for _, option := range options {
		option(handler)
	}
	return handler
}

// Map implements httpserver.Mapper.
func (h *Handler) Map(router chi.Router) error {
	router.Group(func(router chi.Router) {
		if len(h.corsOrigins) > 0 {
			router.Use(
				cors.New(
					cors.Options{
						AllowedOrigins: h.corsOrigins,
						AllowedMethods: []string{http.MethodGet, http.MethodPost},
						ExposedHeaders: []string{ExceptionHeader, httpserver.RequestIDHeader},
					},
				).Handler,
			)
		}
		router.Use(func(next http.Handler) http.Handler {
			return gzhttp.GzipHandler(next)
		})
		router.Get(PathList, h.serveList)
		router.Post(PathList, h.serveList)
		router.Get(PathExpand, h.serveExpand)
		router.Post(PathExpand, h.serveExpand)
		router.Get(PathVersion, h.serveVersion)
	})
	return nil
}

func (h *Handler) serveList(writer http.ResponseWriter, request *http.Request) {
	h.serveRange(writer, request, false)
}

func (h *Handler) serveExpand(writer http.ResponseWriter, request *http.Request) {
	h.serveRange(writer, request, true)
}

func (h *Handler) serveRange(writer http.ResponseWriter, request *http.Request, compress bool) {
	expression, err := readExpression(writer, request)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			http.Error(writer, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := request.Context()
	start := time.Now()
	result, err := h.engine.Query(ctx, expression)
	if err != nil {
		h.logger.Error("query", zap.String("expression", expression), zap.Error(err))
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	if h.logRequests {
		h.logger.Info(
			"range",
			zap.String("expression", expression),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", httpserver.RequestID(ctx)),
		)
	}
	var body string
	if compress {
		body, err = h.engine.Compress(ctx, result.Nodes)
		if err != nil {
			result.HasWarnings = true
			result.Warnings = joinWarnings(result.Warnings, err.Error())
		}
	} else {
		var builder strings.Builder
		for _, node := range result.Nodes {
			builder.WriteString(node)
			builder.WriteByte('\n')
		}
		body = builder.String()
	}
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if result.HasWarnings {
		writer.Header().Set(ExceptionHeader, truncate(result.Warnings, MaxExceptionLength))
	}
	writer.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(writer, body); err != nil {
		h.logger.Debug("write", zap.Error(err))
	}
}

func (h *Handler) serveVersion(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(writer, h.engine.Version()+"\n"); err != nil {
		h.logger.Debug("write", zap.Error(err))
	}
}

// readExpression returns the unescaped raw query of a GET or the body of a POST.
func readExpression(writer http.ResponseWriter, request *http.Request) (string, error) {
	raw := request.URL.RawQuery
	if request.Method == http.MethodPost {
		data, err := io.ReadAll(http.MaxBytesReader(writer, request.Body, MaxBodySize))
		if err != nil {
			return "", err
		}
		raw = string(data)
	}
	expression, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}
	return strings.TrimSpace(expression), nil
}

func joinWarnings(warnings string, message string) string {
	if warnings == "" {
		return message
	}
	return warnings + " | " + message
}

// truncate cuts value to at most length bytes without splitting a UTF-8 sequence.
func truncate(value string, length int) string {
	if len(value) <= length {
		return value
	}
	for length > 0 && !utf8.RuneStart(value[length]) {
		length--
	}
	return value[:length]
}
