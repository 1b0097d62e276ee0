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

package rangehttp

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytoolshed/crange/private/pkg/transport/http/httpserver"
	"github.com/ytoolshed/crange/private/rangepkg/rangeengine"
	"github.com/ytoolshed/crange/private/rangepkg/rangetesting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestList(t *testing.T) {
	t.Parallel()
	handler := newTestHandler(t)
	response := serve(t, handler, http.MethodGet, PathList+"?"+url.PathEscape("%web,-web2"), "")
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "web1\nweb3\nweb4\n", response.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", response.Header().Get("Content-Type"))
	assert.Empty(t, response.Header().Get(ExceptionHeader))
	assert.NotEmpty(t, response.Header().Get(httpserver.RequestIDHeader))

	response = serve(t, handler, http.MethodGet, PathList+"?%25db:BACKUP", "")
	assert.Equal(t, "db01\n", response.Body.String())

	response = serve(t, handler, http.MethodGet, PathList, "")
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "", response.Body.String())
}

func TestExpand(t *testing.T) {
	t.Parallel()
	handler := newTestHandler(t)
	response := serve(t, handler, http.MethodGet, PathExpand+"?%25all", "")
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "db01-3,db05,web1-4", response.Body.String())

	response = serve(t, handler, http.MethodPost, PathExpand, "web1..3%2Cweb5")
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "web1-3,web5", response.Body.String())

	response = serve(t, handler, http.MethodPost, PathList+"/", "foo1..2")
	assert.Equal(t, "foo1\nfoo2\n", response.Body.String())
}

func TestRangeException(t *testing.T) {
	t.Parallel()
	handler := newTestHandler(t)
	response := serve(t, handler, http.MethodGet, PathList+"?%25web:LB,%25nosuch", "")
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "lb1\n", response.Body.String())
	assert.Equal(t, "NOCLUSTERDEF: nosuch", response.Header().Get(ExceptionHeader))

	response = serve(t, handler, http.MethodGet, PathExpand+"?web1,", "")
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "", response.Body.String())
	assert.Equal(t, "parsing [web1,]: unexpected end of expression at offset 5", response.Header().Get(ExceptionHeader))

	// Every missing cluster adds its name to one long warning.
	response = serve(t, handler, http.MethodPost, PathList, "%missing"+strings.Repeat("x", 3000))
	assert.Len(t, response.Header().Get(ExceptionHeader), MaxExceptionLength)
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "a", truncate("aé", 2))
	assert.Equal(t, "", truncate("日本", 2))
	assert.Equal(t, "日", truncate("日本", 5))
	truncated := truncate(strings.Repeat("é", MaxExceptionLength), MaxExceptionLength)
	assert.Len(t, truncated, MaxExceptionLength-1)
	assert.True(t, utf8.ValidString(truncated))
}

func TestBadRequests(t *testing.T) {
	t.Parallel()
	handler := newTestHandler(t)
	response := serve(t, handler, http.MethodPut, PathList, "web1")
	assert.Equal(t, http.StatusMethodNotAllowed, response.Code)
	response = serve(t, handler, http.MethodDelete, PathExpand, "")
	assert.Equal(t, http.StatusMethodNotAllowed, response.Code)
	response = serve(t, handler, http.MethodGet, PathList+"?web%zz", "")
	assert.Equal(t, http.StatusBadRequest, response.Code)
	response = serve(t, handler, http.MethodPost, PathList, strings.Repeat("a", MaxBodySize+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, response.Code)
	response = serve(t, handler, http.MethodGet, "/range/nothing", "")
	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestVersionAndHealth(t *testing.T) {
	t.Parallel()
	handler := newTestHandler(t)
	response := serve(t, handler, http.MethodGet, PathVersion, "")
	assert.Equal(t, rangeengine.Version+"\n", response.Body.String())
	response = serve(t, handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, response.Code)
}

func TestGzip(t *testing.T) {
	t.Parallel()
	handler := newTestHandler(t)
	request := httptest.NewRequest(http.MethodGet, PathList+"?node1..1000", nil)
	request.Header.Set("Accept-Encoding", "gzip")
	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)
	require.Equal(t, http.StatusOK, response.Code)
	require.Equal(t, "gzip", response.Header().Get("Content-Encoding"))
	reader, err := gzip.NewReader(response.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "node1\nnode2\n"))
	assert.Equal(t, 1000, strings.Count(string(data), "\n"))
}

func TestCORS(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	handler := newHTTPHandler(t, zap.NewNop(), engine, HandlerWithCORSOrigins("https://range.example.com"))
	request := httptest.NewRequest(http.MethodGet, PathList+"?web1", nil)
	request.Header.Set("Origin", "https://range.example.com")
	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)
	assert.Equal(t, "https://range.example.com", response.Header().Get("Access-Control-Allow-Origin"))

	request = httptest.NewRequest(http.MethodGet, PathList+"?web1", nil)
	request.Header.Set("Origin", "https://other.example.com")
	response = httptest.NewRecorder()
	handler.ServeHTTP(response, request)
	assert.Empty(t, response.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogRequests(t *testing.T) {
	t.Parallel()
	core, observedLogs := observer.New(zapcore.InfoLevel)
	handler := newHTTPHandler(t, zap.New(core), newTestEngine(t), HandlerWithLogRequests(true))
	request := httptest.NewRequest(http.MethodGet, PathList+"?web1..2", nil)
	request.Header.Set(httpserver.RequestIDHeader, "request-1")
	handler.ServeHTTP(httptest.NewRecorder(), request)
	entries := observedLogs.FilterMessage("range").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "web1..2", fields["expression"])
	assert.Equal(t, "request-1", fields["request_id"])
}

func serve(t *testing.T, handler http.Handler, method string, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, bodyReader)
	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)
	return response
}

func newTestHandler(t *testing.T) http.Handler {
	return newHTTPHandler(t, zap.NewNop(), newTestEngine(t))
}

func newTestEngine(t *testing.T) rangeengine.Engine {
	engine, err := rangeengine.NewEngine(
		zap.NewNop(),
		rangeengine.EngineWithAltPath(rangetesting.WriteClusters(t, rangetesting.Clusters)),
	)
	require.NoError(t, err)
	return engine
}

func newHTTPHandler(t *testing.T, logger *zap.Logger, engine rangeengine.Engine, options ...HandlerOption) http.Handler {
	handler, err := httpserver.NewRunner(logger, httpserver.RunnerWithHealth()).Handler(NewHandler(logger, engine, options...))
	require.NoError(t, err)
	return handler
}
