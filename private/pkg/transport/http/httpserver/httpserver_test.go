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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytoolshed/crange/private/pkg/transport/http/httpclient"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandler(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	runner := NewRunner(
		zap.New(core),
		RunnerWithHealth(),
		RunnerWithMaxBodySize(4),
		RunnerWithSilentEndpoints("/health"),
	)
	handler, err := runner.Handler(
		MapperFunc(func(router chi.Router) error {
			router.Post("/echo", func(writer http.ResponseWriter, request *http.Request) {
				data, err := io.ReadAll(request.Body)
				if err != nil {
					http.Error(writer, err.Error(), http.StatusRequestEntityTooLarge)
					return
				}
				_, _ = writer.Write(data)
			})
			return nil
		}),
	)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get(RequestIDHeader))
	assert.Equal(t, 0, logs.FilterMessage("request").Len())

	recorder = httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("web1"))
	request.Header.Set(RequestIDHeader, "abc")
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, "web1", recorder.Body.String())
	assert.Equal(t, "abc", recorder.Header().Get(RequestIDHeader))
	requestLogs := logs.FilterMessage("request").All()
	require.Len(t, requestLogs, 1)
	assert.Equal(t, "abc", requestLogs[0].ContextMap()["request_id"])

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("web1,web2")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
}

func TestRun(t *testing.T) {
	t.Parallel()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewRunner(zap.NewNop(), RunnerWithHealth(), RunnerWithShutdownTimeout(time.Second)).Run(ctx, listener)
	}()
	var response *http.Response
	require.Eventually(
		t,
		func() bool {
			response, err = http.Get("http://" + listener.Addr().String() + "/health")
			return err == nil
		},
		5*time.Second,
		10*time.Millisecond,
	)
	require.NoError(t, response.Body.Close())
	assert.Equal(t, http.StatusOK, response.StatusCode)
	cancel()
	require.NoError(t, <-done)
}

func TestRunTLS(t *testing.T) {
	t.Parallel()
	certServer := httptest.NewUnstartedServer(nil)
	certServer.StartTLS()
	t.Cleanup(certServer.Close)
	rootCAs := x509.NewCertPool()
	rootCAs.AddCert(certServer.Certificate())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewRunner(
			zap.NewNop(),
			RunnerWithHealth(),
			RunnerWithTLSConfig(&tls.Config{Certificates: certServer.TLS.Certificates}),
		).Run(ctx, listener)
	}()
	client := httpclient.NewClient(httpclient.WithTLSConfig(&tls.Config{RootCAs: rootCAs}))
	var response *http.Response
	require.Eventually(
		t,
		func() bool {
			response, err = client.Get("https://" + listener.Addr().String() + "/health")
			return err == nil
		},
		5*time.Second,
		10*time.Millisecond,
	)
	require.NoError(t, response.Body.Close())
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.NotNil(t, response.TLS)
	cancel()
	require.NoError(t, <-done)
}

func TestReadHeaderTimeout(t *testing.T) {
	t.Parallel()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewRunner(zap.NewNop(), RunnerWithReadHeaderTimeout(50*time.Millisecond)).Run(ctx, listener)
	}()
	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET /health HTTP/1.1\r\n"))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	// The server drops the connection once the header timeout passes.
	_, err = conn.Read(make([]byte, 64))
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout())
	}
	cancel()
	require.NoError(t, <-done)
}
