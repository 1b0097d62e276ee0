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

// Package rangeclient queries a remote range service.
package rangeclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ytoolshed/crange/private/pkg/slicesext"
	"github.com/ytoolshed/crange/private/pkg/transport/http/httpclient"
	"github.com/ytoolshed/crange/private/rangepkg/rangeengine"
	"github.com/ytoolshed/crange/private/rangepkg/rangehttp"
	"go.uber.org/multierr"
)

// DefaultMaxChars is the default length above which queries are split.
//
// GET requests are limited to around 8k by common web servers.
const DefaultMaxChars = 7500

// Error is a RangeException returned by the service.
type Error struct {
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return e.Message
}

// IsError returns true if err is or wraps an *Error.
func IsError(err error) bool {
	var rangeError *Error
	return errors.As(err, &rangeError)
}

// Client is a client for a range service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxChars   int
}

// ClientOption is an option for a new Client.
type ClientOption func(*Client)

// ClientWithHTTPClient sets the HTTP client.
//
// The default is httpclient.NewClient.
func ClientWithHTTPClient(httpClient *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

// ClientWithUserAgent sets the User-Agent header.
//
// The default is "program/version (user; host)".
func ClientWithUserAgent(userAgent string) ClientOption {
	return func(client *Client) {
		client.userAgent = userAgent
	}
}

// ClientWithMaxChars sets the length above which queries are split.
//
// The default is DefaultMaxChars.
func ClientWithMaxChars(maxChars int) ClientOption {
	return func(client *Client) {
		if maxChars > 0 {
			client.maxChars = maxChars
		}
	}
}

// NewClient returns a new Client for the host.
//
// The host is "host:port" or a URL with a scheme. Without a scheme, http is used.
func NewClient(host string, options ...ClientOption) *Client {
	baseURL := strings.TrimSuffix(host, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	client := &Client{
		baseURL:  baseURL,
		maxChars: DefaultMaxChars,
	}
	for _, option := range options {
		option(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpclient.NewClient()
	}
	if client.userAgent == "" {
		client.userAgent = defaultUserAgent()
	}
	return client
}

// Expand returns the sorted names of the expression.
//
// A long expression is split on "," and the results of the parts are merged.
func (c *Client) Expand(ctx context.Context, expression string) ([]string, error) {
	var names []string
	for _, part := range c.split(expression) {
		body, err := c.get(ctx, rangehttp.PathList, part)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(body, "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				names = append(names, line)
			}
		}
	}
	names = slicesext.Deduplicate(names)
	slices.Sort(names)
	return names, nil
}

// ExpandList returns the sorted names of the union of the expressions.
func (c *Client) ExpandList(ctx context.Context, expressions []string) ([]string, error) {
	return c.Expand(ctx, strings.Join(expressions, ","))
}

// Collapse returns the compressed form of the expression.
//
// A long expression is split on ",", and the compressed parts are joined
// and compressed again until the result stops changing.
func (c *Client) Collapse(ctx context.Context, expression string) (string, error) {
	if len(expression) <= c.maxChars {
		return c.get(ctx, rangehttp.PathExpand, expression)
	}
	previous := ""
	current := expression
	for previous != current {
		previous = current
		parts := c.split(current)
		collapsed := make([]string, 0, len(parts))
		for _, part := range parts {
			body, err := c.get(ctx, rangehttp.PathExpand, part)
			if err != nil {
				return "", err
			}
			collapsed = append(collapsed, body)
		}
		current = strings.Trim(strings.Join(collapsed, ","), ",")
	}
	return current, nil
}

// split returns the expression as is, or its sorted ","-separated items in
// chunks of at most maxChars.
func (c *Client) split(expression string) []string {
	if len(expression) <= c.maxChars {
		return []string{expression}
	}
	items := strings.Split(expression, ",")
	slices.Sort(items)
	chunks := slicesext.ToChunks(items, c.maxChars, 1, func(item string) int { return len(item) })
	return slicesext.Map(chunks, func(chunk []string) string { return strings.Join(chunk, ",") })
}

func (c *Client) get(ctx context.Context, path string, expression string) (_ string, retErr error) {
	requestURL := c.baseURL + path + "?" + url.PathEscape(expression)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", err
	}
	request.Header.Set("User-Agent", c.userAgent)
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer func() {
		retErr = multierr.Append(retErr, response.Body.Close())
	}()
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("got %d response code from %s", response.StatusCode, c.baseURL+path)
	}
	if exception := response.Header.Get(rangehttp.ExceptionHeader); exception != "" {
		return "", &Error{Message: exception}
	}
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func defaultUserAgent() string {
	program := "crange"
	if len(os.Args) > 0 && os.Args[0] != "" {
		program = filepath.Base(os.Args[0])
	}
	username := "unknown"
	if currentUser, err := user.Current(); err == nil {
		username = currentUser.Username
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s/%s (%s; %s)", program, rangeengine.Version, username, hostname)
}
