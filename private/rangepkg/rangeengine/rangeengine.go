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

// Package rangeengine is the entry point for expanding and compressing range
// expressions.
//
// An Engine holds all state of a range library instance. Every call returns
// its own error, and an Engine is safe for concurrent use.
package rangeengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytoolshed/crange/private/pkg/tracing"
	"github.com/ytoolshed/crange/private/rangepkg/rangeconfig"
	"github.com/ytoolshed/crange/private/rangepkg/rangedns"
	"github.com/ytoolshed/crange/private/rangepkg/rangeeval"
	"github.com/ytoolshed/crange/private/rangepkg/rangeyaml"
	"go.uber.org/zap"
)

// Version is the engine version.
const Version = "1.1.0"

// Warning is a soft warning of an expansion.
type Warning = rangeeval.Warning

// Engine expands and compresses range expressions.
type Engine interface {
	// Expand returns the names of the expression in evaluation order.
	//
	// Quoted names are wrapped in double quotes.
	Expand(ctx context.Context, expression string) ([]string, error)
	// ExpandSorted returns the names of the expression in node order.
	ExpandSorted(ctx context.Context, expression string) ([]string, error)
	// Compress returns the canonical expression for the names.
	Compress(ctx context.Context, names []string, options ...CompressOption) (string, error)
	// Parse validates the expression by expanding and compressing it.
	Parse(ctx context.Context, expression string) (string, error)
	// Query expands the expression and returns the names with the warnings.
	//
	// Parse and evaluation failures are reported as warnings of an empty
	// Result. Only context and system errors are returned.
	Query(ctx context.Context, expression string) (*Result, error)
	// SetAltPath sets the directory of cluster files and clears all caches.
	SetAltPath(altPath string) error
	// ClearCaches drops all cached expansions and cluster files.
	ClearCaches()
	// WantCaching turns caching on or off.
	WantCaching(want bool)
	// WantWarnings turns warnings on or off.
	WantWarnings(want bool)
	// Version returns Version.
	Version() string
	// Store returns the cluster store used by the yamlfile functions.
	Store() *rangeyaml.Store
}

// Result is the result of Query.
type Result struct {
	Nodes       []string
	Warnings    string
	HasWarnings bool
}

// Error is an error reported by the engine for a failed operation.
type Error struct {
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return e.Message
}

// IsError returns true if err is or wraps an *Error.
func IsError(err error) bool {
	var engineError *Error
	return errors.As(err, &engineError)
}

func newErrorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// EngineOption is an option for a new Engine.
type EngineOption func(*engineOptions)

// EngineWithAltPath sets the directory of cluster files.
//
// The default is the yaml_path variable of the config, or /etc/range.
func EngineWithAltPath(altPath string) EngineOption {
	return func(engineOptions *engineOptions) {
		engineOptions.altPath = altPath
	}
}

// EngineWithConfig sets the library config.
//
// The default is rangeconfig.Default.
func EngineWithConfig(config *rangeconfig.Config) EngineOption {
	return func(engineOptions *engineOptions) {
		engineOptions.config = config
	}
}

// EngineWithFunctions adds function modules.
//
// Their functions are registered without a prefix after the modules of the config.
func EngineWithFunctions(modules ...rangeeval.Module) EngineOption {
	return func(engineOptions *engineOptions) {
		engineOptions.modules = append(engineOptions.modules, modules...)
	}
}

// EngineWithWarningHandler calls the handler with every warning of Expand,
// ExpandSorted and Parse while warnings are wanted.
func EngineWithWarningHandler(warningHandler func(Warning)) EngineOption {
	return func(engineOptions *engineOptions) {
		engineOptions.warningHandler = warningHandler
	}
}

// EngineWithTracer sets the tracer.
//
// The default is tracing.NopTracer.
func EngineWithTracer(tracer tracing.Tracer) EngineOption {
	return func(engineOptions *engineOptions) {
		engineOptions.tracer = tracer
	}
}

// EngineWithCaching sets whether caching starts on. The default is true.
func EngineWithCaching(caching bool) EngineOption {
	return func(engineOptions *engineOptions) {
		engineOptions.caching = caching
	}
}

// EngineWithWarnings sets whether warnings start on. The default is true.
func EngineWithWarnings(warnings bool) EngineOption {
	return func(engineOptions *engineOptions) {
		engineOptions.warnings = warnings
	}
}

// EngineWithDNSResolver sets the resolver of the ip function.
func EngineWithDNSResolver(resolver rangedns.Resolver) EngineOption {
	return func(engineOptions *engineOptions) {
		engineOptions.resolver = resolver
	}
}

// NewEngine returns a new Engine.
func NewEngine(logger *zap.Logger, options ...EngineOption) (Engine, error) {
	engineOptions := newEngineOptions()
	for _, option := range options {
		option(engineOptions)
	}
	return newEngine(logger, engineOptions)
}

// CompressOption is an option for Compress.
type CompressOption func(*compressOptions)

// CompressWithSeparator sets the separator between compressed groups.
//
// The default is ",".
func CompressWithSeparator(separator string) CompressOption {
	return func(compressOptions *compressOptions) {
		compressOptions.separator = separator
	}
}

type engineOptions struct {
	altPath        string
	config         *rangeconfig.Config
	modules        []rangeeval.Module
	warningHandler func(Warning)
	tracer         tracing.Tracer
	caching        bool
	warnings       bool
	resolver       rangedns.Resolver
}

func newEngineOptions() *engineOptions {
	return &engineOptions{
		tracer:   tracing.NopTracer,
		caching:  true,
		warnings: true,
	}
}

type compressOptions struct {
	separator string
}
