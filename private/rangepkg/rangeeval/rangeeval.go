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

// Package rangeeval evaluates range expression syntax trees.
package rangeeval

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytoolshed/crange/private/pkg/slicesext"
	"github.com/ytoolshed/crange/private/rangepkg/rangeset"
	"go.uber.org/zap"
)

const (
	// MaxDepth is the maximum nesting of expansions, such as cluster
	// sections that refer to other clusters.
	MaxDepth = 64

	// WarningNoClusterDef is the warning type for a cluster without a definition file.
	WarningNoClusterDef = "NOCLUSTERDEF"
	// WarningNoCluster is the warning type for a missing cluster section.
	WarningNoCluster = "NOCLUSTER"
	// WarningNoClusterForNode is the warning type for a node that is in no cluster.
	WarningNoClusterForNode = "NO_CLUSTER"
	// WarningNoFunction is the warning type for an unknown function.
	WarningNoFunction = "NO_FUNCTION"
	// WarningNoAdmin is the warning type for a node without an admin.
	WarningNoAdmin = "NO_ADMIN"
	// WarningNoIP is the warning type for a name that does not resolve.
	WarningNoIP = "NO_IP"
)

// ErrMaxDepth is returned when expansions nest deeper than MaxDepth.
var ErrMaxDepth = fmt.Errorf("maximum expansion depth of %d exceeded", MaxDepth)

// Function is a range function such as cluster or has.
//
// Each argument of the call is evaluated to a set before the call.
type Function func(ctx context.Context, request *Request, args []*rangeset.Set) (*rangeset.Set, error)

// Module is a named group of functions.
type Module interface {
	// Name is the name of the module, such as yamlfile.
	Name() string
	// Functions returns the functions by name.
	Functions() map[string]Function
}

// Registry maps function names to functions.
type Registry struct {
	functions map[string]Function
}

// NewRegistry returns a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]Function),
	}
}

// Register registers all functions of the module, with their names prefixed by prefix.
//
// Returns an error if a function name is already registered.
func (r *Registry) Register(module Module, prefix string) error {
	for name, function := range module.Functions() {
		fullName := prefix + name
		if _, ok := r.functions[fullName]; ok {
			return fmt.Errorf("module %s: function %q already registered", module.Name(), fullName)
		}
		r.functions[fullName] = function
	}
	return nil
}

// Function returns the function for the name.
func (r *Registry) Function(name string) (Function, bool) {
	function, ok := r.functions[name]
	return function, ok
}

// FunctionNames returns the sorted names of all registered functions.
func (r *Registry) FunctionNames() []string {
	return slicesext.MapKeysToSortedSlice(r.functions)
}

// Evaluator evaluates syntax trees using the functions of a Registry.
//
// An Evaluator is safe for concurrent use.
type Evaluator struct {
	logger   *zap.Logger
	registry *Registry
}

// NewEvaluator returns a new Evaluator.
func NewEvaluator(logger *zap.Logger, registry *Registry) *Evaluator {
	return &Evaluator{
		logger:   logger.Named("rangeeval"),
		registry: registry,
	}
}

// NewRequest returns a new Request.
func (e *Evaluator) NewRequest(options ...RequestOption) *Request {
	request := &Request{
		evaluator: e,
		warnings:  newWarnings(),
	}
	for _, option := range options {
		option(request)
	}
	return request
}

// RequestOption is an option for a new Request.
type RequestOption func(*Request)

// RequestWithWarnings sets whether the Request collects warnings.
//
// The default is to collect warnings.
func RequestWithWarnings(enabled bool) RequestOption {
	return func(request *Request) {
		request.warnings.disabled = !enabled
	}
}

// ValidateArgs returns an error if there are not exactly n arguments.
//
// A call with no arguments, such as allclusters(), is accepted for n == 0.
func ValidateArgs(args []*rangeset.Set, n int) error {
	if len(args) == n {
		return nil
	}
	if n == 0 && len(args) == 1 && args[0].Len() == 0 {
		return nil
	}
	return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
}

// IsMaxDepth returns true if err is or wraps ErrMaxDepth.
func IsMaxDepth(err error) bool {
	return errors.Is(err, ErrMaxDepth)
}
