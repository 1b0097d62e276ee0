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

// Package rangedns provides the ip function, which resolves names to addresses.
package rangedns

import (
	"context"
	"net"
	"time"

	"github.com/ytoolshed/crange/private/pkg/thread"
	"github.com/ytoolshed/crange/private/rangepkg/rangeeval"
	"github.com/ytoolshed/crange/private/rangepkg/rangeset"
	"go.uber.org/zap"
)

const (
	// ModuleName is the name of the module.
	ModuleName = "ip"
	// DefaultTimeout is the default timeout of one lookup.
	DefaultTimeout = 2 * time.Second
)

// Resolver looks up the addresses of a host.
//
// *net.Resolver implements Resolver.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Module is the DNS function module.
type Module struct {
	logger   *zap.Logger
	resolver Resolver
	timeout  time.Duration
}

// ModuleOption is an option for a new Module.
type ModuleOption func(*Module)

// ModuleWithResolver sets the Resolver.
//
// The default is net.DefaultResolver.
func ModuleWithResolver(resolver Resolver) ModuleOption {
	return func(module *Module) {
		module.resolver = resolver
	}
}

// ModuleWithTimeout sets the timeout of one lookup.
//
// A non-positive timeout is ignored.
func ModuleWithTimeout(timeout time.Duration) ModuleOption {
	return func(module *Module) {
		if timeout > 0 {
			module.timeout = timeout
		}
	}
}

// NewModule returns a new Module.
func NewModule(logger *zap.Logger, options ...ModuleOption) *Module {
	module := &Module{
		logger:   logger.Named("rangedns"),
		resolver: net.DefaultResolver,
		timeout:  DefaultTimeout,
	}
	for _, option := range options {
		option(module)
	}
	return module
}

// Name implements rangeeval.Module.
func (m *Module) Name() string {
	return ModuleName
}

// Functions implements rangeeval.Module.
func (m *Module) Functions() map[string]rangeeval.Function {
	return map[string]rangeeval.Function{
		"ip": m.functionIP,
	}
}

// functionIP resolves every name to one address, preferring IPv4.
//
// Lookups run in parallel. A name that does not resolve is a NO_IP warning.
func (m *Module) functionIP(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	if err := rangeeval.ValidateArgs(args, 1); err != nil {
		return nil, err
	}
	names := args[0].Names()
	addrs := make([]string, len(names))
	jobs := make([]func(context.Context) error, len(names))
	for i, name := range names {
		i, name := i, name
		jobs[i] = func(ctx context.Context) error {
			addr, err := m.lookup(ctx, name)
			if err != nil {
				m.logger.Debug("lookup", zap.String("name", name), zap.Error(err))
				return nil
			}
			addrs[i] = addr
			return nil
		}
	}
	if err := thread.Parallelize(ctx, jobs); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := rangeset.New()
	for i, name := range names {
		if addrs[i] == "" {
			request.WarnType(ctx, rangeeval.WarningNoIP, name)
			continue
		}
		result.Add(addrs[i])
	}
	return result, nil
}

func (m *Module) lookup(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	addrs, err := m.resolver.LookupHost(ctx, name)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr, nil
		}
	}
	if len(addrs) == 0 {
		return "", &net.DNSError{Err: "no addresses", Name: name, IsNotFound: true}
	}
	return addrs[0], nil
}
