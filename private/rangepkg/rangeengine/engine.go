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

package rangeengine

import (
	"context"
	"errors"
	"os"
	"slices"
	"strconv"

	"github.com/ytoolshed/crange/private/pkg/cache"
	"github.com/ytoolshed/crange/private/pkg/syserror"
	"github.com/ytoolshed/crange/private/pkg/tracing"
	"github.com/ytoolshed/crange/private/rangepkg/rangecompress"
	"github.com/ytoolshed/crange/private/rangepkg/rangeconfig"
	"github.com/ytoolshed/crange/private/rangepkg/rangedns"
	"github.com/ytoolshed/crange/private/rangepkg/rangeeval"
	"github.com/ytoolshed/crange/private/rangepkg/rangeparse"
	"github.com/ytoolshed/crange/private/rangepkg/rangeyaml"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// maxCacheEntries is the number of cached expansions at which the cache is emptied.
const maxCacheEntries = 1 << 14

type engine struct {
	logger         *zap.Logger
	tracer         tracing.Tracer
	store          *rangeyaml.Store
	evaluator      *rangeeval.Evaluator
	warningHandler func(Warning)
	caching        *atomic.Bool
	warnings       *atomic.Bool
	cache          cache.Cache[cacheKey, *expansion]

	// cacheGeneration is the store generation of the newest cached expansion.
	cacheGeneration atomic.Uint64
	flight          singleflight.Group
}

func newEngine(logger *zap.Logger, options *engineOptions) (*engine, error) {
	config := options.config
	if config == nil {
		config = rangeconfig.Default()
	}
	altPath := options.altPath
	if altPath == "" {
		altPath = config.YAMLPath()
	}
	store := rangeyaml.NewStore(logger, altPath, rangeyaml.StoreWithCaching(options.caching))
	registry := rangeeval.NewRegistry()
	registered := make(map[rangeconfig.ModuleConfig]struct{})
	for _, moduleConfig := range config.Modules {
		// nodescf and yamlfile are the same module.
		if _, ok := registered[moduleConfig]; ok {
			continue
		}
		registered[moduleConfig] = struct{}{}
		module, err := newModule(logger, config, moduleConfig.Name, store, options.resolver)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(module, moduleConfig.Prefix); err != nil {
			return nil, err
		}
	}
	for _, module := range options.modules {
		if err := registry.Register(module, ""); err != nil {
			return nil, err
		}
	}
	engine := &engine{
		logger:         logger.Named("rangeengine"),
		tracer:         options.tracer,
		store:          store,
		evaluator:      rangeeval.NewEvaluator(logger, registry),
		warningHandler: options.warningHandler,
		caching:        atomic.NewBool(options.caching),
		warnings:       atomic.NewBool(options.warnings),
	}
	engine.logger.Debug(
		"startup",
		zap.String("altpath", altPath),
		zap.Strings("functions", registry.FunctionNames()),
	)
	return engine, nil
}

func (e *engine) Expand(ctx context.Context, expression string) (_ []string, retErr error) {
	ctx, span := e.tracer.Start(ctx, "expand", tracing.WithErr(&retErr), tracing.WithAttributes(attribute.String("expression", expression)))
	defer span.End()
	expansion, err := e.expand(ctx, expression)
	if err != nil {
		return nil, err
	}
	e.reportWarnings(expression, expansion)
	return slices.Clone(expansion.names), nil
}

func (e *engine) ExpandSorted(ctx context.Context, expression string) (_ []string, retErr error) {
	ctx, span := e.tracer.Start(ctx, "expand_sorted", tracing.WithErr(&retErr), tracing.WithAttributes(attribute.String("expression", expression)))
	defer span.End()
	expansion, err := e.expand(ctx, expression)
	if err != nil {
		return nil, err
	}
	e.reportWarnings(expression, expansion)
	return rangecompress.Sort(expansion.names), nil
}

func (e *engine) Compress(ctx context.Context, names []string, options ...CompressOption) (_ string, retErr error) {
	_, span := e.tracer.Start(ctx, "compress", tracing.WithErr(&retErr), tracing.WithAttributes(attribute.Int("names", len(names))))
	defer span.End()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	compressOptions := &compressOptions{
		separator: rangecompress.DefaultSeparator,
	}
	for _, option := range options {
		option(compressOptions)
	}
	compressed, err := rangecompress.Compress(names, compressOptions.separator)
	if err != nil {
		return "", &Error{Message: err.Error()}
	}
	e.logger.Debug("compress", zap.Int("names", len(names)), zap.Int("length", len(compressed)))
	return compressed, nil
}

func (e *engine) Parse(ctx context.Context, expression string) (_ string, retErr error) {
	ctx, span := e.tracer.Start(ctx, "parse", tracing.WithErr(&retErr), tracing.WithAttributes(attribute.String("expression", expression)))
	defer span.End()
	expansion, err := e.expand(ctx, expression)
	if err != nil {
		return "", err
	}
	e.reportWarnings(expression, expansion)
	return e.Compress(ctx, expansion.names)
}

func (e *engine) Query(ctx context.Context, expression string) (_ *Result, retErr error) {
	ctx, span := e.tracer.Start(ctx, "query", tracing.WithErr(&retErr), tracing.WithAttributes(attribute.String("expression", expression)))
	defer span.End()
	expansion, err := e.expand(ctx, expression)
	if err != nil {
		if !IsError(err) {
			return nil, err
		}
		return &Result{
			Warnings:    err.Error(),
			HasWarnings: true,
		}, nil
	}
	return &Result{
		Nodes:       slices.Clone(expansion.names),
		Warnings:    expansion.warningsString,
		HasWarnings: expansion.warningsString != "",
	}, nil
}

func (e *engine) SetAltPath(altPath string) error {
	fileInfo, err := os.Stat(altPath)
	if err != nil {
		return newErrorf("altpath: %v", err)
	}
	if !fileInfo.IsDir() {
		return newErrorf("altpath: %s is not a directory", altPath)
	}
	e.store.SetDir(altPath)
	e.cache.Clear()
	e.logger.Debug("set_altpath", zap.String("altpath", altPath))
	return nil
}

func (e *engine) ClearCaches() {
	e.cache.Clear()
	e.store.ClearCache()
	e.logger.Debug("clear_caches")
}

func (e *engine) WantCaching(want bool) {
	e.caching.Store(want)
	e.store.SetCaching(want)
	e.logger.Debug("want_caching", zap.Bool("want", want))
}

func (e *engine) WantWarnings(want bool) {
	e.warnings.Store(want)
	e.logger.Debug("want_warnings", zap.Bool("want", want))
}

func (e *engine) Version() string {
	return Version
}

func (e *engine) Store() *rangeyaml.Store {
	return e.store
}

func (e *engine) expand(ctx context.Context, expression string) (*expansion, error) {
	key := cacheKey{
		expression: expression,
		warnings:   e.warnings.Load(),
	}
	if !e.caching.Load() {
		return e.evaluate(ctx, key)
	}
	if cached, ok := e.cache.Get(key); ok {
		if cached.generation == e.store.Generation() {
			return cached, nil
		}
		e.cache.Delete(key)
	}
	for {
		resultC := e.flight.DoChan(key.String(), func() (any, error) {
			expansion, err := e.evaluate(ctx, key)
			if err != nil {
				return nil, err
			}
			if e.caching.Load() {
				e.put(key, expansion)
			}
			return expansion, nil
		})
		var result singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result = <-resultC:
		}
		if result.Err != nil {
			// The evaluation was shared with a caller whose context ended first.
			if result.Shared && isContextError(result.Err) && ctx.Err() == nil {
				e.logger.Debug("retry", zap.String("expression", expression), zap.Error(result.Err))
				continue
			}
			return nil, result.Err
		}
		if result.Shared {
			e.logger.Debug("shared", zap.String("expression", expression))
		}
		return result.Val.(*expansion), nil
	}
}

// put caches the expansion.
//
// Entries of older store generations are dropped, and the cache is
// emptied once it holds maxCacheEntries entries.
func (e *engine) put(key cacheKey, expansion *expansion) {
	if e.cacheGeneration.Swap(expansion.generation) != expansion.generation || e.cache.Len() >= maxCacheEntries {
		e.cache.Clear()
	}
	e.cache.Put(key, expansion)
}

func (e *engine) evaluate(ctx context.Context, key cacheKey) (*expansion, error) {
	// Read before evaluating so that changes seen during evaluation make the result stale.
	generation := e.store.Generation()
	node, err := rangeparse.Parse(key.expression)
	if err != nil {
		return nil, newErrorf("parsing [%s]: %v", key.expression, err)
	}
	request := e.evaluator.NewRequest(rangeeval.RequestWithWarnings(key.warnings))
	set, err := request.Evaluate(ctx, node)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if syserror.Is(err) {
			return nil, err
		}
		return nil, &Error{Message: err.Error()}
	}
	warnings := request.Warnings()
	e.logger.Debug(
		"expand",
		zap.String("expression", key.expression),
		zap.Int("names", set.Len()),
		zap.Bool("quoted", set.Quoted),
	)
	return &expansion{
		generation:     generation,
		names:          set.Strings(),
		warnings:       warnings.List(),
		warningsString: warnings.String(),
	}, nil
}

func (e *engine) reportWarnings(expression string, expansion *expansion) {
	if len(expansion.warnings) == 0 || !e.warnings.Load() {
		return
	}
	e.logger.Debug("warnings", zap.String("expression", expression), zap.String("warnings", expansion.warningsString))
	if e.warningHandler == nil {
		return
	}
	for _, warning := range expansion.warnings {
		e.warningHandler(warning)
	}
}

func newModule(
	logger *zap.Logger,
	config *rangeconfig.Config,
	name string,
	store *rangeyaml.Store,
	resolver rangedns.Resolver,
) (rangeeval.Module, error) {
	switch name {
	case rangeconfig.ModuleYAMLFile:
		return store, nil
	case rangeconfig.ModuleIP:
		timeout, err := config.DNSTimeout()
		if err != nil {
			return nil, err
		}
		moduleOptions := []rangedns.ModuleOption{
			rangedns.ModuleWithTimeout(timeout),
		}
		if resolver != nil {
			moduleOptions = append(moduleOptions, rangedns.ModuleWithResolver(resolver))
		}
		return rangedns.NewModule(logger, moduleOptions...), nil
	default:
		return nil, syserror.Newf("unknown module %q", name)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type cacheKey struct {
	expression string
	warnings   bool
}

func (k cacheKey) String() string {
	return strconv.FormatBool(k.warnings) + ":" + k.expression
}

// expansion is a cached evaluation result.
type expansion struct {
	generation     uint64
	names          []string
	warnings       []Warning
	warningsString string
}
