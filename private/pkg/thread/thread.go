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

// Package thread runs bounded parallel jobs.
package thread

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var globalParallelism = atomic.NewInt64(int64(runtime.GOMAXPROCS(0)))

// Parallelism returns the current parallelism.
//
// This defaults to the number of CPUs.
func Parallelism() int {
	return int(globalParallelism.Load())
}

// SetParallelism sets the parallelism.
//
// If parallelism < 1, this sets the parallelism to 1.
func SetParallelism(parallelism int) {
	if parallelism < 1 {
		parallelism = 1
	}
	globalParallelism.Store(int64(parallelism))
}

// Parallelize runs the jobs in parallel.
//
// Returns the combined error from the jobs. Jobs that have not started when
// the context is cancelled are not run, and the cancellation is not reported
// as an error.
func Parallelize(ctx context.Context, jobs []func(context.Context) error, options ...ParallelizeOption) error {
	parallelizeOptions := newParallelizeOptions()
	for _, option := range options {
		option(parallelizeOptions)
	}
	switch len(jobs) {
	case 0:
		return nil
	case 1:
		if ctx.Err() != nil {
			return nil
		}
		return jobs[0](ctx)
	}
	parallelism := parallelizeOptions.parallelism
	if parallelism < 1 {
		parallelism = Parallelism()
	}
	var cancel context.CancelFunc
	if parallelizeOptions.cancelOnFailure {
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
	}
	var eg errgroup.Group
	eg.SetLimit(parallelism)
	var errs []error
	var lock sync.Mutex
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		job := job
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := job(ctx); err != nil {
				lock.Lock()
				errs = append(errs, err)
				lock.Unlock()
				if cancel != nil {
					cancel()
				}
			}
			return nil
		})
	}
	_ = eg.Wait()
	return multierr.Combine(errs...)
}

// ParallelizeOption is an option to Parallelize.
type ParallelizeOption func(*parallelizeOptions)

// ParallelizeWithCancelOnFailure returns a new ParallelizeOption that will attempt
// to cancel all other jobs via context cancellation if any job fails.
func ParallelizeWithCancelOnFailure() ParallelizeOption {
	return func(parallelizeOptions *parallelizeOptions) {
		parallelizeOptions.cancelOnFailure = true
	}
}

// ParallelizeWithParallelism overrides the global parallelism for one call.
func ParallelizeWithParallelism(parallelism int) ParallelizeOption {
	return func(parallelizeOptions *parallelizeOptions) {
		parallelizeOptions.parallelism = parallelism
	}
}

type parallelizeOptions struct {
	cancelOnFailure bool
	parallelism     int
}

func newParallelizeOptions() *parallelizeOptions {
	return &parallelizeOptions{}
}
