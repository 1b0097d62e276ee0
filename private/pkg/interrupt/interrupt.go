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

package interrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Signals are the signals that cancel a handled context.
//
// SIGTERM is included so that a server under a process manager shuts down gracefully.
var Signals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
}

// Handle returns a copy of the parent context that will be cancelled
// when one of the Signals is received.
//
// The returned context is also cancelled when the parent is.
func Handle(ctx context.Context) context.Context {
	ctx, cancel := signal.NotifyContext(ctx, Signals...)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx
}
