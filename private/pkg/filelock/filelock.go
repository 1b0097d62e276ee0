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

// Package filelock provides advisory file locks backed by flock.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultLockTimeout is the default lock timeout.
	DefaultLockTimeout = 3 * time.Second
	// DefaultLockRetryDelay is the default lock retry delay.
	DefaultLockRetryDelay = 200 * time.Millisecond
)

// Unlocker unlocks a file lock.
type Unlocker interface {
	Unlock() error
}

// Locker locks files relative to a root directory.
type Locker interface {
	// Lock exclusively locks the file at the path.
	//
	// The path must be relative to the root directory and must not jump context.
	// The lock file is created if it does not exist.
	Lock(ctx context.Context, path string, options ...LockOption) (Unlocker, error)
	// RLock takes a shared lock on the file at the path.
	//
	// The path must be relative to the root directory and must not jump context.
	// The lock file is created if it does not exist.
	RLock(ctx context.Context, path string, options ...LockOption) (Unlocker, error)
}

// NewLocker returns a new Locker for the root directory.
//
// The root directory must exist.
func NewLocker(rootDirPath string, options ...LockerOption) (Locker, error) {
	return newLocker(rootDirPath, options...)
}

// LockerOption is an option for a new Locker.
type LockerOption func(*lockerOptions)

// LockerWithLockTimeout sets the default lock timeout for the Locker.
//
// The default is DefaultLockTimeout.
func LockerWithLockTimeout(lockTimeout time.Duration) LockerOption {
	return func(lockerOptions *lockerOptions) {
		lockerOptions.lockTimeout = lockTimeout
	}
}

// LockOption is an option for a single lock.
type LockOption func(*lockOptions)

// LockWithTimeout sets the timeout for the lock.
func LockWithTimeout(lockTimeout time.Duration) LockOption {
	return func(lockOptions *lockOptions) {
		lockOptions.lockTimeout = lockTimeout
	}
}

// LockWithRetryDelay sets the retry delay for the lock.
func LockWithRetryDelay(lockRetryDelay time.Duration) LockOption {
	return func(lockOptions *lockOptions) {
		lockOptions.lockRetryDelay = lockRetryDelay
	}
}

type lockOptions struct {
	lockTimeout    time.Duration
	lockRetryDelay time.Duration
}

func lock(ctx context.Context, filePath string, options ...LockOption) (Unlocker, error) {
	return flockWith(ctx, filePath, false, options...)
}

func rlock(ctx context.Context, filePath string, options ...LockOption) (Unlocker, error) {
	return flockWith(ctx, filePath, true, options...)
}

func flockWith(ctx context.Context, filePath string, shared bool, options ...LockOption) (Unlocker, error) {
	lockOptions := &lockOptions{
		lockTimeout:    DefaultLockTimeout,
		lockRetryDelay: DefaultLockRetryDelay,
	}
	for _, option := range options {
		option(lockOptions)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}
	var cancel context.CancelFunc
	if lockOptions.lockTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, lockOptions.lockTimeout)
		defer cancel()
	}
	fileLock := flock.New(filePath)
	tryLockContext := fileLock.TryLockContext
	if shared {
		tryLockContext = fileLock.TryRLockContext
	}
	locked, err := tryLockContext(ctx, lockOptions.lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("could not lock %s: %w", filePath, err)
	}
	if !locked {
		return nil, fmt.Errorf("could not lock %s", filePath)
	}
	return fileLock, nil
}
