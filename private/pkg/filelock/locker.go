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

package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type locker struct {
	rootDirPath string
	lockTimeout time.Duration
}

func newLocker(rootDirPath string, options ...LockerOption) (*locker, error) {
	// allow symlinks
	fileInfo, err := os.Stat(rootDirPath)
	if err != nil {
		return nil, err
	}
	if !fileInfo.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", rootDirPath)
	}
	lockerOptions := &lockerOptions{
		lockTimeout: DefaultLockTimeout,
	}
	for _, option := range options {
		option(lockerOptions)
	}
	return &locker{
		rootDirPath: filepath.Clean(rootDirPath),
		lockTimeout: lockerOptions.lockTimeout,
	}, nil
}

func (l *locker) Lock(ctx context.Context, path string, options ...LockOption) (Unlocker, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	return lock(ctx, filepath.Join(l.rootDirPath, path), l.withDefaults(options)...)
}

func (l *locker) RLock(ctx context.Context, path string, options ...LockOption) (Unlocker, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	return rlock(ctx, filepath.Join(l.rootDirPath, path), l.withDefaults(options)...)
}

// withDefaults puts the locker defaults first so that per-lock options win.
func (l *locker) withDefaults(options []LockOption) []LockOption {
	return append(
		[]LockOption{
			LockWithTimeout(l.lockTimeout),
		},
		options...,
	)
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty file lock path")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("file lock path %q must be relative", path)
	}
	cleanPath := filepath.Clean(path)
	if cleanPath != path {
		return fmt.Errorf("expected file lock path %q to be equal to cleaned path %q", path, cleanPath)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("file lock path %q jumps context", path)
	}
	return nil
}

type lockerOptions struct {
	lockTimeout time.Duration
}
