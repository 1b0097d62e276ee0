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

// Package watcher reports content changes to files in watched directories.
package watcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeFunc is called with the path of a file whose content changed or that was removed.
type ChangeFunc func(ctx context.Context, path string, op fsnotify.Op) error

// Watcher watches directories for file changes.
//
// A change is only reported when the content checksum of a file differs from
// the last one seen, or when the file is removed. Watch may only be called once.
type Watcher struct {
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	filter   func(string) bool
	checksum map[string][]byte
	lock     sync.Mutex
}

// Option is an option for a new Watcher.
type Option func(*Watcher)

// WithFilter only reports changes for paths that the function accepts.
func WithFilter(filter func(path string) bool) Option {
	return func(watcher *Watcher) {
		watcher.filter = filter
	}
}

// New returns a new Watcher.
func New(logger *zap.Logger, options ...Option) (*Watcher, error) {
	fsnotifyWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("initializing file watcher: %w", err)
	}
	watcher := &Watcher{
		logger:   logger.Named("watcher"),
		watcher:  fsnotifyWatcher,
		checksum: make(map[string][]byte),
	}
	for _, option := range options {
		option(watcher)
	}
	return watcher, nil
}

// Add watches the directory and records the checksums of the files it currently contains.
func (w *Watcher) Add(dirPath string) error {
	if err := w.watcher.Add(dirPath); err != nil {
		return fmt.Errorf("adding path %s to file watcher: %w", dirPath, err)
	}
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dirPath, entry.Name())
		if !w.accept(path) {
			continue
		}
		if _, err := w.updateChecksum(path); err != nil {
			w.logger.Debug("checksum", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

// Close releases the underlying watcher.
//
// Watch calls Close on return.
func (w *Watcher) Close() error {
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("closing file watcher: %w", err)
	}
	return nil
}

// Watch blocks and calls change for every file change until the context is
// cancelled or change returns an error.
func (w *Watcher) Watch(ctx context.Context, change ChangeFunc) error {
	defer func() {
		_ = w.Close()
	}()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("file watcher unexpectedly closed")
			}
			if !w.accept(event.Name) {
				continue
			}
			changed, err := w.handleEvent(event)
			if err != nil {
				w.logger.Debug("event", zap.String("path", event.Name), zap.Error(err))
				continue
			}
			if !changed {
				continue
			}
			w.logger.Debug("changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if err := change(ctx, event.Name, event.Op); err != nil {
				return err
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("file watcher unexpectedly closed")
			}
			return fmt.Errorf("file watcher error: %w", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) accept(path string) bool {
	return w.filter == nil || w.filter(path)
}

func (w *Watcher) handleEvent(event fsnotify.Event) (bool, error) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.lock.Lock()
		_, ok := w.checksum[event.Name]
		delete(w.checksum, event.Name)
		w.lock.Unlock()
		return ok, nil
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	return w.updateChecksum(event.Name)
}

func (w *Watcher) updateChecksum(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	sum := sha256.Sum256(data)
	w.lock.Lock()
	defer w.lock.Unlock()
	if old, ok := w.checksum[path]; ok && bytes.Equal(old, sum[:]) {
		return false, nil
	}
	w.checksum[path] = sum[:]
	return true, nil
}
