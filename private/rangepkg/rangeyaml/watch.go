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

package rangeyaml

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/ytoolshed/crange/private/pkg/watcher"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Watch drops cached cluster files as soon as they change on disk.
//
// Blocks until the context is cancelled. Only the directory of the Store at
// the time of the call is watched.
func Watch(ctx context.Context, logger *zap.Logger, store *Store) error {
	fileWatcher, err := watcher.New(
		logger,
		watcher.WithFilter(func(path string) bool {
			return strings.HasSuffix(path, FileExt)
		}),
	)
	if err != nil {
		return err
	}
	dirPath := store.Dir()
	if err := fileWatcher.Add(dirPath); err != nil {
		return multierr.Append(err, fileWatcher.Close())
	}
	logger.Info("watching", zap.String("dir", dirPath))
	return fileWatcher.Watch(
		ctx,
		func(_ context.Context, path string, op fsnotify.Op) error {
			logger.Info("cluster_changed", zap.String("path", path), zap.Stringer("op", op))
			store.Invalidate(path)
			return nil
		},
	)
}
