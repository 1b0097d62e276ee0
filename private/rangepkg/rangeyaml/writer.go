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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ytoolshed/crange/private/pkg/encoding"
	"github.com/ytoolshed/crange/private/pkg/filelock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Writer writes sections of cluster files.
//
// Writes to the same cluster are serialized with an exclusive file lock, so
// multiple processes can write to one directory.
type Writer struct {
	logger        *zap.Logger
	store         *Store
	lockerOptions []filelock.LockerOption
}

// NewWriter returns a new Writer for the directory of the Store.
func NewWriter(logger *zap.Logger, store *Store, options ...WriterOption) *Writer {
	writer := &Writer{
		logger: logger.Named("rangeyaml"),
		store:  store,
	}
	for _, option := range options {
		option(writer)
	}
	return writer
}

// WriterOption is an option for a new Writer.
type WriterOption func(*Writer)

// WriterWithLockTimeout sets how long SetSection waits for the lock of a cluster file.
//
// The default is filelock.DefaultLockTimeout. A zero timeout waits until the
// context is done.
func WriterWithLockTimeout(lockTimeout time.Duration) WriterOption {
	return func(writer *Writer) {
		writer.lockerOptions = append(writer.lockerOptions, filelock.LockerWithLockTimeout(lockTimeout))
	}
}

// SetSection sets one section of a cluster, creating the cluster file if needed.
//
// A single value is written as a scalar, multiple values as a list. The
// other sections and their order are kept. The file is replaced atomically.
func (w *Writer) SetSection(ctx context.Context, cluster string, section string, values []string) (retErr error) {
	if !isValidClusterName(cluster) {
		return fmt.Errorf("invalid cluster name %q", cluster)
	}
	if section == "" || section == SectionKeys {
		return fmt.Errorf("invalid section name %q", section)
	}
	if len(values) == 0 {
		return errors.New("no values")
	}
	dirPath := w.store.Dir()
	locker, err := filelock.NewLocker(dirPath, w.lockerOptions...)
	if err != nil {
		return err
	}
	unlocker, err := locker.Lock(ctx, cluster+FileExt+".lock")
	if err != nil {
		return err
	}
	defer func() {
		retErr = multierr.Append(retErr, unlocker.Unlock())
	}()

	filePath := filepath.Join(dirPath, cluster+FileExt)
	root, err := readRootNode(filePath)
	if err != nil {
		return err
	}
	setSectionNode(root, section, newValueNode(values))
	data, err := encoding.MarshalYAML(root)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filePath, data); err != nil {
		return err
	}
	w.store.Invalidate(filePath)
	w.logger.Info(
		"set_section",
		zap.String("cluster", cluster),
		zap.String("section", section),
		zap.Int("values", len(values)),
	)
	return nil
}

func readRootNode(filePath string) (*yaml.Node, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newMappingNode(), nil
		}
		return nil, err
	}
	root, err := encoding.UnmarshalYAMLNode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	if root == nil {
		return newMappingNode(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: %w: not a mapping", filePath, errMalformed)
	}
	return root, nil
}

func setSectionNode(root *yaml.Node, section string, valueNode *yaml.Node) {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == section {
			root.Content[i+1] = valueNode
			return
		}
	}
	root.Content = append(root.Content, newScalarNode(section), valueNode)
}

func newValueNode(values []string) *yaml.Node {
	if len(values) == 1 {
		return newScalarNode(values[0])
	}
	sequenceNode := &yaml.Node{
		Kind: yaml.SequenceNode,
		Tag:  "!!seq",
	}
	for _, value := range values {
		sequenceNode.Content = append(sequenceNode.Content, newScalarNode(value))
	}
	return sequenceNode
}

func newMappingNode() *yaml.Node {
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}
}

func newScalarNode(value string) *yaml.Node {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Value: value,
	}
}

// writeFileAtomic writes to a temporary file in the same directory and renames it.
func writeFileAtomic(filePath string, data []byte) (retErr error) {
	file, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			retErr = multierr.Append(retErr, os.Remove(file.Name()))
		}
	}()
	if _, err := file.Write(data); err != nil {
		return multierr.Append(err, file.Close())
	}
	if err := file.Chmod(0644); err != nil {
		return multierr.Append(err, file.Close())
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), filePath)
}
