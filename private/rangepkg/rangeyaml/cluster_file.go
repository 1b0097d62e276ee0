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
	"strings"

	"github.com/ytoolshed/crange/private/pkg/encoding"
	"github.com/ytoolshed/crange/private/pkg/thread"
	"gopkg.in/yaml.v3"
)

var errMalformed = errors.New("malformed cluster definition")

// readClusterFile reads and parses a cluster file.
//
// A file that is not a mapping of scalars or lists of scalars is returned
// as malformed together with an error wrapping errMalformed.
func readClusterFile(filePath string, fileInfo fs.FileInfo) (*clusterFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	file := &clusterFile{
		modTime: fileInfo.ModTime(),
		size:    fileInfo.Size(),
	}
	sections, err := parseSections(data)
	if err != nil {
		file.malformed = true
		return file, fmt.Errorf("%s: %w", filePath, err)
	}
	file.sections = sections
	return file, nil
}

// parseSections parses the sections of a cluster file and adds the KEYS section.
func parseSections(data []byte) (map[string]string, error) {
	root, err := encoding.UnmarshalYAMLNode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	sections := make(map[string]string)
	var keys []string
	if root != nil {
		if root.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: not a mapping", errMalformed)
		}
		for i := 0; i+1 < len(root.Content); i += 2 {
			keyNode, valueNode := root.Content[i], root.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: line %d: key is not a scalar", errMalformed, keyNode.Line)
			}
			value, err := sectionValue(valueNode)
			if err != nil {
				return nil, err
			}
			if _, ok := sections[keyNode.Value]; !ok {
				keys = append(keys, keyNode.Value)
			}
			sections[keyNode.Value] = value
		}
	}
	sections[SectionKeys] = strings.Join(keys, ",")
	return sections, nil
}

// sectionValue returns a scalar as is and joins a list as (a),(b).
func sectionValue(valueNode *yaml.Node) (string, error) {
	switch valueNode.Kind {
	case yaml.ScalarNode:
		return valueNode.Value, nil
	case yaml.SequenceNode:
		items := make([]string, len(valueNode.Content))
		for i, itemNode := range valueNode.Content {
			if itemNode.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("%w: line %d: list item is not a scalar", errMalformed, itemNode.Line)
			}
			items[i] = "(" + itemNode.Value + ")"
		}
		return strings.Join(items, ","), nil
	default:
		return "", fmt.Errorf("%w: line %d: value is not a scalar or list", errMalformed, valueNode.Line)
	}
}

func parallelize(ctx context.Context, jobs []func(context.Context) error) error {
	return thread.Parallelize(ctx, jobs, thread.ParallelizeWithCancelOnFailure())
}
