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

// Package encoding provides encoding utilities.
package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// MarshalYAML marshals the given value into YAML with two-space indentation.
func MarshalYAML(v interface{}) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	yamlEncoder := yaml.NewEncoder(buffer)
	yamlEncoder.SetIndent(2)
	if err := yamlEncoder.Encode(v); err != nil {
		return nil, err
	}
	if err := yamlEncoder.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// UnmarshalYAMLStrict unmarshals the data as YAML, returning a user error on failure.
//
// If the data length is 0, this is a no-op.
// Unknown fields are an error.
func UnmarshalYAMLStrict(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	yamlDecoder := newYAMLDecoder(data, true)
	if err := yamlDecoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("could not unmarshal as YAML: %w", err)
	}
	return nil
}

// UnmarshalYAMLNode unmarshals the data as a YAML document node.
//
// Returns nil if the data is empty or only contains comments.
func UnmarshalYAMLNode(data []byte) (*yaml.Node, error) {
	var node yaml.Node
	if err := newYAMLDecoder(data, false).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not unmarshal as YAML: %w", err)
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		return node.Content[0], nil
	}
	return &node, nil
}

func newYAMLDecoder(data []byte, strict bool) *yaml.Decoder {
	yamlDecoder := yaml.NewDecoder(bytes.NewReader(data))
	yamlDecoder.KnownFields(strict)
	return yamlDecoder
}
