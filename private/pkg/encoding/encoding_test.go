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

package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type testServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

func TestUnmarshalYAMLStrict(t *testing.T) {
	t.Parallel()
	var config testServerConfig
	require.NoError(t, UnmarshalYAMLStrict([]byte("host: range.example.com\nport: 9999\n"), &config))
	assert.Equal(t, testServerConfig{Host: "range.example.com", Port: 9999}, config)
	require.NoError(t, UnmarshalYAMLStrict(nil, &config))
	require.Error(t, UnmarshalYAMLStrict([]byte("hostname: range.example.com\n"), &config))
}

func TestUnmarshalYAMLNode(t *testing.T) {
	t.Parallel()
	testUnmarshalYAMLNodeKind(t, "CLUSTER: foo1..3\n", yaml.MappingNode)
	testUnmarshalYAMLNodeKind(t, "- a\n- b\n", yaml.SequenceNode)
	node, err := UnmarshalYAMLNode([]byte("# only a comment\n"))
	require.NoError(t, err)
	assert.Nil(t, node)
	_, err = UnmarshalYAMLNode([]byte("CLUSTER: [a\n"))
	require.Error(t, err)
}

func TestMarshalYAML(t *testing.T) {
	t.Parallel()
	data, err := MarshalYAML(&testServerConfig{Host: "range.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "host: range.example.com\n", string(data))
}

func testUnmarshalYAMLNodeKind(t *testing.T, data string, expectedKind yaml.Kind) {
	node, err := UnmarshalYAMLNode([]byte(data))
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, expectedKind, node.Kind)
}
