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

package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvContainer(t *testing.T) {
	t.Parallel()
	envContainer := NewEnvContainer(
		map[string]string{
			"LIBCRANGE_YAML_PATH": "/etc/range",
			"CRANGE_PORT":         "9999",
			"CRANGE_CONFIG":       "",
		},
	)
	assert.Equal(t, "/etc/range", envContainer.Env("LIBCRANGE_YAML_PATH"))
	assert.Equal(t, "", envContainer.Env("CRANGE_CONFIG"))
	assert.Equal(
		t,
		[]string{
			"CRANGE_PORT=9999",
			"LIBCRANGE_YAML_PATH=/etc/range",
		},
		Environ(envContainer),
	)

	envContainer, err := newEnvContainerForEnviron(
		[]string{
			"foo1=bar1",
			"foo2=a=b",
			"foo3=",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "bar1", envContainer.Env("foo1"))
	assert.Equal(t, "a=b", envContainer.Env("foo2"))
	assert.Equal(
		t,
		map[string]string{
			"foo1": "bar1",
			"foo2": "a=b",
		},
		EnvironMap(envContainer),
	)

	envContainer = NewEnvContainerWithOverrides(
		envContainer,
		map[string]string{
			"foo1": "",
			"foo3": "baz3",
		},
	)
	assert.Equal(t, "", envContainer.Env("foo1"))
	assert.Equal(t, "baz3", envContainer.Env("foo3"))
	assert.Equal(t, []string{"foo2=a=b", "foo3=baz3"}, Environ(envContainer))

	_, err = newEnvContainerForEnviron([]string{"foo1"})
	require.Error(t, err)
}

func TestArgContainer(t *testing.T) {
	t.Parallel()
	args := []string{"crange", "expand", "foo1..3"}
	assert.Equal(t, args, Args(NewArgContainer(args...)))
}

func TestGetEnvBoolValue(t *testing.T) {
	t.Parallel()
	envContainer := NewEnvContainer(
		map[string]string{
			"foo1": "bar1",
			"foo2": "true",
		},
	)
	val, err := envContainer.GetEnvBoolValue("foo1")
	assert.Error(t, err)
	assert.False(t, val)
	val, err = envContainer.GetEnvBoolValue("foo2")
	assert.NoError(t, err)
	assert.True(t, val)
	val, err = envContainer.GetEnvBoolValue("missing")
	assert.NoError(t, err)
	assert.False(t, val)
}

func TestPort(t *testing.T) {
	t.Parallel()
	envContainer := NewEnvContainer(
		map[string]string{
			"GOOD": "8080",
			"BAD":  "http",
		},
	)
	port, err := Port(envContainer, "GOOD")
	require.NoError(t, err)
	assert.Equal(t, uint16(8080), port)
	port, err = Port(envContainer, "MISSING")
	require.NoError(t, err)
	assert.Equal(t, uint16(0), port)
	_, err = Port(envContainer, "BAD")
	require.Error(t, err)
}

func TestConfigDirPath(t *testing.T) {
	t.Parallel()
	configDirPath, err := ConfigDirPath(NewEnvContainer(map[string]string{"XDG_CONFIG_HOME": "/xdg"}))
	require.NoError(t, err)
	assert.Equal(t, "/xdg", configDirPath)
	configDirPath, err = ConfigDirPath(NewEnvContainer(map[string]string{"HOME": "/home/range"}))
	require.NoError(t, err)
	assert.Equal(t, "/home/range/.config", configDirPath)
	_, err = ConfigDirPath(NewEnvContainer(nil))
	require.Error(t, err)
}

func TestRunExitCode(t *testing.T) {
	t.Parallel()
	stderr := bytes.NewBuffer(nil)
	container := NewContainer(nil, nil, nil, stderr, "crange")
	err := Run(
		context.Background(),
		container,
		func(context.Context, Container) error {
			return NewError(3, "no such cluster")
		},
	)
	require.Error(t, err)
	assert.Equal(t, 3, GetExitCode(err))
	assert.Equal(t, "no such cluster\n", stderr.String())
	assert.Equal(t, 1, GetExitCode(errors.New("plain")))
	assert.Equal(t, 0, GetExitCode(nil))
	assert.Equal(t, 1, GetExitCode(NewError(0, "zero")))
}
