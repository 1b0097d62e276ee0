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

package appcmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytoolshed/crange/private/pkg/app"
)

func TestBasic(t *testing.T) {
	t.Parallel()
	var yamlPath string
	var list bool

	var actualArgs []string
	var actualYAMLPath string
	var actualList bool
	var actualStdin string
	var actualEnvValue string

	rootCommand := &Command{
		Use: "crange",
		BindPersistentFlags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&yamlPath, "yaml-path", "", "Yaml path.")
		},
		SubCommands: []*Command{
			{
				Use: "expand",
				BindFlags: func(flagSet *pflag.FlagSet) {
					flagSet.BoolVarP(&list, "list", "e", false, "List.")
				},
				Run: func(ctx context.Context, container app.Container) error {
					actualArgs = app.Args(container)
					actualYAMLPath = yamlPath
					actualList = list
					data, err := io.ReadAll(container.Stdin())
					if err != nil {
						return err
					}
					actualStdin = string(data)
					actualEnvValue = container.Env("LIBCRANGE_YAML_PATH")
					return nil
				},
			},
		},
	}
	container := app.NewContainer(
		map[string]string{
			"LIBCRANGE_YAML_PATH": "/etc/range",
		},
		strings.NewReader("web1"),
		nil,
		nil,
		"crange",
		"expand",
		"foo1..3",
		"-e",
		"--yaml-path",
		"/tmp/range",
	)
	require.NoError(t, Run(context.Background(), container, rootCommand))
	assert.Equal(t, []string{"foo1..3"}, actualArgs)
	assert.Equal(t, "/tmp/range", actualYAMLPath)
	assert.True(t, actualList)
	assert.Equal(t, "web1", actualStdin)
	assert.Equal(t, "/etc/range", actualEnvValue)
}

func TestError(t *testing.T) {
	t.Parallel()
	rootCommand := &Command{
		Use: "crange",
		SubCommands: []*Command{
			{
				Use: "expand",
				Run: func(ctx context.Context, container app.Container) error {
					return app.NewError(5, "bar")
				},
			},
		},
	}
	container := app.NewContainer(nil, nil, nil, nil, "crange", "expand")
	require.Equal(t, app.NewError(5, "bar"), Run(context.Background(), container, rootCommand))
}

func TestInvalidArgs(t *testing.T) {
	t.Parallel()
	rootCommand := &Command{
		Use: "crange",
		SubCommands: []*Command{
			{
				Use:  "expand <range>",
				Args: cobra.ExactArgs(1),
				Run: func(context.Context, app.Container) error {
					return nil
				},
			},
		},
	}
	stderr := bytes.NewBuffer(nil)
	container := app.NewContainer(nil, nil, nil, stderr, "crange", "expand", "a", "b")
	err := Run(context.Background(), container, rootCommand)
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidArgument, app.GetExitCode(err))
	assert.Contains(t, stderr.String(), "Usage:")

	stderr.Reset()
	container = app.NewContainer(nil, nil, nil, stderr, "crange")
	err = Run(context.Background(), container, rootCommand)
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidArgument, app.GetExitCode(err))
	assert.Contains(t, stderr.String(), "Usage:")
}

func TestVersionToStdout(t *testing.T) {
	t.Parallel()
	version := "1.1.0-dev"
	rootCommand := &Command{
		Use:     "crange",
		Version: version,
		SubCommands: []*Command{
			{
				Use: "expand",
				Run: func(context.Context, app.Container) error {
					return nil
				},
			},
		},
	}
	buffer := bytes.NewBuffer(nil)
	container := app.NewContainer(nil, nil, buffer, nil, "crange", "--version")
	require.NoError(t, Run(context.Background(), container, rootCommand))
	require.Equal(t, version+"\n", buffer.String())
}

func TestHelpToStdout(t *testing.T) {
	t.Parallel()
	rootCommand := &Command{
		Use: "crange",
		// need a sub-command for "help" to work
		// otherwise can do -h
		SubCommands: []*Command{
			{
				Use: "expand",
				Run: func(context.Context, app.Container) error {
					return nil
				},
			},
		},
	}
	buffer := bytes.NewBuffer(nil)
	container := app.NewContainer(nil, nil, buffer, nil, "crange", "help")
	require.NoError(t, Run(context.Background(), container, rootCommand))
	require.NotEmpty(t, buffer.String())

	rootCommand = &Command{
		Use: "crange",
		Run: func(context.Context, app.Container) error {
			return nil
		},
	}
	buffer = bytes.NewBuffer(nil)
	container = app.NewContainer(nil, nil, buffer, nil, "crange", "-h")
	require.NoError(t, Run(context.Background(), container, rootCommand))
	require.NotEmpty(t, buffer.String())
}

func TestIncorrectFlagEmptyStdout(t *testing.T) {
	t.Parallel()
	rootCommand := &Command{
		Use: "crange",
		Run: func(context.Context, app.Container) error {
			return nil
		},
	}
	stderr := bytes.NewBuffer(nil)
	stdout := bytes.NewBuffer(nil)
	container := app.NewContainer(nil, nil, stdout, stderr, "crange", "--foo", "1")
	err := Run(context.Background(), container, rootCommand)
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidArgument, app.GetExitCode(err))
	require.Empty(t, stdout.String())
	require.NotEmpty(t, stderr.String())
}
