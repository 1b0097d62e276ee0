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

// Package appcmdtesting runs commands in tests.
package appcmdtesting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ytoolshed/crange/private/pkg/app"
	"github.com/ytoolshed/crange/private/pkg/app/appcmd"
)

const testingUse = "test"

// Run runs the command created by newCommand with the options, and
// checks the exit code and output expectations.
func Run(
	t *testing.T,
	newCommand func(use string) *appcmd.Command,
	options ...RunOption,
) {
	runOptions := newRunOptions()
	for _, option := range options {
		option(runOptions)
	}
	stdoutBuffer := bytes.NewBuffer(nil)
	stderrBuffer := bytes.NewBuffer(nil)
	var env map[string]string
	if runOptions.newEnv != nil {
		env = runOptions.newEnv(testingUse)
	}
	container := app.NewContainer(
		env,
		runOptions.stdin,
		stdoutBuffer,
		stderrBuffer,
		append([]string{testingUse}, runOptions.args...)...,
	)
	exitCode := app.GetExitCode(
		app.Run(
			context.Background(),
			container,
			func(ctx context.Context, container app.Container) error {
				return appcmd.Run(ctx, container, newCommand(testingUse))
			},
		),
	)
	require.Equal(
		t,
		runOptions.expectedExitCode,
		exitCode,
		requireErrorMessage(runOptions.args, stdoutBuffer, stderrBuffer),
	)
	if runOptions.expectedStdoutPresent {
		require.Equal(
			t,
			trimLines(runOptions.expectedStdout),
			trimLines(stdoutBuffer.String()),
			requireErrorMessage(runOptions.args, stdoutBuffer, stderrBuffer),
		)
	}
	for _, expectedStderrPartial := range runOptions.expectedStderrPartials {
		require.Contains(
			t,
			stderrBuffer.String(),
			expectedStderrPartial,
			requireErrorMessage(runOptions.args, stdoutBuffer, stderrBuffer),
		)
	}
}

// RunOption is an option for Run.
type RunOption func(*runOptions)

// WithEnv sets the environment.
func WithEnv(newEnv func(use string) map[string]string) RunOption {
	return func(runOptions *runOptions) {
		runOptions.newEnv = newEnv
	}
}

// WithStdin sets stdin.
func WithStdin(stdin io.Reader) RunOption {
	return func(runOptions *runOptions) {
		runOptions.stdin = stdin
	}
}

// WithArgs sets the arguments after the command name.
func WithArgs(args ...string) RunOption {
	return func(runOptions *runOptions) {
		runOptions.args = args
	}
}

// WithExpectedStdout expects stdout to equal the value, ignoring surrounding whitespace per line.
func WithExpectedStdout(expectedStdout string) RunOption {
	return func(runOptions *runOptions) {
		runOptions.expectedStdout = expectedStdout
		runOptions.expectedStdoutPresent = true
	}
}

// WithExpectedStderrPartials expects stderr to contain every partial.
func WithExpectedStderrPartials(expectedStderrPartials ...string) RunOption {
	return func(runOptions *runOptions) {
		runOptions.expectedStderrPartials = expectedStderrPartials
	}
}

// WithExpectedExitCode sets the expected exit code.
//
// The default is 0.
func WithExpectedExitCode(expectedExitCode int) RunOption {
	return func(runOptions *runOptions) {
		runOptions.expectedExitCode = expectedExitCode
	}
}

type runOptions struct {
	newEnv                 func(string) map[string]string
	stdin                  io.Reader
	args                   []string
	expectedStdout         string
	expectedStdoutPresent  bool
	expectedStderrPartials []string
	expectedExitCode       int
}

func newRunOptions() *runOptions {
	return &runOptions{}
}

func requireErrorMessage(args []string, stdout *bytes.Buffer, stderr *bytes.Buffer) string {
	return fmt.Sprintf(
		"args: %s\nstdout: %s\nstderr: %s",
		strings.Join(args, " "),
		stdout.String(),
		stderr.String(),
	)
}

func trimLines(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
