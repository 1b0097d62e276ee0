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
	"fmt"
	"io"
	"strconv"
	"strings"
)

type envContainer struct {
	variables map[string]string
}

func newEnvContainer(m map[string]string) *envContainer {
	variables := make(map[string]string)
	for key, value := range m {
		if value != "" {
			variables[key] = value
		}
	}
	return &envContainer{
		variables: variables,
	}
}

func newEnvContainerForEnviron(environ []string) (*envContainer, error) {
	variables := make(map[string]string, len(environ))
	for _, elem := range environ {
		if !strings.ContainsRune(elem, '=') {
			// Do not print out as we don't want to mistakenly leak secure environment variables
			return nil, fmt.Errorf("environment variable does not contain =")
		}
		split := strings.SplitN(elem, "=", 2)
		if len(split) != 2 {
			return nil, fmt.Errorf("unknown environment split")
		}
		if split[1] != "" {
			variables[split[0]] = split[1]
		}
	}
	return &envContainer{
		variables: variables,
	}, nil
}

func (e *envContainer) Env(key string) string {
	return e.variables[key]
}

func (e *envContainer) ForEachEnv(f func(string, string)) {
	for key, value := range e.variables {
		// This should be done anyways but just to make sure
		if value != "" {
			f(key, value)
		}
	}
}

func (e *envContainer) GetEnvBoolValue(key string) (bool, error) {
	value := e.Env(key)
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}

type argContainer struct {
	values []string
}

func newArgContainer(values []string) *argContainer {
	return &argContainer{
		values: values,
	}
}

func (a *argContainer) NumArgs() int {
	return len(a.values)
}

func (a *argContainer) Arg(i int) string {
	return a.values[i]
}

type container struct {
	EnvContainer
	ArgContainer

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newContainer(
	envContainer EnvContainer,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	argContainer ArgContainer,
) *container {
	if stdin == nil {
		stdin = discardReader{}
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &container{
		EnvContainer: envContainer,
		ArgContainer: argContainer,
		stdin:        stdin,
		stdout:       stdout,
		stderr:       stderr,
	}
}

func (c *container) Stdin() io.Reader {
	return c.stdin
}

func (c *container) Stdout() io.Writer {
	return c.stdout
}

func (c *container) Stderr() io.Writer {
	return c.stderr
}

type discardReader struct{}

func (discardReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
