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

package appext

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ytoolshed/crange/private/pkg/app"
	"github.com/ytoolshed/crange/private/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type container struct {
	app.Container
	NameContainer
	LoggerContainer
	TracerContainer
}

func newContainer(
	baseContainer app.Container,
	appName string,
	logger *zap.Logger,
) (*container, error) {
	nameContainer, err := newNameContainer(baseContainer, appName)
	if err != nil {
		return nil, err
	}
	return &container{
		Container:       baseContainer,
		NameContainer:   nameContainer,
		LoggerContainer: newLoggerContainer(logger),
		TracerContainer: newTracerContainer(appName),
	}, nil
}

type nameContainer struct {
	envContainer app.EnvContainer
	appName      string
}

func newNameContainer(envContainer app.EnvContainer, appName string) (*nameContainer, error) {
	if err := validateAppName(appName); err != nil {
		return nil, err
	}
	return &nameContainer{
		envContainer: envContainer,
		appName:      appName,
	}, nil
}

func (c *nameContainer) AppName() string {
	return c.appName
}

func (c *nameContainer) ConfigDirPath() string {
	if value := c.envContainer.Env(c.envPrefix() + "CONFIG_DIR"); value != "" {
		return value
	}
	configDirPath, err := app.ConfigDirPath(c.envContainer)
	if err != nil {
		// $HOME is not set, fall back to the working directory.
		return filepath.Join(".", c.appName)
	}
	return filepath.Join(configDirPath, c.appName)
}

func (c *nameContainer) Port() (uint16, error) {
	port, err := app.Port(c.envContainer, c.envPrefix()+"PORT")
	if err != nil || port != 0 {
		return port, err
	}
	return app.Port(c.envContainer, "PORT")
}

func (c *nameContainer) envPrefix() string {
	return strings.ToUpper(strings.ReplaceAll(c.appName, "-", "_")) + "_"
}

func validateAppName(appName string) error {
	if appName == "" {
		return fmt.Errorf("empty application name")
	}
	for _, c := range appName {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || unicode.IsDigit(c) || c == '-' || c == '_') {
			return fmt.Errorf("invalid application name: %s", appName)
		}
	}
	return nil
}

type tracerContainer struct {
	tracer tracing.Tracer
}

func newTracerContainer(appName string) *tracerContainer {
	return &tracerContainer{
		tracer: tracing.NewTracer(otel.GetTracerProvider().Tracer(appName)),
	}
}

func (c *tracerContainer) Tracer() tracing.Tracer {
	return c.tracer
}
