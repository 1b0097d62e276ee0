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

// Package rangecli contains the helpers shared by the crange commands.
package rangecli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"github.com/ytoolshed/crange/private/pkg/app"
	"github.com/ytoolshed/crange/private/pkg/app/appext"
	"github.com/ytoolshed/crange/private/rangepkg/rangeclient"
	"github.com/ytoolshed/crange/private/rangepkg/rangeconfig"
	"github.com/ytoolshed/crange/private/rangepkg/rangeengine"
)

const (
	// Version is the version of crange.
	Version = rangeengine.Version

	// DefaultPort is the default port of crange serve.
	DefaultPort uint16 = 9999
	// DefaultHost is the default server of crange query.
	DefaultHost = "localhost:9999"

	// ConfigEnvKey is the environment variable for the libcrange configuration file.
	ConfigEnvKey = "CRANGE_CONFIG"
	// YAMLPathEnvKey is the environment variable for the directory of cluster files.
	YAMLPathEnvKey = "LIBCRANGE_YAML_PATH"

	configFlagName     = "config"
	yamlPathFlagName   = "yaml-path"
	noCacheFlagName    = "no-cache"
	noWarningsFlagName = "no-warnings"
)

// Config is the crange configuration in config.yaml of the configuration directory.
type Config struct {
	YAMLPath string       `yaml:"yaml_path,omitempty"`
	Server   ServerConfig `yaml:"server,omitempty"`
}

// ServerConfig is the server part of Config.
type ServerConfig struct {
	// Host is the server used by crange query.
	Host string `yaml:"host,omitempty"`
	// Port is the port used by crange serve.
	Port uint16 `yaml:"port,omitempty"`
}

// ReadConfig reads the crange configuration.
//
// If there is no configuration file, an empty Config is returned.
func ReadConfig(container appext.NameContainer) (*Config, error) {
	config := &Config{}
	if err := appext.ReadConfig(container, config); err != nil {
		return nil, err
	}
	return config, nil
}

// EngineFlags are the flags of commands that build an Engine.
type EngineFlags struct {
	Config     string
	YAMLPath   string
	NoCache    bool
	NoWarnings bool
}

// NewEngineFlags returns new EngineFlags.
func NewEngineFlags() *EngineFlags {
	return &EngineFlags{}
}

// Bind binds the flags.
func (f *EngineFlags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(
		&f.Config,
		configFlagName,
		"",
		fmt.Sprintf(
			"The libcrange configuration file. Defaults to $%s or %s.",
			ConfigEnvKey,
			rangeconfig.DefaultFilePath,
		),
	)
	flagSet.StringVar(
		&f.YAMLPath,
		yamlPathFlagName,
		"",
		fmt.Sprintf(
			"The directory of cluster files. Defaults to $%s, then the configuration.",
			YAMLPathEnvKey,
		),
	)
	flagSet.BoolVar(
		&f.NoCache,
		noCacheFlagName,
		false,
		"Read cluster files on every expansion.",
	)
	flagSet.BoolVar(
		&f.NoWarnings,
		noWarningsFlagName,
		false,
		"Do not collect warnings.",
	)
}

// NewEngine returns a new Engine for the flags.
//
// The directory of cluster files is the first of the --yaml-path flag,
// $LIBCRANGE_YAML_PATH, yaml_path in config.yaml, and yaml_path in the
// libcrange configuration file.
func NewEngine(
	container appext.Container,
	engineFlags *EngineFlags,
	options ...rangeengine.EngineOption,
) (rangeengine.Engine, error) {
	configFilePath := engineFlags.Config
	if configFilePath == "" {
		configFilePath = container.Env(ConfigEnvKey)
	}
	if configFilePath == "" {
		configFilePath = rangeconfig.DefaultFilePath
	}
	rangeConfig, err := rangeconfig.ReadFile(configFilePath)
	if err != nil {
		return nil, err
	}
	yamlPath := engineFlags.YAMLPath
	if yamlPath == "" {
		yamlPath = container.Env(YAMLPathEnvKey)
	}
	if yamlPath == "" {
		config, err := ReadConfig(container)
		if err != nil {
			return nil, err
		}
		yamlPath = config.YAMLPath
	}
	engineOptions := []rangeengine.EngineOption{
		rangeengine.EngineWithConfig(rangeConfig),
		rangeengine.EngineWithTracer(container.Tracer()),
		rangeengine.EngineWithCaching(!engineFlags.NoCache),
		rangeengine.EngineWithWarnings(!engineFlags.NoWarnings),
	}
	if yamlPath != "" {
		engineOptions = append(engineOptions, rangeengine.EngineWithAltPath(yamlPath))
	}
	return rangeengine.NewEngine(container.Logger(), append(engineOptions, options...)...)
}

// PrintWarnings prints one warning per line.
func PrintWarnings(writer io.Writer, warnings []rangeengine.Warning) error {
	for _, warning := range warnings {
		if _, err := fmt.Fprintf(writer, "warning: %s\n", warning.String()); err != nil {
			return err
		}
	}
	return nil
}

// NewErrorInterceptor returns a CLI interceptor that wraps range errors.
func NewErrorInterceptor() appext.Interceptor {
	return func(next func(context.Context, appext.Container) error) func(context.Context, appext.Container) error {
		return func(ctx context.Context, container appext.Container) error {
			return wrapError(next(ctx, container))
		}
	}
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case rangeengine.IsError(err):
		return app.NewError(1, err.Error())
	case rangeclient.IsError(err):
		return app.NewErrorf(1, "range server: %s", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return app.NewError(1, "timed out, use --timeout to extend the deadline")
	}
	return err
}
