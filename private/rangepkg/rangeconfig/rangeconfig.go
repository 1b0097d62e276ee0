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

// Package rangeconfig reads libcrange configuration files.
//
// A configuration file has one directive per line:
//
//	# comment
//	yaml_path = /etc/range
//	loadmodule yamlfile
//	loadmodule ip prefix=dns_
package rangeconfig

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	// DefaultFilePath is the default configuration file path.
	DefaultFilePath = "/etc/libcrange.conf"
	// DefaultYAMLPath is the default directory of cluster files.
	DefaultYAMLPath = "/etc/range"
	// DefaultDNSTimeout is the default timeout of a DNS lookup.
	DefaultDNSTimeout = 2 * time.Second
	// MaxLineLength is the maximum length of a configuration line.
	MaxLineLength = 255

	// VarYAMLPath is the variable for the directory of cluster files.
	VarYAMLPath = "yaml_path"
	// VarDNSTimeout is the variable for the DNS lookup timeout.
	VarDNSTimeout = "dns_timeout"

	// ModuleYAMLFile is the YAML cluster file module.
	ModuleYAMLFile = "yamlfile"
	// ModuleNodesCF is an alias of ModuleYAMLFile.
	ModuleNodesCF = "nodescf"
	// ModuleIP is the DNS module.
	ModuleIP = "ip"
)

var (
	loadModuleRegexp = regexp.MustCompile(`^\s*loadmodule\s+(\S+)(?:\s+prefix=([-\w]+))?\s*$`)
	perlModuleRegexp = regexp.MustCompile(`^\s*perlmodule\s+(\S+)(?:\s+prefix=([-\w]+))?\s*$`)
	varRegexp        = regexp.MustCompile(`^\s*([-\w]+)\s*=\s*(\S+)\s*$`)
)

// ModuleConfig is an enabled module.
type ModuleConfig struct {
	// Name is the canonical module name.
	Name string
	// Prefix is prepended to the names of the functions of the module.
	Prefix string
}

// Config is a library configuration.
type Config struct {
	// Vars are the variables set with "var = value".
	Vars map[string]string
	// Modules are the enabled modules, in order.
	Modules []ModuleConfig
}

// Default returns the configuration used when there is no configuration file.
//
// All built-in modules are enabled without a prefix.
func Default() *Config {
	return &Config{
		Vars: make(map[string]string),
		Modules: []ModuleConfig{
			{Name: ModuleYAMLFile},
			{Name: ModuleIP},
		},
	}
}

// ReadFile reads the configuration file at the path.
//
// If the file does not exist, Default is returned.
func ReadFile(path string) (_ *Config, retErr error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	defer func() {
		retErr = multierr.Append(retErr, file.Close())
	}()
	return Parse(path, file)
}

// Parse parses a configuration. The name is used in error messages.
//
// All syntax errors are returned together.
func Parse(name string, reader io.Reader) (*Config, error) {
	config := &Config{
		Vars: make(map[string]string),
	}
	var retErr error
	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if len(line) > MaxLineLength {
			retErr = multierr.Append(retErr, fmt.Errorf("%s:%d line too long", name, lineNumber))
			continue
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := config.parseLine(line); err != nil {
			retErr = multierr.Append(retErr, fmt.Errorf("%s:%d %w", name, lineNumber, err))
		}
	}
	if err := scanner.Err(); err != nil {
		retErr = multierr.Append(retErr, err)
	}
	if retErr != nil {
		return nil, retErr
	}
	return config, nil
}

// Get returns the value of the variable.
func (c *Config) Get(name string) (string, bool) {
	value, ok := c.Vars[name]
	return value, ok
}

// YAMLPath returns the yaml_path variable, or DefaultYAMLPath.
func (c *Config) YAMLPath() string {
	if value, ok := c.Get(VarYAMLPath); ok {
		return value
	}
	return DefaultYAMLPath
}

// DNSTimeout returns the dns_timeout variable, or DefaultDNSTimeout.
//
// The value is a Go duration or a number of seconds.
func (c *Config) DNSTimeout() (time.Duration, error) {
	value, ok := c.Get(VarDNSTimeout)
	if !ok {
		return DefaultDNSTimeout, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	timeout, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", VarDNSTimeout, value, err)
	}
	return timeout, nil
}

// HasModule returns true if the module is enabled.
func (c *Config) HasModule(name string) bool {
	for _, module := range c.Modules {
		if module.Name == name {
			return true
		}
	}
	return false
}

func (c *Config) parseLine(line string) error {
	if matches := loadModuleRegexp.FindStringSubmatch(line); matches != nil {
		moduleName, err := canonicalModuleName(matches[1])
		if err != nil {
			return err
		}
		c.Modules = append(c.Modules, ModuleConfig{Name: moduleName, Prefix: matches[2]})
		return nil
	}
	if matches := varRegexp.FindStringSubmatch(line); matches != nil {
		c.Vars[matches[1]] = matches[2]
		return nil
	}
	if matches := perlModuleRegexp.FindStringSubmatch(line); matches != nil {
		return fmt.Errorf("perl module %q is not supported", matches[1])
	}
	return fmt.Errorf("syntax error [%s]", line)
}

func canonicalModuleName(name string) (string, error) {
	switch name {
	case ModuleYAMLFile, ModuleNodesCF:
		return ModuleYAMLFile, nil
	case ModuleIP:
		return ModuleIP, nil
	default:
		return "", fmt.Errorf("unknown module %q", name)
	}
}
