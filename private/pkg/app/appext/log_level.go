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
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	// LogLevelDebug is the debug log level.
	LogLevelDebug LogLevel = iota + 1
	// LogLevelInfo is the info log level.
	LogLevelInfo
	// LogLevelWarn is the warn log level.
	LogLevelWarn
	// LogLevelError is the error log level.
	LogLevelError
)

const (
	// LogFormatText is the text log format.
	LogFormatText LogFormat = iota + 1
	// LogFormatColor is the colored text log format.
	LogFormatColor
	// LogFormatJSON is the JSON log format.
	LogFormatJSON
)

// LogLevel is a level to print logs in.
type LogLevel int

// String implements fmt.Stringer.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return strconv.Itoa(int(l))
	}
}

// ZapLevel returns the zapcore.Level for the LogLevel.
func (l LogLevel) ZapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	}
	if l < LogLevelDebug {
		return zapcore.DebugLevel
	}
	return zapcore.ErrorLevel
}

// ParseLogLevel parses the log level for the string.
//
// The empty string is parsed as info.
func ParseLogLevel(logLevelString string) (LogLevel, error) {
	switch strings.TrimSpace(strings.ToLower(logLevelString)) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level [debug,info,warn,error]: %q", logLevelString)
	}
}

// LogFormat is a format to print logs in.
type LogFormat int

// String implements fmt.Stringer.
func (l LogFormat) String() string {
	switch l {
	case LogFormatText:
		return "text"
	case LogFormatColor:
		return "color"
	case LogFormatJSON:
		return "json"
	default:
		return strconv.Itoa(int(l))
	}
}

// ParseLogFormat parses the log format for the string.
//
// The empty string is parsed as color.
func ParseLogFormat(logFormatString string) (LogFormat, error) {
	switch strings.TrimSpace(strings.ToLower(logFormatString)) {
	case "text":
		return LogFormatText, nil
	case "color", "":
		return LogFormatColor, nil
	case "json":
		return LogFormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown log format [text,color,json]: %q", logFormatString)
	}
}
