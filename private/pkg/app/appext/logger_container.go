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
	"io"
	"os"

	"github.com/ytoolshed/crange/private/pkg/app"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

type loggerContainer struct {
	logger *zap.Logger
}

func newLoggerContainer(logger *zap.Logger) *loggerContainer {
	return &loggerContainer{
		logger: logger,
	}
}

func (c *loggerContainer) Logger() *zap.Logger {
	return c.logger
}

func defaultLoggerProvider(
	_ NameContainer,
	stderrContainer app.StderrContainer,
	logLevel LogLevel,
	logFormat LogFormat,
) (*zap.Logger, error) {
	return newZapLogger(stderrContainer.Stderr(), logLevel, logFormat)
}

func newZapLogger(writer io.Writer, logLevel LogLevel, logFormat LogFormat) (*zap.Logger, error) {
	encoder, err := getZapEncoder(writer, logFormat)
	if err != nil {
		return nil, err
	}
	return zap.New(
		zapcore.NewCore(
			encoder,
			zapcore.Lock(zapcore.AddSync(writer)),
			zap.NewAtomicLevelAt(logLevel.ZapLevel()),
		),
	), nil
}

func getZapEncoder(writer io.Writer, logFormat LogFormat) (zapcore.Encoder, error) {
	switch logFormat {
	case LogFormatText:
		return zapcore.NewConsoleEncoder(newTextEncoderConfig(false)), nil
	case LogFormatColor:
		return zapcore.NewConsoleEncoder(newTextEncoderConfig(isTerminal(writer))), nil
	case LogFormatJSON:
		return zapcore.NewJSONEncoder(newJSONEncoderConfig()), nil
	default:
		return nil, fmt.Errorf("unknown appext.LogFormat: %v", logFormat)
	}
}

func newTextEncoderConfig(colored bool) zapcore.EncoderConfig {
	levelEncoder := zapcore.CapitalLevelEncoder
	if colored {
		levelEncoder = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.EncoderConfig{
		MessageKey:     "M",
		LevelKey:       "L",
		TimeKey:        "T",
		NameKey:        "N",
		CallerKey:      "C",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func newJSONEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
