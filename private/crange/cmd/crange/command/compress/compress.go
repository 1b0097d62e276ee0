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

package compress

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"github.com/ytoolshed/crange/private/pkg/app"
	"github.com/ytoolshed/crange/private/pkg/app/appcmd"
	"github.com/ytoolshed/crange/private/pkg/app/appext"
	"github.com/ytoolshed/crange/private/rangepkg/rangecompress"
	"github.com/ytoolshed/crange/private/rangepkg/rangeengine"
)

const separatorFlagName = "separator"

// NewCommand returns a new Command.
func NewCommand(
	name string,
	builder appext.SubCommandBuilder,
) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name + " [name...]",
		Short: "Compress node names into a range expression.",
		Long:  `If no names are given, they are read from stdin, separated by whitespace or commas.`,
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	Separator string
}

func newFlags() *flags {
	return &flags{}
}

func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(
		&f.Separator,
		separatorFlagName,
		rangecompress.DefaultSeparator,
		"The separator between compressed groups.",
	)
}

func run(
	ctx context.Context,
	container appext.Container,
	flags *flags,
) error {
	if flags.Separator == "" {
		return appcmd.NewInvalidArgumentErrorf("--%s must not be empty", separatorFlagName)
	}
	names := app.Args(container)
	if len(names) == 0 {
		data, err := io.ReadAll(container.Stdin())
		if err != nil {
			return err
		}
		names = splitNames(string(data))
	}
	// Compressing does not read cluster files, so the default engine is enough.
	engine, err := rangeengine.NewEngine(
		container.Logger(),
		rangeengine.EngineWithTracer(container.Tracer()),
	)
	if err != nil {
		return err
	}
	compressed, err := engine.Compress(ctx, names, rangeengine.CompressWithSeparator(flags.Separator))
	if err != nil {
		return err
	}
	if compressed == "" {
		return nil
	}
	_, err = container.Stdout().Write([]byte(compressed + "\n"))
	return err
}

func splitNames(data string) []string {
	return strings.FieldsFunc(
		data,
		func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		},
	)
}
