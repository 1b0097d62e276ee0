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

package parse

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ytoolshed/crange/private/crange/rangecli"
	"github.com/ytoolshed/crange/private/pkg/app"
	"github.com/ytoolshed/crange/private/pkg/app/appcmd"
	"github.com/ytoolshed/crange/private/pkg/app/appext"
	"github.com/ytoolshed/crange/private/rangepkg/rangeengine"
	"github.com/ytoolshed/crange/private/rangepkg/rangeparse"
)

const astFlagName = "ast"

// NewCommand returns a new Command.
func NewCommand(
	name string,
	builder appext.SubCommandBuilder,
) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name + " <range>",
		Short: "Print the canonical form of a range expression.",
		Long: `The canonical form is the compressed expansion of the expression.
With --ast, the expression is only parsed and its syntax tree is printed.`,
		Args: cobra.ExactArgs(1),
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	AST         bool
	EngineFlags *rangecli.EngineFlags
}

func newFlags() *flags {
	return &flags{
		EngineFlags: rangecli.NewEngineFlags(),
	}
}

func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.BoolVar(
		&f.AST,
		astFlagName,
		false,
		"Print the syntax tree instead of the canonical form.",
	)
	f.EngineFlags.Bind(flagSet)
}

func run(
	ctx context.Context,
	container appext.Container,
	flags *flags,
) error {
	expression := app.Args(container)[0]
	if flags.AST {
		node, err := rangeparse.Parse(expression)
		if err != nil {
			return appcmd.NewInvalidArgumentError(err.Error())
		}
		_, err = container.Stdout().Write([]byte(node.String() + "\n"))
		return err
	}
	var warnings []rangeengine.Warning
	engine, err := rangecli.NewEngine(
		container,
		flags.EngineFlags,
		rangeengine.EngineWithWarningHandler(func(warning rangeengine.Warning) {
			warnings = append(warnings, warning)
		}),
	)
	if err != nil {
		return err
	}
	canonical, err := engine.Parse(ctx, expression)
	if err != nil {
		return err
	}
	if _, err := container.Stdout().Write([]byte(canonical + "\n")); err != nil {
		return err
	}
	return rangecli.PrintWarnings(container.Stderr(), warnings)
}
