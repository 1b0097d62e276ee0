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

package expand

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ytoolshed/crange/private/crange/rangecli"
	"github.com/ytoolshed/crange/private/pkg/app"
	"github.com/ytoolshed/crange/private/pkg/app/appcmd"
	"github.com/ytoolshed/crange/private/pkg/app/appext"
	"github.com/ytoolshed/crange/private/rangepkg/rangeengine"
)

const (
	listFlagName      = "list"
	listFlagShortName = "e"
	sortedFlagName    = "sorted"
)

// NewCommand returns a new Command.
func NewCommand(
	name string,
	builder appext.SubCommandBuilder,
) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name + " <range>...",
		Short: "Expand a range expression.",
		Long: `Expand a range expression and print it compressed.

Multiple arguments are joined with ",". Warnings are printed to stderr after the result.`,
		Args: cobra.MinimumNArgs(1),
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	List        bool
	Sorted      bool
	EngineFlags *rangecli.EngineFlags
}

func newFlags() *flags {
	return &flags{
		EngineFlags: rangecli.NewEngineFlags(),
	}
}

func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.BoolVarP(
		&f.List,
		listFlagName,
		listFlagShortName,
		false,
		"Print one name per line instead of the compressed form.",
	)
	flagSet.BoolVar(
		&f.Sorted,
		sortedFlagName,
		false,
		fmt.Sprintf("Sort the names printed with --%s.", listFlagName),
	)
	f.EngineFlags.Bind(flagSet)
}

func run(
	ctx context.Context,
	container appext.Container,
	flags *flags,
) error {
	if flags.Sorted && !flags.List {
		return appcmd.NewInvalidArgumentErrorf("--%s requires --%s", sortedFlagName, listFlagName)
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
	expression := strings.Join(app.Args(container), ",")
	var output string
	switch {
	case flags.List && flags.Sorted:
		names, err := engine.ExpandSorted(ctx, expression)
		if err != nil {
			return err
		}
		output = joinLines(names)
	case flags.List:
		names, err := engine.Expand(ctx, expression)
		if err != nil {
			return err
		}
		output = joinLines(names)
	default:
		compressed, err := engine.Parse(ctx, expression)
		if err != nil {
			return err
		}
		output = compressed + "\n"
	}
	if _, err := container.Stdout().Write([]byte(output)); err != nil {
		return err
	}
	return rangecli.PrintWarnings(container.Stderr(), warnings)
}

func joinLines(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "\n") + "\n"
}
