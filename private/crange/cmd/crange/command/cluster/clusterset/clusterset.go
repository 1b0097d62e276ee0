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

package clusterset

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ytoolshed/crange/private/crange/rangecli"
	"github.com/ytoolshed/crange/private/pkg/app"
	"github.com/ytoolshed/crange/private/pkg/app/appcmd"
	"github.com/ytoolshed/crange/private/pkg/app/appext"
	"github.com/ytoolshed/crange/private/pkg/filelock"
	"github.com/ytoolshed/crange/private/rangepkg/rangeyaml"
	"go.uber.org/zap"
)

const lockTimeoutFlagName = "lock-timeout"

// NewCommand returns a new Command.
func NewCommand(
	name string,
	builder appext.SubCommandBuilder,
) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name + " <cluster> <section> <value>...",
		Short: "Set a section of a cluster file.",
		Long: `The cluster file is created if it does not exist. A single value is written
as a scalar, several values as a list. Other sections are kept.`,
		Args: cobra.MinimumNArgs(3),
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	LockTimeout time.Duration
	EngineFlags *rangecli.EngineFlags
}

func newFlags() *flags {
	return &flags{
		EngineFlags: rangecli.NewEngineFlags(),
	}
}

func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.DurationVar(
		&f.LockTimeout,
		lockTimeoutFlagName,
		filelock.DefaultLockTimeout,
		"How long to wait for another writer of the cluster file. 0 waits until --timeout.",
	)
	f.EngineFlags.Bind(flagSet)
}

func run(
	ctx context.Context,
	container appext.Container,
	flags *flags,
) error {
	args := app.Args(container)
	cluster, section, values := args[0], args[1], args[2:]
	engine, err := rangecli.NewEngine(container, flags.EngineFlags)
	if err != nil {
		return err
	}
	writer := rangeyaml.NewWriter(
		container.Logger(),
		engine.Store(),
		rangeyaml.WriterWithLockTimeout(flags.LockTimeout),
	)
	if err := writer.SetSection(ctx, cluster, section, values); err != nil {
		return err
	}
	container.Logger().Info(
		"set",
		zap.String("cluster", cluster),
		zap.String("section", section),
		zap.Int("values", len(values)),
	)
	return nil
}
