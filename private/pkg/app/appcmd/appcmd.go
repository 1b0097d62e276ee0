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

// Package appcmd contains helper functionality for applications using commands.
package appcmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ytoolshed/crange/private/pkg/app"
)

// ExitCodeInvalidArgument is the exit code used for invalid arguments and flags.
const ExitCodeInvalidArgument = 2

// Command is a command.
type Command struct {
	// Use is the one-line usage message.
	// Required.
	Use string
	// Aliases are aliases that can be used instead of the first word in Use.
	Aliases []string
	// Short is the short message shown in the 'help' output.
	// Required if Long is set.
	Short string
	// Long is the long message shown in the 'help <this-command>' output.
	// The Short field will be prepended to the Long field with two newlines.
	// Must be unset if short is unset.
	Long string
	// Args are the expected arguments.
	Args cobra.PositionalArgs
	// Deprecated says to print this deprecation string.
	Deprecated string
	// Hidden says to hide this command.
	Hidden bool
	// BindFlags allows binding of flags on build.
	BindFlags func(*pflag.FlagSet)
	// BindPersistentFlags allows binding of flags on build.
	BindPersistentFlags func(*pflag.FlagSet)
	// Run is the command to run.
	// Required if there are no sub-commands.
	// Must be unset if there are sub-commands.
	Run func(context.Context, app.Container) error
	// SubCommands are the sub-commands. Optional.
	// Must be unset if there is a run function.
	SubCommands []*Command
	// Version the version of the command.
	//
	// If this is specified, a flag --version will be added to the command
	// that precedes all other functionality, and which prints the version
	// to stdout.
	Version string
}

// NewInvalidArgumentError creates a new invalid argument error.
func NewInvalidArgumentError(message string) error {
	return newInvalidArgumentError(errors.New(message))
}

// NewInvalidArgumentErrorf creates a new invalid argument error.
func NewInvalidArgumentErrorf(format string, args ...interface{}) error {
	return newInvalidArgumentError(fmt.Errorf(format, args...))
}

// Main runs the application using the OS container and calling os.Exit on the return value of Run.
func Main(ctx context.Context, command *Command) {
	app.Main(ctx, func(ctx context.Context, container app.Container) error {
		return Run(ctx, container, command)
	})
}

// Run runs the application using the container.
//
// Invalid argument errors print the usage of the failing command to stderr
// and are returned with ExitCodeInvalidArgument.
func Run(ctx context.Context, container app.Container, command *Command) error {
	var runErr error
	cobraCommand, err := commandToCobra(ctx, container, command, &runErr)
	if err != nil {
		return err
	}
	args := app.Args(container)[1:]
	cobraCommand.SetArgs(args)
	// Help and version are requested output and go to stdout, anything else cobra prints goes to stderr.
	if isHelpOrVersion(args) {
		cobraCommand.SetOut(container.Stdout())
	} else {
		cobraCommand.SetOut(container.Stderr())
	}
	cobraCommand.SetErr(container.Stderr())
	executedCommand, err := cobraCommand.ExecuteC()
	if err != nil {
		invalidArgumentError := &invalidArgumentError{}
		if errors.As(err, &invalidArgumentError) || isCobraUsageError(err) {
			if executedCommand != nil {
				executedCommand.SetOut(container.Stderr())
				_ = executedCommand.Usage()
			}
			return app.WrapError(ExitCodeInvalidArgument, err)
		}
		return err
	}
	invalidArgumentError := &invalidArgumentError{}
	if errors.As(runErr, &invalidArgumentError) && app.GetExitCode(runErr) != ExitCodeInvalidArgument {
		return app.WrapError(ExitCodeInvalidArgument, runErr)
	}
	return runErr
}

func commandToCobra(
	ctx context.Context,
	container app.Container,
	command *Command,
	runErrAddr *error,
) (*cobra.Command, error) {
	if err := commandValidate(command); err != nil {
		return nil, err
	}
	cobraCommand := &cobra.Command{
		Use:        command.Use,
		Aliases:    command.Aliases,
		Args:       wrapPositionalArgs(command.Args),
		Deprecated: command.Deprecated,
		Hidden:     command.Hidden,
		Short:      strings.TrimSpace(command.Short),
	}
	cobraCommand.SetErrPrefix("Failure:")
	cobraCommand.SilenceErrors = true
	cobraCommand.SilenceUsage = true
	cobraCommand.SetFlagErrorFunc(
		func(_ *cobra.Command, err error) error {
			return newInvalidArgumentError(err)
		},
	)
	if command.Long != "" {
		cobraCommand.Long = cobraCommand.Short + "\n\n" + strings.TrimSpace(command.Long)
	}
	if command.BindFlags != nil {
		command.BindFlags(cobraCommand.Flags())
	}
	if command.BindPersistentFlags != nil {
		command.BindPersistentFlags(cobraCommand.PersistentFlags())
	}
	if command.Version != "" {
		cobraCommand.Version = command.Version
		cobraCommand.SetVersionTemplate("{{.Version}}\n")
	}
	if command.Run != nil {
		cobraCommand.Run = func(_ *cobra.Command, args []string) {
			*runErrAddr = command.Run(ctx, app.NewContainerForArgs(container, args...))
		}
	}
	if len(command.SubCommands) > 0 {
		// command.Run will not be set per validation
		cobraCommand.Run = func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				*runErrAddr = newInvalidArgumentError(errors.New("a sub-command is required"))
			} else {
				*runErrAddr = newInvalidArgumentError(fmt.Errorf("unknown command %q", args[0]))
			}
			cmd.SetOut(container.Stderr())
			_ = cmd.Usage()
			*runErrAddr = app.WrapError(ExitCodeInvalidArgument, *runErrAddr)
		}
		for _, subCommand := range command.SubCommands {
			subCobraCommand, err := commandToCobra(ctx, container, subCommand, runErrAddr)
			if err != nil {
				return nil, err
			}
			cobraCommand.AddCommand(subCobraCommand)
		}
		// Hide the default completion command.
		cobraCommand.CompletionOptions.DisableDefaultCmd = true
	}
	return cobraCommand, nil
}

func commandValidate(command *Command) error {
	if command.Use == "" {
		return errors.New("must set Command.Use")
	}
	if command.Long != "" && command.Short == "" {
		return fmt.Errorf("must set Command.Short if Command.Long is set for %q", command.Use)
	}
	if command.Run != nil && len(command.SubCommands) > 0 {
		return fmt.Errorf("cannot set both Command.Run and Command.SubCommands for %q", command.Use)
	}
	if command.Run == nil && len(command.SubCommands) == 0 {
		return fmt.Errorf("must set one of Command.Run and Command.SubCommands for %q", command.Use)
	}
	return nil
}

func wrapPositionalArgs(positionalArgs cobra.PositionalArgs) cobra.PositionalArgs {
	if positionalArgs == nil {
		return nil
	}
	return func(cmd *cobra.Command, args []string) error {
		if err := positionalArgs(cmd, args); err != nil {
			return newInvalidArgumentError(err)
		}
		return nil
	}
}

func isHelpOrVersion(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "help", "-h", "--help", "--version":
			return true
		}
	}
	return false
}

// isCobraUsageError detects the errors cobra returns for unknown commands,
// which do not pass through the flag error func.
func isCobraUsageError(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command ")
}

type invalidArgumentError struct {
	err error
}

func newInvalidArgumentError(err error) *invalidArgumentError {
	return &invalidArgumentError{
		err: err,
	}
}

func (e *invalidArgumentError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *invalidArgumentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}
