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

package serve

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ytoolshed/crange/private/crange/rangecli"
	"github.com/ytoolshed/crange/private/pkg/app/appcmd"
	"github.com/ytoolshed/crange/private/pkg/app/appext"
	"github.com/ytoolshed/crange/private/pkg/transport/http/httpserver"
	"github.com/ytoolshed/crange/private/rangepkg/rangehttp"
	"github.com/ytoolshed/crange/private/rangepkg/rangeyaml"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	portFlagName              = "port"
	watchFlagName             = "watch"
	logRequestsFlagName       = "log-requests"
	corsOriginFlagName        = "cors-origin"
	tlsCertFlagName           = "tls-cert"
	tlsKeyFlagName            = "tls-key"
	readHeaderTimeoutFlagName = "read-header-timeout"
)

// NewCommand returns a new Command.
func NewCommand(
	name string,
	builder appext.SubCommandBuilder,
) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Serve range expressions over HTTP.",
		Long:  `Serves /range/list, /range/expand and /range/version until interrupted.`,
		Args:  cobra.NoArgs,
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	Port              uint16
	Watch             bool
	LogRequests       bool
	CORSOrigins       []string
	TLSCert           string
	TLSKey            string
	ReadHeaderTimeout time.Duration
	EngineFlags       *rangecli.EngineFlags
}

func newFlags() *flags {
	return &flags{
		EngineFlags: rangecli.NewEngineFlags(),
	}
}

func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.Uint16Var(
		&f.Port,
		portFlagName,
		0,
		fmt.Sprintf(
			"The port to listen on. Defaults to $CRANGE_PORT, $PORT, server.port in config.yaml, then %d.",
			rangecli.DefaultPort,
		),
	)
	flagSet.BoolVar(
		&f.Watch,
		watchFlagName,
		false,
		"Drop cached cluster files as soon as they change.",
	)
	flagSet.BoolVar(
		&f.LogRequests,
		logRequestsFlagName,
		false,
		"Log every request and its expression.",
	)
	flagSet.StringSliceVar(
		&f.CORSOrigins,
		corsOriginFlagName,
		nil,
		"An origin allowed to make cross-origin requests. May be repeated.",
	)
	flagSet.StringVar(
		&f.TLSCert,
		tlsCertFlagName,
		"",
		"The PEM certificate file to serve HTTPS with. Requires --"+tlsKeyFlagName+".",
	)
	flagSet.StringVar(
		&f.TLSKey,
		tlsKeyFlagName,
		"",
		"The PEM private key file of --"+tlsCertFlagName+".",
	)
	flagSet.DurationVar(
		&f.ReadHeaderTimeout,
		readHeaderTimeoutFlagName,
		httpserver.DefaultReadHeaderTimeout,
		"How long a client may take to send request headers. 0 means no limit.",
	)
	f.EngineFlags.Bind(flagSet)
}

func run(
	ctx context.Context,
	container appext.Container,
	flags *flags,
) error {
	logger := container.Logger()
	tlsConfig, err := newTLSConfig(flags.TLSCert, flags.TLSKey)
	if err != nil {
		return err
	}
	engine, err := rangecli.NewEngine(container, flags.EngineFlags)
	if err != nil {
		return err
	}
	listener, err := listen(ctx, container, flags.Port)
	if err != nil {
		return err
	}
	runnerOptions := []httpserver.RunnerOption{
		httpserver.RunnerWithHealth(),
		httpserver.RunnerWithSilentEndpoints("/health"),
		httpserver.RunnerWithMaxBodySize(rangehttp.MaxBodySize),
		httpserver.RunnerWithReadHeaderTimeout(flags.ReadHeaderTimeout),
	}
	if tlsConfig != nil {
		runnerOptions = append(runnerOptions, httpserver.RunnerWithTLSConfig(tlsConfig))
	}
	if !flags.LogRequests {
		runnerOptions = append(runnerOptions, httpserver.RunnerWithoutRequestLogging())
	}
	runner := httpserver.NewRunner(logger, runnerOptions...)
	handler := rangehttp.NewHandler(
		logger,
		engine,
		rangehttp.HandlerWithLogRequests(flags.LogRequests),
		rangehttp.HandlerWithCORSOrigins(flags.CORSOrigins...),
	)
	logger.Info(
		"serving",
		zap.String("address", listener.Addr().String()),
		zap.String("yaml_path", engine.Store().Dir()),
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return runner.Run(ctx, listener, handler)
	})
	if flags.Watch {
		eg.Go(func() error {
			return rangeyaml.Watch(ctx, logger, engine.Store())
		})
	}
	return eg.Wait()
}

// newTLSConfig returns nil if neither file is set.
func newTLSConfig(certFilePath string, keyFilePath string) (*tls.Config, error) {
	if certFilePath == "" && keyFilePath == "" {
		return nil, nil
	}
	if certFilePath == "" || keyFilePath == "" {
		return nil, appcmd.NewInvalidArgumentErrorf("--%s and --%s must be set together", tlsCertFlagName, tlsKeyFlagName)
	}
	certificate, err := tls.LoadX509KeyPair(certFilePath, keyFilePath)
	if err != nil {
		return nil, appcmd.NewInvalidArgumentErrorf("--%s: %v", tlsCertFlagName, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{certificate},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// listen listens on the flag port, or else on the container port with the
// configured port as the fallback.
func listen(ctx context.Context, container appext.Container, port uint16) (net.Listener, error) {
	if port != 0 {
		var listenConfig net.ListenConfig
		return listenConfig.Listen(ctx, "tcp", fmt.Sprintf("0.0.0.0:%d", port))
	}
	config, err := rangecli.ReadConfig(container)
	if err != nil {
		return nil, err
	}
	defaultPort := rangecli.DefaultPort
	if config.Server.Port != 0 {
		defaultPort = config.Server.Port
	}
	return appext.Listen(ctx, container, defaultPort)
}
