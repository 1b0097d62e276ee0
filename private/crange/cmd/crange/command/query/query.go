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

package query

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ytoolshed/crange/private/crange/rangecli"
	"github.com/ytoolshed/crange/private/pkg/app"
	"github.com/ytoolshed/crange/private/pkg/app/appcmd"
	"github.com/ytoolshed/crange/private/pkg/app/appext"
	"github.com/ytoolshed/crange/private/pkg/transport/http/httpclient"
	"github.com/ytoolshed/crange/private/rangepkg/rangeclient"
)

const (
	hostFlagName      = "host"
	listFlagName      = "list"
	listFlagShortName = "e"
	h2cFlagName       = "h2c"
	tlsCAFlagName     = "tls-ca"
)

// NewCommand returns a new Command.
func NewCommand(
	name string,
	builder appext.SubCommandBuilder,
) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name + " <range>...",
		Short: "Expand a range expression on a range server.",
		Long:  `Multiple arguments are joined with ",". Long expressions are split into several queries.`,
		Args:  cobra.MinimumNArgs(1),
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	Host  string
	List  bool
	H2C   bool
	TLSCA string
}

func newFlags() *flags {
	return &flags{}
}

func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(
		&f.Host,
		hostFlagName,
		"",
		"The range server. Defaults to server.host in config.yaml, then "+rangecli.DefaultHost+".",
	)
	flagSet.BoolVarP(
		&f.List,
		listFlagName,
		listFlagShortName,
		false,
		"Print one name per line instead of the compressed form.",
	)
	flagSet.BoolVar(
		&f.H2C,
		h2cFlagName,
		false,
		"Use HTTP/2 without TLS.",
	)
	flagSet.StringVar(
		&f.TLSCA,
		tlsCAFlagName,
		"",
		"A PEM file of certificate authorities to verify an https:// host with, instead of the system roots.",
	)
}

func run(
	ctx context.Context,
	container appext.Container,
	flags *flags,
) error {
	host := flags.Host
	if host == "" {
		config, err := rangecli.ReadConfig(container)
		if err != nil {
			return err
		}
		host = config.Server.Host
	}
	if host == "" {
		host = rangecli.DefaultHost
	}
	if err := appcmd.ValidateHostHasNoPaths(host); err != nil {
		return err
	}
	var clientOptions []httpclient.ClientOption
	if flags.H2C {
		clientOptions = append(clientOptions, httpclient.WithH2C())
	}
	if flags.TLSCA != "" {
		tlsConfig, err := newTLSConfig(flags.TLSCA)
		if err != nil {
			return err
		}
		clientOptions = append(clientOptions, httpclient.WithTLSConfig(tlsConfig))
	}
	client := rangeclient.NewClient(
		host,
		rangeclient.ClientWithHTTPClient(httpclient.NewClient(clientOptions...)),
		rangeclient.ClientWithUserAgent(container.AppName()+"/"+rangecli.Version),
	)
	expression := strings.Join(app.Args(container), ",")
	if flags.List {
		names, err := client.Expand(ctx, expression)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return nil
		}
		_, err = container.Stdout().Write([]byte(strings.Join(names, "\n") + "\n"))
		return err
	}
	collapsed, err := client.Collapse(ctx, expression)
	if err != nil {
		return err
	}
	_, err = container.Stdout().Write([]byte(collapsed + "\n"))
	return err
}

func newTLSConfig(caFilePath string) (*tls.Config, error) {
	data, err := os.ReadFile(caFilePath)
	if err != nil {
		return nil, appcmd.NewInvalidArgumentErrorf("--%s: %v", tlsCAFlagName, err)
	}
	rootCAs := x509.NewCertPool()
	if !rootCAs.AppendCertsFromPEM(data) {
		return nil, appcmd.NewInvalidArgumentErrorf("--%s: no certificates in %s", tlsCAFlagName, caFilePath)
	}
	return &tls.Config{
		RootCAs:    rootCAs,
		MinVersion: tls.VersionTLS12,
	}, nil
}
