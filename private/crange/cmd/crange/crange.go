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

// Package crange contains the crange command.
package crange

import (
	"github.com/ytoolshed/crange/private/crange/cmd/crange/command/cluster"
	"github.com/ytoolshed/crange/private/crange/cmd/crange/command/compress"
	"github.com/ytoolshed/crange/private/crange/cmd/crange/command/expand"
	"github.com/ytoolshed/crange/private/crange/cmd/crange/command/parse"
	"github.com/ytoolshed/crange/private/crange/cmd/crange/command/query"
	"github.com/ytoolshed/crange/private/crange/cmd/crange/command/serve"
	"github.com/ytoolshed/crange/private/crange/cmd/crange/command/version"
	"github.com/ytoolshed/crange/private/crange/rangecli"
	"github.com/ytoolshed/crange/private/pkg/app/appcmd"
	"github.com/ytoolshed/crange/private/pkg/app/appext"
)

// NewRootCommand returns a new root command.
func NewRootCommand(name string) *appcmd.Command {
	builder := appext.NewBuilder(
		name,
		appext.BuilderWithInterceptor(rangecli.NewErrorInterceptor()),
	)
	return &appcmd.Command{
		Use:                 name,
		Short:               "Expand, compress and serve range expressions.",
		Version:             rangecli.Version,
		BindPersistentFlags: builder.BindRoot,
		SubCommands: []*appcmd.Command{
			expand.NewCommand("expand", builder),
			compress.NewCommand("compress", builder),
			parse.NewCommand("parse", builder),
			serve.NewCommand("serve", builder),
			query.NewCommand("query", builder),
			cluster.NewCommand("cluster", builder),
			version.NewCommand("version", builder),
		},
	}
}
