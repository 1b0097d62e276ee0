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

// Package rangetesting provides cluster file fixtures for tests.
package rangetesting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Clusters is a small cluster directory used across tests.
//
// web and db are regular clusters, all lists every cluster node, and HOSTS
// and GROUPS define groups and admins.
var Clusters = map[string]string{
	"web": `CLUSTER: web1..4
ALL:
  - "%web"
  - web10
ADMIN: alice
LB: lb1
`,
	"db": `CLUSTER:
  - db01..3
  - db05
ADMIN: bob
BACKUP: db01
`,
	"all": `CLUSTER: "%web,%db"
`,
	"broken": `CLUSTER:
  nested: map
`,
	"HOSTS": `alice: web1..4
bob: db01..3
`,
	"GROUPS": `ADMINS: alice,bob
`,
}

// WriteClusters writes cluster files to a new temporary directory and returns it.
func WriteClusters(t testing.TB, clusters map[string]string) string {
	t.Helper()
	dirPath := t.TempDir()
	for cluster, content := range clusters {
		WriteCluster(t, dirPath, cluster, content)
	}
	return dirPath
}

// WriteCluster writes one cluster file.
//
// The modification time is moved forward so that caches keyed by
// modification time see a change even within the filesystem time granularity.
func WriteCluster(t testing.TB, dirPath string, cluster string, content string) {
	t.Helper()
	filePath := filepath.Join(dirPath, cluster+".yaml")
	var modTime time.Time
	if fileInfo, err := os.Stat(filePath); err == nil {
		modTime = fileInfo.ModTime().Add(time.Second)
	}
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0600))
	if !modTime.IsZero() {
		require.NoError(t, os.Chtimes(filePath, modTime, modTime))
	}
}
