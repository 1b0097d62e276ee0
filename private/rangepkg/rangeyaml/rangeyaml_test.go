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

package rangeyaml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytoolshed/crange/private/pkg/filelock"
	"github.com/ytoolshed/crange/private/rangepkg/rangeeval"
	"github.com/ytoolshed/crange/private/rangepkg/rangeparse"
	"github.com/ytoolshed/crange/private/rangepkg/rangetesting"
	"go.uber.org/zap"
)

func TestCluster(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	testExpand(t, store, "%web", []string{"web1", "web2", "web3", "web4"})
	testExpand(t, store, "%web:ALL", []string{"web1", "web2", "web3", "web4", "web10"})
	testExpand(t, store, "%db", []string{"db01", "db02", "db03", "db05"})
	testExpand(t, store, "%web:KEYS", []string{"CLUSTER", "ALL", "ADMIN", "LB"})
	testExpand(t, store, "%all", []string{"web1", "web2", "web3", "web4", "db01", "db02", "db03", "db05"})
	testExpand(t, store, "%{web,db}:ADMIN", []string{"alice", "bob"})
	testExpand(t, store, "%all,-%web", []string{"db01", "db02", "db03", "db05"})
	testExpand(t, store, "%all,&/^db0[12]/", []string{"db01", "db02"})
}

func TestFunctions(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	testExpand(t, store, "mem(web;lb1)", []string{"LB"})
	testExpand(t, store, "mem(web;web2)", []string{"CLUSTER", "ALL"})
	testExpand(t, store, "has(ADMIN;alice)", []string{"web"})
	testExpand(t, store, "has(BACKUP;db01)", []string{"db"})
	testExpand(t, store, "clusters(web1)", []string{"all", "web"})
	testExpand(t, store, "get_groups(db05)", []string{"all", "db"})
	testExpand(t, store, "get_cluster(db05)", []string{"all"})
	testExpand(t, store, "@alice", []string{"web1", "web2", "web3", "web4"})
	testExpand(t, store, "@ADMINS", []string{"alice", "bob"})
	testExpand(t, store, "get_admin(web2,db03)", []string{"alice", "bob"})
	testExpand(t, store, "allclusters()", []string{"GROUPS", "HOSTS", "all", "broken", "db", "web"})
	testExpand(t, store, "/^web[34]$/", []string{"web3", "web4"})
	testExpand(t, store, "!web1", []string{"web2", "web3", "web4", "db01", "db02", "db03", "db05"})
}

func TestWarnings(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	testWarnings(t, store, "%nosuch", "NOCLUSTERDEF: nosuch")
	testWarnings(t, store, "%web:NOPE", "NOCLUSTER: web:NOPE")
	testWarnings(t, store, "%.hidden", "NOCLUSTERDEF: .hidden")
	testWarnings(t, store, "get_cluster(web99)", "NO_CLUSTER: web99")
	testWarnings(t, store, "get_admin(web99)", "NO_ADMIN: web99")
	testWarnings(t, store, "has(ADMIN;nobody)", "")
	testWarnings(t, store, "clusters(web1)", "")
	set, warnings := testEvaluate(t, store, "%broken")
	assert.Nil(t, set)
	assert.Contains(t, warnings.String(), "broken: malformed cluster definition")

	store.SetDir(filepath.Join(t.TempDir(), "missing"))
	_, warnings = testEvaluate(t, store, "allclusters()")
	assert.Contains(t, warnings.String(), "can't opendir")
}

func TestLoop(t *testing.T) {
	t.Parallel()
	dirPath := rangetesting.WriteClusters(t, map[string]string{"loop": "CLUSTER: \"%loop\"\n"})
	store := NewStore(zap.NewNop(), dirPath)
	_, err := evaluate(t, store, "%loop")
	require.Error(t, err)
	assert.True(t, rangeeval.IsMaxDepth(err))
}

func TestEmptyCluster(t *testing.T) {
	t.Parallel()
	dirPath := rangetesting.WriteClusters(t, map[string]string{"empty": ""})
	store := NewStore(zap.NewNop(), dirPath)
	testExpand(t, store, "%empty:KEYS", nil)
	testWarnings(t, store, "%empty", "NOCLUSTER: empty:CLUSTER")
}

func TestCaching(t *testing.T) {
	t.Parallel()
	dirPath := rangetesting.WriteClusters(t, rangetesting.Clusters)
	store := NewStore(zap.NewNop(), dirPath)
	testExpand(t, store, "%web", []string{"web1", "web2", "web3", "web4"})
	assert.Equal(t, 1, store.CacheLen())

	generation := store.Generation()
	testExpand(t, store, "%web", []string{"web1", "web2", "web3", "web4"})
	assert.Equal(t, generation, store.Generation())

	rangetesting.WriteCluster(t, dirPath, "web", "CLUSTER: web5..6\n")
	testExpand(t, store, "%web", []string{"web5", "web6"})
	assert.Equal(t, 1, store.CacheLen())
	assert.Greater(t, store.Generation(), generation)

	generation = store.Generation()
	store.ClearCache()
	assert.Equal(t, 0, store.CacheLen())
	assert.Greater(t, store.Generation(), generation)
	store.SetCaching(false)
	testExpand(t, store, "%web", []string{"web5", "web6"})
	assert.Equal(t, 0, store.CacheLen())

	store = NewStore(zap.NewNop(), dirPath, StoreWithCaching(false))
	testExpand(t, store, "%db", []string{"db01", "db02", "db03", "db05"})
	assert.Equal(t, 0, store.CacheLen())
}

func TestWriterSetSection(t *testing.T) {
	t.Parallel()
	dirPath := rangetesting.WriteClusters(t, rangetesting.Clusters)
	store := NewStore(zap.NewNop(), dirPath)
	writer := NewWriter(zap.NewNop(), store)
	ctx := context.Background()

	testExpand(t, store, "%web:LB", []string{"lb1"})
	require.NoError(t, writer.SetSection(ctx, "web", "LB", []string{"lb1..2"}))
	testExpand(t, store, "%web:LB", []string{"lb1", "lb2"})
	testExpand(t, store, "%web:ALL", []string{"web1", "web2", "web3", "web4", "web10"})

	require.NoError(t, writer.SetSection(ctx, "web", "CACHE", []string{"cache1", "cache5"}))
	testExpand(t, store, "%web:CACHE", []string{"cache1", "cache5"})
	testExpand(t, store, "%web:KEYS", []string{"CLUSTER", "ALL", "ADMIN", "LB", "CACHE"})

	require.NoError(t, writer.SetSection(ctx, "mq", SectionCluster, []string{"mq1..2"}))
	testExpand(t, store, "%mq", []string{"mq1", "mq2"})
	data, err := os.ReadFile(filepath.Join(dirPath, "mq.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "CLUSTER: mq1..2\n", string(data))

	require.Error(t, writer.SetSection(ctx, "../web", SectionCluster, []string{"web1"}))
	require.Error(t, writer.SetSection(ctx, "web", SectionKeys, []string{"web1"}))
	require.Error(t, writer.SetSection(ctx, "web", "LB", nil))
	rangetesting.WriteCluster(t, dirPath, "list", "- web1\n")
	require.Error(t, writer.SetSection(ctx, "list", "LB", []string{"lb1"}))
}

func TestWriterLockTimeout(t *testing.T) {
	t.Parallel()
	dirPath := rangetesting.WriteClusters(t, rangetesting.Clusters)
	store := NewStore(zap.NewNop(), dirPath)
	writer := NewWriter(zap.NewNop(), store, WriterWithLockTimeout(50*time.Millisecond))
	ctx := context.Background()

	locker, err := filelock.NewLocker(dirPath)
	require.NoError(t, err)
	unlocker, err := locker.Lock(ctx, "web.yaml.lock")
	require.NoError(t, err)
	err = writer.SetSection(ctx, "web", "LB", []string{"lb2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not lock")
	testExpand(t, store, "%web:LB", []string{"lb1"})

	require.NoError(t, unlocker.Unlock())
	require.NoError(t, writer.SetSection(ctx, "web", "LB", []string{"lb2"}))
	testExpand(t, store, "%web:LB", []string{"lb2"})
}

func TestWatch(t *testing.T) {
	t.Parallel()
	dirPath := rangetesting.WriteClusters(t, rangetesting.Clusters)
	store := NewStore(zap.NewNop(), dirPath)
	testExpand(t, store, "%web", []string{"web1", "web2", "web3", "web4"})
	require.Equal(t, 1, store.CacheLen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, zap.NewNop(), store)
	}()
	// Keep rewriting until the watcher has started and sees a change.
	require.Eventually(
		t,
		func() bool {
			content := "CLUSTER: web" + time.Now().Format("150405.000000000") + "\n"
			if err := os.WriteFile(filepath.Join(dirPath, "web.yaml"), []byte(content), 0600); err != nil {
				return false
			}
			return store.CacheLen() == 0
		},
		5*time.Second,
		50*time.Millisecond,
	)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return")
	}
}

func testExpand(t *testing.T, store *Store, expression string, expected []string) {
	t.Helper()
	set, warnings := testEvaluate(t, store, expression)
	assert.False(t, warnings.Has(), "%s: %s", expression, warnings.String())
	assert.Empty(t, cmp.Diff(expected, set), expression)
}

func testWarnings(t *testing.T, store *Store, expression string, expected string) {
	t.Helper()
	_, warnings := testEvaluate(t, store, expression)
	assert.Equal(t, expected, warnings.String(), expression)
}

func testEvaluate(t *testing.T, store *Store, expression string) ([]string, *rangeeval.Warnings) {
	t.Helper()
	registry := rangeeval.NewRegistry()
	require.NoError(t, registry.Register(store, ""))
	request := rangeeval.NewEvaluator(zap.NewNop(), registry).NewRequest()
	node, err := rangeparse.Parse(expression)
	require.NoError(t, err)
	set, err := request.Evaluate(context.Background(), node)
	require.NoError(t, err, expression)
	return set.Names(), request.Warnings()
}

func evaluate(t *testing.T, store *Store, expression string) ([]string, error) {
	t.Helper()
	registry := rangeeval.NewRegistry()
	require.NoError(t, registry.Register(store, ""))
	request := rangeeval.NewEvaluator(zap.NewNop(), registry).NewRequest()
	node, err := rangeparse.Parse(expression)
	require.NoError(t, err)
	set, err := request.Evaluate(context.Background(), node)
	if err != nil {
		return nil, err
	}
	return set.Names(), nil
}

func newTestStore(t *testing.T) *Store {
	return NewStore(zap.NewNop(), rangetesting.WriteClusters(t, rangetesting.Clusters))
}
