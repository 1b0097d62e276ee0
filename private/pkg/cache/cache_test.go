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

package cache

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrAdd(t *testing.T) {
	t.Parallel()
	var c Cache[string, []string]
	calls := 0
	get := func() ([]string, error) {
		calls++
		return []string{"foo1", "foo2"}, nil
	}
	value, err := c.GetOrAdd("foo1..2", get)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo1", "foo2"}, value)
	value, err = c.GetOrAdd("foo1..2", get)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo1", "foo2"}, value)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), c.Hits())
	assert.Equal(t, int64(1), c.Misses())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, err = c.GetOrAdd("foo1..2", get)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestErrorsNotCached(t *testing.T) {
	t.Parallel()
	var c Cache[string, int]
	_, err := c.GetOrAdd("key", func() (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)
	value, err := c.GetOrAdd("key", func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, value)
}

func TestDeleteFunc(t *testing.T) {
	t.Parallel()
	var c Cache[string, int]
	c.Put("/etc/range/a.yaml", 1)
	c.Put("/etc/range/b.yaml", 2)
	c.Put("/tmp/c.yaml", 3)
	c.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, "/etc/range/") })
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("/etc/range/a.yaml")
	assert.False(t, ok)
	value, ok := c.Get("/tmp/c.yaml")
	assert.True(t, ok)
	assert.Equal(t, 3, value)
	c.Delete("/tmp/c.yaml")
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentGetOrAdd(t *testing.T) {
	t.Parallel()
	var c Cache[int, int]
	var waitGroup sync.WaitGroup
	for i := 0; i < 64; i++ {
		waitGroup.Add(1)
		go func(i int) {
			defer waitGroup.Done()
			value, err := c.GetOrAdd(i%4, func() (int, error) { return i % 4, nil })
			assert.NoError(t, err)
			assert.Equal(t, i%4, value)
		}(i)
	}
	waitGroup.Wait()
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, int64(4), c.Misses())
}
