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

// Package cache provides a concurrency-safe in-memory cache.
package cache

import (
	"sync"

	"go.uber.org/atomic"
)

// Cache is a cache from K to V.
//
// It uses double-locking to get values. Errors returned by getUncached are
// never stored. The zero value is ready to use.
type Cache[K comparable, V any] struct {
	store map[K]V
	lock  sync.RWMutex

	hits   atomic.Int64
	misses atomic.Int64
}

// Get gets the value for the key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.lock.RLock()
	value, ok := c.store[key]
	c.lock.RUnlock()
	c.record(ok)
	return value, ok
}

// Put sets the value for the key.
func (c *Cache[K, V]) Put(key K, value V) {
	c.lock.Lock()
	if c.store == nil {
		c.store = make(map[K]V)
	}
	c.store[key] = value
	c.lock.Unlock()
}

// GetOrAdd gets the value for the key, or calls getUncached to get a new value,
// and then caches the value.
//
// If getUncached calls another Cache, the order of GetOrAdd calls between caches
// must be preserved for lock ordering. getUncached must not call back into this Cache.
func (c *Cache[K, V]) GetOrAdd(key K, getUncached func() (V, error)) (V, error) {
	c.lock.RLock()
	value, ok := c.store[key]
	c.lock.RUnlock()
	if ok {
		c.record(true)
		return value, nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.getOrAdd(key, getUncached)
}

// Delete deletes the value for the key, if present.
func (c *Cache[K, V]) Delete(key K) {
	c.lock.Lock()
	delete(c.store, key)
	c.lock.Unlock()
}

// DeleteFunc deletes all values whose key matches the function.
func (c *Cache[K, V]) DeleteFunc(f func(K) bool) {
	c.lock.Lock()
	for key := range c.store {
		if f(key) {
			delete(c.store, key)
		}
	}
	c.lock.Unlock()
}

// Clear deletes all values.
//
// Hit and miss counts are kept.
func (c *Cache[K, V]) Clear() {
	c.lock.Lock()
	c.store = nil
	c.lock.Unlock()
}

// Len returns the number of cached values.
func (c *Cache[K, V]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.store)
}

// Hits returns the number of lookups that found a cached value.
func (c *Cache[K, V]) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of lookups that did not find a cached value.
func (c *Cache[K, V]) Misses() int64 {
	return c.misses.Load()
}

func (c *Cache[K, V]) getOrAdd(key K, getUncached func() (V, error)) (V, error) {
	if c.store == nil {
		c.store = make(map[K]V)
	}
	if value, ok := c.store[key]; ok {
		c.record(true)
		return value, nil
	}
	c.record(false)
	value, err := getUncached()
	if err != nil {
		var zero V
		return zero, err
	}
	c.store[key] = value
	return value, nil
}

func (c *Cache[K, V]) record(hit bool) {
	if hit {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
}
