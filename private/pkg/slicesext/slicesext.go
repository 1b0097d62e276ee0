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

// Package slicesext provides extra functionality on top of the slices package.
package slicesext

import (
	"sort"
)

// Ordered matches cmp.Ordered.
type Ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64 |
		~string
}

// Filter filters the slice to only the values where f returns true.
func Filter[T any](s []T, f func(T) bool) []T {
	sf := make([]T, 0, len(s))
	for _, e := range s {
		if f(e) {
			sf = append(sf, e)
		}
	}
	return sf
}

// Map maps the slice.
func Map[T1, T2 any](s []T1, f func(T1) T2) []T2 {
	sm := make([]T2, len(s))
	for i, e := range s {
		sm[i] = f(e)
	}
	return sm
}

// Concat concatenates the slices into a new slice.
func Concat[S ~[]E, E any](slices ...S) S {
	size := 0
	for _, s := range slices {
		size += len(s)
	}
	newslice := make(S, 0, size)
	for _, s := range slices {
		newslice = append(newslice, s...)
	}
	return newslice
}

// ToStructMap converts the slice to a map with struct{} values.
func ToStructMap[T comparable](s []T) map[T]struct{} {
	m := make(map[T]struct{}, len(s))
	for _, e := range s {
		m[e] = struct{}{}
	}
	return m
}

// MapKeysToSortedSlice converts the map's keys to a sorted slice.
func MapKeysToSortedSlice[M ~map[K]V, K Ordered, V any](m M) []K {
	s := make([]K, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	sort.Slice(
		s,
		func(i int, j int) bool {
			return s[i] < s[j]
		},
	)
	return s
}

// Deduplicate returns the unique values of s, keeping the first occurrence
// of each and skipping zero values.
func Deduplicate[V comparable](s []V) []V {
	var zero V
	seen := make(map[V]struct{}, len(s))
	result := make([]V, 0, len(s))
	for _, e := range s {
		if e == zero {
			continue
		}
		if _, ok := seen[e]; !ok {
			result = append(result, e)
			seen[e] = struct{}{}
		}
	}
	return result
}

// ToChunks splits s into consecutive chunks whose weight, as computed by
// weight, does not exceed maxWeight unless a single element already does.
//
// The separator weight is added between elements of the same chunk.
func ToChunks[T any](s []T, maxWeight int, separatorWeight int, weight func(T) int) [][]T {
	var chunks [][]T
	var current []T
	currentWeight := 0
	for _, e := range s {
		elementWeight := weight(e)
		if len(current) > 0 && currentWeight+separatorWeight+elementWeight > maxWeight {
			chunks = append(chunks, current)
			current = nil
			currentWeight = 0
		}
		if len(current) > 0 {
			currentWeight += separatorWeight
		}
		current = append(current, e)
		currentWeight += elementWeight
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
