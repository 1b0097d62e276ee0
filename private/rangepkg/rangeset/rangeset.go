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

// Package rangeset provides the ordered name sets that range expressions evaluate to.
package rangeset

// Set is an insertion-ordered set of names.
//
// A Set is quoted when any of its names came from a q(...) literal. Quoted
// sets print their names wrapped in double quotes.
//
// A Set is not safe for concurrent mutation.
type Set struct {
	names []string
	index map[string]struct{}
	// Quoted is true if the set contains non-range literals.
	Quoted bool
}

// New returns a new Set with the names added in order.
func New(names ...string) *Set {
	set := &Set{
		index: make(map[string]struct{}, len(names)),
	}
	for _, name := range names {
		set.Add(name)
	}
	return set
}

// NewQuoted returns a new quoted Set.
func NewQuoted(names ...string) *Set {
	set := New(names...)
	set.Quoted = true
	return set
}

// Add adds the name and returns true if it was not already present.
func (s *Set) Add(name string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[name]; ok {
		return false
	}
	s.index[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

// AddAll adds all names of other. The quoted flag of other is carried over.
func (s *Set) AddAll(other *Set) {
	if other == nil {
		return
	}
	for _, name := range other.names {
		s.Add(name)
	}
	s.Quoted = s.Quoted || other.Quoted
}

// Contains returns true if the name is in the set.
func (s *Set) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[name]
	return ok
}

// Len returns the number of names.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the names in insertion order, or nil if the set is empty.
func (s *Set) Names() []string {
	if s.Len() == 0 {
		return nil
	}
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Strings returns the names in insertion order, wrapped in double quotes
// if the set is quoted.
func (s *Set) Strings() []string {
	names := s.Names()
	if s == nil || !s.Quoted {
		return names
	}
	for i, name := range names {
		names[i] = "\"" + name + "\""
	}
	return names
}

// Clone returns a copy of the set.
func (s *Set) Clone() *Set {
	clone := New(s.names...)
	clone.Quoted = s.Quoted
	return clone
}

// Union returns the names of s followed by the names of other not in s.
func Union(s *Set, other *Set) *Set {
	result := s.Clone()
	result.AddAll(other)
	return result
}

// Diff returns the names of s that are not in other.
func Diff(s *Set, other *Set) *Set {
	result := s.Filter(func(name string) bool { return !other.Contains(name) })
	result.Quoted = s.Quoted || other.Quoted
	return result
}

// Intersect returns the names of s that are also in other.
func Intersect(s *Set, other *Set) *Set {
	result := s.Filter(other.Contains)
	result.Quoted = s.Quoted || other.Quoted
	return result
}

// Filter returns a new set with the names for which f returns true.
//
// The quoted flag is kept.
func (s *Set) Filter(f func(string) bool) *Set {
	result := New()
	result.Quoted = s.Quoted
	for _, name := range s.names {
		if f(name) {
			result.Add(name)
		}
	}
	return result
}
