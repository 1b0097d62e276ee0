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

// Package rangecompress sorts node names and compresses them into range expressions.
package rangecompress

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/ytoolshed/crange/private/rangepkg/rangeparts"
)

const (
	// DefaultSeparator is the default separator between compressed groups.
	DefaultSeparator = ","
	// MaxGroups is the maximum number of groups Compress will produce.
	MaxGroups = 65536
)

// ErrTooManyGroups is returned when compression would produce more than MaxGroups groups.
var ErrTooManyGroups = errors.New("too many compressed groups")

// Sort returns the names sorted by prefix, domain, number and full name.
//
// Names without a number sort as if their prefix and domain were empty.
func Sort(names []string) []string {
	parts := toParts(names)
	sortParts(parts)
	sorted := make([]string, len(parts))
	for i, part := range parts {
		sorted[i] = part.FullName
	}
	return sorted
}

// Compress returns the shortest range expression for the names.
//
// Runs of names with equal prefix and domain, consecutive numbers and equal
// number width are written as prefix<first>-<last>domain, where last drops
// the leading digits it shares with first. For example web01 to web09
// compress to web01-9. Duplicate and empty names are ignored.
func Compress(names []string, separator string) (string, error) {
	if separator == "" {
		separator = DefaultSeparator
	}
	parts := toParts(dedupe(names))
	if len(parts) == 0 {
		return "", nil
	}
	sortParts(parts)
	var groups []string
	start := 0
	for i := 1; i <= len(parts); i++ {
		if i < len(parts) && continuesRun(parts[start], i-start, parts[i]) {
			continue
		}
		if len(groups) == MaxGroups {
			return "", ErrTooManyGroups
		}
		groups = append(groups, formatGroup(parts[start], i-start-1))
		start = i
	}
	return strings.Join(groups, separator), nil
}

// continuesRun returns true if next extends the run of count names starting at first.
func continuesRun(first rangeparts.NodeParts, count int, next rangeparts.NodeParts) bool {
	return first.Numbered &&
		next.Numbered &&
		first.Prefix == next.Prefix &&
		first.Domain == next.Domain &&
		next.Num == first.Num+count &&
		len(next.NumStr) == len(first.NumStr)
}

func formatGroup(first rangeparts.NodeParts, count int) string {
	if count == 0 {
		return first.FullName
	}
	return first.Prefix + first.NumStr + "-" + ignoreCommonPrefix(first.Num, first.Num+count) + first.Domain
}

// ignoreCommonPrefix returns n2 without the leading digits it shares with n1.
func ignoreCommonPrefix(n1 int, n2 int) string {
	s1 := strconv.Itoa(n1)
	s2 := strconv.Itoa(n2)
	if len(s1) < len(s2) {
		return s2
	}
	n := 0
	for n < len(s1) && s1[n] == s2[n] {
		n++
	}
	return s2[n:]
}

func toParts(names []string) []rangeparts.NodeParts {
	parts := make([]rangeparts.NodeParts, len(names))
	for i, name := range names {
		parts[i] = rangeparts.Split(name)
	}
	return parts
}

func sortParts(parts []rangeparts.NodeParts) {
	sort.SliceStable(
		parts,
		func(i int, j int) bool {
			a, b := parts[i], parts[j]
			if a.Prefix != b.Prefix {
				return a.Prefix < b.Prefix
			}
			if a.Domain != b.Domain {
				return a.Domain < b.Domain
			}
			if a.Num != b.Num {
				return a.Num < b.Num
			}
			return a.FullName < b.FullName
		},
	)
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	deduped := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		deduped = append(deduped, name)
	}
	return deduped
}
