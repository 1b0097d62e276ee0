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

package rangeparts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	t.Parallel()
	testExpand(t, "foo1..3", "foo1", "foo2", "foo3")
	testExpand(t, "foo01..03", "foo01", "foo02", "foo03")
	testExpand(t, "foo100-5", "foo100", "foo101", "foo102", "foo103", "foo104", "foo105")
	testExpand(t, "foo8..11", "foo8", "foo9", "foo10", "foo11")
	testExpand(t, "a1..3.x.com", "a1.x.com", "a2.x.com", "a3.x.com")
	testExpand(t, "a1.x.com..3.x.com", "a1.x.com", "a2.x.com", "a3.x.com")
	testExpand(t, "web1..web3", "web1", "web2", "web3")
	testExpand(t, "1..3", "1", "2", "3")
	testExpand(t, "foo3..1")
}

func TestExpandTooLarge(t *testing.T) {
	t.Parallel()
	rangeParts, ok := ParseRange("a1..99999999999999")
	require.True(t, ok)
	_, err := rangeParts.Expand()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRangeTooLarge))
	assert.Equal(t, "range too large: a1..99999999999999 has 99999999999999 names, maximum is 1048576", err.Error())

	rangeParts, ok = ParseRange("a0..1048576")
	require.True(t, ok)
	_, err = rangeParts.Expand()
	assert.True(t, errors.Is(err, ErrRangeTooLarge))

	rangeParts, ok = ParseRange("a1..1048576")
	require.True(t, ok)
	names, err := rangeParts.Expand()
	require.NoError(t, err)
	assert.Len(t, names, MaxRangeSize)
	assert.Equal(t, "a1", names[0])
	assert.Equal(t, "a1048576", names[MaxRangeSize-1])
}

func TestParseRangeRejects(t *testing.T) {
	t.Parallel()
	for _, literal := range []string{
		"foo",
		"foo1",
		"foo1..",
		"..3",
		"a1.x.com..3.y.com",
		"foo1..99999999999999999999999",
		"foo@1..3",
	} {
		_, ok := ParseRange(literal)
		assert.False(t, ok, literal)
	}
}

func TestParseRangeParts(t *testing.T) {
	t.Parallel()
	rangeParts, ok := ParseRange("db1-04.prod.example.com")
	require.True(t, ok)
	assert.Equal(
		t,
		&RangeParts{
			Prefix: "db",
			First:  "1",
			Last:   "04",
			Domain: ".prod.example.com",
			Text:   "db1-04.prod.example.com",
		},
		rangeParts,
	)
	assert.Equal(t, "db1-04.prod.example.com", rangeParts.String())
}

func TestSplit(t *testing.T) {
	t.Parallel()
	assert.Equal(
		t,
		NodeParts{
			Prefix:   "web",
			NumStr:   "012",
			Num:      12,
			Domain:   ".example.com",
			FullName: "web012.example.com",
			Numbered: true,
		},
		Split("web012.example.com"),
	)
	assert.Equal(
		t,
		NodeParts{
			Prefix:   "db-a",
			NumStr:   "3",
			Num:      3,
			FullName: "db-a3",
			Numbered: true,
		},
		Split("db-a3"),
	)
	assert.Equal(t, NodeParts{FullName: "localhost"}, Split("localhost"))
	assert.Equal(
		t,
		NodeParts{
			Prefix:   "web1.",
			NumStr:   "2",
			Num:      2,
			FullName: "web1.2",
			Numbered: true,
		},
		Split("web1.2"),
	)
}

func testExpand(t *testing.T, literal string, expected ...string) {
	t.Helper()
	rangeParts, ok := ParseRange(literal)
	require.True(t, ok, literal)
	names, err := rangeParts.Expand()
	require.NoError(t, err, literal)
	assert.Equal(t, expected, names, literal)
}
