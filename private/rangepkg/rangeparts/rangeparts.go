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

// Package rangeparts splits numbered node names and numeric range literals.
package rangeparts

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// MaxRangeSize is the maximum number of names a range literal expands to.
const MaxRangeSize = 1 << 20

// ErrRangeTooLarge is returned when a range literal expands to more than MaxRangeSize names.
var ErrRangeTooLarge = errors.New("range too large")

var numberedNodeRegexp = regexp.MustCompile(`^([-\w.]*?)(\d+)(\.[-A-Za-z\d.]*[-A-Za-z]+[-A-Za-z\d.]*)?$`)

// NodeParts are the parts of a node name.
type NodeParts struct {
	// Prefix is everything before the number.
	Prefix string
	// NumStr is the number as written, including leading zeros.
	NumStr string
	// Num is the numeric value of NumStr.
	Num int
	// Domain is the optional dotted suffix after the number.
	Domain string
	// FullName is the original name.
	FullName string
	// Numbered is false if the name has no number.
	//
	// All other fields except FullName are empty in that case.
	Numbered bool
}

// Split splits a node name into its parts.
func Split(name string) NodeParts {
	matches := numberedNodeRegexp.FindStringSubmatch(name)
	if matches == nil {
		return NodeParts{FullName: name}
	}
	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return NodeParts{FullName: name}
	}
	return NodeParts{
		Prefix:   matches[1],
		NumStr:   matches[2],
		Num:      num,
		Domain:   matches[3],
		FullName: name,
		Numbered: true,
	}
}

// RangeParts is a numeric range literal such as web01..20.example.com.
type RangeParts struct {
	Prefix string
	First  string
	Last   string
	Domain string
	// Text is the literal the parts were parsed from.
	Text string
}

// String returns the literal the parts were parsed from.
func (r *RangeParts) String() string {
	return r.Text
}

// Expand returns the names of the range, in order.
//
// If First has more digits than Last, the extra leading digits of First are
// kept as a fixed pad. Numbers are zero-padded to the shorter of the two
// widths. A range whose first number is greater than its last is empty.
//
// Returns an error wrapping ErrRangeTooLarge if the range has more than
// MaxRangeSize names.
func (r *RangeParts) Expand() ([]string, error) {
	first := r.First
	pad := ""
	if len(r.First) > len(r.Last) {
		pad = r.First[:len(r.First)-len(r.Last)]
		first = r.First[len(pad):]
	}
	width := min(len(r.First), len(r.Last))
	f, err := strconv.Atoi(first)
	if err != nil {
		return nil, nil
	}
	l, err := strconv.Atoi(r.Last)
	if err != nil || f > l {
		return nil, nil
	}
	if l-f >= MaxRangeSize {
		return nil, fmt.Errorf("%w: %s has %d names, maximum is %d", ErrRangeTooLarge, r.Text, uint64(l-f)+1, MaxRangeSize)
	}
	names := make([]string, 0, l-f+1)
	for i := f; i <= l; i++ {
		names = append(names, r.Prefix+pad+zeroPad(i, width)+r.Domain)
	}
	return names, nil
}

// ParseRange parses a numeric range literal.
//
// The literal has the form "prefix first [domain] (-|..) [prefix] last [domain]".
// The prefix may be repeated after the range operator. If a domain follows
// first, the same domain must follow last.
//
// Returns false if the literal is not a range.
func ParseRange(literal string) (*RangeParts, bool) {
	for prefixLen := 0; prefixLen < len(literal); prefixLen++ {
		if prefixLen > 0 && !isPrefixChar(literal[prefixLen-1]) {
			return nil, false
		}
		rangeParts, ok := parseRangeWithPrefix(literal, prefixLen)
		if ok {
			return rangeParts, true
		}
	}
	return nil, false
}

func parseRangeWithPrefix(literal string, prefixLen int) (*RangeParts, bool) {
	prefix := literal[:prefixLen]
	digitsLen := leadingDigits(literal[prefixLen:])
	if digitsLen == 0 {
		return nil, false
	}
	first := literal[prefixLen : prefixLen+digitsLen]
	pos := prefixLen + digitsLen
	for _, domain := range domainCandidates(literal[pos:]) {
		rest := literal[pos+len(domain):]
		var right string
		switch {
		case len(rest) > 0 && rest[0] == '-':
			right = rest[1:]
		case len(rest) > 1 && rest[0] == '.' && rest[1] == '.':
			right = rest[2:]
		default:
			continue
		}
		if last, lastDomain, ok := matchRight(prefix, domain, right); ok {
			if !fitsInt(first) || !fitsInt(last) {
				return nil, false
			}
			return &RangeParts{
				Prefix: prefix,
				First:  first,
				Last:   last,
				Domain: lastDomain,
				Text:   literal,
			}, true
		}
	}
	return nil, false
}

// domainCandidates returns the domains that can start the string, longest
// first, followed by the empty domain.
func domainCandidates(s string) []string {
	var candidates []string
	if len(s) > 0 && s[0] == '.' {
		end := 1
		for end < len(s) && isDomainChar(s[end]) {
			end++
		}
		for ; end >= 2; end-- {
			if isDomain(s[:end]) {
				candidates = append(candidates, s[:end])
			}
		}
	}
	return append(candidates, "")
}

func matchRight(prefix string, domain string, right string) (string, string, bool) {
	var candidates []string
	if prefix != "" && len(right) > len(prefix) && right[:len(prefix)] == prefix {
		candidates = append(candidates, right[len(prefix):])
	}
	candidates = append(candidates, right)
	for _, candidate := range candidates {
		digitsLen := leadingDigits(candidate)
		if digitsLen == 0 {
			continue
		}
		last, tail := candidate[:digitsLen], candidate[digitsLen:]
		if domain != "" {
			if tail == domain {
				return last, domain, true
			}
			continue
		}
		if tail == "" || isTrailingDomain(tail) {
			return last, tail, true
		}
	}
	return "", "", false
}

// isDomain matches \.[-A-Za-z\d.]*[-A-Za-z]+[-A-Za-z\d.]*.
func isDomain(s string) bool {
	if len(s) < 2 || s[0] != '.' {
		return false
	}
	hasLetter := false
	for i := 1; i < len(s); i++ {
		if !isDomainChar(s[i]) {
			return false
		}
		if isDomainLetter(s[i]) {
			hasLetter = true
		}
	}
	return hasLetter
}

// isTrailingDomain matches \.[-A-Za-z\d.]+.
func isTrailingDomain(s string) bool {
	if len(s) < 2 || s[0] != '.' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isDomainChar(s[i]) {
			return false
		}
	}
	return true
}

func leadingDigits(s string) int {
	n := 0
	for n < len(s) && isDigit(s[n]) {
		n++
	}
	return n
}

func fitsInt(digits string) bool {
	_, err := strconv.Atoi(digits)
	return err == nil
}

func zeroPad(i int, width int) string {
	s := strconv.Itoa(i)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isDomainLetter(c byte) bool {
	return c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDomainChar(c byte) bool {
	return isDomainLetter(c) || isDigit(c) || c == '.'
}

func isPrefixChar(c byte) bool {
	return isDomainChar(c) || c == '_'
}
