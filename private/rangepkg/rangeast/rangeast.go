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

// Package rangeast defines the syntax tree of range expressions.
package rangeast

import (
	"strconv"
	"strings"

	"github.com/ytoolshed/crange/private/rangepkg/rangeparts"
)

const (
	// KindNothing is the empty expression.
	KindNothing Kind = iota + 1
	// KindLiteral is a plain name.
	KindLiteral
	// KindQuoted is a q(...) literal.
	KindQuoted
	// KindParts is a numeric range literal such as web1..10.
	KindParts
	// KindRegex is a /regex/.
	KindRegex
	// KindUnion is a,b.
	KindUnion
	// KindDiff is a,-b.
	KindDiff
	// KindIntersect is a,&b.
	KindIntersect
	// KindCluster is %a.
	KindCluster
	// KindGroup is @a.
	KindGroup
	// KindNot is !a.
	KindNot
	// KindBraces is a{b}c.
	KindBraces
	// KindFunction is name(a;b).
	KindFunction
)

var kindToString = map[Kind]string{
	KindNothing:   "nothing",
	KindLiteral:   "literal",
	KindQuoted:    "quoted",
	KindParts:     "parts",
	KindRegex:     "regex",
	KindUnion:     "union",
	KindDiff:      "diff",
	KindIntersect: "intersect",
	KindCluster:   "cluster",
	KindGroup:     "group",
	KindNot:       "not",
	KindBraces:    "braces",
	KindFunction:  "function",
}

// Kind is the kind of a Node.
type Kind int

// String implements fmt.Stringer.
func (k Kind) String() string {
	s, ok := kindToString[k]
	if !ok {
		return strconv.Itoa(int(k))
	}
	return s
}

// IsBinary returns true for union, diff and intersect.
func (k Kind) IsBinary() bool {
	return k == KindUnion || k == KindDiff || k == KindIntersect
}

// Node is a node of a range expression syntax tree.
type Node struct {
	Kind Kind
	// Value is the name for literals, the pattern for regexes, and the
	// function name for functions.
	Value string
	// Parts is set for KindParts.
	Parts *rangeparts.RangeParts
	// Children are the operands.
	//
	// Binary nodes have two children, braces have three (left, center, right),
	// prefix operators have one, and functions have one per argument.
	Children []*Node
}

// NewNothing returns a new empty expression.
func NewNothing() *Node {
	return &Node{Kind: KindNothing}
}

// NewLiteral returns a new literal, or a parts node if the literal is a numeric range.
func NewLiteral(literal string) *Node {
	if rangeParts, ok := rangeparts.ParseRange(literal); ok {
		return &Node{Kind: KindParts, Value: literal, Parts: rangeParts}
	}
	return &Node{Kind: KindLiteral, Value: literal}
}

// NewQuoted returns a new quoted literal.
func NewQuoted(literal string) *Node {
	return &Node{Kind: KindQuoted, Value: literal}
}

// NewRegex returns a new regex.
func NewRegex(pattern string) *Node {
	return &Node{Kind: KindRegex, Value: pattern}
}

// NewBinary returns a new union, diff or intersect node.
func NewBinary(kind Kind, left *Node, right *Node) *Node {
	return &Node{Kind: kind, Children: []*Node{left, right}}
}

// NewUnary returns a new cluster, group or not node.
func NewUnary(kind Kind, child *Node) *Node {
	return &Node{Kind: kind, Children: []*Node{child}}
}

// NewBraces returns a new braces node.
func NewBraces(left *Node, center *Node, right *Node) *Node {
	return &Node{Kind: KindBraces, Children: []*Node{left, center, right}}
}

// NewFunction returns a new function call.
func NewFunction(name string, args ...*Node) *Node {
	return &Node{Kind: KindFunction, Value: name, Children: args}
}

// String returns the canonical text of the node.
//
// Parsing the canonical text returns an equal tree.
func (n *Node) String() string {
	var builder strings.Builder
	n.write(&builder)
	return builder.String()
}

func (n *Node) write(builder *strings.Builder) {
	switch n.Kind {
	case KindNothing:
	case KindLiteral, KindParts:
		builder.WriteString(n.Value)
	case KindQuoted:
		builder.WriteString("q(")
		builder.WriteString(n.Value)
		builder.WriteString(")")
	case KindRegex:
		builder.WriteString("/")
		builder.WriteString(strings.ReplaceAll(n.Value, "/", "\\/"))
		builder.WriteString("/")
	case KindUnion, KindDiff, KindIntersect:
		// Operators are left associative, so the left spine needs no parentheses.
		spine := []*Node{n}
		left := n.Children[0]
		for left.Kind.IsBinary() {
			spine = append(spine, left)
			left = left.Children[0]
		}
		left.writeOperand(builder)
		for i := len(spine) - 1; i >= 0; i-- {
			switch spine[i].Kind {
			case KindUnion:
				builder.WriteString(",")
			case KindDiff:
				builder.WriteString(",-")
			default:
				builder.WriteString(",&")
			}
			spine[i].Children[1].writeOperand(builder)
		}
	case KindCluster, KindGroup, KindNot:
		switch n.Kind {
		case KindCluster:
			builder.WriteString("%")
		case KindGroup:
			builder.WriteString("@")
		default:
			builder.WriteString("!")
		}
		n.Children[0].writeOperand(builder)
	case KindBraces:
		n.Children[0].write(builder)
		builder.WriteString("{")
		n.Children[1].write(builder)
		builder.WriteString("}")
		n.Children[2].write(builder)
	case KindFunction:
		builder.WriteString(n.Value)
		builder.WriteString("(")
		for i, child := range n.Children {
			if i > 0 {
				builder.WriteString(";")
			}
			child.write(builder)
		}
		builder.WriteString(")")
	}
}

// writeOperand wraps binary and empty nodes in parentheses.
func (n *Node) writeOperand(builder *strings.Builder) {
	if n.Kind.IsBinary() || n.Kind == KindNothing {
		builder.WriteString("(")
		n.write(builder)
		builder.WriteString(")")
		return
	}
	n.write(builder)
}
