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

// Package rangeparse parses range expressions.
//
// Grammar, with whitespace between terms and operators ignored:
//
//	expr    := term { op term }
//	op      := "," | ",-" | ",&"
//	term    := "%" term | "@" term | "!" term | "(" expr ")"
//	         | "q(" chars ")" | "/" regex "/" | ident "(" [ expr { ";" expr } ] ")"
//	         | word
//	word    := [literal] "{" expr "}" [word] | literal
//
// Operators are left associative and share one precedence level.
package rangeparse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ytoolshed/crange/private/rangepkg/rangeast"
)

// MaxNesting is the maximum nesting of terms, such as parentheses and
// unary operators, in an expression.
const MaxNesting = 1024

// Error is a parse error.
type Error struct {
	// Offset is the 0-based byte offset of the error.
	Offset  int
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Message, e.Offset)
}

// Parse parses the expression.
//
// The empty expression parses to a nothing node.
func Parse(expression string) (*rangeast.Node, error) {
	parser := &parser{
		input: expression,
	}
	node, err := parser.parseExpr()
	if err != nil {
		return nil, err
	}
	parser.skipSpace()
	if !parser.eof() {
		return nil, parser.unexpected()
	}
	return node, nil
}

// IsError returns true if err is or wraps a parse error.
func IsError(err error) bool {
	var parseError *Error
	return errors.As(err, &parseError)
}

type parser struct {
	input string
	pos   int
	depth int
}

func (p *parser) parseExpr() (*rangeast.Node, error) {
	p.skipSpace()
	if p.atTerminator() {
		return rangeast.NewNothing(), nil
	}
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		kind, ok := p.parseOp()
		if !ok {
			return left, nil
		}
		p.skipSpace()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = rangeast.NewBinary(kind, left, right)
	}
}

func (p *parser) parseOp() (rangeast.Kind, bool) {
	if p.peek() != ',' {
		return 0, false
	}
	p.pos++
	switch p.peek() {
	case '-':
		p.pos++
		return rangeast.KindDiff, true
	case '&':
		p.pos++
		return rangeast.KindIntersect, true
	default:
		return rangeast.KindUnion, true
	}
}

func (p *parser) parseTerm() (*rangeast.Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if p.eof() {
		return nil, p.errorf("unexpected end of expression")
	}
	switch c := p.peek(); {
	case c == '%':
		return p.parseUnary(rangeast.KindCluster)
	case c == '@':
		return p.parseUnary(rangeast.KindGroup)
	case c == '!':
		return p.parseUnary(rangeast.KindNot)
	case c == '(':
		p.pos++
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return node, nil
	case c == '/':
		return p.parseRegex()
	case c == '{':
		return p.parseBraces(rangeast.NewNothing())
	case isLiteralChar(c):
		return p.parseLiteralTerm()
	default:
		return nil, p.unexpected()
	}
}

func (p *parser) parseUnary(kind rangeast.Kind) (*rangeast.Node, error) {
	p.pos++
	p.skipSpace()
	child, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return rangeast.NewUnary(kind, child), nil
}

func (p *parser) parseLiteralTerm() (*rangeast.Node, error) {
	start := p.pos
	literal := p.readLiteral()
	switch p.peek() {
	case '(':
		if literal == "q" {
			return p.parseQuoted()
		}
		if !isIdent(literal) {
			return nil, &Error{Offset: start, Message: fmt.Sprintf("invalid function name %q", literal)}
		}
		return p.parseFunction(literal)
	case '{':
		return p.parseBraces(rangeast.NewLiteral(literal))
	default:
		return rangeast.NewLiteral(literal), nil
	}
}

func (p *parser) parseQuoted() (*rangeast.Node, error) {
	start := p.pos - 1
	// skip "("
	p.pos++
	end := strings.IndexByte(p.input[p.pos:], ')')
	if end < 0 {
		return nil, &Error{Offset: start, Message: "unterminated q("}
	}
	value := p.input[p.pos : p.pos+end]
	p.pos += end + 1
	return rangeast.NewQuoted(value), nil
}

func (p *parser) parseFunction(name string) (*rangeast.Node, error) {
	// skip "("
	p.pos++
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return rangeast.NewFunction(name), nil
	}
	var args []*rangeast.Node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		if p.peek() != ';' {
			break
		}
		p.pos++
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return rangeast.NewFunction(name, args...), nil
}

func (p *parser) parseRegex() (*rangeast.Node, error) {
	start := p.pos
	p.pos++
	var builder strings.Builder
	for !p.eof() {
		c := p.input[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '/':
			builder.WriteByte('/')
			p.pos += 2
		case c == '/':
			p.pos++
			return rangeast.NewRegex(builder.String()), nil
		default:
			builder.WriteByte(c)
			p.pos++
		}
	}
	return nil, &Error{Offset: start, Message: "unterminated regex"}
}

// parseBraces parses "{" expr "}" [word] after the left side.
func (p *parser) parseBraces(left *rangeast.Node) (*rangeast.Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	center, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect('}'); err != nil {
		return nil, err
	}
	right := rangeast.NewNothing()
	if c := p.peek(); c == '{' || isLiteralChar(c) {
		right, err = p.parseWord()
		if err != nil {
			return nil, err
		}
	}
	return rangeast.NewBraces(left, center, right), nil
}

func (p *parser) parseWord() (*rangeast.Node, error) {
	if p.peek() == '{' {
		return p.parseBraces(rangeast.NewNothing())
	}
	literal := p.readLiteral()
	if p.peek() == '{' {
		return p.parseBraces(rangeast.NewLiteral(literal))
	}
	return rangeast.NewLiteral(literal), nil
}

func (p *parser) readLiteral() string {
	start := p.pos
	for !p.eof() && isLiteralChar(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c || p.eof() {
		if p.eof() {
			return p.errorf("expected %q, got end of expression", string(c))
		}
		return p.errorf("expected %q, got %q", string(c), string(p.peek()))
	}
	p.pos++
	return nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxNesting {
		return p.errorf("expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) atTerminator() bool {
	if p.eof() {
		return true
	}
	switch p.peek() {
	case ')', ';', '}':
		return true
	default:
		return false
	}
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) unexpected() error {
	return p.errorf("unexpected %q", string(p.peek()))
}

func (p *parser) errorf(format string, args ...any) error {
	return &Error{
		Offset:  p.pos,
		Message: fmt.Sprintf(format, args...),
	}
}

func isLiteralChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.' || c == ':' || c == '-' || c == '$' || c == '#':
		return true
	default:
		return false
	}
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
