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

package rangeeval

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ytoolshed/crange/private/pkg/syserror"
	"github.com/ytoolshed/crange/private/rangepkg/rangeast"
	"github.com/ytoolshed/crange/private/rangepkg/rangeparse"
	"github.com/ytoolshed/crange/private/rangepkg/rangeparts"
	"github.com/ytoolshed/crange/private/rangepkg/rangeset"
	"go.uber.org/zap"
)

type depthContextKey struct{}

type noWarningsContextKey struct{}

// Request is one evaluation of a range expression.
//
// Nested expansions made by functions share the warnings of the Request.
// A Request is safe for concurrent use by the functions it calls.
type Request struct {
	evaluator *Evaluator
	warnings  *Warnings
}

// Warnings returns the warnings collected so far.
func (r *Request) Warnings() *Warnings {
	return r.warnings
}

// Logger returns the logger of the Evaluator.
func (r *Request) Logger() *zap.Logger {
	return r.evaluator.logger
}

// Evaluate evaluates the node.
func (r *Request) Evaluate(ctx context.Context, node *rangeast.Node) (*rangeset.Set, error) {
	if depth(ctx) > MaxDepth {
		return nil, ErrMaxDepth
	}
	return r.evaluate(ctx, node, 0)
}

// Expand parses and evaluates a nested expression, such as a cluster section.
//
// A parse error is a warning and yields an empty set.
func (r *Request) Expand(ctx context.Context, expression string) (*rangeset.Set, error) {
	node, err := rangeparse.Parse(expression)
	if err != nil {
		r.Warn(ctx, "parsing [%s]", expression)
		return rangeset.New(), nil
	}
	return r.Evaluate(context.WithValue(ctx, depthContextKey{}, depth(ctx)+1), node)
}

// Call calls the function with the name.
//
// An unknown function is a NO_FUNCTION warning and yields an empty set.
func (r *Request) Call(ctx context.Context, name string, args ...*rangeset.Set) (*rangeset.Set, error) {
	function, ok := r.evaluator.registry.Function(name)
	if !ok {
		r.WarnType(ctx, WarningNoFunction, name)
		return rangeset.New(), nil
	}
	result, err := function(ctx, r, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if result == nil {
		return rangeset.New(), nil
	}
	return result, nil
}

// Warn adds a free-form warning.
//
// Warnings are dropped if the Request does not collect warnings or the
// context was returned by WithoutWarnings.
func (r *Request) Warn(ctx context.Context, format string, args ...any) {
	if !warningsEnabled(ctx) {
		return
	}
	r.warnings.add(fmt.Sprintf(format, args...))
}

// WarnType adds the name to the warnings of the type.
func (r *Request) WarnType(ctx context.Context, warningType string, name string) {
	if !warningsEnabled(ctx) {
		return
	}
	r.warnings.addTyped(warningType, name)
}

// WithoutWarnings returns a context under which Warn and WarnType do nothing.
func WithoutWarnings(ctx context.Context) context.Context {
	return context.WithValue(ctx, noWarningsContextKey{}, true)
}

// evaluate evaluates the node at the nesting level.
func (r *Request) evaluate(ctx context.Context, node *rangeast.Node, nesting int) (*rangeset.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if nesting > rangeparse.MaxNesting {
		return nil, fmt.Errorf("expression nested deeper than %d", rangeparse.MaxNesting)
	}
	switch node.Kind {
	case rangeast.KindNothing:
		return rangeset.New(), nil
	case rangeast.KindLiteral:
		return rangeset.New(node.Value), nil
	case rangeast.KindQuoted:
		return rangeset.NewQuoted(node.Value), nil
	case rangeast.KindParts:
		names, err := node.Parts.Expand()
		if err != nil {
			return nil, err
		}
		return rangeset.New(names...), nil
	case rangeast.KindRegex:
		all, err := r.allClusterNodes(ctx)
		if err != nil {
			return nil, err
		}
		return match(all, node.Value)
	case rangeast.KindUnion, rangeast.KindDiff, rangeast.KindIntersect:
		return r.evaluateBinary(ctx, node, nesting)
	case rangeast.KindCluster, rangeast.KindGroup:
		child, err := r.evaluate(ctx, node.Children[0], nesting+1)
		if err != nil {
			return nil, err
		}
		if node.Kind == rangeast.KindCluster {
			return r.Call(ctx, "cluster", child)
		}
		return r.Call(ctx, "group", child)
	case rangeast.KindNot:
		all, err := r.allClusterNodes(ctx)
		if err != nil {
			return nil, err
		}
		child, err := r.evaluate(ctx, node.Children[0], nesting+1)
		if err != nil {
			return nil, err
		}
		return rangeset.Diff(all, child), nil
	case rangeast.KindBraces:
		return r.evaluateBraces(ctx, node, nesting)
	case rangeast.KindFunction:
		args := make([]*rangeset.Set, len(node.Children))
		for i, child := range node.Children {
			arg, err := r.evaluate(ctx, child, nesting+1)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return r.Call(ctx, node.Value, args...)
	default:
		return nil, syserror.Newf("unknown node kind %v", node.Kind)
	}
}

// evaluateBinary evaluates a chain of left associative binary nodes.
//
// A regex on the right of a diff or intersect filters the left operand.
func (r *Request) evaluateBinary(ctx context.Context, node *rangeast.Node, nesting int) (*rangeset.Set, error) {
	spine := []*rangeast.Node{node}
	leftNode := node.Children[0]
	for leftNode.Kind.IsBinary() {
		spine = append(spine, leftNode)
		leftNode = leftNode.Children[0]
	}
	left, err := r.evaluate(ctx, leftNode, nesting+1)
	if err != nil {
		return nil, err
	}
	// Unions add to left in place once it is a copy.
	owned := false
	for i := len(spine) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		binary := spine[i]
		var right *rangeset.Set
		if rightNode := binary.Children[1]; rightNode.Kind == rangeast.KindRegex && binary.Kind != rangeast.KindUnion {
			right, err = match(left, rightNode.Value)
		} else {
			right, err = r.evaluate(ctx, rightNode, nesting+1)
		}
		if err != nil {
			return nil, err
		}
		switch binary.Kind {
		case rangeast.KindUnion:
			if !owned {
				left = left.Clone()
				owned = true
			}
			left.AddAll(right)
		case rangeast.KindDiff:
			left = rangeset.Diff(left, right)
			owned = true
		default:
			left = rangeset.Intersect(left, right)
			owned = true
		}
	}
	return left, nil
}

func (r *Request) evaluateBraces(ctx context.Context, node *rangeast.Node, nesting int) (*rangeset.Set, error) {
	var parts [3]*rangeset.Set
	quoted := false
	size := 1
	for i, child := range node.Children {
		part, err := r.evaluate(ctx, child, nesting+1)
		if err != nil {
			return nil, err
		}
		quoted = quoted || part.Quoted
		if part.Len() == 0 {
			part = rangeset.New("")
		}
		parts[i] = part
		size *= part.Len()
		if size > rangeparts.MaxRangeSize {
			return nil, fmt.Errorf("braces: %w: more than %d names", rangeparts.ErrRangeTooLarge, rangeparts.MaxRangeSize)
		}
	}
	result := rangeset.New()
	for _, left := range parts[0].Names() {
		for _, center := range parts[1].Names() {
			for _, right := range parts[2].Names() {
				result.Add(left + center + right)
			}
		}
	}
	result.Quoted = quoted
	return result, nil
}

func (r *Request) allClusterNodes(ctx context.Context) (*rangeset.Set, error) {
	return r.Call(ctx, "cluster", rangeset.New("all:CLUSTER"))
}

func match(set *rangeset.Set, pattern string) (*rangeset.Set, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex [%s]: %w", pattern, err)
	}
	return set.Filter(re.MatchString), nil
}

func depth(ctx context.Context) int {
	depth, _ := ctx.Value(depthContextKey{}).(int)
	return depth
}

func warningsEnabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(noWarningsContextKey{}).(bool)
	return !disabled
}
