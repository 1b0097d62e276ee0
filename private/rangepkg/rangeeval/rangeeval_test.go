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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytoolshed/crange/private/rangepkg/rangeast"
	"github.com/ytoolshed/crange/private/rangepkg/rangeparse"
	"github.com/ytoolshed/crange/private/rangepkg/rangeparts"
	"github.com/ytoolshed/crange/private/rangepkg/rangeset"
	"go.uber.org/zap"
)

type testModule struct{}

func (testModule) Name() string {
	return "test"
}

func (testModule) Functions() map[string]Function {
	return map[string]Function{
		"cluster": func(ctx context.Context, request *Request, args []*rangeset.Set) (*rangeset.Set, error) {
			if err := ValidateArgs(args, 1); err != nil {
				return nil, err
			}
			result := rangeset.New()
			for _, name := range args[0].Names() {
				switch name {
				case "all:CLUSTER":
					result.AddAll(rangeset.New("web1", "web2", "db1", "db2"))
				case "loop":
					set, err := request.Expand(ctx, "%loop")
					if err != nil {
						return nil, err
					}
					result.AddAll(set)
				case "bad":
					set, err := request.Expand(ctx, "web1,")
					if err != nil {
						return nil, err
					}
					result.AddAll(set)
				default:
					request.WarnType(ctx, WarningNoClusterDef, name)
				}
			}
			return result, nil
		},
		"group": func(ctx context.Context, request *Request, args []*rangeset.Set) (*rangeset.Set, error) {
			return rangeset.New("admin1"), nil
		},
		"quiet": func(ctx context.Context, request *Request, args []*rangeset.Set) (*rangeset.Set, error) {
			request.Warn(WithoutWarnings(ctx), "dropped")
			return rangeset.New(), nil
		},
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	testEvaluate(t, "", nil)
	testEvaluate(t, "a,b,-a", []string{"b"})
	testEvaluate(t, "a,b,&b,c", []string{"b"})
	testEvaluate(t, "a{1,2}b", []string{"a1b", "a2b"})
	testEvaluate(t, "{a,b}", []string{"a", "b"})
	testEvaluate(t, "web1..3,-web2", []string{"web1", "web3"})
	testEvaluate(t, "/^web/", []string{"web1", "web2"})
	testEvaluate(t, "db1..3,&/1/", []string{"db1"})
	testEvaluate(t, "db1..3,-/1/", []string{"db2", "db3"})
	testEvaluate(t, "!/^web/", []string{"db1", "db2"})
	testEvaluate(t, "%all:CLUSTER,-%all:CLUSTER", nil)
	testEvaluate(t, "@admins", []string{"admin1"})
	testEvaluate(t, "%(a,b),c", []string{"c"})
}

func TestQuotedFlag(t *testing.T) {
	t.Parallel()
	request := newTestRequest(t)
	set := testEvaluateRequest(t, request, "q(foo bar),web1")
	assert.True(t, set.Quoted)
	assert.Equal(t, []string{"\"foo bar\"", "\"web1\""}, set.Strings())
	set = testEvaluateRequest(t, request, "x{q(y)}")
	assert.True(t, set.Quoted)
}

func TestWarnings(t *testing.T) {
	t.Parallel()
	request := newTestRequest(t)
	testEvaluateRequest(t, request, "%web1,%web2,%web3,nosuch(a),%bad,quiet()")
	assert.True(t, request.Warnings().Has())
	assert.Equal(
		t,
		"NOCLUSTERDEF: web1-3 | NO_FUNCTION: nosuch | parsing [web1,]",
		request.Warnings().String(),
	)
	assert.Equal(
		t,
		[]Warning{
			{Type: WarningNoClusterDef, Names: []string{"web1", "web2", "web3"}},
			{Type: WarningNoFunction, Names: []string{"nosuch"}},
			{Message: "parsing [web1,]"},
		},
		request.Warnings().List(),
	)

	request = NewEvaluator(zap.NewNop(), newTestRegistry(t)).NewRequest(RequestWithWarnings(false))
	testEvaluateRequest(t, request, "%web1,nosuch(a)")
	assert.False(t, request.Warnings().Has())
	assert.Equal(t, "", request.Warnings().String())
}

func TestHardErrors(t *testing.T) {
	t.Parallel()
	request := newTestRequest(t)
	_, err := evaluate(t, request, "/(/")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "regex [(]"))

	_, err = evaluate(t, request, "%loop")
	require.Error(t, err)
	assert.True(t, IsMaxDepth(err))

	_, err = evaluate(t, request, "cluster(a;b)")
	require.Error(t, err)
	assert.Equal(t, "cluster: expected 1 argument(s), got 2", err.Error())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	node, err := rangeparse.Parse("a,b")
	require.NoError(t, err)
	_, err = request.Evaluate(ctx, node)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLimits(t *testing.T) {
	t.Parallel()
	request := newTestRequest(t)
	_, err := evaluate(t, request, "web1,a1..99999999999999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rangeparts.ErrRangeTooLarge))
	_, err = evaluate(t, request, "{1..1024}{1..1025}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rangeparts.ErrRangeTooLarge))
	set, err := evaluate(t, request, "{1..100}{1..100}")
	require.NoError(t, err)
	assert.Equal(t, 10000, set.Len())

	node := rangeast.NewLiteral("a")
	for i := 0; i <= rangeparse.MaxNesting; i++ {
		node = rangeast.NewUnary(rangeast.KindGroup, node)
	}
	_, err = request.Evaluate(context.Background(), node)
	require.Error(t, err)
	assert.Equal(t, "expression nested deeper than 1024", err.Error())

	terms := make([]string, 0, 1<<16)
	for i := 0; i < cap(terms); i++ {
		terms = append(terms, fmt.Sprintf("n%d", i))
	}
	set, err = evaluate(t, request, strings.Join(terms, ",")+",-n0,&/^n1/")
	require.NoError(t, err)
	assert.True(t, set.Contains("n1"))
	assert.True(t, set.Contains("n12345"))
	assert.False(t, set.Contains("n65535"))
	assert.False(t, set.Contains("n0"))
	assert.False(t, set.Contains("n2"))
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	registry := NewRegistry()
	require.NoError(t, registry.Register(testModule{}, ""))
	require.Error(t, registry.Register(testModule{}, ""))
	require.NoError(t, registry.Register(testModule{}, "t_"))
	assert.Equal(
		t,
		[]string{"cluster", "group", "quiet", "t_cluster", "t_group", "t_quiet"},
		registry.FunctionNames(),
	)
	require.NoError(t, ValidateArgs(nil, 0))
	require.NoError(t, ValidateArgs([]*rangeset.Set{rangeset.New()}, 0))
	require.Error(t, ValidateArgs([]*rangeset.Set{rangeset.New("a")}, 0))
}

func testEvaluate(t *testing.T, expression string, expected []string) {
	t.Helper()
	set := testEvaluateRequest(t, newTestRequest(t), expression)
	if diff := cmp.Diff(expected, set.Names()); diff != "" {
		t.Errorf("%s: unexpected names (-want +got):\n%s", expression, diff)
	}
}

func testEvaluateRequest(t *testing.T, request *Request, expression string) *rangeset.Set {
	t.Helper()
	set, err := evaluate(t, request, expression)
	require.NoError(t, err, expression)
	return set
}

func evaluate(t *testing.T, request *Request, expression string) (*rangeset.Set, error) {
	t.Helper()
	node, err := rangeparse.Parse(expression)
	require.NoError(t, err, expression)
	return request.Evaluate(context.Background(), node)
}

func newTestRequest(t *testing.T) *Request {
	return NewEvaluator(zap.NewNop(), newTestRegistry(t)).NewRequest()
}

func newTestRegistry(t *testing.T) *Registry {
	registry := NewRegistry()
	require.NoError(t, registry.Register(testModule{}, ""))
	return registry
}
