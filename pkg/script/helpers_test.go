package script

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// treeBuilder assembles trees by hand for tests.
type treeBuilder struct {
	t    *Tree
	line int
}

func newTreeBuilder() *treeBuilder {
	return &treeBuilder{t: NewTree()}
}

func (b *treeBuilder) pos() token.Position {
	b.line++
	return token.Position{Line: b.line, Column: 1, Offset: b.line}
}

func (b *treeBuilder) expr(text string) *Expr {
	return &Expr{Text: text, Pos: b.pos()}
}

func (b *treeBuilder) leaf(text string) NodeID {
	p := b.pos()
	return b.t.Add(&Leaf{NodeInfo: NodeInfo{Start: p}, Stmt: &Statement{Text: text, Pos: p}})
}

func (b *treeBuilder) block(label string, children ...NodeID) NodeID {
	return b.t.Add(&Block{NodeInfo: NodeInfo{Start: b.pos()}, Label: label, Body: children})
}

func (b *treeBuilder) handlerBlock(handlers []*Handler, children ...NodeID) NodeID {
	return b.t.Add(&Block{NodeInfo: NodeInfo{Start: b.pos()}, Handlers: handlers, Body: children})
}

func (b *treeBuilder) body(children ...NodeID) NodeID {
	return b.t.Add(&Block{NodeInfo: NodeInfo{Start: b.pos()}, Body: children, Implicit: true})
}

func (b *treeBuilder) ifElse(branches []Branch, elseBody NodeID) NodeID {
	return b.t.Add(&Conditional{NodeInfo: NodeInfo{Start: b.pos()}, Branches: branches, Else: elseBody})
}

func (b *treeBuilder) when(cond string, children ...NodeID) Branch {
	return Branch{Cond: b.expr(cond), Body: b.body(children...)}
}

func (b *treeBuilder) caseOf(operand string, branches []Branch, elseBody NodeID) NodeID {
	return b.t.Add(&Conditional{
		NodeInfo:  NodeInfo{Start: b.pos()},
		Simple:    true,
		Scrutinee: b.expr(operand),
		Branches:  branches,
		Else:      elseBody,
	})
}

func (b *treeBuilder) while(label, cond string, children ...NodeID) NodeID {
	return b.t.Add(&While{NodeInfo: NodeInfo{Start: b.pos()}, Label: label, Cond: b.expr(cond), Body: b.body(children...)})
}

func (b *treeBuilder) repeat(label, until string, children ...NodeID) NodeID {
	return b.t.Add(&Repeat{NodeInfo: NodeInfo{Start: b.pos()}, Label: label, Until: b.expr(until), Body: b.body(children...)})
}

func (b *treeBuilder) loop(label string, children ...NodeID) NodeID {
	return b.t.Add(&Loop{NodeInfo: NodeInfo{Start: b.pos()}, Label: label, Body: b.body(children...)})
}

func (b *treeBuilder) forEach(label, variable, query string, children ...NodeID) NodeID {
	p := b.pos()
	return b.t.Add(&For{
		NodeInfo: NodeInfo{Start: p},
		Label:    label,
		Var:      variable,
		Query:    &Statement{Text: query, Pos: p},
		Body:     b.body(children...),
	})
}

func (b *treeBuilder) leave(label string) NodeID {
	return b.t.Add(&Leave{NodeInfo: NodeInfo{Start: b.pos()}, Label: label})
}

func (b *treeBuilder) iterate(label string) NodeID {
	return b.t.Add(&Iterate{NodeInfo: NodeInfo{Start: b.pos()}, Label: label})
}

func (b *treeBuilder) exitHandler(body NodeID, conds ...ConditionRef) *Handler {
	return &Handler{Action: HandlerExit, Conditions: conds, Body: body, Pos: b.pos()}
}

func (b *treeBuilder) continueHandler(body NodeID, conds ...ConditionRef) *Handler {
	return &Handler{Action: HandlerContinue, Conditions: conds, Body: body, Pos: b.pos()}
}

// root makes id the root of the tree.
func (b *treeBuilder) root(id NodeID) *Tree {
	b.t.Root = id
	return b.t
}

type exprFunc func(s *ScopeStack) (any, error)

type stmtFunc func(s *ScopeStack) (*ResultSet, error)

// fakeEval interprets expressions and statements through lookup tables.
type fakeEval struct {
	exprs     map[string]exprFunc
	stmts     map[string]stmtFunc
	evaluated []string
	executed  []string
}

func newFakeEval() *fakeEval {
	return &fakeEval{exprs: map[string]exprFunc{}, stmts: map[string]stmtFunc{}}
}

func (f *fakeEval) Evaluate(_ context.Context, expr *Expr, scopes *ScopeStack) (*ResultSet, error) {
	f.evaluated = append(f.evaluated, expr.Text)
	fn, ok := f.exprs[expr.Text]
	if !ok {
		return nil, fmt.Errorf("unknown expression %q", expr.Text)
	}
	v, err := fn(scopes)
	if err != nil {
		return nil, err
	}
	if rs, ok := v.(*ResultSet); ok {
		return rs, nil
	}
	return one(v), nil
}

func (f *fakeEval) Execute(_ context.Context, stmt *Statement, scopes *ScopeStack) (*ResultSet, error) {
	f.executed = append(f.executed, stmt.Text)
	fn, ok := f.stmts[stmt.Text]
	if !ok {
		return nil, fmt.Errorf("unknown statement %q", stmt.Text)
	}
	return fn(scopes)
}

func (f *fakeEval) count(text string) int {
	n := 0
	for _, e := range f.evaluated {
		if e == text {
			n++
		}
	}
	return n
}

func one(v any) *ResultSet {
	return &ResultSet{Columns: []string{"col"}, Rows: [][]any{{v}}}
}

func empty() *ResultSet {
	return &ResultSet{Affected: -1}
}

func intVar(s *ScopeStack, name string) int64 {
	v, ok := s.Lookup(name)
	if !ok {
		panic("undeclared variable " + name)
	}
	return v.Value.(int64)
}

func declare(name string, value int64) stmtFunc {
	return func(s *ScopeStack) (*ResultSet, error) {
		return empty(), s.Declare(name, "INT", value, false)
	}
}

func increment(name string) stmtFunc {
	return func(s *ScopeStack) (*ResultSet, error) {
		return empty(), s.Assign(name, intVar(s, name)+1)
	}
}

func selectVar(name string) stmtFunc {
	return func(s *ScopeStack) (*ResultSet, error) {
		return one(intVar(s, name)), nil
	}
}

func lessThan(name string, n int64) exprFunc {
	return func(s *ScopeStack) (any, error) {
		return intVar(s, name) < n, nil
	}
}

func constant(v any) exprFunc {
	return func(*ScopeStack) (any, error) { return v, nil }
}

func fails(condition string) stmtFunc {
	return func(*ScopeStack) (*ResultSet, error) {
		return nil, Errorf(condition, "", "statement failed")
	}
}

// drain runs a plan and returns the yielded statement texts.
func drain(t *testing.T, plan *Plan) ([]string, error) {
	t.Helper()
	var out []string
	res, err := Run(context.Background(), plan)
	if res != nil {
		for _, ex := range res.Statements {
			out = append(out, ex.Statement.Text)
		}
	}
	return out, err
}

func mustBuild(t *testing.T, tree *Tree, args map[string]any, eval Evaluator) *Plan {
	t.Helper()
	plan, err := Build(tree, args, Options{Evaluator: eval, Strict: true})
	require.NoError(t, err)
	return plan
}
