package script

import (
	"log/slog"
	"sort"
)

// GuardCheck describes one hidden guard evaluation.
type GuardCheck struct {
	Node   NodeID
	Expr   *Expr
	Value  any
	Result bool
}

// Options configures plan building and iteration.
type Options struct {
	// Evaluator runs guards, cursor queries and, through the runner, leaves.
	Evaluator Evaluator
	// Strict makes failed casts in simple-CASE comparisons raise
	// CAST_INVALID_INPUT instead of not matching.
	Strict bool
	// MaxIterations bounds the iterations of any single loop activation.
	// Zero means unlimited.
	MaxIterations int
	// Logger receives debug traces. Defaults to a discarding logger.
	Logger *slog.Logger
	// OnGuard, when set, observes every guard evaluation.
	OnGuard func(GuardCheck)
}

// Plan is an executable script: the tree plus resolved labels, jump
// targets and handler tables.
type Plan struct {
	tree     *Tree
	args     []*Variable
	labels   map[NodeID]string
	targets  map[NodeID]NodeID
	handlers map[NodeID]*HandlerTable
	// stmts holds leaf statements rewritten at build time, such as a
	// SIGNAL with its condition resolved to a SQLSTATE.
	stmts map[NodeID]*Statement
	opts  Options

	scopes *ScopeStack
}

// Tree returns the tree the plan was built from.
func (p *Plan) Tree() *Tree {
	return p.tree
}

// Options returns the options the plan was built with.
func (p *Plan) Options() Options {
	return p.opts
}

// Label returns the normalized label of a node, or "".
func (p *Plan) Label(id NodeID) string {
	return p.labels[id]
}

// Target returns the construct a LEAVE or ITERATE node jumps to.
func (p *Plan) Target(id NodeID) NodeID {
	return p.targets[id]
}

// Statement returns the statement of a leaf as it executes.
func (p *Plan) Statement(id NodeID) *Statement {
	if st, ok := p.stmts[id]; ok {
		return st
	}
	if leaf, ok := p.tree.Node(id).(*Leaf); ok {
		return leaf.Stmt
	}
	return nil
}

// Handlers returns the handler table of a block, or nil.
func (p *Plan) Handlers(id NodeID) *HandlerTable {
	return p.handlers[id]
}

// EnterScope creates a fresh scope stack holding the root scope with the
// plan arguments. It replaces any stack from a previous run.
func (p *Plan) EnterScope() *ScopeStack {
	root := NewScope()
	for _, a := range p.args {
		root.Put(&Variable{Name: a.Name, Type: a.Type, Value: a.Value})
	}
	p.scopes = NewScopeStack(root)
	return p.scopes
}

// Scopes returns the scope stack of the current run, or nil before
// EnterScope.
func (p *Plan) Scopes() *ScopeStack {
	return p.scopes
}

// Statements returns an iterator over the statements of the script,
// starting from a fresh root scope each time.
func (p *Plan) Statements() *Iterator {
	return newIterator(p, p.EnterScope())
}

// sortedArgs turns named arguments into variables in name order.
func sortedArgs(args map[string]any) []*Variable {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)
	vars := make([]*Variable, 0, len(names))
	for _, k := range names {
		vars = append(vars, &Variable{Name: NormalizeIdent(k), Value: args[k]})
	}
	return vars
}
