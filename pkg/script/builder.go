package script

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// ErrEmptyScript is returned when a tree has no root compound block.
var ErrEmptyScript = errors.New("script has no root compound block")

// Build validates a tree and binds it with the caller's named arguments
// into an executable plan. Structural errors are *Error values.
func Build(tree *Tree, args map[string]any, opts Options) (*Plan, error) {
	if tree == nil || tree.Node(tree.Root) == nil {
		return nil, ErrEmptyScript
	}
	if _, ok := tree.Node(tree.Root).(*Block); !ok {
		return nil, ErrEmptyScript
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	p := &Plan{
		tree:     tree,
		args:     sortedArgs(args),
		labels:   make(map[NodeID]string),
		targets:  make(map[NodeID]NodeID),
		handlers: make(map[NodeID]*HandlerTable),
		stmts:    make(map[NodeID]*Statement),
		opts:     opts,
	}
	b := &builder{tree: tree, plan: p, seen: make(map[NodeID]bool)}
	if err := b.visit(tree.Root); err != nil {
		return nil, err
	}

	opts.Logger.Debug("plan built",
		slog.Int("nodes", tree.Len()),
		slog.Int("labels", len(p.labels)),
		slog.Int("handler_tables", len(p.handlers)),
		slog.Int("args", len(p.args)))
	return p, nil
}

type builder struct {
	tree   *Tree
	plan   *Plan
	labels LabelRegistry
	// conds holds the condition names declared by each open block.
	conds []map[string]string
	seen  map[NodeID]bool
}

func (b *builder) visit(id NodeID) error {
	n := b.tree.Node(id)
	if n == nil {
		return fmt.Errorf("node %d does not exist", id)
	}
	if b.seen[id] {
		return fmt.Errorf("node %d is reachable from more than one parent", id)
	}
	b.seen[id] = true

	if label, loop := labelOf(n); label != "" {
		b.plan.labels[id] = NormalizeIdent(label)
		b.labels.Open(label, id, loop)
		defer b.labels.Close()
	}

	switch n := n.(type) {
	case *Leaf:
		if n.Stmt == nil {
			return fmt.Errorf("statement at %s has no text", n.Pos())
		}
		if sig := n.Stmt.Signal; sig != nil && sig.Condition != "" && sig.SQLState == "" {
			resolved := *sig
			resolved.SQLState = b.lookupCondition(sig.Condition)
			if resolved.SQLState == "" {
				resolved.SQLState = SQLStateFor(strings.ToUpper(sig.Condition))
			}
			if resolved.SQLState == "" {
				resolved.SQLState = SQLStateFor(CondUserRaised)
			}
			stmt := *n.Stmt
			stmt.Signal = &resolved
			b.plan.stmts[id] = &stmt
		}
		return nil
	case *Block:
		return b.visitBlock(id, n)
	case *Conditional:
		if n.Simple && n.Scrutinee == nil {
			return fmt.Errorf("CASE at %s has no operand", n.Pos())
		}
		for _, br := range n.Branches {
			if br.Cond == nil {
				return fmt.Errorf("branch of %s at %s has no condition", kindName(n), n.Pos())
			}
			if err := b.visitBody(n, br.Body); err != nil {
				return err
			}
		}
		if n.Else != NoNode {
			return b.visitBody(n, n.Else)
		}
		return nil
	case *While:
		if n.Cond == nil {
			return fmt.Errorf("WHILE at %s has no condition", n.Pos())
		}
		return b.visitBody(n, n.Body)
	case *Repeat:
		if n.Until == nil {
			return fmt.Errorf("REPEAT at %s has no UNTIL condition", n.Pos())
		}
		return b.visitBody(n, n.Body)
	case *Loop:
		return b.visitBody(n, n.Body)
	case *For:
		if n.Query == nil {
			return fmt.Errorf("FOR at %s has no query", n.Pos())
		}
		return b.visitBody(n, n.Body)
	case *Leave:
		return b.resolveJump(id, n.Label, n.Pos(), "LEAVE")
	case *Iterate:
		return b.resolveJump(id, n.Label, n.Pos(), "ITERATE")
	default:
		return fmt.Errorf("unsupported node %s at %s", kindName(n), n.Pos())
	}
}

// visitBody checks that a construct body is a compound block and visits it.
func (b *builder) visitBody(owner Node, id NodeID) error {
	if _, ok := b.tree.Node(id).(*Block); !ok {
		return fmt.Errorf("body of %s at %s is not a compound block", kindName(owner), owner.Pos())
	}
	return b.visit(id)
}

func (b *builder) visitBlock(id NodeID, n *Block) error {
	if n.Implicit && (len(n.Handlers) > 0 || len(n.Conditions) > 0) {
		return newError(CondInvalidHandler, n.Pos(), nil,
			"handlers and conditions can only be declared at the start of a BEGIN ... END compound")
	}

	declared := make(map[string]string, len(n.Conditions))
	for _, c := range n.Conditions {
		key := NormalizeIdent(c.Name)
		if _, dup := declared[key]; dup {
			return newError(CondDuplicateCondition, c.Pos,
				map[string]string{"conditionName": strings.ToUpper(c.Name)},
				"found duplicate condition %s in the scope", strings.ToUpper(c.Name))
		}
		declared[key] = strings.ToUpper(c.SQLState)
	}
	b.conds = append(b.conds, declared)
	defer func() { b.conds = b.conds[:len(b.conds)-1] }()

	if len(n.Handlers) > 0 {
		table := newHandlerTable(id)
		for _, h := range n.Handlers {
			if len(h.Conditions) == 0 {
				return newError(CondInvalidHandler, h.Pos, nil, "handler declares no condition")
			}
			resolved := *h
			resolved.Conditions = make([]ConditionRef, len(h.Conditions))
			for i, c := range h.Conditions {
				if c.Kind == CondNamed {
					c.state = b.lookupCondition(c.Value)
				}
				resolved.Conditions[i] = c
			}
			if err := table.add(&resolved); err != nil {
				return err
			}
		}
		b.plan.handlers[id] = table
	}

	seen := make(map[string]bool)
	for _, child := range n.Body {
		if label, _ := labelOf(b.tree.Node(child)); label != "" {
			key := NormalizeIdent(label)
			if seen[key] {
				return newError(CondLabelAlreadyExists, b.tree.Node(child).Pos(),
					map[string]string{"label": key},
					"the label %s already exists in this compound", key)
			}
			seen[key] = true
		}
		if err := b.visit(child); err != nil {
			return err
		}
	}

	// Handler bodies see the labels of the declaring block and its ancestors.
	for _, h := range n.Handlers {
		if err := b.visitBody(n, h.Body); err != nil {
			return err
		}
	}
	return nil
}

// lookupCondition returns the SQLSTATE of a declared condition name visible
// from the current block, or "".
func (b *builder) lookupCondition(name string) string {
	key := NormalizeIdent(name)
	for i := len(b.conds) - 1; i >= 0; i-- {
		if st, ok := b.conds[i][key]; ok {
			return st
		}
	}
	return ""
}

func (b *builder) resolveJump(id NodeID, label string, pos token.Position, kind string) error {
	key := NormalizeIdent(label)
	target, loop, ok := b.labels.Resolve(label)
	if !ok {
		return newError(CondLabelDoesNotExist, pos,
			map[string]string{"labelName": key, "statementType": kind},
			"the label %s does not exist; %s can only reference an enclosing label", key, kind)
	}
	if kind == "ITERATE" && !loop {
		return newError(CondIterateInCompound, pos,
			map[string]string{"labelName": key},
			"ITERATE statement cannot be used with a label %s that belongs to a compound (BEGIN...END) body", key)
	}
	b.plan.targets[id] = target
	return nil
}
