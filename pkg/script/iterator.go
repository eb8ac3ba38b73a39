package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// ErrNoEvaluator is returned when a plan that needs to evaluate guards or
// queries was built without an Evaluator.
var ErrNoEvaluator = errors.New("no evaluator configured")

var (
	// errUnwound reports that an EXIT handler replaced the failing
	// activation and everything above its declaring block.
	errUnwound = errors.New("unwound to exit handler")
	// errSkipped reports that a CONTINUE handler took the error; the
	// failing construct is abandoned and the handler runs next.
	errSkipped = errors.New("skipped by continue handler")
)

type phase uint8

const (
	phaseInit phase = iota
	phaseRun
)

// activation is the progress of one open construct.
type activation struct {
	id   NodeID
	node Node

	phase phase
	// index is the next child of a block, the next branch of a conditional
	// or the next row of a FOR loop.
	index      int
	iterations int
	operand    any
	rows       *ResultSet

	// scope is set for blocks, which own one scope on the scope stack.
	scope *Scope
	// owner is set on handler bodies and points at the declaring block.
	owner *activation
	// exiting marks a block whose EXIT handler is running.
	exiting bool
}

type signalKind uint8

const (
	sigLeave signalKind = iota + 1
	sigIterate
)

// signal is a LEAVE or ITERATE travelling down the activation stack.
type signal struct {
	kind   signalKind
	target NodeID
}

type pendingHandler struct {
	handler *Handler
	owner   *activation
}

// Iterator is a resumable cursor over the statements of a plan. Each call
// to Next runs guards and cursor queries internally and stops at the next
// leaf statement, which the caller executes before calling Next again.
type Iterator struct {
	plan   *Plan
	eval   Evaluator
	scopes *ScopeStack
	logger *slog.Logger

	stack   []*activation
	pending *pendingHandler
	handled []*Error
	last    *Statement
	err     error
}

func newIterator(p *Plan, scopes *ScopeStack) *Iterator {
	it := &Iterator{
		plan:   p,
		eval:   p.opts.Evaluator,
		scopes: scopes,
		logger: p.opts.Logger,
	}
	it.pushBlock(p.tree.Root, nil, nil)
	return it
}

// Next returns the next statement to execute, or nil when the script has
// completed. Once Next or Raise has returned an unhandled error, Next keeps
// returning it.
func (it *Iterator) Next(ctx context.Context) (*Statement, error) {
	if it.err != nil {
		return nil, it.err
	}
	for len(it.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stmt, err := it.step(ctx)
		if err != nil {
			it.err = err
			return nil, err
		}
		it.flushPending()
		if stmt != nil {
			it.last = stmt
			return stmt, nil
		}
	}
	return nil, nil
}

// Raise reports that the statement last returned by Next failed. It returns
// nil when a handler took the error; execution then continues with the
// handler body. Otherwise it returns the classified error, which ends the
// iteration.
func (it *Iterator) Raise(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if it.err != nil {
		return it.err
	}
	if ctx.Err() != nil || isContextErr(err) {
		it.err = err
		return err
	}
	pos := noPos
	if it.last != nil {
		pos = it.last.Pos
	}
	switch herr := it.fault(err, pos); {
	case herr == nil, errors.Is(herr, errUnwound):
		return nil
	case errors.Is(herr, errSkipped):
		it.flushPending()
		return nil
	default:
		it.err = herr
		return herr
	}
}

// Done reports whether the iteration has finished or failed.
func (it *Iterator) Done() bool {
	return it.err != nil || len(it.stack) == 0
}

// Err returns the error that ended the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Handled returns the errors taken by handlers so far, in order.
func (it *Iterator) Handled() []*Error {
	return it.handled
}

// Depth returns the number of open constructs.
func (it *Iterator) Depth() int {
	return len(it.stack)
}

// Scopes returns the scope stack the iterator runs with.
func (it *Iterator) Scopes() *ScopeStack {
	return it.scopes
}

func (it *Iterator) top() *activation {
	return it.stack[len(it.stack)-1]
}

func (it *Iterator) push(act *activation) {
	it.stack = append(it.stack, act)
}

func (it *Iterator) pushBlock(id NodeID, scope *Scope, owner *activation) {
	if scope == nil {
		scope = NewScope()
	}
	it.scopes.Push(scope)
	it.push(&activation{id: id, node: it.plan.tree.Node(id), scope: scope, owner: owner})
}

func (it *Iterator) pop() {
	act := it.top()
	it.stack = it.stack[:len(it.stack)-1]
	if act.scope != nil {
		it.scopes.Pop()
	}
}

func (it *Iterator) step(ctx context.Context) (*Statement, error) {
	act := it.top()
	switch n := act.node.(type) {
	case *Block:
		if act.exiting || act.index >= len(n.Body) {
			it.pop()
			return nil, nil
		}
		child := n.Body[act.index]
		act.index++
		return it.enter(child), nil
	case *Conditional:
		return nil, it.stepConditional(ctx, act, n)
	case *While:
		return nil, it.stepWhile(ctx, act, n)
	case *Repeat:
		return nil, it.stepRepeat(ctx, act, n)
	case *Loop:
		if err := it.countIteration(act, n.Pos()); err != nil {
			return nil, err
		}
		it.pushBlock(n.Body, nil, nil)
		return nil, nil
	case *For:
		return nil, it.stepFor(ctx, act, n)
	default:
		return nil, fmt.Errorf("unsupported node %s at %s", kindName(n), n.Pos())
	}
}

// enter starts a child of a block. Leaves are returned for the caller to
// execute; control statements are delivered immediately.
func (it *Iterator) enter(id NodeID) *Statement {
	switch n := it.plan.tree.Node(id).(type) {
	case *Leaf:
		return it.plan.Statement(id)
	case *Block:
		it.pushBlock(id, nil, nil)
	case *Leave:
		it.deliver(signal{kind: sigLeave, target: it.plan.Target(id)})
	case *Iterate:
		it.deliver(signal{kind: sigIterate, target: it.plan.Target(id)})
	default:
		it.push(&activation{id: id, node: n})
	}
	return nil
}

// deliver offers a signal to each activation from the top down. Every
// activation above the target is closed along with its scope. LEAVE also
// closes the target; ITERATE leaves the loop on top so that its next step
// starts the next iteration.
func (it *Iterator) deliver(sig signal) {
	for len(it.stack) > 0 {
		if it.top().id == sig.target {
			if sig.kind == sigLeave {
				it.pop()
			}
			return
		}
		it.pop()
	}
}

func (it *Iterator) stepConditional(ctx context.Context, act *activation, n *Conditional) error {
	if n.Simple && act.phase == phaseInit {
		v, err := it.value(ctx, n.Scrutinee)
		if err != nil {
			return it.abandon(it.fault(err, n.Scrutinee.Pos))
		}
		act.operand = v
		act.phase = phaseRun
		return nil
	}

	if act.index < len(n.Branches) {
		br := n.Branches[act.index]
		act.index++
		var ok bool
		var err error
		if n.Simple {
			ok, err = it.match(ctx, act, br.Cond)
		} else {
			ok, err = it.truth(ctx, act, br.Cond)
		}
		if err != nil {
			return it.abandon(it.fault(err, br.Cond.Pos))
		}
		if ok {
			it.pop()
			it.pushBlock(br.Body, nil, nil)
		}
		return nil
	}

	it.pop()
	if n.Else != NoNode {
		it.pushBlock(n.Else, nil, nil)
	}
	return nil
}

func (it *Iterator) stepWhile(ctx context.Context, act *activation, n *While) error {
	ok, err := it.truth(ctx, act, n.Cond)
	if err != nil {
		return it.abandon(it.fault(err, n.Cond.Pos))
	}
	if !ok {
		it.pop()
		return nil
	}
	if err := it.countIteration(act, n.Pos()); err != nil {
		return err
	}
	it.pushBlock(n.Body, nil, nil)
	return nil
}

func (it *Iterator) stepRepeat(ctx context.Context, act *activation, n *Repeat) error {
	if act.phase == phaseInit {
		act.phase = phaseRun
	} else {
		done, err := it.truth(ctx, act, n.Until)
		if err != nil {
			return it.abandon(it.fault(err, n.Until.Pos))
		}
		if done {
			it.pop()
			return nil
		}
	}
	if err := it.countIteration(act, n.Pos()); err != nil {
		return err
	}
	it.pushBlock(n.Body, nil, nil)
	return nil
}

func (it *Iterator) stepFor(ctx context.Context, act *activation, n *For) error {
	if act.phase == phaseInit {
		if it.eval == nil {
			return ErrNoEvaluator
		}
		rs, err := it.eval.Execute(ctx, n.Query, it.scopes)
		if err != nil {
			return it.abandon(it.fault(err, n.Query.Pos))
		}
		act.rows = rs
		act.phase = phaseRun
	}
	if act.index >= act.rows.Len() {
		it.pop()
		return nil
	}
	row := act.rows.Rows[act.index]
	act.index++
	if err := it.countIteration(act, n.Pos()); err != nil {
		return err
	}
	it.pushBlock(n.Body, rowScope(act.rows.Columns, row, n.Var), nil)
	return nil
}

// rowScope binds one variable per column and, when name is set, a record
// variable holding the whole row.
func rowScope(columns []string, row []any, name string) *Scope {
	sc := NewScope()
	for i, col := range columns {
		var v any
		if i < len(row) {
			v = row[i]
		}
		sc.Put(&Variable{Name: col, Value: v})
	}
	if name != "" {
		sc.Put(&Variable{Name: name, Record: &Record{Columns: columns, Values: row}})
	}
	return sc
}

func (it *Iterator) countIteration(act *activation, pos token.Position) error {
	act.iterations++
	limit := it.plan.opts.MaxIterations
	if limit > 0 && act.iterations > limit {
		label := it.plan.Label(act.id)
		return newError(CondIterationLimit, pos,
			map[string]string{"label": label, "limit": strconv.Itoa(limit)},
			"%s loop exceeded %d iterations", kindName(act.node), limit)
	}
	return nil
}

// value evaluates an expression to a single scalar.
func (it *Iterator) value(ctx context.Context, expr *Expr) (any, error) {
	if it.eval == nil {
		return nil, ErrNoEvaluator
	}
	rs, err := it.eval.Evaluate(ctx, expr, it.scopes)
	if err != nil {
		return nil, err
	}
	return Scalar(rs, expr)
}

// truth evaluates a guard.
func (it *Iterator) truth(ctx context.Context, act *activation, expr *Expr) (bool, error) {
	v, err := it.value(ctx, expr)
	if err != nil {
		return false, err
	}
	ok, err := Truth(v, expr)
	if err != nil {
		return false, err
	}
	it.observe(act, expr, v, ok)
	return ok, nil
}

// match compares a simple-CASE branch value with the operand.
func (it *Iterator) match(ctx context.Context, act *activation, expr *Expr) (bool, error) {
	v, err := it.value(ctx, expr)
	if err != nil {
		return false, err
	}
	ok, err := Equal(act.operand, v, it.plan.opts.Strict, expr)
	if err != nil {
		return false, err
	}
	it.observe(act, expr, v, ok)
	return ok, nil
}

func (it *Iterator) observe(act *activation, expr *Expr, v any, ok bool) {
	it.logger.Debug("guard evaluated",
		slog.String("construct", kindName(act.node)),
		slog.String("expr", expr.Text),
		slog.Any("value", v),
		slog.Bool("result", ok))
	if it.plan.opts.OnGuard != nil {
		it.plan.opts.OnGuard(GuardCheck{Node: act.id, Expr: expr, Value: v, Result: ok})
	}
}

// fault routes a runtime error to the innermost matching handler. It
// returns errUnwound when an EXIT handler took over, errSkipped when a
// CONTINUE handler is pending, and the classified error when nothing
// matched.
func (it *Iterator) fault(err error, pos token.Position) error {
	if errors.Is(err, ErrNoEvaluator) || isContextErr(err) {
		return err
	}
	e := Classify(err)
	if !e.Pos.IsValid() {
		e.Pos = pos
	}
	idx, h := it.findHandler(e)
	if h == nil {
		return e
	}
	it.handled = append(it.handled, e)
	owner := it.stack[idx]
	it.logger.Debug("handler invoked",
		slog.String("condition", e.Condition),
		slog.String("sqlstate", e.SQLState),
		slog.String("action", h.Action.String()),
		slog.String("block", it.plan.Label(owner.id)))

	if h.Action == HandlerExit {
		for len(it.stack) > idx+1 {
			it.pop()
		}
		owner.exiting = true
		it.pushBlock(h.Body, nil, owner)
		return errUnwound
	}
	it.pending = &pendingHandler{handler: h, owner: owner}
	return errSkipped
}

// findHandler searches open blocks from the top down. Inside a handler body
// the search continues below the declaring block, so a handler never
// catches errors raised by its own block's handlers.
func (it *Iterator) findHandler(e *Error) (int, *Handler) {
	for i := len(it.stack) - 1; i >= 0; i-- {
		act := it.stack[i]
		if act.owner != nil {
			if j := it.indexOf(act.owner); j >= 0 {
				i = j
				continue
			}
		}
		if _, ok := act.node.(*Block); !ok {
			continue
		}
		if h, ok := it.plan.Handlers(act.id).Match(e); ok {
			return i, h
		}
	}
	return -1, nil
}

func (it *Iterator) indexOf(act *activation) int {
	for i := len(it.stack) - 1; i >= 0; i-- {
		if it.stack[i] == act {
			return i
		}
	}
	return -1
}

// abandon finishes a step that failed. A construct whose guard or query was
// taken by a CONTINUE handler is closed so that execution resumes after it.
func (it *Iterator) abandon(err error) error {
	switch {
	case errors.Is(err, errUnwound):
		return nil
	case errors.Is(err, errSkipped):
		it.pop()
		return nil
	default:
		return err
	}
}

func (it *Iterator) flushPending() {
	if it.pending == nil {
		return
	}
	p := it.pending
	it.pending = nil
	it.pushBlock(p.handler.Body, nil, p.owner)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
