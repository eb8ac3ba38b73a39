// Package evaluator runs script statements and expressions on a database
// adapter. It implements script.Evaluator.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/core"
	"github.com/leapstack-labs/leapscript/pkg/script"
)

// Condition names raised by the evaluator in addition to those of package
// script.
const (
	CondArityMismatch       = "ASSIGNMENT_ARITY_MISMATCH"
	CondDuplicateAssignment = "DUPLICATE_ASSIGNMENTS"
)

// Conn is the database surface the evaluator runs SQL on.
// adapter.Adapter satisfies it.
type Conn interface {
	Exec(ctx context.Context, sql string) (int64, error)
	Query(ctx context.Context, sql string) (*core.Rows, error)
	Dialect() *core.DialectConfig
	SQLState(err error) string
}

// Options configures an Evaluator.
type Options struct {
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Evaluator executes leaf statements and guard expressions on a Conn.
type Evaluator struct {
	conn    Conn
	dialect *core.DialectConfig
	logger  *slog.Logger
}

var _ script.Evaluator = (*Evaluator)(nil)

// New creates an evaluator bound to conn.
func New(conn Conn, opts Options) *Evaluator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := conn.Dialect()
	if d == nil {
		d = &core.DialectConfig{Name: "ansi"}
	}
	return &Evaluator{conn: conn, dialect: d, logger: logger}
}

// Evaluate runs a guard, CASE operand or CASE value. Expressions run as
// SELECT <expr>; an expression that is itself a query runs as written.
func (e *Evaluator) Evaluate(ctx context.Context, expr *script.Expr, scopes *script.ScopeStack) (*script.ResultSet, error) {
	text, err := e.bind(expr.Text, scopes)
	if err != nil {
		return nil, err
	}
	return e.query(ctx, selectSQL(text))
}

// Execute runs a leaf statement or a FOR query.
func (e *Evaluator) Execute(ctx context.Context, stmt *script.Statement, scopes *script.ScopeStack) (*script.ResultSet, error) {
	switch stmt.Kind {
	case script.StmtDeclare:
		return nil, e.declare(ctx, stmt, scopes)
	case script.StmtSet:
		return e.set(ctx, stmt, scopes)
	case script.StmtSignal:
		return nil, signal(stmt)
	}

	text, err := e.bind(stmt.Text, scopes)
	if err != nil {
		return nil, err
	}
	if isQuery(unparen(text)) {
		return e.query(ctx, text)
	}
	return e.exec(ctx, text)
}

func (e *Evaluator) declare(ctx context.Context, stmt *script.Statement, scopes *script.ScopeStack) error {
	spec := stmt.Declare
	if inner := scopes.Innermost(); inner != nil && !spec.Replace {
		for _, name := range spec.Names {
			if _, exists := inner.Get(name); exists {
				return variableExists(name)
			}
		}
	}

	var value any
	if spec.Default != nil {
		v, err := e.value(ctx, spec.Default, spec.Type, scopes)
		if err != nil {
			return err
		}
		value = v
	}
	for _, name := range spec.Names {
		if err := scopes.Declare(name, spec.Type, value, spec.Replace); err != nil {
			return err
		}
		e.logger.Debug("variable declared", slog.String("name", script.NormalizeIdent(name)), slog.Any("value", value))
	}
	return nil
}

func (e *Evaluator) set(ctx context.Context, stmt *script.Statement, scopes *script.ScopeStack) (*script.ResultSet, error) {
	spec := stmt.Set
	seen := make(map[string]bool, len(spec.Names))
	vars := make([]*script.Variable, len(spec.Names))
	for i, name := range spec.Names {
		key := script.NormalizeIdent(name)
		if seen[key] {
			return nil, &script.Error{
				Condition: CondDuplicateAssignment,
				SQLState:  "42701",
				Message:   fmt.Sprintf("the variable %s is assigned more than once", key),
				Params:    map[string]string{"variableName": key},
			}
		}
		seen[key] = true
		v, ok := scopes.Lookup(name)
		if !ok {
			// SET name = value on something that is not a variable is a
			// session setting for the database.
			if !spec.Explicit && len(spec.Names) == 1 {
				e.logger.Debug("passing SET to database", slog.String("name", key))
				return e.exec(ctx, stmt.Text)
			}
			return nil, unresolved(name)
		}
		vars[i] = v
	}

	if len(vars) == 1 {
		value, err := e.value(ctx, spec.Value, vars[0].Type, scopes)
		if err != nil {
			return nil, err
		}
		return nil, scopes.Assign(vars[0].Name, value)
	}

	text, err := e.bind(spec.Value.Text, scopes)
	if err != nil {
		return nil, err
	}
	rs, err := e.query(ctx, selectSQL(unparen(text)))
	if err != nil {
		return nil, err
	}
	if len(rs.Columns) != len(vars) {
		return nil, &script.Error{
			Condition: CondArityMismatch,
			SQLState:  "42802",
			Message:   fmt.Sprintf("%d variables are assigned but the query returns %d columns", len(vars), len(rs.Columns)),
			Params:    map[string]string{"numTargets": strconv.Itoa(len(vars)), "numExpr": strconv.Itoa(len(rs.Columns))},
		}
	}
	if len(rs.Rows) > 1 {
		return nil, script.Errorf(script.CondScalarTooManyRows, "",
			"more than one row returned by a query assigned to variables")
	}
	for i, v := range vars {
		var value any
		if len(rs.Rows) == 1 {
			value = rs.Rows[0][i]
		}
		if err := scopes.Assign(v.Name, value); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// value evaluates expr as a scalar, cast to typ when one was declared.
func (e *Evaluator) value(ctx context.Context, expr *script.Expr, typ string, scopes *script.ScopeStack) (any, error) {
	text, err := e.bind(expr.Text, scopes)
	if err != nil {
		return nil, err
	}
	sql := selectSQL(text)
	if typ != "" {
		sql = fmt.Sprintf("SELECT CAST((%s) AS %s)", text, typ)
	}
	rs, err := e.query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return script.Scalar(rs, expr)
}

func signal(stmt *script.Statement) error {
	spec := stmt.Signal
	state := spec.SQLState
	if state == "" {
		state = script.SQLStateFor(script.CondUserRaised)
	}

	cond := script.CondUserRaised
	switch {
	case spec.Condition != "":
		cond = strings.ToUpper(spec.Condition)
	case script.ConditionForSQLState(state) != script.CondQueryFailed:
		cond = script.ConditionForSQLState(state)
	}

	msg := spec.Message
	if msg == "" {
		msg = fmt.Sprintf("unhandled exception with SQLSTATE %s", state)
	}
	return &script.Error{
		Condition: cond,
		SQLState:  state,
		Message:   msg,
		Params:    map[string]string{"sqlState": state},
	}
}

func (e *Evaluator) exec(ctx context.Context, sql string) (*script.ResultSet, error) {
	e.logger.Debug("executing statement", slog.String("sql", sql))
	n, err := e.conn.Exec(ctx, sql)
	if err != nil {
		return nil, e.classify(err)
	}
	return &script.ResultSet{Affected: n}, nil
}

func (e *Evaluator) query(ctx context.Context, sql string) (*script.ResultSet, error) {
	e.logger.Debug("executing query", slog.String("sql", sql))
	rows, err := e.conn.Query(ctx, sql)
	if err != nil {
		return nil, e.classify(err)
	}
	rs, err := readRows(rows)
	if err != nil {
		return nil, e.classify(err)
	}
	return rs, nil
}

func readRows(rows *core.Rows) (*script.ResultSet, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	rs := &script.ResultSet{Columns: cols, Affected: -1}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// classify attaches the driver's SQLSTATE to err. Errors without one are
// returned unchanged and classified by the caller.
func (e *Evaluator) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	state := e.conn.SQLState(err)
	if state == "" {
		return err
	}
	return &script.Error{
		Condition: script.ConditionForSQLState(state),
		SQLState:  state,
		Message:   err.Error(),
		Err:       err,
	}
}

func variableExists(name string) error {
	key := script.NormalizeIdent(name)
	return &script.Error{
		Condition: script.CondVariableAlreadyExists,
		SQLState:  script.SQLStateFor(script.CondVariableAlreadyExists),
		Message:   fmt.Sprintf("cannot create the variable %s because it already exists", key),
		Params:    map[string]string{"variableName": key},
	}
}

func unresolved(name string) error {
	key := script.NormalizeIdent(name)
	return &script.Error{
		Condition: script.CondUnresolvedVariable,
		SQLState:  script.SQLStateFor(script.CondUnresolvedVariable),
		Message:   fmt.Sprintf("cannot resolve variable %s", key),
		Params:    map[string]string{"variableName": key},
	}
}
