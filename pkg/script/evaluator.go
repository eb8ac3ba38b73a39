package script

import "context"

// ResultSet is the tabular result of a statement or expression.
type ResultSet struct {
	Columns []string
	Rows    [][]any
	// Affected is the number of rows changed by a DML statement, or -1.
	Affected int64
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Evaluator executes statements and expressions on behalf of the iterator.
type Evaluator interface {
	// Evaluate runs a guard, CASE scrutinee or CASE value expression.
	Evaluate(ctx context.Context, expr *Expr, scopes *ScopeStack) (*ResultSet, error)
	// Execute runs a leaf statement or a FOR query.
	Execute(ctx context.Context, stmt *Statement, scopes *ScopeStack) (*ResultSet, error)
}
