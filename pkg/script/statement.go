package script

import (
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// StmtKind classifies leaf statements.
type StmtKind uint8

const (
	// StmtQuery is any SQL statement run by the evaluator as-is.
	StmtQuery StmtKind = iota
	// StmtDeclare declares one or more variables.
	StmtDeclare
	// StmtSet assigns variables.
	StmtSet
	// StmtSignal raises a condition.
	StmtSignal
)

func (k StmtKind) String() string {
	switch k {
	case StmtQuery:
		return "QUERY"
	case StmtDeclare:
		return "DECLARE"
	case StmtSet:
		return "SET"
	case StmtSignal:
		return "SIGNAL"
	}
	return "UNKNOWN"
}

// Expr is an expression carried as source text.
type Expr struct {
	Text string
	Pos  token.Position
}

func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.Text
}

// Statement is a leaf statement yielded to the caller.
type Statement struct {
	Kind StmtKind
	Text string
	Pos  token.Position

	Declare *DeclareSpec
	Set     *SetSpec
	Signal  *SignalSpec
}

func (s *Statement) String() string {
	return s.Text
}

// Summary returns the first line of the statement text, shortened to max
// runes.
func (s *Statement) Summary(max int) string {
	text := strings.TrimSpace(s.Text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i]) + " ..."
	}
	r := []rune(text)
	if max > 3 && len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return text
}

// DeclareSpec describes DECLARE [OR REPLACE] [VARIABLE] names [type] [DEFAULT expr].
type DeclareSpec struct {
	Names   []string
	Type    string
	Default *Expr
	Replace bool
}

// SetSpec describes SET [VAR] name = expr or SET (a, b) = (query).
// Explicit is set when VAR or VARIABLE was written; without it a name that
// is not a variable may be a session setting.
type SetSpec struct {
	Names    []string
	Value    *Expr
	Explicit bool
}

// SignalSpec describes SIGNAL SQLSTATE 'xxxxx' or SIGNAL condition_name,
// with an optional MESSAGE_TEXT.
type SignalSpec struct {
	// SQLState is filled in by Build when a condition name is signalled.
	SQLState  string
	Condition string
	Message   string
}
