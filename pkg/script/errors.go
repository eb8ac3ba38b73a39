package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// Condition names. A condition is a dotted class name; handlers declared for
// the part before the first dot also match the more specific names.
const (
	CondLabelDoesNotExist     = "INVALID_LABEL_USAGE.DOES_NOT_EXIST"
	CondIterateInCompound     = "INVALID_LABEL_USAGE.ITERATE_IN_COMPOUND"
	CondLabelAlreadyExists    = "LABEL_ALREADY_EXISTS"
	CondDuplicateHandler      = "DUPLICATE_HANDLER_FOR_SAME_CONDITION"
	CondDuplicateCondition    = "DUPLICATE_CONDITION_IN_SCOPE"
	CondInvalidHandler        = "INVALID_HANDLER_DECLARATION"
	CondInvalidBoolean        = "INVALID_BOOLEAN_STATEMENT"
	CondScalarTooManyRows     = "SCALAR_SUBQUERY_TOO_MANY_ROWS"
	CondScalarMultiColumn     = "INVALID_SUBQUERY_EXPRESSION.SCALAR_SUBQUERY_RETURN_MORE_THAN_ONE_OUTPUT_COLUMN"
	CondCastInvalidInput      = "CAST_INVALID_INPUT"
	CondDivideByZero          = "DIVIDE_BY_ZERO"
	CondVariableAlreadyExists = "VARIABLE_ALREADY_EXISTS"
	CondUnresolvedVariable    = "UNRESOLVED_VARIABLE"
	CondIterationLimit        = "LOOP_ITERATION_LIMIT_EXCEEDED"
	CondUserRaised            = "USER_RAISED_EXCEPTION"
	CondNoData                = "NO_DATA"
	CondQueryFailed           = "QUERY_EXECUTION_FAILED"
)

// sqlStates holds the SQLSTATE reported for each condition.
var sqlStates = map[string]string{
	CondLabelDoesNotExist:     "42K0L",
	CondIterateInCompound:     "42K0L",
	CondLabelAlreadyExists:    "42K0L",
	CondDuplicateHandler:      "42734",
	CondDuplicateCondition:    "42734",
	CondInvalidHandler:        "42K0Q",
	CondInvalidBoolean:        "22546",
	CondScalarTooManyRows:     "21000",
	CondScalarMultiColumn:     "42823",
	CondCastInvalidInput:      "22018",
	CondDivideByZero:          "22012",
	CondVariableAlreadyExists: "42723",
	CondUnresolvedVariable:    "42883",
	CondIterationLimit:        "54000",
	CondUserRaised:            "45000",
	CondNoData:                "02000",
	CondQueryFailed:           "XX000",
}

// conditionsByState maps well-known SQLSTATEs reported by databases back to
// condition names.
var conditionsByState = map[string]string{
	"02000": CondNoData,
	"21000": CondScalarTooManyRows,
	"22003": "ARITHMETIC_OVERFLOW",
	"22012": CondDivideByZero,
	"22018": CondCastInvalidInput,
	"22P02": CondCastInvalidInput,
	"23502": "NOT_NULL_CONSTRAINT_VIOLATION",
	"23505": "UNIQUE_CONSTRAINT_VIOLATION",
	"42601": "PARSE_SYNTAX_ERROR",
	"42703": "UNRESOLVED_COLUMN",
	"42883": "UNRESOLVED_ROUTINE",
	"42P01": "TABLE_OR_VIEW_NOT_FOUND",
	"45000": CondUserRaised,
}

var noPos token.Position

// SQLStateFor returns the SQLSTATE of a condition, or "" when unknown.
func SQLStateFor(condition string) string {
	return sqlStates[condition]
}

// ConditionForSQLState returns the condition name for a SQLSTATE.
// Unknown states map to CondQueryFailed.
func ConditionForSQLState(state string) string {
	if c, ok := conditionsByState[strings.ToUpper(state)]; ok {
		return c
	}
	return CondQueryFailed
}

// Error is a classified script error. Build-time structural errors and
// run-time failures share this type; handlers match on Condition and
// SQLState.
type Error struct {
	Condition string
	SQLState  string
	Message   string
	Params    map[string]string
	Pos       token.Position
	Err       error
}

// newError creates an Error for a known condition.
func newError(condition string, pos token.Position, params map[string]string, format string, args ...any) *Error {
	return &Error{
		Condition: condition,
		SQLState:  SQLStateFor(condition),
		Message:   fmt.Sprintf(format, args...),
		Params:    params,
		Pos:       pos,
	}
}

// Errorf creates a classified error with the given condition and SQLSTATE.
// An empty state is filled from the condition when it is known.
func Errorf(condition, state string, format string, args ...any) *Error {
	if state == "" {
		state = SQLStateFor(condition)
	}
	return &Error{
		Condition: condition,
		SQLState:  strings.ToUpper(state),
		Message:   fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Condition)
	b.WriteString("] ")
	b.WriteString(e.Message)
	if len(e.Params) > 0 {
		keys := make([]string, 0, len(e.Params))
		for k := range e.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Params[k])
		}
		b.WriteString(")")
	}
	if e.SQLState != "" {
		fmt.Fprintf(&b, " SQLSTATE: %s", e.SQLState)
	}
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, " at line %d, column %d", e.Pos.Line, e.Pos.Column)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Class returns the condition up to the first dot.
func (e *Error) Class() string {
	if i := strings.IndexByte(e.Condition, '.'); i >= 0 {
		return e.Condition[:i]
	}
	return e.Condition
}

// Param returns a named parameter of the error.
func (e *Error) Param(name string) string {
	return e.Params[name]
}

// sqlStater is implemented by driver errors that expose a SQLSTATE.
type sqlStater interface {
	SQLState() string
}

// Classify converts any error into a classified *Error. Errors that are
// already classified are returned as-is; errors exposing a SQLSTATE keep it;
// anything else becomes CondQueryFailed.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	var st sqlStater
	if errors.As(err, &st) && st.SQLState() != "" {
		state := strings.ToUpper(st.SQLState())
		return &Error{
			Condition: ConditionForSQLState(state),
			SQLState:  state,
			Message:   err.Error(),
			Err:       err,
		}
	}
	return &Error{
		Condition: CondQueryFailed,
		SQLState:  SQLStateFor(CondQueryFailed),
		Message:   err.Error(),
		Err:       err,
	}
}
