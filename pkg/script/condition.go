package script

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Scalar extracts the single value of an expression result. Zero rows is
// NULL; more than one row or column is an error.
func Scalar(rs *ResultSet, expr *Expr) (any, error) {
	if rs == nil {
		return nil, nil
	}
	if len(rs.Columns) > 1 {
		return nil, newError(CondScalarMultiColumn, expr.Pos,
			map[string]string{"number": strconv.Itoa(len(rs.Columns))},
			"scalar subquery must return only one column, but got %d", len(rs.Columns))
	}
	switch len(rs.Rows) {
	case 0:
		return nil, nil
	case 1:
		if len(rs.Rows[0]) == 0 {
			return nil, nil
		}
		return rs.Rows[0][0], nil
	default:
		return nil, newError(CondScalarTooManyRows, expr.Pos, nil,
			"more than one row returned by a subquery used as an expression")
	}
}

// Truth coerces a guard value to a boolean. NULL is false.
func Truth(v any, expr *Expr) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case *bool:
		return x != nil && *x, nil
	case string:
		return stringTruth(x, expr)
	case []byte:
		return stringTruth(string(x), expr)
	}
	if i, ok := toInt(v); ok {
		return i != 0, nil
	}
	if f, ok := toFloat(v); ok {
		return f != 0, nil
	}
	return false, invalidBoolean(expr)
}

func stringTruth(s string, expr *Expr) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	}
	return false, invalidBoolean(expr)
}

func invalidBoolean(expr *Expr) *Error {
	text := strings.TrimSpace(expr.Text)
	return newError(CondInvalidBoolean, expr.Pos,
		map[string]string{"invalidStatement": strings.ToUpper(text)},
		"invalid boolean statement %s", text)
}

// Equal compares a simple-CASE scrutinee with a branch value using SQL
// equality. NULL on either side never matches. When a string must be read as
// a number and cannot be, strict mode returns CAST_INVALID_INPUT and
// permissive mode reports no match.
func Equal(a, b any, strict bool, expr *Expr) (bool, error) {
	if a == nil || b == nil {
		return false, nil
	}
	a, b = unwrapBytes(a), unwrapBytes(b)

	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs, nil
		}
		return equalMixed(b, as, strict, expr)
	}
	if bs, ok := b.(string); ok {
		return equalMixed(a, bs, strict, expr)
	}

	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb, nil
		}
		if f, ok := toFloat(b); ok {
			return ab == (f != 0), nil
		}
	}
	if bb, ok := b.(bool); ok {
		if f, ok := toFloat(a); ok {
			return bb == (f != 0), nil
		}
	}

	if ai, ok := toInt(a); ok {
		if bi, ok := toInt(b); ok {
			return ai == bi, nil
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf, nil
		}
	}

	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt), nil
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b), nil
}

// equalMixed compares a non-string value with a string by casting the string.
func equalMixed(v any, s string, strict bool, expr *Expr) (bool, error) {
	switch x := v.(type) {
	case bool:
		ok, err := stringTruth(s, expr)
		if err != nil {
			return castFailure(s, "BOOLEAN", strict, expr)
		}
		return x == ok, nil
	case time.Time:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly} {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return x.Equal(t), nil
			}
		}
		return castFailure(s, "TIMESTAMP", strict, expr)
	}

	if vi, ok := toInt(v); ok {
		if si, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return vi == si, nil
		}
		if sf, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return float64(vi) == sf, nil
		}
		return castFailure(s, "BIGINT", strict, expr)
	}
	if vf, ok := toFloat(v); ok {
		sf, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return castFailure(s, "DOUBLE", strict, expr)
		}
		return vf == sf, nil
	}
	return fmt.Sprint(v) == s, nil
}

func castFailure(s, target string, strict bool, expr *Expr) (bool, error) {
	if !strict {
		return false, nil
	}
	pos := noPos
	if expr != nil {
		pos = expr.Pos
	}
	return false, newError(CondCastInvalidInput, pos,
		map[string]string{
			"expression": "'" + s + "'",
			"sourceType": "STRING",
			"targetType": target,
		},
		"the value '%s' of the type STRING cannot be cast to %s because it is malformed", s, target)
}

func unwrapBytes(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// toInt converts integer kinds to int64.
func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x), true
		}
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	case *big.Int:
		if x != nil && x.IsInt64() {
			return x.Int64(), true
		}
	}
	return 0, false
}

// floater is implemented by decimal types returned by some drivers.
type floater interface {
	Float64() float64
}

// toFloat converts any numeric kind to float64.
func toFloat(v any) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case *big.Int:
		if x == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	case *big.Float:
		if x == nil {
			return 0, false
		}
		f, _ := x.Float64()
		return f, true
	case floater:
		return x.Float64(), true
	}
	return 0, false
}
