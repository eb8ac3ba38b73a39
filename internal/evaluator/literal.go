package evaluator

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapscript/pkg/script"
)

const timestampLayout = "2006-01-02 15:04:05.999999"

// literal renders v as SQL source. Values of typed variables are cast back
// to their declared type.
func (e *Evaluator) literal(v any, typ string) string {
	lit := e.render(v)
	if typ == "" || v == nil {
		return lit
	}
	return fmt.Sprintf("CAST(%s AS %s)", lit, typ)
}

func (e *Evaluator) render(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return quote(x)
	case []byte:
		return quote(string(x))
	case int:
		return signed(strconv.Itoa(x))
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return signed(fmt.Sprintf("%d", x))
	case float32:
		return renderFloat(float64(x))
	case float64:
		return renderFloat(x)
	case *big.Int:
		return signed(x.String())
	case *big.Float:
		return signed(x.Text('g', -1))
	case time.Time:
		return "TIMESTAMP " + quote(x.UTC().Format(timestampLayout))
	case *script.Record:
		parts := make([]string, len(x.Values))
		for i, fv := range x.Values {
			parts[i] = e.render(fv)
		}
		return "ROW(" + strings.Join(parts, ", ") + ")"
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = e.render(item)
		}
		if e.dialect.Name == "postgres" {
			return "ARRAY[" + strings.Join(parts, ", ") + "]"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quote(k) + ": " + e.render(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case fmt.Stringer:
		// Driver decimal types print as numbers; anything else is text.
		s := x.String()
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return signed(s)
		}
		return quote(s)
	}
	return quote(fmt.Sprint(v))
}

func renderFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "CAST('NaN' AS FLOAT8)"
	case math.IsInf(f, 1):
		return "CAST('Infinity' AS FLOAT8)"
	case math.IsInf(f, -1):
		return "CAST('-Infinity' AS FLOAT8)"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return signed(s)
}

// signed parenthesizes a negative number so that a preceding minus sign
// cannot turn it into a "--" comment.
func signed(num string) string {
	if strings.HasPrefix(num, "-") {
		return "(" + num + ")"
	}
	return num
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
