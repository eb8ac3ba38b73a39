package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Result table formats.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// ValidFormats lists the accepted result table formats.
var ValidFormats = []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}

// ResultTable renders the rows returned by one statement.
func ResultTable(w io.Writer, cols []string, rows [][]any, format string) error {
	switch format {
	case FormatJSON:
		return resultJSON(w, cols, rows)
	case FormatCSV, FormatMarkdown, "markdown":
	case FormatTable, "":
		if len(rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = FormatValue(v)
		}
		t.AppendRow(row)
	}

	switch format {
	case FormatCSV:
		t.RenderCSV()
	case FormatMarkdown, "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
	return nil
}

func resultJSON(w io.Writer, cols []string, rows [][]any) error {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			if i < len(r) {
				m[col] = jsonValue(r[i])
			}
		}
		out = append(out, m)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case *big.Int:
		return json.Number(x.String())
	case fmt.Stringer:
		if _, ok := v.(time.Time); ok {
			return v
		}
		return x.String()
	default:
		return v
	}
}

// FormatValue formats a column value for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}
