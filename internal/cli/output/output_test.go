package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"text", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{"json", ModeJSON},
		{"auto", ModeAuto},
		{"", ModeAuto},
		{"xml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{"auto on tty is text", ModeAuto, true, ModeText},
		{"auto on pipe is markdown", ModeAuto, false, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit text on pipe", ModeText, false, ModeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_NoColorWithoutTTY(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	r := NewRendererWithTTY(out, errOut, false, ModeText)

	r.Header(1, "Run")
	r.StatusLine("script.sql", "failed", "42P01")
	r.Warning("careful")

	assert.NotContains(t, out.String(), "\x1b[", "non-tty output should have no escape codes")
	assert.Contains(t, out.String(), "Run\n")
	assert.Contains(t, out.String(), "✗ script.sql  42P01")
	assert.Contains(t, errOut.String(), "! careful")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Runs", FormatHeader(2, "Runs"))
	assert.Equal(t, "# Runs", FormatHeader(0, "Runs"))
	assert.Equal(t, "- **Status:** completed", FormatKeyValue("Status", "completed"))
}

func TestResultTable(t *testing.T) {
	cols := []string{"id", "name"}
	rows := [][]any{{int64(1), "ann"}, {int64(2), nil}}

	tests := []struct {
		name     string
		format   string
		contains []string
	}{
		{"table", FormatTable, []string{"id", "ann", "null", "(2 rows)"}},
		{"csv", FormatCSV, []string{"id,name", "1,ann", "2,null"}},
		{"markdown", FormatMarkdown, []string{"| id", "| ann", "---"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, ResultTable(&buf, cols, rows, tt.format))
			got := strings.ToLower(buf.String())
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestResultTable_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ResultTable(&buf, []string{"n", "b"}, [][]any{{int64(3), []byte("x")}}, FormatJSON))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(3), got[0]["n"])
	assert.Equal(t, "x", got[0]["b"])
}

func TestResultTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ResultTable(&buf, []string{"a"}, nil, FormatTable))
	assert.Equal(t, "(0 rows)\n", buf.String())

	assert.Error(t, ResultTable(&buf, nil, nil, "xml"))
}

func TestEmitEvent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EmitEvent(&buf, RunEvent{Event: "run_start", Script: "a.sql"}))

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))

	var ev RunEvent
	require.NoError(t, json.Unmarshal([]byte(line), &ev))
	assert.Equal(t, "run_start", ev.Event)
	assert.Equal(t, "a.sql", ev.Script)
	assert.NotEmpty(t, ev.Timestamp)
}
