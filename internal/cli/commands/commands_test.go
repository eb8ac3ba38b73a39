package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapscript/internal/cli/output"
	"github.com/leapstack-labs/leapscript/internal/cli/testutil"
	"github.com/leapstack-labs/leapscript/internal/engine"
	_ "github.com/leapstack-labs/leapscript/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapscript/pkg/core"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{"run", NewRunCommand(), "run [file]", []string{"execute", "arg", "args-file", "format", "last", "watch"}},
		{"check", NewCheckCommand(), "check <file>...", nil},
		{"history", NewHistoryCommand(), "history [run-id]", []string{"limit", "latest", "prune"}},
		{"seed", NewSeedCommand(), "seed", nil},
		{"repl", NewReplCommand(), "repl", []string{"format"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr string
	}{
		{
			name:  "typed scalars",
			pairs: []string{"n=3", "ratio=0.5", "flag=true", "label=hello world"},
			want:  map[string]any{"n": int64(3), "ratio": 0.5, "flag": true, "label": "hello world"},
		},
		{
			name:  "names are case-insensitive",
			pairs: []string{"BatchSize=10"},
			want:  map[string]any{"batchsize": int64(10)},
		},
		{
			name:  "null and empty",
			pairs: []string{"a=null", "b="},
			want:  map[string]any{"a": nil, "b": ""},
		},
		{
			name:  "quoted number stays text",
			pairs: []string{`code="007"`},
			want:  map[string]any{"code": "007"},
		},
		{
			name:  "later pair wins",
			pairs: []string{"x=1", "x=2"},
			want:  map[string]any{"x": int64(2)},
		},
		{
			name:    "missing equals",
			pairs:   []string{"oops"},
			wantErr: "expected name=value",
		},
		{
			name:    "empty name",
			pairs:   []string{"=1"},
			wantErr: "expected name=value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs("", tt.pairs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgs_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "args.yaml")
	require.NoError(t, os.WriteFile(file, []byte("Day: 2024-03-01\nlimit: 5\nids: [1, 2]\n"), 0o600))

	got, err := parseArgs(file, []string{"limit=7"})
	require.NoError(t, err)

	assert.Equal(t, int64(7), got["limit"], "pairs override the file")
	assert.Equal(t, []any{int64(1), int64(2)}, got["ids"])
	assert.Contains(t, got, "day")

	_, err = parseArgs(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestCheckFiles(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	valid := filepath.Join(dir, testutil.ValidScript)
	invalid := filepath.Join(dir, testutil.InvalidScript)

	results, err := checkFiles(context.Background(), []string{valid, invalid, valid})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, valid, results[0].File)
	assert.True(t, results[0].Valid)
	assert.False(t, results[1].Valid)
	assert.Contains(t, results[1].Error, "end label")
	assert.True(t, results[2].Valid)

	_, err = checkFiles(context.Background(), []string{filepath.Join(dir, "nope.sql")})
	require.Error(t, err)
}

func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"SELECT 1;", false},
		{"BEGIN\n  SELECT 1;\n", true},
		{"BEGIN SELECT 1; END;", false},
		{"WHILE x < 3 DO\n  SET x = x + 1;\n", true},
		{"SELECT 'abc;", true},
		{"END IF;", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, needsMoreInput(tt.src))
		})
	}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dir := testutil.SetupTestProject(t)
	eng, err := engine.New(engine.Config{
		SeedsDir:      filepath.Join(dir, "seeds"),
		StatePath:     filepath.Join(dir, "state.db"),
		Environment:   "test",
		AdapterConfig: &core.AdapterConfig{Type: "duckdb", Path: ":memory:"},
		MaxIterations: 100,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestExecuteScript_Markdown(t *testing.T) {
	eng := newTestEngine(t)
	tr := testutil.NewTestRendererMarkdown()

	s := engine.Script{Name: "count.sql", Source: `SELECT count(*) AS customers FROM raw_customers;`}
	err := executeScript(context.Background(), eng, tr.Renderer, s, &RunOptions{Format: output.FormatTable})
	require.NoError(t, err)

	out := strings.ToLower(tr.Output())
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "1 statements")
	testutil.AssertNoANSI(t, tr.Output())
	testutil.AssertValidMarkdown(t, tr.Output())
}

func TestExecuteScript_LastOnly(t *testing.T) {
	eng := newTestEngine(t)
	tr := testutil.NewTestRendererMarkdown()

	s := engine.Script{Name: "two.sql", Source: `SELECT 'first_result' AS a; SELECT 'second_result' AS b;`}
	err := executeScript(context.Background(), eng, tr.Renderer, s, &RunOptions{Format: output.FormatCSV, Last: true})
	require.NoError(t, err)

	assert.NotContains(t, tr.Output(), "first_result")
	assert.Contains(t, tr.Output(), "second_result")
}

func TestExecuteScript_JSONEvents(t *testing.T) {
	eng := newTestEngine(t)
	tr := testutil.NewTestRendererJSON()

	s := engine.Script{Name: "loop.sql", Source: `BEGIN
  DECLARE i INT DEFAULT 0;
  WHILE i < 2 DO
    SET i = i + 1;
  END WHILE;
END;`}
	err := executeScript(context.Background(), eng, tr.Renderer, s, &RunOptions{})
	require.NoError(t, err)

	var events []output.RunEvent
	for line := range strings.SplitSeq(strings.TrimSpace(tr.Output()), "\n") {
		var ev output.RunEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev), "line %q", line)
		events = append(events, ev)
	}

	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, "run_start", events[0].Event)
	last := events[len(events)-1]
	assert.Equal(t, "run_complete", last.Event)
	assert.Equal(t, "completed", last.Status)
	assert.NotEmpty(t, last.RunID)
	assert.Equal(t, len(events)-2, last.Statements)
	for _, ev := range events[1 : len(events)-1] {
		assert.Equal(t, "statement", ev.Event)
		assert.Equal(t, "success", ev.Status)
	}
}

func TestExecuteScript_Failure(t *testing.T) {
	eng := newTestEngine(t)
	tr := testutil.NewTestRenderer(output.ModeText, false)

	s := engine.Script{Name: "boom.sql", Source: `SELECT 1;
SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'boom';`}
	err := executeScript(context.Background(), eng, tr.Renderer, s, &RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run failed")

	assert.Contains(t, tr.Output(), "✗ boom.sql")
	assert.Contains(t, tr.ErrorOutput(), "boom")
	assert.Contains(t, tr.ErrorOutput(), "line 2")
}

func TestHistoryRendering(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Run(ctx, engine.Script{Name: "ok.sql", Source: `SELECT 1;`}, engine.RunOptions{})
	require.NoError(t, err)
	_, err = eng.Run(ctx, engine.Script{Name: "bad.sql", Source: `SELECT * FROM missing_table;`}, engine.RunOptions{})
	require.Error(t, err)

	store := eng.GetStateStore()
	require.NotNil(t, store)
	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	t.Run("list json", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, listRuns(tr.Renderer, runs))

		var infos []RunInfo
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &infos))
		require.Len(t, infos, 2)
		statuses := []string{infos[0].Status, infos[1].Status}
		assert.ElementsMatch(t, []string{"completed", "failed"}, statuses)
	})

	t.Run("show failed run", func(t *testing.T) {
		var failed *core.Run
		for _, r := range runs {
			if r.Script == "bad.sql" {
				failed = r
			}
		}
		require.NotNil(t, failed)

		tr := testutil.NewTestRendererJSON()
		require.NoError(t, showRun(tr.Renderer, store, failed))

		var info RunInfo
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &info))
		require.Len(t, info.Statements, 1)
		assert.Equal(t, "failed", info.Statements[0].Status)
		assert.NotEmpty(t, info.Statements[0].SQLState)
		assert.NotEmpty(t, info.Error)
	})

	t.Run("list text", func(t *testing.T) {
		tr := testutil.NewTestRendererText()
		require.NoError(t, listRuns(tr.Renderer, runs))
		assert.Contains(t, tr.Output(), "ok.sql")
		assert.Contains(t, tr.Output(), "bad.sql")
	})
}

func TestReplSession_KeepsVariables(t *testing.T) {
	eng := newTestEngine(t)
	tr := testutil.NewTestRendererMarkdown()
	sess := newReplSession(eng, tr.Renderer, output.FormatCSV)
	ctx := context.Background()

	sess.eval(ctx, "DECLARE x INT DEFAULT 41;\n")
	require.Empty(t, tr.ErrorOutput())
	require.Contains(t, sess.vars, "x")

	sess.eval(ctx, "SET x = x + 1;\n")
	require.Empty(t, tr.ErrorOutput())
	assert.Equal(t, "42", fmt.Sprint(sess.vars["x"]))

	tr.Reset()
	sess.eval(ctx, "SELECT x AS answer;\n")
	assert.Contains(t, tr.Output(), "42")

	tr.Reset()
	sess.eval(ctx, "SELECT * FROM no_such_table;\n")
	assert.NotEmpty(t, tr.ErrorOutput())
	assert.Contains(t, sess.vars, "x", "a failed input keeps earlier variables")
}

func TestReplSession_DotCommands(t *testing.T) {
	tr := testutil.NewTestRendererText()
	sess := newReplSession(newTestEngine(t), tr.Renderer, output.FormatTable)
	sess.vars["greeting"] = "hi"
	ctx := context.Background()

	assert.False(t, sess.dotCommand(ctx, ".vars"))
	assert.Contains(t, tr.Output(), "greeting")

	assert.False(t, sess.dotCommand(ctx, ".format csv"))
	assert.Equal(t, output.FormatCSV, sess.format)

	assert.False(t, sess.dotCommand(ctx, ".format yaml"))
	assert.Equal(t, output.FormatCSV, sess.format)
	assert.Contains(t, tr.ErrorOutput(), "unknown format")

	tr.Reset()
	assert.False(t, sess.dotCommand(ctx, ".schema raw_customers"))
	assert.Contains(t, tr.Output(), "name")
	assert.Empty(t, tr.ErrorOutput())

	assert.False(t, sess.dotCommand(ctx, ".schema missing_table"))
	assert.NotEmpty(t, tr.ErrorOutput())

	assert.False(t, sess.dotCommand(ctx, ".reset"))
	assert.Empty(t, sess.vars)

	assert.False(t, sess.dotCommand(ctx, ".bogus"))
	assert.True(t, sess.dotCommand(ctx, ".quit"))
	assert.True(t, sess.dotCommand(ctx, ".EXIT"))
}
