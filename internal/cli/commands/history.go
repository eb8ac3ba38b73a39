package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapscript/internal/cli/output"
	"github.com/leapstack-labs/leapscript/internal/state"
)

var errHistoryDisabled = errors.New("run history is disabled (state_path is empty)")

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit  int
	Latest bool
	Prune  int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `List recorded script runs, or show the statements of one run.

Each statement is listed with its status: success, handled (it failed and a
handler caught the error) or failed (it ended the run).`,
		Example: `  # Recent runs
  leapscript history

  # Statements of one run
  leapscript history 3f0c2a9e-...

  # Latest run in the current environment
  leapscript history --latest

  # Keep only the 100 newest runs
  leapscript history --prune 100`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "Show the latest run of the current environment")
	cmd.Flags().IntVar(&opts.Prune, "prune", 0, "Delete all but the newest N runs")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cmdCtx.Engine.GetStateStore()
	if store == nil {
		return errHistoryDisabled
	}
	r := cmdCtx.Renderer

	switch {
	case opts.Prune > 0:
		if err := store.DeleteOldRuns(opts.Prune); err != nil {
			return err
		}
		r.Success(fmt.Sprintf("kept the %d newest runs", opts.Prune))
		return nil

	case opts.Latest:
		run, err := store.GetLatestRun(cmdCtx.Engine.Environment())
		if err != nil {
			return err
		}
		if run == nil {
			r.Muted("no runs recorded in environment " + cmdCtx.Engine.Environment())
			return nil
		}
		return showRun(r, store, run)

	case len(args) == 1:
		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		return showRun(r, store, run)
	}

	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return err
	}
	return listRuns(r, runs)
}

// RunInfo is the JSON form of a run.
type RunInfo struct {
	ID          string          `json:"id"`
	Environment string          `json:"environment"`
	Script      string          `json:"script"`
	Status      string          `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	DurationMS  int64           `json:"duration_ms,omitempty"`
	Error       string          `json:"error,omitempty"`
	Statements  []StatementInfo `json:"statements,omitempty"`
}

// StatementInfo is the JSON form of a recorded statement.
type StatementInfo struct {
	Seq          int    `json:"seq"`
	Kind         string `json:"kind"`
	Line         int    `json:"line"`
	Status       string `json:"status"`
	RowsAffected int64  `json:"rows_affected"`
	SQLState     string `json:"sqlstate,omitempty"`
	Condition    string `json:"condition,omitempty"`
	Error        string `json:"error,omitempty"`
	ExecutionMS  int64  `json:"execution_ms"`
	Text         string `json:"text"`
}

func runInfo(run *state.Run) RunInfo {
	info := RunInfo{
		ID:          run.ID,
		Environment: run.Environment,
		Script:      run.Script,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		Error:       run.Error,
	}
	if run.CompletedAt != nil {
		info.DurationMS = run.CompletedAt.Sub(run.StartedAt).Milliseconds()
	}
	return info
}

func runDuration(info RunInfo, run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return (time.Duration(info.DurationMS) * time.Millisecond).String()
}

func listRuns(r *output.Renderer, runs []*state.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		infos := make([]RunInfo, 0, len(runs))
		for _, run := range runs {
			infos = append(infos, runInfo(run))
		}
		return r.JSON(infos)
	}

	if len(runs) == 0 {
		r.Muted("no runs recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Started", "Env", "Script", "Status", "Duration"})
	for _, run := range runs {
		info := runInfo(run)
		t.AppendRow(table.Row{
			shortID(run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			run.Environment,
			run.Script,
			run.Status,
			runDuration(info, run),
		})
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		t.RenderMarkdown()
		return nil
	}
	t.Render()
	return nil
}

func showRun(r *output.Renderer, store state.Store, run *state.Run) error {
	stmts, err := store.GetStatementsForRun(run.ID)
	if err != nil {
		return err
	}
	info := runInfo(run)
	for _, st := range stmts {
		info.Statements = append(info.Statements, StatementInfo{
			Seq:          st.Seq,
			Kind:         st.Kind,
			Line:         st.Line,
			Status:       string(st.Status),
			RowsAffected: st.RowsAffected,
			SQLState:     st.SQLState,
			Condition:    st.Condition,
			Error:        st.Error,
			ExecutionMS:  st.ExecutionMS,
			Text:         st.Text,
		})
	}

	mode := r.EffectiveMode()
	if mode == output.ModeJSON {
		return r.JSON(info)
	}

	if mode == output.ModeMarkdown {
		r.Println(output.FormatHeader(2, "Run "+run.ID))
		r.Println(output.FormatKeyValue("Script", run.Script))
		r.Println(output.FormatKeyValue("Environment", run.Environment))
		r.Println(output.FormatKeyValue("Status", string(run.Status)))
		r.Println(output.FormatKeyValue("Started", run.StartedAt.Format(time.RFC3339)))
		r.Println(output.FormatKeyValue("Duration", runDuration(info, run)))
		if run.Error != "" {
			r.Println(output.FormatKeyValue("Error", run.Error))
		}
		r.Println("")
	} else {
		r.StatusLine(run.ID, string(run.Status), run.Script)
		r.KeyValue("Environment", run.Environment)
		r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
		r.KeyValue("Duration", runDuration(info, run))
		if run.Error != "" {
			r.KeyValue("Error", run.Error)
		}
		r.Println("")
	}

	if len(stmts) == 0 {
		r.Muted("no statements recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Line", "Kind", "Status", "Rows", "Time", "Statement"})
	for _, st := range info.Statements {
		status := st.Status
		if st.Condition != "" {
			status += " " + st.Condition
		}
		rows := "-"
		if st.RowsAffected >= 0 {
			rows = strconv.FormatInt(st.RowsAffected, 10)
		}
		t.AppendRow(table.Row{
			st.Seq,
			st.Line,
			st.Kind,
			status,
			rows,
			fmt.Sprintf("%dms", st.ExecutionMS),
			summarize(st.Text, 60),
		})
	}
	if mode == output.ModeMarkdown {
		t.RenderMarkdown()
		return nil
	}
	t.Render()
	return nil
}

// shortID abbreviates a run ID for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// summarize returns the first line of s, shortened to max runes.
func summarize(s string, max int) string {
	line := s
	for i, c := range s {
		if c == '\n' {
			line = s[:i]
			break
		}
	}
	runes := []rune(line)
	if len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return line
}
