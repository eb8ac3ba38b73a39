package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapscript/internal/cli/output"
	"github.com/leapstack-labs/leapscript/internal/engine"
	"github.com/leapstack-labs/leapscript/pkg/script"
)

// inlineScriptName names scripts given with --execute or on stdin in run history.
const inlineScriptName = "<inline>"

// RunOptions holds options for the run command.
type RunOptions struct {
	Execute  string
	Args     []string
	ArgsFile string
	Format   string
	Last     bool
	Watch    bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a SQL script",
		Long: `Execute a SQL script with its control flow (blocks, IF, CASE, loops,
handlers and SIGNAL) against the configured target.

The script is read from the given file, from --execute, or from stdin when
stdin is not a terminal. Arguments become variables of the script's outer
scope. Rows returned by queries are printed as they run.

Every run and its statements are recorded in the state database; see
'leapscript history'.`,
		Example: `  # Run a script file
  leapscript run nightly.sql

  # Pass arguments
  leapscript run load.sql --arg day=2024-03-01 --arg batch_size=500

  # Inline script, CSV results
  leapscript run -e "FOR r AS SELECT 1 AS n DO SELECT r.n; END FOR;" --format csv

  # Re-run whenever the file changes
  leapscript run scratch.sql --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Execute, "execute", "e", "", "Script text to run instead of a file")
	cmd.Flags().StringArrayVarP(&opts.Args, "arg", "a", nil, "Script argument as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.ArgsFile, "args-file", "", "YAML file of script arguments")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", output.FormatTable, "Result format: table, json, csv, md")
	cmd.Flags().BoolVar(&opts.Last, "last", false, "Print only the rows of the last query")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run the script when the file changes")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.ValidFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRun(cmd *cobra.Command, args []string, opts *RunOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	scriptArgs, err := parseArgs(opts.ArgsFile, opts.Args)
	if err != nil {
		return err
	}

	if opts.Watch {
		if len(args) == 0 {
			return fmt.Errorf("--watch needs a script file")
		}
		cmdCtx := NewCommandContextWithoutEngine(cmd)
		return watchScript(ctx, cmdCtx, args[0], scriptArgs, opts)
	}

	s, err := loadScript(cmd, args, opts)
	if err != nil {
		return err
	}
	s.Args = scriptArgs

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return executeScript(ctx, cmdCtx.Engine, cmdCtx.Renderer, s, opts)
}

// loadScript reads the script from a file, --execute or piped stdin.
func loadScript(cmd *cobra.Command, args []string, opts *RunOptions) (engine.Script, error) {
	switch {
	case opts.Execute != "" && len(args) > 0:
		return engine.Script{}, fmt.Errorf("give either a file or --execute, not both")
	case opts.Execute != "":
		return engine.Script{Name: inlineScriptName, Source: opts.Execute}, nil
	case len(args) > 0:
		return readScriptFile(args[0])
	}

	in := cmd.InOrStdin()
	if output.IsTerminal(in) {
		return engine.Script{}, fmt.Errorf("no script given: pass a file, use --execute or pipe a script on stdin")
	}
	content, err := io.ReadAll(in)
	if err != nil {
		return engine.Script{}, fmt.Errorf("failed to read stdin: %w", err)
	}
	return engine.Script{Name: inlineScriptName, Source: string(content)}, nil
}

func readScriptFile(path string) (engine.Script, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return engine.Script{}, fmt.Errorf("failed to read script: %w", err)
	}
	name := path
	if abs, err := filepath.Abs(path); err == nil {
		name = abs
	}
	return engine.Script{Name: name, Source: string(content)}, nil
}

// executeScript runs one script and renders its rows and outcome.
func executeScript(ctx context.Context, eng *engine.Engine, r *output.Renderer, s engine.Script, opts *RunOptions) error {
	mode := r.EffectiveMode()
	w := r.Writer()
	start := time.Now()

	if mode == output.ModeJSON {
		_ = output.EmitEvent(w, output.RunEvent{Event: "run_start", Script: s.Name})
	}

	var last *script.ResultSet
	seq := 0
	var renderErr error
	onStatement := func(ex script.Executed) {
		seq++
		if mode == output.ModeJSON {
			_ = output.EmitEvent(w, statementEvent(seq, ex))
			return
		}
		if ex.Err != nil || ex.Result == nil || len(ex.Result.Columns) == 0 {
			return
		}
		if opts.Last {
			last = ex.Result
			return
		}
		if err := output.ResultTable(w, ex.Result.Columns, ex.Result.Rows, opts.Format); err != nil && renderErr == nil {
			renderErr = err
		}
	}

	res, runErr := eng.Run(ctx, s, engine.RunOptions{OnStatement: onStatement})
	if renderErr != nil {
		return renderErr
	}
	if last != nil {
		if err := output.ResultTable(w, last.Columns, last.Rows, opts.Format); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	switch mode {
	case output.ModeJSON:
		_ = output.EmitEvent(w, runCompleteEvent(res, runErr, elapsed))
	case output.ModeMarkdown:
		renderRunMarkdown(r, s.Name, res, runErr, elapsed)
	default:
		renderRunText(r, s.Name, res, runErr, elapsed)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

func statementEvent(seq int, ex script.Executed) output.RunEvent {
	ev := output.RunEvent{
		Event:       "statement",
		Seq:         seq,
		Kind:        ex.Statement.Kind.String(),
		Line:        ex.Statement.Pos.Line,
		Statement:   ex.Statement.Summary(80),
		Status:      "success",
		ExecutionMS: ex.Duration.Milliseconds(),
	}
	if ex.Result != nil {
		ev.Rows = ex.Result.Len()
		if ex.Result.Affected > 0 {
			ev.RowsAffected = ex.Result.Affected
		}
	}
	if ex.Err != nil {
		ev.Status = "failed"
		ev.SQLState = ex.Err.SQLState
		ev.Condition = ex.Err.Condition
		ev.Error = ex.Err.Message
	}
	return ev
}

func runCompleteEvent(res *engine.RunResult, runErr error, elapsed time.Duration) output.RunEvent {
	ev := output.RunEvent{
		Event:   "run_complete",
		Status:  runStatus(res, runErr),
		TotalMS: elapsed.Milliseconds(),
	}
	if res != nil {
		if res.Run != nil {
			ev.RunID = res.Run.ID
		}
		if res.Result != nil {
			ev.Statements = len(res.Result.Statements)
			ev.Handled = len(res.Result.Handled)
		}
	}
	if runErr != nil {
		ev.Error = runErr.Error()
		var se *script.Error
		if errors.As(runErr, &se) {
			ev.SQLState = se.SQLState
			ev.Condition = se.Condition
			ev.Line = se.Pos.Line
		}
	}
	return ev
}

func runStatus(res *engine.RunResult, runErr error) string {
	if res != nil && res.Run != nil {
		return string(res.Run.Status)
	}
	switch {
	case runErr == nil:
		return "completed"
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}

func runSummary(res *engine.RunResult, elapsed time.Duration) string {
	statements, handled := 0, 0
	if res != nil && res.Result != nil {
		statements = len(res.Result.Statements)
		handled = len(res.Result.Handled)
	}
	parts := []string{fmt.Sprintf("%d statements", statements)}
	if handled > 0 {
		parts = append(parts, fmt.Sprintf("%d handled", handled))
	}
	parts = append(parts, elapsed.Round(time.Millisecond).String())
	return strings.Join(parts, ", ")
}

func renderRunText(r *output.Renderer, name string, res *engine.RunResult, runErr error, elapsed time.Duration) {
	r.StatusLine(filepath.Base(name), runStatus(res, runErr), runSummary(res, elapsed))
	if runErr != nil {
		r.Error(describeError(runErr))
	}
}

func renderRunMarkdown(r *output.Renderer, name string, res *engine.RunResult, runErr error, elapsed time.Duration) {
	r.Println("")
	r.Println(output.FormatHeader(2, "Run "+filepath.Base(name)))
	r.Println(output.FormatKeyValue("Status", runStatus(res, runErr)))
	if res != nil && res.Run != nil {
		r.Println(output.FormatKeyValue("Run ID", res.Run.ID))
	}
	r.Println(output.FormatKeyValue("Summary", runSummary(res, elapsed)))
	if runErr != nil {
		r.Println(output.FormatKeyValue("Error", describeError(runErr)))
	}
}

// describeError renders a run error with its line when it has one.
func describeError(err error) string {
	var se *script.Error
	if errors.As(err, &se) && se.Pos.Line > 0 {
		return fmt.Sprintf("line %d: %s", se.Pos.Line, se.Error())
	}
	return err.Error()
}
