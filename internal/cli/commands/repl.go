package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapscript/internal/cli/output"
	"github.com/leapstack-labs/leapscript/internal/engine"
	"github.com/leapstack-labs/leapscript/pkg/script"
	"github.com/leapstack-labs/leapscript/pkg/script/parser"
)

const (
	replPrompt     = "leapscript> "
	replContPrompt = "       ...> "
	replScriptName = "<repl>"
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive script shell",
		Long: `Start an interactive shell that runs script fragments against the
configured target.

Input is collected until it forms a complete script ending with a semicolon,
so a multi-line BEGIN ... END; runs once its END is typed. Variables
declared at the top level survive between inputs.`,
		Example: `  leapscript repl
  leapscript repl --database ./dev.duckdb --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatTable, "Result format: table, json, csv, md")

	return cmd
}

func runRepl(cmd *cobra.Command, format string) error {
	if !output.IsTerminal(cmd.InOrStdin()) {
		return errors.New("repl needs an interactive terminal; use 'leapscript run' for piped scripts")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	historyFile := ""
	if cmdCtx.Cfg.StatePath != "" {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newReplCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sess := newReplSession(cmdCtx.Engine, cmdCtx.Renderer, format)
	r := cmdCtx.Renderer
	r.Printf("leapscript REPL (target: %s)\n", targetName(cmdCtx))
	r.Muted("Type .help for commands, .quit to exit")
	r.Println("")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 {
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ".") {
				if sess.dotCommand(ctx, trimmed) {
					return nil
				}
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		if !strings.HasSuffix(trimmed, ";") || needsMoreInput(buf.String()) {
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		src := buf.String()
		buf.Reset()
		sess.eval(ctx, src)
		r.Println("")
	}
}

func targetName(cmdCtx *CommandContext) string {
	if cmdCtx.Cfg.Target == nil || cmdCtx.Cfg.Target.Type == "" {
		return "duckdb"
	}
	return cmdCtx.Cfg.Target.Type
}

// needsMoreInput reports whether src stops in the middle of a construct,
// such as an open BEGIN or an unterminated string.
func needsMoreInput(src string) bool {
	err := engine.Check(src)
	if err == nil {
		return false
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return strings.Contains(pe.Message, "end of input")
	}
	var le *parser.LexError
	if errors.As(err, &le) {
		return strings.HasPrefix(le.Message, "unterminated")
	}
	return false
}

// replSession runs REPL inputs on one engine and carries top level
// variables from one input to the next.
type replSession struct {
	eng    *engine.Engine
	r      *output.Renderer
	format string
	vars   map[string]any
}

func newReplSession(eng *engine.Engine, r *output.Renderer, format string) *replSession {
	return &replSession{eng: eng, r: r, format: format, vars: make(map[string]any)}
}

// eval runs one complete input. Errors are rendered, not returned.
func (s *replSession) eval(ctx context.Context, src string) {
	w := s.r.Writer()
	onStatement := func(ex script.Executed) {
		if ex.Err != nil || ex.Result == nil {
			return
		}
		if len(ex.Result.Columns) == 0 {
			if ex.Statement.Kind == script.StmtQuery && ex.Result.Affected > 0 {
				s.r.Muted(fmt.Sprintf("%d rows affected", ex.Result.Affected))
			}
			return
		}
		if err := output.ResultTable(w, ex.Result.Columns, ex.Result.Rows, s.format); err != nil {
			s.r.Error(err.Error())
		}
	}

	res, err := s.eng.Run(ctx, engine.Script{
		Name:   replScriptName,
		Source: src,
		Args:   maps.Clone(s.vars),
	}, engine.RunOptions{OnStatement: onStatement, KeepVars: true})

	if res != nil && res.Vars != nil {
		s.keepVars(res.Vars)
	}
	if err != nil {
		s.r.Error(describeError(err))
	}
}

// keepVars stores scalar variables. Cursor records belong to their loop.
func (s *replSession) keepVars(vars map[string]any) {
	for name, v := range vars {
		if _, isRecord := v.(*script.Record); isRecord {
			continue
		}
		s.vars[name] = v
	}
}

// dotCommand handles a REPL command and reports whether the REPL should exit.
func (s *replSession) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printReplHelp(s.r.Writer())

	case ".vars":
		s.printVars()

	case ".schema":
		if len(parts) < 2 {
			s.r.Error("usage: .schema <table>")
			return false
		}
		if err := s.printSchema(ctx, parts[1]); err != nil {
			s.r.Error(err.Error())
		}

	case ".reset":
		clear(s.vars)
		s.r.Muted("variables cleared")

	case ".format":
		if len(parts) < 2 {
			s.r.Printf("format: %s\n", s.format)
			return false
		}
		if !slices.Contains(output.ValidFormats, parts[1]) {
			s.r.Error(fmt.Sprintf("unknown format %q (valid: %s)", parts[1], strings.Join(output.ValidFormats, ", ")))
			return false
		}
		s.format = parts[1]

	default:
		s.r.Error(fmt.Sprintf("unknown command %s (type .help for commands)", parts[0]))
	}
	return false
}

func (s *replSession) printVars() {
	if len(s.vars) == 0 {
		s.r.Muted("no variables")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(s.r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Value"})
	for _, name := range slices.Sorted(maps.Keys(s.vars)) {
		t.AppendRow(table.Row{name, output.FormatValue(s.vars[name])})
	}
	t.Render()
}

func (s *replSession) printSchema(ctx context.Context, tableName string) error {
	db, err := s.eng.Adapter(ctx)
	if err != nil {
		return err
	}
	meta, err := db.GetTableMetadata(ctx, tableName)
	if err != nil {
		return err
	}
	if len(meta.Columns) == 0 {
		return fmt.Errorf("table %s not found", tableName)
	}

	t := table.NewWriter()
	t.SetOutputMirror(s.r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Column", "Type", "Nullable"})
	for _, col := range meta.Columns {
		t.AppendRow(table.Row{col.Position, col.Name, col.Type, col.Nullable})
	}
	t.Render()
	s.r.Muted(fmt.Sprintf("%s.%s, %d rows", meta.Schema, meta.Name, meta.RowCount))
	return nil
}

func printReplHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .vars             List variables kept between inputs
  .schema <table>   Show the columns of a table
  .reset            Forget all kept variables
  .format [name]    Show or set the result format (table, json, csv, md)
  .quit / .exit     Exit the REPL

Tips:
  - Input runs once it ends with a semicolon and forms a complete script
  - Ctrl-C discards the current input
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newReplCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".vars"),
		readline.PcItem(".reset"),
		readline.PcItem(".schema"),
		readline.PcItem(".format",
			readline.PcItem(output.FormatTable),
			readline.PcItem(output.FormatCSV),
			readline.PcItem(output.FormatJSON),
			readline.PcItem(output.FormatMarkdown),
		),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
