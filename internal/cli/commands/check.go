package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapscript/internal/cli/output"
	"github.com/leapstack-labs/leapscript/internal/engine"
)

// errCheckFailed is returned when at least one script does not pass.
var errCheckFailed = errors.New("check failed")

// CheckResult is the outcome of checking one script.
type CheckResult struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Validate scripts without running them",
		Long: `Parse and plan scripts without touching the database.

check reports syntax errors, mismatched end labels, LEAVE or ITERATE of an
unknown label, duplicate labels and invalid handler declarations. Files are
checked concurrently.`,
		Example: `  leapscript check nightly.sql
  leapscript check scripts/*.sql --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args)
		},
	}
}

func runCheck(cmd *cobra.Command, files []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results, err := checkFiles(ctx, files)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	failed := 0
	for _, res := range results {
		if !res.Valid {
			failed++
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(results); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Check"))
		r.Println("")
		for _, res := range results {
			if res.Valid {
				r.Printf("- **[OK]** %s\n", res.File)
				continue
			}
			r.Printf("- **[ERROR]** %s: %s\n", res.File, res.Error)
		}
	default:
		for _, res := range results {
			if res.Valid {
				r.StatusLine(res.File, "success", "")
				continue
			}
			r.StatusLine(res.File, "failed", res.Error)
		}
		r.Muted(fmt.Sprintf("%d checked, %d failed", len(results), failed))
	}

	if failed > 0 {
		return errCheckFailed
	}
	return nil
}

// checkFiles checks every file concurrently. Results keep the order of files.
// Only an unreadable file is an error; invalid scripts are reported in the
// results.
func checkFiles(ctx context.Context, files []string) ([]CheckResult, error) {
	results := make([]CheckResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			results[i] = CheckResult{File: file, Valid: true}
			if err := engine.Check(string(src)); err != nil {
				results[i].Valid = false
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
