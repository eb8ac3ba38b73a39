package engine

// run.go - Script execution and run history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapscript/pkg/core"
	"github.com/leapstack-labs/leapscript/pkg/script"
	"github.com/leapstack-labs/leapscript/pkg/script/parser"
)

// Script is a script to run.
type Script struct {
	// Name identifies the script in run history, usually its path.
	Name   string
	Source string
	// Args become variables of the script's root scope.
	Args map[string]any
}

// RunOptions tune a single run.
type RunOptions struct {
	// OnStatement is called after each executed statement.
	OnStatement func(script.Executed)
	// KeepVars collects the variables visible after the last statement.
	KeepVars bool
}

// RunResult is the outcome of Run.
type RunResult struct {
	// Run is the history record, nil when history is disabled.
	Run    *core.Run
	Result *script.Result
	// Vars holds the variables visible after the last statement when
	// RunOptions.KeepVars is set.
	Vars map[string]any
}

// Compile parses src and builds its plan without a database.
func Compile(src string, args map[string]any, opts script.Options) (*script.Plan, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return script.Build(tree, args, opts)
}

// Check reports whether src parses and passes plan validation.
func Check(src string) error {
	_, err := Compile(src, nil, script.Options{})
	return err
}

// Run executes a script. Seeds are loaded before the first run. A run that
// ends with an unhandled error returns the partial result with the error.
func (e *Engine) Run(ctx context.Context, s Script, opts RunOptions) (*RunResult, error) {
	e.logger.Info("starting run", "script", s.Name, "environment", e.environment)

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	if err := e.loadSeedsOnce(ctx); err != nil {
		return nil, err
	}

	plan, err := Compile(s.Source, s.Args, script.Options{
		Evaluator:     e.eval,
		Strict:        e.strict,
		MaxIterations: e.maxIterations,
		Logger:        e.logger,
	})
	if err != nil {
		return nil, err
	}

	out := &RunResult{}
	if e.store != nil {
		run, err := e.store.CreateRun(e.environment, s.Name, hashSource(s.Source))
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		out.Run = run
		e.logger.Debug("created run", "run_id", run.ID)
	}

	runner := &script.Runner{Logger: e.logger}
	runner.OnStatement = func(ex script.Executed) {
		if opts.KeepVars {
			if f := runner.Session().Current(); f != nil {
				out.Vars = f.Scopes().Snapshot()
			}
		}
		if opts.OnStatement != nil {
			opts.OnStatement(ex)
		}
	}

	res, runErr := runner.Run(ctx, plan)
	out.Result = res

	if out.Run != nil {
		if err := e.recordRun(out.Run, res, runErr); err != nil {
			e.logger.Warn("failed to record run history", "run_id", out.Run.ID, "error", err.Error())
		}
		if updated, err := e.store.GetRun(out.Run.ID); err == nil {
			out.Run = updated
		}
	}

	if runErr != nil {
		e.logger.Info("run failed", "script", s.Name, "error", runErr.Error())
		return out, runErr
	}
	e.logger.Info("run completed", "script", s.Name, "statements", len(res.Statements), "handled", len(res.Handled))
	return out, nil
}

// recordRun stores the executed statements and the final run status.
func (e *Engine) recordRun(run *core.Run, res *script.Result, runErr error) error {
	var errs []error
	if res != nil {
		for i, ex := range res.Statements {
			st := &core.StatementRun{
				RunID:        run.ID,
				Seq:          i + 1,
				Kind:         ex.Statement.Kind.String(),
				Text:         ex.Statement.Text,
				Line:         ex.Statement.Pos.Line,
				Status:       core.StatementStatusSuccess,
				RowsAffected: -1,
				StartedAt:    ex.Started.UTC(),
				ExecutionMS:  ex.Duration.Milliseconds(),
			}
			if ex.Result != nil {
				st.RowsAffected = ex.Result.Affected
			}
			if ex.Err != nil {
				st.Status = core.StatementStatusHandled
				if ex.Unhandled {
					st.Status = core.StatementStatusFailed
				}
				st.SQLState = ex.Err.SQLState
				st.Condition = ex.Err.Condition
				st.Error = ex.Err.Message
			}
			if err := e.store.RecordStatement(st); err != nil {
				errs = append(errs, err)
			}
		}
	}

	status, msg := core.RunStatusCompleted, ""
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status, msg = core.RunStatusCancelled, runErr.Error()
	case runErr != nil:
		status, msg = core.RunStatusFailed, runErr.Error()
	}
	if err := e.store.CompleteRun(run.ID, status, msg); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func hashSource(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}
