package script

import (
	"context"
	"log/slog"
	"time"
)

// Executed is one statement run by a Runner.
type Executed struct {
	Statement *Statement
	Result    *ResultSet
	// Err is set when the statement failed. A failed statement whose error
	// was handled is followed by the handler's statements.
	Err *Error
	// Unhandled is set when Err found no handler and ended the run.
	Unhandled bool
	Started   time.Time
	Duration  time.Duration
}

// Result is the outcome of a run.
type Result struct {
	Statements []Executed
	Handled    []*Error
}

// Last returns the result set of the last statement that produced one.
func (r *Result) Last() *ResultSet {
	for i := len(r.Statements) - 1; i >= 0; i-- {
		if r.Statements[i].Result != nil && r.Statements[i].Err == nil {
			return r.Statements[i].Result
		}
	}
	return nil
}

// Runner drives a plan to completion, executing each yielded statement
// with the plan's evaluator.
type Runner struct {
	Logger *slog.Logger
	// OnStatement, when set, is called after each statement.
	OnStatement func(Executed)

	session Session
}

// Run executes plan with a default Runner.
func Run(ctx context.Context, plan *Plan) (*Result, error) {
	return (&Runner{}).Run(ctx, plan)
}

// Run executes plan. On an unhandled error the partial result is returned
// along with the error.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = plan.opts.Logger
	}
	eval := plan.opts.Evaluator
	if eval == nil {
		return nil, ErrNoEvaluator
	}

	frame := NewFrame(plan)
	r.session.Push(frame)
	defer r.session.Pop()

	res := &Result{}
	for {
		stmt, err := frame.Iter.Next(ctx)
		if err != nil {
			res.Handled = frame.Iter.Handled()
			return res, err
		}
		if stmt == nil {
			break
		}

		ex := Executed{Statement: stmt, Started: time.Now()}
		rs, execErr := eval.Execute(ctx, stmt, frame.Scopes())
		ex.Duration = time.Since(ex.Started)
		ex.Result = rs

		if execErr != nil {
			raised := frame.Iter.Raise(ctx, execErr)
			ex.Err = Classify(execErr)
			if ex.Err != nil && !ex.Err.Pos.IsValid() {
				ex.Err.Pos = stmt.Pos
			}
			ex.Unhandled = raised != nil
			r.record(res, ex, logger)
			if raised != nil {
				res.Handled = frame.Iter.Handled()
				return res, raised
			}
			continue
		}
		r.record(res, ex, logger)
	}

	res.Handled = frame.Iter.Handled()
	logger.Debug("run complete",
		slog.Int("statements", len(res.Statements)),
		slog.Int("handled", len(res.Handled)))
	return res, nil
}

// Session returns the runner's frame stack.
func (r *Runner) Session() *Session {
	return &r.session
}

func (r *Runner) record(res *Result, ex Executed, logger *slog.Logger) {
	res.Statements = append(res.Statements, ex)
	attrs := []any{
		slog.String("kind", ex.Statement.Kind.String()),
		slog.String("stmt", ex.Statement.Summary(60)),
		slog.Duration("duration", ex.Duration),
	}
	if ex.Err != nil {
		attrs = append(attrs, slog.String("condition", ex.Err.Condition))
	} else {
		attrs = append(attrs, slog.Int("rows", ex.Result.Len()))
	}
	logger.Debug("statement executed", attrs...)
	if r.OnStatement != nil {
		r.OnStatement(ex)
	}
}
