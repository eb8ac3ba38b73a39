package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapscript/pkg/core"
)

// RecordStatement records one executed statement of a run.
func (s *SQLiteStore) RecordStatement(st *core.StatementRun) error {
	if s.db == nil {
		return errNotOpened
	}

	if st.ID == "" {
		st.ID = generateID()
	}
	if st.StartedAt.IsZero() {
		st.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO run_statements
		 (id, run_id, seq, kind, text, line, status, rows_affected, sqlstate, condition, error, started_at, execution_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.RunID, st.Seq, st.Kind, st.Text, st.Line, string(st.Status), st.RowsAffected,
		nullString(st.SQLState), nullString(st.Condition), nullString(st.Error), st.StartedAt.UTC(), st.ExecutionMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record statement: %w", err)
	}
	return nil
}

// GetStatementsForRun retrieves the statements of a run in execution order.
func (s *SQLiteStore) GetStatementsForRun(runID string) ([]*core.StatementRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT id, run_id, seq, kind, text, line, status, rows_affected, sqlstate, condition, error, started_at, execution_ms
		 FROM run_statements WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stmts []*core.StatementRun
	for rows.Next() {
		st := &core.StatementRun{}
		var status string
		var state, cond, errMsg sql.NullString

		err := rows.Scan(&st.ID, &st.RunID, &st.Seq, &st.Kind, &st.Text, &st.Line, &status, &st.RowsAffected,
			&state, &cond, &errMsg, &st.StartedAt, &st.ExecutionMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}

		st.Status = core.StatementStatus(status)
		st.SQLState = state.String
		st.Condition = cond.String
		st.Error = errMsg.String
		stmts = append(stmts, st)
	}
	return stmts, rows.Err()
}
