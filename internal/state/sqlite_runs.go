package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapscript/pkg/core"
)

const runColumns = `id, environment, script, script_hash, status, started_at, completed_at, error`

// CreateRun creates a new script run.
func (s *SQLiteStore) CreateRun(env, scriptName, scriptHash string) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &core.Run{
		ID:          generateID(),
		Environment: env,
		Script:      scriptName,
		ScriptHash:  scriptHash,
		Status:      core.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("environment", env), slog.String("script", scriptName))

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO runs (id, environment, script, script_hash, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Environment, run.Script, run.ScriptHash, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.db.QueryRowContext(ctx(), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	result, err := s.db.ExecContext(ctx(),
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetLatestRun retrieves the most recent run for an environment.
func (s *SQLiteStore) GetLatestRun(env string) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.db.QueryRowContext(ctx(),
		`SELECT `+runColumns+` FROM runs WHERE environment = ? ORDER BY started_at DESC LIMIT 1`, env))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No runs found, return nil without error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteOldRuns removes all but the newest keep runs. Statements of the
// removed runs are deleted with them.
func (s *SQLiteStore) DeleteOldRuns(keep int) error {
	if s.db == nil {
		return errNotOpened
	}

	result, err := s.db.ExecContext(ctx(),
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("failed to delete old runs: %w", err)
	}
	n, _ := result.RowsAffected()
	s.logger.Debug("deleted old runs", slog.Int64("count", n), slog.Int("kept", keep))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*core.Run, error) {
	run := &core.Run{}
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&run.ID, &run.Environment, &run.Script, &run.ScriptHash, &status, &run.StartedAt, &completedAt, &errMsg)
	if err != nil {
		return nil, err
	}

	run.Status = core.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}
