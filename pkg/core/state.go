package core

import "time"

// Store defines the interface for run history operations.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(env, scriptName, scriptHash string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Statement operations
	RecordStatement(st *StatementRun) error
	GetStatementsForRun(runID string) ([]*StatementRun, error)

	// DeleteOldRuns removes all but the newest keep runs.
	DeleteOldRuns(keep int) error
}

// RunStatus represents the status of a script run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one execution of a script.
type Run struct {
	ID          string
	Environment string
	Script      string
	ScriptHash  string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StatementStatus represents the outcome of one executed statement.
type StatementStatus string

// Statement status constants.
const (
	StatementStatusSuccess StatementStatus = "success"
	StatementStatusHandled StatementStatus = "handled"
	StatementStatusFailed  StatementStatus = "failed"
)

// StatementRun records one leaf statement executed within a run.
type StatementRun struct {
	ID           string
	RunID        string
	Seq          int
	Kind         string
	Text         string
	Line         int
	Status       StatementStatus
	RowsAffected int64
	SQLState     string
	Condition    string
	Error        string
	StartedAt    time.Time
	ExecutionMS  int64
}
