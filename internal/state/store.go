// Package state records script runs and the statements they executed in a
// SQLite database.
//
// Core types are defined in pkg/core. This package re-exports them via type
// aliases so callers of the store need a single import.
package state

import (
	"github.com/leapstack-labs/leapscript/pkg/core"
)

// Type aliases for the run history types defined in pkg/core.
type (
	// Store is an alias for core.Store.
	Store = core.Store

	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// Run is an alias for core.Run.
	Run = core.Run

	// StatementStatus is an alias for core.StatementStatus.
	StatementStatus = core.StatementStatus

	// StatementRun is an alias for core.StatementRun.
	StatementRun = core.StatementRun
)

// Re-export status constants from core.
const (
	RunStatusRunning   = core.RunStatusRunning
	RunStatusCompleted = core.RunStatusCompleted
	RunStatusFailed    = core.RunStatusFailed
	RunStatusCancelled = core.RunStatusCancelled

	StatementStatusSuccess = core.StatementStatusSuccess
	StatementStatusHandled = core.StatementStatusHandled
	StatementStatusFailed  = core.StatementStatusFailed
)
