// Package core defines the shared language of the leapscript system.
//
// This package contains:
//   - Domain entities (Run, StatementRun, DialectConfig)
//   - Service interfaces (Store)
//   - Configuration types (ProjectConfig, TargetConfig, AdapterConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
