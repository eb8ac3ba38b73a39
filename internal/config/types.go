// Package config provides shared configuration types for leapscript.
// It is decoupled from CLI concerns so the engine and tests can load a
// project configuration without cobra.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/adapter"
	"github.com/leapstack-labs/leapscript/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// ProjectConfig is an alias for the shared project configuration.
type ProjectConfig = core.ProjectConfig

// DefaultSchemaForType returns the default schema for a database type.
// It asks the registered adapter for its dialect and falls back to "main".
func DefaultSchemaForType(dbType string) string {
	if factory, ok := adapter.Get(strings.ToLower(dbType)); ok {
		if d := factory(nil).Dialect(); d != nil && d.DefaultSchema != "" {
			return d.DefaultSchema
		}
	}
	return "main"
}

// ValidateTarget checks that a target names a registered adapter.
func ValidateTarget(t *TargetConfig) error {
	if t == nil {
		return nil
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	// Use adapter registry as single source of truth
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}
