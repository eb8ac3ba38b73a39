package config

import (
	"fmt"

	intconfig "github.com/leapstack-labs/leapscript/internal/config"
)

// validOutputs lists the accepted values of the output setting.
var validOutputs = map[string]bool{"": true, "auto": true, "text": true, "markdown": true, "json": true}

// DefaultSchemaForType returns the default schema for a database type.
// This is a convenience wrapper that delegates to the shared config function.
func DefaultSchemaForType(dbType string) string {
	return intconfig.DefaultSchemaForType(dbType)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative, got %d", c.MaxIterations)
	}
	if !validOutputs[c.OutputFormat] {
		return fmt.Errorf("unknown output format %q (want auto, text, markdown or json)", c.OutputFormat)
	}
	if err := intconfig.ValidateTarget(c.Target); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	return nil
}
