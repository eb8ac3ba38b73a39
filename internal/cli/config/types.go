// Package config provides configuration management for the leapscript CLI.
//
// This package extends the shared configuration types from internal/config
// with CLI-specific fields and functionality.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapscript/internal/config"
	"github.com/leapstack-labs/leapscript/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
// This allows CLI code to use config.TargetConfig without importing pkg/core.
type TargetConfig = core.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	SeedsDir      string               `koanf:"seeds_dir"`
	StatePath     string               `koanf:"state_path"`
	Environment   string               `koanf:"environment"`
	Verbose       bool                 `koanf:"verbose"`
	OutputFormat  string               `koanf:"output"`
	Strict        bool                 `koanf:"strict"`
	MaxIterations int                  `koanf:"max_iterations"`
	Target        *TargetConfig        `koanf:"target"`
	Environments  map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	SeedsDir string        `koanf:"seeds_dir"`
	Target   *TargetConfig `koanf:"target"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultSeedsDir      = sharedcfg.DefaultSeedsDir
	DefaultStateFile     = sharedcfg.DefaultStateFile
	DefaultEnv           = sharedcfg.DefaultEnv
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultMaxIterations = 100000
)
