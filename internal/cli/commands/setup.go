package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapscript/internal/cli/config"
	"github.com/leapstack-labs/leapscript/internal/cli/output"
	"github.com/leapstack-labs/leapscript/internal/engine"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	eng, err := createEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cmdCtx.Logger.Warn("failed to close engine", "error", err.Error())
		}
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	maxIterations := config.DefaultMaxIterations
	if v, err := strconv.Atoi(os.Getenv(config.EnvPrefix + "MAX_ITERATIONS")); err == nil {
		maxIterations = v
	}

	return &config.Config{
		SeedsDir:      getEnvOrDefault(config.EnvPrefix+"SEEDS_DIR", config.DefaultSeedsDir),
		StatePath:     getEnvOrDefault(config.EnvPrefix+"STATE_PATH", config.DefaultStateFile),
		Environment:   getEnvOrDefault(config.EnvPrefix+"ENVIRONMENT", config.DefaultEnv),
		Verbose:       os.Getenv(config.EnvPrefix+"VERBOSE") == "true",
		OutputFormat:  os.Getenv(config.EnvPrefix + "OUTPUT"),
		Strict:        os.Getenv(config.EnvPrefix+"STRICT") == "true",
		MaxIterations: maxIterations,
		Target:        &config.TargetConfig{Type: "duckdb"},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	// Ensure state directory exists
	if cfg.StatePath != "" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0o750); err != nil {
				return nil, err
			}
		}
	}

	engineCfg := engine.Config{
		SeedsDir:      cfg.SeedsDir,
		StatePath:     cfg.StatePath,
		Environment:   cfg.Environment,
		Strict:        cfg.Strict,
		MaxIterations: cfg.MaxIterations,
		Logger:        logger,
	}
	if cfg.Target != nil {
		adapterConfig := cfg.Target.AdapterConfig()
		engineCfg.AdapterConfig = &adapterConfig
	}

	return engine.New(engineCfg)
}
