// Package engine runs scripts end to end. It connects the database adapter,
// loads seeds, parses and plans scripts, executes them through the SQL
// evaluator and records each run in the state store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapscript/internal/evaluator"
	"github.com/leapstack-labs/leapscript/internal/state"
	"github.com/leapstack-labs/leapscript/pkg/adapter"
)

// Engine orchestrates script execution against one database target.
type Engine struct {
	// Database adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	eval *evaluator.Evaluator

	// Structured logger
	logger *slog.Logger

	store         state.Store
	seedsDir      string
	seedsLoaded   bool
	environment   string
	strict        bool
	maxIterations int
}

// Config holds engine configuration.
type Config struct {
	// SeedsDir is the path to the seeds (CSV data) directory
	SeedsDir string
	// StatePath is the path to the SQLite run history database.
	// Empty disables run history.
	StatePath string
	// Environment is the current environment (dev, staging, prod)
	Environment string
	// AdapterConfig contains the full adapter configuration
	AdapterConfig *adapter.Config
	// Strict makes failed casts in simple CASE comparisons an error.
	Strict bool
	// MaxIterations bounds every loop activation. Zero is unlimited.
	MaxIterations int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a new engine with lazy database connection.
// The database adapter is only connected when a script runs or seeds load.
func New(cfg Config) (*Engine, error) {
	// Initialize logger (use discard handler if nil)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "environment", cfg.Environment, "state_path", cfg.StatePath)

	var store state.Store
	if cfg.StatePath != "" {
		s := state.NewSQLiteStore(logger)
		if err := s.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := s.InitSchema(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		store = s
	}

	// Set default environment
	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	var dbConfig adapter.Config
	if cfg.AdapterConfig != nil {
		dbConfig = *cfg.AdapterConfig
	}
	// Ensure adapter type is set
	if dbConfig.Type == "" {
		dbConfig.Type = "duckdb"
	}

	return &Engine{
		dbConfig:      dbConfig,
		logger:        logger,
		store:         store,
		seedsDir:      cfg.SeedsDir,
		environment:   env,
		strict:        cfg.Strict,
		maxIterations: cfg.MaxIterations,
	}, nil
}

// ensureDBConnected lazily connects to the database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type)

	// Use adapter registry to create the appropriate adapter
	db, err := adapter.NewAdapter(e.dbConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create database adapter: %w", err)
	}

	if err := db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	e.db = db
	e.eval = evaluator.New(db, evaluator.Options{Logger: e.logger})
	e.dbConnected = true

	e.logger.Debug("database connected", "dialect", db.Dialect().Name)
	return nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// --- Getters (public accessors) ---

// GetStateStore returns the state store, or nil when history is disabled.
func (e *Engine) GetStateStore() state.Store {
	return e.store
}

// Environment returns the environment runs are recorded under.
func (e *Engine) Environment() string {
	return e.environment
}

// Adapter returns the database adapter, connecting and loading seeds first
// if needed.
func (e *Engine) Adapter(ctx context.Context) (adapter.Adapter, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	if err := e.loadSeedsOnce(ctx); err != nil {
		return nil, err
	}
	return e.db, nil
}
