// Package duckdb provides a DuckDB database adapter for leapscript.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/adapter"
	"github.com/leapstack-labs/leapscript/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Dialect is the DuckDB dialect configuration.
var Dialect = &core.DialectConfig{
	Name:          "duckdb",
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormCaseInsensitive,
	},
}

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the DuckDB dialect configuration.
func (a *Adapter) Dialect() *core.DialectConfig {
	return Dialect
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	params, err := parseParams(cfg.Params)
	if err != nil {
		return fmt.Errorf("invalid duckdb params: %w", err)
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	// Session state such as settings and secrets lives on a connection;
	// a single connection keeps it for every statement of a script.
	db.SetMaxOpenConns(1)

	a.DB = db
	a.Cfg = cfg
	a.params = params

	if err := a.applyParams(ctx); err != nil {
		_ = db.Close()
		a.DB = nil
		return err
	}
	return nil
}

// applyParams installs extensions, applies settings and creates secrets.
func (a *Adapter) applyParams(ctx context.Context) error {
	if a.params == nil {
		return nil
	}
	for _, ext := range a.params.Extensions {
		a.Logger.Debug("loading duckdb extension", slog.String("extension", ext))
		for _, stmt := range []string{"INSTALL " + ext, "LOAD " + ext} {
			if _, err := a.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to load extension %s: %w", ext, err)
			}
		}
	}
	for _, name := range sortedKeys(a.params.Settings) {
		stmt := fmt.Sprintf("SET %s = '%s'", name, strings.ReplaceAll(a.params.Settings[name], "'", "''"))
		if _, err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", name, err)
		}
	}
	for i, secret := range a.params.Secrets {
		if _, err := a.Exec(ctx, buildCreateSecretSQL(secret)); err != nil {
			return fmt.Errorf("failed to create secret %d (%s): %w", i, secret.Type, err)
		}
	}
	return nil
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, Dialect)
}

// LoadCSV loads data from a CSV file into a table.
// DuckDB will automatically infer the schema from the CSV file.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return adapter.ErrNotConnected
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
		Dialect.QuoteIdentifier(tableName),
		strings.ReplaceAll(absPath, "'", "''"),
	)

	if _, err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}

	return nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
