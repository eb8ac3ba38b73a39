// Package postgres provides a PostgreSQL database adapter for leapscript.
package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leapscript/pkg/adapter"
	"github.com/leapstack-labs/leapscript/pkg/core"
)

// Dialect is the PostgreSQL dialect configuration.
var Dialect = &core.DialectConfig{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormLowercase,
	},
}

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return Dialect.Name
}

// Dialect returns the PostgreSQL dialect configuration.
func (a *Adapter) Dialect() *core.DialectConfig {
	return Dialect
}

// SQLState returns the SQLSTATE code of a server error.
func (a *Adapter) SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	// Build DSN
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, Dialect)
}

// LoadCSV replaces tableName with the contents of a CSV file. Every column
// is TEXT; scripts cast what they need.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return adapter.ErrNotConnected
	}

	f, err := os.Open(filePath) //nolint:gosec // seed files come from the project
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	headers, err := csv.NewReader(f).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header %s: %w", filePath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", filePath, err)
	}

	table := quoteTable(tableName)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS " + table,
		createTextTableSQL(table, headers),
	} {
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}

	if err := a.copyFrom(ctx, table, f); err != nil {
		return fmt.Errorf("failed to copy %s into %s: %w", filePath, tableName, err)
	}
	a.Logger.Debug("loaded csv", slog.String("table", tableName), slog.String("path", filePath))
	return nil
}

// quoteTable quotes each part of a possibly schema-qualified name.
func quoteTable(name string) string {
	schema, table := adapter.ParseQualifiedName(name, Dialect)
	if !strings.Contains(name, ".") {
		return Dialect.QuoteIdentifier(table)
	}
	return Dialect.QuoteIdentifier(schema) + "." + Dialect.QuoteIdentifier(table)
}

func createTextTableSQL(table string, columns []string) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = Dialect.QuoteIdentifier(strings.TrimSpace(col)) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

// copyFrom streams r through COPY FROM STDIN on a pgx connection.
func (a *Adapter) copyFrom(ctx context.Context, table string, r io.Reader) error {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", table)
		_, err := pc.Conn().PgConn().CopyFrom(ctx, r, copySQL)
		return err
	})
}

var _ adapter.Adapter = (*Adapter)(nil)
