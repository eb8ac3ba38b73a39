// Package adapter provides the database adapter contract that leapscript
// runs scripts against.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves with Register in their init functions.
package adapter

import (
	"context"

	"github.com/leapstack-labs/leapscript/pkg/core"
)

// Type aliases for the shared types defined in pkg/core.
type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

// Adapter defines the interface that all database adapters must implement.
// It provides methods for connecting to databases, executing SQL, and
// retrieving metadata.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows (e.g., INSERT, UPDATE, CREATE)
	// and reports the number of rows affected, or -1 when the driver does not know.
	Exec(ctx context.Context, sql string) (int64, error)

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetTableMetadata retrieves metadata for a specified table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV loads data from a CSV file into a table.
	// If the table doesn't exist, it will be created with inferred schema.
	LoadCSV(ctx context.Context, tableName string, filePath string) error

	// Dialect returns the SQL dialect configuration for this adapter.
	Dialect() *core.DialectConfig

	// SQLState extracts the SQLSTATE carried by a driver error.
	// It returns "" when err carries none.
	SQLState(err error) string
}
