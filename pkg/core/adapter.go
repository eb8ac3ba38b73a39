package core

import (
	"database/sql"
)

// AdapterConfig describes the database a script runs against. Path is used
// by file databases (DuckDB); the network fields by server databases.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	// Options are passed to the driver as connection parameters.
	Options map[string]string
	// Params carry adapter-specific settings, decoded by the adapter itself.
	Params map[string]any
}

// Column is one column of a table, as reported by information_schema.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata is what an adapter knows about a table.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows is a result set returned by Adapter.Query.
type Rows struct {
	*sql.Rows
}
