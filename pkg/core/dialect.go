package core

import (
	"fmt"
	"strings"
)

// DialectConfig holds the static configuration for a SQL dialect.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "duckdb", "postgres")
	Name string

	// Identifiers defines quoting and normalization rules
	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("main" for DuckDB, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle
}

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Snowflake, Oracle).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly (MySQL, ClickHouse).
	NormCaseSensitive
	// NormCaseInsensitive normalizes to lowercase for comparison (BigQuery, Hive, DuckDB).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `, [
	QuoteEnd      string                // End quote character (usually same as Quote, ] for [)
	Escape        string                // Escape sequence: "", ``, ]]
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}

// FormatPlaceholder returns the placeholder for the n-th (1-based) parameter.
func (d *DialectConfig) FormatPlaceholder(n int) string {
	if d.Placeholder == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteIdentifier quotes name with the dialect's identifier quotes.
func (d *DialectConfig) QuoteIdentifier(name string) string {
	q, end := d.Identifiers.Quote, d.Identifiers.QuoteEnd
	if q == "" {
		q = `"`
	}
	if end == "" {
		end = q
	}
	esc := d.Identifiers.Escape
	if esc == "" {
		esc = end + end
	}
	return q + strings.ReplaceAll(name, end, esc) + end
}

// NormalizeName applies the dialect's normalization to an unquoted identifier.
func (d *DialectConfig) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	case NormCaseSensitive:
		return name
	default:
		return strings.ToLower(name)
	}
}
