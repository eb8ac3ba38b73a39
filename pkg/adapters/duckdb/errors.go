package duckdb

import (
	"errors"

	"github.com/marcboeker/go-duckdb"
)

// sqlStates maps DuckDB error types to the SQLSTATE reported for them.
var sqlStates = map[duckdb.ErrorType]string{
	duckdb.ErrorTypeOutOfRange:       "22003",
	duckdb.ErrorTypeConversion:       "22018",
	duckdb.ErrorTypeDivideByZero:     "22012",
	duckdb.ErrorTypeInvalidInput:     "22023",
	duckdb.ErrorTypeMismatchType:     "42804",
	duckdb.ErrorTypeConstraint:       "23000",
	duckdb.ErrorTypeCatalog:          "42P01",
	duckdb.ErrorTypeParser:           "42601",
	duckdb.ErrorTypeSyntax:           "42601",
	duckdb.ErrorTypeBinder:           "42703",
	duckdb.ErrorTypeTransaction:      "25000",
	duckdb.ErrorTypeNotImplemented:   "0A000",
	duckdb.ErrorTypePermission:       "42501",
	duckdb.ErrorTypeInterrupt:        "57014",
	duckdb.ErrorTypeOutOfMemory:      "53200",
	duckdb.ErrorTypeIO:               "58030",
	duckdb.ErrorTypeMissingExtension: "42883",
}

// SQLState returns the SQLSTATE for a DuckDB error. Errors DuckDB raises
// without a more specific class map to XX000.
func (a *Adapter) SQLState(err error) string {
	var de *duckdb.Error
	if !errors.As(err, &de) {
		return ""
	}
	if state, ok := sqlStates[de.Type]; ok {
		return state
	}
	return "XX000"
}
