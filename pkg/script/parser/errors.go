package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// LexError represents a lexical analysis error.
type LexError struct {
	Pos     token.Position
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken     = "unexpected %s, expected %s"
	ErrUnterminatedString  = "unterminated string literal"
	ErrUnterminatedIdent   = "unterminated quoted identifier"
	ErrUnterminatedComment = "unterminated block comment"
	ErrMissingExpression   = "expected an expression before %s"
	ErrEndLabelMismatch    = "end label %s does not match begin label %s"
	ErrEndLabelWithout     = "end label %s without a begin label"
	ErrLabelPlacement      = "label %s must precede BEGIN, WHILE, REPEAT, LOOP or FOR"
	ErrInvalidSQLState     = "invalid SQLSTATE %q: expected five alphanumeric characters"
	ErrHandlerBodyDeclares = "a handler body cannot declare handlers or conditions"
	ErrUnexpectedAfter     = "unexpected %s after the end of the script"
)
