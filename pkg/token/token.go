// Package token defines the token types for script parsing.
//
// Only the scripting layer is tokenized into keywords. Plain SQL statements
// embedded in a script are carried as source text, so SQL keywords such as
// SELECT or FROM lex as ordinary identifiers.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier or quoted identifier
	NUMBER // 123, 45.67, 1e10
	STRING // 'hello'

	// Operators and punctuation
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	DOT       // .
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :
	DCOLON    // ::
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	LBRACE    // {
	RBRACE    // }
	ARROW     // ->
	PARAM     // ? or $1

	// Scripting keywords (alphabetical)
	AS
	BEGIN
	CASE
	CONDITION
	CONTINUE
	DECLARE
	DEFAULT
	DO
	ELSE
	ELSEIF
	END
	EXIT
	FOR
	FOUND
	HANDLER
	IF
	ITERATE
	LEAVE
	LOOP
	NOT
	OR
	REPEAT
	REPLACE
	SET
	SIGNAL
	SQLEXCEPTION
	SQLSTATE
	THEN
	UNTIL
	VALUE
	VAR
	VARIABLE
	WHEN
	WHILE
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// tokenNames maps token types to their string representations.
var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	DOT:       ".",
	COMMA:     ",",
	SEMICOLON: ";",
	COLON:     ":",
	DCOLON:    "::",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACKET:  "[",
	RBRACKET:  "]",
	LBRACE:    "{",
	RBRACE:    "}",
	ARROW:     "->",
	PARAM:     "PARAM",

	AS:           "AS",
	BEGIN:        "BEGIN",
	CASE:         "CASE",
	CONDITION:    "CONDITION",
	CONTINUE:     "CONTINUE",
	DECLARE:      "DECLARE",
	DEFAULT:      "DEFAULT",
	DO:           "DO",
	ELSE:         "ELSE",
	ELSEIF:       "ELSEIF",
	END:          "END",
	EXIT:         "EXIT",
	FOR:          "FOR",
	FOUND:        "FOUND",
	HANDLER:      "HANDLER",
	IF:           "IF",
	ITERATE:      "ITERATE",
	LEAVE:        "LEAVE",
	LOOP:         "LOOP",
	NOT:          "NOT",
	OR:           "OR",
	REPEAT:       "REPEAT",
	REPLACE:      "REPLACE",
	SET:          "SET",
	SIGNAL:       "SIGNAL",
	SQLEXCEPTION: "SQLEXCEPTION",
	SQLSTATE:     "SQLSTATE",
	THEN:         "THEN",
	UNTIL:        "UNTIL",
	VALUE:        "VALUE",
	VAR:          "VAR",
	VARIABLE:     "VARIABLE",
	WHEN:         "WHEN",
	WHILE:        "WHILE",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"as":           AS,
	"begin":        BEGIN,
	"case":         CASE,
	"condition":    CONDITION,
	"continue":     CONTINUE,
	"declare":      DECLARE,
	"default":      DEFAULT,
	"do":           DO,
	"else":         ELSE,
	"elseif":       ELSEIF,
	"end":          END,
	"exit":         EXIT,
	"for":          FOR,
	"found":        FOUND,
	"handler":      HANDLER,
	"if":           IF,
	"iterate":      ITERATE,
	"leave":        LEAVE,
	"loop":         LOOP,
	"not":          NOT,
	"or":           OR,
	"repeat":       REPEAT,
	"replace":      REPLACE,
	"set":          SET,
	"signal":       SIGNAL,
	"sqlexception": SQLEXCEPTION,
	"sqlstate":     SQLSTATE,
	"then":         THEN,
	"until":        UNTIL,
	"value":        VALUE,
	"var":          VAR,
	"variable":     VARIABLE,
	"when":         WHEN,
	"while":        WHILE,
}

// LookupIdent returns the token type for the given lowercase identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= AS && t <= WHILE
}

// IsOperator returns true if the token type is an operator.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= PARAM
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	// Quoted is set for double-quoted and backtick identifiers.
	Quoted bool
}
