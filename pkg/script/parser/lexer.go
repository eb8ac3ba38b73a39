package parser

import (
	"strings"
	"unicode"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// Lexer tokenizes script input. SQL keywords that the scripting layer does
// not interpret are returned as identifiers.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	// Errors collected during lexing.
	Errors []error
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the current position.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// Offset returns the byte offset just past the last token read.
func (l *Lexer) Offset() int {
	return l.pos
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	var tok token.Token
	tok.Pos = pos

	if l.pos >= len(l.input) {
		tok.Type = token.EOF
		return tok
	}

	switch l.ch {
	case '+':
		tok = l.newToken(token.PLUS, "+")
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = token.Token{Type: token.ARROW, Literal: "->", Pos: pos}
		} else {
			tok = l.newToken(token.MINUS, "-")
		}
	case '*':
		tok = l.newToken(token.STAR, "*")
	case '/':
		tok = l.newToken(token.SLASH, "/")
	case '%':
		tok = l.newToken(token.PERCENT, "%")
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Literal: "==", Pos: pos}
		} else {
			tok = l.newToken(token.EQ, "=")
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.LE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "<>", Pos: pos}
		default:
			tok = l.newToken(token.LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GE, Literal: ">=", Pos: pos}
		} else {
			tok = l.newToken(token.GT, ">")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.newToken(token.ILLEGAL, string(l.ch))
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = token.Token{Type: token.DPIPE, Literal: "||", Pos: pos}
		} else {
			tok = l.newToken(token.ILLEGAL, string(l.ch))
		}
	case '.':
		tok = l.newToken(token.DOT, ".")
	case ',':
		tok = l.newToken(token.COMMA, ",")
	case ';':
		tok = l.newToken(token.SEMICOLON, ";")
	case '(':
		tok = l.newToken(token.LPAREN, "(")
	case ')':
		tok = l.newToken(token.RPAREN, ")")
	case '[':
		tok = l.newToken(token.LBRACKET, "[")
	case ']':
		tok = l.newToken(token.RBRACKET, "]")
	case '{':
		tok = l.newToken(token.LBRACE, "{")
	case '}':
		tok = l.newToken(token.RBRACE, "}")
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok = token.Token{Type: token.DCOLON, Literal: "::", Pos: pos}
		} else {
			tok = l.newToken(token.COLON, ":")
		}
	case '?':
		tok = l.newToken(token.PARAM, "?")
	case '$':
		if isDigit(l.peekChar()) {
			l.readChar()
			tok.Type = token.PARAM
			tok.Literal = "$" + l.readNumber()
			return tok
		}
		tok = l.newToken(token.ILLEGAL, string(l.ch))
	case '\'':
		tok.Type = token.STRING
		tok.Literal = l.readString(pos)
		return tok
	case '"', '`':
		// Quoted identifier (ANSI or Spark style)
		tok.Type = token.IDENT
		tok.Literal = l.readQuotedIdentifier(l.ch, pos)
		tok.Quoted = true
		return tok
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(strings.ToLower(tok.Literal))
			return tok
		case isDigit(l.ch):
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
			return tok
		default:
			tok = l.newToken(token.ILLEGAL, string(l.ch))
		}
	}

	l.readChar()
	return tok
}

// newToken creates a new token.
func (l *Lexer) newToken(tokenType token.TokenType, literal string) token.Token {
	return token.Token{Type: tokenType, Literal: literal, Pos: l.currentPos()}
}

// skipWhitespaceAndComments skips whitespace, line comments and block
// comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			start := l.currentPos()
			l.readChar() // skip '/'
			l.readChar() // skip '*'
			closed := false
			for l.pos < len(l.input) {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // skip '*'
					l.readChar() // skip '/'
					closed = true
					break
				}
				l.readChar()
			}
			if !closed {
				l.Errors = append(l.Errors, &LexError{Pos: start, Message: ErrUnterminatedComment})
			}
			continue
		}

		break
	}
}

// readString reads a single-quoted string literal.
// Handles doubled single quotes as escape: 'it''s' -> it's
func (l *Lexer) readString(start token.Position) string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.pos < len(l.input) {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar() // skip first quote
				l.readChar() // skip second quote
				continue
			}
			l.readChar() // skip closing quote
			return result.String()
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	l.Errors = append(l.Errors, &LexError{Pos: start, Message: ErrUnterminatedString})
	return result.String()
}

// readQuotedIdentifier reads an identifier delimited by quote.
// A doubled quote is an escaped quote: "col""name" -> col"name
func (l *Lexer) readQuotedIdentifier(quote byte, start token.Position) string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.pos < len(l.input) {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String()
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	l.Errors = append(l.Errors, &LexError{Pos: start, Message: ErrUnterminatedIdent})
	return result.String()
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// Exponent, e.g. 1e10 or 1E-5
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// Type suffixes such as 10L or 1.5D
	for isLetter(l.ch) {
		l.readChar()
	}

	return l.input[start:l.pos]
}

// isLetter returns true if ch is a letter or part of a multi-byte rune.
func isLetter(ch byte) bool {
	return ch >= 0x80 || unicode.IsLetter(rune(ch))
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF.
func Tokenize(input string) ([]token.Token, error) {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	if len(l.Errors) > 0 {
		return tokens, l.Errors[0]
	}
	return tokens, nil
}
