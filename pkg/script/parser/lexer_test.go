package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

func tokenTypes(tokens []token.Token) []token.TokenType {
	types := make([]token.TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.TokenType
	}{
		{
			name:  "if guard",
			input: "IF x > 1 THEN",
			want:  []token.TokenType{token.IF, token.IDENT, token.GT, token.NUMBER, token.THEN, token.EOF},
		},
		{
			name:  "set with string",
			input: "SET v = 'it''s';",
			want:  []token.TokenType{token.SET, token.IDENT, token.EQ, token.STRING, token.SEMICOLON, token.EOF},
		},
		{
			name:  "casts and parameters",
			input: "x::int == $1 ?",
			want:  []token.TokenType{token.IDENT, token.DCOLON, token.IDENT, token.EQ, token.PARAM, token.PARAM, token.EOF},
		},
		{
			name:  "comments are skipped",
			input: "-- leading\nBEGIN /* inner */ END",
			want:  []token.TokenType{token.BEGIN, token.END, token.EOF},
		},
		{
			name:  "sql keywords are identifiers",
			input: "SELECT id FROM t",
			want:  []token.TokenType{token.IDENT, token.IDENT, token.IDENT, token.IDENT, token.EOF},
		},
		{
			name:  "label",
			input: "outer_loop: WHILE",
			want:  []token.TokenType{token.IDENT, token.COLON, token.WHILE, token.EOF},
		},
		{
			name:  "comparison operators",
			input: "<> != <= >= < >",
			want:  []token.TokenType{token.NE, token.NE, token.LE, token.GE, token.LT, token.GT, token.EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tokenTypes(tokens))
		})
	}
}

func TestLexer_Literals(t *testing.T) {
	tokens, err := Tokenize("'it''s' `a b` \"c\"\"d\" 10L 1.5e3 $2")
	require.NoError(t, err)
	require.Len(t, tokens, 7)

	assert.Equal(t, "it's", tokens[0].Literal)
	assert.Equal(t, "a b", tokens[1].Literal)
	assert.True(t, tokens[1].Quoted)
	assert.Equal(t, `c"d`, tokens[2].Literal)
	assert.True(t, tokens[2].Quoted)
	assert.Equal(t, "10L", tokens[3].Literal)
	assert.Equal(t, "1.5e3", tokens[4].Literal)
	assert.Equal(t, "$2", tokens[5].Literal)
}

func TestLexer_KeywordsAreCaseInsensitive(t *testing.T) {
	tokens, err := Tokenize("begin Begin BEGIN")
	require.NoError(t, err)
	for _, tok := range tokens[:3] {
		assert.Equal(t, token.BEGIN, tok.Type)
	}
	assert.Equal(t, "Begin", tokens[1].Literal)
}

func TestLexer_Positions(t *testing.T) {
	tokens, err := Tokenize("BEGIN\n  END")
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, token.Position{Line: 1, Column: 1, Offset: 0}, tokens[0].Pos)
	assert.Equal(t, token.Position{Line: 2, Column: 3, Offset: 8}, tokens[1].Pos)
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unterminated string", "SELECT 'abc", ErrUnterminatedString},
		{"unterminated identifier", "SELECT `abc", ErrUnterminatedIdent},
		{"unterminated comment", "SELECT 1 /* never closed", ErrUnterminatedComment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var lexErr *LexError
			require.ErrorAs(t, err, &lexErr)
			assert.Equal(t, 1, lexErr.Pos.Line)
		})
	}
}
