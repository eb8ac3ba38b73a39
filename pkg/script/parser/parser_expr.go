package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/script"
	"github.com/leapstack-labs/leapscript/pkg/token"
)

// scanExpr scans an expression that ends at one of stops.
func (p *Parser) scanExpr(stops ...token.TokenType) *script.Expr {
	pos := p.token.Pos
	text, ok := p.scan(stops...)
	if !ok {
		return nil
	}
	if text == "" {
		p.addError(fmt.Sprintf(ErrMissingExpression, describe(p.token)))
		return nil
	}
	return &script.Expr{Text: text, Pos: pos}
}

// scan consumes tokens up to the first stop token found outside brackets
// and CASE ... END expressions, and returns the source text it covered.
// A semicolon that is not a stop ends the scan with an error.
func (p *Parser) scan(stops ...token.TokenType) (string, bool) {
	start := p.token.Pos.Offset
	depth, cases := 0, 0
	for {
		if depth == 0 && cases == 0 && p.checkAny(stops...) {
			break
		}
		switch p.token.Type {
		case token.EOF:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), stopNames(stops)))
			return "", false
		case token.SEMICOLON:
			if depth == 0 {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), stopNames(stops)))
				return "", false
			}
		case token.LPAREN, token.LBRACKET:
			depth++
		case token.RPAREN, token.RBRACKET:
			if depth > 0 {
				depth--
			}
		case token.CASE:
			cases++
		case token.END:
			if cases > 0 {
				cases--
			}
		}
		p.nextToken()
	}
	return p.textFrom(start), true
}

func stopNames(stops []token.TokenType) string {
	names := make([]string, 0, len(stops))
	for _, s := range stops {
		if s == token.EOF {
			continue
		}
		names = append(names, s.String())
	}
	return strings.Join(names, " or ")
}
