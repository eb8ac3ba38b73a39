package evaluator

import (
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/script"
	"github.com/leapstack-labs/leapscript/pkg/script/parser"
	"github.com/leapstack-labs/leapscript/pkg/token"
)

// objectRule says what follows a keyword that introduces an object name.
type objectRule struct {
	name  bool // a possibly qualified name follows
	group bool // a parenthesized column list may follow
}

// objectKeywords are the SQL words after which identifiers name tables,
// columns or other objects rather than values.
var objectKeywords = map[string]objectRule{
	"FROM":     {name: true},
	"JOIN":     {name: true},
	"UPDATE":   {name: true},
	"VIEW":     {name: true},
	"SCHEMA":   {name: true},
	"INDEX":    {name: true},
	"SEQUENCE": {name: true},
	"DATABASE": {name: true},
	"MACRO":    {name: true, group: true},
	"FUNCTION": {name: true, group: true},
	"INTO":     {name: true, group: true},
	"TABLE":    {name: true, group: true},
	"EXISTS":   {name: true, group: true},
	"WITH":     {name: true, group: true},
	"USING":    {group: true},
	"CONFLICT": {group: true},
}

// bind replaces variable references in sql with SQL literals.
//
// A reference is an unquoted identifier naming a visible variable, or
// record.field where record is a FOR loop variable. Identifiers that are
// qualified, called as functions, used as aliases or that name objects are
// left alone. Variables hide columns of the same name.
func (e *Evaluator) bind(sql string, scopes *script.ScopeStack) (string, error) {
	if scopes == nil || scopes.Depth() == 0 {
		return sql, nil
	}
	toks, err := parser.Tokenize(sql)
	if err != nil {
		// Let the database report the syntax error.
		return sql, nil //nolint:nilerr // lexing failures are reported by the database
	}

	var b strings.Builder
	last := 0
	replace := func(start, end int, lit string) {
		b.WriteString(sql[last:start])
		b.WriteString(lit)
		last = end
	}

	inSetList := false
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch tok.Type {
		case token.SET:
			inSetList = true
			continue
		case token.AS:
			i = skipAlias(toks, i)
			continue
		case token.IDENT:
		default:
			continue
		}
		if tok.Quoted {
			continue
		}

		word := strings.ToUpper(tok.Literal)
		if inSetList && (word == "WHERE" || word == "FROM" || word == "RETURNING") {
			inSetList = false
		}
		if rule, ok := objectKeywords[word]; ok {
			i = skipObject(toks, i, rule)
			continue
		}

		prev, next := at(toks, i-1), at(toks, i+1)
		switch {
		case prev.Type == token.DOT || prev.Type == token.DCOLON:
			continue
		case next.Type == token.LPAREN:
			continue
		case inSetList && next.Type == token.EQ:
			continue
		case next.Type == token.AS && at(toks, i+2).Type == token.LPAREN:
			// WITH a AS (...), b AS (...)
			continue
		}

		v, ok := scopes.Lookup(tok.Literal)
		if next.Type == token.DOT {
			field := at(toks, i+2)
			if ok && v.Record != nil && field.Type == token.IDENT && !field.Quoted {
				if fv, found := v.Record.Field(field.Literal); found {
					replace(tok.Pos.Offset, field.Pos.Offset+len(field.Literal), e.literal(fv, ""))
				}
			}
			i += 2
			continue
		}
		if !ok {
			continue
		}
		var value any = v.Value
		if v.Record != nil {
			value = v.Record
		}
		replace(tok.Pos.Offset, tok.Pos.Offset+len(tok.Literal), e.literal(value, v.Type))
	}

	if last == 0 {
		return sql, nil
	}
	b.WriteString(sql[last:])
	return b.String(), nil
}

func at(toks []token.Token, i int) token.Token {
	if i < 0 || i >= len(toks) {
		return token.Token{Type: token.EOF}
	}
	return toks[i]
}

// skipAlias skips the alias after AS and any column alias list. It returns
// the index of the last token consumed.
func skipAlias(toks []token.Token, i int) int {
	alias := at(toks, i+1)
	if alias.Type != token.IDENT || queryKeywords[strings.ToUpper(alias.Literal)] {
		return i
	}
	i++
	if at(toks, i+1).Type == token.LPAREN {
		return closeParen(toks, i+1) - 1
	}
	return i
}

// skipObject skips the object name and column list following the keyword
// at i. It returns the index of the last token consumed.
func skipObject(toks []token.Token, i int, rule objectRule) int {
	j := i + 1
	named := false
	if rule.name {
		for at(toks, j).Type == token.IDENT {
			named = true
			j++
			if at(toks, j).Type == token.DOT && at(toks, j+1).Type == token.IDENT {
				j++
				continue
			}
			break
		}
	}
	if rule.group && (named || !rule.name) && at(toks, j).Type == token.LPAREN {
		j = closeParen(toks, j)
	}
	return j - 1
}

// closeParen returns the index just past the parenthesis matching the one
// at i.
func closeParen(toks []token.Token, i int) int {
	depth := 0
	for ; i < len(toks); i++ {
		switch toks[i].Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				return i + 1
			}
		case token.EOF:
			return i
		}
	}
	return i
}

// queryKeywords start statements that return rows.
var queryKeywords = map[string]bool{
	"SELECT":    true,
	"WITH":      true,
	"VALUES":    true,
	"FROM":      true,
	"TABLE":     true,
	"SHOW":      true,
	"DESCRIBE":  true,
	"EXPLAIN":   true,
	"PRAGMA":    true,
	"SUMMARIZE": true,
	"PIVOT":     true,
	"UNPIVOT":   true,
}

// isQuery reports whether sql returns rows: it starts with a query keyword
// or has a RETURNING clause.
func isQuery(sql string) bool {
	toks, err := parser.Tokenize(sql)
	if err != nil {
		return false
	}
	if tok := toks[0]; tok.Type == token.IDENT && queryKeywords[strings.ToUpper(tok.Literal)] {
		return true
	}
	for _, tok := range toks {
		if tok.Type == token.IDENT && !tok.Quoted && strings.EqualFold(tok.Literal, "RETURNING") {
			return true
		}
	}
	return false
}

// unparen strips parentheses that enclose all of sql.
func unparen(sql string) string {
	for {
		s := strings.TrimSpace(sql)
		toks, err := parser.Tokenize(s)
		if err != nil || len(toks) < 3 || toks[0].Type != token.LPAREN {
			return s
		}
		end := closeParen(toks, 0)
		if end != len(toks)-1 || end == 2 {
			return s
		}
		sql = s[1:toks[end-1].Pos.Offset]
	}
}

// selectSQL turns an expression into a query. An expression that is a
// query, bare or parenthesized, runs as written.
func selectSQL(expr string) string {
	if inner := unparen(expr); isQuery(inner) {
		return inner
	}
	return "SELECT " + expr
}
