package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/script"
	"github.com/leapstack-labs/leapscript/pkg/token"
)

// leaf adds a leaf node for stmt.
func (p *Parser) leaf(stmt *script.Statement) script.NodeID {
	return p.tree.Add(&script.Leaf{NodeInfo: script.NodeInfo{Start: stmt.Pos}, Stmt: stmt})
}

// textFrom returns the trimmed source between offset start and the current
// token.
func (p *Parser) textFrom(start int) string {
	end := p.token.Pos.Offset
	if end > len(p.src) {
		end = len(p.src)
	}
	return strings.TrimSpace(p.src[start:end])
}

// parseQuery parses a plain SQL statement up to its semicolon.
func (p *Parser) parseQuery() script.NodeID {
	pos := p.token.Pos
	text, ok := p.scan(token.SEMICOLON, token.EOF)
	if !ok {
		return script.NoNode
	}
	p.expectSemicolon()
	return p.leaf(&script.Statement{Kind: script.StmtQuery, Text: text, Pos: pos})
}

// parseDeclare parses variable, condition and handler declarations.
// Conditions and handlers are added to b and produce no node.
//
//	DECLARE [OR REPLACE] [VARIABLE] name [, name]* [type] [DEFAULT | =] expr] ;
//	DECLARE name CONDITION [FOR SQLSTATE [VALUE] 'xxxxx'] ;
//	DECLARE (EXIT | CONTINUE) HANDLER FOR condition [, condition]* statement
func (p *Parser) parseDeclare(b *body) script.NodeID {
	pos := p.token.Pos
	p.expect(token.DECLARE)

	switch {
	case p.checkAny(token.EXIT, token.CONTINUE):
		p.parseHandler(b, pos)
		return script.NoNode
	case p.check(token.IDENT) && p.peek.Type == token.CONDITION:
		p.parseConditionDecl(b)
		return script.NoNode
	}

	spec := &script.DeclareSpec{}
	if p.match(token.OR) {
		if !p.expect(token.REPLACE) {
			return script.NoNode
		}
		spec.Replace = true
	}
	if !p.match(token.VARIABLE) {
		p.match(token.VAR)
	}

	for {
		if !p.check(token.IDENT) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "variable name"))
			return script.NoNode
		}
		spec.Names = append(spec.Names, p.token.Literal)
		p.nextToken()
		if !p.match(token.COMMA) {
			break
		}
	}

	typ, ok := p.scan(token.DEFAULT, token.EQ, token.SEMICOLON, token.EOF)
	if !ok {
		return script.NoNode
	}
	spec.Type = typ
	if p.checkAny(token.DEFAULT, token.EQ) {
		p.nextToken()
		spec.Default = p.scanExpr(token.SEMICOLON, token.EOF)
		if spec.Default == nil {
			return script.NoNode
		}
	}

	text := p.textFrom(pos.Offset)
	p.expectSemicolon()
	return p.leaf(&script.Statement{Kind: script.StmtDeclare, Text: text, Pos: pos, Declare: spec})
}

func (p *Parser) parseConditionDecl(b *body) {
	decl := script.ConditionDecl{Name: p.token.Literal, Pos: p.token.Pos, SQLState: "45000"}
	p.nextToken()
	p.expect(token.CONDITION)
	if p.match(token.FOR) {
		state, ok := p.parseSQLState()
		if !ok {
			return
		}
		decl.SQLState = state
	}
	p.expectSemicolon()
	b.conds = append(b.conds, decl)
}

func (p *Parser) parseHandler(b *body, pos token.Position) {
	action := script.HandlerExit
	if p.check(token.CONTINUE) {
		action = script.HandlerContinue
	}
	p.nextToken()
	if !p.expect(token.HANDLER) || !p.expect(token.FOR) {
		return
	}

	var conds []script.ConditionRef
	for {
		c, ok := p.parseConditionRef()
		if !ok {
			return
		}
		conds = append(conds, c)
		if !p.match(token.COMMA) {
			break
		}
	}

	bodyPos := p.token.Pos
	hb := &body{}
	p.parseStatementInto(hb)
	if p.failed() {
		return
	}
	if len(hb.handlers) > 0 || len(hb.conds) > 0 {
		p.addErrorAt(bodyPos, ErrHandlerBodyDeclares)
		return
	}
	b.handlers = append(b.handlers, &script.Handler{
		Action:     action,
		Conditions: conds,
		Body:       p.implicitBlock(bodyPos, hb),
		Pos:        pos,
	})
}

// parseConditionRef parses SQLEXCEPTION, NOT FOUND, SQLSTATE 'xxxxx' or a
// condition name.
func (p *Parser) parseConditionRef() (script.ConditionRef, bool) {
	pos := p.token.Pos
	switch {
	case p.match(token.SQLEXCEPTION):
		return script.ConditionRef{Kind: script.CondException, Pos: pos}, true
	case p.match(token.NOT):
		if !p.expect(token.FOUND) {
			return script.ConditionRef{}, false
		}
		return script.ConditionRef{Kind: script.CondNotFound, Pos: pos}, true
	case p.check(token.SQLSTATE):
		state, ok := p.parseSQLState()
		return script.ConditionRef{Kind: script.CondSQLState, Value: state, Pos: pos}, ok
	case p.check(token.IDENT):
		name := p.token.Literal
		p.nextToken()
		for p.check(token.DOT) && p.peek.Type == token.IDENT {
			name += "." + p.peek.Literal
			p.nextToken()
			p.nextToken()
		}
		return script.ConditionRef{Kind: script.CondNamed, Value: name, Pos: pos}, true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "condition"))
	return script.ConditionRef{}, false
}

// parseSQLState parses SQLSTATE [VALUE] 'xxxxx'.
func (p *Parser) parseSQLState() (string, bool) {
	if !p.expect(token.SQLSTATE) {
		return "", false
	}
	p.match(token.VALUE)
	if !p.check(token.STRING) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SQLSTATE string"))
		return "", false
	}
	state := strings.ToUpper(p.token.Literal)
	if !validSQLState(state) {
		p.addError(fmt.Sprintf(ErrInvalidSQLState, p.token.Literal))
		return "", false
	}
	p.nextToken()
	return state, true
}

func validSQLState(s string) bool {
	if len(s) != 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigit(c) && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// parseSet parses variable assignment. SET statements that do not assign a
// plain name, such as SET a.b = 1, are kept as plain SQL.
//
//	SET [VAR | VARIABLE] name = expr ;
//	SET [VAR | VARIABLE] (name [, name]*) = (query) ;
func (p *Parser) parseSet() script.NodeID {
	pos := p.token.Pos
	p.expect(token.SET)
	explicit := p.match(token.VARIABLE) || p.match(token.VAR)

	spec := &script.SetSpec{Explicit: explicit}
	switch {
	case p.check(token.IDENT) && p.peek.Type == token.EQ:
		spec.Names = []string{p.token.Literal}
		p.nextToken()
		p.nextToken()
	case p.check(token.LPAREN) && p.peek.Type == token.IDENT:
		p.nextToken()
		for {
			if !p.check(token.IDENT) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "variable name"))
				return script.NoNode
			}
			spec.Names = append(spec.Names, p.token.Literal)
			p.nextToken()
			if !p.match(token.COMMA) {
				break
			}
		}
		if !p.expect(token.RPAREN) || !p.expect(token.EQ) {
			return script.NoNode
		}
	default:
		if explicit {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "variable name"))
			return script.NoNode
		}
		if _, ok := p.scan(token.SEMICOLON, token.EOF); !ok {
			return script.NoNode
		}
		text := p.textFrom(pos.Offset)
		p.expectSemicolon()
		return p.leaf(&script.Statement{Kind: script.StmtQuery, Text: text, Pos: pos})
	}

	spec.Value = p.scanExpr(token.SEMICOLON, token.EOF)
	if spec.Value == nil {
		return script.NoNode
	}
	text := p.textFrom(pos.Offset)
	p.expectSemicolon()
	return p.leaf(&script.Statement{Kind: script.StmtSet, Text: text, Pos: pos, Set: spec})
}

// parseSignal parses SIGNAL (SQLSTATE [VALUE] 'xxxxx' | name)
// [SET MESSAGE_TEXT = 'text'] ;
func (p *Parser) parseSignal() script.NodeID {
	pos := p.token.Pos
	p.expect(token.SIGNAL)

	spec := &script.SignalSpec{}
	switch {
	case p.check(token.SQLSTATE):
		state, ok := p.parseSQLState()
		if !ok {
			return script.NoNode
		}
		spec.SQLState = state
	case p.check(token.IDENT):
		spec.Condition = p.token.Literal
		p.nextToken()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SQLSTATE or condition name"))
		return script.NoNode
	}

	if p.match(token.SET) {
		if !p.check(token.IDENT) || !strings.EqualFold(p.token.Literal, "MESSAGE_TEXT") {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "MESSAGE_TEXT"))
			return script.NoNode
		}
		p.nextToken()
		if !p.expect(token.EQ) {
			return script.NoNode
		}
		if !p.check(token.STRING) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "message string"))
			return script.NoNode
		}
		spec.Message = p.token.Literal
		p.nextToken()
	}

	text := p.textFrom(pos.Offset)
	p.expectSemicolon()
	return p.leaf(&script.Statement{Kind: script.StmtSignal, Text: text, Pos: pos, Signal: spec})
}
