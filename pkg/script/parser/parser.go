// Package parser turns script text into a script.Tree.
//
// # Grammar Overview
//
//	script      → statement* EOF
//	statement   → [label ':'] compound | if | case | [label ':'] loop
//	            | LEAVE label ';' | ITERATE label ';'
//	            | declare | set | signal | sql ';'
//	compound    → BEGIN statement* END [label] ';'
//	if          → IF expr THEN statement* (ELSEIF expr THEN statement*)*
//	              [ELSE statement*] END IF ';'
//	case        → CASE [expr] (WHEN expr THEN statement*)+ [ELSE statement*] END CASE ';'
//	loop        → WHILE expr DO statement* END WHILE [label] ';'
//	            | REPEAT statement* UNTIL expr END REPEAT [label] ';'
//	            | LOOP statement* END LOOP [label] ';'
//	            | FOR [ident AS] query DO statement* END FOR [label] ';'
//
// Expressions, queries and plain SQL statements are not parsed; they are
// scanned up to the keyword or semicolon that ends them and carried as
// source text. A script that is not a single compound is wrapped in one.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapscript/pkg/script"
	"github.com/leapstack-labs/leapscript/pkg/token"
)

// Parser parses script text into a tree.
type Parser struct {
	lexer  *Lexer
	src    string
	token  token.Token // current token
	peek   token.Token // lookahead token
	peek2  token.Token // second lookahead token
	errors []error
	tree   *script.Tree
}

// NewParser creates a new parser for the given script.
func NewParser(src string) *Parser {
	p := &Parser{
		lexer: NewLexer(src),
		src:   src,
		tree:  script.NewTree(),
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a script.
func Parse(src string) (*script.Tree, error) {
	return NewParser(src).Parse()
}

// Parse parses the whole input and returns the tree.
func (p *Parser) Parse() (*script.Tree, error) {
	start := p.token.Pos
	b := &body{}
	for !p.check(token.EOF) && !p.failed() {
		p.parseStatementInto(b)
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	if len(b.nodes) == 0 && len(b.handlers) == 0 {
		return nil, &ParseError{Pos: start, Message: "empty script"}
	}

	root := script.NoNode
	if len(b.nodes) == 1 && len(b.handlers) == 0 && len(b.conds) == 0 {
		if blk, ok := p.tree.Node(b.nodes[0]).(*script.Block); ok && !blk.Implicit {
			root = b.nodes[0]
		}
	}
	if root == script.NoNode {
		root = p.tree.Add(&script.Block{
			NodeInfo:   script.NodeInfo{Start: start},
			Body:       b.nodes,
			Handlers:   b.handlers,
			Conditions: b.conds,
		})
	}
	p.tree.Root = root
	p.tree.Source = p.src
	return p.tree, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkAny returns true if the current token is of one of the given types.
func (p *Parser) checkAny(types ...token.TokenType) bool {
	for _, t := range types {
		if p.token.Type == t {
			return true
		}
	}
	return false
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

// expectSemicolon ends a statement. The last statement of the input may
// omit it.
func (p *Parser) expectSemicolon() {
	if p.match(token.SEMICOLON) || p.check(token.EOF) {
		return
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), ";"))
}

// addError adds a parse error at the current token.
func (p *Parser) addError(msg string) {
	p.addErrorAt(p.token.Pos, msg)
}

func (p *Parser) addErrorAt(pos token.Position, msg string) {
	p.errors = append(p.errors, &ParseError{Pos: pos, Message: msg})
}

// failed reports whether parsing has hit an error.
func (p *Parser) failed() bool {
	return len(p.errors) > 0 || len(p.lexer.Errors) > 0
}

// err returns the first lexing or parsing error.
func (p *Parser) err() error {
	if len(p.lexer.Errors) > 0 {
		return p.lexer.Errors[0]
	}
	if len(p.errors) > 0 {
		return p.errors[0]
	}
	return nil
}

// describe renders a token for error messages.
func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT, token.NUMBER:
		return fmt.Sprintf("%q", tok.Literal)
	case token.STRING:
		return fmt.Sprintf("'%s'", tok.Literal)
	}
	return tok.Type.String()
}

// ---------- Statements ----------

// body accumulates the statements and declarations of one statement list.
type body struct {
	nodes    []script.NodeID
	handlers []*script.Handler
	conds    []script.ConditionDecl
}

// parseList parses statements until one of the terminators.
func (p *Parser) parseList(terminators ...token.TokenType) *body {
	b := &body{}
	for !p.checkAny(terminators...) && !p.check(token.EOF) && !p.failed() {
		p.parseStatementInto(b)
	}
	return b
}

// implicitBlock wraps a statement list as the body of a branch or loop.
func (p *Parser) implicitBlock(pos token.Position, b *body) script.NodeID {
	return p.tree.Add(&script.Block{
		NodeInfo:   script.NodeInfo{Start: pos},
		Body:       b.nodes,
		Handlers:   b.handlers,
		Conditions: b.conds,
		Implicit:   true,
	})
}

// parseStatementInto parses one statement and adds it to b.
func (p *Parser) parseStatementInto(b *body) {
	before := p.token.Pos.Offset

	label, labelPos := "", token.Position{}
	if p.check(token.IDENT) && p.peek.Type == token.COLON {
		label, labelPos = p.token.Literal, p.token.Pos
		p.nextToken() // label
		p.nextToken() // ':'
		if !p.checkAny(token.BEGIN, token.WHILE, token.REPEAT, token.LOOP, token.FOR) {
			p.addErrorAt(labelPos, fmt.Sprintf(ErrLabelPlacement, label))
			return
		}
	}

	var id script.NodeID
	switch p.token.Type {
	case token.BEGIN:
		id = p.parseCompound(label, labelPos)
	case token.IF:
		id = p.parseIf()
	case token.CASE:
		id = p.parseCase()
	case token.WHILE:
		id = p.parseWhile(label, labelPos)
	case token.REPEAT:
		id = p.parseRepeat(label, labelPos)
	case token.LOOP:
		id = p.parseLoop(label, labelPos)
	case token.FOR:
		id = p.parseFor(label, labelPos)
	case token.LEAVE, token.ITERATE:
		id = p.parseJump()
	case token.DECLARE:
		id = p.parseDeclare(b)
	case token.SET:
		id = p.parseSet()
	case token.SIGNAL:
		id = p.parseSignal()
	case token.SEMICOLON:
		p.addError("empty statement")
		return
	default:
		id = p.parseQuery()
	}

	if id != script.NoNode {
		b.nodes = append(b.nodes, id)
	}
	if !p.failed() && p.token.Pos.Offset == before && !p.check(token.EOF) {
		p.addError(fmt.Sprintf("unexpected %s", describe(p.token)))
	}
}

// startPos returns the position a labeled construct starts at.
func startPos(labelPos, keywordPos token.Position) token.Position {
	if labelPos.IsValid() {
		return labelPos
	}
	return keywordPos
}

// parseCompound parses BEGIN ... END [label] ;
func (p *Parser) parseCompound(label string, labelPos token.Position) script.NodeID {
	pos := startPos(labelPos, p.token.Pos)
	p.expect(token.BEGIN)
	b := p.parseList(token.END)
	if !p.expect(token.END) {
		return script.NoNode
	}
	p.parseEndLabel(label)
	p.expectSemicolon()
	return p.tree.Add(&script.Block{
		NodeInfo:   script.NodeInfo{Start: pos},
		Label:      label,
		Body:       b.nodes,
		Handlers:   b.handlers,
		Conditions: b.conds,
	})
}

// parseEndLabel consumes an optional end label, which must repeat the
// begin label.
func (p *Parser) parseEndLabel(label string) {
	if !p.check(token.IDENT) {
		return
	}
	end := p.token
	switch {
	case label == "":
		p.addError(fmt.Sprintf(ErrEndLabelWithout, end.Literal))
	case !strings.EqualFold(end.Literal, label):
		p.addError(fmt.Sprintf(ErrEndLabelMismatch, end.Literal, label))
	}
	p.nextToken()
}

// parseIf parses IF ... ELSEIF ... ELSE ... END IF ;
func (p *Parser) parseIf() script.NodeID {
	pos := p.token.Pos
	p.expect(token.IF)

	var branches []script.Branch
	for {
		cond := p.scanExpr(token.THEN)
		p.expect(token.THEN)
		bodyPos := p.token.Pos
		branches = append(branches, script.Branch{
			Cond: cond,
			Body: p.implicitBlock(bodyPos, p.parseList(token.ELSEIF, token.ELSE, token.END)),
		})
		if !p.match(token.ELSEIF) {
			break
		}
	}

	elseBody := script.NoNode
	if p.check(token.ELSE) {
		elsePos := p.token.Pos
		p.nextToken()
		elseBody = p.implicitBlock(elsePos, p.parseList(token.END))
	}
	p.expect(token.END)
	p.expect(token.IF)
	p.expectSemicolon()

	return p.tree.Add(&script.Conditional{
		NodeInfo: script.NodeInfo{Start: pos},
		Branches: branches,
		Else:     elseBody,
	})
}

// parseCase parses the simple and searched CASE statements.
func (p *Parser) parseCase() script.NodeID {
	pos := p.token.Pos
	p.expect(token.CASE)

	n := &script.Conditional{NodeInfo: script.NodeInfo{Start: pos}, Else: script.NoNode}
	if !p.check(token.WHEN) {
		n.Simple = true
		n.Scrutinee = p.scanExpr(token.WHEN)
	}
	if !p.check(token.WHEN) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "WHEN"))
		return script.NoNode
	}

	for p.match(token.WHEN) {
		cond := p.scanExpr(token.THEN)
		p.expect(token.THEN)
		bodyPos := p.token.Pos
		n.Branches = append(n.Branches, script.Branch{
			Cond: cond,
			Body: p.implicitBlock(bodyPos, p.parseList(token.WHEN, token.ELSE, token.END)),
		})
		if p.failed() {
			return script.NoNode
		}
	}

	if p.check(token.ELSE) {
		elsePos := p.token.Pos
		p.nextToken()
		n.Else = p.implicitBlock(elsePos, p.parseList(token.END))
	}
	p.expect(token.END)
	p.expect(token.CASE)
	p.expectSemicolon()
	return p.tree.Add(n)
}

// parseWhile parses WHILE expr DO ... END WHILE [label] ;
func (p *Parser) parseWhile(label string, labelPos token.Position) script.NodeID {
	pos := startPos(labelPos, p.token.Pos)
	p.expect(token.WHILE)
	cond := p.scanExpr(token.DO)
	p.expect(token.DO)
	bodyPos := p.token.Pos
	bodyID := p.implicitBlock(bodyPos, p.parseList(token.END))
	p.expect(token.END)
	p.expect(token.WHILE)
	p.parseEndLabel(label)
	p.expectSemicolon()
	return p.tree.Add(&script.While{
		NodeInfo: script.NodeInfo{Start: pos},
		Label:    label,
		Cond:     cond,
		Body:     bodyID,
	})
}

// parseRepeat parses REPEAT ... UNTIL expr END REPEAT [label] ;
func (p *Parser) parseRepeat(label string, labelPos token.Position) script.NodeID {
	pos := startPos(labelPos, p.token.Pos)
	p.expect(token.REPEAT)
	bodyPos := p.token.Pos
	bodyID := p.implicitBlock(bodyPos, p.parseList(token.UNTIL))
	p.expect(token.UNTIL)
	until := p.scanExpr(token.END)
	p.expect(token.END)
	p.expect(token.REPEAT)
	p.parseEndLabel(label)
	p.expectSemicolon()
	return p.tree.Add(&script.Repeat{
		NodeInfo: script.NodeInfo{Start: pos},
		Label:    label,
		Body:     bodyID,
		Until:    until,
	})
}

// parseLoop parses LOOP ... END LOOP [label] ;
func (p *Parser) parseLoop(label string, labelPos token.Position) script.NodeID {
	pos := startPos(labelPos, p.token.Pos)
	p.expect(token.LOOP)
	bodyPos := p.token.Pos
	bodyID := p.implicitBlock(bodyPos, p.parseList(token.END))
	p.expect(token.END)
	p.expect(token.LOOP)
	p.parseEndLabel(label)
	p.expectSemicolon()
	return p.tree.Add(&script.Loop{
		NodeInfo: script.NodeInfo{Start: pos},
		Label:    label,
		Body:     bodyID,
	})
}

// parseFor parses FOR [var AS] query DO ... END FOR [label] ;
func (p *Parser) parseFor(label string, labelPos token.Position) script.NodeID {
	pos := startPos(labelPos, p.token.Pos)
	p.expect(token.FOR)

	var variable string
	if p.check(token.IDENT) && p.peek.Type == token.AS {
		variable = p.token.Literal
		p.nextToken()
		p.nextToken()
	}

	query := p.scanExpr(token.DO)
	p.expect(token.DO)
	bodyPos := p.token.Pos
	bodyID := p.implicitBlock(bodyPos, p.parseList(token.END))
	p.expect(token.END)
	p.expect(token.FOR)
	p.parseEndLabel(label)
	p.expectSemicolon()

	var stmt *script.Statement
	if query != nil {
		stmt = &script.Statement{Kind: script.StmtQuery, Text: query.Text, Pos: query.Pos}
	}
	return p.tree.Add(&script.For{
		NodeInfo: script.NodeInfo{Start: pos},
		Label:    label,
		Var:      variable,
		Query:    stmt,
		Body:     bodyID,
	})
}

// parseJump parses LEAVE label ; and ITERATE label ;
func (p *Parser) parseJump() script.NodeID {
	pos := p.token.Pos
	leave := p.check(token.LEAVE)
	p.nextToken()
	if !p.check(token.IDENT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "label"))
		return script.NoNode
	}
	label := p.token.Literal
	p.nextToken()
	p.expectSemicolon()

	if leave {
		return p.tree.Add(&script.Leave{NodeInfo: script.NodeInfo{Start: pos}, Label: label})
	}
	return p.tree.Add(&script.Iterate{NodeInfo: script.NodeInfo{Start: pos}, Label: label})
}
