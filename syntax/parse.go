// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

// This file defines a recursive-descent parser for Abla.
// The LL(1) grammar of Abla and the names of many productions
// are shown in the comments of each parsing function.
// Function literals need two more tokens of lookahead to tell
// { a, b -> ... } from an ordinary block; the parser snapshots the
// scanner to decide.

import (
	"fmt"
	"io"
	"strings"
)

const debug = false

// ParseFile parses the named Abla source file.
func ParseFile(filename string) (*File, error) {
	return Parse(filename, nil)
}

// ParseSource parses text, reporting positions relative to name.
func ParseSource(name, text string) (*File, error) {
	return Parse(name, text)
}

// ParseStream parses the contents of r, reporting positions
// relative to name.
func ParseStream(name string, r io.Reader) (*File, error) {
	return Parse(name, r)
}

// Parse parses the input data and returns the corresponding parse tree.
//
// If src != nil, Parse parses the source from src and the filename
// is only used when recording position information.
// The type of the argument for the src parameter must be string,
// []byte, or io.Reader.
// If src == nil, Parse parses the file specified by filename.
func Parse(filename string, src interface{}) (f *File, err error) {
	data, err := readSource(filename, src)
	if err != nil {
		return nil, err
	}
	p := &parser{
		in:   newScanner(filename, data),
		file: &File{Path: filename},
	}
	defer p.in.recover(&err)

	p.file.Register(p.file)
	p.nextToken() // read first lookahead token
	p.file.Stmts = p.parseFile()
	if debug {
		fmt.Printf("Parse(%s): %d nodes\n", filename, p.file.NumNodes())
	}
	return p.file, nil
}

type parser struct {
	in        *scanner
	tok       Token
	tokval    tokenValue
	file      *File // destination arena
	noLambdas bool  // trailing function literals are not permitted (conditions)
}

// nextToken advances the scanner and returns the position of the
// previous token.
func (p *parser) nextToken() Position {
	oldpos := p.tokval.pos
	p.tok = p.in.nextToken(&p.tokval)
	if debug {
		fmt.Printf("nextToken: %-20s%+v\n", p.tok, p.tokval.pos)
	}
	return oldpos
}

// consume consumes a token of the specified type and returns its position.
func (p *parser) consume(t Token) Position {
	if p.tok != t {
		p.in.errorf(p.tokval.pos, "got %#v, want %#v", p.tok, t)
	}
	return p.nextToken()
}

func (p *parser) skipSemis() {
	for p.tok == SEMI {
		p.nextToken()
	}
}

// file = {decl [';']} EOF
func (p *parser) parseFile() []Stmt {
	var stmts []Stmt
	p.skipSemis()
	for p.tok != EOF {
		stmts = append(stmts, p.parseDecl())
		p.skipSemis()
	}
	return stmts
}

// decl = fun_decl | property_decl | compiler_exec
func (p *parser) parseDecl() Stmt {
	switch p.tok {
	case FUN, EXTERN, ABSTRACT, COMPILER:
		return p.parseFunDecl()
	case VAL, VAR:
		return p.parsePropertyDecl()
	case HASH:
		x := p.parseCompilerExec()
		stmt := &ExprStmt{X: x}
		p.file.Register(stmt)
		return stmt
	}
	p.in.errorf(p.tokval.pos, "got %#v, want declaration", p.tok)
	panic("unreachable")
}

// stmt = fun_decl | property_decl | while_stmt | expr ['=' expr]
func (p *parser) parseStmt() Stmt {
	switch p.tok {
	case FUN, EXTERN, ABSTRACT, COMPILER:
		return p.parseFunDecl()
	case VAL, VAR:
		return p.parsePropertyDecl()
	case WHILE:
		return p.parseWhileStmt()
	}
	x := p.parseExpr()
	if p.tok == EQ {
		pos := p.nextToken()
		rhs := p.parseExpr()
		stmt := &AssignStmt{LHS: x, OpPos: pos, RHS: rhs}
		p.file.Register(stmt)
		return stmt
	}
	stmt := &ExprStmt{X: x}
	p.file.Register(stmt)
	return stmt
}

// fun_decl = {modifier} 'fun' IDENT ['(' params ')'] [':' type] [block | '=' expr]
func (p *parser) parseFunDecl() *FunDecl {
	decl := &FunDecl{}
	p.file.Register(decl)
	for p.tok != FUN {
		decl.Modifiers = append(decl.Modifiers, p.parseModifier())
	}
	decl.Fun = p.nextToken()
	decl.Name = p.parseIdent()
	if p.tok == LPAREN {
		p.nextToken()
		for p.tok != RPAREN {
			if len(decl.Params) > 0 {
				p.consume(COMMA)
			}
			decl.Params = append(decl.Params, p.parseParam())
		}
		p.nextToken()
	}
	if p.tok == COLON {
		p.nextToken()
		decl.Result = p.parseType()
	}
	switch p.tok {
	case LBRACE:
		decl.Body = p.parseBlock()
	case EQ:
		p.nextToken()
		x := p.parseExpr()
		start, end := x.Span()
		stmt := &ExprStmt{X: x}
		p.file.Register(stmt)
		decl.Body = &Block{Lbrace: start, Stmts: []Stmt{stmt}, Rbrace: end}
		p.file.Register(decl.Body)
	}
	return decl
}

// modifier = 'extern' ['(' STRING ')'] | 'abstract' | 'compiler'
func (p *parser) parseModifier() *Modifier {
	m := &Modifier{Pos: p.tokval.pos}
	p.file.Register(m)
	switch p.tok {
	case EXTERN:
		m.Kind = Extern
		p.nextToken()
		if p.tok == LPAREN {
			p.nextToken()
			if p.tok != STRING {
				p.in.errorf(p.tokval.pos, "got %#v, want library name", p.tok)
			}
			m.Lib = p.parseStringLit()
			p.consume(RPAREN)
		}
	case ABSTRACT:
		m.Kind = Abstract
		p.nextToken()
	case COMPILER:
		m.Kind = Compiler
		p.nextToken()
	default:
		p.in.errorf(p.tokval.pos, "got %#v, want 'fun' or modifier", p.tok)
	}
	return m
}

// param = IDENT ':' type
func (p *parser) parseParam() *Param {
	param := &Param{}
	p.file.Register(param)
	param.Name = p.parseIdent()
	p.consume(COLON)
	param.Type = p.parseType()
	return param
}

// type = IDENT | '(' [type {',' type}] ')' '->' type
func (p *parser) parseType() *TypeExpr {
	t := &TypeExpr{NamePos: p.tokval.pos}
	p.file.Register(t)
	switch p.tok {
	case IDENT:
		t.Name = p.tokval.raw
		p.nextToken()
	case LPAREN:
		p.nextToken()
		for p.tok != RPAREN {
			if len(t.Params) > 0 {
				p.consume(COMMA)
			}
			t.Params = append(t.Params, p.parseType())
		}
		p.nextToken()
		p.consume(ARROW)
		t.Result = p.parseType()
	default:
		p.in.errorf(p.tokval.pos, "got %#v, want type", p.tok)
	}
	return t
}

// property_decl = ('val' | 'var') IDENT [':' type] ['=' expr]
func (p *parser) parsePropertyDecl() *PropertyDecl {
	decl := &PropertyDecl{Pos: p.tokval.pos, Final: p.tok == VAL}
	p.file.Register(decl)
	p.nextToken()
	decl.Name = p.parseIdent()
	if p.tok == COLON {
		p.nextToken()
		decl.Type = p.parseType()
	}
	if p.tok == EQ {
		p.nextToken()
		decl.Value = p.parseExpr()
	}
	return decl
}

// while_stmt = 'while' expr block
func (p *parser) parseWhileStmt() *WhileStmt {
	stmt := &WhileStmt{}
	p.file.Register(stmt)
	stmt.While = p.nextToken()
	stmt.Cond = p.parseCond()
	stmt.Body = p.parseBlock()
	return stmt
}

// parseCond parses a condition, in which a brace ends the expression.
func (p *parser) parseCond() Expr {
	prev := p.noLambdas
	p.noLambdas = true
	defer func() { p.noLambdas = prev }()
	return p.parseExpr()
}

// block = '{' {stmt [';']} '}'
func (p *parser) parseBlock() *Block {
	b := &Block{}
	p.file.Register(b)
	b.Lbrace = p.consume(LBRACE)
	b.Stmts = p.parseStmtsUntilRbrace()
	b.Rbrace = p.consume(RBRACE)
	return b
}

func (p *parser) parseStmtsUntilRbrace() []Stmt {
	prev := p.noLambdas
	p.noLambdas = false
	defer func() { p.noLambdas = prev }()

	var stmts []Stmt
	p.skipSemis()
	for p.tok != RBRACE {
		if p.tok == EOF {
			p.in.errorf(p.tokval.pos, "got %#v, want '}'", p.tok)
		}
		stmts = append(stmts, p.parseStmt())
		p.skipSemis()
	}
	return stmts
}

func (p *parser) parseIdent() *Ident {
	if p.tok != IDENT {
		p.in.errorf(p.tokval.pos, "got %#v, want identifier", p.tok)
	}
	id := &Ident{NamePos: p.tokval.pos, Name: p.tokval.raw}
	p.file.Register(id)
	p.nextToken()
	return id
}

// expr = equality
func (p *parser) parseExpr() Expr {
	return p.parseBinary(0)
}

// precedence maps each binary operator to its precedence (0-3).
var precedence [maxToken]int8

func init() {
	for i := range precedence {
		precedence[i] = -1
	}
	for _, op := range []Token{EQL, NEQ} {
		precedence[op] = 0
	}
	for _, op := range []Token{LT, GT, LE, GE} {
		precedence[op] = 1
	}
	for _, op := range []Token{PLUS, MINUS} {
		precedence[op] = 2
	}
	for _, op := range []Token{STAR, SLASH} {
		precedence[op] = 3
	}
}

// binary = unary {op binary}, by precedence climbing.
func (p *parser) parseBinary(prec int) Expr {
	x := p.parseUnary()
	for {
		opprec := int(precedence[p.tok])
		if opprec < prec {
			return x
		}
		op := p.tok
		pos := p.nextToken()
		y := p.parseBinary(opprec + 1)
		bin := &BinaryExpr{X: x, OpPos: pos, Op: op, Y: y}
		p.file.Register(bin)
		x = bin
	}
}

// unary = '-' unary | postfix
func (p *parser) parseUnary() Expr {
	if p.tok == MINUS {
		pos := p.nextToken()
		x := p.parseUnary()
		if lit, ok := x.(*IntLit); ok {
			lit.TokenPos = pos
			lit.Raw = "-" + lit.Raw
			lit.Value = -lit.Value
			return lit
		}
		zero := &IntLit{TokenPos: pos, Raw: "0"}
		p.file.Register(zero)
		bin := &BinaryExpr{X: zero, OpPos: pos, Op: MINUS, Y: x}
		p.file.Register(bin)
		return bin
	}
	return p.parsePostfix()
}

// postfix = primary {'(' [expr {',' expr}] ')' [funlit]}
func (p *parser) parsePostfix() Expr {
	x := p.parsePrimary()
	for p.tok == LPAREN {
		call := &CallExpr{Fn: x}
		p.file.Register(call)
		call.Lparen = p.nextToken()
		for p.tok != RPAREN {
			if len(call.Args) > 0 {
				p.consume(COMMA)
			}
			call.Args = append(call.Args, p.parseExpr())
		}
		call.Rparen = p.nextToken()
		if p.tok == LBRACE && !p.noLambdas {
			// trailing function literal: f(x) { ... }
			call.Args = append(call.Args, p.parseFunLit())
		}
		x = call
	}
	return x
}

// primary = INT | STRING | IDENT | funlit | '(' expr ')' | compiler_exec | if_expr
func (p *parser) parsePrimary() Expr {
	switch p.tok {
	case INT:
		lit := &IntLit{TokenPos: p.tokval.pos, Raw: p.tokval.raw, Value: p.tokval.int}
		p.file.Register(lit)
		p.nextToken()
		return lit
	case STRING:
		return p.parseStringLit()
	case IDENT:
		return p.parseIdent()
	case LBRACE:
		return p.parseFunLit()
	case LPAREN:
		p.nextToken()
		prev := p.noLambdas
		p.noLambdas = false
		x := p.parseExpr()
		p.noLambdas = prev
		p.consume(RPAREN)
		return x
	case HASH:
		return p.parseCompilerExec()
	case IF:
		return p.parseIfExpr()
	}
	p.in.errorf(p.tokval.pos, "got %#v, want primary expression", p.tok)
	panic("unreachable")
}

// compiler_exec = '#' postfix
func (p *parser) parseCompilerExec() *CompilerExec {
	x := &CompilerExec{}
	p.file.Register(x)
	x.Hash = p.consume(HASH)
	x.X = p.parsePostfix()
	return x
}

// if_expr = 'if' expr block ['else' (block | if_expr)]
func (p *parser) parseIfExpr() *IfExpr {
	x := &IfExpr{}
	p.file.Register(x)
	x.If = p.consume(IF)
	x.Cond = p.parseCond()
	x.True = p.parseBlock()
	if p.tok == ELSE {
		x.ElsePos = p.nextToken()
		if p.tok == IF {
			elif := p.parseIfExpr()
			stmt := &ExprStmt{X: elif}
			p.file.Register(stmt)
			start, end := elif.Span()
			x.False = &Block{Lbrace: start, Stmts: []Stmt{stmt}, Rbrace: end}
			p.file.Register(x.False)
		} else {
			x.False = p.parseBlock()
		}
	}
	return x
}

// funlit = '{' [IDENT {',' IDENT} '->'] {stmt} '}'
func (p *parser) parseFunLit() *FunLit {
	lit := &FunLit{}
	p.file.Register(lit)
	body := &Block{}
	p.file.Register(body)
	body.Lbrace = p.consume(LBRACE)
	lit.Params = p.parseLitParams()
	body.Stmts = p.parseStmtsUntilRbrace()
	body.Rbrace = p.consume(RBRACE)
	lit.Body = body
	return lit
}

// parseLitParams parses the optional "a, b ->" prefix of a function
// literal, restoring the scanner if the prefix is absent.
func (p *parser) parseLitParams() []*Ident {
	if p.tok == ARROW {
		p.nextToken()
		return nil
	}
	if p.tok != IDENT {
		return nil
	}
	savedIn, savedTok, savedVal := *p.in, p.tok, p.tokval
	var names []tokenValue
	for p.tok == IDENT {
		names = append(names, p.tokval)
		p.nextToken()
		if p.tok != COMMA {
			break
		}
		p.nextToken()
	}
	if p.tok != ARROW {
		*p.in, p.tok, p.tokval = savedIn, savedTok, savedVal
		return nil
	}
	p.nextToken()
	params := make([]*Ident, len(names))
	for i, v := range names {
		params[i] = &Ident{NamePos: v.pos, Name: v.raw}
		p.file.Register(params[i])
	}
	return params
}

// parseStringLit splits the current STRING token into constant and
// interpolated parts.
func (p *parser) parseStringLit() *StringLit {
	lit := &StringLit{Quote: p.tokval.pos, Raw: p.tokval.raw}
	p.file.Register(lit)
	s := p.tokval.string
	pos := p.tokval.pos.add(`"`)
	p.nextToken()

	var run strings.Builder
	runPos := pos
	flush := func() {
		if run.Len() == 0 {
			return
		}
		value, err := unescape(runPos, run.String())
		if err != nil {
			panic(err)
		}
		c := &StringConst{Pos: runPos, Value: value}
		p.file.Register(c)
		lit.Parts = append(lit.Parts, c)
		run.Reset()
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			if run.Len() == 0 {
				runPos = pos
			}
			run.WriteString(s[i : i+2])
			pos = pos.add(s[i : i+2])
			i += 2

		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			flush()
			end := matchBrace(s, i+2)
			if end < 0 {
				p.in.error(pos, "unterminated ${ in string")
			}
			inner := s[i+2 : end]
			x := p.parseSubExpr(pos.add("${"), inner)
			part := &StringExpr{Dollar: pos, X: x}
			p.file.Register(part)
			lit.Parts = append(lit.Parts, part)
			pos = pos.add(s[i : end+1])
			i = end + 1
			runPos = pos

		case c == '$' && i+1 < len(s) && isIdentStart(rune(s[i+1])):
			flush()
			j := i + 1
			for j < len(s) && isIdent(rune(s[j])) {
				j++
			}
			id := &Ident{NamePos: pos.add("$"), Name: s[i+1 : j]}
			p.file.Register(id)
			part := &StringExpr{Dollar: pos, X: id}
			p.file.Register(part)
			lit.Parts = append(lit.Parts, part)
			pos = pos.add(s[i:j])
			i = j
			runPos = pos

		default:
			if run.Len() == 0 {
				runPos = pos
			}
			run.WriteByte(c)
			pos = pos.add(s[i : i+1])
			i++
		}
	}
	flush()
	return lit
}

// matchBrace returns the index of the '}' closing a brace opened just
// before s[i], skipping nested braces and string literals, or -1.
func matchBrace(s string, i int) int {
	depth := 1
	for ; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			for i++; i < len(s) && s[i] != '"'; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseSubExpr parses an interpolated expression found at pos.
func (p *parser) parseSubExpr(pos Position, src string) Expr {
	sub := &parser{
		in:   &scanner{rest: []byte(src), pos: pos},
		file: p.file,
	}
	sub.nextToken()
	x := sub.parseExpr()
	if sub.tok != EOF {
		sub.in.errorf(sub.tokval.pos, "got %#v, want '}'", sub.tok)
	}
	return x
}
