// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolve defines a name-binding pass for Abla abstract
// syntax trees.
//
// The resolver allocates a Table for each scope-introducing construct
// and records it in the Scope field of the corresponding syntax node:
// the File (which shares the global table with every other translation
// unit), each FunDecl (holding its parameters), and each Block of a
// function body, function literal, if or while statement.
//
// A function declaration binds a FunctionSymbol in the enclosing
// table, so that its siblings and its parent can call it. Parameters
// and val/var declarations bind VariableSymbols in the innermost
// table. Identifiers are not resolved here: lookups happen when code
// is executed at compile time or generated, because a compile-time
// import may add global symbols after this pass has finished.
//
// The resolver also reports structural errors: an extern function
// with a body, a non-extern non-abstract function without one, and a
// file-level property whose value cannot be known before run time.
package resolve // import "go.abla.dev/resolve"

import (
	"fmt"
	"sort"

	"go.abla.dev/syntax"
)

const debug = false

// An ErrorList is a non-empty list of resolver error messages.
type ErrorList []Error // len > 0

func (e ErrorList) Error() string { return e[0].Error() }

func (e ErrorList) Len() int           { return len(e) }
func (e ErrorList) Less(i, j int) bool { return e[i].Pos.Line < e[j].Pos.Line || e[i].Pos.Line == e[j].Pos.Line && e[i].Pos.Col < e[j].Pos.Col }
func (e ErrorList) Swap(i, j int)      { e[i], e[j] = e[j], e[i] }

// An Error describes the nature and position of a resolver error.
type Error struct {
	Pos syntax.Position
	Msg string
}

func (e Error) Error() string { return e.Pos.String() + ": " + e.Msg }

// File resolves the specified file against the global table, which
// becomes the file's Scope.
//
// The resolver sets the Scope fields of the file, its function
// declarations and its blocks, and marks assignment targets.
// Symbols are inserted into global as they are encountered, so an
// error does not undo the bindings made before it.
func File(file *syntax.File, global *Table) error {
	r := newResolver(global)
	file.Scope = global
	r.stmts(file.Stmts)
	return r.result()
}

// Statements resolves stmts, which were added to a block already bound
// to table, for example by compile-time code generation.
func Statements(table *Table, stmts []syntax.Stmt) error {
	r := newResolver(table)
	r.stmts(stmts)
	return r.result()
}

// Expr resolves x, an expression placed in a scope bound to table,
// for example the folded result of compile-time execution.
func Expr(table *Table, x syntax.Expr) error {
	r := newResolver(table)
	r.expr(x)
	return r.result()
}

func newResolver(env *Table) *resolver {
	return &resolver{env: env, global: env.Parent() == nil}
}

type resolver struct {
	env    *Table // innermost table
	global bool   // env is the global table
	errors ErrorList
}

func (r *resolver) errorf(pos syntax.Position, format string, args ...interface{}) {
	r.errors = append(r.errors, Error{pos, fmt.Sprintf(format, args...)})
}

func (r *resolver) result() error {
	if len(r.errors) > 0 {
		sort.Stable(r.errors)
		return r.errors
	}
	return nil
}

// push enters a new table nested in the current one, and
// returns a function that restores the previous state.
func (r *resolver) push() (*Table, func()) {
	prevEnv, prevGlobal := r.env, r.global
	r.env = NewTable(prevEnv)
	r.global = false
	if debug {
		fmt.Printf("push %p (parent %p)\n", r.env, prevEnv)
	}
	return r.env, func() { r.env, r.global = prevEnv, prevGlobal }
}

func (r *resolver) bind(kind Kind, name string, decl syntax.Node) {
	if debug {
		fmt.Printf("bind %s %s in %p\n", kind, name, r.env)
	}
	r.env.Insert(&Symbol{Kind: kind, Name: name, Decl: decl})
}

func (r *resolver) stmts(stmts []syntax.Stmt) {
	for _, stmt := range stmts {
		r.stmt(stmt)
	}
}

func (r *resolver) stmt(stmt syntax.Stmt) {
	switch stmt := stmt.(type) {
	case *syntax.FunDecl:
		r.function(stmt)

	case *syntax.PropertyDecl:
		if r.global && stmt.Value != nil && !isConstant(stmt.Value) {
			r.errorf(syntax.Start(stmt.Value), "value of global %s must be a literal or computed at compile time", stmt.Name.Name)
		}
		r.bind(VariableSymbol, stmt.Name.Name, stmt)
		if stmt.Value != nil {
			r.expr(stmt.Value)
		}

	case *syntax.WhileStmt:
		r.expr(stmt.Cond)
		r.block(stmt.Body)

	case *syntax.AssignStmt:
		if id, ok := stmt.LHS.(*syntax.Ident); ok {
			id.Assign = true
		} else {
			r.errorf(syntax.Start(stmt.LHS), "cannot assign to %s", kindOf(stmt.LHS))
		}
		r.expr(stmt.LHS)
		r.expr(stmt.RHS)

	case *syntax.ExprStmt:
		r.expr(stmt.X)

	default:
		panic(fmt.Sprintf("unexpected stmt %T", stmt))
	}
}

func (r *resolver) function(decl *syntax.FunDecl) {
	r.bind(FunctionSymbol, decl.Name.Name, decl)

	params, pop := r.push()
	defer pop()
	decl.Scope = params

	extern := decl.HasModifier(syntax.Extern)
	if extern && decl.Body != nil {
		r.errorf(decl.Name.NamePos, "extern function %s cannot have a body", decl.Name.Name)
	}
	if !extern && !decl.HasModifier(syntax.Abstract) && decl.Body == nil {
		r.errorf(decl.Name.NamePos, "function %s must have a body or be declared extern or abstract", decl.Name.Name)
	}

	for _, param := range decl.Params {
		r.bind(VariableSymbol, param.Name.Name, param)
	}
	if decl.Body != nil {
		r.block(decl.Body)
	}
}

// block binds the statements of b in a new nested table.
func (r *resolver) block(b *syntax.Block) {
	table, pop := r.push()
	defer pop()
	b.Scope = table
	r.stmts(b.Stmts)
}

func (r *resolver) expr(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.Ident, *syntax.IntLit:
		// nop

	case *syntax.StringLit:
		for _, part := range e.Parts {
			if x, ok := part.(*syntax.StringExpr); ok {
				r.expr(x.X)
			}
		}

	case *syntax.FunLit:
		table, pop := r.push()
		e.Body.Scope = table
		for _, param := range e.Params {
			r.bind(VariableSymbol, param.Name, param)
		}
		r.stmts(e.Body.Stmts)
		pop()

	case *syntax.CallExpr:
		r.expr(e.Fn)
		for _, arg := range e.Args {
			r.expr(arg)
		}

	case *syntax.BinaryExpr:
		r.expr(e.X)
		r.expr(e.Y)

	case *syntax.IfExpr:
		r.expr(e.Cond)
		r.block(e.True)
		if e.False != nil {
			r.block(e.False)
		}

	case *syntax.CompilerExec:
		r.expr(e.X)

	default:
		panic(fmt.Sprintf("unexpected expr %T", e))
	}
}

// isConstant reports whether x can be evaluated before run time.
func isConstant(x syntax.Expr) bool {
	switch x.(type) {
	case syntax.Literal, *syntax.CompilerExec:
		return true
	}
	return false
}

func kindOf(x syntax.Expr) string {
	switch x.(type) {
	case *syntax.CallExpr:
		return "function call"
	case *syntax.BinaryExpr:
		return "binary expression"
	case syntax.Literal:
		return "literal"
	}
	return "expression"
}
