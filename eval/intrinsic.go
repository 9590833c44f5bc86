// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eval

import (
	"go.abla.dev/resolve"
	"go.abla.dev/syntax"
)

// An Intrinsic is a function implemented by the compiler and callable
// from compile-time code. It is a syntax.Node so that it can be the
// declaration of a function symbol; it belongs to no file.
type Intrinsic struct {
	Name   string
	Params []string
	Fn     func(e *Engine, args []Value) (Value, error)
}

func (*Intrinsic) Span() (start, end syntax.Position) { return }
func (*Intrinsic) ID() syntax.NodeID                  { return syntax.NoID }

func (in *Intrinsic) String() string { return "<intrinsic " + in.Name + ">" }

// Builtins returns the intrinsics provided by the engine itself:
//
//	code(fn)            the body of a function literal as code to fold
//	declareFun(n, fn)   declare function n with the body of fn
func Builtins() []*Intrinsic {
	return []*Intrinsic{
		{Name: "code", Params: []string{"fn"}, Fn: code},
		{Name: "declareFun", Params: []string{"name", "fn"}, Fn: declareFun},
	}
}

// Predeclare binds each intrinsic as a function symbol in table.
func Predeclare(table *resolve.Table, intrinsics ...*Intrinsic) {
	for _, in := range intrinsics {
		table.Insert(&resolve.Symbol{Kind: resolve.FunctionSymbol, Name: in.Name, Decl: in})
	}
}

// code returns the body of a function literal: its expression if it
// consists of a single expression statement, the block otherwise.
func code(e *Engine, args []Value) (Value, error) {
	lit, err := FunLit(args[0])
	if err != nil {
		return nil, err
	}
	var node syntax.Node = lit.Body
	if len(lit.Body.Stmts) == 1 {
		if stmt, ok := lit.Body.Stmts[0].(*syntax.ExprStmt); ok {
			node = stmt.X
		}
	}
	return &CompilerNode{mutability{true}, node}, nil
}

// declareFun appends to the executing file a function declaration
// with the given name and a copy of the literal's body.
func declareFun(e *Engine, args []Value) (Value, error) {
	name, err := String(args[0])
	if err != nil {
		return nil, err
	}
	lit, err := FunLit(args[1])
	if err != nil {
		return nil, err
	}

	f := e.file
	pos := lit.Body.Lbrace
	decl := &syntax.FunDecl{Fun: pos}
	f.Register(decl)
	decl.Name = &syntax.Ident{NamePos: pos, Name: name}
	f.Register(decl.Name)
	decl.Body = syntax.CopyBlock(f, lit.Body)
	f.Stmts = append(f.Stmts, decl)
	if err := resolve.Statements(e.global, []syntax.Stmt{decl}); err != nil {
		return nil, err
	}
	e.logf("%s: declared function %s", f.Path, name)
	return MakeInt(1), nil
}
