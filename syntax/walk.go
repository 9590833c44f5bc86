// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

// Walk traverses a syntax tree in depth-first order.
// It starts by calling f(n); n must not be nil.
// If f returns true, Walk calls itself
// recursively for each non-nil child of n.
// Walk then calls f(nil).
func Walk(n Node, f func(Node) bool) {
	if n == nil {
		panic("nil")
	}
	if !f(n) {
		return
	}

	switch n := n.(type) {
	case *File:
		walkStmts(n.Stmts, f)

	case *FunDecl:
		for _, m := range n.Modifiers {
			Walk(m, f)
		}
		Walk(n.Name, f)
		for _, param := range n.Params {
			Walk(param, f)
		}
		if n.Result != nil {
			Walk(n.Result, f)
		}
		if n.Body != nil {
			Walk(n.Body, f)
		}

	case *Modifier:
		if n.Lib != nil {
			Walk(n.Lib, f)
		}

	case *Param:
		Walk(n.Name, f)
		Walk(n.Type, f)

	case *TypeExpr:
		for _, param := range n.Params {
			Walk(param, f)
		}
		if n.Result != nil {
			Walk(n.Result, f)
		}

	case *Block:
		walkStmts(n.Stmts, f)

	case *PropertyDecl:
		Walk(n.Name, f)
		if n.Type != nil {
			Walk(n.Type, f)
		}
		if n.Value != nil {
			Walk(n.Value, f)
		}

	case *WhileStmt:
		Walk(n.Cond, f)
		Walk(n.Body, f)

	case *AssignStmt:
		Walk(n.LHS, f)
		Walk(n.RHS, f)

	case *ExprStmt:
		Walk(n.X, f)

	case *Ident, *IntLit, *StringConst:
		// no-op

	case *StringLit:
		for _, part := range n.Parts {
			Walk(part, f)
		}

	case *StringExpr:
		Walk(n.X, f)

	case *FunLit:
		for _, param := range n.Params {
			Walk(param, f)
		}
		Walk(n.Body, f)

	case *CallExpr:
		Walk(n.Fn, f)
		for _, arg := range n.Args {
			Walk(arg, f)
		}

	case *BinaryExpr:
		Walk(n.X, f)
		Walk(n.Y, f)

	case *IfExpr:
		Walk(n.Cond, f)
		Walk(n.True, f)
		if n.False != nil {
			Walk(n.False, f)
		}

	case *CompilerExec:
		Walk(n.X, f)

	default:
		panic(n)
	}

	f(nil)
}

func walkStmts(stmts []Stmt, f func(Node) bool) {
	for _, stmt := range stmts {
		Walk(stmt, f)
	}
}
