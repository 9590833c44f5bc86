// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

// CopyBlock returns a deep copy of b whose nodes are registered in
// dst's arena. Resolver annotations are not copied; the copy must be
// resolved again before use.
func CopyBlock(dst *File, b *Block) *Block {
	return copyNode(dst, b).(*Block)
}

// CopyExpr returns a deep copy of x registered in dst's arena.
func CopyExpr(dst *File, x Expr) Expr {
	return copyNode(dst, x).(Expr)
}

func copyNode(dst *File, n Node) Node {
	var c Node
	switch n := n.(type) {
	case *FunDecl:
		x := &FunDecl{Fun: n.Fun}
		dst.Register(x)
		for _, m := range n.Modifiers {
			x.Modifiers = append(x.Modifiers, copyNode(dst, m).(*Modifier))
		}
		x.Name = copyNode(dst, n.Name).(*Ident)
		for _, param := range n.Params {
			x.Params = append(x.Params, copyNode(dst, param).(*Param))
		}
		if n.Result != nil {
			x.Result = copyNode(dst, n.Result).(*TypeExpr)
		}
		if n.Body != nil {
			x.Body = copyNode(dst, n.Body).(*Block)
		}
		return x

	case *Modifier:
		x := &Modifier{Pos: n.Pos, Kind: n.Kind}
		dst.Register(x)
		if n.Lib != nil {
			x.Lib = copyNode(dst, n.Lib).(*StringLit)
		}
		return x

	case *Param:
		x := &Param{}
		dst.Register(x)
		x.Name = copyNode(dst, n.Name).(*Ident)
		x.Type = copyNode(dst, n.Type).(*TypeExpr)
		return x

	case *TypeExpr:
		x := &TypeExpr{NamePos: n.NamePos, Name: n.Name}
		dst.Register(x)
		for _, param := range n.Params {
			x.Params = append(x.Params, copyNode(dst, param).(*TypeExpr))
		}
		if n.Result != nil {
			x.Result = copyNode(dst, n.Result).(*TypeExpr)
		}
		return x

	case *Block:
		x := &Block{Lbrace: n.Lbrace, Rbrace: n.Rbrace}
		dst.Register(x)
		for _, stmt := range n.Stmts {
			x.Stmts = append(x.Stmts, copyNode(dst, stmt).(Stmt))
		}
		return x

	case *PropertyDecl:
		x := &PropertyDecl{Pos: n.Pos, Final: n.Final}
		dst.Register(x)
		x.Name = copyNode(dst, n.Name).(*Ident)
		if n.Type != nil {
			x.Type = copyNode(dst, n.Type).(*TypeExpr)
		}
		if n.Value != nil {
			x.Value = copyNode(dst, n.Value).(Expr)
		}
		return x

	case *WhileStmt:
		x := &WhileStmt{While: n.While}
		dst.Register(x)
		x.Cond = copyNode(dst, n.Cond).(Expr)
		x.Body = copyNode(dst, n.Body).(*Block)
		return x

	case *AssignStmt:
		x := &AssignStmt{OpPos: n.OpPos}
		dst.Register(x)
		x.LHS = copyNode(dst, n.LHS).(Expr)
		x.RHS = copyNode(dst, n.RHS).(Expr)
		return x

	case *ExprStmt:
		x := &ExprStmt{}
		dst.Register(x)
		x.X = copyNode(dst, n.X).(Expr)
		return x

	case *Ident:
		c = &Ident{NamePos: n.NamePos, Name: n.Name}

	case *IntLit:
		c = &IntLit{TokenPos: n.TokenPos, Raw: n.Raw, Value: n.Value}

	case *StringConst:
		c = &StringConst{Pos: n.Pos, Value: n.Value}

	case *StringLit:
		x := &StringLit{Quote: n.Quote, Raw: n.Raw}
		dst.Register(x)
		for _, part := range n.Parts {
			x.Parts = append(x.Parts, copyNode(dst, part).(StringPart))
		}
		return x

	case *StringExpr:
		x := &StringExpr{Dollar: n.Dollar}
		dst.Register(x)
		x.X = copyNode(dst, n.X).(Expr)
		return x

	case *FunLit:
		x := &FunLit{}
		dst.Register(x)
		for _, param := range n.Params {
			x.Params = append(x.Params, copyNode(dst, param).(*Ident))
		}
		x.Body = copyNode(dst, n.Body).(*Block)
		return x

	case *CallExpr:
		x := &CallExpr{Lparen: n.Lparen, Rparen: n.Rparen}
		dst.Register(x)
		x.Fn = copyNode(dst, n.Fn).(Expr)
		for _, arg := range n.Args {
			x.Args = append(x.Args, copyNode(dst, arg).(Expr))
		}
		return x

	case *BinaryExpr:
		x := &BinaryExpr{OpPos: n.OpPos, Op: n.Op}
		dst.Register(x)
		x.X = copyNode(dst, n.X).(Expr)
		x.Y = copyNode(dst, n.Y).(Expr)
		return x

	case *IfExpr:
		x := &IfExpr{If: n.If, ElsePos: n.ElsePos}
		dst.Register(x)
		x.Cond = copyNode(dst, n.Cond).(Expr)
		x.True = copyNode(dst, n.True).(*Block)
		if n.False != nil {
			x.False = copyNode(dst, n.False).(*Block)
		}
		return x

	case *CompilerExec:
		x := &CompilerExec{Hash: n.Hash}
		dst.Register(x)
		x.X = copyNode(dst, n.X).(Expr)
		return x

	default:
		panic(n)
	}
	dst.Register(c)
	return c
}
