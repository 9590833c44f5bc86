// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package syntax provides an Abla parser and abstract syntax tree.
package syntax

// A NodeID is the index of a node in its File's arena.
// It is stable for the lifetime of the File and is used to key
// side tables that phases attach to the tree.
type NodeID int32

// NoID is the NodeID of nodes that do not belong to any File,
// such as compiler intrinsics.
const NoID NodeID = -1

// A Node is a node in an Abla syntax tree.
type Node interface {
	// Span returns the start and end position of the node.
	Span() (start, end Position)

	// ID returns the node's index in its File's arena.
	ID() NodeID
}

// arenaRef stores a node's id plus one, so that the zero value
// denotes an unregistered node.
type arenaRef struct{ id NodeID }

func (r *arenaRef) ID() NodeID       { return r.id - 1 }
func (r *arenaRef) setID(id NodeID) { r.id = id + 1 }

type registrable interface {
	Node
	setID(NodeID)
}

// Start returns the start position of the node.
func Start(n Node) Position {
	start, _ := n.Span()
	return start
}

// End returns the end position of the node.
func End(n Node) Position {
	_, end := n.Span()
	return end
}

// A File represents an Abla source file, the syntax tree of one
// translation unit.
type File struct {
	arenaRef
	Path  string
	Stmts []Stmt

	nodes []Node // arena, indexed by NodeID

	// set by resolver:
	Scope interface{} // a *resolve.Table
}

// Register adds n to the file's arena and assigns its NodeID.
// Nodes created after parsing (for example by compile-time code
// generation) must be registered before any phase looks them up.
func (f *File) Register(n Node) {
	r, ok := n.(registrable)
	if !ok {
		return
	}
	r.setID(NodeID(len(f.nodes)))
	f.nodes = append(f.nodes, n)
}

// Node returns the node with the specified id, or nil.
func (f *File) Node(id NodeID) Node {
	if id < 0 || int(id) >= len(f.nodes) {
		return nil
	}
	return f.nodes[id]
}

// NumNodes returns the size of the file's arena.
func (f *File) NumNodes() int { return len(f.nodes) }

func (x *File) Span() (start, end Position) {
	if len(x.Stmts) == 0 {
		return
	}
	start, _ = x.Stmts[0].Span()
	_, end = x.Stmts[len(x.Stmts)-1].Span()
	return start, end
}

// A Stmt is an Abla statement.
type Stmt interface {
	Node
	stmt()
}

func (*AssignStmt) stmt()   {}
func (*ExprStmt) stmt()     {}
func (*FunDecl) stmt()      {}
func (*PropertyDecl) stmt() {}
func (*WhileStmt) stmt()    {}

// A ModKind is the kind of a declaration modifier.
type ModKind uint8

const (
	Extern ModKind = iota
	Abstract
	Compiler
)

var modNames = [...]string{
	Extern:   "extern",
	Abstract: "abstract",
	Compiler: "compiler",
}

func (k ModKind) String() string { return modNames[k] }

// A Modifier qualifies a function declaration.
type Modifier struct {
	arenaRef
	Pos  Position
	Kind ModKind
	Lib  *StringLit // extern("lib") only; may be nil
}

func (x *Modifier) Span() (start, end Position) {
	if x.Lib != nil {
		_, end = x.Lib.Span()
		return x.Pos, end.add(")")
	}
	return x.Pos, x.Pos.add(x.Kind.String())
}

// A TypeExpr denotes a type: a name such as int, or a function type
// (Params) -> Result.
type TypeExpr struct {
	arenaRef
	NamePos Position
	Name    string      // "" for function types
	Params  []*TypeExpr // function types only
	Result  *TypeExpr   // non-nil iff this is a function type
}

func (x *TypeExpr) Span() (start, end Position) {
	if x.Result != nil {
		_, end = x.Result.Span()
		return x.NamePos, end
	}
	return x.NamePos, x.NamePos.add(x.Name)
}

// IsVoid reports whether t is absent or names the void type.
func (t *TypeExpr) IsVoid() bool {
	return t == nil || t.Result == nil && t.Name == "void"
}

// A Param is a function parameter: Name: Type.
type Param struct {
	arenaRef
	Name *Ident
	Type *TypeExpr
}

func (x *Param) Span() (start, end Position) {
	start, _ = x.Name.Span()
	_, end = x.Type.Span()
	return start, end
}

// A FunDecl represents a function declaration.
type FunDecl struct {
	arenaRef
	Modifiers []*Modifier
	Fun       Position // position of FUN token
	Name      *Ident
	Params    []*Param
	Result    *TypeExpr // may be nil
	Body      *Block    // nil for extern and abstract functions

	// set by resolver:
	Scope interface{} // a *resolve.Table holding the parameters
}

func (x *FunDecl) Span() (start, end Position) {
	start = x.Fun
	if len(x.Modifiers) > 0 {
		start = x.Modifiers[0].Pos
	}
	switch {
	case x.Body != nil:
		_, end = x.Body.Span()
	case x.Result != nil:
		_, end = x.Result.Span()
	default:
		_, end = x.Name.Span()
	}
	return start, end
}

// HasModifier reports whether the declaration carries a modifier of kind k.
func (x *FunDecl) HasModifier(k ModKind) bool {
	return x.Modifier(k) != nil
}

// Modifier returns the first modifier of kind k, or nil.
func (x *FunDecl) Modifier(k ModKind) *Modifier {
	for _, m := range x.Modifiers {
		if m.Kind == k {
			return m
		}
	}
	return nil
}

// A Block is a braced list of statements. The value of a block
// is the value of its last expression statement.
type Block struct {
	arenaRef
	Lbrace Position
	Stmts  []Stmt
	Rbrace Position

	// set by resolver:
	Scope interface{} // a *resolve.Table
}

func (x *Block) Span() (start, end Position) {
	return x.Lbrace, x.Rbrace.add("}")
}

// A PropertyDecl declares a variable:
//	val x: int = 1
//	var y = "s"
type PropertyDecl struct {
	arenaRef
	Pos   Position // VAL or VAR
	Final bool     // val
	Name  *Ident
	Type  *TypeExpr // may be nil
	Value Expr      // may be nil
}

func (x *PropertyDecl) Span() (start, end Position) {
	switch {
	case x.Value != nil:
		_, end = x.Value.Span()
	case x.Type != nil:
		_, end = x.Type.Span()
	default:
		_, end = x.Name.Span()
	}
	return x.Pos, end
}

// A WhileStmt is a loop: while Cond { Body }.
type WhileStmt struct {
	arenaRef
	While Position
	Cond  Expr
	Body  *Block
}

func (x *WhileStmt) Span() (start, end Position) {
	_, end = x.Body.Span()
	return x.While, end
}

// An AssignStmt represents an assignment: LHS = RHS.
type AssignStmt struct {
	arenaRef
	LHS   Expr
	OpPos Position
	RHS   Expr
}

func (x *AssignStmt) Span() (start, end Position) {
	start, _ = x.LHS.Span()
	_, end = x.RHS.Span()
	return
}

// An ExprStmt is an expression evaluated for its value or side effects.
type ExprStmt struct {
	arenaRef
	X Expr
}

func (x *ExprStmt) Span() (start, end Position) {
	return x.X.Span()
}

// An Expr is an Abla expression.
type Expr interface {
	Node
	expr()
}

func (*BinaryExpr) expr()   {}
func (*CallExpr) expr()     {}
func (*CompilerExec) expr() {}
func (*FunLit) expr()       {}
func (*Ident) expr()        {}
func (*IfExpr) expr()       {}
func (*IntLit) expr()       {}
func (*StringLit) expr()    {}

// A Literal is an expression with a constant representation:
// an integer, a string, or a function literal.
type Literal interface {
	Expr
	literal()
}

func (*FunLit) literal()    {}
func (*IntLit) literal()    {}
func (*StringLit) literal() {}

// An Ident represents an identifier.
type Ident struct {
	arenaRef
	NamePos Position
	Name    string

	// set by resolver:
	Assign bool // ident is the target of an assignment
}

func (x *Ident) Span() (start, end Position) {
	return x.NamePos, x.NamePos.add(x.Name)
}

// An IntLit represents an integer literal.
type IntLit struct {
	arenaRef
	TokenPos Position
	Raw      string // uninterpreted text
	Value    int64
}

func (x *IntLit) Span() (start, end Position) {
	return x.TokenPos, x.TokenPos.add(x.Raw)
}

// A StringLit represents a string literal, possibly with
// interpolated expressions: "a ${b} $c".
type StringLit struct {
	arenaRef
	Quote Position
	Parts []StringPart
	Raw   string // uninterpreted text, including quotes
}

func (x *StringLit) Span() (start, end Position) {
	return x.Quote, x.Quote.add(x.Raw)
}

// Const reports the value of a string literal without interpolations.
func (x *StringLit) Const() (string, bool) {
	var s string
	for _, part := range x.Parts {
		c, ok := part.(*StringConst)
		if !ok {
			return "", false
		}
		s += c.Value
	}
	return s, true
}

// A StringPart is one part of a string literal.
type StringPart interface {
	Node
	stringPart()
}

func (*StringConst) stringPart() {}
func (*StringExpr) stringPart()  {}

// A StringConst is a constant run of characters in a string literal.
type StringConst struct {
	arenaRef
	Pos   Position
	Value string // decoded
}

func (x *StringConst) Span() (start, end Position) {
	return x.Pos, x.Pos.add(x.Value)
}

// A StringExpr is an interpolated expression in a string literal.
type StringExpr struct {
	arenaRef
	Dollar Position
	X      Expr
}

func (x *StringExpr) Span() (start, end Position) {
	_, end = x.X.Span()
	return x.Dollar, end
}

// A FunLit represents a function literal: { a, b -> Body }.
type FunLit struct {
	arenaRef
	Params []*Ident
	Body   *Block
}

func (x *FunLit) Span() (start, end Position) {
	return x.Body.Span()
}

// A CallExpr represents a function call expression: Fn(Args).
type CallExpr struct {
	arenaRef
	Fn     Expr
	Lparen Position
	Args   []Expr
	Rparen Position
}

func (x *CallExpr) Span() (start, end Position) {
	start, _ = x.Fn.Span()
	return start, x.Rparen.add(")")
}

// A BinaryExpr represents a binary expression: X Op Y.
type BinaryExpr struct {
	arenaRef
	X     Expr
	OpPos Position
	Op    Token
	Y     Expr
}

func (x *BinaryExpr) Span() (start, end Position) {
	start, _ = x.X.Span()
	_, end = x.Y.Span()
	return start, end
}

// An IfExpr is a conditional: if Cond { True } else { False }.
// 'else if' is desugared into a False block holding another IfExpr.
type IfExpr struct {
	arenaRef
	If      Position
	Cond    Expr
	True    *Block
	ElsePos Position
	False   *Block // optional
}

func (x *IfExpr) Span() (start, end Position) {
	body := x.False
	if body == nil {
		body = x.True
	}
	_, end = body.Span()
	return x.If, end
}

// A CompilerExec marks an expression for execution at compile time:
// #X. After execution, X is replaced by the folded result.
type CompilerExec struct {
	arenaRef
	Hash Position
	X    Expr
}

func (x *CompilerExec) Span() (start, end Position) {
	_, end = x.X.Span()
	return x.Hash, end
}
