// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eval

import (
	"fmt"
	"strconv"

	"go.abla.dev/resolve"
	"go.abla.dev/syntax"
)

// A Value is the result of evaluating an expression at compile time.
//
// The set of Value types is closed: *Literal, *Instance, *ConstSymbol,
// *Assignable and *CompilerNode. Every value carries a final flag;
// a binding whose value is final cannot be assigned.
type Value interface {
	// Final reports whether the binding holding this value is immutable.
	Final() bool

	// WithFinal returns a copy of the value with the given final flag.
	WithFinal(final bool) Value

	String() string
	value()
}

type mutability struct{ final bool }

func (m mutability) Final() bool { return m.final }

// A Literal is a concrete integer, string, or function literal.
type Literal struct {
	mutability
	Lit syntax.Literal
}

// An Instance is an opaque value with no literal representation.
type Instance struct {
	mutability
	Type  string
	Scope *Scope
}

// A ConstSymbol refers to a declaration found in a symbol table.
type ConstSymbol struct {
	mutability
	Symbol *resolve.Symbol
}

// An Assignable is the write-back handle produced by evaluating the
// left side of an assignment.
type Assignable struct {
	mutability
	Assign func(Value) error
}

// A CompilerNode holds a syntax tree produced at compile time,
// either an expression or a block, to be folded into the program.
type CompilerNode struct {
	mutability
	Node syntax.Node
}

func (*Literal) value()      {}
func (*Instance) value()     {}
func (*ConstSymbol) value()  {}
func (*Assignable) value()   {}
func (*CompilerNode) value() {}

func (v *Literal) WithFinal(final bool) Value      { c := *v; c.final = final; return &c }
func (v *Instance) WithFinal(final bool) Value     { c := *v; c.final = final; return &c }
func (v *ConstSymbol) WithFinal(final bool) Value  { c := *v; c.final = final; return &c }
func (v *Assignable) WithFinal(final bool) Value   { c := *v; c.final = final; return &c }
func (v *CompilerNode) WithFinal(final bool) Value { c := *v; c.final = final; return &c }

func (v *Literal) String() string {
	switch lit := v.Lit.(type) {
	case *syntax.IntLit:
		return strconv.FormatInt(lit.Value, 10)
	case *syntax.StringLit:
		if s, ok := lit.Const(); ok {
			return strconv.Quote(s)
		}
		return lit.Raw
	case *syntax.FunLit:
		return "<function literal>"
	}
	panic(fmt.Sprintf("unexpected literal %T", v.Lit))
}

func (v *Instance) String() string    { return fmt.Sprintf("<instance %s>", v.Type) }
func (v *ConstSymbol) String() string { return fmt.Sprintf("<%s>", v.Symbol) }
func (v *Assignable) String() string  { return "<assignable>" }
func (v *CompilerNode) String() string {
	return fmt.Sprintf("<code %s>", syntax.TreeString(v.Node))
}

// NewLiteral returns a final value holding lit.
func NewLiteral(lit syntax.Literal) *Literal {
	return &Literal{mutability{true}, lit}
}

// MakeInt returns a final integer value. Its literal belongs to no file.
func MakeInt(n int64) *Literal {
	return NewLiteral(&syntax.IntLit{Raw: strconv.FormatInt(n, 10), Value: n})
}

// MakeString returns a final string value. Its literal belongs to no file.
func MakeString(s string) *Literal {
	lit := &syntax.StringLit{Raw: strconv.Quote(s)}
	if s != "" {
		lit.Parts = []syntax.StringPart{&syntax.StringConst{Value: s}}
	}
	return NewLiteral(lit)
}

// Int returns the integer held by v.
func Int(v Value) (int64, error) {
	if lit, ok := v.(*Literal); ok {
		if i, ok := lit.Lit.(*syntax.IntLit); ok {
			return i.Value, nil
		}
	}
	return 0, fmt.Errorf("got %s, want int", describe(v))
}

// String returns the constant string held by v.
func String(v Value) (string, error) {
	if lit, ok := v.(*Literal); ok {
		if s, ok := lit.Lit.(*syntax.StringLit); ok {
			if c, ok := s.Const(); ok {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("got %s, want string", describe(v))
}

// FunLit returns the function literal held by v.
func FunLit(v Value) (*syntax.FunLit, error) {
	if lit, ok := v.(*Literal); ok {
		if f, ok := lit.Lit.(*syntax.FunLit); ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("got %s, want function literal", describe(v))
}

// describe returns a short description of the type of v.
func describe(v Value) string {
	switch v := v.(type) {
	case nil:
		return "no value"
	case *Literal:
		switch v.Lit.(type) {
		case *syntax.IntLit:
			return "int"
		case *syntax.StringLit:
			return "string"
		case *syntax.FunLit:
			return "function literal"
		}
	case *Instance:
		return "instance of " + v.Type
	case *ConstSymbol:
		return v.Symbol.Kind.String() + " " + v.Symbol.Name
	case *Assignable:
		return "assignable"
	case *CompilerNode:
		return "code"
	}
	panic(fmt.Sprintf("unexpected value %T", v))
}
