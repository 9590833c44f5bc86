// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eval

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.abla.dev/resolve"
	"go.abla.dev/syntax"
)

func property(name string, final bool) *resolve.Symbol {
	decl := &syntax.PropertyDecl{Final: final, Name: &syntax.Ident{Name: name}}
	return &resolve.Symbol{Kind: resolve.VariableSymbol, Name: name, Decl: decl}
}

func TestScopeShadowing(t *testing.T) {
	outerTable := resolve.NewTable(nil)
	outerTable.Insert(property("a", true))
	outer := NewScope(nil, outerTable)
	outer.Set("b", MakeInt(1))

	inner := NewScope(outer, resolve.NewTable(outerTable))
	inner.Set("b", MakeInt(2))

	if v, ok := inner.Get("b").(*Literal); !ok || v.String() != "2" {
		t.Errorf("inner b = %v, want 2", inner.Get("b"))
	}
	if v, ok := outer.Get("b").(*Literal); !ok || v.String() != "1" {
		t.Errorf("outer b = %v, want 1", outer.Get("b"))
	}
	sym, ok := inner.Get("a").(*ConstSymbol)
	if !ok || sym.Symbol.Name != "a" || !sym.Final() {
		t.Errorf("a = %v, want final constant symbol", inner.Get("a"))
	}
	if v := inner.Get("c"); v != nil {
		t.Errorf("c = %v, want nil", v)
	}
}

func TestScopeModify(t *testing.T) {
	table := resolve.NewTable(nil)
	table.Insert(property("v", false))
	table.Insert(property("c", true))
	outer := NewScope(nil, table)
	inner := NewScope(outer, nil)

	// A var declaration without a value is bound on first assignment,
	// in the scope of its table.
	if err := inner.Modify("v", MakeInt(3)); err != nil {
		t.Fatal(err)
	}
	if got := outer.Get("v"); got == nil || got.String() != "3" || got.Final() {
		t.Errorf("v = %v, want mutable 3", got)
	}

	if err := inner.Modify("c", MakeInt(1)); !errors.Is(err, ErrFinal) {
		t.Errorf("assigning c: got %v, want ErrFinal", err)
	}

	inner.Set("k", MakeInt(1))
	if err := inner.Modify("k", MakeInt(2)); !errors.Is(err, ErrFinal) {
		t.Errorf("assigning k: got %v, want ErrFinal", err)
	}

	if err := inner.Modify("nope", MakeInt(1)); err == nil {
		t.Errorf("assigning unknown identifier succeeded")
	}
}

func TestScopeNames(t *testing.T) {
	table := resolve.NewTable(nil)
	table.Insert(property("b", true))
	outer := NewScope(nil, table)
	outer.Set("a", MakeInt(1))
	inner := NewScope(outer, nil)
	inner.Set("c", MakeInt(2))
	inner.Set("a", MakeInt(3))

	if diff := cmp.Diff([]string{"a", "b", "c"}, inner.names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestValues(t *testing.T) {
	for _, test := range []struct {
		v        Value
		str, typ string
	}{
		{MakeInt(-4), "-4", "int"},
		{MakeString("a\"b"), `"a\"b"`, "string"},
		{&Instance{Type: "Ctx"}, "<instance Ctx>", "instance of Ctx"},
		{constSymbol(property("p", true)), "<variable p>", "variable p"},
		{&CompilerNode{Node: &syntax.Ident{Name: "q"}}, "<code q>", "code"},
		{nil, "", "no value"},
	} {
		if test.v != nil {
			if got := test.v.String(); got != test.str {
				t.Errorf("String() = %s, want %s", got, test.str)
			}
		}
		if got := describe(test.v); got != test.typ {
			t.Errorf("describe(%v) = %s, want %s", test.v, got, test.typ)
		}
	}

	v := MakeInt(1)
	if !v.Final() {
		t.Errorf("new literal is not final")
	}
	if w := v.WithFinal(false); w.Final() || !v.Final() {
		t.Errorf("WithFinal did not copy")
	}
	if _, err := Int(MakeString("1")); err == nil {
		t.Errorf("Int of string succeeded")
	}
	if s, err := String(MakeString("x")); err != nil || s != "x" {
		t.Errorf("String = %q, %v", s, err)
	}
}

func TestNearest(t *testing.T) {
	candidates := []string{"declareFun", "code", "import", "answer"}
	for _, test := range []struct{ x, want string }{
		{"answr", "answer"},
		{"declare_fun", "declareFun"},
		{"cod", "code"},
		{"zzzzzz", ""},
	} {
		if got := nearest(test.x, candidates); got != test.want {
			t.Errorf("nearest(%q) = %q, want %q", test.x, got, test.want)
		}
	}
}
