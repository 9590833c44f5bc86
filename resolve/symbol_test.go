// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.abla.dev/syntax"
)

func ident(name string) *syntax.Ident { return &syntax.Ident{Name: name} }

func names(syms []*Symbol) []string {
	var out []string
	for _, s := range syms {
		out = append(out, s.Name)
	}
	return out
}

func TestShadowing(t *testing.T) {
	outer := NewTable(nil)
	inner := NewTable(outer)
	x1 := &Symbol{Kind: VariableSymbol, Name: "x", Decl: ident("x")}
	x2 := &Symbol{Kind: VariableSymbol, Name: "x", Decl: ident("x")}
	outer.Insert(x1)
	inner.Insert(x2)

	if got := inner.Find("x"); got != x2 {
		t.Errorf("inner.Find(x) = %v, want inner symbol", got)
	}
	if got := outer.Find("x"); got != x1 {
		t.Errorf("outer.Find(x) = %v, want outer symbol", got)
	}
	if inner.Find("y") != nil {
		t.Errorf("Find of an undeclared name succeeded")
	}
	if got := outer.Children(); len(got) != 1 || got[0] != inner {
		t.Errorf("outer.Children() = %v, want [inner]", got)
	}
}

func TestOwnIsFirstInserted(t *testing.T) {
	table := NewTable(nil)
	first := &Symbol{Kind: FunctionSymbol, Name: "f", Decl: ident("f")}
	table.Insert(first)
	table.Insert(&Symbol{Kind: FunctionSymbol, Name: "f", Decl: ident("f")})
	if got := table.Own("f"); got != first {
		t.Errorf("Own(f) = %p, want first symbol %p", got, first)
	}
}

func TestAliasAndDelete(t *testing.T) {
	table := NewTable(nil)
	decl := ident("f")
	f := &Symbol{Kind: FunctionSymbol, Name: "f", Decl: decl}
	table.Insert(f)
	g := table.Alias("g", f)

	if !g.Is(f) || g.Name != "g" {
		t.Errorf("alias %v does not share the declaration of %v", g, f)
	}
	if diff := cmp.Diff([]string{"f", "g"}, names(table.Symbols())); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}
	if !table.Delete(f) || table.Delete(f) {
		t.Errorf("Delete did not report presence correctly")
	}
	if table.Own("f") != nil || table.Own("g") != g {
		t.Errorf("Delete removed the wrong symbol")
	}
}

func TestFindFunction(t *testing.T) {
	outer := NewTable(nil)
	inner := NewTable(outer)
	outer.Insert(&Symbol{Kind: FunctionSymbol, Name: "f", Decl: ident("f")})
	inner.Insert(&Symbol{Kind: VariableSymbol, Name: "f", Decl: ident("f")})

	got := inner.FindFunction(func(s *Symbol) bool { return s.Name == "f" })
	if got == nil || got.Kind != FunctionSymbol {
		t.Errorf("FindFunction skipped past variables: got %v", got)
	}
}

func TestRemove(t *testing.T) {
	parent := NewTable(nil)
	a, b := NewTable(parent), NewTable(parent)
	if !parent.Remove(a) || parent.Remove(a) {
		t.Errorf("Remove did not report presence correctly")
	}
	if got := parent.Children(); len(got) != 1 || got[0] != b {
		t.Errorf("children after Remove = %v, want [b]", got)
	}
}

func TestConcurrentInsert(t *testing.T) {
	table := NewTable(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("v%d", i)
			table.Insert(&Symbol{Kind: VariableSymbol, Name: name, Decl: ident(name)})
			table.Find(name)
		}(i)
	}
	wg.Wait()
	if n := len(table.Symbols()); n != 50 {
		t.Errorf("got %d symbols, want 50", n)
	}
}
