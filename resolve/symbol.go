// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"fmt"
	"sync"

	"go.abla.dev/syntax"
)

// A Kind distinguishes the two flavors of Symbol.
type Kind uint8

const (
	FunctionSymbol Kind = iota // a function declaration or compiler intrinsic
	VariableSymbol             // a val/var declaration or a parameter
)

func (k Kind) String() string {
	if k == FunctionSymbol {
		return "function"
	}
	return "variable"
}

// A Symbol binds a name to a declaration.
//
// Two symbols denote the same entity iff their Decls are identical;
// Name is the binding name, which may differ from the name written in
// the declaration when the symbol is an alias.
type Symbol struct {
	Kind Kind
	Name string
	Decl syntax.Node // *syntax.FunDecl, *syntax.Param, *syntax.PropertyDecl, *syntax.Ident, or an intrinsic
}

func (s *Symbol) String() string { return fmt.Sprintf("%s %s", s.Kind, s.Name) }

// Is reports whether s and t denote the same declaration.
func (s *Symbol) Is(t *Symbol) bool { return s.Decl == t.Decl }

// A Table is one scope in the tree of scopes of a compilation: the
// global scope shared by all translation units, a function's
// parameters, or a block. Tables are safe for concurrent use.
type Table struct {
	parent *Table

	mu       sync.RWMutex
	children []*Table
	symbols  []*Symbol
}

// NewTable returns a new empty table and, if parent is non-nil,
// appends it to parent's children.
func NewTable(parent *Table) *Table {
	t := &Table{parent: parent}
	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, t)
		parent.mu.Unlock()
	}
	return t
}

// Parent returns the enclosing table, or nil for a root.
func (t *Table) Parent() *Table { return t.parent }

// Insert appends sym to the table's symbols.
func (t *Table) Insert(sym *Symbol) {
	t.mu.Lock()
	t.symbols = append(t.symbols, sym)
	t.mu.Unlock()
}

// Alias inserts a new binding for the declaration of sym under name.
func (t *Table) Alias(name string, sym *Symbol) *Symbol {
	alias := &Symbol{Kind: sym.Kind, Name: name, Decl: sym.Decl}
	t.Insert(alias)
	return alias
}

// Delete removes sym from the table and reports whether it was present.
func (t *Table) Delete(sym *Symbol) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.symbols {
		if s == sym {
			t.symbols = append(t.symbols[:i:i], t.symbols[i+1:]...)
			return true
		}
	}
	return false
}

// Own returns the first symbol named name in this table alone, or nil.
func (t *Table) Own(name string) *Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.symbols {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Find returns the first symbol named name in this table, then in
// each enclosing table in turn. Inner declarations shadow outer ones.
func (t *Table) Find(name string) *Symbol {
	for ; t != nil; t = t.parent {
		if s := t.Own(name); s != nil {
			return s
		}
	}
	return nil
}

// FindFunction returns the first function symbol satisfying pred,
// searching outward from t.
func (t *Table) FindFunction(pred func(*Symbol) bool) *Symbol {
	for ; t != nil; t = t.parent {
		t.mu.RLock()
		for _, s := range t.symbols {
			if s.Kind == FunctionSymbol && pred(s) {
				t.mu.RUnlock()
				return s
			}
		}
		t.mu.RUnlock()
	}
	return nil
}

// Symbols returns a snapshot of the table's own symbols in insertion order.
func (t *Table) Symbols() []*Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Symbol(nil), t.symbols...)
}

// Children returns a snapshot of the tables nested in t.
func (t *Table) Children() []*Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Table(nil), t.children...)
}

// Remove detaches child from t. The child's symbols are no longer
// reachable by lookups that start at t or its other descendants.
func (t *Table) Remove(child *Table) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.children {
		if c == child {
			t.children = append(t.children[:i:i], t.children[i+1:]...)
			return true
		}
	}
	return false
}
