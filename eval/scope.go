// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eval

import (
	"errors"
	"fmt"
	"sort"

	"go.abla.dev/resolve"
	"go.abla.dev/syntax"
)

// ErrFinal is reported when assigning to a final binding.
var ErrFinal = errors.New("cannot assign to final binding")

// A Scope holds the values bound while executing a file, function
// body, or function literal body at compile time.
//
// Each scope is associated with the symbol table of the construct it
// executes. Lookups consult each scope from the innermost outward,
// checking its values and then its table's own symbols, so a value
// bound in an inner scope hides a declaration in an outer one.
type Scope struct {
	parent *Scope
	table  *resolve.Table
	values map[string]Value
}

// NewScope returns an empty scope nested in parent.
func NewScope(parent *Scope, table *resolve.Table) *Scope {
	return &Scope{parent: parent, table: table}
}

// Parent returns the enclosing scope, or nil.
func (s *Scope) Parent() *Scope { return s.parent }

// Table returns the symbol table associated with s.
func (s *Scope) Table() *resolve.Table { return s.table }

// Set binds name to v in s.
func (s *Scope) Set(name string, v Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	s.values[name] = v
}

// Get returns the value of name, or nil if it is not bound.
// A declaration with no value yet is returned as a *ConstSymbol.
func (s *Scope) Get(name string) Value {
	for ; s != nil; s = s.parent {
		if v, ok := s.values[name]; ok {
			return v
		}
		if s.table != nil {
			if sym := s.table.Own(name); sym != nil {
				return constSymbol(sym)
			}
		}
	}
	return nil
}

// Modify replaces the value of the existing binding name with v.
// The new value keeps the binding's mutability.
func (s *Scope) Modify(name string, v Value) error {
	for ; s != nil; s = s.parent {
		if old, ok := s.values[name]; ok {
			if old.Final() {
				return fmt.Errorf("%w %s", ErrFinal, name)
			}
			s.values[name] = v.WithFinal(old.Final())
			return nil
		}
		if s.table != nil {
			if sym := s.table.Own(name); sym != nil {
				if constSymbol(sym).Final() {
					return fmt.Errorf("%w %s", ErrFinal, name)
				}
				s.Set(name, v.WithFinal(false))
				return nil
			}
		}
	}
	return fmt.Errorf("unknown identifier %s", name)
}

// names returns the sorted names visible from s.
func (s *Scope) names() []string {
	seen := make(map[string]bool)
	for ; s != nil; s = s.parent {
		for name := range s.values {
			seen[name] = true
		}
		if s.table != nil {
			for _, sym := range s.table.Symbols() {
				seen[sym.Name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// constSymbol materializes a symbol as a value. Only var declarations
// yield a non-final value.
func constSymbol(sym *resolve.Symbol) *ConstSymbol {
	final := true
	if decl, ok := sym.Decl.(*syntax.PropertyDecl); ok {
		final = decl.Final
	}
	return &ConstSymbol{mutability{final}, sym}
}
