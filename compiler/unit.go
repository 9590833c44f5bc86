// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"context"
	"io"

	"go.abla.dev/syntax"
)

// A Unit is a translation unit: one parsed source input, bound and
// with its compile-time code executed.
type Unit struct {
	Name string // file path, or a synthesized "<source#N>"/"<stream#N>"
	File *syntax.File
}

// A Parser turns source inputs into syntax trees.
// A Parser must be safe for concurrent use.
type Parser interface {
	ParseFile(path string) (*syntax.File, error)
	ParseSource(name, text string) (*syntax.File, error)
	ParseStream(name string, r io.Reader) (*syntax.File, error)
}

// SyntaxParser is the Parser implemented by package syntax.
type SyntaxParser struct{}

func (SyntaxParser) ParseFile(path string) (*syntax.File, error) { return syntax.ParseFile(path) }
func (SyntaxParser) ParseSource(name, text string) (*syntax.File, error) {
	return syntax.ParseSource(name, text)
}
func (SyntaxParser) ParseStream(name string, r io.Reader) (*syntax.File, error) {
	return syntax.ParseStream(name, r)
}

// A Backend generates code for a complete set of translation units.
type Backend interface {
	Generate(ctx context.Context, units []*Unit) error
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, units []*Unit) error

func (f BackendFunc) Generate(ctx context.Context, units []*Unit) error { return f(ctx, units) }
