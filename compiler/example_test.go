// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"go.abla.dev/compiler"
	"go.abla.dev/syntax"
)

// This example compiles a unit whose compile-time code declares a
// function and computes a constant, then prints the resulting trees.
func Example() {
	const src = `
#declareFun("greeting", { "hello" })
val answer = #(6 * 7)
`
	ctx := context.Background()
	c := compiler.New(nil, compiler.WithLogger(log.New(io.Discard, "", 0)))
	if err := c.CompileSource(ctx, src, false, nil); err != nil {
		log.Fatal(err)
	}

	print := compiler.BackendFunc(func(ctx context.Context, units []*compiler.Unit) error {
		for _, u := range units {
			fmt.Println(u.Name)
			if err := syntax.Fprint(os.Stdout, u.File); err != nil {
				return err
			}
		}
		return nil
	})
	if err := c.Output(ctx, print); err != nil {
		log.Fatal(err)
	}

	// Output:
	// <source#0>
	// (ExprStmt X=(CompilerExec X=1))
	// (PropertyDecl Final Name=answer Value=(CompilerExec X=42))
	// (FunDecl Name=greeting Body=(Block Stmts=((ExprStmt X="hello"))))
}
