// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package repl provides an interactive compile loop for Abla.
//
// It supports readline-style command editing,
// and interrupts through Control-C.
//
// Each entry is compiled as a new translation unit sharing the global
// symbol table, so later entries see the declarations of earlier
// ones. After its compile-time code has run, the entry's syntax tree
// is printed. Input that ends inside a block or string continues on
// the next line.
//
// The command :ir prints the LLVM IR of every entry so far.
package repl // import "go.abla.dev/repl"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"

	"go.abla.dev/backend/llvm"
	"go.abla.dev/compiler"
	"go.abla.dev/eval"
	"go.abla.dev/resolve"
	"go.abla.dev/syntax"
)

var interrupted = make(chan os.Signal, 1)

// REPL executes a read, compile, print loop using c.
//
// Compile-time code of each entry runs under a context that is
// cancelled by a SIGINT (Control-C).
func REPL(c *compiler.Compiler) {
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	rl, err := readline.New(">>> ")
	if err != nil {
		PrintError(err)
		return
	}
	defer rl.Close()
	s := &session{c: c, out: os.Stdout, errOut: os.Stderr}
	for {
		if err := s.rep(rl); err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println(err)
				continue
			}
			break
		}
	}
	fmt.Println()
}

type session struct {
	c           *compiler.Compiler
	out, errOut io.Writer
	seq         int
}

// rep reads, compiles, and prints one entry.
//
// It returns an error (possibly readline.ErrInterrupt)
// only if readline failed. Compilation errors are printed.
func (s *session) rep(rl *readline.Instance) error {
	// Each entry gets its own context, which is cancelled by a SIGINT.
	//
	// Note: during Readline calls, Control-C causes Readline to return
	// ErrInterrupt but does not generate a SIGINT.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-interrupted:
			cancel()
		case <-ctx.Done():
		}
	}()

	rl.SetPrompt(">>> ")
	var text strings.Builder
	for {
		line, err := rl.Readline()
		if err != nil {
			return err
		}
		rl.SetPrompt("... ")
		text.WriteString(line)
		text.WriteByte('\n')
		if _, err := syntax.ParseSource("<stdin>", text.String()); !incomplete(err) || line == "" {
			break
		}
	}
	s.eval(ctx, text.String())
	return nil
}

// eval compiles one entry and prints the result.
func (s *session) eval(ctx context.Context, text string) {
	if strings.TrimSpace(text) == ":ir" {
		s.printIR(ctx)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	name := fmt.Sprintf("<stdin#%d>", s.seq)
	s.seq++
	if err := s.c.CompileNamedSource(ctx, name, text, false, nil); err != nil {
		printError(s.errOut, err)
		return
	}
	if u := s.c.Unit(name); u != nil {
		if err := syntax.Fprint(s.out, u.File); err != nil {
			printError(s.errOut, err)
		}
	}
}

func (s *session) printIR(ctx context.Context) {
	if err := s.c.Err(); err != nil {
		printError(s.errOut, err)
		return
	}
	m, err := llvm.Build(ctx, s.c.Units())
	if err != nil {
		printError(s.errOut, err)
		return
	}
	fmt.Fprint(s.out, m)
}

// incomplete reports whether err means the input ended too soon.
func incomplete(err error) bool {
	var serr syntax.Error
	if !errors.As(err, &serr) {
		return false
	}
	return strings.HasPrefix(serr.Msg, "got end of file") || strings.HasPrefix(serr.Msg, "unexpected EOF")
}

// PrintError prints the error to stderr,
// or its backtrace if it is a compile-time evaluation error.
func PrintError(err error) { printError(os.Stderr, err) }

func printError(out io.Writer, err error) {
	var evalErr *eval.EvalError
	var resolveErrs resolve.ErrorList
	switch {
	case errors.As(err, &evalErr):
		fmt.Fprintln(out, evalErr.Backtrace())
	case errors.As(err, &resolveErrs):
		for _, e := range resolveErrs {
			fmt.Fprintln(out, e)
		}
	default:
		fmt.Fprintln(out, err)
	}
}
