// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"go.abla.dev/compiler"
	"go.abla.dev/internal/measure"
	"go.abla.dev/syntax"
)

// countingParser counts the files it parses, pausing in each so that
// concurrent requests overlap.
type countingParser struct {
	compiler.SyntaxParser
	delay time.Duration

	mu    sync.Mutex
	files map[string]int
}

func (p *countingParser) ParseFile(path string) (*syntax.File, error) {
	p.mu.Lock()
	if p.files == nil {
		p.files = make(map[string]int)
	}
	p.files[path]++
	p.mu.Unlock()
	time.Sleep(p.delay)
	return p.SyntaxParser.ParseFile(path)
}

func (p *countingParser) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files[path]
}

// recorder is a Backend that records the units it receives.
type recorder struct {
	calls int
	units []*compiler.Unit
}

func (r *recorder) Generate(ctx context.Context, units []*compiler.Unit) error {
	r.calls++
	r.units = units
	return nil
}

func (r *recorder) names() []string {
	var names []string
	for _, u := range r.units {
		names = append(names, u.Name)
	}
	return names
}

func quiet() compiler.Option { return compiler.WithLogger(log.New(io.Discard, "", 0)) }

// writeFiles creates the named files in a new temporary directory.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// valueOf returns the tree of the value of the global property name in u.
func valueOf(t *testing.T, u *compiler.Unit, name string) string {
	t.Helper()
	require.NotNil(t, u)
	for _, stmt := range u.File.Stmts {
		if decl, ok := stmt.(*syntax.PropertyDecl); ok && decl.Name.Name == name {
			return syntax.TreeString(decl.Value)
		}
	}
	t.Fatalf("%s: no property %s", u.Name, name)
	return ""
}

func TestCompileSource(t *testing.T) {
	ctx := testContext(t)
	var logbuf bytes.Buffer
	c := compiler.New(nil, compiler.WithLogger(log.New(&logbuf, "", 0)))

	require.NoError(t, c.CompileSource(ctx, "fun hi { 1 }", false, nil))
	var r recorder
	require.NoError(t, c.Output(ctx, &r))

	if r.calls != 1 {
		t.Fatalf("backend called %d times, want 1", r.calls)
	}
	require.Len(t, r.units, 1)
	if got, want := r.units[0].Name, "<source#0>"; got != want {
		t.Errorf("unit name = %s, want %s", got, want)
	}
	stmts := r.units[0].File.Stmts
	require.Len(t, stmts, 1)
	if got, want := syntax.TreeString(stmts[0]), `(FunDecl Name=hi Body=(Block Stmts=((ExprStmt X=1))))`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if !strings.Contains(logbuf.String(), "Compiled Units: 1") {
		t.Errorf("log does not report the unit count: %q", logbuf.String())
	}
}

func TestSynthesizedNames(t *testing.T) {
	ctx := testContext(t)
	c := compiler.New(nil, quiet())
	require.NoError(t, c.CompileSource(ctx, "val a = 1", true, nil))
	require.NoError(t, c.CompileStream(ctx, strings.NewReader("val b = 2"), true, nil))
	require.NoError(t, c.CompileSource(ctx, "val c = 3", true, nil))

	var r recorder
	require.NoError(t, c.Output(ctx, &r))
	want := []string{"<source#0>", "<source#2>", "<stream#1>"}
	if diff := cmp.Diff(want, r.names()); diff != "" {
		t.Errorf("unit names mismatch (-want +got):\n%s", diff)
	}
}

func TestDedup(t *testing.T) {
	ctx := testContext(t)
	dir := writeFiles(t, map[string]string{"a.ab": "fun fa: int = 1"})
	path := filepath.Join(dir, "a.ab")

	p := &countingParser{delay: 20 * time.Millisecond}
	c := compiler.New(p, quiet())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(parallel bool) {
			defer wg.Done()
			if err := c.CompileFile(ctx, path, parallel, nil); err != nil {
				t.Error(err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	var r recorder
	require.NoError(t, c.Output(ctx, &r))
	if n := p.count(path); n != 1 {
		t.Errorf("%s parsed %d times, want 1", path, n)
	}
	if diff := cmp.Diff([]string{path}, r.names()); diff != "" {
		t.Errorf("unit names mismatch (-want +got):\n%s", diff)
	}
}

func TestSequentialRequestWaits(t *testing.T) {
	ctx := testContext(t)
	c := compiler.New(nil, quiet())
	require.NoError(t, c.CompileSource(ctx, "val x = #(20 + 22)", false, nil))

	if !c.Compiled("<source#0>") || c.Pending("<source#0>") {
		t.Fatalf("unit not published after a sequential request")
	}
	if got, want := valueOf(t, c.Unit("<source#0>"), "x"), `(CompilerExec X=42)`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestImportChain(t *testing.T) {
	ctx := testContext(t)
	dir := writeFiles(t, map[string]string{
		"a.ab": `#import("b.ab")
fun fa: int = 1
val x = #(fb() + fc())`,
		"b.ab": `#import("c.ab")
fun fb: int = 2`,
		"c.ab": `fun fc: int = 3`,
	})
	a := filepath.Join(dir, "a.ab")

	p := &countingParser{delay: 5 * time.Millisecond}
	c := compiler.New(p, quiet())
	require.NoError(t, c.CompileFile(ctx, a, true, nil))

	var r recorder
	require.NoError(t, c.Output(ctx, &r))
	want := []string{a, filepath.Join(dir, "b.ab"), filepath.Join(dir, "c.ab")}
	if diff := cmp.Diff(want, r.names()); diff != "" {
		t.Errorf("unit names mismatch (-want +got):\n%s", diff)
	}
	if got, want := valueOf(t, c.Unit(a), "x"), `(CompilerExec X=5)`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestImportCycle(t *testing.T) {
	ctx := testContext(t)
	dir := writeFiles(t, map[string]string{
		"a.ab": `#import("b.ab")
fun fa: int = 1
val x = #fb()`,
		"b.ab": `#import("a.ab")
fun fb: int = 2
val y = #fa()`,
	})
	a, b := filepath.Join(dir, "a.ab"), filepath.Join(dir, "b.ab")

	c := compiler.New(nil, quiet())
	require.NoError(t, c.CompileFile(ctx, a, true, nil))

	var r recorder
	require.NoError(t, c.Output(ctx, &r))
	if diff := cmp.Diff([]string{a, b}, r.names()); diff != "" {
		t.Errorf("unit names mismatch (-want +got):\n%s", diff)
	}
	if got, want := valueOf(t, c.Unit(a), "x"), `(CompilerExec X=2)`; got != want {
		t.Errorf("a: got %s, want %s", got, want)
	}
	if got, want := valueOf(t, c.Unit(b), "y"), `(CompilerExec X=1)`; got != want {
		t.Errorf("b: got %s, want %s", got, want)
	}
}

func TestErrorsPreventOutput(t *testing.T) {
	ctx := testContext(t)
	dir := writeFiles(t, map[string]string{
		"a.ab": `#import("missing.ab")
val x = 1`,
	})
	c := compiler.New(nil, quiet())
	require.NoError(t, c.CompileSource(ctx, "val x = #nope()", true, nil))
	require.NoError(t, c.CompileSource(ctx, "extern fun f { 1 }", true, nil))
	require.NoError(t, c.CompileSource(ctx, "fun ok: int = 1", true, nil))
	require.NoError(t, c.CompileFile(ctx, filepath.Join(dir, "a.ab"), true, nil))

	var r recorder
	err := c.Output(ctx, &r)
	require.Error(t, err)
	if r.calls != 0 {
		t.Errorf("backend called despite errors")
	}
	for _, want := range []string{
		"unknown identifier nope",
		"extern function f cannot have a body",
		"missing.ab",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
	// The failing units do not prevent the others from compiling.
	if !c.Compiled("<source#2>") {
		t.Errorf("unit <source#2> was not compiled")
	}
	if c.Pending(filepath.Join(dir, "missing.ab")) {
		t.Errorf("failed unit is still pending")
	}
}

func TestClosed(t *testing.T) {
	ctx := testContext(t)
	c := compiler.New(nil, quiet())
	require.NoError(t, c.Output(ctx, &recorder{}))

	if err := c.CompileSource(ctx, "val x = 1", true, nil); !errors.Is(err, compiler.ErrClosed) {
		t.Errorf("request after output: got %v, want ErrClosed", err)
	}
	if err := c.Output(ctx, &recorder{}); !errors.Is(err, compiler.ErrClosed) {
		t.Errorf("second output: got %v, want ErrClosed", err)
	}
}

func TestMeasure(t *testing.T) {
	ctx := testContext(t)
	root := measure.New()
	c := compiler.New(nil, quiet(), compiler.WithMeasure(root))
	require.NoError(t, c.CompileSource(ctx, "val x = #(1 + 1)", false, nil))
	require.NoError(t, c.Output(ctx, &recorder{}))

	ms := root.Measurements()
	require.Len(t, ms, 1)
	if got, want := ms[0].Step, "compile <source#0>"; got != want {
		t.Errorf("step = %s, want %s", got, want)
	}
	var steps []string
	for _, m := range ms[0].Steps {
		steps = append(steps, m.Step)
	}
	if diff := cmp.Diff([]string{"parse", "bind", "execute"}, steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileNamedSource(t *testing.T) {
	ctx := testContext(t)
	c := compiler.New(nil, quiet())
	require.NoError(t, c.CompileNamedSource(ctx, "<stdin#0>", "val x = #(1 + 2)", false, nil))
	// A second request for the same name is deduplicated.
	require.NoError(t, c.CompileNamedSource(ctx, "<stdin#0>", "val x = 99", false, nil))

	if got, want := valueOf(t, c.Unit("<stdin#0>"), "x"), `(CompilerExec X=3)`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	var r recorder
	require.NoError(t, c.Output(ctx, &r))
	if diff := cmp.Diff([]string{"<stdin#0>"}, r.names()); diff != "" {
		t.Errorf("unit names mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinedRequestReportsFailure(t *testing.T) {
	ctx := testContext(t)
	dir := writeFiles(t, map[string]string{"bad.ab": "extern fun f { 1 }"})
	bad := filepath.Join(dir, "bad.ab")

	p := &countingParser{delay: 100 * time.Millisecond}
	c := compiler.New(p, quiet())

	errs := make(chan error, 2)
	go func() { errs <- c.CompileFile(ctx, bad, false, nil) }()
	time.Sleep(20 * time.Millisecond) // the first request is still parsing
	go func() { errs <- c.CompileFile(ctx, bad, false, nil) }()

	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil || !strings.Contains(err.Error(), "extern function f cannot have a body") {
			t.Errorf("request %d: got %v, want the unit's failure", i, err)
		}
	}
	if n := p.count(bad); n != 1 {
		t.Errorf("%s parsed %d times, want 1", bad, n)
	}
	require.Error(t, c.Output(ctx, &recorder{}))
}

func TestImportCycleFromBothEnds(t *testing.T) {
	ctx := testContext(t)
	dir := writeFiles(t, map[string]string{
		"a.ab": `#import("b.ab")
fun fa: int = 1
val x = #fb()`,
		"b.ab": `#import("a.ab")
fun fb: int = 2
val y = #fa()`,
	})
	a, b := filepath.Join(dir, "a.ab"), filepath.Join(dir, "b.ab")

	p := &countingParser{delay: 5 * time.Millisecond}
	c := compiler.New(p, quiet())
	var wg sync.WaitGroup
	for _, path := range []string{a, b} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := c.CompileFile(ctx, path, true, nil); err != nil {
				t.Error(err)
			}
		}(path)
	}
	wg.Wait()

	var r recorder
	require.NoError(t, c.Output(ctx, &r))
	if diff := cmp.Diff([]string{a, b}, r.names()); diff != "" {
		t.Errorf("unit names mismatch (-want +got):\n%s", diff)
	}
	for _, path := range []string{a, b} {
		if n := p.count(path); n != 1 {
			t.Errorf("%s parsed %d times, want 1", path, n)
		}
	}
	if got, want := valueOf(t, c.Unit(a), "x"), `(CompilerExec X=2)`; got != want {
		t.Errorf("a: got %s, want %s", got, want)
	}
	if got, want := valueOf(t, c.Unit(b), "y"), `(CompilerExec X=1)`; got != want {
		t.Errorf("b: got %s, want %s", got, want)
	}
}
