// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eval_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go.abla.dev/eval"
	"go.abla.dev/resolve"
	"go.abla.dev/syntax"
)

// exec parses, binds and executes src as file "test.ab".
func exec(t *testing.T, src string) (*syntax.File, *resolve.Table, error) {
	t.Helper()
	f, err := syntax.ParseSource("test.ab", src)
	require.NoError(t, err)
	global := resolve.NewTable(nil)
	eval.Predeclare(global, eval.Builtins()...)
	require.NoError(t, resolve.File(f, global))
	e := eval.NewEngine(&eval.CompilationContext{})
	return f, global, e.ExecFile(context.Background(), f)
}

// valueOf returns the tree of the value of the global property name.
func valueOf(t *testing.T, f *syntax.File, name string) string {
	t.Helper()
	for _, stmt := range f.Stmts {
		if decl, ok := stmt.(*syntax.PropertyDecl); ok && decl.Name.Name == name {
			return syntax.TreeString(decl.Value)
		}
	}
	t.Fatalf("no property %s", name)
	return ""
}

func TestFolding(t *testing.T) {
	for _, test := range []struct {
		src, want string
	}{
		{`val x = #(1 + 2 * 3)`,
			`(CompilerExec X=7)`},
		{`val x = #(7 / 2 - 1)`,
			`(CompilerExec X=2)`},
		{`val x = #(3 < 4)`,
			`(CompilerExec X=1)`},
		{`val x = #("ab" + "cd")`,
			`(CompilerExec X="abcd")`},
		{`val x = #("a" != "a")`,
			`(CompilerExec X=0)`},
		{`fun double(n: int): int = n * 2
val x = #double(21)`,
			`(CompilerExec X=42)`},
		{`fun hi { 1 }
val x = #hi()`,
			`(CompilerExec X=0)`},
		{`val name = "abla"
val x = #"hello ${name}, ${1 + 1}!"`,
			`(CompilerExec X="hello abla, 2!")`},
		{`fun sign(n: int): int = if n < 0 { -1 } else if n == 0 { 0 } else { 1 }
val x = #sign(-5)`,
			`(CompilerExec X=-1)`},
		{`fun sign(n: int): int = if n < 0 { -1 } else if n == 0 { 0 } else { 1 }
val x = #sign(0)`,
			`(CompilerExec X=0)`},
		{`fun apply(f: (int) -> int, x: int): int = f(x)
val x = #apply({ n -> n * n }, 7)`,
			`(CompilerExec X=49)`},
		{`val x = #code({ 1 + 2 })`,
			`(CompilerExec X=(BinaryExpr X=1 Op=+ Y=2))`},
		{`val x = #{ a -> a }`,
			`(CompilerExec X=(FunLit Params=(a) Body=(Block Stmts=((ExprStmt X=a)))))`},
		{`fun sum(n: int): int {
	var total = 0
	var i = 1
	while i <= n {
		total = total + i
		i = i + 1
	}
	total
}
val x = #sum(10)`,
			`(CompilerExec X=55)`},
	} {
		f, _, err := exec(t, test.src)
		if err != nil {
			t.Errorf("%s: %v", test.src, err)
			continue
		}
		if got := valueOf(t, f, "x"); got != test.want {
			t.Errorf("%s: got %s, want %s", test.src, got, test.want)
		}
	}
}

func TestFoldInsideFunctionBody(t *testing.T) {
	f, _, err := exec(t, `fun f: int { #(2 * 21) }`)
	require.NoError(t, err)
	want := `(FunDecl Name=f Result=int Body=(Block Stmts=((ExprStmt X=(CompilerExec X=42)))))`
	if got := syntax.TreeString(f.Stmts[0]); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCodeBlockIsSpliced(t *testing.T) {
	f, global, err := exec(t, `#code({ fun a: int = 1; fun b: int = 2 })
val x = #(a() + b())`)
	require.NoError(t, err)
	require.Len(t, f.Stmts, 3)

	for i, want := range []string{
		`(FunDecl Name=a Result=int Body=(Block Stmts=((ExprStmt X=1))))`,
		`(FunDecl Name=b Result=int Body=(Block Stmts=((ExprStmt X=2))))`,
		`(PropertyDecl Final Name=x Value=(CompilerExec X=3))`,
	} {
		if got := syntax.TreeString(f.Stmts[i]); got != want {
			t.Errorf("stmt %d: got %s, want %s", i, got, want)
		}
	}
	if sym := global.Own("a"); sym == nil || sym.Kind != resolve.FunctionSymbol {
		t.Errorf("spliced function a is not bound in the global table: %v", sym)
	}
}

func TestDeclareFun(t *testing.T) {
	f, global, err := exec(t, `#declareFun("answer", { 42 })`)
	require.NoError(t, err)
	require.Len(t, f.Stmts, 2)

	if got, want := syntax.TreeString(f.Stmts[0]), `(ExprStmt X=(CompilerExec X=1))`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if got, want := syntax.TreeString(f.Stmts[1]), `(FunDecl Name=answer Body=(Block Stmts=((ExprStmt X=42))))`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	sym := global.Own("answer")
	require.NotNil(t, sym)
	if sym.Decl != syntax.Node(f.Stmts[1]) {
		t.Errorf("symbol answer is bound to %v", sym.Decl)
	}
	// The new declaration and its body belong to the file.
	decl := f.Stmts[1].(*syntax.FunDecl)
	if f.Node(decl.Body.ID()) != syntax.Node(decl.Body) {
		t.Errorf("body of answer is not registered in the file")
	}
}

func TestErrors(t *testing.T) {
	for _, test := range []struct {
		src, want string
	}{
		{`fun answer: int = 42
val x = #answr()`,
			`unknown identifier answr; did you mean answer?`},
		{`val x = #(1 / 0)`,
			`division by zero`},
		{`val x = #("a" * 2)`,
			`unsupported operation: string * int`},
		{`extern fun puts(s: string)
val x = #puts("hi")`,
			`cannot call extern function puts at compile time`},
		{`fun f(a: int): int = a
val x = #f()`,
			`f takes 1 arguments, got 0`},
		{`val x = #code`,
			`unsupported compile-time result: function code`},
		{`val x = #(if "yes" { 1 })`,
			`condition: got string, want int`},
		{`val x = #code(1)`,
			`got int, want function literal`},
		{`fun f: int { val n = 1; n = 2; n }
val x = #f()`,
			`cannot assign to final binding n`},
	} {
		_, _, err := exec(t, test.src)
		if err == nil {
			t.Errorf("%s: got no error, want %q", test.src, test.want)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: got error %q, want %q", test.src, err, test.want)
		}
		var evalErr *eval.EvalError
		if !errors.As(err, &evalErr) {
			t.Errorf("%s: got %T, want *eval.EvalError", test.src, err)
		}
	}
}

func TestAssignToFinal(t *testing.T) {
	_, _, err := exec(t, `fun f: int { val n = 1; n = 2; n }
val x = #f()`)
	if !errors.Is(err, eval.ErrFinal) {
		t.Errorf("got %v, want ErrFinal", err)
	}
}

func TestMutableGlobal(t *testing.T) {
	f, _, err := exec(t, `var counter = 1
fun bump { counter = counter + 1 }
#bump()
#bump()
val x = #counter`)
	require.NoError(t, err)
	if got, want := valueOf(t, f, "x"), `(CompilerExec X=3)`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	// The declaration itself is untouched.
	if got, want := valueOf(t, f, "counter"), `1`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestBacktrace(t *testing.T) {
	_, _, err := exec(t, `fun inner: int = 1 / 0
fun outer: int = inner()
val x = #outer()`)
	var evalErr *eval.EvalError
	require.True(t, errors.As(err, &evalErr), "got %v", err)

	var names []string
	for _, fr := range evalErr.Stack() {
		names = append(names, fr.Name())
	}
	if got, want := strings.Join(names, " "), "inner outer <toplevel>"; got != want {
		t.Errorf("stack: got %s, want %s", got, want)
	}

	bt := evalErr.Backtrace()
	if !strings.HasPrefix(bt, "Traceback (most recent call last):\n  test.ab:3:") {
		t.Errorf("unexpected backtrace prefix:\n%s", bt)
	}
	if !strings.HasSuffix(bt, "in inner\nError: division by zero") {
		t.Errorf("unexpected backtrace suffix:\n%s", bt)
	}
}

func TestEngineJobCompletes(t *testing.T) {
	f, err := syntax.ParseSource("<source#1>", `val x = #(1 + 1)`)
	require.NoError(t, err)
	global := resolve.NewTable(nil)
	require.NoError(t, resolve.File(f, global))

	admitted := &eval.CompilationContext{}
	e := eval.NewEngine(admitted)
	require.NoError(t, e.ExecFile(context.Background(), f))
	select {
	case <-e.Job().Done():
	default:
		t.Fatal("engine job is not done after ExecFile")
	}
	if e.WorkingDirectory() == "" || strings.Contains(e.WorkingDirectory(), "<") {
		t.Errorf("working directory of a synthesized name: %q", e.WorkingDirectory())
	}
}

func TestRejoinLogNamesJob(t *testing.T) {
	f, err := syntax.ParseSource("test.ab", `val x = #(missing)`)
	require.NoError(t, err)
	global := resolve.NewTable(nil)
	require.NoError(t, resolve.File(f, global))

	var logbuf bytes.Buffer
	e := eval.NewEngine(&eval.CompilationContext{})
	e.Logger = log.New(&logbuf, "", 0)
	first := e.Job().ID()
	require.Error(t, e.ExecFile(context.Background(), f))

	want := "job " + first.String() + " waiting for pending imports"
	if !strings.Contains(logbuf.String(), want) {
		t.Errorf("log lacks %q:\n%s", want, logbuf.String())
	}
}
