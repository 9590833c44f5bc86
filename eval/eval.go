// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eval executes the compile-time parts of an Abla program.
//
// An Engine walks a bound file. Ordinary code is only traversed; an
// expression marked with '#' is executed, together with everything
// it calls, and its result is folded back into the tree in place of
// the marked expression. The nesting depth of such executions is the
// engine's execution layer: at layer 0 the engine walks, above it the
// engine evaluates.
package eval // import "go.abla.dev/eval"

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.abla.dev/internal/job"
	"go.abla.dev/resolve"
	"go.abla.dev/syntax"
)

const debug = false // print folding traces

// A CompilationContext is the token passed from an engine to the
// orchestrator when compile-time code requests more compilation.
// Work started on behalf of the context becomes a child of Parent;
// Admitted is completed once that work has been admitted and its
// engine has started.
type CompilationContext struct {
	Parent   *job.Job
	Admitted *job.Job
}

// An Engine executes the compile-time code of one file.
// An Engine must not be used concurrently.
type Engine struct {
	// Logger, if non-nil, receives a line for each folded expression
	// and each rejoin.
	Logger *log.Logger

	cctx     *CompilationContext
	job      *job.Job
	ctx      context.Context
	file     *syntax.File
	global   *resolve.Table
	dir      string
	layer    int // execution layer; 0 while walking
	scope    *Scope
	frame    *Frame
	compiled map[syntax.NodeID]bool // CompilerExec nodes of file already folded
}

// NewEngine returns an engine whose work is a child of cctx.Parent,
// and marks cctx as admitted.
func NewEngine(cctx *CompilationContext) *Engine {
	e := &Engine{cctx: cctx, job: job.New(cctx.Parent)}
	if cctx.Admitted != nil {
		cctx.Admitted.Complete()
	}
	return e
}

// Job returns the engine's current job. Compilation requested by the
// engine's compile-time code runs under it.
func (e *Engine) Job() *job.Job { return e.job }

// File returns the file being executed.
func (e *Engine) File() *syntax.File { return e.file }

// Context returns the context of the current ExecFile call.
func (e *Engine) Context() context.Context { return e.ctx }

// WorkingDirectory returns the directory against which relative
// import paths are resolved: the file's directory, or the process's
// working directory for synthesized names such as "<source#1>".
func (e *Engine) WorkingDirectory() string { return e.dir }

// ExecFile executes the compile-time code of f, which must have been
// bound by resolve.File. Folded results are written back into f.
//
// When ExecFile returns, the engine's job is completed, or failed
// with the returned error.
//
// If execution fails, ExecFile returns an *EvalError containing a
// backtrace.
func (e *Engine) ExecFile(ctx context.Context, f *syntax.File) (err error) {
	defer func() {
		if err != nil {
			e.job.Fail(err)
		} else {
			e.job.Complete()
		}
	}()

	global, ok := f.Scope.(*resolve.Table)
	if !ok {
		return fmt.Errorf("%s: file has not been bound", f.Path)
	}
	e.ctx = ctx
	e.file = f
	e.global = global
	e.dir = workingDirectory(f.Path)
	e.scope = NewScope(nil, global)
	e.frame = &Frame{name: "<toplevel>"}
	e.compiled = make(map[syntax.NodeID]bool)

	_, err = e.execStmts(&f.Stmts, global)
	return err
}

func workingDirectory(path string) string {
	if strings.Contains(path, "<") {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	return filepath.Dir(path)
}

func (e *Engine) logf(format string, args ...interface{}) {
	if debug {
		fmt.Printf(format+"\n", args...)
	}
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

func (e *Engine) errorf(pos syntax.Position, format string, args ...interface{}) *EvalError {
	e.frame.posn = pos
	return &EvalError{Msg: fmt.Sprintf(format, args...), Frame: e.frame}
}

// wrap converts err into an *EvalError at pos, unless it already is one.
func (e *Engine) wrap(pos syntax.Position, err error) error {
	if _, ok := err.(*EvalError); ok {
		return err
	}
	if _, ok := err.(*replaceWithCode); ok {
		return err
	}
	e.frame.posn = pos
	return &EvalError{Msg: err.Error(), Frame: e.frame, cause: err}
}

// replaceWithCode is the error by which a compile-time execution that
// produced a block asks the enclosing statement list to replace the
// current statement with the block's statements.
type replaceWithCode struct{ block *syntax.Block }

func (*replaceWithCode) Error() string { return "replace with code" }

// requirePendingImports completes the engine's job and waits for it,
// and thus for every compilation started under it, to finish. A new
// job then replaces it. Errors of the awaited compilations belong to
// their own units; only cancellation is reported.
func (e *Engine) requirePendingImports() error {
	e.logf("%s: job %s waiting for pending imports", e.file.Path, e.job.ID())
	next := job.New(e.cctx.Parent)
	e.job.Complete()
	err := e.job.Join(e.ctx)
	e.job = next
	if err != nil && e.ctx.Err() != nil {
		return err
	}
	return nil
}

// foreign reports whether n belongs to a file other than the engine's.
func (e *Engine) foreign(n syntax.Node) bool {
	return e.file.Node(n.ID()) != n
}

func tableOf(scope interface{}) *resolve.Table {
	t, _ := scope.(*resolve.Table)
	return t
}

// execStmts executes the statements of *list, which are bound in
// table, and returns the value of the last statement that produced one.
// A statement whose compile-time execution produced a block is
// replaced in *list by the block's statements, which run next.
func (e *Engine) execStmts(list *[]syntax.Stmt, table *resolve.Table) (Value, error) {
	var result Value
	for i := 0; i < len(*list); {
		v, err := e.execStmt((*list)[i])
		if r, ok := err.(*replaceWithCode); ok {
			stmts := syntax.CopyBlock(e.file, r.block).Stmts
			if err := resolve.Statements(table, stmts); err != nil {
				return nil, e.wrap(syntax.Start((*list)[i]), err)
			}
			spliced := make([]syntax.Stmt, 0, len(*list)-1+len(stmts))
			spliced = append(spliced, (*list)[:i]...)
			spliced = append(spliced, stmts...)
			spliced = append(spliced, (*list)[i+1:]...)
			*list = spliced
			continue
		}
		if err != nil {
			return nil, err
		}
		if v != nil {
			result = v
		}
		i++
	}
	return result, nil
}

// execBlock executes b in a new scope.
func (e *Engine) execBlock(b *syntax.Block) (Value, error) {
	table := tableOf(b.Scope)
	saved := e.scope
	e.scope = NewScope(saved, table)
	defer func() { e.scope = saved }()
	return e.execStmts(&b.Stmts, table)
}

func (e *Engine) execStmt(stmt syntax.Stmt) (Value, error) {
	switch stmt := stmt.(type) {
	case *syntax.ExprStmt:
		return e.eval(stmt.X)

	case *syntax.FunDecl:
		// A declaration is visible through its symbol; at layer 0
		// its body is walked for compile-time code.
		if e.layer > 0 || stmt.Body == nil {
			return nil, nil
		}
		saved := e.scope
		e.scope = NewScope(saved, tableOf(stmt.Scope))
		defer func() { e.scope = saved }()
		_, err := e.execBlock(stmt.Body)
		return nil, err

	case *syntax.PropertyDecl:
		if stmt.Value == nil {
			return nil, nil
		}
		v, err := e.eval(stmt.Value)
		if err != nil {
			return nil, err
		}
		if e.layer > 0 {
			if v == nil {
				return nil, e.errorf(syntax.Start(stmt.Value), "initializer of %s has no value", stmt.Name.Name)
			}
			e.scope.Set(stmt.Name.Name, v.WithFinal(stmt.Final))
		}
		return nil, nil

	case *syntax.WhileStmt:
		if e.layer == 0 {
			if _, err := e.eval(stmt.Cond); err != nil {
				return nil, err
			}
			_, err := e.execBlock(stmt.Body)
			return nil, err
		}
		for {
			if err := e.ctx.Err(); err != nil {
				return nil, e.wrap(stmt.While, err)
			}
			ok, err := e.cond(stmt.Cond)
			if err != nil || !ok {
				return nil, err
			}
			if _, err := e.execBlock(stmt.Body); err != nil {
				return nil, err
			}
		}

	case *syntax.AssignStmt:
		rhs, err := e.eval(stmt.RHS)
		if err != nil {
			return nil, err
		}
		lhs, err := e.eval(stmt.LHS)
		if err != nil || e.layer == 0 {
			return nil, err
		}
		target, ok := lhs.(*Assignable)
		if !ok {
			return nil, e.errorf(stmt.OpPos, "cannot assign to %s", describe(lhs))
		}
		if rhs == nil {
			return nil, e.errorf(syntax.Start(stmt.RHS), "right side of assignment has no value")
		}
		if err := target.Assign(rhs); err != nil {
			return nil, e.wrap(stmt.OpPos, err)
		}
		return rhs, nil
	}
	panic(fmt.Sprintf("unexpected stmt %T", stmt))
}

// eval evaluates x. At layer 0 it only walks x, folding the
// compile-time expressions within it, and returns no value.
func (e *Engine) eval(x syntax.Expr) (Value, error) {
	if c, ok := x.(*syntax.CompilerExec); ok {
		return e.compilerExec(c)
	}
	if e.layer == 0 {
		return nil, e.walk(x)
	}

	switch x := x.(type) {
	case *syntax.IntLit:
		return NewLiteral(x), nil

	case *syntax.StringLit:
		if _, ok := x.Const(); ok {
			return NewLiteral(x), nil
		}
		return e.interpolate(x)

	case *syntax.FunLit:
		return NewLiteral(x), nil

	case *syntax.Ident:
		return e.lookup(x)

	case *syntax.CallExpr:
		return e.call(x)

	case *syntax.BinaryExpr:
		return e.binary(x)

	case *syntax.IfExpr:
		ok, err := e.cond(x.Cond)
		if err != nil {
			return nil, err
		}
		if ok {
			return e.execBlock(x.True)
		}
		if x.False != nil {
			return e.execBlock(x.False)
		}
		return nil, nil
	}
	panic(fmt.Sprintf("unexpected expr %T", x))
}

// walk traverses x at layer 0.
func (e *Engine) walk(x syntax.Expr) error {
	switch x := x.(type) {
	case *syntax.IntLit, *syntax.Ident:
		// nop

	case *syntax.StringLit:
		for _, part := range x.Parts {
			if p, ok := part.(*syntax.StringExpr); ok {
				if _, err := e.eval(p.X); err != nil {
					return err
				}
			}
		}

	case *syntax.FunLit:
		table := tableOf(x.Body.Scope)
		saved := e.scope
		e.scope = NewScope(saved, table)
		_, err := e.execStmts(&x.Body.Stmts, table)
		e.scope = saved
		return err

	case *syntax.CallExpr:
		if _, err := e.eval(x.Fn); err != nil {
			return err
		}
		for _, arg := range x.Args {
			if _, err := e.eval(arg); err != nil {
				return err
			}
		}

	case *syntax.BinaryExpr:
		if _, err := e.eval(x.X); err != nil {
			return err
		}
		_, err := e.eval(x.Y)
		return err

	case *syntax.IfExpr:
		if _, err := e.eval(x.Cond); err != nil {
			return err
		}
		if _, err := e.execBlock(x.True); err != nil {
			return err
		}
		if x.False != nil {
			_, err := e.execBlock(x.False)
			return err
		}

	default:
		panic(fmt.Sprintf("unexpected expr %T", x))
	}
	return nil
}

// compilerExec executes x.X at a raised layer and, the first time
// x is seen in the engine's own file, folds the result into x.
// Compile-time expressions of other files are evaluated as is.
func (e *Engine) compilerExec(x *syntax.CompilerExec) (Value, error) {
	own := !e.foreign(x)
	if !own || e.compiled[x.ID()] {
		if e.layer == 0 && own {
			return e.eval(x.X)
		}
		e.layer++
		defer func() { e.layer-- }()
		return e.eval(x.X)
	}
	e.compiled[x.ID()] = true

	e.layer++
	v, err := e.eval(x.X)
	e.layer--
	if err != nil {
		return nil, err
	}
	if err := e.fold(x, v); err != nil {
		return nil, err
	}
	if e.layer == 0 {
		return nil, nil
	}
	return v, nil
}

// fold replaces the expression of x with the value v.
func (e *Engine) fold(x *syntax.CompilerExec, v Value) error {
	table := e.scope.Table()
	switch v := v.(type) {
	case nil:
		zero := &syntax.IntLit{TokenPos: x.Hash, Raw: "0"}
		e.file.Register(zero)
		x.X = zero

	case *Literal:
		if syntax.Node(v.Lit) != syntax.Node(x.X) {
			lit := syntax.CopyExpr(e.file, v.Lit)
			if err := resolve.Expr(table, lit); err != nil {
				return e.wrap(x.Hash, err)
			}
			x.X = lit
		}

	case *CompilerNode:
		switch node := v.Node.(type) {
		case syntax.Expr:
			expr := syntax.CopyExpr(e.file, node)
			if err := resolve.Expr(table, expr); err != nil {
				return e.wrap(x.Hash, err)
			}
			x.X = expr
		case *syntax.Block:
			e.logf("%s: %s: splicing %d statements", e.file.Path, x.Hash, len(node.Stmts))
			return &replaceWithCode{node}
		default:
			return e.errorf(x.Hash, "unsupported compile-time code %T", node)
		}

	case *ConstSymbol, *Instance, *Assignable:
		return e.errorf(x.Hash, "unsupported compile-time result: %s", describe(v))

	default:
		panic(fmt.Sprintf("unexpected value %T", v))
	}
	e.logf("%s: %s: folded to %s", e.file.Path, x.Hash, syntax.TreeString(x.X))
	return nil
}

func (e *Engine) lookup(id *syntax.Ident) (Value, error) {
	v := e.scope.Get(id.Name)
	if v == nil {
		if err := e.requirePendingImports(); err != nil {
			return nil, e.wrap(id.NamePos, err)
		}
		v = e.scope.Get(id.Name)
	}
	if v == nil {
		msg := "unknown identifier " + id.Name
		if n := nearest(id.Name, e.scope.names()); n != "" {
			msg += "; did you mean " + n + "?"
		}
		return nil, e.errorf(id.NamePos, "%s", msg)
	}

	if sym, ok := v.(*ConstSymbol); ok {
		if decl, ok := sym.Symbol.Decl.(*syntax.PropertyDecl); ok && e.foreign(decl) {
			// Another unit's engine may still be folding its value.
			if err := e.requirePendingImports(); err != nil {
				return nil, e.wrap(id.NamePos, err)
			}
		}
	}

	if id.Assign {
		if v.Final() {
			return nil, e.wrap(id.NamePos, fmt.Errorf("%w %s", ErrFinal, id.Name))
		}
		scope, name := e.scope, id.Name
		return &Assignable{Assign: func(v Value) error {
			return scope.Modify(name, v)
		}}, nil
	}
	return materialize(v), nil
}

// materialize returns the literal value of a property declared with
// a literal, or folded to one, and v itself otherwise.
func materialize(v Value) Value {
	sym, ok := v.(*ConstSymbol)
	if !ok {
		return v
	}
	decl, ok := sym.Symbol.Decl.(*syntax.PropertyDecl)
	if !ok {
		return v
	}
	x := decl.Value
	if c, ok := x.(*syntax.CompilerExec); ok {
		x = c.X
	}
	switch lit := x.(type) {
	case *syntax.IntLit, *syntax.FunLit:
		return NewLiteral(lit.(syntax.Literal)).WithFinal(decl.Final)
	case *syntax.StringLit:
		if _, ok := lit.Const(); ok {
			return NewLiteral(lit).WithFinal(decl.Final)
		}
	}
	return v
}

func (e *Engine) interpolate(x *syntax.StringLit) (Value, error) {
	var buf strings.Builder
	for _, part := range x.Parts {
		switch part := part.(type) {
		case *syntax.StringConst:
			buf.WriteString(part.Value)
		case *syntax.StringExpr:
			v, err := e.eval(part.X)
			if err != nil {
				return nil, err
			}
			s, err := e.str(syntax.Start(part.X), v)
			if err != nil {
				return nil, err
			}
			buf.WriteString(s)
		default:
			panic(fmt.Sprintf("unknown string part type %T", part))
		}
	}
	return MakeString(buf.String()), nil
}

// str returns the text of an interpolated value.
func (e *Engine) str(pos syntax.Position, v Value) (string, error) {
	if lit, ok := v.(*Literal); ok {
		switch lit := lit.Lit.(type) {
		case *syntax.IntLit:
			return strconv.FormatInt(lit.Value, 10), nil
		case *syntax.StringLit:
			if s, ok := lit.Const(); ok {
				return s, nil
			}
		}
	}
	return "", e.errorf(pos, "cannot interpolate %s", describe(v))
}

// cond evaluates a condition. Any non-zero integer is true.
func (e *Engine) cond(x syntax.Expr) (bool, error) {
	v, err := e.eval(x)
	if err != nil {
		return false, err
	}
	i, err := Int(v)
	if err != nil {
		return false, e.wrap(syntax.Start(x), fmt.Errorf("condition: %v", err))
	}
	return i != 0, nil
}

func (e *Engine) binary(x *syntax.BinaryExpr) (Value, error) {
	xv, err := e.eval(x.X)
	if err != nil {
		return nil, err
	}
	yv, err := e.eval(x.Y)
	if err != nil {
		return nil, err
	}

	if xs, err := String(xv); err == nil {
		if ys, err := String(yv); err == nil {
			switch x.Op {
			case syntax.PLUS:
				return MakeString(xs + ys), nil
			case syntax.EQL:
				return boolean(xs == ys), nil
			case syntax.NEQ:
				return boolean(xs != ys), nil
			}
		}
	}

	xi, xerr := Int(xv)
	yi, yerr := Int(yv)
	if xerr != nil || yerr != nil {
		return nil, e.errorf(x.OpPos, "unsupported operation: %s %s %s", describe(xv), x.Op, describe(yv))
	}
	switch x.Op {
	case syntax.PLUS:
		return MakeInt(xi + yi), nil
	case syntax.MINUS:
		return MakeInt(xi - yi), nil
	case syntax.STAR:
		return MakeInt(xi * yi), nil
	case syntax.SLASH:
		if yi == 0 {
			return nil, e.errorf(x.OpPos, "division by zero")
		}
		return MakeInt(xi / yi), nil
	case syntax.EQL:
		return boolean(xi == yi), nil
	case syntax.NEQ:
		return boolean(xi != yi), nil
	case syntax.LT:
		return boolean(xi < yi), nil
	case syntax.GT:
		return boolean(xi > yi), nil
	case syntax.LE:
		return boolean(xi <= yi), nil
	case syntax.GE:
		return boolean(xi >= yi), nil
	}
	panic(fmt.Sprintf("unexpected binary op %s", x.Op))
}

func boolean(b bool) *Literal {
	if b {
		return MakeInt(1)
	}
	return MakeInt(0)
}

func (e *Engine) call(x *syntax.CallExpr) (Value, error) {
	args := make([]Value, len(x.Args))
	for i, arg := range x.Args {
		v, err := e.eval(arg)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, e.errorf(syntax.Start(arg), "argument %d has no value", i+1)
		}
		args[i] = v
	}
	fn, err := e.eval(x.Fn)
	if err != nil {
		return nil, err
	}

	switch fn := fn.(type) {
	case *ConstSymbol:
		switch decl := fn.Symbol.Decl.(type) {
		case *Intrinsic:
			return e.callIntrinsic(x, decl, args)
		case *syntax.FunDecl:
			return e.callDecl(x, decl, args)
		}
	case *Literal:
		if lit, ok := fn.Lit.(*syntax.FunLit); ok {
			return e.callLit(x, lit, args)
		}
	}
	return nil, e.errorf(x.Lparen, "cannot call %s", describe(fn))
}

// enter pushes a frame for a call at pos and returns a function that pops it.
func (e *Engine) enter(name string, pos syntax.Position) func() {
	e.frame.posn = pos
	caller := e.frame
	e.frame = &Frame{parent: caller, name: name, posn: pos}
	return func() { e.frame = caller }
}

func (e *Engine) checkArity(x *syntax.CallExpr, name string, want int, args []Value) error {
	if len(args) != want {
		return e.errorf(x.Lparen, "%s takes %d arguments, got %d", name, want, len(args))
	}
	return nil
}

func (e *Engine) callIntrinsic(x *syntax.CallExpr, fn *Intrinsic, args []Value) (Value, error) {
	if err := e.checkArity(x, fn.Name, len(fn.Params), args); err != nil {
		return nil, err
	}
	defer e.enter("<intrinsic "+fn.Name+">", x.Lparen)()
	v, err := fn.Fn(e, args)
	if err != nil {
		return nil, e.wrap(x.Lparen, err)
	}
	return v, nil
}

func (e *Engine) callDecl(x *syntax.CallExpr, decl *syntax.FunDecl, args []Value) (Value, error) {
	name := decl.Name.Name
	if decl.Body == nil {
		kind := syntax.Extern
		if decl.HasModifier(syntax.Abstract) {
			kind = syntax.Abstract
		}
		return nil, e.errorf(x.Lparen, "cannot call %s function %s at compile time", kind, name)
	}
	if err := e.checkArity(x, name, len(decl.Params), args); err != nil {
		return nil, err
	}
	if e.foreign(decl) {
		// Declared by another unit, whose engine may still be running.
		if err := e.requirePendingImports(); err != nil {
			return nil, e.wrap(x.Lparen, err)
		}
	}

	defer e.enter(name, x.Lparen)()
	saved := e.scope
	e.scope = NewScope(saved, tableOf(decl.Scope))
	defer func() { e.scope = saved }()
	for i, param := range decl.Params {
		e.scope.Set(param.Name.Name, args[i].WithFinal(true))
	}
	v, err := e.execBlock(decl.Body)
	if err != nil {
		return nil, err
	}
	if decl.Result.IsVoid() {
		return nil, nil
	}
	return v, nil
}

func (e *Engine) callLit(x *syntax.CallExpr, lit *syntax.FunLit, args []Value) (Value, error) {
	if err := e.checkArity(x, "function literal", len(lit.Params), args); err != nil {
		return nil, err
	}

	defer e.enter("<function literal>", x.Lparen)()
	table := tableOf(lit.Body.Scope)
	saved := e.scope
	e.scope = NewScope(saved, table)
	defer func() { e.scope = saved }()
	for i, param := range lit.Params {
		e.scope.Set(param.Name, args[i].WithFinal(true))
	}
	return e.execStmts(&lit.Body.Stmts, table)
}
