// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package llvm lowers compiled Abla translation units to LLVM IR.
//
// Generation runs in two passes over all units: the first declares
// every top-level function and global property, so that units may
// refer to each other in any order; the second generates function
// bodies. Compile-time code has already been folded by the time a
// unit reaches the backend, so CompilerExec nodes are lowered as the
// expressions they hold.
//
// Integers are 64-bit. Strings are pointers to NUL-terminated
// constant byte arrays. If some unit declares a function main, the
// module gets a C entry point that calls it.
package llvm // import "go.abla.dev/backend/llvm"

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"go.abla.dev/compiler"
	"go.abla.dev/syntax"
)

const debug = false // log each generated function

// entryName is the IR name given to a user function called main,
// whose name is taken by the C entry point.
const entryName = "_main"

var stringType = types.NewPointer(types.I8)

// A Generator is a compiler.Backend that writes the textual IR of all
// units, as one module, to Out.
type Generator struct {
	Out    io.Writer
	Name   string      // module source file name; may be empty
	Logger *log.Logger // used only when debugging; may be nil
}

// New returns a generator writing to out.
func New(out io.Writer) *Generator { return &Generator{Out: out} }

var _ compiler.Backend = (*Generator)(nil)

// Generate implements compiler.Backend.
func (g *Generator) Generate(ctx context.Context, units []*compiler.Unit) error {
	m, err := build(ctx, units, g.Logger)
	if err != nil {
		return err
	}
	m.SourceFilename = g.Name
	_, err = io.WriteString(g.Out, m.String())
	return err
}

// Build lowers units, in order, into a single module.
func Build(ctx context.Context, units []*compiler.Unit) (*ir.Module, error) {
	return build(ctx, units, nil)
}

func build(ctx context.Context, units []*compiler.Unit, logger *log.Logger) (*ir.Module, error) {
	b := &builder{
		m:       ir.NewModule(),
		globals: make(map[string]*binding),
		strs:    make(map[string]constant.Constant),
		logger:  logger,
	}
	for _, u := range units {
		if err := b.declare(u); err != nil {
			return nil, fmt.Errorf("%s: %w", u.Name, err)
		}
	}
	funcs := b.funcs
	b.funcs = nil
	for _, f := range funcs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.body(f); err != nil {
			return nil, err
		}
	}
	b.entryPoint()
	return b.m, nil
}

// A binding associates a name with its IR value.
type binding struct {
	v    value.Value
	typ  types.Type // type of the bound value, after any load
	addr bool       // v is the address of the value
	fn   *function
}

// A function is a declared function together with its syntax.
type function struct {
	decl  *syntax.FunDecl
	ir    *ir.Func
	scope *env // declaring scope of a nested function
}

type env struct {
	parent *env
	vars   map[string]*binding
}

// functions returns a flattened copy of the function bindings of e.
// Local values belong to another IR function and are not visible.
func (e *env) functions() *env {
	if e == nil {
		return nil
	}
	fns := &env{vars: make(map[string]*binding)}
	for ; e != nil; e = e.parent {
		for name, b := range e.vars {
			if _, shadowed := fns.vars[name]; b.fn != nil && !shadowed {
				fns.vars[name] = b
			}
		}
	}
	return fns
}

func (e *env) lookup(name string) *binding {
	for ; e != nil; e = e.parent {
		if b, ok := e.vars[name]; ok {
			return b
		}
	}
	return nil
}

type builder struct {
	m       *ir.Module
	globals map[string]*binding
	strs    map[string]constant.Constant
	funcs   []*function // functions with bodies, in declaration order
	logger  *log.Logger

	// per-function state
	fn    *ir.Func
	block *ir.Block
	env   *env
	seq   int // block name counter
}

func errorf(pos syntax.Position, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...))
}

// declare creates the IR functions and globals for the top-level
// declarations of u.
func (b *builder) declare(u *compiler.Unit) error {
	for _, stmt := range u.File.Stmts {
		switch stmt := stmt.(type) {
		case *syntax.FunDecl:
			if stmt.HasModifier(syntax.Compiler) {
				continue
			}
			name := stmt.Name.Name
			if name == "main" {
				name = entryName
			}
			f, err := b.declareFunc(name, stmt)
			if err != nil {
				return err
			}
			b.globals[stmt.Name.Name] = &binding{v: f.ir, typ: f.ir.Sig.RetType, fn: f}

		case *syntax.PropertyDecl:
			init, err := b.constant(stmt.Value)
			if err != nil {
				return err
			}
			if init == nil {
				if stmt.Type == nil {
					return errorf(stmt.Name.NamePos, "global %s needs a type or a value", stmt.Name.Name)
				}
				t, err := typeOf(stmt.Type)
				if err != nil {
					return err
				}
				init = zero(t)
			}
			if stmt.Type != nil {
				t, err := typeOf(stmt.Type)
				if err != nil {
					return err
				}
				if !t.Equal(init.Type()) {
					return errorf(stmt.Name.NamePos, "cannot use %s value for %s of type %s", init.Type(), stmt.Name.Name, stmt.Type.Name)
				}
			}
			g := b.m.NewGlobalDef(stmt.Name.Name, init)
			g.Immutable = stmt.Final
			b.globals[stmt.Name.Name] = &binding{v: g, typ: init.Type(), addr: true}
		}
	}
	return nil
}

func (b *builder) declareFunc(name string, decl *syntax.FunDecl) (*function, error) {
	ret, err := typeOf(decl.Result)
	if err != nil {
		return nil, err
	}
	params := make([]*ir.Param, len(decl.Params))
	for i, p := range decl.Params {
		t, err := typeOf(p.Type)
		if err != nil {
			return nil, err
		}
		params[i] = ir.NewParam(p.Name.Name, t)
	}
	f := &function{decl: decl, ir: b.m.NewFunc(name, ret, params...)}
	if decl.Body != nil {
		b.funcs = append(b.funcs, f)
	}
	return f, nil
}

// constant returns the IR constant for the value of a global property.
func (b *builder) constant(x syntax.Expr) (constant.Constant, error) {
	switch x := x.(type) {
	case nil:
		return nil, nil
	case *syntax.CompilerExec:
		return b.constant(x.X)
	case *syntax.IntLit:
		return constant.NewInt(types.I64, x.Value), nil
	case *syntax.StringLit:
		s, ok := x.Const()
		if !ok {
			return nil, errorf(x.Quote, "global string must be constant")
		}
		return b.str(s), nil
	}
	return nil, errorf(syntax.Start(x), "global value is not a constant")
}

// str returns a pointer to the first byte of a private NUL-terminated
// copy of s.
func (b *builder) str(s string) constant.Constant {
	if c, ok := b.strs[s]; ok {
		return c
	}
	arr := constant.NewCharArrayFromString(s + "\x00")
	g := b.m.NewGlobalDef(fmt.Sprintf(".str.%d", len(b.strs)), arr)
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	zero := constant.NewInt(types.I32, 0)
	c := constant.NewGetElementPtr(arr.Typ, g, zero, zero)
	b.strs[s] = c
	return c
}

func (b *builder) body(f *function) error {
	fn, block, outer, seq, pending := b.fn, b.block, b.env, b.seq, b.funcs
	defer func() {
		b.fn, b.block, b.env, b.seq, b.funcs = fn, block, outer, seq, pending
	}()

	b.fn, b.seq, b.funcs = f.ir, 0, nil
	b.block = f.ir.NewBlock("entry")
	b.env = &env{parent: f.scope.functions(), vars: make(map[string]*binding)}
	for i, p := range f.decl.Params {
		param := f.ir.Params[i]
		b.env.vars[p.Name.Name] = &binding{v: param, typ: param.Typ}
	}

	v, err := b.stmts(f.decl.Body.Stmts)
	if err != nil {
		return err
	}
	ret := f.ir.Sig.RetType
	if ret.Equal(types.Void) {
		b.block.NewRet(nil)
	} else {
		if v == nil {
			return errorf(f.decl.Body.Rbrace, "function %s must return a %s value", f.decl.Name.Name, f.decl.Result.Name)
		}
		if !v.Type().Equal(ret) {
			return errorf(f.decl.Body.Rbrace, "function %s returns %s, want %s", f.decl.Name.Name, v.Type(), ret)
		}
		b.block.NewRet(v)
	}
	if debug && b.logger != nil {
		b.logger.Printf("generated %s", f.ir.Name())
	}

	// Nested functions are generated after their parent.
	for _, g := range b.funcs {
		if err := b.body(g); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) newBlock(kind string) *ir.Block {
	b.seq++
	return b.fn.NewBlock(fmt.Sprintf("%s.%d", kind, b.seq))
}

// stmts generates a statement list and returns the value of its last
// expression statement, or nil.
func (b *builder) stmts(stmts []syntax.Stmt) (value.Value, error) {
	var last value.Value
	for _, stmt := range stmts {
		v, err := b.stmt(stmt)
		if err != nil {
			return nil, err
		}
		if v != nil {
			last = v
		}
	}
	return last, nil
}

func (b *builder) scoped(blk *syntax.Block) (value.Value, error) {
	outer := b.env
	b.env = &env{parent: outer, vars: make(map[string]*binding)}
	defer func() { b.env = outer }()
	return b.stmts(blk.Stmts)
}

func (b *builder) stmt(stmt syntax.Stmt) (value.Value, error) {
	switch stmt := stmt.(type) {
	case *syntax.ExprStmt:
		return b.expr(stmt.X)

	case *syntax.PropertyDecl:
		var v value.Value
		var t types.Type
		if stmt.Type != nil {
			var err error
			if t, err = typeOf(stmt.Type); err != nil {
				return nil, err
			}
		}
		if stmt.Value != nil {
			var err error
			if v, err = b.value(stmt.Value); err != nil {
				return nil, err
			}
			if t != nil && !t.Equal(v.Type()) {
				return nil, errorf(stmt.Name.NamePos, "cannot use %s value for %s of type %s", v.Type(), stmt.Name.Name, stmt.Type.Name)
			}
			t = v.Type()
		} else if t == nil {
			return nil, errorf(stmt.Name.NamePos, "%s needs a type or a value", stmt.Name.Name)
		} else {
			v = zero(t)
		}
		if stmt.Final {
			b.env.vars[stmt.Name.Name] = &binding{v: v, typ: t}
			return nil, nil
		}
		slot := b.block.NewAlloca(t)
		slot.SetName(stmt.Name.Name)
		b.block.NewStore(v, slot)
		b.env.vars[stmt.Name.Name] = &binding{v: slot, typ: t, addr: true}

	case *syntax.AssignStmt:
		id := stmt.LHS.(*syntax.Ident) // guaranteed by resolver
		bind, err := b.lookup(id)
		if err != nil {
			return nil, err
		}
		if !bind.addr {
			return nil, errorf(id.NamePos, "cannot assign to %s", id.Name)
		}
		if g, ok := bind.v.(*ir.Global); ok && g.Immutable {
			return nil, errorf(id.NamePos, "cannot assign to %s", id.Name)
		}
		v, err := b.value(stmt.RHS)
		if err != nil {
			return nil, err
		}
		if !v.Type().Equal(bind.typ) {
			return nil, errorf(stmt.OpPos, "cannot assign %s value to %s of type %s", v.Type(), id.Name, bind.typ)
		}
		b.block.NewStore(v, bind.v)

	case *syntax.WhileStmt:
		cond, body, done := b.newBlock("while.cond"), b.newBlock("while.body"), b.newBlock("while.done")
		b.block.NewBr(cond)
		b.block = cond
		c, err := b.cond(stmt.Cond)
		if err != nil {
			return nil, err
		}
		b.block.NewCondBr(c, body, done)
		b.block = body
		if _, err := b.scoped(stmt.Body); err != nil {
			return nil, err
		}
		b.block.NewBr(cond)
		b.block = done

	case *syntax.FunDecl:
		if stmt.HasModifier(syntax.Compiler) {
			return nil, nil
		}
		f, err := b.declareFunc(b.fn.Name()+"."+stmt.Name.Name, stmt)
		if err != nil {
			return nil, err
		}
		f.scope = b.env
		b.env.vars[stmt.Name.Name] = &binding{v: f.ir, typ: f.ir.Sig.RetType, fn: f}

	default:
		panic(fmt.Sprintf("unexpected stmt %T", stmt))
	}
	return nil, nil
}

// value generates x, which must produce a value.
func (b *builder) value(x syntax.Expr) (value.Value, error) {
	v, err := b.expr(x)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errorf(syntax.Start(x), "expression has no value")
	}
	return v, nil
}

// cond generates an integer condition as an i1.
func (b *builder) cond(x syntax.Expr) (value.Value, error) {
	v, err := b.value(x)
	if err != nil {
		return nil, err
	}
	if !v.Type().Equal(types.I64) {
		return nil, errorf(syntax.Start(x), "condition must be an int, not %s", v.Type())
	}
	return b.block.NewICmp(enum.IPredNE, v, constant.NewInt(types.I64, 0)), nil
}

func (b *builder) lookup(id *syntax.Ident) (*binding, error) {
	if bind := b.env.lookup(id.Name); bind != nil {
		return bind, nil
	}
	if bind, ok := b.globals[id.Name]; ok {
		return bind, nil
	}
	return nil, errorf(id.NamePos, "%s is not available at run time", id.Name)
}

// expr generates x and returns its value, or nil if it has none.
func (b *builder) expr(x syntax.Expr) (value.Value, error) {
	switch x := x.(type) {
	case *syntax.IntLit:
		return constant.NewInt(types.I64, x.Value), nil

	case *syntax.StringLit:
		s, ok := x.Const()
		if !ok {
			return nil, errorf(x.Quote, "string interpolation is only supported at compile time")
		}
		return b.str(s), nil

	case *syntax.Ident:
		bind, err := b.lookup(x)
		if err != nil {
			return nil, err
		}
		if bind.fn != nil {
			return nil, errorf(x.NamePos, "function %s used as a value", x.Name)
		}
		if bind.addr {
			return b.block.NewLoad(bind.typ, bind.v), nil
		}
		return bind.v, nil

	case *syntax.CompilerExec:
		return b.expr(x.X)

	case *syntax.CallExpr:
		return b.call(x)

	case *syntax.BinaryExpr:
		return b.binary(x)

	case *syntax.IfExpr:
		return b.ifExpr(x)

	case *syntax.FunLit:
		return nil, errorf(x.Body.Lbrace, "function literals are only supported at compile time")
	}
	panic(fmt.Sprintf("unexpected expr %T", x))
}

func (b *builder) call(call *syntax.CallExpr) (value.Value, error) {
	id, ok := call.Fn.(*syntax.Ident)
	if !ok {
		return nil, errorf(syntax.Start(call.Fn), "cannot call %s at run time", syntax.TreeString(call.Fn))
	}
	bind, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	if bind.fn == nil {
		return nil, errorf(id.NamePos, "%s is not a function", id.Name)
	}
	f := bind.fn.ir
	if len(call.Args) != len(f.Params) {
		return nil, errorf(call.Lparen, "%s takes %d arguments, got %d", id.Name, len(f.Params), len(call.Args))
	}
	args := make([]value.Value, len(call.Args))
	for i, arg := range call.Args {
		v, err := b.value(arg)
		if err != nil {
			return nil, err
		}
		if want := f.Params[i].Typ; !v.Type().Equal(want) {
			return nil, errorf(syntax.Start(arg), "argument %d of %s is %s, want %s", i+1, id.Name, v.Type(), want)
		}
		args[i] = v
	}
	v := b.block.NewCall(f, args...)
	if f.Sig.RetType.Equal(types.Void) {
		return nil, nil
	}
	return v, nil
}

var predicates = map[syntax.Token]enum.IPred{
	syntax.EQL: enum.IPredEQ,
	syntax.NEQ: enum.IPredNE,
	syntax.LT:  enum.IPredSLT,
	syntax.GT:  enum.IPredSGT,
	syntax.LE:  enum.IPredSLE,
	syntax.GE:  enum.IPredSGE,
}

func (b *builder) binary(x *syntax.BinaryExpr) (value.Value, error) {
	l, err := b.value(x.X)
	if err != nil {
		return nil, err
	}
	r, err := b.value(x.Y)
	if err != nil {
		return nil, err
	}
	if !l.Type().Equal(types.I64) || !r.Type().Equal(types.I64) {
		return nil, errorf(x.OpPos, "unsupported operation at run time: %s %s %s", l.Type(), x.Op, r.Type())
	}
	switch x.Op {
	case syntax.PLUS:
		return b.block.NewAdd(l, r), nil
	case syntax.MINUS:
		return b.block.NewSub(l, r), nil
	case syntax.STAR:
		return b.block.NewMul(l, r), nil
	case syntax.SLASH:
		return b.block.NewSDiv(l, r), nil
	}
	pred, ok := predicates[x.Op]
	if !ok {
		panic(fmt.Sprintf("unexpected operator %s", x.Op))
	}
	return b.block.NewZExt(b.block.NewICmp(pred, l, r), types.I64), nil
}

// ifExpr generates a conditional. It has a value only if both
// branches do, and their types agree.
func (b *builder) ifExpr(x *syntax.IfExpr) (value.Value, error) {
	c, err := b.cond(x.Cond)
	if err != nil {
		return nil, err
	}
	then, done := b.newBlock("if.then"), b.newBlock("if.done")
	els := done
	if x.False != nil {
		els = b.newBlock("if.else")
	}
	b.block.NewCondBr(c, then, els)

	b.block = then
	tv, err := b.scoped(x.True)
	if err != nil {
		return nil, err
	}
	thenEnd := b.block
	b.block.NewBr(done)

	if x.False == nil {
		b.block = done
		return nil, nil
	}
	b.block = els
	fv, err := b.scoped(x.False)
	if err != nil {
		return nil, err
	}
	elseEnd := b.block
	b.block.NewBr(done)

	b.block = done
	if tv == nil || fv == nil || !tv.Type().Equal(fv.Type()) {
		return nil, nil
	}
	return b.block.NewPhi(ir.NewIncoming(tv, thenEnd), ir.NewIncoming(fv, elseEnd)), nil
}

// entryPoint adds the C main function if a user function main exists.
func (b *builder) entryPoint() {
	bind, ok := b.globals["main"]
	if !ok || bind.fn == nil || len(bind.fn.ir.Params) > 0 {
		return
	}
	f := b.m.NewFunc("main", types.I32)
	entry := f.NewBlock("entry")
	result := entry.NewCall(bind.fn.ir)
	if bind.fn.ir.Sig.RetType.Equal(types.I64) {
		entry.NewRet(entry.NewTrunc(result, types.I32))
		return
	}
	entry.NewRet(constant.NewInt(types.I32, 0))
}

// typeOf returns the IR type denoted by t.
func typeOf(t *syntax.TypeExpr) (types.Type, error) {
	if t.IsVoid() {
		return types.Void, nil
	}
	if t.Result != nil {
		return nil, errorf(t.NamePos, "function types are only supported at compile time")
	}
	switch t.Name {
	case "int":
		return types.I64, nil
	case "string":
		return stringType, nil
	}
	return nil, errorf(t.NamePos, "unknown type %s", t.Name)
}

func zero(t types.Type) constant.Constant {
	if t.Equal(stringType) {
		return constant.NewNull(stringType)
	}
	return constant.NewInt(types.I64, 0)
}
