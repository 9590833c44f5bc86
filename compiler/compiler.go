// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compiler orchestrates the concurrent compilation of Abla
// translation units.
//
// Each requested unit is compiled by its own goroutine, which parses
// the source, publishes the unit, binds it against the global symbol
// table shared by all units, and executes its compile-time code.
// Compile-time code may request further units with the import
// intrinsic; those run concurrently too. Requests for the same file
// are deduplicated: a file is parsed at most once per Compiler.
//
// Output is the barrier: it stops admitting top-level requests, waits
// for every unit transitively requested so far, and passes the full
// set of units to a Backend.
package compiler // import "go.abla.dev/compiler"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"go.abla.dev/eval"
	"go.abla.dev/internal/job"
	"go.abla.dev/internal/measure"
	"go.abla.dev/internal/namedlock"
	"go.abla.dev/resolve"
	"go.abla.dev/syntax"
)

const debug = false // log admission decisions

// ErrClosed is returned by requests made after Output has begun.
var ErrClosed = errors.New("compiler: output has begun")

// A Compiler compiles translation units. Its methods are safe for
// concurrent use.
type Compiler struct {
	parser  Parser
	logger  *log.Logger
	measure *measure.Scope
	locks   *namedlock.Registry
	global  *resolve.Table
	root    *job.Job // parent of all top-level requests
	seq     int64    // counter for synthesized names

	mu      sync.Mutex // guards the fields below
	closed  bool
	units   map[string]*Unit
	pending map[string]*pendingUnit
	errs    map[string]error
}

// A pendingUnit is a unit whose compilation has been admitted but
// which has not yet been published.
type pendingUnit struct {
	name string
	job  *job.Job
}

// An Option configures a Compiler.
type Option func(*Compiler)

// WithLogger directs the compiler's progress messages to logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithMeasure records the time taken by each compilation phase in s.
func WithMeasure(s *measure.Scope) Option {
	return func(c *Compiler) { c.measure = s }
}

// WithLocks uses locks to serialize requests for the same unit.
func WithLocks(locks *namedlock.Registry) Option {
	return func(c *Compiler) { c.locks = locks }
}

// New returns a compiler that reads sources with parser, or with
// package syntax if parser is nil.
func New(parser Parser, opts ...Option) *Compiler {
	if parser == nil {
		parser = SyntaxParser{}
	}
	c := &Compiler{
		parser:  parser,
		logger:  log.Default(),
		locks:   new(namedlock.Registry),
		global:  resolve.NewTable(nil),
		root:    job.New(nil),
		units:   make(map[string]*Unit),
		pending: make(map[string]*pendingUnit),
		errs:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(c)
	}
	eval.Predeclare(c.global, eval.Builtins()...)
	eval.Predeclare(c.global, c.importIntrinsic())
	return c
}

// Global returns the symbol table shared by all translation units.
func (c *Compiler) Global() *resolve.Table { return c.global }

// CompileFile requests compilation of the file at path.
//
// If parallel is false, CompileFile returns once the unit has been
// compiled; otherwise it returns once the unit has been admitted.
// A request for a file that is already compiled, or being compiled,
// does not parse it again. A request that waits for another request's
// compilation of the same file returns that compilation's error.
//
// cctx is nil for top-level requests. Requests made on behalf of
// compile-time code pass the requesting engine's context: the new
// work becomes a child of cctx.Parent, and cctx.Admitted is completed
// once the request has been admitted.
func (c *Compiler) CompileFile(ctx context.Context, path string, parallel bool, cctx *eval.CompilationContext) error {
	return c.compile(ctx, path, true, parallel, cctx, func() (*syntax.File, error) {
		return c.parser.ParseFile(path)
	})
}

// CompileSource requests compilation of text as a unit named
// "<source#N>". The parallel and cctx parameters are as for CompileFile.
func (c *Compiler) CompileSource(ctx context.Context, text string, parallel bool, cctx *eval.CompilationContext) error {
	name := fmt.Sprintf("<source#%d>", c.next())
	return c.compile(ctx, name, false, parallel, cctx, func() (*syntax.File, error) {
		return c.parser.ParseSource(name, text)
	})
}

// CompileStream requests compilation of the contents of r as a unit
// named "<stream#N>". The stream is read by the compiling goroutine.
// The parallel and cctx parameters are as for CompileFile.
func (c *Compiler) CompileStream(ctx context.Context, r io.Reader, parallel bool, cctx *eval.CompilationContext) error {
	name := fmt.Sprintf("<stream#%d>", c.next())
	return c.compile(ctx, name, false, parallel, cctx, func() (*syntax.File, error) {
		return c.parser.ParseStream(name, r)
	})
}

// CompileNamedSource requests compilation of text as a unit called
// name. Like file requests, a request for a name already compiled or
// being compiled does nothing further.
func (c *Compiler) CompileNamedSource(ctx context.Context, name, text string, parallel bool, cctx *eval.CompilationContext) error {
	return c.compile(ctx, name, true, parallel, cctx, func() (*syntax.File, error) {
		return c.parser.ParseSource(name, text)
	})
}

func (c *Compiler) next() int64 { return atomic.AddInt64(&c.seq, 1) - 1 }

func (c *Compiler) logf(format string, args ...interface{}) {
	if debug {
		c.logger.Printf(format, args...)
	}
}

// compile admits the unit name. Only file names are deduplicated;
// synthesized names are unique.
func (c *Compiler) compile(ctx context.Context, name string, dedup, parallel bool, cctx *eval.CompilationContext, parse func() (*syntax.File, error)) error {
	parent := c.root
	if cctx != nil {
		parent = cctx.Parent
	} else {
		// A top-level request holds the root open until it is admitted.
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		req := job.New(c.root)
		c.mu.Unlock()
		defer req.Complete()
		parent = req
	}

	var started, awaited *job.Job
	err := c.locks.WithLock(name, func(lock *namedlock.Lock) error {
		if dedup {
			c.mu.Lock()
			_, compiled := c.units[name]
			p := c.pending[name]
			c.mu.Unlock()

			if compiled {
				c.logf("%s: already compiled", name)
				admit(cctx)
				return nil
			}
			if p != nil {
				c.logf("%s: joining pending compilation %s", name, p.job.ID())
				awaited = p.job
				return nil
			}
		}

		started = job.New(parent)
		c.mu.Lock()
		c.pending[name] = &pendingUnit{name: name, job: started}
		c.mu.Unlock()
		lock.Unlock()

		c.logf("%s: admitted as job %s", name, started.ID())
		go c.run(ctx, name, started, cctx, parse)
		return nil
	})
	if err != nil {
		return err
	}

	if awaited != nil {
		// The named lock has been released: the pending unit's job may
		// itself need to take it to publish.
		err := awaited.Join(ctx)
		admit(cctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logf("%s: joined compilation %s failed: %v", name, awaited.ID(), err)
		}
		return err
	}
	if started != nil && !parallel {
		return started.Join(ctx)
	}
	return nil
}

func admit(cctx *eval.CompilationContext) {
	if cctx != nil && cctx.Admitted != nil {
		cctx.Admitted.Complete()
	}
}

// run compiles the unit name on the current goroutine, under j.
func (c *Compiler) run(ctx context.Context, name string, j *job.Job, cctx *eval.CompilationContext, parse func() (*syntax.File, error)) {
	var admitted *job.Job
	if cctx != nil {
		admitted = cctx.Admitted
	}
	err := c.measure.Measure("compile "+name, func(m *measure.Scope) error {
		var f *syntax.File
		err := m.Measure("parse", func(*measure.Scope) error {
			var err error
			f, err = parse()
			return err
		})
		if err != nil {
			c.locks.WithLock(name, func(*namedlock.Lock) error {
				c.mu.Lock()
				delete(c.pending, name)
				c.mu.Unlock()
				return nil
			})
			return err
		}
		c.publish(name, f)

		if err := m.Measure("bind", func(*measure.Scope) error {
			return resolve.File(f, c.global)
		}); err != nil {
			return err
		}

		return m.Measure("execute", func(*measure.Scope) error {
			e := eval.NewEngine(&eval.CompilationContext{Parent: j, Admitted: admitted})
			if debug {
				e.Logger = c.logger
			}
			return e.ExecFile(ctx, f)
		})
	})

	// A unit that fails before its engine starts still counts as
	// admitted, so that its importer does not wait for it forever.
	if admitted != nil {
		admitted.Complete()
	}
	if err != nil {
		c.mu.Lock()
		c.errs[name] = err
		c.mu.Unlock()
		j.Fail(err)
		return
	}
	j.Complete()
}

// publish replaces the pending entry for name with its unit.
func (c *Compiler) publish(name string, f *syntax.File) {
	c.locks.WithLock(name, func(*namedlock.Lock) error {
		c.mu.Lock()
		c.units[name] = &Unit{Name: name, File: f}
		delete(c.pending, name)
		c.mu.Unlock()
		return nil
	})
}

// Output waits for every requested unit, including those requested
// by compile-time code, and then passes all units, sorted by name,
// to backend. If any unit failed, Output returns the failures joined
// and does not call backend. No further top-level requests are
// admitted once Output has begun.
func (c *Compiler) Output(ctx context.Context, backend Backend) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	c.root.Complete()
	if err := c.root.Join(ctx); err != nil && ctx.Err() != nil {
		return err
	}

	units := c.Units()
	c.logger.Printf("Compiled Units: %d", len(units))
	if err := c.Err(); err != nil {
		return err
	}
	return backend.Generate(ctx, units)
}

// Err returns the errors of all failed units, joined in name order,
// or nil.
func (c *Compiler) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.errs))
	for name := range c.errs {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, len(names))
	for i, name := range names {
		errs[i] = c.errs[name]
	}
	return errors.Join(errs...)
}

// Units returns the published units, sorted by name.
func (c *Compiler) Units() []*Unit {
	c.mu.Lock()
	units := make([]*Unit, 0, len(c.units))
	for _, u := range c.units {
		units = append(units, u)
	}
	c.mu.Unlock()
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	return units
}

// Unit returns the published unit called name, or nil.
func (c *Compiler) Unit(name string) *Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.units[name]
}

// Compiled reports whether the unit called name has been published.
func (c *Compiler) Compiled(name string) bool { return c.Unit(name) != nil }

// Pending reports whether the unit called name has been admitted but
// not yet published.
func (c *Compiler) Pending(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[name] != nil
}

// importIntrinsic returns the import(fileName) intrinsic, which
// requests compilation of a file named relative to the directory of
// the executing unit.
func (c *Compiler) importIntrinsic() *eval.Intrinsic {
	return &eval.Intrinsic{
		Name:   "import",
		Params: []string{"fileName"},
		Fn: func(e *eval.Engine, args []eval.Value) (eval.Value, error) {
			name, err := eval.String(args[0])
			if err != nil {
				return nil, err
			}
			path := name
			if !filepath.IsAbs(path) {
				path = filepath.Join(e.WorkingDirectory(), path)
			}
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			cctx := &eval.CompilationContext{Parent: e.Job(), Admitted: job.New(e.Job())}
			if err := c.CompileFile(e.Context(), path, true, cctx); err != nil {
				return nil, fmt.Errorf("import %s: %w", name, err)
			}
			return eval.MakeInt(1), nil
		},
	}
}
