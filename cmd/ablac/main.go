// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The ablac command compiles Abla source files to LLVM IR.
//
// Every file named on the command line, and every file they import,
// is compiled, and the resulting units are emitted as one module.
// With no arguments, ablac compiles its standard input, or starts an
// interactive loop if standard input is a terminal.
//
// Settings are read from abla.toml in the current directory, if
// present; flags take precedence.
package main // import "go.abla.dev/cmd/ablac"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/samber/do"
	"golang.org/x/term"

	"go.abla.dev/backend/llvm"
	"go.abla.dev/compiler"
	"go.abla.dev/internal/config"
	"go.abla.dev/internal/measure"
	"go.abla.dev/repl"
	"go.abla.dev/syntax"
)

// flags
var (
	cpuprofile  = flag.String("cpuprofile", "", "gather Go CPU profile in this file")
	memprofile  = flag.String("memprofile", "", "gather Go memory profile in this file")
	configFile  = flag.String("config", config.FileName, "read settings from `file`")
	printConfig = flag.Bool("printconfig", false, "print the effective settings and exit")
	execprog    = flag.String("c", "", "compile program `prog`")

	output   = flag.String("o", "", "write output to `file` (- for standard output)")
	emit     = flag.String("emit", "", "output kind: ir, tree or none")
	name     = flag.String("name", "", "module name recorded in the output")
	timings  = flag.Bool("timings", false, "print compilation timings to standard error")
	report   = flag.String("report", "", "write compilation timings as JSON to `file`")
	parallel = flag.Bool("parallel", true, "compile input files concurrently")
)

func main() {
	os.Exit(doMain())
}

func doMain() int {
	log.SetPrefix("ablac: ")
	log.SetFlags(0)
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		check(err)
		err = pprof.StartCPUProfile(f)
		check(err)
		defer func() {
			pprof.StopCPUProfile()
			err := f.Close()
			check(err)
		}()
	}
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		check(err)
		defer func() {
			runtime.GC()
			err := pprof.Lookup("heap").WriteTo(f, 0)
			check(err)
			err = f.Close()
			check(err)
		}()
	}

	cfg, err := settings()
	if err != nil {
		log.Print(err)
		return 1
	}
	if *printConfig {
		check(cfg.Write(os.Stdout))
		return 0
	}

	injector := newInjector(cfg)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			log.Print(err)
		}
	}()
	c := do.MustInvoke[*compiler.Compiler](injector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *execprog != "":
		check(c.CompileSource(ctx, *execprog, cfg.Parallel, nil))
	case flag.NArg() > 0:
		for _, arg := range flag.Args() {
			path, err := filepath.Abs(arg)
			check(err)
			check(c.CompileFile(ctx, path, cfg.Parallel, nil))
		}
	case term.IsTerminal(int(os.Stdin.Fd())):
		stop()
		fmt.Println("Welcome to Abla (go.abla.dev)")
		repl.REPL(c)
		return 0
	default:
		check(c.CompileStream(ctx, os.Stdin, cfg.Parallel, nil))
	}

	backend := do.MustInvoke[compiler.Backend](injector)
	err = c.Output(ctx, backend)
	if err := writeTimings(cfg, do.MustInvoke[*measure.Scope](injector)); err != nil {
		log.Print(err)
	}
	if err != nil {
		printErrors(err)
		return 1
	}
	return 0
}

// settings returns the project settings overlaid with the flags set
// on the command line.
func settings() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.Output = *output
		case "emit":
			cfg.Emit = *emit
		case "name":
			cfg.ModuleName = *name
		case "timings":
			cfg.Timings = *timings
		case "report":
			cfg.Report = *report
		case "parallel":
			cfg.Parallel = *parallel
		}
	})
	return cfg, cfg.Validate()
}

// newInjector wires the compiler and its collaborators for cfg.
func newInjector(cfg *config.Config) *do.Injector {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.Provide(injector, func(i *do.Injector) (*measure.Scope, error) {
		return measure.New(), nil
	})
	do.Provide(injector, func(i *do.Injector) (*compiler.Compiler, error) {
		return compiler.New(nil,
			compiler.WithLogger(log.Default()),
			compiler.WithMeasure(do.MustInvoke[*measure.Scope](i)),
		), nil
	})
	do.Provide(injector, newOutput)
	do.Provide(injector, newBackend)
	return injector
}

// An outputFile is the destination of the generated code.
// It is closed when the injector shuts down.
type outputFile struct {
	io.Writer
	close func() error
}

func (o *outputFile) Shutdown() error { return o.close() }

func newOutput(i *do.Injector) (*outputFile, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Output == "-" || cfg.Output == "" {
		return &outputFile{Writer: os.Stdout, close: func() error { return nil }}, nil
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return nil, err
	}
	return &outputFile{Writer: f, close: f.Close}, nil
}

func newBackend(i *do.Injector) (compiler.Backend, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Emit == config.EmitNone {
		return compiler.BackendFunc(func(context.Context, []*compiler.Unit) error { return nil }), nil
	}
	out, err := do.Invoke[*outputFile](i)
	if err != nil {
		return nil, err
	}
	switch cfg.Emit {
	case config.EmitTree:
		return compiler.BackendFunc(func(ctx context.Context, units []*compiler.Unit) error {
			for _, u := range units {
				fmt.Fprintf(out, "# %s\n", u.Name)
				if err := syntax.Fprint(out, u.File); err != nil {
					return err
				}
			}
			return nil
		}), nil
	default:
		return &llvm.Generator{Out: out, Name: cfg.ModuleName}, nil
	}
}

func writeTimings(cfg *config.Config, m *measure.Scope) error {
	if cfg.Timings {
		if err := measure.Fprint(os.Stderr, m); err != nil {
			return err
		}
	}
	if cfg.Report != "" {
		f, err := os.Create(cfg.Report)
		if err != nil {
			return err
		}
		if err := measure.WriteJSON(f, m); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return nil
}

// printErrors prints each of the joined unit errors.
func printErrors(err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, err := range joined.Unwrap() {
			repl.PrintError(err)
		}
		return
	}
	repl.PrintError(err)
}

func check(err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Fatal("interrupted")
		}
		log.Fatal(err)
	}
}
