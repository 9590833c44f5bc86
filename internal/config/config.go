// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config reads the optional abla.toml project file.
//
// A project file looks like this:
//
//	module_name = "hello"
//	output = "hello.ll"
//	emit = "ir"
//	parallel = true
//	timings = true
//	report = "timings.json"
//
// Command-line flags take precedence over the file.
package config // import "go.abla.dev/internal/config"

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the name of the project file.
const FileName = "abla.toml"

// Emit kinds.
const (
	EmitIR   = "ir"   // LLVM IR
	EmitTree = "tree" // syntax trees after compile-time execution
	EmitNone = "none" // check only
)

// A Config holds the project settings.
type Config struct {
	ModuleName string `toml:"module_name"`
	Output     string `toml:"output"`   // "-" for standard output
	Emit       string `toml:"emit"`     // one of EmitIR, EmitTree or EmitNone
	Parallel   bool   `toml:"parallel"` // compile inputs concurrently
	Timings    bool   `toml:"timings"`  // print the timing tree to stderr
	Report     string `toml:"report"`   // write the timing tree as JSON to this file
}

// Default returns the settings used when there is no project file.
func Default() *Config {
	return &Config{
		ModuleName: "main",
		Output:     "-",
		Emit:       EmitIR,
		Parallel:   true,
	}
}

// Load reads the project file at path over the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%s:%d:%d: %s", path, row, col, derr.Error())
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports an error for unknown settings values.
func (c *Config) Validate() error {
	switch c.Emit {
	case EmitIR, EmitTree, EmitNone:
		return nil
	}
	return fmt.Errorf("unknown emit kind %q (want %q, %q or %q)", c.Emit, EmitIR, EmitTree, EmitNone)
}

// Write encodes c in the project file format.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
