// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package measure records the elapsed time of nested compilation steps.
//
// A Scope collects the measurements of the steps run within it:
//
//	root := measure.New()
//	root.Measure("compile a.ab", func(s *measure.Scope) error {
//		return s.Measure("parse", parse)
//	})
//	measure.Fprint(os.Stderr, root)
//
// Measurement is purely observational: Measure returns the step's
// error unchanged. A nil *Scope runs steps without recording them.
package measure // import "go.abla.dev/internal/measure"

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var now = time.Now // for testing

// A Measurement is the elapsed time of a step, including its sub-steps.
type Measurement struct {
	Step    string
	Elapsed time.Duration
	Steps   []*Measurement
}

// A Scope collects measurements. It is safe for concurrent use.
type Scope struct {
	mu    sync.Mutex
	steps []*Measurement
}

// New returns an empty root scope.
func New() *Scope { return new(Scope) }

// Measure runs body in a new scope nested in s and records the
// elapsed time under the name step.
func (s *Scope) Measure(step string, body func(*Scope) error) error {
	if s == nil {
		return body(nil)
	}
	child := new(Scope)
	start := now()
	err := body(child)
	m := &Measurement{Step: step, Elapsed: now().Sub(start), Steps: child.Measurements()}

	s.mu.Lock()
	s.steps = append(s.steps, m)
	s.mu.Unlock()
	return err
}

// Measurements returns the measurements recorded so far, in the
// order in which their steps finished.
func (s *Scope) Measurements() []*Measurement {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Measurement(nil), s.steps...)
}

// Fprint writes the measurement tree of s to out, one step per line,
// with elapsed times rounded to milliseconds.
func Fprint(out io.Writer, s *Scope) error {
	var print func(m *Measurement, depth int) error
	print = func(m *Measurement, depth int) error {
		prefix := strings.Repeat(" ", depth)
		if depth > 0 {
			prefix += "- "
		}
		if _, err := fmt.Fprintf(out, "%s%s: %dms\n", prefix, m.Step, m.Elapsed.Round(time.Millisecond).Milliseconds()); err != nil {
			return err
		}
		for _, sub := range m.Steps {
			if err := print(sub, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, m := range s.Measurements() {
		if err := print(m, 0); err != nil {
			return err
		}
	}
	return nil
}

// Report returns the measurement tree as a protocol buffer Struct:
//
//	{"steps": [{"step": "compile a.ab", "ms": 12.5, "steps": [...]}]}
func Report(s *Scope) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{"steps": steps(s.Measurements())})
}

func steps(ms []*Measurement) []interface{} {
	list := make([]interface{}, len(ms))
	for i, m := range ms {
		list[i] = map[string]interface{}{
			"step":  m.Step,
			"ms":    float64(m.Elapsed) / float64(time.Millisecond),
			"steps": steps(m.Steps),
		}
	}
	return list
}

// WriteJSON writes the report of s to out in the protobuf JSON encoding.
func WriteJSON(out io.Writer, s *Scope) error {
	report, err := Report(s)
	if err != nil {
		return err
	}
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "\t"}.Marshal(report)
	if err != nil {
		return err
	}
	_, err = out.Write(append(data, '\n'))
	return err
}
