// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package measure

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeClock advances by one millisecond each time it is read.
func fakeClock(t *testing.T) {
	var ticks time.Duration
	epoch := time.Unix(0, 0)
	now = func() time.Time {
		ticks += time.Millisecond
		return epoch.Add(ticks)
	}
	t.Cleanup(func() { now = time.Now })
}

func TestFprint(t *testing.T) {
	fakeClock(t)
	root := New()
	err := root.Measure("compile a.ab", func(s *Scope) error {
		if err := s.Measure("parse", func(*Scope) error { return nil }); err != nil {
			return err
		}
		return s.Measure("bind", func(*Scope) error { return nil })
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, root))
	want := "compile a.ab: 5ms\n - parse: 1ms\n - bind: 1ms\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Fprint mismatch (-want +got):\n%s", diff)
	}
}

func TestMeasurePassesErrorThrough(t *testing.T) {
	errStep := errors.New("step failed")
	root := New()
	if err := root.Measure("x", func(*Scope) error { return errStep }); err != errStep {
		t.Errorf("got %v, want %v", err, errStep)
	}
	if n := len(root.Measurements()); n != 1 {
		t.Errorf("got %d measurements, want 1", n)
	}
}

func TestNilScope(t *testing.T) {
	var s *Scope
	ran := false
	err := s.Measure("x", func(child *Scope) error {
		ran = child == nil
		return child.Measure("y", func(*Scope) error { return nil })
	})
	require.NoError(t, err)
	if !ran {
		t.Errorf("body did not run with a nil scope")
	}
	if s.Measurements() != nil {
		t.Errorf("nil scope recorded measurements")
	}
}

func TestReport(t *testing.T) {
	fakeClock(t)
	root := New()
	require.NoError(t, root.Measure("compile", func(s *Scope) error {
		return s.Measure("execute", func(*Scope) error { return nil })
	}))

	report, err := Report(root)
	require.NoError(t, err)
	steps := report.Fields["steps"].GetListValue().GetValues()
	require.Len(t, steps, 1)
	compile := steps[0].GetStructValue()
	if got := compile.Fields["step"].GetStringValue(); got != "compile" {
		t.Errorf("step = %q, want compile", got)
	}
	if got := compile.Fields["ms"].GetNumberValue(); got != 3 {
		t.Errorf("ms = %v, want 3", got)
	}
	sub := compile.Fields["steps"].GetListValue().GetValues()
	require.Len(t, sub, 1)
	if got := sub[0].GetStructValue().Fields["step"].GetStringValue(); got != "execute" {
		t.Errorf("sub-step = %q, want execute", got)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, root))
	decoded := new(structpb.Struct)
	require.NoError(t, protojson.Unmarshal(buf.Bytes(), decoded))
	if got := decoded.Fields["steps"].GetListValue().GetValues()[0].GetStructValue().Fields["step"].GetStringValue(); got != "compile" {
		t.Errorf("decoded step = %q, want compile", got)
	}
}

func TestConcurrentMeasure(t *testing.T) {
	root := New()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			root.Measure("unit", func(*Scope) error { return nil })
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	if n := len(root.Measurements()); n != 8 {
		t.Errorf("got %d measurements, want 8", n)
	}
}
