// Copyright 2017 The Bazel Authors. All rights reserved.
// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package chunkedfile

import (
	"fmt"
	"testing"
)

type testReporter struct {
	reported []string
}

func (r *testReporter) Errorf(format string, args ...interface{}) {
	r.reported = append(r.reported, fmt.Sprintf(format, args...))
}

func (r *testReporter) assertNone(t *testing.T) {
	t.Helper()
	if len(r.reported) > 0 {
		t.Errorf("reporter expected no errors, got %q", r.reported)
	}
}

func (r *testReporter) assertOne(t *testing.T, want string) {
	t.Helper()
	if len(r.reported) != 1 {
		t.Fatalf("reporter expected 1 error, got %d", len(r.reported))
	}
	if r.reported[0] != want {
		t.Fatalf("reporter expected %q, got %q", want, r.reported[0])
	}
}

func TestChunkedFile(t *testing.T) {
	data := []byte(`extern fun f { 0 } ### "cannot have a body"
---
val x = 1
fun main { x }
`)

	reporter := &testReporter{}
	chunks := readBytes("test_file", data, reporter, "\n")
	reporter.assertNone(t)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	chunk := chunks[0]
	if want := `extern fun f { 0 } ### "cannot have a body"`; chunk.Source != want {
		t.Fatalf("Source = %q, want %q", chunk.Source, want)
	}
	if want := `extern fun f { 0 } `; chunk.Stripped() != want {
		t.Fatalf("Stripped = %q, want %q", chunk.Stripped(), want)
	}
	if !chunk.Expects(1) || chunk.Expects(2) {
		t.Fatalf("Expects(1), Expects(2) = %t, %t", chunk.Expects(1), chunk.Expects(2))
	}
	for _, rx := range chunk.wantErrs {
		if rx.String() != "cannot have a body" {
			t.Fatalf("pattern = %q", rx)
		}
	}

	// An expected error is consumed.
	chunk.GotError(1, "extern function f cannot have a body")
	reporter.assertNone(t)
	chunk.Done()
	reporter.assertNone(t)

	// The same error a second time is unexpected.
	chunk.GotError(1, "extern function f cannot have a body")
	reporter.assertOne(t, "\ntest_file:1: unexpected error: extern function f cannot have a body")

	// Line numbers of later chunks are preserved by padding.
	chunk = chunks[1]
	if want := "\n\nval x = 1\nfun main { x }\n"; chunk.Source != want {
		t.Fatalf("Source = %q, want %q", chunk.Source, want)
	}
	if len(chunk.wantErrs) != 0 {
		t.Fatalf("got %d expectations, want 0", len(chunk.wantErrs))
	}
}

func TestMissingError(t *testing.T) {
	reporter := &testReporter{}
	chunks := readBytes("f", []byte("x ### \"boom\"\n"), reporter, "\n")
	chunks[0].Done()
	reporter.assertOne(t, "\nf:1: expected error matching \"boom\"")
}

func TestBadPattern(t *testing.T) {
	reporter := &testReporter{}
	readBytes("f", []byte("x ### boom\n"), reporter, "\n")
	reporter.assertOne(t, "\nf:1: not a quoted regexp: boom")
}

func TestMismatch(t *testing.T) {
	reporter := &testReporter{}
	chunks := readBytes("f", []byte("x ### \"boom\"\n"), reporter, "\n")
	chunks[0].GotError(1, "bang")
	reporter.assertOne(t, "\nf:1: error \"bang\" does not match pattern \"boom\"")
}
