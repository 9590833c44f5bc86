// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eval

import (
	"bytes"
	"fmt"

	"go.abla.dev/syntax"
)

// A Frame records a call in progress during compile-time execution.
type Frame struct {
	parent *Frame
	name   string          // "<toplevel>" or the callee's name
	posn   syntax.Position // position of the current call or error
}

// Name returns the name of the frame's function.
func (fr *Frame) Name() string { return fr.name }

// Position returns the source position of the current point of
// execution in this frame.
func (fr *Frame) Position() syntax.Position { return fr.posn }

// Parent returns the frame of the enclosing call, if any.
func (fr *Frame) Parent() *Frame { return fr.parent }

// An EvalError is a compile-time execution error and its call stack.
type EvalError struct {
	Msg   string
	Frame *Frame
	cause error
}

func (e *EvalError) Error() string {
	if e.Frame == nil {
		return e.Msg
	}
	return e.Frame.posn.String() + ": " + e.Msg
}

// Unwrap returns the error that caused e, if any.
func (e *EvalError) Unwrap() error { return e.cause }

// Backtrace returns a user-friendly error message describing the stack
// of calls that led to this error.
func (e *EvalError) Backtrace() string {
	var buf bytes.Buffer
	e.Frame.WriteBacktrace(&buf)
	fmt.Fprintf(&buf, "Error: %s", e.Msg)
	return buf.String()
}

// WriteBacktrace writes a user-friendly description of the stack to buf.
func (fr *Frame) WriteBacktrace(out *bytes.Buffer) {
	fmt.Fprintf(out, "Traceback (most recent call last):\n")
	var print func(fr *Frame)
	print = func(fr *Frame) {
		if fr != nil {
			print(fr.parent)
			fmt.Fprintf(out, "  %s:%d:%d: in %s\n",
				fr.posn.Filename(), fr.posn.Line, fr.posn.Col, fr.name)
		}
	}
	print(fr)
}

// Stack returns the stack of frames, innermost first.
func (e *EvalError) Stack() []*Frame {
	var stack []*Frame
	for fr := e.Frame; fr != nil; fr = fr.parent {
		stack = append(stack, fr)
	}
	return stack
}
