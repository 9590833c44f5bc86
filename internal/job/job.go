// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package job provides hierarchical completion handles for
// asynchronous compilation work.
//
// A Job is done once its owner has called Complete (or Fail) and
// every child job is done. Waiting for a job therefore waits for all
// the work transitively spawned under it. A child's failure is
// recorded on its parent, but does not finish it.
package job // import "go.abla.dev/internal/job"

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// A Job tracks a unit of asynchronous work and its children.
type Job struct {
	id     uuid.UUID
	parent *Job // nil if root or detached
	done   chan struct{}

	mu        sync.Mutex
	completed bool // owner has no more work of its own
	children  int  // children not yet done
	err       error
}

// New returns a new job. If parent is non-nil and not yet done, the
// job becomes its child and parent is not done until the job is.
// A job whose parent is already done is detached.
func New(parent *Job) *Job {
	j := &Job{id: uuid.New(), done: make(chan struct{})}
	if parent != nil && parent.attach() {
		j.parent = parent
	}
	return j
}

// ID returns the job's unique identifier.
func (j *Job) ID() uuid.UUID { return j.id }

// Parent returns the job's parent, or nil.
func (j *Job) Parent() *Job { return j.parent }

func (j *Job) attach() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	select {
	case <-j.done:
		return false
	default:
	}
	j.children++
	return true
}

// Complete records that the job's owner has finished its own work.
// It reports whether this call changed the job's state.
func (j *Job) Complete() bool { return j.finish(nil) }

// Fail is like Complete but records err as the job's error.
func (j *Job) Fail(err error) bool { return j.finish(err) }

func (j *Job) finish(err error) bool {
	j.mu.Lock()
	if j.completed {
		j.mu.Unlock()
		return false
	}
	j.completed = true
	if j.err == nil {
		j.err = err
	}
	done := j.children == 0
	if done {
		close(j.done)
	}
	j.mu.Unlock()

	if done {
		j.notifyParent()
	}
	return true
}

func (j *Job) childDone(err error) {
	j.mu.Lock()
	j.children--
	if j.err == nil {
		j.err = err
	}
	done := j.completed && j.children == 0
	if done {
		close(j.done)
	}
	j.mu.Unlock()

	if done {
		j.notifyParent()
	}
}

// notifyParent is called once, after j is done; j.err is immutable by then.
func (j *Job) notifyParent() {
	if j.parent != nil {
		j.parent.childDone(j.err)
	}
}

// Done returns a channel that is closed when the job is done.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the first error recorded by the job or its children.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Join waits until the job is done or ctx is cancelled.
func (j *Job) Join(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
