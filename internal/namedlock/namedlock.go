// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package namedlock provides per-key mutual exclusion whose per-key
// state is discarded as soon as no goroutine refers to the key.
package namedlock // import "go.abla.dev/internal/namedlock"

import "sync"

// A Registry maps keys to reference-counted mutexes.
// The zero value is ready to use.
type Registry struct {
	mu    sync.Mutex // guards locks and every entry's refs
	locks map[string]*entry
}

type entry struct {
	refs int
	mu   sync.Mutex
}

// A Lock is the handle WithLock passes to its body.
// Its body may release the lock early and reacquire it.
// A Lock must not be used by more than one goroutine.
type Lock struct {
	key  string
	e    *entry
	held bool
}

// Key returns the key that the lock guards.
func (l *Lock) Key() string { return l.key }

// Lock acquires the key's mutex. It has no effect if the lock is held.
func (l *Lock) Lock() {
	if !l.held {
		l.e.mu.Lock()
		l.held = true
	}
}

// Unlock releases the key's mutex. It has no effect if the lock is not held.
func (l *Lock) Unlock() {
	if l.held {
		l.held = false
		l.e.mu.Unlock()
	}
}

// WithLock acquires exclusive access to key, runs body, and releases
// the lock when body returns or panics. The registry entry for key is
// removed once the last goroutine referring to it has released it.
func (r *Registry) WithLock(key string, body func(*Lock) error) error {
	l := &Lock{key: key, e: r.acquire(key)}
	defer r.release(l)
	l.Lock()
	return body(l)
}

func (r *Registry) acquire(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks == nil {
		r.locks = make(map[string]*entry)
	}
	e, ok := r.locks[key]
	if !ok {
		e = new(entry)
		r.locks[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) release(l *Lock) {
	l.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	l.e.refs--
	if l.e.refs == 0 {
		delete(r.locks, l.key)
	}
}

// Len returns the number of keys currently referenced.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// Has reports whether key is currently referenced.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.locks[key]
	return ok
}
