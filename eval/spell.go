// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eval

// This file defines a simple spell checker for use in lookup errors
// ("unknown identifier fo; did you mean foo?").

import (
	"strings"
	"unicode"
)

// nearest returns the element of candidates nearest to x using the
// Levenshtein metric, or "" if none is close enough.
func nearest(x string, candidates []string) string {
	// Ignore underscores and case when matching.
	fold := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == '_' {
				return -1
			}
			return unicode.ToLower(r)
		}, s)
	}

	x = fold(x)

	var best string
	bestD := (len(x) + 1) / 2 // allow up to 50% typos
	for _, c := range candidates {
		if d := levenshtein(x, fold(c), bestD); d < bestD {
			bestD = d
			best = c
		}
	}
	return best
}

// levenshtein returns the edit distance between the byte strings x
// and y. Once the distance is known to exceed limit, it may return
// early with an approximate value greater than limit.
func levenshtein(x, y string, limit int) int {
	if len(x) > len(y) {
		x, y = y, x
	}
	for len(x) > 0 && x[0] == y[0] {
		x, y = x[1:], y[1:]
	}
	if x == "" {
		return len(y)
	}

	row := make([]int, len(y)+1)
	for i := range row {
		row[i] = i
	}
	for i := 1; i <= len(x); i++ {
		row[0] = i
		best := i
		prev := i - 1
		for j := 1; j <= len(y); j++ {
			sub := prev
			if x[i-1] != y[j-1] {
				sub++
			}
			k := minInt(sub, minInt(row[j-1], row[j])+1)
			prev, row[j] = row[j], k
			best = minInt(best, k)
		}
		if best > limit {
			return best
		}
	}
	return row[len(y)]
}

func minInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}
