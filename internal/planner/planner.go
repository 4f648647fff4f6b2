// Package planner decides which untried menu path to explore next.
//
// Paths are dash-separated DTMF digit sequences ("1", "1-2-1") rooted at the
// RootPath sentinel. The planner enumerates paths breadth-by-depth: the root
// first, then every single-digit path, then every two-digit path, then every
// three-digit path, each depth scanned in ascending numeric order. It assumes
// a maximum branching factor of nine options per menu and gives up below
// depth three, returning FallbackPath instead of searching indefinitely.
package planner

import (
	"fmt"
	"strings"
)

// RootPath identifies the top-level menu reached by just dialing in.
const RootPath = "root"

// FallbackPath is returned once every path of depth <= maxDepth is explored.
const FallbackPath = "1-1-1-1"

const (
	maxDigit = 9
	maxDepth = 3
)

// NextPath returns the first path, in canonical exploration order, that is
// not present in completed. It is pure and deterministic: the same input set
// always yields the same path.
func NextPath(completed map[string]bool) string {
	if !completed[RootPath] {
		return RootPath
	}

	for first := 1; first <= maxDigit; first++ {
		p := fmt.Sprintf("%d", first)
		if !completed[p] {
			return p
		}
	}

	for first := 1; first <= maxDigit; first++ {
		for second := 1; second <= maxDigit; second++ {
			p := fmt.Sprintf("%d-%d", first, second)
			if !completed[p] {
				return p
			}
		}
	}

	for first := 1; first <= maxDigit; first++ {
		for second := 1; second <= maxDigit; second++ {
			for third := 1; third <= maxDigit; third++ {
				p := fmt.Sprintf("%d-%d-%d", first, second, third)
				if !completed[p] {
					return p
				}
			}
		}
	}

	return FallbackPath
}

// Exhausted reports whether every path within the depth bound has been
// explored, i.e. NextPath has nothing left to suggest but FallbackPath.
func Exhausted(completed map[string]bool) bool {
	return NextPath(completed) == FallbackPath
}

// Depth returns the number of DTMF digits in a path; the root sentinel has
// depth zero. Malformed paths count dash-separated segments as-is.
func Depth(path string) int {
	if path == RootPath || path == "" {
		return 0
	}
	return strings.Count(path, "-") + 1
}
