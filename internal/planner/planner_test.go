package planner

import (
	"fmt"
	"testing"
)

func pathSet(paths ...string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

// allUpToDepth returns root plus every path of depth <= depth.
func allUpToDepth(depth int) map[string]bool {
	set := pathSet(RootPath)
	if depth >= 1 {
		for i := 1; i <= 9; i++ {
			set[fmt.Sprintf("%d", i)] = true
		}
	}
	if depth >= 2 {
		for i := 1; i <= 9; i++ {
			for j := 1; j <= 9; j++ {
				set[fmt.Sprintf("%d-%d", i, j)] = true
			}
		}
	}
	if depth >= 3 {
		for i := 1; i <= 9; i++ {
			for j := 1; j <= 9; j++ {
				for k := 1; k <= 9; k++ {
					set[fmt.Sprintf("%d-%d-%d", i, j, k)] = true
				}
			}
		}
	}
	return set
}

func TestNextPath_Order(t *testing.T) {
	tests := []struct {
		name      string
		completed map[string]bool
		want      string
	}{
		{"empty set", pathSet(), RootPath},
		{"root missing", pathSet("1", "2"), RootPath},
		{"root only", pathSet(RootPath), "1"},
		{"partial depth one", pathSet(RootPath, "1", "2", "3"), "4"},
		{"depth one done", allUpToDepth(1), "1-1"},
		{"first branch started", merge(allUpToDepth(1), pathSet("1-1")), "1-2"},
		{"first branch done", merge(allUpToDepth(1), pathSet("1-1", "1-2", "1-3", "1-4", "1-5", "1-6", "1-7", "1-8", "1-9")), "2-1"},
		{"depth two done", allUpToDepth(2), "1-1-1"},
		{"everything done", allUpToDepth(3), FallbackPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextPath(tt.completed); got != tt.want {
				t.Errorf("NextPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func merge(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func TestNextPath_Deterministic(t *testing.T) {
	completed := pathSet(RootPath, "1", "3", "2-1")
	first := NextPath(completed)
	for i := 0; i < 10; i++ {
		if got := NextPath(completed); got != first {
			t.Fatalf("call %d: NextPath() = %q, want %q", i, got, first)
		}
	}
}

func TestNextPath_IgnoresForeignEntries(t *testing.T) {
	// Deeper or malformed paths in the set must not disturb the scan order.
	completed := pathSet(RootPath, "1", "1-1-1-1", "banana")
	if got := NextPath(completed); got != "2" {
		t.Errorf("NextPath() = %q, want %q", got, "2")
	}
}

func TestExhausted(t *testing.T) {
	if Exhausted(allUpToDepth(2)) {
		t.Error("Exhausted() = true with depth-3 paths untried")
	}
	if !Exhausted(allUpToDepth(3)) {
		t.Error("Exhausted() = false with every bounded path explored")
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{RootPath, 0},
		{"", 0},
		{"7", 1},
		{"1-2", 2},
		{"9-9-9", 3},
	}
	for _, tt := range tests {
		if got := Depth(tt.path); got != tt.want {
			t.Errorf("Depth(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}
