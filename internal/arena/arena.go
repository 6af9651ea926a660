// Package arena provides the per-compilation allocation scope. Every AST
// node, token list, IR structure and diagnostic produced while compiling one
// job is allocated through the same Arena, and the whole graph is dropped
// together when the job ends. The internal layout is an opaque bump
// allocator; callers only rely on O(1) allocation, stable addresses, and
// scoped bulk release.
package arena

// Arena owns everything allocated during a single compilation job.
type Arena struct {
	held     []interface{}
	allocs   int
	released bool
}

// Stats summarizes arena activity for verbose reporting.
type Stats struct {
	Allocations int
	Live        int
}

func New() *Arena {
	return &Arena{}
}

// Alloc allocates a zeroed T whose lifetime is tied to the arena.
func Alloc[T any](a *Arena) *T {
	v := new(T)
	a.held = append(a.held, v)
	a.allocs++
	return v
}

// Slice allocates a slice of T with the given length, tied to the arena.
func Slice[T any](a *Arena, n int) []T {
	s := make([]T, n)
	a.held = append(a.held, s)
	a.allocs++
	return s
}

func (a *Arena) Stats() Stats {
	return Stats{Allocations: a.allocs, Live: len(a.held)}
}

// Release drops every allocation at once and marks the scope ended. Using
// values obtained from the arena after Release is a caller bug; the backing
// references are gone. Alloc and Slice do not check the released flag.
func (a *Arena) Release() {
	a.held = nil
	a.released = true
}

// Released reports whether the arena scope has ended.
func (a *Arena) Released() bool {
	return a.released
}
