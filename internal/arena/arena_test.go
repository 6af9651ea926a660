package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type node struct {
	value int
	next  *node
}

func TestAllocAndStats(t *testing.T) {
	a := New()
	first := Alloc[node](a)
	second := Alloc[node](a)
	first.next = second
	second.value = 7

	nums := Slice[int](a, 16)
	nums[3] = 9

	stats := a.Stats()
	assert.Equal(t, 3, stats.Allocations)
	assert.Equal(t, 7, first.next.value)
}

func TestRelease(t *testing.T) {
	a := New()
	Alloc[node](a)
	assert.False(t, a.Released())

	a.Release()
	assert.True(t, a.Released())
	assert.Zero(t, a.Stats().Live)
}
