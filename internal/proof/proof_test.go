package proof

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seraphic/internal/parser"
)

func generate(t *testing.T, src string) *Table {
	t.Helper()
	tree, diags := parser.Parse("test.sph", src)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	return Generate(tree)
}

func find(table *Table, kind Kind, status Status) []Entry {
	var out []Entry
	for _, e := range table.Entries {
		if e.Kind == kind && e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func TestDivisionAndPropagationProofs(t *testing.T) {
	table := generate(t, `
fn div(a: i64, b: i64) -> i64 { return a / b; }
fn main() -> i64 { let x = div(10, 0)?? ; return x; }
`)
	assert.Len(t, find(table, KindVoid, StatusRuntime), 1, "one runtime VOID entry for /")
	proven := find(table, KindVoid, StatusProven)
	assert.Len(t, proven, 1, "one proven VOID entry for ??")
	assert.Contains(t, proven[0].Description, "??")
	// Both functions declare effects, and the let is initialized.
	assert.Len(t, find(table, KindEffect, StatusProven), 2)
	assert.Len(t, find(table, KindInit, StatusProven), 1)
}

func TestBoundsAndSubstrateProofs(t *testing.T) {
	table := generate(t, `
fn f(xs: [i64; 4], i: i64) -> i64 {
    persist { let a = xs[i]; }
    aether { let b = 1; }
    recover { let c = 2; }
    return xs[0]!!;
}
`)
	assert.Len(t, find(table, KindBounds, StatusRuntime), 2)
	assert.Len(t, find(table, KindSubstrate, StatusRuntime), 2)
	recoverEntries := find(table, KindVoid, StatusProven)
	require.Len(t, recoverEntries, 1)
	assert.Contains(t, recoverEntries[0].Description, "recover")
	assert.Len(t, find(table, KindVoid, StatusRuntime), 1, "!! entry")
}

func TestTalliesMatchEntries(t *testing.T) {
	table := generate(t, `
fn main() -> i64 { let x = 1 / 2; return x!!; }
`)
	proven, runtime := 0, 0
	for _, e := range table.Entries {
		switch e.Status {
		case StatusProven:
			proven++
		case StatusRuntime:
			runtime++
		}
	}
	assert.Equal(t, proven, table.Proven)
	assert.Equal(t, runtime, table.Runtime)
	assert.Equal(t, 0, table.Failed)
}

func TestMerkleRootEmpty(t *testing.T) {
	var zero [32]byte
	assert.Equal(t, zero, MerkleRoot(nil))
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := sha256.Sum256([]byte("leaf"))
	assert.Equal(t, leaf, MerkleRoot([][32]byte{leaf}))
}

func TestMerkleRootPairing(t *testing.T) {
	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	want := sha256.Sum256(buf[:])
	assert.Equal(t, want, MerkleRoot([][32]byte{a, b}))
}

func TestMerkleRootOddDuplicatesLast(t *testing.T) {
	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))
	c := sha256.Sum256([]byte("c"))

	pair := func(l, r [32]byte) [32]byte {
		var buf [64]byte
		copy(buf[:32], l[:])
		copy(buf[32:], r[:])
		return sha256.Sum256(buf[:])
	}
	want := pair(pair(a, b), pair(c, c))
	assert.Equal(t, want, MerkleRoot([][32]byte{a, b, c}))
}

func TestEntryHashIsStable(t *testing.T) {
	e := Entry{Kind: KindVoid, Status: StatusRuntime, Description: "division may produce VOID"}
	assert.Equal(t, e.Hash(), e.Hash())

	changed := e
	changed.Description = "something else"
	assert.NotEqual(t, e.Hash(), changed.Hash())
}

func TestRootChangesWithEntries(t *testing.T) {
	t1 := NewTable()
	t1.Add(Entry{Kind: KindInit, Status: StatusProven, Description: "a"})
	t2 := NewTable()
	t2.Add(Entry{Kind: KindInit, Status: StatusProven, Description: "b"})
	assert.NotEqual(t, t1.Root(), t2.Root())
}
