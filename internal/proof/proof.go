// Package proof builds the compile-time proof table embedded in every
// executable image. Each entry asserts one property with a status; the
// per-entry hashes form the leaves of the Merkle tree whose root the header
// carries, making the binary self-certifying.
package proof

import (
	"crypto/sha256"
	"encoding/binary"

	"seraphic/internal/source"
)

type Kind uint8

const (
	KindBounds Kind = iota
	KindVoid
	KindEffect
	KindPermission
	KindGeneration
	KindSubstrate
	KindType
	KindInit
	KindOverflow
	KindNull
	KindInvariant
	KindTermination
)

var kindNames = [...]string{
	KindBounds: "bounds", KindVoid: "void", KindEffect: "effect",
	KindPermission: "permission", KindGeneration: "generation",
	KindSubstrate: "substrate", KindType: "type", KindInit: "init",
	KindOverflow: "overflow", KindNull: "null", KindInvariant: "invariant",
	KindTermination: "termination",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

type Status uint8

const (
	StatusProven Status = iota
	StatusAssumed
	StatusRuntime
	StatusFailed
	StatusSkipped
)

var statusNames = [...]string{
	StatusProven: "proven", StatusAssumed: "assumed", StatusRuntime: "runtime",
	StatusFailed: "failed", StatusSkipped: "skipped",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Entry is one proof record. Payload carries 16 bytes of kind-specific data
// (for bounds checks: array size, index min, index max as packed u32s).
type Entry struct {
	Kind        Kind
	Status      Status
	CodeOffset  uint32
	Pos         source.Position
	Description string
	Payload     [16]byte
}

// Hash digests the entry's binary representation; these hashes are the
// Merkle leaves.
func (e *Entry) Hash() [32]byte {
	var buf []byte
	buf = append(buf, byte(e.Kind), byte(e.Status), 0, 0)
	buf = binary.LittleEndian.AppendUint32(buf, e.CodeOffset)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Pos.Line))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Pos.Column))
	buf = append(buf, e.Pos.Filename...)
	buf = append(buf, 0)
	buf = append(buf, e.Description...)
	buf = append(buf, 0)
	buf = append(buf, e.Payload[:]...)
	return sha256.Sum256(buf)
}

// Table is the ordered proof list with running status tallies.
type Table struct {
	Entries []Entry

	Proven  int
	Assumed int
	Runtime int
	Failed  int
	Skipped int
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Add(e Entry) {
	t.Entries = append(t.Entries, e)
	switch e.Status {
	case StatusProven:
		t.Proven++
	case StatusAssumed:
		t.Assumed++
	case StatusRuntime:
		t.Runtime++
	case StatusFailed:
		t.Failed++
	case StatusSkipped:
		t.Skipped++
	}
}

// Hashes returns the per-entry leaf hashes in table order.
func (t *Table) Hashes() [][32]byte {
	out := make([][32]byte, len(t.Entries))
	for i := range t.Entries {
		out[i] = t.Entries[i].Hash()
	}
	return out
}

// Root computes the table's Merkle root.
func (t *Table) Root() [32]byte {
	return MerkleRoot(t.Hashes())
}

// MerkleRoot folds leaf hashes pairwise with SHA-256 until one root
// remains. An odd node at any level is paired with itself; an empty table
// has the all-zero root.
func MerkleRoot(leaves [][32]byte) [32]byte {
	var zero [32]byte
	if len(leaves) == 0 {
		return zero
	}
	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		var next [][32]byte
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			var buf [64]byte
			copy(buf[:32], left[:])
			copy(buf[32:], right[:])
			next = append(next, sha256.Sum256(buf[:]))
		}
		level = next
	}
	return level[0]
}
