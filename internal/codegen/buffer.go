package codegen

import "encoding/binary"

// Buffer is a growable machine-code byte buffer with little-endian helpers
// and back-patching support.
type Buffer struct {
	data []byte
}

func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, 4096)}
}

func (b *Buffer) Len() int      { return len(b.data) }
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Byte(v byte) {
	b.data = append(b.data, v)
}

func (b *Buffer) BytesRaw(vs ...byte) {
	b.data = append(b.data, vs...)
}

func (b *Buffer) U16(v uint16) {
	b.data = binary.LittleEndian.AppendUint16(b.data, v)
}

func (b *Buffer) U32(v uint32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
}

func (b *Buffer) U64(v uint64) {
	b.data = binary.LittleEndian.AppendUint64(b.data, v)
}

func (b *Buffer) PatchU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(b.data[off:off+4], v)
}

func (b *Buffer) PatchU64(off int, v uint64) {
	binary.LittleEndian.PutUint64(b.data[off:off+8], v)
}

func (b *Buffer) ReadU32(off int) uint32 {
	return binary.LittleEndian.Uint32(b.data[off : off+4])
}

// Align pads with zero bytes up to the given boundary.
func (b *Buffer) Align(n int) {
	for len(b.data)%n != 0 {
		b.data = append(b.data, 0)
	}
}
