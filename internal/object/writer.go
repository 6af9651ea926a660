package object

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"

	"seraphic/internal/codegen"
	"seraphic/internal/proof"
)

// EffectEntry is the writer's input form of one effect-table record.
type EffectEntry struct {
	Name         string
	FuncOffset   uint32
	FuncSize     uint32
	Declared     uint32
	Verified     uint32
	RequiredCaps uint32
}

// Writer assembles a complete executable image from the backend output and
// the certification metadata.
type Writer struct {
	Arch        uint16
	LoadBase    uint64
	Code        []byte
	EntryOffset int
	ROData      []byte
	Data        []byte
	BSSSize     uint64
	Proofs      *proof.Table
	Effects     []EffectEntry
	Relocs      []codegen.Reloc
	Funcs       map[string]codegen.FuncInfo

	StackSize     uint64
	HeapSize      uint64
	ChrononBudget uint64

	// Debug marks the image as carrying debug information.
	Debug bool

	// SignKey, when set, appends an Ed25519 signature over the content
	// hash and sets the SIGNED header flag.
	SignKey ed25519.PrivateKey
}

func NewWriter(arch uint16) *Writer {
	return &Writer{
		Arch:      arch,
		LoadBase:  LoadBaseUser,
		Funcs:     make(map[string]codegen.FuncInfo),
		StackSize: 1 << 20,
		HeapSize:  1 << 24,
	}
}

// strtab builds the image string table with interned offsets.
type strtab struct {
	data    []byte
	offsets map[string]uint32
}

func newStrtab() *strtab {
	return &strtab{offsets: make(map[string]uint32)}
}

func (s *strtab) add(str string) uint32 {
	if off, ok := s.offsets[str]; ok {
		return off
	}
	off := uint32(len(s.data))
	s.data = append(s.data, str...)
	s.data = append(s.data, 0)
	s.offsets[str] = off
	return off
}

// Build runs the layout algorithm and returns the complete image bytes.
func (w *Writer) Build() ([]byte, error) {
	strings := newStrtab()
	// Section names first, in a fixed order.
	for _, name := range []string{
		".manifest", ".text", ".rodata", ".data", ".bss",
		".proofs", ".caps", ".effects", ".strtab",
	} {
		strings.add(name)
	}
	capNames := [3]uint32{strings.add("code"), strings.add("data"), strings.add("stack")}

	var h Header
	copy(h.Magic[:], FileMagic)
	h.VersionMajor = VersionMajor
	h.VersionMinor = VersionMinor
	h.Arch = w.Arch
	if w.SignKey != nil {
		h.Flags |= FlagSigned
	}
	if w.Debug {
		h.Flags |= FlagDebug
	}

	// File layout: header, program headers, then the sections in order
	// code, rodata, data, manifest, proofs, effects, caps, strtab.
	off := uint64(HeaderSize)
	phdrOff := off
	off += ProgramHeaderSize * ProgramHeaderCount

	off = alignUp64(off, CodeAlign)
	h.Code = Section{Offset: off, Size: uint64(len(w.Code))}
	off += h.Code.Size

	off = alignUp64(off, SectionAlign)
	h.ROData = Section{Offset: off, Size: uint64(len(w.ROData))}
	off += h.ROData.Size

	off = alignUp64(off, SectionAlign)
	h.Data = Section{Offset: off, Size: uint64(len(w.Data))}
	off += h.Data.Size

	// BSS occupies address space only; its "offset" is the virtual
	// placement after data.
	h.BSS = Section{Offset: alignUp64(off, SectionAlign), Size: w.BSSSize}

	off = alignUp64(off, SectionAlign)
	h.Manifest = Section{Offset: off, Size: ManifestSize}
	off += h.Manifest.Size

	proofCount := 0
	if w.Proofs != nil {
		proofCount = len(w.Proofs.Entries)
	}
	off = alignUp64(off, SectionAlign)
	h.Proofs = Section{Offset: off, Size: uint64(ProofSectionHeaderSize + proofCount*ProofEntrySize)}
	off += h.Proofs.Size

	off = alignUp64(off, SectionAlign)
	h.Effects = Section{Offset: off, Size: uint64(EffectSectionHeaderSize + len(w.Effects)*EffectEntrySize)}
	off += h.Effects.Size

	off = alignUp64(off, SectionAlign)
	h.Caps = Section{Offset: off, Size: uint64(CapSectionHeaderSize + 3*CapEntrySize)}
	off += h.Caps.Size

	// The string table is laid out last; proof entries intern location and
	// description strings while being encoded, so its size is known only
	// afterwards. Encode the variable sections now.
	codeVaddr := w.LoadBase + h.Code.Offset
	rodataVaddr := w.LoadBase + h.ROData.Offset
	dataVaddr := w.LoadBase + h.Data.Offset
	h.EntryPoint = codeVaddr + uint64(w.EntryOffset)

	code := make([]byte, len(w.Code))
	copy(code, w.Code)
	for _, r := range w.Relocs {
		if r.Kind != codegen.RelocAbs64 {
			continue
		}
		var addr uint64
		switch {
		case r.Symbol == "__rodata":
			addr = rodataVaddr + uint64(r.Addend)
		default:
			info, ok := w.Funcs[r.Symbol]
			if !ok {
				continue // external; the loader resolves it
			}
			addr = codeVaddr + uint64(info.Offset) + uint64(r.Addend)
		}
		if r.Offset+8 > len(code) {
			return nil, fmt.Errorf("relocation at %d outside code section", r.Offset)
		}
		binary.LittleEndian.PutUint64(code[r.Offset:], addr)
	}

	proofBlob := w.encodeProofs(strings)
	effectBlob := w.encodeEffects(strings)
	capBlob := w.encodeCaps(strings, codeVaddr, dataVaddr, capNames)

	off = alignUp64(off, SectionAlign)
	strBlob := make([]byte, 0, 8+len(strings.data))
	strBlob = append(strBlob, StrtabMagic...)
	strBlob = binary.LittleEndian.AppendUint32(strBlob, uint32(len(strings.data)))
	strBlob = append(strBlob, strings.data...)
	h.Strings = Section{Offset: off, Size: uint64(len(strBlob))}
	off += h.Strings.Size

	h.TotalSize = off

	manifest := Manifest{
		FormatVersion: 1,
		KernelMin:     1,
		KernelMax:     0xFFFF,
		EntryPoint:    h.EntryPoint,
		StackSize:     w.StackSize,
		HeapSize:      w.HeapSize,
		ChrononBudget: w.ChrononBudget,
		CapCount:      3,
		EffectCount:   uint32(len(w.Effects)),
		CodeSize:      h.Code.Size,
		DataSize:      h.Data.Size + w.BSSSize,
	}

	image := make([]byte, h.TotalSize)
	writeAt := func(s Section, blob []byte) {
		copy(image[s.Offset:], blob)
	}
	writeAt(h.Code, code)
	writeAt(h.ROData, w.ROData)
	writeAt(h.Data, w.Data)
	writeAt(h.Manifest, manifest.Encode())
	writeAt(h.Proofs, proofBlob)
	writeAt(h.Effects, effectBlob)
	writeAt(h.Caps, capBlob)
	writeAt(h.Strings, strBlob)

	phdrs := w.programHeaders(&h)
	p := phdrOff
	for i := range phdrs {
		copy(image[p:], phdrs[i].Encode())
		p += ProgramHeaderSize
	}

	if w.Proofs != nil {
		h.ProofRoot = w.Proofs.Root()
	}
	copy(image[:HeaderSize], h.Encode())
	h.ContentHash = sha256.Sum256(image[HeaderSize:])
	copy(image[:HeaderSize], h.Encode())

	if w.SignKey != nil {
		sig := ed25519.Sign(w.SignKey, h.ContentHash[:])
		image = append(image, sig...)
	}
	return image, nil
}

func (w *Writer) programHeaders(h *Header) []ProgramHeader {
	phdrOff := uint64(HeaderSize)
	rx := Section{Offset: h.Code.Offset, Size: h.ROData.end() - h.Code.Offset}
	rw := Section{Offset: h.Data.Offset, Size: h.Data.Size}
	meta := Section{Offset: h.Manifest.Offset, Size: h.Caps.end() - h.Manifest.Offset}
	return []ProgramHeader{
		{
			Type: PTPhdr, Flags: PFRead,
			Offset: phdrOff, VAddr: w.LoadBase + phdrOff,
			FileSz: ProgramHeaderSize * ProgramHeaderCount,
			MemSz:  ProgramHeaderSize * ProgramHeaderCount,
			Align:  8,
		},
		{
			Type: PTLoad, Flags: PFRead | PFExec,
			Offset: rx.Offset, VAddr: w.LoadBase + rx.Offset,
			FileSz: rx.Size, MemSz: rx.Size, Align: CodeAlign,
		},
		{
			Type: PTLoad, Flags: PFRead | PFWrite,
			Offset: rw.Offset, VAddr: w.LoadBase + rw.Offset,
			FileSz: rw.Size, MemSz: rw.Size + h.BSS.Size, Align: SectionAlign,
		},
		{
			Type: PTMeta, Flags: PFRead,
			Offset: meta.Offset, VAddr: 0,
			FileSz: meta.Size, MemSz: 0, Align: SectionAlign,
		},
	}
}

func (w *Writer) encodeProofs(strings *strtab) []byte {
	var entries []proof.Entry
	counts := ProofCounts{}
	if w.Proofs != nil {
		entries = w.Proofs.Entries
		counts = ProofCounts{
			Count:   uint32(len(entries)),
			Proven:  uint32(w.Proofs.Proven),
			Assumed: uint32(w.Proofs.Assumed),
			Runtime: uint32(w.Proofs.Runtime),
			Failed:  uint32(w.Proofs.Failed),
			Skipped: uint32(w.Proofs.Skipped),
		}
	}

	blob := make([]byte, 0, ProofSectionHeaderSize+len(entries)*ProofEntrySize)
	blob = append(blob, ProofMagic...)
	blob = binary.LittleEndian.AppendUint32(blob, counts.Count)
	blob = binary.LittleEndian.AppendUint32(blob, counts.Proven)
	blob = binary.LittleEndian.AppendUint32(blob, counts.Assumed)
	blob = binary.LittleEndian.AppendUint32(blob, counts.Runtime)
	blob = binary.LittleEndian.AppendUint32(blob, counts.Failed)
	blob = binary.LittleEndian.AppendUint32(blob, counts.Skipped)
	blob = append(blob, 0, 0, 0, 0)

	for i := range entries {
		e := &entries[i]
		hash := e.Hash()
		blob = append(blob, byte(e.Kind), byte(e.Status), 0, 0)
		blob = binary.LittleEndian.AppendUint32(blob, e.CodeOffset)
		blob = append(blob, hash[:]...)
		blob = binary.LittleEndian.AppendUint32(blob, strings.add(e.Pos.String()))
		blob = binary.LittleEndian.AppendUint32(blob, strings.add(e.Description))
		blob = append(blob, e.Payload[:]...)
	}
	return blob
}

func (w *Writer) encodeEffects(strings *strtab) []byte {
	pure := 0
	for _, e := range w.Effects {
		if e.Declared == 0 {
			pure++
		}
	}
	blob := make([]byte, 0, EffectSectionHeaderSize+len(w.Effects)*EffectEntrySize)
	blob = append(blob, EffectMagic...)
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(w.Effects)))
	blob = binary.LittleEndian.AppendUint32(blob, uint32(pure))
	for _, e := range w.Effects {
		blob = binary.LittleEndian.AppendUint32(blob, e.FuncOffset)
		blob = binary.LittleEndian.AppendUint32(blob, e.FuncSize)
		blob = binary.LittleEndian.AppendUint32(blob, e.Declared)
		blob = binary.LittleEndian.AppendUint32(blob, e.Verified)
		blob = binary.LittleEndian.AppendUint32(blob, e.RequiredCaps)
		blob = binary.LittleEndian.AppendUint32(blob, strings.add(e.Name))
	}
	return blob
}

func (w *Writer) encodeCaps(strings *strtab, codeVaddr, dataVaddr uint64, names [3]uint32) []byte {
	templates := []CapTemplate{
		{Base: codeVaddr, Length: uint64(len(w.Code)), Permissions: CapPermRead | CapPermExecute, NameOffset: names[0]},
		{Base: dataVaddr, Length: uint64(len(w.Data)) + w.BSSSize, Permissions: CapPermRead | CapPermWrite, NameOffset: names[1]},
		{Base: 0, Length: w.StackSize, Permissions: CapPermRead | CapPermWrite, NameOffset: names[2]},
	}
	blob := make([]byte, 0, CapSectionHeaderSize+len(templates)*CapEntrySize)
	blob = append(blob, CapMagic...)
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(templates)))
	// Well-known template indices: code, data, stack.
	blob = binary.LittleEndian.AppendUint32(blob, 0)
	blob = binary.LittleEndian.AppendUint32(blob, 1)
	blob = binary.LittleEndian.AppendUint32(blob, 2)
	blob = append(blob, 0, 0, 0, 0)
	for _, t := range templates {
		blob = binary.LittleEndian.AppendUint64(blob, t.Base)
		blob = binary.LittleEndian.AppendUint64(blob, t.Length)
		blob = binary.LittleEndian.AppendUint32(blob, t.Permissions)
		blob = binary.LittleEndian.AppendUint32(blob, t.Flags)
		blob = binary.LittleEndian.AppendUint32(blob, t.NameOffset)
		blob = append(blob, 0, 0, 0, 0)
	}
	return blob
}

// WriteFile streams the image to disk. The write is not atomic; callers
// needing atomicity write to a temp file and rename.
func (w *Writer) WriteFile(path string) error {
	image, err := w.Build()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, image, 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteBuffer writes the image into a fixed-size memory region, failing
// cleanly when capacity is insufficient.
func (w *Writer) WriteBuffer(buf []byte) (int, error) {
	image, err := w.Build()
	if err != nil {
		return 0, err
	}
	if len(buf) < len(image) {
		return 0, fmt.Errorf("buffer too small: need %d bytes, have %d", len(image), len(buf))
	}
	copy(buf, image)
	return len(image), nil
}
