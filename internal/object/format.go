// Package object defines the Seraphic executable image: a fixed header,
// program headers, the loaded sections, and the certification tables
// (manifest, proofs, capabilities, effects). All multi-byte integers are
// little-endian. The loader half of the package validates such images.
package object

import (
	"encoding/binary"
	"fmt"
)

const (
	FileMagic     = "SRPH"
	ManifestMagic = "SMAN"
	ProofMagic    = "SPRF"
	CapMagic      = "SCAP"
	EffectMagic   = "SEFF"
	StrtabMagic   = "SSTR"

	VersionMajor = 1
	VersionMinor = 0

	// HeaderSize is the fixed image header footprint.
	HeaderSize = 256

	CodeAlign    = 16
	SectionAlign = 8

	// LoadBaseUser is the default virtual base for user-mode executables;
	// kernel images load at the high half instead.
	LoadBaseUser   = 0x400000
	LoadBaseKernel = 0xFFFF_8000_0010_0000

	SignatureSize = 64
)

// Header flags.
const (
	FlagSigned = 1 << 0
	FlagDebug  = 1 << 1
)

// Program header types and flags.
const (
	PTPhdr = 1
	PTLoad = 2
	PTMeta = 0x6000_0001

	PFExec  = 1
	PFWrite = 2
	PFRead  = 4

	ProgramHeaderSize  = 40
	ProgramHeaderCount = 4
)

// Capability permission bits.
const (
	CapPermRead    = 1 << 0
	CapPermWrite   = 1 << 1
	CapPermExecute = 1 << 2
)

// Section is an {offset, size} pair into the image file.
type Section struct {
	Offset uint64
	Size   uint64
}

func (s Section) end() uint64 { return s.Offset + s.Size }

// Header is the fixed image header. Code is 16-byte aligned; every other
// section offset is a multiple of 8.
type Header struct {
	Magic        [4]byte
	VersionMajor uint16
	VersionMinor uint16
	Arch         uint16
	Flags        uint16
	EntryPoint   uint64
	TotalSize    uint64
	ContentHash  [32]byte
	ProofRoot    [32]byte

	Manifest Section
	Code     Section
	ROData   Section
	Data     Section
	BSS      Section
	Proofs   Section
	Caps     Section
	Effects  Section
	Strings  Section
}

func (h *Header) sections() []*Section {
	return []*Section{
		&h.Manifest, &h.Code, &h.ROData, &h.Data, &h.BSS,
		&h.Proofs, &h.Caps, &h.Effects, &h.Strings,
	}
}

// Encode renders the header into its fixed 256-byte form.
func (h *Header) Encode() []byte {
	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, h.Magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, h.VersionMajor)
	buf = binary.LittleEndian.AppendUint16(buf, h.VersionMinor)
	buf = binary.LittleEndian.AppendUint16(buf, h.Arch)
	buf = binary.LittleEndian.AppendUint16(buf, h.Flags)
	buf = binary.LittleEndian.AppendUint64(buf, h.EntryPoint)
	buf = binary.LittleEndian.AppendUint64(buf, h.TotalSize)
	buf = append(buf, h.ContentHash[:]...)
	buf = append(buf, h.ProofRoot[:]...)
	for _, s := range h.sections() {
		buf = binary.LittleEndian.AppendUint64(buf, s.Offset)
		buf = binary.LittleEndian.AppendUint64(buf, s.Size)
	}
	for len(buf) < HeaderSize {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeHeader parses and sanity-checks the fixed header.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("image smaller than header")
	}
	copy(h.Magic[:], data[0:4])
	h.VersionMajor = binary.LittleEndian.Uint16(data[4:6])
	h.VersionMinor = binary.LittleEndian.Uint16(data[6:8])
	h.Arch = binary.LittleEndian.Uint16(data[8:10])
	h.Flags = binary.LittleEndian.Uint16(data[10:12])
	h.EntryPoint = binary.LittleEndian.Uint64(data[12:20])
	h.TotalSize = binary.LittleEndian.Uint64(data[20:28])
	copy(h.ContentHash[:], data[28:60])
	copy(h.ProofRoot[:], data[60:92])
	off := 92
	for _, s := range h.sections() {
		s.Offset = binary.LittleEndian.Uint64(data[off : off+8])
		s.Size = binary.LittleEndian.Uint64(data[off+8 : off+16])
		off += 16
	}
	return h, nil
}

// ProgramHeader describes one runtime segment.
type ProgramHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	VAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

func (p *ProgramHeader) Encode() []byte {
	buf := make([]byte, 0, ProgramHeaderSize)
	buf = binary.LittleEndian.AppendUint32(buf, p.Type)
	buf = binary.LittleEndian.AppendUint32(buf, p.Flags)
	buf = binary.LittleEndian.AppendUint64(buf, p.Offset)
	buf = binary.LittleEndian.AppendUint64(buf, p.VAddr)
	buf = binary.LittleEndian.AppendUint64(buf, p.FileSz)
	buf = binary.LittleEndian.AppendUint64(buf, p.MemSz)
	buf = binary.LittleEndian.AppendUint64(buf, p.Align)
	return buf
}

// Manifest is the image's resource and certification summary.
type Manifest struct {
	FormatVersion uint16
	KernelMin     uint32
	KernelMax     uint32
	Flags         uint32
	EntryPoint    uint64
	StackSize     uint64
	HeapSize      uint64
	ChrononBudget uint64
	CapCount      uint32
	EffectCount   uint32
	CodeSize      uint64
	DataSize      uint64
}

const ManifestSize = 4 + 2 + 2 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 4 + 4 + 8 + 8

func (m *Manifest) Encode() []byte {
	buf := make([]byte, 0, ManifestSize)
	buf = append(buf, ManifestMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, m.FormatVersion)
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, m.KernelMin)
	buf = binary.LittleEndian.AppendUint32(buf, m.KernelMax)
	buf = binary.LittleEndian.AppendUint32(buf, m.Flags)
	buf = binary.LittleEndian.AppendUint64(buf, m.EntryPoint)
	buf = binary.LittleEndian.AppendUint64(buf, m.StackSize)
	buf = binary.LittleEndian.AppendUint64(buf, m.HeapSize)
	buf = binary.LittleEndian.AppendUint64(buf, m.ChrononBudget)
	buf = binary.LittleEndian.AppendUint32(buf, m.CapCount)
	buf = binary.LittleEndian.AppendUint32(buf, m.EffectCount)
	buf = binary.LittleEndian.AppendUint64(buf, m.CodeSize)
	buf = binary.LittleEndian.AppendUint64(buf, m.DataSize)
	return buf
}

func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if len(data) < ManifestSize {
		return m, fmt.Errorf("manifest truncated")
	}
	if string(data[0:4]) != ManifestMagic {
		return m, fmt.Errorf("bad manifest magic")
	}
	m.FormatVersion = binary.LittleEndian.Uint16(data[4:6])
	m.KernelMin = binary.LittleEndian.Uint32(data[8:12])
	m.KernelMax = binary.LittleEndian.Uint32(data[12:16])
	m.Flags = binary.LittleEndian.Uint32(data[16:20])
	m.EntryPoint = binary.LittleEndian.Uint64(data[20:28])
	m.StackSize = binary.LittleEndian.Uint64(data[28:36])
	m.HeapSize = binary.LittleEndian.Uint64(data[36:44])
	m.ChrononBudget = binary.LittleEndian.Uint64(data[44:52])
	m.CapCount = binary.LittleEndian.Uint32(data[52:56])
	m.EffectCount = binary.LittleEndian.Uint32(data[56:60])
	m.CodeSize = binary.LittleEndian.Uint64(data[60:68])
	m.DataSize = binary.LittleEndian.Uint64(data[68:76])
	return m, nil
}

// Proof table binary layout: a 32-byte section header followed by packed
// 64-byte entries.
const (
	ProofSectionHeaderSize = 32
	ProofEntrySize         = 64
)

// ProofCounts are the per-status tallies stored in the proof section
// header.
type ProofCounts struct {
	Count   uint32
	Proven  uint32
	Assumed uint32
	Runtime uint32
	Failed  uint32
	Skipped uint32
}

func DecodeProofCounts(data []byte) (ProofCounts, error) {
	var c ProofCounts
	if len(data) < ProofSectionHeaderSize {
		return c, fmt.Errorf("proof table truncated")
	}
	if string(data[0:4]) != ProofMagic {
		return c, fmt.Errorf("bad proof table magic")
	}
	c.Count = binary.LittleEndian.Uint32(data[4:8])
	c.Proven = binary.LittleEndian.Uint32(data[8:12])
	c.Assumed = binary.LittleEndian.Uint32(data[12:16])
	c.Runtime = binary.LittleEndian.Uint32(data[16:20])
	c.Failed = binary.LittleEndian.Uint32(data[20:24])
	c.Skipped = binary.LittleEndian.Uint32(data[24:28])
	return c, nil
}

// ProofEntryHash extracts the 32-byte content hash of entry i.
func ProofEntryHash(section []byte, i int) ([32]byte, error) {
	var h [32]byte
	off := ProofSectionHeaderSize + i*ProofEntrySize
	if off+ProofEntrySize > len(section) {
		return h, fmt.Errorf("proof entry %d out of bounds", i)
	}
	copy(h[:], section[off+8:off+40])
	return h, nil
}

// Capability table layout: 24-byte section header, then 32-byte templates.
const (
	CapSectionHeaderSize = 24
	CapEntrySize         = 32
)

// CapTemplate describes one memory region grant.
type CapTemplate struct {
	Base        uint64
	Length      uint64
	Permissions uint32
	Flags       uint32
	NameOffset  uint32
}

// Effect table layout: 12-byte section header, then 24-byte entries.
const (
	EffectSectionHeaderSize = 12
	EffectEntrySize         = 24
)

// EffectRecord describes one function's effect certification.
type EffectRecord struct {
	FuncOffset   uint32
	FuncSize     uint32
	Declared     uint32
	Verified     uint32
	RequiredCaps uint32
	NameOffset   uint32
}

func alignUp64(v uint64, align uint64) uint64 {
	return (v + align - 1) / align * align
}
