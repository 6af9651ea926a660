// Package codegen turns a verified Celestial IR module into raw machine
// code for one of the three supported 64-bit targets. The outer driver is
// shared: it iterates functions and blocks, records label positions, and
// resolves branch and call fixups; each target contributes only instruction
// encodings behind the encoder interface.
package codegen

import (
	"fmt"
	"strings"

	"seraphic/internal/ir"
)

type Target int

const (
	X64 Target = iota
	AArch64
	RISCV64
)

func (t Target) String() string {
	switch t {
	case X64:
		return "x64"
	case AArch64:
		return "aarch64"
	default:
		return "riscv64"
	}
}

// ArchID is the architecture tag stored in the image header.
func (t Target) ArchID() uint16 {
	switch t {
	case X64:
		return 1
	case AArch64:
		return 2
	default:
		return 3
	}
}

func ParseTarget(s string) (Target, error) {
	switch s {
	case "x64", "x86_64":
		return X64, nil
	case "arm64", "aarch64":
		return AArch64, nil
	case "riscv64":
		return RISCV64, nil
	default:
		return X64, fmt.Errorf("unknown target %q", s)
	}
}

type RelocKind int

const (
	// RelocCallRel32 is an x64 E8 call; Offset points at the disp32.
	RelocCallRel32 RelocKind = iota
	// RelocBranch26 is an AArch64 BL; Offset points at the instruction.
	RelocBranch26
	// RelocJAL is a RISC-V JAL; Offset points at the instruction.
	RelocJAL
	// RelocAbs64 is an 8-byte absolute literal patched with the symbol's
	// final virtual address plus addend.
	RelocAbs64
)

// Reloc records a patch site for the image writer or loader. Intra-module
// call displacements are already resolved; the records remain so a host
// linker can re-resolve them.
type Reloc struct {
	Offset int
	Kind   RelocKind
	Symbol string
	Addend int64
}

// FuncInfo is a function's placement inside the code buffer.
type FuncInfo struct {
	Offset int
	Size   int
}

// Result is the backend output consumed by the object writer.
type Result struct {
	Target      Target
	Code        []byte
	EntryOffset int // startup stub, always at 0
	Funcs       map[string]FuncInfo
	FuncOrder   []string
	Relocs      []Reloc
	Asm         string
}

type callFixup struct {
	Site   int
	Symbol string
	Kind   RelocKind
}

type branchFixup struct {
	Site    int
	BlockID int
	Kind    int // encoder-private
}

type state struct {
	mod        *ir.Module
	buf        *Buffer
	funcs      map[string]FuncInfo
	order      []string
	callFixups []callFixup
	relocs     []Reloc
	asm        strings.Builder
}

func (st *state) asmf(format string, args ...interface{}) {
	fmt.Fprintf(&st.asm, format+"\n", args...)
}

// frame is the per-function stack layout: saved callee registers first,
// then alloca slots, then register spill slots, all FP-relative below the
// frame pointer. The first 16 bytes below FP stay reserved for the saved
// frame/link pair on targets that keep it inside the frame.
type frame struct {
	calleeSlots  map[int]int
	allocaOffset map[*ir.Instr]int
	spillBase    int
	size         int
}

func layoutFrame(fn *ir.Function, alloc *Alloc) *frame {
	f := &frame{
		calleeSlots:  make(map[int]int),
		allocaOffset: make(map[*ir.Instr]int),
	}
	off := 16
	for _, reg := range alloc.UsedCalleeSaved() {
		off += 8
		f.calleeSlots[reg] = off
	}
	fn.ForEachInstr(func(ins *ir.Instr) {
		if ins.Op != ir.ALLOCA {
			return
		}
		size := ins.Result.AllocaType.Size()
		if size < 8 {
			size = 8
		}
		size = (size + 7) &^ 7
		off += size
		f.allocaOffset[ins] = off
	})
	f.spillBase = off
	off += 8 * alloc.SpillCount()
	f.size = (off + 15) &^ 15
	return f
}

// spillOffset is the FP-relative offset of a spill slot.
func (f *frame) spillOffset(slot int) int {
	return f.spillBase + 8*(slot+1)
}

type funcState struct {
	fn     *ir.Function
	alloc  *Alloc
	frame  *frame
	labels map[int]int
	fixups []branchFixup
}

// encoder is one target's instruction-encoding half of the backend.
type encoder interface {
	target() Target
	regFile() *RegisterFile
	// emitStub writes the module startup stub: call main, then the exit
	// syscall with main's return value as status.
	emitStub(st *state)
	emitPrologue(st *state, fs *funcState)
	emitInstr(st *state, fs *funcState, ins *ir.Instr) error
	patchBranch(st *state, fs *funcState, f branchFixup, target int) error
	patchCall(st *state, c callFixup, target int) error
}

func newEncoder(t Target) encoder {
	switch t {
	case X64:
		return &x64Encoder{}
	case AArch64:
		return &a64Encoder{}
	default:
		return &rv64Encoder{}
	}
}

// Generate runs the shared driver over every function in the module.
func Generate(mod *ir.Module, target Target) (*Result, error) {
	enc := newEncoder(target)
	st := &state{
		mod:   mod,
		buf:   NewBuffer(),
		funcs: make(map[string]FuncInfo),
	}

	st.asmf("; target %s", target)
	enc.emitStub(st)

	for _, fn := range mod.Functions {
		if len(fn.Blocks) == 0 {
			// Forward or foreign declaration; the loader resolves calls.
			continue
		}
		st.buf.Align(16)
		start := st.buf.Len()
		fs := &funcState{fn: fn, labels: make(map[int]int)}
		fs.alloc = assignRegisters(fn, enc.regFile())
		fs.frame = layoutFrame(fn, fs.alloc)

		st.asmf("%s:", fn.Name)
		enc.emitPrologue(st, fs)

		for _, b := range fn.Blocks {
			fs.labels[b.ID] = st.buf.Len()
			st.asmf(".%s:", b.Name)
			for _, ins := range b.Instrs {
				st.asmf("\t; %s", ir.InstrString(ins))
				if err := enc.emitInstr(st, fs, ins); err != nil {
					return nil, fmt.Errorf("%s: %w", fn.Name, err)
				}
			}
		}

		for _, f := range fs.fixups {
			tgt, ok := fs.labels[f.BlockID]
			if !ok {
				return nil, fmt.Errorf("%s: branch to unknown block %d", fn.Name, f.BlockID)
			}
			if err := enc.patchBranch(st, fs, f, tgt); err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name, err)
			}
		}

		st.funcs[fn.Name] = FuncInfo{Offset: start, Size: st.buf.Len() - start}
		st.order = append(st.order, fn.Name)
	}

	for _, c := range st.callFixups {
		st.relocs = append(st.relocs, Reloc{Offset: c.Site, Kind: c.Kind, Symbol: c.Symbol})
		info, ok := st.funcs[c.Symbol]
		if !ok {
			// External call: displacement stays zero for the loader.
			continue
		}
		if err := enc.patchCall(st, c, info.Offset); err != nil {
			return nil, err
		}
	}

	return &Result{
		Target:      target,
		Code:        st.buf.Bytes(),
		EntryOffset: 0,
		Funcs:       st.funcs,
		FuncOrder:   st.order,
		Relocs:      st.relocs,
		Asm:         st.asm.String(),
	}, nil
}
