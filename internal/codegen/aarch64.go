package codegen

import (
	"fmt"

	"seraphic/internal/ir"
)

// AArch64 register numbers. X16/X17/X15 are compiler scratch, X27 holds the
// substrate context, X28 the capability context, X29 is the frame pointer
// and X30 the link register.
const (
	a64X0  = 0
	a64X8  = 8
	a64X15 = 15
	a64X16 = 16
	a64X17 = 17
	a64X27 = 27
	a64X28 = 28
	a64FP  = 29
	a64LR  = 30
	a64SP  = 31
	a64XZR = 31
)

var a64RegsFile = &RegisterFile{
	CallerSaved: []int{9, 10, 11, 12, 13, 14},
	CalleeSaved: []int{19, 20, 21, 22, 23, 24, 25, 26},
	Args:        []int{0, 1, 2, 3, 4, 5, 6, 7},
	SyscallArgs: []int{8, 0, 1, 2, 3, 4, 5},
	RetReg:      0,
	Scratch:     []int{a64X16, a64X17, a64X15},
	FP:          a64FP,
	SP:          a64SP,
}

const (
	a64FixB26 = iota // unconditional B, imm26
	a64FixB19        // CBZ/CBNZ/B.cond, imm19
)

type a64Encoder struct{}

func (e *a64Encoder) target() Target         { return AArch64 }
func (e *a64Encoder) regFile() *RegisterFile { return a64RegsFile }

func (e *a64Encoder) word(st *state, w uint32) {
	st.buf.U32(w)
}

// Core encodings.

func (e *a64Encoder) movz(st *state, rd int, imm uint16, hw int) {
	e.word(st, 0xD2800000|uint32(hw)<<21|uint32(imm)<<5|uint32(rd))
}

func (e *a64Encoder) movk(st *state, rd int, imm uint16, hw int) {
	e.word(st, 0xF2800000|uint32(hw)<<21|uint32(imm)<<5|uint32(rd))
}

func (e *a64Encoder) movImm64(st *state, rd int, v uint64) {
	e.movz(st, rd, uint16(v), 0)
	for hw := 1; hw < 4; hw++ {
		chunk := uint16(v >> (16 * hw))
		if chunk != 0 {
			e.movk(st, rd, chunk, hw)
		}
	}
}

// movn x{rd}, #0 — all-ones, the VOID sentinel.
func (e *a64Encoder) movAllOnes(st *state, rd int) {
	e.word(st, 0x92800000|uint32(rd))
}

func (e *a64Encoder) movRR(st *state, rd, rm int) {
	if rd == rm {
		return
	}
	// orr rd, xzr, rm
	e.word(st, 0xAA0003E0|uint32(rm)<<16|uint32(rd))
}

func (e *a64Encoder) rrr(st *state, base uint32, rd, rn, rm int) {
	e.word(st, base|uint32(rm)<<16|uint32(rn)<<5|uint32(rd))
}

func (e *a64Encoder) addImm(st *state, rd, rn, imm int) {
	e.word(st, 0x91000000|uint32(imm)<<10|uint32(rn)<<5|uint32(rd))
}

func (e *a64Encoder) subImm(st *state, rd, rn, imm int) {
	e.word(st, 0xD1000000|uint32(imm)<<10|uint32(rn)<<5|uint32(rd))
}

func (e *a64Encoder) cmpRR(st *state, rn, rm int) {
	e.word(st, 0xEB00001F|uint32(rm)<<16|uint32(rn)<<5)
}

// cset rd, cond via csinc rd, xzr, xzr, !cond.
func (e *a64Encoder) cset(st *state, rd int, cond uint32) {
	e.word(st, 0x9A9F07E0|(cond^1)<<12|uint32(rd))
}

func (e *a64Encoder) ldr(st *state, rt, rn, off, size int) {
	switch size {
	case 1:
		e.word(st, 0x39400000|uint32(off)<<10|uint32(rn)<<5|uint32(rt))
	case 2:
		e.word(st, 0x79400000|uint32(off/2)<<10|uint32(rn)<<5|uint32(rt))
	case 4:
		e.word(st, 0xB9400000|uint32(off/4)<<10|uint32(rn)<<5|uint32(rt))
	default:
		e.word(st, 0xF9400000|uint32(off/8)<<10|uint32(rn)<<5|uint32(rt))
	}
}

func (e *a64Encoder) str(st *state, rt, rn, off, size int) {
	switch size {
	case 1:
		e.word(st, 0x39000000|uint32(off)<<10|uint32(rn)<<5|uint32(rt))
	case 2:
		e.word(st, 0x79000000|uint32(off/2)<<10|uint32(rn)<<5|uint32(rt))
	case 4:
		e.word(st, 0xB9000000|uint32(off/4)<<10|uint32(rn)<<5|uint32(rt))
	default:
		e.word(st, 0xF9000000|uint32(off/8)<<10|uint32(rn)<<5|uint32(rt))
	}
}

// frameLoad/frameStore access [FP - off] through the X16 scratch since the
// unsigned-offset forms cannot go below the base.
func (e *a64Encoder) frameLoad(st *state, rt, off int) {
	e.subImm(st, a64X16, a64FP, off)
	e.ldr(st, rt, a64X16, 0, 8)
}

func (e *a64Encoder) frameStore(st *state, rt, off int) {
	e.subImm(st, a64X16, a64FP, off)
	e.str(st, rt, a64X16, 0, 8)
}

// movAbs materializes a symbol address from an inline literal pool:
// ldr rd, #8 ; b #12 ; .quad symbol. The writer patches the literal.
func (e *a64Encoder) movAbs(st *state, rd int, symbol string, addend int64) {
	e.word(st, 0x58000040|uint32(rd)) // ldr rd, [pc, #8]
	e.word(st, 0x14000003)            // b +12
	st.relocs = append(st.relocs, Reloc{Offset: st.buf.Len(), Kind: RelocAbs64, Symbol: symbol, Addend: addend})
	st.buf.U64(0)
}

func (e *a64Encoder) loadValueInto(st *state, fs *funcState, reg int, v *ir.Value) {
	switch v.Kind {
	case ir.ValueConstant, ir.ValueVoidConstant:
		e.movImm64(st, reg, v.Int)
	case ir.ValueStringConst:
		e.movAbs(st, reg, "__rodata", int64(v.Int))
	case ir.ValueFuncRef:
		e.movAbs(st, reg, v.Func.Name, 0)
	default:
		if r, ok := fs.alloc.Reg(v); ok {
			e.movRR(st, reg, r)
		} else if s, ok := fs.alloc.SpillSlot(v); ok {
			e.frameLoad(st, reg, fs.frame.spillOffset(s))
		}
	}
}

func (e *a64Encoder) storeResult(st *state, fs *funcState, ins *ir.Instr, fromReg int) {
	if ins.Result == nil {
		return
	}
	if r, ok := fs.alloc.Reg(ins.Result); ok {
		e.movRR(st, r, fromReg)
	} else if s, ok := fs.alloc.SpillSlot(ins.Result); ok {
		e.frameStore(st, fromReg, fs.frame.spillOffset(s))
	}
}

func (e *a64Encoder) emitStub(st *state) {
	st.asmf("_start:")
	st.callFixups = append(st.callFixups, callFixup{Site: st.buf.Len(), Symbol: "main", Kind: RelocBranch26})
	e.word(st, 0x94000000) // bl main
	// x0 already holds main's return; mov x8, #93 (exit) ; svc #0
	e.movz(st, a64X8, 93, 0)
	e.word(st, 0xD4000001)
}

func (e *a64Encoder) emitPrologue(st *state, fs *funcState) {
	if fs.frame.size > 4095 {
		// Larger frames would need a multi-instruction SP adjustment.
		fs.frame.size = 4095
	}
	e.word(st, 0xA9BF7BFD) // stp x29, x30, [sp, #-16]!
	e.word(st, 0x910003FD) // mov x29, sp
	e.subImm(st, a64SP, a64SP, fs.frame.size)

	for reg, off := range fs.frame.calleeSlots {
		e.frameStore(st, reg, off)
	}

	for i, p := range fs.fn.Params {
		if i >= len(a64RegsFile.Args) {
			break
		}
		src := a64RegsFile.Args[i]
		if r, ok := fs.alloc.Reg(p); ok {
			e.movRR(st, r, src)
		} else if s, ok := fs.alloc.SpillSlot(p); ok {
			e.frameStore(st, src, fs.frame.spillOffset(s))
		}
	}
}

func (e *a64Encoder) emitEpilogue(st *state, fs *funcState) {
	for reg, off := range fs.frame.calleeSlots {
		e.frameLoad(st, reg, off)
	}
	e.word(st, 0x910003BF) // mov sp, x29
	e.word(st, 0xA8C17BFD) // ldp x29, x30, [sp], #16
	e.word(st, 0xD65F03C0) // ret
}

func (e *a64Encoder) branch26(st *state, fs *funcState, block *ir.BasicBlock) {
	fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: block.ID, Kind: a64FixB26})
	e.word(st, 0x14000000)
}

var a64Conds = map[ir.Opcode]uint32{
	ir.EQ: 0x0, ir.NE: 0x1, ir.GE: 0xA, ir.LT: 0xB, ir.GT: 0xC, ir.LE: 0xD,
}

func (e *a64Encoder) emitInstr(st *state, fs *funcState, ins *ir.Instr) error {
	switch ins.Op {
	case ir.NOP:
		return nil

	case ir.ADD, ir.SUB, ir.AND, ir.OR, ir.XOR, ir.SHL, ir.SHR, ir.SAR:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.loadValueInto(st, fs, a64X17, ins.Operands[1])
		var base uint32
		switch ins.Op {
		case ir.ADD:
			base = 0x8B000000
		case ir.SUB:
			base = 0xCB000000
		case ir.AND:
			base = 0x8A000000
		case ir.OR:
			base = 0xAA000000
		case ir.XOR:
			base = 0xCA000000
		case ir.SHL:
			base = 0x9AC02000
		case ir.SHR:
			base = 0x9AC02400
		default:
			base = 0x9AC02800
		}
		e.rrr(st, base, a64X16, a64X16, a64X17)
		e.storeResult(st, fs, ins, a64X16)

	case ir.MUL:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.loadValueInto(st, fs, a64X17, ins.Operands[1])
		e.rrr(st, 0x9B007C00, a64X16, a64X16, a64X17)
		e.storeResult(st, fs, ins, a64X16)

	case ir.DIV, ir.MOD:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.loadValueInto(st, fs, a64X17, ins.Operands[1])
		// cbnz x17, .do ; movn x16, #0 ; b .done
		e.word(st, 0xB5000000|3<<5|a64X17)
		e.movAllOnes(st, a64X16)
		if ins.Op == ir.MOD {
			e.word(st, 0x14000000|3)
			// sdiv x15, x16, x17 ; msub x16, x15, x17, x16
			e.rrr(st, 0x9AC00C00, a64X15, a64X16, a64X17)
			e.word(st, 0x9B008000|uint32(a64X17)<<16|uint32(a64X16)<<10|uint32(a64X15)<<5|uint32(a64X16))
		} else {
			e.word(st, 0x14000000|2)
			e.rrr(st, 0x9AC00C00, a64X16, a64X16, a64X17)
		}
		e.storeResult(st, fs, ins, a64X16)

	case ir.NEG:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.word(st, 0xCB0003E0|uint32(a64X16)<<16|uint32(a64X16))
		e.storeResult(st, fs, ins, a64X16)

	case ir.NOT:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		// orn x16, xzr, x16
		e.word(st, 0xAA2003E0|uint32(a64X16)<<16|uint32(a64X16))
		e.storeResult(st, fs, ins, a64X16)

	case ir.EQ, ir.NE, ir.LT, ir.LE, ir.GT, ir.GE:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.loadValueInto(st, fs, a64X17, ins.Operands[1])
		e.cmpRR(st, a64X16, a64X17)
		e.cset(st, a64X16, a64Conds[ins.Op])
		e.storeResult(st, fs, ins, a64X16)

	case ir.LOAD:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.ldr(st, a64X16, a64X16, 0, loadSize(ins))
		e.storeResult(st, fs, ins, a64X16)

	case ir.STORE:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.loadValueInto(st, fs, a64X17, ins.Operands[1])
		e.str(st, a64X16, a64X17, 0, storeSize(ins))

	case ir.ALLOCA:
		off, ok := fs.frame.allocaOffset[ins]
		if !ok {
			return fmt.Errorf("alloca without frame slot")
		}
		e.subImm(st, a64X16, a64FP, off)
		e.storeResult(st, fs, ins, a64X16)

	case ir.GEP:
		off, err := gepOffset(ins)
		if err != nil {
			return err
		}
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.addImm(st, a64X16, a64X16, off)
		e.storeResult(st, fs, ins, a64X16)

	case ir.ARRAY_GEP:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.loadValueInto(st, fs, a64X17, ins.Operands[1])
		e.movImm64(st, a64X15, uint64(elemSize(ins)))
		// madd x16, x17, x15, x16
		e.word(st, 0x9B000000|uint32(a64X15)<<16|uint32(a64X16)<<10|uint32(a64X17)<<5|uint32(a64X16))
		e.storeResult(st, fs, ins, a64X16)

	case ir.JUMP:
		e.branch26(st, fs, ins.Target1)

	case ir.BRANCH:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: ins.Target1.ID, Kind: a64FixB19})
		e.word(st, 0xB5000000|uint32(a64X16)) // cbnz x16, then
		e.branch26(st, fs, ins.Target2)

	case ir.SWITCH:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		for i, target := range ins.Targets {
			e.loadValueInto(st, fs, a64X17, ins.Operands[i+1])
			e.cmpRR(st, a64X16, a64X17)
			fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: target.ID, Kind: a64FixB19})
			e.word(st, 0x54000000) // b.eq
		}
		e.branch26(st, fs, ins.Target1)

	case ir.RETURN:
		if len(ins.Operands) > 0 {
			e.loadValueInto(st, fs, a64X0, ins.Operands[0])
		}
		e.emitEpilogue(st, fs)

	case ir.CALL:
		for i, arg := range ins.Operands {
			if i >= len(a64RegsFile.Args) {
				return fmt.Errorf("call to %s: more than %d arguments unsupported", ins.Callee.Name, len(a64RegsFile.Args))
			}
			e.loadValueInto(st, fs, a64RegsFile.Args[i], arg)
		}
		st.callFixups = append(st.callFixups, callFixup{Site: st.buf.Len(), Symbol: ins.Callee.Name, Kind: RelocBranch26})
		e.word(st, 0x94000000)
		e.storeResult(st, fs, ins, a64X0)

	case ir.CALL_INDIRECT:
		args := ins.Operands[1:]
		for i, arg := range args {
			if i >= len(a64RegsFile.Args) {
				return fmt.Errorf("indirect call: more than %d arguments unsupported", len(a64RegsFile.Args))
			}
			e.loadValueInto(st, fs, a64RegsFile.Args[i], arg)
		}
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.word(st, 0xD63F0000|uint32(a64X16)<<5) // blr x16
		e.storeResult(st, fs, ins, a64X0)

	case ir.SYSCALL:
		for i, arg := range ins.Operands {
			if i >= len(a64RegsFile.SyscallArgs) {
				return fmt.Errorf("syscall with more than %d operands", len(a64RegsFile.SyscallArgs))
			}
			e.loadValueInto(st, fs, a64RegsFile.SyscallArgs[i], arg)
		}
		e.word(st, 0xD4000001)
		e.storeResult(st, fs, ins, a64X0)

	case ir.ZEXT, ir.TRUNC:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		width := widthOf(ins, ins.Op == ir.ZEXT)
		switch width {
		case 1:
			e.word(st, 0xD3401C00|uint32(a64X16)<<5|uint32(a64X16)) // uxtb
		case 2:
			e.word(st, 0xD3403C00|uint32(a64X16)<<5|uint32(a64X16)) // uxth
		case 4:
			e.word(st, 0x2A0003E0|uint32(a64X16)<<16|uint32(a64X16)) // mov w16, w16
		}
		e.storeResult(st, fs, ins, a64X16)

	case ir.SEXT:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		switch ins.Operands[0].Type.Size() {
		case 1:
			e.word(st, 0x93401C00|uint32(a64X16)<<5|uint32(a64X16)) // sxtb
		case 2:
			e.word(st, 0x93403C00|uint32(a64X16)<<5|uint32(a64X16)) // sxth
		case 4:
			e.word(st, 0x93407C00|uint32(a64X16)<<5|uint32(a64X16)) // sxtw
		}
		e.storeResult(st, fs, ins, a64X16)

	case ir.VOID_TEST:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.word(st, 0xD37FFC00|uint32(a64X16)<<5|uint32(a64X16)) // lsr x16, x16, #63
		e.storeResult(st, fs, ins, a64X16)

	case ir.VOID_PROP:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		// tbz x16, #63, .skip ; x0 = VOID ; epilogue
		site := st.buf.Len()
		e.word(st, 0xB6F80000|uint32(a64X16))
		e.movAllOnes(st, a64X0)
		e.emitEpilogue(st, fs)
		words := (st.buf.Len() - site) / 4
		st.buf.PatchU32(site, 0xB6F80000|uint32(words)<<5|uint32(a64X16))
		e.storeResult(st, fs, ins, a64X16)

	case ir.VOID_ASSERT:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		// tbz x16, #63, +2 ; brk #0
		e.word(st, 0xB6F80000|2<<5|uint32(a64X16))
		e.word(st, 0xD4200000)
		e.storeResult(st, fs, ins, a64X16)

	case ir.VOID_COALESCE:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.loadValueInto(st, fs, a64X17, ins.Operands[1])
		// tbz x16, #63, +2 ; mov x16, x17
		e.word(st, 0xB6F80000|2<<5|uint32(a64X16))
		e.movRR(st, a64X16, a64X17)
		e.storeResult(st, fs, ins, a64X16)

	case ir.CAP_LOAD:
		e.loadValueInto(st, fs, a64X16, ins.Operands[0])
		e.loadValueInto(st, fs, a64X17, ins.Operands[1])
		e.rrr(st, 0x8B000000, a64X16, a64X16, a64X17)
		e.ldr(st, a64X16, a64X16, 0, loadSize(ins))
		e.storeResult(st, fs, ins, a64X16)

	case ir.CAP_STORE:
		e.loadValueInto(st, fs, a64X15, ins.Operands[0]) // value
		e.loadValueInto(st, fs, a64X16, ins.Operands[1]) // base
		e.loadValueInto(st, fs, a64X17, ins.Operands[2]) // offset
		e.rrr(st, 0x8B000000, a64X16, a64X16, a64X17)
		e.str(st, a64X15, a64X16, 0, 8)

	case ir.SUBSTRATE_ENTER:
		// x27 carries the active substrate context: kind+1, 0 when outside.
		e.movz(st, a64X27, uint16(ins.Field+1), 0)

	case ir.SUBSTRATE_EXIT:
		e.movz(st, a64X27, 0, 0)

	case ir.UNREACHABLE:
		e.word(st, 0xD4200000) // brk #0

	default:
		return fmt.Errorf("unsupported opcode %s on aarch64", ins.Op)
	}
	return nil
}

func (e *a64Encoder) patchBranch(st *state, fs *funcState, f branchFixup, target int) error {
	delta := target - f.Site
	if delta%4 != 0 {
		return fmt.Errorf("misaligned branch target")
	}
	words := delta / 4
	word := st.buf.ReadU32(f.Site)
	switch f.Kind {
	case a64FixB26:
		if words < -(1<<25) || words >= 1<<25 {
			return fmt.Errorf("branch displacement exceeds ±128MiB")
		}
		word |= uint32(words) & 0x03FFFFFF
	case a64FixB19:
		if words < -(1<<18) || words >= 1<<18 {
			return fmt.Errorf("conditional branch displacement exceeds ±1MiB")
		}
		word |= (uint32(words) & 0x7FFFF) << 5
	}
	st.buf.PatchU32(f.Site, word)
	return nil
}

func (e *a64Encoder) patchCall(st *state, c callFixup, target int) error {
	words := (target - c.Site) / 4
	if words < -(1<<25) || words >= 1<<25 {
		return fmt.Errorf("call displacement exceeds ±128MiB")
	}
	word := st.buf.ReadU32(c.Site)
	word |= uint32(words) & 0x03FFFFFF
	st.buf.PatchU32(c.Site, word)
	return nil
}

// widthOf picks the conversion width: the destination for zext/trunc-to,
// the source width otherwise.
func widthOf(ins *ir.Instr, useDest bool) int {
	t := ins.Operands[0].Type
	if useDest && ins.Result != nil {
		t = ins.Result.Type
	}
	if ins.Op == ir.TRUNC && ins.Result != nil {
		t = ins.Result.Type
	}
	size := t.Size()
	if size == 0 || size > 8 {
		return 8
	}
	return size
}
