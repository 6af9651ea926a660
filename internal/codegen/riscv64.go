package codegen

import (
	"fmt"

	"seraphic/internal/ir"
)

// RISC-V register numbers. T0/T1/T2 are compiler scratch, S0 is the frame
// pointer, RA the link register.
const (
	rvZero = 0
	rvRA   = 1
	rvSP   = 2
	rvT0   = 5
	rvT1   = 6
	rvT2   = 7
	rvS0   = 8
	rvA0   = 10
	rvA7   = 17
)

var rv64RegsFile = &RegisterFile{
	CallerSaved: []int{28, 29, 30, 31},                     // t3..t6
	CalleeSaved: []int{9, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27}, // s1..s11
	Args:        []int{10, 11, 12, 13, 14, 15, 16, 17},
	SyscallArgs: []int{17, 10, 11, 12, 13, 14, 15}, // a7 carries the number
	RetReg:      rvA0,
	Scratch:     []int{rvT0, rvT1, rvT2},
	FP:          rvS0,
	SP:          rvSP,
}

const (
	rvFixJal = iota
	rvFixBranch
)

type rv64Encoder struct{}

func (e *rv64Encoder) target() Target         { return RISCV64 }
func (e *rv64Encoder) regFile() *RegisterFile { return rv64RegsFile }

// Instruction formats.

func (e *rv64Encoder) rtype(st *state, f7, rs2, rs1, f3, rd int) {
	st.buf.U32(uint32(f7)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(f3)<<12 | uint32(rd)<<7 | 0x33)
}

func (e *rv64Encoder) itype(st *state, imm int, rs1, f3, rd, op int) {
	st.buf.U32(uint32(imm&0xFFF)<<20 | uint32(rs1)<<15 | uint32(f3)<<12 | uint32(rd)<<7 | uint32(op))
}

func (e *rv64Encoder) stype(st *state, imm int, rs2, rs1, f3 int) {
	st.buf.U32(uint32((imm>>5)&0x7F)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		uint32(f3)<<12 | uint32(imm&0x1F)<<7 | 0x23)
}

func btypeImmBits(imm int) uint32 {
	return uint32((imm>>12)&1)<<31 | uint32((imm>>5)&0x3F)<<25 |
		uint32((imm>>1)&0xF)<<8 | uint32((imm>>11)&1)<<7
}

func jalImmBits(imm int) uint32 {
	return uint32((imm>>20)&1)<<31 | uint32((imm>>1)&0x3FF)<<21 |
		uint32((imm>>11)&1)<<20 | uint32((imm>>12)&0xFF)<<12
}

func (e *rv64Encoder) btype(st *state, imm, rs2, rs1, f3 int) {
	st.buf.U32(btypeImmBits(imm) | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(f3)<<12 | 0x63)
}

func (e *rv64Encoder) jal(st *state, rd, imm int) {
	st.buf.U32(jalImmBits(imm) | uint32(rd)<<7 | 0x6F)
}

func (e *rv64Encoder) addi(st *state, rd, rs1, imm int) {
	e.itype(st, imm, rs1, 0, rd, 0x13)
}

func (e *rv64Encoder) movRR(st *state, rd, rs int) {
	if rd == rs {
		return
	}
	e.addi(st, rd, rs, 0)
}

// loadImm64 materializes an arbitrary 64-bit constant. Small values use a
// single addi; everything else is built top byte first through shift/or
// steps, which keeps the sequence correct for any bit pattern.
func (e *rv64Encoder) loadImm64(st *state, rd int, v uint64) {
	if sv := int64(v); sv >= -2048 && sv <= 2047 {
		e.addi(st, rd, rvZero, int(sv))
		return
	}
	e.addi(st, rd, rvZero, int((v>>56)&0xFF))
	for shift := 48; shift >= 0; shift -= 8 {
		// slli rd, rd, 8 ; ori rd, rd, byte
		e.itype(st, 8, rd, 1, rd, 0x13)
		e.itype(st, int((v>>uint(shift))&0xFF), rd, 6, rd, 0x13)
	}
}

func (e *rv64Encoder) ld(st *state, rd, rs1, imm, size int) {
	switch size {
	case 1:
		e.itype(st, imm, rs1, 4, rd, 0x03) // lbu
	case 2:
		e.itype(st, imm, rs1, 5, rd, 0x03) // lhu
	case 4:
		e.itype(st, imm, rs1, 6, rd, 0x03) // lwu
	default:
		e.itype(st, imm, rs1, 3, rd, 0x03) // ld
	}
}

func (e *rv64Encoder) sd(st *state, rs2, rs1, imm, size int) {
	switch size {
	case 1:
		e.stype(st, imm, rs2, rs1, 0)
	case 2:
		e.stype(st, imm, rs2, rs1, 1)
	case 4:
		e.stype(st, imm, rs2, rs1, 2)
	default:
		e.stype(st, imm, rs2, rs1, 3)
	}
}

func (e *rv64Encoder) frameLoad(st *state, rd, off int) {
	e.ld(st, rd, rvS0, -off, 8)
}

func (e *rv64Encoder) frameStore(st *state, rs, off int) {
	e.sd(st, rs, rvS0, -off, 8)
}

// movAbs loads a symbol address from an inline literal:
// auipc rd, 0 ; ld rd, 12(rd) ; jal x0, +12 ; .quad symbol.
func (e *rv64Encoder) movAbs(st *state, rd int, symbol string, addend int64) {
	st.buf.U32(uint32(rd)<<7 | 0x17) // auipc rd, 0
	e.itype(st, 12, rd, 3, rd, 0x03) // ld rd, 12(rd)
	e.jal(st, rvZero, 12)
	st.relocs = append(st.relocs, Reloc{Offset: st.buf.Len(), Kind: RelocAbs64, Symbol: symbol, Addend: addend})
	st.buf.U64(0)
}

func (e *rv64Encoder) loadValueInto(st *state, fs *funcState, reg int, v *ir.Value) {
	switch v.Kind {
	case ir.ValueConstant, ir.ValueVoidConstant:
		e.loadImm64(st, reg, v.Int)
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

func (e *rv64Encoder) storeResult(st *state, fs *funcState, ins *ir.Instr, fromReg int) {
	if ins.Result == nil {
		return
	}
	if r, ok := fs.alloc.Reg(ins.Result); ok {
		e.movRR(st, r, fromReg)
	} else if s, ok := fs.alloc.SpillSlot(ins.Result); ok {
		e.frameStore(st, fromReg, fs.frame.spillOffset(s))
	}
}

func (e *rv64Encoder) emitStub(st *state) {
	st.asmf("_start:")
	st.callFixups = append(st.callFixups, callFixup{Site: st.buf.Len(), Symbol: "main", Kind: RelocJAL})
	e.jal(st, rvRA, 0)
	// a0 already holds main's return; li a7, 93 (exit) ; ecall
	e.addi(st, rvA7, rvZero, 93)
	st.buf.U32(0x73)
}

func (e *rv64Encoder) emitPrologue(st *state, fs *funcState) {
	size := fs.frame.size
	if size > 2032 {
		fs.frame.size = 2032
		size = 2032
	}
	e.addi(st, rvSP, rvSP, -size)
	e.sd(st, rvRA, rvSP, size-8, 8)
	e.sd(st, rvS0, rvSP, size-16, 8)
	e.addi(st, rvS0, rvSP, size)

	for reg, off := range fs.frame.calleeSlots {
		e.frameStore(st, reg, off)
	}

	for i, p := range fs.fn.Params {
		if i >= len(rv64RegsFile.Args) {
			break
		}
		src := rv64RegsFile.Args[i]
		if r, ok := fs.alloc.Reg(p); ok {
			e.movRR(st, r, src)
		} else if s, ok := fs.alloc.SpillSlot(p); ok {
			e.frameStore(st, src, fs.frame.spillOffset(s))
		}
	}
}

func (e *rv64Encoder) emitEpilogue(st *state, fs *funcState) {
	for reg, off := range fs.frame.calleeSlots {
		e.frameLoad(st, reg, off)
	}
	e.ld(st, rvRA, rvS0, -8, 8)
	e.addi(st, rvSP, rvS0, 0)
	e.ld(st, rvS0, rvSP, -16, 8)
	e.itype(st, 0, rvRA, 0, rvZero, 0x67) // jalr x0, ra, 0
}

func (e *rv64Encoder) emitInstr(st *state, fs *funcState, ins *ir.Instr) error {
	switch ins.Op {
	case ir.NOP:
		return nil

	case ir.ADD, ir.SUB, ir.MUL, ir.AND, ir.OR, ir.XOR, ir.SHL, ir.SHR, ir.SAR:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.loadValueInto(st, fs, rvT1, ins.Operands[1])
		switch ins.Op {
		case ir.ADD:
			e.rtype(st, 0, rvT1, rvT0, 0, rvT0)
		case ir.SUB:
			e.rtype(st, 0x20, rvT1, rvT0, 0, rvT0)
		case ir.MUL:
			e.rtype(st, 1, rvT1, rvT0, 0, rvT0)
		case ir.AND:
			e.rtype(st, 0, rvT1, rvT0, 7, rvT0)
		case ir.OR:
			e.rtype(st, 0, rvT1, rvT0, 6, rvT0)
		case ir.XOR:
			e.rtype(st, 0, rvT1, rvT0, 4, rvT0)
		case ir.SHL:
			e.rtype(st, 0, rvT1, rvT0, 1, rvT0)
		case ir.SHR:
			e.rtype(st, 0, rvT1, rvT0, 5, rvT0)
		default:
			e.rtype(st, 0x20, rvT1, rvT0, 5, rvT0)
		}
		e.storeResult(st, fs, ins, rvT0)

	case ir.DIV, ir.MOD:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.loadValueInto(st, fs, rvT1, ins.Operands[1])
		// bne t1, x0, .do ; li t0, -1 ; j .done
		e.btype(st, 12, rvZero, rvT1, 1)
		e.addi(st, rvT0, rvZero, -1)
		e.jal(st, rvZero, 8)
		if ins.Op == ir.DIV {
			e.rtype(st, 1, rvT1, rvT0, 4, rvT0)
		} else {
			e.rtype(st, 1, rvT1, rvT0, 6, rvT0)
		}
		e.storeResult(st, fs, ins, rvT0)

	case ir.NEG:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.rtype(st, 0x20, rvT0, rvZero, 0, rvT0) // sub t0, x0, t0
		e.storeResult(st, fs, ins, rvT0)

	case ir.NOT:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.itype(st, -1, rvT0, 4, rvT0, 0x13) // xori t0, t0, -1
		e.storeResult(st, fs, ins, rvT0)

	case ir.EQ, ir.NE, ir.LT, ir.LE, ir.GT, ir.GE:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.loadValueInto(st, fs, rvT1, ins.Operands[1])
		switch ins.Op {
		case ir.EQ:
			e.rtype(st, 0, rvT1, rvT0, 4, rvT0)  // xor
			e.itype(st, 1, rvT0, 3, rvT0, 0x13)  // sltiu t0, t0, 1
		case ir.NE:
			e.rtype(st, 0, rvT1, rvT0, 4, rvT0)
			e.rtype(st, 0, rvT0, rvZero, 3, rvT0) // sltu t0, x0, t0
		case ir.LT:
			e.rtype(st, 0, rvT1, rvT0, 2, rvT0)
		case ir.GE:
			e.rtype(st, 0, rvT1, rvT0, 2, rvT0)
			e.itype(st, 1, rvT0, 4, rvT0, 0x13) // xori
		case ir.GT:
			e.rtype(st, 0, rvT0, rvT1, 2, rvT0) // slt t0, t1, t0
		default: // LE
			e.rtype(st, 0, rvT0, rvT1, 2, rvT0)
			e.itype(st, 1, rvT0, 4, rvT0, 0x13)
		}
		e.storeResult(st, fs, ins, rvT0)

	case ir.LOAD:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.ld(st, rvT0, rvT0, 0, loadSize(ins))
		e.storeResult(st, fs, ins, rvT0)

	case ir.STORE:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.loadValueInto(st, fs, rvT1, ins.Operands[1])
		e.sd(st, rvT0, rvT1, 0, storeSize(ins))

	case ir.ALLOCA:
		off, ok := fs.frame.allocaOffset[ins]
		if !ok {
			return fmt.Errorf("alloca without frame slot")
		}
		e.addi(st, rvT0, rvS0, -off)
		e.storeResult(st, fs, ins, rvT0)

	case ir.GEP:
		off, err := gepOffset(ins)
		if err != nil {
			return err
		}
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.addi(st, rvT0, rvT0, off)
		e.storeResult(st, fs, ins, rvT0)

	case ir.ARRAY_GEP:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.loadValueInto(st, fs, rvT1, ins.Operands[1])
		e.loadImm64(st, rvT2, uint64(elemSize(ins)))
		e.rtype(st, 1, rvT2, rvT1, 0, rvT1) // mul t1, t1, t2
		e.rtype(st, 0, rvT1, rvT0, 0, rvT0) // add t0, t0, t1
		e.storeResult(st, fs, ins, rvT0)

	case ir.JUMP:
		fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: ins.Target1.ID, Kind: rvFixJal})
		e.jal(st, rvZero, 0)

	case ir.BRANCH:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: ins.Target1.ID, Kind: rvFixBranch})
		e.btype(st, 0, rvZero, rvT0, 1) // bne t0, x0, then
		fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: ins.Target2.ID, Kind: rvFixJal})
		e.jal(st, rvZero, 0)

	case ir.SWITCH:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		for i, target := range ins.Targets {
			e.loadValueInto(st, fs, rvT1, ins.Operands[i+1])
			fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: target.ID, Kind: rvFixBranch})
			e.btype(st, 0, rvT1, rvT0, 0) // beq t0, t1, case
		}
		fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: ins.Target1.ID, Kind: rvFixJal})
		e.jal(st, rvZero, 0)

	case ir.RETURN:
		if len(ins.Operands) > 0 {
			e.loadValueInto(st, fs, rvA0, ins.Operands[0])
		}
		e.emitEpilogue(st, fs)

	case ir.CALL:
		for i, arg := range ins.Operands {
			if i >= len(rv64RegsFile.Args) {
				return fmt.Errorf("call to %s: more than %d arguments unsupported", ins.Callee.Name, len(rv64RegsFile.Args))
			}
			e.loadValueInto(st, fs, rv64RegsFile.Args[i], arg)
		}
		st.callFixups = append(st.callFixups, callFixup{Site: st.buf.Len(), Symbol: ins.Callee.Name, Kind: RelocJAL})
		e.jal(st, rvRA, 0)
		e.storeResult(st, fs, ins, rvA0)

	case ir.CALL_INDIRECT:
		args := ins.Operands[1:]
		for i, arg := range args {
			if i >= len(rv64RegsFile.Args) {
				return fmt.Errorf("indirect call: more than %d arguments unsupported", len(rv64RegsFile.Args))
			}
			e.loadValueInto(st, fs, rv64RegsFile.Args[i], arg)
		}
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.itype(st, 0, rvT0, 0, rvRA, 0x67) // jalr ra, t0, 0
		e.storeResult(st, fs, ins, rvA0)

	case ir.SYSCALL:
		for i, arg := range ins.Operands {
			if i >= len(rv64RegsFile.SyscallArgs) {
				return fmt.Errorf("syscall with more than %d operands", len(rv64RegsFile.SyscallArgs))
			}
			e.loadValueInto(st, fs, rv64RegsFile.SyscallArgs[i], arg)
		}
		st.buf.U32(0x73)
		e.storeResult(st, fs, ins, rvA0)

	case ir.ZEXT, ir.TRUNC:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		switch widthOf(ins, ins.Op == ir.ZEXT) {
		case 1:
			e.itype(st, 0xFF, rvT0, 7, rvT0, 0x13) // andi
		case 2:
			e.itype(st, 48, rvT0, 1, rvT0, 0x13)
			e.itype(st, 48, rvT0, 5, rvT0, 0x13)
		case 4:
			e.itype(st, 32, rvT0, 1, rvT0, 0x13)
			e.itype(st, 32, rvT0, 5, rvT0, 0x13)
		}
		e.storeResult(st, fs, ins, rvT0)

	case ir.SEXT:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		switch ins.Operands[0].Type.Size() {
		case 1:
			e.itype(st, 56, rvT0, 1, rvT0, 0x13)
			e.itype(st, 56|0x400, rvT0, 5, rvT0, 0x13) // srai
		case 2:
			e.itype(st, 48, rvT0, 1, rvT0, 0x13)
			e.itype(st, 48|0x400, rvT0, 5, rvT0, 0x13)
		case 4:
			e.itype(st, 0, rvT0, 0, rvT0, 0x1B) // addiw sign-extends
		}
		e.storeResult(st, fs, ins, rvT0)

	case ir.VOID_TEST:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.itype(st, 63, rvT0, 5, rvT0, 0x13) // srli t0, t0, 63
		e.storeResult(st, fs, ins, rvT0)

	case ir.VOID_PROP:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.itype(st, 63, rvT0, 5, rvT1, 0x13) // srli t1, t0, 63
		site := st.buf.Len()
		e.btype(st, 0, rvZero, rvT1, 0) // beq t1, x0, .skip
		e.addi(st, rvA0, rvZero, -1)
		e.emitEpilogue(st, fs)
		delta := st.buf.Len() - site
		word := st.buf.ReadU32(site) | btypeImmBits(delta)
		st.buf.PatchU32(site, word)
		e.storeResult(st, fs, ins, rvT0)

	case ir.VOID_ASSERT:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.itype(st, 63, rvT0, 5, rvT1, 0x13)
		e.btype(st, 8, rvZero, rvT1, 0) // beq t1, x0, +8
		st.buf.U32(0x00100073)          // ebreak
		e.storeResult(st, fs, ins, rvT0)

	case ir.VOID_COALESCE:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.loadValueInto(st, fs, rvT2, ins.Operands[1])
		e.itype(st, 63, rvT0, 5, rvT1, 0x13)
		e.btype(st, 8, rvZero, rvT1, 0)
		e.addi(st, rvT0, rvT2, 0)
		e.storeResult(st, fs, ins, rvT0)

	case ir.CAP_LOAD:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0])
		e.loadValueInto(st, fs, rvT1, ins.Operands[1])
		e.rtype(st, 0, rvT1, rvT0, 0, rvT0)
		e.ld(st, rvT0, rvT0, 0, loadSize(ins))
		e.storeResult(st, fs, ins, rvT0)

	case ir.CAP_STORE:
		e.loadValueInto(st, fs, rvT0, ins.Operands[0]) // value
		e.loadValueInto(st, fs, rvT1, ins.Operands[1]) // base
		e.loadValueInto(st, fs, rvT2, ins.Operands[2]) // offset
		e.rtype(st, 0, rvT2, rvT1, 0, rvT1)
		e.sd(st, rvT0, rvT1, 0, 8)

	case ir.SUBSTRATE_ENTER, ir.SUBSTRATE_EXIT:
		// Substrate context register is vendor-assigned on riscv64.
		e.addi(st, rvZero, rvZero, 0)

	case ir.UNREACHABLE:
		st.buf.U32(0x00100073)

	default:
		return fmt.Errorf("unsupported opcode %s on riscv64", ins.Op)
	}
	return nil
}

func (e *rv64Encoder) patchBranch(st *state, fs *funcState, f branchFixup, target int) error {
	delta := target - f.Site
	word := st.buf.ReadU32(f.Site)
	switch f.Kind {
	case rvFixJal:
		if delta < -(1<<20) || delta >= 1<<20 {
			return fmt.Errorf("jal displacement exceeds ±1MiB")
		}
		word |= jalImmBits(delta)
	case rvFixBranch:
		if delta < -(1<<12) || delta >= 1<<12 {
			return fmt.Errorf("branch displacement exceeds ±4KiB")
		}
		word |= btypeImmBits(delta)
	}
	st.buf.PatchU32(f.Site, word)
	return nil
}

func (e *rv64Encoder) patchCall(st *state, c callFixup, target int) error {
	delta := target - c.Site
	if delta < -(1<<20) || delta >= 1<<20 {
		return fmt.Errorf("call displacement exceeds ±1MiB")
	}
	word := st.buf.ReadU32(c.Site) | jalImmBits(delta)
	st.buf.PatchU32(c.Site, word)
	return nil
}
