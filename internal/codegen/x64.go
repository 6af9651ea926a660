package codegen

import (
	"fmt"

	"seraphic/internal/ir"
)

// x86-64 register encodings.
const (
	rax = 0
	rcx = 1
	rdx = 2
	rbx = 3
	rsp = 4
	rbp = 5
	rsi = 6
	rdi = 7
	r8  = 8
	r9  = 9
	r10 = 10
	r11 = 11
	r12 = 12
	r13 = 13
	r14 = 14
	r15 = 15
)

var x64Regs = &RegisterFile{
	CallerSaved: []int{r10, r11},
	CalleeSaved: []int{rbx, r12, r13, r14, r15},
	Args:        []int{rdi, rsi, rdx, rcx, r8, r9},
	SyscallArgs: []int{rax, rdi, rsi, rdx, r10, r8, r9},
	RetReg:      rax,
	Scratch:     []int{rax, rcx, rdx},
	FP:          rbp,
	SP:          rsp,
}

// x64 branch fixups always patch a rel32 displacement at Site.
const x64FixRel32 = 0

type x64Encoder struct{}

func (e *x64Encoder) target() Target         { return X64 }
func (e *x64Encoder) regFile() *RegisterFile { return x64Regs }

// Byte-level helpers.

func x64Rex(reg, rm int) byte {
	return 0x48 | byte((reg>>3)<<2) | byte(rm>>3)
}

func x64ModRM(mod, reg, rm int) byte {
	return byte(mod<<6 | (reg&7)<<3 | rm&7)
}

// rr emits a REX.W two-register instruction: op reg, rm per the opcode's
// own direction.
func (e *x64Encoder) rr(st *state, op byte, reg, rm int) {
	st.buf.BytesRaw(x64Rex(reg, rm), op, x64ModRM(3, reg, rm))
}

func (e *x64Encoder) movRR(st *state, dst, src int) {
	if dst == src {
		return
	}
	e.rr(st, 0x89, src, dst)
}

func (e *x64Encoder) movImm64(st *state, reg int, v uint64) {
	st.buf.BytesRaw(0x48|byte(reg>>3), 0xB8|byte(reg&7))
	st.buf.U64(v)
}

// movAbs64 materializes a symbol's virtual address; the 8-byte immediate is
// patched by the image writer.
func (e *x64Encoder) movAbs64(st *state, reg int, symbol string, addend int64) {
	st.buf.BytesRaw(0x48|byte(reg>>3), 0xB8|byte(reg&7))
	st.relocs = append(st.relocs, Reloc{Offset: st.buf.Len(), Kind: RelocAbs64, Symbol: symbol, Addend: addend})
	st.buf.U64(0)
}

// frameDisp emits the [rbp - off] addressing bytes after an opcode.
func (e *x64Encoder) frameDisp(st *state, reg int, off int) {
	st.buf.Byte(x64ModRM(2, reg, rbp))
	st.buf.U32(uint32(int32(-off)))
}

func (e *x64Encoder) movFromFrame(st *state, dst, off int) {
	st.buf.BytesRaw(x64Rex(dst, rbp), 0x8B)
	e.frameDisp(st, dst, off)
}

func (e *x64Encoder) movToFrame(st *state, off, src int) {
	st.buf.BytesRaw(x64Rex(src, rbp), 0x89)
	e.frameDisp(st, src, off)
}

func (e *x64Encoder) leaFrame(st *state, dst, off int) {
	st.buf.BytesRaw(x64Rex(dst, rbp), 0x8D)
	e.frameDisp(st, dst, off)
}

// memOperand emits a [base] (disp8=0) memory operand, adding the SIB byte
// required when the base encodes like RSP/R12.
func (e *x64Encoder) memOperand(st *state, reg, base int) {
	st.buf.Byte(x64ModRM(1, reg, base))
	if base&7 == rsp {
		st.buf.Byte(0x24)
	}
	st.buf.Byte(0)
}

// loadMem loads size bytes from [base] into dst, zero- or sign-neutral at
// widths below 8 bytes (sub-word values are zero-extended).
func (e *x64Encoder) loadMem(st *state, dst, base, size int) {
	switch size {
	case 1:
		st.buf.BytesRaw(x64Rex(dst, base), 0x0F, 0xB6)
	case 2:
		st.buf.BytesRaw(x64Rex(dst, base), 0x0F, 0xB7)
	case 4:
		// 32-bit mov zero-extends to 64.
		if dst >= 8 || base >= 8 {
			st.buf.Byte(0x40 | byte((dst>>3)<<2) | byte(base>>3))
		}
		st.buf.Byte(0x8B)
	default:
		st.buf.BytesRaw(x64Rex(dst, base), 0x8B)
	}
	e.memOperand(st, dst, base)
}

func (e *x64Encoder) storeMem(st *state, base, src, size int) {
	switch size {
	case 1:
		st.buf.BytesRaw(0x40|byte((src>>3)<<2)|byte(base>>3), 0x88)
	case 2:
		st.buf.Byte(0x66)
		if src >= 8 || base >= 8 {
			st.buf.Byte(0x40 | byte((src>>3)<<2) | byte(base>>3))
		}
		st.buf.Byte(0x89)
	case 4:
		if src >= 8 || base >= 8 {
			st.buf.Byte(0x40 | byte((src>>3)<<2) | byte(base>>3))
		}
		st.buf.Byte(0x89)
	default:
		st.buf.BytesRaw(x64Rex(src, base), 0x89)
	}
	e.memOperand(st, src, base)
}

// loadValueInto gets an SSA value into a specific physical register.
func (e *x64Encoder) loadValueInto(st *state, fs *funcState, reg int, v *ir.Value) {
	switch v.Kind {
	case ir.ValueConstant, ir.ValueVoidConstant:
		e.movImm64(st, reg, v.Int)
	case ir.ValueStringConst:
		e.movAbs64(st, reg, "__rodata", int64(v.Int))
	case ir.ValueFuncRef:
		e.movAbs64(st, reg, v.Func.Name, 0)
	default:
		if r, ok := fs.alloc.Reg(v); ok {
			e.movRR(st, reg, r)
		} else if s, ok := fs.alloc.SpillSlot(v); ok {
			e.movFromFrame(st, reg, fs.frame.spillOffset(s))
		}
	}
}

func (e *x64Encoder) storeResult(st *state, fs *funcState, ins *ir.Instr, fromReg int) {
	if ins.Result == nil {
		return
	}
	if r, ok := fs.alloc.Reg(ins.Result); ok {
		e.movRR(st, r, fromReg)
	} else if s, ok := fs.alloc.SpillSlot(ins.Result); ok {
		e.movToFrame(st, fs.frame.spillOffset(s), fromReg)
	}
}

func (e *x64Encoder) emitStub(st *state) {
	st.asmf("_start:")
	// call main (patched once main is emitted; zero for an empty module)
	st.buf.Byte(0xE8)
	st.callFixups = append(st.callFixups, callFixup{Site: st.buf.Len(), Symbol: "main", Kind: RelocCallRel32})
	st.buf.U32(0)
	// mov rdi, rax ; main's return value becomes the exit status
	e.rr(st, 0x89, rax, rdi)
	// mov eax, 60 (SYS_exit) ; syscall
	st.buf.Byte(0xB8)
	st.buf.U32(60)
	st.buf.BytesRaw(0x0F, 0x05)
}

func (e *x64Encoder) emitPrologue(st *state, fs *funcState) {
	// push rbp ; mov rbp, rsp ; sub rsp, frame
	st.buf.Byte(0x55)
	st.buf.BytesRaw(0x48, 0x89, 0xE5)
	st.buf.BytesRaw(0x48, 0x81, 0xEC)
	st.buf.U32(uint32(fs.frame.size))

	for reg, off := range fs.frame.calleeSlots {
		e.movToFrame(st, off, reg)
	}

	for i, p := range fs.fn.Params {
		if i >= len(x64Regs.Args) {
			break // overflow params stay in their stack homes
		}
		src := x64Regs.Args[i]
		if r, ok := fs.alloc.Reg(p); ok {
			e.movRR(st, r, src)
		} else if s, ok := fs.alloc.SpillSlot(p); ok {
			e.movToFrame(st, fs.frame.spillOffset(s), src)
		}
	}
}

func (e *x64Encoder) emitEpilogue(st *state, fs *funcState) {
	for reg, off := range fs.frame.calleeSlots {
		e.movFromFrame(st, reg, off)
	}
	// mov rsp, rbp ; pop rbp ; ret
	st.buf.BytesRaw(0x48, 0x89, 0xEC, 0x5D, 0xC3)
}

func (e *x64Encoder) branchFixup(st *state, fs *funcState, block *ir.BasicBlock) {
	fs.fixups = append(fs.fixups, branchFixup{Site: st.buf.Len(), BlockID: block.ID, Kind: x64FixRel32})
	st.buf.U32(0)
}

func (e *x64Encoder) emitInstr(st *state, fs *funcState, ins *ir.Instr) error {
	b := st.buf
	switch ins.Op {
	case ir.NOP:
		return nil

	case ir.ADD, ir.SUB, ir.AND, ir.OR, ir.XOR:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadValueInto(st, fs, rcx, ins.Operands[1])
		var op byte
		switch ins.Op {
		case ir.ADD:
			op = 0x01
		case ir.SUB:
			op = 0x29
		case ir.AND:
			op = 0x21
		case ir.OR:
			op = 0x09
		default:
			op = 0x31
		}
		e.rr(st, op, rcx, rax)
		e.storeResult(st, fs, ins, rax)

	case ir.MUL:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadValueInto(st, fs, rcx, ins.Operands[1])
		// imul rax, rcx
		b.BytesRaw(0x48, 0x0F, 0xAF, 0xC1)
		e.storeResult(st, fs, ins, rax)

	case ir.DIV, ir.MOD:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadValueInto(st, fs, rcx, ins.Operands[1])
		// test rcx, rcx ; jnz .do ; mov rax, -1 ; jmp .done
		b.BytesRaw(0x48, 0x85, 0xC9)
		b.BytesRaw(0x75, 0x09)
		b.BytesRaw(0x48, 0xC7, 0xC0, 0xFF, 0xFF, 0xFF, 0xFF)
		if ins.Op == ir.MOD {
			b.BytesRaw(0xEB, 0x08)
		} else {
			b.BytesRaw(0xEB, 0x05)
		}
		// .do: cqo ; idiv rcx
		b.BytesRaw(0x48, 0x99)
		b.BytesRaw(0x48, 0xF7, 0xF9)
		if ins.Op == ir.MOD {
			// mov rax, rdx
			b.BytesRaw(0x48, 0x89, 0xD0)
		}
		e.storeResult(st, fs, ins, rax)

	case ir.NEG, ir.NOT:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		if ins.Op == ir.NEG {
			b.BytesRaw(0x48, 0xF7, 0xD8)
		} else {
			b.BytesRaw(0x48, 0xF7, 0xD0)
		}
		e.storeResult(st, fs, ins, rax)

	case ir.SHL, ir.SHR, ir.SAR:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadValueInto(st, fs, rcx, ins.Operands[1])
		var ext byte
		switch ins.Op {
		case ir.SHL:
			ext = 4
		case ir.SHR:
			ext = 5
		default:
			ext = 7
		}
		b.BytesRaw(0x48, 0xD3, x64ModRM(3, int(ext), rax))
		e.storeResult(st, fs, ins, rax)

	case ir.EQ, ir.NE, ir.LT, ir.LE, ir.GT, ir.GE:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadValueInto(st, fs, rcx, ins.Operands[1])
		// cmp rax, rcx ; setcc al ; movzx rax, al
		e.rr(st, 0x39, rcx, rax)
		var cc byte
		switch ins.Op {
		case ir.EQ:
			cc = 0x94
		case ir.NE:
			cc = 0x95
		case ir.LT:
			cc = 0x9C
		case ir.LE:
			cc = 0x9E
		case ir.GT:
			cc = 0x9F
		default:
			cc = 0x9D
		}
		b.BytesRaw(0x0F, cc, 0xC0)
		b.BytesRaw(0x48, 0x0F, 0xB6, 0xC0)
		e.storeResult(st, fs, ins, rax)

	case ir.LOAD:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadMem(st, rax, rax, loadSize(ins))
		e.storeResult(st, fs, ins, rax)

	case ir.STORE:
		e.loadValueInto(st, fs, rax, ins.Operands[0]) // value
		e.loadValueInto(st, fs, rcx, ins.Operands[1]) // address
		e.storeMem(st, rcx, rax, storeSize(ins))

	case ir.ALLOCA:
		off, ok := fs.frame.allocaOffset[ins]
		if !ok {
			return fmt.Errorf("alloca without frame slot")
		}
		e.leaFrame(st, rax, off)
		e.storeResult(st, fs, ins, rax)

	case ir.GEP:
		off, err := gepOffset(ins)
		if err != nil {
			return err
		}
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		// add rax, imm32
		b.BytesRaw(0x48, 0x05)
		b.U32(uint32(off))
		e.storeResult(st, fs, ins, rax)

	case ir.ARRAY_GEP:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadValueInto(st, fs, rcx, ins.Operands[1])
		e.movImm64(st, rdx, uint64(elemSize(ins)))
		// imul rcx, rdx ; add rax, rcx
		b.BytesRaw(0x48, 0x0F, 0xAF, 0xCA)
		e.rr(st, 0x01, rcx, rax)
		e.storeResult(st, fs, ins, rax)

	case ir.JUMP:
		b.Byte(0xE9)
		e.branchFixup(st, fs, ins.Target1)

	case ir.BRANCH:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		// test rax, rax ; jnz then ; jmp else
		b.BytesRaw(0x48, 0x85, 0xC0)
		b.BytesRaw(0x0F, 0x85)
		e.branchFixup(st, fs, ins.Target1)
		b.Byte(0xE9)
		e.branchFixup(st, fs, ins.Target2)

	case ir.SWITCH:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		for i, target := range ins.Targets {
			e.loadValueInto(st, fs, rcx, ins.Operands[i+1])
			e.rr(st, 0x39, rcx, rax)
			b.BytesRaw(0x0F, 0x84) // je
			e.branchFixup(st, fs, target)
		}
		b.Byte(0xE9)
		e.branchFixup(st, fs, ins.Target1)

	case ir.RETURN:
		if len(ins.Operands) > 0 {
			e.loadValueInto(st, fs, rax, ins.Operands[0])
		}
		e.emitEpilogue(st, fs)

	case ir.CALL:
		for i, arg := range ins.Operands {
			if i >= len(x64Regs.Args) {
				return fmt.Errorf("call to %s: more than %d arguments unsupported", ins.Callee.Name, len(x64Regs.Args))
			}
			e.loadValueInto(st, fs, x64Regs.Args[i], arg)
		}
		b.Byte(0xE8)
		st.callFixups = append(st.callFixups, callFixup{Site: b.Len(), Symbol: ins.Callee.Name, Kind: RelocCallRel32})
		b.U32(0)
		e.storeResult(st, fs, ins, rax)

	case ir.CALL_INDIRECT:
		args := ins.Operands[1:]
		for i, arg := range args {
			if i >= len(x64Regs.Args) {
				return fmt.Errorf("indirect call: more than %d arguments unsupported", len(x64Regs.Args))
			}
			e.loadValueInto(st, fs, x64Regs.Args[i], arg)
		}
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		// call rax
		b.BytesRaw(0xFF, 0xD0)
		e.storeResult(st, fs, ins, rax)

	case ir.SYSCALL:
		for i, arg := range ins.Operands {
			if i >= len(x64Regs.SyscallArgs) {
				return fmt.Errorf("syscall with more than %d operands", len(x64Regs.SyscallArgs))
			}
			e.loadValueInto(st, fs, x64Regs.SyscallArgs[i], arg)
		}
		b.BytesRaw(0x0F, 0x05)
		e.storeResult(st, fs, ins, rax)

	case ir.ZEXT, ir.TRUNC:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.maskTo(st, widthOf(ins, ins.Op == ir.ZEXT))
		e.storeResult(st, fs, ins, rax)

	case ir.SEXT:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		switch ins.Operands[0].Type.Size() {
		case 1:
			b.BytesRaw(0x48, 0x0F, 0xBE, 0xC0)
		case 2:
			b.BytesRaw(0x48, 0x0F, 0xBF, 0xC0)
		case 4:
			b.BytesRaw(0x48, 0x63, 0xC0)
		}
		e.storeResult(st, fs, ins, rax)

	case ir.VOID_TEST:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		// shr rax, 63
		b.BytesRaw(0x48, 0xC1, 0xE8, 0x3F)
		e.storeResult(st, fs, ins, rax)

	case ir.VOID_PROP:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		// bt rax, 63 ; jnc .skip ; mov rax, -1 ; epilogue
		b.BytesRaw(0x48, 0x0F, 0xBA, 0xE0, 0x3F)
		b.Byte(0x73)
		patchSite := b.Len()
		b.Byte(0)
		b.BytesRaw(0x48, 0xC7, 0xC0, 0xFF, 0xFF, 0xFF, 0xFF)
		e.emitEpilogue(st, fs)
		disp := b.Len() - (patchSite + 1)
		if disp > 127 {
			return fmt.Errorf("void_prop epilogue exceeds short-branch range")
		}
		b.Bytes()[patchSite] = byte(disp)
		e.storeResult(st, fs, ins, rax)

	case ir.VOID_ASSERT:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		// bt rax, 63 ; jnc +1 ; int3
		b.BytesRaw(0x48, 0x0F, 0xBA, 0xE0, 0x3F)
		b.BytesRaw(0x73, 0x01, 0xCC)
		e.storeResult(st, fs, ins, rax)

	case ir.VOID_COALESCE:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadValueInto(st, fs, rcx, ins.Operands[1])
		// bt rax, 63 ; jnc +3 ; mov rax, rcx
		b.BytesRaw(0x48, 0x0F, 0xBA, 0xE0, 0x3F)
		b.BytesRaw(0x73, 0x03)
		b.BytesRaw(0x48, 0x89, 0xC8)
		e.storeResult(st, fs, ins, rax)

	case ir.CAP_LOAD:
		e.loadValueInto(st, fs, rax, ins.Operands[0])
		e.loadValueInto(st, fs, rcx, ins.Operands[1])
		e.rr(st, 0x01, rcx, rax)
		e.loadMem(st, rax, rax, loadSize(ins))
		e.storeResult(st, fs, ins, rax)

	case ir.CAP_STORE:
		e.loadValueInto(st, fs, rax, ins.Operands[0]) // value
		e.loadValueInto(st, fs, rcx, ins.Operands[1]) // base
		e.loadValueInto(st, fs, rdx, ins.Operands[2]) // offset
		e.rr(st, 0x01, rdx, rcx)
		e.storeMem(st, rcx, rax, 8)

	case ir.SUBSTRATE_ENTER, ir.SUBSTRATE_EXIT:
		// The substrate context register is vendor-assigned on x64; the
		// transition point stays visible as a nop.
		b.Byte(0x90)

	case ir.UNREACHABLE:
		b.BytesRaw(0x0F, 0x0B)

	default:
		return fmt.Errorf("unsupported opcode %s on x64", ins.Op)
	}
	return nil
}

// maskTo zero-truncates rax down to the given byte width.
func (e *x64Encoder) maskTo(st *state, size int) {
	switch size {
	case 1:
		st.buf.BytesRaw(0x48, 0x0F, 0xB6, 0xC0)
	case 2:
		st.buf.BytesRaw(0x48, 0x0F, 0xB7, 0xC0)
	case 4:
		// mov eax, eax clears the upper half
		st.buf.BytesRaw(0x89, 0xC0)
	}
}

func (e *x64Encoder) patchBranch(st *state, fs *funcState, f branchFixup, target int) error {
	disp := target - (f.Site + 4)
	st.buf.PatchU32(f.Site, uint32(int32(disp)))
	return nil
}

func (e *x64Encoder) patchCall(st *state, c callFixup, target int) error {
	disp := target - (c.Site + 4)
	st.buf.PatchU32(c.Site, uint32(int32(disp)))
	return nil
}

// Shared helpers for memory-access widths and GEP arithmetic.

func loadSize(ins *ir.Instr) int {
	if ins.Result != nil {
		size := ins.Result.Type.Size()
		if size == 0 || size > 8 {
			return 8
		}
		return size
	}
	return 8
}

func storeSize(ins *ir.Instr) int {
	size := ins.Operands[0].Type.Size()
	if size == 0 || size > 8 {
		return 8
	}
	return size
}

func gepOffset(ins *ir.Instr) (int, error) {
	base := ins.Operands[0]
	ptr, ok := base.Type.(*ir.Pointer)
	if !ok {
		return 0, fmt.Errorf("gep base is not a pointer")
	}
	st, ok := ptr.Elem.(*ir.Struct)
	if !ok {
		return 0, fmt.Errorf("gep base does not point at a struct")
	}
	if ins.Field < 0 || ins.Field >= len(st.Fields) {
		return 0, fmt.Errorf("gep field index out of range")
	}
	return st.FieldOffset(ins.Field), nil
}

func elemSize(ins *ir.Instr) int {
	if ptr, ok := ins.Result.Type.(*ir.Pointer); ok {
		size := ptr.Elem.Size()
		if size == 0 {
			return 1
		}
		return size
	}
	return 8
}
