package codegen

import "seraphic/internal/ir"

// RegisterFile describes one target's general-purpose register partition.
// Register numbers are the target's own encodings.
type RegisterFile struct {
	CallerSaved []int // allocation pool, tried first
	CalleeSaved []int // allocation pool, tried second
	Args        []int // ABI argument registers in order
	SyscallArgs []int // syscall number register followed by argument registers
	RetReg      int
	Scratch     []int // reserved, never allocated
	FP          int
	SP          int
}

// Alloc is the simplified per-function register assignment: values are
// assigned pooled registers in definition order, caller-saved first, then
// callee-saved, then numbered spill slots. Live ranges are not considered;
// replacing this with a proper linear scan is a known follow-up before the
// backend is trustworthy for large functions.
type Alloc struct {
	file   *RegisterFile
	regs   map[int]int // value ID -> physical register
	spills map[int]int // value ID -> spill slot index
	used   []int       // callee-saved registers actually handed out
}

func assignRegisters(fn *ir.Function, file *RegisterFile) *Alloc {
	a := &Alloc{
		file:   file,
		regs:   make(map[int]int),
		spills: make(map[int]int),
	}

	pool := make([]int, 0, len(file.CallerSaved)+len(file.CalleeSaved))
	pool = append(pool, file.CallerSaved...)
	pool = append(pool, file.CalleeSaved...)

	next := 0
	spill := 0
	assign := func(v *ir.Value) {
		if v == nil {
			return
		}
		if _, ok := a.regs[v.ID]; ok {
			return
		}
		if _, ok := a.spills[v.ID]; ok {
			return
		}
		if next < len(pool) {
			reg := pool[next]
			a.regs[v.ID] = reg
			if next >= len(file.CallerSaved) {
				a.used = append(a.used, reg)
			}
			next++
			return
		}
		a.spills[v.ID] = spill
		spill++
	}

	for _, p := range fn.Params {
		assign(p)
	}
	fn.ForEachInstr(func(ins *ir.Instr) {
		assign(ins.Result)
	})
	return a
}

// Reg returns the physical register of a value, if it has one.
func (a *Alloc) Reg(v *ir.Value) (int, bool) {
	r, ok := a.regs[v.ID]
	return r, ok
}

// SpillSlot returns the spill slot index of a value, if spilled.
func (a *Alloc) SpillSlot(v *ir.Value) (int, bool) {
	s, ok := a.spills[v.ID]
	return s, ok
}

func (a *Alloc) SpillCount() int {
	return len(a.spills)
}

// UsedCalleeSaved lists callee-saved registers the prologue must preserve.
func (a *Alloc) UsedCalleeSaved() []int {
	return a.used
}
