package ir

import (
	"errors"
	"fmt"
)

// Verify checks module well-formedness. A verification failure indicates a
// compiler bug, so every violation found is reported at once.
func Verify(m *Module) error {
	var errs []error
	for _, fn := range m.Functions {
		errs = append(errs, verifyFunction(fn)...)
	}
	return errors.Join(errs...)
}

func verifyFunction(fn *Function) []error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%s: %s", fn.Name, fmt.Sprintf(format, args...)))
	}

	if len(fn.Blocks) == 0 {
		if fn.Name == "" {
			fail("function has no name and no blocks")
		}
		return errs
	}

	blockSet := make(map[*BasicBlock]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		blockSet[b] = true
	}

	// Terminator discipline: exactly one, and it is last.
	for _, b := range fn.Blocks {
		if len(b.Instrs) == 0 {
			fail("%s is empty", b)
			continue
		}
		for i, ins := range b.Instrs {
			if ins.Op.IsTerminator() && i != len(b.Instrs)-1 {
				fail("%s has terminator %s before end of block", b, ins.Op)
			}
		}
		term := b.Terminator()
		if term == nil {
			fail("%s does not end in a terminator", b)
			continue
		}
		for _, succ := range term.Successors() {
			if succ == nil {
				fail("%s: %s has a nil target", b, term.Op)
			} else if !blockSet[succ] {
				fail("%s: %s targets block outside function", b, term.Op)
			}
		}
	}

	idom := dominators(fn)
	instrIndex := make(map[*Instr]int)
	pos := 0
	fn.ForEachInstr(func(ins *Instr) {
		instrIndex[ins] = pos
		pos++
	})

	fn.ForEachInstr(func(ins *Instr) {
		for _, op := range ins.Operands {
			if op == nil {
				fail("%s: nil operand on %s", ins.Block, ins.Op)
				continue
			}
			switch op.Kind {
			case ValueConstant, ValueVoidConstant, ValueFuncRef, ValueStringConst:
				if op.Type == nil {
					fail("constant operand of %s has no type", ins.Op)
				}
			case ValueParam:
				if op.Type == nil {
					fail("parameter operand of %s has no type", ins.Op)
				}
			case ValueVReg:
				def := op.Def
				if def == nil {
					fail("%s: use of vreg %%%d with no defining instruction", ins.Block, op.ID)
					continue
				}
				if !blockSet[def.Block] {
					fail("%s: operand %%%d defined outside function", ins.Block, op.ID)
					continue
				}
				if !valueDominates(def, ins, idom, instrIndex) {
					fail("%s: %%%d used before its definition dominates the use", ins.Block, op.ID)
				}
			}
		}
		if op := ins.Op; op == ALLOCA {
			if ins.Result == nil || ins.Result.AllocaType == nil {
				fail("alloca without AllocaType")
			}
		} else if ins.Result != nil && ins.Result.AllocaType != nil {
			fail("%s result carries AllocaType but is not an alloca", op)
		}
	})

	return errs
}

// dominators computes immediate-dominator-free dominance sets with the
// classic iterative data-flow algorithm. Block predecessors are recomputed
// from terminators so the check does not trust the Preds cache.
func dominators(fn *Function) map[*BasicBlock]map[*BasicBlock]bool {
	preds := make(map[*BasicBlock][]*BasicBlock)
	for _, b := range fn.Blocks {
		if term := b.Terminator(); term != nil {
			for _, succ := range term.Successors() {
				if succ != nil {
					preds[succ] = append(preds[succ], b)
				}
			}
		}
	}

	dom := make(map[*BasicBlock]map[*BasicBlock]bool, len(fn.Blocks))
	entry := fn.Entry()
	all := make(map[*BasicBlock]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		all[b] = true
	}
	for _, b := range fn.Blocks {
		if b == entry {
			dom[b] = map[*BasicBlock]bool{b: true}
		} else {
			set := make(map[*BasicBlock]bool, len(all))
			for k := range all {
				set[k] = true
			}
			dom[b] = set
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range fn.Blocks {
			if b == entry {
				continue
			}
			var next map[*BasicBlock]bool
			for _, p := range preds[b] {
				if next == nil {
					next = make(map[*BasicBlock]bool, len(dom[p]))
					for k := range dom[p] {
						next[k] = true
					}
				} else {
					for k := range next {
						if !dom[p][k] {
							delete(next, k)
						}
					}
				}
			}
			if next == nil {
				next = make(map[*BasicBlock]bool)
			}
			next[b] = true
			if len(next) != len(dom[b]) {
				dom[b] = next
				changed = true
				continue
			}
			for k := range next {
				if !dom[b][k] {
					dom[b] = next
					changed = true
					break
				}
			}
		}
	}
	return dom
}

func valueDominates(def, use *Instr, dom map[*BasicBlock]map[*BasicBlock]bool, index map[*Instr]int) bool {
	if def.Block == use.Block {
		return index[def] < index[use]
	}
	return dom[use.Block][def.Block]
}
