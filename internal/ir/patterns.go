package ir

import (
	"math/bits"

	"seraphic/internal/source"
)

// PatternOptimizer runs peephole rewrites over the IR. Rewrites preserve
// observable semantics; recognitions that cannot be rewritten safely are
// surfaced as advisory diagnostics instead.
type PatternOptimizer struct {
	Diags *source.List
	noted map[*Instr]bool
}

func (*PatternOptimizer) Name() string        { return "pattern-optimizer" }
func (*PatternOptimizer) Description() string { return "peephole rewrites and pattern advisories" }

func (po *PatternOptimizer) Apply(m *Module) bool {
	if po.noted == nil {
		po.noted = make(map[*Instr]bool)
	}
	changed := false
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			for _, ins := range b.Instrs {
				if po.strengthReduce(m, ins) {
					changed = true
				}
			}
			po.recognizeSumOfSquares(b)
			po.recognizeSinCos(b)
		}
	}
	return changed
}

// strengthReduce rewrites MUL by a power of two into a left shift.
func (po *PatternOptimizer) strengthReduce(m *Module, ins *Instr) bool {
	if ins.Op != MUL || len(ins.Operands) != 2 || ins.Result == nil {
		return false
	}
	if !integerType(ins.Result.Type) {
		return false
	}
	x, c := ins.Operands[0], ins.Operands[1]
	if c.Kind != ValueConstant {
		x, c = c, x
	}
	if c.Kind != ValueConstant || x.IsConst() {
		return false
	}
	if c.Int == 0 || c.Int&(c.Int-1) != 0 {
		return false
	}
	shift := uint64(bits.TrailingZeros64(c.Int))
	ins.Op = SHL
	ins.Operands = []*Value{x, m.IntConst(shift, ins.Result.Type)}
	return true
}

// recognizeSumOfSquares flags x*x + y*y, which overflows earlier than the
// equivalent scaled form.
func (po *PatternOptimizer) recognizeSumOfSquares(b *BasicBlock) {
	for _, ins := range b.Instrs {
		if ins.Op != ADD || len(ins.Operands) != 2 || po.noted[ins] {
			continue
		}
		if isSquare(ins.Operands[0]) && isSquare(ins.Operands[1]) {
			po.noted[ins] = true
			po.note(ins.Pos, "sum of squares detected; consider a scaled overflow-safe form")
		}
	}
}

// recognizeSinCos flags sin(x) and cos(x) of the same operand in one block;
// the host library can evaluate the pair in a single fused call.
func (po *PatternOptimizer) recognizeSinCos(b *BasicBlock) {
	sinArgs := make(map[*Value]*Instr)
	for _, ins := range b.Instrs {
		if ins.Op != CALL || ins.Callee == nil || len(ins.Operands) != 1 {
			continue
		}
		switch ins.Callee.Name {
		case "sin":
			sinArgs[ins.Operands[0]] = ins
		case "cos":
			if match, ok := sinArgs[ins.Operands[0]]; ok && !po.noted[match] {
				po.noted[match] = true
				po.note(ins.Pos, "sin and cos of the same operand; a fused sincos evaluation is available")
			}
		}
	}
}

func isSquare(v *Value) bool {
	return v.Def != nil && v.Def.Op == MUL &&
		len(v.Def.Operands) == 2 && v.Def.Operands[0] == v.Def.Operands[1]
}

func (po *PatternOptimizer) note(pos source.Position, msg string) {
	if po.Diags == nil {
		return
	}
	po.Diags.Add(source.Diagnostic{
		Severity: source.Note,
		Code:     source.WarnPattern,
		Message:  msg,
		Pos:      pos,
	})
}
