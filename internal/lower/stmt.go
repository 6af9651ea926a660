package lower

import (
	"fmt"

	"seraphic/internal/ast"
	"seraphic/internal/ir"
	"seraphic/internal/source"
)

// lowerBlockInto lowers a block's statements into the current basic block,
// returning the tail expression's value when the block has one.
func (l *Lowerer) lowerBlockInto(block *ast.BlockExpr) *ir.Value {
	for _, stmt := range block.Stmts {
		l.lowerStmt(stmt)
		if l.block == nil {
			return nil
		}
	}
	if block.Tail != nil {
		return l.lowerExpr(block.Tail)
	}
	return nil
}

func (l *Lowerer) lowerStmt(stmt ast.Stmt) {
	if l.block.Terminated() {
		// Unreachable statement after break/continue/return; nothing to emit.
		return
	}
	switch s := stmt.(type) {
	case *ast.LetStmt:
		l.lowerLet(s.Decl)

	case *ast.ExprStmt:
		l.lowerExpr(s.Value)

	case *ast.ReturnStmt:
		var v *ir.Value
		if s.Value != nil {
			v = l.lowerExpr(s.Value)
			if v == nil {
				return
			}
		}
		l.emitReturn(v, s.Pos)

	case *ast.BreakStmt:
		if len(l.loopExits) == 0 {
			l.errorf(source.ErrUnexpectedToken, s.Pos, "break outside of a loop")
			return
		}
		l.emitJump(l.loopExits[len(l.loopExits)-1], s.Pos)

	case *ast.ContinueStmt:
		if len(l.loopConts) == 0 {
			l.errorf(source.ErrUnexpectedToken, s.Pos, "continue outside of a loop")
			return
		}
		l.emitJump(l.loopConts[len(l.loopConts)-1], s.Pos)

	case *ast.WhileStmt:
		l.lowerWhile(s)

	case *ast.ForStmt:
		l.lowerFor(s)

	case *ast.SubstrateStmt:
		l.lowerSubstrate(s)

	default:
		l.errorf(source.ErrUnexpectedToken, stmt.NodePos(), "unsupported statement")
	}
}

// lowerLet allocates the binding's stack slot and initializes it. Aggregate
// literals initialize their own slot directly; everything else stores the
// evaluated value.
func (l *Lowerer) lowerLet(decl *ast.LetDecl) {
	// Aggregate literal initializers already build a slot; adopt it.
	switch init := decl.Init.(type) {
	case *ast.StructLiteralExpr:
		addr, t := l.lowerStructLiteral(init)
		if addr == nil {
			return
		}
		l.declare(decl.Name.Value, &symbol{value: addr, typ: t, mutable: decl.Mut})
		return
	case *ast.ArrayExpr:
		addr, t := l.lowerArrayLiteral(init)
		if addr == nil {
			return
		}
		l.declare(decl.Name.Value, &symbol{value: addr, typ: t, mutable: decl.Mut})
		return
	}

	var t ir.Type
	var value *ir.Value
	if decl.Init != nil {
		value = l.lowerExpr(decl.Init)
		if value == nil {
			return
		}
	}
	if decl.Type != nil {
		t = l.lowerType(decl.Type)
	} else if value != nil {
		t = value.Type
	} else {
		l.errorf(source.ErrMissingInitOrType, decl.Pos, "binding needs a type annotation or an initializer")
		return
	}

	slot := l.emitAlloca(t, decl.Pos)
	if value != nil {
		l.emitStore(value, slot, decl.Pos)
	}
	l.declare(decl.Name.Value, &symbol{value: slot, typ: t, mutable: decl.Mut})
}

func (l *Lowerer) lowerWhile(s *ast.WhileStmt) {
	n := l.blockCounter
	l.blockCounter++
	condB := l.newBlock(fmt.Sprintf("while_cond%d", n))
	bodyB := l.newBlock(fmt.Sprintf("while_body%d", n))
	exitB := l.newBlock(fmt.Sprintf("while_exit%d", n))

	l.emitJump(condB, s.Pos)

	l.block = condB
	cond := l.lowerExpr(s.Cond)
	if cond == nil {
		l.block = exitB
		return
	}
	l.emitBranch(cond, bodyB, exitB, s.Pos)

	l.block = bodyB
	l.loopExits = append(l.loopExits, exitB)
	l.loopConts = append(l.loopConts, condB)
	l.pushScope()
	l.lowerBlockInto(s.Body)
	l.popScope()
	l.loopExits = l.loopExits[:len(l.loopExits)-1]
	l.loopConts = l.loopConts[:len(l.loopConts)-1]
	l.emitJump(condB, s.Body.EndPos)

	l.block = exitB
}

// lowerFor lowers `for i in a..b` into init/cond/body/incr blocks with a
// stack-allocated counter. The comparison is < for half-open ranges and <=
// for inclusive ones.
func (l *Lowerer) lowerFor(s *ast.ForStmt) {
	start := l.lowerExpr(s.Range.Start)
	end := l.lowerExpr(s.Range.End)
	if start == nil || end == nil {
		return
	}

	counter := l.emitAlloca(start.Type, s.Pos)
	l.emitStore(start, counter, s.Pos)

	n := l.blockCounter
	l.blockCounter++
	condB := l.newBlock(fmt.Sprintf("for_cond%d", n))
	bodyB := l.newBlock(fmt.Sprintf("for_body%d", n))
	incrB := l.newBlock(fmt.Sprintf("for_incr%d", n))
	exitB := l.newBlock(fmt.Sprintf("for_exit%d", n))

	l.emitJump(condB, s.Pos)

	l.block = condB
	current := l.emitLoad(counter, start.Type, s.Pos)
	cmpOp := ir.LT
	if s.Range.Inclusive {
		cmpOp = ir.LE
	}
	cond := l.emitValue(cmpOp, l.boolType(), s.Pos, current, end)
	l.emitBranch(cond, bodyB, exitB, s.Pos)

	l.block = bodyB
	l.pushScope()
	l.declare(s.Var.Value, &symbol{value: counter, typ: start.Type, mutable: false})
	l.loopExits = append(l.loopExits, exitB)
	l.loopConts = append(l.loopConts, incrB)
	l.lowerBlockInto(s.Body)
	l.loopExits = l.loopExits[:len(l.loopExits)-1]
	l.loopConts = l.loopConts[:len(l.loopConts)-1]
	l.popScope()
	l.emitJump(incrB, s.Body.EndPos)

	l.block = incrB
	v := l.emitLoad(counter, start.Type, s.Pos)
	next := l.emitValue(ir.ADD, start.Type, s.Pos, v, l.mod.IntConst(1, start.Type))
	l.emitStore(next, counter, s.Pos)
	l.emitJump(condB, s.Pos)

	l.block = exitB
}

func (l *Lowerer) lowerSubstrate(s *ast.SubstrateStmt) {
	l.emit(&ir.Instr{Op: ir.SUBSTRATE_ENTER, Pos: s.Pos, Field: int(s.Kind)})
	l.pushScope()
	l.lowerBlockInto(s.Body)
	l.popScope()
	if !l.block.Terminated() {
		l.emit(&ir.Instr{Op: ir.SUBSTRATE_EXIT, Pos: s.Body.EndPos})
	}
}

// emitAllocaEntry creates a stack slot in the entry block so the slot
// dominates every later use. Used for if/match result slots.
func (l *Lowerer) emitAllocaEntry(t ir.Type, pos source.Position) *ir.Value {
	result := l.fn.NewVReg(l.mod.Types.PointerTo(t))
	result.AllocaType = t
	ins := &ir.Instr{Op: ir.ALLOCA, Pos: pos, Result: result}
	result.Def = ins
	entry := l.fn.Entry()
	ins.Block = entry
	entry.Instrs = append([]*ir.Instr{ins}, entry.Instrs...)
	return result
}

// lowerIf lowers an if expression: branch, two arms, and a merge block.
// When both arms produce a value of the same type the result flows through
// a stack slot created in the entry block.
func (l *Lowerer) lowerIf(ex *ast.IfExpr) *ir.Value {
	cond := l.lowerExpr(ex.Cond)
	if cond == nil {
		return nil
	}

	n := l.blockCounter
	l.blockCounter++
	thenB := l.newBlock(fmt.Sprintf("then%d", n))
	elseB := l.newBlock(fmt.Sprintf("else%d", n))
	mergeB := l.newBlock(fmt.Sprintf("merge%d", n))

	l.emitBranch(cond, thenB, elseB, ex.Pos)

	l.block = thenB
	l.pushScope()
	thenV := l.lowerBlockInto(ex.Then)
	l.popScope()
	thenEnd := l.block

	l.block = elseB
	var elseV *ir.Value
	if ex.Else != nil {
		elseV = l.lowerExpr(ex.Else)
	}
	elseEnd := l.block

	var slot *ir.Value
	var resultType ir.Type
	if thenV != nil && elseV != nil && thenV.Type == elseV.Type && !isUnit(thenV.Type) {
		resultType = thenV.Type
		slot = l.emitAllocaEntry(resultType, ex.Pos)
	}

	l.block = thenEnd
	if slot != nil && !l.block.Terminated() {
		l.emitStore(thenV, slot, ex.Pos)
	}
	l.emitJump(mergeB, ex.Pos)

	l.block = elseEnd
	if slot != nil && !l.block.Terminated() {
		l.emitStore(elseV, slot, ex.Pos)
	}
	l.emitJump(mergeB, ex.Pos)

	l.block = mergeB
	if slot != nil {
		return l.emitLoad(slot, resultType, ex.Pos)
	}
	return l.unitValue()
}

// lowerMatch lowers a match to a linear chain of equality tests: blocks
// test0, arm0, test1, arm1, ..., default, exit.
func (l *Lowerer) lowerMatch(ex *ast.MatchExpr) *ir.Value {
	subject := l.lowerExpr(ex.Subject)
	if subject == nil {
		return nil
	}

	// Split arms into the literal chain and the first catch-all.
	type literalArm struct {
		value uint64
		body  ast.Expr
	}
	var cases []literalArm
	var defaultArm *ast.MatchArm
	for _, arm := range ex.Arms {
		switch pat := arm.Pattern.(type) {
		case *ast.LiteralPattern:
			if defaultArm == nil {
				cases = append(cases, literalArm{value: pat.Value, body: arm.Body})
			}
		case *ast.WildcardPattern, *ast.BindingPattern:
			if defaultArm == nil {
				defaultArm = arm
			}
		}
	}

	testBlocks := make([]*ir.BasicBlock, len(cases))
	armBlocks := make([]*ir.BasicBlock, len(cases))
	for i := range cases {
		testBlocks[i] = l.newBlock(fmt.Sprintf("test%d", i))
		armBlocks[i] = l.newBlock(fmt.Sprintf("arm%d", i))
	}
	defaultB := l.newBlock("default")
	exitB := l.newBlock("exit")

	if len(cases) > 0 {
		l.emitJump(testBlocks[0], ex.Pos)
	} else {
		l.emitJump(defaultB, ex.Pos)
	}

	var slot *ir.Value
	var resultType ir.Type
	store := func(v *ir.Value, pos source.Position) {
		if v == nil || isUnit(v.Type) || l.block.Terminated() {
			return
		}
		if slot == nil {
			resultType = v.Type
			slot = l.emitAllocaEntry(resultType, ex.Pos)
		}
		if v.Type == resultType {
			l.emitStore(v, slot, pos)
		}
	}

	for i, c := range cases {
		next := defaultB
		if i+1 < len(cases) {
			next = testBlocks[i+1]
		}
		l.block = testBlocks[i]
		cmp := l.emitValue(ir.EQ, l.boolType(), ex.Pos, subject, l.mod.IntConst(c.value, subject.Type))
		l.emitBranch(cmp, armBlocks[i], next, ex.Pos)

		l.block = armBlocks[i]
		v := l.lowerExpr(c.body)
		store(v, c.body.NodePos())
		l.emitJump(exitB, ex.Pos)
	}

	l.block = defaultB
	if defaultArm != nil {
		l.pushScope()
		if binding, ok := defaultArm.Pattern.(*ast.BindingPattern); ok {
			bindSlot := l.emitAlloca(subject.Type, binding.Pos)
			l.emitStore(subject, bindSlot, binding.Pos)
			l.declare(binding.Name.Value, &symbol{value: bindSlot, typ: subject.Type})
		}
		v := l.lowerExpr(defaultArm.Body)
		store(v, defaultArm.Body.NodePos())
		l.popScope()
	}
	l.emitJump(exitB, ex.Pos)

	l.block = exitB
	if slot != nil {
		return l.emitLoad(slot, resultType, ex.Pos)
	}
	return l.unitValue()
}

func isUnit(t ir.Type) bool {
	p, ok := t.(*ir.Prim)
	return ok && p.Kind == ir.PrimUnit
}
