package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seraphic/internal/source"
)

func singleBlockFunc(m *Module, ret Type) (*Function, *BasicBlock) {
	ft := m.Types.Intern(&FuncType{Return: ret}).(*FuncType)
	fn := NewFunction("f", ft, source.Position{})
	m.AddFunction(fn)
	return fn, fn.NewBlock("entry")
}

func appendInstr(b *BasicBlock, ins *Instr) *Instr {
	if ins.Result != nil {
		ins.Result.Def = ins
	}
	b.Append(ins)
	return ins
}

func TestConstantFoldingBinary(t *testing.T) {
	m := NewModule()
	i64 := m.Types.Prim(PrimI64)
	fn, b := singleBlockFunc(m, i64)

	res := fn.NewVReg(i64)
	appendInstr(b, &Instr{Op: ADD, Operands: []*Value{m.IntConst(2, i64), m.IntConst(3, i64)}, Result: res})
	ret := appendInstr(b, &Instr{Op: RETURN, Operands: []*Value{res}})

	cf := &ConstantFolding{}
	require.True(t, cf.Apply(m))

	require.Equal(t, ValueConstant, ret.Operands[0].Kind)
	assert.Equal(t, uint64(5), ret.Operands[0].Int)

	// Second pass reaches the fixed point: no further folds.
	assert.False(t, cf.Apply(m))
}

func TestConstantFoldingIdentities(t *testing.T) {
	m := NewModule()
	i64 := m.Types.Prim(PrimI64)
	fn, b := singleBlockFunc(m, i64)

	param := &Value{Kind: ValueParam, Type: i64, ID: 100}
	res := fn.NewVReg(i64)
	appendInstr(b, &Instr{Op: ADD, Operands: []*Value{param, m.IntConst(0, i64)}, Result: res})
	ret := appendInstr(b, &Instr{Op: RETURN, Operands: []*Value{res}})

	require.True(t, (&ConstantFolding{}).Apply(m))
	assert.Equal(t, param, ret.Operands[0], "x + 0 folds to x")
}

func TestDivisionByLiteralZeroFoldsToVoid(t *testing.T) {
	m := NewModule()
	i64 := m.Types.Prim(PrimI64)
	fn, b := singleBlockFunc(m, i64)

	param := &Value{Kind: ValueParam, Type: i64, ID: 100}
	res := fn.NewVReg(i64)
	appendInstr(b, &Instr{Op: DIV, Operands: []*Value{param, m.IntConst(0, i64)}, Result: res})
	ret := appendInstr(b, &Instr{Op: RETURN, Operands: []*Value{res}})

	require.True(t, (&ConstantFolding{}).Apply(m))
	require.Equal(t, ValueVoidConstant, ret.Operands[0].Kind)
	assert.Equal(t, ^uint64(0), ret.Operands[0].Int)
}

func TestDeadCodeElimination(t *testing.T) {
	m := NewModule()
	i64 := m.Types.Prim(PrimI64)
	fn, b := singleBlockFunc(m, i64)

	dead := fn.NewVReg(i64)
	appendInstr(b, &Instr{Op: MUL, Operands: []*Value{m.IntConst(6, i64), m.IntConst(7, i64)}, Result: dead})
	appendInstr(b, &Instr{Op: NOP})
	appendInstr(b, &Instr{Op: RETURN, Operands: []*Value{m.IntConst(0, i64)}})

	require.True(t, (&DeadCodeElimination{}).Apply(m))
	require.Len(t, fn.Blocks[0].Instrs, 1)
	assert.Equal(t, RETURN, fn.Blocks[0].Instrs[0].Op)
}

func TestStrengthReduction(t *testing.T) {
	m := NewModule()
	i64 := m.Types.Prim(PrimI64)
	fn, b := singleBlockFunc(m, i64)

	param := &Value{Kind: ValueParam, Type: i64, ID: 100}
	res := fn.NewVReg(i64)
	mul := appendInstr(b, &Instr{Op: MUL, Operands: []*Value{param, m.IntConst(8, i64)}, Result: res})
	appendInstr(b, &Instr{Op: RETURN, Operands: []*Value{res}})

	po := &PatternOptimizer{}
	require.True(t, po.Apply(m))
	assert.Equal(t, SHL, mul.Op)
	require.Len(t, mul.Operands, 2)
	assert.Equal(t, uint64(3), mul.Operands[1].Int)

	// A second pass finds no multiply left to rewrite.
	assert.False(t, po.Apply(m))
}

func TestVerifyRejectsMissingTerminator(t *testing.T) {
	m := NewModule()
	i64 := m.Types.Prim(PrimI64)
	fn, b := singleBlockFunc(m, i64)

	res := fn.NewVReg(i64)
	appendInstr(b, &Instr{Op: ADD, Operands: []*Value{m.IntConst(1, i64), m.IntConst(2, i64)}, Result: res})

	assert.Error(t, Verify(m))
}

func TestVerifyRejectsMidBlockTerminator(t *testing.T) {
	m := NewModule()
	i64 := m.Types.Prim(PrimI64)
	_, b := singleBlockFunc(m, i64)

	appendInstr(b, &Instr{Op: RETURN, Operands: []*Value{m.IntConst(0, i64)}})
	appendInstr(b, &Instr{Op: NOP})

	assert.Error(t, Verify(m))
}

func TestVerifyAcceptsWellFormed(t *testing.T) {
	m := NewModule()
	i64 := m.Types.Prim(PrimI64)
	fn, b := singleBlockFunc(m, i64)

	res := fn.NewVReg(i64)
	appendInstr(b, &Instr{Op: ADD, Operands: []*Value{m.IntConst(1, i64), m.IntConst(2, i64)}, Result: res})
	appendInstr(b, &Instr{Op: RETURN, Operands: []*Value{res}})

	assert.NoError(t, Verify(m))
}

func TestVoidSentinel(t *testing.T) {
	m := NewModule()
	assert.Equal(t, ^uint64(0), VoidSentinel(m.Types.Prim(PrimI64)))
	assert.Equal(t, uint64(0xFF), VoidSentinel(m.Types.Prim(PrimU8)))
	assert.Equal(t, uint64(0xFFFFFFFF), VoidSentinel(m.Types.Prim(PrimI32)))
}

func TestTypeInterning(t *testing.T) {
	m := NewModule()
	a := m.Types.PointerTo(m.Types.Prim(PrimI64))
	b := m.Types.PointerTo(m.Types.Prim(PrimI64))
	assert.Same(t, a, b)

	arr := m.Types.ArrayOf(m.Types.Prim(PrimU8), 16)
	assert.Equal(t, 16, arr.Size())
}

func TestStructLayout(t *testing.T) {
	st := &Struct{
		Name:       "P",
		FieldNames: []string{"a", "b", "c"},
		Fields:     []Type{&Prim{Kind: PrimU8}, &Prim{Kind: PrimI64}, &Prim{Kind: PrimI32}},
	}
	assert.Equal(t, 0, st.FieldOffset(0))
	assert.Equal(t, 8, st.FieldOffset(1))
	assert.Equal(t, 16, st.FieldOffset(2))
	assert.Equal(t, 24, st.Size())
	assert.Equal(t, 1, st.FieldIndex("b"))
	assert.Equal(t, -1, st.FieldIndex("missing"))
}
