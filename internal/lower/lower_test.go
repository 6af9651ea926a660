package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seraphic/internal/arena"
	"seraphic/internal/ir"
	"seraphic/internal/parser"
	"seraphic/internal/source"
)

func lowerSource(t *testing.T, src string) *ir.Module {
	t.Helper()
	tree, diags := parser.Parse("test.sph", src)
	require.False(t, diags.HasErrors(), "parse: %v", diags.All())
	m, err := Lower(tree, diags, arena.New())
	require.NoError(t, err, "lower: %v", diags.All())
	require.NoError(t, ir.Verify(m))
	return m
}

func lowerExpectError(t *testing.T, src string) *source.List {
	t.Helper()
	tree, diags := parser.Parse("test.sph", src)
	require.False(t, diags.HasErrors(), "parse: %v", diags.All())
	_, err := Lower(tree, diags, arena.New())
	require.Error(t, err)
	return diags
}

func countOpcodes(fn *ir.Function) map[ir.Opcode]int {
	counts := make(map[ir.Opcode]int)
	fn.ForEachInstr(func(ins *ir.Instr) {
		counts[ins.Op]++
	})
	return counts
}

func TestReturnConstant(t *testing.T) {
	m := lowerSource(t, "fn main() -> i32 { return 0; }")
	fn := m.FindFunction("main")
	require.NotNil(t, fn)
	require.Len(t, fn.Blocks, 1)
	term := fn.Blocks[0].Terminator()
	require.NotNil(t, term)
	assert.Equal(t, ir.RETURN, term.Op)
}

// Struct field assignment lowers to one alloca, GEP+STORE per write, and
// GEP+LOAD per read.
func TestStructFieldAssign(t *testing.T) {
	m := lowerSource(t, `
struct P { x: i32, y: i32 }
fn main() -> i32 { let p: P; p.x = 3; p.y = 4; return p.x + p.y; }
`)
	fn := m.FindFunction("main")
	require.NotNil(t, fn)
	counts := countOpcodes(fn)
	assert.Equal(t, 1, counts[ir.ALLOCA])
	assert.Equal(t, 4, counts[ir.GEP])
	assert.Equal(t, 2, counts[ir.STORE])
	assert.Equal(t, 2, counts[ir.LOAD])
	assert.Equal(t, 1, counts[ir.ADD])
}

// Match lowers to the linear test chain with the canonical block names.
func TestMatchBlockShape(t *testing.T) {
	m := lowerSource(t, "fn f(n: i64) -> i64 { match n { 1 => 10, 2 => 20, _ => 0 } }")
	fn := m.FindFunction("f")
	require.NotNil(t, fn)

	var names []string
	for _, b := range fn.Blocks {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"entry", "test0", "arm0", "test1", "arm1", "default", "exit"}, names)

	eqCount := 0
	fn.ForEachInstr(func(ins *ir.Instr) {
		if ins.Op == ir.EQ {
			eqCount++
		}
	})
	assert.Equal(t, 2, eqCount)
}

// Every reachable block ends with exactly one terminator.
func TestTerminatorInvariant(t *testing.T) {
	m := lowerSource(t, `
fn f(a: i64, b: i64) -> i64 {
    let mut acc = 0;
    for i in a..b {
        if i % 2 == 0 { acc = acc + i; } else { acc = acc - 1; }
    }
    while acc > 100 { acc = acc / 2; }
    return acc;
}
`)
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			term := b.Terminator()
			require.NotNil(t, term, "%s has no terminator in %s", b, fn.Name)
			for i, ins := range b.Instrs {
				if ins.Op.IsTerminator() {
					assert.Equal(t, len(b.Instrs)-1, i, "terminator not last in %s", b)
				}
			}
		}
	}
}

func TestVoidOperatorsLowering(t *testing.T) {
	m := lowerSource(t, `
fn div(a: i64, b: i64) -> i64 { return a / b; }
fn main() -> i64 { let x = div(10, 0)?? ; return x; }
`)
	fn := m.FindFunction("main")
	counts := countOpcodes(fn)
	assert.Equal(t, 1, counts[ir.VOID_PROP])
	assert.Equal(t, 1, counts[ir.CALL])

	div := m.FindFunction("div")
	divCounts := countOpcodes(div)
	assert.Equal(t, 1, divCounts[ir.DIV])
}

func TestCoalesceAndAssert(t *testing.T) {
	m := lowerSource(t, `
fn g(x: i64) -> i64 { return x; }
fn main() -> i64 {
    let a = g(1) ?? 7;
    let b = g(2)!!;
    return a + b;
}
`)
	counts := countOpcodes(m.FindFunction("main"))
	assert.Equal(t, 1, counts[ir.VOID_COALESCE])
	assert.Equal(t, 1, counts[ir.VOID_ASSERT])
}

func TestMethodCallMangling(t *testing.T) {
	m := lowerSource(t, `
struct Counter { n: i64 }
impl Counter {
    fn incr(amount: i64) -> i64 { return amount; }
}
fn main() -> i64 {
    let c = Counter { n: 0 };
    return c.incr(2);
}
`)
	require.NotNil(t, m.FindFunction("Counter_incr"))
	main := m.FindFunction("main")
	var callee string
	main.ForEachInstr(func(ins *ir.Instr) {
		if ins.Op == ir.CALL {
			callee = ins.Callee.Name
		}
	})
	assert.Equal(t, "Counter_incr", callee)
}

func TestSyscallIntrinsic(t *testing.T) {
	m := lowerSource(t, "fn main() -> i64 { return __syscall1(60, 0); }")
	counts := countOpcodes(m.FindFunction("main"))
	assert.Equal(t, 1, counts[ir.SYSCALL])
}

func TestSyscallArityError(t *testing.T) {
	diags := lowerExpectError(t, "fn main() -> i64 { return __syscall2(60); }")
	assert.Equal(t, source.ErrSyscallArity, diags.Recent().Code)
}

func TestClosureIsLifted(t *testing.T) {
	m := lowerSource(t, `
fn main() -> i64 {
    let f = fn(x: i64) -> i64 { return x * 2; };
    return f(21);
}
`)
	require.NotNil(t, m.FindFunction("__closure_0"))
	counts := countOpcodes(m.FindFunction("main"))
	assert.Equal(t, 1, counts[ir.CALL_INDIRECT])
}

func TestClosureCaptureRejected(t *testing.T) {
	diags := lowerExpectError(t, `
fn main() -> i64 {
    let y = 1;
    let f = fn(x: i64) -> i64 { return x + y; };
    return f(2);
}
`)
	assert.Equal(t, source.ErrClosureCapture, diags.Recent().Code)
}

func TestUndefinedIdentSuggestion(t *testing.T) {
	diags := lowerExpectError(t, `
fn main() -> i64 {
    let counter = 1;
    return countr;
}
`)
	d := diags.Recent()
	assert.Equal(t, source.ErrUndefinedIdent, d.Code)
	require.NotEmpty(t, d.Suggestions)
	assert.Contains(t, d.Suggestions[0].Message, "counter")
}

func TestImmutableAssignRejected(t *testing.T) {
	diags := lowerExpectError(t, "fn main() { let x = 1; x = 2; }")
	assert.Equal(t, source.ErrImmutableAssign, diags.Recent().Code)
}

func TestSubstrateBlocks(t *testing.T) {
	m := lowerSource(t, `
fn main() {
    persist { let a = 1; }
    aether { let b = 2; }
}
`)
	counts := countOpcodes(m.FindFunction("main"))
	assert.Equal(t, 2, counts[ir.SUBSTRATE_ENTER])
	assert.Equal(t, 2, counts[ir.SUBSTRATE_EXIT])
}

func TestPointerArithmeticScaling(t *testing.T) {
	m := lowerSource(t, `
fn f(p: *i64, n: i64) -> *i64 {
    return p + n;
}
`)
	fn := m.FindFunction("f")
	var sawScale bool
	fn.ForEachInstr(func(ins *ir.Instr) {
		if ins.Op == ir.MUL && len(ins.Operands) == 2 &&
			ins.Operands[1].Kind == ir.ValueConstant && ins.Operands[1].Int == 8 {
			sawScale = true
		}
	})
	assert.True(t, sawScale, "pointer offset should be scaled by element size")
}

func TestCastLowering(t *testing.T) {
	m := lowerSource(t, `
fn f(a: i64, b: u8) -> i64 {
    let x = a as i32;
    let y = b as i64;
    let z = x as i64;
    return y + z;
}
`)
	counts := countOpcodes(m.FindFunction("f"))
	assert.Equal(t, 1, counts[ir.TRUNC])
	assert.Equal(t, 1, counts[ir.ZEXT])
	assert.Equal(t, 1, counts[ir.SEXT])
}

func TestIfExpressionValue(t *testing.T) {
	m := lowerSource(t, "fn f(c: bool) -> i64 { let x = if c { 1 } else { 2 }; return x; }")
	fn := m.FindFunction("f")
	counts := countOpcodes(fn)
	assert.Equal(t, 1, counts[ir.BRANCH])
	// Result flows through a stack slot: param slots (1) + x (1) + if result (1).
	assert.GreaterOrEqual(t, counts[ir.ALLOCA], 3)
}

func TestStringEscapeExpansion(t *testing.T) {
	m := lowerSource(t, `fn main() -> i64 { let s = "a\n\t"; return 0; }`)
	bytes := m.Strings.Bytes()
	assert.Contains(t, string(bytes), "a\n\t")
}

func TestModuleLevelConst(t *testing.T) {
	m := lowerSource(t, `
const LIMIT = 100;
fn main() -> i64 { return LIMIT; }
`)
	fn := m.FindFunction("main")
	term := fn.Blocks[0].Terminator()
	require.Len(t, term.Operands, 1)
	assert.Equal(t, uint64(100), term.Operands[0].Int)
}

func TestFloatLiteralIsQ32(t *testing.T) {
	m := lowerSource(t, "fn f() -> scalar { return 1.5; }")
	fn := m.FindFunction("f")
	term := fn.Blocks[0].Terminator()
	require.Len(t, term.Operands, 1)
	assert.Equal(t, uint64(1.5*4294967296), term.Operands[0].Int)
}
