package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seraphic/internal/arena"
	"seraphic/internal/ir"
	"seraphic/internal/lower"
	"seraphic/internal/parser"
)

func buildModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	tree, diags := parser.Parse("test.sph", src)
	require.False(t, diags.HasErrors(), "parse: %v", diags.All())
	m, err := lower.Lower(tree, diags, arena.New())
	require.NoError(t, err, "lower: %v", diags.All())
	require.NoError(t, ir.Verify(m))
	return m
}

const helloSrc = "fn main() -> i32 { return 0; }"

const branchySrc = `
fn collatz(n: i64) -> i64 {
    let mut steps = 0;
    let mut x = n;
    while x > 1 {
        if x % 2 == 0 { x = x / 2; } else { x = 3 * x + 1; }
        steps = steps + 1;
    }
    return steps;
}
fn main() -> i64 { return collatz(27); }
`

func TestGenerateAllTargets(t *testing.T) {
	m := buildModule(t, helloSrc)
	for _, target := range []Target{X64, AArch64, RISCV64} {
		result, err := Generate(m, target)
		require.NoError(t, err, "target %s", target)
		assert.NotEmpty(t, result.Code)
		assert.Contains(t, result.Funcs, "main")
		assert.Equal(t, 0, result.EntryOffset, "stub is the entry point")
	}
}

// Fixed-width ISAs emit streams whose length is a multiple of the
// instruction size, modulo the inter-function alignment padding which is
// itself word-sized.
func TestFixedWidthStreams(t *testing.T) {
	m := buildModule(t, branchySrc)
	for _, target := range []Target{AArch64, RISCV64} {
		result, err := Generate(m, target)
		require.NoError(t, err, "target %s", target)
		assert.Zero(t, len(result.Code)%4, "target %s emits 4-byte words", target)
		for name, info := range result.Funcs {
			assert.Zero(t, info.Offset%4, "function %s misaligned on %s", name, target)
		}
	}
}

func TestX64StubShape(t *testing.T) {
	m := buildModule(t, helloSrc)
	result, err := Generate(m, X64)
	require.NoError(t, err)
	// call rel32 ; mov rdi, rax ; mov eax, 60 ; syscall
	require.Greater(t, len(result.Code), 15)
	assert.Equal(t, byte(0xE8), result.Code[0])
	assert.Equal(t, []byte{0x0F, 0x05}, result.Code[13:15])
}

func TestA64StubCallsMain(t *testing.T) {
	m := buildModule(t, helloSrc)
	result, err := Generate(m, AArch64)
	require.NoError(t, err)
	word := uint32(result.Code[0]) | uint32(result.Code[1])<<8 |
		uint32(result.Code[2])<<16 | uint32(result.Code[3])<<24
	assert.Equal(t, uint32(0x94000000), word&0xFC000000, "first word is BL")
	// Displacement points at main.
	main := result.Funcs["main"]
	assert.Equal(t, uint32(main.Offset/4), word&0x03FFFFFF)
}

func TestStubCallUnresolvedForEmptyModule(t *testing.T) {
	m := buildModule(t, "")
	result, err := Generate(m, X64)
	require.NoError(t, err)
	// call 0 followed by the exit syscall; nothing to patch.
	assert.Equal(t, byte(0xE8), result.Code[0])
	assert.Equal(t, []byte{0, 0, 0, 0}, result.Code[1:5])
	require.Len(t, result.Relocs, 1)
	assert.Equal(t, "main", result.Relocs[0].Symbol)
}

func TestBranchFixupsResolve(t *testing.T) {
	m := buildModule(t, branchySrc)
	for _, target := range []Target{X64, AArch64, RISCV64} {
		result, err := Generate(m, target)
		require.NoError(t, err, "target %s", target)
		assert.NotEmpty(t, result.Code)
	}
}

func TestCallRelocsRecorded(t *testing.T) {
	m := buildModule(t, branchySrc)
	result, err := Generate(m, X64)
	require.NoError(t, err)

	var sawCollatz, sawMain bool
	for _, r := range result.Relocs {
		switch r.Symbol {
		case "collatz":
			sawCollatz = true
		case "main":
			sawMain = true
		}
	}
	assert.True(t, sawCollatz, "direct call records a relocation")
	assert.True(t, sawMain, "stub call records a relocation")
}

func TestStringConstantRelocation(t *testing.T) {
	m := buildModule(t, `fn main() -> i64 { let s = "hi"; return 0; }`)
	result, err := Generate(m, X64)
	require.NoError(t, err)

	var abs []Reloc
	for _, r := range result.Relocs {
		if r.Kind == RelocAbs64 {
			abs = append(abs, r)
		}
	}
	require.NotEmpty(t, abs)
	assert.Equal(t, "__rodata", abs[0].Symbol)
}

func TestRegisterAssignmentBanksAndSpills(t *testing.T) {
	m := buildModule(t, branchySrc)
	fn := m.FindFunction("collatz")
	alloc := assignRegisters(fn, x64Regs)

	seen := make(map[int]bool)
	spilled := 0
	for _, p := range fn.Params {
		if r, ok := alloc.Reg(p); ok {
			seen[r] = true
		}
	}
	fn.ForEachInstr(func(ins *ir.Instr) {
		if ins.Result == nil {
			return
		}
		if r, ok := alloc.Reg(ins.Result); ok {
			seen[r] = true
		} else if _, ok := alloc.SpillSlot(ins.Result); ok {
			spilled++
		}
	})

	for r := range seen {
		assert.NotContains(t, x64Regs.Scratch, r, "scratch registers are never allocated")
	}
	assert.Equal(t, spilled, alloc.SpillCount())
}

func TestParseTarget(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Target
	}{
		{"x64", X64}, {"x86_64", X64},
		{"arm64", AArch64}, {"aarch64", AArch64},
		{"riscv64", RISCV64},
	} {
		got, err := ParseTarget(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := ParseTarget("mips")
	assert.Error(t, err)
}
