package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seraphic/internal/codegen"
	"seraphic/internal/ir"
	"seraphic/internal/object"
	"seraphic/internal/proof"
)

func runJob(t *testing.T, src string, target codegen.Target, level int) *Artifacts {
	t.Helper()
	arts, err := Run(Job{Filename: "test.sph", Source: src, Target: target, OptLevel: level})
	require.NoError(t, err, "%v", arts.Diags.All())
	return arts
}

func TestHelloWorldNative(t *testing.T) {
	arts := runJob(t, "fn main() -> i32 { return 0; }", codegen.X64, 1)
	require.NotEmpty(t, arts.Image)

	l, err := object.Load(arts.Image)
	require.NoError(t, err)
	require.NoError(t, l.Validate(object.DefaultConfig()))

	assert.Equal(t, object.FileMagic, string(l.Header.Magic[:]))
	assert.Equal(t, uint16(1), l.Header.Arch)

	codeVaddr := object.LoadBaseUser + l.Header.Code.Offset
	assert.Equal(t, codeVaddr, l.Header.EntryPoint, "entry point is the startup stub")
	assert.Equal(t, l.Header.EntryPoint, l.Manifest.EntryPoint, "manifest echoes the entry point")
}

func TestAllTargetsProduceValidImages(t *testing.T) {
	src := `
fn fib(n: i64) -> i64 {
    if n < 2 { return n; }
    return fib(n - 1) + fib(n - 2);
}
fn main() -> i64 { return fib(10); }
`
	for _, target := range []codegen.Target{codegen.X64, codegen.AArch64, codegen.RISCV64} {
		arts := runJob(t, src, target, 2)
		l, err := object.Load(arts.Image)
		require.NoError(t, err, "target %s", target)
		require.NoError(t, l.Validate(object.DefaultConfig()), "target %s", target)
		assert.Equal(t, target.ArchID(), l.Header.Arch)
	}
}

func TestEmptySourceStillBuildsImage(t *testing.T) {
	arts := runJob(t, "", codegen.X64, 1)
	l, err := object.Load(arts.Image)
	require.NoError(t, err)
	require.NoError(t, l.Validate(object.DefaultConfig()))
	// Code is just the startup stub with an unpatched call.
	assert.NotZero(t, l.Header.Code.Size)
	assert.Less(t, l.Header.Code.Size, uint64(32))
}

func TestVoidPropagationPipeline(t *testing.T) {
	arts := runJob(t, `
fn div(a: i64, b: i64) -> i64 { return a / b; }
fn main() -> i64 { let x = div(10, 0)?? ; return x; }
`, codegen.X64, 0)

	runtimeVoid, provenVoid := 0, 0
	for _, e := range arts.Proofs.Entries {
		if e.Kind != proof.KindVoid {
			continue
		}
		switch e.Status {
		case proof.StatusProven:
			provenVoid++
		case proof.StatusRuntime:
			runtimeVoid++
		}
	}
	assert.Equal(t, 1, runtimeVoid, "the / gets a runtime VOID entry")
	assert.Equal(t, 1, provenVoid, "the ?? gets a proven VOID entry")

	l, err := object.Load(arts.Image)
	require.NoError(t, err)
	require.NoError(t, l.Validate(object.DefaultConfig()))
	assert.Equal(t, uint32(0), l.Counts.Failed)
}

// Multiplication by a power of two is strength-reduced at -O2.
func TestPatternFolding(t *testing.T) {
	arts := runJob(t, "fn f(x: i64) -> i64 { return x * 8; }", codegen.X64, 2)

	fn := arts.Module.FindFunction("f")
	require.NotNil(t, fn)
	shl, mul := 0, 0
	fn.ForEachInstr(func(ins *ir.Instr) {
		switch ins.Op {
		case ir.SHL:
			shl++
		case ir.MUL:
			mul++
		}
	})
	assert.Equal(t, 1, shl)
	assert.Zero(t, mul)
}

func TestSyntaxErrorsAbortPipeline(t *testing.T) {
	arts, err := Run(Job{Filename: "bad.sph", Source: "fn ( {", Target: codegen.X64, OptLevel: 1})
	require.Error(t, err)
	assert.Nil(t, arts.Image)
	assert.True(t, arts.Diags.HasErrors())
}

func TestLoweringErrorsAbortPipeline(t *testing.T) {
	arts, err := Run(Job{Filename: "bad.sph", Source: "fn main() -> i64 { return missing; }", Target: codegen.X64, OptLevel: 1})
	require.Error(t, err)
	assert.Nil(t, arts.Image)
}

func TestEffectTableCarriesDeclaredMask(t *testing.T) {
	arts := runJob(t, `
#[effects(io)]
fn logit() { }
fn main() -> i64 { logit(); return 0; }
`, codegen.X64, 1)

	l, err := object.Load(arts.Image)
	require.NoError(t, err)
	require.NoError(t, l.Validate(object.DefaultConfig()))
	assert.NotZero(t, l.Header.Effects.Size)
}
