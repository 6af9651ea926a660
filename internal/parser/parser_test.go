package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seraphic/internal/ast"
)

func TestParseFunction(t *testing.T) {
	mod, diags := Parse("test.sph", `
fn add(a: i64, b: i64) -> i64 {
    return a + b;
}
`)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	require.Len(t, mod.Decls, 1)

	fn, ok := mod.Decls[0].(*ast.FuncDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name.Value)
	assert.Len(t, fn.Params, 2)
	require.NotNil(t, fn.Return)
	require.NotNil(t, fn.Body)
	require.Len(t, fn.Body.Stmts, 1)

	ret, ok := fn.Body.Stmts[0].(*ast.ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestPrecedence(t *testing.T) {
	mod, diags := Parse("test.sph", "fn f() -> i64 { return 1 + 2 * 3; }")
	require.False(t, diags.HasErrors())
	fn := mod.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	add := ret.Value.(*ast.BinaryExpr)
	assert.Equal(t, "+", add.Op)
	mul, ok := add.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	mod, diags := Parse("test.sph", "fn f() { a = b = 1; }")
	require.False(t, diags.HasErrors())
	fn := mod.Decls[0].(*ast.FuncDecl)
	stmt := fn.Body.Stmts[0].(*ast.ExprStmt)
	outer := stmt.Value.(*ast.AssignExpr)
	_, ok := outer.Value.(*ast.AssignExpr)
	assert.True(t, ok)
}

func TestStructDeclAndLiteral(t *testing.T) {
	mod, diags := Parse("test.sph", `
struct P { x: i32, y: i32 }
fn f() -> i32 {
    let p = P { x: 1, y: 2 };
    return p.x;
}
`)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	require.Len(t, mod.Decls, 2)

	st := mod.Decls[0].(*ast.StructDecl)
	assert.Len(t, st.Fields, 2)

	fn := mod.Decls[1].(*ast.FuncDecl)
	let := fn.Body.Stmts[0].(*ast.LetStmt)
	lit, ok := let.Decl.Init.(*ast.StructLiteralExpr)
	require.True(t, ok)
	assert.Equal(t, "P", lit.Name)
	assert.Len(t, lit.Fields, 2)
}

// `while x { }` must treat `{` as the loop body, not a struct literal.
func TestLoopHeadBraceIsBody(t *testing.T) {
	mod, diags := Parse("test.sph", "fn f() { while running { } }")
	require.False(t, diags.HasErrors(), "%v", diags.All())
	fn := mod.Decls[0].(*ast.FuncDecl)
	loop, ok := fn.Body.Stmts[0].(*ast.WhileStmt)
	require.True(t, ok)
	_, ok = loop.Cond.(*ast.IdentExpr)
	assert.True(t, ok)
}

func TestIfWithoutSemicolonIsStatement(t *testing.T) {
	mod, diags := Parse("test.sph", `
fn f(x: i64) {
    if x > 0 { g(); } else { h(); }
    g();
}
`)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	fn := mod.Decls[0].(*ast.FuncDecl)
	require.Len(t, fn.Body.Stmts, 2)
	first := fn.Body.Stmts[0].(*ast.ExprStmt)
	_, ok := first.Value.(*ast.IfExpr)
	assert.True(t, ok)
}

func TestMatchExpression(t *testing.T) {
	mod, diags := Parse("test.sph", `
fn f(n: i64) -> i64 { match n { 1 => 10, 2 => 20, _ => 0 } }
`)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	fn := mod.Decls[0].(*ast.FuncDecl)
	require.NotNil(t, fn.Body.Tail)
	m := fn.Body.Tail.(*ast.MatchExpr)
	require.Len(t, m.Arms, 3)
	_, ok := m.Arms[0].Pattern.(*ast.LiteralPattern)
	assert.True(t, ok)
	_, ok = m.Arms[2].Pattern.(*ast.WildcardPattern)
	assert.True(t, ok)
}

func TestVariantPatternRejected(t *testing.T) {
	_, diags := Parse("test.sph", "fn f(n: i64) -> i64 { match n { Some(x) => 1, _ => 0 } }")
	assert.True(t, diags.HasErrors())
}

func TestRangeFor(t *testing.T) {
	mod, diags := Parse("test.sph", "fn f() { for i in 0..10 { g(); } for j in 0..=5 { g(); } }")
	require.False(t, diags.HasErrors(), "%v", diags.All())
	fn := mod.Decls[0].(*ast.FuncDecl)
	half := fn.Body.Stmts[0].(*ast.ForStmt)
	assert.False(t, half.Range.Inclusive)
	incl := fn.Body.Stmts[1].(*ast.ForStmt)
	assert.True(t, incl.Range.Inclusive)
}

func TestVoidOperators(t *testing.T) {
	mod, diags := Parse("test.sph", `
fn f(x: i64) -> i64 {
    let a = g(x)??;
    let b = g(x)!!;
    let c = g(x) ?? 7;
    return a + b + c;
}
`)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	fn := mod.Decls[0].(*ast.FuncDecl)
	a := fn.Body.Stmts[0].(*ast.LetStmt)
	_, ok := a.Decl.Init.(*ast.PropagateExpr)
	assert.True(t, ok, "postfix ?? should parse as propagation")
	b := fn.Body.Stmts[1].(*ast.LetStmt)
	_, ok = b.Decl.Init.(*ast.AssertExpr)
	assert.True(t, ok)
	c := fn.Body.Stmts[2].(*ast.LetStmt)
	_, ok = c.Decl.Init.(*ast.CoalesceExpr)
	assert.True(t, ok, "binary ?? should parse as coalesce")
}

func TestTypes(t *testing.T) {
	mod, diags := Parse("test.sph", `
fn f(a: ??i64, b: *P, c: &mut P, d: [i64; 4], e: [u8], g: fn(i64) -> i64) { }
`)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	fn := mod.Decls[0].(*ast.FuncDecl)
	require.Len(t, fn.Params, 6)
	_, ok := fn.Params[0].Type.(*ast.VoidableType)
	assert.True(t, ok)
	_, ok = fn.Params[1].Type.(*ast.PointerType)
	assert.True(t, ok)
	ref, ok := fn.Params[2].Type.(*ast.RefType)
	require.True(t, ok)
	assert.True(t, ref.Mut)
	_, ok = fn.Params[3].Type.(*ast.ArrayType)
	assert.True(t, ok)
	_, ok = fn.Params[4].Type.(*ast.SliceType)
	assert.True(t, ok)
	_, ok = fn.Params[5].Type.(*ast.FuncType)
	assert.True(t, ok)
}

func TestEffectAnnotation(t *testing.T) {
	mod, diags := Parse("test.sph", `
#[pure]
fn f() -> i64 { return 1; }
#[effects(io, timer)]
fn g() { }
`)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	f := mod.Decls[0].(*ast.FuncDecl)
	require.NotNil(t, f.Annot)
	assert.True(t, f.Annot.Pure)
	g := mod.Decls[1].(*ast.FuncDecl)
	require.NotNil(t, g.Annot)
	require.Len(t, g.Annot.Effects, 2)
}

func TestUnknownEffectWarns(t *testing.T) {
	_, diags := Parse("test.sph", "#[effects(teleport)]\nfn f() { }")
	assert.False(t, diags.HasErrors())
	assert.Equal(t, 1, diags.WarningCount())
}

func TestImplBlock(t *testing.T) {
	mod, diags := Parse("test.sph", `
struct Counter { n: i64 }
impl Counter {
    fn incr(amount: i64) -> i64 { return amount; }
}
`)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	impl := mod.Decls[1].(*ast.ImplBlock)
	require.Len(t, impl.Funcs, 1)
	assert.True(t, impl.Funcs[0].Method)
	assert.Equal(t, "Counter", impl.Funcs[0].Receiver)
}

func TestLetNeedsTypeOrInit(t *testing.T) {
	_, diags := Parse("test.sph", "fn f() { let x; }")
	assert.True(t, diags.HasErrors())
}

func TestPanicRecovery(t *testing.T) {
	mod, diags := Parse("test.sph", `
fn broken( { ???
fn ok() -> i64 { return 1; }
`)
	assert.True(t, diags.HasErrors())
	// The parser resynchronizes and still sees the following declaration.
	var found bool
	for _, d := range mod.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Name.Value == "ok" {
			found = true
		}
	}
	assert.True(t, found, "parser should recover and parse fn ok")
}

func TestEmptySourceModule(t *testing.T) {
	mod, diags := Parse("empty.sph", "")
	require.False(t, diags.HasErrors())
	assert.Empty(t, mod.Decls)
}

// Every node position points inside the originating source.
func TestNodePositionsInRange(t *testing.T) {
	src := `
struct P { x: i32 }
fn main() -> i32 {
    let p = P { x: 3 };
    return p.x;
}
`
	mod, diags := Parse("test.sph", src)
	require.False(t, diags.HasErrors())
	for _, d := range mod.Decls {
		pos := d.NodePos()
		assert.GreaterOrEqual(t, pos.Offset, 0)
		assert.Less(t, pos.Offset, len(src))
	}
}
