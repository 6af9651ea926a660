// Package lower translates the parsed tree into a Celestial IR module.
// Lowering errors are fatal to the compilation: no partial IR escapes.
package lower

import (
	"fmt"

	"seraphic/internal/arena"
	"seraphic/internal/ast"
	"seraphic/internal/ir"
	"seraphic/internal/source"
)

// Lowerer holds per-compilation lowering state. The closure counter lives
// here so lifted names are unique per job, not per process.
type Lowerer struct {
	mod   *ir.Module
	diags *source.List
	arena *arena.Arena

	structs map[string]*ir.Struct
	enums   map[string]*ir.Enum
	aliases map[string]ast.TypeExpr
	globals map[string]*ir.Value

	fn     *ir.Function
	block  *ir.BasicBlock
	scopes []map[string]*symbol

	// Innermost-last loop target stacks for break/continue.
	loopExits []*ir.BasicBlock
	loopConts []*ir.BasicBlock

	// outerScopes is set while lowering a closure body so that references
	// to enclosing locals are rejected as capture rather than reported as
	// undefined.
	outerScopes []map[string]*symbol

	closureCounter int
	blockCounter   int
}

type symbol struct {
	value   *ir.Value // stack-slot address
	typ     ir.Type   // value type stored in the slot
	mutable bool
}

// Lower produces an IR module from a well-formed tree. The returned error
// is non-nil iff any lowering diagnostic of error severity was recorded.
func Lower(mod *ast.Module, diags *source.List, a *arena.Arena) (*ir.Module, error) {
	l := &Lowerer{
		mod:     ir.NewModule(),
		diags:   diags,
		arena:   a,
		structs: make(map[string]*ir.Struct),
		enums:   make(map[string]*ir.Enum),
		aliases: make(map[string]ast.TypeExpr),
		globals: make(map[string]*ir.Value),
	}

	before := diags.ErrorCount()
	l.collectTypes(mod)
	l.collectFunctions(mod)
	l.collectGlobals(mod)
	l.lowerBodies(mod)

	if diags.ErrorCount() > before {
		return nil, fmt.Errorf("lowering failed with %d errors", diags.ErrorCount()-before)
	}
	return l.mod, nil
}

// collectTypes creates struct and enum shells first so member types can
// refer to each other, then fills in the members.
func (l *Lowerer) collectTypes(mod *ast.Module) {
	for _, decl := range mod.Decls {
		switch d := decl.(type) {
		case *ast.StructDecl:
			st := &ir.Struct{Name: d.Name.Value}
			l.structs[d.Name.Value] = st
			l.mod.Types.Intern(st)
		case *ast.EnumDecl:
			en := &ir.Enum{Name: d.Name.Value}
			l.enums[d.Name.Value] = en
			l.mod.Types.Intern(en)
		case *ast.TypeAliasDecl:
			l.aliases[d.Name.Value] = d.Aliased
		}
	}

	for _, decl := range mod.Decls {
		switch d := decl.(type) {
		case *ast.StructDecl:
			st := l.structs[d.Name.Value]
			for _, f := range d.Fields {
				st.FieldNames = append(st.FieldNames, f.Name.Value)
				st.Fields = append(st.Fields, l.lowerType(f.Type))
			}
		case *ast.EnumDecl:
			en := l.enums[d.Name.Value]
			for _, v := range d.Variants {
				en.Variants = append(en.Variants, v.Name.Value)
				if len(v.Payload) == 1 {
					en.Payloads = append(en.Payloads, l.lowerType(v.Payload[0]))
				} else {
					en.Payloads = append(en.Payloads, nil)
				}
			}
		}
	}
}

// collectFunctions registers every function signature, including methods
// under their mangled Struct_name form, so calls resolve before bodies are
// lowered.
func (l *Lowerer) collectFunctions(mod *ast.Module) {
	register := func(fn *ast.FuncDecl) {
		l.registerFunction(fn)
	}
	for _, decl := range mod.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			register(d)
		case *ast.ImplBlock:
			for _, fn := range d.Funcs {
				register(fn)
			}
		}
	}
}

func (l *Lowerer) registerFunction(fn *ast.FuncDecl) *ir.Function {
	name := fn.Name.Value
	if fn.Method {
		name = fn.Receiver + "_" + name
	}

	var params []ir.Type
	if fn.Method {
		recv := l.namedType(fn.Receiver, fn.Name.Pos)
		params = append(params, l.mod.Types.PointerTo(recv))
	}
	for _, p := range fn.Params {
		params = append(params, l.lowerType(p.Type))
	}

	ret := l.unitType()
	if fn.Return != nil {
		ret = l.lowerType(fn.Return)
	}

	effects := ir.EffectPure
	if fn.Annot != nil && !fn.Annot.Pure {
		for _, e := range fn.Annot.Effects {
			if m, ok := ir.EffectFromName(e.Value); ok {
				effects |= m
			}
		}
	}

	ft := l.mod.Types.Intern(&ir.FuncType{Return: ret, Params: params, Effects: effects}).(*ir.FuncType)
	irFn := ir.NewFunction(name, ft, fn.Name.Pos)
	l.mod.AddFunction(irFn)
	return irFn
}

// collectGlobals interns module-level let/const bindings. Only literal
// initializers are supported at this level; the constant is substituted at
// every use site.
func (l *Lowerer) collectGlobals(mod *ast.Module) {
	for _, decl := range mod.Decls {
		d, ok := decl.(*ast.LetDecl)
		if !ok {
			continue
		}
		switch d.Init.(type) {
		case *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.CharLit, *ast.VoidLit:
			l.globals[d.Name.Value] = l.lowerExpr(d.Init)
		case nil:
			l.errorf(source.ErrMissingInitOrType, d.Pos, "module-level binding '%s' needs an initializer", d.Name.Value)
		default:
			l.errorf(source.ErrMissingInitOrType, d.Pos, "module-level binding '%s' must be initialized with a literal", d.Name.Value)
		}
	}
}

func (l *Lowerer) lowerBodies(mod *ast.Module) {
	lower := func(fn *ast.FuncDecl) {
		if fn.Body == nil {
			return
		}
		name := fn.Name.Value
		if fn.Method {
			name = fn.Receiver + "_" + name
		}
		l.lowerFunctionBody(l.mod.FindFunction(name), fn)
	}
	for _, decl := range mod.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			lower(d)
		case *ast.ImplBlock:
			for _, fn := range d.Funcs {
				lower(fn)
			}
		case *ast.LetDecl:
			// Module-level bindings are constants folded at use sites;
			// nothing to emit here.
		}
	}
}

// lowerFunctionBody lowers one body into blocks. Every parameter, aggregate
// or not, is spilled to a stack slot so address-of and field access have a
// stable base pointer.
func (l *Lowerer) lowerFunctionBody(irFn *ir.Function, decl *ast.FuncDecl) {
	l.fn = irFn
	l.blockCounter = 0
	l.block = irFn.NewBlock("entry")
	l.pushScope()
	defer func() {
		l.popScope()
		l.fn = nil
		l.block = nil
	}()

	paramIdx := 0
	if decl.Method {
		pv := irFn.Params[paramIdx]
		paramIdx++
		slot := l.emitAlloca(pv.Type, decl.Name.Pos)
		l.emitStore(pv, slot, decl.Name.Pos)
		l.declare("self", &symbol{value: slot, typ: pv.Type, mutable: false})
	}
	for i, p := range decl.Params {
		pv := irFn.Params[paramIdx+i]
		slot := l.emitAlloca(pv.Type, p.Name.Pos)
		l.emitStore(pv, slot, p.Name.Pos)
		l.declare(p.Name.Value, &symbol{value: slot, typ: pv.Type, mutable: false})
	}

	tail := l.lowerBlockInto(decl.Body)
	if l.block != nil && !l.block.Terminated() {
		if tail != nil {
			l.emitReturn(tail, decl.Body.EndPos)
		} else {
			l.emitReturn(nil, decl.Body.EndPos)
		}
	}
}

// Scope stack.

func (l *Lowerer) pushScope() {
	l.scopes = append(l.scopes, make(map[string]*symbol))
}

func (l *Lowerer) popScope() {
	l.scopes = l.scopes[:len(l.scopes)-1]
}

func (l *Lowerer) declare(name string, sym *symbol) {
	l.scopes[len(l.scopes)-1][name] = sym
}

func (l *Lowerer) lookup(name string) *symbol {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if sym, ok := l.scopes[i][name]; ok {
			return sym
		}
	}
	return nil
}

// lookupOuter reports whether a name is visible in the scopes of the
// function enclosing a closure under construction.
func (l *Lowerer) lookupOuter(name string) bool {
	for i := len(l.outerScopes) - 1; i >= 0; i-- {
		if _, ok := l.outerScopes[i][name]; ok {
			return true
		}
	}
	return false
}

// scopeNames lists every visible binding and function name, for
// did-you-mean suggestions.
func (l *Lowerer) scopeNames() []string {
	var names []string
	for _, scope := range l.scopes {
		for name := range scope {
			names = append(names, name)
		}
	}
	for _, fn := range l.mod.Functions {
		names = append(names, fn.Name)
	}
	return names
}

// Emission helpers.

func (l *Lowerer) newBlock(name string) *ir.BasicBlock {
	return l.fn.NewBlock(name)
}

func (l *Lowerer) emit(ins *ir.Instr) *ir.Instr {
	l.block.Append(ins)
	return ins
}

func (l *Lowerer) emitValue(op ir.Opcode, resultType ir.Type, pos source.Position, operands ...*ir.Value) *ir.Value {
	result := l.fn.NewVReg(resultType)
	ins := &ir.Instr{Op: op, Pos: pos, Operands: operands, Result: result}
	result.Def = ins
	l.emit(ins)
	return result
}

func (l *Lowerer) emitAlloca(t ir.Type, pos source.Position) *ir.Value {
	result := l.fn.NewVReg(l.mod.Types.PointerTo(t))
	result.AllocaType = t
	ins := &ir.Instr{Op: ir.ALLOCA, Pos: pos, Result: result}
	result.Def = ins
	l.emit(ins)
	return result
}

func (l *Lowerer) emitStore(value, addr *ir.Value, pos source.Position) {
	l.emit(&ir.Instr{Op: ir.STORE, Pos: pos, Operands: []*ir.Value{value, addr}})
}

func (l *Lowerer) emitLoad(addr *ir.Value, t ir.Type, pos source.Position) *ir.Value {
	return l.emitValue(ir.LOAD, t, pos, addr)
}

func (l *Lowerer) emitJump(target *ir.BasicBlock, pos source.Position) {
	if l.block.Terminated() {
		return
	}
	target.Preds = append(target.Preds, l.block)
	l.emit(&ir.Instr{Op: ir.JUMP, Pos: pos, Target1: target})
}

func (l *Lowerer) emitBranch(cond *ir.Value, t, f *ir.BasicBlock, pos source.Position) {
	if l.block.Terminated() {
		return
	}
	t.Preds = append(t.Preds, l.block)
	f.Preds = append(f.Preds, l.block)
	l.emit(&ir.Instr{Op: ir.BRANCH, Pos: pos, Operands: []*ir.Value{cond}, Target1: t, Target2: f})
}

func (l *Lowerer) emitReturn(v *ir.Value, pos source.Position) {
	if l.block.Terminated() {
		return
	}
	ins := &ir.Instr{Op: ir.RETURN, Pos: pos}
	if v != nil {
		ins.Operands = []*ir.Value{v}
	}
	l.emit(ins)
}

// Diagnostics.

func (l *Lowerer) errorf(code string, pos source.Position, format string, args ...interface{}) {
	l.diags.Add(source.Diagnostic{
		Severity: source.Error,
		Code:     code,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (l *Lowerer) errorWithSuggestion(code string, pos source.Position, message, suggestion string) {
	d := source.Diagnostic{Severity: source.Error, Code: code, Pos: pos, Message: message}
	if suggestion != "" {
		d.Suggestions = []source.Suggestion{{Message: fmt.Sprintf("did you mean '%s'?", suggestion)}}
	}
	l.diags.Add(d)
}
