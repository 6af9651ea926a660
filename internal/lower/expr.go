package lower

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"seraphic/internal/ast"
	"seraphic/internal/ir"
	"seraphic/internal/source"
)

// lowerExpr lowers an expression to an SSA value. A nil return means an
// error diagnostic was recorded.
func (l *Lowerer) lowerExpr(e ast.Expr) *ir.Value {
	switch ex := e.(type) {
	case *ast.IntLit:
		t := l.suffixType(ex.Suffix)
		if suffixIsFloat(ex.Suffix) {
			return l.mod.IntConst(fixedPointBits(float64(ex.Value)), t)
		}
		return l.mod.IntConst(ex.Value, t)

	case *ast.FloatLit:
		t := l.scalarType()
		if ex.Suffix == "d" || ex.Suffix == "g" {
			t = l.suffixType(ex.Suffix)
		}
		return l.mod.IntConst(fixedPointBits(ex.Value), t)

	case *ast.BoolLit:
		if ex.Value {
			return l.mod.IntConst(1, l.boolType())
		}
		return l.mod.IntConst(0, l.boolType())

	case *ast.CharLit:
		return l.mod.IntConst(uint64(ex.Value), l.mod.Types.Prim(ir.PrimU8))

	case *ast.StringLit:
		bytes := expandEscapes(ex.Raw)
		return l.mod.StringConst(bytes, l.mod.Types.PointerTo(l.mod.Types.Prim(ir.PrimU8)))

	case *ast.VoidLit:
		return l.mod.VoidConst(l.mod.Types.VoidableOf(l.i64Type()))

	case *ast.IdentExpr:
		return l.lowerIdent(ex)

	case *ast.UnaryExpr:
		return l.lowerUnary(ex)

	case *ast.BinaryExpr:
		return l.lowerBinary(ex)

	case *ast.AssignExpr:
		return l.lowerAssign(ex)

	case *ast.FieldAccessExpr:
		addr, t := l.lowerAddress(ex)
		if addr == nil {
			return nil
		}
		return l.emitLoad(addr, t, ex.Pos)

	case *ast.IndexExpr:
		addr, t := l.lowerAddress(ex)
		if addr == nil {
			return nil
		}
		return l.emitLoad(addr, t, ex.Pos)

	case *ast.CallExpr:
		return l.lowerCall(ex)

	case *ast.MethodCallExpr:
		return l.lowerMethodCall(ex)

	case *ast.ClosureExpr:
		return l.lowerClosure(ex)

	case *ast.ArrayExpr:
		addr, _ := l.lowerArrayLiteral(ex)
		return addr

	case *ast.StructLiteralExpr:
		addr, _ := l.lowerStructLiteral(ex)
		return addr

	case *ast.CastExpr:
		return l.lowerCast(ex)

	case *ast.IfExpr:
		return l.lowerIf(ex)

	case *ast.MatchExpr:
		return l.lowerMatch(ex)

	case *ast.BlockExpr:
		l.pushScope()
		tail := l.lowerBlockInto(ex)
		l.popScope()
		if tail == nil {
			return l.unitValue()
		}
		return tail

	case *ast.PropagateExpr:
		v := l.lowerExpr(ex.Value)
		if v == nil {
			return nil
		}
		return l.emitValue(ir.VOID_PROP, stripVoidable(v.Type), ex.Pos, v)

	case *ast.AssertExpr:
		v := l.lowerExpr(ex.Value)
		if v == nil {
			return nil
		}
		return l.emitValue(ir.VOID_ASSERT, stripVoidable(v.Type), ex.Pos, v)

	case *ast.CoalesceExpr:
		v := l.lowerExpr(ex.Value)
		d := l.lowerExpr(ex.Default)
		if v == nil || d == nil {
			return nil
		}
		return l.emitValue(ir.VOID_COALESCE, stripVoidable(v.Type), ex.Pos, v, d)

	case *ast.RangeExpr:
		l.errorf(source.ErrUnexpectedToken, ex.Pos, "range expression is only valid in a for loop")
		return nil

	case *ast.BadExpr:
		return nil

	default:
		l.errorf(source.ErrUnexpectedToken, e.NodePos(), "unsupported expression")
		return nil
	}
}

func (l *Lowerer) unitValue() *ir.Value {
	return l.mod.IntConst(0, l.unitType())
}

func stripVoidable(t ir.Type) ir.Type {
	if v, ok := t.(*ir.Voidable); ok {
		return v.Inner
	}
	return t
}

func suffixIsFloat(s string) bool {
	return s == "s" || s == "d" || s == "g"
}

func (l *Lowerer) lowerIdent(ex *ast.IdentExpr) *ir.Value {
	if sym := l.lookup(ex.Name); sym != nil {
		return l.emitLoad(sym.value, sym.typ, ex.Pos)
	}
	if global, ok := l.globals[ex.Name]; ok {
		return global
	}
	if fn := l.mod.FindFunction(ex.Name); fn != nil {
		return l.mod.FuncValue(fn)
	}
	if l.lookupOuter(ex.Name) {
		l.errorf(source.ErrClosureCapture, ex.Pos,
			"closures cannot capture '%s' from the enclosing function", ex.Name)
		return nil
	}
	l.errorWithSuggestion(source.ErrUndefinedIdent, ex.Pos,
		fmt.Sprintf("undefined identifier '%s'", ex.Name), l.suggestName(ex.Name, l.scopeNames()))
	return nil
}

// suggestName picks the closest fuzzy match for a did-you-mean hint.
func (l *Lowerer) suggestName(name string, candidates []string) string {
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

func (l *Lowerer) lowerUnary(ex *ast.UnaryExpr) *ir.Value {
	switch ex.Op {
	case "&", "&mut":
		addr, _ := l.lowerAddress(ex.Value)
		return addr
	case "*":
		v := l.lowerExpr(ex.Value)
		if v == nil {
			return nil
		}
		ptr, ok := v.Type.(*ir.Pointer)
		if !ok {
			l.errorf(source.ErrUnsupportedCast, ex.Pos, "cannot dereference non-pointer value")
			return nil
		}
		return l.emitLoad(v, ptr.Elem, ex.Pos)
	}

	v := l.lowerExpr(ex.Value)
	if v == nil {
		return nil
	}
	switch ex.Op {
	case "-":
		return l.emitValue(ir.NEG, v.Type, ex.Pos, v)
	case "~":
		return l.emitValue(ir.NOT, v.Type, ex.Pos, v)
	case "!":
		return l.emitValue(ir.EQ, l.boolType(), ex.Pos, v, l.mod.IntConst(0, v.Type))
	default:
		l.errorf(source.ErrUnexpectedToken, ex.Pos, "unsupported unary operator '%s'", ex.Op)
		return nil
	}
}

var binOpcodes = map[string]ir.Opcode{
	"+": ir.ADD, "-": ir.SUB, "*": ir.MUL, "/": ir.DIV, "%": ir.MOD,
	"&": ir.AND, "|": ir.OR, "^": ir.XOR, "<<": ir.SHL,
	"&&": ir.AND, "||": ir.OR,
}

var cmpOpcodes = map[string]ir.Opcode{
	"==": ir.EQ, "!=": ir.NE, "<": ir.LT, "<=": ir.LE, ">": ir.GT, ">=": ir.GE,
}

func (l *Lowerer) lowerBinary(ex *ast.BinaryExpr) *ir.Value {
	left := l.lowerExpr(ex.Left)
	right := l.lowerExpr(ex.Right)
	if left == nil || right == nil {
		return nil
	}

	if op, ok := cmpOpcodes[ex.Op]; ok {
		return l.emitValue(op, l.boolType(), ex.Pos, left, right)
	}

	// Pointer arithmetic scales the integer operand by the pointee size;
	// pointer difference divides the raw byte distance back down.
	if ptr, ok := left.Type.(*ir.Pointer); ok && (ex.Op == "+" || ex.Op == "-") {
		elemSize := uint64(ptr.Elem.Size())
		if _, rhsPtr := right.Type.(*ir.Pointer); rhsPtr && ex.Op == "-" {
			diff := l.emitValue(ir.SUB, l.i64Type(), ex.Pos, left, right)
			return l.emitValue(ir.DIV, l.i64Type(), ex.Pos, diff, l.mod.IntConst(elemSize, l.i64Type()))
		}
		scaled := l.emitValue(ir.MUL, l.i64Type(), ex.Pos, right, l.mod.IntConst(elemSize, l.i64Type()))
		op := ir.ADD
		if ex.Op == "-" {
			op = ir.SUB
		}
		return l.emitValue(op, left.Type, ex.Pos, left, scaled)
	}

	if ex.Op == ">>" {
		op := ir.SHR
		if signedValue(left) {
			op = ir.SAR
		}
		return l.emitValue(op, left.Type, ex.Pos, left, right)
	}

	if op, ok := binOpcodes[ex.Op]; ok {
		return l.emitValue(op, left.Type, ex.Pos, left, right)
	}

	l.errorf(source.ErrUnexpectedToken, ex.Pos, "unsupported binary operator '%s'", ex.Op)
	return nil
}

func signedValue(v *ir.Value) bool {
	if p, ok := v.Type.(*ir.Prim); ok {
		return p.Signed()
	}
	return false
}

func (l *Lowerer) lowerAssign(ex *ast.AssignExpr) *ir.Value {
	switch ex.Target.(type) {
	case *ast.IdentExpr, *ast.FieldAccessExpr, *ast.IndexExpr:
	default:
		l.errorf(source.ErrInvalidAssignTarget, ex.Pos,
			"assignment target must be a variable, field, or index expression")
		return nil
	}

	if id, ok := ex.Target.(*ast.IdentExpr); ok {
		if sym := l.lookup(id.Name); sym != nil && !sym.mutable {
			l.errorf(source.ErrImmutableAssign, ex.Pos, "cannot assign to immutable binding '%s'", id.Name)
			return nil
		}
	}

	addr, elemType := l.lowerAddress(ex.Target)
	value := l.lowerExpr(ex.Value)
	if addr == nil || value == nil {
		return nil
	}

	if ex.Op != "=" {
		op, ok := binOpcodes[strings.TrimSuffix(ex.Op, "=")]
		if !ok {
			l.errorf(source.ErrUnexpectedToken, ex.Pos, "unsupported compound assignment '%s'", ex.Op)
			return nil
		}
		current := l.emitLoad(addr, elemType, ex.Pos)
		value = l.emitValue(op, elemType, ex.Pos, current, value)
	}

	l.emitStore(value, addr, ex.Pos)
	return value
}

// lowerAddress computes the address of a place expression, returning the
// address value and the type stored there.
func (l *Lowerer) lowerAddress(e ast.Expr) (*ir.Value, ir.Type) {
	switch ex := e.(type) {
	case *ast.IdentExpr:
		sym := l.lookup(ex.Name)
		if sym == nil {
			if l.lookupOuter(ex.Name) {
				l.errorf(source.ErrClosureCapture, ex.Pos,
					"closures cannot capture '%s' from the enclosing function", ex.Name)
				return nil, nil
			}
			l.errorWithSuggestion(source.ErrUndefinedIdent, ex.Pos,
				fmt.Sprintf("undefined identifier '%s'", ex.Name), l.suggestName(ex.Name, l.scopeNames()))
			return nil, nil
		}
		return sym.value, sym.typ

	case *ast.FieldAccessExpr:
		baseAddr, baseType := l.lowerAddress(ex.Target)
		if baseAddr == nil {
			return nil, nil
		}
		st, ok := baseType.(*ir.Struct)
		if !ok {
			// One level of auto-deref when the base is a pointer to struct.
			if ptr, isPtr := baseType.(*ir.Pointer); isPtr {
				if inner, isStruct := ptr.Elem.(*ir.Struct); isStruct {
					baseAddr = l.emitLoad(baseAddr, baseType, ex.Pos)
					st = inner
					ok = true
				}
			}
		}
		if !ok {
			l.errorf(source.ErrFieldNotFound, ex.Pos, "field access on non-struct value")
			return nil, nil
		}
		idx := st.FieldIndex(ex.Field)
		if idx < 0 {
			l.errorWithSuggestion(source.ErrFieldNotFound, ex.Pos,
				fmt.Sprintf("struct %s has no field '%s'", st.Name, ex.Field),
				l.suggestName(ex.Field, st.FieldNames))
			return nil, nil
		}
		fieldType := st.Fields[idx]
		addr := l.fn.NewVReg(l.mod.Types.PointerTo(fieldType))
		ins := &ir.Instr{Op: ir.GEP, Pos: ex.Pos, Operands: []*ir.Value{baseAddr}, Result: addr, Field: idx}
		addr.Def = ins
		l.emit(ins)
		return addr, fieldType

	case *ast.IndexExpr:
		baseAddr, baseType := l.lowerAddress(ex.Target)
		index := l.lowerExpr(ex.Index)
		if baseAddr == nil || index == nil {
			return nil, nil
		}
		var elem ir.Type
		base := baseAddr
		switch bt := baseType.(type) {
		case *ir.Array:
			elem = bt.Elem
		case *ir.Pointer:
			base = l.emitLoad(baseAddr, baseType, ex.Pos)
			elem = bt.Elem
		default:
			l.errorf(source.ErrNotIndexable, ex.Pos, "value of type %s cannot be indexed", baseType)
			return nil, nil
		}
		addr := l.emitValue(ir.ARRAY_GEP, l.mod.Types.PointerTo(elem), ex.Pos, base, index)
		return addr, elem

	case *ast.UnaryExpr:
		if ex.Op == "*" {
			v := l.lowerExpr(ex.Value)
			if v == nil {
				return nil, nil
			}
			if ptr, ok := v.Type.(*ir.Pointer); ok {
				return v, ptr.Elem
			}
			l.errorf(source.ErrUnsupportedCast, ex.Pos, "cannot dereference non-pointer value")
			return nil, nil
		}

	case *ast.StructLiteralExpr:
		return l.lowerStructLiteral(ex)

	case *ast.ArrayExpr:
		return l.lowerArrayLiteral(ex)
	}

	l.errorf(source.ErrInvalidAssignTarget, e.NodePos(), "expression has no address")
	return nil, nil
}

// syscallArity maps the __syscall intrinsic family to the argument count
// each form takes beyond the syscall number.
var syscallArity = map[string]int{
	"__syscall0": 0, "__syscall1": 1, "__syscall2": 2, "__syscall3": 3,
	"__syscall4": 4, "__syscall5": 5, "__syscall6": 6,
}

func (l *Lowerer) lowerCall(ex *ast.CallExpr) *ir.Value {
	id, isIdent := ex.Callee.(*ast.IdentExpr)

	if isIdent {
		// Local binding holding a function pointer shadows a direct call.
		if sym := l.lookup(id.Name); sym != nil {
			ft, ok := sym.typ.(*ir.FuncType)
			if !ok {
				l.errorf(source.ErrUndefinedFunction, ex.Pos, "'%s' is not callable", id.Name)
				return nil
			}
			fnPtr := l.emitLoad(sym.value, sym.typ, ex.Pos)
			return l.emitIndirectCall(fnPtr, ft, ex)
		}

		if fn := l.mod.FindFunction(id.Name); fn != nil {
			return l.emitDirectCall(fn, ex)
		}

		if extra, ok := syscallArity[id.Name]; ok {
			if len(ex.Args) != extra+1 {
				l.errorf(source.ErrSyscallArity, ex.Pos,
					"%s takes %d arguments, got %d", id.Name, extra+1, len(ex.Args))
				return nil
			}
			var operands []*ir.Value
			for _, arg := range ex.Args {
				v := l.lowerExpr(arg)
				if v == nil {
					return nil
				}
				operands = append(operands, v)
			}
			return l.emitValue(ir.SYSCALL, l.i64Type(), ex.Pos, operands...)
		}

		l.errorWithSuggestion(source.ErrUndefinedFunction, ex.Pos,
			fmt.Sprintf("undefined function '%s'", id.Name), l.suggestName(id.Name, l.scopeNames()))
		return nil
	}

	callee := l.lowerExpr(ex.Callee)
	if callee == nil {
		return nil
	}
	ft, ok := callee.Type.(*ir.FuncType)
	if !ok {
		l.errorf(source.ErrUndefinedFunction, ex.Pos, "called expression is not a function")
		return nil
	}
	return l.emitIndirectCall(callee, ft, ex)
}

func (l *Lowerer) emitDirectCall(fn *ir.Function, ex *ast.CallExpr) *ir.Value {
	var operands []*ir.Value
	for _, arg := range ex.Args {
		v := l.lowerExpr(arg)
		if v == nil {
			return nil
		}
		operands = append(operands, v)
	}
	return l.emitCallInstr(ir.CALL, fn, operands, fn.Type.Return, ex.Pos)
}

func (l *Lowerer) emitIndirectCall(fnPtr *ir.Value, ft *ir.FuncType, ex *ast.CallExpr) *ir.Value {
	operands := []*ir.Value{fnPtr}
	for _, arg := range ex.Args {
		v := l.lowerExpr(arg)
		if v == nil {
			return nil
		}
		operands = append(operands, v)
	}
	return l.emitCallInstr(ir.CALL_INDIRECT, nil, operands, ft.Return, ex.Pos)
}

func (l *Lowerer) emitCallInstr(op ir.Opcode, callee *ir.Function, operands []*ir.Value, ret ir.Type, pos source.Position) *ir.Value {
	ins := &ir.Instr{Op: op, Pos: pos, Operands: operands, Callee: callee}
	if prim, ok := ret.(*ir.Prim); ok && prim.Kind == ir.PrimUnit {
		l.emit(ins)
		return l.unitValue()
	}
	result := l.fn.NewVReg(ret)
	result.Def = ins
	ins.Result = result
	l.emit(ins)
	return result
}

// lowerMethodCall rewrites recv.m(args) into StructName_m(&recv, args).
func (l *Lowerer) lowerMethodCall(ex *ast.MethodCallExpr) *ir.Value {
	recvAddr, recvType := l.lowerAddress(ex.Recv)
	if recvAddr == nil {
		return nil
	}
	st, ok := recvType.(*ir.Struct)
	if !ok {
		if ptr, isPtr := recvType.(*ir.Pointer); isPtr {
			if inner, isStruct := ptr.Elem.(*ir.Struct); isStruct {
				recvAddr = l.emitLoad(recvAddr, recvType, ex.Pos)
				st = inner
				ok = true
			}
		}
	}
	if !ok {
		l.errorf(source.ErrMethodOnNonStruct, ex.Pos, "method call on non-struct value")
		return nil
	}

	mangled := st.Name + "_" + ex.Name
	fn := l.mod.FindFunction(mangled)
	if fn == nil {
		l.errorf(source.ErrUndefinedFunction, ex.Pos, "struct %s has no method '%s'", st.Name, ex.Name)
		return nil
	}

	operands := []*ir.Value{recvAddr}
	for _, arg := range ex.Args {
		v := l.lowerExpr(arg)
		if v == nil {
			return nil
		}
		operands = append(operands, v)
	}
	return l.emitCallInstr(ir.CALL, fn, operands, fn.Type.Return, ex.Pos)
}

// lowerClosure lambda-lifts the closure into a fresh top-level function.
// Free-variable capture is rejected: the lifted function sees only its own
// parameters.
func (l *Lowerer) lowerClosure(ex *ast.ClosureExpr) *ir.Value {
	name := fmt.Sprintf("__closure_%d", l.closureCounter)
	l.closureCounter++

	var params []ir.Type
	for _, p := range ex.Params {
		params = append(params, l.lowerType(p.Type))
	}
	ret := l.unitType()
	if ex.Return != nil {
		ret = l.lowerType(ex.Return)
	}
	ft := l.mod.Types.Intern(&ir.FuncType{Return: ret, Params: params}).(*ir.FuncType)
	fn := ir.NewFunction(name, ft, ex.Pos)
	l.mod.AddFunction(fn)

	savedFn, savedBlock := l.fn, l.block
	savedScopes, savedOuter := l.scopes, l.outerScopes
	savedExits, savedConts := l.loopExits, l.loopConts
	savedCounter := l.blockCounter

	l.fn = fn
	l.blockCounter = 0
	l.block = fn.NewBlock("entry")
	l.outerScopes = append(savedOuter, savedScopes...)
	l.scopes = nil
	l.loopExits, l.loopConts = nil, nil
	l.pushScope()

	for i, p := range ex.Params {
		pv := fn.Params[i]
		slot := l.emitAlloca(pv.Type, p.Name.Pos)
		l.emitStore(pv, slot, p.Name.Pos)
		l.declare(p.Name.Value, &symbol{value: slot, typ: pv.Type})
	}

	var result *ir.Value
	if body, ok := ex.Body.(*ast.BlockExpr); ok {
		result = l.lowerBlockInto(body)
	} else {
		result = l.lowerExpr(ex.Body)
	}
	if l.block != nil && !l.block.Terminated() {
		l.emitReturn(result, ex.EndPos)
	}

	l.fn, l.block = savedFn, savedBlock
	l.scopes, l.outerScopes = savedScopes, savedOuter
	l.loopExits, l.loopConts = savedExits, savedConts
	l.blockCounter = savedCounter

	return l.mod.FuncValue(fn)
}

func (l *Lowerer) lowerCast(ex *ast.CastExpr) *ir.Value {
	v := l.lowerExpr(ex.Value)
	if v == nil || ex.Type == nil {
		return nil
	}
	target := l.lowerType(ex.Type)

	srcPrim, srcOk := v.Type.(*ir.Prim)
	dstPrim, dstOk := target.(*ir.Prim)

	// Pointer-to-pointer and pointer/integer casts of equal width pass the
	// bits through.
	if !srcOk || !dstOk {
		if v.Type.Size() == target.Size() {
			return v
		}
		l.errorf(source.ErrUnsupportedCast, ex.Pos, "unsupported cast from %s to %s", v.Type, target)
		return nil
	}

	srcSize, dstSize := srcPrim.Size(), dstPrim.Size()
	switch {
	case srcSize == dstSize:
		return v
	case dstSize < srcSize:
		return l.emitValue(ir.TRUNC, target, ex.Pos, v)
	case srcPrim.Signed():
		return l.emitValue(ir.SEXT, target, ex.Pos, v)
	default:
		return l.emitValue(ir.ZEXT, target, ex.Pos, v)
	}
}

// lowerStructLiteral materializes the literal in a fresh stack slot and
// returns the slot address with the struct type.
func (l *Lowerer) lowerStructLiteral(ex *ast.StructLiteralExpr) (*ir.Value, ir.Type) {
	st, ok := l.structs[ex.Name]
	if !ok {
		l.errorf(source.ErrUndefinedIdent, ex.Pos, "undefined struct '%s'", ex.Name)
		return nil, nil
	}
	slot := l.emitAlloca(st, ex.Pos)
	for _, f := range ex.Fields {
		idx := st.FieldIndex(f.Name.Value)
		if idx < 0 {
			l.errorWithSuggestion(source.ErrFieldNotFound, f.Pos,
				fmt.Sprintf("struct %s has no field '%s'", st.Name, f.Name.Value),
				l.suggestName(f.Name.Value, st.FieldNames))
			return nil, nil
		}
		value := l.lowerExpr(f.Value)
		if value == nil {
			return nil, nil
		}
		fieldType := st.Fields[idx]
		addr := l.fn.NewVReg(l.mod.Types.PointerTo(fieldType))
		ins := &ir.Instr{Op: ir.GEP, Pos: f.Pos, Operands: []*ir.Value{slot}, Result: addr, Field: idx}
		addr.Def = ins
		l.emit(ins)
		l.emitStore(value, addr, f.Pos)
	}
	return slot, st
}

func (l *Lowerer) lowerArrayLiteral(ex *ast.ArrayExpr) (*ir.Value, ir.Type) {
	if len(ex.Elems) == 0 {
		l.errorf(source.ErrUnexpectedToken, ex.Pos, "empty array literal has no element type")
		return nil, nil
	}
	first := l.lowerExpr(ex.Elems[0])
	if first == nil {
		return nil, nil
	}
	arrType := l.mod.Types.ArrayOf(first.Type, len(ex.Elems))
	slot := l.emitAlloca(arrType, ex.Pos)

	for i, elemExpr := range ex.Elems {
		var value *ir.Value
		if i == 0 {
			value = first
		} else {
			value = l.lowerExpr(elemExpr)
			if value == nil {
				return nil, nil
			}
		}
		idx := l.mod.IntConst(uint64(i), l.i64Type())
		addr := l.emitValue(ir.ARRAY_GEP, l.mod.Types.PointerTo(first.Type), elemExpr.NodePos(), slot, idx)
		l.emitStore(value, addr, elemExpr.NodePos())
	}
	return slot, arrType
}

// expandEscapes processes string-literal backslash escapes. Unknown escapes
// pass through unchanged, backslash included; the lexer's char literals
// instead keep only the escaped character.
func expandEscapes(raw string) string {
	var out strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			out.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		case '\\':
			out.WriteByte('\\')
		case '"':
			out.WriteByte('"')
		case '\'':
			out.WriteByte('\'')
		case '0':
			out.WriteByte(0)
		default:
			out.WriteByte('\\')
			out.WriteByte(raw[i])
		}
	}
	return out.String()
}
