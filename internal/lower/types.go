package lower

import (
	"seraphic/internal/ast"
	"seraphic/internal/ir"
	"seraphic/internal/source"
)

var primKinds = map[string]ir.PrimKind{
	"bool": ir.PrimBool,
	"i8":   ir.PrimI8, "i16": ir.PrimI16, "i32": ir.PrimI32, "i64": ir.PrimI64,
	"u8": ir.PrimU8, "u16": ir.PrimU16, "u32": ir.PrimU32, "u64": ir.PrimU64,
	"scalar": ir.PrimScalar, "dual": ir.PrimDual, "galactic": ir.PrimGalactic,
	"unit": ir.PrimUnit,
}

func (l *Lowerer) unitType() ir.Type   { return l.mod.Types.Prim(ir.PrimUnit) }
func (l *Lowerer) boolType() ir.Type   { return l.mod.Types.Prim(ir.PrimBool) }
func (l *Lowerer) i64Type() ir.Type    { return l.mod.Types.Prim(ir.PrimI64) }
func (l *Lowerer) scalarType() ir.Type { return l.mod.Types.Prim(ir.PrimScalar) }

// namedType resolves a struct/enum name. Forward references that cannot be
// resolved fall back to i64 (pointer width) so pointer graphs work without a
// fixpoint.
func (l *Lowerer) namedType(name string, pos source.Position) ir.Type {
	if st, ok := l.structs[name]; ok {
		return st
	}
	if en, ok := l.enums[name]; ok {
		return en
	}
	if aliased, ok := l.aliases[name]; ok {
		return l.lowerType(aliased)
	}
	return l.i64Type()
}

// lowerType lowers a parsed type into the interned IR type table.
func (l *Lowerer) lowerType(t ast.TypeExpr) ir.Type {
	switch ty := t.(type) {
	case nil:
		return l.unitType()

	case *ast.PrimType:
		if kind, ok := primKinds[ty.Name]; ok {
			return l.mod.Types.Prim(kind)
		}
		return l.i64Type()

	case *ast.NamedType:
		return l.namedType(ty.Name.Value, ty.Pos)

	case *ast.PointerType:
		return l.mod.Types.PointerTo(l.lowerType(ty.Elem))

	case *ast.RefType:
		perms := uint32(capPermRead)
		if ty.Mut {
			perms |= capPermWrite
		}
		return l.mod.Types.Intern(&ir.Capability{Elem: l.lowerType(ty.Elem), Perms: perms})

	case *ast.ArrayType:
		n := 0
		if lit, ok := ty.Len.(*ast.IntLit); ok {
			n = int(lit.Value)
		} else {
			l.errorf(source.ErrUnsupportedCast, ty.Pos, "array length must be an integer literal")
		}
		return l.mod.Types.ArrayOf(l.lowerType(ty.Elem), n)

	case *ast.SliceType:
		// Slices lower to their element pointer; length tracking is the
		// caller's concern at this level.
		return l.mod.Types.PointerTo(l.lowerType(ty.Elem))

	case *ast.FuncType:
		ft := &ir.FuncType{Return: l.unitType()}
		if ty.Return != nil {
			ft.Return = l.lowerType(ty.Return)
		}
		for _, p := range ty.Params {
			ft.Params = append(ft.Params, l.lowerType(p))
		}
		return l.mod.Types.Intern(ft)

	case *ast.VoidableType:
		return l.mod.Types.VoidableOf(l.lowerType(ty.Inner))

	default:
		return l.i64Type()
	}
}

const (
	capPermRead  = 1 << 0
	capPermWrite = 1 << 1
)

// suffixType maps a numeric literal suffix to its type; the empty suffix
// defaults to i64.
func (l *Lowerer) suffixType(suffix string) ir.Type {
	switch suffix {
	case "u8":
		return l.mod.Types.Prim(ir.PrimU8)
	case "u16":
		return l.mod.Types.Prim(ir.PrimU16)
	case "u32":
		return l.mod.Types.Prim(ir.PrimU32)
	case "u64", "u":
		return l.mod.Types.Prim(ir.PrimU64)
	case "i8":
		return l.mod.Types.Prim(ir.PrimI8)
	case "i16":
		return l.mod.Types.Prim(ir.PrimI16)
	case "i32":
		return l.mod.Types.Prim(ir.PrimI32)
	case "i64", "i", "":
		return l.mod.Types.Prim(ir.PrimI64)
	case "s":
		return l.mod.Types.Prim(ir.PrimScalar)
	case "d":
		return l.mod.Types.Prim(ir.PrimDual)
	case "g":
		return l.mod.Types.Prim(ir.PrimGalactic)
	default:
		return l.i64Type()
	}
}

// fixedPointBits converts a float to the Q32.32 bit pattern used by the
// fixed-point types.
func fixedPointBits(v float64) uint64 {
	return uint64(int64(v * 4294967296.0))
}
