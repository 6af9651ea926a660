package ast

import "seraphic/internal/source"

type TypeExpr interface {
	Node
	isTypeExpr()
}

// PrimType names a built-in primitive: bool, i8..i64, u8..u64, scalar, dual,
// galactic, unit.
type PrimType struct {
	Pos    source.Position
	EndPos source.Position
	Name   string
}

type NamedType struct {
	Pos    source.Position
	EndPos source.Position
	Name   Ident
}

// PointerType is `*T`.
type PointerType struct {
	Pos    source.Position
	EndPos source.Position
	Elem   TypeExpr
}

// RefType is `&T` / `&mut T`, optionally qualified by a substrate keyword.
type RefType struct {
	Pos       source.Position
	EndPos    source.Position
	Mut       bool
	Substrate string // "" or "persist"/"aether"
	Elem      TypeExpr
}

// ArrayType is `[T; N]`.
type ArrayType struct {
	Pos    source.Position
	EndPos source.Position
	Elem   TypeExpr
	Len    Expr
}

// SliceType is `[T]`.
type SliceType struct {
	Pos    source.Position
	EndPos source.Position
	Elem   TypeExpr
}

// FuncType is `fn(args) -> R`.
type FuncType struct {
	Pos    source.Position
	EndPos source.Position
	Params []TypeExpr
	Return TypeExpr
}

// VoidableType is `??T`.
type VoidableType struct {
	Pos    source.Position
	EndPos source.Position
	Inner  TypeExpr
}

func (*PrimType) isTypeExpr()     {}
func (*NamedType) isTypeExpr()    {}
func (*PointerType) isTypeExpr()  {}
func (*RefType) isTypeExpr()      {}
func (*ArrayType) isTypeExpr()    {}
func (*SliceType) isTypeExpr()    {}
func (*FuncType) isTypeExpr()     {}
func (*VoidableType) isTypeExpr() {}
