package ast

import "seraphic/internal/source"

// BadNode marks a region the parser could not shape into a real node.
type BadNode struct {
	Pos     source.Position
	EndPos  source.Position
	Message string
}

type Ident struct {
	Pos    source.Position
	EndPos source.Position
	Value  string
}

// Module is the root of a parsed compilation unit.
type Module struct {
	Pos    source.Position
	EndPos source.Position
	Decls  []Decl
}

type Decl interface {
	Node
	isDecl()
}

// EffectAnnotation is the parsed #[pure] / #[effects(...)] attribute attached
// to the declaration that follows it.
type EffectAnnotation struct {
	Pos     source.Position
	EndPos  source.Position
	Pure    bool
	Effects []Ident
}

type FuncDecl struct {
	Pos    source.Position
	EndPos source.Position
	Annot  *EffectAnnotation
	Name   Ident
	Params []*Param
	Return TypeExpr // nil when the function returns unit
	Body   *BlockExpr
	// Foreign functions and forward declarations carry no body.
	Foreign bool
	// Methods are functions declared inside an impl block; Receiver names
	// the impl'd struct.
	Method   bool
	Receiver string
}

type Param struct {
	Pos    source.Position
	EndPos source.Position
	Name   Ident
	Type   TypeExpr
}

type LetDecl struct {
	Pos    source.Position
	EndPos source.Position
	Const  bool
	Mut    bool
	Name   Ident
	Type   TypeExpr // nil when inferred from Init
	Init   Expr     // nil when only declared
}

type StructDecl struct {
	Pos    source.Position
	EndPos source.Position
	Name   Ident
	Fields []*FieldDef
}

type FieldDef struct {
	Pos    source.Position
	EndPos source.Position
	Name   Ident
	Type   TypeExpr
}

type EnumDecl struct {
	Pos      source.Position
	EndPos   source.Position
	Name     Ident
	Variants []*EnumVariant
}

type EnumVariant struct {
	Pos     source.Position
	EndPos  source.Position
	Name    Ident
	Payload []TypeExpr
}

type ImplBlock struct {
	Pos    source.Position
	EndPos source.Position
	Name   Ident
	Funcs  []*FuncDecl
}

type UseDecl struct {
	Pos    source.Position
	EndPos source.Position
	Path   []Ident
}

type TypeAliasDecl struct {
	Pos     source.Position
	EndPos  source.Position
	Name    Ident
	Aliased TypeExpr
}

type BadDecl struct {
	Bad BadNode
}

func (*FuncDecl) isDecl()      {}
func (*LetDecl) isDecl()       {}
func (*StructDecl) isDecl()    {}
func (*EnumDecl) isDecl()      {}
func (*ImplBlock) isDecl()     {}
func (*UseDecl) isDecl()       {}
func (*TypeAliasDecl) isDecl() {}
func (*BadDecl) isDecl()       {}
