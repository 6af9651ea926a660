package ast

import "seraphic/internal/source"

type Node interface {
	NodePos() source.Position
	NodeEndPos() source.Position
	NodeType() NodeType
}

func (i *Ident) NodePos() source.Position    { return i.Pos }
func (i *Ident) NodeEndPos() source.Position { return i.EndPos }
func (*Ident) NodeType() NodeType            { return IDENT }

func (m *Module) NodePos() source.Position    { return m.Pos }
func (m *Module) NodeEndPos() source.Position { return m.EndPos }
func (*Module) NodeType() NodeType            { return MODULE }

func (a *EffectAnnotation) NodePos() source.Position    { return a.Pos }
func (a *EffectAnnotation) NodeEndPos() source.Position { return a.EndPos }
func (*EffectAnnotation) NodeType() NodeType            { return EFFECT_ANNOTATION }

func (f *FuncDecl) NodePos() source.Position    { return f.Pos }
func (f *FuncDecl) NodeEndPos() source.Position { return f.EndPos }
func (*FuncDecl) NodeType() NodeType            { return FUNC_DECL }

func (p *Param) NodePos() source.Position    { return p.Pos }
func (p *Param) NodeEndPos() source.Position { return p.EndPos }
func (*Param) NodeType() NodeType            { return PARAM }

func (l *LetDecl) NodePos() source.Position    { return l.Pos }
func (l *LetDecl) NodeEndPos() source.Position { return l.EndPos }
func (*LetDecl) NodeType() NodeType            { return LET_DECL }

func (s *StructDecl) NodePos() source.Position    { return s.Pos }
func (s *StructDecl) NodeEndPos() source.Position { return s.EndPos }
func (*StructDecl) NodeType() NodeType            { return STRUCT_DECL }

func (f *FieldDef) NodePos() source.Position    { return f.Pos }
func (f *FieldDef) NodeEndPos() source.Position { return f.EndPos }
func (*FieldDef) NodeType() NodeType            { return FIELD_DEF }

func (e *EnumDecl) NodePos() source.Position    { return e.Pos }
func (e *EnumDecl) NodeEndPos() source.Position { return e.EndPos }
func (*EnumDecl) NodeType() NodeType            { return ENUM_DECL }

func (v *EnumVariant) NodePos() source.Position    { return v.Pos }
func (v *EnumVariant) NodeEndPos() source.Position { return v.EndPos }
func (*EnumVariant) NodeType() NodeType            { return ENUM_VARIANT }

func (i *ImplBlock) NodePos() source.Position    { return i.Pos }
func (i *ImplBlock) NodeEndPos() source.Position { return i.EndPos }
func (*ImplBlock) NodeType() NodeType            { return IMPL_BLOCK }

func (u *UseDecl) NodePos() source.Position    { return u.Pos }
func (u *UseDecl) NodeEndPos() source.Position { return u.EndPos }
func (*UseDecl) NodeType() NodeType            { return USE_DECL }

func (t *TypeAliasDecl) NodePos() source.Position    { return t.Pos }
func (t *TypeAliasDecl) NodeEndPos() source.Position { return t.EndPos }
func (*TypeAliasDecl) NodeType() NodeType            { return TYPE_ALIAS_DECL }

func (b *BadDecl) NodePos() source.Position    { return b.Bad.Pos }
func (b *BadDecl) NodeEndPos() source.Position { return b.Bad.EndPos }
func (*BadDecl) NodeType() NodeType            { return BAD_DECL }

func (s *ExprStmt) NodePos() source.Position    { return s.Pos }
func (s *ExprStmt) NodeEndPos() source.Position { return s.EndPos }
func (*ExprStmt) NodeType() NodeType            { return EXPR_STMT }

func (s *LetStmt) NodePos() source.Position    { return s.Pos }
func (s *LetStmt) NodeEndPos() source.Position { return s.EndPos }
func (*LetStmt) NodeType() NodeType            { return LET_STMT }

func (s *ReturnStmt) NodePos() source.Position    { return s.Pos }
func (s *ReturnStmt) NodeEndPos() source.Position { return s.EndPos }
func (*ReturnStmt) NodeType() NodeType            { return RETURN_STMT }

func (s *BreakStmt) NodePos() source.Position    { return s.Pos }
func (s *BreakStmt) NodeEndPos() source.Position { return s.EndPos }
func (*BreakStmt) NodeType() NodeType            { return BREAK_STMT }

func (s *ContinueStmt) NodePos() source.Position    { return s.Pos }
func (s *ContinueStmt) NodeEndPos() source.Position { return s.EndPos }
func (*ContinueStmt) NodeType() NodeType            { return CONTINUE_STMT }

func (s *WhileStmt) NodePos() source.Position    { return s.Pos }
func (s *WhileStmt) NodeEndPos() source.Position { return s.EndPos }
func (*WhileStmt) NodeType() NodeType            { return WHILE_STMT }

func (s *ForStmt) NodePos() source.Position    { return s.Pos }
func (s *ForStmt) NodeEndPos() source.Position { return s.EndPos }
func (*ForStmt) NodeType() NodeType            { return FOR_STMT }

func (s *SubstrateStmt) NodePos() source.Position    { return s.Pos }
func (s *SubstrateStmt) NodeEndPos() source.Position { return s.EndPos }
func (*SubstrateStmt) NodeType() NodeType            { return SUBSTRATE_STMT }

func (e *IntLit) NodePos() source.Position    { return e.Pos }
func (e *IntLit) NodeEndPos() source.Position { return e.EndPos }
func (*IntLit) NodeType() NodeType            { return INT_LIT }

func (e *FloatLit) NodePos() source.Position    { return e.Pos }
func (e *FloatLit) NodeEndPos() source.Position { return e.EndPos }
func (*FloatLit) NodeType() NodeType            { return FLOAT_LIT }

func (e *BoolLit) NodePos() source.Position    { return e.Pos }
func (e *BoolLit) NodeEndPos() source.Position { return e.EndPos }
func (*BoolLit) NodeType() NodeType            { return BOOL_LIT }

func (e *CharLit) NodePos() source.Position    { return e.Pos }
func (e *CharLit) NodeEndPos() source.Position { return e.EndPos }
func (*CharLit) NodeType() NodeType            { return CHAR_LIT }

func (e *StringLit) NodePos() source.Position    { return e.Pos }
func (e *StringLit) NodeEndPos() source.Position { return e.EndPos }
func (*StringLit) NodeType() NodeType            { return STRING_LIT }

func (e *VoidLit) NodePos() source.Position    { return e.Pos }
func (e *VoidLit) NodeEndPos() source.Position { return e.EndPos }
func (*VoidLit) NodeType() NodeType            { return VOID_LIT }

func (e *IdentExpr) NodePos() source.Position    { return e.Pos }
func (e *IdentExpr) NodeEndPos() source.Position { return e.EndPos }
func (*IdentExpr) NodeType() NodeType            { return IDENT_EXPR }

func (e *UnaryExpr) NodePos() source.Position    { return e.Pos }
func (e *UnaryExpr) NodeEndPos() source.Position { return e.EndPos }
func (*UnaryExpr) NodeType() NodeType            { return UNARY_EXPR }

func (e *BinaryExpr) NodePos() source.Position    { return e.Pos }
func (e *BinaryExpr) NodeEndPos() source.Position { return e.EndPos }
func (*BinaryExpr) NodeType() NodeType            { return BINARY_EXPR }

func (e *AssignExpr) NodePos() source.Position    { return e.Pos }
func (e *AssignExpr) NodeEndPos() source.Position { return e.EndPos }
func (*AssignExpr) NodeType() NodeType            { return ASSIGN_EXPR }

func (e *FieldAccessExpr) NodePos() source.Position    { return e.Pos }
func (e *FieldAccessExpr) NodeEndPos() source.Position { return e.EndPos }
func (*FieldAccessExpr) NodeType() NodeType            { return FIELD_ACCESS_EXPR }

func (e *IndexExpr) NodePos() source.Position    { return e.Pos }
func (e *IndexExpr) NodeEndPos() source.Position { return e.EndPos }
func (*IndexExpr) NodeType() NodeType            { return INDEX_EXPR }

func (e *CallExpr) NodePos() source.Position    { return e.Pos }
func (e *CallExpr) NodeEndPos() source.Position { return e.EndPos }
func (*CallExpr) NodeType() NodeType            { return CALL_EXPR }

func (e *MethodCallExpr) NodePos() source.Position    { return e.Pos }
func (e *MethodCallExpr) NodeEndPos() source.Position { return e.EndPos }
func (*MethodCallExpr) NodeType() NodeType            { return METHOD_CALL_EXPR }

func (e *ClosureExpr) NodePos() source.Position    { return e.Pos }
func (e *ClosureExpr) NodeEndPos() source.Position { return e.EndPos }
func (*ClosureExpr) NodeType() NodeType            { return CLOSURE_EXPR }

func (e *ArrayExpr) NodePos() source.Position    { return e.Pos }
func (e *ArrayExpr) NodeEndPos() source.Position { return e.EndPos }
func (*ArrayExpr) NodeType() NodeType            { return ARRAY_EXPR }

func (e *StructLiteralExpr) NodePos() source.Position    { return e.Pos }
func (e *StructLiteralExpr) NodeEndPos() source.Position { return e.EndPos }
func (*StructLiteralExpr) NodeType() NodeType            { return STRUCT_LITERAL_EXPR }

func (f *StructLiteralField) NodePos() source.Position    { return f.Pos }
func (f *StructLiteralField) NodeEndPos() source.Position { return f.EndPos }
func (*StructLiteralField) NodeType() NodeType            { return STRUCT_LITERAL_FIELD }

func (e *CastExpr) NodePos() source.Position    { return e.Pos }
func (e *CastExpr) NodeEndPos() source.Position { return e.EndPos }
func (*CastExpr) NodeType() NodeType            { return CAST_EXPR }

func (e *RangeExpr) NodePos() source.Position    { return e.Pos }
func (e *RangeExpr) NodeEndPos() source.Position { return e.EndPos }
func (*RangeExpr) NodeType() NodeType            { return RANGE_EXPR }

func (e *IfExpr) NodePos() source.Position    { return e.Pos }
func (e *IfExpr) NodeEndPos() source.Position { return e.EndPos }
func (*IfExpr) NodeType() NodeType            { return IF_EXPR }

func (e *MatchExpr) NodePos() source.Position    { return e.Pos }
func (e *MatchExpr) NodeEndPos() source.Position { return e.EndPos }
func (*MatchExpr) NodeType() NodeType            { return MATCH_EXPR }

func (a *MatchArm) NodePos() source.Position    { return a.Pos }
func (a *MatchArm) NodeEndPos() source.Position { return a.EndPos }
func (*MatchArm) NodeType() NodeType            { return MATCH_ARM }

func (e *BlockExpr) NodePos() source.Position    { return e.Pos }
func (e *BlockExpr) NodeEndPos() source.Position { return e.EndPos }
func (*BlockExpr) NodeType() NodeType            { return BLOCK_EXPR }

func (e *PropagateExpr) NodePos() source.Position    { return e.Pos }
func (e *PropagateExpr) NodeEndPos() source.Position { return e.EndPos }
func (*PropagateExpr) NodeType() NodeType            { return PROPAGATE_EXPR }

func (e *AssertExpr) NodePos() source.Position    { return e.Pos }
func (e *AssertExpr) NodeEndPos() source.Position { return e.EndPos }
func (*AssertExpr) NodeType() NodeType            { return ASSERT_EXPR }

func (e *CoalesceExpr) NodePos() source.Position    { return e.Pos }
func (e *CoalesceExpr) NodeEndPos() source.Position { return e.EndPos }
func (*CoalesceExpr) NodeType() NodeType            { return COALESCE_EXPR }

func (e *BadExpr) NodePos() source.Position    { return e.Bad.Pos }
func (e *BadExpr) NodeEndPos() source.Position { return e.Bad.EndPos }
func (*BadExpr) NodeType() NodeType            { return BAD_EXPR }

func (p *WildcardPattern) NodePos() source.Position    { return p.Pos }
func (p *WildcardPattern) NodeEndPos() source.Position { return p.EndPos }
func (*WildcardPattern) NodeType() NodeType            { return WILDCARD_PATTERN }

func (p *LiteralPattern) NodePos() source.Position    { return p.Pos }
func (p *LiteralPattern) NodeEndPos() source.Position { return p.EndPos }
func (*LiteralPattern) NodeType() NodeType            { return LITERAL_PATTERN }

func (p *BindingPattern) NodePos() source.Position    { return p.Pos }
func (p *BindingPattern) NodeEndPos() source.Position { return p.EndPos }
func (*BindingPattern) NodeType() NodeType            { return BINDING_PATTERN }

func (t *PrimType) NodePos() source.Position    { return t.Pos }
func (t *PrimType) NodeEndPos() source.Position { return t.EndPos }
func (*PrimType) NodeType() NodeType            { return PRIM_TYPE }

func (t *NamedType) NodePos() source.Position    { return t.Pos }
func (t *NamedType) NodeEndPos() source.Position { return t.EndPos }
func (*NamedType) NodeType() NodeType            { return NAMED_TYPE }

func (t *PointerType) NodePos() source.Position    { return t.Pos }
func (t *PointerType) NodeEndPos() source.Position { return t.EndPos }
func (*PointerType) NodeType() NodeType            { return POINTER_TYPE }

func (t *RefType) NodePos() source.Position    { return t.Pos }
func (t *RefType) NodeEndPos() source.Position { return t.EndPos }
func (*RefType) NodeType() NodeType            { return REF_TYPE }

func (t *ArrayType) NodePos() source.Position    { return t.Pos }
func (t *ArrayType) NodeEndPos() source.Position { return t.EndPos }
func (*ArrayType) NodeType() NodeType            { return ARRAY_TYPE }

func (t *SliceType) NodePos() source.Position    { return t.Pos }
func (t *SliceType) NodeEndPos() source.Position { return t.EndPos }
func (*SliceType) NodeType() NodeType            { return SLICE_TYPE }

func (t *FuncType) NodePos() source.Position    { return t.Pos }
func (t *FuncType) NodeEndPos() source.Position { return t.EndPos }
func (*FuncType) NodeType() NodeType            { return FUNC_TYPE }

func (t *VoidableType) NodePos() source.Position    { return t.Pos }
func (t *VoidableType) NodeEndPos() source.Position { return t.EndPos }
func (*VoidableType) NodeType() NodeType            { return VOIDABLE_TYPE }
