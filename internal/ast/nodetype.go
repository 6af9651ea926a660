package ast

type NodeType int

const (
	// Special / error
	ILLEGAL NodeType = iota
	BAD_DECL
	BAD_EXPR

	// High-level constructs
	MODULE
	IDENT

	// Declarations
	FUNC_DECL
	PARAM
	LET_DECL
	STRUCT_DECL
	FIELD_DEF
	ENUM_DECL
	ENUM_VARIANT
	IMPL_BLOCK
	USE_DECL
	TYPE_ALIAS_DECL
	EFFECT_ANNOTATION

	// Types
	PRIM_TYPE
	NAMED_TYPE
	POINTER_TYPE
	REF_TYPE
	ARRAY_TYPE
	SLICE_TYPE
	FUNC_TYPE
	VOIDABLE_TYPE

	// Statements
	EXPR_STMT
	LET_STMT
	RETURN_STMT
	BREAK_STMT
	CONTINUE_STMT
	WHILE_STMT
	FOR_STMT
	SUBSTRATE_STMT

	// Expressions
	INT_LIT
	FLOAT_LIT
	BOOL_LIT
	CHAR_LIT
	STRING_LIT
	VOID_LIT
	IDENT_EXPR
	UNARY_EXPR
	BINARY_EXPR
	ASSIGN_EXPR
	FIELD_ACCESS_EXPR
	INDEX_EXPR
	CALL_EXPR
	METHOD_CALL_EXPR
	CLOSURE_EXPR
	ARRAY_EXPR
	STRUCT_LITERAL_EXPR
	STRUCT_LITERAL_FIELD
	CAST_EXPR
	RANGE_EXPR
	IF_EXPR
	MATCH_EXPR
	MATCH_ARM
	BLOCK_EXPR
	PROPAGATE_EXPR
	ASSERT_EXPR
	COALESCE_EXPR

	// Patterns
	WILDCARD_PATTERN
	LITERAL_PATTERN
	BINDING_PATTERN
)
