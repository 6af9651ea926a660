package parser

import (
	"seraphic/internal/ast"
	"seraphic/internal/lexer"
	"seraphic/internal/source"
)

var primTypeTokens = map[lexer.TokenType]bool{
	lexer.BOOL: true,
	lexer.I8:   true, lexer.I16: true, lexer.I32: true, lexer.I64: true,
	lexer.U8: true, lexer.U16: true, lexer.U32: true, lexer.U64: true,
	lexer.SCALAR: true, lexer.DUAL: true, lexer.GALACTIC: true, lexer.UNIT: true,
}

// parseType parses a type expression. Returns nil after reporting when no
// type can be shaped from the upcoming tokens.
func (p *Parser) parseType() ast.TypeExpr {
	tok := p.peek()

	switch {
	case tok.Type == lexer.QUESTION_QUESTION:
		// `??T` — VOID-able type.
		p.advance()
		inner := p.parseType()
		if inner == nil {
			return nil
		}
		return &ast.VoidableType{Pos: tok.Pos, EndPos: inner.NodeEndPos(), Inner: inner}

	case tok.Type == lexer.STAR:
		p.advance()
		elem := p.parseType()
		if elem == nil {
			return nil
		}
		return &ast.PointerType{Pos: tok.Pos, EndPos: elem.NodeEndPos(), Elem: elem}

	case tok.Type == lexer.AMPERSAND:
		p.advance()
		ref := &ast.RefType{Pos: tok.Pos}
		if p.match(lexer.PERSIST, lexer.AETHER) {
			ref.Substrate = p.previous().Lexeme
		}
		if p.match(lexer.MUT) {
			ref.Mut = true
		}
		ref.Elem = p.parseType()
		if ref.Elem == nil {
			return nil
		}
		ref.EndPos = ref.Elem.NodeEndPos()
		return ref

	case tok.Type == lexer.LEFT_BRACKET:
		p.advance()
		elem := p.parseType()
		if elem == nil {
			return nil
		}
		if p.match(lexer.SEMICOLON) {
			length := p.parseExpr()
			end := p.consume(lexer.RIGHT_BRACKET, "expected ']' after array length")
			return &ast.ArrayType{Pos: tok.Pos, EndPos: p.makeEndPos(end), Elem: elem, Len: length}
		}
		end := p.consume(lexer.RIGHT_BRACKET, "expected ']' after slice element type")
		return &ast.SliceType{Pos: tok.Pos, EndPos: p.makeEndPos(end), Elem: elem}

	case tok.Type == lexer.FN:
		p.advance()
		ft := &ast.FuncType{Pos: tok.Pos}
		p.consume(lexer.LEFT_PAREN, "expected '(' in function type")
		for !p.check(lexer.RIGHT_PAREN) && !p.isAtEnd() {
			param := p.parseType()
			if param == nil {
				break
			}
			ft.Params = append(ft.Params, param)
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.consume(lexer.RIGHT_PAREN, "expected ')' in function type")
		ft.EndPos = p.endOf()
		if p.match(lexer.ARROW) {
			ft.Return = p.parseType()
			if ft.Return != nil {
				ft.EndPos = ft.Return.NodeEndPos()
			}
		}
		return ft

	case primTypeTokens[tok.Type]:
		p.advance()
		return &ast.PrimType{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Name: tok.Lexeme}

	case tok.Type == lexer.IDENTIFIER:
		p.advance()
		return &ast.NamedType{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Name: p.makeIdent(tok)}

	default:
		p.errorAtCurrent(source.ErrExpectedToken, "expected type")
		p.advance()
		return nil
	}
}
