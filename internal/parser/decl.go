package parser

import (
	"seraphic/internal/ast"
	"seraphic/internal/lexer"
	"seraphic/internal/source"
)

// knownEffects is the closed set of effect names usable in an
// #[effects(...)] annotation.
var knownEffects = map[string]bool{
	"void":    true,
	"persist": true,
	"network": true,
	"timer":   true,
	"io":      true,
}

func (p *Parser) parseDecl() ast.Decl {
	var annot *ast.EffectAnnotation
	if p.check(lexer.POUND) {
		annot = p.parseEffectAnnotation()
	}

	switch p.peek().Type {
	case lexer.FN:
		return p.parseFuncDecl(annot, false, "")
	case lexer.FOREIGN:
		p.advance()
		fn := p.parseFuncDecl(annot, false, "")
		if fn != nil {
			fn.Foreign = true
		}
		return fn
	case lexer.LET, lexer.CONST:
		return p.parseLetDecl()
	case lexer.STRUCT:
		return p.parseStructDecl()
	case lexer.ENUM:
		return p.parseEnumDecl()
	case lexer.IMPL:
		return p.parseImplBlock()
	case lexer.USE:
		return p.parseUseDecl()
	case lexer.TYPE:
		return p.parseTypeAlias()
	default:
		tok := p.peek()
		p.errorAtCurrent(source.ErrExpectedDecl, "expected declaration")
		p.synchronize()
		return &ast.BadDecl{Bad: ast.BadNode{
			Pos:     tok.Pos,
			EndPos:  p.makeEndPos(tok),
			Message: "expected declaration, found " + tok.Type.String(),
		}}
	}
}

// parseEffectAnnotation parses `#[pure]` or `#[effects(name, ...)]`.
func (p *Parser) parseEffectAnnotation() *ast.EffectAnnotation {
	start := p.advance() // '#'
	annot := &ast.EffectAnnotation{Pos: start.Pos}

	p.consume(lexer.LEFT_BRACKET, "expected '[' after '#'")
	switch {
	case p.match(lexer.PURE):
		annot.Pure = true
	case p.check(lexer.EFFECTS):
		p.advance()
		p.consume(lexer.LEFT_PAREN, "expected '(' after 'effects'")
		for !p.check(lexer.RIGHT_PAREN) && !p.isAtEnd() {
			name := p.parseEffectName()
			if name.Value == "" {
				break
			}
			annot.Effects = append(annot.Effects, name)
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.consume(lexer.RIGHT_PAREN, "expected ')' after effect list")
	default:
		p.errorAtCurrent(source.ErrInvalidAnnotation, "expected 'pure' or 'effects' in annotation")
	}
	p.consume(lexer.RIGHT_BRACKET, "expected ']' to close annotation")
	annot.EndPos = p.endOf()
	return annot
}

// parseEffectName accepts identifiers and the effect names that happen to be
// language keywords (void, persist).
func (p *Parser) parseEffectName() ast.Ident {
	tok := p.peek()
	switch tok.Type {
	case lexer.IDENTIFIER, lexer.VOID, lexer.PERSIST:
		p.advance()
		if !knownEffects[tok.Lexeme] {
			p.warnAtCurrent(source.WarnUnknownEffect, "unknown effect name '"+tok.Lexeme+"'")
		}
		return p.makeIdent(tok)
	default:
		p.errorAtCurrent(source.ErrInvalidAnnotation, "expected effect name")
		return ast.Ident{}
	}
}

func (p *Parser) parseFuncDecl(annot *ast.EffectAnnotation, method bool, receiver string) *ast.FuncDecl {
	start := p.consume(lexer.FN, "expected 'fn'")
	fn := &ast.FuncDecl{Pos: start.Pos, Annot: annot, Method: method, Receiver: receiver}
	if annot != nil {
		fn.Pos = annot.Pos
	}

	name, ok := p.consumeIdent("expected function name")
	if !ok {
		p.synchronize()
		return fn
	}
	fn.Name = name

	p.consume(lexer.LEFT_PAREN, "expected '(' after function name")
	for !p.check(lexer.RIGHT_PAREN) && !p.isAtEnd() {
		param := p.parseParam()
		if param == nil {
			break
		}
		fn.Params = append(fn.Params, param)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RIGHT_PAREN, "expected ')' after parameters")

	if p.match(lexer.ARROW) {
		fn.Return = p.parseType()
	}

	if p.match(lexer.SEMICOLON) {
		// forward declaration
		fn.EndPos = p.endOf()
		return fn
	}

	if !p.check(lexer.LEFT_BRACE) {
		p.errorAtCurrent(source.ErrExpectedToken, "expected '{' or ';' after function signature")
		switch p.peek().Type {
		case lexer.FN, lexer.LET, lexer.CONST, lexer.STRUCT, lexer.ENUM,
			lexer.USE, lexer.IMPL, lexer.FOREIGN, lexer.TYPE:
			// Already at a declaration boundary; leave it for the caller.
			p.inPanic = false
		default:
			p.synchronize()
		}
		fn.EndPos = p.peek().Pos
		return fn
	}
	fn.Body = p.parseBlock()
	fn.EndPos = fn.Body.EndPos
	return fn
}

func (p *Parser) parseParam() *ast.Param {
	name, ok := p.consumeIdent("expected parameter name")
	if !ok {
		p.synchronize()
		return nil
	}
	param := &ast.Param{Pos: name.Pos, Name: name}
	p.consume(lexer.COLON, "expected ':' after parameter name")
	param.Type = p.parseType()
	if param.Type != nil {
		param.EndPos = param.Type.NodeEndPos()
	} else {
		param.EndPos = name.EndPos
	}
	return param
}

// parseLetDecl parses a let/const binding. Having neither a type nor an
// initializer is an error: the binding would be unusable.
func (p *Parser) parseLetDecl() *ast.LetDecl {
	start := p.advance() // 'let' or 'const'
	decl := &ast.LetDecl{Pos: start.Pos, Const: start.Type == lexer.CONST}

	if p.match(lexer.MUT) {
		decl.Mut = true
	}

	name, ok := p.consumeIdent("expected binding name")
	if !ok {
		p.synchronize()
		return decl
	}
	decl.Name = name

	if p.match(lexer.COLON) {
		decl.Type = p.parseType()
	}
	if p.match(lexer.EQUAL) {
		decl.Init = p.parseExpr()
	}
	if decl.Type == nil && decl.Init == nil {
		p.errorAtCurrent(source.ErrMissingInitOrType, "binding needs a type annotation or an initializer")
	}
	p.consume(lexer.SEMICOLON, "expected ';' after binding")
	decl.EndPos = p.endOf()
	return decl
}

func (p *Parser) parseStructDecl() *ast.StructDecl {
	start := p.advance() // 'struct'
	decl := &ast.StructDecl{Pos: start.Pos}

	name, ok := p.consumeIdent("expected struct name")
	if !ok {
		p.synchronize()
		return decl
	}
	decl.Name = name

	p.consume(lexer.LEFT_BRACE, "expected '{' after struct name")
	for !p.check(lexer.RIGHT_BRACE) && !p.isAtEnd() {
		fieldName, ok := p.consumeIdent("expected field name")
		if !ok {
			p.synchronize()
			break
		}
		field := &ast.FieldDef{Pos: fieldName.Pos, Name: fieldName}
		p.consume(lexer.COLON, "expected ':' after field name")
		field.Type = p.parseType()
		if field.Type != nil {
			field.EndPos = field.Type.NodeEndPos()
		} else {
			field.EndPos = fieldName.EndPos
		}
		decl.Fields = append(decl.Fields, field)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RIGHT_BRACE, "expected '}' after struct fields")
	decl.EndPos = p.endOf()
	return decl
}

func (p *Parser) parseEnumDecl() *ast.EnumDecl {
	start := p.advance() // 'enum'
	decl := &ast.EnumDecl{Pos: start.Pos}

	name, ok := p.consumeIdent("expected enum name")
	if !ok {
		p.synchronize()
		return decl
	}
	decl.Name = name

	p.consume(lexer.LEFT_BRACE, "expected '{' after enum name")
	for !p.check(lexer.RIGHT_BRACE) && !p.isAtEnd() {
		vname, ok := p.consumeIdent("expected variant name")
		if !ok {
			p.synchronize()
			break
		}
		variant := &ast.EnumVariant{Pos: vname.Pos, Name: vname, EndPos: vname.EndPos}
		if p.match(lexer.LEFT_PAREN) {
			for !p.check(lexer.RIGHT_PAREN) && !p.isAtEnd() {
				t := p.parseType()
				if t == nil {
					break
				}
				variant.Payload = append(variant.Payload, t)
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.consume(lexer.RIGHT_PAREN, "expected ')' after variant payload")
			variant.EndPos = p.endOf()
		}
		decl.Variants = append(decl.Variants, variant)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RIGHT_BRACE, "expected '}' after enum variants")
	decl.EndPos = p.endOf()
	return decl
}

func (p *Parser) parseImplBlock() *ast.ImplBlock {
	start := p.advance() // 'impl'
	impl := &ast.ImplBlock{Pos: start.Pos}

	name, ok := p.consumeIdent("expected type name after 'impl'")
	if !ok {
		p.synchronize()
		return impl
	}
	impl.Name = name

	p.consume(lexer.LEFT_BRACE, "expected '{' after impl type")
	for !p.check(lexer.RIGHT_BRACE) && !p.isAtEnd() {
		var annot *ast.EffectAnnotation
		if p.check(lexer.POUND) {
			annot = p.parseEffectAnnotation()
		}
		if !p.check(lexer.FN) {
			p.errorAtCurrent(source.ErrExpectedDecl, "expected method declaration in impl block")
			p.synchronize()
			continue
		}
		fn := p.parseFuncDecl(annot, true, name.Value)
		if fn != nil {
			impl.Funcs = append(impl.Funcs, fn)
		}
	}
	p.consume(lexer.RIGHT_BRACE, "expected '}' after impl block")
	impl.EndPos = p.endOf()
	return impl
}

func (p *Parser) parseUseDecl() *ast.UseDecl {
	start := p.advance() // 'use'
	use := &ast.UseDecl{Pos: start.Pos}

	seg, ok := p.consumeIdent("expected module path after 'use'")
	if !ok {
		p.synchronize()
		return use
	}
	use.Path = append(use.Path, seg)
	for p.match(lexer.DOUBLE_COLON) {
		next, ok := p.consumeIdent("expected identifier after '::'")
		if !ok {
			break
		}
		use.Path = append(use.Path, next)
	}
	p.consume(lexer.SEMICOLON, "expected ';' after use path")
	use.EndPos = p.endOf()
	return use
}

func (p *Parser) parseTypeAlias() *ast.TypeAliasDecl {
	start := p.advance() // 'type'
	alias := &ast.TypeAliasDecl{Pos: start.Pos}

	name, ok := p.consumeIdent("expected alias name")
	if !ok {
		p.synchronize()
		return alias
	}
	alias.Name = name
	p.consume(lexer.EQUAL, "expected '=' in type alias")
	alias.Aliased = p.parseType()
	p.consume(lexer.SEMICOLON, "expected ';' after type alias")
	alias.EndPos = p.endOf()
	return alias
}
