package parser

import (
	"seraphic/internal/ast"
	"seraphic/internal/lexer"
	"seraphic/internal/source"
)

// Binding powers for the Pratt expression grammar, weakest first.
const (
	precNone = iota
	precAssign
	precCoalesce
	precRange
	precOr
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precCompare
	precShift
	precAdditive
	precMultiplicative
	precCast
)

var assignOps = map[lexer.TokenType]bool{
	lexer.EQUAL: true, lexer.PLUS_EQUAL: true, lexer.MINUS_EQUAL: true,
	lexer.STAR_EQUAL: true, lexer.SLASH_EQUAL: true, lexer.PERCENT_EQUAL: true,
	lexer.AMP_EQUAL: true, lexer.PIPE_EQUAL: true, lexer.CARET_EQUAL: true,
}

func infixPrec(tt lexer.TokenType) int {
	switch tt {
	case lexer.EQUAL, lexer.PLUS_EQUAL, lexer.MINUS_EQUAL, lexer.STAR_EQUAL,
		lexer.SLASH_EQUAL, lexer.PERCENT_EQUAL, lexer.AMP_EQUAL,
		lexer.PIPE_EQUAL, lexer.CARET_EQUAL:
		return precAssign
	case lexer.QUESTION_QUESTION:
		return precCoalesce
	case lexer.DOT_DOT, lexer.DOT_DOT_EQUAL:
		return precRange
	case lexer.OR_OR:
		return precOr
	case lexer.AND_AND:
		return precAnd
	case lexer.PIPE:
		return precBitOr
	case lexer.CARET:
		return precBitXor
	case lexer.AMPERSAND:
		return precBitAnd
	case lexer.EQUAL_EQUAL, lexer.BANG_EQUAL:
		return precEquality
	case lexer.LESS, lexer.LESS_EQUAL, lexer.GREATER, lexer.GREATER_EQUAL:
		return precCompare
	case lexer.SHIFT_LEFT, lexer.SHIFT_RIGHT:
		return precShift
	case lexer.PLUS, lexer.MINUS:
		return precAdditive
	case lexer.STAR, lexer.SLASH, lexer.PERCENT:
		return precMultiplicative
	case lexer.AS:
		return precCast
	default:
		return precNone
	}
}

// parseExpr parses a full expression; struct literals are permitted.
func (p *Parser) parseExpr() ast.Expr {
	saved := p.allowStructLit
	p.allowStructLit = true
	expr := p.parsePratt(precAssign)
	p.allowStructLit = saved
	return expr
}

// parseExprNoStructLit parses a loop/if/match head where `Name {` opens the
// body rather than a struct literal.
func (p *Parser) parseExprNoStructLit() ast.Expr {
	saved := p.allowStructLit
	p.allowStructLit = false
	expr := p.parsePratt(precAssign)
	p.allowStructLit = saved
	return expr
}

func (p *Parser) parsePratt(minPrec int) ast.Expr {
	expr := p.parseUnary()

	for {
		tok := p.peek()
		prec := infixPrec(tok.Type)
		if prec == precNone || prec < minPrec {
			break
		}

		switch {
		case tok.Type == lexer.AS:
			p.advance()
			ty := p.parseType()
			end := expr.NodeEndPos()
			if ty != nil {
				end = ty.NodeEndPos()
			}
			expr = &ast.CastExpr{Pos: expr.NodePos(), EndPos: end, Value: expr, Type: ty}

		case assignOps[tok.Type]:
			p.advance()
			// Right-associative: a = b = c parses as a = (b = c).
			value := p.parsePratt(prec)
			expr = &ast.AssignExpr{
				Pos: expr.NodePos(), EndPos: value.NodeEndPos(),
				Op: tok.Lexeme, Target: expr, Value: value,
			}

		case tok.Type == lexer.DOT_DOT || tok.Type == lexer.DOT_DOT_EQUAL:
			p.advance()
			end := p.parsePratt(precRange + 1)
			expr = &ast.RangeExpr{
				Pos: expr.NodePos(), EndPos: end.NodeEndPos(),
				Start: expr, End: end, Inclusive: tok.Type == lexer.DOT_DOT_EQUAL,
			}

		case tok.Type == lexer.QUESTION_QUESTION:
			// Binary coalesce; the postfix form was already claimed by
			// parsePostfix when the operator ends the expression.
			p.advance()
			def := p.parsePratt(prec + 1)
			expr = &ast.CoalesceExpr{
				Pos: expr.NodePos(), EndPos: def.NodeEndPos(),
				Value: expr, Default: def,
			}

		default:
			p.advance()
			right := p.parsePratt(prec + 1)
			expr = &ast.BinaryExpr{
				Pos: expr.NodePos(), EndPos: right.NodeEndPos(),
				Op: tok.Lexeme, Left: expr, Right: right,
			}
		}
	}

	return expr
}

func (p *Parser) parseUnary() ast.Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.MINUS, lexer.BANG, lexer.TILDE, lexer.STAR:
		p.advance()
		value := p.parseUnary()
		return &ast.UnaryExpr{Pos: tok.Pos, EndPos: value.NodeEndPos(), Op: tok.Lexeme, Value: value}
	case lexer.AMPERSAND:
		p.advance()
		op := "&"
		if p.match(lexer.MUT) {
			op = "&mut"
		}
		value := p.parseUnary()
		return &ast.UnaryExpr{Pos: tok.Pos, EndPos: value.NodeEndPos(), Op: op, Value: value}
	}
	return p.parsePostfix(p.parsePrimary())
}

// propagateFollowers are tokens after `??` that mark the postfix
// VOID-propagate form rather than a binary coalesce.
var propagateFollowers = map[lexer.TokenType]bool{
	lexer.SEMICOLON: true, lexer.RIGHT_PAREN: true, lexer.RIGHT_BRACKET: true,
	lexer.RIGHT_BRACE: true, lexer.COMMA: true, lexer.DOT: true, lexer.EOF: true,
}

func (p *Parser) parsePostfix(expr ast.Expr) ast.Expr {
	for {
		switch {
		case p.check(lexer.LEFT_PAREN):
			p.advance()
			args := p.parseExprList()
			end := p.consume(lexer.RIGHT_PAREN, "expected ')' after arguments")
			expr = &ast.CallExpr{
				Pos: expr.NodePos(), EndPos: p.makeEndPos(end),
				Callee: expr, Args: args,
			}

		case p.check(lexer.LEFT_BRACKET):
			p.advance()
			index := p.parseExpr()
			end := p.consume(lexer.RIGHT_BRACKET, "expected ']' after index")
			expr = &ast.IndexExpr{
				Pos: expr.NodePos(), EndPos: p.makeEndPos(end),
				Target: expr, Index: index,
			}

		case p.check(lexer.DOT):
			p.advance()
			field := p.consume(lexer.IDENTIFIER, "expected field name after '.'")
			if p.check(lexer.LEFT_PAREN) {
				p.advance()
				args := p.parseExprList()
				end := p.consume(lexer.RIGHT_PAREN, "expected ')' after arguments")
				expr = &ast.MethodCallExpr{
					Pos: expr.NodePos(), EndPos: p.makeEndPos(end),
					Recv: expr, Name: field.Lexeme, Args: args,
				}
			} else {
				expr = &ast.FieldAccessExpr{
					Pos: expr.NodePos(), EndPos: p.makeEndPos(field),
					Target: expr, Field: field.Lexeme,
				}
			}

		case p.check(lexer.BANG_BANG):
			end := p.advance()
			expr = &ast.AssertExpr{Pos: expr.NodePos(), EndPos: p.makeEndPos(end), Value: expr}

		case p.check(lexer.QUESTION_QUESTION) && propagateFollowers[p.peekAt(1).Type]:
			end := p.advance()
			expr = &ast.PropagateExpr{Pos: expr.NodePos(), EndPos: p.makeEndPos(end), Value: expr}

		default:
			return expr
		}
	}
}

func (p *Parser) parseExprList() []ast.Expr {
	var args []ast.Expr
	if p.check(lexer.RIGHT_PAREN) {
		return args
	}
	for {
		args = append(args, p.parseExpr())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	return args
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.INT:
		p.advance()
		return &ast.IntLit{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Value: tok.Int, Suffix: tok.Suffix.String()}

	case lexer.FLOAT:
		p.advance()
		return &ast.FloatLit{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Value: tok.Float, Suffix: tok.Suffix.String()}

	case lexer.TRUE, lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Value: tok.Type == lexer.TRUE}

	case lexer.CHAR:
		p.advance()
		return &ast.CharLit{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Value: tok.Ch}

	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Raw: tok.Str}

	case lexer.VOID:
		p.advance()
		return &ast.VoidLit{Pos: tok.Pos, EndPos: p.makeEndPos(tok)}

	case lexer.IDENTIFIER:
		p.advance()
		// Struct-literal vs block ambiguity: commit to a literal only on
		// `Name { IDENT : ...` or `Name { }` exactly.
		if p.allowStructLit && p.check(lexer.LEFT_BRACE) &&
			(p.checkAt(1, lexer.RIGHT_BRACE) ||
				(p.checkAt(1, lexer.IDENTIFIER) && p.checkAt(2, lexer.COLON))) {
			return p.parseStructLiteral(tok)
		}
		return &ast.IdentExpr{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Name: tok.Lexeme}

	case lexer.LEFT_PAREN:
		p.advance()
		saved := p.allowStructLit
		p.allowStructLit = true
		inner := p.parsePratt(precAssign)
		p.allowStructLit = saved
		p.consume(lexer.RIGHT_PAREN, "expected ')' after expression")
		return inner

	case lexer.LEFT_BRACKET:
		p.advance()
		arr := &ast.ArrayExpr{Pos: tok.Pos}
		for !p.check(lexer.RIGHT_BRACKET) && !p.isAtEnd() {
			arr.Elems = append(arr.Elems, p.parseExpr())
			if !p.match(lexer.COMMA) {
				break
			}
		}
		end := p.consume(lexer.RIGHT_BRACKET, "expected ']' after array elements")
		arr.EndPos = p.makeEndPos(end)
		return arr

	case lexer.IF:
		return p.parseIfExpr()

	case lexer.MATCH:
		return p.parseMatchExpr()

	case lexer.LEFT_BRACE:
		return p.parseBlock()

	case lexer.FN:
		return p.parseClosure()
	}

	p.errorAtCurrent(source.ErrUnexpectedToken, "unexpected token in expression")
	bad := &ast.BadExpr{Bad: ast.BadNode{
		Pos:     tok.Pos,
		EndPos:  p.makeEndPos(tok),
		Message: "unexpected token in expression: " + tok.Type.String(),
	}}
	p.advance()
	return bad
}

func (p *Parser) parseStructLiteral(nameTok lexer.Token) ast.Expr {
	lit := &ast.StructLiteralExpr{Pos: nameTok.Pos, Name: nameTok.Lexeme}
	p.consume(lexer.LEFT_BRACE, "expected '{' in struct literal")

	for !p.check(lexer.RIGHT_BRACE) && !p.isAtEnd() {
		fieldName, ok := p.consumeIdent("expected field name in struct literal")
		if !ok {
			p.synchronizeUntil(lexer.COMMA, lexer.RIGHT_BRACE)
			if p.match(lexer.COMMA) {
				continue
			}
			break
		}
		p.consume(lexer.COLON, "expected ':' after field name")
		value := p.parseExpr()
		lit.Fields = append(lit.Fields, ast.StructLiteralField{
			Pos: fieldName.Pos, EndPos: value.NodeEndPos(),
			Name: fieldName, Value: value,
		})
		if !p.match(lexer.COMMA) {
			break
		}
	}

	end := p.consume(lexer.RIGHT_BRACE, "expected '}' after struct literal")
	lit.EndPos = p.makeEndPos(end)
	return lit
}

func (p *Parser) parseIfExpr() *ast.IfExpr {
	start := p.advance() // 'if'
	expr := &ast.IfExpr{Pos: start.Pos}
	expr.Cond = p.parseExprNoStructLit()
	expr.Then = p.parseBlock()
	expr.EndPos = expr.Then.EndPos

	if p.match(lexer.ELSE) {
		if p.check(lexer.IF) {
			chained := p.parseIfExpr()
			expr.Else = chained
			expr.EndPos = chained.EndPos
		} else {
			block := p.parseBlock()
			expr.Else = block
			expr.EndPos = block.EndPos
		}
	}
	return expr
}

func (p *Parser) parseMatchExpr() *ast.MatchExpr {
	start := p.advance() // 'match'
	expr := &ast.MatchExpr{Pos: start.Pos}
	expr.Subject = p.parseExprNoStructLit()

	p.consume(lexer.LEFT_BRACE, "expected '{' after match subject")
	for !p.check(lexer.RIGHT_BRACE) && !p.isAtEnd() {
		arm := p.parseMatchArm()
		if arm != nil {
			expr.Arms = append(expr.Arms, arm)
		}
		if p.inPanic {
			p.synchronizeUntil(lexer.COMMA, lexer.RIGHT_BRACE)
			p.inPanic = false
		}
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RIGHT_BRACE, "expected '}' after match arms")
	expr.EndPos = p.endOf()
	return expr
}

func (p *Parser) parseMatchArm() *ast.MatchArm {
	pattern := p.parsePattern()
	if pattern == nil {
		return nil
	}
	arm := &ast.MatchArm{Pos: pattern.NodePos(), Pattern: pattern}
	p.consume(lexer.FAT_ARROW, "expected '=>' after pattern")
	arm.Body = p.parseExpr()
	arm.EndPos = arm.Body.NodeEndPos()
	return arm
}

// parsePattern accepts the supported pattern kinds: wildcard, integer
// literal, and binding identifier. Variant deconstruction is rejected
// explicitly rather than half-supported.
func (p *Parser) parsePattern() ast.Pattern {
	tok := p.peek()
	switch tok.Type {
	case lexer.INT:
		p.advance()
		return &ast.LiteralPattern{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Value: tok.Int}

	case lexer.IDENTIFIER:
		p.advance()
		if p.check(lexer.LEFT_PAREN) {
			p.errorAtCurrent(source.ErrInvalidPattern, "enum variant patterns are not supported; match on a discriminant instead")
			p.synchronizeUntil(lexer.FAT_ARROW, lexer.RIGHT_BRACE)
			p.inPanic = false
		}
		if tok.Lexeme == "_" {
			return &ast.WildcardPattern{Pos: tok.Pos, EndPos: p.makeEndPos(tok)}
		}
		return &ast.BindingPattern{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Name: p.makeIdent(tok)}

	default:
		p.errorAtCurrent(source.ErrInvalidPattern, "expected pattern")
		p.advance()
		return nil
	}
}

func (p *Parser) parseClosure() ast.Expr {
	start := p.advance() // 'fn'
	closure := &ast.ClosureExpr{Pos: start.Pos}

	p.consume(lexer.LEFT_PAREN, "expected '(' after 'fn'")
	for !p.check(lexer.RIGHT_PAREN) && !p.isAtEnd() {
		param := p.parseParam()
		if param == nil {
			break
		}
		closure.Params = append(closure.Params, param)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RIGHT_PAREN, "expected ')' after closure parameters")

	if p.match(lexer.ARROW) {
		closure.Return = p.parseType()
	}
	if p.match(lexer.FAT_ARROW) {
		closure.Body = p.parseExpr()
	} else {
		closure.Body = p.parseBlock()
	}
	closure.EndPos = closure.Body.NodeEndPos()
	return closure
}

func (p *Parser) synchronizeUntil(stopTokens ...lexer.TokenType) {
	stop := make(map[lexer.TokenType]struct{})
	for _, t := range stopTokens {
		stop[t] = struct{}{}
	}
	for !p.isAtEnd() {
		if _, ok := stop[p.peek().Type]; ok {
			return
		}
		p.advance()
	}
}
