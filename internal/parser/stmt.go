package parser

import (
	"seraphic/internal/ast"
	"seraphic/internal/lexer"
	"seraphic/internal/source"
)

// parseBlock parses `{ stmt* expr? }`. A trailing expression not followed by
// ';' becomes the block's result value.
func (p *Parser) parseBlock() *ast.BlockExpr {
	start := p.consume(lexer.LEFT_BRACE, "expected '{'")
	block := &ast.BlockExpr{Pos: start.Pos}

	for !p.check(lexer.RIGHT_BRACE) && !p.isAtEnd() {
		stmt, tail := p.parseBlockItem()
		if tail != nil {
			block.Tail = tail
			break
		}
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.inPanic {
			p.synchronize()
		}
	}

	p.consume(lexer.RIGHT_BRACE, "expected '}' to close block")
	block.EndPos = p.endOf()
	return block
}

// parseBlockItem parses one statement, or the block's tail expression when
// the upcoming expression is immediately followed by '}'.
func (p *Parser) parseBlockItem() (ast.Stmt, ast.Expr) {
	switch p.peek().Type {
	case lexer.LET, lexer.CONST:
		decl := p.parseLetDecl()
		return &ast.LetStmt{Pos: decl.Pos, EndPos: decl.EndPos, Decl: decl}, nil

	case lexer.RETURN:
		start := p.advance()
		stmt := &ast.ReturnStmt{Pos: start.Pos}
		if !p.check(lexer.SEMICOLON) {
			stmt.Value = p.parseExpr()
		}
		p.consume(lexer.SEMICOLON, "expected ';' after return")
		stmt.EndPos = p.endOf()
		return stmt, nil

	case lexer.BREAK:
		start := p.advance()
		p.consume(lexer.SEMICOLON, "expected ';' after break")
		return &ast.BreakStmt{Pos: start.Pos, EndPos: p.endOf()}, nil

	case lexer.CONTINUE:
		start := p.advance()
		p.consume(lexer.SEMICOLON, "expected ';' after continue")
		return &ast.ContinueStmt{Pos: start.Pos, EndPos: p.endOf()}, nil

	case lexer.WHILE:
		return p.parseWhile(), nil

	case lexer.FOR:
		return p.parseFor(), nil

	case lexer.PERSIST, lexer.AETHER, lexer.RECOVER:
		return p.parseSubstrate(), nil

	default:
		expr := p.parseExpr()
		if p.check(lexer.RIGHT_BRACE) {
			return nil, expr
		}
		if p.match(lexer.SEMICOLON) {
			return &ast.ExprStmt{Pos: expr.NodePos(), EndPos: p.endOf(), Value: expr}, nil
		}
		// if/match/block expressions in statement position do not require a
		// terminating semicolon.
		switch expr.(type) {
		case *ast.IfExpr, *ast.MatchExpr, *ast.BlockExpr:
			return &ast.ExprStmt{Pos: expr.NodePos(), EndPos: expr.NodeEndPos(), Value: expr}, nil
		}
		p.errorAtCurrent(source.ErrExpectedToken, "expected ';' after expression")
		return &ast.ExprStmt{Pos: expr.NodePos(), EndPos: expr.NodeEndPos(), Value: expr}, nil
	}
}

func (p *Parser) parseWhile() *ast.WhileStmt {
	start := p.advance() // 'while'
	stmt := &ast.WhileStmt{Pos: start.Pos}
	stmt.Cond = p.parseExprNoStructLit()
	stmt.Body = p.parseBlock()
	stmt.EndPos = stmt.Body.EndPos
	return stmt
}

func (p *Parser) parseFor() *ast.ForStmt {
	start := p.advance() // 'for'
	stmt := &ast.ForStmt{Pos: start.Pos}

	name, ok := p.consumeIdent("expected loop variable after 'for'")
	if !ok {
		p.synchronize()
		return stmt
	}
	stmt.Var = name

	p.consume(lexer.IN, "expected 'in' after loop variable")
	rangeExpr := p.parseExprNoStructLit()
	if r, ok := rangeExpr.(*ast.RangeExpr); ok {
		stmt.Range = r
	} else {
		p.errorAtCurrent(source.ErrUnexpectedToken, "for loop requires a range expression")
		stmt.Range = &ast.RangeExpr{
			Pos: rangeExpr.NodePos(), EndPos: rangeExpr.NodeEndPos(),
			Start: rangeExpr, End: rangeExpr,
		}
	}
	stmt.Body = p.parseBlock()
	stmt.EndPos = stmt.Body.EndPos
	return stmt
}

func (p *Parser) parseSubstrate() *ast.SubstrateStmt {
	start := p.advance()
	stmt := &ast.SubstrateStmt{Pos: start.Pos}
	switch start.Type {
	case lexer.PERSIST:
		stmt.Kind = ast.SubstratePersist
	case lexer.AETHER:
		stmt.Kind = ast.SubstrateAether
	default:
		stmt.Kind = ast.SubstrateRecover
	}
	stmt.Body = p.parseBlock()
	stmt.EndPos = stmt.Body.EndPos
	return stmt
}
