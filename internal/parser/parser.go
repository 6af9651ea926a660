package parser

import (
	"seraphic/internal/ast"
	"seraphic/internal/lexer"
	"seraphic/internal/source"
)

// Parser consumes a token sequence and produces a tree rooted at a module
// node. Syntax errors are queued as diagnostics; the parser enters panic mode
// and resynchronizes at statement or declaration boundaries, so one pass
// always yields a (possibly partial) module.
type Parser struct {
	filename string
	tokens   []lexer.Token
	current  int
	diags    *source.List

	// inPanic suppresses cascading diagnostics until synchronize().
	inPanic bool

	// allowStructLit gates `Name { ... }` literals; it is cleared while
	// parsing loop/if/match heads where `{` opens the body instead.
	allowStructLit bool
}

func New(filename string, tokens []lexer.Token, diags *source.List) *Parser {
	return &Parser{
		filename:       filename,
		tokens:         tokens,
		diags:          diags,
		allowStructLit: true,
	}
}

// Parse tokenizes and parses a source buffer in one step.
func Parse(filename, src string) (*ast.Module, *source.List) {
	tokens, diags := lexer.Tokenize(filename, src)
	p := New(filename, tokens, diags)
	return p.ParseModule(), diags
}

// ParseModule parses declarations until end of input.
func (p *Parser) ParseModule() *ast.Module {
	mod := &ast.Module{Pos: p.peek().Pos}
	for !p.isAtEnd() {
		decl := p.parseDecl()
		if decl != nil {
			mod.Decls = append(mod.Decls, decl)
		}
	}
	mod.EndPos = p.peek().Pos
	return mod
}

// Token stream primitives.

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) check(tt lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == tt
}

func (p *Parser) checkAt(n int, tt lexer.TokenType) bool {
	if p.current+n >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+n].Type == tt
}

func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, tt := range types {
		if p.check(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(tt lexer.TokenType, message string) lexer.Token {
	if p.check(tt) {
		return p.advance()
	}
	p.errorAtCurrent(source.ErrExpectedToken, message)
	return lexer.Token{Type: lexer.ILLEGAL, Pos: p.peek().Pos}
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) peekAt(n int) lexer.Token {
	if p.current+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+n]
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.EOF
}

func (p *Parser) errorAtCurrent(code, message string) {
	if p.inPanic {
		return
	}
	p.inPanic = true
	tok := p.peek()
	p.diags.Add(source.Diagnostic{
		Severity: source.Error,
		Code:     code,
		Message:  message,
		Pos:      tok.Pos,
		Length:   len(tok.Lexeme),
	})
}

func (p *Parser) warnAtCurrent(code, message string) {
	tok := p.peek()
	p.diags.Add(source.Diagnostic{
		Severity: source.Warning,
		Code:     code,
		Message:  message,
		Pos:      tok.Pos,
		Length:   len(tok.Lexeme),
	})
}

// synchronize skips tokens until a likely statement or declaration boundary:
// either a ';' has been consumed, or the next token begins a declaration.
// A stray '}' is consumed so recovery cannot loop.
func (p *Parser) synchronize() {
	p.inPanic = false
	if !p.isAtEnd() {
		p.advance()
	}

	for !p.isAtEnd() {
		if p.previous().Type == lexer.SEMICOLON {
			return
		}
		switch p.peek().Type {
		case lexer.FN, lexer.LET, lexer.CONST, lexer.STRUCT, lexer.ENUM,
			lexer.USE, lexer.IMPL, lexer.FOREIGN, lexer.TYPE:
			return
		case lexer.RIGHT_BRACE:
			p.advance()
			return
		}
		p.advance()
	}
}

// Position helpers.

func (p *Parser) makeEndPos(tok lexer.Token) source.Position {
	end := tok.Pos
	end.Offset += len(tok.Lexeme)
	end.Column += len(tok.Lexeme)
	return end
}

func (p *Parser) makeIdent(tok lexer.Token) ast.Ident {
	return ast.Ident{Pos: tok.Pos, EndPos: p.makeEndPos(tok), Value: tok.Lexeme}
}

func (p *Parser) consumeIdent(message string) (ast.Ident, bool) {
	tok := p.consume(lexer.IDENTIFIER, message)
	if tok.Type == lexer.ILLEGAL {
		return ast.Ident{Value: "error", Pos: tok.Pos, EndPos: tok.Pos}, false
	}
	return p.makeIdent(tok), true
}

// endOf returns the end position of the previously consumed token.
func (p *Parser) endOf() source.Position {
	return p.makeEndPos(p.previous())
}
