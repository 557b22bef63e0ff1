package parser

import (
	"fmt"
	"strconv"

	cerrors "sysyc/internal/errors"
	"sysyc/internal/lexer"
	"sysyc/internal/types"
)

// Parser is a recursive-descent parser over the scanner's token stream.
type Parser struct {
	tokens  []lexer.Token
	current int
	reg     *types.Registry
}

func NewParser(tokens []lexer.Token, reg *types.Registry) *Parser {
	return &Parser{tokens: tokens, reg: reg}
}

// ParseCompUnit parses a whole translation unit. It stops at the first
// syntax error.
func (p *Parser) ParseCompUnit() (cu *CompUnit, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*cerrors.CompileError); ok {
				cu, err = nil, ce
				return
			}
			panic(r)
		}
	}()

	cu = &CompUnit{}
	for !p.check(lexer.TokenEOF) {
		cu.Items = append(cu.Items, p.parseItem())
	}
	return cu, nil
}

func (p *Parser) parseItem() Item {
	if p.check(lexer.TokenConst) {
		return p.parseDecl()
	}
	// Both declarations and function definitions start with a base type;
	// a '(' after the identifier means a function.
	if p.peekAhead(2).Type == lexer.TokenLParen || p.check(lexer.TokenVoid) {
		return p.parseFuncDef()
	}
	return p.parseDecl()
}

// parseDecl parses `['const'] btype def {',' def} ';'`.
func (p *Parser) parseDecl() *Decl {
	line := p.peek().Line
	isConst := false
	if p.check(lexer.TokenConst) {
		p.advance()
		isConst = true
	}
	ty := p.parseBType()

	decl := &Decl{Const: isConst, Ty: ty, Line: line}
	decl.Defs = append(decl.Defs, p.parseDef())
	for p.check(lexer.TokenComma) {
		p.advance()
		decl.Defs = append(decl.Defs, p.parseDef())
	}
	p.expect(lexer.TokenSemicolon, "';' after declaration")
	return decl
}

func (p *Parser) parseDef() *Def {
	name := p.expect(lexer.TokenIdent, "identifier in declaration")
	def := &Def{Ident: name.Lexeme, Line: name.Line}
	for p.check(lexer.TokenLBracket) {
		p.advance()
		def.Dims = append(def.Dims, p.parseExp())
		p.expect(lexer.TokenRBracket, "']' after array dimension")
	}
	if p.check(lexer.TokenEqual) {
		p.advance()
		def.Init = p.parseInitVal()
	}
	return def
}

func (p *Parser) parseInitVal() Exp {
	if !p.check(lexer.TokenLBrace) {
		return p.parseExp()
	}
	open := p.advance()
	list := &InitListExp{Line: open.Line}
	if !p.check(lexer.TokenRBrace) {
		list.Elems = append(list.Elems, p.parseInitVal())
		for p.check(lexer.TokenComma) {
			p.advance()
			list.Elems = append(list.Elems, p.parseInitVal())
		}
	}
	p.expect(lexer.TokenRBrace, "'}' after initializer list")
	return list
}

func (p *Parser) parseFuncDef() *FuncDef {
	retTok := p.advance()
	var retTy *types.Type
	switch retTok.Type {
	case lexer.TokenVoid:
		retTy = p.reg.Void()
	case lexer.TokenInt:
		retTy = p.reg.Int()
	case lexer.TokenFloat:
		retTy = p.reg.Float()
	default:
		p.fail(retTok.Line, "expected return type, found '%s'", retTok.Lexeme)
	}

	name := p.expect(lexer.TokenIdent, "function name")
	fd := &FuncDef{RetTy: retTy, Ident: name.Lexeme, Line: name.Line}

	p.expect(lexer.TokenLParen, "'(' after function name")
	if !p.check(lexer.TokenRParen) {
		fd.Params = append(fd.Params, p.parseParam())
		for p.check(lexer.TokenComma) {
			p.advance()
			fd.Params = append(fd.Params, p.parseParam())
		}
	}
	p.expect(lexer.TokenRParen, "')' after parameters")

	fd.Body = p.parseBlock()
	return fd
}

func (p *Parser) parseParam() *Param {
	ty := p.parseBType()
	name := p.expect(lexer.TokenIdent, "parameter name")
	param := &Param{Ty: ty, Ident: name.Lexeme, Line: name.Line}

	if p.check(lexer.TokenLBracket) {
		// First dimension is elided: `int a[]` or `int a[][3]`.
		p.advance()
		p.expect(lexer.TokenRBracket, "']' in array parameter")
		param.IsArray = true
		for p.check(lexer.TokenLBracket) {
			p.advance()
			param.Dims = append(param.Dims, p.parseExp())
			p.expect(lexer.TokenRBracket, "']' after array dimension")
		}
	}
	return param
}

func (p *Parser) parseBType() *types.Type {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenInt:
		return p.reg.Int()
	case lexer.TokenFloat:
		return p.reg.Float()
	}
	p.fail(tok.Line, "expected type, found '%s'", tok.Lexeme)
	return nil
}

// Expression parsing, lowest precedence first.

func (p *Parser) parseExp() Exp { return p.parseLOr() }

func (p *Parser) parseLOr() Exp {
	lhs := p.parseLAnd()
	for p.check(lexer.TokenOr) {
		line := p.advance().Line
		rhs := p.parseLAnd()
		lhs = &BinaryExp{Op: OpLOr, Lhs: lhs, Rhs: rhs, Line: line}
	}
	return lhs
}

func (p *Parser) parseLAnd() Exp {
	lhs := p.parseEq()
	for p.check(lexer.TokenAnd) {
		line := p.advance().Line
		rhs := p.parseEq()
		lhs = &BinaryExp{Op: OpLAnd, Lhs: lhs, Rhs: rhs, Line: line}
	}
	return lhs
}

func (p *Parser) parseEq() Exp {
	lhs := p.parseRel()
	for p.check(lexer.TokenDoubleEqual) || p.check(lexer.TokenNotEqual) {
		tok := p.advance()
		op := OpEq
		if tok.Type == lexer.TokenNotEqual {
			op = OpNe
		}
		rhs := p.parseRel()
		lhs = &BinaryExp{Op: op, Lhs: lhs, Rhs: rhs, Line: tok.Line}
	}
	return lhs
}

func (p *Parser) parseRel() Exp {
	lhs := p.parseAdd()
	for {
		var op BinaryOp
		switch p.peek().Type {
		case lexer.TokenLT:
			op = OpLt
		case lexer.TokenGT:
			op = OpGt
		case lexer.TokenLE:
			op = OpLe
		case lexer.TokenGE:
			op = OpGe
		default:
			return lhs
		}
		line := p.advance().Line
		rhs := p.parseAdd()
		lhs = &BinaryExp{Op: op, Lhs: lhs, Rhs: rhs, Line: line}
	}
}

func (p *Parser) parseAdd() Exp {
	lhs := p.parseMul()
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		tok := p.advance()
		op := OpAdd
		if tok.Type == lexer.TokenMinus {
			op = OpSub
		}
		rhs := p.parseMul()
		lhs = &BinaryExp{Op: op, Lhs: lhs, Rhs: rhs, Line: tok.Line}
	}
	return lhs
}

func (p *Parser) parseMul() Exp {
	lhs := p.parseUnary()
	for {
		var op BinaryOp
		switch p.peek().Type {
		case lexer.TokenStar:
			op = OpMul
		case lexer.TokenSlash:
			op = OpDiv
		case lexer.TokenPercent:
			op = OpMod
		default:
			return lhs
		}
		line := p.advance().Line
		rhs := p.parseUnary()
		lhs = &BinaryExp{Op: op, Lhs: lhs, Rhs: rhs, Line: line}
	}
}

func (p *Parser) parseUnary() Exp {
	switch p.peek().Type {
	case lexer.TokenPlus:
		line := p.advance().Line
		return &UnaryExp{Op: OpPos, Operand: p.parseUnary(), Line: line}
	case lexer.TokenMinus:
		line := p.advance().Line
		return &UnaryExp{Op: OpNeg, Operand: p.parseUnary(), Line: line}
	case lexer.TokenNot:
		line := p.advance().Line
		return &UnaryExp{Op: OpNot, Operand: p.parseUnary(), Line: line}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Exp {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenLParen:
		p.advance()
		e := p.parseExp()
		p.expect(lexer.TokenRParen, "')' after expression")
		return e
	case lexer.TokenIntConst:
		p.advance()
		// Base 0 covers decimal, octal (leading 0) and hex (0x) spellings.
		v, err := strconv.ParseInt(tok.Lexeme, 0, 64)
		if err != nil {
			p.fail(tok.Line, "bad integer literal '%s'", tok.Lexeme)
		}
		c := NewConstExp(p.reg, IntVal(v))
		c.Line = tok.Line
		return c
	case lexer.TokenFloatConst:
		p.advance()
		// ParseFloat understands both decimal and hexadecimal (0x1.8p+1)
		// spellings. Parse at f64 precision, then narrow.
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.fail(tok.Line, "bad float literal '%s'", tok.Lexeme)
		}
		c := NewConstExp(p.reg, FloatVal(float32(v)))
		c.Line = tok.Line
		return c
	case lexer.TokenIdent:
		return p.parseLValOrCall()
	}
	p.fail(tok.Line, "expected expression, found '%s'", tok.Lexeme)
	return nil
}

func (p *Parser) parseLValOrCall() Exp {
	name := p.advance()
	if p.check(lexer.TokenLParen) {
		p.advance()
		call := &CallExp{Ident: name.Lexeme, Line: name.Line}
		if !p.check(lexer.TokenRParen) {
			call.Args = append(call.Args, p.parseExp())
			for p.check(lexer.TokenComma) {
				p.advance()
				call.Args = append(call.Args, p.parseExp())
			}
		}
		p.expect(lexer.TokenRParen, "')' after arguments")
		return call
	}

	lval := &LValExp{Ident: name.Lexeme, Line: name.Line}
	for p.check(lexer.TokenLBracket) {
		p.advance()
		lval.Indices = append(lval.Indices, p.parseExp())
		p.expect(lexer.TokenRBracket, "']' after index")
	}
	return lval
}

// Token helpers.

func (p *Parser) peek() lexer.Token { return p.tokens[p.current] }

func (p *Parser) peekAhead(n int) lexer.Token {
	if p.current+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+n]
}

func (p *Parser) check(t lexer.TokenType) bool { return p.peek().Type == t }

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if tok.Type != lexer.TokenEOF {
		p.current++
	}
	return tok
}

func (p *Parser) expect(t lexer.TokenType, what string) lexer.Token {
	if !p.check(t) {
		tok := p.peek()
		p.fail(tok.Line, "expected %s, found '%s'", what, tok.Lexeme)
	}
	return p.advance()
}

func (p *Parser) fail(line int, format string, args ...any) {
	panic(cerrors.NewSyntaxError(fmt.Sprintf(format, args...), line))
}
