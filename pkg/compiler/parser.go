package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar (SysY without arrays):
//
//	compUnit   = (decl | funcDef)* EOF
//	decl       = ["const"] "int" def ("," def)* ";"
//	def        = IDENTIFIER ["=" expression]
//	funcDef    = ("int" | "void") IDENTIFIER "(" [param ("," param)*] ")" block
//	param      = "int" IDENTIFIER
//	block      = "{" (decl | statement)* "}"
//	statement  = IDENTIFIER "=" expression ";" | [expression] ";" | block
//	           | "if" "(" expression ")" statement ["else" statement]
//	           | "while" "(" expression ")" statement
//	           | "break" ";" | "continue" ";" | "return" [expression] ";"
//	expression = logical_or
//	logical_or = logical_and ("||" logical_and)*
//	logical_and = equality ("&&" equality)*
//	equality   = relational (("=="|"!=") relational)*
//	relational = additive (("<"|">"|"<="|">=") additive)*
//	additive   = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary      = ("+" | "-" | "!") unary | IDENTIFIER "(" args ")" | primary
//	primary    = INTEGER | IDENTIFIER | "(" expression ")"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1 // Lines are 1-based

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return errorf(SyntaxError, "", "line %d: %s\n  |> %s", tok.Line, msg, snippet)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	return p.peekAt(0)
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseLogicalOr()
}

// parseBinaryLevel parses a left-associative chain of one precedence level.
func (p *Parser) parseBinaryLevel(next func() (Expr, error), build func(TokenType, Expr, Expr) Expr, ops ...TokenType) (Expr, error) {
	expr, err := next()
	if err != nil {
		return nil, err
	}
	for p.peekIs(ops...) {
		op := p.advance().Type
		right, err := next()
		if err != nil {
			return nil, err
		}
		expr = build(op, expr, right)
	}
	return expr, nil
}

func (p *Parser) peekIs(types ...TokenType) bool {
	tt := p.peek().Type
	for _, t := range types {
		if tt == t {
			return true
		}
	}
	return false
}

func binary(op TokenType, l, r Expr) Expr  { return &BinaryExpr{Op: op, Left: l, Right: r} }
func logical(op TokenType, l, r Expr) Expr { return &LogicalExpr{Op: op, Left: l, Right: r} }

// parseLogicalOr handles ||
func (p *Parser) parseLogicalOr() (Expr, error) {
	return p.parseBinaryLevel(p.parseLogicalAnd, logical, OR_LOGICAL)
}

// parseLogicalAnd handles &&
func (p *Parser) parseLogicalAnd() (Expr, error) {
	return p.parseBinaryLevel(p.parseEquality, logical, AND_LOGICAL)
}

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	return p.parseBinaryLevel(p.parseRelational, binary, EQUALS, NOT_EQ)
}

// parseRelational handles <, >, <= and >=
func (p *Parser) parseRelational() (Expr, error) {
	return p.parseBinaryLevel(p.parseAdditive, binary, LESS, GREATER, LESS_EQ, GREATER_EQ)
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	return p.parseBinaryLevel(p.parseMultiplicative, binary, PLUS, MINUS)
}

// parseMultiplicative handles *, / and %
func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.parseBinaryLevel(p.parseUnary, binary, STAR, SLASH, PERCENT)
}

// parseUnary handles prefix +, - and !, and function calls.
func (p *Parser) parseUnary() (Expr, error) {
	if p.peekIs(PLUS, MINUS, NOT) {
		op := p.advance().Type
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Right: right}, nil
	}

	if p.peek().Type == IDENTIFIER && p.peekAt(1).Type == LPAREN {
		nameTok := p.advance()
		p.advance() // (
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return &FunctionCall{Name: nameTok.Lexeme, Args: args, Line: nameTok.Line}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parseCallArgs() ([]Expr, error) {
	var args []Expr
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parsePrimary handles literals, variables, and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER:
		p.advance()
		// Base 0 gives C's 0x and leading-zero octal forms. Values up to
		// 2^32-1 wrap so that -2147483648 and 0xffffffff are expressible.
		val, err := strconv.ParseUint(tok.Lexeme, 0, 32)
		if err != nil {
			return nil, p.fmtError(tok, "integer %q out of 32-bit range", tok.Lexeme)
		}
		return &Literal{Value: int32(uint32(val))}, nil

	case IDENTIFIER:
		p.advance()
		return &VarRef{Name: tok.Lexeme, Line: tok.Line}, nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.fmtError(tok, "expected expression, got %s (%q)", tok.Type, tok.Lexeme)
	}
}

// parseDecl parses  [const] int def ("," def)* ";"
func (p *Parser) parseDecl() (*DeclStmt, error) {
	decl := &DeclStmt{}
	if p.peek().Type == CONST {
		p.advance()
		decl.IsConst = true
	}
	if _, err := p.expect(INT); err != nil {
		return nil, err
	}

	for {
		nameTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		def := &VariableDecl{Name: nameTok.Lexeme, Line: nameTok.Line}
		if p.peek().Type == ASSIGN {
			p.advance()
			def.Init, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		} else if decl.IsConst {
			return nil, p.fmtError(nameTok, "constant %q requires an initializer", nameTok.Lexeme)
		}
		decl.Defs = append(decl.Defs, def)

		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}

	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseReturn parses  return [expr] ;
// The leading RETURN token has already been consumed by parseStatement.
func (p *Parser) parseReturn() (Stmt, error) {
	if p.peek().Type == SEMICOLON {
		p.advance()
		return &ReturnStmt{}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{Expr: expr}, nil
}

// parseBlock parses { item; item; ... }
// The leading LBRACE token has already been consumed.
func (p *Parser) parseBlock() (*BlockStmt, error) {
	stmts := []Stmt{}
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		var stmt Stmt
		var err error
		if p.peekIs(CONST, INT) {
			stmt, err = p.parseDecl()
		} else {
			stmt, err = p.parseStatement()
		}
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return &BlockStmt{Stmts: stmts}, nil
}

// parseIf parses if ( cond ) body [ else elseBody ]
// The leading IF token has already been consumed by parseStatement.
// A dangling else binds to the nearest if.
func (p *Parser) parseIf() (Stmt, error) {
	cond, err := p.parseParenCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	var elseBody Stmt
	if p.peek().Type == ELSE {
		p.advance()
		elseBody, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}

	return &IfStmt{Condition: cond, Body: body, ElseBody: elseBody}, nil
}

// parseWhile parses while ( cond ) body
// The leading WHILE token has already been consumed by parseStatement.
func (p *Parser) parseWhile() (Stmt, error) {
	cond, err := p.parseParenCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Condition: cond, Body: body}, nil
}

func (p *Parser) parseParenCondition() (Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return cond, nil
}

// parseStatement dispatches to the correct sub-parser based on the leading token.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {

	case LBRACE:
		p.advance()
		return p.parseBlock()

	case IF:
		p.advance()
		return p.parseIf()

	case WHILE:
		p.advance()
		return p.parseWhile()

	case BREAK:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{Line: tok.Line}, nil

	case CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{Line: tok.Line}, nil

	case RETURN:
		p.advance()
		return p.parseReturn()

	case SEMICOLON:
		p.advance()
		return &ExprStmt{}, nil

	case IDENTIFIER:
		if p.peekAt(1).Type == ASSIGN {
			p.advance() // name
			p.advance() // =
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(SEMICOLON); err != nil {
				return nil, err
			}
			return &Assignment{Left: &VarRef{Name: tok.Lexeme, Line: tok.Line}, Value: val}, nil
		}
	}

	// Expression statement
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.peek().Type == ASSIGN {
		return nil, p.fmtError(p.peek(), "left side of assignment is not a variable")
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr}, nil
}

// parseFunctionDecl parses int name(params) { ... } or void name(params) { ... }
func (p *Parser) parseFunctionDecl() (Stmt, error) {
	retTok := p.advance() // INT or VOID, checked by the caller
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var params []Param
	if p.peek().Type != RPAREN {
		for {
			if _, err := p.expect(INT); err != nil {
				return nil, err
			}
			paramName, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			params = append(params, Param{Name: paramName.Lexeme, Line: paramName.Line})

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &FunctionDecl{
		Name:       nameTok.Lexeme,
		ReturnType: retTok.Type,
		Params:     params,
		Body:       body,
		Line:       nameTok.Line,
	}, nil
}

// Parse enforces that only declarations and function definitions appear at the top level.
func Parse(tokens []Token, rawSource string) ([]Stmt, error) {
	p := NewParser(tokens, rawSource)
	var stmts []Stmt
	for p.peek().Type != EOF {
		tok := p.peek()
		switch {
		case tok.Type == VOID,
			tok.Type == INT && p.peekAt(1).Type == IDENTIFIER && p.peekAt(2).Type == LPAREN:
			f, err := p.parseFunctionDecl()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, f)

		case tok.Type == INT || tok.Type == CONST:
			d, err := p.parseDecl()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, d)

		default:
			return nil, p.fmtError(tok, "executable statement %q found outside of function body", tok.Lexeme)
		}
	}
	return stmts, nil
}
