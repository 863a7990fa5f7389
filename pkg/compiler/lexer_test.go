package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func tokenTypes(toks []Token) []TokenType {
	types := make([]TokenType, len(toks))
	for i, t := range toks {
		types[i] = t.Type
	}
	return types
}

func TestLex(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []TokenType
	}{
		{"Keywords", "int void const if else while break continue return",
			[]TokenType{INT, VOID, CONST, IF, ELSE, WHILE, BREAK, CONTINUE, RETURN, EOF}},
		{"Punctuation", "{ } ( ) ; ,",
			[]TokenType{LBRACE, RBRACE, LPAREN, RPAREN, SEMICOLON, COMMA, EOF}},
		{"Arithmetic", "+ - * / %",
			[]TokenType{PLUS, MINUS, STAR, SLASH, PERCENT, EOF}},
		{"Comparison", "< > <= >= == !=",
			[]TokenType{LESS, GREATER, LESS_EQ, GREATER_EQ, EQUALS, NOT_EQ, EOF}},
		{"Logical", "&& || !",
			[]TokenType{AND_LOGICAL, OR_LOGICAL, NOT, EOF}},
		{"AssignVsEquals", "a = b == c",
			[]TokenType{IDENTIFIER, ASSIGN, IDENTIFIER, EQUALS, IDENTIFIER, EOF}},
		{"Comments", "int // line\n/* block\n comment */ x",
			[]TokenType{INT, IDENTIFIER, EOF}},
		{"IdentWithDigits", "_tmp2 x_1", []TokenType{IDENTIFIER, IDENTIFIER, EOF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.src)
			be.Err(t, err, nil)
			be.Equal(t, tokenTypes(toks), tt.want)
		})
	}
}

func TestLexIntegers(t *testing.T) {
	for _, src := range []string{"0", "42", "017", "0x1F", "0XfF", "4294967295"} {
		toks, err := Lex(src)
		be.Err(t, err, nil)
		be.Equal(t, toks[0].Type, INTEGER)
		be.Equal(t, toks[0].Lexeme, src)
	}
}

func TestLexLineNumbers(t *testing.T) {
	toks, err := Lex("int\nx\n\n/* a\nb */ y")
	be.Err(t, err, nil)
	be.Equal(t, toks[0].Line, 1)
	be.Equal(t, toks[1].Line, 2)
	be.Equal(t, toks[2].Line, 5)
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"IllegalChar", "int x = 1 @ 2;", "unexpected character"},
		{"SingleAmpersand", "a & b", "unexpected character"},
		{"Unterminated", "/* never closed", "unterminated block comment"},
		{"BadHex", "0x", "malformed hex literal"},
		{"DigitsThenLetters", "123abc", "malformed integer literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.src)
			be.Err(t, err, tt.want)
			be.Err(t, err, ErrSyntax)
		})
	}
}
