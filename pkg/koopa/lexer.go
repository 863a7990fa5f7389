package koopa

import (
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokEOF    tokenKind = iota
	tokSymbol           // @name or %name
	tokInt
	tokWord // keyword, operator or type name
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	val  int32
	line int
}

type lexer struct {
	src  []rune
	pos  int
	line int
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameRune(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r)
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		r := l.peek()
		switch {
		case r == '\n':
			l.line++
			l.pos++
		case unicode.IsSpace(r):
			l.pos++
		case r == '/' && l.peek2() == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.pos++
			}
		case r == '/' && l.peek2() == '*':
			start := l.line
			l.pos += 2
			for {
				if l.pos >= len(l.src) {
					return parseErrorf(start, "unterminated block comment")
				}
				if l.peek() == '*' && l.peek2() == '/' {
					l.pos += 2
					break
				}
				if l.peek() == '\n' {
					l.line++
				}
				l.pos++
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	start := l.pos
	r := l.peek()
	switch {
	case r == '@' || r == '%':
		l.pos++
		if l.pos >= len(l.src) || !isNameRune(l.peek()) {
			return token{}, parseErrorf(l.line, "bad symbol name after %q", r)
		}
		for l.pos < len(l.src) && isNameRune(l.peek()) {
			l.pos++
		}
		return token{kind: tokSymbol, text: string(l.src[start:l.pos]), line: l.line}, nil

	case unicode.IsDigit(r) || (r == '-' && unicode.IsDigit(l.peek2())):
		l.pos++
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.pos++
		}
		text := string(l.src[start:l.pos])
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil || n < -1<<31 || n > 1<<32-1 {
			return token{}, parseErrorf(l.line, "integer %s out of range", text)
		}
		return token{kind: tokInt, text: text, val: int32(n), line: l.line}, nil

	case isNameStart(r):
		for l.pos < len(l.src) && isNameRune(l.peek()) {
			l.pos++
		}
		return token{kind: tokWord, text: string(l.src[start:l.pos]), line: l.line}, nil
	}

	switch r {
	case '(', ')', '{', '}', ':', ',', '=', '*':
		l.pos++
		return token{kind: tokPunct, text: string(r), line: l.line}, nil
	}
	return token{}, parseErrorf(l.line, "unexpected character %q", r)
}

func lex(src string) ([]token, error) {
	l := &lexer{src: []rune(src), line: 1}
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}
