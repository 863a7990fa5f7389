package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fatal compilation error.
type ErrorKind int

const (
	SyntaxError ErrorKind = iota + 1
	UndefinedVariable
	UndefinedFunction
	DuplicateDeclaration
	DuplicateFunction
	BreakContinueOutsideLoop
	MalformedNode
	ConstAssignment
)

var kindNames = [...]string{
	SyntaxError:              "syntax error",
	UndefinedVariable:        "undefined variable",
	UndefinedFunction:        "undefined function",
	DuplicateDeclaration:     "duplicate declaration",
	DuplicateFunction:        "duplicate function",
	BreakContinueOutsideLoop: "break/continue outside loop",
	MalformedNode:            "malformed node",
	ConstAssignment:          "assignment to constant",
}

func (k ErrorKind) String() string {
	if int(k) > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels for errors.Is. A *Error matches the sentinel of its Kind.
var (
	ErrSyntax                   = &Error{Kind: SyntaxError}
	ErrUndefinedVariable        = &Error{Kind: UndefinedVariable}
	ErrUndefinedFunction        = &Error{Kind: UndefinedFunction}
	ErrDuplicateDeclaration     = &Error{Kind: DuplicateDeclaration}
	ErrDuplicateFunction        = &Error{Kind: DuplicateFunction}
	ErrBreakContinueOutsideLoop = &Error{Kind: BreakContinueOutsideLoop}
	ErrMalformedNode            = &Error{Kind: MalformedNode}
	ErrConstAssignment          = &Error{Kind: ConstAssignment}
)

// Error is a fatal front-end or IR-emission error.
type Error struct {
	Kind ErrorKind
	Name string // offending identifier, if any
	Msg  string
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Name != "":
		return fmt.Sprintf("%s %q", e.Kind, e.Name)
	}
	return e.Kind.String()
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func errorf(kind ErrorKind, name, format string, args ...any) *Error {
	return &Error{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind carried by err, or 0 when err is not a compiler error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
