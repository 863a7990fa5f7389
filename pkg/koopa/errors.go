package koopa

import (
	"errors"
	"fmt"
)

// ErrParse matches every *ParseError with errors.Is.
var ErrParse = errors.New("koopa: parse failure")

// ParseError reports malformed IR text.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

func parseErrorf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
