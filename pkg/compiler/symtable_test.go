package compiler

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestSymbolTable(t *testing.T) {
	t.Run("GlobalScope", func(t *testing.T) {
		s := NewSymbolTable()
		be.Equal(t, s.Depth(), 0)
		sym, err := s.AddVariable("g", false)
		be.Err(t, err, nil)
		be.Equal(t, sym.Name, "@g_1")
		be.True(t, sym.Global)
	})

	t.Run("ExitGlobalIsNoop", func(t *testing.T) {
		s := NewSymbolTable()
		_, _ = s.AddVariable("g", false)
		s.ExitScope()
		s.ExitScope()
		be.Equal(t, s.Depth(), 0)
		be.True(t, s.VariableExists("g"))
	})

	t.Run("Shadowing", func(t *testing.T) {
		s := NewSymbolTable()
		outer, _ := s.AddVariable("x", false)
		s.EnterScope()
		inner, err := s.AddVariable("x", false)
		be.Err(t, err, nil)
		be.True(t, inner.Name != outer.Name)
		be.True(t, !inner.Global)

		found, err := s.FindVariable("x")
		be.Err(t, err, nil)
		be.Equal(t, found.Name, inner.Name)

		s.ExitScope()
		found, _ = s.FindVariable("x")
		be.Equal(t, found.Name, outer.Name)
	})

	t.Run("SiblingScopesGetDistinctNames", func(t *testing.T) {
		s := NewSymbolTable()
		s.EnterScope()
		a, _ := s.AddVariable("x", false)
		s.ExitScope()
		s.EnterScope()
		b, _ := s.AddVariable("x", false)
		s.ExitScope()
		be.True(t, a.Name != b.Name)
	})

	t.Run("DuplicateInSameScope", func(t *testing.T) {
		s := NewSymbolTable()
		s.EnterScope()
		_, _ = s.AddVariable("x", false)
		_, err := s.AddVariable("x", true)
		be.Err(t, err, ErrDuplicateDeclaration)
	})

	t.Run("ReservedNamesAreSkipped", func(t *testing.T) {
		s := NewSymbolTable()
		s.Reserve("x_1")
		s.Reserve("x_2")
		sym, _ := s.AddVariable("x", false)
		be.Equal(t, sym.Name, "@x_3")
		be.Equal(t, s.FreshName("y"), "@y_4")
	})

	t.Run("Undefined", func(t *testing.T) {
		s := NewSymbolTable()
		_, err := s.FindVariable("nope")
		be.Err(t, err, ErrUndefinedVariable)
		be.True(t, !s.VariableExists("nope"))
	})

	t.Run("ScopeExitForgetsBindings", func(t *testing.T) {
		s := NewSymbolTable()
		s.EnterScope()
		_, _ = s.AddVariable("tmp", false)
		s.ExitScope()
		be.True(t, !s.VariableExists("tmp"))
	})

	t.Run("Constants", func(t *testing.T) {
		s := NewSymbolTable()
		sym, err := s.AddConstant("N", 10)
		be.Err(t, err, nil)
		be.True(t, sym.Folded)
		be.True(t, sym.IsConst)

		found, _ := s.FindVariable("N")
		be.Equal(t, found.Value, int32(10))
	})

	t.Run("Functions", func(t *testing.T) {
		s := NewSymbolTable()
		be.Err(t, s.AddFunction("f", TypeInt, []Type{TypeInt}), nil)
		be.Err(t, s.AddFunction("f", TypeVoid, nil), ErrDuplicateFunction)

		sig, err := s.FindFunction("f")
		be.Err(t, err, nil)
		be.Equal(t, sig.Return, TypeInt)
		be.Equal(t, len(sig.Params), 1)

		_, err = s.FindFunction("g")
		be.Err(t, err, ErrUndefinedFunction)
	})

	t.Run("Loops", func(t *testing.T) {
		s := NewSymbolTable()
		_, err := s.CurrentLoop()
		be.Err(t, err, ErrBreakContinueOutsideLoop)

		s.EnterLoop("%while_cond_1", "%while_end_1")
		s.EnterLoop("%while_cond_2", "%while_end_2")
		loop, err := s.CurrentLoop()
		be.Err(t, err, nil)
		be.Equal(t, loop.End, "%while_end_2")

		s.ExitLoop()
		loop, _ = s.CurrentLoop()
		be.Equal(t, loop.Cond, "%while_cond_1")

		s.ExitLoop()
		s.ExitLoop()
		_, err = s.CurrentLoop()
		be.Err(t, err, ErrBreakContinueOutsideLoop)
	})

	t.Run("String", func(t *testing.T) {
		s := NewSymbolTable()
		_, _ = s.AddVariable("b", false)
		_, _ = s.AddVariable("a", true)
		_ = s.AddFunction("main", TypeInt, nil)
		out := s.String()
		be.True(t, strings.Index(out, "a ") < strings.Index(out, "b "))
		be.True(t, strings.Contains(out, "Functions:"))
		be.True(t, strings.Contains(out, "@a_2 (const: true)"))
	})
}
