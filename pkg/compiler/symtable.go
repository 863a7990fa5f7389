package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Type is a SysY value type.
type Type int

const (
	TypeVoid Type = iota
	TypeInt
)

func (t Type) String() string {
	if t == TypeInt {
		return "int"
	}
	return "void"
}

// Symbol is one declaration visible to name resolution.
type Symbol struct {
	Name    string // renamed IR name, e.g. @x_3
	IsConst bool
	Global  bool

	// Folded constants have no storage; reads use Value directly.
	Folded bool
	Value  int32
}

// FunctionSignature describes a registered function.
type FunctionSignature struct {
	Name   string
	Return Type
	Params []Type
	Extern bool // provided by the runtime library
}

// LoopContext holds the labels break and continue jump to.
type LoopContext struct {
	Cond string
	End  string
}

// SymbolTable resolves identifiers through a stack of lexical scopes.
// Scope 0 is the global scope and is never popped.
//
// Every declaration gets a fresh IR name from a counter shared by all
// scopes, so sibling scopes at the same depth cannot collide. Names
// passed to Reserve (function symbols) are never handed out.
type SymbolTable struct {
	scopes    []map[string]Symbol
	functions map[string]FunctionSignature
	loops     []LoopContext
	reserved  map[string]bool
	nextName  int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		scopes:    []map[string]Symbol{make(map[string]Symbol)},
		functions: make(map[string]FunctionSignature),
		reserved:  make(map[string]bool),
	}
}

func (s *SymbolTable) EnterScope() {
	s.scopes = append(s.scopes, make(map[string]Symbol))
}

// ExitScope pops the innermost scope. Exiting the global scope is a no-op.
func (s *SymbolTable) ExitScope() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// Depth returns the current scope level; 0 is global.
func (s *SymbolTable) Depth() int {
	return len(s.scopes) - 1
}

func (s *SymbolTable) current() map[string]Symbol {
	return s.scopes[len(s.scopes)-1]
}

// AddVariable binds ident in the current scope under a new unique name.
// Shadowing a binding of an outer scope is allowed.
func (s *SymbolTable) AddVariable(ident string, isConst bool) (Symbol, error) {
	if _, ok := s.current()[ident]; ok {
		return Symbol{}, &Error{Kind: DuplicateDeclaration, Name: ident}
	}
	sym := Symbol{
		Name:    s.FreshName(ident),
		IsConst: isConst,
		Global:  s.Depth() == 0,
	}
	s.current()[ident] = sym
	return sym, nil
}

// FreshName returns @ident_n for the next n without binding anything.
// Candidates that were reserved are skipped.
func (s *SymbolTable) FreshName(ident string) string {
	for {
		s.nextName++
		name := fmt.Sprintf("@%s_%d", ident, s.nextName)
		if !s.reserved[name] {
			return name
		}
	}
}

// Reserve marks the IR symbol @ident as taken by something that keeps its
// source name, such as a function.
func (s *SymbolTable) Reserve(ident string) {
	s.reserved["@"+ident] = true
}

// AddConstant binds ident to a compile-time value with no storage.
func (s *SymbolTable) AddConstant(ident string, value int32) (Symbol, error) {
	sym, err := s.AddVariable(ident, true)
	if err != nil {
		return Symbol{}, err
	}
	sym.Folded = true
	sym.Value = value
	s.current()[ident] = sym
	return sym, nil
}

// FindVariable searches scopes from innermost to outermost.
func (s *SymbolTable) FindVariable(ident string) (Symbol, error) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if sym, ok := s.scopes[i][ident]; ok {
			return sym, nil
		}
	}
	return Symbol{}, &Error{Kind: UndefinedVariable, Name: ident}
}

func (s *SymbolTable) VariableExists(ident string) bool {
	_, err := s.FindVariable(ident)
	return err == nil
}

func (s *SymbolTable) AddFunction(name string, ret Type, params []Type) error {
	return s.addFunction(FunctionSignature{Name: name, Return: ret, Params: params})
}

func (s *SymbolTable) addFunction(sig FunctionSignature) error {
	if _, ok := s.functions[sig.Name]; ok {
		return &Error{Kind: DuplicateFunction, Name: sig.Name}
	}
	s.functions[sig.Name] = sig
	return nil
}

func (s *SymbolTable) FindFunction(name string) (FunctionSignature, error) {
	sig, ok := s.functions[name]
	if !ok {
		return FunctionSignature{}, &Error{Kind: UndefinedFunction, Name: name}
	}
	return sig, nil
}

func (s *SymbolTable) EnterLoop(cond, end string) {
	s.loops = append(s.loops, LoopContext{Cond: cond, End: end})
}

func (s *SymbolTable) ExitLoop() {
	if len(s.loops) > 0 {
		s.loops = s.loops[:len(s.loops)-1]
	}
}

func (s *SymbolTable) CurrentLoop() (LoopContext, error) {
	if len(s.loops) == 0 {
		return LoopContext{}, &Error{Kind: BreakContinueOutsideLoop}
	}
	return s.loops[len(s.loops)-1], nil
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	for i, scope := range s.scopes {
		fmt.Fprintf(&sb, "Scope %d:\n", i)
		names := make([]string, 0, len(scope))
		for name := range scope {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sym := scope[name]
			fmt.Fprintf(&sb, "  %-20s  %s (const: %t)\n", name, sym.Name, sym.IsConst)
		}
	}

	if len(s.functions) > 0 {
		sb.WriteString("Functions:\n")
		names := make([]string, 0, len(s.functions))
		for name := range s.functions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sig := s.functions[name]
			fmt.Fprintf(&sb, "  %-20s  %s %v\n", name, sig.Return, sig.Params)
		}
	}
	return sb.String()
}
