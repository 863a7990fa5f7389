package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Operand is the result of an emitted expression: an immediate integer
// or the id of the instruction that computed it.
type Operand struct {
	Imm   bool
	Value int32 // valid when Imm
	ID    int   // valid when !Imm
}

func imm(v int32) Operand { return Operand{Imm: true, Value: v} }

func (o Operand) String() string {
	if o.Imm {
		return strconv.Itoa(int(o.Value))
	}
	return "%" + strconv.Itoa(o.ID)
}

// Flow reports whether control can continue past an emitted statement.
type Flow int

const (
	FellThrough Flow = iota
	Terminated
)

// runtimeLibrary lists the SysY library functions callable without a definition.
var runtimeLibrary = []FunctionSignature{
	{Name: "getint", Return: TypeInt, Extern: true},
	{Name: "getch", Return: TypeInt, Extern: true},
	{Name: "putint", Return: TypeVoid, Params: []Type{TypeInt}, Extern: true},
	{Name: "putch", Return: TypeVoid, Params: []Type{TypeInt}, Extern: true},
	{Name: "starttime", Return: TypeVoid, Extern: true},
	{Name: "stoptime", Return: TypeVoid, Extern: true},
}

// CodeGen walks an AST and emits Koopa IR text. One CodeGen serves exactly
// one compilation unit; all counters live here.
type CodeGen struct {
	syms      *SymbolTable
	out       strings.Builder
	nextValue int
	nextBlock int
	fn        FunctionSignature // function being emitted
	externs   map[string]bool   // runtime functions referenced so far
}

func newCodeGen(syms *SymbolTable) *CodeGen {
	return &CodeGen{
		syms:    syms,
		externs: make(map[string]bool),
	}
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

// inst writes one indented instruction line.
func (cg *CodeGen) inst(format string, args ...any) {
	cg.line("  "+format, args...)
}

// label opens a new basic block.
func (cg *CodeGen) label(name string) {
	cg.line("")
	cg.line("%s:", name)
}

// newValue allocates the next value id.
func (cg *CodeGen) newValue() Operand {
	id := cg.nextValue
	cg.nextValue++
	return Operand{ID: id}
}

// newBlockID returns the suffix shared by the labels of one if/while.
func (cg *CodeGen) newBlockID() int {
	cg.nextBlock++
	return cg.nextBlock
}

func blockLabel(kind string, id int) string {
	return fmt.Sprintf("%%%s_%d", kind, id)
}

func irType(t Type) string {
	if t == TypeInt {
		return "i32"
	}
	return ""
}

// genFunction emits  fun @name(@p: i32, ...): i32 { ... }
func (cg *CodeGen) genFunction(f *FunctionDecl) error {
	if f.Body == nil {
		return errorf(MalformedNode, f.Name, "function %q has no body", f.Name)
	}

	ret := TypeInt
	if f.ReturnType == VOID {
		ret = TypeVoid
	}
	params := make([]Type, len(f.Params))
	for i := range params {
		params[i] = TypeInt
	}
	// Registered before the body so the function can call itself.
	if err := cg.syms.AddFunction(f.Name, ret, params); err != nil {
		return err
	}
	cg.fn, _ = cg.syms.FindFunction(f.Name)

	cg.syms.EnterScope()
	defer cg.syms.ExitScope()

	headers := make([]string, len(f.Params))
	slots := make([]Symbol, len(f.Params))
	for i, p := range f.Params {
		headers[i] = cg.syms.FreshName(p.Name)
		sym, err := cg.syms.AddVariable(p.Name, false)
		if err != nil {
			return errorf(DuplicateDeclaration, p.Name, "line %d: parameter %q declared twice", p.Line, p.Name)
		}
		slots[i] = sym
	}

	var header strings.Builder
	fmt.Fprintf(&header, "fun @%s(", f.Name)
	for i, h := range headers {
		if i > 0 {
			header.WriteString(", ")
		}
		fmt.Fprintf(&header, "%s: i32", h)
	}
	header.WriteString(")")
	if ret == TypeInt {
		header.WriteString(": i32")
	}

	cg.line("%s {", header.String())
	cg.line("%%entry:")
	for i, sym := range slots {
		cg.inst("%s = alloc i32", sym.Name)
		cg.inst("store %s, %s", headers[i], sym.Name)
	}

	// The body shares the parameter scope.
	flow, err := cg.genStmts(f.Body.Stmts)
	if err != nil {
		return err
	}
	if flow == FellThrough {
		if ret == TypeVoid {
			cg.inst("ret")
		} else {
			cg.inst("ret 0")
		}
	}
	cg.line("}")
	return nil
}

// genGlobalDecl emits global variables; global constants are folded.
func (cg *CodeGen) genGlobalDecl(d *DeclStmt) error {
	for _, def := range d.Defs {
		var init *int32
		if def.Init != nil {
			v, err := cg.evalConst(def.Init)
			if err != nil {
				return errorf(MalformedNode, def.Name, "line %d: initializer of global %q: %v", def.Line, def.Name, err)
			}
			init = &v
		}

		if d.IsConst {
			if init == nil {
				return errorf(MalformedNode, def.Name, "line %d: constant %q has no initializer", def.Line, def.Name)
			}
			if _, err := cg.syms.AddConstant(def.Name, *init); err != nil {
				return err
			}
			continue
		}

		sym, err := cg.syms.AddVariable(def.Name, false)
		if err != nil {
			return err
		}
		if init == nil {
			cg.line("global %s = alloc i32, zeroinit", sym.Name)
		} else {
			cg.line("global %s = alloc i32, %d", sym.Name, *init)
		}
	}
	return nil
}

// genCompUnit emits global declarations and functions in source order.
func (cg *CodeGen) genCompUnit(stmts []Stmt) error {
	for _, sig := range runtimeLibrary {
		if err := cg.syms.addFunction(sig); err != nil {
			return err
		}
		cg.syms.Reserve(sig.Name)
	}
	// Function names are emitted as written, so renamed variables must
	// steer clear of all of them, including ones defined further down.
	for _, s := range stmts {
		if f, ok := s.(*FunctionDecl); ok {
			cg.syms.Reserve(f.Name)
		}
	}

	for _, s := range stmts {
		switch n := s.(type) {
		case *DeclStmt:
			if err := cg.genGlobalDecl(n); err != nil {
				return err
			}
		case *FunctionDecl:
			cg.line("")
			if err := cg.genFunction(n); err != nil {
				return err
			}
		default:
			return errorf(MalformedNode, "", "unexpected top-level node %T", s)
		}
	}
	return nil
}

// declareExterns renders decl lines for the runtime functions that were called.
func (cg *CodeGen) declareExterns() string {
	var sb strings.Builder
	for _, sig := range runtimeLibrary {
		if !cg.externs[sig.Name] {
			continue
		}
		types := make([]string, len(sig.Params))
		for i, p := range sig.Params {
			types[i] = irType(p)
		}
		fmt.Fprintf(&sb, "decl @%s(%s)", sig.Name, strings.Join(types, ", "))
		if sig.Return == TypeInt {
			sb.WriteString(": i32")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Generate lowers a parsed compilation unit to Koopa IR text.
func Generate(stmts []Stmt, syms *SymbolTable) (string, error) {
	cg := newCodeGen(syms)
	if err := cg.genCompUnit(stmts); err != nil {
		return "", err
	}
	decls := cg.declareExterns()
	body := strings.TrimLeft(cg.out.String(), "\n")
	if decls == "" {
		return body, nil
	}
	return decls + "\n" + body, nil
}
