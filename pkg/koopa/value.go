// Package koopa reads Koopa IR text into functions, basic blocks and
// instruction values.
package koopa

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the type of a Koopa value. Only i32 and unit are produced by
// the SysY front end.
type Type int

const (
	Unit Type = iota
	I32
)

func (t Type) String() string {
	if t == I32 {
		return "i32"
	}
	return "unit"
}

// Value is one node of the IR graph: an instruction, a constant operand,
// a function parameter or a global allocation.
type Value struct {
	Name string // "%0", "@x_1"; empty for constants and unnamed instructions
	Kind Kind
	Line int
}

// Kind is the payload of a Value. The set of kinds is closed.
type Kind interface {
	kind()
}

type (
	Integer    struct{ Value int32 }
	ZeroInit   struct{}
	Undef      struct{}
	FuncArgRef struct{ Index int }
	Alloc      struct{}
	// GlobalAlloc's Init is an *Integer, *ZeroInit or *Undef value.
	GlobalAlloc struct{ Init *Value }
	Load        struct{ Src *Value }
	Store       struct{ Value, Dest *Value }
	Binary      struct {
		Op       BinaryOp
		LHS, RHS *Value
	}
	Branch struct {
		Cond        *Value
		True, False *BasicBlock
	}
	Jump struct{ Target *BasicBlock }
	Call struct {
		Callee *Function
		Args   []*Value
	}
	// Return's Value is nil for a bare ret.
	Return struct{ Value *Value }
)

func (*Integer) kind()     {}
func (*ZeroInit) kind()    {}
func (*Undef) kind()       {}
func (*FuncArgRef) kind()  {}
func (*Alloc) kind()       {}
func (*GlobalAlloc) kind() {}
func (*Load) kind()        {}
func (*Store) kind()       {}
func (*Binary) kind()      {}
func (*Branch) kind()      {}
func (*Jump) kind()        {}
func (*Call) kind()        {}
func (*Return) kind()      {}

// BinaryOp is the operator of a Binary instruction.
type BinaryOp int

const (
	OpNotEq BinaryOp = iota
	OpEq
	OpGt
	OpLt
	OpGe
	OpLe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
)

var opNames = [...]string{
	OpNotEq: "ne",
	OpEq:    "eq",
	OpGt:    "gt",
	OpLt:    "lt",
	OpGe:    "ge",
	OpLe:    "le",
	OpAdd:   "add",
	OpSub:   "sub",
	OpMul:   "mul",
	OpDiv:   "div",
	OpMod:   "mod",
	OpAnd:   "and",
	OpOr:    "or",
	OpXor:   "xor",
	OpShl:   "shl",
	OpShr:   "shr",
	OpSar:   "sar",
}

var opByName = func() map[string]BinaryOp {
	m := make(map[string]BinaryOp, len(opNames))
	for op, name := range opNames {
		m[name] = BinaryOp(op)
	}
	return m
}()

func (op BinaryOp) String() string {
	if int(op) >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// HasResult reports whether the value occupies storage at run time.
func (v *Value) HasResult() bool {
	switch k := v.Kind.(type) {
	case *Alloc, *Load, *Binary:
		return true
	case *Call:
		return k.Callee.Ret == I32
	}
	return false
}

// IsTerminator reports whether the value ends a basic block.
func (v *Value) IsTerminator() bool {
	switch v.Kind.(type) {
	case *Branch, *Jump, *Return:
		return true
	}
	return false
}

// operand renders v as it appears inside another instruction.
func (v *Value) operand() string {
	switch k := v.Kind.(type) {
	case *Integer:
		return strconv.Itoa(int(k.Value))
	case *ZeroInit:
		return "zeroinit"
	case *Undef:
		return "undef"
	}
	return v.Name
}

// BasicBlock is a labelled instruction sequence ending in one terminator.
type BasicBlock struct {
	Name  string // "%entry"
	Insts []*Value
}

// Function is a definition, or a declaration when IsDecl is set.
type Function struct {
	Name       string // "@main"
	Params     []*Value
	ParamTypes []Type
	Ret        Type
	Blocks     []*BasicBlock
	IsDecl     bool
}

// Program is a parsed compilation unit.
type Program struct {
	Globals []*Value
	Funcs   []*Function
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, g := range p.Globals {
		ga := g.Kind.(*GlobalAlloc)
		fmt.Fprintf(&sb, "global %s = alloc i32, %s\n", g.Name, ga.Init.operand())
	}
	for _, f := range p.Funcs {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		f.write(&sb)
	}
	return sb.String()
}

func (f *Function) write(sb *strings.Builder) {
	if f.IsDecl {
		types := make([]string, len(f.ParamTypes))
		for i, t := range f.ParamTypes {
			types[i] = t.String()
		}
		fmt.Fprintf(sb, "decl %s(%s)", f.Name, strings.Join(types, ", "))
		if f.Ret == I32 {
			sb.WriteString(": i32")
		}
		sb.WriteString("\n")
		return
	}

	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + ": " + f.ParamTypes[i].String()
	}
	fmt.Fprintf(sb, "fun %s(%s)", f.Name, strings.Join(params, ", "))
	if f.Ret == I32 {
		sb.WriteString(": i32")
	}
	sb.WriteString(" {\n")
	for i, bb := range f.Blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(sb, "%s:\n", bb.Name)
		for _, inst := range bb.Insts {
			fmt.Fprintf(sb, "  %s\n", inst)
		}
	}
	sb.WriteString("}\n")
}

// String renders an instruction as a Koopa statement.
func (v *Value) String() string {
	var rhs string
	switch k := v.Kind.(type) {
	case *Alloc:
		rhs = "alloc i32"
	case *Load:
		rhs = "load " + k.Src.operand()
	case *Store:
		return fmt.Sprintf("store %s, %s", k.Value.operand(), k.Dest.operand())
	case *Binary:
		rhs = fmt.Sprintf("%s %s, %s", k.Op, k.LHS.operand(), k.RHS.operand())
	case *Branch:
		return fmt.Sprintf("br %s, %s, %s", k.Cond.operand(), k.True.Name, k.False.Name)
	case *Jump:
		return "jump " + k.Target.Name
	case *Call:
		args := make([]string, len(k.Args))
		for i, a := range k.Args {
			args[i] = a.operand()
		}
		rhs = fmt.Sprintf("call %s(%s)", k.Callee.Name, strings.Join(args, ", "))
	case *Return:
		if k.Value == nil {
			return "ret"
		}
		return "ret " + k.Value.operand()
	default:
		return v.operand()
	}
	if v.Name == "" {
		return rhs
	}
	return v.Name + " = " + rhs
}
