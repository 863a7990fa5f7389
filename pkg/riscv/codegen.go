package riscv

import (
	"fmt"
	"io"
	"strings"

	"github.com/ExiledOfCode/Sysc-compiler/pkg/koopa"
)

// funcGen prints one function using the Layout measured for it.
type funcGen struct {
	out    *strings.Builder
	fn     *koopa.Function
	layout Layout
	name   string
}

func (g *funcGen) line(format string, args ...any) {
	fmt.Fprintf(g.out, "  "+format+"\n", args...)
}

func symbol(name string) string {
	return strings.TrimLeft(name, "@%")
}

// blockLabel uses the assembler's local-label prefix, which no function
// or global symbol can start with.
func (g *funcGen) blockLabel(bb *koopa.BasicBlock) string {
	return ".L" + g.name + "_" + symbol(bb.Name)
}

func fitsImm12(n int) bool {
	return n >= -2048 && n <= 2047
}

// addSP moves sp by delta.
func (g *funcGen) addSP(delta int) {
	if fitsImm12(delta) {
		g.line("addi sp, sp, %d", delta)
		return
	}
	g.line("li t0, %d", delta)
	g.line("add sp, sp, t0")
}

// memOp prints  op reg, off(sp)  going through t3 when off is too large.
func (g *funcGen) memOp(op, reg string, off int) {
	if fitsImm12(off) {
		g.line("%s %s, %d(sp)", op, reg, off)
		return
	}
	g.line("li t3, %d", off)
	g.line("add t3, sp, t3")
	g.line("%s %s, 0(t3)", op, reg)
}

func (g *funcGen) slot(v *koopa.Value) (int, error) {
	off, ok := g.layout.Slot(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s in %s", ErrMissingStackSlot, describe(v), g.fn.Name)
	}
	return off, nil
}

func describe(v *koopa.Value) string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("%T at line %d", v.Kind, v.Line)
}

// loadOperand puts the value of v in reg.
func (g *funcGen) loadOperand(reg string, v *koopa.Value) error {
	switch k := v.Kind.(type) {
	case *koopa.Integer:
		g.line("li %s, %d", reg, k.Value)
		return nil
	case *koopa.ZeroInit, *koopa.Undef:
		g.line("li %s, 0", reg)
		return nil
	case *koopa.FuncArgRef:
		if k.Index < maxRegArgs {
			break
		}
		// Stack arguments sit at the bottom of the caller's frame.
		g.memOp("lw", reg, g.layout.FrameSize+(k.Index-maxRegArgs)*4)
		return nil
	case *koopa.GlobalAlloc:
		g.line("la %s, %s", reg, symbol(v.Name))
		return nil
	}
	off, err := g.slot(v)
	if err != nil {
		return err
	}
	g.memOp("lw", reg, off)
	return nil
}

// storeResult saves t0 into v's own slot.
func (g *funcGen) storeResult(v *koopa.Value) error {
	off, err := g.slot(v)
	if err != nil {
		return err
	}
	g.memOp("sw", "t0", off)
	return nil
}

var binaryInsts = map[koopa.BinaryOp]string{
	koopa.OpAdd: "add",
	koopa.OpSub: "sub",
	koopa.OpMul: "mul",
	koopa.OpDiv: "div",
	koopa.OpMod: "rem",
	koopa.OpAnd: "and",
	koopa.OpOr:  "or",
	koopa.OpXor: "xor",
	koopa.OpShl: "sll",
	koopa.OpShr: "srl",
	koopa.OpSar: "sra",
	koopa.OpLt:  "slt",
	koopa.OpGt:  "sgt",
}

func (g *funcGen) genBinary(k *koopa.Binary) error {
	if err := g.loadOperand("t0", k.LHS); err != nil {
		return err
	}
	if err := g.loadOperand("t1", k.RHS); err != nil {
		return err
	}
	switch k.Op {
	case koopa.OpEq:
		g.line("xor t0, t0, t1")
		g.line("seqz t0, t0")
	case koopa.OpNotEq:
		g.line("xor t0, t0, t1")
		g.line("snez t0, t0")
	case koopa.OpLe:
		g.line("sgt t0, t0, t1")
		g.line("seqz t0, t0")
	case koopa.OpGe:
		g.line("slt t0, t0, t1")
		g.line("seqz t0, t0")
	default:
		op, ok := binaryInsts[k.Op]
		if !ok {
			return fmt.Errorf("%w: binary %s", ErrUnsupportedInstruction, k.Op)
		}
		g.line("%s t0, t0, t1", op)
	}
	return nil
}

func (g *funcGen) genCall(k *koopa.Call) error {
	for i, arg := range k.Args {
		if i < maxRegArgs {
			if err := g.loadOperand(fmt.Sprintf("a%d", i), arg); err != nil {
				return err
			}
			continue
		}
		if err := g.loadOperand("t0", arg); err != nil {
			return err
		}
		g.memOp("sw", "t0", (i-maxRegArgs)*4)
	}
	g.line("call %s", symbol(k.Callee.Name))
	return nil
}

func (g *funcGen) genInst(inst *koopa.Value) error {
	switch k := inst.Kind.(type) {
	case *koopa.Alloc:
		return nil

	case *koopa.Load:
		if _, ok := k.Src.Kind.(*koopa.GlobalAlloc); ok {
			g.line("la t0, %s", symbol(k.Src.Name))
			g.line("lw t0, 0(t0)")
		} else {
			off, err := g.slot(k.Src)
			if err != nil {
				return err
			}
			g.memOp("lw", "t0", off)
		}
		return g.storeResult(inst)

	case *koopa.Store:
		if err := g.loadOperand("t0", k.Value); err != nil {
			return err
		}
		if _, ok := k.Dest.Kind.(*koopa.GlobalAlloc); ok {
			g.line("la t1, %s", symbol(k.Dest.Name))
			g.line("sw t0, 0(t1)")
			return nil
		}
		off, err := g.slot(k.Dest)
		if err != nil {
			return err
		}
		g.memOp("sw", "t0", off)
		return nil

	case *koopa.Binary:
		if err := g.genBinary(k); err != nil {
			return err
		}
		return g.storeResult(inst)

	case *koopa.Branch:
		if err := g.loadOperand("t0", k.Cond); err != nil {
			return err
		}
		g.line("bnez t0, %s", g.blockLabel(k.True))
		g.line("j %s", g.blockLabel(k.False))
		return nil

	case *koopa.Jump:
		g.line("j %s", g.blockLabel(k.Target))
		return nil

	case *koopa.Call:
		if err := g.genCall(k); err != nil {
			return err
		}
		if !inst.HasResult() {
			return nil
		}
		off, err := g.slot(inst)
		if err != nil {
			return err
		}
		g.memOp("sw", "a0", off)
		return nil

	case *koopa.Return:
		if k.Value != nil {
			if err := g.loadOperand("a0", k.Value); err != nil {
				return err
			}
		}
		g.epilogue()
		g.line("ret")
		return nil
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedInstruction, inst.Kind)
}

func (g *funcGen) prologue() {
	if g.layout.FrameSize == 0 {
		return
	}
	g.addSP(-g.layout.FrameSize)
	if g.layout.SaveRA {
		g.memOp("sw", "ra", g.layout.RAOffset())
	}
	for i, p := range g.fn.Params {
		if i == maxRegArgs {
			break
		}
		if off, ok := g.layout.Slot(p); ok {
			g.memOp("sw", fmt.Sprintf("a%d", i), off)
		}
	}
}

func (g *funcGen) epilogue() {
	if g.layout.FrameSize == 0 {
		return
	}
	if g.layout.SaveRA {
		g.memOp("lw", "ra", g.layout.RAOffset())
	}
	g.addSP(g.layout.FrameSize)
}

// branchTargets collects the blocks some instruction transfers to.
func branchTargets(fn *koopa.Function) map[*koopa.BasicBlock]bool {
	targets := make(map[*koopa.BasicBlock]bool)
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			switch k := inst.Kind.(type) {
			case *koopa.Branch:
				targets[k.True] = true
				targets[k.False] = true
			case *koopa.Jump:
				targets[k.Target] = true
			}
		}
	}
	return targets
}

func genFunction(out *strings.Builder, fn *koopa.Function) error {
	layout, err := Measure(fn)
	if err != nil {
		return err
	}
	g := &funcGen{out: out, fn: fn, layout: layout, name: symbol(fn.Name)}

	out.WriteString("\n")
	g.line(".text")
	g.line(".globl %s", g.name)
	fmt.Fprintf(out, "%s:\n", g.name)
	g.prologue()

	targets := branchTargets(fn)
	for i, bb := range fn.Blocks {
		if i > 0 || targets[bb] {
			fmt.Fprintf(out, "\n%s:\n", g.blockLabel(bb))
		}
		for _, inst := range bb.Insts {
			if err := g.genInst(inst); err != nil {
				return fmt.Errorf("%s: %w", fn.Name, err)
			}
		}
	}
	return nil
}

func genData(out *strings.Builder, globals []*koopa.Value) {
	if len(globals) == 0 {
		return
	}
	fmt.Fprintf(out, "  .data\n")
	for _, gv := range globals {
		name := symbol(gv.Name)
		fmt.Fprintf(out, "  .globl %s\n%s:\n", name, name)
		ga := gv.Kind.(*koopa.GlobalAlloc)
		if n, ok := ga.Init.Kind.(*koopa.Integer); ok {
			fmt.Fprintf(out, "  .word %d\n", n.Value)
		} else {
			fmt.Fprintf(out, "  .zero 4\n")
		}
	}
}

// Generate writes the assembly for prog to w. Nothing is written unless
// every function lowers successfully.
func Generate(prog *koopa.Program, w io.Writer) error {
	var out strings.Builder
	genData(&out, prog.Globals)
	for _, fn := range prog.Funcs {
		if fn.IsDecl {
			continue
		}
		if err := genFunction(&out, fn); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, strings.TrimLeft(out.String(), "\n"))
	return err
}
