package riscv

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/ExiledOfCode/Sysc-compiler/pkg/koopa"
	"github.com/ExiledOfCode/Sysc-compiler/pkg/rvsim"
)

func parseIR(t *testing.T, src string) *koopa.Program {
	t.Helper()
	prog, err := koopa.Parse(src)
	be.Err(t, err, nil)
	return prog
}

func lower(t *testing.T, src string) string {
	t.Helper()
	var buf bytes.Buffer
	be.Err(t, Generate(parseIR(t, src), &buf), nil)
	return buf.String()
}

// run lowers src, executes main and returns its exit status and output.
func run(t *testing.T, src, input string) (int, string) {
	t.Helper()
	asm := lower(t, src)
	var out bytes.Buffer
	code, err := rvsim.RunSource(asm, strings.NewReader(input), &out)
	be.Err(t, err, nil)
	return code, out.String()
}

func TestGenerateArithmetic(t *testing.T) {
	asm := lower(t, `fun @main(): i32 {
%entry:
  %0 = mul 2, 3
  %1 = add 1, %0
  ret %1
}
`)
	want := `  .text
  .globl main
main:
  addi sp, sp, -16
  sw ra, 12(sp)
  li t0, 2
  li t1, 3
  mul t0, t0, t1
  sw t0, 0(sp)
  li t0, 1
  lw t1, 0(sp)
  add t0, t0, t1
  sw t0, 4(sp)
  lw a0, 4(sp)
  lw ra, 12(sp)
  addi sp, sp, 16
  ret
`
	be.Equal(t, asm, want)
}

func TestGenerateEmptyFrame(t *testing.T) {
	asm := lower(t, "fun @main(): i32 {\n%entry:\n  ret 0\n}\n")
	be.Equal(t, asm, "  .text\n  .globl main\nmain:\n  li a0, 0\n  ret\n")
}

func TestGenerateGlobals(t *testing.T) {
	asm := lower(t, `global @g_1 = alloc i32, 5
global @h_2 = alloc i32, zeroinit

fun @main(): i32 {
%entry:
  %0 = load @g_1
  store %0, @h_2
  ret %0
}
`)
	be.True(t, strings.HasPrefix(asm, "  .data\n  .globl g_1\ng_1:\n  .word 5\n  .globl h_2\nh_2:\n  .zero 4\n"))
	be.True(t, strings.Contains(asm, "  la t0, g_1\n  lw t0, 0(t0)\n"))
	be.True(t, strings.Contains(asm, "  la t1, h_2\n  sw t0, 0(t1)\n"))

	code, _ := run(t, `global @g_1 = alloc i32, 5
global @h_2 = alloc i32, zeroinit

fun @main(): i32 {
%entry:
  %0 = load @g_1
  %1 = load @h_2
  %2 = add %0, %1
  store %2, @h_2
  %3 = load @h_2
  ret %3
}
`, "")
	be.Equal(t, code, 5)
}

func TestGenerateBlocks(t *testing.T) {
	src := `fun @main(): i32 {
%entry:
  br 1, %then_1, %end_1

%then_1:
  ret 4

%end_1:
  ret 2
}
`
	asm := lower(t, src)
	// The entry block is never a jump target, so it gets no label.
	be.True(t, !strings.Contains(asm, "main_entry"))
	be.True(t, strings.Contains(asm, "  bnez t0, .Lmain_then_1\n  j .Lmain_end_1\n"))
	be.True(t, strings.Contains(asm, "\n.Lmain_then_1:\n"))
	be.True(t, strings.Contains(asm, "\n.Lmain_end_1:\n"))

	code, _ := run(t, src, "")
	be.Equal(t, code, 4)

	asm = lower(t, "fun @f() {\n%entry:\n  jump %entry\n}\n")
	be.True(t, strings.Contains(asm, "\n.Lf_entry:\n  j .Lf_entry\n"))
}

func TestGenerateLabelsAvoidSymbols(t *testing.T) {
	// A function and a global spelled like another function's block labels.
	src := `global @f_end_1 = alloc i32, 2

fun @f(): i32 {
%entry:
  br 1, %then_1, %end_1

%then_1:
  ret 1

%end_1:
  ret 2
}

fun @f_then_1(): i32 {
%entry:
  ret 5
}

fun @main(): i32 {
%entry:
  %0 = call @f()
  %1 = call @f_then_1()
  %2 = load @f_end_1
  %3 = add %0, %1
  %4 = add %3, %2
  ret %4
}
`
	asm := lower(t, src)
	be.True(t, strings.Contains(asm, "\nf_then_1:\n"))
	be.True(t, strings.Contains(asm, "\n.Lf_then_1:\n"))

	code, _ := run(t, src, "")
	be.Equal(t, code, 8)
}

func TestGenerateArgumentsSurviveCalls(t *testing.T) {
	// Arguments are read straight from the parameters after a call and in
	// swapped order, which clobbers a0 and a1 unless they were spilled.
	src := `decl @putint(i32)

fun @diff(@x: i32, @y: i32): i32 {
%entry:
  %0 = sub @x, @y
  ret %0
}

fun @swap(@a: i32, @b: i32): i32 {
%entry:
  call @putint(@b)
  %1 = call @diff(@b, @a)
  ret %1
}

fun @main(): i32 {
%entry:
  %2 = call @swap(3, 10)
  ret %2
}
`
	asm := lower(t, src)
	be.True(t, !strings.Contains(asm, "mv a0, a1"))

	code, out := run(t, src, "")
	be.Equal(t, code, 7)
	be.Equal(t, out, "10")
}

func TestGenerateComparisons(t *testing.T) {
	tests := []struct {
		op   string
		a, b int
		want int
	}{
		{"eq", 3, 3, 1}, {"eq", 3, 4, 0},
		{"ne", 3, 4, 1}, {"ne", 3, 3, 0},
		{"lt", -1, 0, 1}, {"lt", 0, 0, 0},
		{"gt", 5, -5, 1}, {"gt", -5, 5, 0},
		{"le", 2, 2, 1}, {"le", 3, 2, 0},
		{"ge", 2, 2, 1}, {"ge", 1, 2, 0},
		{"div", -7, 2, 253}, // -3 & 0xff
		{"mod", -7, 2, 255}, // -1 & 0xff
		{"and", 6, 3, 2},
		{"or", 6, 3, 7},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%s(%d,%d)", tt.op, tt.a, tt.b)
		t.Run(name, func(t *testing.T) {
			src := fmt.Sprintf("fun @main(): i32 {\n%%entry:\n  %%0 = %s %d, %d\n  ret %%0\n}\n", tt.op, tt.a, tt.b)
			code, _ := run(t, src, "")
			be.Equal(t, code, tt.want)
		})
	}
}

func TestGenerateCalls(t *testing.T) {
	src := `decl @getint(): i32
decl @putint(i32)

fun @twice(@x_1: i32): i32 {
%entry:
  @x_2 = alloc i32
  store @x_1, @x_2
  %0 = load @x_2
  %1 = mul %0, 2
  ret %1
}

fun @main(): i32 {
%entry:
  %2 = call @getint()
  %3 = call @twice(%2)
  call @putint(%3)
  ret %3
}
`
	asm := lower(t, src)
	be.True(t, !strings.Contains(asm, "getint:"))
	be.True(t, strings.Contains(asm, "  sw ra, 12(sp)\n"))
	be.True(t, strings.Contains(asm, "  lw ra, 12(sp)\n"))
	be.True(t, strings.Contains(asm, "  call twice\n  sw a0, 4(sp)\n"))

	code, out := run(t, src, "21")
	be.Equal(t, code, 42)
	be.Equal(t, out, "42")
}

func TestGenerateStackArguments(t *testing.T) {
	var params, stores, sum strings.Builder
	for i := range 10 {
		if i > 0 {
			params.WriteString(", ")
		}
		fmt.Fprintf(&params, "@p%d: i32", i)
		fmt.Fprintf(&stores, "  @s%d = alloc i32\n  store @p%d, @s%d\n", i, i, i)
	}
	// acc = p0*1 + p1*2 + ... + p9*10
	fmt.Fprintf(&sum, "  %%acc0 = load @s0\n")
	for i := 1; i < 10; i++ {
		fmt.Fprintf(&sum, "  %%v%d = load @s%d\n  %%m%d = mul %%v%d, %d\n  %%acc%d = add %%acc%d, %%m%d\n",
			i, i, i, i, i+1, i, i-1, i)
	}
	src := fmt.Sprintf(`fun @f(%s): i32 {
%%entry:
%s%s  ret %%acc9
}

fun @main(): i32 {
%%entry:
  %%r = call @f(1, 1, 1, 1, 1, 1, 1, 1, 1, 3)
  ret %%r
}
`, params.String(), stores.String(), sum.String())

	prog := parseIR(t, src)
	mainLayout, err := Measure(prog.Funcs[1])
	be.Err(t, err, nil)
	be.Equal(t, mainLayout.ArgArea, 8)
	be.True(t, mainLayout.SaveRA)

	asm := lower(t, src)
	be.True(t, strings.Contains(asm, "  li t0, 3\n  sw t0, 4(sp)\n"))

	// 1 + 2+3+...+9 + 3*10
	code, _ := run(t, src, "")
	be.Equal(t, code, 1+2+3+4+5+6+7+8+9+30)
}

func TestGenerateLargeFrame(t *testing.T) {
	var body strings.Builder
	body.WriteString("fun @main(): i32 {\n%entry:\n  %0 = add 0, 1\n")
	const n = 700
	for i := 1; i < n; i++ {
		fmt.Fprintf(&body, "  %%%d = add %%%d, 1\n", i, i-1)
	}
	fmt.Fprintf(&body, "  ret %%%d\n}\n", n-1)
	src := body.String()

	layout, err := Measure(parseIR(t, src).Funcs[0])
	be.Err(t, err, nil)
	be.Equal(t, layout.FrameSize, 2816)

	asm := lower(t, src)
	be.True(t, strings.Contains(asm, "  li t0, -2816\n  add sp, sp, t0\n"))
	be.True(t, strings.Contains(asm, "  li t3, 2812\n  add t3, sp, t3\n  sw ra, 0(t3)\n"))
	be.True(t, strings.Contains(asm, "  li t3, 2048\n  add t3, sp, t3\n  sw t0, 0(t3)\n"))

	code, _ := run(t, src, "")
	be.Equal(t, code, n&0xff)
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		frame  int
		slots  int
		saveRA bool
	}{
		{"Empty", "fun @f() {\n%entry:\n  ret\n}", 0, 0, false},
		{"OneSlot", "fun @f(): i32 {\n%entry:\n  %0 = add 1, 2\n  ret %0\n}", 16, 1, true},
		{"ThreeSlots", "fun @f() {\n%entry:\n  @a = alloc i32\n  @b = alloc i32\n  @c = alloc i32\n  ret\n}", 16, 3, true},
		{"FourSlots", "fun @f() {\n%entry:\n  @a = alloc i32\n  @b = alloc i32\n  @c = alloc i32\n  @d = alloc i32\n  ret\n}", 32, 4, true},
		{"CallOnly", "fun @g() {\n%entry:\n  ret\n}\nfun @f() {\n%entry:\n  call @g()\n  ret\n}", 16, 0, true},
		{"StoresTakeNoSlot", "fun @f() {\n%entry:\n  @a = alloc i32\n  store 1, @a\n  store 2, @a\n  ret\n}", 16, 1, true},
		{"RegisterArgs", "fun @f(@a: i32, @b: i32) {\n%entry:\n  ret\n}", 16, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := parseIR(t, tt.src)
			l, err := Measure(prog.Funcs[len(prog.Funcs)-1])
			be.Err(t, err, nil)
			be.Equal(t, l.FrameSize, tt.frame)
			be.Equal(t, l.Slots(), tt.slots)
			be.Equal(t, l.SaveRA, tt.saveRA)
			be.Equal(t, l.FrameSize%16, 0)
		})
	}
}

func TestMeasureSlotsAreDistinct(t *testing.T) {
	prog := parseIR(t, `fun @f(): i32 {
%entry:
  @a = alloc i32
  %0 = add 1, 2
  store %0, @a
  %1 = load @a
  ret %1
}
`)
	fn := prog.Funcs[0]
	l, err := Measure(fn)
	be.Err(t, err, nil)

	seen := map[int]bool{}
	for _, inst := range fn.Blocks[0].Insts {
		off, ok := l.Slot(inst)
		be.Equal(t, ok, inst.HasResult())
		if !ok {
			continue
		}
		be.True(t, !seen[off])
		be.True(t, off+4 <= l.FrameSize)
		seen[off] = true
	}
	be.Equal(t, len(seen), 3)
}

func TestGenerateErrors(t *testing.T) {
	t.Run("Unsupported", func(t *testing.T) {
		bad := &koopa.Function{Name: "@main", Ret: koopa.I32, Blocks: []*koopa.BasicBlock{{
			Name:  "%entry",
			Insts: []*koopa.Value{{Kind: &koopa.Integer{Value: 1}}},
		}}}
		var buf bytes.Buffer
		err := Generate(&koopa.Program{Funcs: []*koopa.Function{bad}}, &buf)
		be.Err(t, err, ErrUnsupportedInstruction)
		be.Equal(t, buf.Len(), 0)
	})

	t.Run("MissingStackSlot", func(t *testing.T) {
		stray := &koopa.Value{Name: "@stray", Kind: &koopa.Alloc{}}
		load := &koopa.Value{Name: "%0", Kind: &koopa.Load{Src: stray}}
		ret := &koopa.Value{Kind: &koopa.Return{Value: load}}
		fn := &koopa.Function{Name: "@main", Ret: koopa.I32, Blocks: []*koopa.BasicBlock{{
			Name:  "%entry",
			Insts: []*koopa.Value{load, ret},
		}}}
		ok := &koopa.Function{Name: "@ok", Blocks: []*koopa.BasicBlock{{
			Name:  "%entry",
			Insts: []*koopa.Value{{Kind: &koopa.Return{}}},
		}}}

		var buf bytes.Buffer
		err := Generate(&koopa.Program{Funcs: []*koopa.Function{ok, fn}}, &buf)
		be.Err(t, err, ErrMissingStackSlot)
		be.Err(t, err, "@stray")
		be.Equal(t, buf.Len(), 0)
	})
}
