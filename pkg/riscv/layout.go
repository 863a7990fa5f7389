// Package riscv lowers structured Koopa IR to RV32IM assembly text.
package riscv

import (
	"errors"
	"fmt"

	"github.com/ExiledOfCode/Sysc-compiler/pkg/koopa"
)

var (
	ErrUnsupportedInstruction = errors.New("unsupported instruction")
	ErrMissingStackSlot       = errors.New("missing stack slot")
)

// maxRegArgs is the number of arguments passed in a0..a7.
const maxRegArgs = 8

// Layout is the stack frame of one function, computed before any code
// is printed.
//
//	sp+FrameSize-4   saved ra (when SaveRA)
//	...              one 4-byte slot per value-producing instruction
//	...              one 4-byte slot per argument passed in a0..a7
//	sp+ArgArea
//	...              outgoing arguments 9 and up
//	sp+0
//
// Register arguments are spilled by the prologue, so reading one stays
// correct after a0..a7 have been reused for a call.
type Layout struct {
	FrameSize int
	ArgArea   int
	SaveRA    bool
	slots     map[*koopa.Value]int
}

// Slot returns the sp-relative offset of v's storage.
func (l Layout) Slot(v *koopa.Value) (int, bool) {
	off, ok := l.slots[v]
	return off, ok
}

// RAOffset is where ra is saved; only meaningful when SaveRA.
func (l Layout) RAOffset() int {
	return l.FrameSize - 4
}

// Slots returns the number of 4-byte value slots.
func (l Layout) Slots() int {
	return len(l.slots)
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// Measure assigns a slot to every register argument and every
// value-producing instruction of fn and sizes its frame. A non-empty
// frame always reserves its top word for ra.
func Measure(fn *koopa.Function) (Layout, error) {
	calls := false
	maxArgs := 0
	var results []*koopa.Value
	for i, p := range fn.Params {
		if i < maxRegArgs {
			results = append(results, p)
		}
	}

	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			switch k := inst.Kind.(type) {
			case *koopa.Alloc, *koopa.Load, *koopa.Store, *koopa.Binary,
				*koopa.Branch, *koopa.Jump, *koopa.Return:
			case *koopa.Call:
				calls = true
				maxArgs = max(maxArgs, len(k.Args))
			default:
				return Layout{}, fmt.Errorf("%w: %T in %s", ErrUnsupportedInstruction, inst.Kind, fn.Name)
			}
			if inst.HasResult() {
				results = append(results, inst)
			}
		}
	}

	l := Layout{
		ArgArea: max(0, maxArgs-maxRegArgs) * 4,
		slots:   make(map[*koopa.Value]int, len(results)),
	}
	for i, v := range results {
		l.slots[v] = l.ArgArea + i*4
	}
	size := l.ArgArea + len(results)*4
	if calls || size > 0 {
		l.SaveRA = true
		size += 4
	}
	l.FrameSize = alignUp(size, 16)
	return l, nil
}
