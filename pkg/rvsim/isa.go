// Package rvsim assembles and interprets the RV32IM subset produced by the
// riscv backend, with the SysY runtime library provided by the host.
package rvsim

import "fmt"

type Opcode uint8

const (
	OpLI Opcode = iota
	OpLA
	OpMV
	OpLW
	OpSW
	OpADDI
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpREM
	OpAND
	OpOR
	OpXOR
	OpSLL
	OpSRL
	OpSRA
	OpSLT
	OpSGT
	OpSEQZ
	OpSNEZ
	OpJ
	OpBNEZ
	OpBEQZ
	OpCALL
	OpRET
)

var opNames = [...]string{
	OpLI: "li", OpLA: "la", OpMV: "mv", OpLW: "lw", OpSW: "sw", OpADDI: "addi",
	OpADD: "add", OpSUB: "sub", OpMUL: "mul", OpDIV: "div", OpREM: "rem",
	OpAND: "and", OpOR: "or", OpXOR: "xor", OpSLL: "sll", OpSRL: "srl", OpSRA: "sra",
	OpSLT: "slt", OpSGT: "sgt", OpSEQZ: "seqz", OpSNEZ: "snez",
	OpJ: "j", OpBNEZ: "bnez", OpBEQZ: "beqz", OpCALL: "call", OpRET: "ret",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", op)
}

// Instructions grouped by operand shape.
var (
	zeroOperandOps = map[string]Opcode{
		"ret": OpRET,
	}
	regImmOps = map[string]Opcode{ // rd, imm
		"li": OpLI,
	}
	regLabelOps = map[string]Opcode{ // rd|rs, label
		"la":   OpLA,
		"bnez": OpBNEZ,
		"beqz": OpBEQZ,
	}
	labelOps = map[string]Opcode{
		"j":    OpJ,
		"call": OpCALL,
	}
	twoRegisterOps = map[string]Opcode{
		"mv":   OpMV,
		"seqz": OpSEQZ,
		"snez": OpSNEZ,
	}
	threeRegisterOps = map[string]Opcode{
		"add": OpADD,
		"sub": OpSUB,
		"mul": OpMUL,
		"div": OpDIV,
		"rem": OpREM,
		"and": OpAND,
		"or":  OpOR,
		"xor": OpXOR,
		"sll": OpSLL,
		"srl": OpSRL,
		"sra": OpSRA,
		"slt": OpSLT,
		"sgt": OpSGT,
	}
	memoryOps = map[string]Opcode{ // reg, off(base)
		"lw": OpLW,
		"sw": OpSW,
	}
	regRegImmOps = map[string]Opcode{
		"addi": OpADDI,
	}
)

// ABI register names.
var registers = func() map[string]uint8 {
	m := map[string]uint8{
		"zero": 0, "ra": 1, "sp": 2, "gp": 3, "tp": 4,
		"t0": 5, "t1": 6, "t2": 7, "s0": 8, "fp": 8, "s1": 9,
		"t3": 28, "t4": 29, "t5": 30, "t6": 31,
	}
	for i := 0; i < 8; i++ {
		m[fmt.Sprintf("a%d", i)] = uint8(10 + i)
	}
	for i := 2; i <= 11; i++ {
		m[fmt.Sprintf("s%d", i)] = uint8(16 + i)
	}
	for i := 0; i < 32; i++ {
		m[fmt.Sprintf("x%d", i)] = uint8(i)
	}
	return m
}()

const (
	regRA = 1
	regSP = 2
	regA0 = 10
)

// Instruction is one decoded machine instruction. Text addresses are
// instruction indices; Target is an index for j/bnez/beqz/call and a
// data address for la.
type Instruction struct {
	Op       Opcode
	Rd       uint8
	Rs1, Rs2 uint8
	Imm      int32
	Target   int
	Host     string // runtime function called through call
	Line     int
}
