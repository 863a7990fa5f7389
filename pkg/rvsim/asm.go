package rvsim

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DataBase is the address of the first byte of .data.
const DataBase = 0x1000

// Program is an assembled module.
type Program struct {
	Text []Instruction
	Data []byte

	funcs map[string]int    // text label -> instruction index
	data  map[string]uint32 // data label -> address
}

// Entry returns the instruction index of a text label.
func (p *Program) Entry(label string) (int, bool) {
	i, ok := p.funcs[label]
	return i, ok
}

type section int

const (
	sectionText section = iota
	sectionData
)

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

type Assembler struct {
	text map[string]int
	data map[string]uint32
}

func NewAssembler() *Assembler {
	return &Assembler{
		text: make(map[string]int),
		data: make(map[string]uint32),
	}
}

func Assemble(code string) (*Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*Program, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, err
	}

	return a.pass2(lines)
}

// pass1 assigns an address to every label.
func (a *Assembler) pass1(lines []string) error {
	sec := sectionText
	var pc int
	var dataSize uint32

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if _, exists := a.text[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			if _, exists := a.data[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			if sec == sectionText {
				a.text[lbl] = pc
			} else {
				a.data[lbl] = DataBase + dataSize
			}
		}

		switch p.mnemonic {
		case "":
			continue
		case ".text":
			sec = sectionText
			continue
		case ".data":
			sec = sectionData
			continue
		case ".globl", ".global":
			continue
		case ".word", ".zero":
			if sec != sectionData {
				return fmt.Errorf("%s outside .data on line %d", p.mnemonic, lineNo)
			}
			n, err := dataLength(p)
			if err != nil {
				return err
			}
			dataSize += n
			continue
		}

		if sec != sectionText {
			return fmt.Errorf("instruction in .data on line %d: %s", lineNo, p.mnemonic)
		}
		if !isMnemonic(p.mnemonic) {
			return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
		}
		pc++
	}
	return nil
}

func dataLength(p parsedLine) (uint32, error) {
	if len(p.operands) != 1 {
		return 0, fmt.Errorf("%s expects exactly one operand on line %d", p.mnemonic, p.lineNo)
	}
	if p.mnemonic == ".word" {
		return 4, nil
	}
	n, err := strconv.ParseUint(p.operands[0], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid .zero size on line %d: %s", p.lineNo, p.operands[0])
	}
	return uint32(n), nil
}

func (a *Assembler) pass2(lines []string) (*Program, error) {
	prog := &Program{funcs: a.text, data: a.data}

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}

		mnemonic := p.mnemonic
		ops := p.operands

		switch mnemonic {
		case "", ".text", ".data", ".globl", ".global":
			continue
		case ".word":
			val, err := parseImmediate(ops[0], lineNo)
			if err != nil {
				return nil, err
			}
			prog.Data = binary.LittleEndian.AppendUint32(prog.Data, uint32(val))
			continue
		case ".zero":
			n, _ := dataLength(p)
			prog.Data = append(prog.Data, make([]byte, n)...)
			continue
		}

		inst, err := a.encode(p)
		if err != nil {
			return nil, err
		}
		prog.Text = append(prog.Text, inst)
	}
	return prog, nil
}

func expectOperands(p parsedLine, n int) error {
	if len(p.operands) != n {
		return fmt.Errorf("%s expects %d operands on line %d", p.mnemonic, n, p.lineNo)
	}
	return nil
}

func (a *Assembler) encode(p parsedLine) (Instruction, error) {
	inst := Instruction{Line: p.lineNo}
	ops := p.operands
	var err error

	if op, ok := zeroOperandOps[p.mnemonic]; ok {
		inst.Op = op
		return inst, expectOperands(p, 0)
	}

	if op, ok := regImmOps[p.mnemonic]; ok {
		inst.Op = op
		if err := expectOperands(p, 2); err != nil {
			return inst, err
		}
		if inst.Rd, err = parseRegister(ops[0], p.lineNo); err != nil {
			return inst, err
		}
		inst.Imm, err = parseImmediate(ops[1], p.lineNo)
		return inst, err
	}

	if op, ok := regLabelOps[p.mnemonic]; ok {
		inst.Op = op
		if err := expectOperands(p, 2); err != nil {
			return inst, err
		}
		reg, err := parseRegister(ops[0], p.lineNo)
		if err != nil {
			return inst, err
		}
		if op == OpLA {
			inst.Rd = reg
			addr, ok := a.data[ops[1]]
			if !ok {
				return inst, fmt.Errorf("undefined data label '%s' on line %d", ops[1], p.lineNo)
			}
			inst.Target = int(addr)
			return inst, nil
		}
		inst.Rs1 = reg
		inst.Target, err = a.textLabel(ops[1], p.lineNo)
		return inst, err
	}

	if op, ok := labelOps[p.mnemonic]; ok {
		inst.Op = op
		if err := expectOperands(p, 1); err != nil {
			return inst, err
		}
		if op == OpCALL {
			if _, defined := a.text[ops[0]]; !defined {
				if _, host := hostFuncs[ops[0]]; !host {
					return inst, fmt.Errorf("undefined function '%s' on line %d", ops[0], p.lineNo)
				}
				inst.Host = ops[0]
				return inst, nil
			}
		}
		inst.Target, err = a.textLabel(ops[0], p.lineNo)
		return inst, err
	}

	if op, ok := twoRegisterOps[p.mnemonic]; ok {
		inst.Op = op
		if err := expectOperands(p, 2); err != nil {
			return inst, err
		}
		if inst.Rd, err = parseRegister(ops[0], p.lineNo); err != nil {
			return inst, err
		}
		inst.Rs1, err = parseRegister(ops[1], p.lineNo)
		return inst, err
	}

	if op, ok := threeRegisterOps[p.mnemonic]; ok {
		inst.Op = op
		if err := expectOperands(p, 3); err != nil {
			return inst, err
		}
		if inst.Rd, err = parseRegister(ops[0], p.lineNo); err != nil {
			return inst, err
		}
		if inst.Rs1, err = parseRegister(ops[1], p.lineNo); err != nil {
			return inst, err
		}
		inst.Rs2, err = parseRegister(ops[2], p.lineNo)
		return inst, err
	}

	if op, ok := regRegImmOps[p.mnemonic]; ok {
		inst.Op = op
		if err := expectOperands(p, 3); err != nil {
			return inst, err
		}
		if inst.Rd, err = parseRegister(ops[0], p.lineNo); err != nil {
			return inst, err
		}
		if inst.Rs1, err = parseRegister(ops[1], p.lineNo); err != nil {
			return inst, err
		}
		if inst.Imm, err = parseImmediate(ops[2], p.lineNo); err != nil {
			return inst, err
		}
		if inst.Imm < -2048 || inst.Imm > 2047 {
			return inst, fmt.Errorf("immediate out of range on line %d: %d", p.lineNo, inst.Imm)
		}
		return inst, nil
	}

	if op, ok := memoryOps[p.mnemonic]; ok {
		inst.Op = op
		if err := expectOperands(p, 2); err != nil {
			return inst, err
		}
		reg, err := parseRegister(ops[0], p.lineNo)
		if err != nil {
			return inst, err
		}
		off, base, err := parseMemOperand(ops[1], p.lineNo)
		if err != nil {
			return inst, err
		}
		inst.Imm, inst.Rs1 = off, base
		if op == OpLW {
			inst.Rd = reg
		} else {
			inst.Rs2 = reg
		}
		return inst, nil
	}

	return inst, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
}

func (a *Assembler) textLabel(label string, lineNo int) (int, error) {
	if i, ok := a.text[label]; ok {
		return i, nil
	}
	return 0, fmt.Errorf("undefined label '%s' on line %d", label, lineNo)
}

func isMnemonic(m string) bool {
	for _, table := range []map[string]Opcode{
		zeroOperandOps, regImmOps, regLabelOps, labelOps,
		twoRegisterOps, threeRegisterOps, memoryOps, regRegImmOps,
	} {
		if _, ok := table[m]; ok {
			return true
		}
	}
	return false
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}
		label := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(label, " \t") {
			break
		}
		if !isIdentifier(label) {
			return p, fmt.Errorf("invalid label '%s' on line %d", label, lineNo)
		}
		p.labels = append(p.labels, label)
		line = strings.TrimSpace(line[colon+1:])
	}
	if line == "" {
		return p, nil
	}

	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	p.mnemonic = strings.ToLower(fields[0])
	p.operands = fields[1:]
	return p, nil
}

func stripComments(line string) string {
	if cut := strings.IndexByte(line, '#'); cut >= 0 {
		return line[:cut]
	}
	return line
}

func parseRegister(token string, lineNo int) (uint8, error) {
	if r, ok := registers[token]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

func parseImmediate(token string, lineNo int) (int32, error) {
	v, err := strconv.ParseInt(token, 0, 64)
	if err != nil || v < -1<<31 || v > 1<<32-1 {
		return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
	}
	return int32(v), nil
}

// parseMemOperand splits  off(reg) .
func parseMemOperand(token string, lineNo int) (int32, uint8, error) {
	open := strings.IndexByte(token, '(')
	if open < 0 || !strings.HasSuffix(token, ")") {
		return 0, 0, fmt.Errorf("invalid memory operand '%s' on line %d", token, lineNo)
	}
	var off int32
	if open > 0 {
		var err error
		if off, err = parseImmediate(token[:open], lineNo); err != nil {
			return 0, 0, err
		}
		if off < -2048 || off > 2047 {
			return 0, 0, fmt.Errorf("offset out of range on line %d: %d", lineNo, off)
		}
	}
	base, err := parseRegister(token[open+1:len(token)-1], lineNo)
	return off, base, err
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' && r != '.' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return false
		}
	}
	return true
}
