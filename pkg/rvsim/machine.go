package rvsim

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	StackSize       = 1 << 20
	DefaultMaxSteps = 50_000_000

	// haltAddr is the return address of the entry function.
	haltAddr = math.MaxUint32
)

var (
	ErrStepLimit   = errors.New("step limit exceeded")
	ErrMemoryFault = errors.New("memory fault")
	ErrNoEntry     = errors.New("entry function not found")
)

// Machine executes an assembled Program.
type Machine struct {
	Regs   [32]uint32
	PC     int
	Memory []byte

	// Input feeds getint and getch; Output receives putint and putch.
	// A nil Output discards, a nil Input reads as end of file.
	Input  io.Reader
	Output io.Writer

	MaxSteps int
	Steps    int

	prog   *Program
	in     *bufio.Reader
	halted bool
}

// NewMachine loads prog's data below a 1 MiB stack.
func NewMachine(prog *Program) *Machine {
	dataEnd := DataBase + len(prog.Data)
	memSize := (dataEnd+15)/16*16 + StackSize
	m := &Machine{
		Memory:   make([]byte, memSize),
		MaxSteps: DefaultMaxSteps,
		prog:     prog,
	}
	copy(m.Memory[DataBase:], prog.Data)
	return m
}

func (m *Machine) outputSink() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return io.Discard
}

func (m *Machine) input() *bufio.Reader {
	if m.in == nil {
		src := m.Input
		if src == nil {
			src = eofReader{}
		}
		m.in = bufio.NewReader(src)
	}
	return m.in
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

func (m *Machine) setReg(r uint8, v uint32) {
	if r != 0 {
		m.Regs[r] = v
	}
}

func (m *Machine) Read32(addr uint32) (uint32, error) {
	if addr%4 != 0 || uint64(addr)+4 > uint64(len(m.Memory)) {
		return 0, fmt.Errorf("%w: load from 0x%08x", ErrMemoryFault, addr)
	}
	return binary.LittleEndian.Uint32(m.Memory[addr:]), nil
}

func (m *Machine) Write32(addr, val uint32) error {
	if addr%4 != 0 || uint64(addr)+4 > uint64(len(m.Memory)) {
		return fmt.Errorf("%w: store to 0x%08x", ErrMemoryFault, addr)
	}
	binary.LittleEndian.PutUint32(m.Memory[addr:], val)
	return nil
}

// hostFuncs implement the SysY runtime library. Arguments arrive in a0;
// results are returned in a0.
var hostFuncs = map[string]func(m *Machine) error{
	"getint": func(m *Machine) error {
		var n int32
		if _, err := fmt.Fscan(m.input(), &n); err != nil {
			n = -1
		}
		m.setReg(regA0, uint32(n))
		return nil
	},
	"getch": func(m *Machine) error {
		b, err := m.input().ReadByte()
		if err != nil {
			m.setReg(regA0, math.MaxUint32)
			return nil
		}
		m.setReg(regA0, uint32(b))
		return nil
	},
	"putint": func(m *Machine) error {
		_, err := fmt.Fprintf(m.outputSink(), "%d", int32(m.Regs[regA0]))
		return err
	},
	"putch": func(m *Machine) error {
		_, err := m.outputSink().Write([]byte{byte(m.Regs[regA0])})
		return err
	},
	"starttime": func(*Machine) error { return nil },
	"stoptime":  func(*Machine) error { return nil },
}

func div(a, b int32) int32 {
	switch {
	case b == 0:
		return -1
	case a == math.MinInt32 && b == -1:
		return a
	}
	return a / b
}

func rem(a, b int32) int32 {
	switch {
	case b == 0:
		return a
	case a == math.MinInt32 && b == -1:
		return 0
	}
	return a % b
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.halted {
		return nil
	}
	if m.PC < 0 || m.PC >= len(m.prog.Text) {
		return fmt.Errorf("%w: pc %d outside text", ErrMemoryFault, m.PC)
	}

	inst := m.prog.Text[m.PC]
	m.PC++
	r := &m.Regs
	rs1, rs2 := r[inst.Rs1], r[inst.Rs2]

	switch inst.Op {
	case OpLI:
		m.setReg(inst.Rd, uint32(inst.Imm))
	case OpLA:
		m.setReg(inst.Rd, uint32(inst.Target))
	case OpMV:
		m.setReg(inst.Rd, rs1)
	case OpLW:
		v, err := m.Read32(rs1 + uint32(inst.Imm))
		if err != nil {
			return fmt.Errorf("line %d: %w", inst.Line, err)
		}
		m.setReg(inst.Rd, v)
	case OpSW:
		if err := m.Write32(rs1+uint32(inst.Imm), rs2); err != nil {
			return fmt.Errorf("line %d: %w", inst.Line, err)
		}
	case OpADDI:
		m.setReg(inst.Rd, rs1+uint32(inst.Imm))
	case OpADD:
		m.setReg(inst.Rd, rs1+rs2)
	case OpSUB:
		m.setReg(inst.Rd, rs1-rs2)
	case OpMUL:
		m.setReg(inst.Rd, rs1*rs2)
	case OpDIV:
		m.setReg(inst.Rd, uint32(div(int32(rs1), int32(rs2))))
	case OpREM:
		m.setReg(inst.Rd, uint32(rem(int32(rs1), int32(rs2))))
	case OpAND:
		m.setReg(inst.Rd, rs1&rs2)
	case OpOR:
		m.setReg(inst.Rd, rs1|rs2)
	case OpXOR:
		m.setReg(inst.Rd, rs1^rs2)
	case OpSLL:
		m.setReg(inst.Rd, rs1<<(rs2&31))
	case OpSRL:
		m.setReg(inst.Rd, rs1>>(rs2&31))
	case OpSRA:
		m.setReg(inst.Rd, uint32(int32(rs1)>>(rs2&31)))
	case OpSLT:
		m.setReg(inst.Rd, b2u(int32(rs1) < int32(rs2)))
	case OpSGT:
		m.setReg(inst.Rd, b2u(int32(rs1) > int32(rs2)))
	case OpSEQZ:
		m.setReg(inst.Rd, b2u(rs1 == 0))
	case OpSNEZ:
		m.setReg(inst.Rd, b2u(rs1 != 0))
	case OpJ:
		m.PC = inst.Target
	case OpBNEZ:
		if rs1 != 0 {
			m.PC = inst.Target
		}
	case OpBEQZ:
		if rs1 == 0 {
			m.PC = inst.Target
		}
	case OpCALL:
		if inst.Host != "" {
			if err := hostFuncs[inst.Host](m); err != nil {
				return fmt.Errorf("%s: %w", inst.Host, err)
			}
			break
		}
		m.setReg(regRA, uint32(m.PC))
		m.PC = inst.Target
	case OpRET:
		if r[regRA] == haltAddr {
			m.halted = true
			break
		}
		m.PC = int(r[regRA])
	default:
		return fmt.Errorf("line %d: unknown opcode %s", inst.Line, inst.Op)
	}
	return nil
}

// Run calls entry with an empty stack and returns its exit status,
// a0 & 0xff as the process would report it.
func (m *Machine) Run(entry string) (int, error) {
	pc, ok := m.prog.Entry(entry)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoEntry, entry)
	}
	m.PC = pc
	m.Regs[regSP] = uint32(len(m.Memory))
	m.Regs[regRA] = haltAddr
	m.halted = false

	for !m.halted {
		if m.MaxSteps > 0 && m.Steps >= m.MaxSteps {
			return 0, fmt.Errorf("%w after %d instructions", ErrStepLimit, m.Steps)
		}
		if err := m.Step(); err != nil {
			return 0, err
		}
		m.Steps++
	}
	return int(m.Regs[regA0] & 0xff), nil
}

// RunSource assembles code and runs main.
func RunSource(code string, input io.Reader, output io.Writer) (int, error) {
	prog, err := Assemble(code)
	if err != nil {
		return 0, err
	}
	m := NewMachine(prog)
	m.Input = input
	m.Output = output
	return m.Run("main")
}
