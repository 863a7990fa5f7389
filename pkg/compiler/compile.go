package compiler

import (
	"fmt"
	"strings"

	"github.com/ExiledOfCode/Sysc-compiler/pkg/koopa"
	"github.com/ExiledOfCode/Sysc-compiler/pkg/riscv"
)

// CompileIR runs the front end and the IR emitter over src.
func CompileIR(src string) (string, error) {
	tokens, err := Lex(src)
	if err != nil {
		return "", fmt.Errorf("lex: %w", err)
	}

	stmts, err := Parse(tokens, src)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}

	syms := NewSymbolTable()
	ir, err := Generate(stmts, syms)
	if err != nil {
		return "", fmt.Errorf("ir: %w", err)
	}
	return ir, nil
}

// CompileRISCV compiles src to Koopa IR, re-reads the IR into its
// structured form and lowers it to RV32IM assembly.
func CompileRISCV(src string) (string, error) {
	ir, err := CompileIR(src)
	if err != nil {
		return "", err
	}

	prog, err := koopa.Parse(ir)
	if err != nil {
		return "", fmt.Errorf("koopa: %w", err)
	}

	var sb strings.Builder
	if err := riscv.Generate(prog, &sb); err != nil {
		return "", fmt.Errorf("riscv: %w", err)
	}
	return sb.String(), nil
}
