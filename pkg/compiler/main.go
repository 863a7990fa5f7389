// Package compiler provides a SysY lexer, parser, symbol table and Koopa IR
// emitter.
//
// Pipeline: SysY source → Lex → Parse → Generate → Koopa IR text
// → koopa.Parse → riscv.Generate → RV32IM assembly text
package compiler
