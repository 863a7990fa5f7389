// Package driver implements the command-line front of the compiler:
// argument handling, file I/O and the wiring of the pipeline stages.
package driver

import (
	"errors"
	"fmt"
	"io"
)

// Mode selects what the compiler writes to the output file.
type Mode string

const (
	ModeKoopa Mode = "-koopa"
	ModeRISCV Mode = "-riscv"
	ModeRun   Mode = "-run"
)

const Usage = "usage: compiler -koopa|-riscv|-run <input> -o <output>"

var ErrUsage = errors.New("bad command line")

// Options is the parsed command line.
type Options struct {
	Mode   Mode
	Input  string
	Output string

	// Stdin feeds getint/getch in ModeRun.
	Stdin io.Reader
}

// ParseArgs reads  <mode> <input> -o <output>  from args, which excludes
// the program name.
func ParseArgs(args []string) (Options, error) {
	var opts Options
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case string(ModeKoopa), string(ModeRISCV), string(ModeRun):
			if opts.Mode != "" {
				return Options{}, fmt.Errorf("%w: more than one mode given", ErrUsage)
			}
			opts.Mode = Mode(arg)
		case "-o":
			if i+1 >= len(args) {
				return Options{}, fmt.Errorf("%w: -o needs a file name", ErrUsage)
			}
			if opts.Output != "" {
				return Options{}, fmt.Errorf("%w: more than one output given", ErrUsage)
			}
			i++
			opts.Output = args[i]
		default:
			if len(arg) > 1 && arg[0] == '-' {
				return Options{}, fmt.Errorf("%w: unknown flag %s", ErrUsage, arg)
			}
			if opts.Input != "" {
				return Options{}, fmt.Errorf("%w: more than one input given", ErrUsage)
			}
			opts.Input = arg
		}
	}

	switch {
	case opts.Mode == "":
		return Options{}, fmt.Errorf("%w: missing mode", ErrUsage)
	case opts.Input == "":
		return Options{}, fmt.Errorf("%w: missing input file", ErrUsage)
	case opts.Output == "":
		return Options{}, fmt.Errorf("%w: missing -o output file", ErrUsage)
	}
	return opts, nil
}
