package driver

import (
	"fmt"
	"strings"

	"github.com/samber/do"

	"github.com/ExiledOfCode/Sysc-compiler/pkg/compiler"
	"github.com/ExiledOfCode/Sysc-compiler/pkg/rvsim"
)

// Artifact is what a Backend produced for one source file.
type Artifact struct {
	Text     string
	ExitCode int
}

// Backend turns SysY source into the contents of the output file.
type Backend interface {
	Build(src string) (Artifact, error)
}

type koopaBackend struct{}

func (koopaBackend) Build(src string) (Artifact, error) {
	ir, err := compiler.CompileIR(src)
	return Artifact{Text: ir}, err
}

type riscvBackend struct{}

func (riscvBackend) Build(src string) (Artifact, error) {
	asm, err := compiler.CompileRISCV(src)
	return Artifact{Text: asm}, err
}

// runBackend compiles and executes in the simulator; the artifact is the
// program's output.
type runBackend struct {
	opts Options
}

func (b runBackend) Build(src string) (Artifact, error) {
	asm, err := compiler.CompileRISCV(src)
	if err != nil {
		return Artifact{}, err
	}
	var out strings.Builder
	code, err := rvsim.RunSource(asm, b.opts.Stdin, &out)
	if err != nil {
		return Artifact{}, fmt.Errorf("run: %w", err)
	}
	return Artifact{Text: out.String(), ExitCode: code}, nil
}

// Driver runs one compilation as described by its Options.
type Driver struct {
	opts    Options
	backend Backend
}

// Run compiles the input file and writes the output file. The returned
// code is the process exit status the command should report.
func (d *Driver) Run() (int, error) {
	src, err := readSource(d.opts.Input)
	if err != nil {
		return 1, err
	}
	art, err := d.backend.Build(src)
	if err != nil {
		return 1, err
	}
	if err := writeOutput(d.opts.Output, art.Text); err != nil {
		return 1, err
	}
	return art.ExitCode, nil
}

func newBackend(opts Options) (Backend, error) {
	switch opts.Mode {
	case ModeKoopa:
		return koopaBackend{}, nil
	case ModeRISCV:
		return riscvBackend{}, nil
	case ModeRun:
		return runBackend{opts: opts}, nil
	}
	return nil, fmt.Errorf("%w: unknown mode %q", ErrUsage, opts.Mode)
}

// NewInjector registers the services of one run.
func NewInjector(opts Options) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, opts)

	do.Provide(injector, func(i *do.Injector) (Backend, error) {
		return newBackend(do.MustInvoke[Options](i))
	})

	do.Provide(injector, func(i *do.Injector) (*Driver, error) {
		backend, err := do.Invoke[Backend](i)
		if err != nil {
			return nil, err
		}
		return &Driver{opts: do.MustInvoke[Options](i), backend: backend}, nil
	})

	return injector
}

// Execute wires and runs one compilation and returns the exit status.
func Execute(opts Options) (int, error) {
	injector := NewInjector(opts)
	defer func() { _ = injector.Shutdown() }()

	d, err := do.Invoke[*Driver](injector)
	if err != nil {
		return 1, err
	}
	return d.Run()
}
