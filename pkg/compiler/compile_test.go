package compiler

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/ExiledOfCode/Sysc-compiler/pkg/casefile"
	"github.com/ExiledOfCode/Sysc-compiler/pkg/rvsim"
)

// TestCases runs every program under testdata through both back ends.
func TestCases(t *testing.T) {
	cases, err := casefile.LoadDir("testdata")
	be.Err(t, err, nil)
	be.True(t, len(cases) > 0)

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			if want, ok := tc.Expect(casefile.FenceError); ok {
				_, err := CompileIR(tc.Source)
				be.Err(t, err, want)
				_, err = CompileRISCV(tc.Source)
				be.Err(t, err, want)
				return
			}

			ir, err := CompileIR(tc.Source)
			be.Err(t, err, nil)
			if want, ok := tc.Expect(casefile.FenceKoopa); ok {
				be.Equal(t, strings.TrimRight(ir, "\n"), want)
			}

			asm, err := CompileRISCV(tc.Source)
			be.Err(t, err, nil)

			var out bytes.Buffer
			status, err := rvsim.RunSource(asm, strings.NewReader(tc.Input), &out)
			be.Err(t, err, nil)

			code, ok, err := tc.ExitCode()
			be.Err(t, err, nil)
			if ok {
				be.Equal(t, status, code)
			}
			if want, ok := tc.Expect(casefile.FenceOutput); ok {
				be.Equal(t, strings.TrimRight(out.String(), "\n"), want)
			}
		})
	}
}

func TestCompileRISCVFrames(t *testing.T) {
	asm, err := CompileRISCV(`
int sq(int x) { return x * x; }
int main() {
	int a = 3;
	return sq(a) + sq(4);
}`)
	be.Err(t, err, nil)

	// Every frame adjustment keeps sp 16-byte aligned.
	for _, line := range strings.Split(asm, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "addi sp, sp, ") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(line, "addi sp, sp, "))
		be.Err(t, err, nil)
		be.Equal(t, n%16, 0)
	}
	be.True(t, strings.Contains(asm, "  .globl sq\n"))
	be.True(t, strings.Contains(asm, "  call sq\n"))

	status, err := rvsim.RunSource(asm, nil, nil)
	be.Err(t, err, nil)
	be.Equal(t, status, 25)
}

func TestCompileErrorStage(t *testing.T) {
	_, err := CompileIR("int main() { return 1 $ 2; }")
	be.Err(t, err, "lex: ")
	be.Equal(t, KindOf(err), SyntaxError)

	_, err = CompileIR("int main() { return (1; }")
	be.Err(t, err, "parse: ")

	_, err = CompileIR("int main() { return x; }")
	be.Err(t, err, "ir: ")
	be.Equal(t, KindOf(err), UndefinedVariable)
}
