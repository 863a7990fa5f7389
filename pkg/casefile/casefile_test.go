package casefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

const sample = "# Arithmetic\n" +
	"\n" +
	"Free text is ignored.\n" +
	"\n" +
	"## Test: add\n" +
	"\n" +
	"```sysy\n" +
	"int main() { return 1 + 2; }\n" +
	"```\n" +
	"\n" +
	"```exit\n" +
	"3\n" +
	"```\n" +
	"\n" +
	"## Test: echo\n" +
	"\n" +
	"```sysy\n" +
	"int main() { putint(getint()); return 0; }\n" +
	"```\n" +
	"\n" +
	"```input\n" +
	"42\n" +
	"```\n" +
	"\n" +
	"```output\n" +
	"42\n" +
	"```\n" +
	"\n" +
	"```exit\n" +
	"0\n" +
	"```\n" +
	"\n" +
	"```\n" +
	"untagged fences are skipped\n" +
	"```\n"

func TestExtract(t *testing.T) {
	cases, err := Extract([]byte(sample))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 2)

	add := cases[0]
	be.Equal(t, add.Name, "add")
	be.Equal(t, add.Source, "int main() { return 1 + 2; }\n")
	be.Equal(t, add.Line, 5)
	code, ok, err := add.ExitCode()
	be.Err(t, err, nil)
	be.True(t, ok)
	be.Equal(t, code, 3)
	_, ok = add.Expect(FenceOutput)
	be.True(t, !ok)

	echo := cases[1]
	be.Equal(t, echo.Name, "echo")
	be.Equal(t, echo.Input, "42\n")
	be.Equal(t, len(echo.Assertions), 2)
	out, ok := echo.Expect(FenceOutput)
	be.True(t, ok)
	be.Equal(t, out, "42")
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"NoSource", "## Test: a\n\n```exit\n0\n```\n", "test 'a' has no sysy fence"},
		{"NoAssertions", "## Test: a\n\n```sysy\nint main() { return 0; }\n```\n", "test 'a' has no assertion fences"},
		{"TwoSources", "## Test: a\n\n```sysy\nx\n```\n\n```sysy\ny\n```\n", "multiple sysy fences in test 'a'"},
		{"UnknownFence", "## Test: a\n\n```sysy\nx\n```\n\n```python\ny\n```\n", "unknown fence language 'python'"},
		{"OutsideCase", "# Intro\n\n```sysy\nx\n```\n", "sysy fence found outside of test case"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte(tt.doc))
			be.Err(t, err, tt.msg)
		})
	}
}

func TestExitCodeMalformed(t *testing.T) {
	c := Case{Name: "x", Assertions: []Assertion{{Type: FenceExit, Content: "zero"}}}
	_, ok, err := c.ExitCode()
	be.True(t, ok)
	be.Err(t, err, "bad exit fence")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	be.Err(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte(sample), 0o644), nil)
	be.Err(t, os.WriteFile(filepath.Join(dir, "a.md"),
		[]byte("## Test: first\n\n```sysy\nint main() { return 0; }\n```\n\n```error\nundefined\n```\n"), 0o644), nil)
	be.Err(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644), nil)

	cases, err := LoadDir(dir)
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 3)
	be.Equal(t, cases[0].Name, "a/first")
	be.Equal(t, cases[1].Name, "b/add")
	be.Equal(t, cases[2].Name, "b/echo")

	msg, ok := cases[0].Expect(FenceError)
	be.True(t, ok)
	be.Equal(t, msg, "undefined")
}

func TestLoadDirReportsFile(t *testing.T) {
	dir := t.TempDir()
	be.Err(t, os.WriteFile(filepath.Join(dir, "bad.md"), []byte("## Test: a\n\n```exit\n0\n```\n"), 0o644), nil)
	_, err := LoadDir(dir)
	be.Err(t, err, "bad.md")
}
