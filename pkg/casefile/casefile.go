// Package casefile extracts compiler test cases from Markdown documents.
//
// A case starts at a heading "Test: <name>" and is followed by one sysy
// fence holding the program and any number of assertion fences:
//
//	koopa   the exact Koopa IR the program lowers to
//	exit    the exit status of main when run
//	output  what the program writes through putint/putch
//	error   a substring of the expected compile error
//	input   data read by getint/getch (not an assertion)
package casefile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FenceType is the info string of a code fence.
type FenceType string

const (
	FenceSysY   FenceType = "sysy"
	FenceKoopa  FenceType = "koopa"
	FenceExit   FenceType = "exit"
	FenceOutput FenceType = "output"
	FenceError  FenceType = "error"
	FenceInput  FenceType = "input"
)

// Assertion is one expectation attached to a case.
type Assertion struct {
	Type    FenceType
	Content string
}

// Case is one test program with its expectations.
type Case struct {
	Name       string
	Source     string
	Input      string
	Assertions []Assertion
	Line       int // line of the heading
}

// Expect returns the content of the first assertion of type t.
func (c Case) Expect(t FenceType) (string, bool) {
	for _, a := range c.Assertions {
		if a.Type == t {
			return a.Content, true
		}
	}
	return "", false
}

// ExitCode returns the expected exit status, if the case has one.
func (c Case) ExitCode() (int, bool, error) {
	s, ok := c.Expect(FenceExit)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, true, fmt.Errorf("test '%s': bad exit fence %q", c.Name, s)
	}
	return n, true, nil
}

func isAssertionFence(t FenceType) bool {
	switch t {
	case FenceKoopa, FenceExit, FenceOutput, FenceError:
		return true
	}
	return false
}

// Extract parses a Markdown document and returns its cases in order.
func Extract(markdown []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var cases []Case
	var cur *Case

	finish := func() error {
		if cur == nil {
			return nil
		}
		if cur.Source == "" {
			return fmt.Errorf("test '%s' has no sysy fence", cur.Name)
		}
		if len(cur.Assertions) == 0 {
			return fmt.Errorf("test '%s' has no assertion fences", cur.Name)
		}
		cases = append(cases, *cur)
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, markdown)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if err := finish(); err != nil {
				return ast.WalkStop, err
			}
			cur = &Case{
				Name: strings.TrimPrefix(heading, "Test: "),
				Line: lineOf(n, markdown),
			}

		case *ast.FencedCodeBlock:
			lang := FenceType(n.Language(markdown))
			line := lineOf(n, markdown)
			if lang == "" {
				return ast.WalkContinue, nil
			}
			if cur == nil {
				return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of test case", line, lang)
			}

			content := fenceContent(n, markdown)
			switch {
			case lang == FenceSysY:
				if cur.Source != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple sysy fences in test '%s'", line, cur.Name)
				}
				cur.Source = content
			case lang == FenceInput:
				cur.Input = content
			case isAssertionFence(lang):
				cur.Assertions = append(cur.Assertions, Assertion{
					Type:    lang,
					Content: strings.TrimRight(content, "\n"),
				})
			default:
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, lang, cur.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking markdown AST: %w", err)
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return cases, nil
}

// LoadDir extracts the cases of every *.md file in dir, sorted by file name.
// Case names are prefixed with the file's base name.
func LoadDir(dir string) ([]Case, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var all []Case
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cases, err := Extract(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		base := strings.TrimSuffix(filepath.Base(path), ".md")
		for i := range cases {
			cases[i].Name = base + "/" + cases[i].Name
		}
		all = append(all, cases...)
	}
	return all, nil
}

func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:start], []byte("\n")) + 1
}
