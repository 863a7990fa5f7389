package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func parseSource(t *testing.T, src string) []Stmt {
	t.Helper()
	toks, err := Lex(src)
	be.Err(t, err, nil)
	stmts, err := Parse(toks, src)
	be.Err(t, err, nil)
	return stmts
}

// parseReturnExpr parses "int main() { return <expr>; }" and returns expr.
func parseReturnExpr(t *testing.T, expr string) Expr {
	t.Helper()
	stmts := parseSource(t, "int main() { return "+expr+"; }")
	fn := stmts[0].(*FunctionDecl)
	return fn.Body.Stmts[0].(*ReturnStmt).Expr
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"1 < 2 == 3 > 4", "((1 < 2) == (3 > 4))"},
		{"a || b && c", "(a || (b && c))"},
		{"!a == -b", "((! a) == (- b))"},
		{"- - 1", "(- (- 1))"},
		{"a % b / c", "((a % b) / c)"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			be.Equal(t, parseReturnExpr(t, tt.src).String(), tt.want)
		})
	}
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want int32
	}{
		{"10", 10},
		{"010", 8},
		{"0x10", 16},
		{"2147483647", 2147483647},
		{"4294967295", -1},
	}
	for _, tt := range tests {
		lit, ok := parseReturnExpr(t, tt.src).(*Literal)
		be.True(t, ok)
		be.Equal(t, lit.Value, tt.want)
	}
}

func TestParseCall(t *testing.T) {
	call, ok := parseReturnExpr(t, "f(1, x + 1, g())").(*FunctionCall)
	be.True(t, ok)
	be.Equal(t, call.Name, "f")
	be.Equal(t, len(call.Args), 3)
	_, ok = call.Args[2].(*FunctionCall)
	be.True(t, ok)
}

func TestParseCompUnit(t *testing.T) {
	src := `
	const int N = 10;
	int g, h = 2;
	void f(int a, int b) { a = b; }
	int main() { return N; }
	`
	stmts := parseSource(t, src)
	be.Equal(t, len(stmts), 4)

	c := stmts[0].(*DeclStmt)
	be.True(t, c.IsConst)
	be.Equal(t, c.Defs[0].Name, "N")

	g := stmts[1].(*DeclStmt)
	be.Equal(t, len(g.Defs), 2)
	be.Equal(t, g.Defs[0].Init, Expr(nil))

	f := stmts[2].(*FunctionDecl)
	be.Equal(t, f.ReturnType, VOID)
	be.Equal(t, len(f.Params), 2)
	be.Equal(t, f.Params[1].Name, "b")

	m := stmts[3].(*FunctionDecl)
	be.Equal(t, m.ReturnType, INT)
	be.Equal(t, len(m.Params), 0)
}

func TestParseStatements(t *testing.T) {
	src := `int main() {
		int x;
		x = 1;
		;
		putint(x);
		{ int y = x; }
		if (x) x = 2; else { x = 3; }
		while (x) { if (x) break; continue; }
		return;
	}`
	body := parseSource(t, src)[0].(*FunctionDecl).Body.Stmts
	be.Equal(t, len(body), 8)

	_, ok := body[0].(*DeclStmt)
	be.True(t, ok)
	a := body[1].(*Assignment)
	be.Equal(t, a.Left.Name, "x")
	be.Equal(t, body[2].(*ExprStmt).Expr, Expr(nil))
	_, ok = body[3].(*ExprStmt).Expr.(*FunctionCall)
	be.True(t, ok)
	_, ok = body[4].(*BlockStmt)
	be.True(t, ok)

	ifs := body[5].(*IfStmt)
	be.True(t, ifs.ElseBody != nil)

	w := body[6].(*WhileStmt)
	loop := w.Body.(*BlockStmt)
	_, ok = loop.Stmts[0].(*IfStmt).Body.(*BreakStmt)
	be.True(t, ok)
	_, ok = loop.Stmts[1].(*ContinueStmt)
	be.True(t, ok)

	be.Equal(t, body[7].(*ReturnStmt).Expr, Expr(nil))
}

func TestParseDanglingElse(t *testing.T) {
	body := parseSource(t, "int main() { if (1) if (0) return 1; else return 2; return 3; }")[0].(*FunctionDecl).Body.Stmts
	outer := body[0].(*IfStmt)
	be.Equal(t, outer.ElseBody, Stmt(nil))
	inner := outer.Body.(*IfStmt)
	be.True(t, inner.ElseBody != nil)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"TopLevelStatement", "return 1;", "outside of function body"},
		{"MissingSemicolon", "int main() { return 1 }", "expected SEMICOLON"},
		{"ConstWithoutInit", "const int x;", "requires an initializer"},
		{"AssignToExpr", "int main() { 1 = 2; }", "not a variable"},
		{"UnclosedBlock", "int main() { return 0;", "expected RBRACE"},
		{"BadParam", "int f(x) { return 0; }", "expected INT"},
		{"MissingExpr", "int main() { return +; }", "expected expression"},
		{"HugeLiteral", "int main() { return 4294967296; }", "out of 32-bit range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.src)
			be.Err(t, err, nil)
			_, err = Parse(toks, tt.src)
			be.Err(t, err, tt.want)
			be.Equal(t, KindOf(err), SyntaxError)
		})
	}
}
