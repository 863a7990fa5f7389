package compiler

import (
	"fmt"
	"strings"
)

var opText = map[TokenType]string{
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	AND_LOGICAL: "&&", OR_LOGICAL: "||", NOT: "!",
	EQUALS: "==", NOT_EQ: "!=", LESS: "<", GREATER: ">", LESS_EQ: "<=", GREATER_EQ: ">=",
}

func opString(op TokenType) string {
	if s, ok := opText[op]; ok {
		return s
	}
	return op.String()
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
// The set of implementations is closed; exprNode keeps it that way.
type Expr interface {
	exprNode()
	String() string
}

// Literal is an integer constant.
//
//	return 0x10;
//	       ^^^^  Literal{Value: 16}
type Literal struct {
	Value int32
}

func (*Literal) exprNode()        {}
func (l *Literal) String() string { return fmt.Sprintf("%d", l.Value) }

// VarRef is a read of a named variable or constant.
//
//	return x;
//	       ^  VarRef{Name: "x"}
type VarRef struct {
	Name string
	Line int
}

func (*VarRef) exprNode()        {}
func (v *VarRef) String() string { return v.Name }

// BinaryExpr represents an arithmetic, relational or equality operation.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, opString(b.Op), b.Right)
}

// LogicalExpr represents Left && Right or Left || Right.
// Both sides are always evaluated; there are no side effects to skip.
type LogicalExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*LogicalExpr) exprNode() {}
func (l *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, opString(l.Op), l.Right)
}

// UnaryExpr represents +x, -x or !x.
type UnaryExpr struct {
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s %s)", opString(u.Op), u.Right) }

// FunctionCall represents name(args)
type FunctionCall struct {
	Name string
	Args []Expr
	Line int
}

func (*FunctionCall) exprNode() {}
func (c *FunctionCall) String() string {
	return fmt.Sprintf("FunctionCall(%s, args=%v)", c.Name, c.Args)
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	String() string
}

// VariableDecl is one definition inside a DeclStmt.
type VariableDecl struct {
	Name string
	Init Expr // nil for "int x;"
	Line int
}

func (d *VariableDecl) String() string {
	if d.Init == nil {
		return d.Name
	}
	return fmt.Sprintf("%s = %s", d.Name, d.Init)
}

// DeclStmt represents  [const] int a = 1, b;
type DeclStmt struct {
	IsConst bool
	Defs    []*VariableDecl
}

func (*DeclStmt) stmtNode() {}
func (d *DeclStmt) String() string {
	defs := make([]string, len(d.Defs))
	for i, def := range d.Defs {
		defs[i] = def.String()
	}
	kw := "int"
	if d.IsConst {
		kw = "const int"
	}
	return fmt.Sprintf("DeclStmt(%s %s)", kw, strings.Join(defs, ", "))
}

// Assignment represents  Left = Value;
type Assignment struct {
	Left  *VarRef
	Value Expr
}

func (*Assignment) stmtNode() {}
func (a *Assignment) String() string {
	return fmt.Sprintf("Assignment(%s = %s)", a.Left, a.Value)
}

// ExprStmt represents an expression evaluated and discarded. Expr is nil
// for the empty statement ";".
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}
func (e *ExprStmt) String() string {
	return fmt.Sprintf("ExprStmt(%v)", e.Expr)
}

// ReturnStmt represents  return [expr];
type ReturnStmt struct {
	Expr Expr // nil for a bare return
}

func (*ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	return fmt.Sprintf("ReturnStmt(%v)", r.Expr)
}

// BlockStmt represents { item; ... } and opens a scope.
type BlockStmt struct {
	Stmts []Stmt
}

func (*BlockStmt) stmtNode() {}
func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d)", len(b.Stmts))
}

// IfStmt represents if (cond) body [else elseBody]
type IfStmt struct {
	Condition Expr
	Body      Stmt
	ElseBody  Stmt // may be nil
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.ElseBody != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Condition, i.Body, i.ElseBody)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Condition, i.Body)
}

// WhileStmt represents while (cond) body
type WhileStmt struct {
	Condition Expr
	Body      Stmt
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Condition, w.Body)
}

// BreakStmt represents break;
type BreakStmt struct{ Line int }

func (*BreakStmt) stmtNode()        {}
func (s *BreakStmt) String() string { return "BreakStmt" }

// ContinueStmt represents continue;
type ContinueStmt struct{ Line int }

func (*ContinueStmt) stmtNode()        {}
func (s *ContinueStmt) String() string { return "ContinueStmt" }

// Param is one "int name" in a function header.
type Param struct {
	Name string
	Line int
}

// FunctionDecl represents int|void name(params) { body }. It only appears
// at the top level of a compilation unit.
type FunctionDecl struct {
	Name       string
	ReturnType TokenType // INT or VOID
	Params     []Param
	Body       *BlockStmt
	Line       int
}

func (*FunctionDecl) stmtNode() {}
func (f *FunctionDecl) String() string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("FunctionDecl(%s %s, params=%v, body=%s)", f.ReturnType, f.Name, names, f.Body)
}
