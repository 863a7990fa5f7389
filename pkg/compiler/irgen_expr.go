package compiler

import "strings"

var binaryOps = map[TokenType]string{
	PLUS:       "add",
	MINUS:      "sub",
	STAR:       "mul",
	SLASH:      "div",
	PERCENT:    "mod",
	LESS:       "lt",
	GREATER:    "gt",
	LESS_EQ:    "le",
	GREATER_EQ: "ge",
	EQUALS:     "eq",
	NOT_EQ:     "ne",
}

// genExpr emits the instructions computing e and returns where the result lives.
func (cg *CodeGen) genExpr(e Expr) (Operand, error) {
	switch n := e.(type) {
	case *Literal:
		return imm(n.Value), nil

	case *VarRef:
		sym, err := cg.syms.FindVariable(n.Name)
		if err != nil {
			return Operand{}, errorf(UndefinedVariable, n.Name, "line %d: %q is not declared", n.Line, n.Name)
		}
		if sym.Folded {
			return imm(sym.Value), nil
		}
		v := cg.newValue()
		cg.inst("%s = load %s", v, sym.Name)
		return v, nil

	case *UnaryExpr:
		r, err := cg.genExpr(n.Right)
		if err != nil {
			return Operand{}, err
		}
		switch n.Op {
		case PLUS:
			return r, nil
		case MINUS:
			v := cg.newValue()
			cg.inst("%s = sub 0, %s", v, r)
			return v, nil
		case NOT:
			v := cg.newValue()
			cg.inst("%s = eq 0, %s", v, r)
			return v, nil
		}
		return Operand{}, errorf(MalformedNode, "", "unknown unary operator %s", n.Op)

	case *BinaryExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return Operand{}, errorf(MalformedNode, "", "unknown binary operator %s", n.Op)
		}
		l, err := cg.genExpr(n.Left)
		if err != nil {
			return Operand{}, err
		}
		r, err := cg.genExpr(n.Right)
		if err != nil {
			return Operand{}, err
		}
		v := cg.newValue()
		cg.inst("%s = %s %s, %s", v, op, l, r)
		return v, nil

	case *LogicalExpr:
		return cg.genLogical(n)

	case *FunctionCall:
		v, ok, err := cg.genCall(n)
		if err != nil {
			return Operand{}, err
		}
		if !ok {
			return Operand{}, errorf(MalformedNode, n.Name, "line %d: void function %q used as a value", n.Line, n.Name)
		}
		return v, nil

	case nil:
		return Operand{}, errorf(MalformedNode, "", "missing expression")
	}
	return Operand{}, errorf(MalformedNode, "", "unknown expression %T", e)
}

// genLogical normalizes both sides to 0/1 and combines them bitwise.
// Both operands are always evaluated.
func (cg *CodeGen) genLogical(n *LogicalExpr) (Operand, error) {
	var op string
	switch n.Op {
	case AND_LOGICAL:
		op = "and"
	case OR_LOGICAL:
		op = "or"
	default:
		return Operand{}, errorf(MalformedNode, "", "unknown logical operator %s", n.Op)
	}

	l, err := cg.genExpr(n.Left)
	if err != nil {
		return Operand{}, err
	}
	lb := cg.newValue()
	cg.inst("%s = ne 0, %s", lb, l)

	r, err := cg.genExpr(n.Right)
	if err != nil {
		return Operand{}, err
	}
	rb := cg.newValue()
	cg.inst("%s = ne 0, %s", rb, r)

	v := cg.newValue()
	cg.inst("%s = %s %s, %s", v, op, lb, rb)
	return v, nil
}

// genCall emits a call. The bool result is false for void functions,
// which produce no value.
func (cg *CodeGen) genCall(c *FunctionCall) (Operand, bool, error) {
	sig, err := cg.syms.FindFunction(c.Name)
	if err != nil {
		return Operand{}, false, errorf(UndefinedFunction, c.Name, "line %d: function %q is not defined", c.Line, c.Name)
	}
	if len(c.Args) != len(sig.Params) {
		return Operand{}, false, errorf(MalformedNode, c.Name, "line %d: %q takes %d arguments, got %d",
			c.Line, c.Name, len(sig.Params), len(c.Args))
	}

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		v, err := cg.genExpr(a)
		if err != nil {
			return Operand{}, false, err
		}
		args[i] = v.String()
	}
	if sig.Extern {
		cg.externs[sig.Name] = true
	}

	list := strings.Join(args, ", ")
	if sig.Return == TypeVoid {
		cg.inst("call @%s(%s)", c.Name, list)
		return Operand{}, false, nil
	}
	v := cg.newValue()
	cg.inst("%s = call @%s(%s)", v, c.Name, list)
	return v, true, nil
}
