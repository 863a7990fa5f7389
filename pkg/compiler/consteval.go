package compiler

import (
	"errors"
	"fmt"
)

var errNotConstant = errors.New("not a constant expression")

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// evalConst folds e at compile time. Only literals, folded constants and
// operators over them qualify. Arithmetic wraps like 32-bit hardware.
func (cg *CodeGen) evalConst(e Expr) (int32, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil

	case *VarRef:
		sym, err := cg.syms.FindVariable(n.Name)
		if err != nil {
			return 0, fmt.Errorf("%q is not declared", n.Name)
		}
		if !sym.Folded {
			return 0, fmt.Errorf("%w: %q is a variable", errNotConstant, n.Name)
		}
		return sym.Value, nil

	case *UnaryExpr:
		r, err := cg.evalConst(n.Right)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case PLUS:
			return r, nil
		case MINUS:
			return -r, nil
		case NOT:
			return b2i(r == 0), nil
		}

	case *LogicalExpr:
		l, err := cg.evalConst(n.Left)
		if err != nil {
			return 0, err
		}
		r, err := cg.evalConst(n.Right)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case AND_LOGICAL:
			return b2i(l != 0 && r != 0), nil
		case OR_LOGICAL:
			return b2i(l != 0 || r != 0), nil
		}

	case *BinaryExpr:
		l, err := cg.evalConst(n.Left)
		if err != nil {
			return 0, err
		}
		r, err := cg.evalConst(n.Right)
		if err != nil {
			return 0, err
		}
		return foldBinary(n.Op, l, r)

	case *FunctionCall:
		return 0, fmt.Errorf("%w: call to %q", errNotConstant, n.Name)
	}
	return 0, errNotConstant
}

func foldBinary(op TokenType, l, r int32) (int32, error) {
	switch op {
	case PLUS:
		return l + r, nil
	case MINUS:
		return l - r, nil
	case STAR:
		return l * r, nil
	case SLASH, PERCENT:
		if r == 0 {
			return 0, errors.New("division by zero")
		}
		if op == SLASH {
			return l / r, nil
		}
		return l % r, nil
	case LESS:
		return b2i(l < r), nil
	case GREATER:
		return b2i(l > r), nil
	case LESS_EQ:
		return b2i(l <= r), nil
	case GREATER_EQ:
		return b2i(l >= r), nil
	case EQUALS:
		return b2i(l == r), nil
	case NOT_EQ:
		return b2i(l != r), nil
	}
	return 0, fmt.Errorf("unknown operator %s", op)
}
