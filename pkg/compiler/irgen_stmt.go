package compiler

// genStmts emits a statement list. Once a statement terminates its block,
// the rest of the list is unreachable and is not emitted.
func (cg *CodeGen) genStmts(stmts []Stmt) (Flow, error) {
	for _, s := range stmts {
		flow, err := cg.genStmt(s)
		if err != nil {
			return FellThrough, err
		}
		if flow == Terminated {
			return Terminated, nil
		}
	}
	return FellThrough, nil
}

func (cg *CodeGen) genStmt(s Stmt) (Flow, error) {
	switch n := s.(type) {
	case *DeclStmt:
		return FellThrough, cg.genLocalDecl(n)
	case *Assignment:
		return FellThrough, cg.genAssignment(n)
	case *ExprStmt:
		return FellThrough, cg.genExprStmt(n)
	case *ReturnStmt:
		return cg.genReturn(n)
	case *BlockStmt:
		cg.syms.EnterScope()
		defer cg.syms.ExitScope()
		return cg.genStmts(n.Stmts)
	case *IfStmt:
		return cg.genIf(n)
	case *WhileStmt:
		return cg.genWhile(n)
	case *BreakStmt:
		loop, err := cg.syms.CurrentLoop()
		if err != nil {
			return FellThrough, errorf(BreakContinueOutsideLoop, "", "line %d: break outside of a loop", n.Line)
		}
		cg.inst("jump %s", loop.End)
		return Terminated, nil
	case *ContinueStmt:
		loop, err := cg.syms.CurrentLoop()
		if err != nil {
			return FellThrough, errorf(BreakContinueOutsideLoop, "", "line %d: continue outside of a loop", n.Line)
		}
		cg.inst("jump %s", loop.Cond)
		return Terminated, nil
	case *FunctionDecl:
		return FellThrough, errorf(MalformedNode, n.Name, "line %d: nested function %q", n.Line, n.Name)
	case nil:
		return FellThrough, errorf(MalformedNode, "", "missing statement")
	}
	return FellThrough, errorf(MalformedNode, "", "unknown statement %T", s)
}

// genLocalDecl allocates a stack slot per definition. The initializer is
// evaluated before the new name is bound, so "int x = x;" reads the outer x.
func (cg *CodeGen) genLocalDecl(d *DeclStmt) error {
	for _, def := range d.Defs {
		var init Operand
		if def.Init != nil {
			v, err := cg.genExpr(def.Init)
			if err != nil {
				return err
			}
			init = v
		} else if d.IsConst {
			return errorf(MalformedNode, def.Name, "line %d: constant %q has no initializer", def.Line, def.Name)
		}

		sym, err := cg.syms.AddVariable(def.Name, d.IsConst)
		if err != nil {
			return errorf(DuplicateDeclaration, def.Name, "line %d: %q already declared in this scope", def.Line, def.Name)
		}
		cg.inst("%s = alloc i32", sym.Name)
		if def.Init != nil {
			cg.inst("store %s, %s", init, sym.Name)
		}
	}
	return nil
}

func (cg *CodeGen) genAssignment(a *Assignment) error {
	if a.Left == nil {
		return errorf(MalformedNode, "", "assignment without a target")
	}
	sym, err := cg.syms.FindVariable(a.Left.Name)
	if err != nil {
		return errorf(UndefinedVariable, a.Left.Name, "line %d: %q is not declared", a.Left.Line, a.Left.Name)
	}
	if sym.IsConst {
		return errorf(ConstAssignment, a.Left.Name, "line %d: cannot assign to constant %q", a.Left.Line, a.Left.Name)
	}
	v, err := cg.genExpr(a.Value)
	if err != nil {
		return err
	}
	cg.inst("store %s, %s", v, sym.Name)
	return nil
}

// genExprStmt evaluates for side effects only. Calls to void functions
// are legal here and nowhere else.
func (cg *CodeGen) genExprStmt(e *ExprStmt) error {
	switch x := e.Expr.(type) {
	case nil:
		return nil
	case *FunctionCall:
		_, _, err := cg.genCall(x)
		return err
	}
	_, err := cg.genExpr(e.Expr)
	return err
}

func (cg *CodeGen) genReturn(r *ReturnStmt) (Flow, error) {
	switch {
	case r.Expr == nil && cg.fn.Return == TypeInt:
		return FellThrough, errorf(MalformedNode, cg.fn.Name, "return without a value in int function %q", cg.fn.Name)
	case r.Expr != nil && cg.fn.Return == TypeVoid:
		return FellThrough, errorf(MalformedNode, cg.fn.Name, "return with a value in void function %q", cg.fn.Name)
	case r.Expr == nil:
		cg.inst("ret")
		return Terminated, nil
	}
	v, err := cg.genExpr(r.Expr)
	if err != nil {
		return FellThrough, err
	}
	cg.inst("ret %s", v)
	return Terminated, nil
}

// genIf emits
//
//	br cond, %then_n, %else_n|%end_n
//	%then_n:  ... jump %end_n
//	%else_n:  ... jump %end_n
//	%end_n:
//
// With an else branch, %end_n exists only if one of the branches falls through.
func (cg *CodeGen) genIf(s *IfStmt) (Flow, error) {
	cond, err := cg.genExpr(s.Condition)
	if err != nil {
		return FellThrough, err
	}
	if s.Body == nil {
		return FellThrough, errorf(MalformedNode, "", "if without a body")
	}

	id := cg.newBlockID()
	thenL := blockLabel("then", id)
	elseL := blockLabel("else", id)
	endL := blockLabel("end", id)

	if s.ElseBody == nil {
		cg.inst("br %s, %s, %s", cond, thenL, endL)
		cg.label(thenL)
		flow, err := cg.genStmt(s.Body)
		if err != nil {
			return FellThrough, err
		}
		if flow == FellThrough {
			cg.inst("jump %s", endL)
		}
		cg.label(endL)
		return FellThrough, nil
	}

	cg.inst("br %s, %s, %s", cond, thenL, elseL)
	cg.label(thenL)
	thenFlow, err := cg.genStmt(s.Body)
	if err != nil {
		return FellThrough, err
	}
	if thenFlow == FellThrough {
		cg.inst("jump %s", endL)
	}

	cg.label(elseL)
	elseFlow, err := cg.genStmt(s.ElseBody)
	if err != nil {
		return FellThrough, err
	}
	if elseFlow == FellThrough {
		cg.inst("jump %s", endL)
	}

	if thenFlow == Terminated && elseFlow == Terminated {
		return Terminated, nil
	}
	cg.label(endL)
	return FellThrough, nil
}

// genWhile emits
//
//	jump %while_cond_n
//	%while_cond_n:  br cond, %while_body_n, %while_end_n
//	%while_body_n:  ... jump %while_cond_n
//	%while_end_n:
func (cg *CodeGen) genWhile(s *WhileStmt) (Flow, error) {
	if s.Body == nil {
		return FellThrough, errorf(MalformedNode, "", "while without a body")
	}
	id := cg.newBlockID()
	condL := blockLabel("while_cond", id)
	bodyL := blockLabel("while_body", id)
	endL := blockLabel("while_end", id)

	cg.inst("jump %s", condL)
	cg.label(condL)
	cond, err := cg.genExpr(s.Condition)
	if err != nil {
		return FellThrough, err
	}
	cg.inst("br %s, %s, %s", cond, bodyL, endL)

	cg.label(bodyL)
	cg.syms.EnterLoop(condL, endL)
	flow, err := cg.genStmt(s.Body)
	cg.syms.ExitLoop()
	if err != nil {
		return FellThrough, err
	}
	if flow == FellThrough {
		cg.inst("jump %s", condL)
	}

	cg.label(endL)
	return FellThrough, nil
}
