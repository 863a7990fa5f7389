package koopa

import "strings"

// funcScope holds the local names of the function being parsed.
type funcScope struct {
	fn     *Function
	values map[string]*Value
	blocks map[string]*BasicBlock
	cur    *BasicBlock
}

type parser struct {
	toks    []token
	pos     int
	prog    *Program
	globals map[string]*Value
	funcs   map[string]*Function

	// fixups resolve operand names once the whole program has been read.
	fixups []func() error
}

// Parse reads Koopa IR text.
func Parse(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks:    toks,
		prog:    &Program{},
		globals: make(map[string]*Value),
		funcs:   make(map[string]*Function),
	}

	for p.peek().kind != tokEOF {
		t := p.next()
		switch {
		case t.kind == tokWord && t.text == "global":
			err = p.parseGlobal()
		case t.kind == tokWord && t.text == "decl":
			err = p.parseDecl()
		case t.kind == tokWord && t.text == "fun":
			err = p.parseFun()
		default:
			err = parseErrorf(t.line, "expected global, decl or fun, got %q", t.text)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, fix := range p.fixups {
		if err := fix(); err != nil {
			return nil, err
		}
	}
	return p.prog, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) expectPunct(s string) error {
	t := p.next()
	if t.kind != tokPunct || t.text != s {
		return parseErrorf(t.line, "expected %q, got %q", s, t.text)
	}
	return nil
}

func (p *parser) expectWord(s string) error {
	t := p.next()
	if t.kind != tokWord || t.text != s {
		return parseErrorf(t.line, "expected %q, got %q", s, t.text)
	}
	return nil
}

// expectSymbol consumes a name with the given sigil.
func (p *parser) expectSymbol(sigil string) (token, error) {
	t := p.next()
	if t.kind != tokSymbol || !strings.HasPrefix(t.text, sigil) {
		return t, parseErrorf(t.line, "expected %s-name, got %q", sigil, t.text)
	}
	return t, nil
}

func (p *parser) parseType() (Type, error) {
	t := p.next()
	if t.kind == tokWord && t.text == "i32" {
		return I32, nil
	}
	return Unit, parseErrorf(t.line, "unsupported type %q", t.text)
}

// parseRet reads an optional ": i32" return annotation.
func (p *parser) parseRet() (Type, error) {
	if !p.isPunct(":") {
		return Unit, nil
	}
	p.next()
	return p.parseType()
}

func (p *parser) globalTaken(name string) bool {
	_, v := p.globals[name]
	_, f := p.funcs[name]
	return v || f
}

// global @x = alloc i32, 1|zeroinit|undef
func (p *parser) parseGlobal() error {
	name, err := p.expectSymbol("@")
	if err != nil {
		return err
	}
	if p.globalTaken(name.text) {
		return parseErrorf(name.line, "%s redefined", name.text)
	}
	if err := p.expectPunct("="); err != nil {
		return err
	}
	if err := p.expectWord("alloc"); err != nil {
		return err
	}
	if _, err := p.parseType(); err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}

	t := p.next()
	init := &Value{Line: t.line}
	switch {
	case t.kind == tokInt:
		init.Kind = &Integer{Value: t.val}
	case t.kind == tokWord && t.text == "zeroinit":
		init.Kind = &ZeroInit{}
	case t.kind == tokWord && t.text == "undef":
		init.Kind = &Undef{}
	default:
		return parseErrorf(t.line, "bad global initializer %q", t.text)
	}

	g := &Value{Name: name.text, Kind: &GlobalAlloc{Init: init}, Line: name.line}
	p.globals[g.Name] = g
	p.prog.Globals = append(p.prog.Globals, g)
	return nil
}

// decl @f(i32, ...): i32
func (p *parser) parseDecl() error {
	name, err := p.expectSymbol("@")
	if err != nil {
		return err
	}
	if p.globalTaken(name.text) {
		return parseErrorf(name.line, "%s redefined", name.text)
	}
	f := &Function{Name: name.text, IsDecl: true}
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.isPunct(")") {
		if len(f.ParamTypes) > 0 {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		f.ParamTypes = append(f.ParamTypes, ty)
	}
	p.next()
	if f.Ret, err = p.parseRet(); err != nil {
		return err
	}

	p.funcs[f.Name] = f
	p.prog.Funcs = append(p.prog.Funcs, f)
	return nil
}

// fun @f(@a: i32, ...): i32 { blocks }
func (p *parser) parseFun() error {
	name, err := p.expectSymbol("@")
	if err != nil {
		return err
	}
	if p.globalTaken(name.text) {
		return parseErrorf(name.line, "%s redefined", name.text)
	}
	f := &Function{Name: name.text}
	fs := &funcScope{
		fn:     f,
		values: make(map[string]*Value),
		blocks: make(map[string]*BasicBlock),
	}

	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.isPunct(")") {
		if len(f.Params) > 0 {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		pn := p.next()
		if pn.kind != tokSymbol {
			return parseErrorf(pn.line, "expected parameter name, got %q", pn.text)
		}
		if err := p.define(fs, pn); err != nil {
			return err
		}
		if err := p.expectPunct(":"); err != nil {
			return err
		}
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		arg := &Value{Name: pn.text, Kind: &FuncArgRef{Index: len(f.Params)}, Line: pn.line}
		fs.values[arg.Name] = arg
		f.Params = append(f.Params, arg)
		f.ParamTypes = append(f.ParamTypes, ty)
	}
	p.next()
	if f.Ret, err = p.parseRet(); err != nil {
		return err
	}

	// Registered before the body so it may call itself.
	p.funcs[f.Name] = f
	p.prog.Funcs = append(p.prog.Funcs, f)

	open := p.peek()
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	for !p.isPunct("}") {
		if p.peek().kind == tokEOF {
			return parseErrorf(open.line, "function %s is not closed", f.Name)
		}
		if p.peek().kind == tokSymbol && p.peekAt(1).kind == tokPunct && p.peekAt(1).text == ":" {
			if err := p.startBlock(fs); err != nil {
				return err
			}
			continue
		}
		if err := p.parseStatement(fs); err != nil {
			return err
		}
	}
	end := p.next()

	if len(f.Blocks) == 0 {
		return parseErrorf(end.line, "function %s has no basic blocks", f.Name)
	}
	return p.checkTerminated(fs, end.line)
}

func (p *parser) checkTerminated(fs *funcScope, line int) error {
	bb := fs.cur
	if bb == nil {
		return nil
	}
	if len(bb.Insts) == 0 || !bb.Insts[len(bb.Insts)-1].IsTerminator() {
		return parseErrorf(line, "block %s has no terminator", bb.Name)
	}
	return nil
}

func (p *parser) startBlock(fs *funcScope) error {
	label, err := p.expectSymbol("%")
	if err != nil {
		return err
	}
	p.next() // ':'
	if err := p.checkTerminated(fs, label.line); err != nil {
		return err
	}
	if _, dup := fs.blocks[label.text]; dup {
		return parseErrorf(label.line, "block %s redefined", label.text)
	}
	bb := &BasicBlock{Name: label.text}
	fs.blocks[bb.Name] = bb
	fs.fn.Blocks = append(fs.fn.Blocks, bb)
	fs.cur = bb
	return nil
}

// define reserves a local value name.
func (p *parser) define(fs *funcScope, t token) error {
	if _, dup := fs.values[t.text]; dup || p.globalTaken(t.text) {
		return parseErrorf(t.line, "%s redefined", t.text)
	}
	return nil
}

func (p *parser) parseStatement(fs *funcScope) error {
	start := p.peek()
	if fs.cur == nil {
		return parseErrorf(start.line, "instruction outside of a basic block")
	}
	if n := len(fs.cur.Insts); n > 0 && fs.cur.Insts[n-1].IsTerminator() {
		return parseErrorf(start.line, "instruction after the terminator of block %s", fs.cur.Name)
	}

	v := &Value{Line: start.line}
	if start.kind == tokSymbol {
		p.next()
		if err := p.define(fs, start); err != nil {
			return err
		}
		if err := p.expectPunct("="); err != nil {
			return err
		}
		v.Name = start.text
		if err := p.parseValueInst(fs, v); err != nil {
			return err
		}
		fs.values[v.Name] = v
	} else if err := p.parseVoidInst(fs, v); err != nil {
		return err
	}
	fs.cur.Insts = append(fs.cur.Insts, v)
	return nil
}

// parseValueInst reads the right-hand side of a named instruction.
func (p *parser) parseValueInst(fs *funcScope, v *Value) error {
	op := p.next()
	if op.kind != tokWord {
		return parseErrorf(op.line, "expected instruction, got %q", op.text)
	}
	switch op.text {
	case "alloc":
		if _, err := p.parseType(); err != nil {
			return err
		}
		v.Kind = &Alloc{}
		return nil
	case "load":
		k := &Load{}
		v.Kind = k
		return p.operand(fs, &k.Src)
	case "call":
		return p.parseCall(fs, v)
	}

	bop, ok := opByName[op.text]
	if !ok {
		return parseErrorf(op.line, "unknown instruction %q", op.text)
	}
	k := &Binary{Op: bop}
	v.Kind = k
	if err := p.operand(fs, &k.LHS); err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	return p.operand(fs, &k.RHS)
}

func (p *parser) parseVoidInst(fs *funcScope, v *Value) error {
	op := p.next()
	if op.kind != tokWord {
		return parseErrorf(op.line, "expected instruction, got %q", op.text)
	}
	switch op.text {
	case "store":
		k := &Store{}
		v.Kind = k
		if err := p.operand(fs, &k.Value); err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		return p.operand(fs, &k.Dest)

	case "br":
		k := &Branch{}
		v.Kind = k
		if err := p.operand(fs, &k.Cond); err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		if err := p.blockRef(fs, &k.True); err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		return p.blockRef(fs, &k.False)

	case "jump":
		k := &Jump{}
		v.Kind = k
		return p.blockRef(fs, &k.Target)

	case "call":
		return p.parseCall(fs, v)

	case "ret":
		k := &Return{}
		v.Kind = k
		// A return value must share the line of the ret.
		if t := p.peek(); t.line == op.line && (t.kind == tokInt || t.kind == tokSymbol) {
			if err := p.operand(fs, &k.Value); err != nil {
				return err
			}
		}
		ret := fs.fn.Ret
		p.fixups = append(p.fixups, func() error {
			if (k.Value == nil) != (ret == Unit) {
				return parseErrorf(op.line, "ret does not match the return type of %s", fs.fn.Name)
			}
			return nil
		})
		return nil
	}
	return parseErrorf(op.line, "unknown instruction %q", op.text)
}

// call @f(args)
func (p *parser) parseCall(fs *funcScope, v *Value) error {
	callee, err := p.expectSymbol("@")
	if err != nil {
		return err
	}
	k := &Call{}
	v.Kind = k
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.isPunct(")") {
		if len(k.Args) > 0 {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		k.Args = append(k.Args, nil)
		if err := p.operand(fs, &k.Args[len(k.Args)-1]); err != nil {
			return err
		}
	}
	p.next()

	named := v.Name != ""
	p.fixups = append(p.fixups, func() error {
		f, ok := p.funcs[callee.text]
		if !ok {
			return parseErrorf(callee.line, "call to undefined function %s", callee.text)
		}
		if len(k.Args) != len(f.ParamTypes) {
			return parseErrorf(callee.line, "%s takes %d arguments, got %d", f.Name, len(f.ParamTypes), len(k.Args))
		}
		if named && f.Ret == Unit {
			return parseErrorf(callee.line, "result of unit function %s is named", f.Name)
		}
		k.Callee = f
		return nil
	})
	return nil
}

// operand reads an integer or a value name into *slot. Names resolve later.
func (p *parser) operand(fs *funcScope, slot **Value) error {
	t := p.next()
	switch t.kind {
	case tokInt:
		*slot = &Value{Kind: &Integer{Value: t.val}, Line: t.line}
		return nil
	case tokSymbol:
		p.fixups = append(p.fixups, func() error {
			if v, ok := fs.values[t.text]; ok {
				*slot = v
				return nil
			}
			if g, ok := p.globals[t.text]; ok {
				*slot = g
				return nil
			}
			return parseErrorf(t.line, "undefined value %s", t.text)
		})
		return nil
	case tokWord:
		if t.text == "undef" {
			*slot = &Value{Kind: &Undef{}, Line: t.line}
			return nil
		}
	}
	return parseErrorf(t.line, "expected operand, got %q", t.text)
}

func (p *parser) blockRef(fs *funcScope, slot **BasicBlock) error {
	t, err := p.expectSymbol("%")
	if err != nil {
		return err
	}
	p.fixups = append(p.fixups, func() error {
		bb, ok := fs.blocks[t.text]
		if !ok {
			return parseErrorf(t.line, "undefined block %s", t.text)
		}
		*slot = bb
		return nil
	})
	return nil
}
