package lang

import (
	"fmt"
	"strings"
)

// bailout carries a CompileError out of the recursive descent.
type bailout struct{ err *CompileError }

type scope struct {
	assigned map[string]bool
	globals  map[string]bool
}

type parser struct {
	toks  []Token
	pos   int
	loops int
	funcs int
	scope *scope // nil at module level
}

// Parse compiles source text into a Module. Input that ends inside
// brackets is still parsed, so an error before the end is reported where
// it occurs rather than at the end of input.
func Parse(src string) (mod *Module, err error) {
	lx, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: lx.tokens}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			mod, err = nil, b.err
			if lx.unclosed != nil && p.pos >= lx.tail {
				err = neverClosed(*lx.unclosed)
			}
		}
	}()

	mod = &Module{}
	for !p.at(EOF) {
		if p.at(NEWLINE) {
			p.next()
			continue
		}
		mod.Body = append(mod.Body, p.statement()...)
	}
	if lx.unclosed != nil {
		return nil, neverClosed(*lx.unclosed)
	}
	return mod, nil
}

/* ---- token helpers ---- */

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) peekAt(off int) Token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+off]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Type != EOF {
		p.pos++
	}
	return t
}

func (p *parser) at(t TokenType) bool { return p.peek().Type == t }

func (p *parser) atOp(op string) bool {
	t := p.peek()
	return t.Type == OP && t.Lexeme == op
}

func (p *parser) atKw(kw string) bool {
	t := p.peek()
	return t.Type == KEYWORD && t.Lexeme == kw
}

func (p *parser) fail(err *CompileError) {
	panic(bailout{err})
}

func (p *parser) errorAt(t Token, format string, args ...any) {
	p.fail(syntaxErrorf(t.Line, t.Col, format, args...))
}

func (p *parser) unexpected(t Token) {
	switch t.Type {
	case EOF:
		p.errorAt(t, "unexpected end of input")
	case INDENT:
		p.fail(indentErrorf(t.Line, t.Col, "unexpected indent"))
	case DEDENT:
		p.fail(indentErrorf(t.Line, t.Col, "unexpected unindent"))
	case NEWLINE:
		p.errorAt(t, "invalid syntax: unexpected end of line")
	}
	p.errorAt(t, "invalid syntax: unexpected %s %q", t.Type, t.Lexeme)
}

func (p *parser) expect(t TokenType) Token {
	if !p.at(t) {
		if t == INDENT {
			tok := p.peek()
			p.fail(indentErrorf(tok.Line, tok.Col, "expected an indented block"))
		}
		p.unexpected(p.peek())
	}
	return p.next()
}

func (p *parser) expectOp(op string) Token {
	if !p.atOp(op) {
		t := p.peek()
		if t.Type == EOF || t.Type == NEWLINE {
			p.errorAt(t, "expected '%s'", op)
		}
		p.errorAt(t, "expected '%s', found %q", op, t.Lexeme)
	}
	return p.next()
}

func (p *parser) expectKw(kw string) Token {
	if !p.atKw(kw) {
		p.errorAt(p.peek(), "expected '%s'", kw)
	}
	return p.next()
}

func (p *parser) expectName() Token {
	if !p.at(NAME) {
		p.errorAt(p.peek(), "expected a name")
	}
	return p.next()
}

func pos(t Token) Pos { return Pos{Line: t.Line, Col: t.Col} }

/* ---- statements ---- */

func (p *parser) statement() []Stmt {
	t := p.peek()
	if t.Type == KEYWORD {
		switch t.Lexeme {
		case "if":
			p.next()
			return []Stmt{p.ifRest(t)}
		case "while":
			return []Stmt{p.whileStmt()}
		case "for":
			return []Stmt{p.forStmt()}
		case "def":
			return []Stmt{p.defStmt()}
		case "try":
			return []Stmt{p.tryStmt()}
		}
	}
	if t.Type == INDENT || t.Type == DEDENT {
		p.unexpected(t)
	}
	return p.simpleStatements()
}

func (p *parser) simpleStatements() []Stmt {
	var out []Stmt
	for {
		out = append(out, p.smallStmt())
		if !p.atOp(";") {
			break
		}
		p.next()
		if p.at(NEWLINE) {
			break
		}
	}
	p.expect(NEWLINE)
	return out
}

func (p *parser) block() []Stmt {
	p.expectOp(":")
	if !p.at(NEWLINE) {
		return p.simpleStatements()
	}
	p.next()
	p.expect(INDENT)
	var body []Stmt
	for !p.at(DEDENT) && !p.at(EOF) {
		body = append(body, p.statement()...)
	}
	p.expect(DEDENT)
	return body
}

func (p *parser) ifRest(kw Token) Stmt {
	node := &If{Pos: pos(kw), Cond: p.expr()}
	node.Body = p.block()
	switch {
	case p.atKw("elif"):
		elif := p.next()
		node.Else = []Stmt{p.ifRest(elif)}
	case p.atKw("else"):
		p.next()
		node.Else = p.block()
	}
	return node
}

func (p *parser) whileStmt() Stmt {
	kw := p.next()
	node := &While{Pos: pos(kw), Cond: p.expr()}
	p.loops++
	node.Body = p.block()
	p.loops--
	if p.atKw("else") {
		p.errorAt(p.peek(), "'else' clause on loops is not supported")
	}
	return node
}

func (p *parser) forStmt() Stmt {
	kw := p.next()
	target := p.targetList()
	p.assignTarget(target)
	p.expectKw("in")
	node := &For{Pos: pos(kw), Target: target, Iter: p.testList()}
	p.loops++
	node.Body = p.block()
	p.loops--
	if p.atKw("else") {
		p.errorAt(p.peek(), "'else' clause on loops is not supported")
	}
	return node
}

func (p *parser) defStmt() Stmt {
	kw := p.next()
	name := p.expectName()
	p.declare(name.Lexeme)

	fn := &FunctionDef{Pos: pos(kw), Name: name.Lexeme}
	p.params(fn)

	outer, outerLoops := p.scope, p.loops
	p.scope = &scope{assigned: map[string]bool{}, globals: map[string]bool{}}
	p.loops = 0
	p.funcs++
	for _, prm := range fn.Params {
		p.declare(prm.Name)
	}
	for _, prm := range fn.KwOnly {
		p.declare(prm.Name)
	}
	if fn.VarArg != "" {
		p.declare(fn.VarArg)
	}
	if fn.KwArg != "" {
		p.declare(fn.KwArg)
	}

	fn.Body = p.block()

	fn.Locals = map[string]bool{}
	for n := range p.scope.assigned {
		if !p.scope.globals[n] {
			fn.Locals[n] = true
		}
	}
	fn.Globals = p.scope.globals
	p.scope, p.loops = outer, outerLoops
	p.funcs--
	return fn
}

func (p *parser) params(fn *FunctionDef) {
	p.expectOp("(")
	seen := map[string]bool{}
	check := func(t Token) string {
		if seen[t.Lexeme] {
			p.errorAt(t, "duplicate argument '%s' in function definition", t.Lexeme)
		}
		seen[t.Lexeme] = true
		return t.Lexeme
	}

	kwOnly := false
	sawDefault := false
	for !p.atOp(")") {
		switch {
		case p.atOp("**"):
			p.next()
			fn.KwArg = check(p.expectName())
			if p.atOp(",") {
				p.next()
			}
			if !p.atOp(")") {
				p.errorAt(p.peek(), "arguments cannot follow var-keyword argument")
			}
			continue
		case p.atOp("*"):
			p.next()
			if kwOnly {
				p.errorAt(p.peek(), "* argument may appear only once")
			}
			kwOnly = true
			if p.at(NAME) {
				fn.VarArg = check(p.next())
			}
		default:
			prm := Param{Name: check(p.expectName())}
			if p.atOp("=") {
				p.next()
				prm.Default = p.expr()
			}
			if kwOnly {
				fn.KwOnly = append(fn.KwOnly, prm)
			} else {
				if prm.Default != nil {
					sawDefault = true
				} else if sawDefault {
					p.errorAt(p.peek(), "non-default argument follows default argument")
				}
				fn.Params = append(fn.Params, prm)
			}
		}
		if !p.atOp(",") {
			break
		}
		p.next()
	}
	p.expectOp(")")
}

func (p *parser) tryStmt() Stmt {
	kw := p.next()
	node := &Try{Pos: pos(kw), Body: p.block()}
	for p.atKw("except") {
		ek := p.next()
		h := ExceptHandler{Pos: pos(ek)}
		if len(node.Handlers) > 0 && node.Handlers[len(node.Handlers)-1].Type == "" {
			p.errorAt(ek, "default 'except:' must be last")
		}
		if p.at(NAME) {
			h.Type = p.next().Lexeme
			if p.atKw("as") {
				p.next()
				h.Name = p.expectName().Lexeme
				p.declare(h.Name)
			}
		}
		h.Body = p.block()
		node.Handlers = append(node.Handlers, h)
	}
	if len(node.Handlers) == 0 {
		p.errorAt(p.peek(), "expected 'except' block")
	}
	return node
}

var augOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%", "**=": "**",
}

func (p *parser) smallStmt() Stmt {
	t := p.peek()
	if t.Type == KEYWORD {
		switch t.Lexeme {
		case "pass":
			p.next()
			return &Pass{Pos: pos(t)}
		case "break":
			p.next()
			if p.loops == 0 {
				p.errorAt(t, "'break' outside loop")
			}
			return &Break{Pos: pos(t)}
		case "continue":
			p.next()
			if p.loops == 0 {
				p.errorAt(t, "'continue' not properly in loop")
			}
			return &Continue{Pos: pos(t)}
		case "return":
			p.next()
			if p.funcs == 0 {
				p.errorAt(t, "'return' outside function")
			}
			node := &Return{Pos: pos(t)}
			if p.startsExpr() {
				node.Value = p.testList()
			}
			return node
		case "global":
			p.next()
			node := &Global{Pos: pos(t)}
			for {
				n := p.expectName().Lexeme
				node.Names = append(node.Names, n)
				if p.scope != nil {
					p.scope.globals[n] = true
				}
				if !p.atOp(",") {
					break
				}
				p.next()
			}
			return node
		case "raise":
			p.next()
			node := &Raise{Pos: pos(t)}
			if p.startsExpr() {
				node.Exc = p.expr()
			}
			return node
		}
	}

	first := p.testList()
	if op := p.peek(); op.Type == OP {
		if bin, ok := augOps[op.Lexeme]; ok {
			p.next()
			switch first.(type) {
			case *Name, *Subscript:
			default:
				p.errorAt(t, "illegal expression for augmented assignment")
			}
			p.assignTarget(first)
			return &AugAssign{Pos: pos(t), Target: first, Op: bin, Value: p.testList()}
		}
	}
	if !p.atOp("=") {
		return &ExprStmt{Pos: pos(t), X: first}
	}

	node := &Assign{Pos: pos(t)}
	value := first
	for p.atOp("=") {
		p.next()
		node.Targets = append(node.Targets, value)
		value = p.testList()
	}
	for _, target := range node.Targets {
		p.assignTarget(target)
	}
	node.Value = value
	return node
}

// assignTarget validates an assignment target and records the names it binds.
func (p *parser) assignTarget(e Expr) {
	switch x := e.(type) {
	case *Name:
		p.declare(x.ID)
	case *Subscript:
	case *TupleExpr:
		for _, el := range x.Elts {
			p.assignTarget(el)
		}
	case *ListExpr:
		for _, el := range x.Elts {
			p.assignTarget(el)
		}
	default:
		at := e.Position()
		p.fail(syntaxErrorf(at.Line, at.Col, "cannot assign to %s", describe(e)))
	}
}

func (p *parser) declare(name string) {
	if p.scope != nil {
		p.scope.assigned[name] = true
	}
}

func describe(e Expr) string {
	switch e.(type) {
	case *Const:
		return "literal"
	case *Call:
		return "function call"
	case *Attribute:
		return "attribute"
	case *BinOp, *UnaryOp:
		return "expression"
	case *Compare:
		return "comparison"
	case *BoolOp:
		return "boolean operation"
	case *ListComp:
		return "list comprehension"
	case *DictExpr:
		return "dict literal"
	case *SetExpr:
		return "set literal"
	case *IfExp:
		return "conditional expression"
	}
	return "expression"
}

/* ---- expressions ---- */

func (p *parser) startsExpr() bool {
	t := p.peek()
	switch t.Type {
	case NAME, INT, FLOAT, STRING:
		return true
	case KEYWORD:
		return t.Lexeme == "not" || t.Lexeme == "True" || t.Lexeme == "False" || t.Lexeme == "None"
	case OP:
		return strings.Contains("([{-+", t.Lexeme) && len(t.Lexeme) == 1
	}
	return false
}

// testList parses "a" or "a, b, ..." (an unparenthesized tuple).
func (p *parser) testList() Expr {
	first := p.expr()
	if !p.atOp(",") {
		return first
	}
	tup := &TupleExpr{Pos: first.Position(), Elts: []Expr{first}}
	for p.atOp(",") {
		p.next()
		if !p.startsExpr() {
			break
		}
		tup.Elts = append(tup.Elts, p.expr())
	}
	return tup
}

// targetList parses loop targets, which stop before comparison operators so
// that "in" is left for the for statement.
func (p *parser) targetList() Expr {
	first := p.arith()
	if !p.atOp(",") {
		return first
	}
	tup := &TupleExpr{Pos: first.Position(), Elts: []Expr{first}}
	for p.atOp(",") {
		p.next()
		if p.atKw("in") {
			break
		}
		tup.Elts = append(tup.Elts, p.arith())
	}
	return tup
}

func (p *parser) expr() Expr {
	body := p.orTest()
	if !p.atKw("if") {
		return body
	}
	p.next()
	cond := p.orTest()
	p.expectKw("else")
	return &IfExp{Pos: body.Position(), Cond: cond, Body: body, Else: p.expr()}
}

func (p *parser) orTest() Expr {
	left := p.andTest()
	if !p.atKw("or") {
		return left
	}
	node := &BoolOp{Pos: left.Position(), Op: "or", Values: []Expr{left}}
	for p.atKw("or") {
		p.next()
		node.Values = append(node.Values, p.andTest())
	}
	return node
}

func (p *parser) andTest() Expr {
	left := p.notTest()
	if !p.atKw("and") {
		return left
	}
	node := &BoolOp{Pos: left.Position(), Op: "and", Values: []Expr{left}}
	for p.atKw("and") {
		p.next()
		node.Values = append(node.Values, p.notTest())
	}
	return node
}

func (p *parser) notTest() Expr {
	if p.atKw("not") {
		t := p.next()
		return &UnaryOp{Pos: pos(t), Op: "not", Operand: p.notTest()}
	}
	return p.comparison()
}

func (p *parser) compOp() (string, bool) {
	t := p.peek()
	switch {
	case t.Type == OP:
		switch t.Lexeme {
		case "<", ">", "==", ">=", "<=", "!=":
			p.next()
			return t.Lexeme, true
		}
	case t.Type == KEYWORD && t.Lexeme == "in":
		p.next()
		return "in", true
	case t.Type == KEYWORD && t.Lexeme == "not":
		if n := p.peekAt(1); n.Type == KEYWORD && n.Lexeme == "in" {
			p.next()
			p.next()
			return "not in", true
		}
	case t.Type == KEYWORD && t.Lexeme == "is":
		p.next()
		if p.atKw("not") {
			p.next()
			return "is not", true
		}
		return "is", true
	}
	return "", false
}

func (p *parser) comparison() Expr {
	left := p.arith()
	var node *Compare
	for {
		op, ok := p.compOp()
		if !ok {
			break
		}
		if node == nil {
			node = &Compare{Pos: left.Position(), Left: left}
		}
		node.Ops = append(node.Ops, op)
		node.Comparators = append(node.Comparators, p.arith())
	}
	if node == nil {
		return left
	}
	return node
}

func (p *parser) arith() Expr {
	left := p.term()
	for p.atOp("+") || p.atOp("-") {
		op := p.next()
		left = &BinOp{Pos: pos(op), Op: op.Lexeme, Left: left, Right: p.term()}
	}
	return left
}

func (p *parser) term() Expr {
	left := p.factor()
	for p.atOp("*") || p.atOp("/") || p.atOp("//") || p.atOp("%") {
		op := p.next()
		left = &BinOp{Pos: pos(op), Op: op.Lexeme, Left: left, Right: p.factor()}
	}
	return left
}

func (p *parser) factor() Expr {
	if p.atOp("-") || p.atOp("+") {
		op := p.next()
		return &UnaryOp{Pos: pos(op), Op: op.Lexeme, Operand: p.factor()}
	}
	return p.power()
}

func (p *parser) power() Expr {
	base := p.primary()
	if p.atOp("**") {
		op := p.next()
		return &BinOp{Pos: pos(op), Op: "**", Left: base, Right: p.factor()}
	}
	return base
}

func (p *parser) primary() Expr {
	e := p.atom()
	for {
		switch {
		case p.atOp("("):
			open := p.next()
			e = p.callArgs(e, open)
		case p.atOp("["):
			open := p.next()
			idx := p.subscriptIndex()
			p.expectOp("]")
			e = &Subscript{Pos: pos(open), Value: e, Index: idx}
		case p.atOp("."):
			p.next()
			name := p.expectName()
			e = &Attribute{Pos: pos(name), Value: e, Attr: name.Lexeme}
		default:
			return e
		}
	}
}

func (p *parser) callArgs(fn Expr, open Token) Expr {
	call := &Call{Pos: pos(open), Func: fn}
	for !p.atOp(")") {
		if p.at(NAME) && p.peekAt(1).Type == OP && p.peekAt(1).Lexeme == "=" {
			name := p.next()
			p.next()
			for _, kw := range call.Keywords {
				if kw.Name == name.Lexeme {
					p.errorAt(name, "keyword argument repeated: %s", name.Lexeme)
				}
			}
			call.Keywords = append(call.Keywords, Keyword{Name: name.Lexeme, Value: p.expr()})
		} else {
			if len(call.Keywords) > 0 {
				p.errorAt(p.peek(), "positional argument follows keyword argument")
			}
			arg := p.expr()
			if p.atKw("for") {
				arg = p.comprehension(arg)
			}
			call.Args = append(call.Args, arg)
		}
		if !p.atOp(",") {
			break
		}
		p.next()
	}
	p.expectOp(")")
	return call
}

func (p *parser) subscriptIndex() Expr {
	start := p.peek()
	var lower Expr
	if !p.atOp(":") {
		lower = p.expr()
		if !p.atOp(":") {
			return lower
		}
	}
	s := &Slice{Pos: pos(start), Lower: lower}
	p.expectOp(":")
	if !p.atOp(":") && !p.atOp("]") {
		s.Upper = p.expr()
	}
	if p.atOp(":") {
		p.next()
		if !p.atOp("]") {
			s.Step = p.expr()
		}
	}
	return s
}

func (p *parser) comprehension(elt Expr) Expr {
	lc := &ListComp{Pos: elt.Position(), Elt: elt}
	for p.atKw("for") {
		p.next()
		gen := Comprehension{Target: p.targetList()}
		p.validateCompTarget(gen.Target)
		p.expectKw("in")
		gen.Iter = p.orTest()
		for p.atKw("if") {
			p.next()
			gen.Ifs = append(gen.Ifs, p.orTest())
		}
		lc.Generators = append(lc.Generators, gen)
	}
	return lc
}

func (p *parser) validateCompTarget(e Expr) {
	switch x := e.(type) {
	case *Name:
	case *TupleExpr:
		for _, el := range x.Elts {
			p.validateCompTarget(el)
		}
	default:
		at := e.Position()
		p.fail(syntaxErrorf(at.Line, at.Col, "cannot assign to %s", describe(e)))
	}
}

func (p *parser) atom() Expr {
	t := p.peek()
	switch t.Type {
	case NAME:
		p.next()
		return &Name{Pos: pos(t), ID: t.Lexeme}
	case INT, FLOAT:
		p.next()
		return &Const{Pos: pos(t), Value: t.Literal}
	case STRING:
		var b strings.Builder
		for p.at(STRING) {
			b.WriteString(p.next().Literal.(string))
		}
		return &Const{Pos: pos(t), Value: b.String()}
	case KEYWORD:
		switch t.Lexeme {
		case "True":
			p.next()
			return &Const{Pos: pos(t), Value: true}
		case "False":
			p.next()
			return &Const{Pos: pos(t), Value: false}
		case "None":
			p.next()
			return &Const{Pos: pos(t), Value: nil}
		}
	case OP:
		switch t.Lexeme {
		case "(":
			return p.parenAtom()
		case "[":
			return p.listAtom()
		case "{":
			return p.braceAtom()
		}
	}
	p.unexpected(t)
	return nil
}

func (p *parser) parenAtom() Expr {
	open := p.next()
	if p.atOp(")") {
		p.next()
		return &TupleExpr{Pos: pos(open)}
	}
	first := p.expr()
	if p.atKw("for") {
		lc := p.comprehension(first)
		p.expectOp(")")
		return lc
	}
	if !p.atOp(",") {
		p.expectOp(")")
		return first
	}
	tup := &TupleExpr{Pos: pos(open), Elts: []Expr{first}}
	for p.atOp(",") {
		p.next()
		if p.atOp(")") {
			break
		}
		tup.Elts = append(tup.Elts, p.expr())
	}
	p.expectOp(")")
	return tup
}

func (p *parser) listAtom() Expr {
	open := p.next()
	list := &ListExpr{Pos: pos(open)}
	if p.atOp("]") {
		p.next()
		return list
	}
	first := p.expr()
	if p.atKw("for") {
		lc := p.comprehension(first)
		lc.(*ListComp).Pos = pos(open)
		p.expectOp("]")
		return lc
	}
	list.Elts = append(list.Elts, first)
	for p.atOp(",") {
		p.next()
		if p.atOp("]") {
			break
		}
		list.Elts = append(list.Elts, p.expr())
	}
	p.expectOp("]")
	return list
}

func (p *parser) braceAtom() Expr {
	open := p.next()
	if p.atOp("}") {
		p.next()
		return &DictExpr{Pos: pos(open)}
	}
	first := p.expr()
	if p.atKw("for") {
		p.errorAt(p.peek(), "set and dict comprehensions are not supported")
	}
	if !p.atOp(":") {
		set := &SetExpr{Pos: pos(open), Elts: []Expr{first}}
		for p.atOp(",") {
			p.next()
			if p.atOp("}") {
				break
			}
			set.Elts = append(set.Elts, p.expr())
		}
		p.expectOp("}")
		return set
	}

	dict := &DictExpr{Pos: pos(open)}
	p.next()
	dict.Keys = append(dict.Keys, first)
	dict.Values = append(dict.Values, p.expr())
	for p.atOp(",") {
		p.next()
		if p.atOp("}") {
			break
		}
		dict.Keys = append(dict.Keys, p.expr())
		p.expectOp(":")
		dict.Values = append(dict.Values, p.expr())
	}
	p.expectOp("}")
	return dict
}

// String renders a token for diagnostics.
func (t Token) String() string {
	if t.Lexeme == "" {
		return t.Type.String()
	}
	return fmt.Sprintf("%s %q", t.Type, t.Lexeme)
}
