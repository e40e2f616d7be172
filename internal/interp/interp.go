// Package interp evaluates parsed programs and reports execution to a Hook.
//
// Execution is single-threaded and synchronous: the hook runs inline before
// each statement, on function entry and exit, and while exceptions unwind.
package interp

import (
	"github.com/ppiankov/pywiz/internal/lang"
)

// DefaultMaxCallDepth bounds nested user function calls.
const DefaultMaxCallDepth = 1000

// Options configures an Interpreter.
type Options struct {
	Hook         Hook
	MaxCallDepth int
}

// Interpreter runs one program against a fixed set of primitives.
type Interpreter struct {
	globals    *Scope
	primitives map[string]Value
	hook       Hook
	maxDepth   int

	frame  *Frame // currently executing activation
	depth  int    // user function activations on the stack
	active []*Exception
}

// New creates an interpreter whose programs may reach only the given
// primitives besides their own definitions.
func New(primitives map[string]Value, opts Options) *Interpreter {
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	return &Interpreter{
		globals:    NewScope(),
		primitives: primitives,
		hook:       opts.Hook,
		maxDepth:   opts.MaxCallDepth,
	}
}

// Globals exposes the module namespace.
func (ip *Interpreter) Globals() *Scope { return ip.globals }

// Run executes a module. It returns nil on normal completion, the
// *Exception that escaped the module body, or the error that aborted the
// run (a hook error).
func (ip *Interpreter) Run(mod *lang.Module) error {
	ip.globals.Set("__name__", Str("__main__"))
	f := &Frame{Func: "<module>", FirstLine: 1, Line: 1, Locals: ip.globals, Traced: true, Module: true}
	prev := ip.frame
	ip.frame = f
	defer func() { ip.frame = prev }()

	_, err := ip.execBlock(f, mod.Body)
	return err
}

type flow int

const (
	flowNormal flow = iota
	flowBreak
	flowContinue
	flowReturn
)

func (ip *Interpreter) emit(ev Event) error {
	if ip.hook == nil {
		return nil
	}
	return ip.hook.Step(ev)
}

// line moves f to a new line and announces it.
func (ip *Interpreter) line(f *Frame, n int) error {
	f.Line = n
	return ip.emit(Event{Kind: EventLine, Frame: f})
}

// unwind announces an exception passing through f, once per frame.
func (ip *Interpreter) unwind(f *Frame, err error) error {
	exc, ok := err.(*Exception)
	if !ok || exc.reported == f {
		return err
	}
	exc.reported = f
	if herr := ip.emit(Event{Kind: EventException, Frame: f, Exc: exc}); herr != nil {
		return herr
	}
	return exc
}

func (ip *Interpreter) execBlock(f *Frame, body []lang.Stmt) (flow, error) {
	for _, s := range body {
		if err := ip.line(f, s.Position().Line); err != nil {
			return flowNormal, err
		}
		fl, err := ip.exec(f, s)
		if err != nil {
			return flowNormal, ip.unwind(f, err)
		}
		if fl != flowNormal {
			return fl, nil
		}
	}
	return flowNormal, nil
}

func (ip *Interpreter) exec(f *Frame, s lang.Stmt) (flow, error) {
	switch s := s.(type) {
	case *lang.ExprStmt:
		_, err := ip.eval(f, s.X)
		return flowNormal, err

	case *lang.Assign:
		v, err := ip.eval(f, s.Value)
		if err != nil {
			return flowNormal, err
		}
		for _, t := range s.Targets {
			if err := ip.assign(f, t, v); err != nil {
				return flowNormal, err
			}
		}
		return flowNormal, nil

	case *lang.AugAssign:
		return flowNormal, ip.augAssign(f, s)

	case *lang.If:
		c, err := ip.eval(f, s.Cond)
		if err != nil {
			return flowNormal, err
		}
		if Truthy(c) {
			return ip.execBlock(f, s.Body)
		}
		return ip.execBlock(f, s.Else)

	case *lang.While:
		return ip.execWhile(f, s)

	case *lang.For:
		return ip.execFor(f, s)

	case *lang.Break:
		return flowBreak, nil
	case *lang.Continue:
		return flowContinue, nil
	case *lang.Pass, *lang.Global:
		return flowNormal, nil

	case *lang.Return:
		f.ret = None
		if s.Value != nil {
			v, err := ip.eval(f, s.Value)
			if err != nil {
				return flowNormal, err
			}
			f.ret = v
		}
		return flowReturn, nil

	case *lang.Raise:
		return flowNormal, ip.raise(f, s)

	case *lang.Try:
		return ip.execTry(f, s)

	case *lang.FunctionDef:
		fn, err := ip.define(f, s)
		if err != nil {
			return flowNormal, err
		}
		return flowNormal, ip.bind(f, s.Name, Value{Kind: KindFunction, Data: fn})
	}
	return flowNormal, NewException("RuntimeError", "unsupported statement %T", s)
}

func (ip *Interpreter) execWhile(f *Frame, s *lang.While) (flow, error) {
	for {
		c, err := ip.eval(f, s.Cond)
		if err != nil {
			return flowNormal, err
		}
		if !Truthy(c) {
			return flowNormal, nil
		}
		fl, err := ip.execBlock(f, s.Body)
		if err != nil {
			return flowNormal, err
		}
		switch fl {
		case flowBreak:
			return flowNormal, nil
		case flowReturn:
			return fl, nil
		}
		// the condition is re-evaluated on the header line
		if err := ip.line(f, s.Line); err != nil {
			return flowNormal, err
		}
	}
}

func (ip *Interpreter) execFor(f *Frame, s *lang.For) (flow, error) {
	iterable, err := ip.eval(f, s.Iter)
	if err != nil {
		return flowNormal, err
	}
	next, err := iterate(iterable)
	if err != nil {
		return flowNormal, err
	}
	for first := true; ; first = false {
		if !first {
			if err := ip.line(f, s.Line); err != nil {
				return flowNormal, err
			}
		}
		item, ok, err := next()
		if err != nil {
			return flowNormal, err
		}
		if !ok {
			return flowNormal, nil
		}
		if err := ip.assign(f, s.Target, item); err != nil {
			return flowNormal, err
		}
		fl, err := ip.execBlock(f, s.Body)
		if err != nil {
			return flowNormal, err
		}
		switch fl {
		case flowBreak:
			return flowNormal, nil
		case flowReturn:
			return fl, nil
		}
	}
}

func (ip *Interpreter) raise(f *Frame, s *lang.Raise) error {
	if s.Exc == nil {
		if len(ip.active) == 0 {
			return NewException("RuntimeError", "No active exception to reraise")
		}
		exc := ip.active[len(ip.active)-1]
		exc.reported = nil
		return exc
	}
	v, err := ip.eval(f, s.Exc)
	if err != nil {
		return err
	}
	switch v.Kind {
	case KindClass:
		return instantiate(v.Data.(*Class), nil)
	case KindException:
		exc := v.Data.(*Exception)
		exc.reported = nil
		return exc
	}
	return NewException("TypeError", "exceptions must derive from BaseException")
}

func (ip *Interpreter) execTry(f *Frame, s *lang.Try) (flow, error) {
	fl, err := ip.execBlock(f, s.Body)
	exc, ok := err.(*Exception)
	if !ok {
		return fl, err
	}
	for i := range s.Handlers {
		h := &s.Handlers[i]
		if h.Type != "" {
			cv, lerr := ip.lookup(f, h.Type)
			if lerr != nil {
				return flowNormal, lerr
			}
			if cv.Kind != KindClass {
				return flowNormal, NewException("TypeError", "catching classes that do not inherit from BaseException is not allowed")
			}
			if !exc.Class.IsSubclass(cv.Data.(*Class)) {
				continue
			}
		}
		if err := ip.line(f, h.Line); err != nil {
			return flowNormal, err
		}
		if h.Name != "" {
			if err := ip.bind(f, h.Name, Value{Kind: KindException, Data: exc}); err != nil {
				return flowNormal, err
			}
		}
		ip.active = append(ip.active, exc)
		fl, err := ip.execBlock(f, h.Body)
		ip.active = ip.active[:len(ip.active)-1]
		return fl, err
	}
	return flowNormal, exc
}

func (ip *Interpreter) define(f *Frame, def *lang.FunctionDef) (*Function, error) {
	fn := &Function{Def: def, Defaults: map[string]Value{}}
	for _, group := range [][]lang.Param{def.Params, def.KwOnly} {
		for _, p := range group {
			if p.Default == nil {
				continue
			}
			v, err := ip.eval(f, p.Default)
			if err != nil {
				return nil, err
			}
			fn.Defaults[p.Name] = v
		}
	}
	if !f.Module && f.fn != nil {
		fn.closure = &cell{scope: f.Locals, def: f.fn.Def, parent: f.fn.closure}
	}
	return fn, nil
}

/* ---- names ---- */

func (ip *Interpreter) lookup(f *Frame, name string) (Value, error) {
	for i := len(f.comps) - 1; i >= 0; i-- {
		if v, ok := f.comps[i].Get(name); ok {
			return v, nil
		}
	}
	if fn := f.fn; fn != nil && !f.Module {
		def := fn.Def
		if def.Locals[name] {
			if v, ok := f.Locals.Get(name); ok {
				return v, nil
			}
			return None, NewException("UnboundLocalError", "cannot access local variable '%s' where it is not associated with a value", name)
		}
		if !def.Globals[name] {
			for c := fn.closure; c != nil; c = c.parent {
				if !c.def.Locals[name] {
					continue
				}
				if v, ok := c.scope.Get(name); ok {
					return v, nil
				}
				return None, NewException("NameError", "cannot access free variable '%s' where it is not associated with a value in enclosing scope", name)
			}
		}
	}
	if v, ok := ip.globals.Get(name); ok {
		return v, nil
	}
	if v, ok := ip.primitives[name]; ok {
		return v, nil
	}
	return None, NewException("NameError", "name '%s' is not defined", name)
}

func (ip *Interpreter) bind(f *Frame, name string, v Value) error {
	if n := len(f.comps); n > 0 {
		f.comps[n-1].Set(name, v)
		return nil
	}
	if f.Module || (f.fn != nil && f.fn.Def.Globals[name]) {
		ip.globals.Set(name, v)
		return nil
	}
	f.Locals.Set(name, v)
	return nil
}

func (ip *Interpreter) assign(f *Frame, target lang.Expr, v Value) error {
	switch t := target.(type) {
	case *lang.Name:
		return ip.bind(f, t.ID, v)
	case *lang.Subscript:
		container, err := ip.eval(f, t.Value)
		if err != nil {
			return err
		}
		index, err := ip.eval(f, t.Index)
		if err != nil {
			return err
		}
		return setItem(container, index, v)
	case *lang.TupleExpr:
		return ip.unpack(f, t.Elts, v)
	case *lang.ListExpr:
		return ip.unpack(f, t.Elts, v)
	}
	return NewException("TypeError", "cannot assign to expression")
}

func (ip *Interpreter) unpack(f *Frame, targets []lang.Expr, v Value) error {
	items, err := collect(v)
	if err != nil {
		if exc, ok := err.(*Exception); ok && exc.Type == "TypeError" {
			return NewException("TypeError", "cannot unpack non-iterable %s object", v.TypeName())
		}
		return err
	}
	switch {
	case len(items) > len(targets):
		return NewException("ValueError", "too many values to unpack (expected %d)", len(targets))
	case len(items) < len(targets):
		return NewException("ValueError", "not enough values to unpack (expected %d, got %d)", len(targets), len(items))
	}
	for i, t := range targets {
		if err := ip.assign(f, t, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interpreter) augAssign(f *Frame, s *lang.AugAssign) error {
	switch t := s.Target.(type) {
	case *lang.Name:
		cur, err := ip.lookup(f, t.ID)
		if err != nil {
			return err
		}
		rhs, err := ip.eval(f, s.Value)
		if err != nil {
			return err
		}
		v, err := inplace(s.Op, cur, rhs)
		if err != nil {
			return err
		}
		return ip.bind(f, t.ID, v)
	case *lang.Subscript:
		container, err := ip.eval(f, t.Value)
		if err != nil {
			return err
		}
		index, err := ip.eval(f, t.Index)
		if err != nil {
			return err
		}
		cur, err := getItem(container, index)
		if err != nil {
			return err
		}
		rhs, err := ip.eval(f, s.Value)
		if err != nil {
			return err
		}
		v, err := inplace(s.Op, cur, rhs)
		if err != nil {
			return err
		}
		return setItem(container, index, v)
	}
	return NewException("TypeError", "illegal expression for augmented assignment")
}

// inplace applies an augmented operator; list += extends the list in place.
func inplace(op string, cur, rhs Value) (Value, error) {
	if op == "+" && cur.Kind == KindList {
		items, err := collect(rhs)
		if err != nil {
			return None, err
		}
		l := cur.AsList()
		if err := checkLen(int64(len(l.Items)+len(items)), "extended"); err != nil {
			return None, err
		}
		l.Items = append(l.Items, items...)
		return cur, nil
	}
	return binary(op, cur, rhs)
}
