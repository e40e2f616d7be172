package interp

import (
	"github.com/ppiankov/pywiz/internal/lang"
)

func (ip *Interpreter) eval(f *Frame, e lang.Expr) (Value, error) {
	switch e := e.(type) {
	case *lang.Name:
		return ip.lookup(f, e.ID)

	case *lang.Const:
		return fromConst(e.Value), nil

	case *lang.ListExpr:
		items, err := ip.evalAll(f, e.Elts)
		if err != nil {
			return None, err
		}
		return NewList(items), nil

	case *lang.TupleExpr:
		items, err := ip.evalAll(f, e.Elts)
		if err != nil {
			return None, err
		}
		return Tuple(items), nil

	case *lang.SetExpr:
		items, err := ip.evalAll(f, e.Elts)
		if err != nil {
			return None, err
		}
		s := NewSet()
		for _, x := range items {
			if err := s.AsDict().Set(x, None); err != nil {
				return None, err
			}
		}
		return s, nil

	case *lang.DictExpr:
		d := NewDict()
		for i := range e.Keys {
			k, err := ip.eval(f, e.Keys[i])
			if err != nil {
				return None, err
			}
			v, err := ip.eval(f, e.Values[i])
			if err != nil {
				return None, err
			}
			if err := d.AsDict().Set(k, v); err != nil {
				return None, err
			}
		}
		return d, nil

	case *lang.BinOp:
		l, err := ip.eval(f, e.Left)
		if err != nil {
			return None, err
		}
		r, err := ip.eval(f, e.Right)
		if err != nil {
			return None, err
		}
		return binary(e.Op, l, r)

	case *lang.UnaryOp:
		v, err := ip.eval(f, e.Operand)
		if err != nil {
			return None, err
		}
		return unary(e.Op, v)

	case *lang.BoolOp:
		var v Value
		for _, x := range e.Values {
			var err error
			if v, err = ip.eval(f, x); err != nil {
				return None, err
			}
			if Truthy(v) == (e.Op == "or") {
				return v, nil
			}
		}
		return v, nil

	case *lang.Compare:
		left, err := ip.eval(f, e.Left)
		if err != nil {
			return None, err
		}
		for i, op := range e.Ops {
			right, err := ip.eval(f, e.Comparators[i])
			if err != nil {
				return None, err
			}
			ok, err := compare(op, left, right)
			if err != nil {
				return None, err
			}
			if !ok {
				return Bool(false), nil
			}
			left = right
		}
		return Bool(true), nil

	case *lang.IfExp:
		c, err := ip.eval(f, e.Cond)
		if err != nil {
			return None, err
		}
		if Truthy(c) {
			return ip.eval(f, e.Body)
		}
		return ip.eval(f, e.Else)

	case *lang.Call:
		return ip.evalCall(f, e)

	case *lang.Attribute:
		v, err := ip.eval(f, e.Value)
		if err != nil {
			return None, err
		}
		return getAttr(v, e.Attr)

	case *lang.Subscript:
		v, err := ip.eval(f, e.Value)
		if err != nil {
			return None, err
		}
		if sl, ok := e.Index.(*lang.Slice); ok {
			return ip.evalSlice(f, v, sl)
		}
		idx, err := ip.eval(f, e.Index)
		if err != nil {
			return None, err
		}
		return getItem(v, idx)

	case *lang.ListComp:
		return ip.evalListComp(f, e)
	}
	return None, NewException("RuntimeError", "unsupported expression %T", e)
}

func (ip *Interpreter) evalAll(f *Frame, xs []lang.Expr) ([]Value, error) {
	out := make([]Value, 0, len(xs))
	for _, x := range xs {
		v, err := ip.eval(f, x)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (ip *Interpreter) evalCall(f *Frame, e *lang.Call) (Value, error) {
	callee, err := ip.eval(f, e.Func)
	if err != nil {
		return None, err
	}
	args, err := ip.evalAll(f, e.Args)
	if err != nil {
		return None, err
	}
	var kwargs Kwargs
	for _, kw := range e.Keywords {
		v, err := ip.eval(f, kw.Value)
		if err != nil {
			return None, err
		}
		kwargs = append(kwargs, Kwarg{Name: kw.Name, Value: v})
	}
	return ip.Call(callee, args, kwargs)
}

func (ip *Interpreter) evalSlice(f *Frame, v Value, sl *lang.Slice) (Value, error) {
	bound := func(x lang.Expr) (*int64, error) {
		if x == nil {
			return nil, nil
		}
		b, err := ip.eval(f, x)
		if err != nil {
			return nil, err
		}
		if b.Kind == KindNone {
			return nil, nil
		}
		n, ok := toIndex(b)
		if !ok {
			return nil, NewException("TypeError", "slice indices must be integers or None")
		}
		return &n, nil
	}
	lo, err := bound(sl.Lower)
	if err != nil {
		return None, err
	}
	hi, err := bound(sl.Upper)
	if err != nil {
		return None, err
	}
	step, err := bound(sl.Step)
	if err != nil {
		return None, err
	}
	return slice(v, lo, hi, step)
}

// evalListComp runs the generators in scopes private to the comprehension,
// so loop variables never leak into the enclosing frame.
func (ip *Interpreter) evalListComp(f *Frame, e *lang.ListComp) (Value, error) {
	var out []Value
	f.comps = append(f.comps, NewScope())
	defer func() { f.comps = f.comps[:len(f.comps)-1] }()

	var run func(level int) error
	run = func(level int) error {
		if level == len(e.Generators) {
			v, err := ip.eval(f, e.Elt)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		}
		gen := e.Generators[level]
		iterable, err := ip.eval(f, gen.Iter)
		if err != nil {
			return err
		}
		next, err := iterate(iterable)
		if err != nil {
			return err
		}
	items:
		for {
			item, ok, err := next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := ip.assign(f, gen.Target, item); err != nil {
				return err
			}
			for _, cond := range gen.Ifs {
				c, err := ip.eval(f, cond)
				if err != nil {
					return err
				}
				if !Truthy(c) {
					continue items
				}
			}
			if err := run(level + 1); err != nil {
				return err
			}
		}
	}
	if err := run(0); err != nil {
		return None, err
	}
	return NewList(out), nil
}
