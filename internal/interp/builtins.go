package interp

import (
	"io"
	"math"
	"strconv"
	"strings"
)

// Catalog returns every primitive the interpreter implements, keyed by name.
// print writes to out. Callers choose which subset a program may reach.
func Catalog(out io.Writer) map[string]Value {
	fns := map[string]BuiltinFunc{
		"abs":       builtinAbs,
		"min":       minMax("min", false),
		"max":       minMax("max", true),
		"range":     builtinRange,
		"len":       builtinLen,
		"print":     printTo(out),
		"bool":      builtinBool,
		"int":       builtinInt,
		"float":     builtinFloat,
		"str":       builtinStr,
		"list":      builtinList,
		"dict":      builtinDict,
		"set":       builtinSet,
		"tuple":     builtinTuple,
		"enumerate": builtinEnumerate,
		"zip":       builtinZip,
		"sum":       builtinSum,
		"sorted":    builtinSorted,
		"reversed":  builtinReversed,
		"repr":      builtinRepr,
	}

	cat := make(map[string]Value, len(fns)+len(classes))
	for name, fn := range fns {
		cat[name] = Value{Kind: KindBuiltin, Data: &Builtin{Name: name, Fn: fn}}
	}
	for name, cls := range classes {
		cat[name] = Value{Kind: KindClass, Data: cls}
	}
	return cat
}

func noKwargs(name string, kwargs Kwargs) error {
	if len(kwargs) > 0 {
		return NewException("TypeError", "%s() takes no keyword arguments", name)
	}
	return nil
}

func builtinAbs(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("abs", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	x := args[0]
	if x.Kind == KindFloat {
		return Float(math.Abs(x.AsFloat())), nil
	}
	if n, ok := asInt(x); ok {
		if n == math.MinInt64 {
			return None, overflow()
		}
		if n < 0 {
			n = -n
		}
		return Int(n), nil
	}
	return None, NewException("TypeError", "bad operand type for abs(): '%s'", x.TypeName())
}

func minMax(name string, wantMax bool) BuiltinFunc {
	return func(ip *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
		key := None
		var def *Value
		for _, kw := range kwargs {
			switch kw.Name {
			case "key":
				key = kw.Value
			case "default":
				v := kw.Value
				def = &v
			default:
				return None, NewException("TypeError", "'%s' is an invalid keyword argument for %s()", kw.Name, name)
			}
		}

		var items []Value
		switch len(args) {
		case 0:
			return None, NewException("TypeError", "%s expected at least 1 argument, got 0", name)
		case 1:
			var err error
			if items, err = collect(args[0]); err != nil {
				return None, err
			}
		default:
			if def != nil {
				return None, NewException("TypeError", "Cannot specify a default for %s() with multiple positional arguments", name)
			}
			items = args
		}
		if len(items) == 0 {
			if def != nil {
				return *def, nil
			}
			return None, NewException("ValueError", "%s() iterable argument is empty", name)
		}

		best := items[0]
		bestKey := best
		if key.Kind != KindNone {
			k, err := ip.Call(key, []Value{best}, nil)
			if err != nil {
				return None, err
			}
			bestKey = k
		}
		for _, x := range items[1:] {
			xk := x
			if key.Kind != KindNone {
				k, err := ip.Call(key, []Value{x}, nil)
				if err != nil {
					return None, err
				}
				xk = k
			}
			var better bool
			var err error
			if wantMax {
				better, err = less(bestKey, xk)
			} else {
				better, err = less(xk, bestKey)
			}
			if err != nil {
				return None, err
			}
			if better {
				best, bestKey = x, xk
			}
		}
		return best, nil
	}
}

func intArg(v Value) (int64, error) {
	n, ok := asInt(v)
	if !ok {
		return 0, NewException("TypeError", "'%s' object cannot be interpreted as an integer", v.TypeName())
	}
	return n, nil
}

func builtinRange(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := noKwargs("range", kwargs); err != nil {
		return None, err
	}
	if len(args) == 0 || len(args) > 3 {
		return None, NewException("TypeError", "range expected at most 3 arguments, got %d", len(args))
	}
	ns := make([]int64, len(args))
	for i, a := range args {
		n, err := intArg(a)
		if err != nil {
			return None, err
		}
		ns[i] = n
	}
	r := &Range{Step: 1}
	switch len(ns) {
	case 1:
		r.Stop = ns[0]
	case 2:
		r.Start, r.Stop = ns[0], ns[1]
	case 3:
		r.Start, r.Stop, r.Step = ns[0], ns[1], ns[2]
		if r.Step == 0 {
			return None, NewException("ValueError", "range() arg 3 must not be zero")
		}
	}
	return Value{Kind: KindRange, Data: r}, nil
}

func builtinLen(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("len", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	x := args[0]
	switch x.Kind {
	case KindStr, KindList, KindTuple:
		return Int(int64(seqLen(x))), nil
	case KindDict, KindSet:
		return Int(int64(x.AsDict().Len())), nil
	case KindRange:
		return Int(x.AsRange().Len()), nil
	}
	return None, NewException("TypeError", "object of type '%s' has no len()", x.TypeName())
}

func printTo(out io.Writer) BuiltinFunc {
	return func(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
		sep, end := " ", "\n"
		for _, kw := range kwargs {
			var dst *string
			switch kw.Name {
			case "sep":
				dst = &sep
			case "end":
				dst = &end
			default:
				return None, NewException("TypeError", "'%s' is an invalid keyword argument for print()", kw.Name)
			}
			switch kw.Value.Kind {
			case KindNone:
			case KindStr:
				*dst = kw.Value.AsStr()
			default:
				return None, NewException("TypeError", "%s must be None or a string, not %s", kw.Name, kw.Value.TypeName())
			}
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = StrOf(a)
		}
		if out != nil {
			_, _ = io.WriteString(out, strings.Join(parts, sep)+end)
		}
		return None, nil
	}
}

func builtinBool(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("bool", args, kwargs, 0, 1); err != nil {
		return None, err
	}
	if len(args) == 0 {
		return Bool(false), nil
	}
	return Bool(Truthy(args[0])), nil
}

func builtinInt(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	base := int64(10)
	explicitBase := false
	if b, ok := kwargs.Get("base"); ok {
		n, err := intArg(b)
		if err != nil {
			return None, err
		}
		base, explicitBase = n, true
	}
	for _, kw := range kwargs {
		if kw.Name != "base" {
			return None, NewException("TypeError", "'%s' is an invalid keyword argument for int()", kw.Name)
		}
	}
	if len(args) > 2 {
		return None, NewException("TypeError", "int() takes at most 2 arguments (%d given)", len(args))
	}
	if len(args) == 2 {
		n, err := intArg(args[1])
		if err != nil {
			return None, err
		}
		base, explicitBase = n, true
	}
	if len(args) == 0 {
		return Int(0), nil
	}

	x := args[0]
	if explicitBase && x.Kind != KindStr {
		return None, NewException("TypeError", "int() can't convert non-string with explicit base")
	}
	switch x.Kind {
	case KindInt:
		return x, nil
	case KindBool:
		n, _ := asInt(x)
		return Int(n), nil
	case KindFloat:
		f := x.AsFloat()
		if math.IsNaN(f) {
			return None, NewException("ValueError", "cannot convert float NaN to integer")
		}
		if math.IsInf(f, 0) {
			return None, NewException("OverflowError", "cannot convert float infinity to integer")
		}
		t := math.Trunc(f)
		if t >= math.MaxInt64 || t < math.MinInt64 {
			return None, overflow()
		}
		return Int(int64(t)), nil
	case KindStr:
		if base != 0 && (base < 2 || base > 36) {
			return None, NewException("ValueError", "int() base must be >= 2 and <= 36, or 0")
		}
		s := strings.ReplaceAll(strings.TrimSpace(x.AsStr()), "_", "")
		n, err := strconv.ParseInt(s, int(base), 64)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return None, overflow()
			}
			return None, NewException("ValueError", "invalid literal for int() with base %d: %s", base, Repr(x))
		}
		return Int(n), nil
	}
	return None, NewException("TypeError", "int() argument must be a string, a bytes-like object or a real number, not '%s'", x.TypeName())
}

func builtinFloat(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("float", args, kwargs, 0, 1); err != nil {
		return None, err
	}
	if len(args) == 0 {
		return Float(0), nil
	}
	x := args[0]
	switch x.Kind {
	case KindFloat:
		return x, nil
	case KindInt, KindBool:
		return Float(asFloat(x)), nil
	case KindStr:
		s := strings.ToLower(strings.TrimSpace(x.AsStr()))
		switch strings.TrimLeft(s, "+-") {
		case "inf", "infinity":
			if strings.HasPrefix(s, "-") {
				return Float(math.Inf(-1)), nil
			}
			return Float(math.Inf(1)), nil
		case "nan":
			return Float(math.NaN()), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			err = nil
		}
		if err != nil || strings.Contains(s, "0x") {
			return None, NewException("ValueError", "could not convert string to float: %s", Repr(x))
		}
		return Float(f), nil
	}
	return None, NewException("TypeError", "float() argument must be a string or a real number, not '%s'", x.TypeName())
}

func builtinStr(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("str", args, kwargs, 0, 1); err != nil {
		return None, err
	}
	if len(args) == 0 {
		return Str(""), nil
	}
	return Str(StrOf(args[0])), nil
}

func builtinRepr(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("repr", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	return Str(Repr(args[0])), nil
}

func builtinList(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("list", args, kwargs, 0, 1); err != nil {
		return None, err
	}
	if len(args) == 0 {
		return NewList(nil), nil
	}
	items, err := collect(args[0])
	if err != nil {
		return None, err
	}
	return NewList(items), nil
}

func builtinTuple(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("tuple", args, kwargs, 0, 1); err != nil {
		return None, err
	}
	if len(args) == 0 {
		return Tuple([]Value{}), nil
	}
	if args[0].Kind == KindTuple {
		return args[0], nil
	}
	items, err := collect(args[0])
	if err != nil {
		return None, err
	}
	return Tuple(items), nil
}

func builtinDict(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if len(args) > 1 {
		return None, NewException("TypeError", "dict expected at most 1 argument, got %d", len(args))
	}
	d := NewDict()
	if len(args) == 1 {
		if err := fillDict(d.AsDict(), args[0]); err != nil {
			return None, err
		}
	}
	for _, kw := range kwargs {
		if err := d.AsDict().Set(Str(kw.Name), kw.Value); err != nil {
			return None, err
		}
	}
	return d, nil
}

func builtinSet(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("set", args, kwargs, 0, 1); err != nil {
		return None, err
	}
	s := NewSet()
	if len(args) == 0 {
		return s, nil
	}
	items, err := collect(args[0])
	if err != nil {
		return None, err
	}
	for _, x := range items {
		if err := s.AsDict().Set(x, None); err != nil {
			return None, err
		}
	}
	return s, nil
}

func builtinEnumerate(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	start := int64(0)
	if v, ok := kwargs.Get("start"); ok {
		n, err := intArg(v)
		if err != nil {
			return None, err
		}
		start = n
	}
	if len(args) == 2 {
		n, err := intArg(args[1])
		if err != nil {
			return None, err
		}
		start = n
	}
	if len(args) == 0 || len(args) > 2 {
		return None, NewException("TypeError", "enumerate() takes at most 2 arguments (%d given)", len(args))
	}
	next, err := iterate(args[0])
	if err != nil {
		return None, err
	}
	i := start
	it := &Iterator{Name: "enumerate", next: func() (Value, bool, error) {
		x, ok, err := next()
		if !ok || err != nil {
			return None, false, err
		}
		i++
		return Tuple([]Value{Int(i - 1), x}), true, nil
	}}
	return Value{Kind: KindIterator, Data: it}, nil
}

func builtinZip(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := noKwargs("zip", kwargs); err != nil {
		return None, err
	}
	nexts := make([]func() (Value, bool, error), len(args))
	for i, a := range args {
		next, err := iterate(a)
		if err != nil {
			return None, NewException("TypeError", "zip argument #%d must support iteration", i+1)
		}
		nexts[i] = next
	}
	it := &Iterator{Name: "zip", next: func() (Value, bool, error) {
		if len(nexts) == 0 {
			return None, false, nil
		}
		row := make([]Value, len(nexts))
		for i, next := range nexts {
			x, ok, err := next()
			if !ok || err != nil {
				return None, false, err
			}
			row[i] = x
		}
		return Tuple(row), true, nil
	}}
	return Value{Kind: KindIterator, Data: it}, nil
}

func builtinReversed(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("reversed", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	var items []Value
	switch x := args[0]; x.Kind {
	case KindList, KindTuple, KindStr, KindRange:
		var err error
		if items, err = collect(x); err != nil {
			return None, err
		}
	default:
		return None, NewException("TypeError", "'%s' object is not reversible", x.TypeName())
	}
	i := len(items)
	it := &Iterator{Name: "reversed", next: func() (Value, bool, error) {
		if i == 0 {
			return None, false, nil
		}
		i--
		return items[i], true, nil
	}}
	return Value{Kind: KindIterator, Data: it}, nil
}

func builtinSum(_ *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return None, NewException("TypeError", "sum() takes at most 2 arguments (%d given)", len(args))
	}
	acc := Int(0)
	if len(args) == 2 {
		acc = args[1]
	}
	if v, ok := kwargs.Get("start"); ok {
		acc = v
	}
	if acc.Kind == KindStr {
		return None, NewException("TypeError", "sum() can't sum strings [use ''.join(seq) instead]")
	}
	next, err := iterate(args[0])
	if err != nil {
		return None, err
	}
	for {
		x, ok, err := next()
		if err != nil {
			return None, err
		}
		if !ok {
			return acc, nil
		}
		if acc, err = binary("+", acc, x); err != nil {
			return None, err
		}
	}
}

func builtinSorted(ip *Interpreter, args []Value, kwargs Kwargs) (Value, error) {
	if len(args) != 1 {
		return None, NewException("TypeError", "sorted expected 1 argument, got %d", len(args))
	}
	key, reverse := None, false
	for _, kw := range kwargs {
		switch kw.Name {
		case "key":
			key = kw.Value
		case "reverse":
			reverse = Truthy(kw.Value)
		default:
			return None, NewException("TypeError", "'%s' is an invalid keyword argument for sort()", kw.Name)
		}
	}
	items, err := collect(args[0])
	if err != nil {
		return None, err
	}
	out, err := sortValues(ip, items, key, reverse)
	if err != nil {
		return None, err
	}
	return NewList(out), nil
}
