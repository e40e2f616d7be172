package interp

import (
	"strings"
)

// Call invokes a callable value from the current activation.
func (ip *Interpreter) Call(callee Value, args []Value, kwargs Kwargs) (Value, error) {
	switch callee.Kind {
	case KindFunction:
		return ip.callFunction(callee.AsFunction(), args, kwargs)
	case KindBuiltin:
		b := callee.Data.(*Builtin)
		return ip.host(b.Name, func() (Value, error) { return b.Fn(ip, args, kwargs) })
	case KindMethod:
		m := callee.Data.(*Method)
		return ip.host(m.Name, func() (Value, error) { return m.Fn(ip, m.Recv, args, kwargs) })
	case KindClass:
		if len(kwargs) > 0 {
			return None, NewException("TypeError", "%s() takes no keyword arguments", callee.Data.(*Class).Name)
		}
		return Value{Kind: KindException, Data: instantiate(callee.Data.(*Class), args)}, nil
	}
	return None, NewException("TypeError", "'%s' object is not callable", callee.TypeName())
}

// host runs a primitive in its own untraced activation so that user
// functions it calls back into see it as their caller.
func (ip *Interpreter) host(name string, fn func() (Value, error)) (Value, error) {
	prev := ip.frame
	ip.frame = &Frame{Func: name, Back: prev, Locals: NewScope()}
	defer func() { ip.frame = prev }()
	return fn()
}

func (ip *Interpreter) callFunction(fn *Function, args []Value, kwargs Kwargs) (Value, error) {
	if ip.depth >= ip.maxDepth {
		return None, NewException("RecursionError", "maximum recursion depth exceeded")
	}
	locals := NewScope()
	if err := bindArgs(fn, locals, args, kwargs); err != nil {
		return None, err
	}

	def := fn.Def
	f := &Frame{
		Func:      def.Name,
		FirstLine: def.Line,
		Line:      def.Line,
		Back:      ip.frame,
		Locals:    locals,
		Traced:    true,
		fn:        fn,
	}
	prev := ip.frame
	ip.frame = f
	ip.depth++
	defer func() {
		ip.frame = prev
		ip.depth--
	}()

	if err := ip.emit(Event{Kind: EventCall, Frame: f}); err != nil {
		ip.exited(f)
		return None, err
	}
	fl, err := ip.execBlock(f, def.Body)
	if err != nil {
		ip.exited(f)
		return None, err
	}
	ret := None
	if fl == flowReturn {
		ret = f.ret
	}
	if err := ip.emit(Event{Kind: EventReturn, Frame: f, Value: ret}); err != nil {
		return None, err
	}
	return ret, nil
}

func (ip *Interpreter) exited(f *Frame) {
	if u, ok := ip.hook.(Unwinder); ok {
		u.FrameExited(f)
	}
}

func bindArgs(fn *Function, locals *Scope, args []Value, kwargs Kwargs) error {
	def := fn.Def
	name := def.Name
	params := def.Params

	if len(args) > len(params) && def.VarArg == "" {
		return NewException("TypeError", "%s() takes %d positional argument%s but %d %s given",
			name, len(params), plural(len(params)), len(args), wasWere(len(args)))
	}
	bound := map[string]bool{}
	for i := 0; i < len(args) && i < len(params); i++ {
		locals.Set(params[i].Name, args[i])
		bound[params[i].Name] = true
	}

	var extra Value
	if def.VarArg != "" {
		rest := []Value{}
		if len(args) > len(params) {
			rest = append(rest, args[len(params):]...)
		}
		extra = Tuple(rest)
	}
	var kwExtra Value
	if def.KwArg != "" {
		kwExtra = NewDict()
	}

	isParam := map[string]bool{}
	for _, p := range params {
		isParam[p.Name] = true
	}
	for _, p := range def.KwOnly {
		isParam[p.Name] = true
	}
	for _, kw := range kwargs {
		switch {
		case isParam[kw.Name]:
			if bound[kw.Name] {
				return NewException("TypeError", "%s() got multiple values for argument '%s'", name, kw.Name)
			}
			locals.Set(kw.Name, kw.Value)
			bound[kw.Name] = true
		case def.KwArg != "":
			if err := kwExtra.AsDict().Set(Str(kw.Name), kw.Value); err != nil {
				return err
			}
		default:
			return NewException("TypeError", "%s() got an unexpected keyword argument '%s'", name, kw.Name)
		}
	}

	var missing []string
	for _, p := range params {
		if bound[p.Name] {
			continue
		}
		if d, ok := fn.Defaults[p.Name]; ok {
			locals.Set(p.Name, d)
			continue
		}
		missing = append(missing, "'"+p.Name+"'")
	}
	if len(missing) > 0 {
		return NewException("TypeError", "%s() missing %d required positional argument%s: %s",
			name, len(missing), plural(len(missing)), joinNames(missing))
	}
	for _, p := range def.KwOnly {
		if bound[p.Name] {
			continue
		}
		if d, ok := fn.Defaults[p.Name]; ok {
			locals.Set(p.Name, d)
			continue
		}
		missing = append(missing, "'"+p.Name+"'")
	}
	if len(missing) > 0 {
		return NewException("TypeError", "%s() missing %d required keyword-only argument%s: %s",
			name, len(missing), plural(len(missing)), joinNames(missing))
	}

	if def.VarArg != "" {
		locals.Set(def.VarArg, extra)
	}
	if def.KwArg != "" {
		locals.Set(def.KwArg, kwExtra)
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func wasWere(n int) string {
	if n == 1 {
		return "was"
	}
	return "were"
}

// joinNames renders 'a', 'a' and 'b', or 'a', 'b', and 'c'.
func joinNames(names []string) string {
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
}
