package interp

import "github.com/ppiankov/pywiz/internal/lang"

// Scope is a name-to-value namespace that remembers first-binding order.
type Scope struct {
	vars  map[string]Value
	order []string
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{vars: map[string]Value{}}
}

// Get returns the value bound to name.
func (s *Scope) Get(name string) (Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Set binds name.
func (s *Scope) Set(name string, v Value) {
	if _, ok := s.vars[name]; !ok {
		s.order = append(s.order, name)
	}
	s.vars[name] = v
}

// Binding is one name/value pair.
type Binding struct {
	Name  string
	Value Value
}

// Bindings returns every binding in first-binding order.
func (s *Scope) Bindings() []Binding {
	out := make([]Binding, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, Binding{Name: n, Value: s.vars[n]})
	}
	return out
}

// Frame is one activation: the module body, a user function call, or a
// builtin running on behalf of user code.
type Frame struct {
	Func      string // "<module>" for the module body
	FirstLine int
	Line      int // line currently executing
	Back      *Frame
	Locals    *Scope

	// Traced is false for builtin activations, which have no source lines.
	Traced bool
	// Module marks the module-level activation.
	Module bool

	fn    *Function
	comps []*Scope // comprehension scopes, innermost last
	ret   Value
}

// Callable reports whether the frame is a user function activation.
func (f *Frame) Callable() bool { return f.Traced && !f.Module }

// Args returns the frame's parameters and their current values in
// declaration order. Variadic parameters are named "*args" and "**kwargs".
func (f *Frame) Args() []Binding {
	if f.fn == nil {
		return nil
	}
	def := f.fn.Def
	var out []Binding
	add := func(key, name string) {
		v, _ := f.Locals.Get(name)
		out = append(out, Binding{Name: key, Value: v})
	}
	for _, p := range def.Params {
		add(p.Name, p.Name)
	}
	for _, p := range def.KwOnly {
		add(p.Name, p.Name)
	}
	if def.VarArg != "" {
		add("*"+def.VarArg, def.VarArg)
	}
	if def.KwArg != "" {
		add("**"+def.KwArg, def.KwArg)
	}
	return out
}

// Def returns the function definition for a callable frame.
func (f *Frame) Def() *lang.FunctionDef {
	if f.fn == nil {
		return nil
	}
	return f.fn.Def
}

// EventKind classifies a hook notification.
type EventKind int

const (
	EventCall EventKind = iota
	EventLine
	EventReturn
	EventException
)

func (k EventKind) String() string {
	switch k {
	case EventCall:
		return "Call"
	case EventLine:
		return "Line"
	case EventReturn:
		return "Return"
	case EventException:
		return "Exception"
	}
	return "Unknown"
}

// Event is delivered to the hook before each line executes, on function
// entry and exit, and once per frame an exception unwinds through.
type Event struct {
	Kind  EventKind
	Frame *Frame
	Value Value      // EventReturn
	Exc   *Exception // EventException
}

// Hook observes execution. A non-nil error aborts the run; user code cannot
// catch it.
type Hook interface {
	Step(ev Event) error
}

// Unwinder is implemented by hooks that keep per-frame state. FrameExited is
// called when a traced frame ends without returning, because an exception
// or an aborting hook error left it. No Return event is sent for such a frame.
type Unwinder interface {
	FrameExited(f *Frame)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ev Event) error

func (f HookFunc) Step(ev Event) error { return f(ev) }
