package tracer

import "fmt"

// Event kinds as they appear in the "event" field.
const (
	KindCall      = "Call"
	KindLine      = "Line"
	KindReturn    = "Return"
	KindException = "Exception"
)

// Event is one observed execution step. Fields serialize in a fixed order:
// step ts dt event func line fid parent depth, then the kind payload
// (args set prev ret exc_type exc) and finally out+.
type Event struct {
	Step   int
	TS     int64 // monotonic nanoseconds
	DT     int64 // TS minus the previous event's TS, 0 for the first
	Kind   string
	Func   string
	Line   int
	FID    int
	Parent *int
	Depth  int

	Args Vars // Call
	Set  Vars // Call and Line, when bindings changed
	Prev Vars // paired with Set

	Ret    any // Return
	HasRet bool

	ExcType string // Exception
	Exc     string

	Out string // output written since the previous event
}

func (e Event) fields() Vars {
	var parent any
	if e.Parent != nil {
		parent = int64(*e.Parent)
	}
	v := Vars{
		{"step", int64(e.Step)},
		{"ts", e.TS},
		{"dt", e.DT},
		{"event", e.Kind},
		{"func", e.Func},
		{"line", int64(e.Line)},
		{"fid", int64(e.FID)},
		{"parent", parent},
		{"depth", int64(e.Depth)},
	}
	if e.Args != nil {
		v = append(v, Var{"args", e.Args})
	}
	if e.Set != nil {
		prev := e.Prev
		if prev == nil {
			prev = Vars{}
		}
		v = append(v, Var{"set", e.Set}, Var{"prev", prev})
	}
	if e.HasRet {
		v = append(v, Var{"ret", e.Ret})
	}
	if e.Kind == KindException {
		v = append(v, Var{"exc_type", e.ExcType}, Var{"exc", e.Exc})
	}
	if e.Out != "" {
		v = append(v, Var{"out+", e.Out})
	}
	return v
}

func (e Event) MarshalJSON() ([]byte, error) {
	return e.fields().MarshalJSON()
}

// Map returns the event as nested plain maps, the shape structpb accepts.
func (e Event) Map() map[string]any {
	return e.fields().Map()
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var raw Vars
	if err := raw.UnmarshalJSON(b); err != nil {
		return err
	}
	return e.fromVars(raw)
}

func (e *Event) fromVars(raw Vars) error {
	*e = Event{}
	for _, f := range raw {
		var err error
		switch f.Name {
		case "step":
			e.Step, err = asInt(f)
		case "ts":
			e.TS, err = asInt64(f)
		case "dt":
			e.DT, err = asInt64(f)
		case "event":
			e.Kind, err = asString(f)
		case "func":
			e.Func, err = asString(f)
		case "line":
			e.Line, err = asInt(f)
		case "fid":
			e.FID, err = asInt(f)
		case "parent":
			if f.Value != nil {
				var p int
				p, err = asInt(f)
				e.Parent = &p
			}
		case "depth":
			e.Depth, err = asInt(f)
		case "args":
			e.Args, err = asVars(f)
		case "set":
			e.Set, err = asVars(f)
		case "prev":
			e.Prev, err = asVars(f)
		case "ret", "return":
			e.Ret, e.HasRet = f.Value, true
		case "exc_type":
			e.ExcType, err = asString(f)
		case "exc":
			e.Exc, err = asString(f)
		case "out+":
			e.Out, err = asString(f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asInt64(f Var) (int64, error) {
	switch n := f.Value.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("field %q: expected number, got %T", f.Name, f.Value)
}

func asInt(f Var) (int, error) {
	n, err := asInt64(f)
	return int(n), err
}

func asString(f Var) (string, error) {
	s, ok := f.Value.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", f.Name, f.Value)
	}
	return s, nil
}

func asVars(f Var) (Vars, error) {
	switch v := f.Value.(type) {
	case Vars:
		return v, nil
	}
	return nil, fmt.Errorf("field %q: expected object, got %T", f.Name, f.Value)
}
