package tracer

import (
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/pywiz/internal/interp"
)

// reservedNames are host bookkeeping bindings never shown to the frontend.
var reservedNames = map[string]bool{
	"__builtins__":    true,
	"__package__":     true,
	"__loader__":      true,
	"__spec__":        true,
	"__doc__":         true,
	"__annotations__": true,
}

// Reserved reports whether a binding name belongs to the host rather than
// the traced program.
func Reserved(name string) bool {
	return reservedNames[name] || (strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"))
}

// Encode converts a runtime value into its JSON-safe form:
//
//	None -> nil, bool, int -> int64, float -> float64, str -> string,
//	list and tuple -> []any, dict -> Vars with string keys.
//
// Values with no structural form (sets, ranges, functions, exceptions)
// become their str() text. A dict key that cannot become a string or a
// container that contains itself turns the whole value into its str() text.
// Encode never fails.
func Encode(v interp.Value) any {
	e := encoder{active: map[any]bool{}}
	out, ok := e.value(v)
	if !ok {
		return interp.StrOf(v)
	}
	return out
}

type encoder struct {
	active map[any]bool
}

func (e *encoder) value(v interp.Value) (any, bool) {
	switch v.Kind {
	case interp.KindNone:
		return nil, true
	case interp.KindBool:
		return v.AsBool(), true
	case interp.KindInt:
		return v.AsInt(), true
	case interp.KindFloat:
		return encodeFloat(v.AsFloat()), true
	case interp.KindStr:
		return v.AsStr(), true
	case interp.KindList:
		l := v.AsList()
		if e.active[l] {
			return nil, false
		}
		e.active[l] = true
		defer delete(e.active, l)
		return e.seq(l.Items)
	case interp.KindTuple:
		return e.seq(v.AsTuple())
	case interp.KindDict:
		d := v.AsDict()
		if e.active[d] {
			return nil, false
		}
		e.active[d] = true
		defer delete(e.active, d)
		keys, vals := d.Keys(), d.Values()
		out := make(Vars, 0, len(keys))
		for i, k := range keys {
			name, ok := dictKey(k)
			if !ok {
				return nil, false
			}
			val, ok := e.value(vals[i])
			if !ok {
				return nil, false
			}
			out.Set(name, val)
		}
		return out, true
	}
	return interp.StrOf(v), true
}

func (e *encoder) seq(items []interp.Value) (any, bool) {
	out := make([]any, len(items))
	for i, x := range items {
		val, ok := e.value(x)
		if !ok {
			return nil, false
		}
		out[i] = val
	}
	return out, true
}

// dictKey renders a dict key the way a JSON object key is written; only
// scalar keys qualify.
func dictKey(k interp.Value) (string, bool) {
	switch k.Kind {
	case interp.KindStr:
		return k.AsStr(), true
	case interp.KindInt:
		return strconv.FormatInt(k.AsInt(), 10), true
	case interp.KindFloat:
		f := k.AsFloat()
		switch {
		case math.IsNaN(f):
			return "NaN", true
		case math.IsInf(f, 1):
			return "Infinity", true
		case math.IsInf(f, -1):
			return "-Infinity", true
		}
		return interp.FormatFloat(f), true
	case interp.KindBool:
		if k.AsBool() {
			return "true", true
		}
		return "false", true
	case interp.KindNone:
		return "null", true
	}
	return "", false
}

// encodeFloat keeps finite floats numeric; JSON has no NaN or infinities so
// those travel as their conventional names.
func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

// sameValue compares two encoded values with the interpreter's equality:
// numbers compare by value across int, float and bool, objects ignore key
// order.
func sameValue(a, b any) bool {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return x == y
		}
	}
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameValue(x[i], y[i]) {
				return false
			}
		}
		return true
	case Vars:
		y, ok := b.(Vars)
		if !ok || len(x) != len(y) {
			return false
		}
		for _, kv := range x {
			other, ok := y.Get(kv.Name)
			if !ok || !sameValue(kv.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// EncodedSize approximates the JSON length of an encoded value. String
// escapes are not counted.
func EncodedSize(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 4
	case bool:
		if x {
			return 4
		}
		return 5
	case int64:
		return int64(len(strconv.FormatInt(x, 10)))
	case float64:
		return int64(len(strconv.FormatFloat(x, 'g', -1, 64)))
	case string:
		return int64(len(x)) + 2
	case []any:
		n := int64(2 + max(len(x)-1, 0))
		for _, el := range x {
			n += EncodedSize(el)
		}
		return n
	case Vars:
		return x.encodedSize()
	}
	return 0
}

func (vs Vars) encodedSize() int64 {
	if vs == nil {
		return 0
	}
	n := int64(2 + max(len(vs)-1, 0))
	for _, v := range vs {
		n += int64(len(v.Name)) + 3 + EncodedSize(v.Value)
	}
	return n
}
