package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/pywiz/internal/lang"
)

// Kind tags the dynamic type of a Value.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindList
	KindTuple
	KindDict
	KindSet
	KindRange
	KindIterator
	KindFunction
	KindBuiltin
	KindMethod
	KindClass
	KindException
)

var kindNames = [...]string{
	KindNone:      "NoneType",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindStr:       "str",
	KindList:      "list",
	KindTuple:     "tuple",
	KindDict:      "dict",
	KindSet:       "set",
	KindRange:     "range",
	KindIterator:  "iterator",
	KindFunction:  "function",
	KindBuiltin:   "builtin_function_or_method",
	KindMethod:    "builtin_function_or_method",
	KindClass:     "type",
	KindException: "exception",
}

// Value is a tagged runtime value. Data holds:
//
//	KindBool bool, KindInt int64, KindFloat float64, KindStr string,
//	KindList *List, KindTuple []Value, KindDict and KindSet *Dict,
//	KindRange *Range, KindIterator *Iterator, KindFunction *Function,
//	KindBuiltin *Builtin, KindMethod *Method, KindClass *Class,
//	KindException *Exception.
//
// The zero Value is None.
type Value struct {
	Kind Kind
	Data any
}

var None = Value{}

func Bool(b bool) Value { return Value{Kind: KindBool, Data: b} }
func Int(n int64) Value { return Value{Kind: KindInt, Data: n} }
func Float(f float64) Value { return Value{Kind: KindFloat, Data: f} }
func Str(s string) Value { return Value{Kind: KindStr, Data: s} }
func Tuple(xs []Value) Value { return Value{Kind: KindTuple, Data: xs} }
func NewList(xs []Value) Value { return Value{Kind: KindList, Data: &List{Items: xs}} }

// NewDict returns an empty dict value.
func NewDict() Value { return Value{Kind: KindDict, Data: newDict()} }

// NewSet returns an empty set value.
func NewSet() Value { return Value{Kind: KindSet, Data: newDict()} }

// TypeName is the name reported in error messages, e.g. "int".
func (v Value) TypeName() string {
	switch v.Kind {
	case KindIterator:
		return v.Data.(*Iterator).Name
	case KindException:
		return v.Data.(*Exception).Type
	}
	if int(v.Kind) < len(kindNames) {
		return kindNames[v.Kind]
	}
	return "object"
}

func (v Value) AsBool() bool { return v.Data.(bool) }
func (v Value) AsInt() int64 { return v.Data.(int64) }
func (v Value) AsFloat() float64 { return v.Data.(float64) }
func (v Value) AsStr() string { return v.Data.(string) }
func (v Value) AsList() *List { return v.Data.(*List) }
func (v Value) AsTuple() []Value { return v.Data.([]Value) }
func (v Value) AsDict() *Dict { return v.Data.(*Dict) }
func (v Value) AsRange() *Range { return v.Data.(*Range) }
func (v Value) AsFunction() *Function { return v.Data.(*Function) }

// List is a mutable sequence shared by reference.
type List struct {
	Items []Value
}

// Range is an arithmetic progression.
type Range struct {
	Start, Stop, Step int64
}

// Len returns the number of elements in the range.
func (r *Range) Len() int64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return 0
}

// At returns the i-th element; i must be in range.
func (r *Range) At(i int64) int64 { return r.Start + i*r.Step }

// Iterator is a lazily evaluated one-shot sequence (enumerate, zip).
type Iterator struct {
	Name string
	next func() (Value, bool, error)
}

// Function is a user-defined function closed over its defining scope.
type Function struct {
	Def      *lang.FunctionDef
	Defaults map[string]Value
	closure  *cell
}

// cell links a nested function to the locals of its enclosing activation.
type cell struct {
	scope  *Scope
	def    *lang.FunctionDef
	parent *cell
}

// Kwarg is one keyword argument at a call site.
type Kwarg struct {
	Name  string
	Value Value
}

// Kwargs is an ordered keyword argument list.
type Kwargs []Kwarg

// Get returns the named keyword argument.
func (kw Kwargs) Get(name string) (Value, bool) {
	for _, k := range kw {
		if k.Name == name {
			return k.Value, true
		}
	}
	return None, false
}

// BuiltinFunc implements a primitive operation.
type BuiltinFunc func(ip *Interpreter, args []Value, kwargs Kwargs) (Value, error)

// Builtin is a named primitive operation.
type Builtin struct {
	Name string
	Fn   BuiltinFunc
}

// Method is a primitive bound to a receiver, e.g. lst.append.
type Method struct {
	Name string
	Recv Value
	Fn   func(ip *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error)
}

/* ---- dict ---- */

// Dict is an insertion-ordered hash map keyed by hashable values. Sets
// share the representation with None values.
type Dict struct {
	keys  []Value
	vals  []Value
	index map[string]int
}

func newDict() *Dict { return &Dict{index: map[string]int{}} }

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value { return append([]Value(nil), d.keys...) }

// Values returns the values in insertion order.
func (d *Dict) Values() []Value { return append([]Value(nil), d.vals...) }

// Get looks up a key.
func (d *Dict) Get(k Value) (Value, bool, error) {
	h, err := hashKey(k)
	if err != nil {
		return None, false, err
	}
	i, ok := d.index[h]
	if !ok {
		return None, false, nil
	}
	return d.vals[i], true, nil
}

// Set inserts or replaces a key, keeping the original insertion position.
func (d *Dict) Set(k, v Value) error {
	h, err := hashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[h]; ok {
		d.vals[i] = v
		return nil
	}
	d.index[h] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

// Delete removes a key and returns its value.
func (d *Dict) Delete(k Value) (Value, bool, error) {
	h, err := hashKey(k)
	if err != nil {
		return None, false, err
	}
	i, ok := d.index[h]
	if !ok {
		return None, false, nil
	}
	v := d.vals[i]
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.index, h)
	for j := i; j < len(d.keys); j++ {
		hk, _ := hashKey(d.keys[j])
		d.index[hk] = j
	}
	return v, true, nil
}

// Clear removes every entry.
func (d *Dict) Clear() {
	d.keys, d.vals = nil, nil
	d.index = map[string]int{}
}

func (d *Dict) clone() *Dict {
	c := &Dict{
		keys:  append([]Value(nil), d.keys...),
		vals:  append([]Value(nil), d.vals...),
		index: make(map[string]int, len(d.index)),
	}
	for k, i := range d.index {
		c.index[k] = i
	}
	return c
}

// hashKey derives a map key for a hashable value. Numbers that compare equal
// (True, 1, 1.0) share a key.
func hashKey(v Value) (string, error) {
	switch v.Kind {
	case KindNone:
		return "N", nil
	case KindBool:
		if v.AsBool() {
			return "n:1", nil
		}
		return "n:0", nil
	case KindInt:
		return "n:" + strconv.FormatInt(v.AsInt(), 10), nil
	case KindFloat:
		f := v.AsFloat()
		if f == float64(int64(f)) {
			return "n:" + strconv.FormatInt(int64(f), 10), nil
		}
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64), nil
	case KindStr:
		return "s:" + v.AsStr(), nil
	case KindTuple:
		parts := make([]string, len(v.AsTuple()))
		for i, x := range v.AsTuple() {
			h, err := hashKey(x)
			if err != nil {
				return "", err
			}
			parts[i] = h
		}
		return "t(" + strings.Join(parts, ",") + ")", nil
	case KindFunction, KindBuiltin, KindMethod, KindClass, KindRange, KindIterator, KindException:
		return fmt.Sprintf("p:%p", v.Data), nil
	}
	return "", NewException("TypeError", "unhashable type: '%s'", v.TypeName())
}

// Truthy implements truth testing.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindNone:
		return false
	case KindBool:
		return v.AsBool()
	case KindInt:
		return v.AsInt() != 0
	case KindFloat:
		return v.AsFloat() != 0
	case KindStr:
		return v.AsStr() != ""
	case KindList:
		return len(v.AsList().Items) > 0
	case KindTuple:
		return len(v.AsTuple()) > 0
	case KindDict, KindSet:
		return v.AsDict().Len() > 0
	case KindRange:
		return v.AsRange().Len() > 0
	}
	return true
}

func fromConst(c any) Value {
	switch x := c.(type) {
	case nil:
		return None
	case bool:
		return Bool(x)
	case int64:
		return Int(x)
	case float64:
		return Float(x)
	case string:
		return Str(x)
	}
	panic(fmt.Sprintf("interp: unexpected constant %T", c))
}
