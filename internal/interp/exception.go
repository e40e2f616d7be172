package interp

import (
	"fmt"
	"strings"
)

// Class is an exception category. Handlers match a raised exception when its
// class is the handler's class or derives from it.
type Class struct {
	Name string
	Base *Class
}

// IsSubclass reports whether c is other or derives from it.
func (c *Class) IsSubclass(other *Class) bool {
	for k := c; k != nil; k = k.Base {
		if k == other {
			return true
		}
	}
	return false
}

var classes = map[string]*Class{}

func defClass(name string, base *Class) *Class {
	c := &Class{Name: name, Base: base}
	classes[name] = c
	return c
}

var (
	classException  = defClass("Exception", nil)
	classArithmetic = defClass("ArithmeticError", classException)
	classLookup     = defClass("LookupError", classException)
	classRuntime    = defClass("RuntimeError", classException)
	className       = defClass("NameError", classException)
	_               = defClass("ZeroDivisionError", classArithmetic)
	_               = defClass("OverflowError", classArithmetic)
	_               = defClass("KeyError", classLookup)
	_               = defClass("IndexError", classLookup)
	_               = defClass("RecursionError", classRuntime)
	_               = defClass("UnboundLocalError", className)
	_               = defClass("ValueError", classException)
	_               = defClass("TypeError", classException)
	_               = defClass("AttributeError", classException)
	_               = defClass("StopIteration", classException)
	_               = defClass("AssertionError", classException)
	_               = defClass("MemoryError", classException)
)

// LookupClass returns a predefined exception category by name.
func LookupClass(name string) (*Class, bool) {
	c, ok := classes[name]
	return c, ok
}

// Exception is a raised in-language error. It travels up the Go call stack as
// an error value until a matching handler consumes it.
type Exception struct {
	Type  string
	Msg   string
	Class *Class
	Args  []Value

	// reported is the innermost frame that has already announced this
	// exception to the hook; each frame announces it once while unwinding.
	reported *Frame
}

// NewException builds an exception of a predefined category.
func NewException(typ, format string, args ...any) *Exception {
	cls, ok := classes[typ]
	if !ok {
		cls = classException
	}
	msg := fmt.Sprintf(format, args...)
	e := &Exception{Type: cls.Name, Msg: msg, Class: cls}
	if msg != "" {
		e.Args = []Value{Str(msg)}
	}
	return e
}

func instantiate(cls *Class, args []Value) *Exception {
	e := &Exception{Type: cls.Name, Class: cls, Args: args}
	switch len(args) {
	case 0:
	case 1:
		e.Msg = StrOf(args[0])
	default:
		e.Msg = Repr(Tuple(args))
	}
	// KeyError renders its single argument with repr, as in KeyError('a').
	if cls.Name == "KeyError" && len(args) == 1 {
		e.Msg = Repr(args[0])
	}
	return e
}

func (e *Exception) Error() string {
	if e.Msg == "" {
		return e.Type
	}
	return e.Type + ": " + e.Msg
}

func (e *Exception) repr() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = Repr(a)
	}
	return e.Type + "(" + strings.Join(parts, ", ") + ")"
}

func keyError(k Value) *Exception {
	return instantiate(classes["KeyError"], []Value{k})
}
