// Package sandbox builds the restricted evaluation context traced programs
// run in. Programs can reach only the primitives named in Allowed; output is
// captured in memory.
package sandbox

import (
	"fmt"

	"github.com/ppiankov/pywiz/internal/interp"
	"github.com/ppiankov/pywiz/internal/lang"
)

// Allowed enumerates every primitive a traced program can reference.
var Allowed = []string{
	// helpers
	"abs", "min", "max", "sum", "len", "print", "repr",
	// constructors
	"bool", "int", "float", "str", "list", "dict", "set", "tuple",
	// iteration
	"range", "enumerate", "zip", "sorted", "reversed",
	// exception categories
	"Exception", "ValueError", "TypeError", "KeyError", "IndexError",
	"ZeroDivisionError", "RuntimeError", "NameError", "AttributeError",
	"ArithmeticError", "LookupError", "OverflowError", "RecursionError",
	"UnboundLocalError", "StopIteration", "AssertionError",
}

// Context is one isolated evaluation environment. It is not safe for
// concurrent use; build one per trace.
type Context struct {
	Program    *lang.Module
	Source     string
	Primitives map[string]interp.Value
	Output     *OutputBuffer
}

// Build compiles source and prepares a fresh context for it. Compile
// failures are returned as *lang.CompileError.
func Build(source string) (*Context, error) {
	mod, err := lang.Parse(source)
	if err != nil {
		return nil, err
	}

	out := &OutputBuffer{}
	catalog := interp.Catalog(out)
	prims := make(map[string]interp.Value, len(Allowed))
	for _, name := range Allowed {
		v, ok := catalog[name]
		if !ok {
			return nil, fmt.Errorf("sandbox: primitive %q not implemented", name)
		}
		prims[name] = v
	}

	return &Context{
		Program:    mod,
		Source:     source,
		Primitives: prims,
		Output:     out,
	}, nil
}

// Run executes the program once. The result is nil, the uncaught
// *interp.Exception, or the error returned by opts.Hook.
func (c *Context) Run(opts interp.Options) error {
	return interp.New(c.Primitives, opts).Run(c.Program)
}
