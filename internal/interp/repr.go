package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Repr renders a value the way the interactive interpreter echoes it.
// Containers that contain themselves render the inner reference as [...].
func Repr(v Value) string {
	r := reprWriter{active: map[any]bool{}}
	r.write(v, 0)
	return r.b.String()
}

// StrOf is the str() conversion: strings render raw, exceptions as their
// message, everything else as Repr.
func StrOf(v Value) string {
	switch v.Kind {
	case KindStr:
		return v.AsStr()
	case KindException:
		return v.Data.(*Exception).Msg
	}
	return Repr(v)
}

const maxReprDepth = 64

type reprWriter struct {
	b      strings.Builder
	active map[any]bool
}

// enter marks a container as being rendered; false means it is already on
// the path from the root.
func (r *reprWriter) enter(ptr any) bool {
	if r.active[ptr] {
		return false
	}
	r.active[ptr] = true
	return true
}

func (r *reprWriter) write(v Value, depth int) {
	b := &r.b
	if depth > maxReprDepth {
		b.WriteString("...")
		return
	}
	switch v.Kind {
	case KindNone:
		b.WriteString("None")
	case KindBool:
		if v.AsBool() {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case KindInt:
		b.WriteString(strconv.FormatInt(v.AsInt(), 10))
	case KindFloat:
		b.WriteString(FormatFloat(v.AsFloat()))
	case KindStr:
		b.WriteString(quote(v.AsStr()))
	case KindList:
		l := v.AsList()
		if !r.enter(l) {
			b.WriteString("[...]")
			return
		}
		r.seq("[", "]", l.Items, depth)
		delete(r.active, l)
	case KindTuple:
		items := v.AsTuple()
		if len(items) == 1 {
			b.WriteString("(")
			r.write(items[0], depth+1)
			b.WriteString(",)")
			return
		}
		r.seq("(", ")", items, depth)
	case KindDict:
		d := v.AsDict()
		if !r.enter(d) {
			b.WriteString("{...}")
			return
		}
		b.WriteString("{")
		for i := range d.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			r.write(d.keys[i], depth+1)
			b.WriteString(": ")
			r.write(d.vals[i], depth+1)
		}
		b.WriteString("}")
		delete(r.active, d)
	case KindSet:
		d := v.AsDict()
		if d.Len() == 0 {
			b.WriteString("set()")
			return
		}
		r.seq("{", "}", d.keys, depth)
	case KindRange:
		rg := v.AsRange()
		b.WriteString("range(" + strconv.FormatInt(rg.Start, 10) + ", " + strconv.FormatInt(rg.Stop, 10))
		if rg.Step != 1 {
			b.WriteString(", " + strconv.FormatInt(rg.Step, 10))
		}
		b.WriteString(")")
	case KindIterator:
		b.WriteString("<" + v.Data.(*Iterator).Name + " object>")
	case KindFunction:
		b.WriteString("<function " + v.AsFunction().Def.Name + ">")
	case KindBuiltin:
		b.WriteString("<built-in function " + v.Data.(*Builtin).Name + ">")
	case KindMethod:
		m := v.Data.(*Method)
		b.WriteString("<built-in method " + m.Name + " of " + m.Recv.TypeName() + " object>")
	case KindClass:
		b.WriteString("<class '" + v.Data.(*Class).Name + "'>")
	case KindException:
		b.WriteString(v.Data.(*Exception).repr())
	default:
		b.WriteString("<object>")
	}
}

func (r *reprWriter) seq(open, close string, items []Value, depth int) {
	r.b.WriteString(open)
	for i, x := range items {
		if i > 0 {
			r.b.WriteString(", ")
		}
		r.write(x, depth+1)
	}
	r.b.WriteString(close)
}

// FormatFloat renders a float with the shortest round-tripping digits,
// switching to exponent notation below 1e-4 and from 1e16, e.g. "1.0",
// "0.1", "1e+16", "inf".
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	if exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:]); exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteByte(q)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20 || r == 0x7f || (!unicode.IsPrint(r) && r <= 0xff):
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r) && r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		case !unicode.IsPrint(r):
			fmt.Fprintf(&b, `\U%08x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}
