package interp

import (
	"math"
	"math/bits"
	"strings"
	"unicode/utf8"
)

// numeric reports whether v participates in arithmetic; bools count as ints.
func numeric(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat || v.Kind == KindBool
}

func asInt(v Value) (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.AsInt(), true
	case KindBool:
		if v.AsBool() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(v Value) float64 {
	if v.Kind == KindFloat {
		return v.AsFloat()
	}
	n, _ := asInt(v)
	return float64(n)
}

// toIndex converts an int-like value to an index.
func toIndex(v Value) (int64, bool) { return asInt(v) }

func overflow() *Exception {
	return NewException("OverflowError", "integer result out of range")
}

func unsupported(op string, a, b Value) *Exception {
	return NewException("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", op, a.TypeName(), b.TypeName())
}

func binary(op string, a, b Value) (Value, error) {
	if numeric(a) && numeric(b) {
		if a.Kind != KindFloat && b.Kind != KindFloat {
			x, _ := asInt(a)
			y, _ := asInt(b)
			return intOp(op, x, y)
		}
		return floatOp(op, asFloat(a), asFloat(b))
	}

	switch op {
	case "+":
		if a.Kind == b.Kind && isSequence(a) {
			if err := checkLen(int64(seqLen(a))+int64(seqLen(b)), "concatenated"); err != nil {
				return None, err
			}
		}
		switch {
		case a.Kind == KindStr && b.Kind == KindStr:
			return Str(a.AsStr() + b.AsStr()), nil
		case a.Kind == KindList && b.Kind == KindList:
			items := append(append([]Value{}, a.AsList().Items...), b.AsList().Items...)
			return NewList(items), nil
		case a.Kind == KindTuple && b.Kind == KindTuple:
			items := append(append([]Value{}, a.AsTuple()...), b.AsTuple()...)
			return Tuple(items), nil
		}
		if a.Kind == KindStr {
			return None, NewException("TypeError", `can only concatenate str (not "%s") to str`, b.TypeName())
		}
		if a.Kind == KindList {
			return None, NewException("TypeError", `can only concatenate list (not "%s") to list`, b.TypeName())
		}
	case "*":
		if n, ok := asInt(b); ok && isSequence(a) {
			return repeat(a, n)
		}
		if n, ok := asInt(a); ok && isSequence(b) {
			return repeat(b, n)
		}
		if isSequence(a) || isSequence(b) {
			other := b
			if !isSequence(a) {
				other = a
			}
			return None, NewException("TypeError", "can't multiply sequence by non-int of type '%s'", other.TypeName())
		}
	case "-":
		if a.Kind == KindSet && b.Kind == KindSet {
			out := newDict()
			for _, k := range a.AsDict().keys {
				if _, ok, _ := b.AsDict().Get(k); !ok {
					_ = out.Set(k, None)
				}
			}
			return Value{Kind: KindSet, Data: out}, nil
		}
	}
	return None, unsupported(op, a, b)
}

func isSequence(v Value) bool {
	return v.Kind == KindStr || v.Kind == KindList || v.Kind == KindTuple
}

// maxSeqLen caps the length of a sequence built by one operation.
const maxSeqLen = 1 << 26

func checkLen(n int64, what string) error {
	if n > maxSeqLen {
		return NewException("MemoryError", "%s sequence is too large", what)
	}
	return nil
}

func repeat(seq Value, n int64) (Value, error) {
	if n < 0 {
		n = 0
	}
	size := int64(seqLen(seq))
	if size > 0 && n > maxSeqLen/size {
		return None, checkLen(maxSeqLen+1, "repeated")
	}
	switch seq.Kind {
	case KindStr:
		return Str(strings.Repeat(seq.AsStr(), int(n))), nil
	case KindList:
		var items []Value
		for i := int64(0); i < n; i++ {
			items = append(items, seq.AsList().Items...)
		}
		return NewList(items), nil
	default:
		items := []Value{}
		for i := int64(0); i < n; i++ {
			items = append(items, seq.AsTuple()...)
		}
		return Tuple(items), nil
	}
}

func seqLen(v Value) int {
	switch v.Kind {
	case KindStr:
		return utf8.RuneCountInString(v.AsStr())
	case KindList:
		return len(v.AsList().Items)
	case KindTuple:
		return len(v.AsTuple())
	}
	return 0
}

func intOp(op string, x, y int64) (Value, error) {
	switch op {
	case "+":
		r := x + y
		if (x >= 0) == (y >= 0) && (r >= 0) != (x >= 0) {
			return None, overflow()
		}
		return Int(r), nil
	case "-":
		r := x - y
		if (x >= 0) != (y >= 0) && (r >= 0) != (x >= 0) {
			return None, overflow()
		}
		return Int(r), nil
	case "*":
		r, ok := mulInt(x, y)
		if !ok {
			return None, overflow()
		}
		return Int(r), nil
	case "/":
		if y == 0 {
			return None, NewException("ZeroDivisionError", "division by zero")
		}
		return Float(float64(x) / float64(y)), nil
	case "//":
		if y == 0 {
			return None, NewException("ZeroDivisionError", "integer division or modulo by zero")
		}
		if x == math.MinInt64 && y == -1 {
			return None, overflow()
		}
		q := x / y
		if (x%y != 0) && ((x < 0) != (y < 0)) {
			q--
		}
		return Int(q), nil
	case "%":
		if y == 0 {
			return None, NewException("ZeroDivisionError", "integer modulo by zero")
		}
		if y == -1 {
			return Int(0), nil
		}
		m := x % y
		if m != 0 && ((m < 0) != (y < 0)) {
			m += y
		}
		return Int(m), nil
	case "**":
		if y < 0 {
			if x == 0 {
				return None, NewException("ZeroDivisionError", "0.0 cannot be raised to a negative power")
			}
			return Float(math.Pow(float64(x), float64(y))), nil
		}
		r, ok := powInt(x, y)
		if !ok {
			return None, overflow()
		}
		return Int(r), nil
	}
	return None, unsupported(op, Int(x), Int(y))
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	neg := (x < 0) != (y < 0)
	ux, uy := absU(x), absU(y)
	hi, lo := bits.Mul64(ux, uy)
	if hi != 0 {
		return 0, false
	}
	if neg {
		if lo > 1<<63 {
			return 0, false
		}
		return -int64(lo), true
	}
	if lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

func absU(x int64) uint64 {
	if x < 0 {
		return uint64(-(x + 1)) + 1
	}
	return uint64(x)
}

func powInt(base, exp int64) (int64, bool) {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			r, ok := mulInt(result, base)
			if !ok {
				return 0, false
			}
			result = r
		}
		exp >>= 1
		if exp > 0 {
			b, ok := mulInt(base, base)
			if !ok {
				return 0, false
			}
			base = b
		}
	}
	return result, true
}

func floatOp(op string, x, y float64) (Value, error) {
	switch op {
	case "+":
		return Float(x + y), nil
	case "-":
		return Float(x - y), nil
	case "*":
		return Float(x * y), nil
	case "/":
		if y == 0 {
			return None, NewException("ZeroDivisionError", "float division by zero")
		}
		return Float(x / y), nil
	case "//":
		if y == 0 {
			return None, NewException("ZeroDivisionError", "float floor division by zero")
		}
		return Float(math.Floor(x / y)), nil
	case "%":
		if y == 0 {
			return None, NewException("ZeroDivisionError", "float modulo")
		}
		m := math.Mod(x, y)
		if m != 0 && ((m < 0) != (y < 0)) {
			m += y
		}
		return Float(m), nil
	case "**":
		if x == 0 && y < 0 {
			return None, NewException("ZeroDivisionError", "0.0 cannot be raised to a negative power")
		}
		r := math.Pow(x, y)
		if math.IsNaN(r) && !math.IsNaN(x) && !math.IsNaN(y) {
			return None, NewException("ValueError", "math domain error")
		}
		if math.IsInf(r, 0) && !math.IsInf(x, 0) && !math.IsInf(y, 0) {
			return None, NewException("OverflowError", "(34, 'Numerical result out of range')")
		}
		return Float(r), nil
	}
	return None, unsupported(op, Float(x), Float(y))
}

func unary(op string, v Value) (Value, error) {
	switch op {
	case "not":
		return Bool(!Truthy(v)), nil
	case "-":
		if v.Kind == KindFloat {
			return Float(-v.AsFloat()), nil
		}
		if n, ok := asInt(v); ok {
			if n == math.MinInt64 {
				return None, overflow()
			}
			return Int(-n), nil
		}
	case "+":
		if v.Kind == KindFloat {
			return v, nil
		}
		if n, ok := asInt(v); ok {
			return Int(n), nil
		}
	}
	return None, NewException("TypeError", "bad operand type for unary %s: '%s'", op, v.TypeName())
}

// Equal implements ==.
func Equal(a, b Value) bool {
	if numeric(a) && numeric(b) {
		if a.Kind != KindFloat && b.Kind != KindFloat {
			x, _ := asInt(a)
			y, _ := asInt(b)
			return x == y
		}
		return asFloat(a) == asFloat(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNone:
		return true
	case KindStr:
		return a.AsStr() == b.AsStr()
	case KindList:
		return equalSeq(a.AsList().Items, b.AsList().Items)
	case KindTuple:
		return equalSeq(a.AsTuple(), b.AsTuple())
	case KindDict:
		da, db := a.AsDict(), b.AsDict()
		if da.Len() != db.Len() {
			return false
		}
		for i, k := range da.keys {
			v, ok, _ := db.Get(k)
			if !ok || !Equal(da.vals[i], v) {
				return false
			}
		}
		return true
	case KindSet:
		da, db := a.AsDict(), b.AsDict()
		if da.Len() != db.Len() {
			return false
		}
		for _, k := range da.keys {
			if _, ok, _ := db.Get(k); !ok {
				return false
			}
		}
		return true
	case KindRange:
		ra, rb := a.AsRange(), b.AsRange()
		return *ra == *rb
	}
	return a.Data == b.Data
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func identical(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNone:
		return true
	case KindBool, KindInt, KindFloat, KindStr:
		return a.Data == b.Data
	case KindTuple:
		x, y := a.AsTuple(), b.AsTuple()
		return len(x) == len(y) && (len(x) == 0 || &x[0] == &y[0])
	}
	return a.Data == b.Data
}

// less orders two values for <, sorting and min/max.
func less(a, b Value) (bool, error) {
	switch {
	case numeric(a) && numeric(b):
		if a.Kind != KindFloat && b.Kind != KindFloat {
			x, _ := asInt(a)
			y, _ := asInt(b)
			return x < y, nil
		}
		return asFloat(a) < asFloat(b), nil
	case a.Kind == KindStr && b.Kind == KindStr:
		return a.AsStr() < b.AsStr(), nil
	case a.Kind == KindList && b.Kind == KindList:
		return lessSeq(a.AsList().Items, b.AsList().Items)
	case a.Kind == KindTuple && b.Kind == KindTuple:
		return lessSeq(a.AsTuple(), b.AsTuple())
	}
	return false, NewException("TypeError", "'<' not supported between instances of '%s' and '%s'", a.TypeName(), b.TypeName())
}

func lessSeq(a, b []Value) (bool, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		return less(a[i], b[i])
	}
	return len(a) < len(b), nil
}

func compare(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return Equal(a, b), nil
	case "!=":
		return !Equal(a, b), nil
	case "is":
		return identical(a, b), nil
	case "is not":
		return !identical(a, b), nil
	case "in":
		return contains(b, a)
	case "not in":
		ok, err := contains(b, a)
		return !ok, err
	}

	var (
		ok  bool
		err error
	)
	switch op {
	case "<":
		ok, err = less(a, b)
	case ">":
		ok, err = less(b, a)
	case "<=":
		ok, err = less(b, a)
		ok = !ok
	case ">=":
		ok, err = less(a, b)
		ok = !ok
	}
	if err != nil {
		return false, NewException("TypeError", "'%s' not supported between instances of '%s' and '%s'", op, a.TypeName(), b.TypeName())
	}
	return ok, nil
}

func contains(container, item Value) (bool, error) {
	switch container.Kind {
	case KindStr:
		if item.Kind != KindStr {
			return false, NewException("TypeError", "'in <string>' requires string as left operand, not %s", item.TypeName())
		}
		return strings.Contains(container.AsStr(), item.AsStr()), nil
	case KindList:
		return containsSeq(container.AsList().Items, item), nil
	case KindTuple:
		return containsSeq(container.AsTuple(), item), nil
	case KindDict, KindSet:
		_, ok, err := container.AsDict().Get(item)
		return ok, err
	case KindRange:
		n, ok := asInt(item)
		if !ok {
			return false, nil
		}
		r := container.AsRange()
		if r.Len() == 0 {
			return false, nil
		}
		if (r.Step > 0 && (n < r.Start || n >= r.Stop)) || (r.Step < 0 && (n > r.Start || n <= r.Stop)) {
			return false, nil
		}
		return (n-r.Start)%r.Step == 0, nil
	}
	return false, NewException("TypeError", "argument of type '%s' is not iterable", container.TypeName())
}

func containsSeq(items []Value, item Value) bool {
	for _, x := range items {
		if identical(x, item) || Equal(x, item) {
			return true
		}
	}
	return false
}

/* ---- indexing ---- */

func normIndex(i int64, n int, what string) (int, error) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, NewException("IndexError", "%s index out of range", what)
	}
	return int(i), nil
}

func getItem(v, idx Value) (Value, error) {
	switch v.Kind {
	case KindList, KindTuple, KindStr, KindRange:
		i, ok := toIndex(idx)
		if !ok {
			return None, NewException("TypeError", "%s indices must be integers or slices, not %s", v.TypeName(), idx.TypeName())
		}
		switch v.Kind {
		case KindList:
			items := v.AsList().Items
			n, err := normIndex(i, len(items), "list")
			if err != nil {
				return None, err
			}
			return items[n], nil
		case KindTuple:
			items := v.AsTuple()
			n, err := normIndex(i, len(items), "tuple")
			if err != nil {
				return None, err
			}
			return items[n], nil
		case KindStr:
			rs := []rune(v.AsStr())
			n, err := normIndex(i, len(rs), "string")
			if err != nil {
				return None, err
			}
			return Str(string(rs[n])), nil
		default:
			r := v.AsRange()
			if r.Len() > math.MaxInt32 {
				return None, NewException("OverflowError", "range too large to index")
			}
			n, err := normIndex(i, int(r.Len()), "range object")
			if err != nil {
				return None, err
			}
			return Int(r.At(int64(n))), nil
		}
	case KindDict:
		val, ok, err := v.AsDict().Get(idx)
		if err != nil {
			return None, err
		}
		if !ok {
			return None, keyError(idx)
		}
		return val, nil
	}
	return None, NewException("TypeError", "'%s' object is not subscriptable", v.TypeName())
}

func setItem(v, idx, val Value) error {
	switch v.Kind {
	case KindList:
		i, ok := toIndex(idx)
		if !ok {
			return NewException("TypeError", "list indices must be integers or slices, not %s", idx.TypeName())
		}
		items := v.AsList().Items
		n, err := normIndex(i, len(items), "list assignment")
		if err != nil {
			return err
		}
		items[n] = val
		return nil
	case KindDict:
		return v.AsDict().Set(idx, val)
	}
	return NewException("TypeError", "'%s' object does not support item assignment", v.TypeName())
}

// sliceBounds resolves slice bounds against a sequence of length n.
func sliceBounds(n int64, lo, hi, step *int64) (start, stop, st int64, err error) {
	st = 1
	if step != nil {
		st = *step
	}
	if st == 0 {
		return 0, 0, 0, NewException("ValueError", "slice step cannot be zero")
	}
	clampBound := func(p *int64, def int64) int64 {
		if p == nil {
			return def
		}
		x := *p
		if x < 0 {
			x += n
		}
		if st > 0 {
			return max(0, min(x, n))
		}
		return max(-1, min(x, n-1))
	}
	if st > 0 {
		start, stop = clampBound(lo, 0), clampBound(hi, n)
	} else {
		start, stop = clampBound(lo, n-1), clampBound(hi, -1)
	}
	return start, stop, st, nil
}

func slice(v Value, lo, hi, step *int64) (Value, error) {
	var items []Value
	var runes []rune
	switch v.Kind {
	case KindList:
		items = v.AsList().Items
	case KindTuple:
		items = v.AsTuple()
	case KindStr:
		runes = []rune(v.AsStr())
	default:
		return None, NewException("TypeError", "'%s' object is not subscriptable", v.TypeName())
	}
	n := int64(len(items))
	if v.Kind == KindStr {
		n = int64(len(runes))
	}
	start, stop, st, err := sliceBounds(n, lo, hi, step)
	if err != nil {
		return None, err
	}
	var pick []int64
	for i := start; (st > 0 && i < stop) || (st < 0 && i > stop); i += st {
		pick = append(pick, i)
	}
	switch v.Kind {
	case KindStr:
		var b strings.Builder
		for _, i := range pick {
			b.WriteRune(runes[i])
		}
		return Str(b.String()), nil
	case KindList:
		out := make([]Value, 0, len(pick))
		for _, i := range pick {
			out = append(out, items[i])
		}
		return NewList(out), nil
	default:
		out := make([]Value, 0, len(pick))
		for _, i := range pick {
			out = append(out, items[i])
		}
		return Tuple(out), nil
	}
}

/* ---- iteration ---- */

// iterate returns a pull function over an iterable. Lists are read live by
// index, so appends during a loop are visited.
func iterate(v Value) (func() (Value, bool, error), error) {
	switch v.Kind {
	case KindList:
		l := v.AsList()
		i := 0
		return func() (Value, bool, error) {
			if i >= len(l.Items) {
				return None, false, nil
			}
			i++
			return l.Items[i-1], true, nil
		}, nil
	case KindTuple:
		return sliceIter(v.AsTuple()), nil
	case KindStr:
		rs := []rune(v.AsStr())
		i := 0
		return func() (Value, bool, error) {
			if i >= len(rs) {
				return None, false, nil
			}
			i++
			return Str(string(rs[i-1])), true, nil
		}, nil
	case KindDict, KindSet:
		d := v.AsDict()
		keys := d.Keys()
		size := d.Len()
		i := 0
		return func() (Value, bool, error) {
			if d.Len() != size {
				return None, false, NewException("RuntimeError", "%s changed size during iteration", v.TypeName())
			}
			if i >= len(keys) {
				return None, false, nil
			}
			i++
			return keys[i-1], true, nil
		}, nil
	case KindRange:
		r := *v.AsRange()
		n := r.Len()
		i := int64(0)
		return func() (Value, bool, error) {
			if i >= n {
				return None, false, nil
			}
			i++
			return Int(r.At(i - 1)), true, nil
		}, nil
	case KindIterator:
		return v.Data.(*Iterator).next, nil
	}
	return nil, NewException("TypeError", "'%s' object is not iterable", v.TypeName())
}

func sliceIter(items []Value) func() (Value, bool, error) {
	i := 0
	return func() (Value, bool, error) {
		if i >= len(items) {
			return None, false, nil
		}
		i++
		return items[i-1], true, nil
	}
}

// collect drains an iterable into a slice.
func collect(v Value) ([]Value, error) {
	switch v.Kind {
	case KindList:
		return append([]Value(nil), v.AsList().Items...), nil
	case KindTuple:
		return append([]Value(nil), v.AsTuple()...), nil
	}
	next, err := iterate(v)
	if err != nil {
		return nil, err
	}
	var out []Value
	for {
		x, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, x)
		if len(out) > maxCollect {
			return nil, NewException("MemoryError", "sequence is too large")
		}
	}
}

const maxCollect = 1 << 24
