package interp

import (
	"sort"
	"strings"
	"unicode"
)

type methodFunc = func(ip *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error)

var methods map[Kind]map[string]methodFunc

func init() {
	methods = map[Kind]map[string]methodFunc{
		KindList: {
			"append":  listAppend,
			"extend":  listExtend,
			"insert":  listInsert,
			"pop":     listPop,
			"remove":  listRemove,
			"index":   listIndex,
			"count":   seqCount,
			"reverse": listReverse,
			"sort":    listSort,
			"clear":   listClear,
			"copy":    listCopy,
		},
		KindTuple: {
			"count": seqCount,
			"index": listIndex,
		},
		KindDict: {
			"get":        dictGet,
			"keys":       dictKeys,
			"values":     dictValues,
			"items":      dictItems,
			"pop":        dictPop,
			"update":     dictUpdate,
			"setdefault": dictSetDefault,
			"clear":      dictClear,
			"copy":       dictCopy,
		},
		KindSet: {
			"add":     setAdd,
			"remove":  setRemove,
			"discard": setDiscard,
			"clear":   dictClear,
			"copy":    dictCopy,
		},
		KindStr: {
			"upper":      strUpper,
			"lower":      strLower,
			"strip":      strStrip(strings.Trim, strings.TrimSpace),
			"lstrip":     strStrip(strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
			"rstrip":     strStrip(strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),
			"split":      strSplit,
			"join":       strJoin,
			"replace":    strReplace,
			"startswith": strAffix(strings.HasPrefix),
			"endswith":   strAffix(strings.HasSuffix),
			"find":       strFind,
			"count":      strCount,
			"isdigit":    strIs(unicode.IsDigit),
			"isalpha":    strIs(unicode.IsLetter),
			"isspace":    strIs(unicode.IsSpace),
			"capitalize": strCapitalize,
		},
	}
}

func getAttr(v Value, name string) (Value, error) {
	if fn, ok := methods[v.Kind][name]; ok {
		return Value{Kind: KindMethod, Data: &Method{Name: name, Recv: v, Fn: fn}}, nil
	}
	if v.Kind == KindException && name == "args" {
		return Tuple(append([]Value{}, v.Data.(*Exception).Args...)), nil
	}
	return None, NewException("AttributeError", "'%s' object has no attribute '%s'", v.TypeName(), name)
}

func arity(name string, args []Value, kwargs Kwargs, lo, hi int) error {
	if len(kwargs) > 0 {
		return NewException("TypeError", "%s() takes no keyword arguments", name)
	}
	switch {
	case len(args) < lo && lo == hi:
		return NewException("TypeError", "%s() takes exactly %d argument%s (%d given)", name, lo, plural(lo), len(args))
	case len(args) < lo:
		return NewException("TypeError", "%s() takes at least %d argument%s (%d given)", name, lo, plural(lo), len(args))
	case len(args) > hi && lo == hi:
		return NewException("TypeError", "%s() takes exactly %d argument%s (%d given)", name, hi, plural(hi), len(args))
	case len(args) > hi:
		return NewException("TypeError", "%s() takes at most %d argument%s (%d given)", name, hi, plural(hi), len(args))
	}
	return nil
}

/* ---- list ---- */

func listAppend(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("append", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	l := recv.AsList()
	l.Items = append(l.Items, args[0])
	return None, nil
}

func listExtend(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("extend", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	items, err := collect(args[0])
	if err != nil {
		return None, err
	}
	l := recv.AsList()
	if err := checkLen(int64(len(l.Items)+len(items)), "extended"); err != nil {
		return None, err
	}
	l.Items = append(l.Items, items...)
	return None, nil
}

func listInsert(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("insert", args, kwargs, 2, 2); err != nil {
		return None, err
	}
	i, ok := toIndex(args[0])
	if !ok {
		return None, NewException("TypeError", "'%s' object cannot be interpreted as an integer", args[0].TypeName())
	}
	l := recv.AsList()
	n := int64(len(l.Items))
	if i < 0 {
		i = max(0, i+n)
	}
	i = min(i, n)
	l.Items = append(l.Items, None)
	copy(l.Items[i+1:], l.Items[i:])
	l.Items[i] = args[1]
	return None, nil
}

func listPop(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("pop", args, kwargs, 0, 1); err != nil {
		return None, err
	}
	l := recv.AsList()
	if len(l.Items) == 0 {
		return None, NewException("IndexError", "pop from empty list")
	}
	i := int64(-1)
	if len(args) == 1 {
		var ok bool
		if i, ok = toIndex(args[0]); !ok {
			return None, NewException("TypeError", "'%s' object cannot be interpreted as an integer", args[0].TypeName())
		}
	}
	n, err := normIndex(i, len(l.Items), "pop")
	if err != nil {
		return None, err
	}
	v := l.Items[n]
	l.Items = append(l.Items[:n], l.Items[n+1:]...)
	return v, nil
}

func listRemove(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("remove", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	l := recv.AsList()
	for i, x := range l.Items {
		if Equal(x, args[0]) {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return None, nil
		}
	}
	return None, NewException("ValueError", "list.remove(x): x not in list")
}

func seqItems(v Value) []Value {
	if v.Kind == KindTuple {
		return v.AsTuple()
	}
	return v.AsList().Items
}

func listIndex(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("index", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	for i, x := range seqItems(recv) {
		if Equal(x, args[0]) {
			return Int(int64(i)), nil
		}
	}
	return None, NewException("ValueError", "%s is not in %s", Repr(args[0]), recv.TypeName())
}

func seqCount(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("count", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	n := int64(0)
	for _, x := range seqItems(recv) {
		if Equal(x, args[0]) {
			n++
		}
	}
	return Int(n), nil
}

func listReverse(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("reverse", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	items := recv.AsList().Items
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return None, nil
}

func listSort(ip *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if len(args) > 0 {
		return None, NewException("TypeError", "sort() takes no positional arguments")
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
	l := recv.AsList()
	sorted, err := sortValues(ip, l.Items, key, reverse)
	if err != nil {
		return None, err
	}
	l.Items = sorted
	return None, nil
}

// sortValues is a stable sort that stops at the first comparison or key
// error.
func sortValues(ip *Interpreter, items []Value, key Value, reverse bool) ([]Value, error) {
	keys := items
	if key.Kind != KindNone {
		keys = make([]Value, len(items))
		for i, x := range items {
			k, err := ip.Call(key, []Value{x}, nil)
			if err != nil {
				return nil, err
			}
			keys[i] = k
		}
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var cmpErr error
	sort.SliceStable(idx, func(a, b int) bool {
		if cmpErr != nil {
			return false
		}
		x, y := keys[idx[a]], keys[idx[b]]
		if reverse {
			x, y = y, x
		}
		lt, err := less(x, y)
		if err != nil {
			cmpErr = err
		}
		return lt
	})
	if cmpErr != nil {
		return nil, cmpErr
	}
	out := make([]Value, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out, nil
}

func listClear(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("clear", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	recv.AsList().Items = nil
	return None, nil
}

func listCopy(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("copy", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	return NewList(append([]Value{}, recv.AsList().Items...)), nil
}

/* ---- dict and set ---- */

func dictGet(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("get", args, kwargs, 1, 2); err != nil {
		return None, err
	}
	v, ok, err := recv.AsDict().Get(args[0])
	if err != nil {
		return None, err
	}
	if !ok && len(args) == 2 {
		return args[1], nil
	}
	return v, nil
}

func dictKeys(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("keys", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	return NewList(recv.AsDict().Keys()), nil
}

func dictValues(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("values", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	return NewList(recv.AsDict().Values()), nil
}

func dictItems(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("items", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	d := recv.AsDict()
	out := make([]Value, d.Len())
	for i := range d.keys {
		out[i] = Tuple([]Value{d.keys[i], d.vals[i]})
	}
	return NewList(out), nil
}

func dictPop(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("pop", args, kwargs, 1, 2); err != nil {
		return None, err
	}
	v, ok, err := recv.AsDict().Delete(args[0])
	if err != nil {
		return None, err
	}
	if !ok {
		if len(args) == 2 {
			return args[1], nil
		}
		return None, keyError(args[0])
	}
	return v, nil
}

func dictUpdate(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if len(args) > 1 {
		return None, NewException("TypeError", "update expected at most 1 argument, got %d", len(args))
	}
	d := recv.AsDict()
	if len(args) == 1 {
		if err := fillDict(d, args[0]); err != nil {
			return None, err
		}
	}
	for _, kw := range kwargs {
		if err := d.Set(Str(kw.Name), kw.Value); err != nil {
			return None, err
		}
	}
	return None, nil
}

// fillDict merges a mapping or an iterable of pairs into d.
func fillDict(d *Dict, src Value) error {
	if src.Kind == KindDict {
		s := src.AsDict()
		for i := range s.keys {
			if err := d.Set(s.keys[i], s.vals[i]); err != nil {
				return err
			}
		}
		return nil
	}
	items, err := collect(src)
	if err != nil {
		return err
	}
	for i, it := range items {
		pair, err := collect(it)
		if err != nil {
			return NewException("TypeError", "cannot convert dictionary update sequence element #%d to a sequence", i)
		}
		if len(pair) != 2 {
			return NewException("ValueError", "dictionary update sequence element #%d has length %d; 2 is required", i, len(pair))
		}
		if err := d.Set(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

func dictSetDefault(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("setdefault", args, kwargs, 1, 2); err != nil {
		return None, err
	}
	d := recv.AsDict()
	v, ok, err := d.Get(args[0])
	if err != nil {
		return None, err
	}
	if ok {
		return v, nil
	}
	def := None
	if len(args) == 2 {
		def = args[1]
	}
	return def, d.Set(args[0], def)
}

func dictClear(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("clear", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	recv.AsDict().Clear()
	return None, nil
}

func dictCopy(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("copy", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	return Value{Kind: recv.Kind, Data: recv.AsDict().clone()}, nil
}

func setAdd(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("add", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	return None, recv.AsDict().Set(args[0], None)
}

func setRemove(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("remove", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	_, ok, err := recv.AsDict().Delete(args[0])
	if err != nil {
		return None, err
	}
	if !ok {
		return None, keyError(args[0])
	}
	return None, nil
}

func setDiscard(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("discard", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	_, _, err := recv.AsDict().Delete(args[0])
	return None, err
}

/* ---- str ---- */

func strUpper(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("upper", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	return Str(strings.ToUpper(recv.AsStr())), nil
}

func strLower(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("lower", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	return Str(strings.ToLower(recv.AsStr())), nil
}

func strStrip(trim func(s, cut string) string, space func(string) string) methodFunc {
	return func(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
		if err := arity("strip", args, kwargs, 0, 1); err != nil {
			return None, err
		}
		if len(args) == 0 || args[0].Kind == KindNone {
			return Str(space(recv.AsStr())), nil
		}
		if args[0].Kind != KindStr {
			return None, NewException("TypeError", "strip arg must be None or str")
		}
		return Str(trim(recv.AsStr(), args[0].AsStr())), nil
	}
}

func strSplit(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	sep, limit := None, int64(-1)
	if len(args) > 2 {
		return None, NewException("TypeError", "split() takes at most 2 arguments (%d given)", len(args))
	}
	if len(args) > 0 {
		sep = args[0]
	}
	if len(args) > 1 {
		limit, _ = toIndex(args[1])
	}
	for _, kw := range kwargs {
		switch kw.Name {
		case "sep":
			sep = kw.Value
		case "maxsplit":
			limit, _ = toIndex(kw.Value)
		default:
			return None, NewException("TypeError", "split() got an unexpected keyword argument '%s'", kw.Name)
		}
	}
	s := recv.AsStr()
	var parts []string
	switch sep.Kind {
	case KindNone:
		if limit < 0 {
			parts = strings.Fields(s)
		} else {
			parts = splitFieldsN(s, int(limit))
		}
	case KindStr:
		if sep.AsStr() == "" {
			return None, NewException("ValueError", "empty separator")
		}
		n := -1
		if limit >= 0 {
			n = int(limit) + 1
		}
		parts = strings.SplitN(s, sep.AsStr(), n)
	default:
		return None, NewException("TypeError", "must be str or None, not %s", sep.TypeName())
	}
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = Str(p)
	}
	return NewList(out), nil
}

// splitFieldsN splits on whitespace runs at most n times; the remainder keeps
// its internal whitespace.
func splitFieldsN(s string, n int) []string {
	var out []string
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for s != "" {
		if len(out) == n {
			return append(out, strings.TrimRightFunc(s, unicode.IsSpace))
		}
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	return out
}

func strJoin(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("join", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	items, err := collect(args[0])
	if err != nil {
		return None, err
	}
	parts := make([]string, len(items))
	for i, x := range items {
		if x.Kind != KindStr {
			return None, NewException("TypeError", "sequence item %d: expected str instance, %s found", i, x.TypeName())
		}
		parts[i] = x.AsStr()
	}
	return Str(strings.Join(parts, recv.AsStr())), nil
}

func strReplace(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("replace", args, kwargs, 2, 3); err != nil {
		return None, err
	}
	if args[0].Kind != KindStr || args[1].Kind != KindStr {
		return None, NewException("TypeError", "replace() argument must be str")
	}
	n := int64(-1)
	if len(args) == 3 {
		n, _ = toIndex(args[2])
	}
	return Str(strings.Replace(recv.AsStr(), args[0].AsStr(), args[1].AsStr(), int(n))), nil
}

func strAffix(test func(s, affix string) bool) methodFunc {
	return func(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
		if err := arity("startswith", args, kwargs, 1, 1); err != nil {
			return None, err
		}
		var cands []Value
		switch args[0].Kind {
		case KindStr:
			cands = args[:1]
		case KindTuple:
			cands = args[0].AsTuple()
		default:
			return None, NewException("TypeError", "expected str or tuple of str, not %s", args[0].TypeName())
		}
		for _, c := range cands {
			if c.Kind == KindStr && test(recv.AsStr(), c.AsStr()) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	}
}

func strFind(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("find", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	if args[0].Kind != KindStr {
		return None, NewException("TypeError", "must be str, not %s", args[0].TypeName())
	}
	s := recv.AsStr()
	i := strings.Index(s, args[0].AsStr())
	if i < 0 {
		return Int(-1), nil
	}
	return Int(int64(len([]rune(s[:i])))), nil
}

func strCount(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("count", args, kwargs, 1, 1); err != nil {
		return None, err
	}
	if args[0].Kind != KindStr {
		return None, NewException("TypeError", "must be str, not %s", args[0].TypeName())
	}
	sub := args[0].AsStr()
	if sub == "" {
		return Int(int64(len([]rune(recv.AsStr())) + 1)), nil
	}
	return Int(int64(strings.Count(recv.AsStr(), sub))), nil
}

func strIs(pred func(rune) bool) methodFunc {
	return func(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
		if err := arity("is", args, kwargs, 0, 0); err != nil {
			return None, err
		}
		s := recv.AsStr()
		if s == "" {
			return Bool(false), nil
		}
		for _, r := range s {
			if !pred(r) {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	}
}

func strCapitalize(_ *Interpreter, recv Value, args []Value, kwargs Kwargs) (Value, error) {
	if err := arity("capitalize", args, kwargs, 0, 0); err != nil {
		return None, err
	}
	rs := []rune(strings.ToLower(recv.AsStr()))
	if len(rs) > 0 {
		rs[0] = unicode.ToUpper(rs[0])
	}
	return Str(string(rs)), nil
}
