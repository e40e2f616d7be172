package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/pywiz/internal/interp"
)

// finalValue traces src and returns the last value reported for name.
func finalValue(t *testing.T, src, name string) any {
	t.Helper()
	res, err := Trace(context.Background(), src+"_ = 0\n", Options{})
	require.NoError(t, err)
	var (
		got   any
		found bool
	)
	for _, e := range res.Trace {
		if v, ok := e.Set.Get(name); ok {
			got, found = v, true
		}
	}
	require.True(t, found, "%s never reported", name)
	return got
}

func TestEncodeValues(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{"None", nil},
		{"True", true},
		{"-7", int64(-7)},
		{"2.5", 2.5},
		{"'hi'", "hi"},
		{"(1, 'a')", []any{int64(1), "a"}},
		{"[[1], {'k': [2]}]", []any{[]any{int64(1)}, Vars{{"k", []any{int64(2)}}}}},
		{"{1: 'a', 2.5: None, None: 0, False: 1}", Vars{{"1", "a"}, {"2.5", nil}, {"null", int64(0)}, {"false", int64(1)}}},
		{"{1: 'a', '1': 'b'}", Vars{{"1", "b"}}},
		{"{(1, 2): 'a'}", "{(1, 2): 'a'}"},
		{"[{(1,): 2}]", "[{(1,): 2}]"},
		{"{1, 2}", "{1, 2}"},
		{"range(3)", "range(0, 3)"},
		{"ValueError('bad')", "bad"},
		{"len", "<built-in function len>"},
		{"float('nan')", "NaN"},
		{"-float('inf')", "-Infinity"},
		{"[set()]", []any{"set()"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, finalValue(t, "v = "+tt.expr+"\n", "v"))
		})
	}
}

func TestEncodeSelfReference(t *testing.T) {
	got := finalValue(t, "v = [1]\nv.append(v)\n", "v")
	assert.Equal(t, "[1, [...]]", got)

	got = finalValue(t, "inner = [1]\nv = [inner, inner]\n", "v")
	assert.Equal(t, []any{[]any{int64(1)}, []any{int64(1)}}, got, "shared references are not cycles")
}

func TestEncodeFunctionRepr(t *testing.T) {
	got := finalValue(t, "def f():\n    pass\n", "f")
	assert.Equal(t, "<function f>", got)
}

func TestReserved(t *testing.T) {
	for _, name := range []string{"__name__", "__builtins__", "__doc__", "__", "__x__"} {
		assert.True(t, Reserved(name), name)
	}
	for _, name := range []string{"x", "_", "_private", "__dunder", "trailing__"} {
		assert.False(t, Reserved(name), name)
	}
}

func TestDiffer(t *testing.T) {
	d := NewDiffer()

	set, prev := d.Diff(1, []interp.Binding{
		{Name: "__name__", Value: interp.Str("__main__")},
		{Name: "x", Value: interp.Int(1)},
	})
	assert.Equal(t, Vars{{"x", int64(1)}}, set)
	assert.Nil(t, prev)

	set, prev = d.Diff(1, []interp.Binding{
		{Name: "x", Value: interp.Float(1.0)},
		{Name: "y", Value: interp.Str("a")},
	})
	assert.Equal(t, Vars{{"y", "a"}}, set, "1 and 1.0 are equal")
	assert.Nil(t, prev)

	set, prev = d.Diff(1, []interp.Binding{
		{Name: "x", Value: interp.Int(2)},
		{Name: "y", Value: interp.Str("a")},
	})
	assert.Equal(t, Vars{{"x", int64(2)}}, set)
	assert.Equal(t, Vars{{"x", 1.0}}, prev)

	snap, ok := d.Snapshot(1)
	require.True(t, ok)
	assert.Equal(t, Vars{{"x", int64(2)}, {"y", "a"}}, snap)

	set, _ = d.Diff(2, []interp.Binding{{Name: "x", Value: interp.Int(2)}})
	assert.Equal(t, Vars{{"x", int64(2)}}, set, "snapshots are per frame id")

	set, _ = d.Diff(1, nil)
	assert.Nil(t, set, "removed names are not reported")

	d.Forget(1)
	_, ok = d.Snapshot(1)
	assert.False(t, ok)
}

func TestSameValue(t *testing.T) {
	assert.True(t, sameValue(int64(1), true))
	assert.True(t, sameValue(int64(1), 1.0))
	assert.False(t, sameValue(int64(1<<53+1), int64(1<<53)))
	assert.False(t, sameValue("1", int64(1)))
	assert.True(t, sameValue(Vars{{"a", int64(1)}, {"b", nil}}, Vars{{"b", nil}, {"a", 1.0}}))
	assert.False(t, sameValue([]any{int64(1)}, []any{int64(1), int64(2)}))
	assert.False(t, sameValue(nil, int64(0)))
}

func TestVarsJSON(t *testing.T) {
	v := Vars{{"z", int64(1)}, {"a", Vars{{"n", []any{2.5, "<s>"}}}}}
	raw, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"n":[2.5,"<s>"]}}`, string(raw))

	var back Vars
	require.NoError(t, back.UnmarshalJSON(raw))
	assert.Equal(t, v, back)

	assert.Error(t, back.UnmarshalJSON([]byte(`[1]`)))
}
