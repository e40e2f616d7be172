package tracer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/lang"
)

const recursive = `def f(n):
    if n == 0:
        return 0
    return n + f(n - 1)
f(2)
`

// stepClock advances 10ns per reading.
func stepClock() Clock {
	var n int64
	return func() int64 {
		n += 10
		return n
	}
}

func trace(t *testing.T, src string, opts Options) Result {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = stepClock()
	}
	res, err := Trace(context.Background(), src, opts)
	require.NoError(t, err)
	checkInvariants(t, res)
	return res
}

func ofKind(res Result, kind string) []Event {
	var out []Event
	for _, e := range res.Trace {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// checkInvariants asserts the properties every trace must satisfy.
func checkInvariants(t *testing.T, res Result) {
	t.Helper()
	maxFID := 0
	depths := map[int]int{}
	last := map[int]map[string]any{}
	for i, e := range res.Trace {
		require.Equal(t, i+1, e.Step, "steps must be 1..N without gaps")

		if e.FID > maxFID {
			require.Equal(t, maxFID+1, e.FID, "frame ids must appear in first-seen order")
			maxFID = e.FID
		}

		if d, ok := depths[e.FID]; ok {
			assert.Equal(t, d, e.Depth, "depth of fid %d changed", e.FID)
		}
		depths[e.FID] = e.Depth
		if e.Parent == nil {
			assert.Equal(t, 0, e.Depth, "root frame %d must have depth 0", e.FID)
		} else {
			pd, ok := depths[*e.Parent]
			require.True(t, ok, "parent %d of fid %d never observed", *e.Parent, e.FID)
			assert.Equal(t, pd+1, e.Depth)
		}

		for _, payload := range []Vars{e.Args, e.Set, e.Prev} {
			for _, v := range payload {
				assert.False(t, Reserved(v.Name), "reserved name %q exposed at step %d", v.Name, e.Step)
			}
		}

		if last[e.FID] == nil {
			last[e.FID] = map[string]any{}
		}
		for _, p := range e.Prev {
			_, inSet := e.Set.Get(p.Name)
			assert.True(t, inSet, "prev key %q missing from set at step %d", p.Name, e.Step)
			assert.Equal(t, last[e.FID][p.Name], p.Value, "prev of %q at step %d", p.Name, e.Step)
		}
		for _, s := range e.Set {
			last[e.FID][s.Name] = s.Value
		}
	}
}

func TestTraceStraightLine(t *testing.T) {
	res := trace(t, "x = 1\ny = x + 1\nprint(y)\n", Options{})

	require.Len(t, res.Trace, 3)
	for i, e := range res.Trace {
		assert.Equal(t, KindLine, e.Kind)
		assert.Equal(t, i+1, e.Line)
		assert.Equal(t, 0, e.Depth)
		assert.Nil(t, e.Parent)
		assert.Equal(t, "<module>", e.Func)
	}
	assert.Nil(t, res.Trace[0].Set)
	assert.Equal(t, Vars{{"x", int64(1)}}, res.Trace[1].Set)
	assert.Equal(t, Vars{}, res.Trace[1].Prev)
	assert.Equal(t, Vars{{"y", int64(2)}}, res.Trace[2].Set)
	assert.Equal(t, "2\n", res.Trace[2].Out)
	assert.Equal(t, DefaultFilename, res.Filename)
	assert.Nil(t, res.Uncaught)
}

func TestTraceTiming(t *testing.T) {
	res := trace(t, "a = 1\nb = 2\n", Options{})
	require.Len(t, res.Trace, 2)
	assert.Equal(t, int64(10), res.Trace[0].TS)
	assert.Equal(t, int64(0), res.Trace[0].DT)
	assert.Equal(t, int64(20), res.Trace[1].TS)
	assert.Equal(t, int64(10), res.Trace[1].DT)
}

func TestTraceRecursion(t *testing.T) {
	res := trace(t, recursive, Options{})

	calls := ofKind(res, KindCall)
	require.Len(t, calls, 3)
	for i, c := range calls {
		assert.Equal(t, i, c.Depth)
		assert.Equal(t, "f", c.Func)
		assert.Equal(t, 1, c.Line)
		assert.Equal(t, Vars{{"n", int64(2 - i)}}, c.Args)
		assert.Equal(t, c.Args, c.Set)
		if i == 0 {
			assert.Nil(t, c.Parent)
			continue
		}
		assert.Greater(t, c.FID, calls[i-1].FID)
		require.NotNil(t, c.Parent)
		assert.Equal(t, calls[i-1].FID, *c.Parent)
	}

	returns := ofKind(res, KindReturn)
	require.Len(t, returns, 3)
	var rets []any
	for _, r := range returns {
		rets = append(rets, r.Ret)
	}
	assert.Equal(t, []any{int64(0), int64(1), int64(3)}, rets)
	assert.Equal(t, calls[2].FID, returns[0].FID)
	assert.Equal(t, calls[0].FID, returns[2].FID)
}

func TestTraceUncaughtException(t *testing.T) {
	res := trace(t, `def g():
    raise ValueError("boom")
def h():
    g()
h()
`, Options{})

	require.NotNil(t, res.Uncaught)
	assert.Equal(t, "ValueError", res.Uncaught.Type)
	assert.Empty(t, ofKind(res, KindReturn))

	n := len(res.Trace)
	require.GreaterOrEqual(t, n, 3)
	tail := res.Trace[n-3:]
	fids := []int{}
	for _, e := range tail {
		assert.Equal(t, KindException, e.Kind)
		assert.Equal(t, "ValueError", e.ExcType)
		assert.Equal(t, "boom", e.Exc)
		fids = append(fids, e.FID)
	}
	assert.Equal(t, []int{3, 2, 1}, fids)
	assert.Equal(t, []string{"g", "h", "<module>"}, []string{tail[0].Func, tail[1].Func, tail[2].Func})
}

func TestTraceCaughtException(t *testing.T) {
	res := trace(t, `def safe_div(a, b):
    try:
        return a / b
    except ZeroDivisionError as e:
        return -1
r = safe_div(1, 0)
`, Options{})

	var kinds []string
	for _, e := range res.Trace {
		kinds = append(kinds, e.Kind+":"+strconv.Itoa(e.Line))
	}
	assert.Equal(t, []string{
		"Line:1", "Line:6", "Call:1", "Line:2", "Line:3",
		"Exception:3", "Line:4", "Line:5", "Return:5",
	}, kinds)

	exc := ofKind(res, KindException)[0]
	assert.Equal(t, "ZeroDivisionError", exc.ExcType)
	assert.Equal(t, "division by zero", exc.Exc)

	ret := ofKind(res, KindReturn)[0]
	assert.Equal(t, int64(-1), ret.Ret)
	assert.Nil(t, res.Uncaught)

	bound, ok := res.Trace[7].Set.Get("e")
	require.True(t, ok)
	assert.Equal(t, "division by zero", bound)
}

func TestTraceSkipsHostFrames(t *testing.T) {
	res := trace(t, `def k(x):
    return -x
def outer():
    return max([1, 2], key=k)
outer()
`, Options{})

	calls := ofKind(res, KindCall)
	require.Len(t, calls, 3)
	assert.Equal(t, "outer", calls[0].Func)
	for _, c := range calls[1:] {
		assert.Equal(t, "k", c.Func)
		require.NotNil(t, c.Parent)
		assert.Equal(t, calls[0].FID, *c.Parent)
		assert.Equal(t, 1, c.Depth)
	}
	assert.NotEqual(t, calls[1].FID, calls[2].FID)
}

func TestTraceVariadicArgs(t *testing.T) {
	res := trace(t, "def v(a, *rest, **kw):\n    pass\nv(1, 2, k=3)\n", Options{})

	call := ofKind(res, KindCall)[0]
	assert.Equal(t, []string{"a", "*rest", "**kw"}, call.Args.Names())
	rest, _ := call.Args.Get("*rest")
	assert.Equal(t, []any{int64(2)}, rest)
	kw, _ := call.Args.Get("**kw")
	assert.Equal(t, Vars{{"k", int64(3)}}, kw)
	assert.Equal(t, []string{"a", "rest", "kw"}, call.Set.Names())
}

func TestTraceNoArgsOmitted(t *testing.T) {
	res := trace(t, "def z():\n    return None\nz()\n", Options{})

	call := ofKind(res, KindCall)[0]
	assert.Nil(t, call.Args)
	ret := ofKind(res, KindReturn)[0]
	assert.True(t, ret.HasRet)
	assert.Nil(t, ret.Ret)

	raw, err := json.Marshal(ret)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ret":null`)
}

func TestTraceLoopDiffs(t *testing.T) {
	res := trace(t, "total = 0\nfor i in range(3):\n    total += i\n", Options{})

	var totals []any
	for _, e := range res.Trace {
		if v, ok := e.Set.Get("total"); ok {
			totals = append(totals, v)
		}
	}
	// total += 0 leaves the value unchanged, so it is not reported again.
	assert.Equal(t, []any{int64(0), int64(1), int64(3)}, totals)
}

func TestTraceCompileError(t *testing.T) {
	_, err := Trace(context.Background(), "def f(:\n", Options{})
	var ce *lang.CompileError
	require.True(t, errors.As(err, &ce), "expected CompileError, got %v", err)
	assert.Equal(t, 1, ce.Line)
}

func TestTraceIsRepeatable(t *testing.T) {
	a := trace(t, recursive, Options{})
	b := trace(t, recursive, Options{Clock: func() int64 { return 7 }})

	strip := func(r Result) []Event {
		out := make([]Event, len(r.Trace))
		for i, e := range r.Trace {
			e.TS, e.DT = 0, 0
			out[i] = e
		}
		return out
	}
	assert.Equal(t, strip(a), strip(b))
}

func TestTraceStepLimit(t *testing.T) {
	res, err := Trace(context.Background(), "while True:\n    pass\n", Options{
		Limits: budget.Limits{MaxSteps: 50},
	})
	var exceeded *budget.ExceededError
	require.True(t, errors.As(err, &exceeded), "expected ExceededError, got %v", err)
	assert.Equal(t, "steps", exceeded.Result.Dimension)
	assert.Len(t, res.Trace, 50)
	checkInvariants(t, res)
}

func TestTraceOutputLimit(t *testing.T) {
	res, err := Trace(context.Background(), "while True:\n    print('xxxx')\n", Options{
		Limits: budget.Limits{MaxOutputBytes: 12},
	})
	var exceeded *budget.ExceededError
	require.True(t, errors.As(err, &exceeded), "expected ExceededError, got %v", err)
	assert.Equal(t, "output_bytes", exceeded.Result.Dimension)
	assert.NotEmpty(t, res.Trace)
}

func TestTraceBytesLimit(t *testing.T) {
	const growing = "l = []\nwhile True:\n    l.append(1)\n"
	res, err := Trace(context.Background(), growing, Options{
		Limits: budget.Limits{MaxSteps: 100000, MaxTraceBytes: 1 << 16},
	})
	var exceeded *budget.ExceededError
	require.True(t, errors.As(err, &exceeded), "expected ExceededError, got %v", err)
	assert.Equal(t, "trace_bytes", exceeded.Result.Dimension)
	assert.Less(t, len(res.Trace), 2000, "the log must stop long before the step limit")
	checkInvariants(t, res)

	var held int64
	for _, e := range res.Trace {
		held += e.Set.encodedSize() + e.Prev.encodedSize()
	}
	assert.Greater(t, held, int64(1<<16), "the stop is driven by the values the log holds")
}

func TestEncodedSizeMatchesJSON(t *testing.T) {
	for _, v := range []any{
		nil, true, false, int64(-42), 2.5, "hi",
		[]any{int64(1), "a", []any{}},
		Vars{{Name: "k", Value: []any{nil, true}}, {Name: "n", Value: int64(7)}},
	} {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), EncodedSize(v), "%s", data)
	}
}

func TestTraceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Trace(ctx, "x = 1\n", Options{})
	assert.True(t, errors.Is(err, budget.ErrCancelled), "expected ErrCancelled, got %v", err)
	assert.Empty(t, res.Trace)
}

func TestTraceCallDepthLimit(t *testing.T) {
	res := trace(t, "def r(n):\n    return r(n + 1)\nr(0)\n", Options{
		Limits: budget.Limits{MaxCallDepth: 5},
	})
	require.NotNil(t, res.Uncaught)
	assert.Equal(t, "RecursionError", res.Uncaught.Type)
	assert.Len(t, ofKind(res, KindCall), 5)
}

func TestEventJSONFieldOrder(t *testing.T) {
	res := trace(t, "x = 1\nprint('<hi>')\n", Options{})

	raw, err := res.Trace[1].MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"step":2,"ts":20,"dt":10,"event":"Line","func":"<module>","line":2,"fid":1,"parent":null,"depth":0,"set":{"x":1},"prev":{},"out+":"<hi>\n"}`,
		string(raw))
}

func TestResultJSONRoundTrip(t *testing.T) {
	res := trace(t, recursive+"print('done')\n", Options{})

	raw, err := res.JSON("")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{"filename":"<user_code>","code":`)

	back, err := ReadResult(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, res.Filename, back.Filename)
	assert.Equal(t, res.Code, back.Code)
	assert.Equal(t, res.Trace, back.Trace)
}

func TestResultToStruct(t *testing.T) {
	res := trace(t, recursive, Options{})

	s, err := res.ToStruct()
	require.NoError(t, err)
	assert.Equal(t, DefaultFilename, s.Fields["filename"].GetStringValue())
	trace := s.Fields["trace"].GetListValue().GetValues()
	require.Len(t, trace, len(res.Trace))
	first := trace[0].GetStructValue().Fields
	assert.Equal(t, "Line", first["event"].GetStringValue())
	assert.Equal(t, float64(1), first["step"].GetNumberValue())

	back, err := FromStruct(s)
	require.NoError(t, err)
	require.Len(t, back.Trace, len(res.Trace))
	for i := range res.Trace {
		assert.Equal(t, res.Trace[i].Step, back.Trace[i].Step)
		assert.Equal(t, res.Trace[i].Kind, back.Trace[i].Kind)
		assert.Equal(t, res.Trace[i].Parent, back.Trace[i].Parent)
		assert.Equal(t, res.Trace[i].Ret, back.Trace[i].Ret)
	}
}

func TestSerializeCopiesEvents(t *testing.T) {
	events := []Event{{Step: 1, Kind: KindLine}}
	res := Serialize("label", "code", events)
	events[0].Step = 99
	assert.Equal(t, 1, res.Trace[0].Step)

	empty := Serialize("label", "", nil)
	raw, err := empty.JSON("")
	require.NoError(t, err)
	assert.Equal(t, `{"filename":"label","code":"","trace":[]}`, string(raw))
}

func TestSummarize(t *testing.T) {
	res := trace(t, recursive+"print(1)\n", Options{})
	s := Summarize(res)
	assert.Equal(t, 3, s.Calls)
	assert.Equal(t, 3, s.Returns)
	assert.Equal(t, 4, s.Frames)
	assert.Equal(t, 2, s.MaxDepth)
	assert.Equal(t, 2, s.OutputBytes)
	assert.Equal(t, len(res.Trace), s.Events)
}
