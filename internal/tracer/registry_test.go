package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/pywiz/internal/interp"
	"github.com/ppiankov/pywiz/internal/sandbox"
)

func TestRegistryLineage(t *testing.T) {
	module := &interp.Frame{Func: "<module>", Traced: true, Module: true}
	a := &interp.Frame{Func: "a", Traced: true, Back: module}
	host := &interp.Frame{Func: "max", Back: a}
	b := &interp.Frame{Func: "b", Traced: true, Back: host}

	r := NewRegistry()
	info := r.LinkLineage(module)
	assert.Equal(t, 1, r.Identify(module))
	assert.Nil(t, info.Parent)
	assert.Equal(t, 0, info.Depth)

	// b is observed before its caller: lineage identifies a first.
	info = r.LinkLineage(b)
	bid := r.Identify(b)
	require.NotNil(t, info.Parent)
	assert.Equal(t, 2, *info.Parent)
	assert.Equal(t, 3, bid)
	assert.Equal(t, 1, info.Depth)

	aInfo, ok := r.Lookup(a)
	require.True(t, ok)
	assert.Nil(t, aInfo.Parent, "module body is not a lineage ancestor")
	assert.Equal(t, 0, aInfo.Depth)

	assert.Equal(t, bid, r.Identify(b), "identify is stable for a live frame")
	assert.Equal(t, 3, r.Live())
}

func TestRegistryRetireNeverReusesIDs(t *testing.T) {
	r := NewRegistry()
	f := &interp.Frame{Func: "f", Traced: true}
	assert.Equal(t, 1, r.Identify(f))
	r.Retire(f)
	assert.Equal(t, 0, r.Live())
	_, ok := r.Lookup(f)
	assert.False(t, ok)

	g := &interp.Frame{Func: "f", Traced: true}
	assert.Equal(t, 2, r.Identify(g))
	assert.Equal(t, 2, r.Assigned())
}

func TestRecorderRetiresReturnedFrames(t *testing.T) {
	out := &countingOutput{}
	rec := NewRecorder(out, RecorderOptions{Clock: stepClock()})
	f := &interp.Frame{Func: "f", Traced: true, Locals: interp.NewScope()}
	require.NoError(t, rec.Step(interp.Event{Kind: interp.EventCall, Frame: f}))
	assert.Equal(t, 1, rec.Registry().Live())
	require.NoError(t, rec.Step(interp.Event{Kind: interp.EventReturn, Frame: f, Value: interp.Int(4)}))
	assert.Equal(t, 0, rec.Registry().Live())

	host := &interp.Frame{Func: "len", Back: f}
	require.NoError(t, rec.Step(interp.Event{Kind: interp.EventLine, Frame: host}))
	assert.Len(t, rec.Events(), 2, "frames without source lines are ignored")
}

type countingOutput struct{ s string }

func (c *countingOutput) Len() int { return len(c.s) }
func (c *countingOutput) Since(offset int) string {
	if offset >= len(c.s) {
		return ""
	}
	return c.s[offset:]
}

func TestRecorderOutputDelta(t *testing.T) {
	out := &countingOutput{}
	rec := NewRecorder(out, RecorderOptions{Clock: stepClock()})
	f := &interp.Frame{Func: "<module>", Traced: true, Module: true, Locals: interp.NewScope()}

	require.NoError(t, rec.Step(interp.Event{Kind: interp.EventLine, Frame: f}))
	out.s += "a"
	require.NoError(t, rec.Step(interp.Event{Kind: interp.EventLine, Frame: f}))
	require.NoError(t, rec.Step(interp.Event{Kind: interp.EventLine, Frame: f}))
	out.s += "bc"
	rec.Finish()
	rec.Finish()

	ev := rec.Events()
	assert.Equal(t, "", ev[0].Out)
	assert.Equal(t, "a", ev[1].Out)
	assert.Equal(t, "bc", ev[2].Out)
}

func TestRecorderRetiresFramesLeftByException(t *testing.T) {
	sbx, err := sandbox.Build(caught)
	require.NoError(t, err)
	rec := NewRecorder(sbx.Output, RecorderOptions{Clock: stepClock()})
	require.NoError(t, sbx.Run(interp.Options{Hook: rec}))

	assert.Equal(t, 4, rec.Registry().Assigned(), "module plus three boom frames")
	assert.Equal(t, 1, rec.Registry().Live(), "only the module body stays live")
	for fid := 2; fid <= 4; fid++ {
		_, ok := rec.differ.Snapshot(fid)
		assert.False(t, ok, "snapshot of fid %d must be dropped", fid)
	}
	for _, e := range rec.Events() {
		assert.NotEqual(t, KindReturn, e.Kind, "no return is reported for an unwound frame")
	}
}
