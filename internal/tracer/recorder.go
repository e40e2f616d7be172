package tracer

import (
	"time"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/interp"
)

// Clock returns a monotonic reading in nanoseconds.
type Clock func() int64

var epoch = time.Now()

// MonotonicClock reads nanoseconds elapsed since the process started.
func MonotonicClock() int64 { return int64(time.Since(epoch)) }

// OutputSource is the append-only buffer traced programs print into.
type OutputSource interface {
	Len() int
	Since(offset int) string
}

// RecorderOptions configures a Recorder. Zero values are usable.
type RecorderOptions struct {
	// Limiter is consulted before every event; its error aborts the run.
	Limiter budget.Limiter
	Clock   Clock
}

// Recorder is the step hook. It turns interpreter notifications into the
// ordered event log, one Recorder per trace.
type Recorder struct {
	registry *Registry
	differ   *Differ
	output   OutputSource
	limiter  budget.Limiter
	clock    Clock

	events     []Event
	prevTS     int64
	outSeen    int
	traceBytes int64
	finished   bool
}

// NewRecorder creates a recorder reading program output from out.
func NewRecorder(out OutputSource, opts RecorderOptions) *Recorder {
	if opts.Clock == nil {
		opts.Clock = MonotonicClock
	}
	return &Recorder{
		registry: NewRegistry(),
		differ:   NewDiffer(),
		output:   out,
		limiter:  opts.Limiter,
		clock:    opts.Clock,
	}
}

// Step implements interp.Hook. Notifications for frames without source
// lines (builtins running on behalf of user code) are ignored.
func (r *Recorder) Step(ev interp.Event) error {
	f := ev.Frame
	if f == nil || !f.Traced {
		return nil
	}
	if r.limiter != nil {
		err := r.limiter.Allow(budget.Usage{
			Steps:       int64(len(r.events)),
			OutputBytes: int64(r.outputLen()),
			TraceBytes:  r.traceBytes,
		})
		if err != nil {
			return err
		}
	}

	info := r.registry.LinkLineage(f)
	fid := r.registry.Identify(f)

	ts := r.clock()
	var dt int64
	if len(r.events) > 0 {
		dt = ts - r.prevTS
	}
	r.prevTS = ts

	e := Event{
		Step:   len(r.events) + 1,
		TS:     ts,
		DT:     dt,
		Kind:   ev.Kind.String(),
		Func:   f.Func,
		Line:   f.Line,
		FID:    fid,
		Parent: info.Parent,
		Depth:  info.Depth,
	}

	switch ev.Kind {
	case interp.EventCall:
		if args := EncodeBindings(f.Args()); len(args) > 0 {
			e.Args = args
		}
		r.diff(&e, f)
	case interp.EventLine:
		r.diff(&e, f)
	case interp.EventReturn:
		e.Ret = Encode(ev.Value)
		e.HasRet = true
	case interp.EventException:
		e.ExcType = ev.Exc.Type
		e.Exc = ev.Exc.Msg
	}

	e.Out = r.takeOutput()
	r.traceBytes += e.Args.encodedSize() + e.Set.encodedSize() + e.Prev.encodedSize()
	if e.HasRet {
		r.traceBytes += EncodedSize(e.Ret)
	}
	r.events = append(r.events, e)

	if ev.Kind == interp.EventReturn {
		r.registry.Retire(f)
		r.differ.Forget(fid)
	}
	return nil
}

// FrameExited implements interp.Unwinder: a frame left by an exception
// drops its bookkeeping just like one that returned.
func (r *Recorder) FrameExited(f *interp.Frame) {
	if info, ok := r.registry.Lookup(f); ok {
		r.differ.Forget(info.ID)
	}
	r.registry.Retire(f)
}

func (r *Recorder) diff(e *Event, f *interp.Frame) {
	changed, prior := r.differ.Diff(e.FID, f.Locals.Bindings())
	if len(changed) == 0 {
		return
	}
	e.Set = changed
	e.Prev = prior
	if e.Prev == nil {
		e.Prev = Vars{}
	}
}

func (r *Recorder) outputLen() int {
	if r.output == nil {
		return 0
	}
	return r.output.Len()
}

func (r *Recorder) takeOutput() string {
	n := r.outputLen()
	if n <= r.outSeen {
		return ""
	}
	out := r.output.Since(r.outSeen)
	r.outSeen = n
	return out
}

// Finish attaches output written after the last event to that event. The
// module body has no Return event, so output of the final statement would
// otherwise be lost.
func (r *Recorder) Finish() {
	if r.finished {
		return
	}
	r.finished = true
	if len(r.events) == 0 {
		return
	}
	r.events[len(r.events)-1].Out += r.takeOutput()
}

// Events returns the recorded log.
func (r *Recorder) Events() []Event { return r.events }

// TraceBytes returns the approximate encoded size of the variable values
// held by the log.
func (r *Recorder) TraceBytes() int64 { return r.traceBytes }

// Registry exposes frame bookkeeping.
func (r *Recorder) Registry() *Registry { return r.registry }
