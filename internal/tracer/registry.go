package tracer

import "github.com/ppiankov/pywiz/internal/interp"

// FrameInfo is the identity and lineage of one observed frame.
type FrameInfo struct {
	ID     int
	Parent *int // nil for a root frame
	Depth  int
}

type frameRecord struct {
	FrameInfo
	linked bool
}

// Registry assigns frame ids in first-seen order and derives lineage from
// the live caller chain. Ids start at 1 and are never reused, even after
// a frame retires.
type Registry struct {
	next int
	live map[*interp.Frame]*frameRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{next: 1, live: map[*interp.Frame]*frameRecord{}}
}

func (r *Registry) record(f *interp.Frame) *frameRecord {
	rec, ok := r.live[f]
	if !ok {
		rec = &frameRecord{}
		r.live[f] = rec
	}
	return rec
}

// Identify returns the id of f, assigning the next one on first sight.
func (r *Registry) Identify(f *interp.Frame) int {
	rec := r.record(f)
	if rec.ID == 0 {
		rec.ID = r.next
		r.next++
	}
	return rec.ID
}

// LinkLineage resolves parent and depth for f once. The parent is the
// nearest enclosing user function activation; host frames and the module
// body are skipped, so functions called from module level are roots.
func (r *Registry) LinkLineage(f *interp.Frame) FrameInfo {
	rec := r.record(f)
	if rec.linked {
		return rec.FrameInfo
	}
	rec.linked = true
	for p := f.Back; p != nil; p = p.Back {
		if !p.Callable() {
			continue
		}
		parent := r.LinkLineage(p)
		pid := r.Identify(p)
		rec.Parent = &pid
		rec.Depth = parent.Depth + 1
		break
	}
	return rec.FrameInfo
}

// Lookup returns the bookkeeping for a live frame.
func (r *Registry) Lookup(f *interp.Frame) (FrameInfo, bool) {
	rec, ok := r.live[f]
	if !ok {
		return FrameInfo{}, false
	}
	return rec.FrameInfo, true
}

// Retire drops the bookkeeping of a returned frame. Its id stays used.
func (r *Registry) Retire(f *interp.Frame) {
	delete(r.live, f)
}

// Live returns the number of frames with bookkeeping.
func (r *Registry) Live() int { return len(r.live) }

// Assigned returns how many ids have been handed out.
func (r *Registry) Assigned() int { return r.next - 1 }
