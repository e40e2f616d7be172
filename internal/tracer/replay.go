package tracer

import (
	"slices"
	"sort"
	"strings"
)

const moduleFunc = "<module>"

// FrameState is what is known about one frame at a given step.
type FrameState struct {
	FID    int
	Func   string
	Depth  int
	Parent *int
	Line   int
	Locals Vars
	Closed bool // a Return event was seen
	// Unwound is set once the frame is known to have ended without a
	// Return, because a later event ran in one of its callers.
	Unwound bool
	Ret     any
	HasRet  bool
	// Exc is the last exception seen passing through the frame.
	Exc string
}

// State is the program state reconstructed from the first events of a log.
type State struct {
	Stdout   string
	Frames   map[int]*FrameState
	Last     *Event
	Children map[int][]int
	Roots    []int

	live []int // frames on the call stack at Last, outermost first
}

// Current returns the frame of the last applied event.
func (s State) Current() *FrameState {
	if s.Last == nil {
		return nil
	}
	return s.Frames[s.Last.FID]
}

// Stack returns the frames on the call stack at the last applied event,
// innermost first. It ends at the module body, which functions called from
// module level are not linked to by Parent.
func (s State) Stack() []*FrameState {
	out := make([]*FrameState, 0, len(s.live))
	for i := len(s.live) - 1; i >= 0; i-- {
		out = append(out, s.Frames[s.live[i]])
	}
	return out
}

// enter makes fs the innermost live frame. Frames above an existing entry,
// or above the caller of a new one, have ended: those that did not return
// are marked unwound.
func (s *State) enter(fs *FrameState, isNew bool) {
	var keep int
	switch {
	case !isNew:
		keep = slices.Index(s.live, fs.FID)
	case fs.Parent != nil:
		if keep = slices.Index(s.live, *fs.Parent); keep >= 0 {
			keep++
		}
	default:
		keep = slices.IndexFunc(s.live, func(fid int) bool { return s.Frames[fid].Func != moduleFunc })
	}
	if keep < 0 {
		keep = len(s.live)
	}
	for _, fid := range s.live[keep:] {
		if fid == fs.FID {
			continue
		}
		if f := s.Frames[fid]; !f.Closed {
			f.Unwound = true
		}
	}
	s.live = append(s.live[:keep], fs.FID)
}

// ReconstructState replays events[0..step] (step is a 0-based index) and
// returns accumulated output, frame table and call tree. A step past the end
// replays the whole log.
func ReconstructState(events []Event, step int) State {
	st := State{Frames: map[int]*FrameState{}, Children: map[int][]int{}}
	var out strings.Builder

	for i := 0; i <= step && i < len(events); i++ {
		ev := &events[i]
		st.Last = ev
		out.WriteString(ev.Out)

		if i > 0 && events[i-1].Kind == KindReturn && len(st.live) > 0 {
			st.live = st.live[:len(st.live)-1]
		}

		fs, ok := st.Frames[ev.FID]
		if !ok {
			fs = &FrameState{
				FID:    ev.FID,
				Func:   ev.Func,
				Depth:  ev.Depth,
				Parent: ev.Parent,
			}
			for _, a := range ev.Args {
				fs.Locals.Set(a.Name, a.Value)
			}
			st.Frames[ev.FID] = fs
		}
		st.enter(fs, !ok)
		fs.Line = ev.Line
		for _, s := range ev.Set {
			fs.Locals.Set(s.Name, s.Value)
		}
		switch ev.Kind {
		case KindReturn:
			fs.Closed = true
			if ev.HasRet {
				fs.Ret, fs.HasRet = ev.Ret, true
			}
		case KindException:
			fs.Exc = ev.ExcType
			if ev.Exc != "" {
				fs.Exc += ": " + ev.Exc
			}
		}
	}
	st.Stdout = out.String()

	fids := make([]int, 0, len(st.Frames))
	for fid := range st.Frames {
		fids = append(fids, fid)
	}
	sort.Ints(fids)
	for _, fid := range fids {
		fs := st.Frames[fid]
		if fs.Parent == nil {
			st.Roots = append(st.Roots, fid)
			continue
		}
		st.Children[*fs.Parent] = append(st.Children[*fs.Parent], fid)
	}
	return st
}
