package tracer

import "github.com/ppiankov/pywiz/internal/interp"

// Differ keeps the last encoded bindings per frame id and reports what
// changed since.
type Differ struct {
	snapshots map[int]Vars
}

// NewDiffer returns a differ with no snapshots.
func NewDiffer() *Differ {
	return &Differ{snapshots: map[int]Vars{}}
}

// Diff encodes bindings, skipping reserved names, and compares them with the
// snapshot for fid. changed holds every new or different name with its new
// value; prior holds the old value of each changed name that existed
// before. The snapshot is replaced by the encoded bindings.
func (d *Differ) Diff(fid int, bindings []interp.Binding) (changed, prior Vars) {
	curr := EncodeBindings(bindings)
	prev := d.snapshots[fid]
	index := make(map[string]any, len(prev))
	for _, v := range prev {
		index[v.Name] = v.Value
	}
	for _, v := range curr {
		old, existed := index[v.Name]
		if existed && sameValue(old, v.Value) {
			continue
		}
		changed = append(changed, v)
		if existed {
			prior = append(prior, Var{Name: v.Name, Value: old})
		}
	}
	d.snapshots[fid] = curr
	return changed, prior
}

// Snapshot returns the encoded bindings of fid as last observed.
func (d *Differ) Snapshot(fid int) (Vars, bool) {
	s, ok := d.snapshots[fid]
	return s, ok
}

// Forget drops the snapshot for fid.
func (d *Differ) Forget(fid int) {
	delete(d.snapshots, fid)
}

// EncodeBindings encodes bindings in order, leaving out reserved names.
func EncodeBindings(bindings []interp.Binding) Vars {
	out := make(Vars, 0, len(bindings))
	for _, b := range bindings {
		if Reserved(b.Name) {
			continue
		}
		out = append(out, Var{Name: b.Name, Value: Encode(b.Value)})
	}
	return out
}
