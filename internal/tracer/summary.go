package tracer

// Summary counts what a trace contains.
type Summary struct {
	Events      int
	Calls       int
	Lines       int
	Returns     int
	Exceptions  int
	Frames      int
	MaxDepth    int
	OutputBytes int
	// Elapsed is the span between the first and last event, in nanoseconds.
	Elapsed int64
}

// Summarize walks a result once.
func Summarize(r Result) Summary {
	s := Summary{Events: len(r.Trace)}
	seen := map[int]bool{}
	for _, e := range r.Trace {
		switch e.Kind {
		case KindCall:
			s.Calls++
		case KindLine:
			s.Lines++
		case KindReturn:
			s.Returns++
		case KindException:
			s.Exceptions++
		}
		seen[e.FID] = true
		if e.Depth > s.MaxDepth {
			s.MaxDepth = e.Depth
		}
		s.OutputBytes += len(e.Out)
	}
	s.Frames = len(seen)
	if n := len(r.Trace); n > 1 {
		s.Elapsed = r.Trace[n-1].TS - r.Trace[0].TS
	}
	return s
}
