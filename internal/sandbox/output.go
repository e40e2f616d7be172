package sandbox

import "strings"

// OutputBuffer collects program output. It only grows, so readers track a
// byte offset and ask for what was written since.
type OutputBuffer struct {
	b strings.Builder
}

// Write implements io.Writer.
func (o *OutputBuffer) Write(p []byte) (int, error) {
	return o.b.Write(p)
}

// Len returns the total bytes written.
func (o *OutputBuffer) Len() int { return o.b.Len() }

// Since returns output written after offset.
func (o *OutputBuffer) Since(offset int) string {
	s := o.b.String()
	if offset >= len(s) {
		return ""
	}
	return s[offset:]
}

// String returns everything written.
func (o *OutputBuffer) String() string { return o.b.String() }
