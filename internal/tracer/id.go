package tracer

import "github.com/google/uuid"

// NewRequestID generates an id for one trace request, e.g. "r-3f0c…".
func NewRequestID() string {
	return "r-" + uuid.NewString()
}
