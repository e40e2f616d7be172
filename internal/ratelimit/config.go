package ratelimit

import "time"

// Limit caps requests from one transport within a fixed window.
// Zero values mean no limit.
type Limit struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

func (l *Limit) active() bool {
	return l != nil && l.MaxRequests > 0 && l.Window > 0
}

// Config maps a transport name ("http", "grpc", "mcp", "cli") to its limit.
// The "*" key applies to transports without their own entry.
type Config map[string]*Limit

// HasLimits returns true if any transport has a configured limit.
func (c Config) HasLimits() bool {
	for _, l := range c {
		if l.active() {
			return true
		}
	}
	return false
}

// For returns the limit that applies to transport, or nil.
func (c Config) For(transport string) *Limit {
	if l := c[transport]; l != nil {
		return l
	}
	return c["*"]
}
