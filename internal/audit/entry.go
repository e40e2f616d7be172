package audit

// Outcomes recorded for a trace request.
const (
	OutcomeOK             = "ok"
	OutcomeException      = "exception"
	OutcomeCompileError   = "compile_error"
	OutcomeBudgetExceeded = "budget_exceeded"
	OutcomeRateLimited    = "rate_limited"
	OutcomeError          = "error"
)

// Entry is one trace request in the hash-chained JSONL audit log. Only
// metadata is kept: the source is represented by its hash and the trace
// itself is never written.
// All fields are plain values (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp  string `json:"ts"`
	RequestID  string `json:"request_id"`
	Transport  string `json:"transport"` // "http", "grpc", "mcp", "cli"
	CodeHash   string `json:"code_hash"`
	CodeBytes  int    `json:"code_bytes"`
	Steps      int    `json:"steps"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	ConfigHash string `json:"config_hash"`
	PrevHash   string `json:"prev_hash"`
}

// HashCode returns the digest stored in Entry.CodeHash.
func HashCode(code string) string {
	return HashLine([]byte(code))
}
