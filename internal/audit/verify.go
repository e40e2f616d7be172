package audit

import (
	"encoding/json"
	"fmt"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify walks a request log and reports the first line whose prev_hash
// does not match the hash of the line before it (GenesisHash for line 1).
func Verify(path string) VerifyResult {
	res := VerifyResult{Valid: true}
	want := GenesisHash

	err := eachLine(path, func(n int, line []byte) error {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			res = VerifyResult{Error: fmt.Sprintf("parse error: %v", err), ErrorLine: n}
			return errStop
		}
		if e.PrevHash != want {
			msg := fmt.Sprintf("hash mismatch: expected %s, got %s", want, e.PrevHash)
			if n == 1 {
				msg = fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", e.PrevHash)
			}
			res = VerifyResult{Error: msg, ErrorLine: n}
			return errStop
		}
		want = HashLine(line)
		res.Lines = n
		return nil
	})
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("read: %v", err)}
	}
	return res
}
