package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func FuzzVerify(f *testing.F) {
	chain, err := os.ReadFile(writeChain(f, 3))
	if err != nil {
		f.Fatal(err)
	}
	for _, seed := range [][]byte{chain, nil, []byte(`{"outcome":"ok"}` + "\n"), []byte("not json")} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		path := filepath.Join(t.TempDir(), "fuzz.jsonl")
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatal(err)
		}
		res := Verify(path)
		if res.Valid && res.ErrorLine != 0 {
			t.Fatalf("valid result with error line %d", res.ErrorLine)
		}
		if !res.Valid {
			return
		}
		rr, err := Replay(path, ReplayFilter{})
		if err != nil {
			t.Fatalf("replay of a valid log: %v", err)
		}
		if rr.Summary.Total != res.Lines {
			t.Fatalf("replay saw %d entries, verify %d lines", rr.Summary.Total, res.Lines)
		}
	})
}
