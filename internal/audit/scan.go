package audit

import (
	"bufio"
	"errors"
	"os"
)

// maxLineBytes bounds a single JSONL line when reading a log back.
const maxLineBytes = 1 << 20

// errStop ends eachLine early without reporting an error.
var errStop = errors.New("stop")

// eachLine calls fn for every line of the log, numbered from 1. line is
// only valid during the call.
func eachLine(path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for n := 1; sc.Scan(); n++ {
		if err := fn(n, sc.Bytes()); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
	}
	return sc.Err()
}

// Tail returns up to n of the log's last lines, oldest first.
func Tail(path string, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	ring := make([][]byte, 0, n)
	next := 0
	err := eachLine(path, func(_ int, line []byte) error {
		cp := append([]byte(nil), line...)
		if len(ring) < n {
			ring = append(ring, cp)
			return nil
		}
		ring[next] = cp
		next = (next + 1) % n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append(ring[next:], ring[:next]...), nil
}
