package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// --- Config tests ---

func TestHasLimitsEmpty(t *testing.T) {
	if (Config{}).HasLimits() {
		t.Error("expected empty config to have no limits")
	}
}

func TestHasLimitsConfigured(t *testing.T) {
	cfg := Config{"http": {MaxRequests: 10, Window: time.Minute}}
	if !cfg.HasLimits() {
		t.Error("expected HasLimits=true for configured limit")
	}
}

func TestHasLimitsZeroFields(t *testing.T) {
	for _, l := range []*Limit{{MaxRequests: 0, Window: time.Minute}, {MaxRequests: 10}, nil} {
		if (Config{"http": l}).HasLimits() {
			t.Errorf("expected HasLimits=false for %+v", l)
		}
	}
}

func TestForFallsBackToWildcard(t *testing.T) {
	own := &Limit{MaxRequests: 1, Window: time.Second}
	wild := &Limit{MaxRequests: 5, Window: time.Second}
	cfg := Config{"http": own, "*": wild}

	if cfg.For("http") != own {
		t.Error("expected transport entry")
	}
	if cfg.For("grpc") != wild {
		t.Error("expected wildcard entry")
	}
	if (Config{}).For("grpc") != nil {
		t.Error("expected nil without entries")
	}
}

// --- Tracker tests ---

func TestSnapshotResetsOnWindowExpiry(t *testing.T) {
	start := time.Unix(1000, 0)
	w := &Window{Start: start, Count: 10}

	if got := Snapshot(w, time.Minute, start.Add(30*time.Second)); got != 10 {
		t.Errorf("expected 10 within window, got %d", got)
	}
	if got := Snapshot(w, time.Minute, start.Add(2*time.Minute)); got != 0 {
		t.Errorf("expected 0 after window reset, got %d", got)
	}
	if !w.Start.Equal(start.Add(2 * time.Minute)) {
		t.Errorf("expected window restarted, got %s", w.Start)
	}
}

// --- Check tests ---

func TestCheck(t *testing.T) {
	limit := &Limit{MaxRequests: 10, Window: time.Minute}
	if Check(5, limit).Exceeded {
		t.Error("expected within limit")
	}
	result := Check(10, limit)
	if !result.Exceeded || result.Limit != 10 {
		t.Errorf("expected exceeded at limit, got %+v", result)
	}
	if Check(100, nil).Exceeded {
		t.Error("expected not exceeded for nil limit")
	}
	if !errors.Is(result.Err(), ErrLimited) {
		t.Errorf("expected ErrLimited, got %v", result.Err())
	}
	if (CheckResult{}).Err() != nil {
		t.Error("expected nil error within limit")
	}
}

// --- Limiter tests ---

func TestLimiterNoConfigAllows(t *testing.T) {
	l := NewLimiter(nil)
	for i := 0; i < 100; i++ {
		if l.Allow("http", time.Now()).Exceeded {
			t.Fatal("expected unlimited")
		}
	}
}

func TestLimiterExceedingRateDenied(t *testing.T) {
	l := NewLimiter(Config{"*": {MaxRequests: 3, Window: time.Minute}})
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		if l.Allow("http", now).Exceeded {
			t.Fatalf("call %d: expected within limit", i+1)
		}
	}
	result := l.Allow("http", now)
	if !result.Exceeded {
		t.Fatal("expected rate limit exceeded")
	}
	if result.Transport != "http" || result.Current != 3 {
		t.Errorf("unexpected result %+v", result)
	}

	if l.Allow("http", now.Add(time.Minute)).Exceeded {
		t.Error("expected a new window to allow again")
	}
}

func TestLimiterTransportsIndependent(t *testing.T) {
	l := NewLimiter(Config{"*": {MaxRequests: 1, Window: time.Minute}})
	now := time.Unix(1000, 0)

	l.Allow("http", now)
	if !l.Allow("http", now).Exceeded {
		t.Fatal("expected http limited")
	}
	if l.Allow("grpc", now).Exceeded {
		t.Error("expected grpc independent of http")
	}
}

func TestLimiterSetConfig(t *testing.T) {
	l := NewLimiter(Config{"http": {MaxRequests: 1, Window: time.Minute}})
	now := time.Unix(1000, 0)
	l.Allow("http", now)
	if !l.Allow("http", now).Exceeded {
		t.Fatal("expected limited")
	}
	l.SetConfig(nil)
	if l.Allow("http", now).Exceeded {
		t.Error("expected no limit after config swap")
	}
}

func TestLimiterConcurrent(t *testing.T) {
	l := NewLimiter(Config{"http": {MaxRequests: 50, Window: time.Hour}})
	now := time.Unix(1000, 0)

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !l.Allow("http", now).Exceeded {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Errorf("expected exactly 50 allowed, got %d", allowed)
	}
}
