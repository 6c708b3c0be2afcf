package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10.0, 5)
	if l == nil {
		t.Fatal("NewLimiter returned nil")
	}
	if float64(l.rate) != 10.0 {
		t.Errorf("rate = %f, want 10.0", float64(l.rate))
	}
	if l.burst != 5 {
		t.Errorf("burst = %d, want 5", l.burst)
	}
}

func TestAllow_WithinBurst(t *testing.T) {
	l := NewLimiter(1.0, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
}

func TestAllow_ExceedsBurst(t *testing.T) {
	now := time.Now()
	l := NewLimiter(1.0, 2)
	l.nowFunc = func() time.Time { return now }

	l.Allow("key1")
	l.Allow("key1")

	if l.Allow("key1") {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_RefillAfterWait(t *testing.T) {
	now := time.Now()
	l := NewLimiter(10.0, 2) // 10 tokens/sec
	l.nowFunc = func() time.Time { return now }

	l.Allow("key1")
	l.Allow("key1")

	if l.Allow("key1") {
		t.Error("expected rejection after burst")
	}

	// 200ms at 10 tokens/sec refills 2 tokens
	now = now.Add(200 * time.Millisecond)

	if !l.Allow("key1") {
		t.Error("expected allow after refill")
	}
	if !l.Allow("key1") {
		t.Error("expected second allow after refill")
	}
	if l.Allow("key1") {
		t.Error("expected rejection after consuming refilled tokens")
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	now := time.Now()
	l := NewLimiter(1.0, 1)
	l.nowFunc = func() time.Time { return now }

	if !l.Allow("a") {
		t.Error("first request for key a should be allowed")
	}
	if l.Allow("a") {
		t.Error("second request for key a should be rejected")
	}
	if !l.Allow("b") {
		t.Error("key b should have its own bucket")
	}
}

func TestAllow_BurstDoesNotExceedMax(t *testing.T) {
	now := time.Now()
	l := NewLimiter(10.0, 3)
	l.nowFunc = func() time.Time { return now }

	l.Allow("key1")
	now = now.Add(time.Hour)

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("key1") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed %d after long idle, want burst cap 3", allowed)
	}
}

func TestAllow_ZeroRate(t *testing.T) {
	now := time.Now()
	l := NewLimiter(0, 1)
	l.nowFunc = func() time.Time { return now }

	if !l.Allow("key1") {
		t.Error("initial burst token should be available")
	}
	now = now.Add(time.Hour)
	if l.Allow("key1") {
		t.Error("zero rate should never refill")
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	now := time.Now()
	l := NewLimiter(0, 50)
	l.nowFunc = func() time.Time { return now }

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if l.Allow("shared") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed %d of 100 concurrent requests, want exactly burst 50", allowed)
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()
	for _, tool := range []string{
		"fuzzbrake_infer",
		"fuzzbrake_state",
		"fuzzbrake_curves",
		"fuzzbrake_set_inputs",
		"fuzzbrake_simulation",
		"fuzzbrake_update_membership",
		"fuzzbrake_rules",
	} {
		if limiters[tool] == nil {
			t.Errorf("missing limiter for %s", tool)
		}
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := ToolLimiters{"tool": NewLimiter(0, 1)}

	if err := CheckLimit(limiters, "tool"); err != nil {
		t.Errorf("first call should be allowed: %v", err)
	}
	err := CheckLimit(limiters, "tool")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("second call error = %v, want ErrRateLimited", err)
	}
	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unknown tool should be unlimited: %v", err)
	}
}
