package ratelimit_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/tipsai/internal/ratelimit"
)

func newLimiter(clock clockwork.Clock, max int, window time.Duration) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Options{MaxRequests: max, Window: window, Clock: clock})
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l := newLimiter(clock, 5, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Allow(1) {
			t.Fatalf("Allow() call %d denied, want allowed", i+1)
		}
	}
	if l.Allow(1) {
		t.Fatal("Allow() sixth call allowed, want denied")
	}
	if !l.Allow(2) {
		t.Error("Allow() for another user denied, want allowed")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l := newLimiter(clock, 2, time.Minute)

	l.Allow(1)
	clock.Advance(20 * time.Second)
	l.Allow(1)

	if got := l.WaitTime(1); got != 40*time.Second {
		t.Fatalf("WaitTime() = %v, want 40s", got)
	}

	clock.Advance(40 * time.Second)
	if got := l.WaitTime(1); got != 0 {
		t.Fatalf("WaitTime() after oldest expired = %v, want 0", got)
	}
	if !l.Allow(1) {
		t.Fatal("Allow() after oldest expired denied, want allowed")
	}
	if l.Allow(1) {
		t.Fatal("Allow() with full window allowed, want denied")
	}
}

func TestLimiter_DeniedCallsAreNotRecorded(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l := newLimiter(clock, 1, time.Minute)

	l.Allow(1)
	for i := 0; i < 10; i++ {
		clock.Advance(5 * time.Second)
		if l.Allow(1) {
			t.Fatalf("Allow() at +%ds allowed, want denied", (i+1)*5)
		}
	}

	// Only the first admitted call counts: it ages out at +60s.
	if got := l.WaitTime(1); got != 10*time.Second {
		t.Fatalf("WaitTime() = %v, want 10s", got)
	}
	clock.Advance(10 * time.Second)
	if !l.Allow(1) {
		t.Fatal("Allow() after window expired denied, want allowed")
	}
}

func TestLimiter_WaitTimeForUnknownUser(t *testing.T) {
	t.Parallel()

	l := newLimiter(clockwork.NewFakeClock(), 5, time.Minute)
	if got := l.WaitTime(42); got != 0 {
		t.Errorf("WaitTime() = %v, want 0", got)
	}
}

func TestLimiter_Check(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l := newLimiter(clock, 1, time.Minute)

	if err := l.Check(1); err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	clock.Advance(15 * time.Second)

	err := l.Check(1)
	var rlErr *ratelimit.RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Check() error = %v, want *RateLimitError", err)
	}
	if rlErr.Wait != 45*time.Second || rlErr.WaitSeconds() != 45 {
		t.Errorf("Wait = %v (%ds), want 45s", rlErr.Wait, rlErr.WaitSeconds())
	}
}

func TestLimiter_CleanupForgetsIdleUsers(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l := ratelimit.New(ratelimit.Options{MaxRequests: 5, Window: time.Minute, CleanupEvery: 3, Clock: clock})

	l.Allow(1)
	l.Allow(2)
	if got := l.Tracked(); got != 2 {
		t.Fatalf("Tracked() = %d, want 2", got)
	}

	clock.Advance(2 * time.Minute)
	l.Allow(3) // third call triggers cleanup

	if got := l.Tracked(); got != 1 {
		t.Errorf("Tracked() after cleanup = %d, want 1", got)
	}
}

func TestLimiter_ConcurrentAdmissionNeverExceedsMax(t *testing.T) {
	t.Parallel()

	l := newLimiter(clockwork.NewFakeClock(), 5, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(7) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Errorf("allowed = %d, want 5", allowed)
	}
}
