// Package ratelimit provides per-user sliding-window admission control.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Defaults match the group's usage pattern of a handful of questions per minute.
const (
	DefaultMaxRequests  = 5
	DefaultWindow       = 60 * time.Second
	DefaultCleanupEvery = 100
)

// Options tunes a Limiter.
type Options struct {
	MaxRequests int
	Window      time.Duration
	// CleanupEvery runs a sweep of idle users every N calls to Allow.
	CleanupEvery int
	Clock        clockwork.Clock
}

// RateLimitError is returned by Check when a user is over the limit.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %.0fs", e.Wait.Seconds())
}

// WaitSeconds returns the wait hint rounded up to whole seconds.
func (e *RateLimitError) WaitSeconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

// Limiter is a sliding-window rate limiter keyed by user ID.
// It is safe for concurrent use.
type Limiter struct {
	maxRequests  int
	window       time.Duration
	cleanupEvery int
	clock        clockwork.Clock

	mu        sync.Mutex
	requests  map[int64][]time.Time
	callCount int
}

// New creates a Limiter, filling unset options with defaults.
func New(opts Options) *Limiter {
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = DefaultMaxRequests
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = DefaultCleanupEvery
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Limiter{
		maxRequests:  opts.MaxRequests,
		window:       opts.Window,
		cleanupEvery: opts.CleanupEvery,
		clock:        opts.Clock,
		requests:     make(map[int64][]time.Time),
	}
}

// Allow reports whether userID may proceed and records the request if so.
// Denied attempts are not recorded.
func (l *Limiter) Allow(userID int64) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.callCount++
	if l.callCount%l.cleanupEvery == 0 {
		l.cleanup(now)
	}

	window := l.evict(userID, now)
	if len(window) >= l.maxRequests {
		return false
	}
	l.requests[userID] = append(window, now)
	return true
}

// WaitTime returns how long userID must wait before the next request is
// admitted, or zero if it would be admitted now.
func (l *Limiter) WaitTime(userID int64) time.Duration {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.evict(userID, now)
	if len(window) < l.maxRequests {
		return 0
	}
	wait := window[0].Add(l.window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Check combines Allow and WaitTime, returning a *RateLimitError on denial.
func (l *Limiter) Check(userID int64) error {
	if l.Allow(userID) {
		return nil
	}
	return &RateLimitError{Wait: l.WaitTime(userID)}
}

// Tracked returns the number of users currently holding window state.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// evict drops timestamps that fell out of the window. Caller holds l.mu.
func (l *Limiter) evict(userID int64, now time.Time) []time.Time {
	window, ok := l.requests[userID]
	if !ok {
		return nil
	}
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		window = append(window[:0], window[i:]...)
		l.requests[userID] = window
	}
	return window
}

// cleanup forgets users whose whole window has expired. Caller holds l.mu.
func (l *Limiter) cleanup(now time.Time) {
	cutoff := now.Add(-l.window)
	for userID, window := range l.requests {
		if len(window) == 0 || !window[len(window)-1].After(cutoff) {
			delete(l.requests, userID)
		}
	}
}
