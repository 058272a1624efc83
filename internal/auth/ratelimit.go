package auth

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRateLimitExceeded is returned while a client waits out a failure delay.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrClientLocked is returned while a client is locked out after too
	// many consecutive failures.
	ErrClientLocked = errors.New("client locked out")
)

const (
	// CleanupThreshold is how long trackers for idle clients are kept.
	CleanupThreshold = 5 * time.Minute

	// CleanupIntervalRateLimit is how often idle trackers are removed.
	CleanupIntervalRateLimit = 2 * time.Minute
)

// RateLimitPolicy describes the progressive delays applied after failed
// logins. After the n-th consecutive failure the client must wait Delays[n-1];
// once the delays are exhausted it is locked out for Lockout.
type RateLimitPolicy struct {
	Delays  []time.Duration
	Lockout time.Duration
}

// DefaultRateLimitPolicy waits 1s, 2s and 5s, then locks out for a minute.
func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{
		Delays:  []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second},
		Lockout: 60 * time.Second,
	}
}

// DelayFor returns the wait imposed after the given number of consecutive
// failures.
func (p RateLimitPolicy) DelayFor(failures int) time.Duration {
	switch {
	case failures <= 0:
		return 0
	case failures <= len(p.Delays):
		return p.Delays[failures-1]
	default:
		return p.Lockout
	}
}

// attemptTracker tracks consecutive failures for one client key.
type attemptTracker struct {
	failures     int
	lastFailed   time.Time
	blockedUntil time.Time
}

// RateLimiter applies a RateLimitPolicy per client key (usually the remote IP).
type RateLimiter struct {
	mu       sync.Mutex
	policy   RateLimitPolicy
	attempts map[string]*attemptTracker
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its background cleanup.
func NewRateLimiter(policy RateLimitPolicy) *RateLimiter {
	rl := &RateLimiter{
		policy:   policy,
		attempts: make(map[string]*attemptTracker),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Check reports whether key may attempt a login now. While blocked it
// returns the remaining wait and ErrRateLimitExceeded or ErrClientLocked.
func (rl *RateLimiter) Check(key string) (time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tracker, ok := rl.attempts[key]
	if !ok {
		return 0, nil
	}

	now := rl.now()
	if !now.Before(tracker.blockedUntil) {
		return 0, nil
	}

	wait := tracker.blockedUntil.Sub(now)
	if tracker.failures > len(rl.policy.Delays) {
		return wait, ErrClientLocked
	}
	return wait, ErrRateLimitExceeded
}

// RecordFailure records a failed attempt and returns the wait imposed on
// the next one.
func (rl *RateLimiter) RecordFailure(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tracker, ok := rl.attempts[key]
	if !ok {
		tracker = &attemptTracker{}
		rl.attempts[key] = tracker
	}

	now := rl.now()
	tracker.failures++
	tracker.lastFailed = now

	delay := rl.policy.DelayFor(tracker.failures)
	tracker.blockedUntil = now.Add(delay)
	return delay
}

// RecordSuccess clears the failure history of key.
func (rl *RateLimiter) RecordSuccess(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// Failures returns the consecutive failure count for key.
func (rl *RateLimiter) Failures(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if tracker, ok := rl.attempts[key]; ok {
		return tracker.failures
	}
	return 0
}

// Tracked returns the number of client keys with a failure history.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}

// Stop stops the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(CleanupIntervalRateLimit)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup forgets clients that are no longer blocked and have been idle
// for CleanupThreshold.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-CleanupThreshold)
	for key, tracker := range rl.attempts {
		if tracker.lastFailed.Before(cutoff) && !now.Before(tracker.blockedUntil) {
			delete(rl.attempts, key)
		}
	}
}

// FormatRetryAfter returns d in whole seconds, rounded up, for the HTTP
// Retry-After header.
func FormatRetryAfter(d time.Duration) int {
	seconds := int(d / time.Second)
	if d%time.Second > 0 {
		seconds++
	}
	return seconds
}
