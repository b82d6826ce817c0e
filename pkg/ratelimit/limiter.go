package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Acquire blocks until n permits are available and consumes them
	Acquire(ctx context.Context, n int) error
	// Allow takes a single permit without blocking
	Allow() bool
	// Reset restores the limiter to its initial state
	Reset()
}

// TokenBucket implements a continuously refilling token bucket.
// Tokens are refilled lazily on each call as min(capacity, tokens+elapsed*rate).
type TokenBucket struct {
	rate       float64 // tokens per second
	capacity   float64 // maximum number of tokens
	tokens     float64 // current number of tokens
	lastRefill time.Time
	mu         sync.Mutex

	now func() time.Time
}

// NewTokenBucket creates a bucket refilling at rate tokens per second.
// A capacity <= 0 defaults to rate. The bucket starts full.
func NewTokenBucket(rate, capacity float64) (*TokenBucket, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, xerrors.InvalidConfig("rate must be positive, got %v", rate)
	}
	if capacity <= 0 {
		capacity = rate
	}

	return &TokenBucket{
		rate:       rate,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: time.Now(),
		now:        time.Now,
	}, nil
}

// Rate returns the refill rate in tokens per second
func (tb *TokenBucket) Rate() float64 { return tb.rate }

// Capacity returns the bucket size
func (tb *TokenBucket) Capacity() float64 { return tb.capacity }

// Acquire blocks until n tokens are available and debits them.
// The lock is released while waiting so other callers can proceed.
func (tb *TokenBucket) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		return xerrors.InvalidConfig("token request must be positive, got %d", n)
	}
	need := float64(n)
	if need > tb.capacity {
		return xerrors.InvalidConfig("token request %d exceeds bucket capacity %v", n, tb.capacity)
	}

	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= need {
			tb.tokens -= need
			tb.mu.Unlock()
			return nil
		}
		wait := time.Duration((need - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow checks if a request can proceed and takes one token if so
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	return false
}

// Peek reports the tokens that would be available now without committing
// the refill.
func (tb *TokenBucket) Peek() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := tb.now().Sub(tb.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(tb.capacity, tb.tokens+elapsed*tb.rate)
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// refill must be called with mu held
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed*tb.rate)
	}
	tb.lastRefill = now
}

// SlidingWindow allows at most maxRequests within any windowSize span.
// It paces media downloads, where the CDN counts requests per window.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) (*SlidingWindow, error) {
	if maxRequests <= 0 || windowSize <= 0 {
		return nil, xerrors.InvalidConfig("sliding window needs positive size and request count")
	}
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
	}, nil
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Acquire blocks until n requests fit in the window
func (sw *SlidingWindow) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		return xerrors.InvalidConfig("token request must be positive, got %d", n)
	}
	if n > sw.maxRequests {
		return xerrors.InvalidConfig("request count %d exceeds window limit %d", n, sw.maxRequests)
	}

	for {
		sw.mu.Lock()
		now := time.Now()
		sw.cleanOldRequests(now)
		if len(sw.requests)+n <= sw.maxRequests {
			for i := 0; i < n; i++ {
				sw.requests = append(sw.requests, now)
			}
			sw.mu.Unlock()
			return nil
		}
		// The oldest entry that must expire before n more fit.
		idx := len(sw.requests) + n - sw.maxRequests - 1
		wait := sw.windowSize - now.Sub(sw.requests[idx])
		sw.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sw.requests = append(sw.requests[:0], sw.requests[i:]...)
	}
}
