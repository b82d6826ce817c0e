// Package ratelimit provides client-side pacing for calls to the XHS web API.
//
// Available Implementations:
//
// Token Bucket:
//   - Refills continuously at a fixed rate (tokens per second)
//   - Capacity bounds the burst size and defaults to the rate
//   - Used by the request executor, one token per request
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Used to pace media downloads from the CDN
//
// Interface:
//
// All rate limiters implement the Limiter interface:
//   - Acquire(ctx, n) error - Block until n permits are available
//   - Allow() bool - Take one permit without blocking
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// Two requests per second, bursts of up to two
//	limiter, err := ratelimit.NewTokenBucket(2, 0)
//	if err != nil {
//	    return err
//	}
//
//	if err := limiter.Acquire(ctx, 1); err != nil {
//	    return err // context cancelled
//	}
//	// Proceed with request
package ratelimit
