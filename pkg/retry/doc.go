// Package retry re-runs API calls that failed for transient reasons.
//
// The request executor never retries on its own; callers wrap calls with
// Do or DoWithResult when they want that. DefaultRetryIf reads the error
// taxonomy: rate limits, 5xx responses and transport failures are retried,
// while expired cookies, signature rejections, captchas and caller errors
// are returned immediately.
//
// Usage:
//
//	cfg := retry.FromSettings(appConfig.Retry, log)
//	resp, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) (map[string]any, error) {
//		return client.Do(ctx, req)
//	})
//
// ErrorTypeBackoff chooses the delay curve from the failure: rate limits
// wait longest, transport errors retry soonest.
package retry
