package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CNHLAIA/XHS-Scraper/pkg/config"
	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		d := backoff.NextDelay(2)
		if d < 140*time.Millisecond || d > 260*time.Millisecond {
			t.Errorf("delay %v outside jitter range", d)
		}
		delays[d] = true
	}
	if len(delays) < 2 {
		t.Error("expected jitter to vary the delay")
	}
}

func TestErrorTypeBackoffSelection(t *testing.T) {
	etb := NewErrorTypeBackoff()

	tests := []struct {
		name string
		err  error
		want BackoffStrategy
	}{
		{"rate limit", xerrors.FromStatus(429, "slow down", nil), etb.RateLimitBackoff},
		{"server", xerrors.FromStatus(502, "bad gateway", nil), etb.ServerErrorBackoff},
		{"transport", xerrors.API(0, "connection refused", nil), etb.NetworkErrorBackoff},
		{"foreign error", errors.New("EOF"), etb.NetworkErrorBackoff},
		{"other api", xerrors.API(200, "business error", nil), etb.DefaultBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := etb.For(tt.err); got != tt.want {
				t.Errorf("wrong strategy for %v", tt.err)
			}
		})
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", xerrors.FromStatus(429, "", nil), true},
		{"server error", xerrors.FromStatus(503, "", nil), true},
		{"transport", xerrors.API(0, "reset", nil), true},
		{"plain error", errors.New("unexpected EOF"), true},
		{"cookie expired", xerrors.FromStatus(401, "", nil), false},
		{"forbidden", xerrors.FromStatus(403, "", nil), false},
		{"signature", xerrors.FromStatus(461, "", nil), false},
		{"captcha", xerrors.FromStatus(471, "", nil), false},
		{"not found", xerrors.FromStatus(404, "", nil), false},
		{"invalid config", xerrors.InvalidConfig("bad"), false},
		{"usage", xerrors.Usage("closed"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func quickConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	cfg := quickConfig(5)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) { retried = append(retried, attempt) }

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return xerrors.FromStatus(500, "boom", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected retry callbacks %v", retried)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), quickConfig(5), func(ctx context.Context) error {
		calls++
		return xerrors.FromStatus(461, "signature rejected", nil)
	})
	if !errors.Is(err, xerrors.ErrSignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), quickConfig(3), func(ctx context.Context) error {
		calls++
		return xerrors.FromStatus(429, "slow down", nil)
	})
	if !errors.Is(err, xerrors.ErrRateLimit) {
		t.Fatalf("expected wrapped rate limit error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoSingleAttemptReturnsErrorUnwrapped(t *testing.T) {
	want := xerrors.FromStatus(500, "boom", nil)
	err := Do(context.Background(), quickConfig(0), func(ctx context.Context) error { return want })
	if err != want {
		t.Errorf("expected the operation's own error, got %v", err)
	}
}

func TestDoHonorsContextWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := quickConfig(10)
	cfg.Backoff = &ConstantBackoff{Delay: time.Minute}

	start := time.Now()
	err := Do(ctx, cfg, func(ctx context.Context) error {
		return xerrors.FromStatus(503, "unavailable", nil)
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Do kept waiting after the context ended")
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), quickConfig(3), func(ctx context.Context) (map[string]any, error) {
		calls++
		if calls == 1 {
			return nil, xerrors.API(0, "reset", nil)
		}
		return map[string]any{"ok": true}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got["ok"] != true {
		t.Errorf("unexpected result %v", got)
	}
}

func TestFromSettings(t *testing.T) {
	s := config.DefaultConfig().Retry
	cfg := FromSettings(s, logger.NewNopLogger())

	if cfg.MaxAttempts != s.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", s.MaxAttempts, cfg.MaxAttempts)
	}
	etb, ok := cfg.Backoff.(*ErrorTypeBackoff)
	if !ok {
		t.Fatalf("expected error-type backoff, got %T", cfg.Backoff)
	}
	eb := etb.DefaultBackoff.(*ExponentialBackoff)
	if eb.BaseDelay != s.InitialDelay || eb.MaxDelay != s.MaxDelay || eb.Multiplier != s.Multiplier {
		t.Errorf("backoff does not follow settings: %+v", eb)
	}
	if etb.RateLimitBackoff == etb.DefaultBackoff {
		t.Error("rate limits should keep their longer backoff")
	}
}
