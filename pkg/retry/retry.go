package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CNHLAIA/XHS-Scraper/pkg/config"
	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
)

// Operation is a call that may be retried
type Operation func(ctx context.Context) error

// Config holds the retry policy
type Config struct {
	// MaxAttempts counts the first call; values below 1 mean one attempt
	MaxAttempts int
	Backoff     BackoffStrategy
	RetryIf     func(error) bool
	OnRetry     func(attempt int, err error, delay time.Duration)
	Logger      logger.Logger
}

// DefaultConfig returns three attempts with error-type backoff
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     NewErrorTypeBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// FromSettings builds a Config from the retry section of the config file
func FromSettings(s config.RetryConfig, log logger.Logger) *Config {
	etb := NewErrorTypeBackoff()
	etb.DefaultBackoff = &ExponentialBackoff{
		BaseDelay:    s.InitialDelay,
		MaxDelay:     s.MaxDelay,
		Multiplier:   s.Multiplier,
		JitterFactor: 0.1,
	}
	etb.ServerErrorBackoff = etb.DefaultBackoff
	etb.NetworkErrorBackoff = etb.DefaultBackoff
	if log == nil {
		log = logger.GetLogger()
	}
	return &Config{
		MaxAttempts: s.MaxAttempts,
		Backoff:     etb,
		RetryIf:     DefaultRetryIf,
		Logger:      log,
	}
}

// DefaultRetryIf retries rate limits, 5xx responses and transport
// failures. Expired sessions, signature rejections, captchas and caller
// mistakes are returned at once.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if _, ok := xerrors.As(err); ok {
		return xerrors.IsRetryableError(err)
	}
	return true
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// attempts are used up. Waiting between attempts honors ctx.
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}
		if attempt >= maxAttempts {
			log.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			if maxAttempts == 1 {
				return err
			}
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", maxAttempts, err)
		}

		strategy := backoff
		if etb, ok := backoff.(*ErrorTypeBackoff); ok {
			strategy = etb.For(err)
		}
		delay := strategy.NextDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, cfg *Config, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
