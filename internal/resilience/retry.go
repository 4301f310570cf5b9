package resilience

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls bounded retry with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the total number of attempts (including the first try).
	// Default: 3.
	MaxRetries int

	// InitialDelay is the sleep before the first retry. Default: 1s.
	InitialDelay time.Duration

	// MaxDelay caps the computed delay. Default: 10s.
	MaxDelay time.Duration

	// BackoffMultiplier scales the delay after each attempt. Default: 2.
	BackoffMultiplier float64

	// ShouldRetry decides whether a failure is retried. attempt is the number
	// of attempts made so far (1 after the first failure). If nil,
	// DefaultShouldRetry is used.
	ShouldRetry func(err error, attempt int) bool

	// OnRetry is called before each retry sleep. If nil, the retry is logged
	// through the global zap logger.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Label names the wrapped operation in retry logs.
	Label string

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns 3 attempts, 1s initial delay, 10s cap and a
// multiplier of 2.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}
}

// WithMaxRetries returns a copy of cfg with a different attempt count.
func (cfg RetryConfig) WithMaxRetries(n int) RetryConfig {
	cfg.MaxRetries = n
	return cfg
}

// WithLabel returns a copy of cfg whose retry logs carry label.
func (cfg RetryConfig) WithLabel(label string) RetryConfig {
	cfg.Label = label
	return cfg
}

// DefaultShouldRetry retries transport failures and 5xx responses.
func DefaultShouldRetry(err error, _ int) bool {
	return IsNetworkFailure(err) || IsServerError(err)
}

// Do executes fn with retry according to cfg. The last failure is returned
// unchanged when attempts are exhausted or the failure is not retryable.
// Context cancellation stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is like Do but preserves the return value of the successful call.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}

		if !cfg.ShouldRetry(lastErr, attempt) {
			return zero, lastErr
		}

		if attempt >= cfg.MaxRetries {
			break
		}

		delay := ComputeDelay(attempt, cfg)
		cfg.OnRetry(attempt, delay, lastErr)

		if err := cfg.sleep(ctx, delay); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// ComputeDelay returns min(InitialDelay * BackoffMultiplier^(attempt-1), MaxDelay).
func ComputeDelay(attempt int, cfg RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = DefaultShouldRetry
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger(cfg.Label, cfg.MaxRetries)
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepCtx
	}
	return cfg
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(label string, maxRetries int) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		zap.L().Warn("retrying operation",
			zap.String("operation", label),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}
