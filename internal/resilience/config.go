package resilience

import (
	"time"
)

// FromConfig converts config values to a RetryConfig. Non-positive values
// keep the defaults.
func FromConfig(maxRetries, initialDelayMs, maxDelayMs int, multiplier float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}
	if initialDelayMs > 0 {
		cfg.InitialDelay = time.Duration(initialDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		cfg.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.BackoffMultiplier = multiplier
	}
	return cfg
}
