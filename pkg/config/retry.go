package config

import (
	"fmt"
	"time"
)

// RetryConfig controls the retrying fetch engine. Durations are in milliseconds
// to mirror the caller-facing parameters (backoff_ms, max_backoff_ms).
type RetryConfig struct {
	MaxRetries        int     `yaml:"max_retries" json:"max_retries"`
	InitialBackoffMs  int     `yaml:"backoff_ms" json:"backoff_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" json:"max_backoff_ms"`
}

// DefaultRetryConfig returns 5 retries, 100ms initial backoff doubling up to 30s
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoffMs:  DefaultBackoffMs,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MaxBackoffMs:      DefaultMaxBackoffMs,
	}
}

// NoRetry returns a single-attempt policy, used for bruteforce probing
func NoRetry() RetryConfig {
	rc := DefaultRetryConfig()
	rc.MaxRetries = 0
	return rc
}

// InitialBackoff returns the first retry delay as a Duration
func (r RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the backoff ceiling as a Duration
func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffMs) * time.Millisecond
}

// Validate clamps out-of-range values in place and reports what it changed
func (r *RetryConfig) Validate() (warnings []string) {
	if r.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		r.MaxRetries = 0
	}
	if r.InitialBackoffMs <= 0 {
		r.InitialBackoffMs = DefaultBackoffMs
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = DefaultBackoffMultiplier
	} else if r.BackoffMultiplier < 1 {
		warnings = append(warnings, fmt.Sprintf(
			"backoff_multiplier (%v) must be >= 1, defaulting to %v", r.BackoffMultiplier, DefaultBackoffMultiplier))
		r.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if r.MaxBackoffMs <= 0 {
		r.MaxBackoffMs = DefaultMaxBackoffMs
	}
	if r.InitialBackoffMs > r.MaxBackoffMs {
		warnings = append(warnings, fmt.Sprintf(
			"backoff_ms (%d) > max_backoff_ms (%d), using max_backoff_ms for initial",
			r.InitialBackoffMs, r.MaxBackoffMs))
		r.InitialBackoffMs = r.MaxBackoffMs
	}
	return warnings
}
