package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()
	assert.Equal(t, 5, rc.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, rc.InitialBackoff())
	assert.Equal(t, 2.0, rc.BackoffMultiplier)
	assert.Equal(t, 30*time.Second, rc.MaxBackoff())
}

func TestNoRetry(t *testing.T) {
	rc := NoRetry()
	assert.Equal(t, 0, rc.MaxRetries)
	assert.Equal(t, DefaultBackoffMs, rc.InitialBackoffMs)
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		input       RetryConfig
		expected    RetryConfig
		wantWarning string
	}{
		{
			name:     "zero value gets defaults",
			input:    RetryConfig{},
			expected: RetryConfig{MaxRetries: 0, InitialBackoffMs: 100, BackoffMultiplier: 2.0, MaxBackoffMs: 30000},
		},
		{
			name:        "negative retries clamped",
			input:       RetryConfig{MaxRetries: -1, InitialBackoffMs: 10, BackoffMultiplier: 1.5, MaxBackoffMs: 100},
			expected:    RetryConfig{MaxRetries: 0, InitialBackoffMs: 10, BackoffMultiplier: 1.5, MaxBackoffMs: 100},
			wantWarning: "max_retries cannot be negative",
		},
		{
			name:        "multiplier below one reset",
			input:       RetryConfig{MaxRetries: 3, InitialBackoffMs: 10, BackoffMultiplier: 0.5, MaxBackoffMs: 100},
			expected:    RetryConfig{MaxRetries: 3, InitialBackoffMs: 10, BackoffMultiplier: 2.0, MaxBackoffMs: 100},
			wantWarning: "backoff_multiplier",
		},
		{
			name:        "initial above max is capped",
			input:       RetryConfig{MaxRetries: 3, InitialBackoffMs: 500, BackoffMultiplier: 2, MaxBackoffMs: 200},
			expected:    RetryConfig{MaxRetries: 3, InitialBackoffMs: 200, BackoffMultiplier: 2, MaxBackoffMs: 200},
			wantWarning: "backoff_ms (500) > max_backoff_ms (200)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := tt.input
			warnings := rc.Validate()
			assert.Equal(t, tt.expected, rc)
			if tt.wantWarning == "" {
				assert.Empty(t, warnings)
			} else {
				assert.True(t, containsWarning(warnings, tt.wantWarning), "warnings: %v", warnings)
			}
		})
	}
}
