package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter enforces a minimum delay between requests to the same host
type RateLimiter struct {
	hostLastRequest   map[string]time.Time // host -> last request attempt time
	hostLastRequestMu sync.Mutex
	hostDelays        map[string]time.Duration // Per-host overrides, e.g. from site delay_per_host
	defaultDelay      time.Duration            // Used when the caller passes a non-positive delay
	log               *logrus.Entry
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		hostLastRequest: make(map[string]time.Time),
		hostDelays:      make(map[string]time.Duration),
		defaultDelay:    defaultDelay,
		log:             log,
	}
}

// SetHostDelay makes host use delay regardless of what callers pass. A non-positive delay removes the override.
func (rl *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	rl.hostLastRequestMu.Lock()
	defer rl.hostLastRequestMu.Unlock()
	if delay <= 0 {
		delete(rl.hostDelays, host)
		return
	}
	rl.hostDelays[host] = delay
}

// ApplyDelay waits until the host's delay (+/- 10% jitter) has passed since the last request to host.
// The delay is the host override if set, else minDelay, else the default.
// Returns ctx.Err() if the context ends first. The lock is never held while waiting.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, host string, minDelay time.Duration) error {
	rl.hostLastRequestMu.Lock()
	lastReqTime, exists := rl.hostLastRequest[host]
	if override, ok := rl.hostDelays[host]; ok {
		minDelay = override
	}
	rl.hostLastRequestMu.Unlock()

	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return nil
	}

	if !exists {
		return nil
	}
	elapsed := time.Since(lastReqTime)
	if elapsed >= minDelay {
		return nil
	}

	sleepDuration := minDelay - elapsed
	var jitter time.Duration
	if jitterRange := int64(sleepDuration) / 5; jitterRange > 0 {
		jitter = time.Duration(rand.Int63n(jitterRange)) - (sleepDuration / 10)
	}
	finalSleep := sleepDuration + jitter
	if finalSleep <= 0 {
		return nil
	}

	rl.log.WithFields(logrus.Fields{
		"host": host, "sleep": finalSleep, "required_delay": minDelay, "elapsed": elapsed,
	}).Debug("Rate limit applying sleep")

	timer := time.NewTimer(finalSleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateLastRequestTime records now as the last request time for host.
// Call this after the request attempt.
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.hostLastRequestMu.Lock()
	rl.hostLastRequest[host] = time.Now()
	rl.hostLastRequestMu.Unlock()
}
