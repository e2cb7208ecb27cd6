package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/metrics"
	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

// Sleeper waits for d or until ctx ends, returning ctx.Err() in the latter case
type Sleeper func(ctx context.Context, d time.Duration) error

// Jitter perturbs a computed backoff delay
type Jitter func(d time.Duration) time.Duration

// Fetcher wraps a RawGetter with the retry, backoff and politeness policy
type Fetcher struct {
	getter       RawGetter
	limiter      *RateLimiter       // Optional per-host minimum delay
	delayPerHost time.Duration      // Passed to limiter; 0 uses its default
	hosts        *HostSemaphorePool // Optional per-host concurrency cap
	sleep        Sleeper
	jitter       Jitter
	log          *logrus.Entry
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithRateLimiter enables per-host pacing
func WithRateLimiter(rl *RateLimiter, delayPerHost time.Duration) Option {
	return func(f *Fetcher) {
		f.limiter = rl
		f.delayPerHost = delayPerHost
	}
}

// WithHostSemaphores caps concurrent requests per host. Permits are held only around the GET.
func WithHostSemaphores(pool *HostSemaphorePool) Option {
	return func(f *Fetcher) { f.hosts = pool }
}

// WithSleeper replaces the context-aware timer used between attempts
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) { f.sleep = s }
}

// WithJitter replaces the default +/-10% uniform jitter
func WithJitter(j Jitter) Option {
	return func(f *Fetcher) { f.jitter = j }
}

// NewFetcher creates a Fetcher over getter
func NewFetcher(getter RawGetter, log *logrus.Entry, opts ...Option) *Fetcher {
	f := &Fetcher{
		getter: getter,
		sleep:  sleepContext,
		jitter: TenPercentJitter,
		log:    log.WithField("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs rawURL under the retry policy.
//
// Transport failures and 429/500/502/503/504 are retried while attempts remain
// (MaxRetries+1 attempts in total). A 429 carrying a whole-seconds Retry-After
// waits exactly that long; every other wait is the current backoff with jitter,
// after which backoff = min(backoff*multiplier, max). Other statuses end the loop at once.
//
// The returned error is non-nil only when ctx is cancelled or its deadline passes.
// Every other failure is reported through FetchResult (Succeeded=false, Err, ErrorMessage).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, retry config.RetryConfig, userAgent string) (*models.FetchResult, error) {
	retry.Validate()
	backoff := retry.InitialBackoff()
	maxBackoff := retry.MaxBackoff()

	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}
	host := hostKey(rawURL)
	reqLog := f.log.WithField("url", rawURL)
	result := &models.FetchResult{URL: rawURL}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		resp, err := f.attempt(ctx, host, rawURL, header)
		result.Attempts = attempt + 1

		retryable := false
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.StatusCode = 0
			result.Body = nil
			result.ContentType = ""
			result.RetryAfter = ""
			result.Succeeded = false
			result.Err = fmt.Errorf("%w: %w", utils.ErrTransport, err)
			result.ErrorMessage = err.Error()
			retryable = isRetryableTransport(err)
			metrics.ObserveFetchAttempt(metrics.OutcomeTransportError)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Debug("Transport error")
		} else {
			result.StatusCode = resp.StatusCode
			result.Body = resp.Body
			result.ContentType = resp.ContentType
			result.RetryAfter = ""
			if resp.Header != nil {
				result.RetryAfter = resp.Header.Get("Retry-After")
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				result.Succeeded = true
				result.Err = nil
				result.ErrorMessage = ""
				metrics.ObserveFetchAttempt(metrics.OutcomeSuccess)
				reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "attempt": attempt}).Debug("Successfully fetched")
				return result, nil
			}

			result.Succeeded = false
			result.Err = statusError(resp.StatusCode)
			result.ErrorMessage = result.Err.Error()
			retryable = IsRetryableStatus(resp.StatusCode)
			if retryable {
				metrics.ObserveFetchAttempt(metrics.OutcomeRetryableStatus)
			} else {
				metrics.ObserveFetchAttempt(metrics.OutcomeTerminalStatus)
			}
		}

		if !retryable {
			reqLog.WithFields(logrus.Fields{"status_code": result.StatusCode, "attempt": attempt}).Debugf("Not retrying: %s", result.ErrorMessage)
			return result, nil
		}
		if attempt >= retry.MaxRetries {
			break
		}

		wait := f.jitter(backoff)
		if result.StatusCode == http.StatusTooManyRequests {
			if d, ok := ParseRetryAfter(result.RetryAfter); ok {
				wait = d
			}
		}
		if wait < 0 {
			wait = 0
		}

		reqLog.WithFields(logrus.Fields{
			"attempt": attempt + 1, "max_retries": retry.MaxRetries, "delay": wait, "status_code": result.StatusCode,
		}).Warn("Retrying request...")
		metrics.ObserveRetry(wait)

		if err := f.sleep(ctx, wait); err != nil {
			return result, err
		}
		backoff = NextBackoff(backoff, retry.BackoffMultiplier, maxBackoff)
	}

	reqLog.WithField("attempts", result.Attempts).Warnf("All fetch attempts failed: %s", result.ErrorMessage)
	result.Err = fmt.Errorf("%w: %w", utils.ErrRetryFailed, result.Err)
	result.ErrorMessage = result.Err.Error()
	return result, nil
}

// attempt performs one GET while holding the host permit and honoring the rate limiter
func (f *Fetcher) attempt(ctx context.Context, host, rawURL string, header http.Header) (*RawResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.ApplyDelay(ctx, host, f.delayPerHost); err != nil {
			return nil, err
		}
	}
	if f.hosts != nil {
		if err := f.hosts.Acquire(ctx, host); err != nil {
			return nil, err
		}
		defer f.hosts.Release(host)
	}

	resp, err := f.getter.Get(ctx, rawURL, header)
	if f.limiter != nil {
		f.limiter.UpdateLastRequestTime(host)
	}
	return resp, err
}

// IsRetryableStatus reports whether status is one of 429, 500, 502, 503, 504
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryableTransport excludes failures a second attempt cannot fix
func isRetryableTransport(err error) bool {
	return !errors.Is(err, utils.ErrRequestCreation) && !errors.Is(err, ErrResponseTooLarge)
}

func statusError(status int) error {
	switch {
	case status >= 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, status, http.StatusText(status))
	case status >= 400:
		return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, status, http.StatusText(status))
	}
	return fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, status, http.StatusText(status))
}

// ParseRetryAfter reads a Retry-After value given as whole seconds.
// HTTP-date values and anything else unparsable are ignored.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// NextBackoff multiplies current by multiplier, capped at ceiling
func NextBackoff(current time.Duration, multiplier float64, ceiling time.Duration) time.Duration {
	next := time.Duration(float64(current) * multiplier)
	if next > ceiling || next <= 0 {
		return ceiling
	}
	return next
}

// TenPercentJitter returns d perturbed uniformly within +/-10%
func TenPercentJitter(d time.Duration) time.Duration {
	jitterRange := int64(d) / 5
	if jitterRange <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(jitterRange+1)) - d/10
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Host)
}
