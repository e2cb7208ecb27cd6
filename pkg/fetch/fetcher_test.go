package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

// fastRetry returns a retry policy with small delays for tests
func fastRetry(maxRetries int) config.RetryConfig {
	return config.RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoffMs:  10,
		BackoffMultiplier: 2.0,
		MaxBackoffMs:      50,
	}
}

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// mockServer creates an httptest.Server that returns status codes in sequence.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

// recordingSleeper captures requested waits without sleeping
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func noJitter(d time.Duration) time.Duration { return d }

// scriptStep is one canned RawGetter outcome
type scriptStep struct {
	status int
	header http.Header
	body   string
	err    error
}

// scriptedGetter replays steps in order, repeating the last one
type scriptedGetter struct {
	mu      sync.Mutex
	steps   []scriptStep
	calls   int
	headers []http.Header
}

func (g *scriptedGetter) Get(_ context.Context, _ string, header http.Header) (*RawResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.calls
	if idx >= len(g.steps) {
		idx = len(g.steps) - 1
	}
	g.calls++
	g.headers = append(g.headers, header.Clone())

	step := g.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &RawResponse{StatusCode: step.status, Body: []byte(step.body), Header: step.header}, nil
}

func (g *scriptedGetter) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func statusSteps(codes ...int) []scriptStep {
	steps := make([]scriptStep, len(codes))
	for i, c := range codes {
		steps[i] = scriptStep{status: c}
	}
	return steps
}

func newScriptedFetcher(steps []scriptStep, jitter Jitter) (*Fetcher, *scriptedGetter, *recordingSleeper) {
	getter := &scriptedGetter{steps: steps}
	sleeper := &recordingSleeper{}
	f := NewFetcher(getter, testLogger(), WithSleeper(sleeper.sleep), WithJitter(jitter))
	return f, getter, sleeper
}

func TestFetch_Success(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"200 OK", http.StatusOK},
		{"201 Created", http.StatusCreated},
		{"204 No Content", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := mockServer(t, []int{tt.statusCode})
			fetcher := NewFetcher(NewHTTPGetter(testClient(), 0), testLogger())

			result, err := fetcher.Fetch(context.Background(), server.URL, fastRetry(3), "Sitemap/1.0")

			require.NoError(t, err)
			assert.True(t, result.Succeeded)
			assert.Equal(t, tt.statusCode, result.StatusCode)
			assert.Equal(t, 1, result.Attempts)
			assert.Empty(t, result.ErrorMessage)
			assert.Nil(t, result.Err)
			assert.Equal(t, int32(1), attempts.Load())
		})
	}
}

func TestFetch_BodyContentTypeAndUserAgent(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = w.Write([]byte("<urlset/>"))
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(NewHTTPGetter(testClient(), 0), testLogger())
	result, err := fetcher.Fetch(context.Background(), server.URL+"/sitemap.xml", fastRetry(0), "TestAgent/2.0")

	require.NoError(t, err)
	require.True(t, result.Succeeded)
	assert.Equal(t, "<urlset/>", string(result.Body))
	assert.Equal(t, "application/xml; charset=utf-8", result.ContentType)
	assert.Equal(t, "TestAgent/2.0", gotUA.Load())
	assert.Equal(t, server.URL+"/sitemap.xml", result.URL)
}

func TestFetch_RetryableStatusThenSuccess(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		for k := 1; k <= 3; k++ {
			codes := make([]int, 0, k+1)
			for i := 0; i < k; i++ {
				codes = append(codes, code)
			}
			codes = append(codes, http.StatusOK)

			f, getter, _ := newScriptedFetcher(statusSteps(codes...), noJitter)
			result, err := f.Fetch(context.Background(), "https://a.com/sitemap.xml", fastRetry(3), "")

			require.NoError(t, err)
			assert.True(t, result.Succeeded, "status %d k=%d", code, k)
			assert.Equal(t, k+1, result.Attempts, "status %d k=%d", code, k)
			assert.Equal(t, k+1, getter.callCount())
		}
	}
}

func TestFetch_AllRetriesFail(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusServiceUnavailable})
	fetcher := NewFetcher(NewHTTPGetter(testClient(), 0), testLogger())

	result, err := fetcher.Fetch(context.Background(), server.URL, fastRetry(3), "")

	require.NoError(t, err, "exhaustion is reported in the result, not as an error")
	assert.False(t, result.Succeeded)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, int32(4), attempts.Load())
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
	assert.True(t, errors.Is(result.Err, utils.ErrRetryFailed))
	assert.True(t, errors.Is(result.Err, utils.ErrServerHTTPError))
	assert.Contains(t, result.ErrorMessage, "503")
	assert.Equal(t, "RetryFailed_HTTPServer", utils.CategorizeError(result.Err))
}

func TestFetch_RateLimited_AllRetriesFail(t *testing.T) {
	f, getter, _ := newScriptedFetcher(statusSteps(429), noJitter)

	result, err := f.Fetch(context.Background(), "https://a.com/", fastRetry(2), "")

	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, 3, getter.callCount())
	assert.True(t, errors.Is(result.Err, utils.ErrClientHTTPError))
	assert.Equal(t, "RetryFailed_HTTPClient", utils.CategorizeError(result.Err))
}

func TestFetch_NonRetryableStatus(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNotFound, utils.ErrClientHTTPError},
		{http.StatusBadRequest, utils.ErrClientHTTPError},
		{http.StatusForbidden, utils.ErrClientHTTPError},
		{http.StatusNotImplemented, utils.ErrServerHTTPError},
		{http.StatusNotModified, utils.ErrOtherHTTPError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f, getter, sleeper := newScriptedFetcher(statusSteps(tt.status, http.StatusOK), noJitter)

			result, err := f.Fetch(context.Background(), "https://a.com/sitemap.xml", fastRetry(5), "")

			require.NoError(t, err)
			assert.False(t, result.Succeeded)
			assert.Equal(t, tt.status, result.StatusCode)
			assert.Equal(t, 1, getter.callCount(), "non-retryable status must not consume retries")
			assert.Empty(t, sleeper.recorded())
			assert.True(t, errors.Is(result.Err, tt.sentinel))
			assert.False(t, errors.Is(result.Err, utils.ErrRetryFailed))
		})
	}
}

func TestFetch_BackoffSchedule(t *testing.T) {
	f, _, sleeper := newScriptedFetcher(statusSteps(503), noJitter)
	retry := config.RetryConfig{MaxRetries: 5, InitialBackoffMs: 100, BackoffMultiplier: 2.0, MaxBackoffMs: 1000}

	result, err := f.Fetch(context.Background(), "https://a.com/", retry, "")

	require.NoError(t, err)
	assert.Equal(t, 6, result.Attempts)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1000 * time.Millisecond,
	}, sleeper.recorded())
}

func TestFetch_BackoffWithinJitterBounds(t *testing.T) {
	f, _, sleeper := newScriptedFetcher(statusSteps(500), TenPercentJitter)
	retry := config.RetryConfig{MaxRetries: 6, InitialBackoffMs: 100, BackoffMultiplier: 3.0, MaxBackoffMs: 5000}

	_, err := f.Fetch(context.Background(), "https://a.com/", retry, "")
	require.NoError(t, err)

	waits := sleeper.recorded()
	require.Len(t, waits, 6)
	expected := 100 * time.Millisecond
	for i, w := range waits {
		lo := expected - expected/10
		hi := expected + expected/10
		assert.GreaterOrEqual(t, w, lo, "wait %d", i)
		assert.LessOrEqual(t, w, hi, "wait %d", i)
		expected = NextBackoff(expected, 3.0, 5*time.Second)
	}
}

func TestFetch_RetryAfterHonoredOn429(t *testing.T) {
	steps := []scriptStep{
		{status: 429, header: http.Header{"Retry-After": []string{"3"}}},
		{status: 200},
	}
	doubling := func(d time.Duration) time.Duration { return 2 * d }
	f, _, sleeper := newScriptedFetcher(steps, doubling)

	result, err := f.Fetch(context.Background(), "https://a.com/", fastRetry(3), "")

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, []time.Duration{3 * time.Second}, sleeper.recorded(), "Retry-After is used verbatim, no jitter")
}

func TestFetch_RetryAfterIgnoredWhenNotApplicable(t *testing.T) {
	tests := []struct {
		name string
		step scriptStep
	}{
		{"On503", scriptStep{status: 503, header: http.Header{"Retry-After": []string{"7"}}}},
		{"HTTPDate", scriptStep{status: 429, header: http.Header{"Retry-After": []string{"Wed, 21 Oct 2015 07:28:00 GMT"}}}},
		{"Garbage", scriptStep{status: 429, header: http.Header{"Retry-After": []string{"soon"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, sleeper := newScriptedFetcher([]scriptStep{tt.step, {status: 200}}, noJitter)

			_, err := f.Fetch(context.Background(), "https://a.com/", fastRetry(3), "")

			require.NoError(t, err)
			assert.Equal(t, []time.Duration{10 * time.Millisecond}, sleeper.recorded())
		})
	}
}

func TestFetch_TransportErrorRetried(t *testing.T) {
	steps := []scriptStep{
		{err: errors.New("dial tcp: connection refused")},
		{err: errors.New("read: connection reset by peer")},
		{status: 200, body: "ok"},
	}
	f, getter, _ := newScriptedFetcher(steps, noJitter)

	result, err := f.Fetch(context.Background(), "https://a.com/", fastRetry(3), "")

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, 3, getter.callCount())
	assert.Equal(t, "ok", string(result.Body))
}

func TestFetch_TransportErrorExhausted(t *testing.T) {
	f, getter, _ := newScriptedFetcher([]scriptStep{{err: errors.New("dial tcp: connection refused")}}, noJitter)

	result, err := f.Fetch(context.Background(), "https://a.com/", fastRetry(2), "")

	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, 0, result.StatusCode)
	assert.Equal(t, 3, getter.callCount())
	assert.True(t, errors.Is(result.Err, utils.ErrTransport))
	assert.True(t, errors.Is(result.Err, utils.ErrRetryFailed))
	assert.Equal(t, "RetryFailed_ConnectionRefused", utils.CategorizeError(result.Err))
}

func TestFetch_MixedErrors(t *testing.T) {
	steps := []scriptStep{
		{err: errors.New("i/o timeout")},
		{status: 502},
		{status: 429},
		{status: 200},
	}
	f, getter, sleeper := newScriptedFetcher(steps, noJitter)

	result, err := f.Fetch(context.Background(), "https://a.com/", fastRetry(3), "")

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, 4, getter.callCount())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, sleeper.recorded())
}

func TestFetch_ZeroRetries(t *testing.T) {
	f, getter, sleeper := newScriptedFetcher(statusSteps(503, 200), noJitter)

	result, err := f.Fetch(context.Background(), "https://a.com/", config.NoRetry(), "")

	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, 1, getter.callCount())
	assert.Empty(t, sleeper.recorded())
}

func TestFetch_ContextCancelledBeforeAttempt(t *testing.T) {
	f, getter, _ := newScriptedFetcher(statusSteps(200), noJitter)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.Fetch(ctx, "https://a.com/", fastRetry(3), "")

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Succeeded)
	assert.Equal(t, 0, getter.callCount())
}

func TestFetch_ContextTimeoutDuringBackoff(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusServiceUnavailable})
	fetcher := NewFetcher(NewHTTPGetter(testClient(), 0), testLogger())
	retry := config.RetryConfig{MaxRetries: 3, InitialBackoffMs: 5000, BackoffMultiplier: 2, MaxBackoffMs: 10000}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := fetcher.Fetch(ctx, server.URL, retry, "")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, utils.IsCancellation(err))
	assert.Less(t, elapsed, 2*time.Second, "cancellation must abort the backoff wait promptly")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetch_ContextTimeoutDuringRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(NewHTTPGetter(testClient(), 0), testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := fetcher.Fetch(ctx, server.URL, fastRetry(3), "")

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, result.Attempts)
}

func TestFetch_OversizeBodyNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(NewHTTPGetter(testClient(), 1024), testLogger())
	result, err := fetcher.Fetch(context.Background(), server.URL, fastRetry(3), "")

	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.True(t, errors.Is(result.Err, ErrResponseTooLarge))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_InvalidURLNotRetried(t *testing.T) {
	fetcher := NewFetcher(NewHTTPGetter(testClient(), 0), testLogger())

	result, err := fetcher.Fetch(context.Background(), "http://[::1]:namedport", fastRetry(3), "")

	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, 1, result.Attempts)
	assert.True(t, errors.Is(result.Err, utils.ErrRequestCreation))
}

func TestFetch_WithPolitenessOptions(t *testing.T) {
	server, attempts := mockServer(t, []int{500, 200})
	log := testLogger()
	fetcher := NewFetcher(NewHTTPGetter(testClient(), 0), log,
		WithRateLimiter(NewRateLimiter(0, log), 20*time.Millisecond),
		WithHostSemaphores(NewHostSemaphorePool(1, log)),
	)

	start := time.Now()
	result, err := fetcher.Fetch(context.Background(), server.URL, fastRetry(2), "")

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, int32(2), attempts.Load())
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"0", 0, true},
		{"5", 5 * time.Second, true},
		{" 12 ", 12 * time.Second, true},
		{"", 0, false},
		{"-1", 0, false},
		{"1.5", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseRetryAfter(tt.value)
		assert.Equal(t, tt.ok, ok, "value %q", tt.value)
		assert.Equal(t, tt.want, got, "value %q", tt.value)
	}
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, NextBackoff(100*time.Millisecond, 2, time.Second))
	assert.Equal(t, time.Second, NextBackoff(800*time.Millisecond, 2, time.Second))
	assert.Equal(t, 150*time.Millisecond, NextBackoff(100*time.Millisecond, 1.5, time.Second))
	assert.Equal(t, 100*time.Millisecond, NextBackoff(100*time.Millisecond, 1, time.Second))
}

func TestTenPercentJitter(t *testing.T) {
	base := 1000 * time.Millisecond
	for i := 0; i < 500; i++ {
		got := TenPercentJitter(base)
		assert.GreaterOrEqual(t, got, 900*time.Millisecond)
		assert.LessOrEqual(t, got, 1100*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), TenPercentJitter(0))
	assert.Equal(t, time.Duration(3), TenPercentJitter(3))
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 501, 505} {
		assert.False(t, IsRetryableStatus(code), "status %d", code)
	}
}
