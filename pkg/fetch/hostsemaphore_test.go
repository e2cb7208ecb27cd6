package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestPool(limit int) (*HostSemaphorePool, *fakeClock) {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetLevel(logrus.DebugLevel)
	pool := NewHostSemaphorePool(limit, log)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	pool.now = clock.Now
	return pool, clock
}

func TestHostSemaphore_LimitPerHost(t *testing.T) {
	pool, _ := newTestPool(2)
	ctx := context.Background()

	require.NoError(t, pool.Acquire(ctx, "a.com"))
	require.NoError(t, pool.Acquire(ctx, "a.com"))
	assert.Equal(t, 2, pool.InFlight("a.com"))

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	assert.Error(t, pool.Acquire(short, "a.com"), "third permit must wait")
	assert.Equal(t, 2, pool.InFlight("a.com"), "failed acquire is rolled back")

	// Other hosts are unaffected
	require.NoError(t, pool.Acquire(ctx, "b.com"))
	assert.Equal(t, 2, pool.Len())

	pool.Release("a.com")
	require.NoError(t, pool.Acquire(ctx, "a.com"))

	pool.Release("a.com")
	pool.Release("a.com")
	pool.Release("b.com")
	assert.Equal(t, 0, pool.InFlight("a.com"))
	assert.Equal(t, 0, pool.InFlight("unknown.com"))
}

func TestHostSemaphore_DefaultLimit(t *testing.T) {
	pool, _ := newTestPool(0)
	assert.Equal(t, int64(2), pool.perHost)
}

func TestHostSemaphore_EvictIdle(t *testing.T) {
	pool, clock := newTestPool(1)
	ctx := context.Background()

	for _, host := range []string{"a.com", "b.com"} {
		require.NoError(t, pool.Acquire(ctx, host))
		pool.Release(host)
	}
	require.NoError(t, pool.Acquire(ctx, "held.com"))
	// Acquired once but never released: no idle time yet
	require.NoError(t, pool.Acquire(ctx, "c.com"))
	pool.mu.Lock()
	pool.slots["c.com"].inFlight = 0
	pool.mu.Unlock()

	assert.Equal(t, 0, pool.evictIdle(time.Minute), "nothing is old enough yet")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, pool.evictIdle(time.Minute))
	assert.Equal(t, 2, pool.Len(), "held and never-released hosts stay")
	assert.Equal(t, 1, pool.InFlight("held.com"))

	pool.Release("held.com")
	clock.Advance(2 * time.Minute)
	pool.evictIdle(time.Minute)
	assert.Equal(t, 1, pool.Len())
}

func TestHostSemaphore_ReleaseUntrackedHost(t *testing.T) {
	pool, _ := newTestPool(1)
	pool.Release("ghost.com")
	assert.Equal(t, 0, pool.Len())
}

func TestHostSemaphore_RunEvictionStopsOnCancel(t *testing.T) {
	pool, _ := newTestPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		pool.RunEviction(ctx, time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunEviction did not return after cancellation")
	}
}

func TestHostSemaphore_Concurrent(t *testing.T) {
	pool, clock := newTestPool(3)
	const host = "busy.com"

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		current int
		peak    int
	)
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(context.Background(), host); err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			mu.Lock()
			current++
			peak = max(peak, current)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			pool.Release(host)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 3)
	assert.Equal(t, 0, pool.InFlight(host))
	clock.Advance(time.Hour)
	assert.Equal(t, 1, pool.evictIdle(time.Minute))
}
