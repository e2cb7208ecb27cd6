package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// hostSlot is one host's permit semaphore plus what eviction needs to know about it
type hostSlot struct {
	sem      *semaphore.Weighted
	inFlight int64     // held or waiting permits
	idleFrom time.Time // last release, zero until the first one
}

// HostSemaphorePool caps concurrent requests per host. One pool is shared by
// every fetch in a session (discovery, traversal, bruteforce) so the cap
// holds across parallel domains that live on the same host.
type HostSemaphorePool struct {
	mu      sync.Mutex
	slots   map[string]*hostSlot
	perHost int64
	now     func() time.Time
	log     *logrus.Entry
}

// NewHostSemaphorePool creates a pool allowing maxPerHost concurrent requests to each host
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	perHost := int64(maxPerHost)
	if perHost <= 0 {
		perHost = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", perHost)
	}
	return &HostSemaphorePool{
		slots:   make(map[string]*hostSlot),
		perHost: perHost,
		now:     time.Now,
		log:     log,
	}
}

// Acquire blocks until a permit for host is free or ctx ends
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	p.mu.Lock()
	slot, ok := p.slots[host]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(p.perHost)}
		p.slots[host] = slot
		p.log.WithFields(logrus.Fields{"host": host, "limit": p.perHost}).Debug("Tracking new host")
	}
	slot.inFlight++
	p.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		p.mu.Lock()
		slot.inFlight--
		p.mu.Unlock()
		return err
	}
	return nil
}

// Release returns one permit for host
func (p *HostSemaphorePool) Release(host string) {
	p.mu.Lock()
	slot, ok := p.slots[host]
	if !ok {
		p.mu.Unlock()
		p.log.Errorf("Release called for untracked host: %s", host)
		return
	}
	slot.inFlight--
	slot.idleFrom = p.now()
	p.mu.Unlock()

	slot.sem.Release(1)
}

// InFlight returns the number of held or waiting permits for host
func (p *HostSemaphorePool) InFlight(host string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot, ok := p.slots[host]; ok {
		return int(slot.inFlight)
	}
	return 0
}

// RunEviction drops hosts idle for longer than interval until ctx ends. Run it in its own goroutine.
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := p.evictIdle(interval); n > 0 {
				p.log.Debugf("Evicted %d idle host(s), %d tracked", n, p.Len())
			}
		case <-ctx.Done():
			p.log.Debugf("Stopping host eviction: %v", ctx.Err())
			return
		}
	}
}

// evictIdle removes hosts with nothing in flight whose last release is at least maxIdle old
func (p *HostSemaphorePool) evictIdle(maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-maxIdle)
	evicted := 0
	for host, slot := range p.slots {
		if slot.inFlight > 0 || slot.idleFrom.IsZero() || slot.idleFrom.After(cutoff) {
			continue
		}
		delete(p.slots, host)
		evicted++
	}
	return evicted
}

// Len returns the number of tracked hosts
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
