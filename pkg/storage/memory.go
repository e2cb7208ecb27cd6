package storage

import (
	"github.com/patrickmn/go-cache"
)

// MemoryCache is a DiscoveryCache on go-cache with expiration and the
// janitor goroutine disabled, so entries live as long as the session
type MemoryCache struct {
	c *cache.Cache
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{c: cache.New(cache.NoExpiration, 0)}
}

// Get returns a copy of the cached locations for domain
func (m *MemoryCache) Get(domain string) ([]string, bool) {
	v, ok := m.c.Get(domain)
	if !ok {
		return nil, false
	}
	return copyLocations(v.([]string)), true
}

// Set stores a copy of locations for domain
func (m *MemoryCache) Set(domain string, locations []string) {
	m.c.Set(domain, copyLocations(locations), cache.NoExpiration)
}

// Len returns the number of cached domains
func (m *MemoryCache) Len() int {
	return m.c.ItemCount()
}

// Close is a no-op
func (m *MemoryCache) Close() error { return nil }
