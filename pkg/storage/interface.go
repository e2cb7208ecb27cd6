// Package storage holds the session-scoped discovery cache: normalized base
// domain -> resolved sitemap locations. Nothing is persisted across runs.
package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

// Supported cache backends
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// DiscoveryCache memoizes discovery results for one session.
// Get returns a copy of the cached list and whether the key was present.
// Set overwrites unconditionally. There is no eviction and no TTL.
type DiscoveryCache interface {
	Get(domain string) ([]string, bool)
	Set(domain string, locations []string)
	Len() int
	Close() error
}

// NewDiscoveryCache builds the cache selected by backend ("" means memory)
func NewDiscoveryCache(backend string, log *logrus.Entry) (DiscoveryCache, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryCache(), nil
	case BackendBadger:
		return NewBadgerCache(log)
	}
	return nil, fmt.Errorf("%w: unknown cache backend '%s'", utils.ErrConfigValidation, backend)
}

func copyLocations(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
