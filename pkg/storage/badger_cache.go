package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/sitemap-urls/pkg/log"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

const (
	discoveryKeyPrefix = "discovery:"
	maxConflictRetries = 10
)

// BadgerCache is a DiscoveryCache on an in-memory BadgerDB. No files are written,
// so entries live exactly as long as the session that owns the cache.
type BadgerCache struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64
}

// NewBadgerCache opens an in-memory database
func NewBadgerCache(logger *logrus.Entry) (*BadgerCache, error) {
	cacheLog := logger.WithField("component", "discovery_cache")
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(log.NewBadgerLogrusAdapter(cacheLog.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening in-memory discovery cache: %w", utils.ErrDatabase, err)
	}
	cacheLog.Debug("In-memory discovery cache opened")
	return &BadgerCache{db: db, log: cacheLog}, nil
}

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Concurrent MVCC transactions on the same key can return badger.ErrConflict.
func (c *BadgerCache) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		c.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Get returns the cached locations for domain. Decode or read errors count as a miss.
func (c *BadgerCache) Get(domain string) ([]string, bool) {
	key := []byte(discoveryKeyPrefix + domain)
	var locs []string
	found := false

	err := c.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		return item.Value(func(val []byte) error {
			if errJSON := json.Unmarshal(val, &locs); errJSON != nil {
				return errJSON
			}
			found = true
			return nil
		})
	})
	if err != nil {
		c.log.WithField("domain", domain).Warnf("Discovery cache read failed, treating as miss: %v", err)
		return nil, false
	}
	return locs, found
}

// Set stores locations for domain, overwriting any previous value
func (c *BadgerCache) Set(domain string, locations []string) {
	key := []byte(discoveryKeyPrefix + domain)
	val, err := json.Marshal(copyLocations(locations))
	if err != nil {
		c.log.WithField("domain", domain).Errorf("Encoding discovery cache entry: %v", err)
		return
	}

	added := false
	err = c.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			added = true
		} else if errGet != nil {
			return errGet
		}
		return txn.SetEntry(badger.NewEntry(key, val))
	})
	if err != nil {
		c.log.WithField("domain", domain).Errorf("DB Update error in discovery cache Set: %v", err)
		return
	}
	if added {
		c.keyCount.Add(1)
	}
}

// Len returns the number of cached domains
func (c *BadgerCache) Len() int {
	return int(c.keyCount.Load())
}

// Close releases the database
func (c *BadgerCache) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("%w: closing discovery cache: %w", utils.ErrDatabase, err)
	}
	return nil
}
