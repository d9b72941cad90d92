package dataset

import (
	"bytes"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// Cache keeps parsed tables keyed by content hash so identical
// re-uploads skip re-parsing. Entries expire after a TTL and the cache
// holds at most maxEntries tables, evicting the oldest first.
// Concurrent identical uploads are parsed once via singleflight.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	group      singleflight.Group

	// Hits and Misses observers, optional.
	OnHit  func()
	OnMiss func()

	now func() time.Time
}

type cacheEntry struct {
	table    *Table
	storedAt time.Time
}

// NewCache creates a parse cache with the given expiry policy.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Key returns the cache key for the given file content.
func Key(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Load parses the named file content, or returns the cached table for
// identical content. The returned key identifies the content for the
// session's lifetime.
func (c *Cache) Load(name string, data []byte) (*Table, string, error) {
	key := Key(data)

	if t := c.get(key); t != nil {
		if c.OnHit != nil {
			c.OnHit()
		}
		return t, key, nil
	}
	if c.OnMiss != nil {
		c.OnMiss()
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under singleflight: another caller may have
		// populated the entry while we waited.
		if t := c.get(key); t != nil {
			return t, nil
		}
		t, err := Load(name, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		c.put(key, t)
		return t, nil
	})
	if err != nil {
		return nil, "", err
	}
	return v.(*Table), key, nil
}

// Len returns the number of live entries, expiring stale ones first.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	return len(c.entries)
}

func (c *Cache) get(key string) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	if e, ok := c.entries[key]; ok {
		return e.table
	}
	return nil
}

func (c *Cache) put(key string, t *Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	c.entries[key] = &cacheEntry{table: t, storedAt: c.now()}
	for len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
	}
}

func (c *Cache) expireLocked() {
	cutoff := c.now().Add(-c.ttl)
	for k, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
