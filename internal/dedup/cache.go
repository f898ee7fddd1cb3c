package dedup

import (
	"os"
	"sync"
)

// Cache maps path-hash fingerprints to rendered artifact locations.
// Entries live for the process lifetime; there is no eviction. Safe for
// concurrent use by the sweep, the fast path, and render workers.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string // fingerprint → artifact path
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Lookup returns the artifact path recorded for the fingerprint, but only
// if that file still exists on disk. A recorded artifact that has been
// deleted out from under us is treated as a miss (and left in place; the
// next successful render overwrites it).
func (c *Cache) Lookup(fingerprint string) (string, bool) {
	c.mu.RLock()
	path, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Record stores the artifact path for a fingerprint after a successful
// render.
func (c *Cache) Record(fingerprint, path string) {
	c.mu.Lock()
	c.entries[fingerprint] = path
	c.mu.Unlock()
}

// Len returns the number of recorded fingerprints.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
