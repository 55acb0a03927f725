package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Cache is a small in-memory TTL cache used by the provider adapters to avoid
// redundant external calls. Values are stored as JSON so a cached value can be
// decoded into any compatible type and callers never share mutable state.
//
// Entries are evicted lazily: a Get that discovers an expired entry removes it
// and reports a miss, identical to a key that was never set. There is no size
// cap and no background sweep; entries are small and few. Concurrent misses
// for the same key are not deduplicated (origin calls are idempotent reads).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is overridable in tests.
	now func() time.Time
}

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get decodes the cached value for key into out and reports whether an
// unexpired entry was found. A decode failure is returned as an error and
// treated as a miss.
func (c *Cache) Get(key string, out any) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return false, nil
	}

	// An entry is dead the instant its TTL has fully elapsed.
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it.
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(e.payload, out); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a value under key for ttl. Last writer wins per key.
func (c *Cache) Set(key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[key] = entry{payload: payload, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Clear removes every entry, used when provider API keys change.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Key builds a cache key of the form "provider:operation:normalized-query".
// Parts are lowercased with whitespace collapsed so identical repeated calls
// produce a stable key.
func Key(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(strings.ToLower(p)), " ")
		normalized = append(normalized, p)
	}
	return strings.Join(normalized, ":")
}
