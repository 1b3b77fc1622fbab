package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache is the key-value store used for case-type classification results.
// Any TTL-capable store satisfies it; MemoryCache is the in-process
// fallback when no external cache is configured.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
}

// HashKey derives a cache key from long content by hashing it.
func HashKey(prefix, content string) string {
	sum := sha256.Sum256([]byte(content))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}

// MemoryCache is a bounded in-process TTL cache. When full it evicts the
// entry closest to expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
}

type cacheEntry struct {
	value   string
	expires time.Time
}

// defaultCacheSize bounds the classification cache.
const defaultCacheSize = 1000

// NewMemoryCache returns an empty cache holding at most maxSize entries;
// maxSize <= 0 selects the default bound.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	return &MemoryCache{entries: make(map[string]cacheEntry), maxSize: maxSize}
}

// Get implements Cache. Expired entries read as absent and are dropped.
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if entry.expires.Before(time.Now()) {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

// Set implements Cache.
func (c *MemoryCache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		if _, exists := c.entries[key]; !exists {
			c.evictSoonest()
		}
	}
	c.entries[key] = cacheEntry{value: value, expires: time.Now().Add(ttl)}
}

// evictSoonest drops the entry with the earliest expiry. Caller holds mu.
func (c *MemoryCache) evictSoonest() {
	var victim string
	var soonest time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.expires.Before(soonest) {
			victim, soonest, first = key, entry.expires, false
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// Sweep removes expired entries and returns how many were evicted.
func (c *MemoryCache) Sweep() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0
	for key, entry := range c.entries {
		if entry.expires.Before(now) {
			delete(c.entries, key)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored entries, expired or not. Test helper.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
