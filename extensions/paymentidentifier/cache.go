package paymentidentifier

import (
	"sync"
	"time"

	x402 "github.com/x402-foundation/x402-go"
)

// DefaultCacheTTL is how long a completed payment result is remembered.
const DefaultCacheTTL = 1 * time.Hour

// CachedResult is the replayable outcome of a previously processed payment.
type CachedResult struct {
	Fingerprint string
	Verify      x402.VerifyResponse
	Settle      *x402.SettleResponse
}

// Cache is an in-memory idempotency cache keyed by payment ID. A hit lets
// a resource server return the prior result without re-verifying or
// re-settling.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	result    CachedResult
	expiresAt time.Time
}

// NewCache creates a cache. A zero ttl uses DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached result for a payment ID, expiring lazily.
func (c *Cache) Get(id string) (CachedResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return CachedResult{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return CachedResult{}, false
	}
	return entry.result, true
}

// Put stores the result for a payment ID.
func (c *Cache) Put(id string, result CachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cacheEntry{
		result:    result,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.evictExpiredLocked()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			count++
		}
	}
	return count
}

func (c *Cache) evictExpiredLocked() {
	now := time.Now()
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
}
