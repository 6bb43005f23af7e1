package idempotency

import "time"

type config struct {
	ttl          time.Duration
	store        SettlementStore
	keyGenerator KeyGenerator
}

// Option configures an IdempotentFacilitator.
type Option func(*config)

// WithTTL sets how long successful settlements stay cached. Only applies to
// the default InMemoryStore; a store passed via WithStore manages its own
// TTL. Default: 10 minutes.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithStore swaps in a custom SettlementStore, e.g. a Redis-backed one for
// load-balanced deployments. When set, WithTTL is ignored.
func WithStore(store SettlementStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithKeyGenerator replaces the default SHA-256 payload hash. The generated
// key must uniquely identify a settlement attempt; collisions cause false
// deduplication.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *config) {
		c.keyGenerator = gen
	}
}
