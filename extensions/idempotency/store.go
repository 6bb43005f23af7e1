package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	x402 "github.com/x402-foundation/x402-go"
)

// SettlementStatus is the outcome of checking the store for a key.
type SettlementStatus int

const (
	// StatusNotFound means no cached result and no in-flight settlement;
	// the caller now owns the in-flight slot.
	StatusNotFound SettlementStatus = iota
	// StatusCached means a prior successful settlement was found.
	StatusCached
	// StatusInFlight means another request is settling this payment.
	StatusInFlight
)

// SettlementStore tracks completed and in-flight settlements. Implementations
// must be safe for concurrent use. The interface is small enough to back with
// Redis or a database for multi-instance deployments.
type SettlementStore interface {
	// CheckAndMark atomically checks the store and, when the key is absent,
	// marks it in-flight.
	//
	// Returns one of:
	//   - StatusCached, result, nil: replay the cached result
	//   - StatusInFlight, nil, done: wait on done for the owner to finish
	//   - StatusNotFound, nil, done: proceed; pass done to Complete or Fail
	CheckAndMark(key string) (SettlementStatus, *x402.SettleResponse, chan struct{})

	// WaitForResult blocks until the in-flight owner finishes or ctx is
	// cancelled. A nil result with nil error means the owner failed and the
	// caller should retry.
	WaitForResult(ctx context.Context, key string, done chan struct{}) (*x402.SettleResponse, error)

	// Complete caches a successful result and releases waiters on done.
	// done must be the channel returned by CheckAndMark.
	Complete(key string, response *x402.SettleResponse, done chan struct{})

	// Fail clears the in-flight marker without caching, releasing waiters
	// so they can retry. done must be the channel returned by CheckAndMark.
	Fail(key string, done chan struct{})
}

// KeyGenerator derives the deduplication key from the raw payment payload.
type KeyGenerator func(payloadBytes []byte) string

// DefaultKeyGenerator hashes the payload bytes with SHA-256. The payload
// carries the signature and nonce, so distinct payment attempts never
// collide.
func DefaultKeyGenerator(payloadBytes []byte) string {
	hash := sha256.Sum256(payloadBytes)
	return hex.EncodeToString(hash[:])
}
