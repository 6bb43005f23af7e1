// Package idempotency adds settlement deduplication to an x402 facilitator.
//
// Settlement submits an on-chain transaction. If a client retries while the
// first submission is still confirming, a bare facilitator would submit a
// second transaction for the same payment. Wrapping the facilitator with this
// package makes Settle idempotent: identical payloads map to one settlement,
// concurrent duplicates wait for the first to finish, and successful results
// are replayed from a cache for a configurable window.
//
// Basic usage:
//
//	base := x402.Newx402Facilitator()
//	base.Register(networks, mechanism)
//
//	facilitator := idempotency.Wrap(base)
//
// The default store is in-memory with a 10-minute TTL, which suits a single
// process. Load-balanced deployments should provide a shared backend via
// WithStore by implementing SettlementStore.
//
// Failed settlements are never cached, so legitimate retries still go
// through.
package idempotency
