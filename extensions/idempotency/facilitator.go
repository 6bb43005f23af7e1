package idempotency

import (
	"context"
	"time"

	x402 "github.com/x402-foundation/x402-go"
)

// IdempotentFacilitator wraps an X402Facilitator so that Settle is
// deduplicated by payment payload. Verify and GetSupported delegate straight
// through; verification is read-only and needs no protection.
type IdempotentFacilitator struct {
	inner        *x402.X402Facilitator
	store        SettlementStore
	keyGenerator KeyGenerator
}

// Wrap builds an IdempotentFacilitator around facilitator.
//
// Defaults: InMemoryStore with a 10-minute TTL and the SHA-256 key
// generator. Override with options:
//
//	facilitator := idempotency.Wrap(base, idempotency.WithTTL(30*time.Minute))
func Wrap(facilitator *x402.X402Facilitator, opts ...Option) *IdempotentFacilitator {
	cfg := &config{
		ttl:          10 * time.Minute,
		keyGenerator: DefaultKeyGenerator,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewInMemoryStore(cfg.ttl)
	}

	return &IdempotentFacilitator{
		inner:        facilitator,
		store:        store,
		keyGenerator: cfg.keyGenerator,
	}
}

// Settle settles a payment at most once per payload.
//
// A cached result is returned without touching the chain. If another request
// holds the in-flight slot, Settle waits for it; when the owner failed, the
// waiter retries with a fresh slot. Only successful settlements are cached,
// so failures remain retryable.
func (f *IdempotentFacilitator) Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.SettleResponse, error) {
	cacheKey := f.keyGenerator(payloadBytes)

	status, cached, done := f.store.CheckAndMark(cacheKey)

	switch status {
	case StatusCached:
		return *cached, nil

	case StatusInFlight:
		result, err := f.store.WaitForResult(ctx, cacheKey, done)
		if err != nil {
			return x402.SettleResponse{
				Success:     false,
				ErrorReason: "context_cancelled",
			}, x402.NewSettleError("context_cancelled", "", "", "", err)
		}
		if result != nil {
			return *result, nil
		}
		// Owner failed without caching; take a fresh in-flight slot.
		return f.Settle(ctx, payloadBytes, requirementsBytes)

	case StatusNotFound:
		// This request owns the in-flight slot.
	}

	settleResult, settleErr := f.inner.Settle(ctx, payloadBytes, requirementsBytes)

	if settleErr != nil || !settleResult.Success {
		f.store.Fail(cacheKey, done)
		return settleResult, settleErr
	}

	f.store.Complete(cacheKey, &settleResult, done)
	return settleResult, nil
}

// Verify delegates to the wrapped facilitator.
func (f *IdempotentFacilitator) Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.VerifyResponse, error) {
	return f.inner.Verify(ctx, payloadBytes, requirementsBytes)
}

// GetSupported delegates to the wrapped facilitator.
func (f *IdempotentFacilitator) GetSupported() x402.SupportedResponse {
	return f.inner.GetSupported()
}

// Inner exposes the wrapped facilitator for direct registration:
//
//	wrapped := idempotency.Wrap(base)
//	wrapped.Inner().OnAfterSettle(myHook)
func (f *IdempotentFacilitator) Inner() *x402.X402Facilitator {
	return f.inner
}

// Register registers a payment mechanism on the wrapped facilitator.
func (f *IdempotentFacilitator) Register(networks []x402.Network, mechanism x402.SchemeNetworkFacilitator) *IdempotentFacilitator {
	f.inner.Register(networks, mechanism)
	return f
}

// RegisterV1 registers a mechanism under the legacy protocol version.
func (f *IdempotentFacilitator) RegisterV1(networks []x402.Network, mechanism x402.SchemeNetworkFacilitator) *IdempotentFacilitator {
	f.inner.RegisterV1(networks, mechanism)
	return f
}

// RegisterExtension declares a supported protocol extension.
func (f *IdempotentFacilitator) RegisterExtension(extension string) *IdempotentFacilitator {
	f.inner.RegisterExtension(extension)
	return f
}

// OnBeforeVerify adds a before-verify hook on the wrapped facilitator.
func (f *IdempotentFacilitator) OnBeforeVerify(hook x402.FacilitatorBeforeVerifyHook) *IdempotentFacilitator {
	f.inner.OnBeforeVerify(hook)
	return f
}

// OnAfterVerify adds an after-verify hook on the wrapped facilitator.
func (f *IdempotentFacilitator) OnAfterVerify(hook x402.FacilitatorAfterVerifyHook) *IdempotentFacilitator {
	f.inner.OnAfterVerify(hook)
	return f
}

// OnVerifyFailure adds a verify-failure hook on the wrapped facilitator.
func (f *IdempotentFacilitator) OnVerifyFailure(hook x402.FacilitatorOnVerifyFailureHook) *IdempotentFacilitator {
	f.inner.OnVerifyFailure(hook)
	return f
}

// OnBeforeSettle adds a before-settle hook on the wrapped facilitator.
func (f *IdempotentFacilitator) OnBeforeSettle(hook x402.FacilitatorBeforeSettleHook) *IdempotentFacilitator {
	f.inner.OnBeforeSettle(hook)
	return f
}

// OnAfterSettle adds an after-settle hook on the wrapped facilitator.
func (f *IdempotentFacilitator) OnAfterSettle(hook x402.FacilitatorAfterSettleHook) *IdempotentFacilitator {
	f.inner.OnAfterSettle(hook)
	return f
}

// OnSettleFailure adds a settle-failure hook on the wrapped facilitator.
func (f *IdempotentFacilitator) OnSettleFailure(hook x402.FacilitatorOnSettleFailureHook) *IdempotentFacilitator {
	f.inner.OnSettleFailure(hook)
	return f
}
