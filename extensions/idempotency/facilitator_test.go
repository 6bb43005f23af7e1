package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	x402 "github.com/x402-foundation/x402-go"
)

// mockStore records store interactions for assertions.
type mockStore struct {
	mu            sync.Mutex
	checkCalls    int
	completeCalls int
	failCalls     int
	status        SettlementStatus
	cachedResult  *x402.SettleResponse
	done          chan struct{}
}

func newMockStore(status SettlementStatus, cachedResult *x402.SettleResponse) *mockStore {
	return &mockStore{
		status:       status,
		cachedResult: cachedResult,
		done:         make(chan struct{}),
	}
}

func (m *mockStore) CheckAndMark(key string) (SettlementStatus, *x402.SettleResponse, chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkCalls++
	return m.status, m.cachedResult, m.done
}

func (m *mockStore) WaitForResult(ctx context.Context, key string, done chan struct{}) (*x402.SettleResponse, error) {
	select {
	case <-done:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.cachedResult, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockStore) Complete(key string, response *x402.SettleResponse, done chan struct{}) {
	m.mu.Lock()
	m.completeCalls++
	m.cachedResult = response
	m.mu.Unlock()
	close(done)
}

func (m *mockStore) Fail(key string, done chan struct{}) {
	m.mu.Lock()
	m.failCalls++
	m.mu.Unlock()
	close(done)
}

func TestWrapDefaults(t *testing.T) {
	base := x402.Newx402Facilitator()
	wrapped := Wrap(base)

	if wrapped.inner != base {
		t.Error("expected inner to be the wrapped facilitator")
	}
	if wrapped.store == nil {
		t.Error("expected store to be initialized")
	}
	if wrapped.keyGenerator == nil {
		t.Error("expected keyGenerator to be initialized")
	}
}

func TestWrapWithTTL(t *testing.T) {
	wrapped := Wrap(x402.Newx402Facilitator(), WithTTL(30*time.Minute))

	store, ok := wrapped.store.(*InMemoryStore)
	if !ok {
		t.Fatal("expected default InMemoryStore")
	}
	if store.ttl != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", store.ttl)
	}
}

func TestWrapWithStore(t *testing.T) {
	custom := newMockStore(StatusNotFound, nil)
	wrapped := Wrap(x402.Newx402Facilitator(), WithStore(custom))

	if wrapped.store != custom {
		t.Error("expected custom store to be used")
	}
}

func TestWrapWithKeyGenerator(t *testing.T) {
	wrapped := Wrap(x402.Newx402Facilitator(), WithKeyGenerator(func([]byte) string {
		return "custom-key"
	}))

	if key := wrapped.keyGenerator([]byte("anything")); key != "custom-key" {
		t.Errorf("expected custom-key, got %s", key)
	}
}

func TestSettleReturnsCachedResult(t *testing.T) {
	cached := &x402.SettleResponse{
		Success:     true,
		Transaction: "0xcached",
		Payer:       "0xpayer",
		Network:     "eip155:8453",
	}
	store := newMockStore(StatusCached, cached)
	wrapped := Wrap(x402.Newx402Facilitator(), WithStore(store))

	result, err := wrapped.Settle(context.Background(), []byte(`{}`), []byte(`{}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Transaction != "0xcached" {
		t.Errorf("expected cached transaction, got %s", result.Transaction)
	}
	if store.checkCalls != 1 {
		t.Errorf("expected 1 check call, got %d", store.checkCalls)
	}
	if store.completeCalls != 0 {
		t.Errorf("expected no complete call on cache hit, got %d", store.completeCalls)
	}
}

func TestSettleFailureNotCached(t *testing.T) {
	// An empty facilitator rejects the payload, so the settlement fails and
	// the in-flight slot must be released without caching.
	store := newMockStore(StatusNotFound, nil)
	wrapped := Wrap(x402.Newx402Facilitator(), WithStore(store))

	result, _ := wrapped.Settle(context.Background(), []byte(`{"x402Version":2}`), []byte(`{"x402Version":2}`))
	if result.Success {
		t.Fatal("expected failed settlement")
	}
	if store.failCalls != 1 {
		t.Errorf("expected 1 fail call, got %d", store.failCalls)
	}
	if store.completeCalls != 0 {
		t.Errorf("expected no complete call on failure, got %d", store.completeCalls)
	}
}

func TestSettleContextCancelledWhileWaiting(t *testing.T) {
	store := newMockStore(StatusInFlight, nil)
	wrapped := Wrap(x402.Newx402Facilitator(), WithStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := wrapped.Settle(ctx, []byte(`{}`), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error when context is cancelled")
	}
	if result.Success {
		t.Error("expected failed result")
	}
}

func TestInner(t *testing.T) {
	base := x402.Newx402Facilitator()
	if Wrap(base).Inner() != base {
		t.Error("expected Inner() to return the wrapped facilitator")
	}
}

func TestGetSupportedDelegates(t *testing.T) {
	supported := Wrap(x402.Newx402Facilitator()).GetSupported()
	if len(supported.Kinds) != 0 {
		t.Errorf("expected no kinds from empty facilitator, got %d", len(supported.Kinds))
	}
}

func TestRegistrationChaining(t *testing.T) {
	wrapped := Wrap(x402.Newx402Facilitator())

	if wrapped.RegisterExtension("payment-identifier") != wrapped {
		t.Error("expected RegisterExtension to return the wrapper")
	}
	if wrapped.OnAfterSettle(func(x402.FacilitatorSettleResultContext) error { return nil }) != wrapped {
		t.Error("expected OnAfterSettle to return the wrapper")
	}
}
