package idempotency

import (
	"context"
	"testing"
	"time"

	x402 "github.com/x402-foundation/x402-go"
)

func TestInMemoryStoreCheckAndMark(t *testing.T) {
	store := NewInMemoryStore(time.Minute)

	status, result, done := store.CheckAndMark("key")
	if status != StatusNotFound {
		t.Fatalf("expected StatusNotFound, got %v", status)
	}
	if result != nil {
		t.Error("expected nil result")
	}
	if done == nil {
		t.Fatal("expected a done channel")
	}

	// A second check while in flight reports the same channel.
	status2, _, done2 := store.CheckAndMark("key")
	if status2 != StatusInFlight {
		t.Fatalf("expected StatusInFlight, got %v", status2)
	}
	if done2 != done {
		t.Error("expected the same done channel for waiters")
	}
}

func TestInMemoryStoreCompleteAndReplay(t *testing.T) {
	store := NewInMemoryStore(time.Minute)

	_, _, done := store.CheckAndMark("key")
	response := &x402.SettleResponse{Success: true, Transaction: "0xabc"}
	store.Complete("key", response, done)

	status, result, _ := store.CheckAndMark("key")
	if status != StatusCached {
		t.Fatalf("expected StatusCached, got %v", status)
	}
	if result.Transaction != "0xabc" {
		t.Errorf("expected cached transaction, got %s", result.Transaction)
	}

	// done is closed, so a waiter returns immediately.
	got, err := store.WaitForResult(context.Background(), "key", done)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Transaction != "0xabc" {
		t.Error("expected waiter to receive the cached result")
	}
}

func TestInMemoryStoreFailReleasesWaiters(t *testing.T) {
	store := NewInMemoryStore(time.Minute)

	_, _, done := store.CheckAndMark("key")
	store.Fail("key", done)

	got, err := store.WaitForResult(context.Background(), "key", done)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil result after failure")
	}

	// The slot is free again for a retry.
	status, _, _ := store.CheckAndMark("key")
	if status != StatusNotFound {
		t.Errorf("expected StatusNotFound after failure, got %v", status)
	}
}

func TestInMemoryStoreExpiry(t *testing.T) {
	store := NewInMemoryStore(10 * time.Millisecond)

	_, _, done := store.CheckAndMark("key")
	store.Complete("key", &x402.SettleResponse{Success: true}, done)

	time.Sleep(20 * time.Millisecond)

	status, _, _ := store.CheckAndMark("key")
	if status != StatusNotFound {
		t.Errorf("expected expired entry to be gone, got %v", status)
	}
}

func TestInMemoryStoreWaitRespectsContext(t *testing.T) {
	store := NewInMemoryStore(time.Minute)

	_, _, done := store.CheckAndMark("key")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.WaitForResult(ctx, "key", done); err == nil {
		t.Error("expected context cancellation error")
	}
}

func TestInMemoryStoreConcurrentOwners(t *testing.T) {
	store := NewInMemoryStore(time.Minute)

	const waiters = 8
	_, _, done := store.CheckAndMark("key")

	results := make(chan *x402.SettleResponse, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			status, cached, ownerDone := store.CheckAndMark("key")
			if status == StatusCached {
				results <- cached
				return
			}
			got, _ := store.WaitForResult(context.Background(), "key", ownerDone)
			results <- got
		}()
	}

	store.Complete("key", &x402.SettleResponse{Success: true, Transaction: "0xonce"}, done)

	for i := 0; i < waiters; i++ {
		got := <-results
		if got == nil || got.Transaction != "0xonce" {
			t.Fatal("expected every waiter to observe the single settlement")
		}
	}
}
