package view

import (
	"context"
	"errors"
	"sync"
	"testing"

	"transferencias/internal/core"
)

func fixedFetch(txs []core.Transaction, err error) FetchFunc {
	return func(ctx context.Context) ([]core.Transaction, error) {
		return txs, err
	}
}

func TestStoreReloadReplacesSnapshot(t *testing.T) {
	s := NewStore()

	if r := s.Snapshot(); r.Loaded {
		t.Fatalf("fresh store should not be loaded")
	}

	txs := []core.Transaction{{ID: 1, Description: "a"}}
	if err := s.Reload(context.Background(), fixedFetch(txs, nil)); err != nil {
		t.Fatalf("reload: %v", err)
	}
	r := s.Snapshot()
	if !r.Loaded || r.Err != nil || len(r.Transactions) != 1 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestStoreReloadKeepsSnapshotOnError(t *testing.T) {
	s := NewStore()
	if err := s.Reload(context.Background(), fixedFetch([]core.Transaction{{ID: 7}}, nil)); err != nil {
		t.Fatalf("seed reload: %v", err)
	}

	boom := errors.New("api unreachable")
	if err := s.Reload(context.Background(), fixedFetch(nil, boom)); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	r := s.Snapshot()
	if len(r.Transactions) != 1 || r.Transactions[0].ID != 7 {
		t.Fatalf("previous snapshot not preserved: %+v", r)
	}
	if !errors.Is(r.Err, boom) {
		t.Fatalf("failure reason not recorded: %v", r.Err)
	}

	// A successful reload clears the recorded failure.
	if err := s.Reload(context.Background(), fixedFetch(nil, nil)); err != nil {
		t.Fatalf("recovery reload: %v", err)
	}
	if r := s.Snapshot(); r.Err != nil {
		t.Fatalf("error should be cleared, got %v", r.Err)
	}
}

func TestStoreStaleResponseDiscarded(t *testing.T) {
	s := NewStore()

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	old := []core.Transaction{{ID: 1, Description: "stale"}}
	fresh := []core.Transaction{{ID: 2, Description: "fresh"}}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = s.Reload(context.Background(), func(ctx context.Context) ([]core.Transaction, error) {
			close(firstStarted)
			<-release
			return old, nil
		})
	}()

	<-firstStarted
	// Second reload is issued and completes while the first is in flight.
	if err := s.Reload(context.Background(), fixedFetch(fresh, nil)); err != nil {
		t.Fatalf("second reload: %v", err)
	}
	close(release)
	wg.Wait()

	if !errors.Is(firstErr, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded for the older reload, got %v", firstErr)
	}
	r := s.Snapshot()
	if len(r.Transactions) != 1 || r.Transactions[0].ID != 2 {
		t.Fatalf("stale response applied over the newer one: %+v", r.Transactions)
	}
}

func TestStoreContains(t *testing.T) {
	s := NewStore()
	_ = s.Reload(context.Background(), fixedFetch([]core.Transaction{{ID: 7}}, nil))
	if !s.Contains(7) {
		t.Fatalf("expected id 7 in snapshot")
	}
	if s.Contains(8) {
		t.Fatalf("did not expect id 8 in snapshot")
	}
	// After a reload showing the row gone, no action should target it.
	_ = s.Reload(context.Background(), fixedFetch(nil, nil))
	if s.Contains(7) {
		t.Fatalf("expected id 7 gone after reload")
	}
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	_ = s.Reload(context.Background(), fixedFetch([]core.Transaction{{ID: 1, Description: "a"}}, nil))
	r := s.Snapshot()
	r.Transactions[0].Description = "mutated"
	if got := s.Snapshot().Transactions[0].Description; got != "a" {
		t.Fatalf("snapshot aliased store state: %q", got)
	}
}
