package view

import (
	"context"
	"errors"
	"sync"

	"transferencias/internal/core"
)

// ErrSuperseded is returned by Reload when a newer reload was issued while
// this one was in flight. The stale response is discarded, never applied.
var ErrSuperseded = errors.New("reload superseded by a newer request")

// FetchFunc produces a fresh transaction list, typically an authenticated
// call to the remote API.
type FetchFunc func(ctx context.Context) ([]core.Transaction, error)

// Result is the explicit outcome of the last reload, consumed by the
// presentation layer to choose between showing data, an empty state, or a
// retry affordance.
type Result struct {
	Transactions []core.Transaction
	Err          error
	Loaded       bool
}

// Store holds the authoritative last-fetched transaction snapshot for one
// view instance. The list only ever changes through a full reload; reloads
// carry a monotonically increasing sequence number so that overlapping
// refreshes resolve last-issued-wins at the snapshot level.
type Store struct {
	mu       sync.Mutex
	seq      uint64
	snapshot []core.Transaction
	err      error
	loaded   bool
}

func NewStore() *Store {
	return &Store{}
}

// Reload fetches a fresh snapshot and replaces the current one wholesale.
// If another Reload was issued after this one, the response is dropped and
// ErrSuperseded is returned; on a fetch error the previous snapshot is kept
// and the failure is recorded in the result.
func (s *Store) Reload(ctx context.Context, fetch FetchFunc) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	txs, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return ErrSuperseded
	}
	s.loaded = true
	if err != nil {
		s.err = err
		return err
	}
	s.snapshot = txs
	s.err = nil
	return nil
}

// Snapshot returns a copy of the current result. The copy keeps handlers
// from aliasing the store's backing array across a later reload.
func (s *Store) Snapshot() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.snapshot))
	copy(out, s.snapshot)
	return Result{Transactions: out, Err: s.err, Loaded: s.loaded}
}

// Contains reports whether an id is present in the current snapshot. The UI
// uses it to avoid presenting actions for rows that no longer exist.
func (s *Store) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.snapshot {
		if tx.ID == id {
			return true
		}
	}
	return false
}
