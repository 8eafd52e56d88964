// Package session owns the authenticated browser sessions. There is exactly
// one Manager per process; views read sessions through it instead of poking
// at storage directly, and logout both clears the persisted record and
// notifies subscribers so they can drop any per-session state.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"transferencias/internal/core"
)

var ErrNotFound = errors.New("session not found")

// Session binds a browser to the API credentials obtained at login: the
// opaque bearer token and the stored user record. The browser only ever
// sees the session id.
type Session struct {
	ID        string
	Token     string
	User      core.User
	CreatedAt time.Time
}

// Store persists sessions. The sqlite implementation lives in
// internal/storage; MemoryStore below serves tests and the memory backend.
type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

type Manager struct {
	store Store

	mu   sync.Mutex
	subs []func(sessionID string)
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create persists a new session for freshly obtained credentials and
// returns it. The id is the only value handed to the browser.
func (m *Manager) Create(ctx context.Context, token string, user core.User) (Session, error) {
	if token == "" {
		return Session{}, errors.New("empty session token")
	}
	if user.ID == 0 {
		return Session{}, errors.New("missing user id")
	}
	s := Session{
		ID:        newSessionID(),
		Token:     token,
		User:      user,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Get resolves a session id. No validity or expiry check is performed; a
// stale API token is only discovered when the server rejects a call.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	return m.store.Get(ctx, id)
}

// Logout deletes the persisted session and notifies subscribers. Deleting
// an already absent session is not an error.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	m.mu.Lock()
	subs := append([]func(string){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(id)
	}
	return nil
}

// Subscribe registers a callback invoked with the session id on logout.
func (m *Manager) Subscribe(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

func newSessionID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("sid_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// MemoryStore is a map-backed Store for tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}
