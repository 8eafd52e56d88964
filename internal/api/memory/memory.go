// Package memory is an in-process stand-in for the remote API, used in
// development and tests. It accepts any login and keeps everything in
// memory, optionally seeded from JSON files.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"transferencias/internal/api"
	"transferencias/internal/core"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	tags   []core.Tag
	items  []ownedTransaction
}

type ownedTransaction struct {
	userID int64
	tx     core.Transaction
}

var _ api.Backend = (*Store)(nil)

func New(tags []core.Tag) *Store {
	return &Store{nextID: 1, tags: tags}
}

// NewFromFiles seeds the store from base/seed_tags.json when present,
// falling back to a small default catalog.
func NewFromFiles(base string) *Store {
	tags := readTags(filepath.Join(base, "seed_tags.json"))
	if len(tags) == 0 {
		tags = []core.Tag{
			{ID: 1, Name: "casa"},
			{ID: 2, Name: "alimentação"},
			{ID: 3, Name: "lazer"},
		}
	}
	return New(tags)
}

func (s *Store) ListTransactions(_ context.Context, _ string, userID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, item := range s.items {
		if item.userID == userID {
			out = append(out, item.tx)
		}
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, _ string, userID int64, d core.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := core.Transaction{
		ID:          s.nextID,
		Description: strings.TrimSpace(d.Description),
		Amount:      strings.TrimSpace(d.Amount),
		Kind:        d.Kind,
		Date:        d.Date,
		Tags:        s.resolveTags(d.TagIDs),
	}
	s.nextID++
	s.items = append(s.items, ownedTransaction{userID: userID, tx: tx})
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, _ string, id int64, d core.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].tx.ID == id {
			s.items[i].tx.Description = strings.TrimSpace(d.Description)
			s.items[i].tx.Amount = strings.TrimSpace(d.Amount)
			s.items[i].tx.Kind = d.Kind
			s.items[i].tx.Date = d.Date
			s.items[i].tx.Tags = s.resolveTags(d.TagIDs)
			return nil
		}
	}
	return api.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, _ string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].tx.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return api.ErrNotFound
}

func (s *Store) ListTags(_ context.Context) ([]core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Tag(nil), s.tags...), nil
}

func (s *Store) Register(_ context.Context, name, email, password string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return api.ErrRejected
	}
	return nil
}

// Login accepts any non-empty credentials and hands out a fixed local user.
func (s *Store) Login(_ context.Context, email, password string) (api.Credentials, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return api.Credentials{}, api.ErrUnauthorized
	}
	return api.Credentials{
		Token: "mem-token",
		User:  core.User{ID: 1, Name: "Dev", Email: email},
	}, nil
}

// resolveTags maps selected ids to catalog tags; unknown ids are dropped.
// Callers hold s.mu.
func (s *Store) resolveTags(ids []int64) []core.Tag {
	var out []core.Tag
	for _, id := range ids {
		for _, tag := range s.tags {
			if tag.ID == id {
				out = append(out, tag)
				break
			}
		}
	}
	return out
}

func readTags(path string) []core.Tag {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var seed []struct {
		ID   int64  `json:"id"`
		Nome string `json:"nome"`
	}
	if err := json.Unmarshal(raw, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "ignoring malformed tag seed %s: %v\n", path, err)
		return nil
	}
	tags := make([]core.Tag, 0, len(seed))
	for _, t := range seed {
		tags = append(tags, core.Tag{ID: t.ID, Name: t.Nome})
	}
	return tags
}
