package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"transferencias/internal/core"
	"transferencias/internal/session"
)

func newTestStore(t *testing.T) *SQLiteSessionStore {
	t.Helper()
	store, err := NewSQLiteSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := session.Session{
		ID:        "sid-1",
		Token:     "tok-1",
		User:      core.User{ID: 42, Name: "Ana", Email: "ana@example.com"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Token != "tok-1" || got.User.ID != 42 || got.User.Email != "ana@example.com" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("created_at mismatch: %v != %v", got.CreatedAt, sess.CreatedAt)
	}

	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "sid-1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "sid-1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := session.Session{ID: "sid", Token: "old", User: core.User{ID: 1}, CreatedAt: time.Now()}
	_ = store.Save(ctx, sess)
	sess.Token = "new"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ := store.Get(ctx, "sid")
	if got.Token != "new" {
		t.Fatalf("expected overwritten token, got %q", got.Token)
	}
}

func TestSessionsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")
	ctx := context.Background()

	store, err := NewSQLiteSessionStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_ = store.Save(ctx, session.Session{ID: "sid", Token: "tok", User: core.User{ID: 7}, CreatedAt: time.Now()})
	_ = store.Close()

	reopened, err := NewSQLiteSessionStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(ctx, "sid")
	if err != nil || got.User.ID != 7 {
		t.Fatalf("session lost across reopen: %v %+v", err, got)
	}
}
