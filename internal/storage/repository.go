// Package storage persists sessions in a local SQLite database so that
// logins survive a process restart.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"transferencias/internal/core"
	"transferencias/internal/session"

	_ "modernc.org/sqlite"
)

type SQLiteSessionStore struct {
	db *sql.DB
}

var _ session.Store = (*SQLiteSessionStore)(nil)

func NewSQLiteSessionStore(dbPath string) (*SQLiteSessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteSessionStore{db: db}, nil
}

func (s *SQLiteSessionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteSessionStore) Save(ctx context.Context, sess session.Session) error {
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, token, user_json, created_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Token, string(userJSON), sess.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, token, user_json, created_at FROM sessions WHERE id = ?`, id)

	var (
		sess      session.Session
		userJSON  string
		createdAt string
	)
	if err := row.Scan(&sess.ID, &sess.Token, &userJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("query session: %w", err)
	}

	var user core.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return session.Session{}, fmt.Errorf("decode user record: %w", err)
	}
	sess.User = user
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		sess.CreatedAt = t
	}
	return sess, nil
}

func (s *SQLiteSessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrNotFound
	}
	return nil
}
