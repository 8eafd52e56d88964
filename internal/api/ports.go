// Package api defines the ports the UI consumes to talk to the remote
// transferências backend. Adapters live in subpackages: rest (the real API)
// and memory (a local stub for development and tests).
package api

import (
	"context"
	"errors"

	"transferencias/internal/core"
)

// Credentials is what a successful login yields: the bearer token and the
// user record backing subsequent scoped calls.
type Credentials struct {
	Token string
	User  core.User
}

// Ports for outbound adapters.
type (
	TransactionLister interface {
		// ListTransactions returns the full transaction set for a user.
		// No pagination: the caller always holds the whole list.
		ListTransactions(ctx context.Context, token string, userID int64) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, token string, userID int64, d core.Draft) error
		UpdateTransaction(ctx context.Context, token string, id int64, d core.Draft) error
		DeleteTransaction(ctx context.Context, token string, id int64) error
	}

	// TagLister fetches the global tag catalog. Unauthenticated.
	TagLister interface {
		ListTags(ctx context.Context) ([]core.Tag, error)
	}

	UserRegistrar interface {
		// Register creates an account. Only a 201 counts as success.
		Register(ctx context.Context, name, email, password string) error
	}

	Authenticator interface {
		Login(ctx context.Context, email, password string) (Credentials, error)
	}
)

// Backend bundles every port for wiring.
type Backend interface {
	TransactionLister
	TransactionWriter
	TagLister
	UserRegistrar
	Authenticator
}

var (
	// ErrUnauthorized maps 401/403 responses: the token was rejected.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrNotFound maps 404 responses.
	ErrNotFound = errors.New("api: not found")
	// ErrRejected is any other non-success response.
	ErrRejected = errors.New("api: request rejected")
)
