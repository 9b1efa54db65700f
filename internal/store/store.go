// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/gotd/td/session"
)

// DefaultSessionName is the row the relay and the login command share.
const DefaultSessionName = "default"

// ErrNotFound is returned when a named session does not exist.
var ErrNotFound = errors.New("session not found")

// Repository persists Telegram session credentials.
type Repository interface {
	// LoadSession returns the raw session data stored under name.
	LoadSession(ctx context.Context, name string) ([]byte, error)

	// StoreSession creates or replaces the session stored under name.
	StoreSession(ctx context.Context, name string, data []byte) error

	// DeleteSession removes the session stored under name.
	DeleteSession(ctx context.Context, name string) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// SessionStorage adapts one named session of a Repository to gotd's
// session.Storage.
type SessionStorage struct {
	repo Repository
	name string
}

// NewSessionStorage returns the storage for a named session.
func NewSessionStorage(repo Repository, name string) *SessionStorage {
	return &SessionStorage{repo: repo, name: name}
}

// LoadSession implements session.Storage.
func (s *SessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	data, err := s.repo.LoadSession(ctx, s.name)
	if errors.Is(err, ErrNotFound) {
		return nil, session.ErrNotFound
	}
	return data, err
}

// StoreSession implements session.Storage.
func (s *SessionStorage) StoreSession(ctx context.Context, data []byte) error {
	return s.repo.StoreSession(ctx, s.name, data)
}

var _ session.Storage = (*SessionStorage)(nil)
