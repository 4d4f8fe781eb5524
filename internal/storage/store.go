// Package storage provides abstractions for session storage.
package storage

import (
	"context"
	"errors"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/session"
)

// ErrNotFound is returned when a session ID does not exist.
var ErrNotFound = errors.New("session not found")

// Store defines the interface for session storage. This abstraction
// allows swapping backends (in-memory for tests, SQLite for the server)
// without changing the service layer.
//
// Implementations serialize writes per session and return snapshots from
// reads, which is what lets the allocation engine stay lock-free.
type Store interface {
	// CreateSession persists a new session. The session.ID must be set.
	CreateSession(ctx context.Context, s *session.Session) error

	// GetSession returns a snapshot of the session.
	GetSession(ctx context.Context, id string) (*session.Session, error)

	// ReplaceAssignment swaps in a new assignment under an optimistic
	// version check and returns the new version.
	ReplaceAssignment(ctx context.Context, id string, a models.Assignment, expectVersion int64) (int64, error)

	// AddItem appends a custom item to the session and returns its
	// stable index.
	AddItem(ctx context.Context, id string, item models.LineItem) (int, error)

	// DeleteSession removes a finished session. Completed sessions are
	// not kept around; cross-session history is out of scope.
	DeleteSession(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
