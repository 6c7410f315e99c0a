package sessions

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Repo.Get when no session is stored under the id.
var ErrNotFound = errors.New("session not found")

// Repo stores operator sessions. Implementations must be safe for concurrent use.
type Repo interface {
	// Upsert creates or replaces a session
	Upsert(ctx context.Context, session *Session) error

	// Get retrieves a session by ID, or ErrNotFound
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Delete removes a session; deleting an unknown id is not an error
	Delete(ctx context.Context, sessionID string) error
}
