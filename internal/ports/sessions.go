package ports

import (
	"context"

	"dragonsea/internal/domain"
)

// SessionStore persists game snapshots keyed by session key.
type SessionStore interface {
	// ListSessions returns every stored snapshot.
	ListSessions(ctx context.Context) (map[string]domain.Snapshot, error)

	// SaveSession writes the latest snapshot of a session, replacing any earlier one.
	SaveSession(ctx context.Context, key string, snapshot domain.Snapshot) error

	// DeleteSession removes a session's snapshot.
	DeleteSession(ctx context.Context, key string) error
}
