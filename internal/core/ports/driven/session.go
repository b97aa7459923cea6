package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// SessionStore persists conversations.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *domain.Session) error

	// Get retrieves a session. Fails with domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// AppendMessage adds a message and bumps the session's UpdatedAt.
	AppendMessage(ctx context.Context, sessionID string, msg domain.Message) error

	// History returns the last limit messages in chronological order.
	// A limit of zero or less returns everything.
	History(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// Delete removes a session and its messages.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes sessions idle since before cutoff and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}
