package driving

import (
	"context"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// ChatService answers shopper messages grounded on retrieved products.
type ChatService interface {
	// StartSession opens a new conversation and returns its ID.
	StartSession(ctx context.Context) (string, error)

	// Reply answers message within the session. An empty sessionID starts a new one.
	Reply(ctx context.Context, sessionID, message string) (*domain.ChatReply, error)

	// EndSession discards a conversation.
	EndSession(ctx context.Context, sessionID string) error
}
