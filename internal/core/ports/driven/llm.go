package driven

import "context"

// LLMService writes the assistant's replies. It is optional: without one
// the chat surfaces are disabled while search keeps working.
type LLMService interface {
	// Chat returns the next assistant turn. system holds the shop
	// instructions with the retrieved products already inlined; messages
	// is the transcript, oldest first, ending with the user's turn.
	Chat(ctx context.Context, system string, messages []ChatMessage, opts ChatOptions) (string, error)

	ModelName() string

	// Ping checks credentials and model availability without generating.
	Ping(ctx context.Context) error

	Close() error
}

// ChatMessage is one transcript turn; Role is "user" or "assistant".
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions bound one generation. Zero values mean provider defaults.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}
