package services

import (
	"strings"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// DefaultConversationTokens is the token budget for replayed history.
const DefaultConversationTokens = 150_000

// charsPerToken is the fallback estimate when no TokenCounter is configured.
const charsPerToken = 4

// ConversationManager shapes stored history into a valid model transcript:
// only user/assistant turns with content, starting with the user, strictly
// alternating, and within a token budget that keeps the newest turns.
type ConversationManager struct {
	maxTokens int
	counter   driven.TokenCounter
}

// NewConversationManager creates a manager. A zero maxTokens selects
// DefaultConversationTokens; a nil counter estimates four characters per token.
func NewConversationManager(maxTokens int, counter driven.TokenCounter) *ConversationManager {
	if maxTokens <= 0 {
		maxTokens = DefaultConversationTokens
	}
	return &ConversationManager{maxTokens: maxTokens, counter: counter}
}

// Format validates history, appends the new user message and returns the
// transcript to send to the model.
func (m *ConversationManager) Format(history []domain.Message, message string) []driven.ChatMessage {
	messages := make([]driven.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		if !msg.Role.IsValid() || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		messages = append(messages, driven.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	if strings.TrimSpace(message) != "" {
		messages = append(messages, driven.ChatMessage{Role: string(domain.RoleUser), Content: message})
	}

	messages = alternateRoles(messages)
	return m.truncate(messages)
}

// alternateRoles drops leading assistant turns and keeps only the first of
// consecutive same-role turns.
func alternateRoles(messages []driven.ChatMessage) []driven.ChatMessage {
	for len(messages) > 0 && messages[0].Role != string(domain.RoleUser) {
		messages = messages[1:]
	}

	cleaned := make([]driven.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if len(cleaned) > 0 && cleaned[len(cleaned)-1].Role == msg.Role {
			continue
		}
		cleaned = append(cleaned, msg)
	}
	return cleaned
}

// truncate keeps the newest messages that fit the budget.
func (m *ConversationManager) truncate(messages []driven.ChatMessage) []driven.ChatMessage {
	total := 0
	for _, msg := range messages {
		total += m.count(msg.Content)
	}
	if total <= m.maxTokens {
		return messages
	}

	logger.Info("Truncating conversation (%d > %d tokens)", total, m.maxTokens)

	used := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		n := m.count(messages[i].Content)
		if used+n > m.maxTokens {
			break
		}
		used += n
		start = i
	}

	kept := alternateRoles(messages[start:])
	logger.Debug("Truncated to %d messages (~%d tokens)", len(kept), used)
	return kept
}

func (m *ConversationManager) count(text string) int {
	if m.counter != nil {
		return m.counter.Count(text)
	}
	return len(text) / charsPerToken
}
