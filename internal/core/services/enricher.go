package services

import (
	"strings"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// shortTurnTokens is the longest message still treated as a follow-up.
const shortTurnTokens = 5

// EnrichQuery folds the previous user turn into a short follow-up message,
// so "e per capelli ricci?" is searched with the question it follows up on.
// history is chronological and must not include message itself.
func EnrichQuery(message string, history []domain.Message) string {
	message = strings.TrimSpace(message)
	if len(strings.Fields(message)) > shortTurnTokens {
		return message
	}

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != domain.RoleUser {
			continue
		}
		prev := strings.TrimSpace(history[i].Content)
		if prev == "" || prev == message {
			continue
		}
		return prev + " " + message
	}
	return message
}
