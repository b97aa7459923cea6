package domain

import "time"

// Role identifies who authored a conversation message.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one conversation turn.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a conversation between one shopper and the assistant.
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the session has been idle longer than lifetime.
func (s *Session) Expired(now time.Time, lifetime time.Duration) bool {
	if lifetime <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > lifetime
}

// ChatReply is the assistant's answer plus the products it was grounded on.
type ChatReply struct {
	SessionID string          `json:"session_id"`
	Text      string          `json:"text"`
	Products  []ProductRecord `json:"products"`
}
