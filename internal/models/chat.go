package models

import "time"

// Chat message roles.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one side of a chat exchange, persisted per user.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationRequest is the assembled input for one text-generation call:
// system instructions, bounded prior history (oldest-first), and the new
// user message appended last.
type GenerationRequest struct {
	System  string
	History []*ChatMessage
	Message string
}
