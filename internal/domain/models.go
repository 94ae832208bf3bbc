package domain

import (
	"encoding/json"
	"regexp"
	"time"
)

var sessionIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// IsValidID reports whether id is a UUID v4 in canonical form.
func IsValidID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// Session represents a persisted conversation.
type Session struct {
	SessionID      string    `json:"id"`
	UserID         string    `json:"user_id"`
	ProjectID      string    `json:"project_id,omitempty"`
	AssistantAlias string    `json:"assistant_alias,omitempty"`
	Title          string    `json:"title,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Message represents a single message in a session. Messages are append-only.
type Message struct {
	MessageID        string          `json:"id"`
	SessionID        string          `json:"session_id"`
	UserID           string          `json:"user_id,omitempty"`
	AssistantAlias   string          `json:"assistant_alias,omitempty"`
	Role             Role            `json:"role"`
	Status           MessageStatus   `json:"status"`
	ContentType      ContentType     `json:"content_type"`
	Content          string          `json:"content"`
	ContentJSON      json.RawMessage `json:"content_json,omitempty"`
	ModelID          string          `json:"model_id,omitempty"`
	PromptTokens     *int            `json:"prompt_tokens,omitempty"`
	CompletionTokens *int            `json:"completion_tokens,omitempty"`
	TotalTokens      *int            `json:"total_tokens,omitempty"`
	ResponseTimeMs   *int64          `json:"response_time_ms,omitempty"`
	Refs             json.RawMessage `json:"refs,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Turn is one entry of conversation history sent to an agent.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Notification is an observational event for external consumers.
type Notification struct {
	Type      NotificationType `json:"type"`
	SessionID string           `json:"session_id"`
	Ts        int64            `json:"ts"`
}
