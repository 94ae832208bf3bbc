// Package domain defines the core domain models for the chat portal.
package domain

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// MessageStatus is the outcome recorded on a message.
type MessageStatus string

const (
	MessageStatusOK    MessageStatus = "ok"
	MessageStatusError MessageStatus = "error"
	MessageStatusDone  MessageStatus = "done"
)

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusOK, MessageStatusError, MessageStatusDone:
		return true
	}
	return false
}

// ContentType describes how message content should be interpreted.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeJSON     ContentType = "json"
)

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeText, ContentTypeMarkdown, ContentTypeJSON:
		return true
	}
	return false
}

// AgentHealth is the selectability state of a registered agent.
type AgentHealth string

const (
	AgentHealthUnknown   AgentHealth = "unknown"
	AgentHealthHealthy   AgentHealth = "healthy"
	AgentHealthUnhealthy AgentHealth = "unhealthy"
)

// AskStatus is the discriminator of an ask response.
type AskStatus string

const (
	AskStatusSuccess AskStatus = "success"
	AskStatusError   AskStatus = "error"
)

// NotificationType identifies an observational event emitted after a send.
type NotificationType string

const (
	NotificationQuotaChanged    NotificationType = "quota_changed"
	NotificationMessageAppended NotificationType = "message_appended"
)
