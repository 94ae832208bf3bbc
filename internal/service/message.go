package service

import (
	"context"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

const (
	DefaultMessageLimit = 100
	MaxMessageLimit     = 200
)

// ClampPage normalizes pagination. A non-positive limit means the default.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListMessages returns a page of a session's messages, oldest first.
func (s *Service) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]domain.Message, error) {
	if !domain.IsValidID(sessionID) {
		return nil, domain.NewValidationError("malformed session id %q", sessionID)
	}
	limit, offset = ClampPage(limit, offset)
	messages, err := s.store.ListMessages(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to get messages", err)
	}
	return messages, nil
}

// AppendMessage appends a message outside the agent-dispatch path.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, req domain.AppendMessageRequest) (*domain.Message, error) {
	if !domain.IsValidID(sessionID) {
		return nil, domain.NewValidationError("malformed session id %q", sessionID)
	}
	if !req.Role.Valid() {
		return nil, domain.NewValidationError("role must be one of user, assistant, system")
	}
	if req.Content == "" && len(req.ContentJSON) == 0 {
		return nil, domain.NewValidationError("content is required")
	}
	if req.Status == "" {
		req.Status = domain.MessageStatusOK
	}
	if !req.Status.Valid() {
		return nil, domain.NewValidationError("invalid status %q", req.Status)
	}
	if req.ContentType == "" {
		req.ContentType = domain.ContentTypeText
	}
	if !req.ContentType.Valid() {
		return nil, domain.NewValidationError("invalid content_type %q", req.ContentType)
	}

	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		SessionID:        sessionID,
		UserID:           req.UserID,
		AssistantAlias:   req.AssistantAlias,
		Role:             req.Role,
		Status:           req.Status,
		ContentType:      req.ContentType,
		Content:          req.Content,
		ContentJSON:      req.ContentJSON,
		ModelID:          req.ModelID,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		TotalTokens:      req.TotalTokens,
		ResponseTimeMs:   req.ResponseTimeMs,
		Refs:             req.Refs,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, domain.NewPersistenceError("failed to append message", err)
	}

	s.notifier.Publish(domain.Notification{Type: domain.NotificationMessageAppended, SessionID: sessionID})
	return msg, nil
}
