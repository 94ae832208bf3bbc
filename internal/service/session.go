package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

// CreateSession creates a session, or returns the existing one when the id is
// already taken. The bool reports whether a row was inserted.
func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, bool, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if !domain.IsValidID(sessionID) {
		return nil, false, domain.NewValidationError("malformed session id %q", sessionID)
	}
	userID := req.UserID
	if userID == "" {
		userID = s.config.GuestUserID
	}

	session, created, err := s.store.EnsureSession(ctx, &domain.Session{
		SessionID:      sessionID,
		UserID:         userID,
		ProjectID:      req.ProjectID,
		AssistantAlias: req.AssistantAlias,
		Title:          strings.TrimSpace(req.Title),
	})
	if err != nil {
		return nil, false, domain.NewPersistenceError("failed to create session", err)
	}
	return session, created, nil
}

// GetSession returns a session or a not-found error.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if !domain.IsValidID(sessionID) {
		return nil, domain.NewValidationError("malformed session id %q", sessionID)
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to get session", err)
	}
	if session == nil {
		return nil, domain.NewNotFoundError("session %s not found", sessionID)
	}
	return session, nil
}

// RenameSession sets a session title.
func (s *Service) RenameSession(ctx context.Context, sessionID, title string) error {
	if !domain.IsValidID(sessionID) {
		return domain.NewValidationError("malformed session id %q", sessionID)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.NewValidationError("title is required")
	}
	updated, err := s.store.UpdateSessionTitle(ctx, sessionID, title)
	if err != nil {
		return domain.NewPersistenceError("failed to rename session", err)
	}
	if !updated {
		return domain.NewNotFoundError("session %s not found", sessionID)
	}
	return nil
}

// DeleteSession removes a session and its messages.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if !domain.IsValidID(sessionID) {
		return domain.NewValidationError("malformed session id %q", sessionID)
	}
	deleted, err := s.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return domain.NewPersistenceError("failed to delete session", err)
	}
	if !deleted {
		return domain.NewNotFoundError("session %s not found", sessionID)
	}
	return nil
}

