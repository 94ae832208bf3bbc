package helpers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedSession persists a session owned by userID with the given messages, in order.
func SeedSession(t *testing.T, s store.Store, userID string, contents ...string) *domain.Session {
	t.Helper()
	ctx := context.Background()

	session := &domain.Session{SessionID: uuid.NewString(), UserID: userID, AssistantAlias: "docs"}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for i, content := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if err := s.CreateMessage(ctx, &domain.Message{SessionID: session.SessionID, Role: role, Content: content}); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}
	return session
}
