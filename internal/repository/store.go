// Package store defines the persistence interface and its SQLite implementation.
package store

import (
	"context"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	EnsureSession(ctx context.Context, session *domain.Session) (*domain.Session, bool, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	UpdateSessionTitle(ctx context.Context, sessionID, title string) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	AppendExchange(ctx context.Context, userMsg, assistantMsg *domain.Message) error
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]domain.Message, error)
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
