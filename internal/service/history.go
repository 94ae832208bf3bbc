package service

import (
	"context"
	"log"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

// RecentTurns returns up to limit ok user/assistant messages, oldest first. A
// user/assistant pair counts as two against limit. It never
// fails: on error it logs and returns an empty history so the send can proceed.
func (s *Service) RecentTurns(ctx context.Context, sessionID string, limit int) []domain.Turn {
	if limit <= 0 {
		return []domain.Turn{}
	}
	ctx, cancel := withTimeout(ctx, s.config.HistoryTimeout)
	defer cancel()

	turns, err := s.store.RecentTurns(ctx, sessionID, limit)
	if err != nil {
		log.Printf("WARN: history unavailable for session %s, sending without context: %v", sessionID, err)
		return []domain.Turn{}
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns
}
