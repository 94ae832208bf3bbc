package service

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/repository"
)

type sendOutcome struct {
	resp *domain.AskResponse
	err  error
}

// Send dispatches a prompt to an agent and persists the exchange.
//
// Validation and upstream failures abort before any write, so a brand-new session
// id never gets a row. After a successful answer the session is created if absent
// and both messages are written in one transaction. A persistence failure is
// logged and the answer is still returned, unless the store is unreachable, in
// which case Send fails.
//
// Cancelling ctx only stops the wait: once dispatched, the agent call and the
// persistence complete in the background on their own timeouts.
func (s *Service) Send(ctx context.Context, sessionID string, req domain.SendRequest) (*domain.AskResponse, error) {
	baseURL, err := s.validateSend(sessionID, &req)
	if err != nil {
		s.metrics.ObserveSend(string(domain.KindOf(err)))
		return nil, err
	}

	done := make(chan sendOutcome, 1)
	workCtx := context.WithoutCancel(ctx)
	go func() {
		resp, err := s.dispatch(workCtx, sessionID, baseURL, req)
		outcome := "success"
		if err != nil {
			outcome = string(domain.KindOf(err))
		}
		s.metrics.ObserveSend(outcome)
		done <- sendOutcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		log.Printf("INFO: caller stopped waiting on send for session %s; completing in background", sessionID)
		return nil, ctx.Err()
	}
}

func (s *Service) validateSend(sessionID string, req *domain.SendRequest) (string, error) {
	if !domain.IsValidID(sessionID) {
		return "", domain.NewValidationError("malformed session id %q", sessionID)
	}
	if req.ModelID == "" {
		return "", domain.NewValidationError("model_id is required")
	}
	if req.Prompt == "" {
		return "", domain.NewValidationError("prompt is required")
	}
	if req.User == "" {
		return "", domain.NewValidationError("user is required")
	}

	baseURL := req.AssistantBaseURL
	if baseURL == "" && req.AssistantAlias != "" {
		if s.registry == nil {
			return "", domain.NewValidationError("assistant_alias given but no agents are registered")
		}
		resolved, err := s.registry.BaseURL(req.AssistantAlias)
		if err != nil {
			return "", domain.NewValidationError("unknown assistant_alias %q", req.AssistantAlias)
		}
		baseURL = resolved
	}
	if baseURL == "" {
		return "", domain.NewValidationError("assistant_base_url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", domain.NewValidationError("malformed assistant_base_url %q", baseURL)
	}
	return baseURL, nil
}

func (s *Service) dispatch(ctx context.Context, sessionID, baseURL string, req domain.SendRequest) (*domain.AskResponse, error) {
	sentAt := time.Now()
	history := s.RecentTurns(ctx, sessionID, s.config.HistoryMessages)

	askReq := &domain.AskRequest{
		SessionID: sessionID,
		ModelID:   req.ModelID,
		User:      req.User,
		Prompt:    req.Prompt,
		Context: domain.AskContext{
			History:   history,
			Project:   req.Context.Project,
			ExtraData: req.Context.ExtraData,
		},
	}

	agentCtx, cancel := withTimeout(ctx, s.config.AgentTimeout)
	resp, err := s.agentClient.Ask(agentCtx, baseURL, askReq)
	cancel()
	if err != nil {
		if domain.KindOf(err) == domain.ErrKindQuota {
			s.notifier.Publish(domain.Notification{Type: domain.NotificationQuotaChanged, SessionID: sessionID})
		}
		log.Printf("WARN: send to %s for session %s failed: %v", baseURL, sessionID, err)
		return nil, err
	}
	if !resp.Succeeded() {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("agent returned status %q", resp.Status)
		}
		log.Printf("WARN: agent %s rejected prompt for session %s: %s", baseURL, sessionID, msg)
		return nil, domain.NewUpstreamLogicError(msg)
	}
	if resp.Meta == nil {
		resp.Meta = &domain.AskMeta{}
	}
	if resp.Meta.ResponseTimeMs == 0 {
		resp.Meta.ResponseTimeMs = time.Since(sentAt).Milliseconds()
	}

	persistCtx, cancel := withTimeout(ctx, s.config.PersistTimeout)
	defer cancel()
	if err := s.persistExchange(persistCtx, sessionID, req, resp); err != nil {
		if store.IsConnectivityError(err) {
			s.metrics.ObservePersistFailure("connectivity")
			log.Printf("ERROR: store unreachable while saving session %s, answer lost: %v", sessionID, err)
			return nil, domain.NewPersistenceError("store unavailable", err)
		}
		s.metrics.ObservePersistFailure("write")
		log.Printf("ERROR: failed to save exchange for session %s: %v", sessionID, err)
	} else {
		s.notifier.Publish(domain.Notification{Type: domain.NotificationMessageAppended, SessionID: sessionID})
	}

	s.notifier.Publish(domain.Notification{Type: domain.NotificationQuotaChanged, SessionID: sessionID})
	return resp, nil
}

func (s *Service) persistExchange(ctx context.Context, sessionID string, req domain.SendRequest, resp *domain.AskResponse) error {
	owner := req.UserID
	if owner == "" {
		owner = s.config.GuestUserID
	}
	if _, _, err := s.store.EnsureSession(ctx, &domain.Session{
		SessionID:      sessionID,
		UserID:         owner,
		ProjectID:      req.ProjectID,
		AssistantAlias: req.AssistantAlias,
	}); err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}

	userMsg := &domain.Message{
		SessionID:      sessionID,
		UserID:         req.UserID,
		AssistantAlias: req.AssistantAlias,
		Role:           domain.RoleUser,
		Status:         domain.MessageStatusOK,
		ContentType:    domain.ContentTypeText,
		Content:        req.Prompt,
		ModelID:        req.ModelID,
	}

	meta := resp.Meta
	model := meta.Model
	if model == "" {
		model = req.ModelID
	}
	responseTime := meta.ResponseTimeMs
	assistantMsg := &domain.Message{
		SessionID:        sessionID,
		AssistantAlias:   req.AssistantAlias,
		Role:             domain.RoleAssistant,
		Status:           domain.MessageStatusOK,
		ContentType:      domain.ContentTypeMarkdown,
		Content:          resp.ContentMarkdown,
		ModelID:          model,
		PromptTokens:     positive(meta.PromptTokens),
		CompletionTokens: positive(meta.CompletionTokens),
		TotalTokens:      positive(meta.TokensUsed),
		ResponseTimeMs:   &responseTime,
	}

	return s.store.AppendExchange(ctx, userMsg, assistantMsg)
}

func positive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
