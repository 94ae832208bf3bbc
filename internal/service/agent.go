package service

import (
	"context"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/identity"
)

// ListAgents describes every registered agent.
func (s *Service) ListAgents(ctx context.Context) []domain.AgentDescriptor {
	if s.registry == nil {
		return []domain.AgentDescriptor{}
	}
	return s.registry.List(ctx)
}

// DescribeAgent returns one agent's descriptor.
func (s *Service) DescribeAgent(ctx context.Context, alias string) (domain.AgentDescriptor, error) {
	if s.registry == nil {
		return domain.AgentDescriptor{}, domain.NewNotFoundError("agent %q is not registered", alias)
	}
	return s.registry.Describe(ctx, alias)
}

// AgentData proxies an agent's data endpoint.
func (s *Service) AgentData(ctx context.Context, alias, dataType string) (*domain.DataResponse, error) {
	if s.registry == nil {
		return nil, domain.NewNotFoundError("agent %q is not registered", alias)
	}
	return s.registry.Data(ctx, alias, dataType)
}

// RefreshAgents refetches metadata for every agent.
func (s *Service) RefreshAgents(ctx context.Context) []domain.AgentDescriptor {
	if s.registry == nil {
		return []domain.AgentDescriptor{}
	}
	return s.registry.Refresh(ctx)
}

// ResolveIdentity binds a browser context to a session id and, when a user is
// signed in, verifies they own it.
func (s *Service) ResolveIdentity(ctx context.Context, req domain.ResolveIdentityRequest) (identity.Resolution, error) {
	if s.identity == nil {
		return identity.Resolution{}, domain.NewInternalError("identity manager not configured", nil)
	}
	if req.ClientID == "" {
		return identity.Resolution{}, domain.NewValidationError("client_id is required")
	}
	if req.Alias == "" {
		return identity.Resolution{}, domain.NewValidationError("alias is required")
	}

	key := identity.Key{ClientID: req.ClientID, Alias: req.Alias}
	res, err := s.identity.Resolve(ctx, key, req.URLSessionID, req.StoredSessionID)
	if err != nil {
		return identity.Resolution{}, err
	}
	if req.UserID == "" {
		return res, nil
	}

	verified, err := s.identity.VerifyOwnership(ctx, key, res.SessionID, req.UserID)
	if err != nil {
		return identity.Resolution{}, err
	}
	verified.Rebind = verified.Rebind || res.Rebind
	return verified, nil
}
