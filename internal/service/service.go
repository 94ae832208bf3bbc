package service

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/portal/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/portal/internal/config"
	"github.com/xiaot623/gogo/portal/internal/identity"
	"github.com/xiaot623/gogo/portal/internal/metrics"
	"github.com/xiaot623/gogo/portal/internal/notify"
	"github.com/xiaot623/gogo/portal/internal/registry"
	"github.com/xiaot623/gogo/portal/internal/repository"
)

type Service struct {
	store       store.Store
	agentClient *agentclient.Client
	registry    *registry.Registry
	identity    *identity.Manager
	notifier    notify.Publisher
	metrics     *metrics.Metrics
	config      *config.Config
}

func New(store store.Store, agentClient *agentclient.Client, reg *registry.Registry, identityManager *identity.Manager, notifier notify.Publisher, m *metrics.Metrics, cfg *config.Config) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Service{
		store:       store,
		agentClient: agentClient,
		registry:    reg,
		identity:    identityManager,
		notifier:    notifier,
		metrics:     m,
		config:      cfg,
	}
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// withTimeout bounds ctx by d; a non-positive d leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
