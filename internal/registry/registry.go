// Package registry resolves agent aliases to base URLs and caches each agent's
// metadata and health. The alias set is fixed at construction; only the cached
// metadata changes at runtime.
package registry

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/metrics"
)

// AgentAPI is the subset of the agent client the registry needs.
type AgentAPI interface {
	Metadata(ctx context.Context, baseURL string) (*domain.AgentMetadata, error)
	Data(ctx context.Context, baseURL, dataType string) (*domain.DataResponse, error)
}

// Options tune metadata fetching.
type Options struct {
	FetchTimeout time.Duration
	TTL          time.Duration
	Metrics      *metrics.Metrics
}

type entry struct {
	metadata  *domain.AgentMetadata
	health    domain.AgentHealth
	lastError string
	checkedAt time.Time
}

// Registry is safe for concurrent use.
type Registry struct {
	agents  map[string]string
	client  AgentAPI
	opts    Options
	now     func() time.Time
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]entry
}

// New builds a registry from an alias -> base URL map. The map is copied.
func New(agents map[string]string, client AgentAPI, opts Options) *Registry {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	copied := make(map[string]string, len(agents))
	for alias, baseURL := range agents {
		copied[alias] = baseURL
	}
	return &Registry{
		agents:  copied,
		client:  client,
		opts:    opts,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Aliases returns the registered aliases in sorted order.
func (r *Registry) Aliases() []string {
	aliases := make([]string, 0, len(r.agents))
	for alias := range r.agents {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// BaseURL resolves an alias.
func (r *Registry) BaseURL(alias string) (string, error) {
	baseURL, ok := r.agents[alias]
	if !ok {
		return "", domain.NewNotFoundError("agent %q is not registered", alias)
	}
	return baseURL, nil
}

// Describe returns the descriptor for alias, fetching metadata on first reference
// or when the cached copy is older than the TTL. A failed fetch marks the agent
// unhealthy; it is not returned as an error.
func (r *Registry) Describe(ctx context.Context, alias string) (domain.AgentDescriptor, error) {
	baseURL, err := r.BaseURL(alias)
	if err != nil {
		return domain.AgentDescriptor{}, err
	}
	if e, ok := r.cached(alias); ok && r.fresh(e) {
		return r.descriptor(alias, baseURL, e), nil
	}
	e := r.fetch(ctx, alias, baseURL)
	return r.descriptor(alias, baseURL, e), nil
}

// List describes every registered agent, fetching stale entries in parallel.
func (r *Registry) List(ctx context.Context) []domain.AgentDescriptor {
	aliases := r.Aliases()
	out := make([]domain.AgentDescriptor, len(aliases))

	g, gctx := errgroup.WithContext(ctx)
	for i, alias := range aliases {
		g.Go(func() error {
			d, err := r.Describe(gctx, alias)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	// Describe only fails for unknown aliases, which cannot happen here.
	_ = g.Wait()
	return out
}

// Refresh refetches metadata for every agent regardless of cache age.
func (r *Registry) Refresh(ctx context.Context) []domain.AgentDescriptor {
	aliases := r.Aliases()
	out := make([]domain.AgentDescriptor, len(aliases))

	var g errgroup.Group
	for i, alias := range aliases {
		g.Go(func() error {
			baseURL := r.agents[alias]
			out[i] = r.descriptor(alias, baseURL, r.fetch(ctx, alias, baseURL))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Health returns the last known health of alias without fetching.
func (r *Registry) Health(alias string) domain.AgentHealth {
	if e, ok := r.cached(alias); ok {
		return e.health
	}
	return domain.AgentHealthUnknown
}

// Data proxies GET {base}/data for alias. An empty dataType defaults to the
// agent's first declared provided data type.
func (r *Registry) Data(ctx context.Context, alias, dataType string) (*domain.DataResponse, error) {
	d, err := r.Describe(ctx, alias)
	if err != nil {
		return nil, err
	}
	if dataType == "" && d.Metadata != nil && len(d.Metadata.ProvidedDataTypes) > 0 {
		dataType = d.Metadata.ProvidedDataTypes[0]
	}
	return r.client.Data(ctx, d.BaseURL, dataType)
}

func (r *Registry) cached(alias string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[alias]
	return e, ok
}

func (r *Registry) fresh(e entry) bool {
	if r.opts.TTL <= 0 {
		return true
	}
	return r.now().Sub(e.checkedAt) < r.opts.TTL
}

// fetch deduplicates concurrent fetches for the same alias. The fetch runs on a
// detached context so one caller giving up does not fail the others.
func (r *Registry) fetch(ctx context.Context, alias, baseURL string) entry {
	v, _, _ := r.group.Do(alias, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FetchTimeout)
		defer cancel()

		e := entry{checkedAt: r.now()}
		meta, err := r.client.Metadata(fetchCtx, baseURL)
		if err != nil {
			log.Printf("WARN: agent %s metadata fetch failed: %v", alias, err)
			e.health = domain.AgentHealthUnhealthy
			e.lastError = err.Error()
			// Keep serving the last good metadata so the UI can still render the agent.
			if prev, ok := r.cached(alias); ok {
				e.metadata = prev.metadata
			}
		} else {
			e.health = domain.AgentHealthHealthy
			e.metadata = meta
		}
		r.opts.Metrics.SetAgentHealth(alias, e.health == domain.AgentHealthHealthy)

		r.mu.Lock()
		r.entries[alias] = e
		r.mu.Unlock()
		return e, nil
	})
	return v.(entry)
}

func (r *Registry) descriptor(alias, baseURL string, e entry) domain.AgentDescriptor {
	checkedAt := e.checkedAt
	return domain.AgentDescriptor{
		Alias:      alias,
		BaseURL:    baseURL,
		Metadata:   e.metadata,
		Health:     e.health,
		Selectable: e.health == domain.AgentHealthHealthy && e.metadata != nil,
		LastError:  e.lastError,
		CheckedAt:  &checkedAt,
	}
}
