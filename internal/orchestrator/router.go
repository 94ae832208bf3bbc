// Package orchestrator implements the built-in meta-agent. It serves the same
// metadata/data/ask contract as any other agent and forwards each ask to the
// sub-agent named by the request's model_id.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/metrics"
)

// Directory resolves sub-agent aliases.
type Directory interface {
	Aliases() []string
	BaseURL(alias string) (string, error)
	List(ctx context.Context) []domain.AgentDescriptor
}

// Asker calls a sub-agent's ask endpoint.
type Asker interface {
	Ask(ctx context.Context, baseURL string, req *domain.AskRequest) (*domain.AskResponse, error)
}

// Degradation reasons, used as the metric label.
const (
	ReasonUnreachable = "unreachable"
	ReasonQuota       = "quota"
	ReasonMalformed   = "malformed"
	ReasonAgentError  = "agent_error"
)

// Degraded describes why no genuine answer was produced.
type Degraded struct {
	Alias  string
	Reason string
	Err    error
}

// Result is either a sub-agent's answer or a degraded fallback. Exactly one of
// Answer and Degraded is set.
type Result struct {
	Answer   *domain.AskResponse
	Degraded *Degraded
	Elapsed  time.Duration
}

// IsDegraded reports whether the result came from the fallback branch.
func (r Result) IsDegraded() bool {
	return r.Degraded != nil
}

// Response renders the result on the wire. A degraded result becomes a success
// response carrying meta.degraded and model "fallback".
func (r Result) Response() *domain.AskResponse {
	if !r.IsDegraded() {
		return r.Answer
	}
	content := fmt.Sprintf("The **%s** agent is unavailable right now, so no answer was generated. Please try again later.", r.Degraded.Alias)
	return domain.NewAskSuccess(content, domain.AskMeta{
		Model:          FallbackModel,
		ResponseTimeMs: r.Elapsed.Milliseconds(),
		Degraded:       true,
	})
}

// FallbackModel is reported as meta.model on degraded answers.
const FallbackModel = "fallback"

// Options configure a Router.
type Options struct {
	// SelfAlias is the orchestrator's own alias; routing to it is refused.
	SelfAlias string
	Timeout   time.Duration
	Metrics   *metrics.Metrics
}

// Router forwards asks to sub-agents.
type Router struct {
	directory Directory
	client    Asker
	opts      Options
}

// NewRouter creates a router.
func NewRouter(directory Directory, client Asker, opts Options) *Router {
	return &Router{directory: directory, client: client, opts: opts}
}

// ParseRoute splits a routing model_id of the form "alias" or "alias/model". The
// returned model is what gets forwarded; without a slash it is the alias itself.
func ParseRoute(modelID string) (alias, model string) {
	alias, model, found := strings.Cut(modelID, "/")
	if !found || model == "" {
		return alias, modelID
	}
	return alias, model
}

// Route validates req, picks the sub-agent and forwards the request. The error
// return is reserved for requests that cannot be routed at all; every failure of
// the sub-agent itself yields a degraded Result.
func (r *Router) Route(ctx context.Context, req *domain.AskRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	alias, model := ParseRoute(req.ModelID)
	if alias == "" {
		return Result{}, domain.NewValidationError("model_id must name an agent alias")
	}
	if r.opts.SelfAlias != "" && alias == r.opts.SelfAlias {
		return Result{}, domain.NewValidationError("cannot route to the orchestrator itself")
	}
	baseURL, err := r.directory.BaseURL(alias)
	if err != nil {
		return Result{}, domain.NewValidationError("unknown agent alias %q", alias)
	}

	forwarded := *req
	forwarded.ModelID = model

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := r.client.Ask(ctx, baseURL, &forwarded)
	elapsed := time.Since(start)
	if err != nil {
		return r.degrade(alias, reasonFor(err), err, elapsed), nil
	}
	if !resp.Succeeded() {
		return r.degrade(alias, ReasonAgentError, fmt.Errorf("agent error: %s", resp.ErrorMessage), elapsed), nil
	}
	if resp.Meta == nil {
		resp.Meta = &domain.AskMeta{}
	}
	if resp.Meta.ResponseTimeMs == 0 {
		resp.Meta.ResponseTimeMs = elapsed.Milliseconds()
	}
	return Result{Answer: resp, Elapsed: elapsed}, nil
}

func (r *Router) degrade(alias, reason string, err error, elapsed time.Duration) Result {
	log.Printf("WARN: orchestrator fallback for agent %s (%s): %v", alias, reason, err)
	r.opts.Metrics.ObserveDegraded(alias, reason)
	return Result{
		Degraded: &Degraded{Alias: alias, Reason: reason, Err: err},
		Elapsed:  elapsed,
	}
}

func (r *Router) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

func reasonFor(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrKindQuota:
		return ReasonQuota
	case domain.ErrKindUpstreamLogic:
		return ReasonMalformed
	}
	return ReasonUnreachable
}
