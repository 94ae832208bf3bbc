// Package policy decides which browser origins may call the built-in agent.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query         rego.PreparedEvalQuery
	primaryDomain string
	whitelist     []string
}

// NewEngine prepares policyContent, which must define data.agent_access.allow.
func NewEngine(ctx context.Context, policyContent, primaryDomain string, whitelist []string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.agent_access.allow"),
		rego.Module("agent_access.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	normalized := make([]string, 0, len(whitelist))
	for _, o := range whitelist {
		if o = normalizeOrigin(o); o != "" {
			normalized = append(normalized, o)
		}
	}
	return &Engine{
		query:         query,
		primaryDomain: normalizeOrigin(primaryDomain),
		whitelist:     normalized,
	}, nil
}

// Allowed reports whether origin may call the agent.
func (e *Engine) Allowed(ctx context.Context, origin string) (bool, error) {
	input := map[string]interface{}{
		"origin":         normalizeOrigin(origin),
		"primary_domain": e.primaryDomain,
		"whitelist":      e.whitelist,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	return allowed, nil
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}

// DefaultPolicy allows the primary domain and every whitelisted origin.
const DefaultPolicy = `
package agent_access

default allow = false

allow {
	input.origin != ""
	input.origin == input.primary_domain
}

allow {
	input.origin != ""
	input.whitelist[_] == input.origin
}
`
