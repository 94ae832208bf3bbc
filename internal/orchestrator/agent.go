package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

// DataTypeAgents lists the sub-agents the orchestrator can route to.
const DataTypeAgents = "agents"

// Agent is the orchestrator as seen through the agent wire contract.
type Agent struct {
	router *Router
}

// NewAgent wraps a router.
func NewAgent(router *Router) *Agent {
	return &Agent{router: router}
}

// Metadata describes the orchestrator. Its supported models are the aliases it
// can route to.
func (a *Agent) Metadata() domain.AgentMetadata {
	aliases := a.routable()
	samples := make([]string, 0, 1)
	if len(aliases) > 0 {
		samples = append(samples, "Use model_id \""+aliases[0]+"\" to ask the "+aliases[0]+" agent")
	}
	return domain.AgentMetadata{
		Name:              "Orchestrator",
		Description:       "Routes each prompt to the agent named by model_id (alias or alias/model).",
		Capabilities:      []string{"routing"},
		SupportedModels:   aliases,
		SamplePrompts:     samples,
		ProvidedDataTypes: []string{DataTypeAgents},
	}
}

// Data serves the agents data type: one item per routable sub-agent with its
// current health.
func (a *Agent) Data(ctx context.Context, dataType string) (*domain.DataResponse, error) {
	if dataType == "" {
		dataType = DataTypeAgents
	}
	if dataType != DataTypeAgents {
		return nil, domain.NewValidationError("unsupported data type %q", dataType)
	}

	items := make([]json.RawMessage, 0)
	for _, d := range a.router.directory.List(ctx) {
		if d.Alias == a.router.opts.SelfAlias {
			continue
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, domain.NewInternalError("failed to encode agent", err)
		}
		items = append(items, raw)
	}
	return &domain.DataResponse{Status: domain.AskStatusSuccess, DataType: dataType, Items: items}, nil
}

// Ask answers an ask request. Requests that cannot be routed get the error
// variant; everything else gets a success variant, degraded or not.
func (a *Agent) Ask(ctx context.Context, req *domain.AskRequest) (*domain.AskResponse, bool) {
	result, err := a.router.Route(ctx, req)
	if err != nil {
		return domain.NewAskError(domain.AsError(err).Message), false
	}
	return result.Response(), result.IsDegraded()
}

func (a *Agent) routable() []string {
	all := a.router.directory.Aliases()
	out := make([]string, 0, len(all))
	for _, alias := range all {
		if alias != a.router.opts.SelfAlias {
			out = append(out, alias)
		}
	}
	return out
}
