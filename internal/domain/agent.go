package domain

import "time"

// AgentMetadata is the self-description served by an agent's metadata endpoint.
type AgentMetadata struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Capabilities      []string `json:"capabilities"`
	SupportedModels   []string `json:"supported_models"`
	SamplePrompts     []string `json:"sample_prompts"`
	ProvidedDataTypes []string `json:"provided_data_types"`
}

// AgentDescriptor is a registry entry. Selectable is set when the agent is
// healthy and served valid metadata.
type AgentDescriptor struct {
	Alias      string         `json:"alias"`
	BaseURL    string         `json:"base_url"`
	Metadata   *AgentMetadata `json:"metadata,omitempty"`
	Health     AgentHealth    `json:"health"`
	Selectable bool           `json:"selectable"`
	LastError  string         `json:"last_error,omitempty"`
	CheckedAt  *time.Time     `json:"checked_at,omitempty"`
}
