package domain

import (
	"encoding/json"
	"fmt"
)

// AskContext carries conversation context to an agent.
type AskContext struct {
	History   []Turn          `json:"history"`
	Project   json.RawMessage `json:"project,omitempty"`
	ExtraData json.RawMessage `json:"extra_data,omitempty"`
}

// AskRequest is the body of POST {base}/ask.
type AskRequest struct {
	SessionID string     `json:"session_id"`
	ModelID   string     `json:"model_id"`
	User      string     `json:"user"`
	Prompt    string     `json:"prompt"`
	Context   AskContext `json:"context"`
}

// Validate checks that every required field is present.
func (r *AskRequest) Validate() error {
	switch {
	case r.SessionID == "":
		return NewValidationError("session_id is required")
	case r.ModelID == "":
		return NewValidationError("model_id is required")
	case r.User == "":
		return NewValidationError("user is required")
	case r.Prompt == "":
		return NewValidationError("prompt is required")
	}
	return nil
}

// AskMeta is the metadata block of a successful ask response.
type AskMeta struct {
	Model            string `json:"model,omitempty"`
	ResponseTimeMs   int64  `json:"response_time_ms,omitempty"`
	TokensUsed       int    `json:"tokens_used,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	Degraded         bool   `json:"degraded,omitempty"`
}

// AskResponse is the body returned by POST {base}/ask. It is either the success
// variant (ContentMarkdown, Meta) or the error variant (ErrorMessage).
type AskResponse struct {
	Status          AskStatus `json:"status"`
	ContentMarkdown string    `json:"content_markdown,omitempty"`
	Meta            *AskMeta  `json:"meta,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// NewAskSuccess builds the success variant.
func NewAskSuccess(content string, meta AskMeta) *AskResponse {
	return &AskResponse{Status: AskStatusSuccess, ContentMarkdown: content, Meta: &meta}
}

// NewAskError builds the error variant.
func NewAskError(message string) *AskResponse {
	return &AskResponse{Status: AskStatusError, ErrorMessage: message}
}

// Succeeded reports whether this is the success variant.
func (r *AskResponse) Succeeded() bool {
	return r.Status == AskStatusSuccess
}

// DecodeAskResponse parses and validates an ask response body.
func DecodeAskResponse(data []byte) (*AskResponse, error) {
	var raw struct {
		Status          *AskStatus `json:"status"`
		ContentMarkdown *string    `json:"content_markdown"`
		Meta            *AskMeta   `json:"meta"`
		ErrorMessage    string     `json:"error_message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed ask response: %w", err)
	}
	if raw.Status == nil {
		return nil, fmt.Errorf("malformed ask response: missing status")
	}

	switch *raw.Status {
	case AskStatusSuccess:
		if raw.ContentMarkdown == nil {
			return nil, fmt.Errorf("malformed ask response: success without content_markdown")
		}
		resp := &AskResponse{Status: AskStatusSuccess, ContentMarkdown: *raw.ContentMarkdown, Meta: raw.Meta}
		if resp.Meta == nil {
			resp.Meta = &AskMeta{}
		}
		return resp, nil
	case AskStatusError:
		msg := raw.ErrorMessage
		if msg == "" {
			msg = "agent reported an error"
		}
		return NewAskError(msg), nil
	default:
		// Unknown discriminators are kept so the caller can classify them as logic errors.
		return &AskResponse{Status: *raw.Status, ErrorMessage: raw.ErrorMessage}, nil
	}
}

// DataResponse is the body returned by GET {base}/data.
type DataResponse struct {
	Status   AskStatus         `json:"status"`
	DataType string            `json:"data_type"`
	Items    []json.RawMessage `json:"items"`
}

// SendContext is the caller-supplied context for a send.
type SendContext struct {
	Project   json.RawMessage `json:"project,omitempty"`
	ExtraData json.RawMessage `json:"extra_data,omitempty"`
}

// SendRequest is the body of POST /sessions/{id}/send.
type SendRequest struct {
	AssistantBaseURL string      `json:"assistant_base_url"`
	AssistantAlias   string      `json:"assistant_alias,omitempty"`
	ModelID          string      `json:"model_id"`
	Prompt           string      `json:"prompt"`
	User             string      `json:"user"`
	UserID           string      `json:"user_id,omitempty"`
	ProjectID        string      `json:"project_id,omitempty"`
	Context          SendContext `json:"context"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	SessionID      string `json:"id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	AssistantAlias string `json:"assistant_alias,omitempty"`
	Title          string `json:"title,omitempty"`
}

// AppendMessageRequest is the body of POST /sessions/{id}/messages.
type AppendMessageRequest struct {
	Role             Role            `json:"role"`
	Content          string          `json:"content"`
	ModelID          string          `json:"model_id,omitempty"`
	Status           MessageStatus   `json:"status,omitempty"`
	ContentType      ContentType     `json:"content_type,omitempty"`
	ContentJSON      json.RawMessage `json:"content_json,omitempty"`
	UserID           string          `json:"user_id,omitempty"`
	AssistantAlias   string          `json:"assistant_alias,omitempty"`
	PromptTokens     *int            `json:"prompt_tokens,omitempty"`
	CompletionTokens *int            `json:"completion_tokens,omitempty"`
	TotalTokens      *int            `json:"total_tokens,omitempty"`
	ResponseTimeMs   *int64          `json:"response_time_ms,omitempty"`
	Refs             json.RawMessage `json:"refs,omitempty"`
}

// ResolveIdentityRequest is the body of POST /identity/resolve.
type ResolveIdentityRequest struct {
	ClientID        string `json:"client_id"`
	Alias           string `json:"alias"`
	URLSessionID    string `json:"url_session_id,omitempty"`
	StoredSessionID string `json:"stored_session_id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
}
