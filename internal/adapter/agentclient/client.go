// Package agentclient provides an HTTP client for the agent wire contract
// (metadata, data, ask).
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

const (
	// maxErrorBody bounds how much of a failed response body is echoed into errors.
	maxErrorBody = 512
	// maxResponseBody bounds how much of any agent response is read.
	maxResponseBody = 4 << 20
)

// Client is an HTTP client for calling agents.
type Client struct {
	httpClient *http.Client
	origin     string
}

// NewClient creates a new agent client. Origin, when set, is sent on every request
// so agents enforcing an origin allow-list can authorize the portal.
func NewClient(timeout time.Duration, origin string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		origin:     origin,
	}
}

// NewClientWithHTTP wraps an existing http.Client.
func NewClientWithHTTP(httpClient *http.Client, origin string) *Client {
	return &Client{httpClient: httpClient, origin: origin}
}

// Metadata fetches GET {base}/metadata.
func (c *Client) Metadata(ctx context.Context, baseURL string) (*domain.AgentMetadata, error) {
	body, err := c.do(ctx, http.MethodGet, endpoint(baseURL, "metadata"), nil)
	if err != nil {
		return nil, err
	}
	var meta domain.AgentMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, domain.NewUpstreamLogicError(fmt.Sprintf("malformed metadata: %v", err))
	}
	if meta.Name == "" {
		return nil, domain.NewUpstreamLogicError("malformed metadata: missing name")
	}
	return &meta, nil
}

// Data fetches GET {base}/data?type=T. An empty dataType lets the agent pick its default.
func (c *Client) Data(ctx context.Context, baseURL, dataType string) (*domain.DataResponse, error) {
	target := endpoint(baseURL, "data")
	if dataType != "" {
		target += "?type=" + url.QueryEscape(dataType)
	}
	body, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	var resp domain.DataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewUpstreamLogicError(fmt.Sprintf("malformed data response: %v", err))
	}
	return &resp, nil
}

// Ask calls POST {base}/ask. A transport failure, timeout or non-2xx status yields an
// upstream agent error (quota error for 429); a 2xx body that is not a valid ask
// response yields an upstream logic error. Both ask variants are returned as-is.
func (c *Client) Ask(ctx context.Context, baseURL string, req *domain.AskRequest) (*domain.AskResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal ask request", err)
	}
	body, err := c.do(ctx, http.MethodPost, endpoint(baseURL, "ask"), payload)
	if err != nil {
		return nil, err
	}
	resp, err := domain.DecodeAskResponse(body)
	if err != nil {
		return nil, domain.NewUpstreamLogicError(err.Error())
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, domain.NewUpstreamAgentError("invalid agent url", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.origin != "" {
		httpReq.Header.Set("Origin", c.origin)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewUpstreamAgentError("agent timed out", err)
		}
		return nil, domain.NewUpstreamAgentError("agent unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, domain.NewUpstreamAgentError("failed to read agent response", err)
	}
	if len(body) > maxResponseBody {
		return nil, domain.NewUpstreamAgentError(fmt.Sprintf("agent response exceeds %d bytes", maxResponseBody), nil)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.NewQuotaError(fmt.Sprintf("quota exceeded: %s", truncate(body)))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewUpstreamAgentError(fmt.Sprintf("agent returned status %d: %s", resp.StatusCode, truncate(body)), nil)
	}
	return body, nil
}

func endpoint(baseURL, op string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + op
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
