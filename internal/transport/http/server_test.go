package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/metrics"
	"github.com/xiaot623/gogo/portal/internal/orchestrator"
	"github.com/xiaot623/gogo/portal/internal/policy"
)

type emptyDirectory struct{}

func (emptyDirectory) Aliases() []string { return nil }

func (emptyDirectory) BaseURL(alias string) (string, error) {
	return "", domain.NewNotFoundError("agent %q is not registered", alias)
}

func (emptyDirectory) List(ctx context.Context) []domain.AgentDescriptor { return nil }

type noAsker struct{}

func (noAsker) Ask(ctx context.Context, baseURL string, req *domain.AskRequest) (*domain.AskResponse, error) {
	return nil, domain.NewUpstreamAgentError("unused", nil)
}

func newAgentServer(t *testing.T) *echo.Echo {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy, "https://portal.example.com", []string{"https://partner.example.org"})
	require.NoError(t, err)
	agent := orchestrator.NewAgent(orchestrator.NewRouter(emptyDirectory{}, noAsker{}, orchestrator.Options{}))
	return NewAgentServer(agent, engine, metrics.New(), false)
}

func TestAgentServerCORSAllowList(t *testing.T) {
	e := newAgentServer(t)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://portal.example.com", "https://portal.example.com"},
		{"https://partner.example.org", "https://partner.example.org"},
		{"https://evil.example.net", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
			req.Header.Set(echo.HeaderOrigin, tt.origin)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		})
	}
}

func TestAgentServerPreflightFromUnknownOrigin(t *testing.T) {
	e := newAgentServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.net")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods))
}

func TestAgentServerServesMetrics(t *testing.T) {
	e := newAgentServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
