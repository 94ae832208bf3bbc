package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/xiaot623/gogo/portal/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/portal/internal/config"
	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/identity"
	"github.com/xiaot623/gogo/portal/internal/metrics"
	"github.com/xiaot623/gogo/portal/internal/registry"
	"github.com/xiaot623/gogo/portal/internal/repository"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (p *recordingPublisher) Publish(n domain.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
}

func (p *recordingPublisher) types() []domain.NotificationType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.NotificationType, 0, len(p.sent))
	for _, n := range p.sent {
		out = append(out, n.Type)
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		AgentTimeout:    2 * time.Second,
		HistoryTimeout:  time.Second,
		PersistTimeout:  time.Second,
		HistoryMessages: 10,
		GuestUserID:     config.DefaultGuestUserID,
	}
}

func newTestService(t *testing.T, db store.Store, agents map[string]string) (*Service, *recordingPublisher) {
	t.Helper()
	client := agentclient.NewClient(2*time.Second, "")
	m := metrics.New()
	reg := registry.New(agents, client, registry.Options{TTL: time.Minute, Metrics: m})
	ids := identity.NewManager(db, identity.NewMemoryBindings(), config.DefaultGuestUserID)
	pub := &recordingPublisher{}
	return New(db, client, reg, ids, pub, m, testConfig()), pub
}

// mockAgent serves the ask endpoint with handler and records decoded requests.
type mockAgent struct {
	*httptest.Server
	mu       sync.Mutex
	requests []domain.AskRequest
}

func newMockAgent(t *testing.T, handler func(w http.ResponseWriter, req domain.AskRequest)) *mockAgent {
	t.Helper()
	a := &mockAgent{}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/metadata":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(domain.AgentMetadata{Name: "Mock", SupportedModels: []string{"m1"}})
		case "/ask":
			var req domain.AskRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			a.mu.Lock()
			a.requests = append(a.requests, req)
			a.mu.Unlock()
			handler(w, req)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(a.Close)
	return a
}

func (a *mockAgent) lastRequest() domain.AskRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func answer(content string, meta domain.AskMeta) func(w http.ResponseWriter, req domain.AskRequest) {
	return func(w http.ResponseWriter, req domain.AskRequest) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.NewAskSuccess(content, meta))
	}
}

// failingAppendStore fails AppendExchange with a non-connectivity error.
type failingAppendStore struct {
	store.Store
}

func (f *failingAppendStore) AppendExchange(ctx context.Context, userMsg, assistantMsg *domain.Message) error {
	return errConstraint
}

type constraintError struct{}

func (constraintError) Error() string { return "UNIQUE constraint failed: messages.id" }

var errConstraint error = constraintError{}
