package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

type fakeAgents struct {
	mu        sync.Mutex
	failing   map[string]bool
	calls     atomic.Int32
	lastType  string
	delay     time.Duration
	metadatas map[string]*domain.AgentMetadata
}

func (f *fakeAgents) Metadata(ctx context.Context, baseURL string) (*domain.AgentMetadata, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[baseURL] {
		return nil, domain.NewUpstreamAgentError("agent unreachable", errors.New("connection refused"))
	}
	return f.metadatas[baseURL], nil
}

func (f *fakeAgents) Data(ctx context.Context, baseURL, dataType string) (*domain.DataResponse, error) {
	f.mu.Lock()
	f.lastType = dataType
	f.mu.Unlock()
	return &domain.DataResponse{Status: domain.AskStatusSuccess, DataType: dataType}, nil
}

func newFake() *fakeAgents {
	return &fakeAgents{
		failing: map[string]bool{"http://down": true},
		metadatas: map[string]*domain.AgentMetadata{
			"http://docs": {Name: "Docs", ProvidedDataTypes: []string{"documents", "links"}},
		},
	}
}

func TestRegistryDescribeCachesMetadata(t *testing.T) {
	fake := newFake()
	reg := New(map[string]string{"docs": "http://docs"}, fake, Options{TTL: time.Minute})

	assert.Equal(t, domain.AgentHealthUnknown, reg.Health("docs"))

	d, err := reg.Describe(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentHealthHealthy, d.Health)
	assert.True(t, d.Selectable)
	assert.Equal(t, "Docs", d.Metadata.Name)

	_, err = reg.Describe(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestRegistryTTLExpiry(t *testing.T) {
	fake := newFake()
	reg := New(map[string]string{"docs": "http://docs"}, fake, Options{TTL: time.Minute})
	now := time.Now()
	reg.now = func() time.Time { return now }

	_, err := reg.Describe(context.Background(), "docs")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = reg.Describe(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestRegistryUnhealthyAgent(t *testing.T) {
	reg := New(map[string]string{"down": "http://down", "docs": "http://docs"}, newFake(), Options{})

	list := reg.List(context.Background())
	require.Len(t, list, 2)
	assert.Equal(t, "docs", list[0].Alias)
	assert.Equal(t, domain.AgentHealthHealthy, list[0].Health)
	assert.Equal(t, "down", list[1].Alias)
	assert.Equal(t, domain.AgentHealthUnhealthy, list[1].Health)
	assert.False(t, list[1].Selectable)
	assert.NotEmpty(t, list[1].LastError)
}

func TestRegistryUnknownAlias(t *testing.T) {
	reg := New(nil, newFake(), Options{})
	_, err := reg.Describe(context.Background(), "nope")
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))

	_, err = reg.BaseURL("nope")
	assert.Error(t, err)
}

func TestRegistryConcurrentFetchDeduplicated(t *testing.T) {
	fake := newFake()
	fake.delay = 50 * time.Millisecond
	reg := New(map[string]string{"docs": "http://docs"}, fake, Options{TTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.Describe(context.Background(), "docs")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestRegistryDataDefaultsToFirstType(t *testing.T) {
	fake := newFake()
	reg := New(map[string]string{"docs": "http://docs"}, fake, Options{})

	resp, err := reg.Data(context.Background(), "docs", "")
	require.NoError(t, err)
	assert.Equal(t, "documents", resp.DataType)

	resp, err = reg.Data(context.Background(), "docs", "links")
	require.NoError(t, err)
	assert.Equal(t, "links", resp.DataType)
}

func TestRegistryRefreshRecovers(t *testing.T) {
	fake := newFake()
	reg := New(map[string]string{"flaky": "http://flaky"}, fake, Options{TTL: time.Hour})
	fake.failing["http://flaky"] = true

	d, err := reg.Describe(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentHealthUnhealthy, d.Health)

	fake.mu.Lock()
	fake.failing["http://flaky"] = false
	fake.metadatas["http://flaky"] = &domain.AgentMetadata{Name: "Flaky"}
	fake.mu.Unlock()

	refreshed := reg.Refresh(context.Background())
	require.Len(t, refreshed, 1)
	assert.Equal(t, domain.AgentHealthHealthy, refreshed[0].Health)
	assert.Equal(t, domain.AgentHealthHealthy, reg.Health("flaky"))
}
