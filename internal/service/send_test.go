package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/tests/helpers"
)

func sendReq(baseURL, prompt string) domain.SendRequest {
	return domain.SendRequest{
		AssistantBaseURL: baseURL,
		AssistantAlias:   "docs",
		ModelID:          "m1",
		Prompt:           prompt,
		User:             "alice",
	}
}

func TestSendPersistsExchangeOnFreshSession(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	agent := newMockAgent(t, answer("**hi**", domain.AskMeta{Model: "m1-large", PromptTokens: 3, CompletionTokens: 4, TokensUsed: 7}))
	svc, pub := newTestService(t, db, nil)

	sessionID := uuid.NewString()
	resp, err := svc.Send(ctx, sessionID, sendReq(agent.URL, "hello"))
	require.NoError(t, err)
	assert.Equal(t, "**hi**", resp.ContentMarkdown)

	session, err := db.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, testConfig().GuestUserID, session.UserID)

	messages, err := svc.ListMessages(ctx, sessionID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)
	assert.Equal(t, "**hi**", messages[1].Content)
	assert.Equal(t, domain.ContentTypeMarkdown, messages[1].ContentType)
	assert.Equal(t, "m1-large", messages[1].ModelID)
	require.NotNil(t, messages[1].TotalTokens)
	assert.Equal(t, 7, *messages[1].TotalTokens)
	assert.False(t, messages[1].CreatedAt.Before(messages[0].CreatedAt))

	assert.Empty(t, agent.lastRequest().Context.History)
	assert.Equal(t, []domain.NotificationType{domain.NotificationMessageAppended, domain.NotificationQuotaChanged}, pub.types())
}

func TestSendForwardsRecentHistory(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	session := helpers.SeedSession(t, db, "u1", "q1", "a1", "q2", "a2")
	agent := newMockAgent(t, answer("a3", domain.AskMeta{}))
	svc, _ := newTestService(t, db, nil)

	_, err := svc.Send(ctx, session.SessionID, sendReq(agent.URL, "q3"))
	require.NoError(t, err)

	history := agent.lastRequest().Context.History
	require.Len(t, history, 4)
	assert.Equal(t, "q1", history[0].Content)
	assert.Equal(t, "a2", history[3].Content)

	_, err = svc.Send(ctx, session.SessionID, sendReq(agent.URL, "q4"))
	require.NoError(t, err)
	history = agent.lastRequest().Context.History
	require.Len(t, history, 6)
	assert.Equal(t, "q3", history[4].Content)
	assert.Equal(t, domain.RoleAssistant, history[5].Role)
}

func TestSendOverlappingExchangesListInCommitOrder(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	session := helpers.SeedSession(t, db, "u1")

	slowStarted := make(chan struct{})
	slow := newMockAgent(t, func(w http.ResponseWriter, req domain.AskRequest) {
		close(slowStarted)
		time.Sleep(300 * time.Millisecond)
		answer("slow-answer", domain.AskMeta{})(w, req)
	})
	fast := newMockAgent(t, answer("fast-answer", domain.AskMeta{}))
	svc, _ := newTestService(t, db, nil)

	slowDone := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, session.SessionID, sendReq(slow.URL, "slow-q"))
		slowDone <- err
	}()
	<-slowStarted

	_, err := svc.Send(ctx, session.SessionID, sendReq(fast.URL, "fast-q"))
	require.NoError(t, err)
	require.NoError(t, <-slowDone)

	messages, err := svc.ListMessages(ctx, session.SessionID, 0, 0)
	require.NoError(t, err)
	contents := make([]string, 0, len(messages))
	for _, m := range messages {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"fast-q", "fast-answer", "slow-q", "slow-answer"}, contents)
}

func TestSendUnreachableAgentWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	agent := newMockAgent(t, answer("never", domain.AskMeta{}))
	deadURL := agent.URL
	agent.Close()
	svc, pub := newTestService(t, db, nil)

	sessionID := uuid.NewString()
	_, err := svc.Send(ctx, sessionID, sendReq(deadURL, "hello"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindUpstreamAgent, domain.KindOf(err))
	assert.Equal(t, http.StatusBadGateway, statusFor(err))

	session, err := db.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Empty(t, pub.types())
}

func TestSendAgentErrorIsLogicError(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	agent := newMockAgent(t, func(w http.ResponseWriter, req domain.AskRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","error_message":"model overloaded"}`))
	})
	svc, _ := newTestService(t, db, nil)

	sessionID := uuid.NewString()
	_, err := svc.Send(ctx, sessionID, sendReq(agent.URL, "hello"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindUpstreamLogic, domain.KindOf(err))
	assert.Contains(t, err.Error(), "model overloaded")

	session, err := db.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSendQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	agent := newMockAgent(t, func(w http.ResponseWriter, req domain.AskRequest) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`monthly quota used`))
	})
	svc, pub := newTestService(t, db, nil)

	_, err := svc.Send(ctx, uuid.NewString(), sendReq(agent.URL, "hello"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindQuota, domain.KindOf(err))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(err))
	assert.Equal(t, []domain.NotificationType{domain.NotificationQuotaChanged}, pub.types())
}

func TestSendValidation(t *testing.T) {
	db := helpers.NewTestSQLiteStore(t)
	svc, _ := newTestService(t, db, map[string]string{"docs": "http://docs.local"})

	tests := []struct {
		name      string
		sessionID string
		mutate    func(r *domain.SendRequest)
	}{
		{"bad session id", "not-a-uuid", func(r *domain.SendRequest) {}},
		{"missing model", uuid.NewString(), func(r *domain.SendRequest) { r.ModelID = "" }},
		{"missing prompt", uuid.NewString(), func(r *domain.SendRequest) { r.Prompt = "" }},
		{"missing user", uuid.NewString(), func(r *domain.SendRequest) { r.User = "" }},
		{"missing base url", uuid.NewString(), func(r *domain.SendRequest) { r.AssistantBaseURL = ""; r.AssistantAlias = "" }},
		{"unknown alias", uuid.NewString(), func(r *domain.SendRequest) { r.AssistantBaseURL = ""; r.AssistantAlias = "nope" }},
		{"bad scheme", uuid.NewString(), func(r *domain.SendRequest) { r.AssistantBaseURL = "ftp://agent" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sendReq("http://agent.local", "hello")
			tt.mutate(&req)
			_, err := svc.Send(context.Background(), tt.sessionID, req)
			require.Error(t, err)
			assert.Equal(t, domain.ErrKindValidation, domain.KindOf(err))
		})
	}
}

func TestSendResolvesAlias(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	agent := newMockAgent(t, answer("ok", domain.AskMeta{}))
	svc, _ := newTestService(t, db, map[string]string{"docs": agent.URL})

	req := sendReq("", "hello")
	resp, err := svc.Send(ctx, uuid.NewString(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.ContentMarkdown)
}

func TestSendWriteFailureStillReturnsAnswer(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	agent := newMockAgent(t, answer("answer", domain.AskMeta{}))
	svc, pub := newTestService(t, &failingAppendStore{Store: db}, nil)

	sessionID := uuid.NewString()
	resp, err := svc.Send(ctx, sessionID, sendReq(agent.URL, "hello"))
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.ContentMarkdown)

	messages, err := db.ListMessages(ctx, sessionID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.NotContains(t, pub.types(), domain.NotificationMessageAppended)
}

func TestSendStoreUnavailableFails(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	agent := newMockAgent(t, answer("answer", domain.AskMeta{}))
	svc, _ := newTestService(t, db, nil)
	require.NoError(t, db.Close())

	_, err := svc.Send(ctx, uuid.NewString(), sendReq(agent.URL, "hello"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindPersistence, domain.KindOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(err))

	// History was unavailable too, so the agent still got the prompt with no context.
	assert.Empty(t, agent.lastRequest().Context.History)
}

func TestSendCompletesAfterCallerCancels(t *testing.T) {
	db := helpers.NewTestSQLiteStore(t)
	agent := newMockAgent(t, func(w http.ResponseWriter, req domain.AskRequest) {
		time.Sleep(150 * time.Millisecond)
		answer("late", domain.AskMeta{})(w, req)
	})
	svc, _ := newTestService(t, db, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sessionID := uuid.NewString()
	_, err := svc.Send(ctx, sessionID, sendReq(agent.URL, "hello"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	assert.Eventually(t, func() bool {
		messages, err := db.ListMessages(context.Background(), sessionID, 10, 0)
		return err == nil && len(messages) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSendKeepsOwnerOfExistingSession(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	session := helpers.SeedSession(t, db, "owner")
	agent := newMockAgent(t, answer("ok", domain.AskMeta{}))
	svc, _ := newTestService(t, db, nil)

	req := sendReq(agent.URL, "hello")
	req.UserID = "someone-else"
	_, err := svc.Send(ctx, session.SessionID, req)
	require.NoError(t, err)

	got, err := db.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "owner", got.UserID)
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return domain.AsError(err).HTTPStatus()
}
