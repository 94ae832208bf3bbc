// Package identity decides which session id a browser context is bound to.
//
// Per (client, alias) pair the binding moves Unbound -> Bound(id) -> Verified(id),
// and moves to a fresh Bound(id') when an authenticated user arrives on a session
// they do not own. Rebinding is a compare-and-swap on the binding store, so two
// tabs racing through the same transition converge on one id.
package identity

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

// State is the binding state of a (client, alias) pair.
type State string

const (
	StateUnbound  State = "unbound"
	StateBound    State = "bound"
	StateVerified State = "verified"
)

// SessionStore is the persistence the manager needs.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	CreateSession(ctx context.Context, session *domain.Session) error
}

// Resolution is the outcome of Resolve or VerifyOwnership.
type Resolution struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
	// Rebind tells the caller to rewrite its addressable context (URL) to SessionID.
	Rebind            bool   `json:"rebind"`
	Migrated          bool   `json:"migrated"`
	PreviousSessionID string `json:"previous_session_id,omitempty"`
}

// Manager resolves, verifies and migrates session ids.
type Manager struct {
	store    SessionStore
	bindings Bindings
	guestID  string
	newID    func() string
}

// NewManager creates a manager. guestID is the guest sentinel owner id.
func NewManager(store SessionStore, bindings Bindings, guestID string) *Manager {
	return &Manager{
		store:    store,
		bindings: bindings,
		guestID:  guestID,
		newID:    uuid.NewString,
	}
}

// Current returns the binding for key without changing it.
func (m *Manager) Current(key Key) Resolution {
	if id, ok := m.bindings.Load(key); ok {
		return Resolution{SessionID: id, State: StateBound}
	}
	return Resolution{State: StateUnbound}
}

// Resolve picks the session id for key. A URL id is authoritative; otherwise the
// previously stored id for the alias is used; otherwise a fresh id is minted.
func (m *Manager) Resolve(ctx context.Context, key Key, urlSessionID, storedSessionID string) (Resolution, error) {
	if urlSessionID != "" {
		if !domain.IsValidID(urlSessionID) {
			return Resolution{}, domain.NewValidationError("malformed session id %q", urlSessionID)
		}
		m.bindings.Store(key, urlSessionID)
		return Resolution{SessionID: urlSessionID, State: StateBound}, nil
	}

	if storedSessionID != "" {
		if domain.IsValidID(storedSessionID) {
			m.bindings.Store(key, storedSessionID)
			return Resolution{SessionID: storedSessionID, State: StateBound, Rebind: true}, nil
		}
		log.Printf("WARN: ignoring malformed stored session id for alias %s", key.Alias)
	}

	if id, ok := m.bindings.Load(key); ok {
		return Resolution{SessionID: id, State: StateBound, Rebind: true}, nil
	}

	minted := m.newID()
	if !m.bindings.CompareAndSwap(key, "", minted) {
		// Another request for the same context minted first; converge on its id.
		if id, ok := m.bindings.Load(key); ok {
			return Resolution{SessionID: id, State: StateBound, Rebind: true}, nil
		}
		m.bindings.Store(key, minted)
	}
	return Resolution{SessionID: minted, State: StateBound, Rebind: true}, nil
}

// VerifyOwnership checks sessionID against an authenticated user. A session owned
// by the guest sentinel (or by anyone else) is never adopted: a new session owned
// by userID is created and the binding moves to it. If the lookup fails the id is
// treated as provisionally valid.
func (m *Manager) VerifyOwnership(ctx context.Context, key Key, sessionID, userID string) (Resolution, error) {
	if !domain.IsValidID(sessionID) {
		return Resolution{}, domain.NewValidationError("malformed session id %q", sessionID)
	}
	if userID == "" || userID == m.guestID {
		return Resolution{SessionID: sessionID, State: StateBound}, nil
	}

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("WARN: ownership check for session %s failed, continuing: %v", sessionID, err)
		return Resolution{SessionID: sessionID, State: StateBound}, nil
	}
	if session == nil {
		// Not persisted yet; the first successful send will create it for this user.
		return Resolution{SessionID: sessionID, State: StateBound}, nil
	}
	if session.UserID == userID {
		m.bindings.Store(key, sessionID)
		return Resolution{SessionID: sessionID, State: StateVerified}, nil
	}

	return m.migrate(ctx, key, session, userID)
}

func (m *Manager) migrate(ctx context.Context, key Key, from *domain.Session, userID string) (Resolution, error) {
	current, bound := m.bindings.Load(key)
	if bound && current != from.SessionID {
		// Another tab already moved this context elsewhere.
		return Resolution{SessionID: current, State: StateBound, Rebind: true, PreviousSessionID: from.SessionID}, nil
	}

	newID := m.newID()
	if !m.bindings.CompareAndSwap(key, current, newID) {
		winner, _ := m.bindings.Load(key)
		return Resolution{SessionID: winner, State: StateBound, Rebind: true, PreviousSessionID: from.SessionID}, nil
	}

	alias := from.AssistantAlias
	if alias == "" {
		alias = key.Alias
	}
	session := &domain.Session{
		SessionID:      newID,
		UserID:         userID,
		ProjectID:      from.ProjectID,
		AssistantAlias: alias,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		m.bindings.CompareAndSwap(key, newID, current)
		return Resolution{}, domain.NewPersistenceError(fmt.Sprintf("failed to create session for user %s", userID), err)
	}

	log.Printf("INFO: migrated context %s/%s from session %s to %s", key.ClientID, key.Alias, from.SessionID, newID)
	return Resolution{
		SessionID:         newID,
		State:             StateBound,
		Rebind:            true,
		Migrated:          true,
		PreviousSessionID: from.SessionID,
	}, nil
}
