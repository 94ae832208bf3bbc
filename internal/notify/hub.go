// Package notify fans out send notifications to websocket subscribers of a session.
package notify

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

// Publisher receives observational notifications. Delivery is best-effort.
type Publisher interface {
	Publish(n domain.Notification)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Publish(domain.Notification) {}

// Connection represents a single websocket subscriber.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.Mutex
}

// Hub manages subscribers keyed by session.
type Hub struct {
	connections map[string]*Connection
	sessions    map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *sessionMessage
	done       chan struct{}

	mu sync.RWMutex
}

type sessionMessage struct {
	SessionID string
	Data      []byte
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a new Hub. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *sessionMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.sessions[conn.SessionID] == nil {
				h.sessions[conn.SessionID] = make(map[string]bool)
			}
			h.sessions[conn.SessionID][conn.ID] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				delete(h.sessions[conn.SessionID], conn.ID)
				if len(h.sessions[conn.SessionID]) == 0 {
					delete(h.sessions, conn.SessionID)
				}
				close(conn.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.sessions[msg.SessionID] {
				conn := h.connections[connID]
				select {
				case conn.Send <- msg.Data:
				default:
					log.Printf("WARN: subscriber %s buffer full, dropping", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Stop ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// NewConnection creates a connection bound to sessionID. Register it to receive events.
func (h *Hub) NewConnection(ws *websocket.Conn, sessionID string) *Connection {
	return &Connection{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Conn:      ws,
		Send:      make(chan []byte, 32),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues n for every subscriber of its session. It never blocks the caller.
func (h *Hub) Publish(n domain.Notification) {
	if n.Ts == 0 {
		n.Ts = time.Now().UnixMilli()
	}
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("ERROR: failed to marshal notification: %v", err)
		return
	}
	select {
	case h.broadcast <- &sessionMessage{SessionID: n.SessionID, Data: data}:
	default:
		log.Printf("WARN: notification queue full, dropping %s for session %s", n.Type, n.SessionID)
	}
}

// HasSubscribers reports whether a session has any active subscriber.
func (h *Hub) HasSubscribers(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}
