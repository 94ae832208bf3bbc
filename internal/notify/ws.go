package notify

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ServerOptions tune the websocket pumps.
type ServerOptions struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// Server upgrades HTTP requests to notification streams.
type Server struct {
	hub      *Hub
	opts     ServerOptions
	upgrader websocket.Upgrader
}

// NewServer creates a websocket server for hub.
func NewServer(hub *Hub, opts ServerOptions) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	return &Server{
		hub:  hub,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// Serve upgrades the request and streams notifications for sessionID until the
// client goes away.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, sessionID string) error {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade websocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws, sessionID)
	s.hub.Register(conn)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump only services control frames; subscribers do not send data.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket error: %v", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write notification: %v", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
