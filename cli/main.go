// Package main provides a simple CLI client for chatting with an agent through the portal.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Notification is an event pushed on the session stream.
type Notification struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Ts        int64  `json:"ts"`
}

// SendRequest is the body of POST /sessions/{id}/send.
type SendRequest struct {
	AssistantAlias string `json:"assistant_alias"`
	ModelID        string `json:"model_id"`
	Prompt         string `json:"prompt"`
	User           string `json:"user"`
	UserID         string `json:"user_id,omitempty"`
}

// AskResponse is the agent answer relayed by the portal.
type AskResponse struct {
	Status          string `json:"status"`
	ContentMarkdown string `json:"content_markdown"`
	ErrorMessage    string `json:"error_message"`
	Meta            *struct {
		Model          string `json:"model"`
		ResponseTimeMs int64  `json:"response_time_ms"`
		TokensUsed     int    `json:"tokens_used"`
		Degraded       bool   `json:"degraded"`
	} `json:"meta"`
}

// Client talks to the portal REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessionID  string
	conn       *websocket.Conn
	done       chan struct{}
}

// NewClient creates a client for the portal at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		done:       make(chan struct{}),
	}
}

// Close closes the notification stream, if any.
func (c *Client) Close() error {
	close(c.done)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ResolveSession asks the portal which session this terminal is bound to.
func (c *Client) ResolveSession(clientID, alias, sessionID, userID string) error {
	body := map[string]string{
		"client_id":      clientID,
		"alias":          alias,
		"url_session_id": sessionID,
		"user_id":        userID,
	}
	var resp struct {
		Data struct {
			SessionID string `json:"session_id"`
			Migrated  bool   `json:"migrated"`
		} `json:"data"`
	}
	if err := c.post("/identity/resolve", body, &resp); err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	if resp.Data.Migrated {
		fmt.Printf("Session %s belongs to someone else; started %s\n", sessionID, resp.Data.SessionID)
	}
	c.sessionID = resp.Data.SessionID
	return nil
}

// Send posts a prompt and returns the answer.
func (c *Client) Send(req SendRequest) (*AskResponse, error) {
	var resp AskResponse
	if err := c.post("/sessions/"+c.sessionID+"/send", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Subscribe opens the session's notification stream.
func (c *Client) Subscribe() error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/sessions/" + c.sessionID + "/events"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	return nil
}

// ReadNotifications reads and prints notifications from the server.
func (c *Client) ReadNotifications() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var n Notification
			if err := json.Unmarshal(data, &n); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}
			fmt.Printf("\n[%s] %s\n> ", n.Type, time.UnixMilli(n.Ts).Format(time.Kitchen))
		}
	}
}

func (c *Client) post(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s, status %d)", apiErr.Error, apiErr.Kind, resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Portal server address")
	alias := flag.String("agent", "default", "Agent alias to chat with")
	model := flag.String("model", "", "Model id (defaults to the agent alias)")
	user := flag.String("user", os.Getenv("USER"), "Display name sent to the agent")
	userID := flag.String("user-id", "", "Authenticated user id (empty for guest)")
	sessionID := flag.String("session", "", "Existing session id to continue")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *model == "" {
		*model = *alias
	}
	if *user == "" {
		*user = "cli"
	}

	client := NewClient(*addr, 2*time.Minute)
	defer client.Close()

	hostname, _ := os.Hostname()
	if err := client.ResolveSession("cli-"+hostname, *alias, *sessionID, *userID); err != nil {
		log.Fatalf("Failed to resolve session: %v", err)
	}
	fmt.Printf("Session: %s\n", client.sessionID)

	if err := client.Subscribe(); err != nil {
		log.Printf("Notifications unavailable: %v", err)
	} else {
		go client.ReadNotifications()
	}

	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /quit to exit")

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			resp, err := client.Send(SendRequest{
				AssistantAlias: *alias,
				ModelID:        *model,
				Prompt:         input,
				User:           *user,
				UserID:         *userID,
			})
			if err != nil {
				log.Printf("Send error: %v", err)
				continue
			}
			printAnswer(resp)
		}
	}
}

func printAnswer(resp *AskResponse) {
	fmt.Printf("\n%s\n", resp.ContentMarkdown)
	if resp.Meta == nil {
		return
	}
	label := resp.Meta.Model
	if resp.Meta.Degraded {
		label += ", degraded"
	}
	fmt.Printf("(%s, %d ms, %d tokens)\n\n", label, resp.Meta.ResponseTimeMs, resp.Meta.TokensUsed)
}
