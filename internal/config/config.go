// Package config provides configuration for the chat portal.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultGuestUserID is the fixed owner id of sessions created without an authenticated user.
const DefaultGuestUserID = "00000000-0000-0000-0000-000000000000"

// Config holds the portal configuration.
type Config struct {
	// Server settings
	HTTPPort  int
	AgentPort int

	// Database
	DatabaseURL string

	// Agents maps alias to base URL.
	Agents map[string]string

	// Timeouts
	AgentTimeout    time.Duration
	HistoryTimeout  time.Duration
	PersistTimeout  time.Duration
	MetadataTimeout time.Duration
	MetadataTTL     time.Duration

	// HistoryMessages caps how many prior messages (not user/assistant pairs)
	// are forwarded to the agent as context.
	HistoryMessages int

	// Cross-origin policy for the built-in orchestrator agent
	PrimaryDomain  string
	AllowedOrigins []string

	GuestUserID string

	// OrchestratorAlias is the built-in orchestrator's own alias; it never routes to itself.
	OrchestratorAlias string
	// RouteTimeout bounds the orchestrator's call to a sub-agent. Zero derives it
	// from AgentTimeout.
	RouteTimeout time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: failed to load .env: %v", err)
	}

	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		AgentPort:       getEnvInt("AGENT_PORT", 8082),
		DatabaseURL:     getEnv("DATABASE_URL", "file:portal.db?cache=shared&mode=rwc"),
		Agents:          ParseAgents(getEnv("AGENTS", "")),
		AgentTimeout:    getEnvDuration("AGENT_TIMEOUT_MS", 60000),
		HistoryTimeout:  getEnvDuration("HISTORY_TIMEOUT_MS", 3000),
		PersistTimeout:  getEnvDuration("PERSIST_TIMEOUT_MS", 5000),
		MetadataTimeout: getEnvDuration("METADATA_TIMEOUT_MS", 5000),
		MetadataTTL:     getEnvDuration("METADATA_TTL_MS", 300000),
		HistoryMessages: getEnvInt("HISTORY_MESSAGES", 10),
		PrimaryDomain:   getEnv("PRIMARY_DOMAIN", ""),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "")),
		GuestUserID:     getEnv("GUEST_USER_ID", DefaultGuestUserID),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		OrchestratorAlias: getEnv("ORCHESTRATOR_ALIAS", "orchestrator"),
		RouteTimeout:      getEnvDuration("ORCHESTRATOR_ROUTE_TIMEOUT_MS", 0),
	}
	return cfg
}

// AccessLogEnabled reports whether per-request access logs should be written.
func (c *Config) AccessLogEnabled() bool {
	switch strings.ToLower(c.LogLevel) {
	case "warn", "error":
		return false
	}
	return true
}

// OrchestratorRouteTimeout returns the orchestrator's sub-agent budget. It is kept
// below AgentTimeout so that a portal calling the orchestrator still receives the
// degraded fallback when a sub-agent hangs.
func (c *Config) OrchestratorRouteTimeout() time.Duration {
	if c.AgentTimeout <= 0 {
		return c.RouteTimeout
	}
	ceiling := c.AgentTimeout * 4 / 5
	if c.RouteTimeout > 0 && c.RouteTimeout < ceiling {
		return c.RouteTimeout
	}
	return ceiling
}

// ParseAgents parses "alias=url,alias=url" into a map. Malformed entries are skipped.
func ParseAgents(raw string) map[string]string {
	agents := make(map[string]string)
	for _, entry := range splitList(raw) {
		alias, baseURL, ok := strings.Cut(entry, "=")
		alias = strings.TrimSpace(alias)
		baseURL = strings.TrimSpace(baseURL)
		if !ok || alias == "" || baseURL == "" {
			log.Printf("WARN: ignoring malformed agent entry %q", entry)
			continue
		}
		agents[alias] = baseURL
	}
	return agents
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
