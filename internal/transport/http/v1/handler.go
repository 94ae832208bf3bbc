// Package v1 provides the portal's REST handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/notify"
	"github.com/xiaot623/gogo/portal/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	events  *notify.Server
}

// NewHandler creates a new handler. events may be nil, in which case the
// notification stream is not served.
func NewHandler(service *service.Service, events *notify.Server) *Handler {
	return &Handler{
		service: service,
		events:  events,
	}
}

// RegisterRoutes registers portal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Sessions
	e.POST("/sessions", h.CreateSession)
	e.GET("/sessions/:session_id", h.GetSession)
	e.PATCH("/sessions/:session_id", h.RenameSession)
	e.DELETE("/sessions/:session_id", h.DeleteSession)

	// Messages
	e.GET("/sessions/:session_id/messages", h.ListMessages)
	e.POST("/sessions/:session_id/messages", h.AppendMessage)
	e.POST("/sessions/:session_id/send", h.Send)
	e.GET("/sessions/:session_id/events", h.Events)

	// Agent registry
	e.GET("/agents", h.ListAgents)
	e.POST("/agents/refresh", h.RefreshAgents)
	e.GET("/agents/:alias", h.GetAgent)
	e.GET("/agents/:alias/data", h.GetAgentData)

	// Identity
	e.POST("/identity/resolve", h.ResolveIdentity)

	e.GET("/health", h.Health)
}

// Health returns health status. The store is pinged; a failed ping reports
// degraded with 503.
func (h *Handler) Health(c echo.Context) error {
	if err := h.service.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func data(c echo.Context, status int, v interface{}) error {
	return c.JSON(status, map[string]interface{}{"data": v})
}

func fail(c echo.Context, err error) error {
	de := domain.AsError(err)
	return c.JSON(de.HTTPStatus(), map[string]string{
		"error": de.Message,
		"kind":  string(de.Kind),
	})
}

func invalidBody(c echo.Context) error {
	return fail(c, domain.NewValidationError("invalid request body"))
}
