// Package agentapi serves the orchestrator over the agent wire contract.
package agentapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/portal/internal/domain"
	"github.com/xiaot623/gogo/portal/internal/orchestrator"
)

// HeaderDegraded is set on ask responses produced by the fallback branch.
const HeaderDegraded = "X-Agent-Degraded"

// Handler handles agent contract requests.
type Handler struct {
	agent *orchestrator.Agent
}

// NewHandler creates a new handler.
func NewHandler(agent *orchestrator.Agent) *Handler {
	return &Handler{agent: agent}
}

// RegisterRoutes registers the metadata, data and ask endpoints.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/metadata", h.Metadata)
	e.GET("/data", h.Data)
	e.POST("/ask", h.Ask)
	e.GET("/health", h.Health)
}

// Metadata describes the orchestrator.
// GET /metadata
func (h *Handler) Metadata(c echo.Context) error {
	return c.JSON(http.StatusOK, h.agent.Metadata())
}

// Data lists routable agents.
// GET /data?type=agents
func (h *Handler) Data(c echo.Context) error {
	resp, err := h.agent.Data(c.Request().Context(), c.QueryParam("type"))
	if err != nil {
		de := domain.AsError(err)
		return c.JSON(de.HTTPStatus(), map[string]string{
			"status":        string(domain.AskStatusError),
			"error_message": de.Message,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// Ask routes a prompt to a sub-agent. Routing failures are reported in the
// error variant with status 200, as the contract carries them in the body.
// POST /ask
func (h *Handler) Ask(c echo.Context) error {
	var req domain.AskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.NewAskError("invalid request body"))
	}

	resp, degraded := h.agent.Ask(c.Request().Context(), &req)
	if degraded {
		c.Response().Header().Set(HeaderDegraded, "true")
	}
	return c.JSON(http.StatusOK, resp)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
