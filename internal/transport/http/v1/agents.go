package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListAgents lists every registered agent with its cached metadata and health.
// GET /agents
func (h *Handler) ListAgents(c echo.Context) error {
	return data(c, http.StatusOK, h.service.ListAgents(c.Request().Context()))
}

// GetAgent describes one agent, fetching its metadata if needed.
// GET /agents/:alias
func (h *Handler) GetAgent(c echo.Context) error {
	agent, err := h.service.DescribeAgent(c.Request().Context(), c.Param("alias"))
	if err != nil {
		return fail(c, err)
	}
	return data(c, http.StatusOK, agent)
}

// GetAgentData proxies the agent's data endpoint.
// GET /agents/:alias/data?type=
func (h *Handler) GetAgentData(c echo.Context) error {
	resp, err := h.service.AgentData(c.Request().Context(), c.Param("alias"), c.QueryParam("type"))
	if err != nil {
		return fail(c, err)
	}
	return data(c, http.StatusOK, resp)
}

// RefreshAgents refetches metadata for every agent.
// POST /agents/refresh
func (h *Handler) RefreshAgents(c echo.Context) error {
	return data(c, http.StatusOK, h.service.RefreshAgents(c.Request().Context()))
}
