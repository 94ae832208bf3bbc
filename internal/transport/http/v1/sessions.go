package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

// CreateSession creates a session, or returns the existing one for a known id.
// POST /sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	session, created, err := h.service.CreateSession(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return data(c, status, session)
}

// GetSession returns a session.
// GET /sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return fail(c, err)
	}
	return data(c, http.StatusOK, session)
}

type renameRequest struct {
	Title string `json:"title"`
}

// RenameSession sets a session's title.
// PATCH /sessions/:session_id
func (h *Handler) RenameSession(c echo.Context) error {
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	sessionID := c.Param("session_id")
	if err := h.service.RenameSession(c.Request().Context(), sessionID, req.Title); err != nil {
		return fail(c, err)
	}
	session, err := h.service.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return fail(c, err)
	}
	return data(c, http.StatusOK, map[string]string{
		"id":    session.SessionID,
		"title": session.Title,
	})
}

// DeleteSession removes a session and its messages.
// DELETE /sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.service.DeleteSession(c.Request().Context(), c.Param("session_id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
