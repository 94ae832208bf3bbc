package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

const statusClientClosedRequest = 499

// ListMessages returns a page of a session's messages, oldest first.
// GET /sessions/:session_id/messages?limit=&offset=
func (h *Handler) ListMessages(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return fail(c, err)
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return fail(c, err)
	}

	messages, err := h.service.ListMessages(c.Request().Context(), c.Param("session_id"), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return data(c, http.StatusOK, messages)
}

// AppendMessage appends a message outside the agent-dispatch path.
// POST /sessions/:session_id/messages
func (h *Handler) AppendMessage(c echo.Context) error {
	var req domain.AppendMessageRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	msg, err := h.service.AppendMessage(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return fail(c, err)
	}
	return data(c, http.StatusCreated, msg)
}

// Send dispatches a prompt to an agent. The body is the agent's ask response.
// POST /sessions/:session_id/send
func (h *Handler) Send(c echo.Context) error {
	var req domain.SendRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	ctx := c.Request().Context()
	resp, err := h.service.Send(ctx, c.Param("session_id"), req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			// Client closed request; the send completes in the background.
			return c.NoContent(statusClientClosedRequest)
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Events streams session notifications over a websocket.
// GET /sessions/:session_id/events
func (h *Handler) Events(c echo.Context) error {
	sessionID := c.Param("session_id")
	if !domain.IsValidID(sessionID) {
		return fail(c, domain.NewValidationError("malformed session id %q", sessionID))
	}
	if h.events == nil {
		return fail(c, domain.NewNotFoundError("notifications are not enabled"))
	}
	// On a failed upgrade the upgrader has already written the response.
	_ = h.events.Serve(c.Response(), c.Request(), sessionID)
	return nil
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("%s must be an integer", name)
	}
	return v, nil
}
