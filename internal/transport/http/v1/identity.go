package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/portal/internal/domain"
)

// ResolveIdentity binds a browser context to a session id.
// POST /identity/resolve
func (h *Handler) ResolveIdentity(c echo.Context) error {
	var req domain.ResolveIdentityRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	res, err := h.service.ResolveIdentity(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return data(c, http.StatusOK, res)
}
