// Package http provides the HTTP servers of the portal.
package http

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/portal/internal/metrics"
	"github.com/xiaot623/gogo/portal/internal/notify"
	"github.com/xiaot623/gogo/portal/internal/orchestrator"
	"github.com/xiaot623/gogo/portal/internal/policy"
	"github.com/xiaot623/gogo/portal/internal/service"
	"github.com/xiaot623/gogo/portal/internal/transport/http/agentapi"
	v1 "github.com/xiaot623/gogo/portal/internal/transport/http/v1"
)

// NewPortalServer creates the server for the session, message, send, agent
// registry and identity API.
func NewPortalServer(svc *service.Service, events *notify.Server, m *metrics.Metrics, accessLog bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	if accessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, events)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	return e
}

// NewAgentServer creates the server exposing the orchestrator as an agent.
// Browser origins are authorized by the policy engine.
func NewAgentServer(agent *orchestrator.Agent, engine *policy.Engine, m *metrics.Metrics, accessLog bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	if accessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: originChecker(engine),
		AllowMethods:    []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders:    []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		ExposeHeaders:   []string{agentapi.HeaderDegraded},
	}))

	// Handlers
	agentHandler := agentapi.NewHandler(agent)

	// Register Routes
	agentHandler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	return e
}

func originChecker(engine *policy.Engine) func(origin string) (bool, error) {
	return func(origin string) (bool, error) {
		allowed, err := engine.Allowed(context.Background(), origin)
		if err != nil {
			log.Printf("ERROR: origin policy evaluation failed for %s: %v", origin, err)
			return false, nil
		}
		if !allowed {
			log.Printf("WARN: rejected cross-origin request from %s", origin)
		}
		return allowed, nil
	}
}
