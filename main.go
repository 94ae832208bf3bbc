package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/gogo/portal/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/portal/internal/config"
	"github.com/xiaot623/gogo/portal/internal/identity"
	"github.com/xiaot623/gogo/portal/internal/metrics"
	"github.com/xiaot623/gogo/portal/internal/notify"
	"github.com/xiaot623/gogo/portal/internal/orchestrator"
	"github.com/xiaot623/gogo/portal/internal/policy"
	"github.com/xiaot623/gogo/portal/internal/registry"
	"github.com/xiaot623/gogo/portal/internal/repository"
	"github.com/xiaot623/gogo/portal/internal/service"
	handler "github.com/xiaot623/gogo/portal/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting portal...")
	log.Printf("Portal HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Orchestrator Agent Port: %d", cfg.AgentPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Registered agents: %d", len(cfg.Agents))

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize metrics
	m := metrics.New()

	// Initialize agent client and registry
	agentClient := agentclient.NewClient(cfg.AgentTimeout, cfg.PrimaryDomain)
	reg := registry.New(cfg.Agents, agentClient, registry.Options{
		FetchTimeout: cfg.MetadataTimeout,
		TTL:          cfg.MetadataTTL,
		Metrics:      m,
	})

	// Initialize identity manager
	identityManager := identity.NewManager(db, identity.NewMemoryBindings(), cfg.GuestUserID)

	// Initialize notification hub
	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()
	events := notify.NewServer(hub, notify.ServerOptions{})

	// Initialize service
	svc := service.New(db, agentClient, reg, identityManager, hub, m, cfg)

	// Initialize orchestrator agent
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy, cfg.PrimaryDomain, cfg.AllowedOrigins)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}
	router := orchestrator.NewRouter(reg, agentClient, orchestrator.Options{
		SelfAlias: cfg.OrchestratorAlias,
		Timeout:   cfg.OrchestratorRouteTimeout(),
		Metrics:   m,
	})
	orchestratorAgent := orchestrator.NewAgent(router)

	// Create servers
	portalServer := handler.NewPortalServer(svc, events, m, cfg.AccessLogEnabled())
	agentServer := handler.NewAgentServer(orchestratorAgent, policyEngine, m, cfg.AccessLogEnabled())

	// Start portal server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := portalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start portal server: %v", err)
		}
	}()

	// Start orchestrator agent server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.AgentPort)
		if err := agentServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start orchestrator agent server: %v", err)
		}
	}()

	log.Printf("Portal API started on port %d", cfg.HTTPPort)
	log.Printf("Orchestrator agent started on port %d", cfg.AgentPort)

	// Warm the registry so the first agent listing does not wait on every agent.
	go reg.Refresh(ctx)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down portal...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := portalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown portal server gracefully: %v", err)
	}
	if err := agentServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown orchestrator agent server gracefully: %v", err)
	}

	log.Println("Portal stopped")
}
