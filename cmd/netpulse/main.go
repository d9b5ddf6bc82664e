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

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/netpulse/netpulse/internal/addons"
	"github.com/netpulse/netpulse/internal/alerts/adapters"
	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
	"github.com/netpulse/netpulse/internal/handlers"
	"github.com/netpulse/netpulse/internal/middleware"
	"github.com/netpulse/netpulse/internal/notify"
	"github.com/netpulse/netpulse/internal/poller"
	"github.com/netpulse/netpulse/internal/ws"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting NetPulse...")

	// Initialize JWT authentication middleware
	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	// Hash the admin password
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/webhook/*",
			"/auth/login",
			"/api/events/ws",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize the alert engine
	eng := engine.New(db)
	log.Printf("Alert engine initialized")

	// Initialize the WebSocket hub and feed it engine events
	hub := ws.NewHub()
	eng.RegisterEventCallback(hub.Callback())

	// Slack notifications are optional
	if cfg.SlackBotToken != "" {
		notifier := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackAlertsChannel)
		eng.RegisterEventCallback(notifier.Callback())
		log.Printf("Slack notifications enabled for channel %s", cfg.SlackAlertsChannel)
	} else {
		log.Printf("Slack notifications disabled (set SLACK_BOT_TOKEN to enable)")
	}

	// Load addon manifests and sync them into the database
	manifests, err := addons.LoadDir(cfg.AddonsDir)
	if err != nil {
		log.Fatalf("Failed to load addon manifests from %s: %v", cfg.AddonsDir, err)
	}
	registry := addons.NewRegistry(db, eng)
	if err := registry.Sync(manifests); err != nil {
		log.Fatalf("Failed to sync addons: %v", err)
	}
	log.Printf("Loaded %d addon manifests from %s", len(manifests), cfg.AddonsDir)

	// Initialize the poll dispatcher
	dispatcherCfg := poller.Config{
		WorkerMultiplier: cfg.PollWorkerMultiplier,
		TaskTimeout:      time.Duration(cfg.PollTaskTimeoutSeconds) * time.Second,
		RatePerSecond:    cfg.PollRatePerSecond,
		Burst:            cfg.PollBurst,
	}
	dispatcher := poller.NewDispatcher(db, eng, dispatcherCfg)
	dispatcher.RegisterPoller(poller.NewSNMPPoller())
	dispatcher.RegisterPoller(poller.NewAPIPoller())
	dispatcher.RegisterPoller(poller.NewSSHPoller())
	log.Printf("Poll dispatcher initialized (snmp_poll, api_poll, ssh)")

	// Initialize webhook handler with the generic adapter as fallback
	webhookHandler := handlers.NewWebhookHandler(db, eng, adapters.NewGenericAdapter())
	webhookHandler.RegisterAdapter(adapters.NewAlertmanagerAdapter())
	log.Printf("Alert adapters registered: generic (fallback), alertmanager")

	// Initialize API handlers
	alertAPIHandler := handlers.NewAlertAPIHandler(eng)
	targetAPIHandler := handlers.NewTargetAPIHandler(db, eng, dispatcher)
	systemHandler := handlers.NewSystemHandler(dispatcher, hub)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	webhookHandler.SetupRoutes(mux)
	alertAPIHandler.SetupRoutes(mux)
	targetAPIHandler.SetupRoutes(mux)
	systemHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)

	// Wrap all routes with CORS middleware first, then JWT authentication
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	authenticatedHandler := corsMiddleware.Wrap(middleware.RequestIDMiddleware(jwtAuthMiddleware.Wrap(mux)))

	// Start HTTP server in goroutine
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: authenticatedHandler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Start the polling loop
	stopPolling := make(chan struct{})
	go dispatcher.Start(time.Duration(cfg.PollTickSeconds)*time.Second, stopPolling)
	log.Printf("Polling loop started (tick every %ds)", cfg.PollTickSeconds)

	log.Println("NetPulse is running! Press Ctrl+C to exit.")
	log.Printf("Alert webhook endpoint: http://localhost:%d/webhook/alert/{addon_name}", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")

	// Stop dispatching new polls and wait for in-flight ones
	close(stopPolling)

	// Shutdown HTTP server
	log.Println("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if err := database.Close(db); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}
