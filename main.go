package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"scan-session-service/config"
	"scan-session-service/database"
	"scan-session-service/detector"
	"scan-session-service/handlers"
	"scan-session-service/middleware"
	"scan-session-service/rabbitmq"
	"scan-session-service/session"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting the scan session service...")

	store := session.NewStore()
	det := detector.NewRemoteDetector(cfg)

	// Optional finalized-scan archive
	var archive *database.Archive
	if cfg.ArchiveEnabled {
		var err error
		archive, err = database.OpenArchive(cfg)
		if err != nil {
			log.Fatalf("Failed to open scan archive: %v", err)
		}
		if err := archive.EnsureScanResultsTable(context.Background()); err != nil {
			log.Fatalf("Failed to ensure scan_results table: %v", err)
		}
		defer archive.Close()
	}

	// Optional scan.finalized event publisher
	var events *rabbitmq.Publisher
	if cfg.EventsEnabled {
		var err error
		events, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer events.Close()
	}

	h := handlers.NewHandlers(cfg, store, det, archive, events)
	router := setupRouter(cfg, h)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupRouter(cfg *config.Config, h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	// Finalized summaries carry base64 images; they compress well
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.AllowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Live scanning stream
	router.GET("/ws/scan", h.ScanStream)

	// Out-of-band session API
	api := router.Group("/api/v1/scan")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, time.Minute))
	{
		api.GET("/session/:id", h.GetSession)
		api.POST("/session/:id/finalize", h.FinalizeSession)
		api.GET("/session/:id/retrieve", h.RetrieveSession)
	}

	// Internal diagnostics
	internal := router.Group("/internal")
	internal.Use(middleware.InternalAdminToken(cfg.InternalAdminToken))
	{
		internal.GET("/sessions", h.ActiveSessions)
	}

	// Root health check
	router.GET("/health", h.HealthCheck)

	return router
}
