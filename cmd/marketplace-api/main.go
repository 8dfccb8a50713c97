package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/Rellinxe27/tacheSure-platform2-sub000/api/v1"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/auth"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/bootstrap"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/config"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/jobs"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fallback, _ := zap.NewDevelopment()
		fallback.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize logger
	logger, err := bootstrap.NewLogger(cfg.Logging)
	if err != nil {
		fallback, _ := zap.NewDevelopment()
		fallback.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	dbs, err := bootstrap.OpenDatabases(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer dbs.Close()

	clients, err := bootstrap.NewAWSClients(ctx, cfg.AWS, cfg.Notifications, logger)
	if err != nil {
		logger.Fatal("Failed to configure AWS clients", zap.Error(err))
	}

	// Initialize marketplace modules
	api, err := bootstrap.Marketplace(cfg, dbs, clients, logger)
	if err != nil {
		logger.Fatal("Failed to set up marketplace API", zap.Error(err))
	}
	defer api.Close()

	// The retry queue lives in this process, so its job runs here too
	scheduler := jobs.NewManager(logger.Named("jobs"))
	if err := scheduler.Register(jobs.RetryNotifications(api.Emitter, cfg.Notifications.RetryCron, logger)); err != nil {
		logger.Fatal("Failed to register notification retry job", zap.Error(err))
	}
	if cfg.Database.UseMemory() {
		if err := scheduler.Register(jobs.RollForward(api.Calendar, cfg.Scheduling.RollForwardCron, logger)); err != nil {
			logger.Fatal("Failed to register slot roll-forward job", zap.Error(err))
		}
	}
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start jobs", zap.Error(err))
	}
	defer scheduler.Stop()

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Register Routes
	apiGroup := router.Group("/api/v1", auth.Middleware(auth.Config{
		Secret: cfg.Security.JWTSecret,
		Issuer: cfg.Security.JWTIssuer,
		Leeway: 30 * time.Second,
	}, logger))
	v1.RegisterMarketplaceRoutes(apiGroup, api)

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":                "healthy",
			"timestamp":             time.Now(),
			"pending_notifications": api.Emitter.Pending(),
			"realtime_connections":  api.Realtime.GetConnectionCount(),
		}
		if dbs != nil {
			if err := dbs.SQL.PingContext(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["database"] = err.Error()
			}
		}
		c.JSON(status, body)
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("actor", c.GetHeader(httputil.ActorHeader)))
	}
}
