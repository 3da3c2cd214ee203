// Package server contains the HTTP handlers for the service's API endpoints.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"time"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/analytics"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/cache"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/config"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/database"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/middleware"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/models"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/repository"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/scheduler"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/service"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/telegram"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	lifecycle      *service.InviteLifecycle
	dispatcher     *scheduler.Dispatcher
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	requestRepo := repository.NewRequestRepository(db)
	indexRepo := repository.NewLinkIndexRepository(db)

	issuer := telegram.NewClient(&telegram.ClientConfig{
		BaseURL:  cfg.TelegramAPIBaseURL,
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.CommunityChatID,
		Timeout:  time.Duration(cfg.IssuerTimeoutSecs) * time.Second,
	})
	sink := analytics.NewClient(&analytics.ClientConfig{
		URL:    cfg.AnalyticsURL,
		APIKey: cfg.AnalyticsKey,
	})
	sched := scheduler.NewRedisScheduler(redisClient)

	lifecycle := service.NewInviteLifecycle(requestRepo, indexRepo, issuer, sched, sink, service.LifecycleConfig{
		MaxAttempts:   cfg.MaxIssuanceAttempts,
		RetryFallback: time.Duration(cfg.RetryFallbackSecs) * time.Second,
	})

	dispatcher := scheduler.NewDispatcher(scheduler.DispatcherConfig{
		Redis:     redisClient,
		WorkerURL: cfg.WorkerStepURL,
		Token:     cfg.SchedulerToken,
		Interval:  time.Duration(cfg.DispatchIntervalSecs) * time.Second,
	})

	prom := middleware.InitMetrics("invitegate-api")

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		lifecycle:      lifecycle,
		dispatcher:     dispatcher,
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate the request and trace IDs
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS before middlewares that can short-circuit so browser clients still
	// receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400, // 24 hours
	}))

	// OpenTelemetry tracing spans per request
	app.Use(middleware.TracingMiddleware())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	// Public invite request routes
	invites := api.Group("/invites")
	invites.Post("/", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_invite"), s.CreateInvite)
	invites.Get("/:id", s.GetInvite)

	// Worker step endpoint, reachable only with the scheduler trust header
	internal := app.Group("/internal", s.SchedulerAuthRequired())
	internal.Post("/worker/step", s.WorkerStep)

	// Provider webhook; always acknowledges
	app.Post("/webhook/telegram", s.TelegramWebhook)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Without Redis no worker steps get scheduled, so not ready.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// SchedulerAuthRequired rejects requests that do not carry the scheduler's
// trust header. This is the only authentication on the worker step endpoint.
func (s *Server) SchedulerAuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(scheduler.TrustHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.SchedulerToken)) != 1 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewValidationError("invalid scheduler token"))
		}
		return c.Next()
	}
}

// RunDispatcher runs the background task dispatcher loop until ctx is
// cancelled. Call it from a goroutine alongside the HTTP listener.
func (s *Server) RunDispatcher(ctx context.Context) {
	s.dispatcher.Run(ctx)
}

// Shutdown gracefully shuts down the server's resources
func (s *Server) Shutdown(ctx context.Context) error {
	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
