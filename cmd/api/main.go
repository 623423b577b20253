package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chamapesa/chamapesa-backend/internal/config"
	"github.com/chamapesa/chamapesa-backend/internal/handler"
	"github.com/chamapesa/chamapesa-backend/internal/mail"
	"github.com/chamapesa/chamapesa-backend/internal/middleware"
	"github.com/chamapesa/chamapesa-backend/internal/repository/mongodb"
	"github.com/chamapesa/chamapesa-backend/internal/repository/storage"
	"github.com/chamapesa/chamapesa-backend/internal/service"
	"github.com/chamapesa/chamapesa-backend/internal/websocket"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	client, err := mongodb.Connect(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect from database")
		}
	}()

	// Initialize repositories
	loanRepo := mongodb.NewLoanRepository(client)
	chamaRepo := mongodb.NewChamaRepository(client)
	userRepo := mongodb.NewUserRepository(client)
	contributionRepo := mongodb.NewContributionRepository(client)
	notificationRepo := mongodb.NewNotificationRepository(client)

	// Email delivery is disabled when SMTP_HOST is not set
	var mailer mail.Sender = mail.NewNoOpSender()
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPSender(cfg.SMTP)
		log.Info().Str("host", cfg.SMTP.Host).Msg("Email delivery enabled")
	}

	// Websocket hub for realtime events
	hub := websocket.NewHub()
	tokenValidator := websocket.NewTokenValidator(cfg.JWTSecret)

	// Initialize services
	notifier := service.NewNotificationService(notificationRepo, chamaRepo, userRepo, hub, mailer)
	loanService := service.NewLoanService(loanRepo, chamaRepo, client, notifier)
	contributionService := service.NewContributionService(contributionRepo, chamaRepo, notifier)

	// Receipt storage is disabled when S3 credentials are not configured
	var receiptStorage storage.ReceiptRepository
	if cfg.S3.AccessKeyID != "" {
		s3Repo, err := storage.NewS3ReceiptRepository(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize receipt storage")
		}
		receiptStorage = s3Repo
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Receipt storage enabled")
	}
	receiptService := service.NewReceiptService(receiptStorage)

	// Initialize middleware
	auth := middleware.NewJWTAuth(cfg.JWTSecret)
	rateLimiter := middleware.NewRateLimiter()

	// Initialize handlers
	loanHandler := handler.NewLoanHandler(loanService)
	contributionHandler := handler.NewContributionHandler(contributionService)
	receiptHandler := handler.NewReceiptHandler(receiptService)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	wsHandler := handler.NewWebSocketHandler(hub, tokenValidator, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Register API routes
	handler.RegisterRoutes(e, auth, rateLimiter, loanHandler, contributionHandler, receiptHandler, notificationHandler, wsHandler)

	// Background sweep that flips past-due loans to overdue
	sweeper := service.NewOverdueSweeper(loanService, cfg.SweepInterval)
	sweeper.Start()

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sweeper.Stop()
	rateLimiter.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain pending notification deliveries before dropping connections
	notifier.Close()
	hub.CloseAll()

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
