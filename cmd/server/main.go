// Package main runs the WebinarWins HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/webinarwins/backend/config"
	"github.com/webinarwins/backend/internal/attendees"
	"github.com/webinarwins/backend/internal/auth"
	"github.com/webinarwins/backend/internal/emails"
	"github.com/webinarwins/backend/internal/middleware"
	"github.com/webinarwins/backend/internal/webinars"
	"github.com/webinarwins/backend/pkg/database"
	"github.com/webinarwins/backend/pkg/mailer"
	"github.com/webinarwins/backend/pkg/oracle"
	"github.com/webinarwins/backend/pkg/queue"
	"github.com/webinarwins/backend/pkg/redis"
	"github.com/webinarwins/backend/pkg/response"
	"github.com/webinarwins/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Optional collaborators: the API starts without them and reports 503 where they are needed.
	var archive webinars.Archive
	if cfg.AWS.UploadsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.UploadsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("upload archive disabled", zap.Error(err))
		} else {
			archive = s3Client
		}
	}

	textOracle, err := oracle.New(ctx, oracle.Config{
		Provider:        cfg.AI.Provider,
		Model:           cfg.AI.Model,
		APIKey:          cfg.AI.GeminiAPIKey,
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	}, logger)
	if err != nil {
		logger.Warn("AI email generation disabled", zap.Error(err))
		textOracle = nil
	}

	channel, err := mailer.New(ctx, mailer.Config{
		Provider:        cfg.Email.Provider,
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		OAuth: mailer.OAuthCredentials{
			ClientID:     cfg.Email.GmailClientID,
			ClientSecret: cfg.Email.GmailClientSecret,
			RefreshToken: cfg.Email.GmailRefreshToken,
		},
		SMTPHost: cfg.Email.SMTPHost,
		SMTPPort: cfg.Email.SMTPPort,
		SMTPUser: cfg.Email.SMTPUser,
		SMTPPass: cfg.Email.SMTPPass,
	}, logger)
	if err != nil {
		logger.Warn("email delivery disabled", zap.Error(err))
		channel = nil
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, cfg.Generation.ReportTTL(), logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Webinars
	webinarRepo := webinars.NewRepository(pool)
	webinarService := webinars.NewService(webinarRepo, archive, logger)
	webinarHandler := webinars.NewHandler(webinarRepo, webinarService, int64(cfg.Server.MaxUploadMB)<<20, logger)

	// Attendees
	attendeeRepo := attendees.NewRepository(pool)
	attendeeHandler := attendees.NewHandler(attendeeRepo, attendees.NewService(attendeeRepo, logger), logger)

	// Emails
	emailRepo := emails.NewRepository(pool)
	generator := emails.NewGenerator(textOracle, emails.GeneratorConfigFrom(cfg.AI, cfg.Email.SenderName), logger)
	orchestrator := emails.NewOrchestrator(emailRepo, attendeeRepo, generator,
		cfg.Generation.BatchWidth, cfg.Generation.BatchTimeout(), logger)
	sender := emails.NewSender(emailRepo, attendeeRepo, channel, emails.SenderIdentity{
		FromName:  cfg.Email.FromName,
		FromEmail: cfg.Email.FromAddress,
	}, cfg.Generation.BatchWidth, logger)
	emailHandler := emails.NewHandler(emailRepo, orchestrator, sender, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{
			"status":       "ok",
			"ai_enabled":   textOracle != nil,
			"mail_enabled": channel != nil,
		})
	})

	v1 := router.Group("/api/v1")

	// Auth (public)
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := v1.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		api.GET("/webinars", webinarHandler.List)
		api.POST("/webinars", webinarHandler.Create)

		owned := api.Group("/webinars/:id", webinars.RequireOwner(webinarRepo))
		owned.GET("", webinarHandler.Get)
		owned.PATCH("", webinarHandler.Update)
		owned.DELETE("", webinarHandler.Delete)
		owned.GET("/uploads/:kind", webinarHandler.UploadURL)

		owned.GET("/attendees", attendeeHandler.ListByWebinar)
		owned.GET("/attendees/export", attendeeHandler.Export)
		owned.POST("/rescore", attendeeHandler.Rescore)

		owned.POST("/emails/generate", emailHandler.Generate)
		owned.GET("/emails", emailHandler.List)
		owned.GET("/emails/export", emailHandler.Export)
		owned.POST("/emails/send-no-show-template", emailHandler.SendNoShowTemplate)

		api.PATCH("/emails/:id", emailHandler.Update)
		api.POST("/emails/:id/send", emailHandler.Send)
		api.GET("/generation-jobs/:id", emailHandler.JobStatus)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
