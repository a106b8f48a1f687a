// Package main runs the background email generation worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/webinarwins/backend/config"
	"github.com/webinarwins/backend/internal/attendees"
	"github.com/webinarwins/backend/internal/emails"
	"github.com/webinarwins/backend/internal/webinars"
	"github.com/webinarwins/backend/internal/worker"
	"github.com/webinarwins/backend/pkg/database"
	"github.com/webinarwins/backend/pkg/oracle"
	"github.com/webinarwins/backend/pkg/queue"
	"github.com/webinarwins/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	textOracle, err := oracle.New(ctx, oracle.Config{
		Provider:        cfg.AI.Provider,
		Model:           cfg.AI.Model,
		APIKey:          cfg.AI.GeminiAPIKey,
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	}, logger)
	if err != nil {
		logger.Warn("AI email generation disabled; only template jobs will succeed", zap.Error(err))
		textOracle = nil
	}

	emailRepo := emails.NewRepository(pool)
	attendeeRepo := attendees.NewRepository(pool)
	generator := emails.NewGenerator(textOracle, emails.GeneratorConfigFrom(cfg.AI, cfg.Email.SenderName), logger)
	orchestrator := emails.NewOrchestrator(emailRepo, attendeeRepo, generator,
		cfg.Generation.BatchWidth, cfg.Generation.BatchTimeout(), logger)

	jobQueue := queue.NewQueue(rdb.Client, cfg.Generation.ReportTTL(), logger)
	processor := worker.NewGenerationProcessor(jobQueue, webinars.NewRepository(pool), orchestrator, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started", zap.Int("batch_width", cfg.Generation.BatchWidth))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
