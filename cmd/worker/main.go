package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/logger"
	"storybook-server/internal/messaging"
	"storybook-server/internal/pipeline"
	"storybook-server/internal/repository"
	"storybook-server/internal/service"
	"storybook-server/internal/status"
	"storybook-server/internal/worker"
)

const (
	serviceName         = "storybook-worker"
	metricsPushInterval = 15 * time.Second
	shutdownGracePeriod = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	zapLogger, err := logger.New(cfg.Logger, serviceName)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := cfg.ValidateForWorker(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}
	zapLogger.Info("Starting storybook worker",
		zap.String("env", cfg.AppEnv),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("repository", cfg.Database.Driver),
		zap.Int("pipeline_workers", cfg.Pipeline.Workers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := repository.Open(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open storybook repository", zap.Error(err))
	}
	defer closeRepo()

	redisClient, err := status.Connect(ctx, cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	statusStore := status.NewStore(redisClient, cfg.Redis, zapLogger)

	mqConn, err := messaging.Dial(ctx, cfg.RabbitMQ.URL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()
	publisher, err := messaging.NewPublisher(mqConn, cfg.RabbitMQ, serviceName, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create publisher", zap.Error(err))
	}
	defer publisher.Close()

	aiClient, err := service.NewAIClient(cfg.AI, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create AI client", zap.Error(err))
	}
	flows := service.NewStoryFlows(aiClient, cfg.AI, zapLogger)
	caps := pipeline.Capabilities{
		Rewriter: flows,
		Images:   service.NewOpenAIImageGenerator(cfg.AI, zapLogger),
		Verifier: flows,
		Dialogue: flows,
		Speech:   service.NewOpenAISpeechSynthesizer(cfg.AI, zapLogger),
		Animator: service.NewGIFAnimator(cfg.Pipeline, zapLogger),
	}

	scheduler, err := pipeline.NewScheduler(cfg.Pipeline.Workers, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create pipeline scheduler", zap.Error(err))
	}
	defer scheduler.Release()

	reporter := worker.NewStatusReporter(statusStore, zapLogger)
	sink := worker.NewStorybookSink(repo, cfg.Worker, zapLogger)
	orchestrator := pipeline.NewOrchestrator(cfg.Pipeline, caps, scheduler, reporter, sink, zapLogger)
	handler := worker.NewHandler(orchestrator, reporter, statusStore, publisher, zapLogger)
	consumer := messaging.NewConsumer(cfg.RabbitMQ, handler, zapLogger)

	metricsServer := worker.NewMetricsServer(cfg.Worker.MetricsPort)
	go func() {
		zapLogger.Info("Starting metrics server", zap.String("port", cfg.Worker.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	if cfg.Worker.PushGatewayURL != "" {
		go worker.RunMetricsPusher(ctx, cfg.Worker.PushGatewayURL, metricsPushInterval, zapLogger)
	}

	zapLogger.Info("Waiting for generation tasks", zap.String("queue", cfg.RabbitMQ.TaskQueue.Name))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("Consumer stopped with error", zap.Error(err))
	}

	zapLogger.Info("Shutting down storybook worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("Metrics server shutdown failed", zap.Error(err))
	}
	zapLogger.Info("Storybook worker stopped")
}
