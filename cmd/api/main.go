package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storybook-server/internal/api"
	"storybook-server/internal/config"
	"storybook-server/internal/logger"
	"storybook-server/internal/messaging"
	"storybook-server/internal/repository"
	"storybook-server/internal/status"
)

const serviceName = "storybook-api"

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

	if err := cfg.ValidateForAPI(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}

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

	verifier, err := api.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create token verifier", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.AppEnv == "development" {
		gin.SetMode(gin.DebugMode)
	}
	handler := api.NewStorybookHandler(repo, publisher, statusStore, cfg.HTTP, zapLogger)
	router := api.NewRouter(cfg.HTTP, handler, verifier, api.CreateRateLimit(redisClient, cfg.HTTP, zapLogger), zapLogger)
	api.UsePrometheus(router)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("HTTP server stopped")
}
