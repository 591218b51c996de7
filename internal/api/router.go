package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storybook-server/internal/config"
)

// NewRouter собирает gin.Engine со всеми маршрутами API. Метрики
// подключаются отдельно через UsePrometheus.
func NewRouter(cfg config.HTTPConfig, handler *StorybookHandler, verifier *TokenVerifier, createLimit gin.HandlerFunc, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(RequestLogger(logger.Named("HTTP")))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	RegisterCatalogRoutes(v1.Group("/catalog"))
	handler.RegisterRoutes(v1.Group("/storybooks", AuthMiddleware(verifier, logger)), createLimit)
	return router
}
