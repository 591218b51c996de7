package api

import (
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"storybook-server/internal/config"
)

// RequestLogger логирует запросы через zap. /health и /metrics не логируются.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID),
		}
		if userID := userIDFrom(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
			log.Error("Request error", append(fields, zap.Error(ginErr.Err))...)
		}
		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	return cors.New(corsConfig)
}

// UsePrometheus вешает сбор HTTP-метрик и эндпоинт /metrics.
func UsePrometheus(router *gin.Engine) {
	p := ginprometheus.NewPrometheus("gin")
	// Разные id книг не должны плодить отдельные серии
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		if route := c.FullPath(); route != "" {
			return route
		}
		return "unmatched"
	}
	p.Use(router)
}

// CreateRateLimit ограничивает создание книг на пользователя.
func CreateRateLimit(client *redis.Client, cfg config.HTTPConfig, logger *zap.Logger) gin.HandlerFunc {
	store := ratelimit.RedisStore(&ratelimit.RedisOptions{
		RedisClient: client,
		Rate:        time.Minute,
		Limit:       uint(max(cfg.CreateRatePerMinute, 1)),
	})
	return rateLimiter(store, logger)
}

func rateLimiter(store ratelimit.Store, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("RateLimiter")
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			log.Warn("Rate limit exceeded",
				zap.String("user_id", userIDFrom(c)),
				zap.String("client_ip", c.ClientIP()),
				zap.Time("reset_time", info.ResetTime))
			c.Header("Retry-After", time.Until(info.ResetTime).Round(time.Second).String())
			abortWithError(c, http.StatusTooManyRequests, "too many requests, try again later")
		},
		KeyFunc: func(c *gin.Context) string {
			if userID := userIDFrom(c); userID != "" {
				return "user:" + userID
			}
			return "ip:" + c.ClientIP()
		},
	})
}
