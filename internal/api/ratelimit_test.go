package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiter_PerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Minute, Limit: 1})
	router := gin.New()
	router.POST("/create", func(c *gin.Context) {
		c.Set(userIDKey, c.GetHeader("X-User"))
		c.Next()
	}, rateLimiter(store, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/create", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusAccepted, call("user-1"))
	assert.Equal(t, http.StatusTooManyRequests, call("user-1"))
	assert.Equal(t, http.StatusAccepted, call("user-2"))
}

func TestTokenVerifier(t *testing.T) {
	_, err := NewTokenVerifier("", "", zap.NewNop())
	assert.Error(t, err)

	v, err := NewTokenVerifier("secret", "storybook-auth", zap.NewNop())
	assert.NoError(t, err)
	_, err = v.Verify("garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
