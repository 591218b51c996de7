package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

var (
	ErrTokenMissing = errors.New("authorization token is required")
	ErrTokenInvalid = errors.New("invalid or expired token")
)

// TokenVerifier проверяет HMAC-подписанные JWT и возвращает ID пользователя (sub).
type TokenVerifier struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

func NewTokenVerifier(secret, issuer string, logger *zap.Logger) (*TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, logger: logger.Named("TokenVerifier")}, nil
}

func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}
	return claims.Subject, nil
}

// AuthMiddleware кладет ID пользователя в контекст gin. Токен берется из
// заголовка Authorization, для websocket допускается query-параметр token.
func AuthMiddleware(verifier *TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, ErrTokenMissing.Error())
			return
		}
		userID, err := verifier.Verify(token)
		if err != nil {
			log.Warn("Token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abortWithError(c, http.StatusUnauthorized, ErrTokenInvalid.Error())
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(userIDKey)
}
