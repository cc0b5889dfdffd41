package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/noro/control-plane/internal/infrastructure/auth"
	"github.com/noro/control-plane/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Context keys for authenticated request data
const (
	ClaimsKey     = "auth_claims"
	UserIDKey     = "auth_user_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// AuthConfig holds configuration for the token middleware
type AuthConfig struct {
	Verifier *auth.TokenVerifier
	// SkipPaths are exact paths that bypass authentication. Webhook
	// endpoints authenticate with provider signatures instead.
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that bypass authentication
	SkipPathPrefixes []string
	Logger           *zap.Logger
}

// Auth creates token verification middleware. Valid claims are stored on
// the gin context and stamped into the request logger.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, cfg, nil, "Missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, BearerPrefix)
		if tokenString == "" {
			abortUnauthorized(c, cfg, nil, "Missing bearer token")
			return
		}

		claims, err := cfg.Verifier.Verify(tokenString)
		if err != nil {
			abortUnauthorized(c, cfg, err, "Token validation failed")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.Subject)

		ctx := c.Request.Context()
		ctx, _ = logger.WithActorID(ctx, logger.FromContext(ctx), claims.Subject)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, cfg AuthConfig, err error, message string) {
	if cfg.Logger != nil {
		cfg.Logger.Warn("authentication failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("reason", message),
			zap.Error(err),
		)
	}

	code := "UNAUTHORIZED"
	if err == auth.ErrExpiredToken {
		code = "TOKEN_EXPIRED"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": "Authentication required",
		},
	})
}

// GetClaims retrieves verified token claims from the gin context
func GetClaims(c *gin.Context) *auth.Claims {
	if v, exists := c.Get(ClaimsKey); exists {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetUserID retrieves the authenticated user id from the gin context
func GetUserID(c *gin.Context) string {
	if v, exists := c.Get(UserIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
