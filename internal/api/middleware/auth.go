package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/policy"
	"github.com/adamscao/protocolreg/internal/registry"
)

const (
	actorKey = "actor"
	userKey  = "currentUser"
)

// Authenticator resolves bearer tokens into actors
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string, meta models.Actor) (models.Actor, *models.User, error)
}

// Auth middleware requires a valid session token
func Auth(authn Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Bearer token required",
			})
			c.Abort()
			return
		}

		actor, user, err := authn.Authenticate(c.Request.Context(), raw, RequestMeta(c))
		if err != nil {
			if !errors.Is(err, registry.ErrInvalidSession) {
				logger.ErrorContext(c.Request.Context(), "session lookup failed", "error", err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid or expired session",
			})
			c.Abort()
			return
		}

		c.Set(actorKey, actor)
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireRole middleware rejects actors whose role does not satisfy required
func RequireRole(required models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.Allows(required, Actor(c).Role) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Insufficient permissions",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Actor returns the authenticated actor, or the zero actor on public routes
func Actor(c *gin.Context) models.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return RequestMeta(c)
}

// CurrentUser returns the account loaded by Auth
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// RequestMeta captures the client address and agent of the request
func RequestMeta(c *gin.Context) models.Actor {
	return models.Actor{
		SourceIP:    GetClientIP(c),
		ClientAgent: c.GetHeader("User-Agent"),
	}
}

// GetClientIP gets the real client IP address
func GetClientIP(c *gin.Context) string {
	// Try X-Forwarded-For header first (for proxied requests)
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		first, _, _ := strings.Cut(ip, ",")
		return strings.TrimSpace(first)
	}

	// Try X-Real-IP header
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	return c.ClientIP()
}
