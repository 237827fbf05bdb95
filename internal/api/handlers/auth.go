package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/api/middleware"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/registry"
)

// AuthHandler handles login and logout
type AuthHandler struct {
	identity *registry.Identity
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(identity *registry.Identity, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, logger: logger}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
	OTP      string `json:"otp"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login verifies credentials and issues a session token
// POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.identity.Login(c.Request.Context(), registry.Credentials{
		Login:    req.Login,
		Password: req.Password,
		OTP:      req.OTP,
	}, middleware.RequestMeta(c))
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}

	RespondSuccess(c, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.User,
	})
}

// Logout revokes the current session
// POST /v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.identity.Logout(c.Request.Context(), middleware.Actor(c)); err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated account
// GET /v1/me
func (h *AuthHandler) Me(c *gin.Context) {
	RespondSuccess(c, middleware.CurrentUser(c))
}
