package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/api/middleware"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/policy"
	"github.com/adamscao/protocolreg/internal/registry"
)

// UserHandler handles account administration
type UserHandler struct {
	identity *registry.Identity
	logger   *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(identity *registry.Identity, logger *slog.Logger) *UserHandler {
	return &UserHandler{identity: identity, logger: logger}
}

// UpdateUserRequest represents a profile update. Active is a pointer so an
// omitted field is distinguishable from false.
type UpdateUserRequest struct {
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	Role        models.Role `json:"role"`
	Active      *bool       `json:"active" binding:"required"`
}

// SetPasswordRequest represents a password change
type SetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// List lists all users
// GET /v1/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.identity.List(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	RespondSuccess(c, users)
}

// Get returns one user; non-admins may only read their own account
// GET /v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !policy.CanManageAccount(middleware.Actor(c), id) {
		RespondRegistryError(c, h.logger, registry.ErrForbidden)
		return
	}

	user, err := h.identity.Get(c.Request.Context(), id)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, user)
}

// Create creates a new user
// POST /v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req models.NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	user, err := h.identity.Create(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Update updates a user's profile, role and activation
// PUT /v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.identity.Update(c.Request.Context(), middleware.Actor(c), id, models.UserUpdate{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        req.Role,
		Active:      *req.Active,
	})
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, user)
}

// SetPassword changes a user's password
// PUT /v1/users/:id/password
func (h *UserHandler) SetPassword(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.identity.SetPassword(c.Request.Context(), middleware.Actor(c), id, req.Password); err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete deletes a user
// DELETE /v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.identity.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EnableTOTP enrols a second factor
// POST /v1/users/:id/totp
func (h *UserHandler) EnableTOTP(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	url, err := h.identity.EnableTOTP(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, gin.H{"totp_qr_url": url})
}

// DisableTOTP removes the second factor
// DELETE /v1/users/:id/totp
func (h *UserHandler) DisableTOTP(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.identity.DisableTOTP(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
