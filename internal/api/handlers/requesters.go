package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/api/middleware"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/registry"
)

// RequesterHandler handles requester CRUD
type RequesterHandler struct {
	requesters *registry.Requesters
	logger     *slog.Logger
}

// NewRequesterHandler creates a new requester handler
func NewRequesterHandler(requesters *registry.Requesters, logger *slog.Logger) *RequesterHandler {
	return &RequesterHandler{requesters: requesters, logger: logger}
}

// List lists requesters by name
// GET /v1/requesters
func (h *RequesterHandler) List(c *gin.Context) {
	list, err := h.requesters.List(c.Request.Context())
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []*models.Requester{}
	}
	RespondSuccess(c, list)
}

// Get returns one requester
// GET /v1/requesters/:id
func (h *RequesterHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	req, err := h.requesters.Get(c.Request.Context(), id)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, req)
}

// Create creates a requester
// POST /v1/requesters
func (h *RequesterHandler) Create(c *gin.Context) {
	var in models.RequesterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	req, err := h.requesters.Create(c.Request.Context(), middleware.Actor(c), in)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// Update replaces a requester's fields
// PUT /v1/requesters/:id
func (h *RequesterHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var in models.RequesterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	req, err := h.requesters.Update(c.Request.Context(), middleware.Actor(c), id, in)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, req)
}

// Delete deletes a requester
// DELETE /v1/requesters/:id
func (h *RequesterHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.requesters.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
