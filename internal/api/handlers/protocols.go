package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/api/middleware"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/policy"
	"github.com/adamscao/protocolreg/internal/registry"
)

// ProtocolHandler handles protocol registration and lifecycle
type ProtocolHandler struct {
	protocols *registry.Protocols
	logger    *slog.Logger
}

// NewProtocolHandler creates a new protocol handler
func NewProtocolHandler(protocols *registry.Protocols, logger *slog.Logger) *ProtocolHandler {
	return &ProtocolHandler{protocols: protocols, logger: logger}
}

// ProtocolRequest is the body of create and update calls. Dates use YYYY-MM-DD.
type ProtocolRequest struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	DocumentType string        `json:"document_type"`
	Status       models.Status `json:"status"`
	ProtocolDate string        `json:"protocol_date"`
	DueDate      string        `json:"due_date"`
	RequesterID  int64         `json:"requester_id"`
	Notes        string        `json:"notes"`
}

func (r ProtocolRequest) input() (models.ProtocolInput, error) {
	protocolDate, err := parseDate("protocol_date", r.ProtocolDate)
	if err != nil {
		return models.ProtocolInput{}, err
	}
	dueDate, err := parseDate("due_date", r.DueDate)
	if err != nil {
		return models.ProtocolInput{}, err
	}
	return models.ProtocolInput{
		Title:        r.Title,
		Description:  r.Description,
		DocumentType: r.DocumentType,
		Status:       r.Status,
		ProtocolDate: protocolDate,
		DueDate:      dueDate,
		RequesterID:  r.RequesterID,
		Notes:        r.Notes,
	}, nil
}

// ProtocolView adds the caller's edit permission to a protocol
type ProtocolView struct {
	*models.Protocol
	CanEdit bool `json:"can_edit"`
}

func (h *ProtocolHandler) view(actor models.Actor, p *models.Protocol) ProtocolView {
	return ProtocolView{Protocol: p, CanEdit: h.protocols.CanEdit(actor, p)}
}

// List lists protocols. scope=mine restricts to the caller's own protocols.
// GET /v1/protocols
func (h *ProtocolHandler) List(c *gin.Context) {
	from, to, err := parseQueryDates(c)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}

	filter := models.ProtocolFilter{
		DocumentType: c.Query("document_type"),
		Status:       models.Status(c.Query("status")),
		Search:       c.Query("q"),
		DateFrom:     from,
		DateTo:       to,
	}
	if v := c.Query("requester_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			RespondRegistryError(c, h.logger, &policy.ValidationError{Field: "requester_id", Message: "must be an integer"})
			return
		}
		filter.RequesterID = id
	}

	actor := middleware.Actor(c)
	var list []*models.Protocol
	switch c.DefaultQuery("scope", "all") {
	case "mine":
		list, err = h.protocols.ListOwned(c.Request.Context(), actor, filter)
	case "all":
		list, err = h.protocols.List(c.Request.Context(), filter)
	default:
		RespondError(c, http.StatusBadRequest, "invalid_request", "scope must be 'all' or 'mine'")
		return
	}
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}

	views := make([]ProtocolView, 0, len(list))
	for _, p := range list {
		views = append(views, h.view(actor, p))
	}
	RespondSuccess(c, views)
}

// Get returns one protocol
// GET /v1/protocols/:id
func (h *ProtocolHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := h.protocols.Get(c.Request.Context(), id)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, h.view(middleware.Actor(c), p))
}

// Create registers a protocol
// POST /v1/protocols
func (h *ProtocolHandler) Create(c *gin.Context) {
	var req ProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	in, err := req.input()
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}

	actor := middleware.Actor(c)
	p, err := h.protocols.Create(c.Request.Context(), actor, in)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(actor, p))
}

// Update replaces a protocol's mutable fields
// PUT /v1/protocols/:id
func (h *ProtocolHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	in, err := req.input()
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}

	actor := middleware.Actor(c)
	p, err := h.protocols.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, h.view(actor, p))
}

// Delete deletes a protocol
// DELETE /v1/protocols/:id
func (h *ProtocolHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.protocols.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateNumber reserves the next protocol number
// POST /v1/protocols/number
func (h *ProtocolHandler) GenerateNumber(c *gin.Context) {
	number, err := h.protocols.GenerateNumber(c.Request.Context())
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, gin.H{"protocol_number": number})
}

// Options returns the selectable document types and statuses
// GET /v1/protocols/options
func (h *ProtocolHandler) Options(c *gin.Context) {
	RespondSuccess(c, gin.H{
		"document_types": h.protocols.DocumentTypes(),
		"statuses":       models.Statuses,
	})
}
