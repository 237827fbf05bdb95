package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/api/middleware"
	"github.com/adamscao/protocolreg/internal/registry"
)

// DashboardHandler serves the home page figures
type DashboardHandler struct {
	stats  *registry.Stats
	logger *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(stats *registry.Stats, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{stats: stats, logger: logger}
}

// Get returns the dashboard
// GET /v1/dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	dash, err := h.stats.Dashboard(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, dash)
}
