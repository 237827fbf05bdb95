package handlers

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/api/middleware"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/policy"
	"github.com/adamscao/protocolreg/internal/report"
)

// AuditHandler exposes the audit log to administrators
type AuditHandler struct {
	log    *audit.Log
	logger *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(log *audit.Log, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{log: log, logger: logger}
}

func (h *AuditHandler) filter(c *gin.Context) (models.AuditFilter, int, error) {
	from, to, err := parseQueryDates(c)
	if err != nil {
		return models.AuditFilter{}, 0, err
	}

	filter := models.AuditFilter{
		AffectedTable: c.Query("table"),
		Action:        c.Query("action"),
		DateFrom:      from,
		DateTo:        to,
	}
	if v := c.Query("actor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.AuditFilter{}, 0, &policy.ValidationError{Field: "actor_id", Message: "must be an integer"}
		}
		filter.ActorUserID = &id
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return models.AuditFilter{}, 0, &policy.ValidationError{Field: "limit", Message: "must be an integer"}
		}
	}
	return filter, limit, nil
}

// List queries the audit log
// GET /v1/audit
func (h *AuditHandler) List(c *gin.Context) {
	filter, limit, err := h.filter(c)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}

	entries, err := h.log.Query(c.Request.Context(), filter, limit)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*models.LogEntry{}
	}
	RespondSuccess(c, entries)
}

// Stats returns the audit aggregates
// GET /v1/audit/stats
func (h *AuditHandler) Stats(c *gin.Context) {
	stats, err := h.log.Aggregate(c.Request.Context())
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}
	RespondSuccess(c, stats)
}

// Export streams the filtered audit log as CSV and records the export
// GET /v1/audit/export.csv
func (h *AuditHandler) Export(c *gin.Context) {
	filter, limit, err := h.filter(c)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}

	entries, err := h.log.Query(c.Request.Context(), filter, limit)
	if err != nil {
		RespondRegistryError(c, h.logger, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"audit_log_%s.csv\"",
		time.Now().Format("20060102_150405")))

	if err := report.WriteAuditCSV(c.Writer, entries); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "audit export failed", "error", err)
		return
	}

	h.log.Write(c.Request.Context(), audit.Entry{
		Actor:   middleware.Actor(c),
		Action:  models.ActionExport,
		Table:   models.TableAuditLog,
		Details: map[string]any{"rows": len(entries), "format": "csv"},
	})
}
