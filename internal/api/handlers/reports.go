package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/api/middleware"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/registry"
	"github.com/adamscao/protocolreg/internal/report"
)

// ReportHandler renders protocol reports
type ReportHandler struct {
	protocols *registry.Protocols
	log       *audit.Log
	logger    *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(protocols *registry.Protocols, log *audit.Log, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{protocols: protocols, log: log, logger: logger}
}

// Protocols renders the filtered protocol report as xlsx or csv
// GET /v1/reports/protocols.xlsx, /v1/reports/protocols.csv
func (h *ReportHandler) Protocols(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := parseQueryDates(c)
		if err != nil {
			RespondRegistryError(c, h.logger, err)
			return
		}
		filter := report.Filter{
			DateFrom:     from,
			DateTo:       to,
			Status:       models.Status(c.Query("status")),
			DocumentType: c.Query("document_type"),
		}
		if err := filter.Validate(); err != nil {
			RespondRegistryError(c, h.logger, err)
			return
		}

		protocols, err := h.protocols.List(c.Request.Context(), filter.ProtocolFilter())
		if err != nil {
			RespondRegistryError(c, h.logger, err)
			return
		}
		rep := report.Build(protocols, filter, h.log.Now())

		var buf bytes.Buffer
		var contentType string
		switch format {
		case "xlsx":
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			err = report.WriteXLSX(&buf, rep)
		default:
			format = "csv"
			contentType = "text/csv; charset=utf-8"
			err = report.WriteCSV(&buf, rep)
		}
		if err != nil {
			RespondRegistryError(c, h.logger, err)
			return
		}

		h.log.Write(c.Request.Context(), audit.Entry{
			Actor:   middleware.Actor(c),
			Action:  models.ActionExport,
			Table:   models.TableProtocols,
			Details: map[string]any{"rows": len(rep.Rows), "format": format, "filters": rep.Filters},
		})

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", rep.FileName(filter, format)))
		c.Data(http.StatusOK, contentType, buf.Bytes())
	}
}
