// Package report materialises filtered protocol listings into a dataset and
// renders it as CSV or XLSX.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/policy"
	"github.com/adamscao/protocolreg/internal/stats"
)

const (
	displayDate = "02/01/2006"
	displayTime = "02/01/2006 15:04"
)

// Filter narrows a protocol report; zero values mean no constraint
type Filter struct {
	DateFrom     *time.Time
	DateTo       *time.Time
	Status       models.Status
	DocumentType string
}

// Validate rejects inverted date ranges and unknown statuses
func (f Filter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return &policy.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", f.Status)}
	}
	return policy.ValidateDateRange(f.DateFrom, f.DateTo)
}

// Describe renders the applied filters, empty when none are set
func (f Filter) Describe() string {
	var parts []string
	switch {
	case f.DateFrom != nil && f.DateTo != nil:
		parts = append(parts, fmt.Sprintf("Period: %s to %s", f.DateFrom.Format(displayDate), f.DateTo.Format(displayDate)))
	case f.DateFrom != nil:
		parts = append(parts, "From: "+f.DateFrom.Format(displayDate))
	case f.DateTo != nil:
		parts = append(parts, "Until: "+f.DateTo.Format(displayDate))
	}
	if f.Status != "" {
		parts = append(parts, "Status: "+string(f.Status))
	}
	if f.DocumentType != "" {
		parts = append(parts, "Type: "+f.DocumentType)
	}
	return strings.Join(parts, " | ")
}

// ProtocolFilter converts the report filter into a registry listing filter
func (f Filter) ProtocolFilter() models.ProtocolFilter {
	return models.ProtocolFilter{
		DateFrom:     f.DateFrom,
		DateTo:       f.DateTo,
		Status:       f.Status,
		DocumentType: f.DocumentType,
	}
}

// Row is one protocol line of a report
type Row struct {
	ProtocolNumber string
	Title          string
	Description    string
	DocumentType   string
	Status         string
	Requester      string
	CreatedBy      string
	ProtocolDate   string
	DueDate        string
}

// Report is the materialised dataset handed to renderers
type Report struct {
	Title       string
	Filters     string
	GeneratedAt time.Time
	Rows        []Row
	Summary     []stats.TypeShare
}

// Build applies filter to protocols and assembles the report
func Build(protocols []*models.Protocol, filter Filter, now time.Time) *Report {
	var selected []*models.Protocol
	for _, p := range protocols {
		if filter.matches(p) {
			selected = append(selected, p)
		}
	}

	r := &Report{
		Title:       "Protocol Report",
		Filters:     filter.Describe(),
		GeneratedAt: now,
		Rows:        make([]Row, 0, len(selected)),
		Summary:     stats.ShareByType(selected),
	}
	for _, p := range selected {
		row := Row{
			ProtocolNumber: p.ProtocolNumber,
			Title:          p.Title,
			Description:    p.Description,
			DocumentType:   p.DocumentType,
			Status:         string(p.Status),
			Requester:      p.RequesterName,
			CreatedBy:      p.CreatorName,
			ProtocolDate:   p.ProtocolDate.Format(displayDate),
		}
		if p.DueDate != nil {
			row.DueDate = p.DueDate.Format(displayDate)
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}

func (f Filter) matches(p *models.Protocol) bool {
	day := p.ProtocolDate.Format("2006-01-02")
	if f.DateFrom != nil && day < f.DateFrom.Format("2006-01-02") {
		return false
	}
	if f.DateTo != nil && day > f.DateTo.Format("2006-01-02") {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.DocumentType != "" && p.DocumentType != f.DocumentType {
		return false
	}
	return true
}

// FileName returns protocol_report[_from_to]_YYYYMMDD_HHMMSS.<ext>
func (r *Report) FileName(filter Filter, ext string) string {
	name := "protocol_report"
	if filter.DateFrom != nil && filter.DateTo != nil {
		name += "_" + filter.DateFrom.Format("20060102") + "_" + filter.DateTo.Format("20060102")
	}
	return fmt.Sprintf("%s_%s.%s", name, r.GeneratedAt.Format("20060102_150405"), ext)
}

var rowHeader = []string{"Protocol No.", "Title", "Description", "Type", "Status", "Requester", "Created by", "Date", "Due date"}

func (row Row) values() []string {
	return []string{
		row.ProtocolNumber, row.Title, row.Description, row.DocumentType, row.Status,
		row.Requester, row.CreatedBy, row.ProtocolDate, row.DueDate,
	}
}
