package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/adamscao/protocolreg/internal/models"
)

// utf8BOM lets spreadsheet applications detect the encoding
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV renders the protocol rows as CSV
func WriteCSV(w io.Writer, r *Report) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(rowHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range r.Rows {
		if err := writer.Write(row.values()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

var auditHeader = []string{"timestamp", "actor", "action", "affected_table", "affected_record_id", "status", "source_ip", "details"}

// WriteAuditCSV renders audit entries as CSV
func WriteAuditCSV(w io.Writer, entries []*models.LogEntry) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(auditHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range entries {
		actor := "unknown"
		if e.ActorName != nil {
			actor = *e.ActorName
		}
		record := ""
		if e.AffectedRecordID != nil {
			record = strconv.FormatInt(*e.AffectedRecordID, 10)
		}
		err := writer.Write([]string{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			actor,
			e.Action,
			e.AffectedTable,
			record,
			e.Status,
			e.SourceIP,
			e.Details,
		})
		if err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
