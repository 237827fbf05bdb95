package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	protocolsSheet = "Protocols"
	summarySheet   = "Summary"
)

// WriteXLSX renders the report as a workbook with a Protocols and a Summary sheet
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the protocol listing
	if err := f.SetSheetName("Sheet1", protocolsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F3864"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	f.SetCellValue(protocolsSheet, "A1", r.Title)
	f.SetCellValue(protocolsSheet, "A2", "Generated at: "+r.GeneratedAt.Format(displayTime))
	f.SetCellValue(protocolsSheet, "A3", fmt.Sprintf("Total protocols: %d", len(r.Rows)))
	if r.Filters != "" {
		f.SetCellValue(protocolsSheet, "A4", "Filters: "+r.Filters)
	}

	const headerRow = 6
	if err := f.SetSheetRow(protocolsSheet, fmt.Sprintf("A%d", headerRow), &rowHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	f.SetCellStyle(protocolsSheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("I%d", headerRow), header)

	for i, row := range r.Rows {
		values := row.values()
		if err := f.SetSheetRow(protocolsSheet, fmt.Sprintf("A%d", headerRow+1+i), &values); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	f.SetColWidth(protocolsSheet, "A", "A", 16)
	f.SetColWidth(protocolsSheet, "B", "C", 40)
	f.SetColWidth(protocolsSheet, "D", "E", 14)
	f.SetColWidth(protocolsSheet, "F", "G", 22)
	f.SetColWidth(protocolsSheet, "H", "I", 12)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summaryHeader := []string{"Type", "Count", "Percent"}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeader); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	f.SetCellStyle(summarySheet, "A1", "C1", header)
	for i, share := range r.Summary {
		rowNum := i + 2
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", rowNum), share.DocumentType)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", rowNum), share.Count)
		f.SetCellValue(summarySheet, fmt.Sprintf("C%d", rowNum), fmt.Sprintf("%.1f%%", share.Percent))
	}
	f.SetColWidth(summarySheet, "A", "A", 20)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
