package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate reports",
}

var reportProtocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "Render the protocol report as XLSX or CSV",
	RunE:  reportProtocols,
}

var (
	reportFormat string
	reportFrom   string
	reportTo     string
	reportStatus string
	reportType   string
)

func init() {
	reportProtocolsCmd.Flags().StringVarP(&reportFormat, "format", "f", "xlsx", "Output format: xlsx or csv")
	reportProtocolsCmd.Flags().StringVar(&reportFrom, "from", "", "First protocol date (YYYY-MM-DD)")
	reportProtocolsCmd.Flags().StringVar(&reportTo, "to", "", "Last protocol date (YYYY-MM-DD)")
	reportProtocolsCmd.Flags().StringVar(&reportStatus, "status", "", "Filter by status")
	reportProtocolsCmd.Flags().StringVar(&reportType, "type", "", "Filter by document type")
	reportProtocolsCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: generated name)")

	reportCmd.AddCommand(reportProtocolsCmd)
}

func reportProtocols(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format := strings.ToLower(reportFormat)
	if format != "xlsx" && format != "csv" {
		return fmt.Errorf("--format must be xlsx or csv")
	}

	from, err := parseDay("from", reportFrom)
	if err != nil {
		return err
	}
	to, err := parseDay("to", reportTo)
	if err != nil {
		return err
	}
	filter := report.Filter{
		DateFrom:     from,
		DateTo:       to,
		Status:       models.Status(reportStatus),
		DocumentType: reportType,
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	protocols, err := a.Registry.Protocols.List(ctx, filter.ProtocolFilter())
	if err != nil {
		return fmt.Errorf("failed to list protocols: %w", err)
	}
	rep := report.Build(protocols, filter, a.Registry.Audit.Now())

	path := outputPath
	if path == "" {
		path = rep.FileName(filter, format)
	}
	w, closeFn, err := openOutput(path)
	if err != nil {
		return err
	}

	if format == "xlsx" {
		err = report.WriteXLSX(w, rep)
	} else {
		err = report.WriteCSV(w, rep)
	}
	if cerr := closeFn(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	a.Registry.Audit.Write(ctx, audit.Entry{
		Actor:   cliActor(),
		Action:  models.ActionExport,
		Table:   models.TableProtocols,
		Details: map[string]any{"rows": len(rep.Rows), "format": format, "filters": rep.Filters},
	})

	fmt.Printf("Wrote %d protocols to %s\n", len(rep.Rows), path)
	return nil
}
