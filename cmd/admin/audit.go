package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/report"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries, newest first",
	RunE:  listAudit,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show audit aggregates",
	RunE:  auditStats,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries as CSV",
	RunE:  exportAudit,
}

var (
	auditTable  string
	auditAction string
	auditActor  int64
	auditFrom   string
	auditTo     string
	auditLimit  int
	outputPath  string
)

func init() {
	for _, c := range []*cobra.Command{auditListCmd, auditExportCmd} {
		c.Flags().StringVar(&auditTable, "table", "", "Filter by affected table")
		c.Flags().StringVar(&auditAction, "action", "", "Filter by action")
		c.Flags().Int64Var(&auditActor, "actor", 0, "Filter by acting user ID")
		c.Flags().StringVar(&auditFrom, "from", "", "First day (YYYY-MM-DD)")
		c.Flags().StringVar(&auditTo, "to", "", "Last day (YYYY-MM-DD)")
		c.Flags().IntVar(&auditLimit, "limit", 0, "Maximum number of entries")
	}
	auditExportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditStatsCmd)
	auditCmd.AddCommand(auditExportCmd)
}

func auditFilter() (models.AuditFilter, error) {
	from, err := parseDay("from", auditFrom)
	if err != nil {
		return models.AuditFilter{}, err
	}
	to, err := parseDay("to", auditTo)
	if err != nil {
		return models.AuditFilter{}, err
	}

	filter := models.AuditFilter{
		AffectedTable: auditTable,
		Action:        auditAction,
		DateFrom:      from,
		DateTo:        to,
	}
	if auditActor != 0 {
		filter.ActorUserID = &auditActor
	}
	return filter, nil
}

func listAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	filter, err := auditFilter()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.Registry.Audit.Query(ctx, filter, auditLimit)
	if err != nil {
		return fmt.Errorf("failed to query audit log: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries found")
		return nil
	}

	fmt.Printf("%-6s %-20s %-20s %-15s %-13s %-8s %-7s %s\n", "ID", "Timestamp", "Actor", "Action", "Table", "Record", "Status", "Details")
	for _, e := range entries {
		actor := "-"
		if e.ActorName != nil {
			actor = *e.ActorName
		}
		record := "-"
		if e.AffectedRecordID != nil {
			record = fmt.Sprintf("%d", *e.AffectedRecordID)
		}
		fmt.Printf("%-6d %-20s %-20s %-15s %-13s %-8s %-7s %s\n",
			e.ID,
			e.Timestamp.Format("2006-01-02 15:04:05"),
			actor,
			e.Action,
			e.AffectedTable,
			record,
			e.Status,
			e.Details,
		)
	}

	return nil
}

func auditStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Registry.Audit.Aggregate(ctx)
	if err != nil {
		return fmt.Errorf("failed to aggregate audit log: %w", err)
	}

	printCounts("By action", stats.ByAction)
	printCounts("By actor", stats.ByActor)
	printCounts("By day (last 30 days)", stats.ByDay)
	return nil
}

func printCounts(title string, counts []models.Count) {
	fmt.Printf("\n%s\n", title)
	if len(counts) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, c := range counts {
		label := c.Key
		if c.ActorUserID != nil {
			label = fmt.Sprintf("%s (id %d)", c.Key, *c.ActorUserID)
		}
		fmt.Printf("  %-30s %d\n", label, c.Count)
	}
}

func exportAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	filter, err := auditFilter()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.Registry.Audit.Query(ctx, filter, auditLimit)
	if err != nil {
		return fmt.Errorf("failed to query audit log: %w", err)
	}

	w, closeFn, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := report.WriteAuditCSV(w, entries); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	a.Registry.Audit.Write(ctx, audit.Entry{
		Actor:   cliActor(),
		Action:  models.ActionExport,
		Table:   models.TableAuditLog,
		Details: map[string]any{"rows": len(entries), "format": "csv"},
	})
	return nil
}

func parseDay(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD: %w", field, err)
	}
	return &t, nil
}

// openOutput returns stdout when path is empty
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}
