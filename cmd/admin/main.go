package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamscao/protocolreg/internal/app"
	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/logging"
	"github.com/adamscao/protocolreg/internal/models"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Protocol Registry administration tool",
	Long:          "Administrative tool for managing Protocol Registry users, audit logs and reports",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Run migrations and seed the administrator account",
	Long: `Run migrations and make sure an active administrator exists.

With no active administrator, the account named by bootstrap.admin_login is
created. If that login belongs to a disabled administrator, the account is
re-enabled and its password is reset to bootstrap.admin_password (or a
generated one). A login held by a non-admin account is refused.`,
	RunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/protocolreg/config.yaml", "Config file path")

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openApp loads configuration and opens the database. Logs go to stderr so
// command output stays clean.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return app.Open(ctx, cfg, logging.New(cfg.Logging, os.Stderr), nil)
}

// cliActor identifies audit entries written by this tool
func cliActor() models.Actor {
	actor := models.System
	actor.ClientAgent = "admin-cli"
	return actor
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.EnsureAdmin(cmd.Context())
	if err != nil {
		return err
	}

	switch {
	case res.Reactivated:
		fmt.Printf("Administrator %q was re-enabled and its password reset\n", res.Login)
	case res.Created:
		fmt.Printf("Administrator %q is ready\n", res.Login)
	default:
		fmt.Println("An active administrator already exists, nothing to do")
		return nil
	}
	if res.GeneratedPassword != "" {
		fmt.Printf("Generated password: %s\n", res.GeneratedPassword)
		fmt.Println("Change it after the first login.")
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}
