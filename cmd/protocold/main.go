package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamscao/protocolreg/internal/api"
	"github.com/adamscao/protocolreg/internal/app"
	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/logging"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/protocolreg/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Protocol Registry\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stdout)
	logger.Info("starting protocol registry", "version", Version, "commit", Commit, "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	res, err := a.EnsureAdmin(ctx)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	switch {
	case res.Reactivated:
		logger.Warn("re-enabled administrator account and reset its password", "login", res.Login)
	case res.Created:
		logger.Warn("seeded administrator account, rotate its password", "login", res.Login)
	}
	if res.Created || res.Reactivated {
		if res.GeneratedPassword != "" {
			fmt.Fprintf(os.Stderr, "Generated password for %s: %s\n", res.Login, res.GeneratedPassword)
		}
	}

	server := api.NewServer(cfg, a.Registry, logger)
	if err := server.Run(ctx); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
