// Package app assembles the database, audit log and registries from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/cache"
	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/db"
	"github.com/adamscao/protocolreg/internal/events"
	"github.com/adamscao/protocolreg/internal/registry"
)

// App owns every long-lived resource of a process
type App struct {
	Config    *config.Config
	DB        *db.DB
	Registry  *registry.Registry
	Logger    *slog.Logger
	publisher events.Publisher
	cache     cache.Cache
}

// Open connects the database, runs migrations and wires the registries.
// now may be nil to use the wall clock.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, now func() time.Time) (*App, error) {
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(ctx, database); err != nil {
		database.Close()
		return nil, err
	}

	c, err := cache.New(ctx, cfg.Cache, cfg.GetCacheTTL())
	if err != nil {
		logger.Warn("stats cache disabled", "error", err)
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		logger.Warn("audit event publishing disabled", "driver", cfg.Events.Driver, "error", err)
		publisher = events.Nop{}
	}
	if _, ok := publisher.(events.Nop); !ok {
		publisher = events.NewAsync(publisher, cfg.Events.QueueSize, cfg.GetPublishTimeout(), logger)
	}

	auditLog := audit.New(database, audit.Options{
		Policy:       cfg.Audit.Policy,
		DefaultLimit: cfg.Audit.DefaultLimit,
		MaxLimit:     cfg.Audit.MaxLimit,
		Publisher:    publisher,
		Cache:        c,
		Now:          now,
		Logger:       logger,
	})

	opts := registry.OptionsFromConfig(cfg)
	opts.Cache = c
	opts.Logger = logger

	return &App{
		Config:    cfg,
		DB:        database,
		Registry:  registry.New(database, auditLog, opts),
		Logger:    logger,
		publisher: publisher,
		cache:     c,
	}, nil
}

// EnsureAdmin seeds the configured bootstrap administrator if needed
func (a *App) EnsureAdmin(ctx context.Context) (*registry.BootstrapResult, error) {
	res, err := a.Registry.Identity.EnsureAdmin(ctx, registry.Bootstrap{
		Login:       a.Config.Bootstrap.AdminLogin,
		Password:    a.Config.Bootstrap.AdminPassword,
		DisplayName: a.Config.Bootstrap.AdminName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure administrator: %w", err)
	}
	return res, nil
}

// Close releases the broker, cache and database connections
func (a *App) Close() error {
	if err := a.publisher.Close(); err != nil {
		a.Logger.Warn("failed to close event publisher", "error", err)
	}
	if r, ok := a.cache.(*cache.Redis); ok {
		r.Close()
	}
	return a.DB.Close()
}
