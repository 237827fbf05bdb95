// Package registry implements the identity store and the requester and
// protocol registries. Every mutation checks the access policy against the
// calling actor and records exactly one audit entry.
package registry

import (
	"log/slog"
	"time"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/cache"
	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/db"
	"github.com/adamscao/protocolreg/internal/db/repository"
	"github.com/adamscao/protocolreg/internal/policy"
)

// Options holds the settings the registries need from configuration
type Options struct {
	NumberPrefix      string
	DocumentTypes     []string
	BcryptCost        int
	MinPasswordLength int
	JWTSecret         string
	SessionTTL        time.Duration
	TOTPIssuer        string
	Cache             cache.Cache
	Logger            *slog.Logger
}

// OptionsFromConfig extracts registry options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		NumberPrefix:      cfg.Protocols.NumberPrefix,
		DocumentTypes:     cfg.Protocols.DocumentTypes,
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		JWTSecret:         cfg.Auth.JWTSecret,
		SessionTTL:        cfg.GetSessionTTL(),
		TOTPIssuer:        cfg.Auth.TOTPIssuer,
	}
}

// Registry bundles the core components over one database
type Registry struct {
	Identity   *Identity
	Requesters *Requesters
	Protocols  *Protocols
	Stats      *Stats
	Audit      *audit.Log
}

// deps is shared by every component
type deps struct {
	db         *db.DB
	audit      *audit.Log
	validator  *policy.Validator
	users      *repository.UserRepository
	requesters *repository.RequesterRepository
	protocols  *repository.ProtocolRepository
	sequences  *repository.SequenceRepository
	sessions   *repository.SessionRepository
	cache      cache.Cache
	logger     *slog.Logger
	opts       Options
}

// New wires the registries
func New(database *db.DB, auditLog *audit.Log, opts Options) *Registry {
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "PROT"
	}
	if len(opts.DocumentTypes) == 0 {
		opts.DocumentTypes = config.DefaultDocumentTypes
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 12
	}
	if opts.MinPasswordLength == 0 {
		opts.MinPasswordLength = 8
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &deps{
		db:         database,
		audit:      auditLog,
		validator:  policy.NewValidator(opts.DocumentTypes, opts.MinPasswordLength),
		users:      repository.NewUserRepository(database),
		requesters: repository.NewRequesterRepository(database),
		protocols:  repository.NewProtocolRepository(database),
		sequences:  repository.NewSequenceRepository(database),
		sessions:   repository.NewSessionRepository(database),
		cache:      opts.Cache,
		logger:     opts.Logger,
		opts:       opts,
	}

	return &Registry{
		Identity:   &Identity{d},
		Requesters: &Requesters{d},
		Protocols:  &Protocols{d},
		Stats:      &Stats{d},
		Audit:      auditLog,
	}
}

// today returns the current calendar date at midnight UTC
func (d *deps) today() time.Time {
	y, m, day := d.audit.Now().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
