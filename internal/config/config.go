package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Audit     AuditConfig     `yaml:"audit"`
	Protocols ProtocolsConfig `yaml:"protocols"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	RequestTimeout string `yaml:"request_timeout"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains session and password settings
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	SessionTTL        string `yaml:"session_ttl"`
	BcryptCost        int    `yaml:"bcrypt_cost"`
	MinPasswordLength int    `yaml:"min_password_length"`
	TOTPIssuer        string `yaml:"totp_issuer"`
}

// BootstrapConfig holds the credentials of the first administrator
type BootstrapConfig struct {
	AdminLogin    string `yaml:"admin_login"`
	AdminPassword string `yaml:"admin_password"`
	AdminName     string `yaml:"admin_name"`
}

// AuditConfig controls how audit entries are written and queried
type AuditConfig struct {
	Policy       string `yaml:"policy"`
	DefaultLimit int    `yaml:"default_limit"`
	MaxLimit     int    `yaml:"max_limit"`
}

// ProtocolsConfig contains protocol numbering and document type settings
type ProtocolsConfig struct {
	NumberPrefix  string   `yaml:"number_prefix"`
	DocumentTypes []string `yaml:"document_types"`
}

// CacheConfig contains the optional Redis stats cache settings
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	TTL       string `yaml:"ttl"`
}

// EventsConfig selects where committed audit entries are published
type EventsConfig struct {
	Driver         string   `yaml:"driver"`
	AMQPURL        string   `yaml:"amqp_url"`
	AMQPQueue      string   `yaml:"amqp_queue"`
	KafkaBrokers   []string `yaml:"kafka_brokers"`
	KafkaTopic     string   `yaml:"kafka_topic"`
	QueueSize      int      `yaml:"queue_size"`
	PublishTimeout string   `yaml:"publish_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Audit write policies
const (
	AuditPolicyAtomic     = "atomic"
	AuditPolicyBestEffort = "best_effort"
)

// DefaultDocumentTypes is used when protocols.document_types is empty
var DefaultDocumentTypes = []string{"Memo", "Letter", "Report", "Request", "Appeal", "Process", "Other"}

// Default returns a configuration with every optional field populated
func Default() *Config {
	return &Config{
		Server:   ServerConfig{ListenAddr: ":8080", RequestTimeout: "30s"},
		Database: DatabaseConfig{Path: "protocols.db"},
		Auth: AuthConfig{
			SessionTTL:        "12h",
			BcryptCost:        12,
			MinPasswordLength: 8,
			TOTPIssuer:        "Protocol Registry",
		},
		Bootstrap: BootstrapConfig{AdminLogin: "admin", AdminName: "Administrator"},
		Audit:     AuditConfig{Policy: AuditPolicyAtomic, DefaultLimit: 100, MaxLimit: 1000},
		Protocols: ProtocolsConfig{NumberPrefix: "PROT", DocumentTypes: append([]string(nil), DefaultDocumentTypes...)},
		Cache:     CacheConfig{RedisAddr: "localhost:6379", TTL: "1m"},
		Events:    EventsConfig{Driver: "none", AMQPQueue: "protocol.audit", KafkaTopic: "protocol.audit", QueueSize: 1024, PublishTimeout: "5s"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if _, err := parseDuration(c.Server.RequestTimeout); err != nil {
		return fmt.Errorf("server.request_timeout is invalid: %w", err)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.JWTSecret == "change-me-change-me-change-me-change-me" {
		fmt.Fprintf(os.Stderr, "WARNING: Using default JWT secret. Please change it in production!\n")
	}
	if _, err := parseDuration(c.Auth.SessionTTL); err != nil {
		return fmt.Errorf("auth.session_ttl is invalid: %w", err)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("auth.min_password_length must be positive")
	}

	if c.Bootstrap.AdminLogin == "" {
		return fmt.Errorf("bootstrap.admin_login is required")
	}

	if c.Audit.Policy != AuditPolicyAtomic && c.Audit.Policy != AuditPolicyBestEffort {
		return fmt.Errorf("audit.policy must be '%s' or '%s'", AuditPolicyAtomic, AuditPolicyBestEffort)
	}
	if c.Audit.DefaultLimit <= 0 {
		return fmt.Errorf("audit.default_limit must be positive")
	}
	if c.Audit.MaxLimit < c.Audit.DefaultLimit {
		return fmt.Errorf("audit.max_limit must not be lower than audit.default_limit")
	}

	if c.Protocols.NumberPrefix == "" || strings.Contains(c.Protocols.NumberPrefix, "-") {
		return fmt.Errorf("protocols.number_prefix must be non-empty and must not contain '-'")
	}
	if len(c.Protocols.DocumentTypes) == 0 {
		return fmt.Errorf("protocols.document_types must not be empty")
	}

	if c.Cache.Enabled {
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required when cache is enabled")
		}
		if _, err := parseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("cache.ttl is invalid: %w", err)
		}
	}

	if c.Events.QueueSize < 1 {
		return fmt.Errorf("events.queue_size must be positive")
	}
	if _, err := parseDuration(c.Events.PublishTimeout); err != nil {
		return fmt.Errorf("events.publish_timeout is invalid: %w", err)
	}
	switch c.Events.Driver {
	case "", "none":
	case "amqp":
		if c.Events.AMQPURL == "" || c.Events.AMQPQueue == "" {
			return fmt.Errorf("events.amqp_url and events.amqp_queue are required for the amqp driver")
		}
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 || c.Events.KafkaTopic == "" {
			return fmt.Errorf("events.kafka_brokers and events.kafka_topic are required for the kafka driver")
		}
	default:
		return fmt.Errorf("events.driver must be one of: none, amqp, kafka")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// GetSessionTTL returns the session lifetime as time.Duration
func (c *Config) GetSessionTTL() time.Duration {
	d, _ := parseDuration(c.Auth.SessionTTL)
	return d
}

// GetRequestTimeout returns the per-request deadline
func (c *Config) GetRequestTimeout() time.Duration {
	d, _ := parseDuration(c.Server.RequestTimeout)
	return d
}

// GetCacheTTL returns the stats cache TTL
func (c *Config) GetCacheTTL() time.Duration {
	d, _ := parseDuration(c.Cache.TTL)
	return d
}

// GetPublishTimeout returns the per-event broker delivery deadline
func (c *Config) GetPublishTimeout() time.Duration {
	d, _ := parseDuration(c.Events.PublishTimeout)
	return d
}

// parseDuration parses duration with support for days (e.g., "7d")
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, err
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
