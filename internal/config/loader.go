package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file on top of Default()
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment variable overrides.
// A .env file next to the working directory is loaded first when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PROTOCOL_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}

	if v := os.Getenv("PROTOCOL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PROTOCOL_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	if v := os.Getenv("PROTOCOL_ADMIN_LOGIN"); v != "" {
		cfg.Bootstrap.AdminLogin = v
	}

	if v := os.Getenv("PROTOCOL_ADMIN_PASSWORD"); v != "" {
		cfg.Bootstrap.AdminPassword = v
	}

	if v := os.Getenv("PROTOCOL_AUDIT_POLICY"); v != "" {
		cfg.Audit.Policy = v
	}

	if v := os.Getenv("PROTOCOL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
		cfg.Cache.Enabled = true
	}

	if v := os.Getenv("PROTOCOL_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PROTOCOL_REDIS_DB: %w", err)
		}
		cfg.Cache.DB = db
	}

	if v := os.Getenv("PROTOCOL_EVENTS_DRIVER"); v != "" {
		cfg.Events.Driver = v
	}

	if v := os.Getenv("PROTOCOL_AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}

	if v := os.Getenv("PROTOCOL_KAFKA_BROKERS"); v != "" {
		cfg.Events.KafkaBrokers = strings.Split(v, ",")
	}

	if v := os.Getenv("PROTOCOL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}
