package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: "+testSecret+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Audit.Policy != AuditPolicyAtomic {
		t.Errorf("Audit.Policy = %q, want %q", cfg.Audit.Policy, AuditPolicyAtomic)
	}
	if cfg.Protocols.NumberPrefix != "PROT" {
		t.Errorf("NumberPrefix = %q, want PROT", cfg.Protocols.NumberPrefix)
	}
	if len(cfg.Protocols.DocumentTypes) != len(DefaultDocumentTypes) {
		t.Errorf("DocumentTypes = %v, want defaults", cfg.Protocols.DocumentTypes)
	}
	if got := cfg.GetSessionTTL(); got != 12*time.Hour {
		t.Errorf("GetSessionTTL() = %v, want 12h", got)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: `+testSecret+`
  session_ttl: 2d
audit:
  policy: best_effort
protocols:
  number_prefix: DOC
  document_types: [Memo]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Audit.Policy != AuditPolicyBestEffort {
		t.Errorf("Audit.Policy = %q, want best_effort", cfg.Audit.Policy)
	}
	if cfg.Protocols.NumberPrefix != "DOC" {
		t.Errorf("NumberPrefix = %q, want DOC", cfg.Protocols.NumberPrefix)
	}
	if got := cfg.GetSessionTTL(); got != 48*time.Hour {
		t.Errorf("GetSessionTTL() = %v, want 48h", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"unknown policy", func(c *Config) { c.Audit.Policy = "sometimes" }, "audit.policy"},
		{"dash in prefix", func(c *Config) { c.Protocols.NumberPrefix = "A-B" }, "number_prefix"},
		{"no document types", func(c *Config) { c.Protocols.DocumentTypes = nil }, "document_types"},
		{"bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 2 }, "bcrypt_cost"},
		{"max below default", func(c *Config) { c.Audit.MaxLimit = 10 }, "max_limit"},
		{"kafka without brokers", func(c *Config) { c.Events.Driver = "kafka"; c.Events.KafkaBrokers = nil }, "kafka"},
		{"unknown driver", func(c *Config) { c.Events.Driver = "smtp" }, "events.driver"},
		{"empty event queue", func(c *Config) { c.Events.QueueSize = 0 }, "queue_size"},
		{"bad publish timeout", func(c *Config) { c.Events.PublishTimeout = "later" }, "publish_timeout"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad session ttl", func(c *Config) { c.Auth.SessionTTL = "soon" }, "session_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "auth:\n  jwt_secret: "+testSecret+"\n")

	t.Setenv("PROTOCOL_DB_PATH", "/tmp/override.db")
	t.Setenv("PROTOCOL_AUDIT_POLICY", "best_effort")
	t.Setenv("PROTOCOL_REDIS_ADDR", "redis:6379")
	t.Setenv("PROTOCOL_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PROTOCOL_EVENTS_DRIVER", "kafka")

	cfg, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Audit.Policy != AuditPolicyBestEffort {
		t.Errorf("Audit.Policy = %q", cfg.Audit.Policy)
	}
	if !cfg.Cache.Enabled || cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("Cache = %+v, want enabled at redis:6379", cfg.Cache)
	}
	if len(cfg.Events.KafkaBrokers) != 2 {
		t.Errorf("KafkaBrokers = %v", cfg.Events.KafkaBrokers)
	}
}

func TestLoadWithEnvRejectsBadOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "auth:\n  jwt_secret: "+testSecret+"\n")
	t.Setenv("PROTOCOL_REDIS_DB", "first")

	if _, err := LoadWithEnv(path); err == nil {
		t.Fatal("LoadWithEnv() error = nil, want error for non-numeric PROTOCOL_REDIS_DB")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"90m", 90 * time.Minute},
		{"1h30m", 90 * time.Minute},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseDuration(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
