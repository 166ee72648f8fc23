package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port               int  `yaml:"port"`
	MetricsPort        int  `yaml:"metrics_port"`
	RequestTimeoutMs   int  `yaml:"request_timeout_ms"`
	RateLimitPerMinute int  `yaml:"rate_limit_per_minute"`
	TrustProxyHeaders  bool `yaml:"trust_proxy_headers"`
}

type AuthConfig struct {
	SupabaseURL          string `yaml:"supabase_url"`
	SupabaseKey          string `yaml:"supabase_key"`
	KeycloakRealmURL     string `yaml:"keycloak_realm_url"`
	KeycloakClientID     string `yaml:"keycloak_client_id"`
	KeycloakClientSecret string `yaml:"keycloak_client_secret"`
	AdminRoleName        string `yaml:"admin_role_name"`
}

// SupabaseEnabled reports whether the Supabase strategy can be used.
func (a AuthConfig) SupabaseEnabled() bool {
	return a.SupabaseURL != "" && a.SupabaseKey != ""
}

// KeycloakEnabled reports whether Keycloak tokens can be verified.
func (a AuthConfig) KeycloakEnabled() bool {
	return a.KeycloakRealmURL != "" && a.KeycloakClientID != ""
}

type StorageConfig struct {
	BucketName string `yaml:"bucket_name"`
}

type DatabaseConfig struct {
	URL     string `yaml:"url"`
	MaxRows int    `yaml:"max_rows"`

	// RLSRole is assumed inside every table read so row-level security
	// policies see the caller. It cannot be empty when URL is set.
	RLSRole string `yaml:"rls_role"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutMs) * time.Millisecond
}

// Load builds the configuration once at startup: defaults, then the optional
// YAML file, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8000,
			MetricsPort:        8001,
			RequestTimeoutMs:   30000,
			RateLimitPerMinute: 120,
		},
		Auth: AuthConfig{
			KeycloakRealmURL: "https://relife-identity.test.ctic.es/realms/relife",
			AdminRoleName:    "relife_admin",
		},
		Storage: StorageConfig{
			BucketName: "default_relife_bucket",
		},
		Database: DatabaseConfig{
			MaxRows: 1000,
			RLSRole: "authenticated",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.MetricsPort <= 0 {
		return fmt.Errorf("invalid ports: %d/%d", c.Server.Port, c.Server.MetricsPort)
	}
	if c.Server.RequestTimeoutMs <= 0 {
		return fmt.Errorf("request_timeout_ms must be positive, got %d", c.Server.RequestTimeoutMs)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Database.URL != "" && c.Database.RLSRole == "" {
		return fmt.Errorf("database.rls_role is required when database.url is set")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RequestTimeoutMs = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.Auth.SupabaseURL = v
	}
	if v := os.Getenv("SUPABASE_KEY"); v != "" {
		cfg.Auth.SupabaseKey = v
	}
	if v := os.Getenv("KEYCLOAK_REALM_URL"); v != "" {
		cfg.Auth.KeycloakRealmURL = v
	}
	if v := os.Getenv("KEYCLOAK_CLIENT_ID"); v != "" {
		cfg.Auth.KeycloakClientID = v
	}
	if v := os.Getenv("KEYCLOAK_CLIENT_SECRET"); v != "" {
		cfg.Auth.KeycloakClientSecret = v
	}
	if v := os.Getenv("ADMIN_ROLE_NAME"); v != "" {
		cfg.Auth.AdminRoleName = v
	}
	if v := os.Getenv("BUCKET_NAME"); v != "" {
		cfg.Storage.BucketName = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("TRUST_PROXY_HEADERS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.TrustProxyHeaders = b
		}
	}
	if v := os.Getenv("DATABASE_RLS_ROLE"); v != "" {
		cfg.Database.RLSRole = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
