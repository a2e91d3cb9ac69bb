// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DocStoreFile = "file"
	DocStoreR2   = "r2"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	DocStore  DocStoreConfig  `mapstructure:"docstore"`
	R2        R2Config        `mapstructure:"r2"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Levels    LevelsConfig    `mapstructure:"levels"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// GatewayConfig covers the upstream gateway that resolves caller identity.
type GatewayConfig struct {
	ServiceToken   string `mapstructure:"service_token"`
	AuthServiceURL string `mapstructure:"auth_service_url"`
}

type DocStoreConfig struct {
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	ObjectKey   string `mapstructure:"object_key"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
	CDNBaseURL      string `mapstructure:"cdn_base_url"`
}

// Enabled reports whether enough R2 settings are present to build a client.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.Bucket != ""
}

type IngestConfig struct {
	WebhookSecret     string        `mapstructure:"webhook_secret"`
	MirrorToDatabase  bool          `mapstructure:"mirror_to_database"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

type LevelsConfig struct {
	EnforceOwnership bool `mapstructure:"enforce_ownership"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// bindings maps config keys to the env vars the deployment already uses.
var bindings = map[string]string{
	"server.port":                "PORT",
	"server.allowed_origins":     "ALLOWED_ORIGINS",
	"database.url":               "DATABASE_URL",
	"gateway.service_token":      "LEVEL_SERVICE_TOKEN",
	"gateway.auth_service_url":   "AUTH_SERVICE_URL",
	"docstore.backend":           "DOCSTORE_BACKEND",
	"docstore.path":              "DOCSTORE_PATH",
	"docstore.object_key":        "DOCSTORE_OBJECT_KEY",
	"docstore.max_attempts":      "DOCSTORE_MAX_ATTEMPTS",
	"r2.account_id":              "CLOUDFLARE_ACCOUNT_ID",
	"r2.access_key_id":           "R2_ACCESS_KEY_ID",
	"r2.access_key_secret":       "R2_ACCESS_KEY_SECRET",
	"r2.bucket":                  "R2_BUCKET_NAME",
	"r2.cdn_base_url":            "CDN_BASE_URL",
	"ingest.webhook_secret":      "GITHUB_WEBHOOK_SECRET",
	"ingest.mirror_to_database":  "INGEST_MIRROR_TO_DATABASE",
	"ingest.reconcile_interval":  "RECONCILE_INTERVAL",
	"levels.enforce_ownership":   "LEVELS_ENFORCE_OWNERSHIP",
	"scheduler.interval":         "SCHEDULER_INTERVAL",
	"log.level":                  "LOG_LEVEL",
	"log.file":                   "LOG_FILE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5300")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("docstore.backend", DocStoreFile)
	v.SetDefault("docstore.path", "data/levels.json")
	v.SetDefault("docstore.object_key", "levels/levels.json")
	v.SetDefault("docstore.max_attempts", 3)
	v.SetDefault("ingest.mirror_to_database", true)
	v.SetDefault("ingest.reconcile_interval", 5*time.Minute)
	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("log.level", "info")
}

// Load reads configuration from the environment (and .env, loaded by the
// caller through godotenv) on top of the defaults above.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// ALLOWED_ORIGINS arrives as one comma-separated string
	cfg.Server.AllowedOrigins = splitOrigins(cfg.Server.AllowedOrigins)
	if cfg.DocStore.MaxAttempts < 1 {
		cfg.DocStore.MaxAttempts = 1
	}
	return &cfg, nil
}

func splitOrigins(in []string) []string {
	var out []string
	for _, raw := range in {
		for _, origin := range strings.Split(raw, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}

// ValidateServer checks the settings the HTTP server cannot start without.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.Gateway.ServiceToken == "" {
		errs = append(errs, errors.New("LEVEL_SERVICE_TOKEN environment variable not set"))
	}
	errs = append(errs, c.ValidateDocStore())
	return errors.Join(errs...)
}

// ValidateDocStore checks the document store backend selection.
func (c *Config) ValidateDocStore() error {
	switch c.DocStore.Backend {
	case DocStoreFile:
		if c.DocStore.Path == "" {
			return errors.New("DOCSTORE_PATH must be set for the file backend")
		}
	case DocStoreR2:
		if !c.R2.Enabled() {
			return errors.New("CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME must be set for the r2 backend")
		}
	default:
		return fmt.Errorf("unknown DOCSTORE_BACKEND %q (use: file, r2)", c.DocStore.Backend)
	}
	return nil
}
