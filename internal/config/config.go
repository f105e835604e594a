// Package config loads process settings from an optional config.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	Env      string `mapstructure:"APP_ENV"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	MeiliURL    string `mapstructure:"MEILI_URL"`
	MeiliAPIKey string `mapstructure:"MEILI_API_KEY"`

	CloudinaryURL string `mapstructure:"CLOUDINARY_URL"`
	AvatarFolder  string `mapstructure:"AVATAR_FOLDER"`

	AllowlistPath   string `mapstructure:"ALLOWLIST_PATH"`
	AuthzModelPath  string `mapstructure:"AUTHZ_MODEL_PATH"`
	AuthzPolicyPath string `mapstructure:"AUTHZ_POLICY_PATH"`
	AuthzMode       string `mapstructure:"AUTHZ_MODE"`
	// AuthzAllowDisabled unlocks AUTHZ_MODE=disabled.
	AuthzAllowDisabled bool `mapstructure:"AUTHZ_UNSAFE_ALLOW_DISABLED"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                   ":8080",
	"APP_ENV":                     "development",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "json",
	"STORAGE_BACKEND":             StorageMemory,
	"DATABASE_URL":                "",
	"REDIS_URL":                   "",
	"MEILI_URL":                   "",
	"MEILI_API_KEY":               "",
	"CLOUDINARY_URL":              "",
	"AVATAR_FOLDER":               "community-portal/avatars",
	"ALLOWLIST_PATH":              "config/routing/allowlist.yaml",
	"AUTHZ_MODEL_PATH":            "config/access/model.conf",
	"AUTHZ_POLICY_PATH":           "config/access/policy.csv",
	"AUTHZ_MODE":                  "enforce",
	"AUTHZ_UNSAFE_ALLOW_DISABLED": false,
}

// Load reads config.yaml from the given directories (default "." and
// "./config") and applies environment overrides. A missing file is not an
// error.
func Load(dirs ...string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{".", "./config"}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("config: DATABASE_URL is required for STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: HTTP_ADDR is required")
	}
	return nil
}

func (c Config) IsProduction() bool { return c.Env == "production" }
