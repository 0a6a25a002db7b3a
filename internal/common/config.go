package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TAKEOFF_DATABASE_DSN.
const EnvPrefix = "TAKEOFF"

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Takeoff  TakeoffConfig
	Raster   RasterConfig
	APS      APSConfig
	Matching MatchingConfig
	Taxonomy TaxonomyConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// StorageConfig selects the byte store backend.
type StorageConfig struct {
	Backend   string // "local" | "gcs"
	LocalRoot string
	GCSBucket string
}

// TakeoffConfig points at the quantity-extraction engine.
type TakeoffConfig struct {
	Addr    string
	Timeout time.Duration
}

// RasterConfig holds the image-plan engine command.
type RasterConfig struct {
	Command string
	Timeout time.Duration
}

// APSConfig holds cloud BIM viewer credentials.
type APSConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Bucket       string
	Timeout      time.Duration
}

// MatchingConfig tunes template matching for callers.
type MatchingConfig struct {
	DisplayThreshold float64
	TemplateCacheTTL time.Duration
}

// TaxonomyConfig points at an optional override of the BIM classification sets.
type TaxonomyConfig struct {
	Path string
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string // "text" | "json"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:takeoff.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_root", "./data/uploads")
	v.SetDefault("storage.gcs_bucket", "")

	v.SetDefault("takeoff.addr", "")
	v.SetDefault("takeoff.timeout", 10*time.Minute)

	v.SetDefault("raster.command", "")
	v.SetDefault("raster.timeout", 5*time.Minute)

	v.SetDefault("aps.base_url", "https://developer.api.autodesk.com")
	v.SetDefault("aps.client_id", "")
	v.SetDefault("aps.client_secret", "")
	v.SetDefault("aps.bucket", "")
	v.SetDefault("aps.timeout", 2*time.Minute)

	v.SetDefault("matching.display_threshold", 0.80)
	v.SetDefault("matching.template_cache_ttl", 5*time.Minute)

	v.SetDefault("taxonomy.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig loads configuration from defaults, an optional config file
// (TAKEOFF_CONFIG) and TAKEOFF_* environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError(CodeConfiguration, fmt.Sprintf("read config %s", path), err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(v.GetString("database.driver")),
			DSN:              v.GetString("database.dsn"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("database.max_conn_idle_time"),
			DialTimeout:      v.GetDuration("database.dial_timeout"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(v.GetString("storage.backend")),
			LocalRoot: v.GetString("storage.local_root"),
			GCSBucket: v.GetString("storage.gcs_bucket"),
		},
		Takeoff: TakeoffConfig{
			Addr:    v.GetString("takeoff.addr"),
			Timeout: v.GetDuration("takeoff.timeout"),
		},
		Raster: RasterConfig{
			Command: v.GetString("raster.command"),
			Timeout: v.GetDuration("raster.timeout"),
		},
		APS: APSConfig{
			BaseURL:      v.GetString("aps.base_url"),
			ClientID:     v.GetString("aps.client_id"),
			ClientSecret: v.GetString("aps.client_secret"),
			Bucket:       v.GetString("aps.bucket"),
			Timeout:      v.GetDuration("aps.timeout"),
		},
		Matching: MatchingConfig{
			DisplayThreshold: v.GetFloat64("matching.display_threshold"),
			TemplateCacheTTL: v.GetDuration("matching.template_cache_ttl"),
		},
		Taxonomy: TaxonomyConfig{
			Path: v.GetString("taxonomy.path"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return ConfigurationError(fmt.Sprintf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		return ConfigurationError("database.dsn is required")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalRoot == "" {
			return ConfigurationError("storage.local_root is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return ConfigurationError("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return ConfigurationError(fmt.Sprintf("storage.backend must be local or gcs, got %q", c.Storage.Backend))
	}
	if c.Matching.DisplayThreshold < 0 || c.Matching.DisplayThreshold > 1 {
		return ConfigurationError("matching.display_threshold must be within [0,1]")
	}
	if (c.APS.ClientID == "") != (c.APS.ClientSecret == "") {
		return ConfigurationError("aps.client_id and aps.client_secret must be set together")
	}
	return nil
}

// APSEnabled reports whether cloud BIM credentials are configured.
func (c *Config) APSEnabled() bool {
	return c.APS.ClientID != "" && c.APS.ClientSecret != ""
}
