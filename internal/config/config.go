package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vjranagit/tsview/pkg/storage"
	"github.com/vjranagit/tsview/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. TSVIEW_STORAGE_PATH
const EnvPrefix = "TSVIEW"

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Query   QueryConfig   `mapstructure:"query"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Path             string        `mapstructure:"path"`
	CompressionLevel int           `mapstructure:"compression_level"`
	PageSize         int           `mapstructure:"page_size"`
	CursorTTL        time.Duration `mapstructure:"cursor_ttl"`
	CountCacheTTL    time.Duration `mapstructure:"count_cache_ttl"`
	EnableJournal    bool          `mapstructure:"enable_journal"`
}

// QueryConfig holds defaults of computed series queries
type QueryConfig struct {
	MaxMetricLimit   int `mapstructure:"max_metric_limit"`
	DefaultThreshold int `mapstructure:"default_threshold"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	store := storage.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddr:   ":9090",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Path:             store.Path,
			CompressionLevel: store.CompressionLevel,
			PageSize:         store.PageSize,
			CursorTTL:        store.CursorTTL,
			CountCacheTTL:    store.CountCacheTTL,
			EnableJournal:    store.EnableJournal,
		},
		Query: QueryConfig{
			MaxMetricLimit:   100,
			DefaultThreshold: types.DefaultThreshold,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads defaults, then the optional YAML file at path, then TSVIEW_*
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides resolve
func setDefaults(v *viper.Viper, defaults *Config) {
	// Server defaults
	v.SetDefault("server.listen_addr", defaults.Server.ListenAddr)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)

	// Storage defaults
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("storage.compression_level", defaults.Storage.CompressionLevel)
	v.SetDefault("storage.page_size", defaults.Storage.PageSize)
	v.SetDefault("storage.cursor_ttl", defaults.Storage.CursorTTL)
	v.SetDefault("storage.count_cache_ttl", defaults.Storage.CountCacheTTL)
	v.SetDefault("storage.enable_journal", defaults.Storage.EnableJournal)

	// Query defaults
	v.SetDefault("query.max_metric_limit", defaults.Query.MaxMetricLimit)
	v.SetDefault("query.default_threshold", defaults.Query.DefaultThreshold)

	// Logging defaults
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.development", defaults.Log.Development)
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Path:             c.Storage.Path,
		CompressionLevel: c.Storage.CompressionLevel,
		PageSize:         c.Storage.PageSize,
		CursorTTL:        c.Storage.CursorTTL,
		CountCacheTTL:    c.Storage.CountCacheTTL,
		EnableJournal:    c.Storage.EnableJournal,
	}
}

// Validate validates the configuration and reports every violation
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("server listen address is required"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage path is required"))
	}
	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		errs = append(errs, fmt.Errorf("compression level must be between 1 and 4"))
	}
	if c.Storage.PageSize < 1 {
		errs = append(errs, fmt.Errorf("page size must be at least 1"))
	}
	if c.Storage.CursorTTL <= 0 {
		errs = append(errs, fmt.Errorf("cursor ttl must be positive"))
	}
	if c.Storage.CountCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("count cache ttl must be positive"))
	}
	if c.Query.DefaultThreshold < 0 {
		errs = append(errs, fmt.Errorf("default threshold must not be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}
