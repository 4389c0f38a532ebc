package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Refresh   RefreshConfig   `yaml:"refresh" mapstructure:"refresh"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig configures postgres connection pooling. Zero values take
// the driver defaults.
type PoolConfig struct {
	MaxConns        int `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns        int `yaml:"min_conns" mapstructure:"min_conns"`
	MaxLifetimeMins int `yaml:"max_lifetime_mins" mapstructure:"max_lifetime_mins"`
	MaxIdleMins     int `yaml:"max_idle_mins" mapstructure:"max_idle_mins"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// AnalyticsConfig configures the analytics engine.
type AnalyticsConfig struct {
	CacheTTLHours        int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	DirectQueryCountries []string `yaml:"direct_query_countries" mapstructure:"direct_query_countries"`
}

// RefreshConfig configures the cache refresh daemon.
type RefreshConfig struct {
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// MonitorConfig configures the feed freshness watchdog that runs
// alongside the API server.
type MonitorConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalMins int    `yaml:"check_interval_mins" mapstructure:"check_interval_mins"`
	MaxStaleDays      int    `yaml:"max_stale_days" mapstructure:"max_stale_days"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SHORTTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("store.pool.max_lifetime_mins", 60)
	v.SetDefault("store.pool.max_idle_mins", 15)
	v.SetDefault("server.port", 8080)
	v.SetDefault("analytics.cache_ttl_hours", 24)
	v.SetDefault("analytics.direct_query_countries", []string{"IE"})
	v.SetDefault("refresh.schedule", "0 6 * * *")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.check_interval_mins", 60)
	v.SetDefault("monitor.max_stale_days", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode depends on. Modes map to
// CLI commands: "serve", "refresh", "migrate", "import", "export".
func (c *Config) Validate(mode string) error {
	var problems []string

	needsDB := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		needsDB()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Analytics.CacheTTLHours <= 0 {
			problems = append(problems, "analytics.cache_ttl_hours must be > 0")
		}
	case "refresh":
		needsDB()
		if c.Refresh.Schedule == "" {
			problems = append(problems, "refresh.schedule is required")
		}
	case "migrate", "import", "export":
		needsDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
