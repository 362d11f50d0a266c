package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"price-resolver/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Breaker      BreakerConfig      `mapstructure:"breaker"`
	Invalidation InvalidationConfig `mapstructure:"invalidation"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// CacheConfig governs price cache behaviour.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// BreakerConfig tunes the circuit breaker guarding the rule store.
type BreakerConfig struct {
	WindowSize          int           `mapstructure:"window_size"`
	FailureRate         float64       `mapstructure:"failure_rate"`
	MinCalls            int           `mapstructure:"min_calls"`
	CoolDown            time.Duration `mapstructure:"cool_down"`
	HalfOpenMaxRequests int           `mapstructure:"half_open_max_requests"`
}

// InvalidationConfig sizes the invalidation queue and its workers.
type InvalidationConfig struct {
	Buffer  int `mapstructure:"buffer"`
	Workers int `mapstructure:"workers"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICERESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "price-resolver")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.query_timeout", "5s")

	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("breaker.window_size", 20)
	v.SetDefault("breaker.failure_rate", 0.5)
	v.SetDefault("breaker.min_calls", 5)
	v.SetDefault("breaker.cool_down", "30s")
	v.SetDefault("breaker.half_open_max_requests", 3)

	v.SetDefault("invalidation.buffer", 256)
	v.SetDefault("invalidation.workers", 4)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than zero")
	}
	if c.Breaker.WindowSize <= 0 {
		return fmt.Errorf("breaker.window_size must be greater than zero")
	}
	if c.Breaker.FailureRate <= 0 || c.Breaker.FailureRate > 1 {
		return fmt.Errorf("breaker.failure_rate must be within (0, 1]")
	}
	if c.Breaker.MinCalls <= 0 {
		return fmt.Errorf("breaker.min_calls must be greater than zero")
	}
	if c.Breaker.MinCalls > c.Breaker.WindowSize {
		return fmt.Errorf("breaker.min_calls cannot exceed breaker.window_size")
	}
	if c.Breaker.CoolDown <= 0 {
		return fmt.Errorf("breaker.cool_down must be greater than zero")
	}
	if c.Invalidation.Workers <= 0 {
		return fmt.Errorf("invalidation.workers must be greater than zero")
	}
	return nil
}
