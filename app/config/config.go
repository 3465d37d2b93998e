package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release or test
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json or text
	Output     string `mapstructure:"output"`      // stdout or file
	Dir        string `mapstructure:"dir"`         // used when output is file
	MaxSize    int    `mapstructure:"max_size"`    // megabytes
	MaxBackups int    `mapstructure:"max_backups"` // files kept
	MaxAge     int    `mapstructure:"max_age"`     // days
	Compress   bool   `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres or mysql
	Path   string `mapstructure:"path"`   // sqlite file
	DSN    string `mapstructure:"dsn"`    // postgres and mysql
	Debug  bool   `mapstructure:"debug"`
}

type WebhookConfig struct {
	// APIKeys holds every currently valid x-api-key value, plain or bcrypt hashed.
	APIKeys        []string `mapstructure:"api_keys"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
	Store   string        `mapstructure:"store"` // memory or redis
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type ReconcileConfig struct {
	// InferFirstFrame enables the last-resort guess that an untagged output belongs to
	// the first frame stage of a pipeline whose first frame is not complete yet.
	InferFirstFrame     bool   `mapstructure:"infer_first_frame"`
	AtomicWrites        bool   `mapstructure:"atomic_writes"`
	DefaultErrorMessage string `mapstructure:"default_error_message"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpireTime int    `mapstructure:"expire_time"` // hours
	Issuer     string `mapstructure:"issuer"`
}

type NotifyConfig struct {
	WebhookURL    string        `mapstructure:"webhook_url"`
	WebhookAPIKey string        `mapstructure:"webhook_api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	AMQP          AMQPConfig    `mapstructure:"amqp"`
}

type AMQPConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	Kind       string `mapstructure:"kind"`
	RoutingKey string `mapstructure:"routing_key"`
}

type SweeperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Schedule   string        `mapstructure:"schedule"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// Load reads the active viper configuration and exits the process when it is unusable.
func Load() *Config {
	setDefaults()

	cfg, err := decode()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if viper.ConfigFileUsed() == "" {
		log.Println("no config file found, using defaults and environment")
	}
	return cfg
}

// Reload decodes the configuration again after the file changed on disk.
func Reload() (*Config, error) {
	return decode()
}

func decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers the default value of every key
func setDefaults() {
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.dir", "data/logs")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "data/ugc-forge.db")

	viper.SetDefault("webhook.api_keys", []string{})
	viper.SetDefault("webhook.allowed_origins", []string{})

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.limit", 100)
	viper.SetDefault("rate_limit.window", time.Minute)
	viper.SetDefault("rate_limit.store", "memory")

	viper.SetDefault("redis.addr", "127.0.0.1:6379")
	viper.SetDefault("redis.key_prefix", "ugc-forge:ratelimit:")

	viper.SetDefault("reconcile.infer_first_frame", true)
	viper.SetDefault("reconcile.atomic_writes", false)
	viper.SetDefault("reconcile.default_error_message", "Generation failed")

	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expire_time", 24)
	viper.SetDefault("jwt.issuer", "ugc-forge")

	viper.SetDefault("notify.timeout", 10*time.Second)
	viper.SetDefault("notify.amqp.exchange", "generation.status")
	viper.SetDefault("notify.amqp.kind", "topic")
	viper.SetDefault("notify.amqp.routing_key", "status.updated")

	viper.SetDefault("sweeper.enabled", false)
	viper.SetDefault("sweeper.schedule", "@every 5m")
	viper.SetDefault("sweeper.stale_after", 2*time.Hour)
}

// validateConfig rejects configurations the server cannot run with
func validateConfig(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is not set")
	}
	if len(cfg.Webhook.APIKeys) == 0 {
		return fmt.Errorf("webhook.api_keys must contain at least one key")
	}
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres", "mysql":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for %s", cfg.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", cfg.Database.Driver)
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Limit <= 0 || cfg.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.limit and rate_limit.window must be positive")
		}
		if cfg.RateLimit.Store != "memory" && cfg.RateLimit.Store != "redis" {
			return fmt.Errorf("unsupported rate_limit.store %q", cfg.RateLimit.Store)
		}
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is not set")
	}
	if cfg.Sweeper.Enabled && cfg.Sweeper.StaleAfter <= 0 {
		return fmt.Errorf("sweeper.stale_after must be positive")
	}
	return nil
}
