package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	sharedConfig "github.com/payops/payops/internal/shared/config"
)

type Config struct {
	Server       sharedConfig.ServerConfig       `mapstructure:"server"`
	Database     sharedConfig.DatabaseConfig     `mapstructure:"database"`
	Logger       sharedConfig.LoggerConfig       `mapstructure:"logger"`
	Auth         sharedConfig.AuthConfig         `mapstructure:"auth"`
	Redis        sharedConfig.RedisConfig        `mapstructure:"redis"`
	Engine       sharedConfig.EngineConfig       `mapstructure:"engine"`
	Notification sharedConfig.NotificationConfig `mapstructure:"notification"`
	Lifecycle    sharedConfig.LifecycleConfig    `mapstructure:"lifecycle"`
	EventBus     sharedConfig.EventBusConfig     `mapstructure:"event_bus"`
	Seeds        sharedConfig.SeedsConfig        `mapstructure:"seeds"`
	Migration    sharedConfig.MigrationConfig    `mapstructure:"migration"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads ./configs/config.yaml, overlays config.<env>.yaml when present and
// applies PAYOPS_* environment variables. A .env file is loaded first if found.
func Load(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	v.SetEnvPrefix("PAYOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to merge %s config: %w", env, err)
			}
		}
		v.Set("server.mode", env)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &cfg
	appConfigMu.Unlock()

	return &cfg, nil
}

// Get returns the last loaded configuration.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.timezone", "Europe/Paris")
	v.SetDefault("server.rate_limit_per_minute", 600)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "payops_dev")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.source_level", "warn")

	v.SetDefault("auth.jwt.secret", "change-me-in-production")
	v.SetDefault("auth.jwt.issuer", "payops")
	v.SetDefault("auth.jwt.access_exp_minutes", 60)
	v.SetDefault("auth.rbac_model", "configs/rbac_model.conf")
	v.SetDefault("auth.webhook_key", "")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("engine.sweep_interval", time.Hour)
	v.SetDefault("engine.outbox_interval", 30*time.Second)
	v.SetDefault("engine.sweep_parallelism", 8)
	v.SetDefault("engine.sweep_batch_size", 500)
	v.SetDefault("engine.lock_ttl", 2*time.Minute)
	v.SetDefault("engine.submission_stale_ttl", 72*time.Hour)
	v.SetDefault("engine.notify_timeout", 10*time.Second)
	v.SetDefault("engine.outbox_batch_size", 100)
	v.SetDefault("engine.outbox_max_attempts", 8)
	v.SetDefault("engine.outbox_initial_delay", 30*time.Second)
	v.SetDefault("engine.outbox_max_delay", 6*time.Hour)
	v.SetDefault("engine.policy_cache_ttl", 10*time.Minute)
	v.SetDefault("engine.routing_cache_size", 1024)
	v.SetDefault("engine.alert_dedup_window", time.Hour)
	v.SetDefault("engine.payment_link_ttl", 24*time.Hour)
	v.SetDefault("engine.payment_link_base_url", "https://pay.example.com/l/")
	v.SetDefault("engine.contact_fallback_text",
		"Your payment could not be collected. Please contact our customer service to update your payment details.")

	v.SetDefault("notification.smtp.host", "localhost")
	v.SetDefault("notification.smtp.port", 1025)
	v.SetDefault("notification.smtp.from_address", "billing@payops.local")
	v.SetDefault("notification.smtp.from_name", "Billing")
	v.SetDefault("notification.sms.gateway_url", "")

	v.SetDefault("lifecycle.base_url", "")
	v.SetDefault("lifecycle.timeout", 5*time.Second)

	v.SetDefault("event_bus.driver", "redis")
	v.SetDefault("event_bus.channel", "payops:events")
	v.SetDefault("event_bus.exchange", "payops.events")

	v.SetDefault("seeds.path", "configs/seeds.yaml")

	v.SetDefault("migration.strategy", "goose")
	v.SetDefault("migration.scripts_path", "internal/infrastructure/migration/scripts")
}
