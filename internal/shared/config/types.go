package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Timezone       string   `mapstructure:"timezone"`
	// RateLimitPerMinute caps requests per caller; 0 disables the limiter.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&multiStatements=true",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	OutputPath  string `mapstructure:"output_path"`
	SourceLevel string `mapstructure:"source_level"`
}

type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	Issuer           string `mapstructure:"issuer"`
	AccessExpMinutes int    `mapstructure:"access_exp_minutes"`
}

type AuthConfig struct {
	JWT        JWTConfig `mapstructure:"jwt"`
	RBACModel  string    `mapstructure:"rbac_model"`
	WebhookKey string    `mapstructure:"webhook_key"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// EngineConfig tunes the retry/dunning sweeper and the side-effect outbox.
type EngineConfig struct {
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	OutboxInterval      time.Duration `mapstructure:"outbox_interval"`
	SweepParallelism    int           `mapstructure:"sweep_parallelism"`
	SweepBatchSize      int           `mapstructure:"sweep_batch_size"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	SubmissionStaleTTL  time.Duration `mapstructure:"submission_stale_ttl"`
	NotifyTimeout       time.Duration `mapstructure:"notify_timeout"`
	OutboxBatchSize     int           `mapstructure:"outbox_batch_size"`
	OutboxMaxAttempts   int           `mapstructure:"outbox_max_attempts"`
	OutboxInitialDelay  time.Duration `mapstructure:"outbox_initial_delay"`
	OutboxMaxDelay      time.Duration `mapstructure:"outbox_max_delay"`
	PolicyCacheTTL      time.Duration `mapstructure:"policy_cache_ttl"`
	RoutingCacheSize    int           `mapstructure:"routing_cache_size"`
	AlertDedupWindow    time.Duration `mapstructure:"alert_dedup_window"`
	PaymentLinkTTL      time.Duration `mapstructure:"payment_link_ttl"`
	PaymentLinkBaseURL  string        `mapstructure:"payment_link_base_url"`
	ContactFallbackText string        `mapstructure:"contact_fallback_text"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

type SMSConfig struct {
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
	SenderID   string `mapstructure:"sender_id"`
}

type NotificationConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
	SMS  SMSConfig  `mapstructure:"sms"`
}

// LifecycleConfig points at the external subscription-management system.
type LifecycleConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EventBusConfig struct {
	Driver   string `mapstructure:"driver"`
	Channel  string `mapstructure:"channel"`
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

type SeedsConfig struct {
	Path string `mapstructure:"path"`
}

type MigrationConfig struct {
	Strategy    string `mapstructure:"strategy"`
	ScriptsPath string `mapstructure:"scripts_path"`
}
