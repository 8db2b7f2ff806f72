package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	AutoApproval  AutoApprovalConfig
	Payouts       PayoutConfig
	Notifications NotificationConfig
	ProviderStats ProviderStatsConfig
	Disputes      DisputeConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AutoApprovalConfig controls the deadline sweep.
type AutoApprovalConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	BatchSize     int
}

// PayoutConfig controls the payout worker pool.
type PayoutConfig struct {
	AutoPayout bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationConfig controls transition event publishing.
type NotificationConfig struct {
	Enabled       bool
	ChannelPrefix string
	Workers       int
	BufferSize    int
}

// ProviderStatsConfig tunes the fee waiver statistics cache.
type ProviderStatsConfig struct {
	CacheTTL time.Duration
}

// DisputeConfig gates dispute handling on already paid timecards.
type DisputeConfig struct {
	AllowPaidReopen bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.AutoApproval = AutoApprovalConfig{
		Enabled:       v.GetBool("ENABLE_AUTO_APPROVAL"),
		SweepInterval: parseDuration(v.GetString("AUTO_APPROVAL_SWEEP_INTERVAL"), 5*time.Minute),
		BatchSize:     positiveOr(v.GetInt("AUTO_APPROVAL_BATCH_SIZE"), 200),
	}

	cfg.Payouts = PayoutConfig{
		AutoPayout: v.GetBool("ENABLE_AUTO_PAYOUT"),
		Workers:    positiveOr(v.GetInt("PAYOUT_WORKERS"), 2),
		MaxRetries: positiveOr(v.GetInt("PAYOUT_RETRIES"), 5),
		RetryDelay: parseDuration(v.GetString("PAYOUT_RETRY_DELAY"), 30*time.Second),
	}

	cfg.Notifications = NotificationConfig{
		Enabled:       v.GetBool("ENABLE_NOTIFICATIONS"),
		ChannelPrefix: v.GetString("NOTIFICATION_CHANNEL_PREFIX"),
		Workers:       positiveOr(v.GetInt("NOTIFICATION_WORKERS"), 1),
		BufferSize:    positiveOr(v.GetInt("NOTIFICATION_BUFFER_SIZE"), 256),
	}

	cfg.ProviderStats = ProviderStatsConfig{
		CacheTTL: parseDuration(v.GetString("PROVIDER_STATS_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Disputes = DisputeConfig{
		AllowPaidReopen: v.GetBool("DISPUTES_ALLOW_PAID_REOPEN"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "shift_ledger")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_AUTO_APPROVAL", true)
	v.SetDefault("AUTO_APPROVAL_SWEEP_INTERVAL", "5m")
	v.SetDefault("AUTO_APPROVAL_BATCH_SIZE", 200)

	v.SetDefault("ENABLE_AUTO_PAYOUT", false)
	v.SetDefault("PAYOUT_WORKERS", 2)
	v.SetDefault("PAYOUT_RETRIES", 5)
	v.SetDefault("PAYOUT_RETRY_DELAY", "30s")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATION_CHANNEL_PREFIX", "timecards")
	v.SetDefault("NOTIFICATION_WORKERS", 1)
	v.SetDefault("NOTIFICATION_BUFFER_SIZE", 256)

	v.SetDefault("PROVIDER_STATS_CACHE_TTL", "15m")
	v.SetDefault("DISPUTES_ALLOW_PAID_REOPEN", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
