package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	StorePrefix     string        `mapstructure:"STORE_PREFIX"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	JWTSigningKey   string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer       string        `mapstructure:"JWT_ISSUER"`
	JWTTTL          time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit       string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	NotifyDelay     time.Duration `mapstructure:"NOTIFY_DELAY"`
	SendGridAPIKey  string        `mapstructure:"SENDGRID_API_KEY"`
	NotifyFromEmail string        `mapstructure:"NOTIFY_FROM_EMAIL"`
	KafkaBrokers    []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic      string        `mapstructure:"KAFKA_TOPIC"`
	ExportBucket    string        `mapstructure:"EXPORT_BUCKET"`
	ExportPrefix    string        `mapstructure:"EXPORT_PREFIX"`
	AWSRegion       string        `mapstructure:"AWS_REGION"`
	ReminderCron    string        `mapstructure:"REMINDER_CRON"`
}

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "STORE_PREFIX", "DATABASE_URL", "DB_MAX_CONNS",
	"DB_MIN_CONNS", "REDIS_URL", "JWT_SIGNING_KEY", "JWT_ISSUER", "JWT_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
	"REQUEST_TIMEOUT", "NOTIFY_DELAY", "SENDGRID_API_KEY", "NOTIFY_FROM_EMAIL",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "EXPORT_BUCKET", "EXPORT_PREFIX", "AWS_REGION",
	"REMINDER_CRON",
}

// Load reads the configuration from the environment. A .env file in the
// working directory, when present, fills variables that are not already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", "memory")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "clinic")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("NOTIFY_DELAY", "2s")
	v.SetDefault("NOTIFY_FROM_EMAIL", "no-reply@clinica.test")
	v.SetDefault("KAFKA_TOPIC", "clinic.notifications")
	v.SetDefault("EXPORT_PREFIX", "informes")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("REMINDER_CRON", "0 18 * * *")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// MinSigningKeyLength is the shortest JWT signing key accepted outside
// development.
const MinSigningKeyLength = 32

// Validate checks that the configuration is usable: the store driver has
// what it needs to connect, and outside development tokens are signed with
// a real key.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is \"postgres\"")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_DRIVER is \"redis\"")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be \"memory\", \"postgres\" or \"redis\", got %q", c.StoreDriver)
	}

	if !c.IsDev() && len(c.JWTSigningKey) < MinSigningKeyLength {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least %d bytes outside development (ENV=%q)", MinSigningKeyLength, c.Env)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.NotifyDelay < 0 {
		return fmt.Errorf("NOTIFY_DELAY must not be negative, got %s", c.NotifyDelay)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}
