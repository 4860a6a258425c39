package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// reservationMargin is the slack kept between the longest generation pass and
// the age at which the sweeper refunds a hold.
const reservationMargin = 30 * time.Second

type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=24h"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`
	BodyLimit string        `env:"BODY_LIMIT, default=10M"`

	// StoreDriver selects the account and usage store: "mongo" or "memory".
	StoreDriver string `env:"STORE_DRIVER, default=mongo"`

	Mongo      MongoConfig
	Redis      RedisConfig
	Gemini     GeminiConfig
	Generation GenerationConfig
	Credits    CreditsConfig
	RateLimit  RateLimitConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=virtushot"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED,  default=true"`
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type GeminiConfig struct {
	APIKey  string `env:"GEMINI_API_KEY"`
	Model   string `env:"GEMINI_MODEL,    default=gemini-2.5-flash-image-preview"`
	BaseURL string `env:"GEMINI_BASE_URL"`
}

type GenerationConfig struct {
	Timeout       time.Duration `env:"GENERATION_TIMEOUT,      default=90s"`
	MaxAttempts   int           `env:"GENERATION_MAX_ATTEMPTS, default=1"`
	RetryDelay    time.Duration `env:"GENERATION_RETRY_DELAY,  default=2s"`
	Parallelism   int           `env:"GENERATION_PARALLELISM,  default=2"`
	MaxVariations int           `env:"MAX_VARIATIONS,          default=4"`
	UsageWorkers  int           `env:"USAGE_WORKERS,           default=4"`
}

// MaxPassDuration is the longest one variation pass can hold its reservation:
// every attempt running to its timeout, with a retry delay between attempts.
func (g GenerationConfig) MaxPassDuration() time.Duration {
	attempts := max(g.MaxAttempts, 1)
	return time.Duration(attempts)*g.Timeout + time.Duration(attempts-1)*g.RetryDelay
}

type CreditsConfig struct {
	SignupBonus         int           `env:"SIGNUP_BONUS_CREDITS,  default=10"`
	DefaultLimit        int           `env:"DEFAULT_CREDIT_LIMIT,  default=50"`
	SelfPurchaseEnabled bool          `env:"SELF_PURCHASE_ENABLED, default=false"`
	ReservationTTL      time.Duration `env:"RESERVATION_TTL,       default=10m"`
}

// RateLimitConfig holds per-minute request limits.
type RateLimitConfig struct {
	Generate int `env:"RATE_LIMIT_GENERATE, default=20"`
	Auth     int `env:"RATE_LIMIT_AUTH,     default=10"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no safe default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.StoreDriver != StoreMongo && c.StoreDriver != StoreMemory {
		return fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, c.StoreDriver)
	}
	if c.Generation.MaxVariations < 1 {
		return errors.New("config: MAX_VARIATIONS must be at least 1")
	}
	if c.Credits.SignupBonus < 0 || c.Credits.DefaultLimit < 0 {
		return errors.New("config: credit amounts must not be negative")
	}
	// A shorter TTL lets the sweeper refund a hold whose generation is still
	// running, and the image then goes out unbilled.
	if minTTL := c.Generation.MaxPassDuration() + reservationMargin; c.Credits.ReservationTTL <= minTTL {
		return fmt.Errorf("config: RESERVATION_TTL must exceed %s (GENERATION_TIMEOUT x GENERATION_MAX_ATTEMPTS plus retry delays plus %s), got %s",
			minTTL, reservationMargin, c.Credits.ReservationTTL)
	}
	return nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
