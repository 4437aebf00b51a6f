package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Referral  ReferralConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type ReferralConfig struct {
	// RewardAmount/RewardCurrency apply to rewards created on attribution.
	// Admin settings (system_settings table) override these at runtime.
	RewardAmount   float64
	RewardCurrency string

	// CompletionThreshold is the number of distinct active days the referred
	// user must accumulate before the referral counts as successful.
	CompletionThreshold int

	// RewardTTL is how long a reward stays redeemable before the expiration
	// sweep ages it out.
	RewardTTL time.Duration

	// ExpirePending controls whether PENDING rewards (referred user never
	// converted) are also aged out by the sweep. Default is AVAILABLE only.
	ExpirePending bool

	// ShareURLBase prefixes the user's code in the share link returned by
	// GET /me/referral-code.
	ShareURLBase string

	MaxCodeAttempts int
}

type SchedulerConfig struct {
	Enabled bool

	// Cron cadences, standard 5-field expressions.
	CompletionCadence string
	ExpirationCadence string

	// Per-job kill switches so a single job can be disabled (e.g. in test
	// environments) without affecting the others.
	CompletionEnabled bool
	ExpirationEnabled bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8080"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getenv("DATABASE_DSN", "referly:referly@tcp(localhost:3306)/referly?charset=utf8mb4&parseTime=True&loc=UTC"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: 15 * time.Minute,
			Issuer:       "referly",
		},
		Referral: ReferralConfig{
			RewardAmount:        getenvFloat("REFERRAL_REWARD_AMOUNT", 10),
			RewardCurrency:      getenv("REFERRAL_REWARD_CURRENCY", "USD"),
			CompletionThreshold: getenvInt("REFERRAL_COMPLETION_THRESHOLD", 7),
			RewardTTL:           time.Duration(getenvInt("REFERRAL_REWARD_TTL_DAYS", 365)) * 24 * time.Hour,
			ExpirePending:       getenvBool("REFERRAL_EXPIRE_PENDING", false),
			ShareURLBase:        getenv("REFERRAL_SHARE_URL_BASE", "https://referly.app/r/"),
			MaxCodeAttempts:     10,
		},
		Scheduler: SchedulerConfig{
			Enabled:           getenvBool("SCHEDULER_ENABLED", true),
			CompletionCadence: getenv("SCHEDULER_COMPLETION_CRON", "0 2 * * *"),
			ExpirationCadence: getenv("SCHEDULER_EXPIRATION_CRON", "0 3 * * 0"),
			CompletionEnabled: getenvBool("SCHEDULER_COMPLETION_ENABLED", true),
			ExpirationEnabled: getenvBool("SCHEDULER_EXPIRATION_ENABLED", true),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
