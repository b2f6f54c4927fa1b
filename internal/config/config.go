package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password", "operator",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// OperatorToken guards the code management endpoints. Those routes are
	// not mounted when it is empty.
	OperatorToken string `env:"OPERATOR_TOKEN"`

	ActivationGraceHours           int `env:"ACTIVATION_GRACE_HOURS" envDefault:"1"`
	SessionTTLMinutes              int `env:"SESSION_TTL_MINUTES" envDefault:"1440"`
	SessionRefreshThresholdMinutes int `env:"SESSION_REFRESH_THRESHOLD_MINUTES" envDefault:"60"`
	SessionRetentionDays           int `env:"SESSION_RETENTION_DAYS" envDefault:"7"`
	BcryptCost                     int `env:"BCRYPT_COST" envDefault:"12"`
	LoginRateLimitPerMin           int `env:"LOGIN_RATE_LIMIT_PER_MIN" envDefault:"10"`
	CleanupIntervalMinutes         int `env:"CLEANUP_INTERVAL_MINUTES" envDefault:"0"`
}

func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.ActivationGraceHours) * time.Hour
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c *Config) RefreshThreshold() time.Duration {
	return time.Duration(c.SessionRefreshThresholdMinutes) * time.Minute
}

func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.SessionRetentionDays) * 24 * time.Hour
}

// CleanupInterval is zero when the in-process cleanup job is disabled.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) Validate(isProduction bool) error {
	if c.ActivationGraceHours < 0 {
		return fmt.Errorf("ACTIVATION_GRACE_HOURS must not be negative")
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	if c.SessionRefreshThresholdMinutes < 0 {
		return fmt.Errorf("SESSION_REFRESH_THRESHOLD_MINUTES must not be negative")
	}
	if c.SessionRefreshThresholdMinutes >= c.SessionTTLMinutes {
		return fmt.Errorf("SESSION_REFRESH_THRESHOLD_MINUTES must be smaller than SESSION_TTL_MINUTES")
	}
	if c.SessionRetentionDays <= 0 {
		return fmt.Errorf("SESSION_RETENTION_DAYS must be positive")
	}
	if c.CleanupIntervalMinutes < 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_MINUTES must not be negative")
	}

	if isProduction {
		if err := validateSecret("OPERATOR_TOKEN", c.OperatorToken); err != nil {
			return err
		}
		if c.RedisURL != "" && strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if strings.HasPrefix(c.DatabaseURL, "sqlite") {
			log.Warn().Msg("DATABASE_URL points at SQLite in production: use PostgreSQL for concurrent writers")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
