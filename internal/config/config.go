package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSalts = []string{
	"change-me", "dev-salt-change-me", "salt", "secret", "ternary-default-salt",
}

type Config struct {
	Port                int    `env:"PORT" envDefault:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RedisURL            string `env:"REDIS_URL,required"`
	TokenSalt           string `env:"TOKEN_SALT,required"`
	BaseURL             string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	LinkTTLSeconds      int    `env:"LINK_TTL_SECONDS" envDefault:"600"`
	InitRateLimitPerMin int    `env:"INIT_RATE_LIMIT_PER_MIN" envDefault:"30"`
	PollRateLimitPerMin int    `env:"POLL_RATE_LIMIT_PER_MIN" envDefault:"120"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) LinkTTL() time.Duration {
	return time.Duration(c.LinkTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) VerifyURL(code string) string {
	return fmt.Sprintf("%s/link/verify?code=%s", strings.TrimRight(c.BaseURL, "/"), code)
}

func (c *Config) Validate(isProduction bool) error {
	if c.LinkTTLSeconds <= 0 {
		return fmt.Errorf("LINK_TTL_SECONDS must be positive")
	}

	if isProduction {
		if len(c.TokenSalt) < 16 {
			return fmt.Errorf("TOKEN_SALT must be at least 16 characters in production (generate with: openssl rand -base64 24)")
		}
		for _, weak := range knownWeakSalts {
			if c.TokenSalt == weak {
				return fmt.Errorf("TOKEN_SALT is a known weak default; set a strong salt in production")
			}
		}
		if !strings.HasPrefix(c.BaseURL, "https://") {
			log.Warn().Str("baseUrl", c.BaseURL).Msg("BASE_URL is not https in production: verify links will be served over plain http")
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
