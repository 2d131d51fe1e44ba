package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                     int     `env:"PORT" envDefault:"8080"`
	DatabaseURL              string  `env:"DATABASE_URL,required"`
	RedisURL                 string  `env:"REDIS_URL,required"`
	ReceiverAddress          string  `env:"RECEIVER_ADDRESS,required"`
	KaspaAPIBase             string  `env:"KASPA_API_BASE" envDefault:"https://api.kaspa.org"`
	WatchIntervalSeconds     int     `env:"WATCH_INTERVAL_SECONDS" envDefault:"2"`
	CheckpointSecondsDefault int     `env:"CHECKPOINT_SECONDS_DEFAULT" envDefault:"60"`
	RateKasPerMinuteDefault  float64 `env:"RATE_KAS_PER_MINUTE_DEFAULT" envDefault:"0.1"`
	LogLevel                 string  `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ReceiverAddress) == "" {
		return fmt.Errorf("RECEIVER_ADDRESS must not be empty")
	}
	if !strings.HasPrefix(c.ReceiverAddress, "kaspa:") && !strings.HasPrefix(c.ReceiverAddress, "kaspatest:") {
		log.Warn().Str("address", c.ReceiverAddress).Msg("RECEIVER_ADDRESS does not look like a kaspa address")
	}

	parsed, err := url.Parse(c.KaspaAPIBase)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("KASPA_API_BASE is not a valid URL: %q", c.KaspaAPIBase)
	}

	if c.WatchIntervalSeconds < 1 {
		return fmt.Errorf("WATCH_INTERVAL_SECONDS must be at least 1, got %d", c.WatchIntervalSeconds)
	}
	if c.CheckpointSecondsDefault < MinCheckpointSeconds || c.CheckpointSecondsDefault > MaxCheckpointSeconds {
		return fmt.Errorf("CHECKPOINT_SECONDS_DEFAULT must be in [%d, %d], got %d",
			MinCheckpointSeconds, MaxCheckpointSeconds, c.CheckpointSecondsDefault)
	}
	if c.RateKasPerMinuteDefault < MinRateKasPerMinute || c.RateKasPerMinuteDefault > MaxRateKasPerMinute {
		return fmt.Errorf("RATE_KAS_PER_MINUTE_DEFAULT must be in [%g, %g], got %g",
			MinRateKasPerMinute, MaxRateKasPerMinute, c.RateKasPerMinuteDefault)
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
