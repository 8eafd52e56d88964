package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// HTTP server
	Port string `env:"PORT" envDefault:"8080"`

	// Remote transferências API
	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:4000"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`

	// Backend selection: "rest" talks to the real API, "memory" is a local
	// stub for development.
	DataBackend string `env:"DATA_BACKEND" envDefault:"rest"`

	// Session persistence
	SessionBackend string `env:"SESSION_BACKEND" envDefault:"sqlite"`
	SessionDBPath  string `env:"SESSION_DB_PATH" envDefault:"./data/sessions.db"`

	// Tag catalog cache
	TagCacheTTL  time.Duration `env:"TAG_CACHE_TTL" envDefault:"5m"`
	TagCacheSize int           `env:"TAG_CACHE_SIZE" envDefault:"8"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "rest":
		if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid API base URL '%s': must include scheme and host", c.APIBaseURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case "memory":
		// Runs without a remote API.
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [rest memory]", c.DataBackend))
	}

	switch c.SessionBackend {
	case "sqlite":
		if c.SessionDBPath == "" {
			errs = append(errs, "session database path cannot be empty when using sqlite sessions")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("invalid session backend '%s': must be one of [sqlite memory]", c.SessionBackend))
	}

	if c.APITimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
	} else if c.APITimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid API timeout %v: must be at most 5 minutes", c.APITimeout))
	}

	if c.TagCacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid tag cache TTL %v: must be at least 1 second", c.TagCacheTTL))
	}
	if c.TagCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid tag cache size %d: must be at least 1", c.TagCacheSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
