package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete console configuration, loadable from environment
// variables (CATALOG_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	Upstream  UpstreamConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Health    HealthConfig
	Graceful  GracefulConfig
}

// UpstreamConfig points at the remote catalog API.
type UpstreamConfig struct {
	BaseURL   string        `default:"https://dummyjson.com" usage:"Remote catalog API base URL" flag:"upstream-url"`
	Timeout   time.Duration `default:"0s" usage:"Timeout of a single remote call, 0 disables it" flag:"upstream-timeout"`
	ListLimit int           `default:"0" usage:"Products requested per list, 0 keeps the remote default" flag:"list-limit"`
}

// SessionConfig controls the cookie carrying notifications across redirects.
type SessionConfig struct {
	Name   string `default:"catalog_flash" usage:"Notification cookie name"`
	Key    string `usage:"Notification cookie signing key, random when empty (CATALOG_SESSION_KEY)" flag:"session-key"`
	Secure bool   `default:"false" usage:"Send the notification cookie over HTTPS only" flag:"session-secure"`
}

// RateLimitConfig controls the per-client limiter on form submissions.
type RateLimitConfig struct {
	Max    int           `default:"30" usage:"Max submissions per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// HealthConfig controls the background health checks.
type HealthConfig struct {
	Interval time.Duration `default:"15s" usage:"Interval between health checks" flag:"health-interval"`
	Timeout  time.Duration `default:"5s" usage:"Timeout of a single health check" flag:"health-timeout"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CATALOG",
		Files:     []string{"config.yaml", "/etc/catalog-console/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the console cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Upstream.BaseURL == "":
		return errors.New("upstream base URL is required: set CATALOG_UPSTREAM_BASE_URL")
	case c.Upstream.Timeout < 0:
		return errors.New("upstream timeout must not be negative")
	case c.Upstream.ListLimit < 0:
		return errors.New("list limit must not be negative")
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	case c.Health.Interval <= 0 || c.Health.Timeout <= 0:
		return errors.New("health interval and timeout must be positive")
	}
	return nil
}

// applyPlatformDefaults maps the PORT variable set by hosting platforms
// (Railway, Render, etc.) onto the listen address.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
