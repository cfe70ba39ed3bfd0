package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Browser launch profiles.
const (
	ProfileLocal    = "local"
	ProfilePackaged = "packaged"
)

// Backoff modes.
const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Portal    PortalConfig    `yaml:"portal"`
	Browser   BrowserConfig   `yaml:"browser"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"3000" yaml:"port"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" yaml:"shutdownTimeout"`
	StaticDir       string        `envconfig:"STATIC_DIR" yaml:"staticDir"`
}

// PortalConfig describes the upstream schedule portal.
type PortalConfig struct {
	URL             string `envconfig:"PORTAL_URL" yaml:"url"`
	ResponseMarker  string `envconfig:"PORTAL_RESPONSE_MARKER" default:"buscarCronograma" yaml:"responseMarker"`
	SearchSelector  string `envconfig:"PORTAL_SEARCH_SELECTOR" default:"#search" yaml:"searchSelector"`
	DefaultPrograma string `envconfig:"PORTAL_DEFAULT_PROGRAMA" default:"82" yaml:"defaultPrograma"`
	DefaultSede     string `envconfig:"PORTAL_DEFAULT_SEDE" default:"10" yaml:"defaultSede"`
	DefaultRecurso  string `envconfig:"PORTAL_DEFAULT_RECURSO" default:"2" yaml:"defaultRecurso"`
}

// BrowserConfig holds headless browser launch settings.
type BrowserConfig struct {
	Profile        string `envconfig:"BROWSER_PROFILE" default:"local" yaml:"profile"`
	ExecPath       string `envconfig:"BROWSER_EXEC_PATH" yaml:"execPath"`
	Headless       bool   `envconfig:"BROWSER_HEADLESS" default:"true" yaml:"headless"`
	Reuse          bool   `envconfig:"BROWSER_REUSE" default:"true" yaml:"reuse"`
	UserAgent      string `envconfig:"BROWSER_USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36" yaml:"userAgent"`
	ViewportWidth  int    `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1024" yaml:"viewportWidth"`
	ViewportHeight int    `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"768" yaml:"viewportHeight"`
}

// ScrapeConfig holds per-step timeouts and retry policy.
type ScrapeConfig struct {
	NavTimeout          time.Duration `envconfig:"SCRAPE_NAV_TIMEOUT" default:"15s" yaml:"navTimeout"`
	SelectTimeout       time.Duration `envconfig:"SCRAPE_SELECT_TIMEOUT" default:"10s" yaml:"selectTimeout"`
	ResponseTimeout     time.Duration `envconfig:"SCRAPE_RESPONSE_TIMEOUT" default:"15s" yaml:"responseTimeout"`
	MaxRetries          int           `envconfig:"SCRAPE_MAX_RETRIES" default:"1" yaml:"maxRetries"`
	BackoffBase         time.Duration `envconfig:"SCRAPE_BACKOFF_BASE" default:"1s" yaml:"backoffBase"`
	BackoffMode         string        `envconfig:"SCRAPE_BACKOFF_MODE" default:"linear" yaml:"backoffMode"`
	RetryMissingControl bool          `envconfig:"SCRAPE_RETRY_MISSING_CONTROL" default:"true" yaml:"retryMissingControl"`
	BreakerEnabled      bool          `envconfig:"SCRAPE_BREAKER_ENABLED" default:"true" yaml:"breakerEnabled"`
	BreakerFailures     uint32        `envconfig:"SCRAPE_BREAKER_FAILURES" default:"5" yaml:"breakerFailures"`
	BreakerCooldown     time.Duration `envconfig:"SCRAPE_BREAKER_COOLDOWN" default:"60s" yaml:"breakerCooldown"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	TTL time.Duration `envconfig:"CACHE_TTL" default:"5m" yaml:"ttl"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int           `envconfig:"RATE_LIMIT_RPS" default:"5" yaml:"requestsPerSecond"`
	Burst             int           `envconfig:"RATE_LIMIT_BURST" default:"10" yaml:"burst"`
	Enabled           bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
	IdleTTL           time.Duration `envconfig:"RATE_LIMIT_IDLE_TTL" default:"10m" yaml:"idleTTL"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyDeploymentFlag(&cfg)
	return &cfg, nil
}

// LoadFile loads configuration from the environment and overlays the YAML
// file at path. Keys present in the file win over env and defaults.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "3000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Portal: PortalConfig{
			ResponseMarker:  "buscarCronograma",
			SearchSelector:  "#search",
			DefaultPrograma: "82",
			DefaultSede:     "10",
			DefaultRecurso:  "2",
		},
		Browser: BrowserConfig{
			Profile:        ProfileLocal,
			Headless:       true,
			Reuse:          true,
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ViewportWidth:  1024,
			ViewportHeight: 768,
		},
		Scrape: ScrapeConfig{
			NavTimeout:          15 * time.Second,
			SelectTimeout:       10 * time.Second,
			ResponseTimeout:     15 * time.Second,
			MaxRetries:          1,
			BackoffBase:         time.Second,
			BackoffMode:         BackoffLinear,
			RetryMissingControl: true,
			BreakerEnabled:      true,
			BreakerFailures:     5,
			BreakerCooldown:     60 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
			Enabled:           true,
			IdleTTL:           10 * time.Minute,
		},
	}
}

// Validate reports every setting that would make the scraper unusable.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Portal.URL) == "" {
		errs = append(errs, errors.New("portal url is required (PORTAL_URL)"))
	}
	if c.Portal.ResponseMarker == "" {
		errs = append(errs, errors.New("portal response marker must not be empty"))
	}
	if c.Portal.SearchSelector == "" {
		errs = append(errs, errors.New("portal search selector must not be empty"))
	}
	switch c.Browser.Profile {
	case ProfileLocal, ProfilePackaged:
	default:
		errs = append(errs, fmt.Errorf("unknown browser profile %q", c.Browser.Profile))
	}
	switch c.Scrape.BackoffMode {
	case BackoffLinear, BackoffExponential:
	default:
		errs = append(errs, fmt.Errorf("unknown backoff mode %q", c.Scrape.BackoffMode))
	}
	if c.Scrape.NavTimeout <= 0 || c.Scrape.SelectTimeout <= 0 || c.Scrape.ResponseTimeout <= 0 {
		errs = append(errs, errors.New("scrape timeouts must be positive"))
	}
	if c.Scrape.MaxRetries < 0 {
		errs = append(errs, errors.New("scrape max retries must not be negative"))
	}
	if c.Scrape.BackoffBase <= 0 {
		errs = append(errs, errors.New("scrape backoff base must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, errors.New("browser viewport must be positive"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// applyDeploymentFlag selects the packaged browser when running on a
// constrained host that only advertises itself through RENDER.
func applyDeploymentFlag(cfg *Config) {
	if _, ok := os.LookupEnv("BROWSER_PROFILE"); ok {
		return
	}
	if os.Getenv("RENDER") != "" {
		cfg.Browser.Profile = ProfilePackaged
	}
}
