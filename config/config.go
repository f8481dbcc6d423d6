// Package config loads ghostmcp settings from an optional YAML file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/ghostmcp/queue"
)

const (
	projectConfigName = "ghostmcp.yaml"
	homeConfigDir     = ".ghostmcp"
	homeConfigName    = "config.yaml"
)

// Environment variables read by Load.
const (
	EnvURL            = "GHOST_URL"
	EnvAdminAPIKey    = "GHOST_ADMIN_API_KEY"
	EnvContentAPIKey  = "GHOST_CONTENT_API_KEY"
	EnvAPIVersion     = "GHOST_API_VERSION"
	EnvWindowMS       = "RATE_LIMIT_WINDOW_MS"
	EnvMaxRequests    = "RATE_LIMIT_MAX_REQUESTS"
	EnvConcurrency    = "GHOST_QUEUE_CONCURRENCY"
	EnvRequestTimeout = "GHOST_REQUEST_TIMEOUT"
	EnvAuditDB        = "GHOST_AUDIT_DB"
	EnvHealthSchedule = "GHOST_HEALTH_SCHEDULE"
	EnvOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

const (
	defaultAPIVersion   = "v5.0"
	defaultTimeout      = 30 * time.Second
	defaultHealthPeriod = "@every 5m"
)

// ErrMissingConfig reports required settings that were not provided.
var ErrMissingConfig = errors.New("config: missing required configuration")

// Config is the resolved process configuration.
type Config struct {
	Ghost     GhostConfig     `yaml:"ghost"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// RequestTimeout bounds one tool call including queue wait.
	// Default: 30s
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	Audit          AuditConfig     `yaml:"audit"`
	Health         HealthConfig    `yaml:"health"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`

	// Path is the file the config was read from, empty when none was found.
	Path string `yaml:"-"`
}

// GhostConfig addresses the backend site.
type GhostConfig struct {
	URL           string `yaml:"url"`
	AdminAPIKey   string `yaml:"admin_api_key"`
	ContentAPIKey string `yaml:"content_api_key"`
	APIVersion    string `yaml:"api_version"`
}

// RateLimitConfig shapes the request queue.
type RateLimitConfig struct {
	WindowMS    int `yaml:"window_ms"`
	MaxRequests int `yaml:"max_requests"`
	Concurrency int `yaml:"concurrency"`
}

// AuditConfig enables the invocation audit trail when DB is set.
type AuditConfig struct {
	DB string `yaml:"db"`
}

// HealthConfig schedules the backend reachability probe.
type HealthConfig struct {
	// Schedule is a cron spec. "off" disables probing.
	// Default: @every 5m
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint string `yaml:"otlp_endpoint"`
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// Path is an explicit config file. A missing explicit file is an error.
	Path string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// WorkDir and HomeDir default to the process working and home directories.
	WorkDir string
	HomeDir string
}

// Load resolves the config file, applies environment overrides and defaults.
// It does not validate; call Validate before use.
func Load(opts LoadOptions) (Config, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	var cfg Config
	path, found, err := discoverPath(opts)
	if err != nil {
		return Config{}, err
	}
	if found {
		// #nosec G304 -- path comes from explicit flag or fixed discovery locations.
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %q: %w", path, err)
		}
		cfg.Path = path
	}

	if err := cfg.applyEnv(opts.Getenv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func discoverPath(opts LoadOptions) (string, bool, error) {
	if explicit := strings.TrimSpace(opts.Path); explicit != "" {
		clean := filepath.Clean(explicit)
		info, err := os.Stat(clean)
		if err != nil {
			return "", false, fmt.Errorf("config: file %q not found: %w", clean, err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config: %q is a directory", clean)
		}
		return clean, true, nil
	}

	var candidates []string
	workDir := opts.WorkDir
	if workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}
	if workDir != "" {
		candidates = append(candidates, filepath.Join(workDir, projectConfigName))
	}
	homeDir := opts.HomeDir
	if homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			homeDir = home
		}
	}
	if homeDir != "" {
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("config: checking %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&c.Ghost.URL, EnvURL)
	setString(&c.Ghost.AdminAPIKey, EnvAdminAPIKey)
	setString(&c.Ghost.ContentAPIKey, EnvContentAPIKey)
	setString(&c.Ghost.APIVersion, EnvAPIVersion)
	setString(&c.Audit.DB, EnvAuditDB)
	setString(&c.Health.Schedule, EnvHealthSchedule)
	setString(&c.Telemetry.Endpoint, EnvOTLPEndpoint)

	for key, dst := range map[string]*int{
		EnvWindowMS:    &c.RateLimit.WindowMS,
		EnvMaxRequests: &c.RateLimit.MaxRequests,
		EnvConcurrency: &c.RateLimit.Concurrency,
	} {
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: %s must be a non-negative integer, got %q", key, raw)
		}
		*dst = n
	}

	if raw := strings.TrimSpace(getenv(EnvRequestTimeout)); raw != "" {
		d, err := parseTimeout(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvRequestTimeout, err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// parseTimeout accepts a Go duration ("45s") or a bare number of seconds.
func parseTimeout(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive, got %q", raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %q", raw)
	}
	return d, nil
}

func (c *Config) applyDefaults() {
	c.Ghost.URL = strings.TrimRight(strings.TrimSpace(c.Ghost.URL), "/")
	if c.Ghost.APIVersion == "" {
		c.Ghost.APIVersion = defaultAPIVersion
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultTimeout
	}
	if c.Health.Schedule == "" {
		c.Health.Schedule = defaultHealthPeriod
	}
}

// Validate reports every missing required setting in one error wrapping
// ErrMissingConfig.
func (c Config) Validate() error {
	var missing []string
	if c.Ghost.URL == "" {
		missing = append(missing, EnvURL)
	}
	if c.Ghost.AdminAPIKey == "" {
		missing = append(missing, EnvAdminAPIKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Queue returns the queue shape. Zero values fall back to queue defaults.
func (c Config) Queue() queue.Config {
	return queue.Config{
		Concurrency: c.RateLimit.Concurrency,
		Interval:    time.Duration(c.RateLimit.WindowMS) * time.Millisecond,
		IntervalCap: c.RateLimit.MaxRequests,
	}
}

// HealthEnabled reports whether the probe schedule is active.
func (c Config) HealthEnabled() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Health.Schedule), "off")
}

// Redacted returns a copy safe to print, with API keys masked.
func (c Config) Redacted() Config {
	c.Ghost.AdminAPIKey = mask(c.Ghost.AdminAPIKey)
	c.Ghost.ContentAPIKey = mask(c.Ghost.ContentAPIKey)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if id, _, ok := strings.Cut(secret, ":"); ok {
		return id + ":****"
	}
	return "****"
}
