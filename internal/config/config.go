// Package config provides configuration loading and validation for font-sources.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fontcatalog/font-sources/internal/catalog"
	"github.com/fontcatalog/font-sources/internal/coordinator"
	"github.com/fontcatalog/font-sources/internal/discovery"
	"github.com/fontcatalog/font-sources/internal/registry"
	"github.com/fontcatalog/font-sources/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables bound to flags
	EnvPrefix = "FONT_SOURCES"

	// DefaultHTTPTimeout bounds a single probe request
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultCheckoutJobs is the number of concurrent checkouts
	DefaultCheckoutJobs = 4
)

// DefaultProbeHosts are the hosts whose web UI answers the probe's HEAD requests
var DefaultProbeHosts = []string{"github.com"}

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// CacheDir holds one checkout per source repository, '<cacheDir>/<org>/<name>'.
	// The tool assumes it may modify or delete anything inside it.
	CacheDir string `yaml:"cacheDir,omitempty"`

	Registry  RegistryConfig    `yaml:"registry"`
	Discovery DiscoveryConfig   `yaml:"discovery"`
	Output    OutputConfig      `yaml:"output"`
	Checkout  CheckoutConfig    `yaml:"checkout"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// RegistryConfig defines where the font registry comes from
type RegistryConfig struct {
	// URL is cloned when Path is empty. Defaults to the Google Fonts repository.
	URL string `yaml:"url,omitempty"`

	// Path is an existing local checkout of the registry
	Path string `yaml:"path,omitempty"`

	// LicenseDirs are the top-level directories scanned for METADATA.pb
	LicenseDirs []string `yaml:"licenseDirs,omitempty"`

	// CloneAttempts bounds retries of the registry clone
	CloneAttempts uint `yaml:"cloneAttempts,omitempty"`
}

// DiscoveryConfig defines the discovery worker pool and its capabilities
type DiscoveryConfig struct {
	// Workers is the number of concurrent repository discoveries
	Workers int `yaml:"workers,omitempty"`

	// ProbeHosts limits the HTTP HEAD probe to these hosts
	ProbeHosts []string `yaml:"probeHosts,omitempty"`

	// HTTPTimeout bounds each probe request (e.g. "30s")
	HTTPTimeout string `yaml:"httpTimeout,omitempty"`

	// GitTimeout bounds each network git operation (e.g. "5m")
	GitTimeout string `yaml:"gitTimeout,omitempty"`

	// DefaultRetryAfter is the cooldown when a 429 carries no Retry-After
	DefaultRetryAfter string `yaml:"defaultRetryAfter,omitempty"`

	// MaxRateLimitRetries bounds how often one repository waits out a rate limit
	MaxRateLimitRetries *int `yaml:"maxRateLimitRetries,omitempty"`

	// PollInterval is how often idle workers re-check the cooldown flag
	PollInterval string `yaml:"pollInterval,omitempty"`

	// Filter restricts which families are considered
	Filter *FilterConfig `yaml:"filter,omitempty"`

	// Include lists catalog files whose sources are merged into the result
	Include []string `yaml:"include,omitempty"`
}

// FilterConfig defines filtering rules for registry families
type FilterConfig struct {
	Names *NameFilterConfig `yaml:"names,omitempty"`
}

// NameFilterConfig defines name-based filtering
type NameFilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// OutputConfig defines where and how the catalog is written
type OutputConfig struct {
	// Path of the catalog; stdout when empty
	Path string `yaml:"path,omitempty"`

	// Format is json, yaml or list
	Format string `yaml:"format,omitempty"`
}

// CheckoutConfig defines the checkout command
type CheckoutConfig struct {
	// Jobs is the number of concurrent checkouts
	Jobs int `yaml:"jobs,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file. Without a
// path it returns the defaults.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Discovery.Workers < 0 {
		errs = append(errs, fmt.Errorf("discovery.workers must not be negative, got %d", c.Discovery.Workers))
	}
	if r := c.Discovery.MaxRateLimitRetries; r != nil && *r < 0 {
		errs = append(errs, fmt.Errorf("discovery.maxRateLimitRetries must not be negative, got %d", *r))
	}
	if c.Checkout.Jobs < 0 {
		errs = append(errs, fmt.Errorf("checkout.jobs must not be negative, got %d", c.Checkout.Jobs))
	}

	for _, d := range []struct{ name, value string }{
		{"discovery.httpTimeout", c.Discovery.HTTPTimeout},
		{"discovery.gitTimeout", c.Discovery.GitTimeout},
		{"discovery.defaultRetryAfter", c.Discovery.DefaultRetryAfter},
		{"discovery.pollInterval", c.Discovery.PollInterval},
	} {
		if err := validateDuration(d.name, d.value); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := catalog.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("output.format: %w", err))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// validateDuration ensures a configured duration parses and is positive
func validateDuration(name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '5m'): %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return nil
}

// parseDuration returns the configured duration or def when unset
func parseDuration(value string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return def
}

// GetRegistryURL returns the registry URL, using the Google Fonts repository if not specified
func (c *Config) GetRegistryURL() string {
	if c.Registry.URL == "" {
		return registry.DefaultURL
	}
	return c.Registry.URL
}

// GetLicenseDirs returns the license directories, using the defaults if not specified
func (c *Config) GetLicenseDirs() []string {
	if len(c.Registry.LicenseDirs) == 0 {
		return registry.DefaultLicenseDirs
	}
	return c.Registry.LicenseDirs
}

// GetWorkers returns the discovery worker count
func (c *Config) GetWorkers() int {
	if c.Discovery.Workers == 0 {
		return coordinator.DefaultWorkers
	}
	return c.Discovery.Workers
}

// GetProbeHosts returns the probe host allow-list
func (c *Config) GetProbeHosts() []string {
	if c.Discovery.ProbeHosts == nil {
		return DefaultProbeHosts
	}
	return c.Discovery.ProbeHosts
}

// GetHTTPTimeout returns the probe request timeout
func (c *Config) GetHTTPTimeout() time.Duration {
	return parseDuration(c.Discovery.HTTPTimeout, DefaultHTTPTimeout)
}

// GetGitTimeout returns the git operation timeout
func (c *Config) GetGitTimeout() time.Duration {
	return parseDuration(c.Discovery.GitTimeout, discovery.DefaultGitTimeout)
}

// GetDefaultRetryAfter returns the cooldown used when a 429 has no Retry-After
func (c *Config) GetDefaultRetryAfter() time.Duration {
	return parseDuration(c.Discovery.DefaultRetryAfter, discovery.DefaultRetryAfter)
}

// GetPollInterval returns how often idle workers re-check the cooldown flag
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Discovery.PollInterval, coordinator.DefaultPollInterval)
}

// GetMaxRateLimitRetries returns the per-repository rate limit retry bound
func (c *Config) GetMaxRateLimitRetries() int {
	if c.Discovery.MaxRateLimitRetries == nil {
		return coordinator.DefaultMaxRateLimitRetries
	}
	return *c.Discovery.MaxRateLimitRetries
}

// GetNameFilter returns the include and exclude family name patterns
func (c *Config) GetNameFilter() (include, exclude []string) {
	if c.Discovery.Filter == nil || c.Discovery.Filter.Names == nil {
		return nil, nil
	}
	return c.Discovery.Filter.Names.Include, c.Discovery.Filter.Names.Exclude
}

// GetCheckoutJobs returns the number of concurrent checkouts
func (c *Config) GetCheckoutJobs() int {
	if c.Checkout.Jobs == 0 {
		return DefaultCheckoutJobs
	}
	return c.Checkout.Jobs
}
