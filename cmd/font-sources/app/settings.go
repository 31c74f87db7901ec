package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fontcatalog/font-sources/internal/config"
	"github.com/fontcatalog/font-sources/internal/telemetry"
)

// Setting keys. Each is also read from the environment as FONT_SOURCES_<KEY>
// with dots replaced by underscores, e.g. FONT_SOURCES_DISCOVERY_WORKERS.
const (
	keyConfig        = "config"
	keyCacheDir      = "cache_dir"
	keyRegistryPath  = "registry.path"
	keyRegistryURL   = "registry.url"
	keyWorkers       = "discovery.workers"
	keyProbeHosts    = "discovery.probe_hosts"
	keyInclude       = "discovery.include"
	keyIncludeFamily = "discovery.filter.include"
	keyExcludeFamily = "discovery.filter.exclude"
	keyOutPath       = "output.path"
	keyFormat        = "output.format"
	keyMetricsFile   = "telemetry.metrics_file"
	keyJobs          = "checkout.jobs"
)

var errNoCacheDir = errors.New("a cache directory is required (argument, --cache-dir or cacheDir in the config file)")

// settings layers flags and environment variables over the config file
type settings struct {
	v *viper.Viper
}

func newSettings() *settings {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &settings{v: v}
}

// bind connects a flag to a setting key
func (s *settings) bind(flags *pflag.FlagSet, key, flag string) {
	if err := s.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
		slog.Error("Error binding flag", "flag", flag, "error", err)
	}
}

// load reads the config file, applies explicitly set flags and environment
// variables on top and validates the result
func (s *settings) load() (*config.Config, error) {
	var opts []config.Option
	if path := s.v.GetString(keyConfig); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	s.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (s *settings) apply(cfg *config.Config) {
	v := s.v

	if v.IsSet(keyCacheDir) {
		cfg.CacheDir = v.GetString(keyCacheDir)
	}
	if v.IsSet(keyRegistryPath) {
		cfg.Registry.Path = v.GetString(keyRegistryPath)
	}
	if v.IsSet(keyRegistryURL) {
		cfg.Registry.URL = v.GetString(keyRegistryURL)
	}
	if v.IsSet(keyWorkers) {
		cfg.Discovery.Workers = v.GetInt(keyWorkers)
	}
	if v.IsSet(keyProbeHosts) {
		cfg.Discovery.ProbeHosts = v.GetStringSlice(keyProbeHosts)
	}
	if v.IsSet(keyInclude) {
		cfg.Discovery.Include = append(cfg.Discovery.Include, v.GetStringSlice(keyInclude)...)
	}
	if v.IsSet(keyIncludeFamily) || v.IsSet(keyExcludeFamily) {
		if cfg.Discovery.Filter == nil {
			cfg.Discovery.Filter = &config.FilterConfig{}
		}
		if cfg.Discovery.Filter.Names == nil {
			cfg.Discovery.Filter.Names = &config.NameFilterConfig{}
		}
		if v.IsSet(keyIncludeFamily) {
			cfg.Discovery.Filter.Names.Include = v.GetStringSlice(keyIncludeFamily)
		}
		if v.IsSet(keyExcludeFamily) {
			cfg.Discovery.Filter.Names.Exclude = v.GetStringSlice(keyExcludeFamily)
		}
	}
	if v.IsSet(keyOutPath) {
		cfg.Output.Path = v.GetString(keyOutPath)
	}
	if v.IsSet(keyFormat) {
		cfg.Output.Format = v.GetString(keyFormat)
	}
	if v.IsSet(keyMetricsFile) {
		if cfg.Telemetry == nil {
			cfg.Telemetry = &telemetry.Config{}
		}
		if cfg.Telemetry.Metrics == nil {
			cfg.Telemetry.Metrics = &telemetry.MetricsConfig{}
		}
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.Textfile = v.GetString(keyMetricsFile)
	}
	if v.IsSet(keyJobs) {
		cfg.Checkout.Jobs = v.GetInt(keyJobs)
	}
}
