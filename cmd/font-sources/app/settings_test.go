package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fontcatalog/font-sources/internal/config"
)

func TestSettings_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		set    map[string]any
		base   config.Config
		verify func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "nothing set keeps the file values",
			base: config.Config{CacheDir: "/cache", Discovery: config.DiscoveryConfig{Workers: 3}},
			verify: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "/cache", cfg.CacheDir)
				assert.Equal(t, 3, cfg.Discovery.Workers)
				assert.Nil(t, cfg.Telemetry)
				assert.Nil(t, cfg.Discovery.Filter)
			},
		},
		{
			name: "overrides",
			set: map[string]any{
				keyCacheDir:     "/other",
				keyRegistryPath: "/fonts",
				keyRegistryURL:  "https://example.com/fonts",
				keyWorkers:      12,
				keyProbeHosts:   []string{"gitlab.com"},
				keyOutPath:      "out.yaml",
				keyFormat:       "yaml",
				keyJobs:         2,
			},
			base: config.Config{CacheDir: "/cache", Discovery: config.DiscoveryConfig{Workers: 3}},
			verify: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "/other", cfg.CacheDir)
				assert.Equal(t, "/fonts", cfg.Registry.Path)
				assert.Equal(t, "https://example.com/fonts", cfg.Registry.URL)
				assert.Equal(t, 12, cfg.Discovery.Workers)
				assert.Equal(t, []string{"gitlab.com"}, cfg.Discovery.ProbeHosts)
				assert.Equal(t, "out.yaml", cfg.Output.Path)
				assert.Equal(t, "yaml", cfg.Output.Format)
				assert.Equal(t, 2, cfg.Checkout.Jobs)
			},
		},
		{
			name: "includes are appended",
			set:  map[string]any{keyInclude: []string{"b.json"}},
			base: config.Config{Discovery: config.DiscoveryConfig{Include: []string{"a.json"}}},
			verify: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, []string{"a.json", "b.json"}, cfg.Discovery.Include)
			},
		},
		{
			name: "family filters",
			set: map[string]any{
				keyIncludeFamily: []string{"Noto*"},
				keyExcludeFamily: []string{"*Emoji"},
			},
			verify: func(t *testing.T, cfg *config.Config) {
				require.NotNil(t, cfg.Discovery.Filter)
				require.NotNil(t, cfg.Discovery.Filter.Names)
				assert.Equal(t, []string{"Noto*"}, cfg.Discovery.Filter.Names.Include)
				assert.Equal(t, []string{"*Emoji"}, cfg.Discovery.Filter.Names.Exclude)
			},
		},
		{
			name: "metrics file enables telemetry",
			set:  map[string]any{keyMetricsFile: "/tmp/metrics.prom"},
			verify: func(t *testing.T, cfg *config.Config) {
				require.NotNil(t, cfg.Telemetry)
				require.NotNil(t, cfg.Telemetry.Metrics)
				assert.True(t, cfg.Telemetry.Enabled)
				assert.True(t, cfg.Telemetry.Metrics.Enabled)
				assert.Equal(t, "/tmp/metrics.prom", cfg.Telemetry.Metrics.Textfile)
				assert.NoError(t, cfg.Validate())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newSettings()
			for k, v := range tt.set {
				s.v.Set(k, v)
			}
			cfg := tt.base
			s.apply(&cfg)
			tt.verify(t, &cfg)
		})
	}
}

func TestSettings_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
cacheDir: /from-file
discovery:
  workers: 4
output:
  format: yaml
`), 0600))

	s := newSettings()
	s.v.Set(keyConfig, configPath)
	s.v.Set(keyWorkers, 16)

	cfg, err := s.load()
	require.NoError(t, err)
	assert.Equal(t, "/from-file", cfg.CacheDir)
	assert.Equal(t, 16, cfg.Discovery.Workers)
	assert.Equal(t, "yaml", cfg.Output.Format)
}

func TestSettings_LoadInvalid(t *testing.T) {
	t.Parallel()

	s := newSettings()
	s.v.Set(keyFormat, "xml")

	_, err := s.load()
	assert.ErrorContains(t, err, "invalid configuration")
}
