// Package fontconfig parses the build configuration file ('config.yaml') that
// font projects keep in their sources directory.
//
// Only the fields needed to locate sources and describe a build are modeled;
// unknown keys are ignored.
package fontconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNoSources is returned for a config that lists no source files
var ErrNoSources = errors.New("config lists no sources")

// Config is a font project's build configuration
type Config struct {
	Sources        []string `yaml:"sources"`
	FamilyName     string   `yaml:"familyName,omitempty"`
	BuildVariable  bool     `yaml:"buildVariable"`
	BuildStatic    bool     `yaml:"buildStatic"`
	BuildTTF       bool     `yaml:"buildTTF"`
	BuildOTF       bool     `yaml:"buildOTF"`
	AxisOrder      []string `yaml:"axisOrder,omitempty"`
	RecipeProvider string   `yaml:"recipeProvider,omitempty"`
	GlyphData      []string `yaml:"glyphData,omitempty"`

	FlattenComponents              bool `yaml:"flattenComponents"`
	DecomposeTransformedComponents bool `yaml:"decomposeTransformedComponents"`
	ReverseOutlineDirection        bool `yaml:"reverseOutlineDirection"`
	CheckCompatibility             bool `yaml:"checkCompatibility"`
	RemoveOutlineOverlaps          bool `yaml:"removeOutlineOverlaps"`
	ExpandFeaturesToInstances      bool `yaml:"expandFeaturesToInstances"`
	BuildSmallCap                  bool `yaml:"buildSmallCap"`
	SplitItalic                    bool `yaml:"splitItalic"`
}

// defaults returns a Config with the build toggles that default to on
func defaults() Config {
	return Config{
		BuildVariable:                  true,
		BuildStatic:                    true,
		BuildTTF:                       true,
		FlattenComponents:              true,
		DecomposeTransformedComponents: true,
		ReverseOutlineDirection:        true,
		CheckCompatibility:             true,
		RemoveOutlineOverlaps:          true,
		BuildSmallCap:                  true,
		SplitItalic:                    true,
	}
}

// Parse decodes a build config from YAML
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Sources) == 0 {
		return nil, ErrNoSources
	}
	return &cfg, nil
}

// Load reads and parses the build config at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from a catalog entry under the cache dir
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", path, err)
	}
	return cfg, nil
}
