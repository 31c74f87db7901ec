package filtering

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// NameFilter handles name-based filtering using glob patterns
type NameFilter interface {
	// ShouldInclude determines if a family name should be included based on include/exclude patterns
	// Returns (shouldInclude bool, reason string)
	ShouldInclude(name string) (bool, string)
}

// globNameFilter implements NameFilter with precompiled patterns
type globNameFilter struct {
	include []pattern
	exclude []pattern
}

type pattern struct {
	raw     string
	matcher glob.Glob
}

var _ NameFilter = (*globNameFilter)(nil)

// NewNameFilter compiles the include and exclude patterns.
// It fails on the first invalid pattern.
func NewNameFilter(include, exclude []string) (NameFilter, error) {
	inc, err := compilePatterns(include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exc, err := compilePatterns(exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return &globNameFilter{include: inc, exclude: exc}, nil
}

func compilePatterns(raw []string) ([]pattern, error) {
	compiled := make([]pattern, 0, len(raw))
	for _, p := range raw {
		// filepath.Match catches malformed character classes that glob accepts
		if _, err := filepath.Match(p, "test"); err != nil {
			return nil, fmt.Errorf("'%s': %w", p, err)
		}
		// No separators, so '*' matches across any characters including '/'
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("'%s': %w", p, err)
		}
		compiled = append(compiled, pattern{raw: p, matcher: g})
	}
	return compiled, nil
}

// ShouldInclude determines if a family name should be included
func (f *globNameFilter) ShouldInclude(name string) (bool, string) {
	// Check exclude patterns first (exclude takes precedence)
	for _, p := range f.exclude {
		if p.matcher.Match(name) {
			return false, fmt.Sprintf("excluded by pattern '%s'", p.raw)
		}
	}

	if len(f.include) > 0 {
		for _, p := range f.include {
			if p.matcher.Match(name) {
				return true, fmt.Sprintf("included by pattern '%s'", p.raw)
			}
		}
		return false, "no match found in include patterns"
	}

	if len(f.exclude) > 0 {
		return true, "no match in exclude patterns"
	}
	return true, "no name filters specified"
}
