// Package candidates turns parsed family metadata into the set of upstream
// repositories a discovery run visits.
package candidates

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/fontcatalog/font-sources/internal/filtering"
	"github.com/fontcatalog/font-sources/internal/metadata"
	"github.com/fontcatalog/font-sources/internal/sources"
)

// Stats counts the records Reduce dropped, by reason
type Stats struct {
	Total        int
	Kept         int
	Filtered     int
	NoRepoURL    int
	BadRepoURL   int
	DuplicateURL int
}

// Option configures Reduce
type Option func(*reducer)

type reducer struct {
	filter filtering.NameFilter
}

// WithNameFilter drops families rejected by filter
func WithNameFilter(filter filtering.NameFilter) Option {
	return func(r *reducer) {
		r.filter = filter
	}
}

// Reduce filters and de-duplicates records into discovery candidates.
//
// Records are stable-sorted by family name. Records without a repository URL
// or with a URL that does not end in '<org>/<name>' are dropped; for records
// sharing a repository URL the first one by name is kept. The result is
// sorted by name and unique by repository URL. Every dropped record is logged.
func Reduce(records []metadata.Metadata, opts ...Option) ([]sources.Candidate, Stats) {
	r := &reducer{}
	for _, opt := range opts {
		opt(r)
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b metadata.Metadata) int {
		return strings.Compare(a.Name, b.Name)
	})

	stats := Stats{Total: len(records)}
	seen := make(map[string]string, len(sorted))
	out := make([]sources.Candidate, 0, len(sorted))
	for _, m := range sorted {
		if r.filter != nil {
			if ok, reason := r.filter.ShouldInclude(m.Name); !ok {
				slog.Debug("Family filtered out", "name", m.Name, "reason", reason)
				stats.Filtered++
				continue
			}
		}
		if m.RepoURL == "" {
			slog.Debug("Family has no repository url", "name", m.Name)
			stats.NoRepoURL++
			continue
		}
		if err := sources.ValidateRepoURL(m.RepoURL); err != nil {
			slog.Warn("Dropping family with malformed repository url",
				"name", m.Name,
				"repo_url", m.RepoURL,
				"error", err)
			stats.BadRepoURL++
			continue
		}
		if unknown := m.UnknownRepoURL(); unknown != "" {
			slog.Debug("Repository is not hosted on github", "name", m.Name, "repo_url", unknown)
		}
		if first, dup := seen[m.RepoURL]; dup {
			slog.Info("Skipping duplicate repository",
				"name", m.Name,
				"repo_url", m.RepoURL,
				"kept", first)
			stats.DuplicateURL++
			continue
		}
		seen[m.RepoURL] = m.Name
		out = append(out, sources.Candidate{
			Name:       m.Name,
			RepoURL:    m.RepoURL,
			Commit:     m.Commit,
			ConfigPath: m.ConfigYAML,
		})
	}
	stats.Kept = len(out)
	return out, stats
}
