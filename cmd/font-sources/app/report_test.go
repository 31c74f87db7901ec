package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fontcatalog/font-sources/internal/candidates"
	"github.com/fontcatalog/font-sources/internal/coordinator"
	"github.com/fontcatalog/font-sources/internal/sources"
)

func mustSource(t *testing.T, repoURL string, configFiles ...string) sources.FontSource {
	t.Helper()
	s, err := sources.NewFontSource(repoURL, "abc", configFiles)
	require.NoError(t, err)
	return *s
}

func TestConfigStats(t *testing.T) {
	t.Parallel()

	srcs := []sources.FontSource{
		mustSource(t, "https://github.com/a/one", "sources/config.yaml"),
		mustSource(t, "https://github.com/a/two", "sources/config.yaml", "sources/config-italic.yaml"),
		mustSource(t, "https://github.com/a/three", "sources/config.yml"),
		mustSource(t, "https://github.com/a/four", "sources/config-italic.yaml"),
	}

	assert.Equal(t, []configCount{
		{Path: "sources/config-italic.yaml", Count: 2},
		{Path: "sources/config.yaml", Count: 2},
		{Path: "sources/config.yml", Count: 1},
	}, configStats(srcs))
	assert.Empty(t, configStats(nil))
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	stats := candidates.Stats{Total: 10, Filtered: 2, Kept: 5, NoRepoURL: 2, DuplicateURL: 1}
	result := &coordinator.RunResult{
		Outcomes:  map[string]int{"found": 2, "no_config": 3},
		Failures:  make([]coordinator.Failure, 3),
		Cooldowns: 1,
	}
	srcs := []sources.FontSource{
		mustSource(t, "https://github.com/a/one", "sources/config.yaml"),
		mustSource(t, "https://github.com/a/two", "sources/config.yaml"),
	}

	var buf bytes.Buffer
	writeReport(&buf, false, stats, result, srcs)
	out := buf.String()

	assert.Contains(t, out, "5 of 8 candidates have known repo url\n")
	assert.Contains(t, out, "2 of 5 have sources/config.yaml\n")
	assert.Contains(t, out, "no_config")
	assert.Contains(t, out, "cooldowns")
	assert.Contains(t, out, "sources/config.yaml")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriteReport_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeReport(&buf, false, candidates.Stats{}, &coordinator.RunResult{}, nil)
	assert.Equal(t, "0 of 0 candidates have known repo url\n0 of 0 have sources/config.yaml\n", buf.String())
}
