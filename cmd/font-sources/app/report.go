package app

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/fontcatalog/font-sources/internal/candidates"
	"github.com/fontcatalog/font-sources/internal/coordinator"
	"github.com/fontcatalog/font-sources/internal/sources"
)

var (
	summaryStyle = lipgloss.NewStyle().Bold(true)
	goodStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	badStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// configCount is how many sources list a config file path
type configCount struct {
	Path  string
	Count int
}

// configStats counts config file paths across srcs, most common first
func configStats(srcs []sources.FontSource) []configCount {
	counts := make(map[string]int)
	for i := range srcs {
		for _, f := range srcs[i].ConfigFiles() {
			counts[f]++
		}
	}
	stats := make([]configCount, 0, len(counts))
	for _, path := range slices.Sorted(maps.Keys(counts)) {
		stats = append(stats, configCount{Path: path, Count: counts[path]})
	}
	slices.SortStableFunc(stats, func(a, b configCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return stats
}

// writeReport prints the run summary and config statistics
func writeReport(
	w io.Writer,
	styled bool,
	stats candidates.Stats,
	result *coordinator.RunResult,
	srcs []sources.FontSource,
) {
	style := func(s lipgloss.Style, str string) string {
		if !styled {
			return str
		}
		return s.Render(str)
	}

	considered := stats.Total - stats.Filtered
	_, _ = fmt.Fprintln(w, style(summaryStyle,
		fmt.Sprintf("%d of %d candidates have known repo url", stats.Kept, considered)))

	found := len(srcs)
	sourceStyle := goodStyle
	if len(result.Failures) > 0 {
		sourceStyle = badStyle
	}
	_, _ = fmt.Fprintln(w, style(sourceStyle,
		fmt.Sprintf("%d of %d have sources/config.yaml", found, stats.Kept)))

	if len(result.Outcomes) > 0 {
		writeOutcomes(w, result)
	}
	if cs := configStats(srcs); len(cs) > 0 {
		writeConfigStats(w, cs)
	}
}

func writeOutcomes(w io.Writer, result *coordinator.RunResult) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Outcome", "Repositories"})
	for _, outcome := range slices.Sorted(maps.Keys(result.Outcomes)) {
		t.AppendRow(table.Row{outcome, result.Outcomes[outcome]})
	}
	if result.Cooldowns > 0 {
		t.AppendFooter(table.Row{"cooldowns", result.Cooldowns})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight, AlignFooter: text.AlignRight},
	})
	_, _ = fmt.Fprintln(w, t.Render())
}

func writeConfigStats(w io.Writer, stats []configCount) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Config file", "Sources"})
	for _, s := range stats {
		t.AppendRow(table.Row{s.Path, s.Count})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})
	_, _ = fmt.Fprintln(w, t.Render())
}
