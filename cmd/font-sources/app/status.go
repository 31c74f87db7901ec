package app

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fontcatalog/font-sources/internal/status"
)

func newStatusCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status [CACHE_DIR]",
		Short: "Show the outcome of the last discover run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.load()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.CacheDir = args[0]
			}
			if cfg.CacheDir == "" {
				return errNoCacheDir
			}

			st, err := status.NewFileStatusPersistence(cfg.CacheDir).LoadStatus(cmd.Context())
			if err != nil {
				return err
			}
			if st.RunID == "" {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "No discover run recorded in %s\n", cfg.CacheDir)
				return err
			}
			return writeStatus(cmd.OutOrStdout(), st)
		},
	}
}

func writeStatus(w io.Writer, st *status.RunStatus) error {
	t := tablewriter.NewWriter(w)
	t.Header([]string{"Field", "Value"})

	rows := [][]string{
		{"Run", st.RunID},
		{"Phase", string(st.Phase)},
	}
	if st.Message != "" {
		rows = append(rows, []string{"Message", st.Message})
	}
	if st.StartedAt != nil {
		rows = append(rows, []string{"Started", st.StartedAt.Format(time.RFC3339)})
	}
	if st.FinishedAt != nil {
		rows = append(rows, []string{"Duration", st.Duration().Round(time.Millisecond).String()})
	}
	if st.RegistryRev != "" {
		rows = append(rows, []string{"Registry revision", st.RegistryRev})
	}
	rows = append(rows,
		[]string{"Candidates", strconv.Itoa(st.Candidates)},
		[]string{"Sources", strconv.Itoa(st.Sources)},
		[]string{"Failures", strconv.Itoa(st.Failures)},
		[]string{"Cooldowns", strconv.FormatInt(st.Cooldowns, 10)},
	)
	for _, outcome := range slices.Sorted(maps.Keys(st.Outcomes)) {
		rows = append(rows, []string{"Outcome " + outcome, strconv.Itoa(st.Outcomes[outcome])})
	}
	if st.Output != "" {
		rows = append(rows, []string{"Output", st.Output})
	}

	for _, row := range rows {
		if err := t.Append(row); err != nil {
			return err
		}
	}
	return t.Render()
}
