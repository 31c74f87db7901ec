// Package app provides the commands of the font-sources CLI.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fontcatalog/font-sources/internal/versions"
)

// NewRootCmd creates the root command. level is raised to debug by --verbose.
func NewRootCmd(level *slog.LevelVar) *cobra.Command {
	if level == nil {
		level = new(slog.LevelVar)
	}
	settings := newSettings()

	rootCmd := &cobra.Command{
		Use:               "font-sources",
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		SilenceUsage:      true,
		Short:             "Catalog the upstream build sources of registry font families",
		Long: `font-sources finds, for every family in the font registry, the upstream source
repository and the build configuration files in its 'sources' directory, and
writes the result as a versioned catalog for downstream build tooling.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level.Set(slog.LevelDebug)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print more info to stderr")
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	rootCmd.PersistentFlags().String("cache-dir", "",
		"Directory for repository checkouts; anything in it may be modified or deleted")
	settings.bind(rootCmd.PersistentFlags(), keyConfig, "config")
	settings.bind(rootCmd.PersistentFlags(), keyCacheDir, "cache-dir")

	rootCmd.AddCommand(newDiscoverCmd(settings))
	rootCmd.AddCommand(newCheckoutCmd(settings))
	rootCmd.AddCommand(newStatusCmd(settings))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to read format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "font-sources %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}
