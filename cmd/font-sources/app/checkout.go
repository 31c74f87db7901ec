package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fontcatalog/font-sources/internal/catalog"
	"github.com/fontcatalog/font-sources/internal/config"
	"github.com/fontcatalog/font-sources/internal/git"
	"github.com/fontcatalog/font-sources/internal/sources"
)

func newCheckoutCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout CATALOG",
		Short: "Check out every source of a catalog and list its font source files",
		Long: `Checkout makes sure every source of the catalog is cloned into the cache
directory at its pinned revision, then prints the font source files listed by
each source's primary config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.load()
			if err != nil {
				return err
			}
			r := &checkoutRun{
				cfg:     cfg,
				git:     git.NewDefaultGitClient(),
				catalog: args[0],
				out:     cmd.OutOrStdout(),
				errOut:  cmd.ErrOrStderr(),
			}
			return r.run(cmd.Context())
		},
	}

	cmd.Flags().IntP("jobs", "j", 0, "Number of concurrent checkouts")
	s.bind(cmd.Flags(), keyJobs, "jobs")
	return cmd
}

// checkoutRun is one execution of the checkout command
type checkoutRun struct {
	cfg     *config.Config
	git     git.Client
	catalog string
	out     io.Writer
	errOut  io.Writer
}

// checkoutResult is the outcome for one catalog source
type checkoutResult struct {
	source sources.FontSource
	files  []string
	err    error
}

func (r *checkoutRun) run(ctx context.Context) error {
	cacheDir := r.cfg.CacheDir
	if cacheDir == "" {
		return errNoCacheDir
	}

	cat, err := catalog.Load(r.catalog)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	unlock, err := lockCacheDir(cacheDir)
	if err != nil {
		return err
	}
	defer unlock()

	// hand-maintained catalogs may pin one repository at several revisions
	// without marking them
	sources.MarkRevConflicts(cat.Sources)

	results := make([]checkoutResult, len(cat.Sources))
	var g errgroup.Group
	g.SetLimit(r.cfg.GetCheckoutJobs())
	for _, group := range groupByRepoPath(cat.Sources, cacheDir) {
		g.Go(func() error {
			// entries sharing a checkout run in order
			for _, i := range group {
				src := cat.Sources[i]
				files, err := src.GetSources(ctx, r.git, cacheDir)
				if err != nil {
					slog.Warn("Failed to check out source", "repo_url", src.RepoURL(), "rev", src.Rev(), "error", err)
				}
				results[i] = checkoutResult{source: src, files: files, err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.source.RepoURL(), res.err))
			continue
		}
		for _, f := range res.files {
			rel, err := filepath.Rel(cacheDir, f)
			if err != nil {
				rel = f
			}
			_, _ = fmt.Fprintln(r.out, filepath.ToSlash(rel))
		}
	}

	if err := writeCheckoutTable(r.errOut, results); err != nil {
		slog.Warn("Failed to render checkout summary", "error", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d sources failed: %w", len(errs), len(results), errors.Join(errs...))
	}
	return nil
}

// groupByRepoPath returns the indexes of srcs grouped by checkout path, in
// order of first appearance
func groupByRepoPath(srcs []sources.FontSource, cacheDir string) [][]int {
	var groups [][]int
	byPath := make(map[string]int)
	for i := range srcs {
		path := srcs[i].RepoPath(cacheDir)
		g, ok := byPath[path]
		if !ok {
			g = len(groups)
			byPath[path] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func writeCheckoutTable(w io.Writer, results []checkoutResult) error {
	t := tablewriter.NewWriter(w)
	t.Header([]string{"Repository", "Revision", "Files", "Status"})
	for _, res := range results {
		state := "ok"
		if res.err != nil {
			state = checkoutFailure(res.err)
		}
		rev := res.source.Rev()
		if len(rev) > 10 {
			rev = rev[:10]
		}
		if err := t.Append([]string{res.source.RepoURL(), rev, strconv.Itoa(len(res.files)), state}); err != nil {
			return err
		}
	}
	return t.Render()
}

// checkoutFailure names the reason a source could not be checked out
func checkoutFailure(err error) string {
	switch {
	case errors.Is(err, sources.ErrMissingAuth):
		return "missing auth"
	case errors.Is(err, sources.ErrNoConfigFile):
		return "no config"
	case errors.Is(err, git.ErrRevisionNotFound):
		return "missing rev"
	}
	return "error"
}
