package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/hitwire/packages/contract"
	"github.com/abdul-hamid-achik/hitwire/packages/coverage"
	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
	"github.com/spf13/cobra"
)

type historyOptions struct {
	db          string
	limit       int
	clear       bool
	output      string
	coverage    string
	minCoverage float64
}

var histOpts historyOptions

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded requests",
	Long: `List requests recorded in the history database, newest first.

Recording is enabled by setting "history" in the config file to a SQLite
path or a postgres:// URL. --db selects the store explicitly.`,
	Example: `  hitwire history
  hitwire history --limit 5 -o json
  hitwire history --coverage openapi.yaml --min-coverage 80
  hitwire history --clear`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd.Context(), cmd.OutOrStdout(), &histOpts)
	},
}

func init() {
	historyCmd.Flags().StringVar(&histOpts.db, "db", getEnvString("HITWIRE_HISTORY", ""), "History database path, overrides config (env: HITWIRE_HISTORY)")
	historyCmd.Flags().IntVarP(&histOpts.limit, "limit", "l", 20, "Maximum entries to show, 0 for all")
	historyCmd.Flags().BoolVar(&histOpts.clear, "clear", false, "Delete all recorded entries")
	historyCmd.Flags().StringVar(&histOpts.coverage, "coverage", "", "Report which operations of this OpenAPI document the history has exercised")
	historyCmd.Flags().Float64Var(&histOpts.minCoverage, "min-coverage", 0, "With --coverage, exit 1 when coverage is below this percentage")
	historyCmd.Flags().StringVarP(&histOpts.output, "output", "o", getEnvString("HITWIRE_OUTPUT", output.FormatConsole), "Output format: console, json (env: HITWIRE_OUTPUT)")
}

func runHistory(ctx context.Context, w io.Writer, o *historyOptions) error {
	s, err := newSession(w, o.output, nil)
	if err != nil {
		return err
	}

	path := o.db
	if path == "" {
		path = s.cfg.History
	}
	if path == "" {
		return withExitCode(ExitConfigError, errors.New(`no history database configured: set "history" in the config file or pass --db`))
	}

	store, err := history.Open(path)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	if o.clear {
		n, err := store.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted %d entries.\n", n)
		return nil
	}

	if o.coverage != "" {
		return runCoverage(ctx, s, store, o)
	}

	entries, err := store.List(ctx, o.limit)
	if err != nil {
		return err
	}
	return s.formatter.FormatHistory(entries)
}

// runCoverage analyzes every entry that got a response. --limit is ignored.
func runCoverage(ctx context.Context, s *session, store *history.Store, o *historyOptions) error {
	v, err := contract.Load(o.coverage)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		return err
	}

	requests := make([]coverage.Request, 0, len(entries))
	for _, e := range entries {
		if e.StatusCode == 0 {
			continue
		}
		requests = append(requests, coverage.Request{Method: e.Method, URL: e.URL})
	}

	report := coverage.Analyze(v, requests)
	if err := s.formatter.FormatCoverage(report); err != nil {
		return err
	}
	if o.minCoverage > 0 && report.CoveragePercent < o.minCoverage {
		return withExitCode(ExitAssertionFailure, fmt.Errorf("coverage %.1f%% is below %.1f%%", report.CoveragePercent, o.minCoverage))
	}
	return nil
}
