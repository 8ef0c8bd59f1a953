package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/core/parser"
	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
	"github.com/abdul-hamid-achik/hitwire/packages/vars"
	"github.com/spf13/cobra"
)

type runOptions struct {
	targetFlags

	file        string
	name        string
	bail        bool
	parallel    bool
	concurrency int
	waitFor     string
	waitStatus  int
	waitTimeout time.Duration
	reports     []string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run <file.http>",
	Short: "Send every request in a .http file",
	Long: `Send the requests of a .http file in order, each over its own
connection, and report which passed.

A request with expect lines passes when all of them hold; one without
passes on any 2xx response. Values captured by a named request are
available to later requests as {{name.expr}}:

  ### login
  POST {{base}}/login
  >>>
  capture body.token
  <<<

  ### me
  GET {{base}}/me
  Authorization: Bearer {{login.body.token}}`,
	Example: `  hitwire run api.http
  hitwire run api.http --name 'users-*' --bail
  hitwire run smoke.http --parallel -c 10 --wait-for http://localhost:8080/health
  hitwire run api.http --report results.xml --report results.tap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runOpts.file = args[0]

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runFile(ctx, cmd.OutOrStdout(), &runOpts)
	},
}

func init() {
	f := &runOpts.targetFlags
	runCmd.Flags().StringArrayVar(&f.vars, "var", nil, "Template variable as name=value (repeatable)")
	runCmd.Flags().StringVar(&f.envFile, "env-file", getEnvString("HITWIRE_ENV_FILE", ""), "Load template variables from a .env file (env: HITWIRE_ENV_FILE)")
	runCmd.Flags().StringVar(&f.timeout, "timeout", getEnvString("HITWIRE_TIMEOUT", ""), "Connect and I/O timeout per request, e.g. 5s (env: HITWIRE_TIMEOUT)")
	runCmd.Flags().BoolVarP(&f.insecure, "insecure", "k", getEnvBool("HITWIRE_INSECURE", false), "Skip TLS certificate validation (env: HITWIRE_INSECURE)")
	runCmd.Flags().StringVarP(&f.output, "output", "o", getEnvString("HITWIRE_OUTPUT", output.FormatConsole), "Output format: console, json (env: HITWIRE_OUTPUT)")

	runCmd.Flags().StringVar(&runOpts.name, "name", "", "Only run requests whose name matches this glob")
	runCmd.Flags().BoolVar(&runOpts.bail, "bail", false, "Stop after the first failed request")
	runCmd.Flags().BoolVar(&runOpts.parallel, "parallel", false, "Send requests concurrently; captures are not shared")
	runCmd.Flags().IntVarP(&runOpts.concurrency, "concurrency", "c", runner.DefaultConcurrency, "Requests in flight with --parallel")
	runCmd.Flags().StringVar(&runOpts.waitFor, "wait-for", "", "Poll this URL until it answers before running")
	runCmd.Flags().IntVar(&runOpts.waitStatus, "wait-status", 0, "Status --wait-for expects, 0 for any 2xx")
	runCmd.Flags().DurationVar(&runOpts.waitTimeout, "wait-timeout", 30*time.Second, "Give up on --wait-for after this long")
	runCmd.Flags().StringArrayVar(&runOpts.reports, "report", nil, "Also write a report file: .xml for JUnit, anything else TAP (repeatable)")
}

func runFile(ctx context.Context, w io.Writer, o *runOptions) error {
	file, err := parser.ParseFile(o.file)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	f := o.targetFlags
	f.fileVars = file.VariableMap()
	s, err := newSession(w, f.output, &f)
	if err != nil {
		return err
	}
	variables, err := collectVariables(s.cfg, &f)
	if err != nil {
		return err
	}

	client, err := s.newClient(&f)
	if err != nil {
		return err
	}

	if o.waitFor != "" {
		s.logger.Debug("waiting for service", "url", o.waitFor, "timeout", o.waitTimeout)
		err := runner.WaitFor(ctx, client, runner.WaitConfig{
			URL:     s.expander.Expand(o.waitFor),
			Status:  o.waitStatus,
			Timeout: o.waitTimeout,
		})
		if err != nil {
			return withExitCode(ExitNetworkError, err)
		}
	}

	r := runner.NewRunner(client, &runner.Config{
		Variables:   variables,
		Headers:     s.cfg.Headers,
		NameFilter:  o.name,
		Bail:        o.bail,
		Parallel:    o.parallel,
		Concurrency: o.concurrency,
	}, runner.WithLogger(s.logger), runner.WithExpanderOptions(vars.WithLogger(s.logger)))

	result := r.Run(ctx, file)

	for _, rr := range result.Results {
		if !rr.Skipped {
			s.recordHistory(ctx, rr.Method, rr.URL, nil, rr.Response, rr.Error)
		}
	}

	if err := s.formatter.FormatRun(result); err != nil {
		return err
	}
	for _, path := range o.reports {
		if err := writeReport(path, result); err != nil {
			s.logger.Warn("report not written", "path", path, "error", err)
		}
	}

	switch {
	case len(result.Results) == 0:
		return withExitCode(ExitUsageError, fmt.Errorf("%s has no requests", o.file))
	case !result.Ok():
		return withExitCode(ExitAssertionFailure, nil)
	}
	return nil
}

func writeReport(path string, result *runner.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := output.WriteReport(output.ReportFormat(path), f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
