package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/bench"
	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/notify"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
	"github.com/spf13/cobra"
)

type benchOptions struct {
	targetFlags

	method      string
	url         string
	requests    int
	concurrency int
	rate        float64
	duration    time.Duration
	thresholds  string
	notifySlack string
	notifyTeams string
	notifyOn    string
	export      []string
	ddAPIKey    string
	ddSite      string
	ddTags      string
}

var benchOpts benchOptions

var benchCmd = &cobra.Command{
	Use:   "bench [METHOD] <url>",
	Short: "Repeat a request and report latency percentiles",
	Long: `Send the same request many times, each over its own connection, and
report throughput, latency percentiles and status codes.

Thresholds fail the run with exit code 1:
  p50, p95, p99, max   latency, e.g. p95<200ms
  errors               error rate, e.g. errors<1%
  rps                  throughput, e.g. rps>=100`,
	Example: `  hitwire bench https://api.example.com/health -n 500 -c 20
  hitwire bench POST https://api.example.com/items -d @item.json --duration 30s -r 50
  hitwire bench https://api.example.com/ --threshold 'p95<200ms,errors<1%'
  hitwire bench https://api.example.com/ --export /var/lib/node_exporter/hitwire.prom`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		benchOpts.method = string(http.MethodGet)
		benchOpts.url = args[0]
		if len(args) == 2 {
			benchOpts.method = args[0]
			benchOpts.url = args[1]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runBench(ctx, cmd.OutOrStdout(), &benchOpts, cmd.Flags().Changed)
	},
}

func init() {
	addTargetFlags(benchCmd, &benchOpts.targetFlags)
	benchCmd.Flags().IntVarP(&benchOpts.requests, "requests", "n", getEnvInt("HITWIRE_BENCH_REQUESTS", 0), "Total requests to send (env: HITWIRE_BENCH_REQUESTS)")
	benchCmd.Flags().IntVarP(&benchOpts.concurrency, "concurrency", "c", getEnvInt("HITWIRE_BENCH_CONCURRENCY", 0), "Maximum requests in flight (env: HITWIRE_BENCH_CONCURRENCY)")
	benchCmd.Flags().Float64VarP(&benchOpts.rate, "rate", "r", getEnvFloat("HITWIRE_BENCH_RATE", 0), "Requests per second, 0 for unlimited (env: HITWIRE_BENCH_RATE)")
	benchCmd.Flags().DurationVar(&benchOpts.duration, "duration", 0, "Stop after this long, e.g. 30s")
	benchCmd.Flags().StringVar(&benchOpts.notifySlack, "notify-slack", getEnvString("HITWIRE_SLACK_WEBHOOK", ""), "Post the result to this Slack webhook (env: HITWIRE_SLACK_WEBHOOK)")
	benchCmd.Flags().StringVar(&benchOpts.notifyTeams, "notify-teams", getEnvString("HITWIRE_TEAMS_WEBHOOK", ""), "Post the result to this Teams webhook (env: HITWIRE_TEAMS_WEBHOOK)")
	benchCmd.Flags().StringVar(&benchOpts.notifyOn, "notify-on", getEnvString("HITWIRE_NOTIFY_ON", string(notify.NotifyFailure)), "When to notify: always, failure, success (env: HITWIRE_NOTIFY_ON)")
	benchCmd.Flags().StringArrayVar(&benchOpts.export, "export", nil, "Write metrics to a file: .json for JSON, anything else Prometheus text (repeatable)")
	benchCmd.Flags().StringVar(&benchOpts.ddAPIKey, "datadog-api-key", getEnvString("DD_API_KEY", ""), "Post metrics to DataDog with this API key (env: DD_API_KEY)")
	benchCmd.Flags().StringVar(&benchOpts.ddSite, "datadog-site", getEnvString("DD_SITE", "datadoghq.com"), "DataDog site (env: DD_SITE)")
	benchCmd.Flags().StringVar(&benchOpts.ddTags, "datadog-tags", getEnvString("DD_TAGS", ""), "Extra DataDog tags, comma separated key:value (env: DD_TAGS)")
	benchCmd.Flags().StringVar(&benchOpts.thresholds, "threshold", getEnvString("HITWIRE_BENCH_THRESHOLD", ""), "Pass/fail thresholds, e.g. 'p95<200ms,errors<1%' (env: HITWIRE_BENCH_THRESHOLD)")
}

// benchConfig layers config-file defaults under explicit flags. A run with
// --duration and no request count runs until the duration elapses.
func benchConfig(cfg *config.Config, o *benchOptions, changed func(string) bool) (*bench.Config, error) {
	bc := bench.DefaultConfig()
	if cfg.Bench != nil {
		if cfg.Bench.Requests > 0 {
			bc.Requests = cfg.Bench.Requests
		}
		if cfg.Bench.Concurrency > 0 {
			bc.Concurrency = cfg.Bench.Concurrency
		}
		if cfg.Bench.Rate > 0 {
			bc.Rate = cfg.Bench.Rate
		}
	}

	if o.duration > 0 {
		bc.Duration = o.duration
		if !changed("requests") && o.requests == 0 {
			bc.Requests = 0
		}
	}
	if o.requests != 0 || changed("requests") {
		bc.Requests = o.requests
	}
	if o.concurrency != 0 || changed("concurrency") {
		bc.Concurrency = o.concurrency
	}
	if o.rate != 0 || changed("rate") {
		bc.Rate = o.rate
	}

	if o.thresholds != "" {
		t, err := bench.ParseThresholds(o.thresholds)
		if err != nil {
			return nil, err
		}
		bc.Thresholds = t
	}

	if err := bc.Validate(); err != nil {
		return nil, err
	}
	return bc, nil
}

func benchExporters(o *benchOptions, client metrics.Poster) []metrics.Exporter {
	var exporters []metrics.Exporter
	for _, path := range o.export {
		exporters = append(exporters, metrics.NewFileExporter(path))
	}
	if o.ddAPIKey != "" {
		exporters = append(exporters, metrics.NewDataDogExporter(client,
			metrics.WithDataDogAPIKey(o.ddAPIKey),
			metrics.WithDataDogSite(o.ddSite),
			metrics.WithDataDogTags(metrics.ParseTags(o.ddTags)),
		))
	}
	return exporters
}

func runBench(ctx context.Context, w io.Writer, o *benchOptions, changed func(string) bool) error {
	s, err := newSession(w, o.output, &o.targetFlags)
	if err != nil {
		return err
	}

	bc, err := benchConfig(s.cfg, o, changed)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	notifyOn, err := notify.ParseNotifyOn(o.notifyOn)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	target, err := s.buildTarget(o.method, o.url, &o.targetFlags, false)
	if err != nil {
		return err
	}

	client, err := s.newClient(&o.targetFlags)
	if err != nil {
		return err
	}
	if err := s.authorize(&target, &o.auth, client); err != nil {
		return err
	}

	runnerOpts := []bench.RunnerOption{bench.WithLogger(s.logger)}
	if s.verbose && bc.Requests > 0 {
		step := max(int64(bc.Requests/10), 1)
		runnerOpts = append(runnerOpts, bench.WithProgress(func(done int64) {
			if done%step == 0 {
				s.logger.Debug("bench progress", "done", done, "total", bc.Requests)
			}
		}))
	}

	s.logger.Debug("starting bench",
		"url", target.URL,
		"requests", bc.Requests,
		"concurrency", bc.Concurrency,
		"rate", bc.Rate,
		"duration", bc.Duration,
	)

	summary, err := bench.NewRunner(bc, client, runnerOpts...).Run(ctx, target)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	report := &output.BenchReport{
		Method:  string(target.Method),
		URL:     target.URL,
		Config:  bc,
		Summary: summary,
	}
	if bc.Thresholds.HasThresholds() {
		report.Thresholds = summary.EvaluateThresholds(bc.Thresholds)
	}

	if err := s.formatter.FormatBench(report); err != nil {
		return err
	}

	if exporters := benchExporters(o, client); len(exporters) > 0 {
		set := metrics.FromBench(report.Method, report.URL, summary, report.Thresholds)
		if err := metrics.ExportAll(set, exporters...); err != nil {
			s.logger.Warn("metrics export failed", "error", err)
		} else {
			s.logger.Debug("metrics exported", "exporters", len(exporters))
		}
	}

	notifier := notify.NewManager(notifyOn, s.logger)
	if o.notifySlack != "" {
		notifier.AddNotifier(notify.NewSlackNotifier(o.notifySlack, client))
	}
	if o.notifyTeams != "" {
		notifier.AddNotifier(notify.NewTeamsNotifier(o.notifyTeams, client))
	}
	if notifier.Len() > 0 {
		// Delivery failures are logged by the manager and never fail the run
		_ = notifier.Notify(notify.BenchSummary(report.Method, report.URL, summary, report.Thresholds))
	}

	// No status codes means no request ever got a response
	if len(summary.StatusCodes) == 0 {
		return withExitCode(ExitNetworkError, fmt.Errorf("no responses received from %s", target.URL))
	}
	if !report.Passed() {
		return withExitCode(ExitAssertionFailure, nil)
	}
	return nil
}
