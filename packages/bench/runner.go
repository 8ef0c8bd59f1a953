package bench

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Requester issues one request. *http.Client satisfies it.
type Requester interface {
	Request(method http.Method, rawURL string, headers, query map[string]string, body []byte) (*http.Response, error)
}

// Target is the request repeated by a run
type Target struct {
	Method  http.Method
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

// Runner executes a benchmark
type Runner struct {
	config    *Config
	client    Requester
	scheduler *Scheduler
	metrics   *Metrics
	logger    *slog.Logger
	progress  func(done int64)
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithLogger sets the logger used for per-request failures
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithProgress registers a callback invoked after every completed request
func WithProgress(fn func(done int64)) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

// NewRunner creates a new benchmark runner
func NewRunner(config *Config, client Requester, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:    config,
		client:    client,
		scheduler: NewScheduler(config),
		metrics:   NewMetrics(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run repeats target until Requests have been issued, Duration elapses or ctx
// is cancelled. Cancellation is not an error: the summary covers what ran.
func (r *Runner) Run(ctx context.Context, target Target) (*Summary, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if r.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Duration)
		defer cancel()
	}

	var wg sync.WaitGroup
	r.metrics.Start()

	for issued := 0; r.config.Requests == 0 || issued < r.config.Requests; issued++ {
		if err := r.scheduler.Wait(ctx); err != nil {
			break
		}
		if err := r.scheduler.Acquire(ctx); err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.scheduler.Release()
			r.execute(target)
		}()
	}

	wg.Wait()
	r.metrics.Stop()

	return r.metrics.GetSummary(), nil
}

func (r *Runner) execute(target Target) {
	start := time.Now()
	resp, err := r.client.Request(target.Method, target.URL, target.Headers, target.Query, target.Body)
	elapsed := time.Since(start)

	status := 0
	if err != nil {
		r.logger.Debug("bench request failed", "error", err)
	} else {
		status = resp.StatusCode
		if resp.Duration > 0 {
			elapsed = resp.Duration
		}
	}
	r.metrics.Record(elapsed, status, err)

	if r.progress != nil {
		r.progress(r.metrics.totalRequests.Load())
	}
}

// Metrics returns the collector used by the runner
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}
