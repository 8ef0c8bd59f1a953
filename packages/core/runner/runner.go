package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/assertions"
	"github.com/abdul-hamid-achik/hitwire/packages/capture"
	"github.com/abdul-hamid-achik/hitwire/packages/core/parser"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/vars"
)

// DefaultConcurrency is the number of requests in flight in parallel mode
const DefaultConcurrency = 5

// Requester issues one request. *http.Client satisfies it.
type Requester interface {
	Request(method http.Method, rawURL string, headers, query map[string]string, body []byte) (*http.Response, error)
}

type Config struct {
	Variables   map[string]string // layered over the file's own variables
	Headers     map[string]string // sent with every request unless the file sets them
	NameFilter  string            // glob matched against request names
	Bail        bool              // stop after the first failure
	Parallel    bool
	Concurrency int
}

type Runner struct {
	client  Requester
	config  *Config
	logger  *slog.Logger
	varOpts []vars.Option
}

type Option func(*Runner)

// WithLogger sets the logger for per-request progress
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithExpanderOptions passes options to every placeholder expander the
// runner builds.
func WithExpanderOptions(opts ...vars.Option) Option {
	return func(r *Runner) {
		r.varOpts = append(r.varOpts, opts...)
	}
}

func NewRunner(client Requester, cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	r := &Runner{
		client: client,
		config: cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type RunResult struct {
	File     string
	Results  []*RequestResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// Ok reports whether no request failed.
func (r *RunResult) Ok() bool {
	return r.Failed == 0
}

type RequestResult struct {
	Name       string
	Method     http.Method
	URL        string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Response   *http.Response
	Assertions []*assertions.Result
	Captures   map[string]any
	Missing    []string
	Error      error
}

// RunFile parses path and runs its requests.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.Run(ctx, file), nil
}

// Run sends the requests of file. Cancelling ctx skips the requests not yet
// started.
func (r *Runner) Run(ctx context.Context, file *parser.File) *RunResult {
	start := time.Now()
	result := &RunResult{File: file.Path}

	variables := file.VariableMap()
	for k, v := range r.config.Variables {
		variables[k] = v
	}

	var selected []entry
	for i, req := range file.Requests {
		if !r.matches(req) {
			result.Results = append(result.Results, skipped(entry{req, i}, "filtered out"))
			continue
		}
		selected = append(selected, entry{req, i})
	}

	var ran []*RequestResult
	if r.config.Parallel {
		ran = r.runParallel(ctx, selected, variables)
	} else {
		ran = r.runSequential(ctx, selected, variables)
	}
	result.Results = append(result.Results, ran...)

	for _, rr := range result.Results {
		switch {
		case rr.Skipped:
			result.Skipped++
		case rr.Passed:
			result.Passed++
		default:
			result.Failed++
		}
	}
	result.Duration = time.Since(start)
	return result
}

// entry is a request and its position in the file
type entry struct {
	req *parser.Request
	pos int
}

func (r *Runner) runSequential(ctx context.Context, entries []entry, variables map[string]string) []*RequestResult {
	results := make([]*RequestResult, 0, len(entries))
	for _, en := range entries {
		if ctx.Err() != nil {
			results = append(results, skipped(en, "cancelled"))
			continue
		}
		if r.config.Bail && len(results) > 0 && !results[len(results)-1].Passed {
			results = append(results, skipped(en, "earlier request failed"))
			continue
		}

		rr := r.send(en, vars.New(variables, r.varOpts...))
		results = append(results, rr)

		if req := en.req; req.Name != "" {
			for expr, value := range rr.Captures {
				variables[req.Name+"."+expr] = stringify(value)
			}
		}
	}
	return results
}

func (r *Runner) runParallel(ctx context.Context, entries []entry, variables map[string]string) []*RequestResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	expander := vars.New(variables, r.varOpts...)
	results := make([]*RequestResult, len(entries))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, en := range entries {
		if ctx.Err() != nil {
			results[i] = skipped(en, "cancelled")
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, en entry) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = r.send(en, expander)
		}(i, en)
	}

	wg.Wait()
	return results
}

func (r *Runner) send(en entry, e *vars.Expander) *RequestResult {
	req := en.req
	result := &RequestResult{
		Name:   en.name(),
		Method: http.ParseMethod(e.Expand(req.Method)),
		URL:    e.Expand(req.URL),
	}

	expects := make([]assertions.Assertion, 0, len(req.Expects))
	for _, expr := range req.Expects {
		a, err := assertions.Parse(e.Expand(expr))
		if err != nil {
			result.Error = fmt.Errorf("line %d: expect %q: %w", req.Line, expr, err)
			return result
		}
		expects = append(expects, a)
	}

	headers := make(map[string]string, len(r.config.Headers)+len(req.Headers))
	for k, v := range r.config.Headers {
		headers[e.Expand(k)] = e.Expand(v)
	}
	for _, h := range req.Headers {
		headers[e.Expand(h.Key)] = e.Expand(h.Value)
	}
	query := make(map[string]string, len(req.Query))
	for _, q := range req.Query {
		query[e.Expand(q.Key)] = e.Expand(q.Value)
	}
	var body []byte
	if req.Body != "" {
		body = []byte(e.Expand(req.Body))
	}

	start := time.Now()
	resp, err := r.client.Request(result.Method, result.URL, headers, query, body)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		r.logger.Debug("request failed", "name", req.Name, "url", result.URL, "error", err)
		return result
	}
	result.Response = resp

	result.Captures, result.Missing = capture.ExtractAll(resp, req.Captures)

	if len(expects) > 0 {
		result.Assertions = assertions.EvaluateAll(resp, expects)
		result.Passed = assertions.AllPassed(result.Assertions)
	} else {
		result.Passed = resp.IsSuccess()
	}

	r.logger.Debug("request finished",
		"name", req.Name,
		"status", resp.StatusCode,
		"passed", result.Passed,
		"duration", result.Duration,
	)
	return result
}

func (r *Runner) matches(req *parser.Request) bool {
	if r.config.NameFilter == "" {
		return true
	}
	ok, err := path.Match(strings.ToLower(r.config.NameFilter), strings.ToLower(req.Name))
	return err == nil && ok
}

func skipped(en entry, reason string) *RequestResult {
	return &RequestResult{
		Name:       en.name(),
		Method:     http.ParseMethod(en.req.Method),
		URL:        en.req.URL,
		Skipped:    true,
		SkipReason: reason,
	}
}

// name falls back to the request's position in the file.
func (en entry) name() string {
	if en.req.Name != "" {
		return en.req.Name
	}
	return fmt.Sprintf("#%d", en.pos+1)
}

// stringify renders a captured value for use in a template. Strings are
// used as-is and everything else as JSON.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
