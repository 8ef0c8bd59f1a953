package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/assertions"
	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/coverage"
	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/sse"
)

// JSONExchange is the JSON form of a single request
type JSONExchange struct {
	Passed     bool            `json:"passed"`
	Error      string          `json:"error,omitempty"`
	Request    JSONRequest     `json:"request"`
	Response   *JSONResponse   `json:"response,omitempty"`
	Events     []sse.Event     `json:"events,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
	Captures   map[string]any  `json:"captures,omitempty"`
	Missing    []string        `json:"missing,omitempty"`
	Time       string          `json:"time"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Proto      string            `json:"proto"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	BodyText   string            `json:"bodyText,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONBench is the JSON form of a benchmark
type JSONBench struct {
	Method      string           `json:"method"`
	URL         string           `json:"url"`
	Passed      bool             `json:"passed"`
	Duration    string           `json:"duration"`
	Requests    JSONBenchCounts  `json:"requests"`
	Rates       JSONBenchRates   `json:"rates"`
	Latency     map[string]int64 `json:"latencyUs"`
	StatusCodes map[int]int64    `json:"statusCodes,omitempty"`
	Errors      map[string]int64 `json:"errors,omitempty"`
	Thresholds  []JSONThreshold  `json:"thresholds,omitempty"`
}

type JSONBenchCounts struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
}

type JSONBenchRates struct {
	RPS         float64 `json:"rps"`
	SuccessRate float64 `json:"successRate"`
	ErrorRate   float64 `json:"errorRate"`
}

type JSONThreshold struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// JSONFormatter writes one JSON document per call
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (f *JSONFormatter) FormatExchange(ex *Exchange) error {
	out := JSONExchange{
		Passed: ex.Passed(),
		Request: JSONRequest{
			Method:  ex.Method,
			URL:     ex.URL,
			Headers: ex.Headers,
		},
		Events:   ex.Events,
		Captures: ex.Captures,
		Missing:  ex.Missing,
		Time:     time.Now().Format(time.RFC3339),
	}

	if ex.Err != nil {
		out.Error = ex.Err.Error()
	}

	out.Response = jsonResponse(ex.Response)
	out.Assertions = jsonAssertions(ex.Assertions)

	return f.encode(out)
}

func jsonResponse(resp *http.Response) *JSONResponse {
	if resp == nil {
		return nil
	}
	out := &JSONResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Proto:      resp.Proto,
		Headers:    resp.Headers,
		Duration:   float64(resp.DurationMs()),
	}
	if len(resp.Body) > 0 {
		if json.Valid(resp.Body) {
			out.Body = json.RawMessage(resp.Body)
		} else {
			out.BodyText = resp.BodyString()
		}
	}
	return out
}

func jsonAssertions(results []*assertions.Result) []JSONAssertion {
	var out []JSONAssertion
	for _, a := range results {
		out = append(out, JSONAssertion{
			Subject:  a.Subject,
			Operator: a.Operator,
			Expected: a.Expected,
			Actual:   a.Actual,
			Passed:   a.Passed,
			Message:  a.Message,
		})
	}
	return out
}

func (f *JSONFormatter) FormatBench(report *BenchReport) error {
	s := report.Summary
	out := JSONBench{
		Method:   report.Method,
		URL:      report.URL,
		Passed:   report.Passed(),
		Duration: s.Duration.String(),
		Requests: JSONBenchCounts{
			Total:   s.TotalRequests,
			Success: s.SuccessCount,
			Failed:  s.ErrorCount,
		},
		Rates: JSONBenchRates{
			RPS:         s.RPS,
			SuccessRate: s.SuccessRate,
			ErrorRate:   s.ErrorRate,
		},
		Latency: map[string]int64{
			"p50":    s.P50.Microseconds(),
			"p90":    s.P90.Microseconds(),
			"p95":    s.P95.Microseconds(),
			"p99":    s.P99.Microseconds(),
			"min":    s.Min.Microseconds(),
			"max":    s.Max.Microseconds(),
			"mean":   s.Mean.Microseconds(),
			"stddev": s.StdDev.Microseconds(),
		},
		StatusCodes: s.StatusCodes,
		Errors:      s.Errors,
	}

	for _, tr := range report.Thresholds {
		out.Thresholds = append(out.Thresholds, JSONThreshold{
			Name:     tr.Name,
			Passed:   tr.Passed,
			Expected: tr.Expected,
			Actual:   tr.Actual,
		})
	}

	return f.encode(out)
}

func (f *JSONFormatter) FormatHistory(entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	return f.encode(entries)
}

func (f *JSONFormatter) FormatCoverage(report *coverage.Report) error {
	return f.encode(report)
}

// JSONRun is the JSON form of a .http file run
type JSONRun struct {
	File     string           `json:"file"`
	Passed   int              `json:"passed"`
	Failed   int              `json:"failed"`
	Skipped  int              `json:"skipped"`
	Duration float64          `json:"duration"` // milliseconds
	Requests []JSONRunRequest `json:"requests"`
}

// JSONRunRequest is one request of a run
type JSONRunRequest struct {
	Name       string          `json:"name"`
	Method     string          `json:"method"`
	URL        string          `json:"url"`
	Passed     bool            `json:"passed"`
	Skipped    bool            `json:"skipped,omitempty"`
	SkipReason string          `json:"skipReason,omitempty"`
	Error      string          `json:"error,omitempty"`
	Response   *JSONResponse   `json:"response,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
	Captures   map[string]any  `json:"captures,omitempty"`
	Missing    []string        `json:"missing,omitempty"`
}

func (f *JSONFormatter) FormatRun(result *runner.RunResult) error {
	out := JSONRun{
		File:     result.File,
		Passed:   result.Passed,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Duration: float64(result.Duration.Microseconds()) / 1000,
		Requests: make([]JSONRunRequest, 0, len(result.Results)),
	}
	for _, r := range result.Results {
		jr := JSONRunRequest{
			Name:       r.Name,
			Method:     string(r.Method),
			URL:        r.URL,
			Passed:     r.Passed,
			Skipped:    r.Skipped,
			SkipReason: r.SkipReason,
			Response:   jsonResponse(r.Response),
			Assertions: jsonAssertions(r.Assertions),
			Captures:   r.Captures,
			Missing:    r.Missing,
		}
		if r.Error != nil {
			jr.Error = r.Error.Error()
		}
		out.Requests = append(out.Requests, jr)
	}
	return f.encode(out)
}

func (f *JSONFormatter) FormatError(err error) {
	_ = f.encode(map[string]string{"error": err.Error()})
}
