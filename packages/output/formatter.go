package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/abdul-hamid-achik/hitwire/packages/assertions"
	"github.com/abdul-hamid-achik/hitwire/packages/bench"
	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/coverage"
	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/sse"
)

// Exchange is everything known about one request after it ran
type Exchange struct {
	Method     string
	URL        string
	Headers    map[string]string // as sent
	Response   *http.Response
	Events     []sse.Event // decoded when the body is an event stream
	Err        error
	Captures   map[string]any
	Missing    []string // capture expressions that matched nothing
	Assertions []*assertions.Result
}

// Passed reports whether the request succeeded and every assertion held.
func (e *Exchange) Passed() bool {
	return e.Err == nil && assertions.AllPassed(e.Assertions)
}

// BenchReport is a finished benchmark
type BenchReport struct {
	Method     string
	URL        string
	Config     *bench.Config
	Summary    *bench.Summary
	Thresholds []bench.ThresholdResult
}

// Passed reports whether every threshold held.
func (b *BenchReport) Passed() bool {
	for _, t := range b.Thresholds {
		if !t.Passed {
			return false
		}
	}
	return true
}

type Formatter interface {
	FormatExchange(ex *Exchange) error
	FormatBench(report *BenchReport) error
	FormatHistory(entries []history.Entry) error
	FormatCoverage(report *coverage.Report) error
	FormatRun(result *runner.RunResult) error
	FormatError(err error)
}

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns the formatter for format, writing to w.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch format {
	case "", FormatConsole:
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case FormatJSON:
		return NewJSONFormatter(JSONWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want console or json)", format)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
