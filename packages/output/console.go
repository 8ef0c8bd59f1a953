package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/coverage"
	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/sse"
	"github.com/fatih/color"
	"github.com/tidwall/pretty"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func statusColor(code int) func(a ...any) string {
	switch {
	case code >= 200 && code < 300:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	case code >= 300 && code < 400:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func (f *ConsoleFormatter) FormatExchange(ex *Exchange) error {
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if f.verbose {
		fmt.Fprintf(f.writer, "%s %s %s\n", dim(">"), ex.Method, ex.URL)
		for _, k := range sortedKeys(ex.Headers) {
			fmt.Fprintf(f.writer, "%s %s: %s\n", dim(">"), k, ex.Headers[k])
		}
		fmt.Fprintln(f.writer)
	}

	if ex.Err != nil {
		f.FormatError(ex.Err)
		return nil
	}

	resp := ex.Response
	fmt.Fprintf(f.writer, "%s %s\n", statusColor(resp.StatusCode)(resp.Proto+" "+resp.Status), cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))

	if f.verbose {
		for _, k := range sortedKeys(resp.Headers) {
			fmt.Fprintf(f.writer, "%s %s: %s\n", dim("<"), k, resp.Headers[k])
		}
	}

	switch {
	case len(ex.Events) > 0:
		fmt.Fprintln(f.writer)
		f.writeEvents(ex.Events)
	case len(resp.Body) > 0:
		fmt.Fprintln(f.writer)
		f.writeBody(resp)
	}

	if len(ex.Captures) > 0 || len(ex.Missing) > 0 {
		fmt.Fprintln(f.writer)
		for _, name := range sortedKeys(ex.Captures) {
			fmt.Fprintf(f.writer, "  %s = %s\n", cyan(name), formatValue(ex.Captures[name], 200))
		}
		for _, name := range ex.Missing {
			fmt.Fprintf(f.writer, "  %s %s\n", yellow(name), dim("(not found)"))
		}
	}

	if len(ex.Assertions) > 0 {
		fmt.Fprintln(f.writer)
		for _, a := range ex.Assertions {
			if a.Passed {
				fmt.Fprintf(f.writer, "  %s %s %s %v\n", green("✓"), a.Subject, a.Operator, a.Expected)
				continue
			}
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), a.Subject, a.Operator)
			fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
			fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
			if a.Message != "" {
				fmt.Fprintf(f.writer, "      %s\n", a.Message)
			}
		}
	}

	return nil
}

func (f *ConsoleFormatter) writeBody(resp *http.Response) {
	body := resp.Body
	if resp.IsJSON() {
		body = pretty.Pretty(body)
		if !f.noColor && !color.NoColor {
			body = pretty.Color(body, nil)
		}
	}
	f.writer.Write(body)
	if !strings.HasSuffix(string(body), "\n") {
		fmt.Fprintln(f.writer)
	}
}

func (f *ConsoleFormatter) writeEvents(events []sse.Event) {
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintln(f.writer, dim(fmt.Sprintf("%d event(s)", len(events))))
	for _, e := range events {
		name := e.Type
		if name == "" {
			name = "message"
		}
		fmt.Fprint(f.writer, cyan(name))
		if e.ID != "" {
			fmt.Fprint(f.writer, dim(" id="+e.ID))
		}
		fmt.Fprintln(f.writer)
		for _, line := range strings.Split(e.Data, "\n") {
			fmt.Fprintf(f.writer, "  %s\n", line)
		}
	}
}

func (f *ConsoleFormatter) FormatBench(report *BenchReport) error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	summary := report.Summary

	fmt.Fprintln(f.writer)
	bold.Fprintf(f.writer, "BENCH %s %s\n", report.Method, report.URL)
	fmt.Fprintln(f.writer, strings.Repeat("─", 40))

	fmt.Fprintf(f.writer, "Duration:   %s\n", formatDuration(summary.Duration))
	fmt.Fprintf(f.writer, "Total:      ")
	bold.Fprintf(f.writer, "%s", formatNumber(summary.TotalRequests))
	fmt.Fprintf(f.writer, " requests (%.1f req/s)\n", summary.RPS)

	fmt.Fprintf(f.writer, "Success:    ")
	green.Fprintf(f.writer, "%s", formatNumber(summary.SuccessCount))
	fmt.Fprintf(f.writer, " (%.1f%%)\n", summary.SuccessRate*100)

	fmt.Fprintf(f.writer, "Failed:     ")
	if summary.ErrorCount > 0 {
		red.Fprintf(f.writer, "%s", formatNumber(summary.ErrorCount))
	} else {
		fmt.Fprintf(f.writer, "%s", formatNumber(summary.ErrorCount))
	}
	fmt.Fprintf(f.writer, " (%.1f%%)\n", summary.ErrorRate*100)

	fmt.Fprintln(f.writer)
	bold.Fprintln(f.writer, "LATENCY (ms)")
	fmt.Fprintf(f.writer, "  p50: %-6s | p90: %-6s | p95: %-6s | p99: %s\n",
		formatLatencyMs(summary.P50),
		formatLatencyMs(summary.P90),
		formatLatencyMs(summary.P95),
		formatLatencyMs(summary.P99))
	fmt.Fprintf(f.writer, "  min: %-6s | max: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(summary.Min),
		formatLatencyMs(summary.Max),
		formatLatencyMs(summary.Mean),
		formatLatencyMs(summary.StdDev))

	if len(summary.StatusCodes) > 0 {
		fmt.Fprintln(f.writer)
		bold.Fprintln(f.writer, "STATUS CODES")
		codes := make([]int, 0, len(summary.StatusCodes))
		for code := range summary.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(f.writer, "  %s: %s\n", statusColor(code)(code), formatNumber(summary.StatusCodes[code]))
		}
	}

	if len(summary.Errors) > 0 {
		fmt.Fprintln(f.writer)
		bold.Fprintln(f.writer, "ERRORS")
		for _, msg := range sortedKeys(summary.Errors) {
			fmt.Fprintf(f.writer, "  %s: %s\n", red.Sprint(formatNumber(summary.Errors[msg])), msg)
		}
	}

	if len(report.Thresholds) > 0 {
		fmt.Fprintln(f.writer)
		bold.Fprintln(f.writer, "THRESHOLDS")
		for _, tr := range report.Thresholds {
			if tr.Passed {
				green.Fprintf(f.writer, "  ✓ ")
			} else {
				red.Fprintf(f.writer, "  ✗ ")
			}
			fmt.Fprintf(f.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(f.writer)
		if report.Passed() {
			green.Fprintln(f.writer, "All thresholds passed!")
		} else {
			red.Fprintln(f.writer, "Some thresholds failed!")
		}
	}

	fmt.Fprintln(f.writer)
	return nil
}

func (f *ConsoleFormatter) FormatHistory(entries []history.Entry) error {
	dim := color.New(color.Faint).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if len(entries) == 0 {
		fmt.Fprintln(f.writer, dim("No history recorded."))
		return nil
	}

	for _, e := range entries {
		status := red("ERR")
		if e.Error == "" {
			status = statusColor(e.StatusCode)(e.StatusCode)
		}
		fmt.Fprintf(f.writer, "%s  %s  %-7s %s %s  %s\n",
			dim(e.ID[:min(8, len(e.ID))]),
			e.Time.Local().Format(time.DateTime),
			e.Method,
			status,
			e.URL,
			dim(fmt.Sprintf("%dms", e.DurationMs)))
		if f.verbose && e.Error != "" {
			fmt.Fprintf(f.writer, "    %s\n", red(e.Error))
		}
	}
	return nil
}

func (f *ConsoleFormatter) FormatCoverage(r *coverage.Report) error {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(f.writer, "%s %d/%d operations (%.1f%%)\n",
		bold("API coverage:"), r.CoveredEndpoints, r.TotalEndpoints, r.CoveragePercent)
	if r.Unmatched > 0 {
		fmt.Fprintln(f.writer, dim(fmt.Sprintf("%d request(s) matched no operation", r.Unmatched)))
	}

	if tags := r.Tags(); len(tags) > 0 {
		fmt.Fprintln(f.writer)
		for _, tag := range tags {
			tr := r.ByTag[tag]
			fmt.Fprintf(f.writer, "  %-20s %d/%d (%.1f%%)\n", tag, tr.CoveredEndpoints, tr.TotalEndpoints, tr.CoveragePercent)
		}
	}

	fmt.Fprintln(f.writer)
	for _, e := range r.Endpoints {
		mark := red("[ ]")
		if e.Covered {
			mark = green("[x]")
		}
		fmt.Fprintf(f.writer, "  %s %-7s %s", mark, e.Method, e.Path)
		if e.Hits > 1 {
			fmt.Fprint(f.writer, dim(fmt.Sprintf(" (x%d)", e.Hits)))
		}
		fmt.Fprintln(f.writer)
	}
	return nil
}

func (f *ConsoleFormatter) FormatRun(result *runner.RunResult) error {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintln(f.writer, bold(result.File))
	for _, r := range result.Results {
		switch {
		case r.Skipped:
			fmt.Fprintf(f.writer, "  %s %s %s\n", yellow("-"), r.Name, dim("("+r.SkipReason+")"))
			continue
		case r.Passed:
			fmt.Fprintf(f.writer, "  %s %s", green("✓"), r.Name)
		default:
			fmt.Fprintf(f.writer, "  %s %s", red("✗"), r.Name)
		}
		if r.Response != nil {
			fmt.Fprintf(f.writer, " %s", statusColor(r.Response.StatusCode)(r.Response.StatusCode))
		}
		fmt.Fprintf(f.writer, " %s\n", dim(formatDuration(r.Duration)))

		if f.verbose {
			fmt.Fprintf(f.writer, "      %s %s\n", dim(string(r.Method)), dim(r.URL))
		}
		if r.Error != nil {
			fmt.Fprintf(f.writer, "      %s\n", red(r.Error.Error()))
		}
		for _, a := range r.Assertions {
			if a.Passed {
				continue
			}
			fmt.Fprintf(f.writer, "      %s %s: expected %s, got %s\n", a.Subject, a.Operator,
				formatValue(a.Expected, 100), formatValue(a.Actual, 100))
		}
		for _, name := range r.Missing {
			fmt.Fprintf(f.writer, "      %s %s\n", yellow(name), dim("(not captured)"))
		}
	}

	fmt.Fprintln(f.writer)
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped", result.Passed, result.Failed, result.Skipped)
	if result.Ok() {
		summary = green(summary)
	} else {
		summary = red(summary)
	}
	fmt.Fprintf(f.writer, "%s %s\n", summary, dim("in "+formatDuration(result.Duration)))
	return nil
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

// formatLatencyMs formats latency in milliseconds
func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2f", ms)
	}
	if ms < 10 {
		return fmt.Sprintf("%.1f", ms)
	}
	return fmt.Sprintf("%.0f", ms)
}

// formatNumber formats a number with commas
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}

	result := make([]byte, 0, len(s)+(len(s)-1)/3)

	start := len(s) % 3
	if start == 0 {
		start = 3
	}

	result = append(result, s[:start]...)
	for i := start; i < len(s); i += 3 {
		result = append(result, ',')
		result = append(result, s[i:i+3]...)
	}

	return string(result)
}
