package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/assertions"
	"github.com/abdul-hamid-achik/hitwire/packages/bench"
	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/coverage"
	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleExchange() *Exchange {
	return &Exchange{
		Method:  "GET",
		URL:     "http://example.com/users/",
		Headers: map[string]string{"Accept": "application/json"},
		Response: &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Proto:      "HTTP/1.1",
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       []byte(`{"id":1,"name":"John"}`),
			Duration:   15 * time.Millisecond,
		},
		Captures: map[string]any{"body.id": float64(1)},
		Missing:  []string{"body.email"},
		Assertions: []*assertions.Result{
			{Subject: "status", Operator: "==", Expected: "200", Actual: 200, Passed: true},
			{Subject: "body.name", Operator: "==", Expected: "Jane", Actual: "John", Message: "expected Jane, got John"},
		},
	}
}

func sampleBench() *BenchReport {
	return &BenchReport{
		Method: "GET",
		URL:    "http://example.com/",
		Summary: &bench.Summary{
			Duration:      2 * time.Second,
			TotalRequests: 1200,
			SuccessCount:  1190,
			ErrorCount:    10,
			RPS:           600,
			SuccessRate:   1190.0 / 1200,
			ErrorRate:     10.0 / 1200,
			P50:           4 * time.Millisecond,
			P95:           12 * time.Millisecond,
			StatusCodes:   map[int]int64{200: 1190},
			Errors:        map[string]int64{"connection refused": 10},
		},
		Thresholds: []bench.ThresholdResult{
			{Name: "p95", Passed: true, Expected: "< 20ms", Actual: "12ms"},
		},
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	f, err := New("", &buf, false, true)
	require.NoError(t, err)
	assert.IsType(t, &ConsoleFormatter{}, f)

	f, err = New("json", &buf, false, true)
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)

	_, err = New("xml", &buf, false, true)
	assert.ErrorContains(t, err, "unknown output format")
}

func TestExchangePassed(t *testing.T) {
	ex := sampleExchange()
	assert.False(t, ex.Passed())

	ex.Assertions = ex.Assertions[:1]
	assert.True(t, ex.Passed())

	ex.Err = errors.New("boom")
	assert.False(t, ex.Passed())
}

func TestConsoleFormatter_Exchange(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	require.NoError(t, f.FormatExchange(sampleExchange()))
	out := buf.String()

	assert.Contains(t, out, "> GET http://example.com/users/")
	assert.Contains(t, out, "> Accept: application/json")
	assert.Contains(t, out, "HTTP/1.1 200 OK (15ms)")
	assert.Contains(t, out, "< Content-Type: application/json")
	assert.Contains(t, out, `"name": "John"`, "JSON bodies are pretty printed")
	assert.Contains(t, out, "body.id = 1")
	assert.Contains(t, out, "body.email (not found)")
	assert.Contains(t, out, "✓ status == 200")
	assert.Contains(t, out, "✗ body.name ==")
	assert.Contains(t, out, "expected Jane, got John")
}

func TestConsoleFormatter_PlainBodyAndError(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	ex := &Exchange{
		Method: "GET",
		URL:    "http://example.com/",
		Response: &http.Response{
			StatusCode: 404,
			Status:     "404 Not Found",
			Proto:      "HTTP/1.1",
			Body:       []byte("nothing here"),
		},
	}
	require.NoError(t, f.FormatExchange(ex))
	assert.Contains(t, buf.String(), "HTTP/1.1 404 Not Found")
	assert.Contains(t, buf.String(), "nothing here\n")
	assert.NotContains(t, buf.String(), "> GET", "request echo is verbose only")

	buf.Reset()
	require.NoError(t, f.FormatExchange(&Exchange{Method: "GET", URL: "http://x/", Err: errors.New("connection refused")}))
	assert.Equal(t, "Error: connection refused\n", buf.String())
}

func TestConsoleFormatter_Bench(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	require.NoError(t, f.FormatBench(sampleBench()))
	out := buf.String()

	assert.Contains(t, out, "BENCH GET http://example.com/")
	assert.Contains(t, out, "1,200 requests (600.0 req/s)")
	assert.Contains(t, out, "p50: 4.0")
	assert.Contains(t, out, "200: 1,190")
	assert.Contains(t, out, "10: connection refused")
	assert.Contains(t, out, "✓ p95 < 20ms")
	assert.Contains(t, out, "All thresholds passed!")
}

func TestConsoleFormatter_History(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	require.NoError(t, f.FormatHistory(nil))
	assert.Contains(t, buf.String(), "No history recorded.")

	buf.Reset()
	require.NoError(t, f.FormatHistory([]history.Entry{
		{ID: "0123456789abcdef", Time: time.Now(), Method: "GET", URL: "http://x/", StatusCode: 200, DurationMs: 7},
		{ID: "short", Time: time.Now(), Method: "POST", URL: "http://y/", Error: "connection refused"},
	}))
	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.Contains(t, out, "GET     200 http://x/  7ms")
	assert.Contains(t, out, "ERR http://y/")
	assert.Contains(t, out, "connection refused")
}

func TestJSONFormatter_Exchange(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	require.NoError(t, f.FormatExchange(sampleExchange()))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, false, out["passed"])
	resp := out["response"].(map[string]any)
	assert.Equal(t, float64(200), resp["statusCode"])
	assert.Equal(t, "John", resp["body"].(map[string]any)["name"])
	assert.Equal(t, float64(15), resp["duration"])
	assert.Len(t, out["assertions"], 2)
	assert.Equal(t, []any{"body.email"}, out["missing"])
}

func TestJSONFormatter_TextBodyAndError(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	require.NoError(t, f.FormatExchange(&Exchange{
		Method:   "GET",
		URL:      "http://x/",
		Response: &http.Response{StatusCode: 200, Body: []byte("plain")},
	}))
	var out JSONExchange
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "plain", out.Response.BodyText)
	assert.Empty(t, out.Response.Body)

	buf.Reset()
	f.FormatError(errors.New("boom"))
	assert.JSONEq(t, `{"error": "boom"}`, buf.String())
}

func TestJSONFormatter_Bench(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).FormatBench(sampleBench()))

	var out JSONBench
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.True(t, out.Passed)
	assert.Equal(t, int64(1200), out.Requests.Total)
	assert.Equal(t, int64(4000), out.Latency["p50"])
	assert.Equal(t, int64(1190), out.StatusCodes[200])
	require.Len(t, out.Thresholds, 1)
}

func TestJSONFormatter_History(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	require.NoError(t, f.FormatHistory(nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestConsoleFormatter_Events(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	require.NoError(t, f.FormatExchange(&Exchange{
		Method:   "GET",
		URL:      "http://x/events/",
		Response: &http.Response{StatusCode: 200, Status: "200 OK", Proto: "HTTP/1.1", Body: []byte("data: a\n\n")},
		Events: []sse.Event{
			{ID: "7", Type: "tick", Data: "a\nb"},
			{Data: "c"},
		},
	}))

	out := buf.String()
	assert.Contains(t, out, "2 event(s)")
	assert.Contains(t, out, "tick id=7\n  a\n  b\n")
	assert.Contains(t, out, "message\n  c\n")
	assert.NotContains(t, out, "data: a")
}

func sampleCoverage() *coverage.Report {
	return &coverage.Report{
		TotalEndpoints:   2,
		CoveredEndpoints: 1,
		CoveragePercent:  50,
		Unmatched:        1,
		ByTag:            map[string]*coverage.TagReport{"users": {Tag: "users", TotalEndpoints: 2, CoveredEndpoints: 1, CoveragePercent: 50}},
		Endpoints: []coverage.EndpointStatus{
			{Method: "GET", Path: "/users", Covered: true, Hits: 3},
			{Method: "POST", Path: "/users"},
		},
	}
}

func TestConsoleFormatter_Coverage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleFormatter(WithWriter(&buf), WithNoColor(true)).FormatCoverage(sampleCoverage()))

	out := buf.String()
	assert.Contains(t, out, "API coverage: 1/2 operations (50.0%)")
	assert.Contains(t, out, "1 request(s) matched no operation")
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "[x] GET     /users (x3)")
	assert.Contains(t, out, "[ ] POST    /users\n")
}

func TestJSONFormatter_Coverage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).FormatCoverage(sampleCoverage()))

	var out coverage.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 1, out.CoveredEndpoints)
	assert.Len(t, out.Endpoints, 2)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "12,345,678", formatNumber(12345678))

	assert.Equal(t, "0.50", formatLatencyMs(500*time.Microsecond))
	assert.Equal(t, "2.5", formatLatencyMs(2500*time.Microsecond))
	assert.Equal(t, "120", formatLatencyMs(120*time.Millisecond))

	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m", formatDuration(2*time.Minute))
	assert.Equal(t, "1m 05s", formatDuration(65*time.Second))

	assert.Equal(t, "[array with 2 items]", formatValue([]any{1, 2}, 10))
	assert.Equal(t, "abc...", formatValue("abcdef", 3))
}

func sampleRun() *runner.RunResult {
	return &runner.RunResult{
		File:     "api.http",
		Duration: 40 * time.Millisecond,
		Passed:   1,
		Failed:   1,
		Skipped:  1,
		Results: []*runner.RequestResult{
			{
				Name:     "login",
				Method:   "POST",
				URL:      "http://example.com/login",
				Passed:   true,
				Duration: 12 * time.Millisecond,
				Response: &http.Response{StatusCode: 200, Status: "200 OK", Body: []byte(`{"token":"t"}`)},
				Captures: map[string]any{"body.token": "t"},
			},
			{
				Name:     "orders",
				Method:   "GET",
				URL:      "http://example.com/orders",
				Response: &http.Response{StatusCode: 500, Status: "500 Internal Server Error"},
				Assertions: []*assertions.Result{
					{Subject: "status", Operator: "==", Expected: "200", Actual: 500},
				},
				Missing: []string{"body.id"},
			},
			{Name: "#3", Skipped: true, SkipReason: "earlier request failed"},
		},
	}
}

func TestConsoleFormatter_Run(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleFormatter(WithWriter(&buf), WithNoColor(true)).FormatRun(sampleRun()))

	out := buf.String()
	assert.Contains(t, out, "api.http\n")
	assert.Contains(t, out, "✓ login 200 12ms")
	assert.Contains(t, out, "✗ orders 500")
	assert.Contains(t, out, "status ==: expected 200, got 500")
	assert.Contains(t, out, "body.id (not captured)")
	assert.Contains(t, out, "- #3 (earlier request failed)")
	assert.Contains(t, out, "1 passed, 1 failed, 1 skipped in 40ms")
}

func TestJSONFormatter_Run(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).FormatRun(sampleRun()))

	var out JSONRun
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "api.http", out.File)
	assert.Equal(t, 1, out.Failed)
	assert.InDelta(t, 40.0, out.Duration, 0.001)
	require.Len(t, out.Requests, 3)
	assert.Equal(t, "t", out.Requests[0].Captures["body.token"])
	assert.JSONEq(t, `{"token":"t"}`, string(out.Requests[0].Response.Body))
	assert.Len(t, out.Requests[1].Assertions, 1)
	assert.True(t, out.Requests[2].Skipped)
}
