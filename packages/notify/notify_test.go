package notify

import (
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/bench"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	name  string
	calls int
	err   error
}

func (r *recordingNotifier) Notify(*Summary) error {
	r.calls++
	return r.err
}

func (r *recordingNotifier) Name() string { return r.name }

func TestParseNotifyOn(t *testing.T) {
	on, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, on)

	on, err = ParseNotifyOn("always")
	require.NoError(t, err)
	assert.Equal(t, NotifyAlways, on)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestManager_Policy(t *testing.T) {
	tests := []struct {
		on     NotifyOn
		passed bool
		want   bool
	}{
		{NotifyAlways, true, true},
		{NotifyAlways, false, true},
		{NotifyFailure, true, false},
		{NotifyFailure, false, true},
		{NotifySuccess, true, true},
		{NotifySuccess, false, false},
	}

	for _, tt := range tests {
		n := &recordingNotifier{name: "rec"}
		m := NewManager(tt.on, nil, n)
		require.NoError(t, m.Notify(&Summary{Passed: tt.passed}))
		assert.Equal(t, tt.want, n.calls == 1, "%s passed=%v", tt.on, tt.passed)
	}
}

func TestManager_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordingNotifier{name: "failing", err: boom}
	ok := &recordingNotifier{name: "ok"}

	m := NewManager(NotifyAlways, nil, failing)
	m.AddNotifier(ok)
	assert.Equal(t, 2, m.Len())

	err := m.Notify(&Summary{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, 1, ok.calls)
}

func TestBenchSummary(t *testing.T) {
	s := &bench.Summary{TotalRequests: 10, ErrorCount: 1, ErrorRate: 0.1, RPS: 5, P95: 120 * time.Millisecond, Duration: 2 * time.Second}

	passed := BenchSummary("GET", "http://example.com/", s, []bench.ThresholdResult{{Name: "p95", Passed: true}})
	assert.True(t, passed.Passed)
	assert.Equal(t, "Benchmark passed", passed.Title)
	assert.Equal(t, "GET http://example.com/", passed.Target)

	failed := BenchSummary("GET", "http://example.com/", s, []bench.ThresholdResult{
		{Name: "error rate", Passed: false, Expected: "< 1.00%", Actual: "10.00%"},
	})
	assert.False(t, failed.Passed)
	assert.Equal(t, "1 threshold(s) failed", failed.Title)
	assert.Equal(t, []string{"error rate: 10.00% (threshold < 1.00%)"}, failed.Failures)
}

func webhookServer(t *testing.T, status int, got *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, got))
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSlackNotifier(t *testing.T) {
	var got map[string]any
	server := webhookServer(t, nethttp.StatusOK, &got)

	n := NewSlackNotifier(server.URL, http.NewClient(), WithSlackChannel("#perf"), WithSlackUsername("bot"), WithSlackIconEmoji(":robot:"))
	assert.Equal(t, "slack", n.Name())

	err := n.Notify(&Summary{Title: "2 threshold(s) failed", Target: "GET http://x/", Failures: []string{"p95: 300ms"}})
	require.NoError(t, err)

	assert.Equal(t, "#perf", got["channel"])
	assert.Equal(t, "bot", got["username"])
	attachments := got["attachments"].([]any)
	require.Len(t, attachments, 1)
	a := attachments[0].(map[string]any)
	assert.Equal(t, "danger", a["color"])
	assert.Contains(t, a["title"], "2 threshold(s) failed")
	assert.Contains(t, a["text"], "p95: 300ms")
}

func TestTeamsNotifier(t *testing.T) {
	var got map[string]any
	server := webhookServer(t, nethttp.StatusOK, &got)

	n := NewTeamsNotifier(server.URL, http.NewClient())
	assert.Equal(t, "teams", n.Name())
	require.NoError(t, n.Notify(&Summary{Title: "Benchmark passed", Passed: true, Fields: []Field{{Title: "Requests", Value: "10"}}}))

	assert.Equal(t, "message", got["type"])
	card := got["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, "application/vnd.microsoft.card.adaptive", card["contentType"])
}

func TestNotifier_RejectedWebhook(t *testing.T) {
	var got map[string]any
	server := webhookServer(t, nethttp.StatusForbidden, &got)

	err := NewSlackNotifier(server.URL, http.NewClient()).Notify(&Summary{Passed: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
