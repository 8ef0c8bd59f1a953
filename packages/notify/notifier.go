// Package notify posts hitwire results to chat webhooks.
//
// Notifications are sent with a hitwire client, so each webhook call is
// itself a one-shot HTTP/1.1 exchange.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/bench"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the run passes
	NotifySuccess NotifyOn = "success"
)

// ParseNotifyOn validates a policy name
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case NotifyAlways, NotifyFailure, NotifySuccess:
		return on, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (want always, failure or success)", s)
	}
}

// Field is one labelled figure in a notification
type Field struct {
	Title string
	Value string
}

// Summary is the content of a notification
type Summary struct {
	Title    string
	Target   string // "METHOD URL"
	Passed   bool
	Duration time.Duration
	Fields   []Field
	Failures []string
}

// Notifier delivers a summary to one service
type Notifier interface {
	Notify(summary *Summary) error
	Name() string
}

// Poster sends a webhook request. *http.Client satisfies it.
type Poster interface {
	Post(url string, body []byte, headers map[string]string) (*http.Response, error)
}

// Manager fans a summary out to its notifiers according to a policy.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	logger    *slog.Logger
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, logger *slog.Logger, notifiers ...Notifier) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		logger:    logger,
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of registered notifiers
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// ShouldNotify reports whether the policy wants a notification for summary.
func (m *Manager) ShouldNotify(summary *Summary) bool {
	switch m.notifyOn {
	case NotifyAlways:
		return true
	case NotifySuccess:
		return summary.Passed
	default:
		return !summary.Passed
	}
}

// Notify sends summary to every notifier when the policy allows. All
// notifiers are tried and their errors joined.
func (m *Manager) Notify(summary *Summary) error {
	if !m.ShouldNotify(summary) {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			m.logger.Warn("notification failed", "notifier", n.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		m.logger.Debug("notification sent", "notifier", n.Name())
	}
	return errors.Join(errs...)
}

// BenchSummary builds a notification for a finished benchmark.
func BenchSummary(method, url string, s *bench.Summary, thresholds []bench.ThresholdResult) *Summary {
	summary := &Summary{
		Target:   method + " " + url,
		Passed:   true,
		Duration: s.Duration,
		Fields: []Field{
			{Title: "Requests", Value: fmt.Sprintf("%d", s.TotalRequests)},
			{Title: "Errors", Value: fmt.Sprintf("%d (%.1f%%)", s.ErrorCount, s.ErrorRate*100)},
			{Title: "Throughput", Value: fmt.Sprintf("%.1f req/s", s.RPS)},
			{Title: "p50 / p95 / p99", Value: fmt.Sprintf("%s / %s / %s", roundMs(s.P50), roundMs(s.P95), roundMs(s.P99))},
		},
	}

	for _, t := range thresholds {
		if !t.Passed {
			summary.Passed = false
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %s (threshold %s)", t.Name, t.Actual, t.Expected))
		}
	}

	if summary.Passed {
		summary.Title = "Benchmark passed"
	} else {
		summary.Title = fmt.Sprintf("%d threshold(s) failed", len(summary.Failures))
	}
	return summary
}

func roundMs(d time.Duration) string {
	return d.Round(100 * time.Microsecond).String()
}

func postJSON(client Poster, url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	resp, err := client.Post(url, data, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, resp.BodyString())
	}
	return nil
}
