// Package metrics exports bench results to monitoring systems: Prometheus
// text files, JSON documents and the DataDog series API.
package metrics

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/bench"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
)

// Metric is a single data point. Name carries no prefix; each exporter adds
// its own.
type Metric struct {
	Name   string            `json:"name"`
	Help   string            `json:"-"`
	Type   MetricType        `json:"type"`
	Value  float64           `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Set is every metric from one bench run. Labels apply to all of them.
type Set struct {
	Timestamp time.Time         `json:"timestamp"`
	Labels    map[string]string `json:"labels,omitempty"`
	Metrics   []Metric          `json:"metrics"`
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	Export(set *Set) error
	Name() string
}

// Poster sends a request body to a URL. *http.Client satisfies it.
type Poster interface {
	Post(url string, body []byte, headers map[string]string) (*http.Response, error)
}

// FromBench converts a bench summary. Threshold results are included as
// 0/1 gauges when present.
func FromBench(method, url string, s *bench.Summary, thresholds []bench.ThresholdResult) *Set {
	set := &Set{
		Timestamp: time.Now(),
		Labels:    map[string]string{"method": method, "url": url},
	}

	add := func(name, help string, typ MetricType, value float64, labels map[string]string) {
		set.Metrics = append(set.Metrics, Metric{Name: name, Help: help, Type: typ, Value: value, Labels: labels})
	}

	add("requests_total", "Total number of requests sent", Counter, float64(s.TotalRequests), nil)
	add("requests_success_total", "Requests answered with a status below 400", Counter, float64(s.SuccessCount), nil)
	add("requests_failed_total", "Requests that failed or returned a status of 400 or above", Counter, float64(s.ErrorCount), nil)
	add("throughput_rps", "Completed requests per second", Gauge, s.RPS, nil)
	add("run_duration_seconds", "Wall time of the run", Gauge, s.Duration.Seconds(), nil)

	latencies := []struct {
		stat string
		d    time.Duration
	}{
		{"p50", s.P50}, {"p90", s.P90}, {"p95", s.P95}, {"p99", s.P99},
		{"min", s.Min}, {"max", s.Max}, {"mean", s.Mean},
	}
	for _, l := range latencies {
		add("latency_seconds", "Request latency", Gauge, l.d.Seconds(), map[string]string{"stat": l.stat})
	}

	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		add("responses_total", "Responses by status code", Counter, float64(s.StatusCodes[code]),
			map[string]string{"status": strconv.Itoa(code)})
	}

	for _, t := range thresholds {
		v := 0.0
		if t.Passed {
			v = 1
		}
		add("threshold_passed", "1 when the threshold held", Gauge, v, map[string]string{"threshold": t.Name})
	}

	return set
}

// ExportAll sends set to every exporter. All exporters are tried and their
// errors joined.
func ExportAll(set *Set, exporters ...Exporter) error {
	var errs []error
	for _, exp := range exporters {
		if err := exp.Export(set); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", exp.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// NewFileExporter picks an exporter for path by extension: .json writes
// JSON, anything else the Prometheus text format.
func NewFileExporter(path string) Exporter {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONExporter(WithJSONFile(path))
	}
	return NewPrometheusExporter(WithPrometheusFile(path))
}

// labelsOf merges the set labels under the metric's own.
func labelsOf(set *Set, m Metric) map[string]string {
	labels := make(map[string]string, len(set.Labels)+len(m.Labels))
	for k, v := range set.Labels {
		labels[k] = v
	}
	for k, v := range m.Labels {
		labels[k] = v
	}
	return labels
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
