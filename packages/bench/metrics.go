package bench

import (
	"maps"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects latency and outcome counts for a benchmark
type Metrics struct {
	mu sync.RWMutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	errorRequests   atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram   *hdrhistogram.Histogram
	statusCodes map[int]int64
	errorKinds  map[string]int64

	startTime time.Time
	endTime   time.Time
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		// Histogram: 1us to 60s range, 3 significant digits
		histogram:   hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statusCodes: make(map[int]int64),
		errorKinds:  make(map[string]int64),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.startTime = time.Now()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.endTime = time.Now()
}

// Record records one request outcome. A response with status >= 400 counts as
// an error, as does a non-nil err.
func (m *Metrics) Record(duration time.Duration, statusCode int, err error) {
	m.totalRequests.Add(1)

	failed := err != nil || statusCode >= 400
	if failed {
		m.errorRequests.Add(1)
	} else {
		m.successRequests.Add(1)
	}

	latencyUs := min(max(duration.Microseconds(), minLatencyUs), maxLatencyUs)

	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.histogram.RecordValue(latencyUs)
	if err != nil {
		m.errorKinds[errorKind(err)]++
	} else {
		m.statusCodes[statusCode]++
	}
}

func errorKind(err error) string {
	msg := err.Error()
	if len(msg) > 80 {
		msg = msg[:80]
	}
	return msg
}

// Summary is the final metrics summary
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	// Latency percentiles
	P50    time.Duration
	P90    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	StatusCodes map[int]int64
	Errors      map[string]int64
}

func usToDuration(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.totalRequests.Load()
	success := m.successRequests.Load()
	errors := m.errorRequests.Load()

	rps := float64(0)
	if duration.Seconds() > 0 {
		rps = float64(total) / duration.Seconds()
	}

	successRate := float64(0)
	errorRate := float64(0)
	if total > 0 {
		successRate = float64(success) / float64(total)
		errorRate = float64(errors) / float64(total)
	}

	return &Summary{
		Duration:      duration,
		TotalRequests: total,
		SuccessCount:  success,
		ErrorCount:    errors,
		RPS:           rps,
		SuccessRate:   successRate,
		ErrorRate:     errorRate,
		P50:           usToDuration(m.histogram.ValueAtQuantile(50)),
		P90:           usToDuration(m.histogram.ValueAtQuantile(90)),
		P95:           usToDuration(m.histogram.ValueAtQuantile(95)),
		P99:           usToDuration(m.histogram.ValueAtQuantile(99)),
		Min:           usToDuration(m.histogram.Min()),
		Max:           usToDuration(m.histogram.Max()),
		Mean:          usToDuration(int64(m.histogram.Mean())),
		StdDev:        usToDuration(int64(m.histogram.StdDev())),
		StatusCodes:   maps.Clone(m.statusCodes),
		Errors:        maps.Clone(m.errorKinds),
	}
}

// EvaluateThresholds evaluates the thresholds against s
func (s *Summary) EvaluateThresholds(t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit > 0 {
			results = append(results, ThresholdResult{
				Name:     name,
				Passed:   actual <= limit,
				Expected: "< " + limit.String(),
				Actual:   actual.String(),
			})
		}
	}
	latency("p50", t.P50, s.P50)
	latency("p95", t.P95, s.P95)
	latency("p99", t.P99, s.P99)
	latency("max latency", t.MaxLatency, s.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   s.ErrorRate <= t.ErrorRate,
			Expected: "< " + formatPercent(t.ErrorRate),
			Actual:   formatPercent(s.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   s.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(s.RPS),
		})
	}

	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
