package metrics

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultPrometheusPrefix is prepended to every metric name
const DefaultPrometheusPrefix = "hitwire_bench_"

// PrometheusExporter writes metrics in the Prometheus text exposition
// format, to a writer or to a file suitable for the node_exporter textfile
// collector.
type PrometheusExporter struct {
	writer io.Writer
	path   string
	prefix string
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusWriter sets the output writer for Prometheus metrics
func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusFile writes the metrics to path. The file is replaced
// atomically so a collector never reads a partial file.
func WithPrometheusFile(path string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.path = path
	}
}

// WithPrometheusPrefix replaces DefaultPrometheusPrefix
func WithPrometheusPrefix(prefix string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.prefix = prefix
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{prefix: DefaultPrometheusPrefix}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PrometheusExporter) Name() string { return "prometheus" }

// Export writes set to the configured destinations
func (p *PrometheusExporter) Export(set *Set) error {
	var buf bytes.Buffer
	p.write(&buf, set)

	if p.path != "" {
		if err := writeFileAtomic(p.path, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}
	if p.writer != nil {
		if _, err := p.writer.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// write emits HELP and TYPE once per metric name, in first-seen order.
func (p *PrometheusExporter) write(w io.Writer, set *Set) {
	seen := make(map[string]bool)
	var order []string
	byName := make(map[string][]Metric)
	for _, m := range set.Metrics {
		if !seen[m.Name] {
			seen[m.Name] = true
			order = append(order, m.Name)
		}
		byName[m.Name] = append(byName[m.Name], m)
	}

	for i, name := range order {
		group := byName[name]
		full := p.prefix + name
		if i > 0 {
			fmt.Fprintln(w)
		}
		if group[0].Help != "" {
			fmt.Fprintf(w, "# HELP %s %s\n", full, group[0].Help)
		}
		fmt.Fprintf(w, "# TYPE %s %s\n", full, group[0].Type)
		for _, m := range group {
			fmt.Fprintf(w, "%s%s %s\n", full, formatLabels(labelsOf(set, m)), strconv.FormatFloat(m.Value, 'g', -1, 64))
		}
	}
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for _, k := range sortedKeys(labels) {
		pairs = append(pairs, fmt.Sprintf("%s=\"%s\"", k, sanitizeLabel(labels[k])))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
