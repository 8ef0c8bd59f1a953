package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONExporter exports metrics to JSON format
type JSONExporter struct {
	writer   io.Writer
	filePath string
	pretty   bool
}

// JSONOption is a functional option for JSONExporter
type JSONOption func(*JSONExporter)

// WithJSONWriter sets the output writer for JSON metrics
func WithJSONWriter(w io.Writer) JSONOption {
	return func(j *JSONExporter) {
		j.writer = w
	}
}

// WithJSONFile sets the output file for JSON metrics
func WithJSONFile(path string) JSONOption {
	return func(j *JSONExporter) {
		j.filePath = path
	}
}

// WithJSONPretty enables pretty-printed JSON output
func WithJSONPretty(pretty bool) JSONOption {
	return func(j *JSONExporter) {
		j.pretty = pretty
	}
}

// NewJSONExporter creates a new JSON metrics exporter
func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	j := &JSONExporter{pretty: true}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// JSONMetricsOutput is the complete JSON output structure
type JSONMetricsOutput struct {
	GeneratedAt string `json:"generatedAt"`
	*Set
}

func (j *JSONExporter) Name() string { return "json" }

// Export writes set as one JSON document
func (j *JSONExporter) Export(set *Set) error {
	out := JSONMetricsOutput{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Set:         set,
	}

	var (
		data []byte
		err  error
	)
	if j.pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	data = append(data, '\n')

	if j.filePath != "" {
		if err := writeFileAtomic(j.filePath, data); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}
	if j.writer != nil {
		if _, err := j.writer.Write(data); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
