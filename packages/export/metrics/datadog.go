package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DataDogExporter posts metrics to the DataDog v1 series API
type DataDogExporter struct {
	client   Poster
	apiKey   string
	site     string // e.g., "datadoghq.com", "datadoghq.eu"
	endpoint string
	tags     []string
	prefix   string
}

// DataDogOption is a functional option for DataDogExporter
type DataDogOption func(*DataDogExporter)

// WithDataDogAPIKey sets the DataDog API key
func WithDataDogAPIKey(apiKey string) DataDogOption {
	return func(d *DataDogExporter) {
		d.apiKey = apiKey
	}
}

// WithDataDogSite sets the DataDog site (e.g., "datadoghq.com", "datadoghq.eu")
func WithDataDogSite(site string) DataDogOption {
	return func(d *DataDogExporter) {
		if site != "" {
			d.site = site
		}
	}
}

// WithDataDogEndpoint overrides the series URL derived from the site
func WithDataDogEndpoint(url string) DataDogOption {
	return func(d *DataDogExporter) {
		d.endpoint = url
	}
}

// WithDataDogTags sets additional tags for all metrics
func WithDataDogTags(tags []string) DataDogOption {
	return func(d *DataDogExporter) {
		d.tags = tags
	}
}

// WithDataDogPrefix sets a prefix for metric names
func WithDataDogPrefix(prefix string) DataDogOption {
	return func(d *DataDogExporter) {
		d.prefix = prefix
	}
}

// NewDataDogExporter creates a new DataDog metrics exporter
func NewDataDogExporter(client Poster, opts ...DataDogOption) *DataDogExporter {
	d := &DataDogExporter{
		client: client,
		site:   "datadoghq.com",
		prefix: "hitwire.bench",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type datadogMetric struct {
	Metric string   `json:"metric"`
	Type   string   `json:"type"`
	Points [][]any  `json:"points"`
	Tags   []string `json:"tags,omitempty"`
}

type datadogPayload struct {
	Series []datadogMetric `json:"series"`
}

func (d *DataDogExporter) Name() string { return "datadog" }

func (d *DataDogExporter) url() string {
	if d.endpoint != "" {
		return d.endpoint
	}
	return fmt.Sprintf("https://api.%s/api/v1/series", d.site)
}

// Export posts every metric in set as one series batch
func (d *DataDogExporter) Export(set *Set) error {
	if d.apiKey == "" {
		return fmt.Errorf("DataDog API key not configured")
	}

	now := float64(set.Timestamp.Unix())
	series := make([]datadogMetric, 0, len(set.Metrics))
	for _, m := range set.Metrics {
		typ := "gauge"
		if m.Type == Counter {
			typ = "count"
		}
		series = append(series, datadogMetric{
			Metric: d.prefix + "." + m.Name,
			Type:   typ,
			Points: [][]any{{now, m.Value}},
			Tags:   d.tagsFor(set, m),
		})
	}

	data, err := json.Marshal(datadogPayload{Series: series})
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	resp, err := d.client.Post(d.url(), data, map[string]string{
		"Content-Type": "application/json",
		"DD-API-KEY":   d.apiKey,
	})
	if err != nil {
		return fmt.Errorf("failed to send metrics: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("DataDog API returned status %d: %s", resp.StatusCode, resp.BodyString())
	}
	return nil
}

func (d *DataDogExporter) tagsFor(set *Set, m Metric) []string {
	labels := labelsOf(set, m)
	tags := make([]string, 0, len(labels)+len(d.tags))
	for _, k := range sortedKeys(labels) {
		tags = append(tags, k+":"+labels[k])
	}
	tags = append(tags, d.tags...)
	sort.Strings(tags)
	return tags
}

// ParseTags splits comma separated key:value tags, dropping empty entries.
func ParseTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
