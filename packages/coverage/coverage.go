// Package coverage reports which operations of an OpenAPI document a set of
// requests has exercised, typically the entries of the request history.
package coverage

import (
	"sort"

	"github.com/abdul-hamid-achik/hitwire/packages/contract"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Report represents an API coverage report.
type Report struct {
	TotalEndpoints   int                   `json:"totalEndpoints"`
	CoveredEndpoints int                   `json:"coveredEndpoints"`
	CoveragePercent  float64               `json:"coveragePercent"`
	ByTag            map[string]*TagReport `json:"byTag,omitempty"`
	Endpoints        []EndpointStatus      `json:"endpoints"`
	Unmatched        int                   `json:"unmatched"` // requests no operation matched
}

// TagReport represents coverage for a specific tag.
type TagReport struct {
	Tag              string  `json:"tag"`
	TotalEndpoints   int     `json:"totalEndpoints"`
	CoveredEndpoints int     `json:"coveredEndpoints"`
	CoveragePercent  float64 `json:"coveragePercent"`
}

// EndpointStatus represents the coverage status of an endpoint.
type EndpointStatus struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	OperationID string   `json:"operationId,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Covered     bool     `json:"covered"`
	Hits        int      `json:"hits"`
}

// Request is one request that was sent.
type Request struct {
	Method string
	URL    string
}

// Analyze matches requests against the operations v declares. Requests
// that match no operation, or whose URL does not parse, are only counted.
func Analyze(v *contract.Validator, requests []Request) *Report {
	hits := make(map[string]int)
	report := &Report{ByTag: make(map[string]*TagReport)}

	for _, req := range requests {
		op, err := v.Match(http.ParseMethod(req.Method), req.URL)
		if err != nil {
			report.Unmatched++
			continue
		}
		hits[op.Method+" "+op.Path]++
	}

	for _, op := range v.Operations() {
		count := hits[op.Method+" "+op.Path]
		status := EndpointStatus{
			Method:      op.Method,
			Path:        op.Path,
			OperationID: op.OperationID,
			Tags:        op.Tags,
			Covered:     count > 0,
			Hits:        count,
		}
		report.Endpoints = append(report.Endpoints, status)
		report.TotalEndpoints++
		if status.Covered {
			report.CoveredEndpoints++
		}

		for _, tag := range op.Tags {
			tr, ok := report.ByTag[tag]
			if !ok {
				tr = &TagReport{Tag: tag}
				report.ByTag[tag] = tr
			}
			tr.TotalEndpoints++
			if status.Covered {
				tr.CoveredEndpoints++
			}
		}
	}

	report.CoveragePercent = percent(report.CoveredEndpoints, report.TotalEndpoints)
	for _, tr := range report.ByTag {
		tr.CoveragePercent = percent(tr.CoveredEndpoints, tr.TotalEndpoints)
	}

	return report
}

// Tags returns the tag names in order.
func (r *Report) Tags() []string {
	tags := make([]string, 0, len(r.ByTag))
	for tag := range r.ByTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
