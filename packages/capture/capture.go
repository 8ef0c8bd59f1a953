package capture

import (
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/tidwall/gjson"
)

// Source identifies the part of a response a value is taken from.
type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

// Capture is a parsed extraction expression.
type Capture struct {
	Expr   string
	Source Source
	Path   string
}

// Parse reads an expression of the form `status`, `duration`,
// `header.<Name>`, `body`, `body.<gjson path>` or a bare gjson path.
func Parse(expr string) Capture {
	expr = strings.TrimSpace(expr)
	c := Capture{Expr: expr}

	switch {
	case expr == "status":
		c.Source = SourceStatus
	case expr == "duration":
		c.Source = SourceDuration
	case strings.HasPrefix(expr, "header."):
		c.Source = SourceHeader
		c.Path = strings.TrimPrefix(expr, "header.")
	case expr == "body":
		c.Source = SourceBody
	case strings.HasPrefix(expr, "body."):
		c.Source = SourceBody
		c.Path = strings.TrimPrefix(expr, "body.")
	default:
		c.Source = SourceBody
		c.Path = expr
	}
	return c
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if resp.IsJSON() || gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

func (e *Extractor) Extract(c Capture) (any, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		return e.extractFromHeader(c.Path)
	case SourceStatus:
		return e.response.StatusCode, true
	case SourceDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll evaluates every expression and returns the values found, keyed by
// expression, along with the expressions that matched nothing.
func ExtractAll(resp *http.Response, exprs []string) (map[string]any, []string) {
	extractor := NewExtractor(resp)
	results := make(map[string]any)
	var missing []string

	for _, expr := range exprs {
		c := Parse(expr)
		if value, ok := extractor.Extract(c); ok {
			results[c.Expr] = value
		} else {
			missing = append(missing, c.Expr)
		}
	}

	return results, missing
}
