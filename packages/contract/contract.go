// Package contract checks responses against an OpenAPI 3 document.
//
// The operation is found from the request method and path, the response is
// found by status code (exact, then class such as 2XX, then default) and the
// body is validated against the schema declared for its content type.
package contract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/assertions"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/getkin/kin-openapi/openapi3"
)

var (
	// ErrNoOperation means the document declares no operation for the request.
	ErrNoOperation = errors.New("no matching operation")
	// ErrUndeclaredStatus means the operation declares no response for the status.
	ErrUndeclaredStatus = errors.New("undeclared response status")
	// ErrUndeclaredContentType means the response declares no schema for the content type.
	ErrUndeclaredContentType = errors.New("undeclared content type")
)

// Validator validates responses against one OpenAPI document
type Validator struct {
	doc       *openapi3.T
	basePaths []string
	routes    []route
}

type route struct {
	template string
	segments []string
	item     *openapi3.PathItem
}

// Load reads and validates an OpenAPI document from a JSON or YAML file.
func Load(path string) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	return New(doc)
}

// LoadFromData is Load for an in-memory document.
func LoadFromData(data []byte) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	return New(doc)
}

// New builds a Validator for doc.
func New(doc *openapi3.T) (*Validator, error) {
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	v := &Validator{doc: doc}

	for _, server := range doc.Servers {
		if u, err := url.Parse(server.URL); err == nil {
			if base := strings.TrimSuffix(u.Path, "/"); base != "" {
				v.basePaths = append(v.basePaths, base)
			}
		}
	}
	// Longest base first so nested prefixes strip correctly
	sort.Slice(v.basePaths, func(i, j int) bool { return len(v.basePaths[i]) > len(v.basePaths[j]) })

	if doc.Paths != nil {
		for template, item := range doc.Paths.Map() {
			v.routes = append(v.routes, route{
				template: template,
				segments: splitPath(template),
				item:     item,
			})
		}
	}
	// Literal segments beat parameters: /users/me before /users/{id}
	sort.Slice(v.routes, func(i, j int) bool {
		pi, pj := paramCount(v.routes[i].segments), paramCount(v.routes[j].segments)
		if pi != pj {
			return pi < pj
		}
		return v.routes[i].template < v.routes[j].template
	})

	return v, nil
}

// Operation identifies one declared method and path template
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Tags        []string
}

func newOperation(method, template string, op *openapi3.Operation) Operation {
	return Operation{
		Method:      method,
		Path:        template,
		OperationID: op.OperationID,
		Tags:        op.Tags,
	}
}

// Operations lists every declared operation, sorted by path then method.
func (v *Validator) Operations() []Operation {
	var ops []Operation
	for _, r := range v.routes {
		for method, op := range r.item.Operations() {
			ops = append(ops, newOperation(strings.ToUpper(method), r.template, op))
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})
	return ops
}

// Match returns the declared operation for method and rawURL, or an error
// wrapping ErrNoOperation.
func (v *Validator) Match(method http.Method, rawURL string) (Operation, error) {
	op, template, err := v.operation(method, rawURL)
	if err != nil {
		return Operation{}, err
	}
	return newOperation(strings.ToUpper(string(method)), template, op), nil
}

// Validate checks resp against the operation matching method and rawURL.
func (v *Validator) Validate(method http.Method, rawURL string, resp *http.Response) error {
	op, template, err := v.operation(method, rawURL)
	if err != nil {
		return err
	}

	ref := lookupResponse(op, resp.StatusCode)
	if ref == nil || ref.Value == nil {
		return fmt.Errorf("%w: %d for %s %s", ErrUndeclaredStatus, resp.StatusCode, method, template)
	}

	content := ref.Value.Content
	if len(content) == 0 {
		return nil
	}

	contentType := resp.ContentType()
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	media := content.Get(contentType)
	if media == nil {
		return fmt.Errorf("%w: %q for %d", ErrUndeclaredContentType, contentType, resp.StatusCode)
	}
	if media.Schema == nil || media.Schema.Value == nil {
		return nil
	}

	if !isJSON(contentType) {
		return nil
	}
	body, err := resp.BodyJSON()
	if err != nil {
		return fmt.Errorf("response body is not valid JSON: %w", err)
	}
	if err := media.Schema.Value.VisitJSON(body); err != nil {
		return fmt.Errorf("response body does not match schema: %w", err)
	}
	return nil
}

// Check is Validate reported as an assertion result.
func (v *Validator) Check(method http.Method, rawURL string, resp *http.Response) *assertions.Result {
	result := &assertions.Result{
		Subject:  "response",
		Operator: "openapi",
		Actual:   resp.StatusCode,
	}
	if err := v.Validate(method, rawURL, resp); err != nil {
		result.Message = err.Error()
		return result
	}
	result.Passed = true
	return result
}

func (v *Validator) operation(method http.Method, rawURL string) (*openapi3.Operation, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", err
	}

	path := strings.TrimSuffix(u.Path, "/")
	for _, base := range v.basePaths {
		if rest, ok := strings.CutPrefix(path, base); ok && (rest == "" || strings.HasPrefix(rest, "/")) {
			path = rest
			break
		}
	}
	segments := splitPath(path)

	for _, r := range v.routes {
		if !matchSegments(r.segments, segments) {
			continue
		}
		if op := r.item.GetOperation(strings.ToUpper(string(method))); op != nil {
			return op, r.template, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s %s", ErrNoOperation, method, u.Path)
}

func lookupResponse(op *openapi3.Operation, status int) *openapi3.ResponseRef {
	if op.Responses == nil {
		return nil
	}
	if ref := op.Responses.Status(status); ref != nil {
		return ref
	}
	if ref := op.Responses.Value(fmt.Sprintf("%dXX", status/100)); ref != nil {
		return ref
	}
	return op.Responses.Default()
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

func paramCount(segments []string) int {
	n := 0
	for _, s := range segments {
		if isParam(s) {
			n++
		}
	}
	return n
}

func matchSegments(template, actual []string) bool {
	if len(template) != len(actual) {
		return false
	}
	for i, t := range template {
		if isParam(t) {
			if actual[i] == "" {
				return false
			}
			continue
		}
		if t != actual[i] {
			return false
		}
	}
	return true
}

func isJSON(contentType string) bool {
	return contentType == "application/json" || strings.HasSuffix(contentType, "+json")
}
