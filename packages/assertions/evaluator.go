package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/capture"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/xeipuuv/gojsonschema"
)

// Operator is a comparison between an actual and an expected value.
type Operator string

const (
	OpEquals       Operator = "=="
	OpNotEquals    Operator = "!="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpContains     Operator = "contains"
	OpMatches      Operator = "matches"
	OpExists       Operator = "exists"
)

var operators = []Operator{
	OpEquals, OpNotEquals, OpGreaterEqual, OpLessEqual, OpGreater, OpLess,
	OpContains, OpMatches, OpExists,
}

// Assertion checks one response value, addressed with a capture expression.
type Assertion struct {
	Subject  string
	Operator Operator
	Expected string
}

func (a Assertion) String() string {
	if a.Operator == OpExists {
		return a.Subject + " exists"
	}
	return fmt.Sprintf("%s %s %s", a.Subject, a.Operator, a.Expected)
}

// Parse reads `<subject> <operator> [expected]`, for example
// `status < 300`, `header.Content-Type contains json` or `body.id exists`.
func Parse(expr string) (Assertion, error) {
	fields := strings.Fields(expr)
	if len(fields) < 2 {
		return Assertion{}, fmt.Errorf("invalid assertion %q: expected <subject> <operator> [value]", expr)
	}

	op := Operator(fields[1])
	if !isOperator(op) {
		return Assertion{}, fmt.Errorf("invalid assertion %q: unknown operator %q", expr, fields[1])
	}

	a := Assertion{Subject: fields[0], Operator: op}
	if op == OpExists {
		if len(fields) > 2 {
			return Assertion{}, fmt.Errorf("invalid assertion %q: exists takes no value", expr)
		}
		return a, nil
	}
	if len(fields) < 3 {
		return Assertion{}, fmt.Errorf("invalid assertion %q: missing expected value", expr)
	}
	a.Expected = strings.Join(fields[2:], " ")
	return a, nil
}

func isOperator(op Operator) bool {
	for _, known := range operators {
		if op == known {
			return true
		}
	}
	return false
}

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

type Evaluator struct {
	response  *http.Response
	extractor *capture.Extractor
}

func NewEvaluator(resp *http.Response) *Evaluator {
	return &Evaluator{
		response:  resp,
		extractor: capture.NewExtractor(resp),
	}
}

func (e *Evaluator) Evaluate(a Assertion) *Result {
	result := &Result{
		Subject:  a.Subject,
		Operator: string(a.Operator),
		Expected: a.Expected,
	}

	actual, found := e.extractor.Extract(capture.Parse(a.Subject))
	result.Actual = actual

	if a.Operator == OpExists {
		result.Passed = found
		if !found {
			result.Message = fmt.Sprintf("%s does not exist", a.Subject)
		}
		return result
	}
	if !found {
		result.Message = fmt.Sprintf("%s not found in response", a.Subject)
		return result
	}

	result.Passed, result.Message = compare(actual, a.Operator, a.Expected)
	return result
}

// Status checks the status code against a list such as "200", "200,204" or
// "2xx". Class patterns match on the first digit.
func (e *Evaluator) Status(expected string) *Result {
	result := &Result{
		Subject:  "status",
		Operator: string(OpEquals),
		Expected: expected,
		Actual:   e.response.StatusCode,
	}

	for _, want := range strings.Split(expected, ",") {
		want = strings.TrimSpace(want)
		if statusMatches(e.response.StatusCode, want) {
			result.Passed = true
			return result
		}
	}

	result.Message = fmt.Sprintf("expected status %s, got %d", expected, e.response.StatusCode)
	return result
}

func statusMatches(code int, want string) bool {
	if len(want) == 3 && strings.EqualFold(want[1:], "xx") {
		return want[0] >= '1' && want[0] <= '5' && code/100 == int(want[0]-'0')
	}
	n, err := strconv.Atoi(want)
	return err == nil && n == code
}

// Schema validates the response body against the JSON schema in schemaPath.
func (e *Evaluator) Schema(schemaPath string) *Result {
	result := &Result{
		Subject:  "body",
		Operator: "schema",
		Expected: schemaPath,
	}

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		result.Message = fmt.Sprintf("failed to read schema file: %v", err)
		return result
	}

	if !json.Valid(e.response.Body) {
		result.Message = "response body is not valid JSON"
		return result
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaData)
	documentLoader := gojsonschema.NewBytesLoader(e.response.Body)

	validation, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		result.Message = fmt.Sprintf("schema validation error: %v", err)
		return result
	}

	if validation.Valid() {
		result.Passed = true
		return result
	}

	var errors []string
	for _, desc := range validation.Errors() {
		errors = append(errors, desc.String())
	}
	result.Message = fmt.Sprintf("schema validation failed: %s", strings.Join(errors, "; "))
	return result
}

func compare(actual any, op Operator, expected string) (bool, string) {
	switch op {
	case OpEquals:
		return equals(actual, expected)
	case OpNotEquals:
		if ok, _ := equals(actual, expected); ok {
			return false, fmt.Sprintf("expected value to differ from %s", expected)
		}
		return true, ""
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		return compareNumeric(actual, expected, op)
	case OpContains:
		if strings.Contains(stringify(actual), expected) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to contain %q", stringify(actual), expected)
	case OpMatches:
		re, err := regexp.Compile(expected)
		if err != nil {
			return false, fmt.Sprintf("invalid regex pattern: %v", err)
		}
		if re.MatchString(stringify(actual)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to match %s", stringify(actual), expected)
	default:
		return false, fmt.Sprintf("unsupported operator: %s", op)
	}
}

func equals(actual any, expected string) (bool, string) {
	var decoded any
	if err := json.Unmarshal([]byte(expected), &decoded); err == nil {
		if reflect.DeepEqual(normalize(actual), decoded) {
			return true, ""
		}
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if stringify(actual) == expected {
		return true, ""
	}

	return false, fmt.Sprintf("expected %s, got %v", expected, stringify(actual))
}

func compareNumeric(actual any, expected string, op Operator) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case OpGreater:
		passed = actualNum > expectedNum
	case OpGreaterEqual:
		passed = actualNum >= expectedNum
	case OpLess:
		passed = actualNum < expectedNum
	case OpLessEqual:
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

// normalize round-trips v through JSON so ints compare equal to decoded float64s.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// EvaluateAll runs every assertion against resp.
func EvaluateAll(resp *http.Response, assertions []Assertion) []*Result {
	e := NewEvaluator(resp)
	results := make([]*Result, 0, len(assertions))
	for _, a := range assertions {
		results = append(results, e.Evaluate(a))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []*Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
