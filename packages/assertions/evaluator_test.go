package assertions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &http.Response{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       []byte(body),
		Duration:   100 * time.Millisecond,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr    string
		want    Assertion
		wantErr string
	}{
		{expr: "status == 200", want: Assertion{"status", OpEquals, "200"}},
		{expr: "header.Content-Type contains json", want: Assertion{"header.Content-Type", OpContains, "json"}},
		{expr: "body.name == John Smith", want: Assertion{"body.name", OpEquals, "John Smith"}},
		{expr: "body.id exists", want: Assertion{"body.id", OpExists, ""}},
		{expr: "status", wantErr: "expected <subject> <operator>"},
		{expr: "status ~ 200", wantErr: "unknown operator"},
		{expr: "status ==", wantErr: "missing expected value"},
		{expr: "body.id exists 1", wantErr: "exists takes no value"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssertion_String(t *testing.T) {
	assert.Equal(t, "status < 300", Assertion{"status", OpLess, "300"}.String())
	assert.Equal(t, "body.id exists", Assertion{"body.id", OpExists, ""}.String())
}

func TestEvaluator_Evaluate(t *testing.T) {
	resp := createResponse(201, `{"user": {"name": "John", "age": 30}, "tags": ["a", "b"], "active": true}`,
		map[string]string{"X-Trace": "abc-123"})
	e := NewEvaluator(resp)

	tests := []struct {
		expr   string
		passed bool
	}{
		{"status == 201", true},
		{"status != 200", true},
		{"status < 300", true},
		{"status >= 300", false},
		{"duration <= 100", true},
		{"body.user.name == John", true},
		{"body.user.age == 30", true},
		{"body.user.age > 40", false},
		{"body.active == true", true},
		{`body.tags == ["a","b"]`, true},
		{"body.user contains John", true},
		{"header.x-trace matches ^abc-\\d+$", true},
		{"header.X-Trace matches ^xyz", false},
		{"body.user.email exists", false},
		{"body.tags exists", true},
		{"body.user.email == x", false},
		{"body.user.name > 3", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			a, err := Parse(tt.expr)
			require.NoError(t, err)

			result := e.Evaluate(a)
			assert.Equal(t, tt.passed, result.Passed, result.Message)
			if !tt.passed {
				assert.NotEmpty(t, result.Message)
			}
		})
	}
}

func TestEvaluator_InvalidRegex(t *testing.T) {
	e := NewEvaluator(createResponse(200, `{"a": "b"}`, nil))
	result := e.Evaluate(Assertion{"body.a", OpMatches, "("})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "invalid regex pattern")
}

func TestEvaluator_Status(t *testing.T) {
	tests := []struct {
		code     int
		expected string
		passed   bool
	}{
		{200, "200", true},
		{204, "200,204", true},
		{204, "200, 201", false},
		{201, "2xx", true},
		{404, "2xx", false},
		{404, "4XX", true},
		{500, "abc", false},
		{200, "0xx", false},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := NewEvaluator(createResponse(tt.code, `{}`, nil)).Status(tt.expected)
			assert.Equal(t, tt.passed, result.Passed)
			assert.Equal(t, tt.code, result.Actual)
		})
	}
}

func TestEvaluator_Schema(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "user.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{
		"type": "object",
		"required": ["id", "name"],
		"properties": {
			"id": {"type": "integer"},
			"name": {"type": "string"}
		}
	}`), 0644))

	t.Run("valid", func(t *testing.T) {
		result := NewEvaluator(createResponse(200, `{"id": 1, "name": "John"}`, nil)).Schema(schemaPath)
		assert.True(t, result.Passed, result.Message)
	})

	t.Run("invalid", func(t *testing.T) {
		result := NewEvaluator(createResponse(200, `{"id": "one"}`, nil)).Schema(schemaPath)
		assert.False(t, result.Passed)
		assert.Contains(t, result.Message, "schema validation failed")
	})

	t.Run("non-json body", func(t *testing.T) {
		result := NewEvaluator(createResponse(200, `not json`, nil)).Schema(schemaPath)
		assert.False(t, result.Passed)
		assert.Contains(t, result.Message, "not valid JSON")
	})

	t.Run("missing schema file", func(t *testing.T) {
		result := NewEvaluator(createResponse(200, `{}`, nil)).Schema(filepath.Join(dir, "nope.json"))
		assert.False(t, result.Passed)
		assert.Contains(t, result.Message, "failed to read schema file")
	})
}

func TestEvaluateAll(t *testing.T) {
	resp := createResponse(200, `{"ok": true}`, nil)

	results := EvaluateAll(resp, []Assertion{
		{"status", OpEquals, "200"},
		{"body.ok", OpEquals, "true"},
	})
	require.Len(t, results, 2)
	assert.True(t, AllPassed(results))

	results = EvaluateAll(resp, []Assertion{{"status", OpEquals, "500"}})
	assert.False(t, AllPassed(results))
}
