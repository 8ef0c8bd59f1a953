package vars

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{
			name:     "simple key-value",
			content:  "API_KEY=secret123",
			expected: map[string]string{"API_KEY": "secret123"},
		},
		{
			name:     "double quoted value",
			content:  `API_KEY="secret with spaces"`,
			expected: map[string]string{"API_KEY": "secret with spaces"},
		},
		{
			name:     "single quoted value",
			content:  `API_KEY='secret with spaces'`,
			expected: map[string]string{"API_KEY": "secret with spaces"},
		},
		{
			name:     "mismatched quotes kept",
			content:  `API_KEY="oops'`,
			expected: map[string]string{"API_KEY": `"oops'`},
		},
		{
			name:     "comments and blank lines",
			content:  "# comment\n\nKEY1=value1\n  \nKEY2=value2",
			expected: map[string]string{"KEY1": "value1", "KEY2": "value2"},
		},
		{
			name:     "export prefix",
			content:  "export TOKEN=abc",
			expected: map[string]string{"TOKEN": "abc"},
		},
		{
			name:     "value containing equals",
			content:  "URL=http://x/?a=b",
			expected: map[string]string{"URL": "http://x/?a=b"},
		},
		{
			name:     "lines without equals or key skipped",
			content:  "garbage\n=value\nOK=1",
			expected: map[string]string{"OK": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".env")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			got, err := LoadDotEnv(path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	_, err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	assert.ErrorContains(t, err, "cannot open env file")
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"a=1", "b=x=y", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "empty": ""}, got)

	_, err = ParseAssignments([]string{"novalue"})
	assert.ErrorContains(t, err, "expected KEY=VALUE")

	_, err = ParseAssignments([]string{"=1"})
	assert.Error(t, err)
}
