package output

import (
	"bytes"
	"encoding/xml"
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJUnit(t *testing.T) {
	result := sampleRun()
	result.Results = append(result.Results, &runner.RequestResult{Name: "down", Error: errors.New("connection refused")})

	var buf bytes.Buffer
	require.NoError(t, WriteJUnit(&buf, result))

	var doc JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc), buf.String())
	assert.Equal(t, 4, doc.Tests)
	assert.Equal(t, 1, doc.Failures)
	assert.Equal(t, 1, doc.Errors)
	assert.Equal(t, 1, doc.Skipped)

	require.Len(t, doc.TestSuites, 1)
	cases := doc.TestSuites[0].TestCases
	require.Len(t, cases, 4)
	assert.Equal(t, "api", cases[0].ClassName)
	assert.Nil(t, cases[0].Failure)
	require.NotNil(t, cases[1].Failure)
	assert.Equal(t, "status ==: expected 200, got 500", cases[1].Failure.Message)
	require.NotNil(t, cases[2].Skipped)
	assert.Equal(t, "earlier request failed", cases[2].Skipped.Message)
	require.NotNil(t, cases[3].Error)
	assert.Equal(t, "connection refused", cases[3].Error.Message)
}

func TestWriteTAP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTAP(&buf, sampleRun()))

	want := "TAP version 13\n" +
		"1..3\n" +
		"ok 1 - login\n" +
		"not ok 2 - orders\n" +
		"  ---\n" +
		"  failures:\n" +
		"    - \"status ==: expected 200, got 500\"\n" +
		"  ...\n" +
		"ok 3 - #3 # SKIP earlier request failed\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteReport(t *testing.T) {
	assert.Equal(t, ReportJUnit, ReportFormat("out/results.XML"))
	assert.Equal(t, ReportTAP, ReportFormat("results.tap"))

	assert.Error(t, WriteReport("html", &bytes.Buffer{}, sampleRun()))
	assert.NoError(t, WriteReport(ReportTAP, &bytes.Buffer{}, sampleRun()))
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a: b", `"a: b"`},
		{`say "hi"`, `"say \"hi\""`},
		{"two\nlines", `"two\nlines"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeYAML(tt.in), tt.in)
	}
}
