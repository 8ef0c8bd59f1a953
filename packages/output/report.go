package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is one .http file
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one request
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitMessage `xml:"failure,omitempty"`
	Error     *JUnitMessage `xml:"error,omitempty"`
	Skipped   *JUnitMessage `xml:"skipped,omitempty"`
}

// JUnitMessage is the body of a failure, error or skipped element
type JUnitMessage struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

const (
	ReportJUnit = "junit"
	ReportTAP   = "tap"
)

// WriteReport writes result to w as a JUnit XML or TAP report.
func WriteReport(format string, w io.Writer, result *runner.RunResult) error {
	switch format {
	case ReportJUnit:
		return WriteJUnit(w, result)
	case ReportTAP:
		return WriteTAP(w, result)
	default:
		return fmt.Errorf("unknown report format %q (want junit or tap)", format)
	}
}

// ReportFormat picks a report format from a file name: .xml is JUnit,
// anything else TAP.
func ReportFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return ReportJUnit
	}
	return ReportTAP
}

// WriteJUnit writes result as a JUnit XML document with one suite.
func WriteJUnit(w io.Writer, result *runner.RunResult) error {
	suite := JUnitTestSuite{
		Name:      result.File,
		Skipped:   result.Skipped,
		Time:      result.Duration.Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	className := strings.TrimSuffix(filepath.Base(result.File), filepath.Ext(result.File))

	for _, r := range result.Results {
		tc := JUnitTestCase{
			Name:      r.Name,
			ClassName: className,
			Time:      r.Duration.Seconds(),
		}
		switch {
		case r.Skipped:
			tc.Skipped = &JUnitMessage{Message: r.SkipReason}
		case r.Error != nil:
			tc.Error = &JUnitMessage{Message: r.Error.Error(), Type: "RequestError"}
			suite.Errors++
		case !r.Passed:
			failures := failureLines(r)
			msg := "request failed"
			if len(failures) > 0 {
				msg = failures[0]
			} else if r.Response != nil {
				msg = fmt.Sprintf("status %d", r.Response.StatusCode)
			}
			tc.Failure = &JUnitMessage{
				Message: msg,
				Type:    "AssertionError",
				Content: strings.Join(failures, "\n"),
			}
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
	suite.Tests = len(suite.TestCases)

	doc := JUnitTestSuites{
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Errors:     suite.Errors,
		Skipped:    suite.Skipped,
		Time:       suite.Time,
		TestSuites: []JUnitTestSuite{suite},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JUnit report: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteTAP writes result in TAP version 13.
func WriteTAP(w io.Writer, result *runner.RunResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "TAP version 13\n")
	fmt.Fprintf(&b, "1..%d\n", len(result.Results))

	for i, r := range result.Results {
		n := i + 1
		switch {
		case r.Skipped:
			fmt.Fprintf(&b, "ok %d - %s # SKIP %s\n", n, r.Name, r.SkipReason)
		case r.Error != nil:
			fmt.Fprintf(&b, "not ok %d - %s\n", n, r.Name)
			fmt.Fprintf(&b, "  ---\n")
			fmt.Fprintf(&b, "  message: %s\n", escapeYAML(r.Error.Error()))
			fmt.Fprintf(&b, "  severity: error\n")
			fmt.Fprintf(&b, "  ...\n")
		case r.Passed:
			fmt.Fprintf(&b, "ok %d - %s\n", n, r.Name)
		default:
			fmt.Fprintf(&b, "not ok %d - %s\n", n, r.Name)
			if failures := failureLines(r); len(failures) > 0 {
				fmt.Fprintf(&b, "  ---\n")
				fmt.Fprintf(&b, "  failures:\n")
				for _, line := range failures {
					fmt.Fprintf(&b, "    - %s\n", escapeYAML(line))
				}
				fmt.Fprintf(&b, "  ...\n")
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func failureLines(r *runner.RequestResult) []string {
	var lines []string
	for _, a := range r.Assertions {
		if !a.Passed {
			lines = append(lines, fmt.Sprintf("%s %s: expected %s, got %s",
				a.Subject, a.Operator, formatValue(a.Expected, 100), formatValue(a.Actual, 100)))
		}
	}
	if len(lines) == 0 && r.Response != nil && !r.Response.IsSuccess() {
		lines = append(lines, fmt.Sprintf("status %d", r.Response.StatusCode))
	}
	return lines
}

// escapeYAML quotes s when it would not survive as a plain YAML scalar
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		s = strings.ReplaceAll(s, "\n", `\n`)
		return `"` + s + `"`
	}
	return s
}
