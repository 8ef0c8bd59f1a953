// Package output renders hitwire results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//
// Both implement Formatter for single exchanges, bench summaries, history
// listings and .http file runs. Runs can also be written as JUnit XML or
// TAP reports with WriteReport.
package output
