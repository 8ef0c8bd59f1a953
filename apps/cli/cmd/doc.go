// Package cmd implements the hitwire CLI commands using Cobra.
//
// Available commands:
//   - request: Send one HTTP/1.1 request and print the response
//   - run: Send every request in a .http file
//   - bench: Repeat a request and report latency percentiles
//   - history: List requests recorded in the history database
//   - version: Show hitwire version information
//
// Flags fall back to HITWIRE_* environment variables, then to the
// .hitwire.json / .hitwire.yaml / .hitwire.toml config file.
package cmd
