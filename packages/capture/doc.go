// Package capture extracts values from a response for display with
// `hitwire request --extract`.
//
// It supports capturing values from:
//   - Response body (gjson paths such as body.items.0.id)
//   - Response headers (header.Content-Type)
//   - Response status code and duration
package capture
