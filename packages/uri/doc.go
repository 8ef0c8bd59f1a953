// Package uri parses request URLs into the pieces the hitwire client needs.
//
// It provides:
//   - Scheme, host and optional explicit port
//   - Well-known default ports per scheme (http, https, ws, wss)
//   - Query merging from a key/value map
//   - The origin-form request target written on the request line
package uri
