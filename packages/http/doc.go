// Package http implements hitwire's one-shot HTTP/1.1 client.
//
// Every call follows the same sequence:
//   - Parse the URL and merge query parameters
//   - Select a plain or TLS transport from the scheme
//   - Serialize the request onto the fresh connection
//   - Parse exactly one response
//   - Close the connection, ignoring close failures
//
// There is no connection reuse, redirect following or retrying.
package http
