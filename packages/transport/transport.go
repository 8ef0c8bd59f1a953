// Package transport opens the byte streams hitwire requests are written to.
//
// A Transport is a connection-establishing strategy: Plain dials TCP, Secure
// dials TLS. The Selector picks one per request from the URL scheme and wraps
// the resulting stream in a BufferedStream.
package transport

import (
	"fmt"
	"io"
)

// Stream is a live, bidirectional byte stream.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Flusher is implemented by streams that buffer writes.
type Flusher interface {
	Flush() error
}

// Transport establishes a single stream to the host and port it was built for.
type Transport interface {
	Connect() (Stream, error)
}

// Factory builds a Transport for host and port.
type Factory func(host string, port int) (Transport, error)

// ClientError represents connection-selection failures raised before any
// transport is constructed.
type ClientError int

const (
	// ErrMissingHost means the URI has no host component.
	ErrMissingHost ClientError = iota + 1
	// ErrMissingPort means the URI has neither an explicit port nor a scheme default.
	ErrMissingPort
	// ErrStreamClosed is returned by reads and writes on a closed BufferedStream.
	ErrStreamClosed
)

func (e ClientError) Error() string {
	switch e {
	case ErrMissingHost:
		return "missing host"
	case ErrMissingPort:
		return "missing port"
	case ErrStreamClosed:
		return "stream closed"
	default:
		return fmt.Sprintf("unknown transport error: %d", int(e))
	}
}
