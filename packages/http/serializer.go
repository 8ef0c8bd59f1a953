package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"golang.org/x/net/http/httpguts"
)

// ErrInvalidHeader is returned when a header name or value cannot be written
// on the wire.
var ErrInvalidHeader = errors.New("invalid header")

// ErrInvalidMethod is returned for methods that are not valid HTTP tokens.
var ErrInvalidMethod = errors.New("invalid method")

// Serializer writes HTTP/1.1 requests to a stream.
type Serializer struct {
	w io.Writer
}

func NewSerializer(w io.Writer) *Serializer {
	return &Serializer{w: w}
}

// Serialize validates req and writes it in full. Host, Content-Length and
// Connection are added when the caller did not set them. Nothing is written
// if validation fails.
func (s *Serializer) Serialize(req *Request) error {
	if req.URI == nil {
		return errors.New("request has no URI")
	}
	if !req.Method.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, req.Method)
	}

	keys := make([]string, 0, len(req.Headers))
	for k, v := range req.Headers {
		if !httpguts.ValidHeaderFieldName(k) {
			return fmt.Errorf("%w: name %q", ErrInvalidHeader, k)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			return fmt.Errorf("%w: value for %q", ErrInvalidHeader, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bw, ok := s.w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(s.w)
	}

	fmt.Fprintf(bw, "%s %s %s\r\n", req.Method, req.URI.RequestTarget(), req.Version())

	if _, ok := req.Header("Host"); !ok {
		writeHeader(bw, "Host", req.URI.Authority())
	}
	for _, k := range keys {
		writeHeader(bw, k, req.Headers[k])
	}
	if _, ok := req.Header("Content-Length"); !ok {
		if _, chunked := req.Header("Transfer-Encoding"); !chunked {
			if len(req.Body) > 0 || req.Method.expectsBody() {
				writeHeader(bw, "Content-Length", strconv.Itoa(len(req.Body)))
			}
		}
	}
	if _, ok := req.Header("Connection"); !ok {
		writeHeader(bw, "Connection", "close")
	}
	bw.WriteString("\r\n")

	if len(req.Body) > 0 {
		if _, err := bw.Write(req.Body); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeHeader(w *bufio.Writer, key, value string) {
	w.WriteString(key)
	w.WriteString(": ")
	w.WriteString(value)
	w.WriteString("\r\n")
}
