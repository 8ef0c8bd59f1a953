package http

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/uri"
	"golang.org/x/net/http/httpguts"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodConnect Method = "CONNECT"
)

// ParseMethod normalizes s to a Method. Unknown tokens are accepted as-is
// in upper case; the serializer validates them.
func ParseMethod(s string) Method {
	return Method(strings.ToUpper(strings.TrimSpace(s)))
}

func (m Method) String() string {
	return string(m)
}

// Valid reports whether m is a non-empty HTTP token.
func (m Method) Valid() bool {
	return m != "" && httpguts.ValidHeaderFieldName(string(m))
}

// expectsBody reports whether a missing body should still be announced with
// Content-Length: 0.
func (m Method) expectsBody() bool {
	return m == MethodPost || m == MethodPut || m == MethodPatch
}

// Version is the protocol version written on the request line.
type Version struct {
	Major int
	Minor int
}

// HTTP11 is the only version hitwire speaks.
var HTTP11 = Version{Major: 1, Minor: 1}

func (v Version) String() string {
	return fmt.Sprintf("HTTP/%d.%d", v.Major, v.Minor)
}

type Request struct {
	Method  Method
	URI     *uri.URI
	Headers map[string]string
	Body    []byte
}

// NewRequest creates a request for HTTP/1.1.
func NewRequest(method Method, target *uri.URI) *Request {
	return &Request{
		Method:  method,
		URI:     target,
		Headers: make(map[string]string),
	}
}

// Version is always HTTP/1.1.
func (r *Request) Version() Version {
	return HTTP11
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

// Header looks a header up case-insensitively.
func (r *Request) Header(key string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
