package http

import (
	"encoding/json"
	"mime"
	"net/textproto"
	"strings"
	"time"
)

// Response is one parsed HTTP/1.x response with its body fully read.
// Repeated header fields are joined with ", ".
type Response struct {
	StatusCode int
	Status     string // "200 OK"
	Proto      string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration // connect to close, set by Client
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// BodyJSON decodes the body into generic JSON values.
func (r *Response) BodyJSON() (any, error) {
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Header looks key up case-insensitively.
func (r *Response) Header(key string) string {
	if v, ok := r.Headers[textproto.CanonicalMIMEHeaderKey(key)]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

// MediaType is the Content-Type without parameters, lower-cased.
func (r *Response) MediaType() string {
	ct := r.ContentType()
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsJSON matches application/json and any +json suffix type.
func (r *Response) IsJSON() bool {
	mt := r.MediaType()
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// StatusClass is the first digit of the status code, e.g. 2 for 204.
func (r *Response) StatusClass() int {
	return r.StatusCode / 100
}

func (r *Response) IsSuccess() bool     { return r.StatusClass() == 2 }
func (r *Response) IsRedirect() bool    { return r.StatusClass() == 3 }
func (r *Response) IsClientError() bool { return r.StatusClass() == 4 }
func (r *Response) IsServerError() bool { return r.StatusCode >= 500 }

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
