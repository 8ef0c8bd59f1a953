package uri

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// schemePorts maps a scheme to its well-known port. Lookups are exact, so
// "HTTP" has no default.
var schemePorts = map[string]int{
	"http":  80,
	"ws":    80,
	"https": 443,
	"wss":   443,
}

// URI is a parsed request URL.
type URI struct {
	// Scheme is kept exactly as it appeared in the input.
	Scheme   string
	Host     string
	Path     string // escaped form
	RawQuery string
	Fragment string

	port    int
	hasPort bool
}

// Parse parses raw into a URI. A missing host is not an error here; the
// transport layer decides what a usable endpoint is.
func Parse(raw string) (*URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	result := &URI{
		Scheme:   u.Scheme,
		Host:     u.Hostname(),
		Path:     u.EscapedPath(),
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}

	// net/url lowercases the scheme; keep the caller's spelling.
	if u.Scheme != "" && len(raw) >= len(u.Scheme) {
		result.Scheme = raw[:len(u.Scheme)]
	}

	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port %q in %q", p, raw)
		}
		result.port = n
		result.hasPort = true
	}

	return result, nil
}

// Port returns the explicit port, if the URL carried one.
func (u *URI) Port() (int, bool) {
	return u.port, u.hasPort
}

// SetPort sets an explicit port.
func (u *URI) SetPort(port int) {
	u.port = port
	u.hasPort = true
}

// SchemePort returns the default port implied by the scheme.
func (u *URI) SchemePort() (int, bool) {
	port, ok := schemePorts[u.Scheme]
	return port, ok
}

// FinishPath makes sure the path ends with a slash.
func (u *URI) FinishPath() *URI {
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u
}

// AppendQuery adds params to the query component. Existing parameters are
// left in place; new ones are appended in key order.
func (u *URI) AppendQuery(params map[string]string) *URI {
	if len(params) == 0 {
		return u
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	u.RawQuery = b.String()
	return u
}

// Query decodes the query component.
func (u *URI) Query() url.Values {
	v, _ := url.ParseQuery(u.RawQuery)
	return v
}

// RequestTarget returns the origin-form target: path plus query, never the
// fragment.
func (u *URI) RequestTarget() string {
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery == "" {
		return path
	}
	return path + "?" + u.RawQuery
}

// Authority returns host[:port] suitable for a Host header. The port is only
// included when it was given explicitly.
func (u *URI) Authority() string {
	if u.hasPort {
		return net.JoinHostPort(u.Host, strconv.Itoa(u.port))
	}
	if strings.Contains(u.Host, ":") {
		return "[" + u.Host + "]"
	}
	return u.Host
}

func (u *URI) String() string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	b.WriteString(u.Authority())
	b.WriteString(u.RequestTarget())
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(url.PathEscape(u.Fragment))
	}
	return b.String()
}
