// Package curl translates curl command lines into hitwire requests and
// renders requests back as curl commands.
package curl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/uri"
)

// Command is the request described by a curl command line
type Command struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string // -G data, sent in the query string
	Body     string
	Insecure bool
	Timeout  time.Duration // --max-time
}

var ErrNoURL = errors.New("no URL found in curl command")

// Parse reads a curl command line. Line continuations are accepted. Flags
// that have no hitwire equivalent are skipped along with their value.
func Parse(cmdline string) (*Command, error) {
	cmdline = strings.ReplaceAll(cmdline, "\\\n", " ")
	tokens := tokenize(strings.TrimSpace(cmdline))
	if len(tokens) > 0 && tokens[0] == "curl" {
		tokens = tokens[1:]
	}

	c := &Command{Headers: make(map[string]string)}
	var data []string
	var method string
	get := false

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		next := func() (string, error) {
			if i+1 >= len(tokens) {
				return "", fmt.Errorf("missing value for %s", token)
			}
			i++
			return tokens[i], nil
		}

		switch token {
		case "-X", "--request":
			v, err := next()
			if err != nil {
				return nil, err
			}
			method = strings.ToUpper(v)

		case "-H", "--header":
			v, err := next()
			if err != nil {
				return nil, err
			}
			if name, value, ok := strings.Cut(v, ":"); ok && strings.TrimSpace(name) != "" {
				c.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
			}

		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
			v, err := next()
			if err != nil {
				return nil, err
			}
			data = append(data, v)

		case "--json":
			v, err := next()
			if err != nil {
				return nil, err
			}
			data = append(data, v)
			setDefault(c.Headers, "Content-Type", "application/json")
			setDefault(c.Headers, "Accept", "application/json")

		case "-u", "--user":
			v, err := next()
			if err != nil {
				return nil, err
			}
			c.Headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(v))

		case "-A", "--user-agent":
			v, err := next()
			if err != nil {
				return nil, err
			}
			c.Headers["User-Agent"] = v

		case "-e", "--referer":
			v, err := next()
			if err != nil {
				return nil, err
			}
			c.Headers["Referer"] = v

		case "-b", "--cookie":
			v, err := next()
			if err != nil {
				return nil, err
			}
			c.Headers["Cookie"] = v

		case "-m", "--max-time":
			v, err := next()
			if err != nil {
				return nil, err
			}
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("invalid %s value %q", token, v)
			}
			c.Timeout = time.Duration(secs * float64(time.Second))

		case "--url":
			v, err := next()
			if err != nil {
				return nil, err
			}
			c.URL = v

		case "-I", "--head":
			method = "HEAD"

		case "-G", "--get":
			get = true

		case "-k", "--insecure":
			c.Insecure = true

		default:
			if strings.HasPrefix(token, "-") {
				// Unknown flag: skip its value when it plainly has one
				if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
					i++
				}
				continue
			}
			if c.URL == "" {
				c.URL = token
			}
		}
	}

	if c.URL == "" {
		return nil, ErrNoURL
	}

	switch {
	case get:
		c.Query = parseQuery(strings.Join(data, "&"))
	case len(data) > 0:
		c.Body = strings.Join(data, "&")
	}

	c.Method = method
	if c.Method == "" {
		c.Method = "GET"
		if c.Body != "" {
			c.Method = "POST"
		}
	}

	return c, nil
}

func setDefault(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

func parseQuery(s string) map[string]string {
	if s == "" {
		return nil
	}
	q := make(map[string]string)
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		if uk, err := url.QueryUnescape(k); err == nil {
			k = uk
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		q[k] = v
	}
	return q
}

// String renders c as a curl command line. Query parameters are folded into
// the URL and headers are written in sorted order.
func (c *Command) String() string {
	target := c.URL
	if len(c.Query) > 0 {
		if u, err := uri.Parse(c.URL); err == nil {
			target = u.AppendQuery(c.Query).String()
		}
	}

	parts := []string{"curl"}
	if c.Method != "" && c.Method != "GET" {
		parts = append(parts, "-X", c.Method)
	}

	keys := make([]string, 0, len(c.Headers))
	for k := range c.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "-H", quote(k+": "+c.Headers[k]))
	}

	if c.Body != "" {
		parts = append(parts, "--data-raw", quote(c.Body))
	}
	if c.Insecure {
		parts = append(parts, "-k")
	}
	if c.Timeout > 0 {
		parts = append(parts, "--max-time", strconv.FormatFloat(c.Timeout.Seconds(), 'f', -1, 64))
	}

	parts = append(parts, quote(target))
	return strings.Join(parts, " ")
}

// quote wraps s in single quotes for a POSIX shell when it needs quoting.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`!&|;<>(){}[]*?#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// tokenize splits a command into shell words, honoring single quotes,
// double quotes and backslash escapes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingle, inDouble, escaped, started := false, false, false, false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch {
		case r == '\\' && !inSingle:
			escaped = true
			started = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			started = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			started = true
		case (r == ' ' || r == '\t' || r == '\n') && !inSingle && !inDouble:
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if started {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "{{")
}
