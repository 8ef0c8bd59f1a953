package parser

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// ParseFile reads and parses the .http file at path.
func ParseFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(content), path)
}

type state int

const (
	stateStart state = iota // before the request line
	stateQuery              // after the request line, before headers
	stateHeaders
	stateBody
	stateBlock // inside >>> ... <<<
	stateAfter // after <<<
)

type parser struct {
	file  *File
	req   *Request
	state state
	body  []string
}

// Parse parses input; filename is only used in error messages.
func Parse(input, filename string) (*File, error) {
	p := &parser{file: &File{Path: filename}}

	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		if err := p.line(raw, i+1); err != nil {
			return nil, &ParseError{File: filename, Line: i + 1, Message: err.Error()}
		}
	}
	if p.state == stateBlock {
		return nil, &ParseError{File: filename, Line: len(lines), Message: "unterminated >>> block"}
	}
	p.finish()

	return p.file, nil
}

func (p *parser) line(raw string, n int) error {
	line := strings.TrimSpace(raw)

	if strings.HasPrefix(line, "###") {
		if p.state == stateBlock {
			return fmt.Errorf("request separator inside >>> block")
		}
		p.finish()
		p.req = &Request{Name: strings.TrimSpace(strings.TrimLeft(line, "#")), Line: n}
		p.state = stateStart
		return nil
	}

	switch p.state {
	case stateBlock:
		return p.blockLine(line)

	case stateBody:
		if line == ">>>" {
			p.state = stateBlock
			return nil
		}
		p.body = append(p.body, raw)
		return nil

	case stateAfter:
		switch {
		case line == ">>>":
			p.state = stateBlock
		case line != "" && !isComment(line):
			return fmt.Errorf("unexpected %q after <<<", line)
		}
		return nil
	}

	if line == ">>>" {
		if p.req == nil || p.req.Method == "" {
			return fmt.Errorf(">>> block before a request line")
		}
		p.state = stateBlock
		return nil
	}

	if isComment(line) {
		if name, ok := nameDirective(line); ok {
			if p.req == nil {
				p.req = &Request{Line: n}
			}
			p.req.Name = name
		}
		return nil
	}

	switch p.state {
	case stateStart:
		if line == "" {
			return nil
		}
		if strings.HasPrefix(line, "@") && (p.req == nil || p.req.Method == "") {
			return p.variable(line, n)
		}
		if p.req == nil {
			p.req = &Request{Line: n}
		}
		if err := p.requestLine(line); err != nil {
			return err
		}
		p.state = stateQuery
		return nil

	case stateQuery, stateHeaders:
		if line == "" {
			p.state = stateBody
			return nil
		}
		if p.state == stateQuery && (line[0] == '?' || line[0] == '&') {
			key, value, _ := strings.Cut(line[1:], "=")
			p.req.Query = append(p.req.Query, &QueryParam{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value), Line: n})
			return nil
		}
		p.state = stateHeaders
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid header %q: expected Name: value", line)
		}
		p.req.Headers = append(p.req.Headers, &Header{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value), Line: n})
		return nil
	}
	return nil
}

func (p *parser) variable(line string, n int) error {
	name, value, ok := strings.Cut(line[1:], "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("invalid variable %q: expected @name = value", line)
	}
	p.file.Variables = append(p.file.Variables, &Variable{Name: name, Value: strings.TrimSpace(value), Line: n})
	return nil
}

// requestLine accepts "METHOD URL [HTTP/x.y]" or a bare URL, which is a GET.
func (p *parser) requestLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) > 1 && strings.HasPrefix(strings.ToUpper(fields[len(fields)-1]), "HTTP/") {
		fields = fields[:len(fields)-1]
	}

	switch len(fields) {
	case 1:
		p.req.Method = string(http.MethodGet)
		p.req.URL = fields[0]
	case 2:
		method := http.ParseMethod(fields[0])
		if !method.Valid() {
			return fmt.Errorf("invalid method %q", fields[0])
		}
		p.req.Method = string(method)
		p.req.URL = fields[1]
	default:
		return fmt.Errorf("invalid request line %q: expected METHOD URL", line)
	}
	return nil
}

func (p *parser) blockLine(line string) error {
	switch {
	case line == "<<<":
		p.state = stateAfter
		return nil
	case line == "" || isComment(line):
		return nil
	}

	keyword, expr, _ := strings.Cut(line, " ")
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("%q needs an expression", keyword)
	}
	switch keyword {
	case "expect":
		p.req.Expects = append(p.req.Expects, expr)
	case "capture":
		p.req.Captures = append(p.req.Captures, expr)
	default:
		return fmt.Errorf("unknown directive %q: expected expect or capture", keyword)
	}
	return nil
}

// finish closes the current request.
func (p *parser) finish() {
	if p.req != nil && p.req.Method != "" {
		p.req.Body = strings.TrimSpace(strings.Join(p.body, "\n"))
		p.file.Requests = append(p.file.Requests, p.req)
	}
	p.req = nil
	p.body = nil
	p.state = stateStart
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//")
}

func nameDirective(line string) (string, bool) {
	line = strings.TrimSpace(strings.TrimLeft(line, "#/"))
	name, ok := strings.CutPrefix(line, "@name")
	if !ok {
		return "", false
	}
	name = strings.TrimSpace(name)
	return name, name != ""
}

// Find returns the request called name. An empty name selects the only
// request in the file; a number selects by 1-based position.
func (f *File) Find(name string) (*Request, error) {
	if len(f.Requests) == 0 {
		return nil, fmt.Errorf("%s: no requests found", f.Path)
	}

	if name == "" {
		if len(f.Requests) > 1 {
			return nil, fmt.Errorf("%s has %d requests: choose one with --name (%s)", f.Path, len(f.Requests), strings.Join(f.Names(), ", "))
		}
		return f.Requests[0], nil
	}

	for _, r := range f.Requests {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 1 && i <= len(f.Requests) {
		return f.Requests[i-1], nil
	}
	return nil, fmt.Errorf("%s: no request named %q", f.Path, name)
}

// Names lists the request names, using the position for unnamed ones.
func (f *File) Names() []string {
	names := make([]string, len(f.Requests))
	for i, r := range f.Requests {
		names[i] = r.Name
		if names[i] == "" {
			names[i] = strconv.Itoa(i + 1)
		}
	}
	return names
}

// VariableMap returns the file variables; later declarations win.
func (f *File) VariableMap() map[string]string {
	m := make(map[string]string, len(f.Variables))
	for _, v := range f.Variables {
		m[v.Name] = v.Value
	}
	return m
}
