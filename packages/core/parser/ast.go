package parser

import "fmt"

type File struct {
	Path      string
	Variables []*Variable
	Requests  []*Request
}

type Variable struct {
	Name  string
	Value string
	Line  int
}

type Request struct {
	Name     string
	Method   string
	URL      string
	Headers  []*Header
	Query    []*QueryParam
	Body     string
	Expects  []string // assertion expressions
	Captures []string // capture expressions
	Line     int
}

type Header struct {
	Key   string
	Value string
	Line  int
}

type QueryParam struct {
	Key   string
	Value string
	Line  int
}

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
