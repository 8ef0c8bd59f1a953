package http

import (
	"bufio"
	"io"
	nethttp "net/http"
	"strings"
)

// Parser reads a single HTTP/1.x response from a stream. Framing
// (Content-Length, chunked, read-until-close) is delegated to net/http.
type Parser struct {
	r *bufio.Reader
}

type bufferedReader interface {
	Reader() *bufio.Reader
}

func NewParser(r io.Reader) *Parser {
	switch v := r.(type) {
	case *bufio.Reader:
		return &Parser{r: v}
	case bufferedReader:
		return &Parser{r: v.Reader()}
	default:
		return &Parser{r: bufio.NewReader(r)}
	}
}

// Parse reads one response to a request made with method. The body is read
// completely before returning.
func (p *Parser) Parse(method Method) (*Response, error) {
	resp, err := nethttp.ReadResponse(p.r, &nethttp.Request{Method: string(method)})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(resp.Header))
	for k, values := range resp.Header {
		headers[k] = strings.Join(values, ", ")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Proto:      resp.Proto,
		Headers:    headers,
		Body:       body,
	}, nil
}
