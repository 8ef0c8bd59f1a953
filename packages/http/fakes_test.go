package http

import (
	"bytes"
	"errors"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/transport"
)

// scriptedStream replays a canned response once a complete request has been
// written to it.
type scriptedStream struct {
	written  bytes.Buffer
	response *strings.Reader
	closed   bool
	closeErr error
	reads    int
}

func newScriptedStream(response string) *scriptedStream {
	return &scriptedStream{response: strings.NewReader(response)}
}

func (s *scriptedStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.New("write on closed stream")
	}
	if s.reads > 0 {
		return 0, errors.New("write after read")
	}
	return s.written.Write(p)
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, errors.New("read on closed stream")
	}
	if !bytes.Contains(s.written.Bytes(), []byte("\r\n\r\n")) {
		return 0, errors.New("read before request was written")
	}
	s.reads++
	return s.response.Read(p)
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return s.closeErr
}

type scriptedTransport struct {
	stream *scriptedStream
}

func (t *scriptedTransport) Connect() (transport.Stream, error) {
	return t.stream, nil
}

type dial struct {
	host   string
	port   int
	secure bool
}

// scriptedSelector builds a selector whose factories record every
// construction and hand out stream.
func scriptedSelector(stream *scriptedStream) (*transport.Selector, *[]dial) {
	var dials []dial
	factory := func(secure bool) transport.Factory {
		return func(host string, port int) (transport.Transport, error) {
			dials = append(dials, dial{host: host, port: port, secure: secure})
			return &scriptedTransport{stream: stream}, nil
		}
	}
	s := transport.NewSelector(
		transport.WithPlainFactory(factory(false)),
		transport.WithSecureFactory(factory(true)),
	)
	return s, &dials
}

const okResponse = "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 11\r\n\r\n{\"ok\":true}"
