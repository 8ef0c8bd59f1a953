package transport

import (
	"bytes"
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/hitwire/packages/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (f *fakeStream) Close() error {
	f.closed = true
	return f.closeErr
}

type fakeTransport struct {
	stream     Stream
	connectErr error
}

func (f *fakeTransport) Connect() (Stream, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.stream, nil
}

type recordingFactory struct {
	calls []Endpoint
	t     *fakeTransport
	err   error
}

func (r *recordingFactory) factory(secure bool) Factory {
	return func(host string, port int) (Transport, error) {
		r.calls = append(r.calls, Endpoint{Host: host, Port: port, Secure: secure})
		if r.err != nil {
			return nil, r.err
		}
		return r.t, nil
	}
}

func newRecordingSelector() (*Selector, *recordingFactory, *recordingFactory) {
	plain := &recordingFactory{t: &fakeTransport{stream: &fakeStream{}}}
	secure := &recordingFactory{t: &fakeTransport{stream: &fakeStream{}}}
	s := NewSelector(
		WithPlainFactory(plain.factory(false)),
		WithSecureFactory(secure.factory(true)),
	)
	return s, plain, secure
}

func mustParse(t *testing.T, raw string) *uri.URI {
	t.Helper()
	u, err := uri.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSelector_Connect_SchemeSelection(t *testing.T) {
	tests := []struct {
		url    string
		secure bool
		host   string
		port   int
	}{
		{"https://api.example.com/items", true, "api.example.com", 443},
		{"wss://socket.example.com/", true, "socket.example.com", 443},
		{"http://example.com/", false, "example.com", 80},
		{"ws://example.com/", false, "example.com", 80},
		{"http://10.0.0.1:8080/x", false, "10.0.0.1", 8080},
		{"https://example.com:8443/", true, "example.com", 8443},
		{"HTTPS://example.com:443/", false, "example.com", 443},
		{"ftp://example.com:21/", false, "example.com", 21},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			s, plain, secure := newRecordingSelector()

			stream, err := s.Connect(mustParse(t, tt.url))
			require.NoError(t, err)
			assert.IsType(t, &BufferedStream{}, stream)

			want := []Endpoint{{Host: tt.host, Port: tt.port, Secure: tt.secure}}
			if tt.secure {
				assert.Equal(t, want, secure.calls)
				assert.Empty(t, plain.calls)
			} else {
				assert.Equal(t, want, plain.calls)
				assert.Empty(t, secure.calls)
			}
		})
	}
}

func TestSelector_Connect_MissingHost(t *testing.T) {
	for _, raw := range []string{"http:///path", "example.com/path", "/relative"} {
		t.Run(raw, func(t *testing.T) {
			s, plain, secure := newRecordingSelector()

			_, err := s.Connect(mustParse(t, raw))
			assert.ErrorIs(t, err, ErrMissingHost)
			assert.Empty(t, plain.calls)
			assert.Empty(t, secure.calls)
		})
	}
}

func TestSelector_Connect_MissingPort(t *testing.T) {
	for _, raw := range []string{"ftp://example.com/", "gopher://example.com/", "HTTP://example.com/"} {
		t.Run(raw, func(t *testing.T) {
			s, plain, secure := newRecordingSelector()

			_, err := s.Connect(mustParse(t, raw))
			assert.ErrorIs(t, err, ErrMissingPort)
			assert.Empty(t, plain.calls)
			assert.Empty(t, secure.calls)
		})
	}
}

func TestSelector_Connect_PropagatesErrors(t *testing.T) {
	t.Run("constructor error", func(t *testing.T) {
		boom := errors.New("cannot construct")
		plain := &recordingFactory{err: boom}
		s := NewSelector(WithPlainFactory(plain.factory(false)))

		_, err := s.Connect(mustParse(t, "http://example.com/"))
		assert.Same(t, boom, err)
	})

	t.Run("connect error", func(t *testing.T) {
		refused := errors.New("connection refused")
		plain := &recordingFactory{t: &fakeTransport{connectErr: refused}}
		s := NewSelector(WithPlainFactory(plain.factory(false)))

		_, err := s.Connect(mustParse(t, "http://example.com/"))
		assert.Same(t, refused, err)
	})
}

func TestSelector_Resolve(t *testing.T) {
	s := NewSelector()

	ep, err := s.Resolve(mustParse(t, "https://api.example.com/items"))
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "api.example.com", Port: 443, Secure: true}, ep)

	ep, err = s.Resolve(mustParse(t, "http://example.com:443/"))
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "example.com", Port: 443, Secure: false}, ep)
}

func TestClientError(t *testing.T) {
	assert.Equal(t, "missing host", ErrMissingHost.Error())
	assert.Equal(t, "missing port", ErrMissingPort.Error())
	assert.Equal(t, "stream closed", ErrStreamClosed.Error())
	assert.Contains(t, ClientError(99).Error(), "unknown transport error")
}
