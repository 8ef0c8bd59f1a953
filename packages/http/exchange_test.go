package http

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/hitwire/packages/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerform_WritesThenReadsThenCloses(t *testing.T) {
	stream := newScriptedStream(okResponse)
	req := NewRequest(MethodGet, mustURI(t, "http://example.com/items/"))

	resp, err := Perform(req, stream)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, strings.HasPrefix(stream.written.String(), "GET /items/ HTTP/1.1\r\n"))
	assert.True(t, stream.closed)
}

func TestPerform_BufferedConnection(t *testing.T) {
	stream := newScriptedStream(okResponse)
	conn := transport.NewBufferedStream(stream)
	req := NewRequest(MethodPost, mustURI(t, "http://example.com/"))
	req.SetBody([]byte("payload"))

	resp, err := Perform(req, conn)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.BodyString())
	assert.True(t, bytes.HasSuffix(stream.written.Bytes(), []byte("\r\n\r\npayload")))

	_, err = conn.Write([]byte("again"))
	assert.ErrorIs(t, err, transport.ErrStreamClosed)
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, transport.ErrStreamClosed)
}

func TestPerform_CloseErrorIsSuppressed(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	stream := newScriptedStream(okResponse)
	stream.closeErr = errors.New("reset by peer")
	req := NewRequest(MethodGet, mustURI(t, "http://example.com/"))

	resp, err := Perform(req, stream, WithExchangeLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, stream.closed)
	assert.Contains(t, logs.String(), "reset by peer")
}

func TestPerform_ParseErrorStillCloses(t *testing.T) {
	stream := newScriptedStream("garbage\r\n\r\n")
	req := NewRequest(MethodGet, mustURI(t, "http://example.com/"))

	resp, err := Perform(req, stream)
	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, stream.closed)
}

func TestPerform_SerializeErrorStillCloses(t *testing.T) {
	stream := newScriptedStream(okResponse)
	req := NewRequest(MethodGet, mustURI(t, "http://example.com/"))
	req.SetHeader("X-Bad", "line\nbreak")

	_, err := Perform(req, stream)
	assert.ErrorIs(t, err, ErrInvalidHeader)
	assert.True(t, stream.closed)
	assert.Zero(t, stream.reads)
}
