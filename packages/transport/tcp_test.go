package transport

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTcpTestServer(t *testing.T, serverLogic func(net.Conn)) (string, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		serverLogic(conn)
		_ = conn.Close()
	}()

	t.Cleanup(func() {
		_ = listener.Close()
		<-done
	})

	addr := listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestNewPlain_Validation(t *testing.T) {
	_, err := NewPlain("", 80)
	assert.ErrorIs(t, err, ErrMissingHost)

	_, err = NewPlain("example.com", 0)
	assert.Error(t, err)

	_, err = NewPlain("example.com", 70000)
	assert.Error(t, err)

	p, err := NewPlain("example.com", 8080)
	require.NoError(t, err)
	assert.Equal(t, "example.com:8080", p.Address())
}

func TestPlain_Address_IPv6(t *testing.T) {
	p, err := NewPlain("::1", 9000)
	require.NoError(t, err)
	assert.Equal(t, "[::1]:9000", p.Address())
}

func TestPlain_Connect_Echo(t *testing.T) {
	host, port := setupTcpTestServer(t, func(conn net.Conn) {
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		_, _ = conn.Write([]byte(strings.ToUpper(string(buf))))
	})

	p, err := NewPlain(host, port)
	require.NoError(t, err)

	stream, err := p.Connect()
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(buf))
}

func TestPlain_Connect_Refused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	p, err := NewPlain("127.0.0.1", port, WithDialTimeout(time.Second))
	require.NoError(t, err)

	_, err = p.Connect()
	require.Error(t, err)

	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
}

func TestPlain_Connect_IOTimeout(t *testing.T) {
	release := make(chan struct{})
	host, port := setupTcpTestServer(t, func(conn net.Conn) {
		<-release
	})
	defer close(release)

	p, err := NewPlain(host, port, WithIOTimeout(50*time.Millisecond))
	require.NoError(t, err)

	stream, err := p.Connect()
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Read(make([]byte, 1))
	require.Error(t, err)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestPlainFactory(t *testing.T) {
	tr, err := PlainFactory(WithDialTimeout(time.Second))("example.com", 80)
	require.NoError(t, err)

	p, ok := tr.(*Plain)
	require.True(t, ok)
	assert.Equal(t, time.Second, p.opts.dialTimeout)
}
