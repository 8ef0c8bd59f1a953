package transport

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tlsServerAddress(t *testing.T, server *httptest.Server) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestSecure_Connect_TrustedRoot(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	defer server.Close()

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())

	host, port := tlsServerAddress(t, server)
	s, err := NewSecure(host, port, WithTLSConfig(&tls.Config{RootCAs: pool}))
	require.NoError(t, err)

	stream, err := s.Connect()
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.WriteString(stream, "GET / HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(stream), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "secure", string(body))
}

func TestSecure_Connect_UntrustedCertificate(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	host, port := tlsServerAddress(t, server)
	s, err := NewSecure(host, port)
	require.NoError(t, err)

	_, err = s.Connect()
	assert.Error(t, err)
}

func TestSecure_Connect_InsecureSkipVerify(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	host, port := tlsServerAddress(t, server)
	s, err := NewSecure(host, port, WithInsecureSkipVerify(true))
	require.NoError(t, err)

	stream, err := s.Connect()
	require.NoError(t, err)
	assert.NoError(t, stream.Close())
}

func TestSecure_Config(t *testing.T) {
	base := &tls.Config{MinVersion: tls.VersionTLS13}
	s, err := NewSecure("api.example.com", 443, WithTLSConfig(base))
	require.NoError(t, err)

	cfg := s.config()
	assert.Equal(t, "api.example.com", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	assert.Empty(t, base.ServerName, "base config must not be mutated")

	s, err = NewSecure("api.example.com", 443)
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), s.config().MinVersion)
	assert.False(t, s.config().InsecureSkipVerify)
}
