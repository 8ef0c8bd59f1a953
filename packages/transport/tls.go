package transport

import (
	"crypto/tls"
	"net"
	"strconv"
)

// Secure opens TLS connections.
type Secure struct {
	host string
	port int
	opts options
}

// NewSecure creates a Secure transport for host and port.
func NewSecure(host string, port int, opts ...Option) (*Secure, error) {
	if err := validateAddress(host, port); err != nil {
		return nil, err
	}
	return &Secure{
		host: host,
		port: port,
		opts: buildOptions(opts),
	}, nil
}

// SecureFactory returns a Factory producing Secure transports with opts applied.
func SecureFactory(opts ...Option) Factory {
	return func(host string, port int) (Transport, error) {
		return NewSecure(host, port, opts...)
	}
}

// Address returns the dial address.
func (s *Secure) Address() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Connect dials TCP and completes the TLS handshake.
func (s *Secure) Connect() (Stream, error) {
	conn, err := tls.DialWithDialer(s.opts.dialer(), "tcp", s.Address(), s.config())
	if err != nil {
		return nil, err
	}

	if err := s.opts.applyDeadline(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func (s *Secure) config() *tls.Config {
	var cfg *tls.Config
	if s.opts.tlsConfig != nil {
		cfg = s.opts.tlsConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = s.host
	}
	if s.opts.insecureSkipVerify {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}
