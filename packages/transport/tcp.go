package transport

import (
	"fmt"
	"net"
	"strconv"
)

// Plain opens unencrypted TCP connections.
type Plain struct {
	host string
	port int
	opts options
}

// NewPlain creates a Plain transport for host and port.
func NewPlain(host string, port int, opts ...Option) (*Plain, error) {
	if err := validateAddress(host, port); err != nil {
		return nil, err
	}
	return &Plain{
		host: host,
		port: port,
		opts: buildOptions(opts),
	}, nil
}

// PlainFactory returns a Factory producing Plain transports with opts applied.
func PlainFactory(opts ...Option) Factory {
	return func(host string, port int) (Transport, error) {
		return NewPlain(host, port, opts...)
	}
}

// Address returns the dial address.
func (p *Plain) Address() string {
	return net.JoinHostPort(p.host, strconv.Itoa(p.port))
}

// Connect dials the TCP connection.
func (p *Plain) Connect() (Stream, error) {
	conn, err := p.opts.dialer().Dial("tcp", p.Address())
	if err != nil {
		return nil, err
	}

	// Requests are written in one flush; disable Nagle's algorithm
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	if err := p.opts.applyDeadline(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func validateAddress(host string, port int) error {
	if host == "" {
		return ErrMissingHost
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return nil
}
