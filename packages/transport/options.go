package transport

import (
	"crypto/tls"
	"net"
	"time"
)

type options struct {
	dialTimeout        time.Duration
	ioTimeout          time.Duration
	tlsConfig          *tls.Config
	insecureSkipVerify bool
}

// Option configures the Plain and Secure transports.
type Option func(*options)

// WithDialTimeout bounds how long establishing the connection may take.
// Zero means no limit.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithIOTimeout sets a deadline on the connection covering every read and
// write after it is established. Zero means no deadline.
func WithIOTimeout(d time.Duration) Option {
	return func(o *options) {
		o.ioTimeout = d
	}
}

// WithTLSConfig sets the base TLS configuration for Secure transports. The
// config is cloned per connection.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithInsecureSkipVerify disables certificate verification for Secure transports.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *options) {
		o.insecureSkipVerify = skip
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) dialer() *net.Dialer {
	return &net.Dialer{Timeout: o.dialTimeout}
}

func (o options) applyDeadline(conn net.Conn) error {
	if o.ioTimeout <= 0 {
		return nil
	}
	return conn.SetDeadline(time.Now().Add(o.ioTimeout))
}
