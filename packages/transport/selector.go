package transport

import (
	"log/slog"

	"github.com/abdul-hamid-achik/hitwire/packages/uri"
)

// Endpoint is the resolved target of a request.
type Endpoint struct {
	Host   string
	Port   int
	Secure bool
}

// Selector chooses a Plain or Secure transport from a URI scheme.
type Selector struct {
	plain  Factory
	secure Factory
	logger *slog.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithPlainFactory replaces the factory used for non-secure schemes.
func WithPlainFactory(f Factory) SelectorOption {
	return func(s *Selector) {
		s.plain = f
	}
}

// WithSecureFactory replaces the factory used for https and wss.
func WithSecureFactory(f Factory) SelectorOption {
	return func(s *Selector) {
		s.secure = f
	}
}

// WithTransportOptions builds the default TCP and TLS factories with opts.
func WithTransportOptions(opts ...Option) SelectorOption {
	return func(s *Selector) {
		s.plain = PlainFactory(opts...)
		s.secure = SecureFactory(opts...)
	}
}

// WithSelectorLogger sets the logger used for endpoint debug output.
func WithSelectorLogger(logger *slog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// NewSelector creates a Selector using TCP and TLS transports by default.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		plain:  PlainFactory(),
		secure: SecureFactory(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsSecure reports whether scheme requires TLS. The comparison is exact.
func IsSecure(scheme string) bool {
	return scheme == "https" || scheme == "wss"
}

// Resolve derives the endpoint for u without opening anything.
func (s *Selector) Resolve(u *uri.URI) (Endpoint, error) {
	if u.Host == "" {
		return Endpoint{}, ErrMissingHost
	}

	port, ok := u.Port()
	if !ok {
		port, ok = u.SchemePort()
	}
	if !ok {
		return Endpoint{}, ErrMissingPort
	}

	return Endpoint{
		Host:   u.Host,
		Port:   port,
		Secure: IsSecure(u.Scheme),
	}, nil
}

// Connect opens a buffered stream to the endpoint of u. Errors from the
// transport constructor or its Connect are returned as-is.
func (s *Selector) Connect(u *uri.URI) (Stream, error) {
	ep, err := s.Resolve(u)
	if err != nil {
		return nil, err
	}

	factory := s.plain
	if ep.Secure {
		factory = s.secure
	}

	s.logger.Debug("connecting", "host", ep.Host, "port", ep.Port, "secure", ep.Secure)

	t, err := factory(ep.Host, ep.Port)
	if err != nil {
		return nil, err
	}

	stream, err := t.Connect()
	if err != nil {
		return nil, err
	}

	return NewBufferedStream(stream), nil
}
