package http

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/transport"
	"github.com/abdul-hamid-achik/hitwire/packages/uri"
)

// Client issues one-shot HTTP/1.1 requests. It holds no mutable state after
// construction and is safe for concurrent use; every call opens its own
// connection.
type Client struct {
	selector      *transport.Selector
	logger        *slog.Logger
	transportOpts []transport.Option
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.selector == nil {
		c.selector = transport.NewSelector(
			transport.WithTransportOptions(c.transportOpts...),
			transport.WithSelectorLogger(c.logger),
		)
	}

	return c
}

// WithSelector replaces the transport selector. Transport options given to
// the client are ignored when a selector is supplied.
func WithSelector(s *transport.Selector) ClientOption {
	return func(c *Client) {
		c.selector = s
	}
}

// WithTransportOptions configures the default TCP and TLS transports.
func WithTransportOptions(opts ...transport.Option) ClientOption {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, opts...)
	}
}

// WithTimeout bounds dialing and every read and write on the connection.
func WithTimeout(d time.Duration) ClientOption {
	return WithTransportOptions(transport.WithDialTimeout(d), transport.WithIOTimeout(d))
}

// WithValidateSSL enables or disables TLS certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return WithTransportOptions(transport.WithInsecureSkipVerify(!validate))
}

// WithTLSConfig sets the base TLS configuration for https and wss requests.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return WithTransportOptions(transport.WithTLSConfig(cfg))
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Request builds and sends a request. The URL path gets a trailing slash, query
// is merged into the URL's own query and headers are sent as given.
//
// Selection errors (transport.ErrMissingHost, transport.ErrMissingPort) and
// every collaborator error are returned unchanged.
func (c *Client) Request(method Method, rawURL string, headers, query map[string]string, body []byte) (*Response, error) {
	target, err := uri.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	target.FinishPath().AppendQuery(query)

	req := NewRequest(method, target)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	req.SetBody(body)

	return c.Do(req)
}

// Do connects to the request's endpoint and performs a single exchange on it.
func (c *Client) Do(req *Request) (*Response, error) {
	start := time.Now()

	conn, err := c.selector.Connect(req.URI)
	if err != nil {
		return nil, err
	}

	resp, err := Perform(req, conn, WithExchangeLogger(c.logger))
	if err != nil {
		return nil, err
	}

	resp.Duration = time.Since(start)
	c.logger.Debug("request completed",
		"method", req.Method,
		"url", req.URI.String(),
		"status", resp.StatusCode,
		"duration", resp.Duration,
	)

	return resp, nil
}

func (c *Client) Get(url string, headers map[string]string) (*Response, error) {
	return c.Request(MethodGet, url, headers, nil, nil)
}

func (c *Client) Head(url string, headers map[string]string) (*Response, error) {
	return c.Request(MethodHead, url, headers, nil, nil)
}

func (c *Client) Post(url string, body []byte, headers map[string]string) (*Response, error) {
	return c.Request(MethodPost, url, headers, nil, body)
}

func (c *Client) Put(url string, body []byte, headers map[string]string) (*Response, error) {
	return c.Request(MethodPut, url, headers, nil, body)
}

func (c *Client) Patch(url string, body []byte, headers map[string]string) (*Response, error) {
	return c.Request(MethodPatch, url, headers, nil, body)
}

func (c *Client) Delete(url string, headers map[string]string) (*Response, error) {
	return c.Request(MethodDelete, url, headers, nil, nil)
}

func (c *Client) Options(url string, headers map[string]string) (*Response, error) {
	return c.Request(MethodOptions, url, headers, nil, nil)
}
