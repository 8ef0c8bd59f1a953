package http

import (
	"log/slog"

	"github.com/abdul-hamid-achik/hitwire/packages/transport"
)

// ExchangeOption configures Perform.
type ExchangeOption func(*exchange)

type exchange struct {
	logger *slog.Logger
}

// WithExchangeLogger sets the logger that receives suppressed close errors.
func WithExchangeLogger(logger *slog.Logger) ExchangeOption {
	return func(e *exchange) {
		e.logger = logger
	}
}

// Perform writes req to conn in full, parses exactly one response from it and
// closes conn. The connection is closed on every path; a close failure is
// logged at debug level and never returned.
func Perform(req *Request, conn transport.Stream, opts ...ExchangeOption) (*Response, error) {
	e := &exchange{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}

	defer func() {
		if err := conn.Close(); err != nil {
			e.logger.Debug("ignoring connection close error", "error", err)
		}
	}()

	if err := NewSerializer(conn).Serialize(req); err != nil {
		return nil, err
	}
	if f, ok := conn.(transport.Flusher); ok {
		if err := f.Flush(); err != nil {
			return nil, err
		}
	}

	return NewParser(conn).Parse(req.Method)
}
