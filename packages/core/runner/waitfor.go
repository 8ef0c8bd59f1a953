package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Getter issues a GET request. *http.Client satisfies it.
type Getter interface {
	Get(url string, headers map[string]string) (*http.Response, error)
}

// WaitConfig describes a readiness probe
type WaitConfig struct {
	URL      string
	Status   int // 0 accepts any 2xx
	Timeout  time.Duration
	Interval time.Duration
}

// WaitFor polls cfg.URL until it answers with the wanted status, the
// timeout elapses or ctx is done.
func WaitFor(ctx context.Context, client Getter, cfg WaitConfig) error {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var lastErr error
	for {
		resp, err := client.Get(cfg.URL, nil)
		switch {
		case err != nil:
			lastErr = err
		case cfg.Status == 0 && resp.IsSuccess(), resp.StatusCode == cfg.Status:
			return nil
		default:
			lastErr = fmt.Errorf("got status %d", resp.StatusCode)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not ready after %v: %w", cfg.URL, cfg.Timeout, lastErr)
		case <-ticker.C:
		}
	}
}
