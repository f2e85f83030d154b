// Package fetcher downloads filter-list bodies.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/abpcore/internal/config"
)

// Fetcher downloads filter lists.
type Fetcher struct {
	client  *http.Client
	retries int
	log     *zap.Logger
}

// New creates a new fetcher from config.
func New(cfg config.HTTPConfig, log *zap.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		log:     log,
	}
}

// Fetch downloads content from a URL with retries.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i < f.retries; i++ {
		if i > 0 {
			// Linear backoff: wait i seconds before attempt i+1
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		data, err := f.doFetch(ctx, url)
		if err == nil {
			f.log.Debug("fetched filter list",
				zap.String("url", url),
				zap.Int("bytes", len(data)))
			return data, nil
		}
		lastErr = err
		f.log.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", i+1),
			zap.Error(err))
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", f.retries, lastErr)
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "abpcore/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
