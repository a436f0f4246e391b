package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxImageBytes = 32 << 20

// ErrImageTooLarge is returned for bodies over the size limit. It is not
// retried.
var ErrImageTooLarge = errors.New("image too large")

// Downloader fetches attachment bytes with bounded retries. Server errors and
// transport failures are retried; client errors are not.
type Downloader struct {
	client   *http.Client
	attempts int
	maxBytes int64
	// backoff returns the pause after a failed attempt (0-based).
	backoff func(attempt int) time.Duration
}

// NewDownloader returns a downloader with a per-request timeout, 3 attempts
// and 1s/2s backoff.
func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &Downloader{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		attempts: 3,
		maxBytes: maxImageBytes,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
	}
}

// Download returns the body of url. A 403, 404 or 410 wraps ErrLinkExpired.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < d.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.backoff(attempt - 1)):
			}
		}
		data, retry, err := d.get(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", d.attempts, lastErr)
}

func (d *Downloader) get(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/webp, */*")
	req.Header.Set("User-Agent", "stattrack/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, false, fmt.Errorf("%w: client error: status code %d", ErrLinkExpired, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	default:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	}
	if resp.ContentLength > d.maxBytes {
		return nil, false, fmt.Errorf("%w: %d bytes (limit %d)", ErrImageTooLarge, resp.ContentLength, d.maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, false, fmt.Errorf("%w: over %d bytes", ErrImageTooLarge, d.maxBytes)
	}
	return data, false, nil
}
