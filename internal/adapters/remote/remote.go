// Package remote holds the HTTP clients for the upstream publishers.
// Every failure they return is classified with a fault kind.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/helio/internal/domain/fault"
)

// DefaultTimeout bounds every remote request.
const DefaultTimeout = 60 * time.Second

// NewHTTPClient returns a client with the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Get issues a GET for url. A 404 is classified as notFoundKind; any other
// non-2xx status and every transport error are transient. The caller closes
// the returned body.
func Get(ctx context.Context, c *http.Client, op, url string, notFoundKind error) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fault.Wrap(op, fault.ErrTransient, err)
	}
	req.Header.Set("User-Agent", "helio/1")

	resp, err := c.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.Wrap(op, fault.ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fault.Wrap(op, notFoundKind, fmt.Errorf("GET %s: %s", url, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = resp.Body.Close()
		return nil, fault.Wrap(op, fault.ErrTransient, fmt.Errorf("GET %s: %s", url, resp.Status))
	}
	return resp.Body, nil
}
