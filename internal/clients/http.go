package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPChecker issues a GET and accepts any 2xx response.
type HTTPChecker struct {
	url    string
	httpDo func(req *http.Request) (*http.Response, error)
}

// NewHTTPChecker returns a checker for url. The call timeout comes from the
// context the caller passes to Check.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		url:    url,
		httpDo: http.DefaultClient.Do,
	}
}

func (c *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", c.url, err)
	}

	resp, err := c.httpDo(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s returned HTTP %d", c.url, resp.StatusCode)
	}
	return nil
}
