package opensubtitles

import (
	"context"
	"net/http"
	"time"
)

// Retry bounds for transient API failures. OpenSubtitles rate limits
// aggressively, so 429 and server errors back off exponentially before the
// request is given up on.
const (
	maxAttempts    = 4
	initialBackoff = 2 * time.Second
	maxBackoff     = 60 * time.Second
)

func retriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// sleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// doRetry executes an API request, retrying 429 and 5xx responses with
// exponential backoff. build runs once per attempt so request bodies can be
// replayed.
func (c *Client) doRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	backoff := c.retryBase
	for attempt := 1; ; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if !retriableStatus(resp.StatusCode) || attempt >= maxAttempts {
			return resp, nil
		}
		resp.Body.Close()
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
