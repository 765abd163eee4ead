// Package deliver POSTs canonical product batches to the downstream
// automation webhook. The client is a dumb transport primitive: it knows
// retries and backoff, not batching policy.
package deliver

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/solutiontech/catalog-sync/internal/resilience"
)

// Client delivers JSON payloads to a single webhook endpoint.
type Client struct {
	endpoint string
	http     *resty.Client
	retry    resilience.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithRetries sets the number of additional attempts after the first try.
func WithRetries(retries int) Option {
	return func(c *Client) { c.retry.Retries = retries }
}

// WithBaseDelay sets the backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.retry.BaseDelay = d }
}

// WithTimeout bounds each individual POST attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// NewClient creates a delivery client for the given webhook endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     resty.New().SetTimeout(30 * time.Second),
		retry: resilience.RetryConfig{
			Retries:   4,
			BaseDelay: 500 * time.Millisecond,
			OnRetry:   resilience.RetryLogger("webhook delivery"),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured webhook URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// PostJSON POSTs the payload as a JSON body. Any non-2xx status or transport
// failure counts as a failed attempt and is retried with exponential backoff
// (base * 2^attempt, no jitter). When the retry budget is exhausted the last
// error is returned; on success the response body comes back to the caller.
func (c *Client) PostJSON(ctx context.Context, payload any) ([]byte, error) {
	body, err := resilience.Do(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		res, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post(c.endpoint)
		if err != nil {
			return nil, eris.Wrap(err, "deliver: post")
		}
		if !res.IsSuccess() {
			return nil, resilience.NewTransientError(
				eris.Errorf("deliver: HTTP %d %s", res.StatusCode(), res.Status()),
				res.StatusCode(),
			)
		}
		return res.Body(), nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "deliver: retries exhausted")
	}

	zap.L().Debug("deliver: posted payload", zap.String("endpoint", c.endpoint))
	return body, nil
}
