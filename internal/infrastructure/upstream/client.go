// Package upstream talks to the ERP API: paginated GETs, rate limited, with a
// timeout per resource.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// APIKeyHeader carries the upstream API key
const APIKeyHeader = "X-API-Key"

// Client performs requests against the ERP API
type Client struct {
	opts       Options
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient validates opts and creates a Client
func NewClient(opts Options, clientOpts ...ClientOption) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrInvalidOptions, err)
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	c := &Client{
		opts:       opts,
		baseURL:    base,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, opts.RateBurst),
		logger:     zap.NewNop(),
	}
	for _, o := range clientOpts {
		o(c)
	}
	c.logger = c.logger.Named("upstream")
	return c, nil
}

// Timeout returns the request timeout for an entity: the configured override,
// else fallback, else the client default.
func (c *Client) Timeout(entity string, fallback time.Duration) time.Duration {
	if d, ok := c.opts.Timeouts[entity]; ok && d > 0 {
		return d
	}
	if fallback > 0 {
		return fallback
	}
	return c.opts.DefaultTimeout
}

// Get issues a GET for path relative to the base URL and returns the body.
// The whole call, including waiting for the rate limiter, is bounded by timeout.
func (c *Client) Get(ctx context.Context, path string, query url.Values, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.opts.DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter.Wait(reqCtx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, path, ctx.Err())
		}
		// the limiter refuses waits that would outlast the deadline
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamTimeout, path, err)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimLeft(path, "/"), RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.opts.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.opts.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(reqCtx, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxResponseSize+1))
	if err != nil {
		return nil, c.classify(reqCtx, path, err)
	}

	c.logger.Debug("Upstream request",
		zap.String("path", path),
		zap.String("query", u.RawQuery),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Path: path, Body: truncate(string(body), maxErrorBodyLength)}
	}
	if int64(len(body)) > c.opts.MaxResponseSize {
		return nil, fmt.Errorf("%w: %s: response exceeds %d bytes", ErrUpstreamInvalidResponse, path, c.opts.MaxResponseSize)
	}
	return body, nil
}

func (c *Client) classify(reqCtx context.Context, path string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s: %v", ErrUpstreamTimeout, path, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, path, err)
	}
}

// truncate cuts s to n runes so a multi-byte character is never split
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
