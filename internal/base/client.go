// Package base provides the shared HTTP fetcher used to talk to wiki sites.
package base

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apierrors "github.com/olgasafonova/wiki-resolver-mcp-server/internal/errors"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/infra"
	"github.com/olgasafonova/wiki-resolver-mcp-server/metrics"
)

const (
	// DefaultTimeout for a single request attempt
	DefaultTimeout = 20 * time.Second

	// DefaultMaxRetry is the number of attempts made for retryable failures
	DefaultMaxRetry = 3

	// MaxConcurrentRequests limits parallel outbound calls
	MaxConcurrentRequests = 8

	// DefaultUserAgent identifies the resolver to wiki operators
	DefaultUserAgent = "wiki-resolver-mcp-server/1.0 (+https://github.com/olgasafonova/wiki-resolver-mcp-server)"

	// maxBodySize caps how much of a response is read into memory
	maxBodySize = 16 << 20
)

// Client provides a retrying GET fetcher with a per-host circuit breaker
// and a global concurrency limit.
type Client struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Breakers   *infra.BreakerSet
	Semaphore  chan struct{}
	UserAgent  string
	Headers    http.Header // sent with every request unless overridden
	MaxRetry   int
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.HTTPClient = c
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.Logger = l
	}
}

// WithTimeout replaces the default client with one using the given per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.HTTPClient = newHTTPClient(d)
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		if ua != "" {
			client.UserAgent = ua
		}
	}
}

// WithHeader adds a default header sent with every request
func WithHeader(key, value string) ClientOption {
	return func(client *Client) {
		if value != "" {
			client.Headers.Set(key, value)
		}
	}
}

// WithMaxRetry sets the number of attempts for retryable failures
func WithMaxRetry(n int) ClientOption {
	return func(client *Client) {
		if n > 0 {
			client.MaxRetry = n
		}
	}
}

// NewClient creates a new fetcher with default settings
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		HTTPClient: newHTTPClient(DefaultTimeout),
		Logger:     slog.Default(),
		Breakers:   infra.NewBreakerSet(),
		Semaphore:  make(chan struct{}, MaxConcurrentRequests),
		UserAgent:  DefaultUserAgent,
		Headers:    make(http.Header),
		MaxRetry:   DefaultMaxRetry,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AcquireSlot blocks until a request slot is available or context is canceled
func (c *Client) AcquireSlot(ctx context.Context) error {
	select {
	case c.Semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for a request slot: %w", ctx.Err())
	}
}

// ReleaseSlot releases a request slot
func (c *Client) ReleaseSlot() {
	<-c.Semaphore
}

// Request configures a single fetch
type Request struct {
	URL          string
	Query        url.Values // appended to URL when non-empty
	Headers      map[string]string
	ExpectStatus int // 0 accepts any non-5xx status
	MaxRetry     int // defaults to the client's MaxRetry
}

// Response is a fully read HTTP response
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", r.URL, err)
	}
	return nil
}

// Fetch performs a GET with the circuit breaker, concurrency limit and retries.
//
// Failures are classified: a deadline becomes *errors.TimeoutError, a status
// other than ExpectStatus becomes *errors.StatusError, anything else becomes
// *errors.FetchError.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	target := req.URL
	if len(req.Query) > 0 {
		target = withQuery(req.URL, req.Query)
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		if err == nil {
			err = errors.New("missing host")
		}
		return nil, &apierrors.FetchError{URL: target, Err: err}
	}
	host := u.Host

	cb := c.Breakers.For(host)
	if !cb.Allow() {
		metrics.RecordCircuitBreakerRejection(host)
		stats := cb.Stats()
		return nil, &apierrors.FetchError{URL: target, Err: infra.ErrCircuitOpen{
			State:    stats.State,
			RetryAt:  stats.LastFailure.Add(30 * time.Second),
			Failures: stats.ConsecutiveFails,
		}}
	}

	if err := c.AcquireSlot(ctx); err != nil {
		return nil, &apierrors.FetchError{URL: target, Err: err}
	}
	defer c.ReleaseSlot()

	maxRetry := req.MaxRetry
	if maxRetry <= 0 {
		maxRetry = c.MaxRetry
	}
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetry
	}

	var lastErr error
	for attempt := 0; attempt < maxRetry; attempt++ {
		if attempt > 0 {
			metrics.RecordFetchRetry(host)
			backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, c.classify(target, ctx.Err())
			}
		}

		resp, err := c.do(ctx, target, req.Headers)
		if err != nil {
			lastErr = c.classify(target, err)
			if apierrors.IsTimeout(lastErr) || ctx.Err() != nil {
				// A timed-out attempt already used the whole budget.
				break
			}
			c.Logger.Warn("fetch failed, retrying",
				"attempt", attempt+1,
				"url", target,
				"error", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &apierrors.StatusError{URL: target, Code: resp.StatusCode, Expected: req.ExpectStatus}
			if seconds, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil {
				select {
				case <-time.After(time.Duration(seconds) * time.Second):
				case <-ctx.Done():
					return nil, c.classify(target, ctx.Err())
				}
			}
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = &apierrors.StatusError{
				URL:      target,
				Code:     resp.StatusCode,
				Expected: req.ExpectStatus,
				Body:     truncate(resp.Text(), 200),
			}
			continue
		}

		cb.RecordSuccess()

		if req.ExpectStatus != 0 && resp.StatusCode != req.ExpectStatus {
			return resp, &apierrors.StatusError{
				URL:      target,
				Code:     resp.StatusCode,
				Expected: req.ExpectStatus,
				Body:     truncate(resp.Text(), 200),
			}
		}
		return resp, nil
	}

	cb.RecordFailure()
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, target string, headers map[string]string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range c.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", c.UserAgent)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	body, err := readAndClose(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) classify(target string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &apierrors.TimeoutError{URL: target, Timeout: c.HTTPClient.Timeout, Err: err}
	}
	return &apierrors.FetchError{URL: target, Err: err}
}

// withQuery merges params into the URL's existing query string
func withQuery(raw string, params url.Values) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// readAndClose reads the response body and closes it
func readAndClose(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	_ = resp.Body.Close()
	return body, err
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// newHTTPClient creates an HTTP client with optimized transport settings
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
