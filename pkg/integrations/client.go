package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/matzehuels/pps/pkg/cache"
	"github.com/matzehuels/pps/pkg/httputil"
	"github.com/matzehuels/pps/pkg/observability"
)

// DefaultUserAgent identifies requests made by pps.
const DefaultUserAgent = "pps/1.0 (+https://github.com/matzehuels/pps)"

// maxBodySize caps how much of a response is read.
const maxBodySize = 16 << 20

// Client provides shared HTTP functionality for the upstream API clients.
// It handles rate limiting, circuit breaking, caching, retry and common
// request headers. A Client is safe for concurrent use.
type Client struct {
	http     *http.Client
	headers  map[string]string
	limiter  *rate.Limiter
	breakers *httputil.Breakers

	cache     cache.Cache
	keyPrefix string
	ttl       time.Duration

	policy httputil.RetryPolicy
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHeaders sets headers applied to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithRateLimit caps outgoing requests at rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithBreakers routes every request through per-host circuit breakers.
func WithBreakers(b *httputil.Breakers) Option {
	return func(c *Client) { c.breakers = b }
}

// WithCache memoises [Client.Cached] results in backend under keys
// prefixed with prefix.
func WithCache(backend cache.Cache, prefix string, ttl time.Duration) Option {
	return func(c *Client) {
		if backend != nil {
			c.cache = backend
		}
		c.keyPrefix = prefix
		c.ttl = ttl
	}
}

// WithRetryPolicy sets the policy used by [Client.Cached].
func WithRetryPolicy(p httputil.RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// NewClient creates a Client. Without options it uses a 10 second timeout,
// no rate limit, no breakers, no cache and [httputil.DefaultRetryPolicy].
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    httputil.NewHTTPClient(httputil.DefaultTimeout, nil),
		headers: map[string]string{"User-Agent": DefaultUserAgent},
		cache:   cache.NewNullCache(),
		policy:  httputil.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breakers returns the client's circuit breakers, or nil.
func (c *Client) Breakers() *httputil.Breakers { return c.breakers }

// Cached retrieves a value from cache or executes fetch under the retry
// policy and caches the result. fetch should populate v; on success v is
// JSON-encoded and stored. Failed attempts are reported through
// [observability.PipelineHooks.OnRetry].
func (c *Client) Cached(ctx context.Context, key string, v any, fetch func() error) error {
	key = c.keyPrefix + key
	if data, ok, _ := c.cache.Get(ctx, key); ok {
		if json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, c.keyPrefix)
			return nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, c.keyPrefix)

	notify := func(err error, wait time.Duration) {
		observability.Pipeline().OnRetry(ctx, key, err, wait)
	}
	if err := httputil.Retry(ctx, c.policy, fetch, notify); err != nil {
		return err
	}

	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, c.keyPrefix, len(data))
		}
	}
	return nil
}

// Get performs a single HTTP GET and JSON-decodes the response into v.
// A body that does not decode yields [ErrDecode], which is not retryable.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	body, err := c.GetBytes(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, rawURL, err)
	}
	return nil
}

// GetBytes performs a single HTTP GET and returns the response body.
//
// Network failures and non-2xx responses are returned as
// [httputil.RetryableError] wrapping [ErrNetwork] or [ErrNotFound].
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body []byte
	err := c.breakers.Do(rawURL, func() error {
		var err error
		body, err = c.do(ctx, rawURL)
		return err
	})
	return body, err
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, httputil.Retryable(&HTTPError{StatusCode: resp.StatusCode, URL: rawURL})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, httputil.Retryable(fmt.Errorf("%w: reading body: %v", ErrNetwork, err))
	}
	return body, nil
}
