package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"typeporter/pkg/config"
	errs "typeporter/pkg/errors"
	"typeporter/pkg/logger"
	"typeporter/pkg/ratelimit"
	"typeporter/pkg/retry"
)

// Client is the one place the pipeline talks HTTP. It carries the
// browser-shaped headers, the optional requests-per-minute ceiling,
// and the retry policy. Credentials are scoped to a single host and
// never written to the log.
type Client struct {
	httpClient  *http.Client
	headers     map[string]string
	limiter     ratelimit.Limiter
	backoff     retry.BackoffStrategy
	maxAttempts int
	authHost    string
	username    string
	password    string
	logger      logger.Logger
}

// NewClient creates a client from the fetch configuration
func NewClient(cfg *config.FetchConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	maxAttempts := cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var limiter ratelimit.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = ratelimit.NewSlidingWindow(cfg.RequestsPerMinute, time.Minute)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Std(),
		},
		// Accept-Encoding stays unset so the transport negotiates gzip
		// and decodes it transparently
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		limiter:     limiter,
		backoff:     retry.ForName(cfg.Backoff, cfg.RetryBaseDelay.Std(), 0),
		maxAttempts: maxAttempts,
		logger:      log,
	}
}

// SetCredentials attaches Basic auth for requests to a single host.
// Requests to any other host never carry the credentials.
func (c *Client) SetCredentials(host, username, password string) {
	c.authHost = strings.ToLower(host)
	c.username = username
	c.password = password
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// do performs an HTTP request with the configured headers
func (c *Client) do(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.username != "" && strings.EqualFold(req.URL.Hostname(), c.authHost) {
		req.SetBasicAuth(c.username, c.password)
	}

	if c.limiter != nil {
		c.limiter.Wait()
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Newf(errs.ErrorTypeNetwork, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// get performs a single GET attempt and maps non-2xx statuses to
// typed errors. The response body is open only on success.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeBadURL, "failed to create request: %v", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

// getWithRetry wraps get in the configured retry policy. Transient
// failures (network, 429, 5xx) are retried with backoff; permanent
// ones return immediately.
func (c *Client) getWithRetry(ctx context.Context, rawURL string) (*http.Response, error) {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.maxAttempts
	cfg.Backoff = c.backoff
	cfg.Context = ctx
	cfg.Logger = c.logger

	return retry.DoWithResult(func() (*http.Response, error) {
		return c.get(ctx, rawURL)
	}, cfg)
}

// checkResponseStatus maps the HTTP response status to a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	c.logger.WarnWithFields("unexpected response status", map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	})

	return errs.FromStatusCode(resp.StatusCode, http.StatusText(resp.StatusCode))
}

// FetchHTML fetches a page and returns its body decoded to UTF-8,
// honoring the charset declared in the Content-Type header or in the
// document itself.
func (c *Client) FetchHTML(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := c.getWithRetry(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeDecode, "failed to decode document charset: %v", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeNetwork, "failed to read document body: %v", err)
	}

	return body, nil
}

// Download fetches a raw asset with retries and returns its bytes and
// declared Content-Type
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, err := c.getWithRetry(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errs.Newf(errs.ErrorTypeNetwork, "failed to read asset body: %v", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// TryDownload fetches a URL in a single attempt with no retries. Used
// for speculative fetches, like full-size image variants, where the
// fallback URL is already known.
func (c *Client) TryDownload(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errs.Newf(errs.ErrorTypeNetwork, "failed to read asset body: %v", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
