// Package httpclient provides the one pooled HTTP client shared by every
// provider adapter. Pooling makes concurrent adapter calls safe by
// construction; nothing here is ever exclusively locked by a caller.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/deepdive/deepdive/internal/enrich"
)

// Client wraps *http.Client with JSON helpers, sanitized errors, and an
// optional global rate limit shared across all adapters.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

type Options struct {
	// Timeout bounds a single request end to end. <=0 means 60s.
	Timeout time.Duration
	// RateLimitRPS is a global limit across all callers. <=0 disables.
	RateLimitRPS float64
}

// New builds a pooled client. The transport is a clone of the default one, so
// connection reuse and HTTP/2 negotiation behave like stock net/http.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ForceAttemptHTTP2 = true

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	return &Client{
		http: &http.Client{
			Transport: tr,
			Timeout:   timeout,
		},
		limiter: limiter,
	}
}

// GetJSON performs a GET with query parameters and decodes a JSON response
// into out. Non-2xx responses become a sanitized *HTTPError; rate-limit and
// server-class statuses are additionally tagged transient so retry policies
// pick them up.
func (c *Client) GetJSON(ctx context.Context, op, rawURL string, query url.Values, header http.Header, out any) error {
	u, err := parseURL(op, rawURL)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	applyHeader(req, header)

	return c.do(op, req, out)
}

// PostJSON performs a POST with a JSON body and decodes a JSON response into
// out. Error semantics match GetJSON.
func (c *Client) PostJSON(ctx context.Context, op, rawURL string, header http.Header, body, out any) error {
	u, err := parseURL(op, rawURL)
	if err != nil {
		return err
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request body: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	applyHeader(req, header)

	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failures (refused, reset, timeout) are environment
		// flakiness, not contract defects.
		return &enrich.TransientError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &enrich.TransientError{Err: fmt.Errorf("%s: read response: %w", op, err)}
	}
	if resp.StatusCode/100 != 2 {
		herr := newHTTPError(op, resp, b)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
			return &enrich.TransientError{Err: herr}
		}
		return herr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s: parse response: %w", op, err)
	}
	return nil
}

func parseURL(op, raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%s: url is required", op)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: parse url: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: url must include a host (got %q)", op, raw)
	}
	return u, nil
}

func applyHeader(req *http.Request, header http.Header) {
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}
