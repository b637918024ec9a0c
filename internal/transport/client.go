package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/miradorstack/mirador-console/internal/metrics"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// Client is a thin JSON-over-HTTP wrapper around the monitoring backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client (tests use a stub transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit bounds outbound requests per second. A non-positive rate disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// RequestOptions carries the optional parts of a request.
type RequestOptions struct {
	Body    any
	Headers map[string]string
	Query   url.Values
}

// NewClient constructs a client rooted at baseURL. A zero timeout means no client-side limit.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Get issues a GET and returns the raw JSON payload (nil for an empty body).
func (c *Client) Get(ctx context.Context, p string, query url.Values) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, p, RequestOptions{Query: query})
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, p string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, p, RequestOptions{Body: body})
}

// Do performs one request. It never retries.
func (c *Client) Do(ctx context.Context, method, p string, opts RequestOptions) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("transport client not initialised")
	}
	endpoint, err := c.resolve(p, opts.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, URL: endpoint, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveBackendRequest(method, 0)
		c.logger.Debug("backend request failed", slog.String("method", method), slog.String("url", endpoint), slog.Any("error", err))
		return nil, &TransportError{Method: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveBackendRequest(method, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Method: method, URL: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	c.logger.Debug("backend request",
		slog.String("method", method),
		slog.String("url", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
		slog.String("request_id", req.Header.Get("X-Request-ID")),
	)

	var payload json.RawMessage
	if text := bytes.TrimSpace(raw); len(text) > 0 {
		if !json.Valid(text) {
			return nil, &InvalidPayloadError{Path: p, Raw: string(raw), Status: resp.StatusCode}
		}
		payload = json.RawMessage(text)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var decoded any
		if payload != nil {
			_ = json.Unmarshal(payload, &decoded)
		}
		return nil, &HTTPError{
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Payload:    decoded,
			Message:    resolveMessage(decoded, statusText(resp)),
		}
	}

	return payload, nil
}

func (c *Client) resolve(p string, query url.Values) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("backend base URL not configured")
	}
	ref, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", p, err)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	u.Path = path.Join("/", u.Path, ref.Path)
	q := ref.Query()
	for k, vals := range query {
		for _, v := range vals {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// statusText mirrors the browser's Response.statusText: the reason phrase only.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
