// Package api provides the HTTP transport for the vendor endpoints: base URL
// selection per marketplace domain and the JSON/form POST helpers the auth and
// license clients share.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
)

// DefaultTimeout bounds a single vendor call. The protocol is single-attempt;
// callers needing tighter deadlines pass a context.
const DefaultTimeout = 30 * time.Second

// Client is the shared vendor transport. One instance serves one marketplace
// domain (the top-level domain of the store, e.g. "com", "de", "co.uk").
type Client struct {
	httpClient  *http.Client
	domain      string
	amazonBase  string
	audibleBase string
	logger      *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURLs overrides the amazon and audible API origins. Used by tests to
// point the client at a local server.
func WithBaseURLs(amazon, audible string) Option {
	return func(c *Client) {
		c.amazonBase = strings.TrimRight(amazon, "/")
		c.audibleBase = strings.TrimRight(audible, "/")
	}
}

// WithLogger sets the logger for request-level debug logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a transport for the given top-level domain.
func NewClient(domain string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		domain:      domain,
		amazonBase:  "https://api.amazon." + domain,
		audibleBase: "https://api.audible." + domain,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Domain returns the top-level store domain this client talks to.
func (c *Client) Domain() string {
	return c.domain
}

// AmazonURL joins a path onto the amazon API origin.
func (c *Client) AmazonURL(path string) string {
	return c.amazonBase + path
}

// AudibleURL joins a path onto the audible API origin.
func (c *Client) AudibleURL(path string) string {
	return c.audibleBase + path
}

// RegisterOrigin picks the registration origin. Username-domain accounts
// register against the audible API host, everyone else against amazon.
func (c *Client) RegisterOrigin(useUsernameDomain bool) string {
	if useUsernameDomain {
		return c.audibleBase
	}
	return c.amazonBase
}

// PostJSON marshals body as JSON and posts it. It returns the response status
// and raw body; status policy is the caller's.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, aaxerrors.Wrap(err, aaxerrors.CodeEncoding, "encode request body")
	}
	return c.post(ctx, rawURL, "application/json", payload, headers)
}

// PostForm posts a form-encoded body. Token refresh is the one endpoint that
// takes form encoding instead of JSON.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) (int, []byte, error) {
	return c.post(ctx, rawURL, "application/x-www-form-urlencoded", []byte(form.Encode()), headers)
}

func (c *Client) post(ctx context.Context, rawURL, contentType string, payload []byte, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, aaxerrors.InvalidURL(rawURL)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, aaxerrors.Network("POST "+rawURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, aaxerrors.Network("read response from "+rawURL, err)
	}

	c.logger.Debug("vendor call",
		"url", rawURL,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return resp.StatusCode, respBody, nil
}
