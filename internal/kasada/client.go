package kasada

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the maximum time spent waiting for a classification.
	DefaultTimeout = 3 * time.Second
	// DefaultAPIVersion is the classification API version in use.
	DefaultAPIVersion = "2023-01-13-preview"

	maxResponseLen = 1 << 20
)

// errBudget is the cancellation cause when the client's own timeout fires,
// as opposed to a deadline inherited from the inbound request.
var errBudget = errors.New("kasada: classification budget exceeded")

// Endpoint identifies the classification API of one Kasada deployment.
// The values come from the application details in the Kasada portal.
type Endpoint struct {
	Host     string
	AppID    string
	TenantID string
	Version  string
}

// URL renders the classification endpoint.
func (e Endpoint) URL() string {
	version := e.Version
	if version == "" {
		version = DefaultAPIVersion
	}
	return fmt.Sprintf("https://%s/%s/%s/api/%s/classification", e.Host, e.AppID, e.TenantID, version)
}

// Client calls the Kasada classification API.
type Client struct {
	url     string
	token   string
	timeout time.Duration
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithURL points the client at an explicit URL instead of an Endpoint.
func WithURL(u string) Option {
	return func(c *Client) { c.url = u }
}

// NewClient creates a client for the given endpoint. An empty token is sent
// as-is; the API decides how to answer it.
func NewClient(endpoint Endpoint, token string, opts ...Option) *Client {
	c := &Client{
		url:     endpoint.URL(),
		token:   token,
		timeout: DefaultTimeout,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify sends one classification request. The call is bounded by the
// client timeout and aborted early if ctx is cancelled. The Error field of a
// decoded response is not interpreted here; see APIResponse.Err.
func (c *Client) Classify(ctx context.Context, req *APIRequest, forwardedHost string) (*APIResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrTransport, err)
	}

	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errBudget)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("X-Forwarded-Host", forwardedHost)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "KasadaApiTokenV1 "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.wrap(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return nil, c.wrap(ctx, err)
	}

	var out APIResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrMalformedResponse, resp.StatusCode, err)
	}
	if out.Error != "" {
		return &out, nil
	}
	if err := out.validate(); err != nil {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	return &out, nil
}

func (c *Client) wrap(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), errBudget) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
