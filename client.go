// Package staging provides the Go client harness for the Golden Path staging
// environment: configuration, an authenticated HTTP client, health polling,
// and the assertion helpers shared by the E2E suites.
package staging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultUserAgent = "goldenpath-e2e/0.3"

// TokenProvider supplies bearer tokens for outbound requests. The auth
// package's Client satisfies it via auth.Provider.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client provides high-level helpers for interacting with the staging API.
type Client struct {
	cfg        Config
	backendURL string
	httpClient *http.Client
	auth       authChain
	telemetry  TelemetryHooks
	userAgent  string

	// Grouped service clients.
	Health *HealthClient
}

// NewClient validates the configuration and returns a ready-to-use Client.
// Authentication is optional: health endpoints are unauthenticated, so a
// Client with neither AccessToken nor TokenProvider is still usable.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.ConnectTimeout, cfg.RequestTimeout)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	client := &Client{
		cfg:        cfg,
		backendURL: cfg.BackendURL,
		httpClient: httpClient,
		auth:       buildAuthChain(cfg),
		telemetry:  cfg.Telemetry,
		userAgent:  ua,
	}
	client.Health = &HealthClient{client: client}
	return client, nil
}

// Config returns the (normalized) configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// GetJSON issues an authenticated GET against the backend and decodes the
// JSON response into out (which may be nil to discard the body).
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	req, err := c.newJSONRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// PostJSON issues an authenticated POST with a JSON payload and decodes the
// JSON response into out (which may be nil to discard the body).
func (c *Client) PostJSON(ctx context.Context, path string, payload, out any) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	injectTraceparent(ctx, req)
	return req, nil
}

func (c *Client) prepare(req *http.Request) error {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.auth.Apply(req)
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	if c.telemetry.OnHTTPRequest != nil {
		c.telemetry.OnHTTPRequest(req.Context(), req)
	}
	c.telemetry.log(req.Context(), LogLevelInfo, "http_request", map[string]any{
		"method": req.Method,
		"url":    req.URL.String(),
	})
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.telemetry.OnHTTPResponse != nil {
		c.telemetry.OnHTTPResponse(req.Context(), req, resp, err, time.Since(start))
	}
	c.telemetry.metric(req.Context(), "e2e_http_request_latency_ms", float64(time.Since(start).Milliseconds()), map[string]string{
		"path": req.URL.Path,
	})
	if err != nil {
		return nil, TransportError{
			Kind:    classifyTransportErrorKind(err),
			Message: "staging request failed",
			Cause:   err,
		}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.backendURL + path
}
