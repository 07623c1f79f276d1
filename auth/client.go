package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goldenpath/goldenpath/e2e/go/headers"
	"github.com/goldenpath/goldenpath/e2e/go/routes"
)

const defaultUserAgent = "GoldenPathE2E/1"

const (
	// Staging tokens live 15 minutes; the cache stops reusing them one
	// minute early so a token never expires mid-test.
	defaultTokenTTL    = 15 * time.Minute
	defaultRefreshSkew = time.Minute
)

const (
	defaultEmail      = "e2e-user@goldenpath.dev"
	defaultName       = "E2E Test User"
	defaultPermission = "read"
)

// TokenSource records where a bundle came from.
type TokenSource string

const (
	SourceStaging       TokenSource = "staging"
	SourceCache         TokenSource = "cache"
	SourceLocalFallback TokenSource = "local-fallback"
)

// User identifies the simulated staging user a token belongs to.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// TokenBundle mirrors the auth service's token response.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`

	// Source is harness-local metadata, not part of the wire contract.
	Source TokenSource `json:"-"`
}

// TokenRequest describes the simulated user to authenticate as.
type TokenRequest struct {
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	// ForceRefresh bypasses the cache.
	ForceRefresh bool `json:"-"`
}

func (r TokenRequest) withDefaults() TokenRequest {
	if strings.TrimSpace(r.Email) == "" {
		r.Email = defaultEmail
	}
	if strings.TrimSpace(r.Name) == "" {
		r.Name = defaultName
	}
	if len(r.Permissions) == 0 {
		r.Permissions = []string{defaultPermission}
	}
	return r
}

func (r TokenRequest) cacheKey() string {
	return r.Email + ":" + strings.Join(r.Permissions, ",")
}

// Error conveys HTTP failures from the staging auth service.
type Error struct {
	Status int
	Body   string
}

func (e Error) Error() string {
	return fmt.Sprintf("auth: http %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Config controls how the harness talks to the staging auth service.
type Config struct {
	// BaseURL is the auth service base URL.
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string

	// BypassKey is the shared OAuth-simulation secret sent on bypass logins.
	BypassKey string
	// JWTSecret signs local fallback tokens when set (JWT_SECRET_STAGING).
	JWTSecret string
	// Environment tags requests (X-Environment).
	Environment string

	// TokenTTL and RefreshSkew size the cache window. Defaults: 15m / 1m.
	TokenTTL    time.Duration
	RefreshSkew time.Duration

	// OnFallback fires whenever a staging auth failure is swallowed and a
	// local token substituted. Suites log it so a fabricated identity is
	// visible in the run output.
	OnFallback func(reason string, err error)

	// Now overrides the clock in tests.
	Now func() time.Time
}

type cachedBundle struct {
	bundle    TokenBundle
	expiresAt time.Time
}

// Client issues bypass logins against the staging auth service and caches the
// resulting tokens per (email, permissions).
//
// GetAuthToken fails soft: any staging failure (non-200, connect error,
// timeout) yields a locally fabricated token instead of an error. Refresh,
// Verify, and Logout fail hard.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	userAgent   string
	bypassKey   string
	jwtSecret   string
	environment string
	tokenTTL    time.Duration
	refreshSkew time.Duration
	onFallback  func(reason string, err error)
	now         func() time.Time

	mu    sync.Mutex
	cache map[string]cachedBundle
}

// NewClient constructs a Client with sane defaults.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("auth: base url required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	skew := cfg.RefreshSkew
	if skew <= 0 {
		skew = defaultRefreshSkew
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL:     strings.TrimSuffix(base, "/"),
		httpClient:  httpClient,
		userAgent:   ua,
		bypassKey:   cfg.BypassKey,
		jwtSecret:   cfg.JWTSecret,
		environment: cfg.Environment,
		tokenTTL:    ttl,
		refreshSkew: skew,
		onFallback:  cfg.OnFallback,
		now:         now,
		cache:       make(map[string]cachedBundle),
	}, nil
}

// GetAuthToken returns a token bundle for the simulated user, reusing a
// cached bundle when one is still inside the soft expiry window.
//
// On any staging failure it falls back to a local token rather than erroring,
// so downstream suites keep running against a mocked identity when staging is
// flaky. Callers that must know the identity is fabricated check
// TokenBundle.Source or register Config.OnFallback.
func (c *Client) GetAuthToken(ctx context.Context, req TokenRequest) (TokenBundle, error) {
	req = req.withDefaults()
	key := req.cacheKey()

	if !req.ForceRefresh {
		if bundle, ok := c.cachedToken(key); ok {
			return bundle, nil
		}
	}

	bundle, err := c.bypassLogin(ctx, req)
	if err != nil {
		c.fallback("staging auth failed", err)
		bundle, err = localTokenBundle(c.jwtSecret, req, c.now(), c.tokenTTL)
		if err != nil {
			return TokenBundle{}, err
		}
	}

	c.storeToken(key, bundle)
	return bundle, nil
}

func (c *Client) cachedToken(key string) (TokenBundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || entry.bundle.AccessToken == "" {
		return TokenBundle{}, false
	}
	if entry.expiresAt.Sub(c.now()) <= c.refreshSkew {
		return TokenBundle{}, false
	}
	bundle := entry.bundle
	bundle.Source = SourceCache
	return bundle, true
}

func (c *Client) storeToken(key string, bundle TokenBundle) {
	expiresAt := c.now().Add(c.tokenTTL)
	if bundle.ExpiresIn > 0 {
		expiresAt = c.now().Add(time.Duration(bundle.ExpiresIn) * time.Second)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cachedBundle{bundle: bundle, expiresAt: expiresAt}
}

func (c *Client) fallback(reason string, err error) {
	if c.onFallback != nil {
		c.onFallback(reason, err)
	}
}

func (c *Client) bypassLogin(ctx context.Context, req TokenRequest) (TokenBundle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return TokenBundle{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+routes.AuthE2EBypass, bytes.NewReader(body))
	if err != nil {
		return TokenBundle{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if c.bypassKey != "" {
		httpReq.Header.Set(headers.E2EBypassKey, c.bypassKey)
	}
	if c.environment != "" {
		httpReq.Header.Set(headers.Environment, c.environment)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return TokenBundle{}, err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenBundle{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return TokenBundle{}, Error{Status: resp.StatusCode, Body: string(data)}
	}

	var bundle TokenBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return TokenBundle{}, fmt.Errorf("auth: decode bypass response: %w", err)
	}
	if bundle.AccessToken == "" {
		return TokenBundle{}, errors.New("auth: bypass response missing access_token")
	}
	if bundle.User.ID == "" || bundle.User.Email == "" {
		return TokenBundle{}, errors.New("auth: bypass response missing user identity")
	}
	bundle.Source = SourceStaging
	return bundle, nil
}

// Refresh swaps a refresh token for a new token pair. Unlike GetAuthToken it
// fails hard on any non-200.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenBundle, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenBundle{}, errors.New("auth: refresh token required")
	}
	payload := map[string]string{"refresh_token": refreshToken}
	data, status, err := c.post(ctx, routes.AuthRefresh, payload, "")
	if err != nil {
		return TokenBundle{}, err
	}
	if status != http.StatusOK {
		return TokenBundle{}, Error{Status: status, Body: string(data)}
	}
	var bundle TokenBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return TokenBundle{}, fmt.Errorf("auth: decode refresh response: %w", err)
	}
	bundle.Source = SourceStaging
	return bundle, nil
}

// Verify validates an access token against staging and returns the user it
// belongs to. Fails hard on any non-200.
func (c *Client) Verify(ctx context.Context, accessToken string) (User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return User{}, errors.New("auth: access token required")
	}
	data, status, err := c.post(ctx, routes.AuthVerify, nil, accessToken)
	if err != nil {
		return User{}, err
	}
	if status != http.StatusOK {
		return User{}, Error{Status: status, Body: string(data)}
	}
	var payload struct {
		User User `json:"user"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return User{}, fmt.Errorf("auth: decode verify response: %w", err)
	}
	if payload.User.ID == "" {
		return User{}, errors.New("auth: verify response missing user")
	}
	return payload.User, nil
}

// Logout invalidates the session behind an access token. Returns true when
// staging confirmed the logout.
func (c *Client) Logout(ctx context.Context, accessToken string) (bool, error) {
	if strings.TrimSpace(accessToken) == "" {
		return false, errors.New("auth: access token required")
	}
	data, status, err := c.post(ctx, routes.AuthLogout, nil, accessToken)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, Error{Status: status, Body: string(data)}
	}
	return true, nil
}

// ClearCache empties the token cache so the next GetAuthToken mints fresh.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cachedBundle)
}

func (c *Client) post(ctx context.Context, path string, payload any, bearer string) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}
