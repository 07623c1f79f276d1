package staging

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goldenpath/goldenpath/e2e/go/routes"
)

// Default staging deployment (GCP Cloud Run).
const (
	defaultBackendURL  = "https://backend.staging.goldenpath.dev"
	defaultAuthURL     = "https://auth.staging.goldenpath.dev"
	defaultFrontendURL = "https://app.staging.goldenpath.dev"

	defaultEnvironment = "staging"
)

const (
	defaultReceiveTO       = 15 * time.Second
	defaultAgentResponseTO = 60 * time.Second
)

// Config wires staging URLs, authentication, timeouts, and telemetry for the
// harness. The zero value plus Validate yields the default staging targets.
type Config struct {
	BackendURL  string
	AuthURL     string
	FrontendURL string

	// Environment tags outbound requests (X-Environment).
	Environment string
	// TestSuite tags outbound requests (X-Test-Suite).
	TestSuite string

	// BypassKey is the shared OAuth-simulation secret (E2E_OAUTH_SIMULATION_KEY).
	BypassKey string
	// JWTSecret signs locally fabricated fallback tokens (JWT_SECRET_STAGING).
	JWTSecret string
	// SkipHealthCheck short-circuits HealthClient.Check (BYPASS_STAGING_HEALTH_CHECK).
	SkipHealthCheck bool

	// AccessToken is a static bearer token. TokenProvider takes precedence
	// when both are set.
	AccessToken   string
	TokenProvider TokenProvider

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	// ReceiveTimeout bounds a single WebSocket event read.
	ReceiveTimeout time.Duration
	// AgentResponseTimeout bounds a full agent exchange.
	AgentResponseTimeout time.Duration

	HTTPClient *http.Client
	Telemetry  TelemetryHooks
	UserAgent  string
}

// LoadConfig builds a Config from the process environment.
func LoadConfig() Config {
	return Config{
		BackendURL:           envString(defaultBackendURL, "STAGING_BACKEND_URL", "E2E_STAGING_URL"),
		AuthURL:              envString(defaultAuthURL, "STAGING_AUTH_URL"),
		FrontendURL:          envString(defaultFrontendURL, "STAGING_FRONTEND_URL"),
		Environment:          envString(defaultEnvironment, "ENVIRONMENT", "TEST_ENV"),
		TestSuite:            envString("", "E2E_TEST_SUITE"),
		BypassKey:            envString("", "E2E_OAUTH_SIMULATION_KEY"),
		JWTSecret:            envString("", "JWT_SECRET_STAGING"),
		SkipHealthCheck:      envBool(false, "BYPASS_STAGING_HEALTH_CHECK"),
		ConnectTimeout:       envDuration(defaultConnectTO, "E2E_CONNECT_TIMEOUT"),
		RequestTimeout:       envDuration(defaultRequestTO, "E2E_REQUEST_TIMEOUT"),
		ReceiveTimeout:       envDuration(defaultReceiveTO, "E2E_RECEIVE_TIMEOUT"),
		AgentResponseTimeout: envDuration(defaultAgentResponseTO, "E2E_AGENT_RESPONSE_TIMEOUT"),
	}
}

// Validate normalizes the URLs and fills timeout defaults. It mutates the
// receiver so NewClient sees the normalized form.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		c.BackendURL = defaultBackendURL
	}
	if c.AuthURL == "" {
		c.AuthURL = defaultAuthURL
	}
	if c.FrontendURL == "" {
		c.FrontendURL = defaultFrontendURL
	}
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
	var err error
	if c.BackendURL, err = normalizeBaseURL(c.BackendURL); err != nil {
		return ConfigError{Reason: fmt.Sprintf("backend URL: %v", err)}
	}
	if c.AuthURL, err = normalizeBaseURL(c.AuthURL); err != nil {
		return ConfigError{Reason: fmt.Sprintf("auth URL: %v", err)}
	}
	if c.FrontendURL, err = normalizeBaseURL(c.FrontendURL); err != nil {
		return ConfigError{Reason: fmt.Sprintf("frontend URL: %v", err)}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTO
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTO
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = defaultReceiveTO
	}
	if c.AgentResponseTimeout <= 0 {
		c.AgentResponseTimeout = defaultAgentResponseTO
	}
	return nil
}

// WebSocketURL derives the agent WebSocket endpoint from the backend URL
// (https -> wss, http -> ws).
func (c Config) WebSocketURL() (string, error) {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return "", ConfigError{Reason: fmt.Sprintf("backend URL: %v", err)}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", ConfigError{Reason: "backend URL scheme must be http or https"}
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + routes.WebSocket
	return u.String(), nil
}

// BackendHealthURL is the backend liveness endpoint.
func (c Config) BackendHealthURL() string {
	return c.BackendURL + routes.Health
}

// AuthHealthURL is the auth service liveness endpoint.
func (c Config) AuthHealthURL() string {
	return c.AuthURL + routes.AuthHealth
}

// ValidateConfiguration reports whether the harness can authenticate at all:
// either the OAuth-simulation bypass key is present, or a JWT secret exists
// for local fallback token generation.
func (c Config) ValidateConfiguration() bool {
	return c.BypassKey != "" || c.JWTSecret != ""
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("base URL missing scheme (http/https)")
	}
	if u.Host == "" {
		return "", errors.New("base URL missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}
