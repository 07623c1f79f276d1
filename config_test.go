package staging

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("STAGING_BACKEND_URL", "https://backend.example.dev/")
	t.Setenv("STAGING_AUTH_URL", "https://auth.example.dev")
	t.Setenv("TEST_ENV", "dev")
	t.Setenv("E2E_OAUTH_SIMULATION_KEY", "key-123")
	t.Setenv("BYPASS_STAGING_HEALTH_CHECK", "true")
	t.Setenv("E2E_RECEIVE_TIMEOUT", "5s")

	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.BackendURL != "https://backend.example.dev" {
		t.Fatalf("backend URL not normalized: %q", cfg.BackendURL)
	}
	if cfg.Environment != "dev" {
		t.Fatalf("TEST_ENV not honored: %q", cfg.Environment)
	}
	if cfg.BypassKey != "key-123" {
		t.Fatalf("bypass key not loaded")
	}
	if !cfg.SkipHealthCheck {
		t.Fatalf("BYPASS_STAGING_HEALTH_CHECK not honored")
	}
	if cfg.ReceiveTimeout != 5*time.Second {
		t.Fatalf("receive timeout = %s, want 5s", cfg.ReceiveTimeout)
	}
}

func TestEnvironmentAliasPrecedence(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging-eu")
	t.Setenv("TEST_ENV", "dev")
	cfg := LoadConfig()
	if cfg.Environment != "staging-eu" {
		t.Fatalf("ENVIRONMENT should win over TEST_ENV, got %q", cfg.Environment)
	}
}

func TestWebSocketURLDerivation(t *testing.T) {
	cases := []struct {
		backend string
		want    string
	}{
		{"https://backend.staging.goldenpath.dev", "wss://backend.staging.goldenpath.dev/ws"},
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://host.dev/api/", "wss://host.dev/api/ws"},
	}
	for _, tc := range cases {
		cfg := Config{BackendURL: tc.backend}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("validate %q: %v", tc.backend, err)
		}
		got, err := cfg.WebSocketURL()
		if err != nil {
			t.Fatalf("derive %q: %v", tc.backend, err)
		}
		if got != tc.want {
			t.Fatalf("WebSocketURL(%q) = %q, want %q", tc.backend, got, tc.want)
		}
	}
}

func TestValidateRejectsBadURLs(t *testing.T) {
	for _, bad := range []string{"not a url", "//missing-scheme.dev", "https://"} {
		cfg := Config{BackendURL: bad}
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for backend URL %q", bad)
		}
	}
}

func TestValidateConfiguration(t *testing.T) {
	cases := []struct {
		name      string
		bypassKey string
		jwtSecret string
		want      bool
	}{
		{"bypass key only", "key", "", true},
		{"jwt secret only", "", "secret", true},
		{"both", "key", "secret", true},
		{"neither", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{BypassKey: tc.bypassKey, JWTSecret: tc.jwtSecret}
			if got := cfg.ValidateConfiguration(); got != tc.want {
				t.Fatalf("ValidateConfiguration() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHealthURLs(t *testing.T) {
	cfg := Config{BackendURL: "https://b.dev", AuthURL: "https://a.dev"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.BackendHealthURL() != "https://b.dev/health" {
		t.Fatalf("backend health URL: %q", cfg.BackendHealthURL())
	}
	if !strings.HasSuffix(cfg.AuthHealthURL(), "/auth/health") {
		t.Fatalf("auth health URL: %q", cfg.AuthHealthURL())
	}
}
