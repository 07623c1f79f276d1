package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goldenpath/goldenpath/e2e/go/testutil"
)

func newTestClient(t *testing.T, server *testutil.Server, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:   server.URL,
		BypassKey: "test-bypass-key",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGetAuthTokenCachesPerUser(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{BypassKey: "test-bypass-key"})
	defer server.Close()
	client := newTestClient(t, server, nil)

	first, err := client.GetAuthToken(context.Background(), TokenRequest{Email: "a@x.com", Permissions: []string{"read"}})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Source != SourceStaging {
		t.Fatalf("expected staging source, got %s", first.Source)
	}
	second, err := client.GetAuthToken(context.Background(), TokenRequest{Email: "a@x.com", Permissions: []string{"read"}})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.AccessToken != first.AccessToken {
		t.Fatalf("expected cached token, got a different one")
	}
	if second.Source != SourceCache {
		t.Fatalf("expected cache source, got %s", second.Source)
	}
	if got := server.AuthCalls(); got != 1 {
		t.Fatalf("expected 1 bypass login, server saw %d", got)
	}
}

func TestGetAuthTokenCacheKeyIncludesPermissions(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{BypassKey: "test-bypass-key"})
	defer server.Close()
	client := newTestClient(t, server, nil)

	reader, err := client.GetAuthToken(context.Background(), TokenRequest{Email: "a@x.com", Permissions: []string{"read"}})
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	writer, err := client.GetAuthToken(context.Background(), TokenRequest{Email: "a@x.com", Permissions: []string{"read", "write"}})
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if reader.AccessToken == writer.AccessToken {
		t.Fatalf("different permission sets must not share a cache entry")
	}
	if got := server.AuthCalls(); got != 2 {
		t.Fatalf("expected 2 bypass logins, server saw %d", got)
	}
}

func TestGetAuthTokenForceRefresh(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{BypassKey: "test-bypass-key"})
	defer server.Close()
	client := newTestClient(t, server, nil)

	ctx := context.Background()
	if _, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com", ForceRefresh: true}); err != nil {
		t.Fatalf("forced: %v", err)
	}
	if got := server.AuthCalls(); got != 2 {
		t.Fatalf("force refresh must bypass the cache, server saw %d logins", got)
	}
}

func TestGetAuthTokenSoftExpiry(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{BypassKey: "test-bypass-key"})
	defer server.Close()

	now := time.Now()
	clock := &now
	client := newTestClient(t, server, func(cfg *Config) {
		cfg.Now = func() time.Time { return *clock }
	})

	ctx := context.Background()
	if _, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com"}); err != nil {
		t.Fatalf("first: %v", err)
	}

	// 13 minutes in: still inside the 14-minute soft window.
	later := now.Add(13 * time.Minute)
	clock = &later
	if _, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com"}); err != nil {
		t.Fatalf("within window: %v", err)
	}
	if got := server.AuthCalls(); got != 1 {
		t.Fatalf("token inside soft window must be reused, server saw %d logins", got)
	}

	// 14.5 minutes in: within the 1-minute skew of actual expiry, re-mint.
	expired := now.Add(14*time.Minute + 30*time.Second)
	clock = &expired
	if _, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com"}); err != nil {
		t.Fatalf("past window: %v", err)
	}
	if got := server.AuthCalls(); got != 2 {
		t.Fatalf("token past soft window must be re-minted, server saw %d logins", got)
	}
}

func TestGetAuthTokenFallsBackOn503(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{AuthStatus: http.StatusServiceUnavailable})
	defer server.Close()

	var fallbackReason string
	client := newTestClient(t, server, func(cfg *Config) {
		cfg.OnFallback = func(reason string, err error) { fallbackReason = reason }
	})

	bundle, err := client.GetAuthToken(context.Background(), TokenRequest{Email: "a@x.com", Permissions: []string{"read"}})
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if bundle.Source != SourceLocalFallback {
		t.Fatalf("expected local fallback, got %s", bundle.Source)
	}
	if fallbackReason == "" {
		t.Fatalf("expected OnFallback to fire")
	}
	assertLocalToken(t, bundle, "a@x.com")
}

func TestGetAuthTokenFallsBackOn401(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{BypassKey: "a-different-key"})
	defer server.Close()
	client := newTestClient(t, server, nil)

	bundle, err := client.GetAuthToken(context.Background(), TokenRequest{Email: "b@x.com"})
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if bundle.Source != SourceLocalFallback {
		t.Fatalf("expected local fallback, got %s", bundle.Source)
	}
}

func TestGetAuthTokenFallsBackOnConnectError(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{})
	url := server.URL
	server.Close() // port now refuses connections

	client, err := NewClient(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	bundle, err := client.GetAuthToken(context.Background(), TokenRequest{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if bundle.Source != SourceLocalFallback {
		t.Fatalf("expected local fallback, got %s", bundle.Source)
	}
	assertLocalToken(t, bundle, "a@x.com")
}

func TestGetAuthTokenFallsBackOnTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	client, err := NewClient(Config{
		BaseURL:    slow.URL,
		HTTPClient: &http.Client{Timeout: 20 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	bundle, err := client.GetAuthToken(context.Background(), TokenRequest{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if bundle.Source != SourceLocalFallback {
		t.Fatalf("expected local fallback, got %s", bundle.Source)
	}
}

func TestFallbackTokenIsStableAcrossCalls(t *testing.T) {
	// Staging unreachable: both calls must return the same cached fallback token.
	server := testutil.NewServer(nil, testutil.Options{})
	url := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()
	first, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com", Permissions: []string{"read"}})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com", Permissions: []string{"read"}})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.AccessToken != second.AccessToken {
		t.Fatalf("expected identical cached fallback token")
	}
	claims, err := DecodeClaims(second.AccessToken)
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("payload email = %q, want a@x.com", claims.Email)
	}
}

func TestClearCacheForcesFreshLogin(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{BypassKey: "test-bypass-key"})
	defer server.Close()
	client := newTestClient(t, server, nil)

	ctx := context.Background()
	if _, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	client.ClearCache()
	if _, err := client.GetAuthToken(ctx, TokenRequest{Email: "a@x.com"}); err != nil {
		t.Fatalf("after clear: %v", err)
	}
	if got := server.AuthCalls(); got != 2 {
		t.Fatalf("ClearCache must force a fresh login, server saw %d", got)
	}
}

func TestRefreshFailsHard(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{RefreshStatus: http.StatusUnauthorized})
	defer server.Close()
	client := newTestClient(t, server, nil)

	_, err := client.Refresh(context.Background(), "stale-token")
	if err == nil {
		t.Fatalf("expected error")
	}
	var authErr Error
	if !errors.As(err, &authErr) || authErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected auth.Error with 401, got %v", err)
	}
}

func TestRefreshReturnsNewBundle(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{})
	defer server.Close()
	client := newTestClient(t, server, nil)

	bundle, err := client.Refresh(context.Background(), "some-refresh-token")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if bundle.AccessToken == "" || !strings.HasPrefix(bundle.AccessToken, "refreshed-") {
		t.Fatalf("unexpected bundle: %+v", bundle)
	}
	if got := server.RefreshCalls(); got != 1 {
		t.Fatalf("expected 1 refresh call, got %d", got)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{BypassKey: "test-bypass-key"})
	defer server.Close()
	client := newTestClient(t, server, nil)

	ctx := context.Background()
	bundle, err := client.GetAuthToken(ctx, TokenRequest{Email: "verify@x.com"})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	user, err := client.Verify(ctx, bundle.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.Email != "verify@x.com" {
		t.Fatalf("verify returned %q, want verify@x.com", user.Email)
	}
}

func TestVerifyFailsHardOnBadToken(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{})
	defer server.Close()
	client := newTestClient(t, server, nil)

	_, err := client.Verify(context.Background(), "not-a-jwt")
	var authErr Error
	if !errors.As(err, &authErr) || authErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected auth.Error with 401, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{BypassKey: "test-bypass-key"})
	defer server.Close()
	client := newTestClient(t, server, nil)

	ctx := context.Background()
	bundle, err := client.GetAuthToken(ctx, TokenRequest{Email: "bye@x.com"})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	ok, err := client.Logout(ctx, bundle.AccessToken)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !ok {
		t.Fatalf("expected logout confirmation")
	}
}

func assertLocalToken(t *testing.T, bundle TokenBundle, email string) {
	t.Helper()
	parts := strings.Split(bundle.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("local token must be header.payload.signature, got %d segments", len(parts))
	}
	claims, err := DecodeClaims(bundle.AccessToken)
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	if !claims.LocalTest {
		t.Fatalf("local token must carry local_test: true")
	}
	if claims.Email != email {
		t.Fatalf("claims email = %q, want %q", claims.Email, email)
	}
	if bundle.User.ID == "" || !strings.HasPrefix(bundle.User.ID, "local-") {
		t.Fatalf("fallback user id should be local-*, got %q", bundle.User.ID)
	}
}
