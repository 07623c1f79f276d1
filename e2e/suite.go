//go:build e2e

// Package e2e contains end-to-end suites that exercise the deployed Golden
// Path staging environment over real network calls. They are excluded from
// normal builds; run with:
//
//	E2E_STAGING_URL=https://backend.staging.goldenpath.dev go test -tags e2e ./e2e/...
package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	staging "github.com/goldenpath/goldenpath/e2e/go"
	"github.com/goldenpath/goldenpath/e2e/go/auth"
	"github.com/goldenpath/goldenpath/e2e/go/ws"
)

// Suite bundles the per-test clients plus a structured logger so failures
// leave a usable trail in CI output.
type Suite struct {
	T      *testing.T
	Logger zerolog.Logger
	Cfg    staging.Config
	Client *staging.Client
	Auth   *auth.Client
}

func newSuite(t *testing.T, name string) *Suite {
	t.Helper()
	if os.Getenv("E2E_STAGING_URL") == "" && os.Getenv("STAGING_BACKEND_URL") == "" {
		t.Skip("staging E2E disabled: set E2E_STAGING_URL or STAGING_BACKEND_URL")
	}

	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Str("suite", name).Logger()

	cfg := staging.LoadConfig()
	cfg.TestSuite = name
	require.NoError(t, cfg.Validate(), "staging configuration invalid")
	if !cfg.ValidateConfiguration() {
		logger.Warn().Msg("no bypass key and no JWT secret: running on unsigned local fallback identities")
	}

	client, err := staging.NewClient(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	report := client.Health.Check(ctx)
	if !report.AllHealthy() {
		for _, svc := range report.Services {
			logger.Error().Str("service", svc.Service).Int("status", svc.Status).Str("error", svc.Error).Msg("unhealthy")
		}
		t.Skipf("staging unhealthy, skipping %s", name)
	}

	authClient, err := auth.NewClient(auth.Config{
		BaseURL:     cfg.AuthURL,
		BypassKey:   cfg.BypassKey,
		JWTSecret:   cfg.JWTSecret,
		Environment: cfg.Environment,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("auth fell back to local token")
		},
	})
	require.NoError(t, err)

	return &Suite{T: t, Logger: logger, Cfg: cfg, Client: client, Auth: authClient}
}

// User authenticates a simulated user and logs where the identity came from.
func (s *Suite) User(ctx context.Context, email string, permissions ...string) auth.TokenBundle {
	s.T.Helper()
	bundle, err := s.Auth.GetAuthToken(ctx, auth.TokenRequest{Email: email, Permissions: permissions})
	require.NoError(s.T, err, "auth for %s", email)
	s.Logger.Info().Str("email", email).Str("source", string(bundle.Source)).Msg("authenticated")
	return bundle
}

// Dial opens an agent session for the given identity.
func (s *Suite) Dial(ctx context.Context, bundle auth.TokenBundle) *ws.Session {
	s.T.Helper()
	wsURL, err := s.Cfg.WebSocketURL()
	require.NoError(s.T, err)
	session, err := ws.Dial(ctx, ws.Config{
		URL:            wsURL,
		AccessToken:    bundle.AccessToken,
		Environment:    s.Cfg.Environment,
		TestSuite:      s.Cfg.TestSuite,
		BypassKey:      s.Cfg.BypassKey,
		ReceiveTimeout: s.Cfg.ReceiveTimeout,
		OnEvent: func(e ws.Event) {
			s.Logger.Debug().Str("type", string(e.Kind)).Msg("event")
		},
	})
	require.NoError(s.T, err, "websocket dial")
	s.T.Cleanup(func() { _ = session.Close() })
	return session
}

// Exchange sends one agent request and collects events until completion.
func (s *Suite) Exchange(ctx context.Context, session *ws.Session, agent, message, userID string) []ws.Event {
	s.T.Helper()
	req := ws.NewAgentRequest(agent, message, userID)
	require.NoError(s.T, session.Send(req), "send agent_request")
	events, err := session.Collect(ctx, ws.CollectOptions{
		Until:   ws.EventAgentCompleted,
		Timeout: s.Cfg.AgentResponseTimeout,
	})
	require.NoError(s.T, err, "collect events (seen: %v)", ws.Kinds(events))
	return events
}
