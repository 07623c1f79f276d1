// Package routes provides shared staging route constants used by the harness
// clients and the mock staging server to prevent path mismatches.
package routes

const (
	// AuthE2EBypass exchanges simulated-user credentials for a token bundle
	// (requires the E2E bypass key).
	AuthE2EBypass = "/auth/e2e/test-auth"

	// AuthRefresh swaps a refresh token for a new token pair.
	AuthRefresh = "/auth/refresh"

	// AuthVerify validates an access token and returns the user it belongs to.
	AuthVerify = "/auth/verify"

	// AuthLogout invalidates the session behind an access token.
	AuthLogout = "/auth/logout"

	// AuthHealth is the auth service liveness endpoint.
	AuthHealth = "/auth/health"

	// Health is the backend liveness endpoint.
	Health = "/health"

	// WebSocket is the agent messaging endpoint (wss on staging).
	WebSocket = "/ws"
)
