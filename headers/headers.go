// Package headers defines HTTP header constants used across the Golden Path
// staging harness. This is the single source of truth for header names used
// in API and WebSocket requests.
package headers

const (
	// RequestID is the header for request correlation across staging logs.
	RequestID = "X-Golden-Path-Request-Id"

	// E2EBypassKey carries the shared OAuth-simulation secret.
	E2EBypassKey = "X-E2E-Bypass-Key" //nolint:gosec // This is a header name, not a credential

	// Environment tags requests with the environment under test (staging/dev).
	Environment = "X-Environment"

	// TestSuite names the suite issuing the request so staging logs can be
	// correlated back to a CI run.
	TestSuite = "X-Test-Suite"
)
