package staging

// Version is the published harness version.
// 0.3.0: Add scenario files (YAML) shared by the E2E suites and stagingctl smoke.
// 0.2.0: Breaking - TokenProvider interface on Config replaces the ad hoc
// per-request token plumbing; auth fallback source surfaced on TokenBundle.
// 0.1.0: Initial staging harness: auth bypass client, health polling,
// WebSocket agent sessions.
const Version = "0.3.0"
