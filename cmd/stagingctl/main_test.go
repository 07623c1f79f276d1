package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goldenpath/goldenpath/e2e/go/testutil"
)

func goldenContent() string {
	return "You should automate your deploy pipeline first. Start by adding 2 checks:\n- lint on every push\n- tests gating merge"
}

func TestRunSmokeAgainstMockStaging(t *testing.T) {
	server := testutil.NewServer(testutil.GoldenScript(goldenContent()), testutil.Options{})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := &cliOptions{
		backendURL: server.URL,
		authURL:    server.URL,
		suite:      "smoke-unit",
		timeout:    10 * time.Second,
	}
	if err := runSmoke(ctx, zerolog.Nop(), opts); err != nil {
		t.Fatalf("smoke against healthy mock failed: %v", err)
	}
	if len(server.AgentRequests()) != 1 {
		t.Fatalf("expected one agent request, server saw %d", len(server.AgentRequests()))
	}
}

func TestRunSmokeFailsOnBrokenGoldenPath(t *testing.T) {
	script := []testutil.Step{
		{Type: "agent_started", Data: map[string]any{}},
		{Type: "agent_completed", Data: map[string]any{"content": goldenContent()}},
	}
	server := testutil.NewServer(script, testutil.Options{})
	defer server.Close()

	ctx := context.Background()
	opts := &cliOptions{
		backendURL: server.URL,
		authURL:    server.URL,
		suite:      "smoke-unit",
		timeout:    10 * time.Second,
	}
	if err := runSmoke(ctx, zerolog.Nop(), opts); err == nil {
		t.Fatalf("expected failure when tool stages are missing")
	}
}

func TestHealthCommandExitsNonZeroWhenUnhealthy(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{HealthStatus: http.StatusServiceUnavailable})
	defer server.Close()

	root := newRootCmd()
	root.SetArgs([]string{"health", "--backend-url", server.URL, "--auth-url", server.URL})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error for unhealthy staging")
	}
}

func TestHealthCommandSucceeds(t *testing.T) {
	server := testutil.NewServer(nil, testutil.Options{})
	defer server.Close()

	root := newRootCmd()
	root.SetArgs([]string{"health", "--backend-url", server.URL, "--auth-url", server.URL})
	if err := root.Execute(); err != nil {
		t.Fatalf("health against healthy mock failed: %v", err)
	}
}
