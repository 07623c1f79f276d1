package ws

import (
	"strings"
	"testing"
)

func eventsOf(kinds ...EventKind) []Event {
	events := make([]Event, 0, len(kinds))
	for _, k := range kinds {
		events = append(events, Event{Kind: k})
	}
	return events
}

func TestVerifyGoldenPathExact(t *testing.T) {
	if err := VerifyGoldenPath(eventsOf(GoldenPath...)); err != nil {
		t.Fatalf("canonical sequence must verify: %v", err)
	}
}

func TestVerifyGoldenPathAllowsInterleavedEvents(t *testing.T) {
	events := eventsOf(
		EventAgentStarted,
		"heartbeat",
		EventAgentThinking,
		EventAgentThinking,
		EventToolExecuting,
		"tool_progress",
		EventToolCompleted,
		EventAgentCompleted,
	)
	if err := VerifyGoldenPath(events); err != nil {
		t.Fatalf("interleaved extras must be allowed: %v", err)
	}
}

func TestVerifyGoldenPathRejectsMissingStage(t *testing.T) {
	events := eventsOf(EventAgentStarted, EventAgentThinking, EventAgentCompleted)
	err := VerifyGoldenPath(events)
	if err == nil {
		t.Fatalf("expected failure when tool stages are missing")
	}
	if !strings.Contains(err.Error(), string(EventToolExecuting)) {
		t.Fatalf("error should name the missing stage: %v", err)
	}
}

func TestVerifyGoldenPathRejectsOutOfOrder(t *testing.T) {
	events := eventsOf(EventAgentCompleted, EventAgentStarted, EventAgentThinking, EventToolExecuting, EventToolCompleted)
	if err := VerifyGoldenPath(events); err == nil {
		t.Fatalf("completion before start must not verify")
	}
}

func TestEventContentAccessors(t *testing.T) {
	e := Event{Kind: EventAgentCompleted, Data: map[string]any{"response": "hello", "tool_name": "search", "run_id": "r-1"}}
	if e.Content() != "hello" {
		t.Fatalf("Content() = %q", e.Content())
	}
	if e.Tool() != "search" {
		t.Fatalf("Tool() = %q", e.Tool())
	}
	if e.RunID() != "r-1" {
		t.Fatalf("RunID() = %q", e.RunID())
	}
	empty := Event{Kind: EventAgentThinking}
	if empty.Content() != "" {
		t.Fatalf("missing data should yield empty content")
	}
}
