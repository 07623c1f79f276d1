// Package ws provides the WebSocket agent-session harness for the Golden
// Path staging environment: dialing, the agent_request envelope, and bounded
// collection of the server's event stream.
package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind names a server-emitted event type.
type EventKind string

const (
	EventAgentStarted   EventKind = "agent_started"
	EventAgentThinking  EventKind = "agent_thinking"
	EventToolExecuting  EventKind = "tool_executing"
	EventToolCompleted  EventKind = "tool_completed"
	EventAgentCompleted EventKind = "agent_completed"
	EventError          EventKind = "error"
)

// GoldenPath is the canonical event sequence for a successful
// user -> agent -> AI-response exchange. Extra events may appear between
// stages; the order of these five is what the suites assert on.
var GoldenPath = []EventKind{
	EventAgentStarted,
	EventAgentThinking,
	EventToolExecuting,
	EventToolCompleted,
	EventAgentCompleted,
}

// AgentRequest is the client -> server message envelope.
type AgentRequest struct {
	Type     string         `json:"type"`
	Agent    string         `json:"agent"`
	Message  string         `json:"message"`
	ThreadID string         `json:"thread_id"`
	RunID    string         `json:"run_id"`
	UserID   string         `json:"user_id"`
	Context  map[string]any `json:"context,omitempty"`
}

// NewAgentRequest builds an agent_request with freshly minted thread and run
// IDs.
func NewAgentRequest(agent, message, userID string) AgentRequest {
	return AgentRequest{
		Type:     "agent_request",
		Agent:    agent,
		Message:  message,
		ThreadID: uuid.NewString(),
		RunID:    uuid.NewString(),
		UserID:   userID,
	}
}

// Event is a server -> client message. Raw preserves the wire bytes for
// schema validation and leakage scans.
type Event struct {
	Kind EventKind      `json:"type"`
	Data map[string]any `json:"data,omitempty"`

	Raw      json.RawMessage `json:"-"`
	Received time.Time       `json:"-"`
}

// Content extracts the response text from the event payload, trying the field
// names staging has used across versions.
func (e Event) Content() string {
	return e.stringField("content", "response", "message", "text")
}

// Tool returns the tool name for tool_executing / tool_completed events.
func (e Event) Tool() string {
	return e.stringField("tool", "tool_name")
}

// RunID returns the run this event belongs to, when present.
func (e Event) RunID() string {
	return e.stringField("run_id")
}

func (e Event) stringField(keys ...string) string {
	for _, key := range keys {
		if v, ok := e.Data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Kinds lists the event kinds in order. Used in assertion diagnostics.
func Kinds(events []Event) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// FirstOfKind returns the first event of the given kind.
func FirstOfKind(events []Event, kind EventKind) (Event, bool) {
	for _, e := range events {
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}

// CompletedContent returns the content of the final agent_completed event, or
// "" when the exchange never completed.
func CompletedContent(events []Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventAgentCompleted {
			return events[i].Content()
		}
	}
	return ""
}
