package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goldenpath/goldenpath/e2e/go/headers"
)

const (
	defaultHandshakeTO = 15 * time.Second
	defaultReceiveTO   = 15 * time.Second
	closeGracePeriod   = 2 * time.Second
)

// Config wires a single authenticated agent session.
type Config struct {
	// URL is the full ws:// or wss:// endpoint.
	URL string
	// AccessToken is sent as Authorization: Bearer.
	AccessToken string

	Environment string
	TestSuite   string
	BypassKey   string

	// ReceiveTimeout bounds each individual event read.
	ReceiveTimeout   time.Duration
	HandshakeTimeout time.Duration

	// Subprotocols requested during the upgrade (some suites authenticate
	// via subprotocol instead of headers).
	Subprotocols []string

	// ValidateEnvelopes schema-checks every received event.
	ValidateEnvelopes bool

	// OnEvent fires for every event read, before it is returned.
	OnEvent func(Event)

	Dialer *websocket.Dialer
}

// Session is one live WebSocket connection to the agent endpoint. A session
// belongs to a single simulated user; suites never share sessions across
// users.
type Session struct {
	conn *websocket.Conn
	cfg  Config
}

// Dial opens and authenticates an agent session.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("ws: endpoint URL required")
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = defaultReceiveTO
	}
	dialer := cfg.Dialer
	if dialer == nil {
		handshakeTO := cfg.HandshakeTimeout
		if handshakeTO <= 0 {
			handshakeTO = defaultHandshakeTO
		}
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTO,
			Subprotocols:     cfg.Subprotocols,
		}
	}

	header := http.Header{}
	if cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AccessToken)
	}
	if cfg.Environment != "" {
		header.Set(headers.Environment, cfg.Environment)
	}
	if cfg.TestSuite != "" {
		header.Set(headers.TestSuite, cfg.TestSuite)
	}
	if cfg.BypassKey != "" {
		header.Set(headers.E2EBypassKey, cfg.BypassKey)
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s: handshake rejected (%d): %w", cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("ws: dial %s: %w", cfg.URL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return &Session{conn: conn, cfg: cfg}, nil
}

// Send writes an agent_request to the server. The envelope type is forced so
// a half-filled struct cannot produce an unroutable message.
func (s *Session) Send(req AgentRequest) error {
	if req.Type == "" {
		req.Type = "agent_request"
	}
	if strings.TrimSpace(req.Message) == "" {
		return errors.New("ws: agent request message required")
	}
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("ws: send agent_request: %w", err)
	}
	return nil
}

// Next reads a single event, bounded by the per-message receive timeout and
// the context deadline, whichever is sooner.
func (s *Session) Next(ctx context.Context) (Event, error) {
	deadline := time.Now().Add(s.cfg.ReceiveTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return Event{}, fmt.Errorf("ws: set read deadline: %w", err)
	}

	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Event{}, fmt.Errorf("ws: receive timed out after %s: %w", s.cfg.ReceiveTimeout, context.DeadlineExceeded)
		}
		return Event{}, fmt.Errorf("ws: receive: %w", err)
	}

	if s.cfg.ValidateEnvelopes {
		if err := ValidateEnvelope(raw); err != nil {
			return Event{}, err
		}
	}

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("ws: decode event: %w", err)
	}
	if event.Kind == "" {
		return Event{}, fmt.Errorf("ws: event missing type: %s", truncate(raw, 200))
	}
	event.Raw = raw
	event.Received = time.Now()
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(event)
	}
	return event, nil
}

// CollectOptions bounds an event-collection loop.
type CollectOptions struct {
	// Until stops collection once an event of this kind is received
	// (included in the result). Zero value: collect until timeout/MaxEvents.
	Until EventKind
	// MaxEvents caps the number of events collected. Default 100.
	MaxEvents int
	// Timeout bounds the whole collection. Default 60s.
	Timeout time.Duration
}

// Collect reads events until Until is seen, MaxEvents is hit, or the timeout
// elapses. Whatever was collected is always returned, alongside the error
// that stopped the loop, so failing suites can dump partial streams.
func (s *Session) Collect(ctx context.Context, opts CollectOptions) ([]Event, error) {
	maxEvents := opts.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 100
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var events []Event
	for len(events) < maxEvents {
		select {
		case <-ctx.Done():
			return events, fmt.Errorf("ws: collect: %w", ctx.Err())
		default:
		}
		event, err := s.Next(ctx)
		if err != nil {
			return events, err
		}
		events = append(events, event)
		if event.Kind == EventError {
			return events, fmt.Errorf("ws: server error event: %s", event.Content())
		}
		if opts.Until != "" && event.Kind == opts.Until {
			return events, nil
		}
	}
	if opts.Until != "" {
		return events, fmt.Errorf("ws: collect: %q not seen within %d events", opts.Until, maxEvents)
	}
	return events, nil
}

// Close performs the closing handshake and tears down the connection.
func (s *Session) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return s.conn.Close()
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
