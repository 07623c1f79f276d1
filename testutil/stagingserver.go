// Package testutil provides an in-process mock of the staging deployment so
// the harness packages can be tested without network access.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/goldenpath/goldenpath/e2e/go/headers"
	"github.com/goldenpath/goldenpath/e2e/go/routes"
)

// Step is one scripted server event, emitted after an optional delay.
type Step struct {
	Delay time.Duration
	Type  string
	Data  map[string]any
}

// GoldenScript returns the canonical five-stage event sequence ending in an
// agent_completed carrying content.
func GoldenScript(content string) []Step {
	return []Step{
		{Type: "agent_started", Data: map[string]any{}},
		{Type: "agent_thinking", Data: map[string]any{"thought": "analyzing request"}},
		{Type: "tool_executing", Data: map[string]any{"tool": "knowledge_search"}},
		{Type: "tool_completed", Data: map[string]any{"tool": "knowledge_search"}},
		{Type: "agent_completed", Data: map[string]any{"content": content}},
	}
}

// Options tunes the mock's behavior per test.
type Options struct {
	// BypassKey, when set, is required on /auth/e2e/test-auth (403 otherwise).
	BypassKey string
	// SigningSecret signs issued access tokens. Defaults to a fixture value.
	SigningSecret string
	// AuthStatus forces the bypass endpoint to return this status (e.g. 503).
	AuthStatus int
	// RefreshStatus forces /auth/refresh to return this status.
	RefreshStatus int
	// HealthStatus forces the health endpoints to return this status.
	HealthStatus int
	// RequireWSAuth rejects WebSocket upgrades without a bearer token.
	RequireWSAuth bool
	// Echo appends the received message to the final agent_completed content.
	Echo bool
	// ExpiresIn overrides the issued token lifetime in seconds. Default 900.
	ExpiresIn int
}

// Server is an httptest-backed mock staging deployment: auth bypass, refresh,
// verify, logout, health, and a scripted agent WebSocket.
type Server struct {
	*httptest.Server

	script []Step
	opts   Options

	mu           sync.Mutex
	authCalls    int
	refreshCalls int
	agentReqs    []AgentRequest
}

// AgentRequest is the recorded client envelope, kept loose on purpose: the
// mock asserts nothing, tests inspect what arrived.
type AgentRequest struct {
	Type     string         `json:"type"`
	Agent    string         `json:"agent"`
	Message  string         `json:"message"`
	ThreadID string         `json:"thread_id"`
	RunID    string         `json:"run_id"`
	UserID   string         `json:"user_id"`
	Context  map[string]any `json:"context"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewServer starts a mock staging deployment replaying script on each agent
// request. Close it via the embedded httptest.Server.
func NewServer(script []Step, opts Options) *Server {
	if opts.SigningSecret == "" {
		opts.SigningSecret = "testutil-staging-secret"
	}
	if opts.ExpiresIn == 0 {
		opts.ExpiresIn = 900
	}
	s := &Server{script: script, opts: opts}

	r := chi.NewRouter()
	r.Post(routes.AuthE2EBypass, s.handleBypass)
	r.Post(routes.AuthRefresh, s.handleRefresh)
	r.Post(routes.AuthVerify, s.handleVerify)
	r.Post(routes.AuthLogout, s.handleLogout)
	r.Get(routes.Health, s.handleHealth)
	r.Get(routes.AuthHealth, s.handleHealth)
	r.Get(routes.WebSocket, s.handleWS)

	s.Server = httptest.NewServer(r)
	return s
}

// WebSocketURL returns the ws:// endpoint for the scripted agent.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + routes.WebSocket
}

// AuthCalls reports how many bypass logins the mock served.
func (s *Server) AuthCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls
}

// RefreshCalls reports how many refresh requests the mock served.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// AgentRequests returns the envelopes received over the WebSocket.
func (s *Server) AgentRequests() []AgentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AgentRequest, len(s.agentReqs))
	copy(out, s.agentReqs)
	return out
}

func (s *Server) handleBypass(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.authCalls++
	s.mu.Unlock()

	if s.opts.AuthStatus != 0 && s.opts.AuthStatus != http.StatusOK {
		writeError(w, s.opts.AuthStatus, "AUTH_UNAVAILABLE", "forced failure")
		return
	}
	if s.opts.BypassKey != "" && r.Header.Get(headers.E2EBypassKey) != s.opts.BypassKey {
		writeError(w, http.StatusForbidden, "BYPASS_KEY_INVALID", "missing or wrong bypass key")
		return
	}
	var req struct {
		Email       string   `json:"email"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email required")
		return
	}

	userID := uuid.NewString()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":         userID,
		"email":       req.Email,
		"name":        req.Name,
		"permissions": req.Permissions,
		"iat":         now.Unix(),
		"exp":         now.Add(time.Duration(s.opts.ExpiresIn) * time.Second).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.SigningSecret))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SIGNING_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  token,
		"refresh_token": "refresh-" + uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    s.opts.ExpiresIn,
		"user": map[string]any{
			"id":          userID,
			"email":       req.Email,
			"name":        req.Name,
			"permissions": req.Permissions,
		},
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.refreshCalls++
	s.mu.Unlock()

	if s.opts.RefreshStatus != 0 && s.opts.RefreshStatus != http.StatusOK {
		writeError(w, s.opts.RefreshStatus, "REFRESH_REJECTED", "forced failure")
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "refresh_token required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "refreshed-" + uuid.NewString(),
		"refresh_token": "refresh-" + uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    s.opts.ExpiresIn,
		"user":          map[string]any{"id": uuid.NewString(), "email": "refreshed@goldenpath.dev"},
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "TOKEN_MISSING", "no bearer token")
		return
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.opts.SigningSecret), nil
	})
	if err != nil || !parsed.Valid {
		writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "token rejected")
		return
	}
	email, _ := claims["email"].(string)
	sub, _ := claims["sub"].(string)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{"id": sub, "email": email},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if bearerToken(r) == "" {
		writeError(w, http.StatusUnauthorized, "TOKEN_MISSING", "no bearer token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.opts.HealthStatus
	if status == 0 {
		status = http.StatusOK
	}
	if status != http.StatusOK {
		writeJSON(w, status, map[string]any{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.opts.RequireWSAuth && bearerToken(r) == "" {
		writeError(w, http.StatusUnauthorized, "TOKEN_MISSING", "no bearer token")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req AgentRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		s.mu.Lock()
		s.agentReqs = append(s.agentReqs, req)
		s.mu.Unlock()

		for _, step := range s.script {
			if step.Delay > 0 {
				time.Sleep(step.Delay)
			}
			data := map[string]any{"run_id": req.RunID}
			for k, v := range step.Data {
				data[k] = v
			}
			if s.opts.Echo && step.Type == "agent_completed" {
				content, _ := data["content"].(string)
				data["content"] = content + " [re: " + req.Message + "]"
			}
			if err := conn.WriteJSON(map[string]any{"type": step.Type, "data": data}); err != nil {
				return
			}
		}
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"status":  status,
		},
		"request_id": uuid.NewString(),
	})
}
