package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// APIError captures structured error metadata returned by staging services.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

// Error implements the error interface.
func (e APIError) Error() string {
	if e.Code == "" {
		e.Code = "UNKNOWN"
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("%s (%d)", e.Code, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	apiErr := APIError{Status: resp.StatusCode}
	if len(data) == 0 {
		apiErr.Message = resp.Status
		return apiErr
	}
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Status  int    `json:"status"`
		} `json:"error"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = string(data)
		return apiErr
	}
	apiErr.Code = payload.Error.Code
	apiErr.Message = payload.Error.Message
	if payload.Error.Status != 0 {
		apiErr.Status = payload.Error.Status
	}
	apiErr.RequestID = payload.RequestID
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

// TransportErrorKind classifies how a request failed before any HTTP status
// was available.
type TransportErrorKind string

const (
	TransportConnect  TransportErrorKind = "connect"
	TransportTimeout  TransportErrorKind = "timeout"
	TransportCanceled TransportErrorKind = "canceled"
	TransportOther    TransportErrorKind = "other"
)

// TransportError wraps connection-level failures with a coarse classification
// so callers (and the auth fallback path) can branch without string matching.
type TransportError struct {
	Kind    TransportErrorKind
	Message string
	Cause   error
}

func (e TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("staging: %s (%s): %v", e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("staging: %s (%s)", e.Message, e.Kind)
}

func (e TransportError) Unwrap() error { return e.Cause }

func classifyTransportErrorKind(err error) TransportErrorKind {
	if err == nil {
		return TransportOther
	}
	if errors.Is(err, context.Canceled) {
		return TransportCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return TransportConnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return TransportConnect
	}
	return TransportOther
}

// ConfigError reports invalid harness configuration.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string {
	return "staging: invalid configuration: " + e.Reason
}

// IsTimeout reports whether err is a request timeout at any layer.
func IsTimeout(err error) bool {
	var te TransportError
	return errors.As(err, &te) && te.Kind == TransportTimeout
}

// IsConnectError reports whether err is a connection-level failure
// (refused, reset, or dial failure).
func IsConnectError(err error) bool {
	var te TransportError
	return errors.As(err, &te) && te.Kind == TransportConnect
}
