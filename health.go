package staging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ServiceHealth is the result of probing a single staging service.
type ServiceHealth struct {
	Service string        `json:"service"`
	URL     string        `json:"url"`
	Healthy bool          `json:"healthy"`
	Status  int           `json:"status,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthReport aggregates per-service probe results.
type HealthReport struct {
	Checked  time.Time       `json:"checked"`
	Bypassed bool            `json:"bypassed,omitempty"`
	Services []ServiceHealth `json:"services"`
}

// AllHealthy reports whether every probed service responded 2xx. A bypassed
// report counts as healthy.
func (r HealthReport) AllHealthy() bool {
	if r.Bypassed {
		return true
	}
	if len(r.Services) == 0 {
		return false
	}
	for _, s := range r.Services {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// HealthClient probes the staging deployment's liveness endpoints.
type HealthClient struct {
	client *Client
}

// Check probes the backend and auth health endpoints and reports per-service
// status and latency. Probes are unauthenticated and never return an error:
// failures are captured in the report.
func (h *HealthClient) Check(ctx context.Context) HealthReport {
	report := HealthReport{Checked: time.Now().UTC()}
	if h.client.cfg.SkipHealthCheck {
		report.Bypassed = true
		return report
	}
	targets := []struct {
		service string
		url     string
	}{
		{"backend", h.client.cfg.BackendHealthURL()},
		{"auth", h.client.cfg.AuthHealthURL()},
	}
	for _, t := range targets {
		report.Services = append(report.Services, h.probe(ctx, t.service, t.url))
	}
	return report
}

// WaitHealthy polls Check with backoff until all services respond or the
// attempts are exhausted.
func (h *HealthClient) WaitHealthy(ctx context.Context, retry RetryConfig) (HealthReport, error) {
	cfg := retry.normalized()
	var report HealthReport
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if delay := cfg.backoffDelay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(delay):
			}
		}
		report = h.Check(ctx)
		if report.AllHealthy() {
			return report, nil
		}
	}
	return report, fmt.Errorf("staging: services unhealthy after %d attempts", cfg.MaxAttempts)
}

func (h *HealthClient) probe(ctx context.Context, service, url string) ServiceHealth {
	result := ServiceHealth{Service: service, URL: url}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Accept", "application/json")
	if h.client.userAgent != "" {
		req.Header.Set("User-Agent", h.client.userAgent)
	}
	start := time.Now()
	resp, err := h.client.httpClient.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	result.Status = resp.StatusCode
	result.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !result.Healthy {
		result.Error = resp.Status
	}
	return result
}
