package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestsTotal_CountsByProviderAndOutcome(t *testing.T) {
	r := New()
	r.RequestsTotal.WithLabelValues("openai", "ok").Inc()
	r.RequestsTotal.WithLabelValues("openai", "ok").Inc()
	r.RequestsTotal.WithLabelValues("gemini", "error").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `gateway_requests_total{outcome="ok",provider="openai"} 2`)
	assert.Contains(t, body, `gateway_requests_total{outcome="error",provider="gemini"} 1`)
}

func TestObserveHeadroom_SetsGaugePerTarget(t *testing.T) {
	r := New()
	r.ObserveHeadroom("openai", "gpt-4o", 87.5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), `gateway_context_window_headroom_percent{model="gpt-4o",provider="openai"} 87.5`)
}
