package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbridge/gateway/internal/config"
	"github.com/modelbridge/gateway/internal/metrics"
	"github.com/modelbridge/gateway/internal/resolver"
	"github.com/modelbridge/gateway/internal/router"
)

func newTestServer(env resolver.Env) *Server {
	cfg := &config.Config{Port: 8317, Monitor: true}
	gw := router.New(router.Config{Port: cfg.Port}, env)
	return New(cfg, gw, metrics.New())
}

func TestHealth_ReturnsOK(t *testing.T) {
	s := newTestServer(resolver.Env{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRoot_ReportsPort(t *testing.T) {
	s := newTestServer(resolver.Env{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"port":8317`)
}

func TestMessages_MissingModelIsBadRequest(t *testing.T) {
	s := newTestServer(resolver.Env{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{}`))
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessages_UnresolvableTargetIs503(t *testing.T) {
	s := newTestServer(resolver.Env{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"model":"oai@gpt-4o","messages":[]}`))
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCountTokens_NonAnthropicTargetEstimatesLocally(t *testing.T) {
	s := newTestServer(resolver.Env{})
	rec := httptest.NewRecorder()
	body := `{"model":"ollama/llama3.2","messages":[{"role":"user","content":"hello there"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(body))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "input_tokens")
}

func TestMetrics_ServesPrometheusFormat(t *testing.T) {
	s := newTestServer(resolver.Env{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
