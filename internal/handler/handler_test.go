package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbridge/gateway/internal/adapter"
	"github.com/modelbridge/gateway/internal/tokentracker"
	"github.com/modelbridge/gateway/internal/transport"
)

// fakeTransport points straight at an httptest server and applies none
// of the rate-limiting/auth machinery a real Transport would.
type fakeTransport struct {
	baseURL string
}

func (f *fakeTransport) StreamFormat() transport.StreamFormat { return transport.StreamOpenAISSE }
func (f *fakeTransport) Endpoint(model string) string         { return f.baseURL + "/chat" }
func (f *fakeTransport) Headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	h.Set("Authorization", "Bearer test")
	return h, nil
}
func (f *fakeTransport) ExtraPayloadFields() map[string]any { return nil }
func (f *fakeTransport) RequestInit() (*http.Client, time.Duration) {
	return http.DefaultClient, 5 * time.Second
}
func (f *fakeTransport) EnqueueRequest(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	return fn()
}
func (f *fakeTransport) RefreshAuth(ctx context.Context) error      { return nil }
func (f *fakeTransport) ForceRefreshAuth(ctx context.Context) error { return transport.ErrNoForceRefresh }
func (f *fakeTransport) TransformPayload(body map[string]any) map[string]any { return body }
func (f *fakeTransport) ContextWindow(ctx context.Context) int     { return 0 }

func TestServe_TextOnlyRoundTrip(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		body := `data: {"choices":[{"delta":{"content":"hi"}}]}` + "\n" +
			`data: {"choices":[{"finish_reason":"stop"}]}` + "\n" +
			`data: [DONE]` + "\n"
		_, _ = w.Write([]byte(body))
	}))
	defer upstream.Close()

	h := New(&fakeTransport{baseURL: upstream.URL}, adapter.NewOpenAIChat(nil), nil, "openai", "gpt-4o")

	rec := httptest.NewRecorder()
	body := []byte(`{"model":"oai@gpt-4o","messages":[{"role":"user","content":"hello"}],"max_tokens":100}`)
	err := h.Serve(context.Background(), rec, body, "sk-test")
	require.NoError(t, err)

	out := rec.Body.String()
	assert.Contains(t, out, "message_start")
	assert.Contains(t, out, `"text":"hi"`)
	assert.Contains(t, out, "message_stop")
}

func TestServe_ReportsDroppedParams(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: [DONE]\n"))
	}))
	defer upstream.Close()

	h := New(&fakeTransport{baseURL: upstream.URL}, adapter.NewOpenAIChat(nil), nil, "openai", "gpt-4o")

	rec := httptest.NewRecorder()
	body := []byte(`{"model":"oai@gpt-4o","messages":[{"role":"user","content":"hi"}],"top_k":5,"max_tokens":100}`)
	err := h.Serve(context.Background(), rec, body, "sk-test")
	require.NoError(t, err)

	assert.Equal(t, "top_k", rec.Header().Get("X-Dropped-Params"))
}

func TestServe_ConnectionRefusedIs503(t *testing.T) {
	h := New(&fakeTransport{baseURL: "http://127.0.0.1:1"}, adapter.NewOpenAIChat(nil), nil, "openai", "gpt-4o")

	rec := httptest.NewRecorder()
	body := []byte(`{"model":"oai@gpt-4o","messages":[{"role":"user","content":"hi"}],"max_tokens":100}`)
	err := h.Serve(context.Background(), rec, body, "sk-test")
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection_error")
}

func TestServe_UpdatesTokenTracker(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		body := `data: {"choices":[{"delta":{"content":"hi"}}]}` + "\n" +
			`data: {"choices":[{"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3}}` + "\n" +
			`data: [DONE]` + "\n"
		_, _ = w.Write([]byte(body))
	}))
	defer upstream.Close()

	home := t.TempDir()
	t.Setenv("HOME", home)
	tracker := tokentracker.New(tokentracker.StrategyStandard, "openai", "gpt-4o", 128_000, 9321, false)

	h := New(&fakeTransport{baseURL: upstream.URL}, adapter.NewOpenAIChat(nil), tracker, "openai", "gpt-4o")

	rec := httptest.NewRecorder()
	body := []byte(`{"model":"oai@gpt-4o","messages":[{"role":"user","content":"hello"}],"max_tokens":100}`)
	err := h.Serve(context.Background(), rec, body, "sk-test")
	require.NoError(t, err)

	in, out, _ := tracker.Snapshot()
	assert.EqualValues(t, 12, in)
	assert.EqualValues(t, 3, out)
}
