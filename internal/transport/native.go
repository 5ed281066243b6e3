package transport

import (
	"context"
	"net/http"
	"time"
)

// NativeAnthropic forwards a request to Anthropic's own API, using the
// caller's own forwarded x-api-key rather than any gateway-held
// credential — this is the "bare model name" resolution path, where
// the gateway is purely a streaming relay.
type NativeAnthropic struct {
	baseURL string
}

// NewNativeAnthropic constructs the passthrough transport. baseURL
// defaults to Anthropic's production API.
func NewNativeAnthropic(baseURL string) *NativeAnthropic {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &NativeAnthropic{baseURL: baseURL}
}

func (t *NativeAnthropic) StreamFormat() StreamFormat { return StreamAnthropicSSE }
func (t *NativeAnthropic) Endpoint(model string) string {
	return t.baseURL + "/v1/messages"
}

func (t *NativeAnthropic) Headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	h.Set("anthropic-version", "2023-06-01")
	h.Set("Content-Type", "application/json")
	if key := ClientAPIKeyFromContext(ctx); key != "" {
		h.Set("x-api-key", key)
	}
	return h, nil
}

func (t *NativeAnthropic) ExtraPayloadFields() map[string]any        { return map[string]any{} }
func (t *NativeAnthropic) RequestInit() (*http.Client, time.Duration) { return defaultClient, cloudTimeout }
func (t *NativeAnthropic) EnqueueRequest(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	return fn()
}
func (t *NativeAnthropic) RefreshAuth(ctx context.Context) error      { return nil }
func (t *NativeAnthropic) ForceRefreshAuth(ctx context.Context) error { return ErrNoForceRefresh }
func (t *NativeAnthropic) TransformPayload(body map[string]any) map[string]any { return body }
func (t *NativeAnthropic) ContextWindow(ctx context.Context) int     { return 0 }
