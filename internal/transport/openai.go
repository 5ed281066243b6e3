package transport

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// OpenAI talks to api.openai.com (or a configured compatible base
// URL). Codex models are detected by substring and routed to the
// Responses API instead of Chat Completions, which also changes the
// stream format the translator must use.
type OpenAI struct {
	baseURL string
	apiKey  string
}

// NewOpenAI constructs the OpenAI transport. baseURL defaults to
// "https://api.openai.com" when empty.
func NewOpenAI(baseURL, apiKey string) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAI{baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

// isCodex reports whether model should be routed to /v1/responses.
func isCodex(model string) bool {
	lower := strings.ToLower(model)
	return strings.Contains(lower, "codex") || strings.Contains(lower, "o1-") || strings.Contains(lower, "o3-")
}

func (t *OpenAI) StreamFormatFor(model string) StreamFormat {
	if isCodex(model) {
		return StreamOpenAIResponsesSSE
	}
	return StreamOpenAISSE
}

// StreamFormat implements Transport using a model-agnostic default;
// callers that know the target model should prefer StreamFormatFor.
func (t *OpenAI) StreamFormat() StreamFormat { return StreamOpenAISSE }

func (t *OpenAI) Endpoint(model string) string {
	if isCodex(model) {
		return t.baseURL + "/v1/responses"
	}
	return t.baseURL + "/v1/chat/completions"
}

func (t *OpenAI) Headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+t.apiKey)
	h.Set("Content-Type", "application/json")
	return h, nil
}

func (t *OpenAI) ExtraPayloadFields() map[string]any { return map[string]any{} }
func (t *OpenAI) RequestInit() (*http.Client, time.Duration) { return defaultClient, cloudTimeout }
func (t *OpenAI) EnqueueRequest(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	return fn()
}
func (t *OpenAI) RefreshAuth(ctx context.Context) error      { return nil }
func (t *OpenAI) ForceRefreshAuth(ctx context.Context) error { return ErrNoForceRefresh }
func (t *OpenAI) TransformPayload(body map[string]any) map[string]any { return body }
func (t *OpenAI) ContextWindow(ctx context.Context) int      { return 0 }
