package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// AnthropicCompat covers providers that speak the Anthropic wire
// format natively: MiniMax, Kimi, Z.AI. They authenticate with
// x-api-key + anthropic-version like real Anthropic, rather than an
// OpenAI-style bearer token.
type AnthropicCompat struct {
	baseURL string
	apiKey  string
	// oauthSource is non-nil only for Kimi-Coding, which falls back to
	// an OAuth bearer token when no API key is configured.
	oauthSource oauth2.TokenSource
}

// NewAnthropicCompat constructs a transport for a provider that speaks
// the Anthropic wire format. oauthSource may be nil.
func NewAnthropicCompat(baseURL, apiKey string, oauthSource oauth2.TokenSource) *AnthropicCompat {
	return &AnthropicCompat{baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey, oauthSource: oauthSource}
}

func (t *AnthropicCompat) StreamFormat() StreamFormat { return StreamAnthropicSSE }
func (t *AnthropicCompat) Endpoint(model string) string {
	return t.baseURL + "/v1/messages"
}

func (t *AnthropicCompat) Headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	h.Set("anthropic-version", "2023-06-01")
	h.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		h.Set("x-api-key", t.apiKey)
		return h, nil
	}
	if t.oauthSource != nil {
		tok, err := t.oauthSource.Token()
		if err != nil {
			return nil, &ConnectionError{Message: "kimi-coding oauth refresh failed", Cause: err}
		}
		h.Set("Authorization", "Bearer "+tok.AccessToken)
		return h, nil
	}
	return h, nil
}

func (t *AnthropicCompat) ExtraPayloadFields() map[string]any        { return map[string]any{} }
func (t *AnthropicCompat) RequestInit() (*http.Client, time.Duration) { return defaultClient, cloudTimeout }
func (t *AnthropicCompat) EnqueueRequest(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	return fn()
}
func (t *AnthropicCompat) RefreshAuth(ctx context.Context) error { return nil }

// ForceRefreshAuth refreshes the OAuth token after a 401, when one is
// configured; providers authenticated with a plain API key have
// nothing to refresh.
func (t *AnthropicCompat) ForceRefreshAuth(ctx context.Context) error {
	if t.oauthSource == nil {
		return ErrNoForceRefresh
	}
	_, err := t.oauthSource.Token()
	return err
}
func (t *AnthropicCompat) TransformPayload(body map[string]any) map[string]any { return body }
func (t *AnthropicCompat) ContextWindow(ctx context.Context) int               { return 0 }
