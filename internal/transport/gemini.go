package transport

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// geminiQueue serializes every Gemini request process-wide: Gemini
// direct is reached through a single shared mutex so no two calls are
// in flight at once, matching the upstream source's singleton request
// queue.
var geminiQueue sync.Mutex

// Gemini talks to the direct Generative Language API.
type Gemini struct {
	baseURL string
	apiKey  string
}

// NewGemini constructs the Gemini transport. baseURL defaults to
// "https://generativelanguage.googleapis.com" when empty.
func NewGemini(baseURL, apiKey string) *Gemini {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &Gemini{baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

func (t *Gemini) StreamFormat() StreamFormat { return StreamGeminiSSE }

func (t *Gemini) Endpoint(model string) string {
	return t.baseURL + "/v1beta/models/" + model + ":streamGenerateContent?alt=sse"
}

func (t *Gemini) Headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	h.Set("x-goog-api-key", t.apiKey)
	h.Set("Content-Type", "application/json")
	return h, nil
}

func (t *Gemini) ExtraPayloadFields() map[string]any { return map[string]any{} }
func (t *Gemini) RequestInit() (*http.Client, time.Duration) { return defaultClient, cloudTimeout }

// EnqueueRequest serializes all Gemini traffic through the process-
// wide singleton queue: every call acquires the shared mutex before
// dispatch and releases it once the response headers have arrived (not
// once the stream is fully drained), matching a single-flight send
// queue rather than holding the lock for the whole streaming body.
func (t *Gemini) EnqueueRequest(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	geminiQueue.Lock()
	defer geminiQueue.Unlock()
	return fn()
}

func (t *Gemini) RefreshAuth(ctx context.Context) error      { return nil }
func (t *Gemini) ForceRefreshAuth(ctx context.Context) error { return ErrNoForceRefresh }
func (t *Gemini) TransformPayload(body map[string]any) map[string]any { return body }
func (t *Gemini) ContextWindow(ctx context.Context) int      { return 0 }
