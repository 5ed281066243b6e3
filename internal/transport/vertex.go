package transport

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Vertex resolves a GCP project + OAuth access token and wraps the
// request body into the publisher-specific envelope Vertex AI expects
// (Google, Anthropic, Mistral, Meta publishers each have their own
// shape). Express mode, where VERTEX_API_KEY is set instead of a
// service-account credential, routes through the Gemini transport
// instead and never constructs one of these.
type Vertex struct {
	project     string
	location    string
	publisher   string // "google" | "anthropic" | "mistral" | "meta"
	tokenSource oauth2.TokenSource
}

// NewVertex constructs a Vertex OAuth transport for one publisher
// family. tokenSource is typically backed by
// golang.org/x/oauth2/google's application-default-credentials flow.
func NewVertex(project, location, publisher string, tokenSource oauth2.TokenSource) *Vertex {
	if location == "" {
		location = "us-central1"
	}
	return &Vertex{project: project, location: location, publisher: publisher, tokenSource: tokenSource}
}

func (t *Vertex) StreamFormat() StreamFormat {
	if t.publisher == "google" {
		return StreamGeminiSSE
	}
	return StreamAnthropicSSE
}

func (t *Vertex) Endpoint(model string) string {
	base := "https://" + t.location + "-aiplatform.googleapis.com/v1/projects/" +
		t.project + "/locations/" + t.location + "/publishers/" + t.publisher + "/models/" + model
	if t.publisher == "google" {
		return base + ":streamGenerateContent?alt=sse"
	}
	return base + ":streamRawPredict?alt=sse"
}

func (t *Vertex) Headers(ctx context.Context) (http.Header, error) {
	tok, err := t.tokenSource.Token()
	if err != nil {
		return nil, &ConnectionError{Message: "vertex oauth token refresh failed", Cause: err}
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok.AccessToken)
	h.Set("Content-Type", "application/json")
	return h, nil
}

func (t *Vertex) ExtraPayloadFields() map[string]any { return map[string]any{} }
func (t *Vertex) RequestInit() (*http.Client, time.Duration) { return defaultClient, cloudTimeout }
func (t *Vertex) EnqueueRequest(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	return fn()
}
func (t *Vertex) RefreshAuth(ctx context.Context) error {
	_, err := t.tokenSource.Token()
	if err != nil {
		return &ConnectionError{Message: "vertex oauth refresh failed", Cause: err}
	}
	return nil
}
func (t *Vertex) ForceRefreshAuth(ctx context.Context) error {
	_, err := t.tokenSource.Token()
	return err
}

// TransformPayload wraps body into the publisher's envelope. The
// Anthropic publisher gets an "anthropic_version" field; Anthropic and
// Mistral both have "model" removed from the body (it's already in the
// URL), and Mistral gets no version field. Google's publisher (Gemini)
// and any other publisher get the body unchanged.
func (t *Vertex) TransformPayload(body map[string]any) map[string]any {
	switch t.publisher {
	case "anthropic":
		body["anthropic_version"] = "vertex-2023-10-16"
		delete(body, "model")
	case "mistral":
		delete(body, "model")
	}
	return body
}

func (t *Vertex) ContextWindow(ctx context.Context) int { return 0 }
