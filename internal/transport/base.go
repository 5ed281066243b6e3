package transport

import (
	"context"
	"net/http"
	"time"
)

// cloudTimeout is the default deadline for cloud upstream requests.
const cloudTimeout = 30 * time.Second

// defaultClient is shared by every cloud transport; it carries no
// per-provider state so one instance is safe for all of them.
var defaultClient = &http.Client{}

// simple is a Transport for providers that need nothing beyond a
// fixed header set and an endpoint template: no OAuth, no queue, no
// discovered context window. OpenRouter, Poe, and LiteLLM are built on
// top of it.
type simple struct {
	format      StreamFormat
	endpointFn  func(model string) string
	headersFn   func(ctx context.Context) (http.Header, error)
	extraFields map[string]any
	timeout     time.Duration
}

func newSimple(format StreamFormat, endpointFn func(string) string, headersFn func(context.Context) (http.Header, error)) *simple {
	return &simple{format: format, endpointFn: endpointFn, headersFn: headersFn, timeout: cloudTimeout}
}

func (s *simple) StreamFormat() StreamFormat { return s.format }
func (s *simple) Endpoint(model string) string {
	return s.endpointFn(model)
}
func (s *simple) Headers(ctx context.Context) (http.Header, error) { return s.headersFn(ctx) }
func (s *simple) ExtraPayloadFields() map[string]any {
	if s.extraFields == nil {
		return map[string]any{}
	}
	return s.extraFields
}
func (s *simple) RequestInit() (*http.Client, time.Duration) { return defaultClient, s.timeout }
func (s *simple) EnqueueRequest(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	return fn()
}
func (s *simple) RefreshAuth(ctx context.Context) error      { return nil }
func (s *simple) ForceRefreshAuth(ctx context.Context) error { return ErrNoForceRefresh }
func (s *simple) TransformPayload(body map[string]any) map[string]any { return body }
func (s *simple) ContextWindow(ctx context.Context) int      { return 0 }

func staticEndpoint(template string) func(model string) string {
	return func(model string) string { return template }
}

func bearerHeaders(apiKey string) func(context.Context) (http.Header, error) {
	return func(ctx context.Context) (http.Header, error) {
		h := http.Header{}
		h.Set("Authorization", "Bearer "+apiKey)
		h.Set("Content-Type", "application/json")
		return h, nil
	}
}
