package adapter

import (
	"encoding/json"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// OpenRouter wraps an inner, model-family-specific adapter (Grok,
// Gemini, plain OpenAI-chat, ...) for text post-processing and tool-
// name tracking, while adding its own schema stripping. Composition,
// not inheritance: the outer adapter delegates
// ProcessTextContent/PrepareRequest to the inner one and exposes the
// inner adapter's tool name map as its own.
type OpenRouter struct {
	inner Adapter
}

// NewOpenRouter wraps inner, which is chosen by the router based on
// the OpenRouter-namespaced model's own family (e.g. "google/..." gets
// a Gemini-flavored inner adapter for its reasoning-text handling).
func NewOpenRouter(inner Adapter) *OpenRouter {
	return &OpenRouter{inner: inner}
}

func (a *OpenRouter) Reset() { a.inner.Reset() }

func (a *OpenRouter) ConvertMessages(req *claudetypes.Request) (any, error) {
	return a.inner.ConvertMessages(req)
}

// ConvertTools delegates to the inner adapter, then strips
// format:"uri" from every input_schema node: OpenRouter rejects that
// JSON-Schema keyword.
func (a *OpenRouter) ConvertTools(req *claudetypes.Request) (any, error) {
	tools, err := a.inner.ConvertTools(req)
	if err != nil || tools == nil {
		return tools, err
	}
	raw, err := json.Marshal(tools)
	if err != nil {
		return tools, nil
	}
	var generic any
	if json.Unmarshal(raw, &generic) != nil {
		return tools, nil
	}
	stripURIFormat(generic)
	return generic, nil
}

// stripURIFormat walks a decoded JSON value in place, deleting any
// "format":"uri" key pair it finds.
func stripURIFormat(v any) {
	switch node := v.(type) {
	case map[string]any:
		if f, ok := node["format"]; ok {
			if s, ok := f.(string); ok && s == "uri" {
				delete(node, "format")
			}
		}
		for _, child := range node {
			stripURIFormat(child)
		}
	case []any:
		for _, child := range node {
			stripURIFormat(child)
		}
	}
}

func (a *OpenRouter) BuildPayload(req *claudetypes.Request, messages, tools any) map[string]any {
	return a.inner.BuildPayload(req, messages, tools)
}

func (a *OpenRouter) PrepareRequest(body map[string]any, req *claudetypes.Request) {
	a.inner.PrepareRequest(body, req)
}

func (a *OpenRouter) ProcessTextContent(chunk, accumulated string) (string, bool) {
	return a.inner.ProcessTextContent(chunk, accumulated)
}

func (a *OpenRouter) RegisterToolCall(id, name, signature string) {
	a.inner.RegisterToolCall(id, name, signature)
}

func (a *OpenRouter) ContextWindow(model string) int { return a.inner.ContextWindow(model) }

func (a *OpenRouter) SupportsVision(model string) bool { return a.inner.SupportsVision(model) }

// ToolNames returns the inner adapter's map: the outer adapter never
// truncates tool names itself, so there is nothing to merge beyond
// what the inner adapter already tracked.
func (a *OpenRouter) ToolNames() *claudetypes.ToolNameMap { return a.inner.ToolNames() }
