package adapter

import (
	"github.com/modelbridge/gateway/internal/claudetypes"
)

// AnthropicPassthrough forwards the canonical request to an
// Anthropic-wire-format upstream (native Anthropic, MiniMax, Kimi,
// Z.AI) with only minimal adjustment: messages and tools are identity,
// since the canonical form already is the Anthropic shape.
type AnthropicPassthrough struct {
	toolNames *claudetypes.ToolNameMap
}

func NewAnthropicPassthrough() *AnthropicPassthrough {
	return &AnthropicPassthrough{toolNames: claudetypes.NewToolNameMap()}
}

func (a *AnthropicPassthrough) Reset() {}

func (a *AnthropicPassthrough) ConvertMessages(req *claudetypes.Request) (any, error) {
	return req.Messages, nil
}

func (a *AnthropicPassthrough) ConvertTools(req *claudetypes.Request) (any, error) {
	if len(req.Tools) == 0 {
		return nil, nil
	}
	return req.Tools, nil
}

func (a *AnthropicPassthrough) BuildPayload(req *claudetypes.Request, messages, tools any) map[string]any {
	body := map[string]any{
		"model":      req.Model,
		"messages":   messages,
		"stream":     true,
		"max_tokens": req.MaxTokens,
	}
	if len(req.System) > 0 {
		body["system"] = req.System
	}
	if tools != nil {
		body["tools"] = tools
	}
	if req.ToolChoice != nil {
		body["tool_choice"] = req.ToolChoice
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.Thinking != nil {
		body["thinking"] = req.Thinking
	}
	return body
}

func (a *AnthropicPassthrough) PrepareRequest(body map[string]any, req *claudetypes.Request) {}

func (a *AnthropicPassthrough) ProcessTextContent(chunk, accumulated string) (string, bool) {
	return chunk, false
}

func (a *AnthropicPassthrough) RegisterToolCall(id, name, signature string) {}

func (a *AnthropicPassthrough) ContextWindow(model string) int { return lookupContextWindow(model) }

func (a *AnthropicPassthrough) SupportsVision(model string) bool { return true }

func (a *AnthropicPassthrough) ToolNames() *claudetypes.ToolNameMap { return a.toolNames }
