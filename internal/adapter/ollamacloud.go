package adapter

import (
	"encoding/json"
	"strings"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// OllamaCloud collapses every message to a plain string: tool_use and
// tool_result blocks are stringified into inline markers rather than
// structured tool-call fields, since OllamaCloud's OpenAI-compat
// surface here is treated as text-only.
type OllamaCloud struct {
	toolNames *claudetypes.ToolNameMap
}

func NewOllamaCloud() *OllamaCloud {
	return &OllamaCloud{toolNames: claudetypes.NewToolNameMap()}
}

func (a *OllamaCloud) Reset() {}

func (a *OllamaCloud) ConvertMessages(req *claudetypes.Request) (any, error) {
	var out []chatMessage
	if sys := req.SystemText(); sys != "" {
		out = append(out, chatMessage{Role: "system", Content: sys})
	}
	for _, msg := range req.Messages {
		var sb strings.Builder
		for _, b := range msg.ContentBlocks() {
			switch b.Type {
			case "text":
				sb.WriteString(b.Text)
			case "image":
				sb.WriteString("[Image omitted: not supported by this target]")
			case "tool_use":
				args, _ := json.Marshal(b.Input)
				sb.WriteString("[Tool Call: " + b.Name + "(" + string(args) + ")]")
			case "tool_result":
				sb.WriteString("[Tool Result]: " + stringifyToolResult(b.Content))
			}
		}
		out = append(out, chatMessage{Role: msg.Role, Content: sb.String()})
	}
	return out, nil
}

// ConvertTools always returns an empty list: OllamaCloud's text-only
// surface here never advertises tool support to the model.
func (a *OllamaCloud) ConvertTools(req *claudetypes.Request) (any, error) {
	return []chatTool{}, nil
}

func (a *OllamaCloud) BuildPayload(req *claudetypes.Request, messages, tools any) map[string]any {
	maxTokens := req.MaxTokens
	if maxTokens < 8192 {
		maxTokens = 8192
	}
	return map[string]any{
		"model":      req.Model,
		"messages":   messages,
		"stream":     true,
		"max_tokens": maxTokens,
	}
}

// PrepareRequest strips cloud-only thinking/reasoning fields: local
// and local-like providers never accept them.
func (a *OllamaCloud) PrepareRequest(body map[string]any, req *claudetypes.Request) {
	delete(body, "thinking")
	delete(body, "reasoning_effort")
}

func (a *OllamaCloud) ProcessTextContent(chunk, accumulated string) (string, bool) {
	return chunk, false
}

func (a *OllamaCloud) RegisterToolCall(id, name, signature string) {}

func (a *OllamaCloud) ContextWindow(model string) int { return lookupContextWindow(model) }

func (a *OllamaCloud) SupportsVision(model string) bool { return false }

func (a *OllamaCloud) ToolNames() *claudetypes.ToolNameMap { return a.toolNames }
