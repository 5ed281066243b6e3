package adapter

import (
	"encoding/json"
	"strings"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// maxToolNameLen is the provider limit some OpenAI-compatible targets
// (Qwen via the Responses API in particular) impose on function names.
const maxToolNameLen = 64

// OpenAIChat is the default OpenAI-compatible (chat completions) wire
// translator. Most direct-API providers other than Gemini and the
// Anthropic-compat family use this adapter: OpenAI's chat models,
// xAI/Grok, GLM, the OpenRouter default member adapter, and so on.
type OpenAIChat struct {
	toolNames   *claudetypes.ToolNameMap
	visionModel func(model string) bool

	// localMaxTokensFloor applies the 8192-token max_tokens floor. Local
	// self-hosted targets often ship with a low default max_tokens that
	// truncates responses; cloud providers don't need the floor and some
	// bill or cap by it, so it's opt-in per binding rather than global.
	localMaxTokensFloor bool
}

// NewOpenAIChat constructs the adapter. visionModel may be nil, in
// which case SupportsVision always reports true.
func NewOpenAIChat(visionModel func(model string) bool) *OpenAIChat {
	return &OpenAIChat{toolNames: claudetypes.NewToolNameMap(), visionModel: visionModel}
}

func (a *OpenAIChat) Reset() {}

type chatMessage struct {
	Role       string          `json:"role"`
	Content    any             `json:"content,omitempty"`
	ToolCalls  []chatToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatToolCallFunc `json:"function"`
}

type chatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// ConvertMessages flattens system text to message index 0, turns
// tool_use into assistant tool_calls[], tool_result into role:"tool"
// messages, and collapses a lone text block back to a bare string.
func (a *OpenAIChat) ConvertMessages(req *claudetypes.Request) (any, error) {
	var out []chatMessage

	if sys := req.SystemText(); sys != "" {
		out = append(out, chatMessage{Role: "system", Content: sys})
	}

	for _, msg := range req.Messages {
		blocks := msg.ContentBlocks()
		out = append(out, a.convertOneMessage(msg.Role, blocks)...)
	}
	return out, nil
}

func (a *OpenAIChat) convertOneMessage(role string, blocks []claudetypes.Block) []chatMessage {
	var parts []chatContentPart
	var toolCalls []chatToolCall
	var toolResults []chatMessage

	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, chatContentPart{Type: "text", Text: b.Text})
		case "image":
			if b.Source != nil {
				parts = append(parts, chatContentPart{
					Type: "image_url",
					ImageURL: &chatImageURL{
						URL: "data:" + b.Source.MediaType + ";base64," + b.Source.Data,
					},
				})
			}
		case "tool_use":
			args, _ := json.Marshal(b.Input)
			name := truncateToolName(a.toolNames, b.Name)
			toolCalls = append(toolCalls, chatToolCall{
				ID:   b.ID,
				Type: "function",
				Function: chatToolCallFunc{
					Name:      name,
					Arguments: string(args),
				},
			})
		case "tool_result":
			content := stringifyToolResult(b.Content)
			toolResults = append(toolResults, chatMessage{Role: "tool", ToolCallID: b.ToolUseID, Content: content})
		}
	}

	var msgs []chatMessage
	if len(parts) > 0 || len(toolCalls) > 0 {
		msg := chatMessage{Role: role, ToolCalls: toolCalls}
		msg.Content = collapseContent(parts)
		msgs = append(msgs, msg)
	}
	msgs = append(msgs, toolResults...)
	return msgs
}

// collapseContent implements the "a content array containing a single
// text block back to a bare string" rule.
func collapseContent(parts []chatContentPart) any {
	if len(parts) == 0 {
		return nil
	}
	if len(parts) == 1 && parts[0].Type == "text" {
		return parts[0].Text
	}
	return parts
}

func stringifyToolResult(content any) string {
	switch v := content.(type) {
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func truncateToolName(m *claudetypes.ToolNameMap, name string) string {
	if len(name) <= maxToolNameLen {
		return name
	}
	truncated := name[:maxToolNameLen]
	m.Register(truncated, name)
	return truncated
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

func (a *OpenAIChat) ConvertTools(req *claudetypes.Request) (any, error) {
	if len(req.Tools) == 0 {
		return nil, nil
	}
	out := make([]chatTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		out = append(out, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        truncateToolName(a.toolNames, t.Name),
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out, nil
}

// isReasoningEffortModel reports models that route budget_tokens
// through reasoning_effort instead of a literal token cap.
func isReasoningEffortModel(model string) bool {
	lower := strings.ToLower(model)
	return strings.HasPrefix(lower, "o1") || strings.HasPrefix(lower, "o3") || strings.HasPrefix(lower, "o4")
}

// usesMaxCompletionTokens reports whether model expects
// max_completion_tokens instead of max_tokens.
func usesMaxCompletionTokens(model string) bool {
	lower := strings.ToLower(model)
	return strings.HasPrefix(lower, "gpt-5") || strings.HasPrefix(lower, "o1") ||
		strings.HasPrefix(lower, "o3") || strings.HasPrefix(lower, "o4")
}

// reasoningEffortFor maps thinking.budget_tokens to the reasoning_effort
// enum.
func reasoningEffortFor(budgetTokens int) string {
	switch {
	case budgetTokens < 4000:
		return "minimal"
	case budgetTokens < 16000:
		return "low"
	case budgetTokens < 32000:
		return "medium"
	default:
		return "high"
	}
}

func (a *OpenAIChat) BuildPayload(req *claudetypes.Request, messages, tools any) map[string]any {
	body := map[string]any{
		"model":    req.Model,
		"messages": messages,
		"stream":   true,
		"stream_options": map[string]any{
			"include_usage": true,
		},
	}
	if tools != nil {
		body["tools"] = tools
	}
	if req.ToolChoice != nil {
		body["tool_choice"] = convertToolChoice(req.ToolChoice)
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	maxTokens := req.MaxTokens
	if a.localMaxTokensFloor && maxTokens > 0 && maxTokens < 8192 {
		maxTokens = 8192
	}
	if usesMaxCompletionTokens(req.Model) {
		body["max_completion_tokens"] = maxTokens
	} else if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}

	if req.Thinking != nil && isReasoningEffortModel(req.Model) {
		body["reasoning_effort"] = reasoningEffortFor(req.Thinking.BudgetTokens)
	}
	return body
}

func convertToolChoice(tc *claudetypes.ToolChoice) any {
	switch tc.Type {
	case "auto":
		return "auto"
	case "none":
		return "none"
	case "tool":
		return map[string]any{"type": "function", "function": map[string]any{"name": tc.Name}}
	default:
		return "auto"
	}
}

func (a *OpenAIChat) PrepareRequest(body map[string]any, req *claudetypes.Request) {}

func (a *OpenAIChat) ProcessTextContent(chunk, accumulated string) (string, bool) {
	return chunk, false
}

func (a *OpenAIChat) RegisterToolCall(id, name, signature string) {}

func (a *OpenAIChat) ContextWindow(model string) int { return lookupContextWindow(model) }

func (a *OpenAIChat) SupportsVision(model string) bool {
	if a.visionModel == nil {
		return true
	}
	return a.visionModel(model)
}

func (a *OpenAIChat) ToolNames() *claudetypes.ToolNameMap { return a.toolNames }

// GLMSupportsVision implements the GLM-specific rule: only glm-*v*
// variants see images.
func GLMSupportsVision(model string) bool {
	lower := strings.ToLower(model)
	return strings.HasPrefix(lower, "glm-") && strings.Contains(lower, "v")
}
