package adapter

import (
	"encoding/json"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// OpenAIResponses targets OpenAI's Responses API (Codex-family
// models), which uses input[] instead of messages[] and a distinct
// function-call/function-call-output item shape.
type OpenAIResponses struct {
	toolNames *claudetypes.ToolNameMap
}

func NewOpenAIResponses() *OpenAIResponses {
	return &OpenAIResponses{toolNames: claudetypes.NewToolNameMap()}
}

func (a *OpenAIResponses) Reset() {}

type responsesTextItem struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content any    `json:"content,omitempty"`
}

type responsesFunctionCall struct {
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Status    string `json:"status"`
}

type responsesFunctionCallOutput struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// ConvertMessages flattens the conversation into Responses input
// items. Tool calls become {type:"function_call", ...}; tool results
// become {type:"function_call_output", ...}; text blocks become plain
// role/content message items. Blocks of any other type (images,
// thinking) are not forwarded.
func (a *OpenAIResponses) ConvertMessages(req *claudetypes.Request) (any, error) {
	var items []any
	for _, msg := range req.Messages {
		for _, b := range msg.ContentBlocks() {
			switch b.Type {
			case "text":
				items = append(items, responsesTextItem{Type: "message", Role: msg.Role, Content: b.Text})
			case "tool_use":
				args, _ := json.Marshal(b.Input)
				items = append(items, responsesFunctionCall{
					Type: "function_call", CallID: b.ID,
					Name: truncateToolName(a.toolNames, b.Name), Arguments: string(args), Status: "completed",
				})
			case "tool_result":
				items = append(items, responsesFunctionCallOutput{
					Type: "function_call_output", CallID: b.ToolUseID, Output: stringifyToolResult(b.Content),
				})
			}
		}
	}
	return items, nil
}

func (a *OpenAIResponses) ConvertTools(req *claudetypes.Request) (any, error) {
	if len(req.Tools) == 0 {
		return nil, nil
	}
	out := make([]map[string]any, 0, len(req.Tools))
	for _, t := range req.Tools {
		out = append(out, map[string]any{
			"type":        "function",
			"name":        truncateToolName(a.toolNames, t.Name),
			"description": t.Description,
			"parameters":  t.InputSchema,
		})
	}
	return out, nil
}

func (a *OpenAIResponses) BuildPayload(req *claudetypes.Request, messages, tools any) map[string]any {
	maxOutputTokens := req.MaxTokens
	if maxOutputTokens < 16 {
		maxOutputTokens = 16
	}
	body := map[string]any{
		"model":             req.Model,
		"input":             messages,
		"stream":            true,
		"max_output_tokens": maxOutputTokens,
	}
	if sys := req.SystemText(); sys != "" {
		body["instructions"] = sys
	}
	if tools != nil {
		body["tools"] = tools
	}
	return body
}

func (a *OpenAIResponses) PrepareRequest(body map[string]any, req *claudetypes.Request) {}

func (a *OpenAIResponses) ProcessTextContent(chunk, accumulated string) (string, bool) {
	return chunk, false
}

func (a *OpenAIResponses) RegisterToolCall(id, name, signature string) {}

func (a *OpenAIResponses) ContextWindow(model string) int { return lookupContextWindow(model) }

func (a *OpenAIResponses) SupportsVision(model string) bool { return true }

func (a *OpenAIResponses) ToolNames() *claudetypes.ToolNameMap { return a.toolNames }
