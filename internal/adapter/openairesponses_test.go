package adapter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

func TestOpenAIResponses_ConvertMessages_TextBecomesMessageItem(t *testing.T) {
	a := NewOpenAIResponses()
	req := &claudetypes.Request{
		Messages: []claudetypes.Message{{Role: "user", Content: json.RawMessage(`"hello"`)}},
	}
	items, err := a.ConvertMessages(req)
	require.NoError(t, err)
	list, ok := items.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	item := list[0].(responsesTextItem)
	assert.Equal(t, "message", item.Type)
	assert.Equal(t, "user", item.Role)
	assert.Equal(t, "hello", item.Content)
}

func TestOpenAIResponses_ConvertMessages_ToolUseAndResult(t *testing.T) {
	a := NewOpenAIResponses()
	toolUseBlock := `{"type":"tool_use","id":"toolu_1","name":"search","input":{"q":"x"}}`
	toolResultBlock := `{"type":"tool_result","tool_use_id":"toolu_1","content":"42"}`
	req := &claudetypes.Request{
		Messages: []claudetypes.Message{
			{Role: "assistant", Content: json.RawMessage(`[` + toolUseBlock + `]`)},
			{Role: "user", Content: json.RawMessage(`[` + toolResultBlock + `]`)},
		},
	}
	items, err := a.ConvertMessages(req)
	require.NoError(t, err)
	list := items.([]any)
	require.Len(t, list, 2)

	call := list[0].(responsesFunctionCall)
	assert.Equal(t, "function_call", call.Type)
	assert.Equal(t, "toolu_1", call.CallID)
	assert.Equal(t, "search", call.Name)
	assert.JSONEq(t, `{"q":"x"}`, call.Arguments)

	out := list[1].(responsesFunctionCallOutput)
	assert.Equal(t, "function_call_output", out.Type)
	assert.Equal(t, "toolu_1", out.CallID)
	assert.Equal(t, "42", out.Output)
}

func TestOpenAIResponses_BuildPayload_EnforcesMinimumMaxOutputTokens(t *testing.T) {
	a := NewOpenAIResponses()
	req := &claudetypes.Request{Model: "codex-mini", MaxTokens: 1, System: json.RawMessage(`"be terse"`)}
	payload := a.BuildPayload(req, []any{}, nil)
	assert.Equal(t, 16, payload["max_output_tokens"])
	assert.Equal(t, "be terse", payload["instructions"])
	assert.NotContains(t, payload, "tools")
}

func TestOpenAIResponses_ConvertTools_Empty(t *testing.T) {
	a := NewOpenAIResponses()
	tools, err := a.ConvertTools(&claudetypes.Request{})
	require.NoError(t, err)
	assert.Nil(t, tools)
}
