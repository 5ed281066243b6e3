package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

func TestGemini_SentinelWhenNoSignatureKnown(t *testing.T) {
	a := NewGemini(false)
	req := &claudetypes.Request{
		Model:    "gemini-2.5-pro",
		Messages: []claudetypes.Message{msg("assistant", `[{"type":"tool_use","id":"toolu_1","name":"search","input":{}}]`)},
	}
	out, err := a.ConvertMessages(req)
	require.NoError(t, err)
	contents := out.([]geminiContent)
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, claudetypes.SentinelSignature, contents[0].Parts[0].ThoughtSignature)
}

func TestGemini_RejectSentinelOmitsSignature(t *testing.T) {
	a := NewGemini(true)
	req := &claudetypes.Request{
		Model:    "gemini-2.5-pro",
		Messages: []claudetypes.Message{msg("assistant", `[{"type":"tool_use","id":"toolu_1","name":"search","input":{}}]`)},
	}
	out, _ := a.ConvertMessages(req)
	contents := out.([]geminiContent)
	assert.Empty(t, contents[0].Parts[0].ThoughtSignature)
}

func TestGemini_RegisteredSignatureIsEchoed(t *testing.T) {
	a := NewGemini(false)
	a.RegisterToolCall("toolu_k1", "search", "ABC")
	req := &claudetypes.Request{
		Model:    "gemini-2.5-pro",
		Messages: []claudetypes.Message{msg("assistant", `[{"type":"tool_use","id":"toolu_k1","name":"search","input":{}}]`)},
	}
	out, _ := a.ConvertMessages(req)
	contents := out.([]geminiContent)
	assert.Equal(t, "ABC", contents[0].Parts[0].ThoughtSignature)
}

func TestGemini_ToolResultLooksUpFunctionName(t *testing.T) {
	a := NewGemini(false)
	a.RegisterToolCall("toolu_k1", "search", "ABC")
	req := &claudetypes.Request{
		Model:    "gemini-2.5-pro",
		Messages: []claudetypes.Message{msg("user", `[{"type":"tool_result","tool_use_id":"toolu_k1","content":"ok"}]`)},
	}
	out, _ := a.ConvertMessages(req)
	contents := out.([]geminiContent)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "search", contents[0].Parts[0].FunctionResponse.Name)
}

func TestGemini_ThinkingLevelThreshold(t *testing.T) {
	a := NewGemini(false)
	low := a.BuildPayload(&claudetypes.Request{Model: "gemini-3-pro", Thinking: &claudetypes.Thinking{BudgetTokens: 10000}}, nil, nil)
	cfg := low["generationConfig"].(map[string]any)["thinkingConfig"].(map[string]any)
	assert.Equal(t, "low", cfg["thinkingLevel"])

	high := a.BuildPayload(&claudetypes.Request{Model: "gemini-3-pro", Thinking: &claudetypes.Thinking{BudgetTokens: 20000}}, nil, nil)
	cfg2 := high["generationConfig"].(map[string]any)["thinkingConfig"].(map[string]any)
	assert.Equal(t, "high", cfg2["thinkingLevel"])
}

func TestGemini_ThinkingBudgetCapFor25(t *testing.T) {
	a := NewGemini(false)
	body := a.BuildPayload(&claudetypes.Request{Model: "gemini-2.5-pro", Thinking: &claudetypes.Thinking{BudgetTokens: 50000}}, nil, nil)
	cfg := body["generationConfig"].(map[string]any)["thinkingConfig"].(map[string]any)
	assert.Equal(t, geminiThinkingBudgetCap, cfg["thinkingBudget"])
}
