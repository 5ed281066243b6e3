package streamtranslate

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbridge/gateway/internal/adapter"
	"github.com/modelbridge/gateway/internal/ssewriter"
)

func TestOpenAIResponses_TextDelta(t *testing.T) {
	upstream := `data: {"type":"response.output_text.delta","delta":"hel"}` + "\n" +
		`data: {"type":"response.output_text.delta","delta":"lo"}` + "\n" +
		`data: {"type":"response.completed","response":{"usage":{"input_tokens":7,"output_tokens":2}}}` + "\n" +
		`data: [DONE]` + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "codex-mini")
	var gotInput, gotOutput int
	state.OnTokenUpdate = func(input, output int) { gotInput, gotOutput = input, output }
	ad := adapter.NewOpenAIResponses()

	err := OpenAIResponses(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	body := rec.Body.String()
	assert.Contains(t, body, `"text":"hel"`)
	assert.Contains(t, body, `"text":"lo"`)
	assert.Contains(t, body, `"stop_reason":"end_turn"`)
	assert.Equal(t, 7, gotInput)
	assert.Equal(t, 2, gotOutput)
}

func TestOpenAIResponses_FunctionCallBecomesToolUse(t *testing.T) {
	upstream := `data: {"type":"response.output_item.added","item":{"type":"function_call","id":"item_1","call_id":"fc_abc","name":"lookup"}}` + "\n" +
		`data: {"type":"response.function_call_arguments.delta","item_id":"item_1","delta":"{\"q\":"}` + "\n" +
		`data: {"type":"response.function_call_arguments.delta","item_id":"item_1","delta":"\"x\"}"}` + "\n" +
		`data: {"type":"response.output_item.done","item_id":"item_1","item":{"type":"function_call","id":"item_1","call_id":"fc_abc"}}` + "\n" +
		`data: {"type":"response.completed","response":{"usage":{"input_tokens":4,"output_tokens":1}}}` + "\n" +
		`data: [DONE]` + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "codex-mini")
	ad := adapter.NewOpenAIResponses()

	err := OpenAIResponses(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"tool_use"`)
	assert.Contains(t, body, `"id":"toolu_abc"`)
	assert.Contains(t, body, `"name":"lookup"`)
	assert.Contains(t, body, `"stop_reason":"tool_use"`)
}

func TestOpenAIResponses_CallIDAlreadyClaudeShaped(t *testing.T) {
	assert.Equal(t, "toolu_xyz", claudeToolIDFor("toolu_xyz"))
	assert.Equal(t, "toolu_xyz", claudeToolIDFor("fc_xyz"))
	assert.Equal(t, "toolu_xyz", claudeToolIDFor("xyz"))
}

func TestOpenAIResponses_ErrorEventEmitsInlineTextThenCleanFinalize(t *testing.T) {
	upstream := `data: {"type":"response.output_text.delta","delta":"partial"}` + "\n" +
		`data: {"type":"error"}` + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "codex-mini")
	ad := adapter.NewOpenAIResponses()

	err := OpenAIResponses(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	body := rec.Body.String()
	assert.Contains(t, body, "partial")
	assert.Contains(t, body, "Stream error")
	assert.Contains(t, body, `"stop_reason":"end_turn"`)
	assert.Contains(t, body, "message_stop")
}

func TestOpenAIResponses_DoneSentinelStopsScan(t *testing.T) {
	upstream := `data: [DONE]` + "\n" +
		`data: {"type":"response.output_text.delta","delta":"should not appear"}` + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "codex-mini")
	ad := adapter.NewOpenAIResponses()

	err := OpenAIResponses(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	assert.NotContains(t, rec.Body.String(), "should not appear")
}
