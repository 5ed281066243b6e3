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

func TestGemini_TextAndUsage(t *testing.T) {
	upstream := `data: {"candidates":[{"content":{"parts":[{"text":"hi there"}]}}]}` + "\n" +
		`data: {"candidates":[{"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":3}}` + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "gemini-2.5-pro")
	var gotInput, gotOutput int
	state.OnTokenUpdate = func(input, output int) { gotInput, gotOutput = input, output }
	ad := adapter.NewGemini(false)

	err := Gemini(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	body := rec.Body.String()
	assert.Contains(t, body, `"text":"hi there"`)
	assert.Contains(t, body, `"stop_reason":"end_turn"`)
	assert.Equal(t, 10, gotInput)
	assert.Equal(t, 3, gotOutput)
}

func TestGemini_FunctionCallBecomesToolUse(t *testing.T) {
	upstream := `data: {"candidates":[{"content":{"parts":[{"functionCall":{"name":"lookup","args":{"q":"x"}}}]}}]}` + "\n" +
		`data: {"candidates":[{"finishReason":"STOP"}]}` + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "gemini-2.5-pro")
	ad := adapter.NewGemini(false)

	err := Gemini(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"tool_use"`)
	assert.Contains(t, body, `"name":"lookup"`)
	assert.Contains(t, body, `"stop_reason":"tool_use"`)
}

func TestGemini_UnwrapsCodeAssistEnvelope(t *testing.T) {
	upstream := `data: {"response":{"candidates":[{"content":{"parts":[{"text":"wrapped"}]}}]}}` + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "gemini-2.5-pro")
	ad := adapter.NewGemini(false)

	err := Gemini(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	assert.Contains(t, rec.Body.String(), `"text":"wrapped"`)
}
