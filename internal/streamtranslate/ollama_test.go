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

func TestOllama_AccumulatesContentUntilDone(t *testing.T) {
	upstream := `{"message":{"content":"hel"},"done":false}` + "\n" +
		`{"message":{"content":"lo"},"done":false}` + "\n" +
		`{"message":{"content":""},"done":true,"prompt_eval_count":5,"eval_count":2}` + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "ollama/llama3.2")
	var gotInput, gotOutput int
	state.OnTokenUpdate = func(input, output int) { gotInput, gotOutput = input, output }
	ad := adapter.NewOpenAIChat(nil)

	err := Ollama(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	body := rec.Body.String()
	assert.Contains(t, body, `"text":"hel"`)
	assert.Contains(t, body, `"text":"lo"`)
	assert.Contains(t, body, `"stop_reason":"end_turn"`)
	assert.Equal(t, 5, gotInput)
	assert.Equal(t, 2, gotOutput)
}

func TestOllama_SkipsBlankLines(t *testing.T) {
	upstream := "\n" + `{"message":{"content":"ok"},"done":true,"prompt_eval_count":1,"eval_count":1}` + "\n" + "\n"

	rec := httptest.NewRecorder()
	w := ssewriter.New(rec)
	state := NewState(w, "msg_1", "ollama/llama3.2")
	ad := adapter.NewOpenAIChat(nil)

	err := Ollama(strings.NewReader(upstream), state, ad)
	require.NoError(t, err)
	w.Close()

	assert.Contains(t, rec.Body.String(), `"text":"ok"`)
}
