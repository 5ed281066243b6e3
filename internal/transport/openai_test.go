package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenAI_CodexRoutesToResponses(t *testing.T) {
	tr := NewOpenAI("", "key")
	assert.Equal(t, "https://api.openai.com/v1/responses", tr.Endpoint("codex-mini"))
	assert.Equal(t, StreamOpenAIResponsesSSE, tr.StreamFormatFor("codex-mini"))
}

func TestOpenAI_ChatDefault(t *testing.T) {
	tr := NewOpenAI("", "key")
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", tr.Endpoint("gpt-4o"))
	assert.Equal(t, StreamOpenAISSE, tr.StreamFormatFor("gpt-4o"))
}

func TestGemini_Endpoint(t *testing.T) {
	tr := NewGemini("", "key")
	assert.Contains(t, tr.Endpoint("gemini-2.5-pro"), "streamGenerateContent?alt=sse")
}
