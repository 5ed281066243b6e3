package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenRouter_FixedEndpointAndBearerAuth(t *testing.T) {
	tr := NewOpenRouter("sk-or-key")
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", tr.Endpoint("anthropic/claude-sonnet-4-5"))
	assert.Equal(t, StreamOpenAISSE, tr.StreamFormat())
	h, err := tr.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-or-key", h.Get("Authorization"))
}

func TestNewPoe_FixedEndpointAndBearerAuth(t *testing.T) {
	tr := NewPoe("poe-key")
	assert.Equal(t, "https://api.poe.com/v1/chat/completions", tr.Endpoint("claude-sonnet-4-5"))
	h, err := tr.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer poe-key", h.Get("Authorization"))
}

func TestNewLiteLLM_DefaultsBaseURLWhenEmpty(t *testing.T) {
	tr := NewLiteLLM("", "")
	assert.Equal(t, "http://localhost:4000/v1/chat/completions", tr.Endpoint("gpt-4o"))
}

func TestNewLiteLLM_OmitsAuthHeaderWhenNoAPIKey(t *testing.T) {
	tr := NewLiteLLM("http://litellm.internal:4000", "")
	h, err := tr.Headers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.Get("Authorization"))
}

func TestNewLiteLLM_SetsBearerWhenAPIKeyPresent(t *testing.T) {
	tr := NewLiteLLM("http://litellm.internal:4000", "sk-litellm")
	h, err := tr.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-litellm", h.Get("Authorization"))
	assert.Equal(t, "http://litellm.internal:4000/v1/chat/completions", tr.Endpoint("anything"))
}
