package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbridge/gateway/internal/resolver"
)

func TestResolveTarget_RoleMapSubstringMatch(t *testing.T) {
	r := New(Config{RoleMap: map[string]string{"opus": "oai@gpt-4o", "haiku": "ollama/llama3.2"}}, resolver.Env{})
	assert.Equal(t, "oai@gpt-4o", r.ResolveTarget("claude-opus-4-1-20250805"))
	assert.Equal(t, "ollama/llama3.2", r.ResolveTarget("claude-haiku-4-5-20251001"))
}

func TestResolveTarget_FallsBackToDefaultThenVerbatim(t *testing.T) {
	r := New(Config{DefaultTarget: "oai@gpt-4o"}, resolver.Env{})
	assert.Equal(t, "oai@gpt-4o", r.ResolveTarget("claude-sonnet-4-5-20250929"))

	r2 := New(Config{}, resolver.Env{})
	assert.Equal(t, "claude-sonnet-4-5-20250929", r2.ResolveTarget("claude-sonnet-4-5-20250929"))
}

func TestNormalizeTarget_PoeShorthand(t *testing.T) {
	assert.Equal(t, "poe@Claude-Opus-4", normalizeTarget("poe:Claude-Opus-4"))
	assert.Equal(t, "oai@gpt-4o", normalizeTarget("oai@gpt-4o"))
}

func TestHandlerFor_NativeAnthropicIsCached(t *testing.T) {
	r := New(Config{}, resolver.Env{})
	h1, err := r.HandlerFor(context.Background(), "claude-sonnet-4-5-20250929")
	require.NoError(t, err)
	h2, err := r.HandlerFor(context.Background(), "claude-sonnet-4-5-20250929")
	require.NoError(t, err)
	assert.Same(t, h1, h2)
}

func TestHandlerFor_DirectAPIMissingKeyNoFallbackErrors(t *testing.T) {
	r := New(Config{}, resolver.Env{})
	_, err := r.HandlerFor(context.Background(), "oai@gpt-4o")
	assert.Error(t, err)
}

func TestHandlerFor_DirectAPIMissingKeyFallsBackToOpenRouter(t *testing.T) {
	env := resolver.Env{"OPENROUTER_API_KEY": "or-test-key"}
	r := New(Config{}, env)
	h, err := r.HandlerFor(context.Background(), "oai@gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", h.ProviderName)
}

func TestHandlerFor_DirectAPIWithKeySucceeds(t *testing.T) {
	env := resolver.Env{"OPENAI_API_KEY": "sk-test"}
	r := New(Config{}, env)
	h, err := r.HandlerFor(context.Background(), "oai@gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", h.ProviderName)
	assert.Equal(t, "gpt-4o", h.TargetModel)
}

func TestHandlerFor_LocalNeedsNoCredential(t *testing.T) {
	r := New(Config{}, resolver.Env{})
	h, err := r.HandlerFor(context.Background(), "ollama/llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "ollama", h.ProviderName)
	assert.Equal(t, "llama3.2", h.TargetModel)
}
