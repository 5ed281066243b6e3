package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrok_ExtractsCompleteFunctionCall(t *testing.T) {
	a := NewGrok()
	cleaned, transformed := a.ProcessTextContent(`before <xai:function_call name="lookup">{"q":"x"}</xai:function_call> after`, "")
	assert.True(t, transformed)
	assert.Equal(t, "before  after", cleaned)

	calls := a.PendingToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)
	assert.Equal(t, `{"q":"x"}`, calls[0].Arguments)
}

func TestGrok_HoldsBackPartialTagAcrossChunks(t *testing.T) {
	a := NewGrok()

	cleaned1, transformed1 := a.ProcessTextContent(`hi <xai:function_call name="look`, "")
	assert.False(t, transformed1)
	assert.Equal(t, "hi ", cleaned1)
	assert.Empty(t, a.PendingToolCalls())

	cleaned2, transformed2 := a.ProcessTextContent(`up">{"q":"x"}</xai:function_call> done`, "hi ")
	assert.True(t, transformed2)
	assert.Equal(t, " done", cleaned2)

	calls := a.PendingToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)
}

func TestGrok_PlainTextPassesThroughUnmodified(t *testing.T) {
	a := NewGrok()
	cleaned, transformed := a.ProcessTextContent("just some text", "")
	assert.False(t, transformed)
	assert.Equal(t, "just some text", cleaned)
	assert.Empty(t, a.PendingToolCalls())
}

func TestGrok_ResetClearsBufferAndPending(t *testing.T) {
	a := NewGrok()
	a.ProcessTextContent(`<xai:function_call name="x">{}</xai:function_call>`, "")
	a.Reset()
	assert.Empty(t, a.buffer)
	assert.Empty(t, a.pending)
}
