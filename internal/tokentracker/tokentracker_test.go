package tokentracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandard_StoresLatestInputAccumulatesOutput(t *testing.T) {
	tr := New(StrategyStandard, "openai", "gpt-4o", 128_000, 9999, false)
	tr.Update(100, 10, 0)
	tr.Update(150, 20, 0)

	in, out, _ := tr.Snapshot()
	assert.EqualValues(t, 150, in)
	assert.EqualValues(t, 30, out)
}

func TestAccumulateBoth_SumsAcrossUpdates(t *testing.T) {
	tr := New(StrategyAccumulateBoth, "openai", "gpt-4o", 128_000, 9999, false)
	tr.Update(100, 10, 0)
	tr.Update(50, 5, 0)

	in, out, _ := tr.Snapshot()
	assert.EqualValues(t, 150, in)
	assert.EqualValues(t, 15, out)
}

func TestDeltaAwareChargedInput_GrowingConversation(t *testing.T) {
	assert.Equal(t, 400, DeltaAwareChargedInput(1000, 1400))
}

func TestDeltaAwareChargedInput_FreshConcurrentSession(t *testing.T) {
	assert.Equal(t, 200, DeltaAwareChargedInput(1000, 200))
}

func TestLocal_NeverAccruesCost(t *testing.T) {
	tr := New(StrategyLocal, "ollama", "llama3.2", 32768, 9999, true)
	tr.Update(1_000_000, 500_000, 0)

	_, _, cost := tr.Snapshot()
	assert.Zero(t, cost)
}

func TestActualCost_PrefersUpstreamFigure(t *testing.T) {
	tr := New(StrategyActualCost, "openai", "gpt-4o", 128_000, 9999, false)
	tr.Update(100, 10, 0.0042)

	_, _, cost := tr.Snapshot()
	assert.Equal(t, 0.0042, cost)
}

func TestUpdate_WritesStatusFileAtomically(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tr := New(StrategyStandard, "gemini", "gemini-2.5-pro", 1_000_000, 4317, false)
	tr.Update(500, 50, 0)

	path := filepath.Join(home, ".claudish", "tokens-4317.json")
	body, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap statusSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.EqualValues(t, 500, snap.InputTokens)
	assert.EqualValues(t, 50, snap.OutputTokens)
	assert.EqualValues(t, 550, snap.TotalTokens)
	assert.Equal(t, "gemini", snap.ProviderName)
	assert.NotZero(t, snap.ContextLeftPercent)
}

func TestSetContextWindow_AffectsContextLeftPercent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tr := New(StrategyStandard, "ollama", "llama3.2", 0, 4318, true)
	tr.SetContextWindow(1000)
	tr.Update(500, 0, 0)

	path := filepath.Join(home, ".claudish", "tokens-4318.json")
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap statusSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, 50.0, snap.ContextLeftPercent)
}
