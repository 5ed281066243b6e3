// Package adapter implements the per-model-family request/response
// translators: converting the canonical claudetypes.Request into each
// upstream's wire format, and post-processing streamed text on the
// way back out.
package adapter

import (
	"strings"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// Adapter is the interface every model-family translator implements.
// A Handler owns exactly one Adapter instance for its lifetime.
type Adapter interface {
	// Reset clears any per-request scratch state (not the long-lived
	// ToolNameMap/ThoughtSignatureMap, which persist across requests).
	Reset()

	// ConvertMessages translates claudetypes messages into the
	// upstream's message/content shape.
	ConvertMessages(req *claudetypes.Request) (any, error)

	// ConvertTools translates claudetypes tools into the upstream's
	// tool-schema shape.
	ConvertTools(req *claudetypes.Request) (any, error)

	// BuildPayload assembles the full request body from the converted
	// messages/tools plus sampling parameters.
	BuildPayload(req *claudetypes.Request, messages, tools any) map[string]any

	// PrepareRequest is the last-chance mutation point: truncating
	// tool names that exceed a provider limit (recording the mapping),
	// stripping cloud-only fields for local providers, etc.
	PrepareRequest(body map[string]any, req *claudetypes.Request)

	// ProcessTextContent post-processes one streamed text fragment,
	// given the accumulated text seen so far for that block. Most
	// adapters are the identity function here.
	ProcessTextContent(chunk, accumulated string) (cleaned string, wasTransformed bool)

	// RegisterToolCall records a tool call and (for Gemini) its
	// thought signature, for replay on a later turn.
	RegisterToolCall(id, name, signature string)

	// ContextWindow returns the static, compile-time-tabled context
	// window for the resolved model name.
	ContextWindow(model string) int

	// SupportsVision reports whether this adapter's upstream accepts
	// image_url/inlineData content.
	SupportsVision(model string) bool

	// ToolNames exposes the adapter's ToolNameMap so the stream
	// translator can resolve provider-truncated names back to the
	// client's originals.
	ToolNames() *claudetypes.ToolNameMap
}

// contextWindowTable is the compile-time model-name-substring table
// shared by every adapter whose provider doesn't discover its window
// at runtime (Local overrides this via Transport).
var contextWindowTable = []struct {
	substr string
	window int
}{
	{"grok-4.1-fast", 2_000_000},
	{"kimi-k2.5", 262_144},
	{"kimi-k2", 131_072},
	{"gemini-3", 1_000_000},
	{"gemini-", 1_000_000},
	{"gpt-5", 256_000},
	{"o1", 200_000},
	{"o3", 200_000},
	{"gpt-4o", 128_000},
	{"gpt-4-turbo", 128_000},
	{"gpt-3.5", 16_385},
	{"grok-4", 256_000},
	{"grok-3", 131_072},
	{"grok-", 131_072},
	{"glm-4.6", 200_000},
	{"glm-4.5", 128_000},
	{"glm-", 128_000},
}

// defaultContextWindow is used when no substring in the table matches.
const defaultContextWindow = 128_000

// lookupContextWindow implements the shared substring table.
func lookupContextWindow(model string) int {
	lower := strings.ToLower(model)
	for _, entry := range contextWindowTable {
		if strings.Contains(lower, entry.substr) {
			return entry.window
		}
	}
	return defaultContextWindow
}
