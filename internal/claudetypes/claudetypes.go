// Package claudetypes defines the canonical internal request/response
// shapes every Adapter consumes and produces: the normalized form of
// an incoming Anthropic Messages API payload, and the handful of
// lookup tables (tool name map, thought signature map) adapters own
// across the lifetime of a Handler.
package claudetypes

import "encoding/json"

// Request is the canonical form of an incoming Anthropic Messages API
// payload, after normalizing the system field and stripping anything
// the gateway itself doesn't forward.
type Request struct {
	Model       string          `json:"model"`
	System      json.RawMessage `json:"system,omitempty"`
	Messages    []Message       `json:"messages"`
	Tools       []Tool          `json:"tools,omitempty"`
	ToolChoice  *ToolChoice     `json:"tool_choice,omitempty"`
	Thinking    *Thinking       `json:"thinking,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

// Message is one turn in the conversation. Content is either a plain
// string or an array of Block, matching the Anthropic wire format.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Block is the universal content block shape: every field is
// omitempty so one struct covers text/image/tool_use/tool_result/
// thinking without four separate types.
type Block struct {
	Type      string       `json:"type"`
	Text      string       `json:"text,omitempty"`
	Source    *ImageSource `json:"source,omitempty"`
	ID        string       `json:"id,omitempty"`
	Name      string       `json:"name,omitempty"`
	Input     any          `json:"input,omitempty"`
	ToolUseID string       `json:"tool_use_id,omitempty"`
	Content   any          `json:"content,omitempty"`
	Signature string       `json:"signature,omitempty"`
}

// ImageSource carries an inline base64-encoded image as the Anthropic
// wire format represents it.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Tool is a client-declared function the model may call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoice constrains which, if any, tool the model must call.
type ToolChoice struct {
	Type string `json:"type"` // "auto" | "none" | "tool"
	Name string `json:"name,omitempty"`
}

// Thinking requests extended reasoning with a token budget.
type Thinking struct {
	Type         string `json:"type,omitempty"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// SystemText flattens the Request's System field, which may arrive as
// a bare string or as an array of {type:"text", text} blocks, into a
// single string. Adapters that need one system message use this;
// adapters that preserve the array pass System through untouched.
func (r *Request) SystemText() string {
	if len(r.System) == 0 {
		return ""
	}
	var asString string
	if json.Unmarshal(r.System, &asString) == nil {
		return asString
	}
	var asBlocks []Block
	if json.Unmarshal(r.System, &asBlocks) == nil {
		out := ""
		for _, b := range asBlocks {
			out += b.Text
		}
		return out
	}
	return ""
}

// ContentBlocks normalizes a Message's Content into a []Block
// regardless of whether the client sent a bare string or an array.
func (m *Message) ContentBlocks() []Block {
	if len(m.Content) == 0 {
		return nil
	}
	var asString string
	if json.Unmarshal(m.Content, &asString) == nil {
		if asString == "" {
			return nil
		}
		return []Block{{Type: "text", Text: asString}}
	}
	var asBlocks []Block
	if json.Unmarshal(m.Content, &asBlocks) == nil {
		return asBlocks
	}
	return nil
}

// ToolNameMap records provider-truncated tool names against the
// originals the client declared, so a streamer can recover the real
// name before emitting content_block_start. Owned by one Adapter
// instance, lifetime = Handler.
type ToolNameMap struct {
	entries map[string]string // truncated -> original
}

// NewToolNameMap constructs an empty map.
func NewToolNameMap() *ToolNameMap {
	return &ToolNameMap{entries: make(map[string]string)}
}

// Register records that truncated stands in for original. A no-op
// when they're equal, so callers can register unconditionally.
func (m *ToolNameMap) Register(truncated, original string) {
	if truncated == original {
		return
	}
	m.entries[truncated] = original
}

// Resolve returns the original name for a possibly-truncated one,
// falling back to the input unchanged when no mapping was recorded.
func (m *ToolNameMap) Resolve(name string) string {
	if orig, ok := m.entries[name]; ok {
		return orig
	}
	return name
}

// ThoughtSignatureEntry is one ThoughtSignatureMap record.
type ThoughtSignatureEntry struct {
	Name      string
	Signature string
}

// SentinelSignature is substituted when a Gemini functionCall must be
// replayed but no real thoughtSignature was ever captured for it.
const SentinelSignature = "skip_thought_signature_validator"

// knownRequestFields are the top-level JSON keys this gateway
// understands and forwards in some form. Anything else present in an
// incoming request body is accepted (never a 400) but reported back to
// the caller via the X-Dropped-Params response header.
var knownRequestFields = map[string]bool{
	"model": true, "system": true, "messages": true, "tools": true,
	"tool_choice": true, "thinking": true, "temperature": true,
	"max_tokens": true, "stream": true,
	// Accepted and silently ignored rather than reported as dropped:
	// these travel with every real Anthropic client request but the
	// gateway has no equivalent upstream knob for them yet.
	"anthropic_version": true, "anthropic_beta": true, "metadata": true,
}

// DecodeRequest parses a raw Messages API request body into a Request
// and reports which top-level fields it does not understand or
// forward, so the Handler can surface them via X-Dropped-Params
// instead of silently discarding a parameter the caller expected to
// take effect.
func DecodeRequest(body []byte) (*Request, []string, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, err
	}

	var dropped []string
	for key := range raw {
		if !knownRequestFields[key] {
			dropped = append(dropped, key)
		}
	}
	return &req, dropped, nil
}
