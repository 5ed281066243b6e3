package adapter

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// thoughtSignatureMap maps a tool_use id to the {name, signature}
// Gemini requires echoed back on the turn that supplies its
// tool_result. Owned by one Gemini adapter instance and explicitly
// never reset between requests: lifetime = Handler.
type thoughtSignatureMap struct {
	mu      sync.Mutex
	entries map[string]claudetypes.ThoughtSignatureEntry
}

func newThoughtSignatureMap() *thoughtSignatureMap {
	return &thoughtSignatureMap{entries: make(map[string]claudetypes.ThoughtSignatureEntry)}
}

func (m *thoughtSignatureMap) record(id, name, signature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = claudetypes.ThoughtSignatureEntry{Name: name, Signature: signature}
}

// lookup returns the recorded entry and whether one exists. Missing
// entries are the caller's cue to substitute the sentinel value rather
// than omit the signature outright.
func (m *thoughtSignatureMap) lookup(id string) (claudetypes.ThoughtSignatureEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e, ok
}

// Gemini translates claudetypes requests into the Generative Language
// API's contents/parts wire format.
type Gemini struct {
	toolNames       *claudetypes.ToolNameMap
	signatures      *thoughtSignatureMap
	rejectSentinel  bool // GATEWAY_GEMINI_REJECT_SENTINEL opt-out
	inReasoningBlock bool
}

// NewGemini constructs the adapter. rejectSentinel, when true, makes
// the adapter omit a functionCall's thoughtSignature entirely instead
// of substituting claudetypes.SentinelSignature, for deployments that
// reject the sentinel outright.
func NewGemini(rejectSentinel bool) *Gemini {
	return &Gemini{toolNames: claudetypes.NewToolNameMap(), signatures: newThoughtSignatureMap(), rejectSentinel: rejectSentinel}
}

// Reset clears only per-stream scratch state; the ThoughtSignatureMap
// and ToolNameMap persist across requests by design.
func (a *Gemini) Reset() { a.inReasoningBlock = false }

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	InlineData       *geminiInlineData   `json:"inlineData,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResponse `json:"functionResponse,omitempty"`
	ThoughtSignature string              `json:"thoughtSignature,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiFunctionCall struct {
	Name string `json:"name"`
	Args any    `json:"args"`
}

type geminiFuncResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// reasoningSuppressionDirective is appended to the system instruction
// so Gemini doesn't leak its chain-of-thought as visible text; the
// stream translator's reasoning filter is a second line of defense for
// whatever slips through anyway.
const reasoningSuppressionDirective = "\n\nDo not narrate your step-by-step reasoning in the final answer; respond with the answer only."

func (a *Gemini) ConvertMessages(req *claudetypes.Request) (any, error) {
	var contents []geminiContent
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		var parts []geminiPart
		for _, b := range msg.ContentBlocks() {
			switch b.Type {
			case "text":
				parts = append(parts, geminiPart{Text: b.Text})
			case "image":
				if b.Source != nil {
					parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: b.Source.MediaType, Data: b.Source.Data}})
				}
			case "tool_use":
				sig := a.signatureFor(b.ID)
				parts = append(parts, geminiPart{
					FunctionCall:     &geminiFunctionCall{Name: truncateToolName(a.toolNames, b.Name), Args: b.Input},
					ThoughtSignature: sig,
				})
			case "tool_result":
				entry, ok := a.signatures.lookup(b.ToolUseID)
				name := b.ToolUseID
				if ok {
					name = entry.Name
				}
				parts = append(parts, geminiPart{FunctionResponse: &geminiFuncResponse{
					Name:     name,
					Response: map[string]any{"content": b.Content},
				}})
			}
		}
		if len(parts) > 0 {
			contents = append(contents, geminiContent{Role: role, Parts: parts})
		}
	}
	return contents, nil
}

// signatureFor returns the thoughtSignature to attach to a replayed
// functionCall: the recorded one if known, the sentinel otherwise
// (unless rejectSentinel opts out, in which case it's omitted).
func (a *Gemini) signatureFor(toolUseID string) string {
	if entry, ok := a.signatures.lookup(toolUseID); ok {
		return entry.Signature
	}
	if a.rejectSentinel {
		return ""
	}
	return claudetypes.SentinelSignature
}

type geminiFunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

func (a *Gemini) ConvertTools(req *claudetypes.Request) (any, error) {
	if len(req.Tools) == 0 {
		return nil, nil
	}
	decls := make([]geminiFunctionDecl, 0, len(req.Tools))
	for _, t := range req.Tools {
		decls = append(decls, geminiFunctionDecl{
			Name:        truncateToolName(a.toolNames, t.Name),
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	return []map[string]any{{"functionDeclarations": decls}}, nil
}

// geminiThinkingBudgetCap is the ceiling applied to gemini-2.5's
// thinkingBudget.
const geminiThinkingBudgetCap = 24576

// geminiThinkingLevelThreshold is the budget_tokens boundary at which
// gemini-3* switches from thinkingLevel "low" to "high".
const geminiThinkingLevelThreshold = 16000

func (a *Gemini) BuildPayload(req *claudetypes.Request, messages, tools any) map[string]any {
	genConfig := map[string]any{}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.Thinking != nil {
		if strings.HasPrefix(req.Model, "gemini-3") {
			level := "low"
			if req.Thinking.BudgetTokens >= geminiThinkingLevelThreshold {
				level = "high"
			}
			genConfig["thinkingConfig"] = map[string]any{"thinkingLevel": level}
		} else {
			budget := req.Thinking.BudgetTokens
			if budget > geminiThinkingBudgetCap {
				budget = geminiThinkingBudgetCap
			}
			genConfig["thinkingConfig"] = map[string]any{"thinkingBudget": budget}
		}
	}

	body := map[string]any{
		"contents":         messages,
		"generationConfig": genConfig,
	}
	if tools != nil {
		body["tools"] = tools
	}
	if sys := req.SystemText(); sys != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": sys + reasoningSuppressionDirective}},
		}
	}
	return body
}

func (a *Gemini) PrepareRequest(body map[string]any, req *claudetypes.Request) {}

// reasoningLeakPatterns catch lines of leaked Gemini monologue the
// upstream occasionally emits as visible text instead of a thought
// part.
var reasoningLeakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(wait,?\s+i'?m|let me think|let's think|okay,? so|first,? i)`),
	regexp.MustCompile(`(?i)^\s*\d+[.)]\s`),
	regexp.MustCompile(`(?i)^\s*because\b`),
}

// ProcessTextContent implements the Gemini reasoning filter: it
// suppresses leaked monologue line by line, latching into
// inReasoningBlock until a long (>=20 char) non-continuation line
// appears.
func (a *Gemini) ProcessTextContent(chunk, accumulated string) (string, bool) {
	lines := strings.Split(chunk, "\n")
	var kept []string
	transformed := false
	for _, line := range lines {
		if a.inReasoningBlock {
			if len(strings.TrimSpace(line)) >= 20 && !matchesAny(reasoningLeakPatterns, line) {
				a.inReasoningBlock = false
				kept = append(kept, line)
			} else {
				transformed = true
			}
			continue
		}
		if matchesAny(reasoningLeakPatterns, line) {
			a.inReasoningBlock = true
			transformed = true
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), transformed
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// RegisterToolCall is invoked by the Gemini stream translator whenever
// a functionCall part is seen, recording its thoughtSignature for
// replay on a later turn.
func (a *Gemini) RegisterToolCall(id, name, signature string) {
	a.signatures.record(id, name, signature)
}

func (a *Gemini) ContextWindow(model string) int { return lookupContextWindow(model) }

func (a *Gemini) SupportsVision(model string) bool { return true }

func (a *Gemini) ToolNames() *claudetypes.ToolNameMap { return a.toolNames }
