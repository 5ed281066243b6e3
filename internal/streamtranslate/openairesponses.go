package streamtranslate

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/modelbridge/gateway/internal/adapter"
)

type responsesEvent struct {
	Type string `json:"type"`
	Delta string `json:"delta"`
	// ItemID is the top-level item_id OpenAI attaches to
	// response.function_call_arguments.delta/.done events; it is a
	// sibling of "item", not a field inside it.
	ItemID string `json:"item_id"`
	Item  struct {
		Type   string `json:"type"`
		CallID string `json:"call_id"`
		ID     string `json:"id"`
		Name   string `json:"name"`
	} `json:"item"`
	Response struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"response"`
}

// claudeToolIDFor computes the Claude tool id for an upstream call_id,
// reusing it unchanged if it already looks like one.
func claudeToolIDFor(callID string) string {
	if strings.HasPrefix(callID, "toolu_") {
		return callID
	}
	return "toolu_" + strings.TrimPrefix(callID, "fc_")
}

// OpenAIResponses consumes OpenAI's Responses API SSE event stream
// (Codex models).
func OpenAIResponses(body io.Reader, state *State, ad adapter.Adapter) error {
	if err := state.Start(); err != nil {
		return err
	}

	stopReason := "end_turn"
	// maps item_id (or call_id) to the Claude tool id
	activeCalls := map[string]string{}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var ev responsesEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "response.output_text.delta", "response.reasoning_summary_text.delta":
			cleaned, _ := ad.ProcessTextContent(ev.Delta, state.accumulatedText)
			state.accumulatedText += cleaned
			idx, err := state.ensureText()
			if err != nil {
				return err
			}
			if err := state.w.ContentBlockDelta(idx, textDeltaPayload(cleaned)); err != nil {
				return err
			}
		case "response.output_item.added":
			if ev.Item.Type != "function_call" {
				continue
			}
			stopReason = "tool_use"
			claudeID := claudeToolIDFor(ev.Item.CallID)
			key := ev.Item.ID
			if key == "" {
				key = ev.Item.CallID
			}
			activeCalls[key] = claudeID
			name := ad.ToolNames().Resolve(ev.Item.Name)
			if _, err := state.openToolCall(claudeID, name); err != nil {
				return err
			}
		case "response.function_call_arguments.delta":
			key := ev.ItemID
			if key == "" {
				key = ev.Item.ID
			}
			if key == "" {
				key = ev.Item.CallID
			}
			claudeID, ok := activeCalls[key]
			if !ok {
				continue
			}
			tc, ok := state.toolCalls[claudeID]
			if !ok {
				continue
			}
			if err := state.w.ContentBlockDelta(tc.blockIndex, inputJSONDeltaPayload(ev.Delta)); err != nil {
				return err
			}
		case "response.output_item.done":
			if ev.Item.Type != "function_call" {
				continue
			}
			key := ev.ItemID
			if key == "" {
				key = ev.Item.ID
			}
			if key == "" {
				key = ev.Item.CallID
			}
			if claudeID, ok := activeCalls[key]; ok {
				if err := state.closeToolCall(claudeID); err != nil {
					return err
				}
			}
		case "response.completed", "response.done", "response.incomplete":
			state.reportUsage(ev.Response.Usage.InputTokens, ev.Response.Usage.OutputTokens)
		case "error", "response.failed":
			if err := state.emitInlineError("upstream stream error"); err != nil {
				return err
			}
			return state.Finalize("end_turn")
		}
	}

	return state.Finalize(stopReason)
}

// emitInlineError surfaces an upstream stream error as an inline text
// block, then lets the caller finalize normally so the client still
// sees a well-formed end of stream.
func (s *State) emitInlineError(message string) error {
	for id := range s.toolCalls {
		if err := s.closeToolCall(id); err != nil {
			return err
		}
	}
	idx, err := s.ensureText()
	if err != nil {
		return err
	}
	return s.w.ContentBlockDelta(idx, textDeltaPayload("[Stream error: "+message+"]"))
}
