package streamtranslate

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/modelbridge/gateway/internal/adapter"
)

// grokToolCallSource is implemented by adapters (Grok) that pull
// structured tool calls out of their own text stream instead of the
// provider's native tool_calls delta field.
type grokToolCallSource interface {
	PendingToolCalls() []adapter.GrokToolCall
}

type openaiChatChunk struct {
	Choices []struct {
		Delta struct {
			Content         string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls       []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// OpenAIChat consumes the OpenAI chat-completions SSE format and
// drives state accordingly. toolIndexToID maps the upstream's numeric
// tool_calls[].index to the Claude tool id derived the first time that
// index's id field arrived: the upstream id with a "toolu_" prefix
// added unless it already has one.
func OpenAIChat(body io.Reader, state *State, ad adapter.Adapter) error {
	if err := state.Start(); err != nil {
		return err
	}

	toolIndexToID := map[int]string{}
	stopReason := "end_turn"

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

		var chunk openaiChatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // malformed chunk: skip rather than abort the stream
		}

		if chunk.Usage != nil {
			state.reportUsage(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.ReasoningContent != "" {
				idx, err := state.ensureThinking()
				if err != nil {
					return err
				}
				if err := state.w.ContentBlockDelta(idx, thinkingDeltaPayload(choice.Delta.ReasoningContent)); err != nil {
					return err
				}
			}
			if choice.Delta.Content != "" {
				cleaned, _ := ad.ProcessTextContent(choice.Delta.Content, state.accumulatedText)
				state.accumulatedText += cleaned
				idx, err := state.ensureText()
				if err != nil {
					return err
				}
				if err := state.w.ContentBlockDelta(idx, textDeltaPayload(cleaned)); err != nil {
					return err
				}
			}
			if src, ok := ad.(grokToolCallSource); ok {
				for _, call := range src.PendingToolCalls() {
					name := ad.ToolNames().Resolve(call.Name)
					id := "toolu_" + strings.ReplaceAll(uuid.New().String(), "-", "")
					if _, err := state.openToolCall(id, name); err != nil {
						return err
					}
					if err := state.w.ContentBlockDelta(state.toolCalls[id].blockIndex, inputJSONDeltaPayload(call.Arguments)); err != nil {
						return err
					}
					if err := state.closeToolCall(id); err != nil {
						return err
					}
					stopReason = "tool_use"
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				id, ok := toolIndexToID[tc.Index]
				if !ok && tc.ID != "" {
					id = tc.ID
					if !strings.HasPrefix(id, "toolu_") {
						id = "toolu_" + id
					}
					toolIndexToID[tc.Index] = id
					name := ad.ToolNames().Resolve(tc.Function.Name)
					if _, err := state.openToolCall(id, name); err != nil {
						return err
					}
				}
				if id == "" {
					continue
				}
				if tc.Function.Arguments != "" {
					if err := state.w.ContentBlockDelta(state.toolCalls[id].blockIndex, inputJSONDeltaPayload(tc.Function.Arguments)); err != nil {
						return err
					}
				}
			}
			switch choice.FinishReason {
			case "tool_calls":
				stopReason = "tool_use"
			case "length":
				stopReason = "max_tokens"
			case "stop", "":
				// leave as end_turn unless already set by an earlier choice
			default:
				stopReason = "end_turn"
			}
		}
	}

	for id := range toolIndexToID {
		if err := state.closeToolCall(toolIndexToID[id]); err != nil {
			return err
		}
	}
	return state.Finalize(stopReason)
}

func textDeltaPayload(text string) map[string]any { return map[string]any{"type": "text_delta", "text": text} }
func thinkingDeltaPayload(text string) map[string]any {
	return map[string]any{"type": "thinking_delta", "thinking": text}
}
func inputJSONDeltaPayload(partial string) map[string]any {
	return map[string]any{"type": "input_json_delta", "partial_json": partial}
}
