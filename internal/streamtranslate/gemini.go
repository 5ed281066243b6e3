package streamtranslate

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/modelbridge/gateway/internal/adapter"
)

type geminiStreamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text             string `json:"text"`
				Thought          bool   `json:"thought"`
				ThoughtSignature string `json:"thoughtSignature"`
				FunctionCall     *struct {
					Name string `json:"name"`
					Args any    `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Gemini consumes the Gemini streamGenerateContent SSE format,
// optionally unwrapping a Code-Assist {"response": …} envelope.
func Gemini(body io.Reader, state *State, ad adapter.Adapter) error {
	if err := state.Start(); err != nil {
		return err
	}

	toolCallSeq := 0
	stopReason := "end_turn"

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		raw := []byte(payload)
		var envelope struct {
			Response json.RawMessage `json:"response"`
		}
		if json.Unmarshal(raw, &envelope) == nil && len(envelope.Response) > 0 {
			raw = envelope.Response
		}

		var chunk geminiStreamChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			continue
		}

		if chunk.UsageMetadata != nil {
			state.reportUsage(chunk.UsageMetadata.PromptTokenCount, chunk.UsageMetadata.CandidatesTokenCount)
		}

		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				switch {
				case part.Thought:
					idx, err := state.ensureThinking()
					if err != nil {
						return err
					}
					if err := state.w.ContentBlockDelta(idx, thinkingDeltaPayload(part.Text)); err != nil {
						return err
					}
				case part.FunctionCall != nil:
					if err := state.closeThinking(); err != nil {
						return err
					}
					if err := state.closeText(); err != nil {
						return err
					}
					toolCallSeq++
					callID := syntheticGeminiToolID(toolCallSeq)
					name := ad.ToolNames().Resolve(part.FunctionCall.Name)
					idx, err := state.openToolCall(callID, name)
					if err != nil {
						return err
					}
					args, _ := json.Marshal(part.FunctionCall.Args)
					if err := state.w.ContentBlockDelta(idx, inputJSONDeltaPayload(string(args))); err != nil {
						return err
					}
					if err := state.closeToolCall(callID); err != nil {
						return err
					}
					ad.RegisterToolCall(callID, part.FunctionCall.Name, part.ThoughtSignature)
					stopReason = "tool_use"
				case part.Text != "":
					if err := state.closeThinking(); err != nil {
						return err
					}
					cleaned, _ := ad.ProcessTextContent(part.Text, state.accumulatedText)
					state.accumulatedText += cleaned
					idx, err := state.ensureText()
					if err != nil {
						return err
					}
					if err := state.w.ContentBlockDelta(idx, textDeltaPayload(cleaned)); err != nil {
						return err
					}
				}
			}
			if cand.FinishReason == "MAX_TOKENS" {
				stopReason = "max_tokens"
			}
		}
	}

	return state.Finalize(stopReason)
}

// syntheticGeminiToolID assigns a stable Claude-shaped tool id to a
// Gemini functionCall, which carries no id of its own on the wire.
func syntheticGeminiToolID(seq int) string {
	return "toolu_gemini_" + strconv.Itoa(seq)
}
