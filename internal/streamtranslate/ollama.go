package streamtranslate

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/modelbridge/gateway/internal/adapter"
)

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// Ollama consumes newline-delimited JSON chunks. No tool support:
// a single text block carries the whole reply.
func Ollama(body io.Reader, state *State, ad adapter.Adapter) error {
	if err := state.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk ollamaChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}

		if chunk.Message.Content != "" {
			cleaned, _ := ad.ProcessTextContent(chunk.Message.Content, state.accumulatedText)
			state.accumulatedText += cleaned
			idx, err := state.ensureText()
			if err != nil {
				return err
			}
			if err := state.w.ContentBlockDelta(idx, textDeltaPayload(cleaned)); err != nil {
				return err
			}
		}

		if chunk.Done {
			state.reportUsage(chunk.PromptEvalCount, chunk.EvalCount)
			break
		}
	}

	return state.Finalize("end_turn")
}
