package streamtranslate

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// anthropicEvent is the minimal shape needed to relay usage into the
// TokenTracker while otherwise forwarding bytes verbatim.
type anthropicEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// AnthropicPassthrough forwards an Anthropic-shaped upstream SSE
// stream byte-for-byte (after light re-serialization for connection
// headers), skimming usage fields off message_start/message_delta
// events for the TokenTracker as it goes.
func AnthropicPassthrough(body io.Reader, rawWrite func(line string) error, onTokenUpdate func(input, output int)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var inputTokens int
	for scanner.Scan() {
		line := scanner.Text()
		if err := rawWrite(line + "\n"); err != nil {
			return err
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev anthropicEvent
		if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) != nil {
			continue
		}
		switch ev.Type {
		case "message_start":
			inputTokens = ev.Message.Usage.InputTokens
		case "message_delta":
			if onTokenUpdate != nil {
				onTokenUpdate(inputTokens, ev.Usage.OutputTokens)
			}
		}
	}
	return nil
}
