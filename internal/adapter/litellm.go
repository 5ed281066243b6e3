package adapter

import (
	"encoding/json"
	"strings"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// LiteLLM is standard OpenAI-chat plus one per-model hack: LiteLLM
// fails to forward image_url blocks to MiniMax natively, so for any
// model name containing "minimax" images are converted to inline
// "[Image base64:<raw>]" text appended to the last text block of the
// same message instead.
type LiteLLM struct {
	*OpenAIChat
}

func NewLiteLLM() *LiteLLM {
	return &LiteLLM{OpenAIChat: NewOpenAIChat(nil)}
}

func (a *LiteLLM) ConvertMessages(req *claudetypes.Request) (any, error) {
	if !strings.Contains(strings.ToLower(req.Model), "minimax") {
		return a.OpenAIChat.ConvertMessages(req)
	}

	patched := *req
	patched.Messages = make([]claudetypes.Message, len(req.Messages))
	copy(patched.Messages, req.Messages)

	for i, msg := range req.Messages {
		blocks := msg.ContentBlocks()
		var images []claudetypes.Block
		var rest []claudetypes.Block
		for _, b := range blocks {
			if b.Type == "image" {
				images = append(images, b)
				continue
			}
			rest = append(rest, b)
		}
		if len(images) == 0 {
			continue
		}
		lastText := -1
		for j := range rest {
			if rest[j].Type == "text" {
				lastText = j
			}
		}
		if lastText < 0 {
			rest = append(rest, claudetypes.Block{Type: "text", Text: ""})
			lastText = len(rest) - 1
		}
		last := &rest[lastText]
		for _, img := range images {
			if img.Source != nil {
				last.Text += "\n[Image base64:" + img.Source.Data + "]"
			}
		}
		patched.Messages[i] = reencodeMessage(msg.Role, rest)
	}

	return a.OpenAIChat.ConvertMessages(&patched)
}

func reencodeMessage(role string, blocks []claudetypes.Block) claudetypes.Message {
	raw, _ := json.Marshal(blocks)
	return claudetypes.Message{Role: role, Content: raw}
}
