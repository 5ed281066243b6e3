// Package vision implements the Vision Proxy precondition check: when
// the chosen target can't see images, each image block is described
// by an out-of-band call to Anthropic and replaced with text, or
// stripped entirely if any description call fails.
package vision

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// describeModel and describeMaxTokens are fixed for every description call.
const (
	describeModel      = "claude-sonnet-4-20250514"
	describeMaxTokens  = 1024
	perImageTimeout    = 30 * time.Second
	describePrompt     = "Describe this image in one or two concise sentences, focusing on anything a blind recipient of this conversation would need to know."
)

// imageRef locates one image block inside a converted message array by
// (message index, part index), so the result can be substituted back
// into the exact position it came from.
type imageRef struct {
	msgIdx, partIdx int
	mediaType, data string
}

// Apply inspects messages for image blocks and, when visionCapable is
// false, describes each one via a separate Anthropic call using
// apiKey (the client's own forwarded x-api-key). On full success every
// image is replaced in place with a text description; on any failure
// every image in the batch is stripped instead. Non-image messages are
// returned unmodified either way.
func Apply(ctx context.Context, apiKey string, visionCapable bool, messages []claudetypes.Message) ([]claudetypes.Message, error) {
	if visionCapable {
		return messages, nil
	}

	parsed := make([][]claudetypes.Block, len(messages))
	var refs []imageRef
	for mi, msg := range messages {
		blocks := msg.ContentBlocks()
		parsed[mi] = blocks
		for pi, b := range blocks {
			if b.Type == "image" && b.Source != nil {
				refs = append(refs, imageRef{msgIdx: mi, partIdx: pi, mediaType: b.Source.MediaType, data: b.Source.Data})
			}
		}
	}
	if len(refs) == 0 {
		return messages, nil
	}

	descriptions, err := describeAll(ctx, apiKey, refs)
	if err != nil {
		stripImages(parsed)
		return reencode(messages, parsed), nil
	}

	for i, ref := range refs {
		parsed[ref.msgIdx][ref.partIdx] = claudetypes.Block{Type: "text", Text: "[Image Description: " + descriptions[i] + "]"}
	}
	return reencode(messages, parsed), nil
}

// describeAll fans out one Anthropic call per image, each bounded by
// perImageTimeout, and fans back in. Any single failure fails the
// whole batch: the caller discards every image rather than mix
// described and stripped images in one response.
func describeAll(ctx context.Context, apiKey string, refs []imageRef) ([]string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	results := make([]string, len(refs))
	errs := make([]error, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref imageRef) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, perImageTimeout)
			defer cancel()

			msg, err := client.Messages.New(callCtx, anthropic.MessageNewParams{
				Model:     describeModel,
				MaxTokens: describeMaxTokens,
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(
						anthropic.NewImageBlockBase64(ref.mediaType, ref.data),
						anthropic.NewTextBlock(describePrompt),
					),
				},
			})
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = extractText(msg)
		}(i, ref)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func extractText(msg *anthropic.Message) string {
	var out string
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			out += text
		}
	}
	return out
}

// stripImages removes every image block in place, collapsing a
// message whose content becomes empty to an empty string and
// unwrapping a single remaining text block to a plain string (handled
// by reencode, which already collapses single-text-block arrays).
func stripImages(parsed [][]claudetypes.Block) {
	for mi, blocks := range parsed {
		kept := blocks[:0]
		for _, b := range blocks {
			if b.Type == "image" {
				continue
			}
			kept = append(kept, b)
		}
		parsed[mi] = kept
	}
}

// reencode rebuilds claudetypes.Message.Content from the possibly-
// mutated block slices, collapsing a lone text block to a bare string
// and an empty slice to an empty string.
func reencode(original []claudetypes.Message, parsed [][]claudetypes.Block) []claudetypes.Message {
	out := make([]claudetypes.Message, len(original))
	for i, msg := range original {
		out[i] = claudetypes.Message{Role: msg.Role, Content: encodeBlocks(parsed[i])}
	}
	return out
}

func encodeBlocks(blocks []claudetypes.Block) []byte {
	if len(blocks) == 0 {
		return []byte(`""`)
	}
	if len(blocks) == 1 && blocks[0].Type == "text" {
		b, _ := json.Marshal(blocks[0].Text)
		return b
	}
	b, _ := json.Marshal(blocks)
	return b
}
