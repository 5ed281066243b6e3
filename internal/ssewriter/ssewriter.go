// Package ssewriter encodes the Anthropic Messages API's SSE event
// sequence and manages the per-connection keepalive ping that every
// stream translator shares.
package ssewriter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// keepaliveInterval is how long the writer waits with no upstream
// activity before emitting a ping.
const keepaliveInterval = 1 * time.Second

// Writer serializes Anthropic SSE events to one client connection. It
// is not safe for concurrent use from multiple goroutines except via
// Touch, which only resets an activity timestamp.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu        sync.Mutex
	closed    bool
	lastSeen  time.Time
	pingStop  chan struct{}
	pingDone  chan struct{}
}

// New wraps w, writing the SSE response headers and starting the
// keepalive ping loop. Callers must call Close when the stream ends to
// stop the ping goroutine.
func New(w http.ResponseWriter) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)

	sw := &Writer{
		w: w, flusher: flusher,
		lastSeen: now(),
		pingStop: make(chan struct{}),
		pingDone: make(chan struct{}),
	}
	go sw.pingLoop()
	return sw
}

func now() time.Time { return time.Now() }

// pingLoop emits a ping event whenever keepaliveInterval elapses
// without Touch having been called; it exits promptly once Close
// closes pingStop, never blocking the event loop on its own ticker.
func (w *Writer) pingLoop() {
	defer close(w.pingDone)
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.pingStop:
			return
		case <-ticker.C:
			w.mu.Lock()
			idle := now().Sub(w.lastSeen) >= keepaliveInterval
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			if idle {
				_ = w.writeEvent("ping", map[string]any{"type": "ping"})
			}
		}
	}
}

// Ping emits a single ping event immediately, independent of the
// keepalive idle timer. Used for the mandatory ping that must follow
// message_start regardless of how quickly the upstream responds.
func (w *Writer) Ping() error {
	return w.writeEvent("ping", map[string]any{"type": "ping"})
}

// Touch records upstream activity, postponing the next keepalive ping.
func (w *Writer) Touch() {
	w.mu.Lock()
	w.lastSeen = now()
	w.mu.Unlock()
}

// Close stops the ping loop. Safe to call more than once.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	close(w.pingStop)
	<-w.pingDone
}

func (w *Writer) writeEvent(event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	// mu is held for the whole write so a ping from pingLoop can never
	// interleave with an event written by the stream translator.
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if _, err := fmt.Fprintf(w.w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	w.lastSeen = now()
	return nil
}

// MessageStart emits the message_start event: a message object with
// empty content and a usage placeholder.
func (w *Writer) MessageStart(id, model string) error {
	return w.writeEvent("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            id,
			"type":          "message",
			"role":          "assistant",
			"model":         model,
			"content":       []any{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 100, "output_tokens": 1},
		},
	})
}

// ContentBlockStart opens a block at index with the given block
// payload (e.g. {"type":"text","text":""}).
func (w *Writer) ContentBlockStart(index int, block map[string]any) error {
	return w.writeEvent("content_block_start", map[string]any{
		"type": "content_block_start", "index": index, "content_block": block,
	})
}

// ContentBlockDelta emits one delta for the block at index.
func (w *Writer) ContentBlockDelta(index int, delta map[string]any) error {
	return w.writeEvent("content_block_delta", map[string]any{
		"type": "content_block_delta", "index": index, "delta": delta,
	})
}

// ContentBlockStop closes the block at index.
func (w *Writer) ContentBlockStop(index int) error {
	return w.writeEvent("content_block_stop", map[string]any{
		"type": "content_block_stop", "index": index,
	})
}

// MessageDelta emits the terminal stop_reason/usage update.
func (w *Writer) MessageDelta(stopReason string, outputTokens int) error {
	return w.writeEvent("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stopReason, "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": outputTokens},
	})
}

// MessageStop emits the final event of a well-formed stream.
func (w *Writer) MessageStop() error {
	return w.writeEvent("message_stop", map[string]any{"type": "message_stop"})
}

// TextDelta/ThinkingDelta/InputJSONDelta build the three delta shapes.
func TextDelta(text string) map[string]any      { return map[string]any{"type": "text_delta", "text": text} }
func ThinkingDelta(text string) map[string]any  { return map[string]any{"type": "thinking_delta", "thinking": text} }
func InputJSONDelta(partial string) map[string]any {
	return map[string]any{"type": "input_json_delta", "partial_json": partial}
}

// ErrorEvent emits an inline error event (used outside the normal
// sequence, for failures before message_start).
func (w *Writer) ErrorEvent(kind, message string) error {
	return w.writeEvent("error", map[string]any{
		"type":  "error",
		"error": map[string]any{"type": kind, "message": message},
	})
}
