// Package streamtranslate converts each upstream's streaming wire
// format into the Anthropic SSE sequence, via ssewriter, while
// preserving block-ordering invariants and running token-usage
// callbacks.
package streamtranslate

import (
	"github.com/modelbridge/gateway/internal/ssewriter"
)

// toolCallState tracks one in-flight tool_use block.
type toolCallState struct {
	blockIndex int
	started    bool
	closed     bool
}

// State is the per-connection streamer state: block indices, which
// kinds are open, and the tool-call reassembly table. One State is
// constructed per request and discarded after.
type State struct {
	w *ssewriter.Writer

	msgID   string
	model   string
	started bool

	curBlockIndex int

	textStarted bool
	textIdx     int

	thinkingStarted bool
	thinkingIdx     int

	toolCalls map[string]*toolCallState

	accumulatedText string
	outputTokens    int
	finalized       bool

	// OnTokenUpdate is invoked with (input, output) whenever the
	// upstream reports usage; the Handler wires this to the chosen
	// TokenTracker strategy.
	OnTokenUpdate func(input, output int)
}

// NewState constructs a State bound to one SSE writer.
func NewState(w *ssewriter.Writer, msgID, model string) *State {
	return &State{w: w, msgID: msgID, model: model, toolCalls: make(map[string]*toolCallState)}
}

// Start emits message_start + ping, the first two events of every
// stream. The ping is unconditional here rather than left to the
// writer's idle-triggered keepalive, since a prompt upstream response
// would otherwise never produce one.
func (s *State) Start() error {
	if s.started {
		return nil
	}
	s.started = true
	if err := s.w.MessageStart(s.msgID, s.model); err != nil {
		return err
	}
	return s.w.Ping()
}

// ensureThinking opens a thinking block if one isn't already open,
// returning its index.
func (s *State) ensureThinking() (int, error) {
	if s.thinkingStarted {
		return s.thinkingIdx, nil
	}
	idx := s.nextIndex()
	s.thinkingIdx = idx
	s.thinkingStarted = true
	return idx, s.w.ContentBlockStart(idx, map[string]any{"type": "thinking", "thinking": ""})
}

// closeThinking closes the thinking block if open. Per the ordering
// invariant, this must happen before the first text_delta.
func (s *State) closeThinking() error {
	if !s.thinkingStarted {
		return nil
	}
	s.thinkingStarted = false
	return s.w.ContentBlockStop(s.thinkingIdx)
}

// ensureText opens a text block if one isn't already open.
func (s *State) ensureText() (int, error) {
	if s.textStarted {
		return s.textIdx, nil
	}
	if err := s.closeThinking(); err != nil {
		return 0, err
	}
	idx := s.nextIndex()
	s.textIdx = idx
	s.textStarted = true
	return idx, s.w.ContentBlockStart(idx, map[string]any{"type": "text", "text": ""})
}

// closeText closes the text block if open. Per the ordering
// invariant, this must happen before any tool_use block opens.
func (s *State) closeText() error {
	if !s.textStarted {
		return nil
	}
	s.textStarted = false
	return s.w.ContentBlockStop(s.textIdx)
}

// openToolCall opens a new tool_use block for callID/name, closing any
// open text/thinking block first.
func (s *State) openToolCall(callID, name string) (int, error) {
	if err := s.closeText(); err != nil {
		return 0, err
	}
	if err := s.closeThinking(); err != nil {
		return 0, err
	}
	idx := s.nextIndex()
	tc := &toolCallState{blockIndex: idx, started: true}
	s.toolCalls[callID] = tc
	return idx, s.w.ContentBlockStart(idx, map[string]any{
		"type": "tool_use", "id": callID, "name": name, "input": map[string]any{},
	})
}

// closeToolCall closes an open tool_use block.
func (s *State) closeToolCall(callID string) error {
	tc, ok := s.toolCalls[callID]
	if !ok || tc.closed {
		return nil
	}
	tc.closed = true
	return s.w.ContentBlockStop(tc.blockIndex)
}

// closeAllOpenBlocks closes whatever is still open, in the order the
// ordering invariant requires (thinking, then text; tool_use blocks
// are closed individually as their calls complete and are not
// revisited here).
func (s *State) closeAllOpenBlocks() error {
	if err := s.closeThinking(); err != nil {
		return err
	}
	return s.closeText()
}

func (s *State) nextIndex() int {
	idx := s.curBlockIndex
	s.curBlockIndex++
	return idx
}

// Finalize emits message_delta + message_stop exactly once.
func (s *State) Finalize(stopReason string) error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	if err := s.closeAllOpenBlocks(); err != nil {
		return err
	}
	if err := s.w.MessageDelta(stopReason, s.outputTokens); err != nil {
		return err
	}
	return s.w.MessageStop()
}

// reportUsage records output tokens seen so far and fires the
// TokenTracker callback.
func (s *State) reportUsage(input, output int) {
	s.outputTokens = output
	if s.OnTokenUpdate != nil {
		s.OnTokenUpdate(input, output)
	}
}
