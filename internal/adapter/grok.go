package adapter

import (
	"regexp"
	"strings"
)

// grokFunctionCallPattern matches one complete inline function-call
// block xAI's direct API sometimes emits as plain text instead of a
// native tool_calls delta:
//
//	<xai:function_call name="lookup">{"q":"x"}</xai:function_call>
var grokFunctionCallPattern = regexp.MustCompile(`(?s)<xai:function_call name="([^"]*)">(.*?)</xai:function_call>`)

// GrokToolCall is one function call pulled out of Grok's text stream.
type GrokToolCall struct {
	Name      string
	Arguments string
}

// Grok wraps OpenAIChat for the xAI direct-API binding: it adds the
// inline <xai:function_call> XML normalizer on top of the shared
// OpenAI-compatible translation, surfacing the calls it finds through
// PendingToolCalls rather than as delta text.
type Grok struct {
	*OpenAIChat
	buffer  string
	pending []GrokToolCall
}

// NewGrok constructs the adapter.
func NewGrok() *Grok {
	return &Grok{OpenAIChat: NewOpenAIChat(nil)}
}

func (a *Grok) Reset() {
	a.OpenAIChat.Reset()
	a.buffer = ""
	a.pending = nil
}

// ProcessTextContent extracts every complete <xai:function_call> block
// in the buffered text and withholds everything from the last complete
// "<xai:function_call" opening literal onward until its closing tag
// arrives. A tail holding only the start of that literal (such as
// "<xai:func") is not withheld and is emitted as visible text.
func (a *Grok) ProcessTextContent(chunk, accumulated string) (string, bool) {
	a.buffer += chunk
	transformed := false

	for {
		loc := grokFunctionCallPattern.FindStringSubmatchIndex(a.buffer)
		if loc == nil {
			break
		}
		name := a.buffer[loc[2]:loc[3]]
		args := strings.TrimSpace(a.buffer[loc[4]:loc[5]])
		a.pending = append(a.pending, GrokToolCall{Name: name, Arguments: args})
		a.buffer = a.buffer[:loc[0]] + a.buffer[loc[1]:]
		transformed = true
	}

	visible := a.buffer
	if idx := strings.LastIndex(a.buffer, "<xai:function_call"); idx >= 0 {
		visible = a.buffer[:idx]
		a.buffer = a.buffer[idx:]
	} else {
		a.buffer = ""
	}
	return visible, transformed
}

// PendingToolCalls drains and returns the calls ProcessTextContent has
// parsed out of the text stream so far. The stream translator polls
// this after every chunk and opens/closes a tool_use block for each.
func (a *Grok) PendingToolCalls() []GrokToolCall {
	out := a.pending
	a.pending = nil
	return out
}
