package adapter

import (
	"os"
	"strconv"
	"strings"

	"github.com/modelbridge/gateway/internal/claudetypes"
)

// localSamplingParams are the per-family sampling defaults applied to
// a self-hosted target. Temperature is applied only when the client
// request carries none; the other fields are applied whenever the
// family matches. Each local inference stack ships with its own
// upstream-recommended defaults, which plain OpenAI-compatible clients
// (no temperature/top_p opinion of their own) would otherwise miss.
type localSamplingParams struct {
	temperature       float64
	topP              float64
	topK              int
	minP              float64
	repetitionPenalty float64
}

// localFamilySampling is matched in order against the lowercased model
// name; the first substring hit wins.
var localFamilySampling = []struct {
	substr string
	params localSamplingParams
}{
	{"qwen", localSamplingParams{temperature: 0.7, topP: 0.8, topK: 20, repetitionPenalty: 1.05}},
	{"deepseek", localSamplingParams{temperature: 0.6, topP: 0.95, topK: 40}},
	{"llama", localSamplingParams{minP: 0.05, repetitionPenalty: 1.1}},
	{"mistral", localSamplingParams{temperature: 0.7, topP: 1.0}},
}

func lookupLocalSampling(model string) (localSamplingParams, bool) {
	lower := strings.ToLower(model)
	for _, entry := range localFamilySampling {
		if strings.Contains(lower, entry.substr) {
			return entry.params, true
		}
	}
	return localSamplingParams{}, false
}

// LocalChat is the OpenAI-compatible adapter bound to self-hosted
// Local targets (Ollama, LM Studio, vLLM, MLX). It layers the
// per-family sampling defaults and the Qwen no-think override on top
// of the shared OpenAIChat translation, and always applies the
// max_tokens floor local backends need.
type LocalChat struct {
	*OpenAIChat
}

// NewLocalChat constructs the adapter.
func NewLocalChat() *LocalChat {
	base := NewOpenAIChat(nil)
	base.localMaxTokensFloor = true
	return &LocalChat{OpenAIChat: base}
}

func (a *LocalChat) BuildPayload(req *claudetypes.Request, messages, tools any) map[string]any {
	body := a.OpenAIChat.BuildPayload(req, messages, tools)
	params, ok := lookupLocalSampling(req.Model)
	if !ok {
		return body
	}
	if req.Temperature == nil && params.temperature > 0 {
		body["temperature"] = params.temperature
	}
	if params.topP > 0 {
		body["top_p"] = params.topP
	}
	if params.topK > 0 {
		body["top_k"] = params.topK
	}
	if params.minP > 0 {
		body["min_p"] = params.minP
	}
	if params.repetitionPenalty > 0 {
		body["repetition_penalty"] = params.repetitionPenalty
	}
	return body
}

// qwenNoThinkSuffix disables Qwen3's thinking mode when appended to
// the last user turn.
const qwenNoThinkSuffix = " /no_think"

func (a *LocalChat) PrepareRequest(body map[string]any, req *claudetypes.Request) {
	a.OpenAIChat.PrepareRequest(body, req)
	if !strings.Contains(strings.ToLower(req.Model), "qwen") || !qwenNoThinkEnabled() {
		return
	}
	msgs, ok := body["messages"].([]chatMessage)
	if !ok || len(msgs) == 0 {
		return
	}
	last := &msgs[len(msgs)-1]
	switch text := last.Content.(type) {
	case string:
		last.Content = text + qwenNoThinkSuffix
	}
}

// qwenNoThinkEnabled reads CLAUDISH_QWEN_NO_THINK, the runtime switch
// that appends the /no_think directive to every Qwen request.
func qwenNoThinkEnabled() bool {
	v, ok := os.LookupEnv("CLAUDISH_QWEN_NO_THINK")
	if !ok {
		return false
	}
	b, _ := strconv.ParseBool(v)
	return b
}
