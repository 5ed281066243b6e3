package transport

import (
	"context"
	"net/http"
)

// NewOpenRouter builds the OpenRouter transport: OpenAI-chat wire
// format at a fixed endpoint, bearer auth.
func NewOpenRouter(apiKey string) Transport {
	return newSimple(StreamOpenAISSE,
		staticEndpoint("https://openrouter.ai/api/v1/chat/completions"),
		bearerHeaders(apiKey))
}

// NewPoe builds the Poe transport: OpenAI-chat wire format against
// Poe's compatibility endpoint.
func NewPoe(apiKey string) Transport {
	return newSimple(StreamOpenAISSE,
		staticEndpoint("https://api.poe.com/v1/chat/completions"),
		bearerHeaders(apiKey))
}

// NewLiteLLM builds the LiteLLM transport: an OpenAI-chat proxy at a
// user-configured base URL (LITELLM_BASE_URL), optionally with an API
// key (self-hosted LiteLLM gateways are often unauthenticated).
func NewLiteLLM(baseURL, apiKey string) Transport {
	if baseURL == "" {
		baseURL = "http://localhost:4000"
	}
	headersFn := func(ctx context.Context) (http.Header, error) {
		h := http.Header{}
		h.Set("Content-Type", "application/json")
		if apiKey != "" {
			h.Set("Authorization", "Bearer "+apiKey)
		}
		return h, nil
	}
	return newSimple(StreamOpenAISSE, staticEndpoint(baseURL+"/v1/chat/completions"), headersFn)
}
