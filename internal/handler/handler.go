// Package handler composes one resolved provider binding (a
// transport.Transport + adapter.Adapter pair) into the full per-request
// pipeline: decode, run the Vision Proxy precondition, convert,
// assemble the upstream payload, authenticate, fetch, and translate
// the streamed response back to Anthropic's wire format.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/modelbridge/gateway/internal/adapter"
	"github.com/modelbridge/gateway/internal/claudetypes"
	"github.com/modelbridge/gateway/internal/ssewriter"
	"github.com/modelbridge/gateway/internal/streamtranslate"
	"github.com/modelbridge/gateway/internal/tokentracker"
	"github.com/modelbridge/gateway/internal/transport"
	"github.com/modelbridge/gateway/internal/vision"
)

// Handler runs every request for one resolved (provider, model)
// target. The Router caches one Handler per target model string, so
// its Adapter's long-lived state (ToolNameMap, Gemini's
// thoughtSignatureMap) persists across requests for that target.
type Handler struct {
	Transport transport.Transport
	Adapter   adapter.Adapter
	Tracker   *tokentracker.Tracker

	// TargetModel is the provider-facing model name the resolver/router
	// decided on — already stripped of any provider@ prefix.
	TargetModel string

	// ProviderName labels the Handler for the TokenTracker and for
	// dropped-param/error reporting.
	ProviderName string
}

// New constructs a Handler bound to one provider target.
func New(tr transport.Transport, ad adapter.Adapter, tracker *tokentracker.Tracker, providerName, targetModel string) *Handler {
	return &Handler{Transport: tr, Adapter: ad, Tracker: tracker, ProviderName: providerName, TargetModel: targetModel}
}

// connectionRefusedMessage is returned to the client when dialing the
// upstream fails outright (ECONNREFUSED or equivalent), distinguishing
// "the provider is unreachable" from "the provider rejected us".
const connectionRefusedMessage = "upstream connection refused"

// Serve runs the full pipeline for one incoming Messages API request
// and streams the translated response to w. rawBody is the exact bytes
// the client sent (used to detect dropped parameters); clientAPIKey is
// the caller's own forwarded x-api-key, reused for the Vision Proxy's
// out-of-band Anthropic call.
func (h *Handler) Serve(ctx context.Context, w http.ResponseWriter, rawBody []byte, clientAPIKey string) error {
	ctx = transport.WithClientAPIKey(ctx, clientAPIKey)

	req, dropped, err := claudetypes.DecodeRequest(rawBody)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		w.Header().Set("X-Dropped-Params", strings.Join(dropped, ","))
	}

	// The Vision Proxy precondition runs against the original Anthropic-
	// shaped blocks, before any adapter has translated them into an
	// upstream-specific message shape.
	visionCapable := h.Adapter.SupportsVision(h.TargetModel)
	req.Messages, err = vision.Apply(ctx, clientAPIKey, visionCapable, req.Messages)
	if err != nil {
		return writeJSONError(w, http.StatusBadGateway, "api_error", "vision proxy: "+err.Error())
	}

	h.Adapter.Reset()
	messages, err := h.Adapter.ConvertMessages(req)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	}
	tools, err := h.Adapter.ConvertTools(req)
	if err != nil {
		return writeJSONError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	}

	payload := h.Adapter.BuildPayload(req, messages, tools)
	for k, v := range h.Transport.ExtraPayloadFields() {
		payload[k] = v
	}
	h.Adapter.PrepareRequest(payload, req)

	if err := h.Transport.RefreshAuth(ctx); err != nil {
		return writeJSONError(w, http.StatusServiceUnavailable, "connection_error", err.Error())
	}

	payload = h.Transport.TransformPayload(payload)

	resp, err := h.dispatch(ctx, payload)
	if err != nil {
		return writeJSONError(w, http.StatusServiceUnavailable, "connection_error", connectionErrorMessage(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if refreshErr := h.Transport.ForceRefreshAuth(ctx); refreshErr == nil {
			resp, err = h.dispatch(ctx, payload)
			if err != nil {
				return writeJSONError(w, http.StatusServiceUnavailable, "connection_error", connectionErrorMessage(err))
			}
			defer resp.Body.Close()
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return passthroughError(w, resp)
	}

	if window := h.Transport.ContextWindow(ctx); window > 0 && h.Tracker != nil {
		h.Tracker.SetContextWindow(window)
	}

	return h.translateStream(w, resp.Body, req)
}

// dispatch builds the outbound *http.Request and runs it through the
// transport's own rate limiting (EnqueueRequest).
func (h *Handler) dispatch(ctx context.Context, payload map[string]any) (*http.Response, error) {
	client, timeout := h.Transport.RequestInit()
	callCtx, cancel := context.WithTimeout(ctx, timeout)

	body, err := json.Marshal(payload)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := h.Transport.EnqueueRequest(callCtx, func() (*http.Response, error) {
		headers, err := h.Transport.Headers(callCtx)
		if err != nil {
			return nil, err
		}
		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, h.Transport.Endpoint(h.TargetModel), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header = headers
		if httpReq.Header.Get("Content-Type") == "" {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		return client.Do(httpReq)
	})
	if err != nil {
		cancel()
		return nil, err
	}
	// The deadline also covers reading the streamed body, so callCtx is
	// released when the incoming request's context ends, not on return.
	context.AfterFunc(ctx, cancel)
	return resp, nil
}

// translateStream picks the translator matching the transport's wire
// format and runs it against one ssewriter.Writer, wiring usage
// reports to the Handler's TokenTracker.
func (h *Handler) translateStream(w http.ResponseWriter, upstream io.ReadCloser, req *claudetypes.Request) error {
	onTokenUpdate := func(input, output int) {
		if h.Tracker != nil {
			h.Tracker.Update(input, output, 0)
		}
	}

	// The native Anthropic upstream already speaks the exact wire
	// format the client expects, including its own message_start — so
	// this path forwards bytes directly instead of going through
	// ssewriter's independent keepalive loop, which would otherwise
	// interleave ping writes with the forwarded stream on the same
	// http.ResponseWriter.
	if h.Transport.StreamFormat() == transport.StreamAnthropicSSE {
		headers := w.Header()
		headers.Set("Content-Type", "text/event-stream")
		headers.Set("Cache-Control", "no-cache")
		headers.Set("Connection", "keep-alive")
		return streamtranslate.AnthropicPassthrough(upstream, func(line string) error {
			_, err := io.WriteString(w, line)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			return err
		}, onTokenUpdate)
	}

	sw := ssewriter.New(w)
	defer sw.Close()

	msgID := "msg_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	state := streamtranslate.NewState(sw, msgID, req.Model)
	state.OnTokenUpdate = onTokenUpdate

	// Each translator below calls state.Start() itself (Start is
	// idempotent, guarded by State.started) as the first thing it does
	// once it knows the stream actually began.
	switch h.Transport.StreamFormat() {
	case transport.StreamOpenAISSE:
		return streamtranslate.OpenAIChat(upstream, state, h.Adapter)
	case transport.StreamOpenAIResponsesSSE:
		return streamtranslate.OpenAIResponses(upstream, state, h.Adapter)
	case transport.StreamGeminiSSE:
		return streamtranslate.Gemini(upstream, state, h.Adapter)
	case transport.StreamOllamaJSONL:
		return streamtranslate.Ollama(upstream, state, h.Adapter)
	default:
		return errors.New("handler: unknown stream format")
	}
}

// connectionErrorMessage distinguishes a refused/unreachable upstream
// from any other dispatch failure, without depending on a particular
// transport.ConnectionError wrapper being present (a transport is free
// to return the bare *net.OpError from http.Client.Do).
func connectionErrorMessage(err error) string {
	var connErr *transport.ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Message
	}
	if isConnRefused(err) {
		return connectionRefusedMessage
	}
	return err.Error()
}

func isConnRefused(err error) bool {
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]any{
		"type":  "error",
		"error": map[string]any{"type": kind, "message": message},
	})
	_, err := w.Write(body)
	return err
}

// passthroughError forwards a non-2xx upstream response to the client
// largely unchanged, preserving its status code and body.
func passthroughError(w http.ResponseWriter, resp *http.Response) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, err := io.Copy(w, resp.Body)
	return err
}
