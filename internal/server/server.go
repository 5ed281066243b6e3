// Package server sets up the HTTP router, middleware, and request handlers.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/modelbridge/gateway/internal/config"
	"github.com/modelbridge/gateway/internal/metrics"
	"github.com/modelbridge/gateway/internal/router"
)

// Server holds the HTTP router and all dependencies that handlers need.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	gateway *router.Router
	metrics *metrics.Registry
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler.
func New(cfg *config.Config, gw *router.Router, reg *metrics.Registry) *Server {
	s := &Server{cfg: cfg, gateway: gw, metrics: reg}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions.
func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/v1/messages", s.handleMessages)
	r.Post("/v1/messages/count_tokens", s.handleCountTokens)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"service": "gateway",
		"port":    s.cfg.Port,
		"monitor": s.cfg.Monitor,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// modelPeek is the minimal shape read from an incoming request body to
// decide which Handler to route to, before the Handler itself runs its
// own full decode.
type modelPeek struct {
	Model string `json:"model"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	var peek modelPeek
	if err := json.Unmarshal(body, &peek); err != nil || peek.Model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", `missing or invalid "model" field`)
		return
	}

	apiKey := r.Header.Get("x-api-key")

	h, err := s.gateway.HandlerFor(r.Context(), peek.Model)
	if err != nil {
		log.Printf("router: %v", err)
		writeError(w, http.StatusServiceUnavailable, "connection_error", err.Error())
		return
	}

	start := time.Now()
	if err := h.Serve(r.Context(), w, body, apiKey); err != nil {
		log.Printf("handler: provider=%s model=%s err=%v", h.ProviderName, h.TargetModel, err)
		s.metrics.RequestsTotal.WithLabelValues(h.ProviderName, "error").Inc()
	} else {
		s.metrics.RequestsTotal.WithLabelValues(h.ProviderName, "ok").Inc()
	}
	s.metrics.StreamDuration.WithLabelValues(h.ProviderName).Observe(time.Since(start).Seconds())
	if h.Tracker != nil {
		s.metrics.ObserveHeadroom(h.ProviderName, h.TargetModel, h.Tracker.ContextLeftPercent())
	}
}

// handleCountTokens implements /v1/messages/count_tokens: a native-
// Anthropic target forwards the request upstream unchanged (Anthropic
// owns the exact tokenizer), every other target gets a cheap estimate
// since no provider exposes a compatible counting endpoint.
func (s *Server) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	var peek modelPeek
	if err := json.Unmarshal(body, &peek); err != nil || peek.Model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", `missing or invalid "model" field`)
		return
	}

	if s.gateway.IsNativeAnthropic(peek.Model) {
		s.forwardCountTokens(w, r.Context(), body, r.Header.Get("x-api-key"))
		return
	}

	estimate := int(math.Ceil(float64(len(body)) / 4))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"input_tokens": estimate})
}

func (s *Server) forwardCountTokens(w http.ResponseWriter, ctx context.Context, body []byte, apiKey string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.anthropic.com/v1/messages/count_tokens", bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api_error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("x-api-key", apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "connection_error", err.Error())
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":  "error",
		"error": map[string]any{"type": kind, "message": message},
	})
}
