// Package router implements the top-level dispatch: resolving a
// requested model through the role map and the Provider Resolver,
// then constructing (and caching) the Transport + Adapter pair a
// Handler needs for that target.
package router

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"

	"github.com/modelbridge/gateway/internal/adapter"
	"github.com/modelbridge/gateway/internal/handler"
	"github.com/modelbridge/gateway/internal/resolver"
	"github.com/modelbridge/gateway/internal/tokentracker"
	"github.com/modelbridge/gateway/internal/transport"
)

// Config is the Router's startup configuration: the listening port
// (used to key the TokenTracker status file), an optional default
// target for any request whose model doesn't match a role, the
// opus/sonnet/haiku/subagent role map, and the monitor flag. The
// Router stores Monitor but does not read it: resolution and routing
// are the same whether it is on or off.
type Config struct {
	Port          int
	DefaultTarget string
	RoleMap       map[string]string // role name -> raw target model spec
	Monitor       bool
}

// Router resolves requested model names to cached Handlers. One
// Router exists per running gateway process.
type Router struct {
	cfg Config
	env resolver.Env

	mu       sync.Mutex
	handlers map[string]*handler.Handler
}

// New constructs a Router. env is normally built from os.Environ via
// EnvFromOS, passed explicitly so tests can supply a fixed map.
func New(cfg Config, env resolver.Env) *Router {
	return &Router{cfg: cfg, env: env, handlers: make(map[string]*handler.Handler)}
}

// EnvFromOS snapshots the process environment into a resolver.Env.
func EnvFromOS() resolver.Env {
	env := make(resolver.Env)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	return env
}

// ResolveTarget applies the role map, then the default target, to a
// requested model name: a role name (opus, sonnet,
// haiku, subagent) matches as a case-insensitive substring of the
// requested model (so "claude-opus-4-1-20250805" matches the "opus"
// role). The first matching role wins; map iteration order is
// otherwise unspecified, so callers should not configure overlapping
// role substrings that could both match the same request.
func (r *Router) ResolveTarget(requestedModel string) string {
	lower := strings.ToLower(requestedModel)
	for role, target := range r.cfg.RoleMap {
		if target == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(role)) {
			return target
		}
	}
	if r.cfg.DefaultTarget != "" {
		return r.cfg.DefaultTarget
	}
	return requestedModel
}

// HandlerFor resolves requestedModel and returns the cached (or newly
// built) Handler for its target. A target spec containing "@" or "/"
// must never silently fall through to native-Anthropic just because no
// handler could be built for it — that's a configuration error, not an
// invitation to guess, so build failures are always returned to the
// caller rather than papered over with a default.
func (r *Router) HandlerFor(ctx context.Context, requestedModel string) (*handler.Handler, error) {
	raw := normalizeTarget(r.ResolveTarget(requestedModel))

	r.mu.Lock()
	if h, ok := r.handlers[raw]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	h, err := r.build(raw)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.handlers[raw] = h
	r.mu.Unlock()
	return h, nil
}

// IsNativeAnthropic reports whether requestedModel resolves to the
// native-Anthropic passthrough category, so /v1/messages/count_tokens
// can decide between forwarding upstream and estimating locally.
func (r *Router) IsNativeAnthropic(requestedModel string) bool {
	raw := normalizeTarget(r.ResolveTarget(requestedModel))
	return resolver.Resolve(raw, r.env).Category == resolver.CategoryNativeAnthropic
}

// normalizeTarget expands the "poe:" shorthand some configs use for
// Poe bot names into the canonical "poe@" provider form.
func normalizeTarget(raw string) string {
	if strings.HasPrefix(raw, "poe:") {
		return "poe@" + strings.TrimPrefix(raw, "poe:")
	}
	return raw
}

// build constructs the Transport+Adapter pair for one resolved target
// and wraps them in a Handler. Never returns a native-Anthropic Handler
// for a spec that named an explicit provider: that case only reaches
// CategoryUnknown or CategoryDirectAPI-with-no-fallback, both of which
// error out here instead.
func (r *Router) build(raw string) (*handler.Handler, error) {
	res := resolver.Resolve(raw, r.env)

	switch res.Category {
	case resolver.CategoryLocal:
		return r.buildLocal(res)
	case resolver.CategoryDirectAPI:
		return r.buildDirectAPI(res)
	case resolver.CategoryOpenRouter:
		return r.buildOpenRouter(res.ModelName)
	case resolver.CategoryNativeAnthropic:
		return r.buildNativeAnthropic(res)
	default:
		return nil, fmt.Errorf("router: cannot resolve target %q: unrecognized provider %q", raw, res.ProviderName)
	}
}

func (r *Router) newTracker(strategy tokentracker.Strategy, provider, model string, contextWindow int, isFree bool) *tokentracker.Tracker {
	return tokentracker.New(strategy, provider, model, contextWindow, r.cfg.Port, isFree)
}

func (r *Router) buildNativeAnthropic(res resolver.Resolution) (*handler.Handler, error) {
	tr := transport.NewNativeAnthropic("")
	ad := adapter.NewAnthropicPassthrough()
	tracker := r.newTracker(tokentracker.StrategyActualCost, "native-anthropic", res.ModelName, ad.ContextWindow(res.ModelName), false)
	return handler.New(tr, ad, tracker, "native-anthropic", res.ModelName), nil
}

func (r *Router) buildOpenRouter(modelName string) (*handler.Handler, error) {
	apiKey, ok := r.env.Lookup("OPENROUTER_API_KEY")
	if !ok {
		return nil, fmt.Errorf("router: openrouter target requires OPENROUTER_API_KEY")
	}
	inner := innerAdapterFor(modelName)
	tr := r.rateLimitFor("openrouter", transport.NewOpenRouter(apiKey))
	ad := adapter.NewOpenRouter(inner)
	tracker := r.newTracker(tokentracker.StrategyStandard, "openrouter", modelName, ad.ContextWindow(modelName), false)
	return handler.New(tr, ad, tracker, "openrouter", modelName), nil
}

// innerAdapterFor picks the OpenRouter wrapper's inner adapter by the
// namespaced model's own family (e.g. "google/gemini-..." gets Gemini-
// flavored reasoning-text handling even though the transport is
// OpenRouter's single OpenAI-chat endpoint).
func innerAdapterFor(modelName string) adapter.Adapter {
	lower := strings.ToLower(modelName)
	switch {
	case strings.Contains(lower, "gemini"):
		return adapter.NewGemini(false)
	default:
		return adapter.NewOpenAIChat(nil)
	}
}

// isCodexModel mirrors transport.OpenAI's own (unexported) codex-vs-
// chat heuristic: the Router needs it too, to pick the Responses-
// shaped adapter and a StreamFormat-compatible transport wrapper.
func isCodexModel(model string) bool {
	lower := strings.ToLower(model)
	return strings.Contains(lower, "codex") || strings.Contains(lower, "o1-") || strings.Contains(lower, "o3-")
}

// responsesTransport overrides transport.OpenAI's model-agnostic
// StreamFormat with the Responses-API shape its Endpoint already
// switches to for codex-like models, so the Handler's format dispatch
// and the transport's own endpoint selection never disagree.
type responsesTransport struct {
	*transport.OpenAI
}

func (responsesTransport) StreamFormat() transport.StreamFormat {
	return transport.StreamOpenAIResponsesSSE
}

func (r *Router) buildDirectAPI(res resolver.Resolution) (*handler.Handler, error) {
	if res.APIKeyAvailable || (res.ProviderName == "kimi-coding" && kimiCodingOAuthSource(r.env) != nil) {
		tr, ad, err := r.directAPIBinding(res)
		if err == nil {
			tr = r.rateLimitFor(res.ProviderName, tr)
			tracker := r.newTracker(strategyFor(res.ProviderName), res.ProviderName, res.ModelName, ad.ContextWindow(res.ModelName), freeDirectAPI(res.ProviderName))
			return handler.New(tr, ad, tracker, res.ProviderName, res.ModelName), nil
		}
	}

	// No usable credential: walk the fallback chain.
	if _, ok := r.env.Lookup("OPENROUTER_API_KEY"); ok {
		return r.buildOpenRouter(res.ModelName)
	}
	if resolver.VertexFallbackAvailable(r.env) {
		return r.buildVertexFallback(res)
	}
	return nil, fmt.Errorf("router: no credential available for provider %q (missing %s) and no fallback configured",
		res.ProviderName, res.RequiredAPIKeyEnvVar)
}

// rateLimitFor wraps tr in a token-bucket limiter when the operator
// configured one for this provider via
// GATEWAY_<PROVIDER>_RATE_LIMIT_RPS (e.g. a free-tier provider whose
// trial quota 429s on bursts). Providers with no such env var are
// returned unwrapped.
func (r *Router) rateLimitFor(provider string, tr transport.Transport) transport.Transport {
	key := "GATEWAY_" + strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_RATE_LIMIT_RPS"
	v, ok := r.env.Lookup(key)
	if !ok {
		return tr
	}
	rps, err := strconv.ParseFloat(v, 64)
	if err != nil || rps <= 0 {
		return tr
	}
	return transport.RateLimited(tr, rps, 1)
}

func freeDirectAPI(provider string) bool { return provider == "ollamacloud" }

func strategyFor(provider string) tokentracker.Strategy {
	if provider == "ollamacloud" {
		return tokentracker.StrategyLocal
	}
	return tokentracker.StrategyStandard
}

// directAPIBinding constructs the Transport+Adapter pair for every
// direct-API provider family. Each provider's base URL is overridable
// via a `<PROVIDER>_BASE_URL` environment variable for self-hosted
// compatible endpoints (e.g. an enterprise OpenAI proxy).
func (r *Router) directAPIBinding(res resolver.Resolution) (transport.Transport, adapter.Adapter, error) {
	apiKey, _ := r.env.Lookup(res.RequiredAPIKeyEnvVar)
	baseURL, _ := r.env.Lookup(strings.ToUpper(strings.ReplaceAll(res.ProviderName, "-", "_")) + "_BASE_URL")

	switch res.ProviderName {
	case "gemini":
		if baseURL == "" {
			baseURL = "https://generativelanguage.googleapis.com"
		}
		return transport.NewGemini(baseURL, apiKey), adapter.NewGemini(rejectGeminiSentinel(r.env)), nil

	case "openai":
		if isCodexModel(res.ModelName) {
			return responsesTransport{transport.NewOpenAI(baseURL, apiKey)}, adapter.NewOpenAIResponses(), nil
		}
		return transport.NewOpenAI(baseURL, apiKey), adapter.NewOpenAIChat(nil), nil

	case "xai":
		if baseURL == "" {
			baseURL = "https://api.x.ai"
		}
		return transport.NewOpenAI(baseURL, apiKey), adapter.NewGrok(), nil

	case "glm":
		if baseURL == "" {
			baseURL = "https://open.bigmodel.cn/api/paas/v4"
		}
		return transport.NewOpenAI(baseURL, apiKey), adapter.NewOpenAIChat(adapter.GLMSupportsVision), nil

	case "glm-coding":
		if baseURL == "" {
			baseURL = "https://open.bigmodel.cn/api/coding/paas/v4"
		}
		return transport.NewOpenAI(baseURL, apiKey), adapter.NewOpenAIChat(adapter.GLMSupportsVision), nil

	case "minimax":
		if baseURL == "" {
			baseURL = "https://api.minimax.chat"
		}
		return transport.NewAnthropicCompat(baseURL, apiKey, nil), adapter.NewAnthropicPassthrough(), nil

	case "kimi":
		if baseURL == "" {
			baseURL = "https://api.moonshot.ai"
		}
		return transport.NewAnthropicCompat(baseURL, apiKey, nil), adapter.NewAnthropicPassthrough(), nil

	case "kimi-coding":
		if baseURL == "" {
			baseURL = "https://api.moonshot.ai"
		}
		return transport.NewAnthropicCompat(baseURL, apiKey, kimiCodingOAuthSource(r.env)), adapter.NewAnthropicPassthrough(), nil

	case "zai":
		if baseURL == "" {
			baseURL = "https://api.z.ai/api/anthropic"
		}
		return transport.NewAnthropicCompat(baseURL, apiKey, nil), adapter.NewAnthropicPassthrough(), nil

	case "vertex":
		// Express mode: a plain VERTEX_API_KEY authenticates exactly
		// like a Gemini API key, against Vertex's simplified endpoint,
		// and never touches application-default-credentials at all.
		if apiKey != "" {
			if baseURL == "" {
				baseURL = "https://aiplatform.googleapis.com"
			}
			return transport.NewGemini(baseURL, apiKey), adapter.NewGemini(rejectGeminiSentinel(r.env)), nil
		}
		return r.vertexBinding(res.ModelName)

	case "litellm":
		return transport.NewLiteLLM(baseURL, apiKey), adapter.NewLiteLLM(), nil

	case "opencode-zen":
		if baseURL == "" {
			baseURL = "https://opencode-zen.app/api"
		}
		return transport.NewOpenAI(baseURL, apiKey), adapter.NewOpenAIChat(nil), nil

	case "ollamacloud":
		if baseURL == "" {
			baseURL = "https://ollama.com"
		}
		return transport.NewOpenAI(baseURL, apiKey), adapter.NewOllamaCloud(), nil

	default:
		return nil, nil, fmt.Errorf("router: no direct-API binding for provider %q", res.ProviderName)
	}
}

// rejectGeminiSentinel reads the Open Question #1 opt-out (DESIGN.md):
// by default the Gemini adapter sends the sentinel thought signature
// for unreplayable tool calls; this flag makes it omit the signature
// field entirely instead, for deployments that reject the sentinel.
func rejectGeminiSentinel(env resolver.Env) bool {
	v, _ := env.Lookup("GATEWAY_GEMINI_REJECT_SENTINEL")
	return v == "1" || strings.EqualFold(v, "true")
}

// kimiCodingOAuthSource builds the OAuth fallback Kimi-Coding uses when
// no MOONSHOT_API_KEY is configured. Absent the three OAuth env vars,
// it returns nil and AnthropicCompat.ForceRefreshAuth degrades to
// ErrNoForceRefresh, same as every plain-API-key provider.
func kimiCodingOAuthSource(env resolver.Env) oauth2.TokenSource {
	clientID, ok1 := env.Lookup("MOONSHOT_OAUTH_CLIENT_ID")
	clientSecret, ok2 := env.Lookup("MOONSHOT_OAUTH_CLIENT_SECRET")
	tokenURL, ok3 := env.Lookup("MOONSHOT_OAUTH_TOKEN_URL")
	if !ok1 || !ok2 || !ok3 {
		return nil
	}
	cfg := clientcredentials.Config{ClientID: clientID, ClientSecret: clientSecret, TokenURL: tokenURL}
	return cfg.TokenSource(context.Background())
}

func (r *Router) vertexBinding(modelName string) (transport.Transport, adapter.Adapter, error) {
	project, ok := r.env.Lookup("VERTEX_PROJECT")
	if !ok {
		return nil, nil, fmt.Errorf("router: vertex target requires VERTEX_PROJECT")
	}
	location, _ := r.env.Lookup("VERTEX_LOCATION")

	creds, err := google.FindDefaultCredentials(context.Background(), "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, nil, fmt.Errorf("router: vertex application-default-credentials lookup failed: %w", err)
	}

	publisher, ad := vertexPublisherFor(modelName)
	tr := transport.NewVertex(project, location, publisher, creds.TokenSource)
	return tr, ad, nil
}

// vertexPublisherFor picks Vertex's publisher namespace (and the
// matching Adapter family) from the target model's own name, since
// Vertex multiplexes several model families behind one project.
func vertexPublisherFor(modelName string) (string, adapter.Adapter) {
	lower := strings.ToLower(modelName)
	switch {
	case strings.Contains(lower, "claude"):
		return "anthropic", adapter.NewAnthropicPassthrough()
	case strings.Contains(lower, "mistral") || strings.Contains(lower, "mixtral"):
		return "mistral", adapter.NewOpenAIChat(nil)
	default:
		return "google", adapter.NewGemini(false)
	}
}

func (r *Router) buildVertexFallback(res resolver.Resolution) (*handler.Handler, error) {
	tr, ad, err := r.vertexBinding(res.ModelName)
	if err != nil {
		return nil, err
	}
	tracker := r.newTracker(tokentracker.StrategyStandard, "vertex", res.ModelName, ad.ContextWindow(res.ModelName), false)
	return handler.New(tr, ad, tracker, "vertex", res.ModelName), nil
}

func (r *Router) buildLocal(res resolver.Resolution) (*handler.Handler, error) {
	kind := res.ProviderName
	baseURL := res.BaseURL
	if baseURL == "" {
		baseURL = defaultLocalBaseURL(kind)
	}
	if v, ok := r.env.Lookup(strings.ToUpper(kind) + "_BASE_URL"); ok {
		baseURL = v
	}

	concurrency := 0
	if v, ok := r.env.Lookup("GATEWAY_LOCAL_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			concurrency = n
		}
	}

	tr := transport.NewLocal(baseURL, kind, concurrency)
	ad := adapter.NewLocalChat()
	tracker := r.newTracker(tokentracker.StrategyLocal, kind, res.ModelName, 0, true)
	return handler.New(tr, ad, tracker, kind, res.ModelName), nil
}

func defaultLocalBaseURL(kind string) string {
	switch kind {
	case "lmstudio":
		return "http://localhost:1234"
	case "vllm":
		return "http://localhost:8000"
	case "mlx":
		return "http://localhost:8080"
	default:
		return "http://localhost:11434"
	}
}
