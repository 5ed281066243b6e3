// Package resolver implements the Provider Resolver: a pure function
// over a raw model string and the process environment that decides
// which category of Transport+Adapter construction a request should
// get.
package resolver

import (
	"strings"

	"github.com/modelbridge/gateway/internal/modelspec"
)

// Category is one of the five disjoint provider categories.
type Category string

const (
	CategoryLocal           Category = "local"
	CategoryDirectAPI       Category = "direct-api"
	CategoryOpenRouter      Category = "openrouter"
	CategoryNativeAnthropic Category = "native-anthropic"
	CategoryUnknown         Category = "unknown"
)

// Resolution is the output of resolving a raw model string.
type Resolution struct {
	Category             Category
	ProviderName         string
	ModelName            string
	FullID               string // the original raw string, unmodified
	BaseURL              string // only set for URL-form specs
	RequiredAPIKeyEnvVar string
	APIKeyAvailable      bool
	DeprecationWarning   string
}

// Env is the subset of the process environment the resolver consults.
// Tests construct this directly instead of mutating os.Environ, keeping
// Resolve a pure function of its two inputs.
type Env map[string]string

// Lookup returns the value of key and whether it was set and non-empty.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok && v != ""
}

// apiKeyEnvVar maps a canonical provider name to the environment
// variable that carries its API key. Providers with a free tier
// (ollamacloud, local) or that never need a key from this gateway
// (native-anthropic forwards the client's own x-api-key) are absent.
var apiKeyEnvVar = map[string]string{
	"gemini":       "GEMINI_API_KEY",
	"openai":       "OPENAI_API_KEY",
	"xai":          "XAI_API_KEY",
	"minimax":      "MINIMAX_API_KEY",
	"kimi":         "MOONSHOT_API_KEY",
	"kimi-coding":  "MOONSHOT_API_KEY",
	"glm":          "ZHIPU_API_KEY",
	"glm-coding":   "GLM_CODING_API_KEY",
	"zai":          "ZAI_API_KEY",
	"vertex":       "VERTEX_API_KEY",
	"litellm":      "LITELLM_API_KEY",
	"opencode-zen": "OPENCODE_ZEN_API_KEY",
}

// freeProviders never require a key: either they're genuinely free
// (ollamacloud) or authenticate another way entirely (local probes,
// vertex-via-project-id, kimi-coding OAuth fallback — handled as a
// fallback path, not here).
var freeProviders = map[string]bool{
	"ollamacloud": true,
}

// directAPIProviders are the known direct-API-prefixed providers.
var directAPIProviders = map[string]bool{
	"gemini": true, "openai": true, "glm": true, "glm-coding": true,
	"minimax": true, "kimi": true, "kimi-coding": true, "zai": true,
	"ollamacloud": true, "litellm": true, "vertex": true, "opencode-zen": true,
	"xai": true,
}

// openRouterEcosystemPrefixes are bare provider prefixes that
// OpenRouter itself uses to namespace models. A raw spec like
// "google/gemini-2.0-flash-exp:free" is an OpenRouter model, not our
// own "gemini" direct-API provider, because it was never written with
// "@" or one of our own recognized provider tokens.
var openRouterEcosystemPrefixes = map[string]bool{
	"google": true, "openai": true, "anthropic": true, "x-ai": true,
	"meta-llama": true, "mistralai": true, "qwen": true, "deepseek": true,
	"cohere": true, "microsoft": true, "nvidia": true,
}

// Resolve implements the ordered rule list below. It is a pure
// function of (raw, env): no network calls, no filesystem access.
func Resolve(raw string, env Env) Resolution {
	spec, _ := modelspec.Parse(raw)
	res := Resolution{
		FullID:       raw,
		ProviderName: spec.Provider,
		ModelName:    spec.Model,
		BaseURL:      spec.BaseURL,
	}
	// Warn only when the provider token as written differs from the
	// normalized provider, i.e. a short alias was expanded. The "@"
	// separator is checked before "/", in the same order Parse uses.
	sep := strings.IndexByte(raw, '@')
	if sep < 0 {
		sep = strings.IndexByte(raw, '/')
	}
	if spec.BaseURL == "" && sep >= 0 && strings.ToLower(raw[:sep]) != spec.Provider {
		res.DeprecationWarning = "model spec used a deprecated short provider alias; prefer the canonical provider name"
	}

	// Rule 1: local prefixes and anything URL-shaped.
	if spec.BaseURL != "" || modelspec.IsLocalPrefix(spec.Provider) {
		res.Category = CategoryLocal
		return res
	}

	// Rule 2: known direct-API prefixes, but only via the "@" form — the
	// "/" form is reserved for rule 4's OpenRouter ecosystem prefixes
	// (openai/gpt-4o means the OpenRouter-namespaced model, not our own
	// direct-api "openai" provider).
	usedExplicitProvider := strings.ContainsAny(raw, "@/")
	usedAtForm := strings.ContainsRune(raw, '@')
	if usedAtForm && directAPIProviders[spec.Provider] {
		res.Category = CategoryDirectAPI
		applyAPIKeyRequirement(&res, spec.Provider)
		applyFallback(&res, env)
		return res
	}

	// Rule 3: explicit OpenRouter form.
	if spec.Provider == "openrouter" {
		res.Category = CategoryOpenRouter
		res.RequiredAPIKeyEnvVar = "OPENROUTER_API_KEY"
		_, res.APIKeyAvailable = env.Lookup("OPENROUTER_API_KEY")
		return res
	}

	// Rule 4: ecosystem prefixes OpenRouter uses to namespace models.
	// These only apply when the caller wrote provider/model — a bare
	// model name containing neither "@" nor "/" fails the
	// usedExplicitProvider check here and is caught by rule 5 below.
	if usedExplicitProvider && openRouterEcosystemPrefixes[spec.Provider] {
		res.Category = CategoryOpenRouter
		res.ModelName = raw[strings.IndexByte(raw, '/')+1:]
		res.RequiredAPIKeyEnvVar = "OPENROUTER_API_KEY"
		_, res.APIKeyAvailable = env.Lookup("OPENROUTER_API_KEY")
		return res
	}

	// Rule 5: no "/" and no "@" → native-anthropic.
	if !strings.ContainsAny(raw, "@/") {
		res.Category = CategoryNativeAnthropic
		res.ProviderName = "native-anthropic"
		res.ModelName = raw
		return res
	}

	// Rule 6: anything else (an explicit provider token we don't
	// recognize, with no fallback chain available) is unknown.
	res.Category = CategoryUnknown
	return res
}

// applyAPIKeyRequirement fills in RequiredAPIKeyEnvVar for a direct-api
// resolution. APIKeyAvailable is left for applyFallback, the only
// caller's next step, since it needs the env to check it.
func applyAPIKeyRequirement(res *Resolution, provider string) {
	if freeProviders[provider] {
		res.APIKeyAvailable = true
		return
	}
	envVar, ok := apiKeyEnvVar[provider]
	if !ok {
		return
	}
	res.RequiredAPIKeyEnvVar = envVar
}

// applyFallback checks whether the direct-api provider's own key is
// present in env. This never changes res.Category — when the key is
// missing, the router is responsible for walking FallbackChain() to
// try OpenRouter, then Vertex, in order.
func applyFallback(res *Resolution, env Env) {
	if res.RequiredAPIKeyEnvVar == "" {
		return
	}
	_, res.APIKeyAvailable = env.Lookup(res.RequiredAPIKeyEnvVar)
}

// FallbackChain returns the ordered list of alternate categories to try
// when a direct-api provider's own key is unavailable: OpenRouter, then
// Vertex. The caller (router) is responsible for checking each
// alternate's own key/project availability in turn.
func FallbackChain() []Category {
	return []Category{CategoryOpenRouter, "vertex-fallback"}
}

// VertexFallbackAvailable reports whether a Vertex fallback can be used:
// either VERTEX_API_KEY or VERTEX_PROJECT is set.
func VertexFallbackAvailable(env Env) bool {
	if _, ok := env.Lookup("VERTEX_API_KEY"); ok {
		return true
	}
	_, ok := env.Lookup("VERTEX_PROJECT")
	return ok
}
