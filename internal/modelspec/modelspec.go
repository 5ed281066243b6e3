// Package modelspec parses the model identifier a client sends in the
// "model" field of an Anthropic Messages request into a structured
// provider/model pair.
//
// Parsing is a pure function over the input string — no I/O, no env
// lookups. The rest of the gateway (resolver, router) layers
// environment-dependent decisions on top of the parsed ModelSpec.
package modelspec

import (
	"net/url"
	"strings"
)

// ModelSpec is the parsed form of a raw model string like "oai@gpt-4o"
// or "ollama/llama3.2" or "claude-3-sonnet".
type ModelSpec struct {
	Provider string // normalized provider name, e.g. "openai", "gemini", "ollama"
	Model    string // the model name the provider should see
	BaseURL  string // only set when the raw spec carried scheme://host/...
	Raw      string // the original, unparsed string
}

// aliases maps legacy/short provider prefixes to their canonical name.
var aliases = map[string]string{
	"g":       "gemini",
	"oai":     "openai",
	"mm":      "minimax",
	"kc":      "kimi-coding",
	"gc":      "glm-coding",
	"oc":      "ollamacloud",
	"zen":     "opencode-zen",
	"v":       "vertex",
	"or":      "openrouter",
	"gemini":  "gemini",
	"openai":  "openai",
	"minimax": "minimax",
	"kimi":    "kimi",
	"glm":     "glm",
	"zai":     "zai",
	"vertex":  "vertex",
	"openrouter": "openrouter",
	"litellm": "litellm",
	"ollama":  "ollama",
	"lmstudio": "lmstudio",
	"vllm":    "vllm",
	"mlx":     "mlx",
	"poe":     "poe",
}

// normalizeProvider resolves a raw provider token (possibly a short
// alias) to its canonical name. Returns the token unchanged, lowercased,
// if it isn't a known alias — the resolver decides later whether an
// unknown provider is usable.
func normalizeProvider(raw string) (name string, wasAlias bool) {
	lower := strings.ToLower(raw)
	if canon, ok := aliases[lower]; ok {
		return canon, canon != lower
	}
	return lower, false
}

// Parse splits a raw model string into a ModelSpec, following these
// rules:
//
//	x@y                       → provider=x, model=y
//	scheme://host[:port]/path → provider synthesized from host, model is
//	                            the last path segment, BaseURL rebuilt
//	x/y                       → provider=x (alias-normalized), model=y,
//	                            for any x; whether x names a local
//	                            prefix, an OpenRouter namespace, or
//	                            nothing known is decided by the resolver
//	otherwise                 → provider=native-anthropic, model=input
//
// Parse never performs I/O and never consults the environment; it also
// never errors — an unrecognized shape degrades to native-anthropic,
// and the Provider Resolver (internal/resolver) is the place that turns
// that into a configuration error if appropriate.
func Parse(raw string) (ModelSpec, bool) {
	spec := ModelSpec{Raw: raw}

	if u, ok := parseURL(raw); ok {
		spec.Provider = u.provider
		spec.Model = u.model
		spec.BaseURL = u.baseURL
		return spec, true
	}

	if idx := strings.IndexByte(raw, '@'); idx >= 0 {
		providerRaw, model := raw[:idx], raw[idx+1:]
		name, _ := normalizeProvider(providerRaw)
		spec.Provider = name
		spec.Model = model
		return spec, true
	}

	if idx := strings.IndexByte(raw, '/'); idx >= 0 {
		providerRaw, model := raw[:idx], raw[idx+1:]
		spec.Provider, _ = normalizeProvider(providerRaw)
		spec.Model = model
		return spec, true
	}

	// No "/" and no "@": native-anthropic, the bare model name passes
	// through untouched.
	spec.Provider = "native-anthropic"
	spec.Model = raw
	return spec, false
}

// Unparse renders a ModelSpec back into `provider@model` form. Combined
// with Parse, this gives a round-trip law: for any registered
// provider, Parse(Unparse(s)) == s.
func Unparse(spec ModelSpec) string {
	if spec.Provider == "" || spec.Provider == "native-anthropic" {
		return spec.Model
	}
	return spec.Provider + "@" + spec.Model
}

type parsedURL struct {
	provider string
	model    string
	baseURL  string
}

// parseURL recognizes "scheme://host[:port]/path/.../model" specs. The
// provider name is synthesized from the host (so a user pointing at a
// private OpenAI-compatible endpoint gets a stable, if synthetic,
// provider identity), and the model is the final path segment.
func parseURL(raw string) (parsedURL, bool) {
	if !strings.Contains(raw, "://") {
		return parsedURL{}, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return parsedURL{}, false
	}

	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return parsedURL{}, false
	}
	segments := strings.Split(trimmed, "/")
	model := segments[len(segments)-1]

	basePath := ""
	if len(segments) > 1 {
		basePath = "/" + strings.Join(segments[:len(segments)-1], "/")
	}

	baseURL := u.Scheme + "://" + u.Host + basePath

	// Local-provider prefixes are recognized by scheme/host convention
	// rather than requiring every caller to spell "ollama://"; anything
	// reconstructable as a URL is treated as a local/self-hosted target.
	provider := syntheticProviderName(u.Host)

	return parsedURL{provider: provider, model: model, baseURL: baseURL}, true
}

// syntheticProviderName derives a stable provider identifier from a
// host string, stripping the port and replacing dots so it can be used
// as a map key and in header/logging contexts without escaping.
func syntheticProviderName(host string) string {
	host = strings.SplitN(host, ":", 2)[0]
	host = strings.ReplaceAll(host, ".", "-")
	if host == "localhost" || host == "127-0-0-1" || host == "0-0-0-0" {
		return "local"
	}
	return host
}

// localPrefixes are providers routed to the "local" category by name
// alone (no scheme required).
var localPrefixes = map[string]bool{
	"ollama":   true,
	"lmstudio": true,
	"vllm":     true,
	"mlx":      true,
}

// IsLocalPrefix reports whether provider names the local-inference
// Transport family.
func IsLocalPrefix(provider string) bool {
	return localPrefixes[provider]
}
