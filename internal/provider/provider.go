// Package provider holds the registry of known LLM API endpoints: which
// hosts to intercept, where user-authored text lives in each provider's
// JSON wire format, and which request headers carry credentials.
package provider

import "strings"

// Provider describes one LLM API's request shape.
type Provider struct {
	Key  string // registry lookup key, e.g. "anthropic"
	Name string // display name, e.g. "Anthropic"

	// Domains this provider intercepts. Entries are either a literal host
	// ("api.anthropic.com") or a wildcard suffix ("*.openai.azure.com").
	Domains []string

	// MessagePaths are JSON paths (segment.segment[*].segment syntax,
	// where [*] matches any array index) locating user-authored text that
	// the transformer must scan for PII.
	MessagePaths []string

	// APIKeyHeaders names the request headers this provider carries
	// credentials in. Descriptive only: the dispatcher does not read it, and
	// credential headers are forwarded upstream unchanged.
	APIKeyHeaders []string
}

// Registry is the closed catalog of supported providers, queried by host.
type Registry struct {
	providers []Provider
}

// NewRegistry returns a Registry pre-populated with the built-in provider
// catalog.
func NewRegistry() *Registry {
	return &Registry{providers: append([]Provider(nil), catalog...)}
}

// ByKey returns the provider registered under key, if any.
func (r *Registry) ByKey(key string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Key == key {
			return p, true
		}
	}
	return Provider{}, false
}

// All returns every registered provider, in catalog declaration order.
func (r *Registry) All() []Provider {
	return append([]Provider(nil), r.providers...)
}

// Resolve finds the provider matching host, a bare hostname or a
// "host:port" pair. Match precedence: exact domain match, then
// domain-suffix match, then wildcard "*.suffix" match — evaluated across
// the whole catalog at each precedence level before falling through to the
// next. Returns (Provider{}, false) if no provider matches.
func (r *Registry) Resolve(host string) (Provider, bool) {
	bare := host
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		bare = host[:idx]
	}

	for _, candidate := range []string{host, bare} {
		if p, ok := r.matchExact(candidate); ok {
			return p, true
		}
	}
	for _, candidate := range []string{host, bare} {
		if p, ok := r.matchSuffix(candidate); ok {
			return p, true
		}
	}
	for _, candidate := range []string{host, bare} {
		if p, ok := r.matchWildcard(candidate); ok {
			return p, true
		}
	}
	return Provider{}, false
}

func (r *Registry) matchExact(host string) (Provider, bool) {
	for _, p := range r.providers {
		for _, d := range p.Domains {
			if strings.HasPrefix(d, "*.") {
				continue
			}
			if host == d {
				return p, true
			}
		}
	}
	return Provider{}, false
}

func (r *Registry) matchSuffix(host string) (Provider, bool) {
	for _, p := range r.providers {
		for _, d := range p.Domains {
			if strings.HasPrefix(d, "*.") {
				continue
			}
			if strings.HasSuffix(host, "."+d) {
				return p, true
			}
		}
	}
	return Provider{}, false
}

func (r *Registry) matchWildcard(host string) (Provider, bool) {
	for _, p := range r.providers {
		for _, d := range p.Domains {
			if !strings.HasPrefix(d, "*.") {
				continue
			}
			suffix := d[1:] // ".openai.azure.com"
			base := d[2:]   // "openai.azure.com"
			if host == base || strings.HasSuffix(host, suffix) {
				return p, true
			}
		}
	}
	return Provider{}, false
}

// catalog is the built-in set of supported LLM API providers, grounded on
// the reference endpoint registry. Purely local providers (Ollama,
// LM Studio) are intentionally excluded: they run on loopback addresses
// with no remote egress to guard.
var catalog = []Provider{
	{
		Key:           "anthropic",
		Name:          "Anthropic",
		Domains:       []string{"api.anthropic.com"},
		MessagePaths:  []string{"messages[*].content", "prompt"},
		APIKeyHeaders: []string{"x-api-key", "anthropic-api-key"},
	},
	{
		Key:           "openai",
		Name:          "OpenAI",
		Domains:       []string{"api.openai.com"},
		MessagePaths:  []string{"messages[*].content", "prompt", "input"},
		APIKeyHeaders: []string{"authorization"},
	},
	{
		Key:           "azure_openai",
		Name:          "Azure OpenAI",
		Domains:       []string{"*.openai.azure.com"},
		MessagePaths:  []string{"messages[*].content", "prompt"},
		APIKeyHeaders: []string{"api-key", "authorization"},
	},
	{
		Key:  "google",
		Name: "Google AI",
		Domains: []string{
			"generativelanguage.googleapis.com",
			"aiplatform.googleapis.com",
		},
		MessagePaths:  []string{"contents[*].parts[*].text", "instances[*].content"},
		APIKeyHeaders: []string{"x-goog-api-key", "authorization"},
	},
	{
		Key:           "mistral",
		Name:          "Mistral AI",
		Domains:       []string{"api.mistral.ai"},
		MessagePaths:  []string{"messages[*].content", "prompt"},
		APIKeyHeaders: []string{"authorization"},
	},
	{
		Key:           "cohere",
		Name:          "Cohere",
		Domains:       []string{"api.cohere.ai", "api.cohere.com"},
		MessagePaths:  []string{"message", "prompt", "texts"},
		APIKeyHeaders: []string{"authorization"},
	},
	{
		Key:           "groq",
		Name:          "Groq",
		Domains:       []string{"api.groq.com"},
		MessagePaths:  []string{"messages[*].content"},
		APIKeyHeaders: []string{"authorization"},
	},
	{
		Key:           "perplexity",
		Name:          "Perplexity",
		Domains:       []string{"api.perplexity.ai"},
		MessagePaths:  []string{"messages[*].content"},
		APIKeyHeaders: []string{"authorization"},
	},
	{
		Key:           "together",
		Name:          "Together AI",
		Domains:       []string{"api.together.xyz"},
		MessagePaths:  []string{"messages[*].content", "prompt"},
		APIKeyHeaders: []string{"authorization"},
	},
	{
		Key:           "fireworks",
		Name:          "Fireworks AI",
		Domains:       []string{"api.fireworks.ai"},
		MessagePaths:  []string{"messages[*].content", "prompt"},
		APIKeyHeaders: []string{"authorization"},
	},
}
