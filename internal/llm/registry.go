package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/logging"
)

// ErrNoAPIKey is returned when a hosted provider is configured without credentials.
var ErrNoAPIKey = errors.New("llm: no API key configured")

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsRetryable reports whether another provider may succeed where this one failed.
func (e *ProviderError) IsRetryable() bool {
	switch e.Code {
	case 401, 403, 408, 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name/alias to a provider.
// e.g., Alias("gpt-4o-mini", "openai") means "gpt-4o-mini" resolves to the "openai" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// IsProvider reports whether name is a registered provider name rather than
// a model reference.
func (r *Registry) IsProvider(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig builds a Registry holding the primary provider plus
// every extra provider in cfg.Providers. Providers without credentials are
// skipped with a warning; the primary becomes the fallback.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	if client, err := newClient(cfg.Provider, cfg.APIKey, cfg.Model, cfg.BaseURL); err != nil {
		reg.log.Warn().Str("provider", cfg.Provider).Err(err).Msg("primary LLM provider unavailable")
	} else {
		reg.Register(cfg.Provider, client)
		reg.Alias(cfg.Model, cfg.Provider)
		reg.SetFallback(cfg.Provider)
	}

	for name, p := range cfg.Providers {
		kind := "openai"
		if p.API == "anthropic-messages" {
			kind = "anthropic"
		}
		client, err := newClient(kind, p.APIKey, p.Model, p.BaseURL)
		if err != nil {
			reg.log.Warn().Str("provider", name).Err(err).Msg("skipping LLM provider")
			continue
		}
		if oc, ok := client.(*OpenAIAPIClient); ok {
			oc.WithName(name)
		}
		reg.Register(name, client)
		reg.Alias(p.Model, name)
		for _, alias := range p.Aliases {
			reg.Alias(alias, name)
		}
	}

	return reg
}

func newClient(kind, apiKey, model, baseURL string) (Client, error) {
	switch kind {
	case "anthropic":
		if apiKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewClaudeAPIClient(apiKey, model, baseURL), nil
	case "openai", "":
		// Self-hosted OpenAI-compatible servers may run without a key.
		if apiKey == "" && baseURL == "" {
			return nil, ErrNoAPIKey
		}
		return NewOpenAIAPIClient(apiKey, model, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", kind)
	}
}
