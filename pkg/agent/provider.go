package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request Request) (*Response, error)

	// Provider returns the provider name
	Provider() string
}

// providerConstructors is the compile-time table of supported providers.
// Adding a provider means adding an entry here, nothing else.
var providerConstructors = map[string]func(apiKey string) LLMProvider{
	"anthropic": func(apiKey string) LLMProvider { return NewAnthropicProvider(apiKey) },
	"openai":    func(apiKey string) LLMProvider { return NewOpenAIProvider(apiKey) },
	"gemini":    func(apiKey string) LLMProvider { return NewGeminiProvider(apiKey) },
}

// providerEnvVars maps provider ids to their API-key environment variables
var providerEnvVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Factory holds the providers that actually have credentials. Providers
// without a key are omitted entirely, so a model routed to them fails fast
// with a clear error instead of a doomed upstream call.
type Factory struct {
	providers map[string]LLMProvider
}

// NewFactory builds a factory from the environment: each supported provider
// joins iff its API-key variable is set
func NewFactory() *Factory {
	return NewFactoryWithKeys(nil)
}

// NewFactoryWithKeys builds a factory from configured API keys, with the
// environment overriding per provider. Providers without a key anywhere are
// omitted.
func NewFactoryWithKeys(keys map[string]string) *Factory {
	f := &Factory{providers: make(map[string]LLMProvider)}
	for id, construct := range providerConstructors {
		key := os.Getenv(providerEnvVars[id])
		if key == "" {
			key = keys[id]
		}
		if key == "" {
			continue
		}
		f.providers[id] = construct(key)
	}

	log.Info().Strs("providers", f.ProviderIDs()).Msg("Provider factory built")

	return f
}

// NewFactoryWithProviders builds a factory from explicit providers, keyed by
// their Provider() name. Used by tests and embedders.
func NewFactoryWithProviders(providers ...LLMProvider) *Factory {
	f := &Factory{providers: make(map[string]LLMProvider)}
	for _, p := range providers {
		f.providers[p.Provider()] = p
	}
	return f
}

// ProviderIDs returns the credentialed provider ids, sorted
func (f *Factory) ProviderIDs() []string {
	ids := make([]string, 0, len(f.providers))
	for id := range f.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// modelRoutes maps exact catalog model ids to a provider and the model name
// the upstream API expects
var modelRoutes = map[string]struct {
	provider string
	upstream string
}{
	"chat-model":              {provider: "openai", upstream: "gpt-4o-mini"},
	"google-gemini-3-pro":     {provider: "gemini", upstream: "gemini-3-pro"},
	"google-gemini-2.5-flash": {provider: "gemini", upstream: "gemini-2.5-flash"},
}

// modelPrefixRoutes routes id families by prefix; the upstream name is the id
// with the prefix stripped
var modelPrefixRoutes = []struct {
	prefix   string
	provider string
}{
	{prefix: "anthropic-", provider: "anthropic"},
	{prefix: "openai-", provider: "openai"},
	{prefix: "google-", provider: "gemini"},
}

// ProviderFor resolves a catalog model id to a credentialed provider and the
// upstream model name
func (f *Factory) ProviderFor(modelID string) (LLMProvider, string, error) {
	providerID, upstream, err := routeModel(modelID)
	if err != nil {
		return nil, "", err
	}

	provider, ok := f.providers[providerID]
	if !ok {
		return nil, "", fmt.Errorf("model %s needs provider %s, which has no credential (set %s)",
			modelID, providerID, providerEnvVars[providerID])
	}
	return provider, upstream, nil
}

func routeModel(modelID string) (providerID, upstream string, err error) {
	if route, ok := modelRoutes[modelID]; ok {
		return route.provider, route.upstream, nil
	}
	for _, r := range modelPrefixRoutes {
		if strings.HasPrefix(modelID, r.prefix) {
			return r.provider, strings.TrimPrefix(modelID, r.prefix), nil
		}
	}
	return "", "", fmt.Errorf("unknown model id: %s", modelID)
}
