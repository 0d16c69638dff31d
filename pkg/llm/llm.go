// Package llm dispatches chat-completion calls to hosted inference backends.
// Backends implement ChatCompleter and are selected through a Registry keyed
// on the provider prefix of the model identifier, so adding a provider means
// registering an implementation, not editing a switch.
package llm

import (
	"context"
	"strings"
	"sync"
)

type Options struct {
	MaxTokens   int
	Temperature float64
}

type ChatCompleter interface {
	Complete(ctx context.Context, model string, prompt string, opts Options) (string, error)
}

type Registry struct {
	mu       sync.RWMutex
	byPrefix map[string]ChatCompleter
	fallback ChatCompleter
}

func NewRegistry(fallback ChatCompleter) *Registry {
	return &Registry{
		byPrefix: make(map[string]ChatCompleter),
		fallback: fallback,
	}
}

func (r *Registry) Register(providerPrefix string, c ChatCompleter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPrefix[providerPrefix] = c
}

// Resolve returns the completer registered for the model's provider prefix
// (the part before the first "/"), or the fallback when none is registered.
func (r *Registry) Resolve(modelID string) ChatCompleter {
	provider, _, _ := strings.Cut(modelID, "/")
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byPrefix[provider]; ok {
		return c
	}
	return r.fallback
}
