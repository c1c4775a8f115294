// internal/models/registry.go
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"threex/internal/config"
)

// ErrUnknownModel is returned when no enabled backend serves a model id
var ErrUnknownModel = errors.New("unknown model")

// CatalogEntry describes one model id a client may select
type CatalogEntry struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

// Registry holds all available backends and the model ids they serve
type Registry struct {
	models  map[string]Model // by provider id
	order   []string         // Preserve order for consistent display
	catalog []CatalogEntry
	byID    map[string]string // model id -> provider id
}

// prefixRoutes sends unlisted model ids to a provider by name prefix
var prefixRoutes = []struct {
	prefix   string
	provider string
}{
	{"gemini-", "gemini"},
	{"claude-", "claude"},
	{"gpt-", "openai"},
	{"grok-", "grok"},
	{"echo", "echo"},
}

// NewRegistry creates a registry from config. Providers that need a key
// are skipped when it is empty.
func NewRegistry(cfg *config.Config) *Registry {
	r := NewEmptyRegistry()

	base, maxDelay := cfg.RetryDelays()
	retry := RetryConfig{MaxAttempts: cfg.Retry.Attempts, BaseDelay: base, MaxDelay: maxDelay}
	client := NewRetryableClient(retry)

	p := cfg.Providers
	if p.Gemini.Enabled && p.Gemini.APIKey != "" {
		r.Add(NewGemini(p.Gemini.APIKey, p.Gemini.BaseURL, client), p.Gemini.Models...)
	}
	if p.Claude.Enabled && p.Claude.APIKey != "" {
		r.Add(NewClaude(p.Claude.APIKey, p.Claude.BaseURL, cfg.Retry.Attempts-1), p.Claude.Models...)
	}
	if p.OpenAI.Enabled && p.OpenAI.APIKey != "" {
		r.Add(NewGPT(p.OpenAI.APIKey, p.OpenAI.BaseURL, client), p.OpenAI.Models...)
	}
	if p.Grok.Enabled && p.Grok.APIKey != "" {
		r.Add(NewGrok(p.Grok.APIKey, p.Grok.BaseURL, client), p.Grok.Models...)
	}
	if p.Echo.Enabled {
		r.Add(NewEcho(time.Duration(p.Echo.DelayMS)*time.Millisecond), p.Echo.Models...)
	}

	return r
}

// NewEmptyRegistry returns a registry with no backends
func NewEmptyRegistry() *Registry {
	return &Registry{
		models: make(map[string]Model),
		byID:   make(map[string]string),
	}
}

// Add registers a backend and the model ids it serves
func (r *Registry) Add(m Model, modelIDs ...string) {
	info := m.Info()
	if _, exists := r.models[info.ID]; !exists {
		r.order = append(r.order, info.ID)
	}
	r.models[info.ID] = m

	for _, id := range modelIDs {
		if id == "" {
			continue
		}
		if _, exists := r.byID[id]; !exists {
			r.catalog = append(r.catalog, CatalogEntry{ID: id, Provider: info.ID, Name: displayName(id)})
		}
		r.byID[id] = info.ID
	}
}

// Resolve returns the backend serving modelID
func (r *Registry) Resolve(modelID string) (Model, error) {
	if provider, ok := r.byID[modelID]; ok {
		return r.models[provider], nil
	}
	for _, route := range prefixRoutes {
		if strings.HasPrefix(modelID, route.prefix) {
			if m, ok := r.models[route.provider]; ok {
				return m, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
}

// Get returns a backend by provider ID
func (r *Registry) Get(id string) Model {
	return r.models[id]
}

// All returns all backends in order
func (r *Registry) All() []Model {
	result := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.models[id]; ok {
			result = append(result, m)
		}
	}
	return result
}

// Catalog returns the selectable model ids, grouped by provider order
func (r *Registry) Catalog() []CatalogEntry {
	rank := make(map[string]int, len(r.order))
	for i, id := range r.order {
		rank[id] = i
	}
	out := append([]CatalogEntry(nil), r.catalog...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank[out[i].Provider] < rank[out[j].Provider]
	})
	return out
}

// Enabled returns IDs of all enabled backends
func (r *Registry) Enabled() []string {
	return r.order
}

// Count returns number of enabled backends
func (r *Registry) Count() int {
	return len(r.order)
}

// StopAll interrupts every backend
func (r *Registry) StopAll() {
	for _, m := range r.models {
		m.Stop()
	}
}

// displayName turns "gemini-2.5-pro" into "Gemini 2.5 Pro"
func displayName(id string) string {
	words := strings.Split(id, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		if w == "gpt" {
			words[i] = "GPT"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
