// internal/models/registry_test.go
package models

import (
	"errors"
	"testing"

	"threex/internal/config"
)

func TestRegistryFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Gemini.APIKey = "g"
	cfg.Providers.Claude.APIKey = "" // skipped without a key
	cfg.Providers.OpenAI.Enabled = true
	cfg.Providers.OpenAI.APIKey = "o"

	r := NewRegistry(cfg)

	if r.Get("claude") != nil {
		t.Error("Claude should be skipped without an API key")
	}
	if r.Count() != 3 {
		t.Errorf("Expected gemini, openai and echo, got %v", r.Enabled())
	}

	m, err := r.Resolve("gemini-2.5-pro")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Info().ID != "gemini" {
		t.Errorf("Expected gemini backend, got %s", m.Info().ID)
	}
}

func TestRegistryResolvesByPrefix(t *testing.T) {
	r := NewEmptyRegistry()
	r.Add(NewGemini("k", "", nil), "gemini-2.0-flash")
	r.Add(NewEcho(0), "echo")

	m, err := r.Resolve("gemini-1.5-flash-8b")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Info().ID != "gemini" {
		t.Errorf("Expected gemini for unlisted id, got %s", m.Info().ID)
	}

	if _, err := r.Resolve("claude-sonnet-4-5"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
}

func TestRegistryCatalog(t *testing.T) {
	r := NewEmptyRegistry()
	r.Add(NewEcho(0), "echo")
	r.Add(NewGemini("k", "", nil), "gemini-2.5-pro", "gemini-2.0-flash")
	r.Add(NewEcho(0), "echo-slow")

	cat := r.Catalog()
	if len(cat) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(cat))
	}
	if cat[0].Provider != "echo" || cat[1].Provider != "echo" {
		t.Errorf("Expected echo entries first, got %+v", cat)
	}
	if cat[2].ID != "gemini-2.5-pro" || cat[2].Name != "Gemini 2.5 Pro" {
		t.Errorf("Unexpected entry %+v", cat[2])
	}
}
