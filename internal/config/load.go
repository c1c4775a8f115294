package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. THREEX_SERVER_ADDR.
const EnvPrefix = "THREEX"

// Load reads the config at path, or ConfigPath when path is empty. A missing
// file yields defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	def := DefaultConfig()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, def)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	expandConfigEnv(cfg)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("client.endpoint", cfg.Client.Endpoint)
	v.SetDefault("client.transport", cfg.Client.Transport)

	providers := map[string]ProviderConfig{
		"gemini": cfg.Providers.Gemini,
		"claude": cfg.Providers.Claude,
		"openai": cfg.Providers.OpenAI,
		"grok":   cfg.Providers.Grok,
	}
	for name, p := range providers {
		v.SetDefault("providers."+name+".enabled", p.Enabled)
		v.SetDefault("providers."+name+".api_key", p.APIKey)
		v.SetDefault("providers."+name+".base_url", p.BaseURL)
		v.SetDefault("providers."+name+".models", p.Models)
	}
	v.SetDefault("providers.echo.enabled", cfg.Providers.Echo.Enabled)
	v.SetDefault("providers.echo.delay_ms", cfg.Providers.Echo.DelayMS)
	v.SetDefault("providers.echo.models", cfg.Providers.Echo.Models)

	v.SetDefault("defaults.selections", selectionMaps(cfg.Defaults.Selections))
	v.SetDefault("defaults.remix_model", cfg.Defaults.RemixModel)
	v.SetDefault("defaults.model_timeout", cfg.Defaults.ModelTimeout)
	v.SetDefault("defaults.temperature", cfg.Defaults.Temperature)
	v.SetDefault("defaults.max_tokens", cfg.Defaults.MaxTokens)
	v.SetDefault("retry.attempts", cfg.Retry.Attempts)
	v.SetDefault("retry.delay_ms", cfg.Retry.DelayMS)
	v.SetDefault("retry.max_delay_ms", cfg.Retry.MaxDelayMS)
	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("export.dir", cfg.Export.Dir)
}

func selectionMaps(in []SelectionConfig) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, s := range in {
		out = append(out, map[string]any{"model": s.Model, "count": s.Count})
	}
	return out
}

// Validate rejects settings the rest of the program cannot work with
func Validate(cfg *Config) error {
	switch cfg.Client.Transport {
	case "http", "ws":
	default:
		return fmt.Errorf("client.transport must be http or ws, got %q", cfg.Client.Transport)
	}
	for i, sel := range cfg.Defaults.Selections {
		if strings.TrimSpace(sel.Model) == "" {
			return fmt.Errorf("defaults.selections[%d].model is required", i)
		}
		if sel.Count < 1 {
			return fmt.Errorf("defaults.selections[%d].count must be at least 1", i)
		}
	}
	if cfg.Defaults.Temperature < 0 || cfg.Defaults.Temperature > 2 {
		return fmt.Errorf("defaults.temperature must be between 0 and 2")
	}
	if cfg.Defaults.MaxTokens < 0 {
		return fmt.Errorf("defaults.max_tokens must not be negative")
	}
	return nil
}

// expandConfigEnv resolves ${VAR} references so secrets can stay in the
// environment.
func expandConfigEnv(cfg *Config) {
	for _, p := range []*ProviderConfig{
		&cfg.Providers.Gemini,
		&cfg.Providers.Claude,
		&cfg.Providers.OpenAI,
		&cfg.Providers.Grok,
	} {
		p.APIKey = strings.TrimSpace(os.ExpandEnv(p.APIKey))
		p.BaseURL = os.ExpandEnv(p.BaseURL)
	}
	cfg.Client.Endpoint = os.ExpandEnv(cfg.Client.Endpoint)
	cfg.History.Path = os.ExpandEnv(cfg.History.Path)
	cfg.Export.Dir = os.ExpandEnv(cfg.Export.Dir)
}

// WriteDefault writes the default config to path, or ConfigPath when empty.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		path = ConfigPath()
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}
	return path, Save(path, DefaultConfig())
}

// Save writes cfg as YAML
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
