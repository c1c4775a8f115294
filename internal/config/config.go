// internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"time"
)

// ProviderConfig configures one upstream model provider
type ProviderConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	APIKey  string   `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL string   `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Models  []string `mapstructure:"models" yaml:"models"`
}

// EchoConfig configures the offline echo backend
type EchoConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	DelayMS int      `mapstructure:"delay_ms" yaml:"delay_ms"`
	Models  []string `mapstructure:"models" yaml:"models"`
}

// SelectionConfig asks for Count slots answered by Model
type SelectionConfig struct {
	Model string `mapstructure:"model" yaml:"model"`
	Count int    `mapstructure:"count" yaml:"count"`
}

type Config struct {
	Server struct {
		Addr           string   `mapstructure:"addr" yaml:"addr"`
		AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	} `mapstructure:"server" yaml:"server"`
	Client struct {
		Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
		Transport string `mapstructure:"transport" yaml:"transport"` // http or ws
	} `mapstructure:"client" yaml:"client"`
	Providers struct {
		Gemini ProviderConfig `mapstructure:"gemini" yaml:"gemini"`
		Claude ProviderConfig `mapstructure:"claude" yaml:"claude"`
		OpenAI ProviderConfig `mapstructure:"openai" yaml:"openai"`
		Grok   ProviderConfig `mapstructure:"grok" yaml:"grok"`
		Echo   EchoConfig     `mapstructure:"echo" yaml:"echo"`
	} `mapstructure:"providers" yaml:"providers"`
	Defaults struct {
		Selections   []SelectionConfig `mapstructure:"selections" yaml:"selections"`
		RemixModel   string            `mapstructure:"remix_model" yaml:"remix_model"`
		ModelTimeout int               `mapstructure:"model_timeout" yaml:"model_timeout"` // seconds
		Temperature  float64           `mapstructure:"temperature" yaml:"temperature"`
		MaxTokens    int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	} `mapstructure:"defaults" yaml:"defaults"`
	Retry struct {
		Attempts   int `mapstructure:"attempts" yaml:"attempts"`
		DelayMS    int `mapstructure:"delay_ms" yaml:"delay_ms"`
		MaxDelayMS int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	} `mapstructure:"retry" yaml:"retry"`
	History struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		Path    string `mapstructure:"path" yaml:"path,omitempty"`
	} `mapstructure:"history" yaml:"history"`
	Export struct {
		Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
	} `mapstructure:"export" yaml:"export"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = "127.0.0.1:8787"
	cfg.Client.Endpoint = "http://127.0.0.1:8787"
	cfg.Client.Transport = "http"

	cfg.Providers.Gemini = ProviderConfig{
		Enabled: true,
		APIKey:  "${GEMINI_API_KEY}",
		Models:  []string{"gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro"},
	}
	cfg.Providers.Claude = ProviderConfig{
		Enabled: true,
		APIKey:  "${ANTHROPIC_API_KEY}",
		Models:  []string{"claude-sonnet-4-5", "claude-haiku-4-5"},
	}
	cfg.Providers.OpenAI = ProviderConfig{
		Enabled: false,
		APIKey:  "${OPENAI_API_KEY}",
		Models:  []string{"gpt-4o", "gpt-4o-mini"},
	}
	cfg.Providers.Grok = ProviderConfig{
		Enabled: false,
		APIKey:  "${XAI_API_KEY}",
		Models:  []string{"grok-3", "grok-3-mini"},
	}
	cfg.Providers.Echo = EchoConfig{
		Enabled: true,
		DelayMS: 40,
		Models:  []string{"echo"},
	}

	cfg.Defaults.Selections = []SelectionConfig{{Model: "gemini-2.0-flash", Count: 3}}
	cfg.Defaults.RemixModel = "gemini-2.5-pro"
	cfg.Defaults.ModelTimeout = 120
	cfg.Defaults.Temperature = 0.7
	cfg.Defaults.MaxTokens = 8192

	cfg.Retry.Attempts = 3
	cfg.Retry.DelayMS = 1000 // 1 second
	cfg.Retry.MaxDelayMS = 10000

	cfg.History.Enabled = true
	return cfg
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Client.Endpoint == "" {
		cfg.Client.Endpoint = def.Client.Endpoint
	}
	if cfg.Client.Transport == "" {
		cfg.Client.Transport = def.Client.Transport
	}
	if len(cfg.Defaults.Selections) == 0 {
		cfg.Defaults.Selections = def.Defaults.Selections
	}
	if cfg.Defaults.RemixModel == "" {
		cfg.Defaults.RemixModel = def.Defaults.RemixModel
	}
	if cfg.Defaults.ModelTimeout <= 0 {
		cfg.Defaults.ModelTimeout = def.Defaults.ModelTimeout
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = def.Retry.Attempts
	}
	if cfg.Retry.DelayMS <= 0 {
		cfg.Retry.DelayMS = def.Retry.DelayMS
	}
	if cfg.Retry.MaxDelayMS < cfg.Retry.DelayMS {
		cfg.Retry.MaxDelayMS = max(def.Retry.MaxDelayMS, cfg.Retry.DelayMS)
	}
}

// ModelTimeout is the per-slot generation limit
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Defaults.ModelTimeout) * time.Second
}

// RetryDelays returns the first and maximum backoff delays
func (c *Config) RetryDelays() (time.Duration, time.Duration) {
	return time.Duration(c.Retry.DelayMS) * time.Millisecond,
		time.Duration(c.Retry.MaxDelayMS) * time.Millisecond
}

// ConfigPath is where the config file lives, honoring XDG_CONFIG_HOME
func ConfigPath() string {
	configDir, _ := os.UserConfigDir()
	if configDir == "" {
		configDir = os.ExpandEnv("$HOME/.config")
	}
	return filepath.Join(configDir, "threex", "config.yaml")
}

// DataDir is where local history and exports are kept, honoring XDG_DATA_HOME
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "threex")
}
