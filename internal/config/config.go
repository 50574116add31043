// Package config loads storyforge configuration: built-in defaults,
// overridden by YAML, overridden by STORYFORGE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider names for the decision service.
const (
	ProviderChat      = "chat"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Default endpoints and models for the chat provider, mirroring the
// key-presence heuristic: a key means a cloud account, no key means a
// local Ollama.
const (
	defaultGroqURL    = "https://api.groq.com/openai/v1/chat/completions"
	defaultOllamaURL  = "http://localhost:11434/v1/chat/completions"
	defaultGroqModel  = "llama-3.1-8b-instant"
	defaultLocalModel = "llama3.2"
)

// Browser holds browser session settings.
type Browser struct {
	Headless       bool `yaml:"headless"`
	WindowWidth    int  `yaml:"window_width"`
	WindowHeight   int  `yaml:"window_height"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

// Bedrock holds AWS Bedrock settings. Empty keys use the ambient
// credential chain.
type Bedrock struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Daemon holds the watch-directory layout and worker pool size.
type Daemon struct {
	Inbox      string `yaml:"inbox"`
	Outbox     string `yaml:"outbox"`
	State      string `yaml:"state"`
	Workers    int    `yaml:"workers"`
	UsePolling bool   `yaml:"use_polling"`
}

// Config holds all configurable parameters.
type Config struct {
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	KeyFile  string `yaml:"key_file"`

	MaxSteps     int    `yaml:"max_steps"`
	RetryLimit   int    `yaml:"retry_limit"`
	OutputDir    string `yaml:"output_dir"`
	HistoryDB    string `yaml:"history_db"`
	StorageState string `yaml:"storage_state"`

	Browser Browser `yaml:"browser"`
	Bedrock Bedrock `yaml:"bedrock"`
	Daemon  Daemon  `yaml:"daemon"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	base := baseDir()
	return &Config{
		Provider:   ProviderChat,
		MaxSteps:   12,
		RetryLimit: 2,
		OutputDir:  filepath.Join(base, "runs"),
		HistoryDB:  filepath.Join(base, "history.db"),
		Browser: Browser{
			Headless:       true,
			WindowWidth:    1920,
			WindowHeight:   1080,
			TimeoutSeconds: 30,
		},
		Daemon: Daemon{
			Inbox:   filepath.Join(base, "daemon", "inbox"),
			Outbox:  filepath.Join(base, "daemon", "outbox"),
			State:   filepath.Join(base, "daemon", "state"),
			Workers: 2,
		},
	}
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storyforge"
	}
	return filepath.Join(home, ".storyforge")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

// Load reads configuration. Empty path falls back to
// ~/.storyforge/config.yaml. A missing file is fine: defaults apply,
// then the environment. Invalid YAML is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		// YAML overwrites only the fields it names.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays STORYFORGE_* variables onto the config.
func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Provider, "STORYFORGE_PROVIDER")
	setString(&cfg.Endpoint, "STORYFORGE_ENDPOINT")
	setString(&cfg.Model, "STORYFORGE_MODEL")
	setString(&cfg.APIKey, "STORYFORGE_API_KEY")
	setString(&cfg.OutputDir, "STORYFORGE_OUTPUT_DIR")
	setString(&cfg.StorageState, "STORYFORGE_STORAGE_STATE")

	if v := os.Getenv("STORYFORGE_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSteps = n
		}
	}
}

// ResolveAPIKey resolves the decision service credential:
// config value, then STORYFORGE_API_KEY (already overlaid), then the
// provider's conventional variable, then a key file. Bedrock needs no
// key here: it uses the AWS credential chain.
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	switch c.Provider {
	case ProviderAnthropic:
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			return v
		}
	case ProviderChat:
		for _, key := range []string{"GROQ_API_KEY", "OPENAI_API_KEY"} {
			if v := os.Getenv(key); v != "" {
				return v
			}
		}
	}
	keyFile := c.KeyFile
	if keyFile == "" {
		keyFile = filepath.Join(baseDir(), "key")
	}
	return readKeyFile(keyFile)
}

// ResolveEndpoint returns the chat endpoint, inferring cloud vs local
// from key presence when unset. Non-chat providers keep their own
// defaults inside their adapters.
func (c *Config) ResolveEndpoint(apiKey string) string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Provider != ProviderChat {
		return ""
	}
	if apiKey != "" {
		return defaultGroqURL
	}
	return defaultOllamaURL
}

// ResolveModel returns the model name, defaulting per provider.
func (c *Config) ResolveModel(endpoint string) string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderBedrock:
		return "anthropic.claude-3-5-sonnet-20240620-v1:0"
	default:
		if endpoint == defaultGroqURL {
			return defaultGroqModel
		}
		return defaultLocalModel
	}
}

// NeedsAPIKey reports whether the provider requires a credential.
func (c *Config) NeedsAPIKey() bool {
	if c.Provider == ProviderBedrock {
		return false
	}
	// A local Ollama endpoint runs unauthenticated.
	if c.Provider == ProviderChat {
		endpoint := c.ResolveEndpoint(c.ResolveAPIKey())
		return !strings.Contains(endpoint, "localhost") && !strings.Contains(endpoint, "127.0.0.1")
	}
	return true
}

func readKeyFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// DefaultConfigYAML is the commented template written by init.
func DefaultConfigYAML() string {
	return `# storyforge configuration
# Generated by: storyforge init
#
# Decision service provider: chat | anthropic | bedrock
#   chat      any OpenAI-compatible endpoint (Groq, OpenAI, Ollama, vLLM)
#   anthropic the Anthropic Messages API
#   bedrock   AWS Bedrock via the Converse API (ambient AWS credentials)
provider: chat

# Endpoint and model. Leave both empty to auto-detect:
# with an API key the chat provider assumes Groq cloud, without one a
# local Ollama at localhost:11434.
#endpoint: https://api.groq.com/openai/v1/chat/completions
#model: llama-3.1-8b-instant

# Credential resolution order:
#   api_key here -> STORYFORGE_API_KEY -> provider variable
#   (GROQ_API_KEY / OPENAI_API_KEY / ANTHROPIC_API_KEY) -> key_file
#api_key: ""
#key_file: ~/.storyforge/key

# Exploration bounds.
max_steps: 12
retry_limit: 2

# Where run artifacts and history live.
#output_dir: ~/.storyforge/runs
#history_db: ~/.storyforge/history.db

# Playwright storage state injected into generated tests (test.use).
#storage_state: ""

browser:
  headless: true
  window_width: 1920
  window_height: 1080
  timeout_seconds: 30

# AWS Bedrock (only with provider: bedrock). Empty keys use the
# default AWS credential chain.
#bedrock:
#  region: us-east-1
#  access_key: ""
#  secret_key: ""

# Directory daemon (storyforge daemon).
#daemon:
#  inbox: ~/.storyforge/daemon/inbox
#  outbox: ~/.storyforge/daemon/outbox
#  state: ~/.storyforge/daemon/state
#  workers: 2
#  use_polling: false
`
}
