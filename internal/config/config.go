package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"agentlayer/internal/sysconfig"
)

type Config struct {
	Provider       string        `mapstructure:"provider"` // gemini, openai, anthropic or llama
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 0 waits as long as the service does

	// Local llama-server provider
	LlamaBinPath string `mapstructure:"llama_bin_path"`
	ModelPath    string `mapstructure:"model_path"`
	ContextSize  int    `mapstructure:"context_size"`
	ServerPort   int    `mapstructure:"server_port"`

	DataDir    string `mapstructure:"data_dir"`
	LogFile    string `mapstructure:"log_file"`
	OutputPath string `mapstructure:"output_path"`
	Header     string `mapstructure:"header"`

	// Profile seeds the dashboard's SystemConfig
	Profile sysconfig.Config `mapstructure:"profile"`

	// File is the config file that was read, empty when running on defaults
	File string `mapstructure:"-"`
}

// Provider names
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLlama     = "llama"
)

// DefaultModels is used when no model is configured
var DefaultModels = map[string]string{
	ProviderGemini:    "gemini-3-flash-preview",
	ProviderOpenAI:    "gpt-4.1-mini",
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderLlama:     "local",
}

// apiKeyEnv lists the environment variables checked, in order, when api_key is unset
var apiKeyEnv = map[string][]string{
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"},
	ProviderOpenAI:    {"OPENAI_API_KEY", "OPENROUTER_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
}

// DataDirectory returns the resolved data directory path
func (c *Config) DataDirectory() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agentlayer")
}

// LogPath returns the log file location
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.DataDirectory(), "agentlayer.log")
}

// ModelName returns the configured model or the provider default
func (c *Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModels[c.Provider]
}

// ResolveAPIKey returns api_key, falling back to the provider's usual
// environment variables
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	for _, name := range apiKeyEnv[c.Provider] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("request_timeout", "0s")
	v.SetDefault("llama_bin_path", "llama-server")
	v.SetDefault("model_path", "")
	v.SetDefault("context_size", 8192)
	v.SetDefault("server_port", 8055)
	v.SetDefault("data_dir", "")
	v.SetDefault("log_file", "")
	v.SetDefault("output_path", "GEMINI.md")
	v.SetDefault("header", "GEMINI.md Persistent Memory")

	p := sysconfig.Default()
	v.SetDefault("profile.wsl_enabled", p.WSLEnabled)
	v.SetDefault("profile.package_manager", string(p.PackageManager))
	v.SetDefault("profile.project_path", p.ProjectPath)
	v.SetDefault("profile.shell", string(p.Shell))
	v.SetDefault("profile.include_path_rules", p.IncludePathRules)
	v.SetDefault("profile.include_command_rules", p.IncludeCommandRules)
	v.SetDefault("profile.include_wsl_rules", p.IncludeWSLRules)
	v.SetDefault("profile.refine_logging", p.RefineLogging)
	v.SetDefault("profile.persona", string(p.Persona))
	v.SetDefault("profile.strictness", string(p.Strictness))
}

// LoadConfig reads defaults, then config.yaml from file (or from . and
// $HOME/.agentlayer when file is empty), then AGENTLAYER_* variables.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.agentlayer")
	}

	v.SetEnvPrefix("AGENTLAYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.File = v.ConfigFileUsed()
	config.Provider = strings.ToLower(strings.TrimSpace(config.Provider))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists
	if err := os.MkdirAll(config.DataDirectory(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &config, nil
}

// Validate checks values that would otherwise fail deep inside a request
func (c *Config) Validate() error {
	if _, ok := DefaultModels[c.Provider]; !ok {
		return fmt.Errorf("unknown provider %q (want gemini, openai, anthropic or llama)", c.Provider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	return nil
}
