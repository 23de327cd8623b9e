package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel            = "gpt-4o"
	DefaultMaxTokens        = 1024
	DefaultTemperature      = 0.7
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 8490
	DefaultRetrievalBaseURL = "https://api.firecrawl.dev"
	DefaultResultLimit      = 5
	MaxResultLimit          = 10
	DefaultLanguage         = "en"
	DefaultRegion           = "us"
	DefaultRetrievalTimeout = 30
	DefaultShutdownTimeout  = 5
)

type Config struct {
	Completion CompletionConfig `json:"completion"`
	Retrieval  RetrievalConfig  `json:"retrieval"`
	Server     ServerConfig     `json:"server"`
}

type CompletionConfig struct {
	APIKey       string  `json:"apiKey"`
	BaseURL      string  `json:"baseUrl,omitempty"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"maxTokens"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
}

type RetrievalConfig struct {
	APIKey         string `json:"apiKey"`
	BaseURL        string `json:"baseUrl,omitempty"`
	DefaultLimit   int    `json:"defaultLimit"`
	MaxLimit       int    `json:"maxLimit"`
	Language       string `json:"language"`
	Region         string `json:"region"`
	Screenshot     bool   `json:"screenshot"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Completion: CompletionConfig{
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Retrieval: RetrievalConfig{
			BaseURL:        DefaultRetrievalBaseURL,
			DefaultLimit:   DefaultResultLimit,
			MaxLimit:       MaxResultLimit,
			Language:       DefaultLanguage,
			Region:         DefaultRegion,
			TimeoutSeconds: DefaultRetrievalTimeout,
		},
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".webchat")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("WEBCHAT_OPENAI_API_KEY"); key != "" {
		cfg.Completion.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Completion.APIKey == "" {
		cfg.Completion.APIKey = key
	}
	if url := os.Getenv("WEBCHAT_OPENAI_BASE_URL"); url != "" {
		cfg.Completion.BaseURL = url
	}
	if model := os.Getenv("WEBCHAT_MODEL"); model != "" {
		cfg.Completion.Model = model
	}
	if key := os.Getenv("WEBCHAT_FIRECRAWL_API_KEY"); key != "" {
		cfg.Retrieval.APIKey = key
	}
	if key := os.Getenv("FIRECRAWL_API_KEY"); key != "" && cfg.Retrieval.APIKey == "" {
		cfg.Retrieval.APIKey = key
	}
	if url := os.Getenv("WEBCHAT_FIRECRAWL_BASE_URL"); url != "" {
		cfg.Retrieval.BaseURL = url
	}
	if host := os.Getenv("WEBCHAT_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("WEBCHAT_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if limit := os.Getenv("WEBCHAT_RESULT_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			cfg.Retrieval.DefaultLimit = parsed
		}
	}
	if screenshot := os.Getenv("WEBCHAT_SCREENSHOT"); screenshot != "" {
		if parsed, err := strconv.ParseBool(screenshot); err == nil {
			cfg.Retrieval.Screenshot = parsed
		}
	}

	applyBounds(cfg)

	return cfg, nil
}

// applyBounds backfills zero values and keeps the retrieval limits inside the
// range the external service accepts.
func applyBounds(cfg *Config) {
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = DefaultModel
	}
	if cfg.Completion.MaxTokens <= 0 {
		cfg.Completion.MaxTokens = DefaultMaxTokens
	}
	if cfg.Retrieval.BaseURL == "" {
		cfg.Retrieval.BaseURL = DefaultRetrievalBaseURL
	}
	if cfg.Retrieval.MaxLimit <= 0 || cfg.Retrieval.MaxLimit > MaxResultLimit {
		cfg.Retrieval.MaxLimit = MaxResultLimit
	}
	if cfg.Retrieval.DefaultLimit <= 0 {
		cfg.Retrieval.DefaultLimit = DefaultResultLimit
	}
	if cfg.Retrieval.DefaultLimit > cfg.Retrieval.MaxLimit {
		cfg.Retrieval.DefaultLimit = cfg.Retrieval.MaxLimit
	}
	if cfg.Retrieval.Language == "" {
		cfg.Retrieval.Language = DefaultLanguage
	}
	if cfg.Retrieval.Region == "" {
		cfg.Retrieval.Region = DefaultRegion
	}
	if cfg.Retrieval.TimeoutSeconds <= 0 {
		cfg.Retrieval.TimeoutSeconds = DefaultRetrievalTimeout
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
