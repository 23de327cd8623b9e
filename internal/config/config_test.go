package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEBCHAT_OPENAI_API_KEY", "OPENAI_API_KEY", "WEBCHAT_OPENAI_BASE_URL",
		"WEBCHAT_MODEL", "WEBCHAT_FIRECRAWL_API_KEY", "FIRECRAWL_API_KEY",
		"WEBCHAT_FIRECRAWL_BASE_URL", "WEBCHAT_HOST", "WEBCHAT_PORT",
		"WEBCHAT_RESULT_LIMIT", "WEBCHAT_SCREENSHOT",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Completion.Model != DefaultModel {
		t.Errorf("model = %q, want %q", cfg.Completion.Model, DefaultModel)
	}
	if cfg.Completion.MaxTokens != DefaultMaxTokens {
		t.Errorf("maxTokens = %d, want %d", cfg.Completion.MaxTokens, DefaultMaxTokens)
	}
	if cfg.Retrieval.DefaultLimit != DefaultResultLimit {
		t.Errorf("defaultLimit = %d, want %d", cfg.Retrieval.DefaultLimit, DefaultResultLimit)
	}
	if cfg.Retrieval.MaxLimit != MaxResultLimit {
		t.Errorf("maxLimit = %d, want %d", cfg.Retrieval.MaxLimit, MaxResultLimit)
	}
	if cfg.Retrieval.Language != DefaultLanguage || cfg.Retrieval.Region != DefaultRegion {
		t.Errorf("locale = %q/%q, want %q/%q", cfg.Retrieval.Language, cfg.Retrieval.Region, DefaultLanguage, DefaultRegion)
	}
	if cfg.Retrieval.Screenshot {
		t.Error("screenshot capture should default to off")
	}
	if cfg.Server.Host != DefaultHost || cfg.Server.Port != DefaultPort {
		t.Errorf("listen = %s:%d, want %s:%d", cfg.Server.Host, cfg.Server.Port, DefaultHost, DefaultPort)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Completion.Model != DefaultModel {
		t.Errorf("model = %q, want default %q", cfg.Completion.Model, DefaultModel)
	}
	if cfg.Completion.APIKey != "" {
		t.Errorf("api key = %q, want empty", cfg.Completion.APIKey)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	dir := filepath.Join(tmpDir, ".webchat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	raw := map[string]any{
		"completion": map[string]any{"apiKey": "sk-file", "model": "gpt-4o-mini"},
		"retrieval":  map[string]any{"apiKey": "fc-file", "defaultLimit": 3},
		"server":     map[string]any{"port": 9000},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Completion.APIKey != "sk-file" || cfg.Completion.Model != "gpt-4o-mini" {
		t.Errorf("completion = %+v", cfg.Completion)
	}
	if cfg.Retrieval.APIKey != "fc-file" || cfg.Retrieval.DefaultLimit != 3 {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("WEBCHAT_OPENAI_API_KEY", "sk-env")
	t.Setenv("FIRECRAWL_API_KEY", "fc-env")
	t.Setenv("WEBCHAT_PORT", "9123")
	t.Setenv("WEBCHAT_RESULT_LIMIT", "8")
	t.Setenv("WEBCHAT_SCREENSHOT", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Completion.APIKey != "sk-env" {
		t.Errorf("completion key = %q, want sk-env", cfg.Completion.APIKey)
	}
	if cfg.Retrieval.APIKey != "fc-env" {
		t.Errorf("retrieval key = %q, want fc-env", cfg.Retrieval.APIKey)
	}
	if cfg.Server.Port != 9123 {
		t.Errorf("port = %d, want 9123", cfg.Server.Port)
	}
	if cfg.Retrieval.DefaultLimit != 8 {
		t.Errorf("defaultLimit = %d, want 8", cfg.Retrieval.DefaultLimit)
	}
	if !cfg.Retrieval.Screenshot {
		t.Error("screenshot should be enabled by env override")
	}
}

func TestLoadConfig_LimitBounds(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("WEBCHAT_RESULT_LIMIT", "50")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Retrieval.DefaultLimit != MaxResultLimit {
		t.Errorf("defaultLimit = %d, want clamped %d", cfg.Retrieval.DefaultLimit, MaxResultLimit)
	}
}

func TestSaveConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg := DefaultConfig()
	cfg.Completion.APIKey = "sk-saved"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Completion.APIKey != "sk-saved" {
		t.Errorf("round-trip api key = %q, want sk-saved", loaded.Completion.APIKey)
	}
}
