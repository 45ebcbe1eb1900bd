package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fabfab/resume-interviewer/config"
)

// clearEnv blanks every override so the surrounding environment cannot leak
// into the layering assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OLLAMA_HOST",
		"API_PORT",
	} {
		t.Setenv(key, "")
	}
}

func pointAtMissingFile(t *testing.T) {
	t.Helper()
	t.Setenv("INTERVIEWER_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	pointAtMissingFile(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Provider != config.ProviderOpenAI {
		t.Fatalf("unexpected LLM provider %q", cfg.LLM.Provider)
	}
	if cfg.API.Port != 5000 {
		t.Fatalf("unexpected port %d", cfg.API.Port)
	}
	if cfg.Session.MaxSessions != 10 {
		t.Fatalf("unexpected session ceiling %d", cfg.Session.MaxSessions)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Fatalf("unexpected idle timeout %v", cfg.Session.IdleTimeout)
	}
	if cfg.Resume.TTL != 2*time.Hour {
		t.Fatalf("unexpected resume TTL %v", cfg.Resume.TTL)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `llm:
  provider: ollama
  model: qwen2.5:7b
api:
  port: 8080
session:
  max_sessions: 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("INTERVIEWER_CONFIG", path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Provider != config.ProviderOllama {
		t.Fatalf("unexpected LLM provider %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "qwen2.5:7b" {
		t.Fatalf("unexpected LLM model %q", cfg.LLM.Model)
	}
	if cfg.API.Port != 8080 {
		t.Fatalf("unexpected port %d", cfg.API.Port)
	}
	if cfg.Session.MaxSessions != 3 {
		t.Fatalf("unexpected session ceiling %d", cfg.Session.MaxSessions)
	}
	// Keys the file does not set keep their defaults.
	if cfg.Embeddings.Provider != config.ProviderOpenAI {
		t.Fatalf("unexpected embeddings provider %q", cfg.Embeddings.Provider)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  provider: ollama\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("INTERVIEWER_CONFIG", path)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("API_PORT", "9000")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Provider != config.ProviderOpenAI {
		t.Fatalf("env override lost, provider is %q", cfg.LLM.Provider)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("unexpected api key %q", cfg.OpenAIAPIKey)
	}
	if cfg.API.Port != 9000 {
		t.Fatalf("unexpected port %d", cfg.API.Port)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm: [unbalanced"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("INTERVIEWER_CONFIG", path)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected a parse error for malformed YAML")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	clearEnv(t)
	pointAtMissingFile(t)
	t.Setenv("API_PORT", "not-a-port")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected a parse error for a non-numeric port")
	}
}
