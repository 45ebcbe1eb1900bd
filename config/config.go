// Package config resolves runtime configuration from an optional YAML file
// and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	LLM        LLMConfig       `yaml:"llm"`
	Embeddings EmbeddingConfig `yaml:"embeddings"`
	API        APIConfig       `yaml:"api"`
	Session    SessionConfig   `yaml:"session"`
	Resume     ResumeConfig    `yaml:"resume"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OllamaHost    string `yaml:"ollama_host"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

type SessionConfig struct {
	MaxSessions   int           `yaml:"max_sessions"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type ResumeConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	TempDir string        `yaml:"temp_dir"`
}

// Load resolves configuration in three layers: built-in defaults, the YAML
// file named by INTERVIEWER_CONFIG (default config.yaml) when it exists, and
// finally environment variables. A .env file is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := getEnv("INTERVIEWER_CONFIG", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.Embeddings.Provider = getEnv("EMBEDDING_PROVIDER", cfg.Embeddings.Provider)
	cfg.Embeddings.Model = getEnv("EMBEDDING_MODEL", cfg.Embeddings.Model)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)

	if port := getEnv("API_PORT", ""); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("parse API_PORT: %w", err)
		}
		cfg.API.Port = parsed
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Embeddings: EmbeddingConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		API: APIConfig{
			Port: 5000,
		},
		Session: SessionConfig{
			MaxSessions:   10,
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Resume: ResumeConfig{
			TTL:     2 * time.Hour,
			TempDir: "temp",
		},
		OllamaHost: "http://localhost:11434",
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
