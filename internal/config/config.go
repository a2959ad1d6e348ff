// Package config carries all runtime configuration for a research run.
// Credentials are injected explicitly into adapter constructors; nothing in
// this repo reads the environment after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for provider endpoints. Base URLs are overridable for proxies and
// for pointing adapters at mock-providers during local runs.
const (
	DefaultKnowledgeGraphBaseURL = "https://kgsearch.googleapis.com/v1/entities:search"
	DefaultBuiltWithBaseURL      = "https://api.builtwith.com/v21/api.json"
	DefaultSonarBaseURL          = "https://api.perplexity.ai/chat/completions"
	DefaultSonarModel            = "sonar"
	DefaultGeminiModel           = "gemini-2.5-flash"
)

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type SonarConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
}

type HTTPConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
}

// Config is the full configuration surface of one run.
type Config struct {
	KnowledgeGraph ProviderConfig `yaml:"knowledge_graph"`
	BuiltWith      ProviderConfig `yaml:"builtwith"`
	Sonar          SonarConfig    `yaml:"sonar"`
	Gemini         GeminiConfig   `yaml:"gemini"`
	Retry          RetryConfig    `yaml:"retry"`
	HTTP           HTTPConfig     `yaml:"http"`
}

func defaults() Config {
	return Config{
		KnowledgeGraph: ProviderConfig{BaseURL: DefaultKnowledgeGraphBaseURL},
		BuiltWith:      ProviderConfig{BaseURL: DefaultBuiltWithBaseURL},
		Sonar:          SonarConfig{BaseURL: DefaultSonarBaseURL, Model: DefaultSonarModel},
		Gemini:         GeminiConfig{Model: DefaultGeminiModel},
		Retry:          RetryConfig{MaxAttempts: 3, BackoffBase: 400 * time.Millisecond},
		HTTP:           HTTPConfig{RequestTimeout: 60 * time.Second},
	}
}

// Load builds the config in three layers: defaults, then an optional YAML
// file, then environment variables. Env wins so a .env or shell export can
// always override a checked-in config file.
func Load(configPath string) (Config, error) {
	cfg := defaults()

	if strings.TrimSpace(configPath) != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
		cfg = fillDefaults(cfg)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fillDefaults restores defaults that a sparse YAML file zeroed out.
func fillDefaults(cfg Config) Config {
	d := defaults()
	if strings.TrimSpace(cfg.KnowledgeGraph.BaseURL) == "" {
		cfg.KnowledgeGraph.BaseURL = d.KnowledgeGraph.BaseURL
	}
	if strings.TrimSpace(cfg.BuiltWith.BaseURL) == "" {
		cfg.BuiltWith.BaseURL = d.BuiltWith.BaseURL
	}
	if strings.TrimSpace(cfg.Sonar.BaseURL) == "" {
		cfg.Sonar.BaseURL = d.Sonar.BaseURL
	}
	if strings.TrimSpace(cfg.Sonar.Model) == "" {
		cfg.Sonar.Model = d.Sonar.Model
	}
	if strings.TrimSpace(cfg.Gemini.Model) == "" {
		cfg.Gemini.Model = d.Gemini.Model
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if cfg.Retry.BackoffBase <= 0 {
		cfg.Retry.BackoffBase = d.Retry.BackoffBase
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = d.HTTP.RequestTimeout
	}
	return cfg
}

func applyEnv(cfg *Config) error {
	applyEnvString(&cfg.KnowledgeGraph.APIKey, "GOOGLE_KG_API_KEY")
	applyEnvString(&cfg.KnowledgeGraph.BaseURL, "GOOGLE_KG_BASE_URL")
	applyEnvString(&cfg.BuiltWith.APIKey, "BUILTWITH_API_KEY")
	applyEnvString(&cfg.BuiltWith.BaseURL, "BUILTWITH_BASE_URL")
	applyEnvString(&cfg.Sonar.APIKey, "SONAR_API_KEY")
	applyEnvString(&cfg.Sonar.BaseURL, "SONAR_BASE_URL")
	applyEnvString(&cfg.Sonar.Model, "SONAR_MODEL")
	applyEnvString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	applyEnvString(&cfg.Gemini.BaseURL, "GEMINI_BASE_URL")
	applyEnvString(&cfg.Gemini.Model, "GEMINI_MODEL")

	var err error
	if cfg.Retry.MaxAttempts, err = envInt("MAX_ATTEMPTS", cfg.Retry.MaxAttempts); err != nil {
		return err
	}
	if cfg.Retry.BackoffBase, err = envDuration("BACKOFF_BASE", cfg.Retry.BackoffBase); err != nil {
		return err
	}
	if cfg.HTTP.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.HTTP.RequestTimeout); err != nil {
		return err
	}
	if cfg.HTTP.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", cfg.HTTP.RateLimitRPS); err != nil {
		return err
	}
	return nil
}

// Validate checks the minimum needed to produce a report. Optional provider
// keys may be absent; their adapters degrade to empty fragments.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return fmt.Errorf("GEMINI_MODEL is required")
	}
	return nil
}

func applyEnvString(dst *string, varName string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
