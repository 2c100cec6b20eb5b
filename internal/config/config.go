// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/modelchat/internal/domain"
)

// DefaultConfigFile is the YAML file read when CONFIG_FILE is unset.
const DefaultConfigFile = "modelchat.yaml"

// Config holds all application configuration.
type Config struct {
	Port        string `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"`
	DBPath      string `yaml:"db_path"`
	LogLevel    string `yaml:"log_level"`

	Auth       AuthConfig       `yaml:"auth"`
	Limits     LimitsConfig     `yaml:"limits"`
	Router     RouterConfig     `yaml:"router"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Cache      CacheConfig      `yaml:"cache"`
	Retention  RetentionConfig  `yaml:"retention"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// AuthConfig controls how request identity is established.
type AuthConfig struct {
	// TrustProxyHeaders accepts X-Forwarded-Email/X-Forwarded-User set by an
	// OAuth proxy in front of the server.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
	// AllowAnonymous issues a per-device cookie identity when no proxy
	// identity is present.
	AllowAnonymous bool `yaml:"allow_anonymous"`
}

// LimitsConfig bounds per-user request volume and body size.
type LimitsConfig struct {
	RequestsPerSecond   float64 `yaml:"requests_per_second"`
	Burst               int     `yaml:"burst"`
	MaxRequestBodyBytes int64   `yaml:"max_request_body_bytes"`
}

// RouterConfig configures the completion router.
type RouterConfig struct {
	DefaultModel          string             `yaml:"default_model"`
	FallbackModels        []string           `yaml:"fallback_models"`
	FallbackHistoryWindow int                `yaml:"fallback_history_window"`
	CallTimeout           time.Duration      `yaml:"call_timeout"`
	Temperature           float64            `yaml:"temperature"`
	MaxTokens             int                `yaml:"max_tokens"`
	ImageModel            string             `yaml:"image_model"`
	DefaultLocale         string             `yaml:"default_locale"`
	Models                []domain.ModelSpec `yaml:"models"`
}

// ProvidersConfig holds credentials and endpoints of remote backends. A
// provider with no credentials is not registered.
type ProvidersConfig struct {
	GitHubToken         string `yaml:"github_token"`
	GitHubModelsBaseURL string `yaml:"github_models_base_url"`
	OpenAIAPIKey        string `yaml:"openai_api_key"`
	OpenAIBaseURL       string `yaml:"openai_base_url"`
	AnthropicAPIKey     string `yaml:"anthropic_api_key"`
	GeminiAPIKey        string `yaml:"gemini_api_key"`
	OllamaBaseURL       string `yaml:"ollama_base_url"`
	CloudflareAccountID string `yaml:"cloudflare_account_id"`
	CloudflareAPIToken  string `yaml:"cloudflare_api_token"`
	CloudflareBaseURL   string `yaml:"cloudflare_base_url"`
	ImgBBAPIKey         string `yaml:"imgbb_api_key"`
	ImgBBBaseURL        string `yaml:"imgbb_base_url"`
	PersonaURL          string `yaml:"persona_url"`
}

// CacheConfig sizes the in-process prompt cache.
type CacheConfig struct {
	MaxMB     int64         `yaml:"max_mb"`
	PromptTTL time.Duration `yaml:"prompt_ttl"`
}

// RetentionConfig controls the stale conversation sweep.
type RetentionConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Interval time.Duration `yaml:"interval"`
}

// TranscriptConfig controls NDJSON chat transcripts.
type TranscriptConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Dir       string `yaml:"dir"`
	QueueSize int    `yaml:"queue_size"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:     "8080",
		DBPath:   "./data/modelchat.db",
		LogLevel: "info",
		Auth: AuthConfig{
			TrustProxyHeaders: false,
			AllowAnonymous:    true,
		},
		Limits: LimitsConfig{
			RequestsPerSecond:   0.5,
			Burst:               10,
			MaxRequestBodyBytes: 1 << 20,
		},
		Router: RouterConfig{
			DefaultModel:          "gpt-4o",
			FallbackModels:        []string{"gpt-4o-mini", "gpt-4.1", "gpt-4o", "claude-3-5-haiku-latest", "gemini-2.0-flash"},
			FallbackHistoryWindow: 6,
			CallTimeout:           60 * time.Second,
			Temperature:           0.7,
			MaxTokens:             2000,
			ImageModel:            "stable-diffusion-xl-base-1.0",
			DefaultLocale:         "tr",
			Models:                DefaultModels(),
		},
		Providers: ProvidersConfig{
			GitHubModelsBaseURL: "https://models.inference.ai.azure.com",
			CloudflareBaseURL:   "https://api.cloudflare.com/client/v4",
			ImgBBBaseURL:        "https://api.imgbb.com",
		},
		Cache: CacheConfig{
			MaxMB:     16,
			PromptTTL: 24 * time.Hour,
		},
		Retention: RetentionConfig{
			MaxAge:   0,
			Interval: time.Hour,
		},
		Transcript: TranscriptConfig{
			Enabled:   false,
			Dir:       "./data/transcripts",
			QueueSize: 1000,
		},
	}
}

// DefaultModels returns the built-in model catalog.
func DefaultModels() []domain.ModelSpec {
	return []domain.ModelSpec{
		{ID: "gpt-4.1", Name: "GPT-4.1", Provider: "github", Kind: domain.KindText, Description: "Most capable GPT model"},
		{ID: "gpt-4o", Name: "GPT-4o", Provider: "github", Kind: domain.KindText, Description: "Fast multimodal flagship"},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "github", Kind: domain.KindText, Description: "Small and fast"},
		{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", Provider: "anthropic", Kind: domain.KindText, Description: "Anthropic fast model"},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "gemini", Kind: domain.KindText, Description: "Google fast model"},
		{ID: "llama3.2-vision:11b", Name: "LLaMA 3.2 Vision", Provider: "ollama", Kind: domain.KindText, Description: "Local model served by Ollama"},
		{ID: "stable-diffusion-xl-base-1.0", Name: "Stable Diffusion XL", Provider: "cloudflare", Kind: domain.KindImage, Description: "Image generation on Cloudflare AI"},
		{ID: "dall-e-3", Name: "DALL-E 3", Provider: "openai", Kind: domain.KindImage, Description: "OpenAI image generation"},
		{ID: "persona", Name: "Persona", Provider: "persona", Kind: domain.KindPersona, Description: "Companion persona that can also draw"},
	}
}

// Load reads configuration with the hierarchy defaults < YAML < environment.
// The YAML file is optional.
func Load() (*Config, error) {
	return LoadFrom(getEnv("CONFIG_FILE", DefaultConfigFile))
}

// LoadFrom is Load with an explicit YAML path.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, path); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Auth.TrustProxyHeaders = getEnvBool("AUTH_TRUST_PROXY_HEADERS", cfg.Auth.TrustProxyHeaders)
	cfg.Auth.AllowAnonymous = getEnvBool("AUTH_ALLOW_ANONYMOUS", cfg.Auth.AllowAnonymous)

	cfg.Limits.RequestsPerSecond = getEnvFloat("RATE_LIMIT_RPS", cfg.Limits.RequestsPerSecond)
	cfg.Limits.Burst = getEnvInt("RATE_LIMIT_BURST", cfg.Limits.Burst)
	cfg.Limits.MaxRequestBodyBytes = int64(getEnvInt("MAX_REQUEST_BODY_BYTES", int(cfg.Limits.MaxRequestBodyBytes)))

	cfg.Router.DefaultModel = getEnv("DEFAULT_MODEL", cfg.Router.DefaultModel)
	cfg.Router.FallbackModels = getEnvList("FALLBACK_MODELS", cfg.Router.FallbackModels)
	cfg.Router.FallbackHistoryWindow = getEnvInt("FALLBACK_HISTORY_WINDOW", cfg.Router.FallbackHistoryWindow)
	cfg.Router.CallTimeout = getEnvDuration("CALL_TIMEOUT", cfg.Router.CallTimeout)
	cfg.Router.Temperature = getEnvFloat("ROUTER_TEMPERATURE", cfg.Router.Temperature)
	cfg.Router.MaxTokens = getEnvInt("ROUTER_MAX_TOKENS", cfg.Router.MaxTokens)
	cfg.Router.ImageModel = getEnv("IMAGE_MODEL", cfg.Router.ImageModel)
	cfg.Router.DefaultLocale = getEnv("DEFAULT_LOCALE", cfg.Router.DefaultLocale)

	p := &cfg.Providers
	p.GitHubToken = getEnv("GITHUB_TOKEN", p.GitHubToken)
	p.GitHubModelsBaseURL = getEnv("GITHUB_MODELS_BASE_URL", p.GitHubModelsBaseURL)
	p.OpenAIAPIKey = getEnv("OPENAI_API_KEY", p.OpenAIAPIKey)
	p.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", p.OpenAIBaseURL)
	p.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", p.AnthropicAPIKey)
	p.GeminiAPIKey = getEnv("GEMINI_API_KEY", p.GeminiAPIKey)
	p.OllamaBaseURL = getEnv("OLLAMA_BASE_URL", p.OllamaBaseURL)
	p.CloudflareAccountID = getEnv("CLOUDFLARE_ACCOUNT_ID", p.CloudflareAccountID)
	p.CloudflareAPIToken = getEnv("CLOUDFLARE_API_TOKEN", p.CloudflareAPIToken)
	p.CloudflareBaseURL = getEnv("CLOUDFLARE_BASE_URL", p.CloudflareBaseURL)
	p.ImgBBAPIKey = getEnv("IMGBB_API_KEY", p.ImgBBAPIKey)
	p.ImgBBBaseURL = getEnv("IMGBB_BASE_URL", p.ImgBBBaseURL)
	p.PersonaURL = getEnv("PERSONA_URL", p.PersonaURL)

	cfg.Cache.MaxMB = int64(getEnvInt("CACHE_MAX_MB", int(cfg.Cache.MaxMB)))
	cfg.Cache.PromptTTL = getEnvDuration("PROMPT_CACHE_TTL", cfg.Cache.PromptTTL)

	cfg.Retention.MaxAge = getEnvDuration("CONVERSATION_RETENTION", cfg.Retention.MaxAge)
	cfg.Retention.Interval = getEnvDuration("RETENTION_INTERVAL", cfg.Retention.Interval)

	cfg.Transcript.Enabled = getEnvBool("TRANSCRIPT_ENABLED", cfg.Transcript.Enabled)
	cfg.Transcript.Dir = getEnv("TRANSCRIPT_DIR", cfg.Transcript.Dir)
	cfg.Transcript.QueueSize = getEnvInt("TRANSCRIPT_QUEUE_SIZE", cfg.Transcript.QueueSize)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Limits.RequestsPerSecond <= 0 || c.Limits.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	if c.Limits.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.Router.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be > 0")
	}
	if c.Router.FallbackHistoryWindow < 0 {
		return fmt.Errorf("FALLBACK_HISTORY_WINDOW must be >= 0")
	}
	if c.Router.MaxTokens <= 0 {
		return fmt.Errorf("ROUTER_MAX_TOKENS must be > 0")
	}
	if c.Router.DefaultLocale != "tr" && c.Router.DefaultLocale != "en" {
		return fmt.Errorf("DEFAULT_LOCALE must be tr or en, got %q", c.Router.DefaultLocale)
	}
	if len(c.Router.Models) == 0 {
		return fmt.Errorf("router.models cannot be empty")
	}
	if c.Router.ModelByID(c.Router.DefaultModel) == nil {
		return fmt.Errorf("DEFAULT_MODEL %q is not in the model catalog", c.Router.DefaultModel)
	}
	seen := make(map[string]bool, len(c.Router.Models))
	for _, m := range c.Router.Models {
		if m.ID == "" || m.Provider == "" {
			return fmt.Errorf("model entries need id and provider")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
	}
	if c.Cache.MaxMB <= 0 {
		return fmt.Errorf("CACHE_MAX_MB must be > 0")
	}
	if c.Retention.MaxAge > 0 && c.Retention.Interval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be > 0 when retention is enabled")
	}
	if c.Transcript.Enabled {
		if c.Transcript.Dir == "" {
			return fmt.Errorf("TRANSCRIPT_DIR cannot be empty")
		}
		if c.Transcript.QueueSize <= 0 {
			return fmt.Errorf("TRANSCRIPT_QUEUE_SIZE must be > 0")
		}
	}
	return nil
}

// ModelByID returns the catalog entry for id, or nil.
func (r RouterConfig) ModelByID(id string) *domain.ModelSpec {
	for i := range r.Models {
		if r.Models[i].ID == id {
			return &r.Models[i]
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origin list.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() || c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
