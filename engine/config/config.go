// Package config loads pdfqa settings once at process start. Values come from
// built-in defaults, an optional YAML or TOML file, and the environment
// (highest precedence). The resulting *Config is validated and then passed by
// reference to every stage; nothing else in the module reads the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

// Environment variable names.
const (
	EnvEmbeddingProvider = "EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOpenAIBaseURL     = "OPENAI_BASE_URL"
	EnvGeminiAPIKey      = "GEMINI_API_KEY"
	EnvEmbeddingModel    = "OPENAI_EMBEDDING_MODEL"
	EnvChatProvider      = "CHAT_PROVIDER"
	EnvChatModel         = "CHAT_MODEL"
	EnvOllamaURL         = "OLLAMA_URL"
	EnvDatabaseURL       = "DATABASE_URL"
	EnvCollection        = "PG_VECTOR_COLLECTION_NAME"
	EnvPDFPath           = "PDF_PATH"
	EnvChunkStrategy     = "CHUNK_STRATEGY"
	EnvProviderRPS       = "PROVIDER_RPS"
	EnvHTTPTimeout       = "HTTP_TIMEOUT"
	EnvNATSURL           = "NATS_URL"
	EnvPort              = "PORT"
	EnvMetricsPort       = "METRICS_PORT"
	EnvLogLevel          = "LOG_LEVEL"
	EnvCORSOrigin        = "CORS_ORIGIN"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Chunking strategies.
const (
	ChunkWindow    = "window"
	ChunkRecursive = "recursive"
)

// Defaults.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOllamaURL     = "http://localhost:11434"
	DefaultChatModel     = "gpt-5-nano"
	DefaultOllamaChat    = "llama3.1:8b"
	DefaultGeminiChat    = "gemini-2.5-flash"
	DefaultHTTPTimeout   = 60 * time.Second
	DefaultPort          = "8080"
	DefaultCORSOrigin    = "*"
)

// Config holds every setting the binaries need.
type Config struct {
	EmbeddingProvider string        `yaml:"embedding_provider"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	ChatProvider      string        `yaml:"chat_provider"`
	ChatModel         string        `yaml:"chat_model"`
	OllamaURL         string        `yaml:"ollama_url"`
	DatabaseURL       string        `yaml:"database_url"`
	Collection        string        `yaml:"collection"`
	PDFPath           string        `yaml:"pdf_path"`
	ChunkStrategy     string        `yaml:"chunk_strategy"`
	ProviderRPS       float64       `yaml:"provider_rps"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	NATSURL           string        `yaml:"nats_url"`
	Port              string        `yaml:"port"`
	MetricsPort       string        `yaml:"metrics_port"`
	LogLevel          string        `yaml:"log_level"`
	CORSOrigin        string        `yaml:"cors_origin"`
}

// Options controls how Load resolves settings.
type Options struct {
	// File is an optional YAML file. When set it must exist.
	File string
	// Lookup resolves environment variables. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
	// RequirePDF makes PDF_PATH mandatory (ingestion).
	RequirePDF bool
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		EmbeddingProvider: ProviderOpenAI,
		OpenAIBaseURL:     DefaultOpenAIBaseURL,
		OllamaURL:         DefaultOllamaURL,
		ChunkStrategy:     ChunkWindow,
		HTTPTimeout:       DefaultHTTPTimeout,
		Port:              DefaultPort,
		LogLevel:          "info",
		CORSOrigin:        DefaultCORSOrigin,
	}
}

// Load resolves and validates the configuration.
func Load(opts Options) (*Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()
	if opts.File != "" {
		if err := cfg.mergeFile(opts.File); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return nil, err
	}
	if cfg.ChatProvider == "" {
		cfg.ChatProvider = cfg.EmbeddingProvider
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModelFor(cfg.ChatProvider)
	}
	if err := cfg.Validate(opts.RequirePDF); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		var f fileConfig
		if err = toml.Unmarshal(data, &f); err == nil {
			f.apply(c)
		}
	default:
		return fmt.Errorf("config: %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvEmbeddingProvider: &c.EmbeddingProvider,
		EnvOpenAIAPIKey:      &c.OpenAIAPIKey,
		EnvOpenAIBaseURL:     &c.OpenAIBaseURL,
		EnvGeminiAPIKey:      &c.GeminiAPIKey,
		EnvEmbeddingModel:    &c.EmbeddingModel,
		EnvChatProvider:      &c.ChatProvider,
		EnvChatModel:         &c.ChatModel,
		EnvOllamaURL:         &c.OllamaURL,
		EnvDatabaseURL:       &c.DatabaseURL,
		EnvCollection:        &c.Collection,
		EnvPDFPath:           &c.PDFPath,
		EnvChunkStrategy:     &c.ChunkStrategy,
		EnvNATSURL:           &c.NATSURL,
		EnvPort:              &c.Port,
		EnvMetricsPort:       &c.MetricsPort,
		EnvLogLevel:          &c.LogLevel,
		EnvCORSOrigin:        &c.CORSOrigin,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(EnvProviderRPS); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return fmt.Errorf("config: %s: invalid rate %q", EnvProviderRPS, v)
		}
		c.ProviderRPS = rps
	}
	if v, ok := lookup(EnvHTTPTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: %s: invalid duration %q", EnvHTTPTimeout, v)
		}
		c.HTTPTimeout = d
	}
	c.EmbeddingProvider = strings.ToLower(c.EmbeddingProvider)
	c.ChatProvider = strings.ToLower(c.ChatProvider)
	c.ChunkStrategy = strings.ToLower(c.ChunkStrategy)
	return nil
}

// Validate reports every missing required value in one ConfigError.
func (c *Config) Validate(requirePDF bool) error {
	var missing []string
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}

	if c.uses(ProviderOpenAI) {
		need(EnvOpenAIAPIKey, c.OpenAIAPIKey)
	}
	if c.uses(ProviderGemini) {
		need(EnvGeminiAPIKey, c.GeminiAPIKey)
	}
	need(EnvEmbeddingModel, c.EmbeddingModel)
	need(EnvDatabaseURL, c.DatabaseURL)
	need(EnvCollection, c.Collection)
	if requirePDF {
		need(EnvPDFPath, c.PDFPath)
	}
	if len(missing) > 0 {
		return &domain.ConfigError{Missing: missing}
	}

	for _, p := range []string{c.EmbeddingProvider, c.ChatProvider} {
		switch p {
		case ProviderOpenAI, ProviderOllama, ProviderGemini, "":
		default:
			return fmt.Errorf("config: unknown provider %q", p)
		}
	}
	switch c.ChunkStrategy {
	case ChunkWindow, ChunkRecursive, "":
	default:
		return fmt.Errorf("config: unknown chunk strategy %q", c.ChunkStrategy)
	}
	return nil
}

// DefaultChatModelFor is the chat model used when CHAT_MODEL is unset.
func DefaultChatModelFor(provider string) string {
	switch provider {
	case ProviderOllama:
		return DefaultOllamaChat
	case ProviderGemini:
		return DefaultGeminiChat
	default:
		return DefaultChatModel
	}
}

func (c *Config) uses(provider string) bool {
	return c.EmbeddingProvider == provider || c.ChatProvider == provider
}

// EmbeddingTag identifies the embedding space vectors were produced in.
// It is stored with every collection and checked at query time.
func (c *Config) EmbeddingTag() string {
	return c.EmbeddingProvider + "/" + c.EmbeddingModel
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.OpenAIAPIKey != "" {
		out.OpenAIAPIKey = "****"
	}
	if out.GeminiAPIKey != "" {
		out.GeminiAPIKey = "****"
	}
	if i := strings.Index(out.DatabaseURL, "@"); i > 0 {
		if j := strings.Index(out.DatabaseURL, "://"); j > 0 && j < i {
			out.DatabaseURL = out.DatabaseURL[:j+3] + "****" + out.DatabaseURL[i:]
		}
	}
	return out
}
