package config

import "time"

// fileConfig mirrors Config for TOML files. Durations are written as strings
// ("30s") and only non-zero values override the defaults.
type fileConfig struct {
	EmbeddingProvider string  `toml:"embedding_provider"`
	OpenAIAPIKey      string  `toml:"openai_api_key"`
	OpenAIBaseURL     string  `toml:"openai_base_url"`
	GeminiAPIKey      string  `toml:"gemini_api_key"`
	EmbeddingModel    string  `toml:"embedding_model"`
	ChatProvider      string  `toml:"chat_provider"`
	ChatModel         string  `toml:"chat_model"`
	OllamaURL         string  `toml:"ollama_url"`
	DatabaseURL       string  `toml:"database_url"`
	Collection        string  `toml:"collection"`
	PDFPath           string  `toml:"pdf_path"`
	ChunkStrategy     string  `toml:"chunk_strategy"`
	ProviderRPS       float64 `toml:"provider_rps"`
	HTTPTimeout       string  `toml:"http_timeout"`
	NATSURL           string  `toml:"nats_url"`
	Port              string  `toml:"port"`
	MetricsPort       string  `toml:"metrics_port"`
	LogLevel          string  `toml:"log_level"`
	CORSOrigin        string  `toml:"cors_origin"`
}

func (f *fileConfig) apply(c *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.EmbeddingProvider, f.EmbeddingProvider)
	set(&c.OpenAIAPIKey, f.OpenAIAPIKey)
	set(&c.OpenAIBaseURL, f.OpenAIBaseURL)
	set(&c.GeminiAPIKey, f.GeminiAPIKey)
	set(&c.EmbeddingModel, f.EmbeddingModel)
	set(&c.ChatProvider, f.ChatProvider)
	set(&c.ChatModel, f.ChatModel)
	set(&c.OllamaURL, f.OllamaURL)
	set(&c.DatabaseURL, f.DatabaseURL)
	set(&c.Collection, f.Collection)
	set(&c.PDFPath, f.PDFPath)
	set(&c.ChunkStrategy, f.ChunkStrategy)
	set(&c.NATSURL, f.NATSURL)
	set(&c.Port, f.Port)
	set(&c.MetricsPort, f.MetricsPort)
	set(&c.LogLevel, f.LogLevel)
	set(&c.CORSOrigin, f.CORSOrigin)
	if f.ProviderRPS > 0 {
		c.ProviderRPS = f.ProviderRPS
	}
	if d, err := time.ParseDuration(f.HTTPTimeout); err == nil && d > 0 {
		c.HTTPTimeout = d
	}
}
