// Package config loads docqa configuration from defaults, an optional YAML
// file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before mapping them onto
// config keys: DOCQA_LLM_MODEL -> llm.model.
const EnvPrefix = "DOCQA_"

// maxConfigFileSize caps the YAML file read by LoadWithFile.
const maxConfigFileSize = 1024 * 1024

// Provider names shared by the llm and embedding sections.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderVoyage    = "voyage"
	ProviderHash      = "hash"
)

// Index backends.
const (
	IndexChromem   = "chromem"
	IndexQdrant    = "qdrant"
	IndexSurrealDB = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	LLM           LLMConfig           `koanf:"llm"`
	Embedding     EmbeddingConfig     `koanf:"embedding"`
	Index         IndexConfig         `koanf:"index"`
	Chunking      ChunkingConfig      `koanf:"chunking"`
	Agent         AgentConfig         `koanf:"agent"`
	Ingest        IngestConfig        `koanf:"ingest"`
	Transcription TranscriptionConfig `koanf:"transcription"`
	Log           LogConfig           `koanf:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	BodyLimit       string        `koanf:"body_limit"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig selects the generation models.
type LLMConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	// EvalModel scores answers; empty means Model.
	EvalModel       string  `koanf:"eval_model"`
	Temperature     float64 `koanf:"temperature"`
	EvalTemperature float64 `koanf:"eval_temperature"`
	OpenAIAPIKey    string  `koanf:"openai_api_key"`
	AnthropicAPIKey string  `koanf:"anthropic_api_key"`
	OllamaHost      string  `koanf:"ollama_host"`
	AWSRegion       string  `koanf:"aws_region"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider     string `koanf:"provider"`
	Model        string `koanf:"model"`
	Dimension    int    `koanf:"dimension"`
	OpenAIAPIKey string `koanf:"openai_api_key"`
	VoyageAPIKey string `koanf:"voyage_api_key"`
	OllamaHost   string `koanf:"ollama_host"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Provider   string `koanf:"provider"`
	Collection string `koanf:"collection"`
	// Path enables chromem persistence; empty keeps the index in memory.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`

	QdrantHost   string `koanf:"qdrant_host"`
	QdrantPort   int    `koanf:"qdrant_port"`
	QdrantAPIKey string `koanf:"qdrant_api_key"`
	QdrantTLS    bool   `koanf:"qdrant_tls"`

	SurrealDBURL       string `koanf:"surrealdb_url"`
	SurrealDBNamespace string `koanf:"surrealdb_namespace"`
	SurrealDBDatabase  string `koanf:"surrealdb_database"`
	SurrealDBUser      string `koanf:"surrealdb_user"`
	SurrealDBPass      string `koanf:"surrealdb_pass"`
	SurrealDBAuthLevel string `koanf:"surrealdb_auth_level"`
}

// ChunkingConfig mirrors parser.ChunkPolicy.
type ChunkingConfig struct {
	MaxSize int `koanf:"max_size"`
	Overlap int `koanf:"overlap"`
}

// AgentConfig bounds the query pipeline.
type AgentConfig struct {
	TopK        int           `koanf:"top_k"`
	StepTimeout time.Duration `koanf:"step_timeout"`
}

// IngestConfig bounds each extraction, transcription and index write.
type IngestConfig struct {
	StepTimeout time.Duration `koanf:"step_timeout"`
}

// TranscriptionConfig points at an OpenAI-compatible transcription API.
type TranscriptionConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// LogConfig configures SetupLogger.
type LogConfig struct {
	File  string `koanf:"file"`
	Level string `koanf:"level"`
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() slog.Level {
	return parseLogLevel(l.Level)
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5175,
			BodyLimit:       "25M",
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Provider:        ProviderOpenAI,
			Model:           "gpt-4o-mini",
			Temperature:     0.7,
			EvalTemperature: 0,
			OllamaHost:      "http://localhost:11434",
			AWSRegion:       "us-east-1",
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderOpenAI,
			Model:      "text-embedding-3-large",
			Dimension:  3072,
			OllamaHost: "http://localhost:11434",
		},
		Index: IndexConfig{
			Provider:           IndexChromem,
			Collection:         "rag-chatbot-db",
			QdrantHost:         "localhost",
			QdrantPort:         6334,
			SurrealDBURL:       "ws://localhost:8000/rpc",
			SurrealDBNamespace: "docqa",
			SurrealDBDatabase:  "passages",
			SurrealDBUser:      "root",
			SurrealDBPass:      "root",
			SurrealDBAuthLevel: "root",
		},
		Chunking: ChunkingConfig{
			MaxSize: 500,
			Overlap: 50,
		},
		Agent: AgentConfig{
			TopK:        3,
			StepTimeout: 30 * time.Second,
		},
		Ingest: IngestConfig{
			StepTimeout: 5 * time.Minute,
		},
		Transcription: TranscriptionConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "whisper-1",
		},
		Log: LogConfig{
			File:  filepath.Join(os.TempDir(), "docqa.log"),
			Level: "INFO",
		},
	}
}

// Load reads configuration from defaults and environment variables.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads defaults, then the YAML file at path (if non-empty),
// then DOCQA_* environment variables, then well-known provider variables for
// any credential still unset.
func LoadWithFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyProviderEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey maps DOCQA_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// applyProviderEnv fills credentials from the variables the provider SDKs
// conventionally read.
func applyProviderEnv(cfg *Config) {
	openAIKey := getEnv("OPENAI_API_KEY", "")
	if cfg.LLM.OpenAIAPIKey == "" {
		cfg.LLM.OpenAIAPIKey = openAIKey
	}
	if cfg.Embedding.OpenAIAPIKey == "" {
		cfg.Embedding.OpenAIAPIKey = openAIKey
	}
	if cfg.Transcription.APIKey == "" {
		cfg.Transcription.APIKey = openAIKey
	}
	if cfg.LLM.AnthropicAPIKey == "" {
		cfg.LLM.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", "")
	}
	if cfg.Embedding.VoyageAPIKey == "" {
		cfg.Embedding.VoyageAPIKey = getEnv("VOYAGE_API_KEY", "")
	}
	if host := getEnv("OLLAMA_HOST", ""); host != "" {
		if os.Getenv(EnvPrefix+"LLM_OLLAMA_HOST") == "" {
			cfg.LLM.OllamaHost = host
		}
		if os.Getenv(EnvPrefix+"EMBEDDING_OLLAMA_HOST") == "" {
			cfg.Embedding.OllamaHost = host
		}
	}
	if region := getEnv("AWS_REGION", ""); region != "" && os.Getenv(EnvPrefix+"LLM_AWS_REGION") == "" {
		cfg.LLM.AWSRegion = region
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Chunking.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking.max_size must be positive"))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxSize {
		errs = append(errs, fmt.Errorf("chunking.overlap must be in [0, max_size)"))
	}
	if c.Agent.TopK <= 0 {
		errs = append(errs, fmt.Errorf("agent.top_k must be positive"))
	}
	if c.Agent.StepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("agent.step_timeout must be positive"))
	}
	if c.Ingest.StepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ingest.step_timeout must be positive"))
	}
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
	default:
		errs = append(errs, fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider))
	}
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderVoyage, ProviderHash:
	default:
		errs = append(errs, fmt.Errorf("unsupported embedding.provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must not be negative"))
	}
	switch c.Index.Provider {
	case IndexChromem, IndexQdrant, IndexSurrealDB:
	default:
		errs = append(errs, fmt.Errorf("unsupported index.provider %q", c.Index.Provider))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
