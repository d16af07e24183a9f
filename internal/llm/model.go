// Package llm provides text generation through langchaingo providers.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/docqa/internal/config"
	"github.com/raphaelgruber/docqa/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator is the text generation capability the pipeline depends on.
type Generator interface {
	// Generate completes a single user prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithSystem completes userPrompt under systemPrompt.
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options tune a Model beyond provider selection.
type Options struct {
	// Model overrides cfg.Model when non-empty.
	Model       string
	Temperature float64
	Collector   *metrics.Collector
	Logger      *slog.Logger
}

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm         llms.Model
	modelName   string
	temperature float64
	collector   *metrics.Collector
	logger      *slog.Logger
}

var _ Generator = (*Model)(nil)

// NewModel creates an LLM model for cfg.Provider.
func NewModel(ctx context.Context, cfg config.LLMConfig, opts Options) (*Model, error) {
	name := opts.Model
	if name == "" {
		name = cfg.Model
	}

	var model llms.Model
	var err error

	switch cfg.Provider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(name),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	opts.Model = name
	return NewFromLLM(model, opts), nil
}

// NewFromLLM wraps an existing langchaingo model.
func NewFromLLM(model llms.Model, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		llm:         model,
		modelName:   opts.Model,
		temperature: opts.Temperature,
		collector:   opts.Collector,
		logger:      logger,
	}
}

// Generate generates text based on a prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	return m.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
}

// GenerateWithSystem generates text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	})
}

func (m *Model) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages, llms.WithTemperature(m.temperature))
	duration := time.Since(start)

	if err != nil {
		m.collector.RecordTiming(metrics.OpLLMGenerate, duration)
		m.logger.Warn("generation failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	if len(response.Choices) == 0 {
		m.collector.RecordTiming(metrics.OpLLMGenerate, duration)
		return "", fmt.Errorf("generate: no response choices")
	}

	choice := response.Choices[0]
	in := tokenCount(choice.GenerationInfo, "PromptTokens", "InputTokens", "input_tokens", "prompt_eval_count")
	out := tokenCount(choice.GenerationInfo, "CompletionTokens", "OutputTokens", "output_tokens", "eval_count")
	m.collector.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out)

	m.logger.Debug("generation complete", "model", m.modelName, "duration_ms", duration.Milliseconds(),
		"input_tokens", in, "output_tokens", out)
	return choice.Content, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// tokenCount returns the first numeric value found under keys.
func tokenCount(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
