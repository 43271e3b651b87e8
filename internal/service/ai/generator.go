package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/zhouzirui/career-fairy/backend/internal/config"
)

// Generator maps one prompt to generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Unavailable is used when no provider is configured; every call fails
// with ErrNotConfigured.
var Unavailable Generator = GeneratorFunc(func(context.Context, string) (string, error) {
	return "", ErrNotConfigured
})

// NewGenerator builds the generator for the configured provider.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s provider credentials or model missing: %w", cfg.Provider, ErrNotConfigured)
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		llm, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.GeminiAPIKey),
			googleai.WithDefaultModel(cfg.GeminiModel),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return &langchainGenerator{llm: llm, options: callOptions(cfg)}, nil

	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.OpenAIModel),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return &langchainGenerator{llm: llm, options: callOptions(cfg)}, nil

	case config.ProviderArk:
		chatModel, err := newArkChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create ark chat model: %w", err)
		}
		return &chatModelGenerator{model: chatModel}, nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

type langchainGenerator struct {
	llm     llms.Model
	options []llms.CallOption
}

func (g *langchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, g.options...)
}

func callOptions(cfg config.AIConfig) []llms.CallOption {
	var opts []llms.CallOption
	if cfg.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*cfg.Temperature))
	}
	if cfg.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*cfg.MaxTokens))
	}
	return opts
}

type chatModelGenerator struct {
	model model.BaseChatModel
}

func (g *chatModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrEmptyReply
	}
	return resp.Content, nil
}

func newArkChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	var temperature *float32
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		temperature = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.ArkBaseURL,
		Region:      cfg.ArkRegion,
		APIKey:      cfg.ArkAPIKey,
		AccessKey:   cfg.ArkAccessKey,
		SecretKey:   cfg.ArkSecretKey,
		Model:       cfg.ArkModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: temperature,
	})
}
