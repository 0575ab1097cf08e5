package service

import (
	"context"
	"errors"
	"finchat/model"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ProviderConfig is everything the invoker needs for one call. The API key
// arrives decrypted from the settings service and never leaves this process.
type ProviderConfig struct {
	Provider    string
	Endpoint    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// ChatMessage is a provider-neutral prompt message.
type ChatMessage struct {
	Role    string
	Content string
}

// Invocation is a completed generation.
type Invocation struct {
	Content    string
	TokensUsed int
}

// Provider is the polymorphic model invoker. One implementation per provider
// family, selected by NewProvider; the orchestrator never branches on the
// provider string itself.
type Provider interface {
	Invoke(ctx context.Context, messages []ChatMessage) (*Invocation, error)
	Stream(ctx context.Context, messages []ChatMessage, onChunk func(string)) (*Invocation, error)
}

// ProviderFactory builds a Provider from config; the orchestrator holds one
// so tests can substitute a fake.
type ProviderFactory func(cfg *ProviderConfig) (Provider, error)

// NewProvider selects the implementation for the settings' provider field.
// Azure and Anthropic-compatible gateways both speak the OpenAI chat schema;
// they differ only in endpoint shape and auth headers.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg.Endpoint == "" || cfg.Model == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.Endpoint),
		option.WithAPIKey(cfg.APIKey),
	}
	switch cfg.Provider {
	case model.ProviderOpenAI:
		// Bearer auth, nothing extra.
	case model.ProviderAzure:
		opts = append(opts,
			option.WithHeader("api-key", cfg.APIKey),
			option.WithQuery("api-version", "2024-06-01"),
		)
	case model.ProviderAnthropic:
		opts = append(opts, option.WithHeader("x-api-key", cfg.APIKey))
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.Provider)
	}

	return &openAIProvider{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

type openAIProvider struct {
	client *openai.Client
	cfg    *ProviderConfig
}

func (p *openAIProvider) params(messages []ChatMessage) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:    openai.F([]openai.ChatCompletionMessageParamUnion{}),
		Model:       openai.F(p.cfg.Model),
		Temperature: openai.F(p.cfg.Temperature),
		MaxTokens:   openai.F(int64(p.cfg.MaxTokens)),
	}
	for _, message := range messages {
		var content any = message.Content
		params.Messages.Value = append(params.Messages.Value, openai.ChatCompletionMessageParam{
			Role:    openai.F(openai.ChatCompletionMessageParamRole(message.Role)),
			Content: openai.F(content),
		})
	}
	return params
}

func (p *openAIProvider) Invoke(ctx context.Context, messages []ChatMessage) (*Invocation, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.params(messages))
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrProviderUnavailable)
	}
	return &Invocation{
		Content:    completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

func (p *openAIProvider) Stream(ctx context.Context, messages []ChatMessage, onChunk func(string)) (*Invocation, error) {
	params := p.params(messages)
	params.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.F(true),
	})

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				onChunk(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, classifyProviderError(err)
	}
	if len(acc.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty stream", ErrProviderUnavailable)
	}
	return &Invocation{
		Content:    acc.Choices[0].Message.Content,
		TokensUsed: int(acc.Usage.TotalTokens),
	}, nil
}

// classifyProviderError maps transport failures onto the generation error
// taxonomy so callers never see raw SDK errors.
func classifyProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTurnTimeout, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %s", ErrProviderAuth, err)
		case 429:
			return fmt.Errorf("%w: %s", ErrProviderRateLimited, err)
		}
	}
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
}
