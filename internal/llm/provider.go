package llm

import (
	"context"
	"fmt"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Source resolves a catalog entry to a langchaingo model.
type Source interface {
	Model(ctx context.Context, info ModelInfo) (llms.Model, error)
}

// ProviderConfig carries the credentials and endpoints for every provider.
type ProviderConfig struct {
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OllamaHost      string
	AWSRegion       string
}

// Providers builds langchaingo models on demand and caches one per provider
// and API identifier.
type Providers struct {
	cfg   ProviderConfig
	mu    sync.Mutex
	cache map[string]llms.Model
}

var _ Source = (*Providers)(nil)

// NewProviders creates a provider set.
func NewProviders(cfg ProviderConfig) *Providers {
	return &Providers{cfg: cfg, cache: make(map[string]llms.Model)}
}

// Model returns the cached model for info, creating it on first use.
func (p *Providers) Model(ctx context.Context, info ModelInfo) (llms.Model, error) {
	key := info.Provider + "/" + info.APIIdentifier

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.cache[key]; ok {
		return m, nil
	}
	m, err := p.build(ctx, info)
	if err != nil {
		return nil, err
	}
	p.cache[key] = m
	return m, nil
}

func (p *Providers) build(ctx context.Context, info ModelInfo) (llms.Model, error) {
	switch info.Provider {
	case ProviderOpenAI:
		if p.cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(p.cfg.OpenAIAPIKey),
			openai.WithModel(info.APIIdentifier),
		}
		if p.cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.cfg.OpenAIBaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return m, nil

	case ProviderAnthropic:
		if p.cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		m, err := anthropic.New(
			anthropic.WithToken(p.cfg.AnthropicAPIKey),
			anthropic.WithModel(info.APIIdentifier),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return m, nil

	case ProviderOllama:
		m, err := ollama.New(
			ollama.WithModel(info.APIIdentifier),
			ollama.WithServerURL(p.cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return m, nil

	case ProviderBedrock:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if p.cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(p.cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		m, err := bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(info.APIIdentifier),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", info.Provider)
	}
}
